package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Registry tags of the account entities.
const (
	EntityUser         = "user"
	EntityOAuthAccount = "oauth_account"
)

// User is an account that can authenticate and own todos.
type User struct {
	ID             uuid.UUID `db:"id"`
	Email          string    `db:"email"`
	Username       string    `db:"username"`
	HashedPassword string    `db:"hashed_password"`
	IsActive       bool      `db:"is_active"`
	IsSuperuser    bool      `db:"is_superuser"`
	IsVerified     bool      `db:"is_verified"`
	CreatedAt      time.Time `db:"created_at"`
}

// UserCreate is the registration input.
type UserCreate struct {
	Email       string
	Username    string
	Password    string
	IsSuperuser bool
	IsVerified  bool
}

// UserUpdate is a partial update of a user. The privileged flags are only
// honoured when the update is applied by a superuser.
type UserUpdate struct {
	Email       *string
	Username    *string
	Password    *string
	IsActive    *bool
	IsSuperuser *bool
	IsVerified  *bool
}

// IsEmpty reports whether the update carries no fields.
func (u UserUpdate) IsEmpty() bool {
	return u.Email == nil && u.Username == nil && u.Password == nil &&
		u.IsActive == nil && u.IsSuperuser == nil && u.IsVerified == nil
}

// Unprivileged drops the fields a user may not set on themselves.
func (u UserUpdate) Unprivileged() UserUpdate {
	u.IsActive = nil
	u.IsSuperuser = nil
	u.IsVerified = nil
	return u
}

// NormalizeEmail lower-cases and trims an email address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// OAuthAccount links a user to an identity at an external provider.
type OAuthAccount struct {
	ID           uuid.UUID  `db:"id"`
	UserID       uuid.UUID  `db:"user_id"`
	OAuthName    string     `db:"oauth_name"`
	AccessToken  string     `db:"access_token"`
	ExpiresAt    *time.Time `db:"expires_at"`
	RefreshToken *string    `db:"refresh_token"`
	AccountID    string     `db:"account_id"`
	AccountEmail string     `db:"account_email"`
}

// OAuthIdentity is what an external provider tells us about the person
// signing in.
type OAuthIdentity struct {
	Provider      string
	AccountID     string
	Email         string
	EmailVerified bool
	Name          string
	AccessToken   string
	RefreshToken  string
	ExpiresAt     *time.Time
}
