package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/izpodvypodvert/todoapi/internal/auth"
	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/izpodvypodvert/todoapi/internal/logger"
)

const minPasswordLength = 8

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

type TokenIssuer interface {
	IssueAccessToken(userID uuid.UUID) (string, error)
	ParseAccessToken(token string) (uuid.UUID, error)
	IssueResetToken(userID uuid.UUID, hashedPassword string) (string, error)
	ParseResetToken(token string) (uuid.UUID, string, error)
	IssueVerifyToken(userID uuid.UUID, email string) (string, error)
	ParseVerifyToken(token string) (uuid.UUID, string, error)
}

// UserNotifier is told about account events that need to reach the user.
type UserNotifier interface {
	UserRegistered(ctx context.Context, user *domain.User) error
	PasswordResetRequested(ctx context.Context, user *domain.User, token string) error
	VerificationRequested(ctx context.Context, user *domain.User, token string) error
}

type noopNotifier struct{}

func (noopNotifier) UserRegistered(context.Context, *domain.User) error                 { return nil }
func (noopNotifier) PasswordResetRequested(context.Context, *domain.User, string) error { return nil }
func (noopNotifier) VerificationRequested(context.Context, *domain.User, string) error  { return nil }

// UserManager implements registration, login and the account flows on top of
// the generic user service.
type UserManager struct {
	*Service[domain.User, uuid.UUID]
	hasher   PasswordHasher
	tokens   TokenIssuer
	notifier UserNotifier
}

type UserManagerOption func(*UserManager)

func WithNotifier(n UserNotifier) UserManagerOption {
	return func(m *UserManager) {
		if n != nil {
			m.notifier = n
		}
	}
}

func NewUserManager(tx TxManager, hasher PasswordHasher, tokens TokenIssuer, opts ...UserManagerOption) (*UserManager, error) {
	users, err := NewService[domain.User, uuid.UUID](domain.EntityUser, tx)
	if err != nil {
		return nil, err
	}
	if err := checkRegistered[Repository[domain.OAuthAccount]](tx, domain.EntityOAuthAccount); err != nil {
		return nil, err
	}
	m := &UserManager{
		Service:  users,
		hasher:   hasher,
		tokens:   tokens,
		notifier: noopNotifier{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// accounts holds the repositories of one account operation.
type accounts struct {
	users  Repository[domain.User]
	oauths Repository[domain.OAuthAccount]
}

func (m *UserManager) withAccounts(ctx context.Context, fn func(a accounts) error) error {
	return m.tx.WithScope(ctx, func(scope Scope) error {
		users, err := repositoryFor[Repository[domain.User]](scope, domain.EntityUser)
		if err != nil {
			return err
		}
		oauths, err := repositoryFor[Repository[domain.OAuthAccount]](scope, domain.EntityOAuthAccount)
		if err != nil {
			return err
		}
		return fn(accounts{users: users, oauths: oauths})
	})
}

// Register creates an active account. The email is stored lower-cased.
func (m *UserManager) Register(ctx context.Context, input domain.UserCreate) (*domain.User, error) {
	input.Email = domain.NormalizeEmail(input.Email)
	input.Username = strings.TrimSpace(input.Username)
	if input.Email == "" || input.Username == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "email and username are required")
	}
	if reason := passwordProblem(input.Password, input.Email); reason != "" {
		return nil, domain.NewDomainError(domain.ErrCodeRegisterInvalidPassword, reason)
	}

	hashed, err := m.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	var user *domain.User
	err = m.withAccounts(ctx, func(a accounts) error {
		for _, filter := range []Filter{{"email": input.Email}, {"username": input.Username}} {
			existing, err := a.users.FindOneOrNone(ctx, filter)
			if err != nil {
				return err
			}
			if existing != nil {
				return domain.ErrRegisterUserExists
			}
		}
		user, err = a.users.Insert(ctx, map[string]any{
			"email":           input.Email,
			"username":        input.Username,
			"hashed_password": hashed,
			"is_active":       true,
			"is_superuser":    input.IsSuperuser,
			"is_verified":     input.IsVerified,
		})
		return err
	})
	if domain.HasCode(err, domain.ErrCodeAlreadyExists) {
		return nil, domain.ErrRegisterUserExists
	}
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("user registered", "user_id", user.ID)
	if err := m.notifier.UserRegistered(ctx, user); err != nil {
		logger.FromContext(ctx).Warn("register notification failed", "user_id", user.ID, "error", err)
	}
	return user, nil
}

// Authenticate checks credentials. Unknown emails, wrong passwords and
// inactive accounts all fail the same way.
func (m *UserManager) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := m.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Keep the response time close to that of a real check.
		_, _ = m.hasher.Hash(password)
		return nil, domain.ErrBadCredentials
	}

	ok, err := m.hasher.Verify(password, user.HashedPassword)
	if err != nil || !ok || !user.IsActive {
		return nil, domain.ErrBadCredentials
	}
	return user, nil
}

// Login authenticates and issues an access token.
func (m *UserManager) Login(ctx context.Context, email, password string) (string, error) {
	user, err := m.Authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}
	return m.tokens.IssueAccessToken(user.ID)
}

// UserFromToken resolves a bearer token to an active user.
func (m *UserManager) UserFromToken(ctx context.Context, token string) (*domain.User, error) {
	userID, err := m.tokens.ParseAccessToken(token)
	if err != nil {
		return nil, err
	}
	user, err := m.GetByID(ctx, userID)
	if domain.HasCode(err, domain.ErrCodeNotFound) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrInactiveUser
	}
	return user, nil
}

// UpdateUser applies upd to user and returns the stored result. Unless
// privileged, the account flags in upd are ignored. Changing the email
// clears the verified flag.
func (m *UserManager) UpdateUser(ctx context.Context, user *domain.User, upd domain.UserUpdate, privileged bool) (*domain.User, error) {
	if user == nil {
		return nil, domain.ErrMissingOwner
	}
	if !privileged {
		upd = upd.Unprivileged()
	}
	if upd.IsEmpty() {
		return user, nil
	}

	data := make(map[string]any)
	if upd.Username != nil {
		username := strings.TrimSpace(*upd.Username)
		if username == "" {
			return nil, domain.NewDomainError(domain.ErrCodeValidation, "username cannot be empty")
		}
		data["username"] = username
	}
	email := user.Email
	if upd.Email != nil {
		email = domain.NormalizeEmail(*upd.Email)
		if email == "" {
			return nil, domain.NewDomainError(domain.ErrCodeValidation, "email cannot be empty")
		}
		if email != user.Email {
			data["email"] = email
			data["is_verified"] = false
		}
	}
	if upd.Password != nil {
		if reason := passwordProblem(*upd.Password, email); reason != "" {
			return nil, domain.NewDomainError(domain.ErrCodeUpdateUserInvalidPassword, reason)
		}
		hashed, err := m.hasher.Hash(*upd.Password)
		if err != nil {
			return nil, err
		}
		data["hashed_password"] = hashed
	}
	if upd.IsActive != nil {
		data["is_active"] = *upd.IsActive
	}
	if upd.IsSuperuser != nil {
		data["is_superuser"] = *upd.IsSuperuser
	}
	if upd.IsVerified != nil {
		data["is_verified"] = *upd.IsVerified
	}
	if len(data) == 0 {
		return user, nil
	}

	var updated *domain.User
	err := m.withAccounts(ctx, func(a accounts) error {
		if newEmail, ok := data["email"]; ok {
			existing, err := a.users.FindOneOrNone(ctx, Filter{"email": newEmail})
			if err != nil {
				return err
			}
			if existing != nil && existing.ID != user.ID {
				return domain.ErrUpdateUserEmailExists
			}
		}
		var err error
		updated, err = m.applyUpdate(ctx, a.users, user.ID, data)
		return err
	})
	if err != nil {
		if domain.HasCode(err, domain.ErrCodeAlreadyExists) {
			if _, ok := data["email"]; ok {
				return nil, domain.ErrUpdateUserEmailExists
			}
		}
		return nil, err
	}
	return updated, nil
}

// DeleteUser removes the account and everything it owns.
func (m *UserManager) DeleteUser(ctx context.Context, id uuid.UUID) error {
	n, err := m.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound(domain.EntityUser, id)
	}
	return nil
}

// ForgotPassword sends a reset token to an active account. It reports
// success for unknown emails so callers cannot discover accounts.
func (m *UserManager) ForgotPassword(ctx context.Context, email string) error {
	user, err := m.findByEmail(ctx, email)
	if err != nil || user == nil || !user.IsActive {
		return err
	}

	token, err := m.tokens.IssueResetToken(user.ID, user.HashedPassword)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Info("password reset requested", "user_id", user.ID)
	// Delivery failures stay internal; a 5xx here would only happen for
	// existing accounts.
	if err := m.notifier.PasswordResetRequested(ctx, user, token); err != nil {
		log.Error("reset email failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword sets a new password using a token from ForgotPassword. A
// token works once: the new hash no longer matches its fingerprint.
func (m *UserManager) ResetPassword(ctx context.Context, token, password string) (*domain.User, error) {
	userID, fingerprint, err := m.tokens.ParseResetToken(token)
	if err != nil {
		return nil, domain.ErrResetPasswordBadToken
	}

	var updated *domain.User
	err = m.withAccounts(ctx, func(a accounts) error {
		user, err := a.users.FindOneOrNone(ctx, Filter{keyColumn: userID})
		if err != nil {
			return err
		}
		if user == nil || !user.IsActive || auth.PasswordFingerprint(user.HashedPassword) != fingerprint {
			return domain.ErrResetPasswordBadToken
		}
		if reason := passwordProblem(password, user.Email); reason != "" {
			return domain.NewDomainError(domain.ErrCodeResetPasswordInvalidPassword, reason)
		}
		hashed, err := m.hasher.Hash(password)
		if err != nil {
			return err
		}
		updated, err = m.applyUpdate(ctx, a.users, user.ID, map[string]any{"hashed_password": hashed})
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("password reset", "user_id", updated.ID)
	return updated, nil
}

// RequestVerify sends a verification token to an active, unverified account.
// Like ForgotPassword it never reveals whether the account exists.
func (m *UserManager) RequestVerify(ctx context.Context, email string) error {
	user, err := m.findByEmail(ctx, email)
	if err != nil || user == nil || !user.IsActive || user.IsVerified {
		return err
	}

	token, err := m.tokens.IssueVerifyToken(user.ID, user.Email)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Info("verification requested", "user_id", user.ID)
	if err := m.notifier.VerificationRequested(ctx, user, token); err != nil {
		log.Error("verification email failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// Verify marks the account named by token as verified.
func (m *UserManager) Verify(ctx context.Context, token string) (*domain.User, error) {
	userID, email, err := m.tokens.ParseVerifyToken(token)
	if err != nil {
		return nil, domain.ErrVerifyUserBadToken
	}

	var updated *domain.User
	err = m.withAccounts(ctx, func(a accounts) error {
		user, err := a.users.FindOneOrNone(ctx, Filter{keyColumn: userID})
		if err != nil {
			return err
		}
		if user == nil || user.Email != email {
			return domain.ErrVerifyUserBadToken
		}
		if user.IsVerified {
			return domain.ErrVerifyUserAlreadyVerified
		}
		updated, err = m.applyUpdate(ctx, a.users, user.ID, map[string]any{"is_verified": true})
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("user verified", "user_id", updated.ID)
	return updated, nil
}

// OAuthLogin returns the user behind an external identity. The user is found
// through a linked account first, then by email, and created when neither
// exists. The account link is created or refreshed in the same unit of work.
func (m *UserManager) OAuthLogin(ctx context.Context, identity *domain.OAuthIdentity) (*domain.User, error) {
	if identity == nil || identity.AccountID == "" || identity.Email == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "incomplete oauth identity")
	}
	email := domain.NormalizeEmail(identity.Email)

	var user *domain.User
	created := false
	err := m.withAccounts(ctx, func(a accounts) error {
		link, err := a.oauths.FindOneOrNone(ctx, Filter{"oauth_name": identity.Provider, "account_id": identity.AccountID})
		if err != nil {
			return err
		}
		if link != nil {
			user, err = a.users.FindOneOrNone(ctx, Filter{keyColumn: link.UserID})
		} else {
			user, err = a.users.FindOneOrNone(ctx, Filter{"email": email})
		}
		if err != nil {
			return err
		}

		if user == nil {
			user, err = m.createOAuthUser(ctx, a.users, email, identity.EmailVerified)
			if err != nil {
				return err
			}
			created = true
		}
		if !user.IsActive {
			return domain.ErrBadCredentials
		}

		tokens := map[string]any{
			"access_token":  identity.AccessToken,
			"expires_at":    identity.ExpiresAt,
			"refresh_token": nullable(identity.RefreshToken),
			"account_email": email,
		}
		if link != nil && link.UserID == user.ID {
			_, err = a.oauths.UpdateByID(ctx, link.ID, nil, tokens)
			return err
		}
		if link != nil {
			if _, err := a.oauths.Delete(ctx, Filter{keyColumn: link.ID}); err != nil {
				return err
			}
		}
		tokens["user_id"] = user.ID
		tokens["oauth_name"] = identity.Provider
		tokens["account_id"] = identity.AccountID
		_, err = a.oauths.Insert(ctx, tokens)
		return err
	})
	if err != nil {
		return nil, err
	}

	if created {
		logger.FromContext(ctx).Info("user registered", "user_id", user.ID, "provider", identity.Provider)
		if err := m.notifier.UserRegistered(ctx, user); err != nil {
			logger.FromContext(ctx).Warn("register notification failed", "user_id", user.ID, "error", err)
		}
	}
	return user, nil
}

// OAuthLoginToken is OAuthLogin followed by issuing an access token.
func (m *UserManager) OAuthLoginToken(ctx context.Context, identity *domain.OAuthIdentity) (string, error) {
	user, err := m.OAuthLogin(ctx, identity)
	if err != nil {
		return "", err
	}
	return m.tokens.IssueAccessToken(user.ID)
}

// EnsureSuperuser creates a verified superuser unless the email is taken. It
// reports whether an account was created.
func (m *UserManager) EnsureSuperuser(ctx context.Context, email, password string) (*domain.User, bool, error) {
	existing, err := m.findByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	email = domain.NormalizeEmail(email)
	user, err := m.Register(ctx, domain.UserCreate{
		Email:       email,
		Username:    usernameFromEmail(email),
		Password:    password,
		IsSuperuser: true,
		IsVerified:  true,
	})
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (m *UserManager) findByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	var user *domain.User
	err := m.run(ctx, func(repo Repository[domain.User]) error {
		var err error
		user, err = repo.FindOneOrNone(ctx, Filter{"email": email})
		return err
	})
	return user, err
}

func (m *UserManager) applyUpdate(ctx context.Context, users Repository[domain.User], id uuid.UUID, data map[string]any) (*domain.User, error) {
	n, err := users.UpdateByID(ctx, id, nil, data)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, domain.NotFound(domain.EntityUser, id)
	}
	user, err := users.FindOneOrNone(ctx, Filter{keyColumn: id})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NotFound(domain.EntityUser, id)
	}
	return user, nil
}

func (m *UserManager) createOAuthUser(ctx context.Context, users Repository[domain.User], email string, verified bool) (*domain.User, error) {
	password, err := auth.RandomPassword()
	if err != nil {
		return nil, err
	}
	hashed, err := m.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	username := usernameFromEmail(email)
	taken, err := users.FindOneOrNone(ctx, Filter{"username": username})
	if err != nil {
		return nil, err
	}
	if taken != nil {
		suffix, err := randomSuffix()
		if err != nil {
			return nil, err
		}
		username = strings.TrimRight(truncate(username, maxUsernameLength-len(suffix)-1), "-.") + "-" + suffix
	}

	return users.Insert(ctx, map[string]any{
		"email":           email,
		"username":        username,
		"hashed_password": hashed,
		"is_active":       true,
		"is_superuser":    false,
		"is_verified":     verified,
	})
}

// passwordProblem returns why password is unacceptable, or "".
func passwordProblem(password, email string) string {
	if len(password) < minPasswordLength {
		return "password should be at least 8 characters"
	}
	if email != "" && strings.Contains(strings.ToLower(password), strings.ToLower(email)) {
		return "password should not contain e-mail"
	}
	return ""
}

// maxUsernameLength matches users.username VARCHAR(64).
const maxUsernameLength = 64

var usernameUnsafe = regexp.MustCompile(`[^a-z0-9._-]+`)

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(domain.NormalizeEmail(email), "@")
	local = strings.Trim(usernameUnsafe.ReplaceAllString(local, "-"), "-.")
	local = strings.TrimRight(truncate(local, maxUsernameLength), "-.")
	if local == "" {
		return "user"
	}
	return local
}

// truncate cuts s to n bytes. Callers pass ASCII only.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func randomSuffix() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate username suffix: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
