package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/izpodvypodvert/todoapi/internal/domain"
)

// Token audiences. A token minted for one purpose is rejected for the others.
const (
	AudienceAuth   = "todoapi:auth"
	AudienceReset  = "todoapi:reset"
	AudienceVerify = "todoapi:verify"
)

const (
	DefaultAccessTokenLifetime = time.Hour
	DefaultResetTokenLifetime  = time.Hour
	DefaultVerifyTokenLifetime = time.Hour
)

type tokenClaims struct {
	Email               string `json:"email,omitempty"`
	PasswordFingerprint string `json:"password_fgpt,omitempty"`
	jwt.RegisteredClaims
}

// Tokens issues and parses the HS256 tokens of the API.
type Tokens struct {
	secret         []byte
	accessLifetime time.Duration
	resetLifetime  time.Duration
	verifyLifetime time.Duration
	now            func() time.Time
}

type TokensOption func(*Tokens)

func WithClock(now func() time.Time) TokensOption {
	return func(t *Tokens) { t.now = now }
}

func WithResetLifetime(d time.Duration) TokensOption {
	return func(t *Tokens) { t.resetLifetime = d }
}

func WithVerifyLifetime(d time.Duration) TokensOption {
	return func(t *Tokens) { t.verifyLifetime = d }
}

func NewTokens(secret string, accessLifetime time.Duration, opts ...TokensOption) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if accessLifetime <= 0 {
		accessLifetime = DefaultAccessTokenLifetime
	}
	t := &Tokens{
		secret:         []byte(secret),
		accessLifetime: accessLifetime,
		resetLifetime:  DefaultResetTokenLifetime,
		verifyLifetime: DefaultVerifyTokenLifetime,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// AccessLifetime is how long an access token stays valid.
func (t *Tokens) AccessLifetime() time.Duration {
	return t.accessLifetime
}

func (t *Tokens) IssueAccessToken(userID uuid.UUID) (string, error) {
	return t.sign(userID, AudienceAuth, t.accessLifetime, tokenClaims{})
}

func (t *Tokens) ParseAccessToken(token string) (uuid.UUID, error) {
	claims, err := t.parse(token, AudienceAuth)
	if err != nil {
		return uuid.Nil, err
	}
	return subject(claims)
}

// IssueResetToken binds the token to the current password hash, so it stops
// working once the password has been changed.
func (t *Tokens) IssueResetToken(userID uuid.UUID, hashedPassword string) (string, error) {
	return t.sign(userID, AudienceReset, t.resetLifetime, tokenClaims{
		PasswordFingerprint: PasswordFingerprint(hashedPassword),
	})
}

// ParseResetToken returns the user and the password fingerprint the token was
// issued against.
func (t *Tokens) ParseResetToken(token string) (uuid.UUID, string, error) {
	claims, err := t.parse(token, AudienceReset)
	if err != nil {
		return uuid.Nil, "", err
	}
	id, err := subject(claims)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, claims.PasswordFingerprint, nil
}

func (t *Tokens) IssueVerifyToken(userID uuid.UUID, email string) (string, error) {
	return t.sign(userID, AudienceVerify, t.verifyLifetime, tokenClaims{Email: email})
}

// ParseVerifyToken returns the user and the email address being verified.
func (t *Tokens) ParseVerifyToken(token string) (uuid.UUID, string, error) {
	claims, err := t.parse(token, AudienceVerify)
	if err != nil {
		return uuid.Nil, "", err
	}
	id, err := subject(claims)
	if err != nil {
		return uuid.Nil, "", err
	}
	if claims.Email == "" {
		return uuid.Nil, "", domain.ErrInvalidToken
	}
	return id, claims.Email, nil
}

// PasswordFingerprint is a stable digest of a password hash.
func PasswordFingerprint(hashedPassword string) string {
	sum := sha256.Sum256([]byte(hashedPassword))
	return hex.EncodeToString(sum[:])
}

func (t *Tokens) sign(userID uuid.UUID, audience string, lifetime time.Duration, claims tokenClaims) (string, error) {
	now := t.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   userID.String(),
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (t *Tokens) parse(token, audience string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnauthorized, domain.ErrInvalidToken.Message, err)
	}
	return claims, nil
}

func subject(claims *tokenClaims) (uuid.UUID, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnauthorized, domain.ErrInvalidToken.Message, err)
	}
	return id, nil
}
