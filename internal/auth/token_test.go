package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokens(t *testing.T, now time.Time) *Tokens {
	t.Helper()
	tokens, err := NewTokens("test-secret", time.Hour, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return tokens
}

func TestNewTokens_RequiresSecret(t *testing.T) {
	_, err := NewTokens("", time.Hour)
	assert.Error(t, err)
}

func TestTokens_AccessTokenRoundTrip(t *testing.T) {
	now := time.Now()
	tokens := newTestTokens(t, now)
	userID := uuid.New()

	token, err := tokens.IssueAccessToken(userID)
	require.NoError(t, err)

	got, err := tokens.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestTokens_AccessTokenExpires(t *testing.T) {
	issued := time.Now()
	token, err := newTestTokens(t, issued).IssueAccessToken(uuid.New())
	require.NoError(t, err)

	_, err = newTestTokens(t, issued.Add(2*time.Hour)).ParseAccessToken(token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestTokens_AudiencesDoNotMix(t *testing.T) {
	tokens := newTestTokens(t, time.Now())
	userID := uuid.New()

	verify, err := tokens.IssueVerifyToken(userID, "a@example.com")
	require.NoError(t, err)
	reset, err := tokens.IssueResetToken(userID, "hash")
	require.NoError(t, err)
	access, err := tokens.IssueAccessToken(userID)
	require.NoError(t, err)

	_, err = tokens.ParseAccessToken(verify)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	_, _, err = tokens.ParseResetToken(access)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	_, _, err = tokens.ParseVerifyToken(reset)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestTokens_ResetCarriesFingerprint(t *testing.T) {
	tokens := newTestTokens(t, time.Now())
	userID := uuid.New()

	token, err := tokens.IssueResetToken(userID, "$argon2id$old")
	require.NoError(t, err)

	gotID, fingerprint, err := tokens.ParseResetToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, PasswordFingerprint("$argon2id$old"), fingerprint)
	assert.NotEqual(t, PasswordFingerprint("$argon2id$new"), fingerprint)
}

func TestTokens_VerifyCarriesEmail(t *testing.T) {
	tokens := newTestTokens(t, time.Now())
	userID := uuid.New()

	token, err := tokens.IssueVerifyToken(userID, "alice@example.com")
	require.NoError(t, err)

	gotID, email, err := tokens.ParseVerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, "alice@example.com", email)
}

func TestTokens_RejectsForeignSignatures(t *testing.T) {
	now := time.Now()
	other, err := NewTokens("another-secret", time.Hour, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	token, err := other.IssueAccessToken(uuid.New())
	require.NoError(t, err)

	_, err = newTestTokens(t, now).ParseAccessToken(token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestTokens_RejectsNoneAlgorithm(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		Audience:  jwt.ClaimStrings{AudienceAuth},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestTokens(t, time.Now()).ParseAccessToken(token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestTokens_RejectsBadSubject(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		Audience:  jwt.ClaimStrings{AudienceAuth},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = newTestTokens(t, time.Now()).ParseAccessToken(token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}
