package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cheapParams = Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8}

func TestPasswordHasher_Format(t *testing.T) {
	hash, err := NewPasswordHasher(DefaultArgon2Params).Hash("correct horse")
	require.NoError(t, err)

	parts := strings.Split(hash, "$")
	require.Len(t, parts, 6)
	assert.Equal(t, "argon2id", parts[1])
	assert.Equal(t, "v=19", parts[2])
	assert.Equal(t, "m=65536,t=3,p=4", parts[3])
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	hasher := NewPasswordHasher(cheapParams)

	hash1, err := hasher.Hash("s3cret-password")
	require.NoError(t, err)
	hash2, err := hasher.Hash("s3cret-password")
	require.NoError(t, err)
	assert.NotEqual(t, hash1, hash2, "salts must differ")

	ok, err := hasher.Verify("s3cret-password", hash1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("wrong-password", hash1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasher_VerifyUsesStoredParams(t *testing.T) {
	hash, err := NewPasswordHasher(cheapParams).Hash("pw-12345678")
	require.NoError(t, err)

	ok, err := NewPasswordHasher(DefaultArgon2Params).Verify("pw-12345678", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPasswordHasher_InvalidHash(t *testing.T) {
	hasher := NewPasswordHasher(cheapParams)

	tests := []struct {
		name    string
		encoded string
		wantErr error
	}{
		{"empty", "", ErrInvalidHash},
		{"bcrypt", "$2a$10$abcdefghijklmnopqrstuv", ErrInvalidHash},
		{"wrong version", "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$aGFzaA", ErrIncompatibleVersion},
		{"bad params", "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA", ErrInvalidHash},
		{"bad salt", "$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA", ErrInvalidHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := hasher.Verify("whatever", tt.encoded)
			assert.False(t, ok)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRandomPassword(t *testing.T) {
	a, err := RandomPassword()
	require.NoError(t, err)
	b, err := RandomPassword()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
