package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher(MinBcryptCost)

	hash, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	assert.NotEqual(t, []byte("Passw0rd!"), hash)

	cost, err := bcrypt.Cost(hash)
	require.NoError(t, err)
	assert.Equal(t, MinBcryptCost, cost)

	ok, err := h.Verify("Passw0rd!", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBcryptHasherRaisesLowCost(t *testing.T) {
	h := NewBcryptHasher(4)
	hash, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	cost, err := bcrypt.Cost(hash)
	require.NoError(t, err)
	assert.Equal(t, MinBcryptCost, cost)
}

func TestArgon2HasherRoundTrip(t *testing.T) {
	params := Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}
	h := NewArgon2Hasher(params)

	hash, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	assert.Contains(t, string(hash), "$argon2id$v=19$t=1,m=8192,p=1$")

	ok, err := h.Verify("Passw0rd!", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("Passw0rd?", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyAcceptsEitherFormat(t *testing.T) {
	bcryptHash, err := NewBcryptHasher(MinBcryptCost).Hash("Passw0rd!")
	require.NoError(t, err)

	argon := NewArgon2Hasher(Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	ok, err := argon.Verify("Passw0rd!", bcryptHash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = argon.Verify("Passw0rd!", []byte("plaintext"))
	assert.ErrorIs(t, err, ErrUnsupportedHash)
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	_, err := NewBcryptHasher(MinBcryptCost).Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestValidateEmail(t *testing.T) {
	for _, email := range []string{"ana@example.com", " Ana@Example.COM "} {
		assert.NoError(t, ValidateEmail(email), email)
	}
	for _, email := range []string{"", "ana", "ana@", "ana@example", "a na@example.com"} {
		assert.ErrorIs(t, ValidateEmail(email), ErrInvalidEmail, email)
	}
}

func TestPasswordPolicy(t *testing.T) {
	base := PasswordPolicy{}
	assert.ErrorIs(t, base.Validate("short"), ErrWeakPassword)
	assert.NoError(t, base.Validate("aaaaaaaa"))

	strict := PasswordPolicy{Strict: true}
	assert.ErrorIs(t, strict.Validate("aaaaaaaa"), ErrWeakPassword)
	assert.NoError(t, strict.Validate("aaaaaaa1"))
	assert.NoError(t, strict.Validate("Passw0rd!"))

	assert.NoError(t, base.Validate(strings.Repeat("a", MaxPasswordBytes)))
	assert.ErrorIs(t, base.Validate(strings.Repeat("a", MaxPasswordBytes+1)), ErrWeakPassword)
	assert.ErrorIs(t, strict.Validate(strings.Repeat("a", 80)+"A1!"), ErrWeakPassword)
}

func TestBcryptHasherRejectsLongPassword(t *testing.T) {
	_, err := NewBcryptHasher(MinBcryptCost).Hash(strings.Repeat("a", 80))
	assert.ErrorIs(t, err, ErrWeakPassword)
}
