package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	h := NewPasswordHasher("test-pepper", bcrypt.MinCost)

	hash, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)
	assert.True(t, h.Verify("correct horse battery staple", hash))
	assert.False(t, h.Verify("wrong password", hash))
}

func TestPasswordHasher_EmptyPassword(t *testing.T) {
	h := NewPasswordHasher("", bcrypt.MinCost)

	_, err := h.Hash("")
	require.Error(t, err)
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestPasswordHasher_VerifyNeverErrors(t *testing.T) {
	h := NewPasswordHasher("", bcrypt.MinCost)

	assert.False(t, h.Verify("", "some-hash"))
	assert.False(t, h.Verify("password", ""))
	assert.False(t, h.Verify("password", "not-a-bcrypt-hash"))
}

func TestPasswordHasher_PepperChangesHash(t *testing.T) {
	a := NewPasswordHasher("pepper-a", bcrypt.MinCost)
	b := NewPasswordHasher("pepper-b", bcrypt.MinCost)

	hash, err := a.Hash("password123")
	require.NoError(t, err)

	assert.True(t, a.Verify("password123", hash))
	assert.False(t, b.Verify("password123", hash), "hash made with one pepper must not verify under another")
}

func TestPasswordHasher_LongPasswordAndPepper(t *testing.T) {
	// bcrypt caps its input at 72 bytes; the prehash keeps the longest
	// allowed password plus a long pepper inside it.
	h := NewPasswordHasher(strings.Repeat("p", 64), bcrypt.MinCost)
	long := strings.Repeat("a", 128)

	hash, err := h.Hash(long)
	require.NoError(t, err)
	assert.True(t, h.Verify(long, hash))
	assert.False(t, h.Verify(strings.Repeat("a", 127), hash), "every character must still count")
}

func TestPasswordHasher_CostOutOfRangeFallsBack(t *testing.T) {
	h := NewPasswordHasher("", 99)

	hash, err := h.Hash("password123")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
