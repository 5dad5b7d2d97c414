package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndCompare(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("SecurePass123!")
	require.NoError(t, err)
	assert.NotEqual(t, "SecurePass123!", hash)

	assert.NoError(t, hasher.Compare(hash, "SecurePass123!"))
	assert.ErrorIs(t, hasher.Compare(hash, "wrong"), bcrypt.ErrMismatchedHashAndPassword)
}

func TestPasswordHasher_Salted(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	first, err := hasher.Hash("same-password")
	require.NoError(t, err)
	second, err := hasher.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestPasswordHasher_UsesConfiguredCost(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost + 1)

	hash, err := hasher.Hash("pw")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}
