package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPasswordHasher_HashAndCompare tests the round trip
func TestPasswordHasher_HashAndCompare(t *testing.T) {
	hasher := NewPasswordHasher(4)

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, hasher.Compare(hash, "correct horse battery staple"))
	assert.False(t, hasher.Compare(hash, "wrong password"))
}

// TestPasswordHasher_UniqueSalts tests that equal passwords hash differently
func TestPasswordHasher_UniqueSalts(t *testing.T) {
	hasher := NewPasswordHasher(4)

	first, err := hasher.Hash("same password")
	require.NoError(t, err)
	second, err := hasher.Hash("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

// TestNewPasswordHasher_CostClamped tests out-of-range cost handling
func TestNewPasswordHasher_CostClamped(t *testing.T) {
	hash, err := NewPasswordHasher(99).Hash("pw")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}
