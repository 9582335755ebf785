package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasherRoundTrip(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.True(t, hasher.Verify("correct horse battery staple", hash))
	assert.False(t, hasher.Verify("wrong password", hash))
}

func TestHasherSaltsEveryHash(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	first, err := hasher.Hash("same input")
	require.NoError(t, err)
	second, err := hasher.Hash("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Verify("same input", first))
	assert.True(t, hasher.Verify("same input", second))
}

func TestHasherMalformedHash(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	assert.False(t, hasher.Verify("anything", "not-a-bcrypt-hash"))
	assert.False(t, hasher.Verify("anything", ""))
}

func TestHasherCostChangeKeepsOldHashes(t *testing.T) {
	old := NewHasher(bcrypt.MinCost)
	hash, err := old.Hash("password123")
	require.NoError(t, err)

	tuned := NewHasher(bcrypt.MinCost + 1)
	assert.True(t, tuned.Verify("password123", hash))
}

func TestHasherRejectsOutOfRangeCost(t *testing.T) {
	hasher := NewHasher(99)
	assert.Equal(t, defaultBcryptCost, hasher.cost)
}
