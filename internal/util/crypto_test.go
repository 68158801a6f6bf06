package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	t.Run("generates 64 character hex string", func(t *testing.T) {
		token, err := GenerateToken()
		require.NoError(t, err)
		assert.Len(t, token, 64)
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		token1, _ := GenerateToken()
		token2, _ := GenerateToken()
		assert.NotEqual(t, token1, token2)
	})
}

func TestHashToken(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		assert.Equal(t, HashToken("abc"), HashToken("abc"))
	})

	t.Run("differs per input", func(t *testing.T) {
		assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	})

	t.Run("produces 64 hex characters", func(t *testing.T) {
		assert.Len(t, HashToken("anything"), 64)
	})
}

func TestIsValidUUID(t *testing.T) {
	t.Run("accepts canonical uuid", func(t *testing.T) {
		assert.True(t, IsValidUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	})

	t.Run("rejects empty and malformed values", func(t *testing.T) {
		assert.False(t, IsValidUUID(""))
		assert.False(t, IsValidUUID("not-a-uuid"))
		assert.False(t, IsValidUUID("6BA7B810-9DAD-11D1-80B4-00C04FD430C8"))
	})
}

func TestIsValidEnum(t *testing.T) {
	valid := []string{"scheduled", "live", "completed", "cancelled"}

	t.Run("accepts known values and empty string", func(t *testing.T) {
		assert.True(t, IsValidEnum("live", valid))
		assert.True(t, IsValidEnum("", valid))
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		assert.False(t, IsValidEnum("paused", valid))
	})
}
