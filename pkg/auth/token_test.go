package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_GenerateTokenIsHighEntropyAndUnique(t *testing.T) {
	s := NewTokenService()
	a, err := s.GenerateToken()
	require.NoError(t, err)
	b, err := s.GenerateToken()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestTokenService_HashTokenIsDeterministicAndNotThePlaintext(t *testing.T) {
	s := NewTokenService()
	token := "example-opaque-token"

	h1 := s.HashToken(token)
	h2 := s.HashToken(token)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, token, h1)
	assert.Len(t, h1, 64) // sha256 hex digest
}
