package apikey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_Verify(t *testing.T) {
	hash, err := HashKey("super-secret")
	require.NoError(t, err)

	v, err := NewVerifier(hash)
	require.NoError(t, err)
	require.True(t, v.Configured())

	assert.NoError(t, v.Verify("super-secret"))
	assert.ErrorIs(t, v.Verify("wrong-key"), ErrInvalidKey)
	assert.ErrorIs(t, v.Verify(""), ErrMissingKey)
}

func TestVerifier_NotConfigured_FailsClosed(t *testing.T) {
	v, err := NewVerifier("")
	require.NoError(t, err)

	assert.False(t, v.Configured())
	assert.ErrorIs(t, v.Verify("anything"), ErrNotConfigured)
}

func TestNewVerifier_RejectsPlaintext(t *testing.T) {
	_, err := NewVerifier("not-a-bcrypt-hash")
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("abc", "abc"))
	assert.False(t, Equal("abc", "abd"))
	assert.False(t, Equal("abc", "abcd"))
}
