package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	s, err := New("", "jwt-secret")
	require.NoError(t, err)

	sealed, err := s.Seal("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "v1:"))
	assert.NotContains(t, sealed, "hunter2")

	again, err := s.Seal("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)
}

func TestSealer_WrongKey(t *testing.T) {
	a, err := New("", "one")
	require.NoError(t, err)
	b, err := New("", "two")
	require.NoError(t, err)

	sealed, err := a.Seal("pw")
	require.NoError(t, err)
	_, err = b.Open(sealed)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestSealer_HexKey(t *testing.T) {
	_, err := New("abcd", "")
	assert.Error(t, err)

	s, err := New(strings.Repeat("ab", 32), "")
	require.NoError(t, err)
	plain, err := s.Open("")
	require.NoError(t, err)
	assert.Empty(t, plain)

	_, err = s.Open("plaintext")
	assert.ErrorIs(t, err, ErrOpen)
}
