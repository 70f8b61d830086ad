package services

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestGenerateTrackingTokenUnique(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		token, err := GenerateTrackingToken()
		require.NoError(t, err)
		require.Regexp(t, tokenPattern, token)
		_, dup := seen[token]
		require.False(t, dup, "duplicate token %s", token)
		seen[token] = struct{}{}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy unavailable")
}

func TestGenerateTrackingTokenEntropyFailure(t *testing.T) {
	orig := tokenSource
	tokenSource = failingReader{}
	t.Cleanup(func() { tokenSource = orig })

	token, err := GenerateTrackingToken()
	assert.Empty(t, token)
	assert.ErrorIs(t, err, ErrTokenGeneration)
}

func TestIsTrackingToken(t *testing.T) {
	token, err := GenerateTrackingToken()
	require.NoError(t, err)

	assert.True(t, IsTrackingToken(token))
	assert.False(t, IsTrackingToken(""))
	assert.False(t, IsTrackingToken(token[:63]))
	assert.False(t, IsTrackingToken("G"+token[1:]))
	assert.False(t, IsTrackingToken("A"+token[1:]))
}
