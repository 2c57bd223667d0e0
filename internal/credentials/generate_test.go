package credentials

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAccountSecret(t *testing.T) {
	s, err := GenerateAccountSecret(AccountSecretLength)
	require.NoError(t, err)
	assert.Len(t, s, 32)
	for _, r := range s {
		assert.True(t, strings.ContainsRune(accountAlphabet, r), "unexpected rune %q", r)
	}
}

func TestGenerateAPIToken(t *testing.T) {
	s, err := GenerateAPIToken(APITokenLength)
	require.NoError(t, err)
	assert.Len(t, s, 64)
	for _, r := range s {
		assert.True(t, strings.ContainsRune(tokenAlphabet, r), "unexpected rune %q", r)
	}
}

func TestGenerate_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s, err := GenerateAPIToken(APITokenLength)
		require.NoError(t, err)
		require.False(t, seen[s])
		seen[s] = true
	}
}

func TestGenerate_InvalidLength(t *testing.T) {
	_, err := GenerateAccountSecret(0)
	assert.Error(t, err)
	_, err = GenerateAPIToken(-1)
	assert.Error(t, err)
}
