// Package credentials generates gateway secrets and provisions per-server accounts.
package credentials

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// AccountSecretLength is the length of a gateway login password.
	AccountSecretLength = 32
	// APITokenLength is the length of a gateway API token.
	APITokenLength = 64

	letters         = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	accountAlphabet = letters + "-"
	tokenAlphabet   = letters + "-!@#$"
)

// GenerateAccountSecret returns a random account password of the given length.
func GenerateAccountSecret(length int) (string, error) {
	return randomString(accountAlphabet, length)
}

// GenerateAPIToken returns a random API token of the given length.
func GenerateAPIToken(length int) (string, error) {
	return randomString(tokenAlphabet, length)
}

func randomString(alphabet string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid secret length %d", length)
	}
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
