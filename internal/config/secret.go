// Where: internal/config/secret.go
// What: Secret value generation for env vars flagged as secret.
// Why: Deploy-time secrets must never be left at placeholder defaults.
package config

import (
	"crypto/rand"
	"math/big"
)

const secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateSecret returns a cryptographically random string of the given
// length, suitable for passwords and signing keys.
func GenerateSecret(length int) (string, error) {
	if length <= 0 {
		length = 32
	}
	out := make([]byte, length)
	max := big.NewInt(int64(len(secretAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = secretAlphabet[n.Int64()]
	}
	return string(out), nil
}
