package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecret returns n random bytes hex encoded
func GenerateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Secrets are the values cmd/generate-secrets prints for a new deployment
type Secrets struct {
	JWTAccess  string
	JWTRefresh string
	// VNPayHash is only a placeholder for local sandboxes; production uses the
	// secret VNPay issues with the merchant terminal
	VNPayHash string
}

// GenerateSecrets produces independent 256-bit JWT secrets and a sandbox
// VNPay hash secret
func GenerateSecrets() (*Secrets, error) {
	var s Secrets
	for _, target := range []*string{&s.JWTAccess, &s.JWTRefresh, &s.VNPayHash} {
		v, err := GenerateSecret(32)
		if err != nil {
			return nil, err
		}
		*target = v
	}
	return &s, nil
}
