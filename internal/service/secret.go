package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// refreshSecretBytes is 256 bits of entropy.
const refreshSecretBytes = 32

func newRefreshSecret() (raw string, hash string, err error) {
	b := make([]byte, refreshSecretBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}
	raw = base64.RawURLEncoding.EncodeToString(b)
	return raw, HashRefreshSecret(raw), nil
}

// HashRefreshSecret is unsalted SHA-256: the secret is random, not user-chosen.
func HashRefreshSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
