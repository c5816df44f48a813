package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
)

// GenerateRandomKey returns length random bytes encoded as URL-safe base64.
func GenerateRandomKey(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// KeysEqual compares two API keys in constant time.
func KeysEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
