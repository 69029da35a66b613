package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// NewSecret returns nbytes of randomness, base64url encoded. setup uses it
// for the vault key and the token signing secret.
func NewSecret(nbytes int) (string, error) {
	if nbytes < 16 {
		return "", errors.New("secret size too small")
	}
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
