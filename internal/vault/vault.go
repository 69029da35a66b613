// Package vault encrypts backend credentials at rest with AES-256-GCM.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/hkdf"
)

const (
	keySize   = 32
	nonceSize = 12
)

var (
	ErrKeyInit  = errors.New("vault: key initialization failed")
	ErrEncrypt  = errors.New("vault: encryption failed")
	ErrDecrypt  = errors.New("vault: decryption failed")
	ErrEncoding = errors.New("vault: plaintext is not valid utf-8")
)

// Derivation selects how the configured secret becomes the AES key.
type Derivation string

const (
	// DeriveLegacy copies the secret bytes into a zeroed 32-byte key,
	// truncating longer secrets. Tokens sealed by earlier deployments use it.
	DeriveLegacy Derivation = "legacy"
	// DeriveHKDF runs the secret through HKDF-SHA256.
	DeriveHKDF Derivation = "hkdf"
)

const hkdfInfo = "fm credential vault v1"

// ParseDerivation accepts "", "legacy" and "hkdf".
func ParseDerivation(s string) (Derivation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(DeriveLegacy):
		return DeriveLegacy, nil
	case string(DeriveHKDF):
		return DeriveHKDF, nil
	default:
		return "", fmt.Errorf("unknown key derivation %q", s)
	}
}

type options struct {
	derivation Derivation
	rand       io.Reader
}

type Option func(*options)

// WithDerivation overrides the default legacy key derivation.
func WithDerivation(d Derivation) Option {
	return func(o *options) { o.derivation = d }
}

// WithRand replaces the nonce source. Tests only.
func WithRand(r io.Reader) Option {
	return func(o *options) { o.rand = r }
}

// Vault is safe for concurrent use; the key never changes after New.
type Vault struct {
	aead cipher.AEAD
	rand io.Reader
}

// New builds a vault from secret. An empty secret is rejected rather than
// silently replaced with a default key.
func New(secret string, opts ...Option) (*Vault, error) {
	o := options{derivation: DeriveLegacy, rand: rand.Reader}
	for _, fn := range opts {
		fn(&o)
	}
	if secret == "" {
		return nil, fmt.Errorf("%w: secret is empty", ErrKeyInit)
	}

	key, err := deriveKey(secret, o.derivation)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyInit, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyInit, err)
	}
	return &Vault{aead: aead, rand: o.rand}, nil
}

func deriveKey(secret string, d Derivation) ([]byte, error) {
	key := make([]byte, keySize)
	switch d {
	case DeriveLegacy, "":
		copy(key, secret)
	case DeriveHKDF:
		r := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyInit, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown derivation %q", ErrKeyInit, d)
	}
	return key, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext || tag).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(v.rand, nonce); err != nil {
		return "", fmt.Errorf("%w: nonce: %v", ErrEncrypt, err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any malformed or tampered token fails with
// ErrDecrypt; no partial plaintext is ever returned.
func (v *Vault) Decrypt(token string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64", ErrDecrypt)
	}
	if len(raw) < nonceSize+v.aead.Overhead() {
		return "", fmt.Errorf("%w: token too short", ErrDecrypt)
	}
	nonce, ct := raw[:nonceSize], raw[nonceSize:]
	pt, err := v.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecrypt)
	}
	if !utf8.Valid(pt) {
		return "", ErrEncoding
	}
	return string(pt), nil
}
