// Package setup creates a fresh fm deployment: a config file with random
// secrets, an initialised database and, optionally, a self-signed TLS pair.
package setup

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/hossein1376/fm/internal/auth"
	"github.com/hossein1376/fm/internal/config"
	"github.com/hossein1376/fm/internal/daemon"
	"github.com/hossein1376/fm/internal/db"
	"github.com/hossein1376/fm/internal/validate"
)

// DefaultKeyringService is used when the encryption key is stored in the OS keyring.
const DefaultKeyringService = "fm"

type Options struct {
	ConfigPath string
	// DBPath overrides the default database location, relative to the config file.
	DBPath string
	// TLS generates a self-signed certificate next to the config file.
	TLS bool
	// Keyring stores the encryption key in the OS keyring instead of the file.
	Keyring bool
	// KeyDerivation is written to encryption.key_derivation. Empty means legacy.
	KeyDerivation string
}

// Result reports what Run created.
type Result struct {
	ConfigPath string
	DBPath     string
	CertPath   string
	KeyPath    string
}

func Run(ctx context.Context, opt Options) (*Result, error) {
	if opt.ConfigPath == "" {
		return nil, errors.New("config path is required")
	}
	if fileExists(opt.ConfigPath) {
		return nil, fmt.Errorf("%s already exists", opt.ConfigPath)
	}
	base := filepath.Dir(opt.ConfigPath)
	if err := os.MkdirAll(base, 0o700); err != nil {
		return nil, err
	}

	c := config.Default()
	if opt.DBPath != "" {
		c.DB.Path = opt.DBPath
	}
	if opt.KeyDerivation != "" {
		c.Encryption.KeyDerivation = opt.KeyDerivation
	}

	encKey, err := auth.NewSecret(32)
	if err != nil {
		return nil, err
	}
	tokenSecret, err := auth.NewSecret(32)
	if err != nil {
		return nil, err
	}
	c.Auth.TokenSecret = tokenSecret

	if opt.Keyring {
		c.Encryption.KeyringService = DefaultKeyringService
		c.Encryption.KeyringUser = "encryption-key"
		if err := keyring.Set(c.Encryption.KeyringService, c.Encryption.KeyringUser, encKey); err != nil {
			return nil, fmt.Errorf("store encryption key in keyring: %w", err)
		}
	} else {
		c.Encryption.Key = encKey
	}

	res := &Result{ConfigPath: opt.ConfigPath}
	if opt.TLS {
		c.HTTP.TLS.CertPath = "tls.crt"
		c.HTTP.TLS.KeyPath = "tls.key"
		res.CertPath = filepath.Join(base, c.HTTP.TLS.CertPath)
		res.KeyPath = filepath.Join(base, c.HTTP.TLS.KeyPath)
		if err := ensureTLSCert(res.CertPath, res.KeyPath); err != nil {
			return nil, err
		}
	}

	res.DBPath = daemon.ResolvePath(base, c.DB.Path)
	if err := os.MkdirAll(filepath.Dir(res.DBPath), 0o700); err != nil {
		return nil, err
	}
	d, err := db.Open(ctx, res.DBPath)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	_ = os.Chmod(res.DBPath, 0o600)

	initialized, err := d.IsInitialized(ctx)
	if err != nil {
		return nil, err
	}
	if initialized {
		return nil, errors.New("database already initialized")
	}

	if err := config.Write(opt.ConfigPath, c); err != nil {
		return nil, err
	}
	if err := d.SetInitialized(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// AddUser creates an account directly in the store, bypassing the API.
// Passwords are hashed with p, normally the config's auth.argon2.
func AddUser(ctx context.Context, d *db.DB, username, password string, p auth.Argon2Params) (*db.User, error) {
	if err := validate.Username(username); err != nil {
		return nil, err
	}
	if err := validate.Password(password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password, p)
	if err != nil {
		return nil, err
	}
	return d.CreateUser(ctx, username, hash)
}

func ensureTLSCert(certPath, keyPath string) error {
	if fileExists(certPath) && fileExists(keyPath) {
		_, err := tls.LoadX509KeyPair(certPath, keyPath)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(certPath), 0o700); err != nil {
		return err
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return err
	}

	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: "fm",
		},
		NotBefore:             time.Now().Add(-5 * time.Minute),
		NotAfter:              time.Now().Add(3650 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, pub, priv)
	if err != nil {
		return err
	}
	if err := os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		return err
	}

	b, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return err
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: b}), 0o600); err != nil {
		return err
	}

	_, err = tls.LoadX509KeyPair(certPath, keyPath)
	return err
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
