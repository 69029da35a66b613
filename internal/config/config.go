// Package config loads and validates the fm YAML configuration.
// Values are layered: file, then FM_* environment variables, then the OS
// keyring for the encryption key. Defaults are applied so the daemon can rely
// on fully populated values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/hossein1376/fm/internal/auth"
	"github.com/hossein1376/fm/internal/vault"
)

// EnvPrefix namespaces environment overrides, e.g. FM_ENCRYPTION_KEY.
const EnvPrefix = "FM"

// minTokenSecret matches the token issuer's minimum.
const minTokenSecret = 16

type TLSConfig struct {
	CertPath string `yaml:"cert_path"`
	KeyPath  string `yaml:"key_path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type HTTPConfig struct {
	Bind        string    `yaml:"bind"`
	Port        int       `yaml:"port"`
	MaxUploadMB int       `yaml:"max_upload_mb"`
	TLS         TLSConfig `yaml:"tls"`
	// AuthRatePerMin limits register and login attempts per client IP.
	AuthRatePerMin int `yaml:"auth_rate_per_min"`
}

type AuthConfig struct {
	TokenSecret string        `yaml:"token_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
	// Argon2 sets the cost of new user password hashes. Older hashes are
	// upgraded on the next successful login.
	Argon2 auth.Argon2Params `yaml:"argon2"`
}

// EncryptionConfig holds the vault key. When Key is empty and a keyring
// service is named, the key is read from the OS keyring.
type EncryptionConfig struct {
	Key            string `yaml:"key"`
	KeyDerivation  string `yaml:"key_derivation"`
	KeyringService string `yaml:"keyring_service"`
	KeyringUser    string `yaml:"keyring_user"`
}

type HTTPBackendConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type SFTPBackendConfig struct {
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	Workers          int           `yaml:"workers"`
	KnownHosts       string        `yaml:"known_hosts"`
}

type BackendsConfig struct {
	HTTP HTTPBackendConfig `yaml:"http"`
	SFTP SFTPBackendConfig `yaml:"sftp"`
}

// Config mirrors the fm.yaml schema.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	DB         DBConfig         `yaml:"db"`
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Backends   BackendsConfig   `yaml:"backends"`
}

// envOverrides are read with envconfig under EnvPrefix.
type envOverrides struct {
	EncryptionKey string `envconfig:"ENCRYPTION_KEY"`
	KeyDerivation string `envconfig:"KEY_DERIVATION"`
	TokenSecret   string `envconfig:"TOKEN_SECRET"`
	DBPath        string `envconfig:"DB_PATH"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
	HTTPBind      string `envconfig:"HTTP_BIND"`
	HTTPPort      int    `envconfig:"HTTP_PORT"`
}

// Load reads a YAML config file, applies overrides and defaults, and validates it.
// It returns a fully populated Config or a descriptive error.
func Load(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, errors.New("config path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	if err := applyEnv(&c); err != nil {
		return Config{}, err
	}
	applyDefaults(&c)
	if err := resolveKeyring(&c); err != nil {
		return Config{}, err
	}
	if err := validate(&c); err != nil {
		return Config{}, err
	}
	// Make paths stable for daemon.
	c.DB.Path = strings.TrimSpace(c.DB.Path)
	c.HTTP.TLS.CertPath = strings.TrimSpace(c.HTTP.TLS.CertPath)
	c.HTTP.TLS.KeyPath = strings.TrimSpace(c.HTTP.TLS.KeyPath)
	c.Backends.SFTP.KnownHosts = strings.TrimSpace(c.Backends.SFTP.KnownHosts)
	return c, nil
}

// Default returns a config with every default applied and no secrets.
func Default() Config {
	var c Config
	applyDefaults(&c)
	return c
}

// Write stores c as YAML with owner-only permissions, since it holds secrets.
func Write(path string, c Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o600)
}

func applyEnv(c *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Encryption.Key, env.EncryptionKey)
	set(&c.Encryption.KeyDerivation, env.KeyDerivation)
	set(&c.Auth.TokenSecret, env.TokenSecret)
	set(&c.DB.Path, env.DBPath)
	set(&c.Log.Level, env.LogLevel)
	set(&c.HTTP.Bind, env.HTTPBind)
	if env.HTTPPort != 0 {
		c.HTTP.Port = env.HTTPPort
	}
	return nil
}

// applyDefaults populates zero-values with sane defaults.
func applyDefaults(c *Config) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.DB.Path == "" {
		c.DB.Path = "./data/fm.db"
	}
	if c.HTTP.Bind == "" {
		c.HTTP.Bind = "127.0.0.1"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.MaxUploadMB == 0 {
		c.HTTP.MaxUploadMB = 64
	}
	if c.HTTP.AuthRatePerMin == 0 {
		c.HTTP.AuthRatePerMin = 20
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	def := auth.DefaultArgon2Params()
	fill32 := func(dst *uint32, v uint32) {
		if *dst == 0 {
			*dst = v
		}
	}
	fill32(&c.Auth.Argon2.Memory, def.Memory)
	fill32(&c.Auth.Argon2.Iterations, def.Iterations)
	fill32(&c.Auth.Argon2.SaltLen, def.SaltLen)
	fill32(&c.Auth.Argon2.KeyLen, def.KeyLen)
	if c.Auth.Argon2.Parallelism == 0 {
		c.Auth.Argon2.Parallelism = def.Parallelism
	}
	if c.Encryption.KeyDerivation == "" {
		c.Encryption.KeyDerivation = string(vault.DeriveLegacy)
	}
	if c.Encryption.KeyringService != "" && c.Encryption.KeyringUser == "" {
		c.Encryption.KeyringUser = "encryption-key"
	}
	if c.Backends.HTTP.Timeout == 0 {
		c.Backends.HTTP.Timeout = 30 * time.Second
	}
	if c.Backends.SFTP.DialTimeout == 0 {
		c.Backends.SFTP.DialTimeout = 10 * time.Second
	}
	if c.Backends.SFTP.HandshakeTimeout == 0 {
		c.Backends.SFTP.HandshakeTimeout = 15 * time.Second
	}
	if c.Backends.SFTP.Workers == 0 {
		c.Backends.SFTP.Workers = 8
	}
}

func resolveKeyring(c *Config) error {
	if c.Encryption.Key != "" || c.Encryption.KeyringService == "" {
		return nil
	}
	key, err := keyring.Get(c.Encryption.KeyringService, c.Encryption.KeyringUser)
	if err != nil {
		return fmt.Errorf("encryption key from keyring %q: %w", c.Encryption.KeyringService, err)
	}
	c.Encryption.Key = key
	return nil
}

// validate performs basic sanity checks for required fields and ranges.
// It does not mutate the config.
func validate(c *Config) error {
	if strings.TrimSpace(c.Log.Level) == "" {
		return errors.New("log.level is required")
	}
	if c.DB.Path == "" {
		return errors.New("db.path is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port is invalid")
	}
	if c.HTTP.MaxUploadMB < 1 || c.HTTP.MaxUploadMB > 102400 {
		return errors.New("http.max_upload_mb is invalid")
	}
	if c.HTTP.AuthRatePerMin < 0 {
		return errors.New("http.auth_rate_per_min is invalid")
	}
	cp := strings.TrimSpace(c.HTTP.TLS.CertPath)
	kp := strings.TrimSpace(c.HTTP.TLS.KeyPath)
	if (cp == "") != (kp == "") {
		return errors.New("http.tls.cert_path and http.tls.key_path must be set together")
	}
	if c.Encryption.Key == "" {
		return errors.New("encryption.key is required (or FM_ENCRYPTION_KEY, or encryption.keyring_service)")
	}
	if _, err := vault.ParseDerivation(c.Encryption.KeyDerivation); err != nil {
		return fmt.Errorf("encryption.key_derivation: %w", err)
	}
	if len(c.Auth.TokenSecret) < minTokenSecret {
		return fmt.Errorf("auth.token_secret must be at least %d bytes", minTokenSecret)
	}
	if c.Auth.TokenTTL < time.Minute {
		return errors.New("auth.token_ttl must be at least 1m")
	}
	if err := c.Auth.Argon2.Validate(); err != nil {
		return fmt.Errorf("auth.argon2: %w", err)
	}
	if c.Backends.HTTP.Timeout < 0 || c.Backends.SFTP.DialTimeout < 0 || c.Backends.SFTP.HandshakeTimeout < 0 {
		return errors.New("backend timeouts must not be negative")
	}
	if c.Backends.SFTP.Workers < 1 || c.Backends.SFTP.Workers > 1024 {
		return errors.New("backends.sftp.workers is invalid")
	}
	return nil
}
