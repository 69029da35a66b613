// Package seal encrypts a secret with the configured vault key. The token is
// accepted as password_sealed when creating a host, so the plaintext never
// crosses the API.
package seal

import (
	"flag"
	"fmt"

	"github.com/hossein1376/fm/internal/config"
	isetup "github.com/hossein1376/fm/internal/setup"
	"github.com/hossein1376/fm/internal/vault"
)

func Run(args []string) error {
	fs := flag.NewFlagSet("seal", flag.ContinueOnError)
	var configPath string
	fs.StringVar(&configPath, "config", "./fm.yaml", "path to fm.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	d, err := vault.ParseDerivation(c.Encryption.KeyDerivation)
	if err != nil {
		return err
	}
	v, err := vault.New(c.Encryption.Key, vault.WithDerivation(d))
	if err != nil {
		return err
	}
	secret, err := isetup.PromptPassword("Secret to seal", false)
	if err != nil {
		return err
	}
	tok, err := v.Encrypt(secret)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
