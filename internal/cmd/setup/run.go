package setup

import (
	"context"
	"flag"
	"fmt"
	"os"

	isetup "github.com/hossein1376/fm/internal/setup"
)

type Options struct {
	ConfigPath    string
	DBPath        string
	TLS           bool
	Keyring       bool
	KeyDerivation string
}

func Run(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	var opt Options
	fs.StringVar(&opt.ConfigPath, "config", "./fm.yaml", "path of the config file to create")
	fs.StringVar(&opt.DBPath, "db", "", "sqlite database path, relative to the config file (default ./data/fm.db)")
	fs.BoolVar(&opt.TLS, "tls", false, "generate a self-signed TLS certificate for the API")
	fs.BoolVar(&opt.Keyring, "keyring", false, "store the encryption key in the OS keyring instead of the config file")
	fs.StringVar(&opt.KeyDerivation, "key-derivation", "", "vault key derivation: legacy|hkdf")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := isetup.Run(context.Background(), isetup.Options{
		ConfigPath:    opt.ConfigPath,
		DBPath:        opt.DBPath,
		TLS:           opt.TLS,
		Keyring:       opt.Keyring,
		KeyDerivation: opt.KeyDerivation,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\ndatabase %s\n", res.ConfigPath, res.DBPath)
	if res.CertPath != "" {
		fmt.Fprintf(os.Stderr, "tls certificate %s\n", res.CertPath)
	}
	return nil
}
