package useradd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hossein1376/fm/internal/config"
	"github.com/hossein1376/fm/internal/daemon"
	"github.com/hossein1376/fm/internal/db"
	isetup "github.com/hossein1376/fm/internal/setup"
)

type Options struct {
	ConfigPath string
	Username   string
}

func Run(args []string) error {
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	var opt Options
	fs.StringVar(&opt.ConfigPath, "config", "./fm.yaml", "path to fm.yaml")
	fs.StringVar(&opt.Username, "username", "", "name of the user to create")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opt.Username == "" {
		return errors.New("-username is required")
	}

	c, err := config.Load(opt.ConfigPath)
	if err != nil {
		return err
	}
	password, err := isetup.PromptPassword("Password for "+opt.Username, true)
	if err != nil {
		return err
	}

	ctx := context.Background()
	d, err := db.Open(ctx, daemon.ResolvePath(filepath.Dir(opt.ConfigPath), c.DB.Path))
	if err != nil {
		return err
	}
	defer d.Close()

	u, err := isetup.AddUser(ctx, d, opt.Username, password, c.Auth.Argon2)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "created user %s (%s)\n", u.Username, u.ID)
	return nil
}
