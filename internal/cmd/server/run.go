package server

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hossein1376/fm/internal/config"
	"github.com/hossein1376/fm/internal/daemon"
	"github.com/hossein1376/fm/internal/logging"
	"github.com/hossein1376/fm/internal/version"
)

type Options struct {
	ConfigPath string
	LogLevel   string
}

func Run(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	var opt Options
	var showVersion bool
	fs.StringVar(&opt.ConfigPath, "config", "./fm.yaml", "path to fm.yaml")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.StringVar(&opt.LogLevel, "log-level", "", "override log.level: debug|info|warning|error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showVersion {
		fmt.Printf("fm server %s\n", version.Version)
		return nil
	}

	c, err := config.Load(opt.ConfigPath)
	if err != nil {
		return err
	}
	// CLI overrides config.
	if strings.TrimSpace(opt.LogLevel) != "" {
		c.Log.Level = opt.LogLevel
	}
	lg, _, err := logging.New(logging.Options{Level: c.Log.Level, JSON: c.Log.JSON, DefaultSlog: true})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return daemon.Run(ctx, daemon.Options{
		Config:  c,
		BaseDir: filepath.Dir(opt.ConfigPath),
		Logger:  lg,
	})
}
