// Package config turns command-line flags, an optional env file and the
// process environment into settings for the client and the proxy. Flags win
// over the environment; the env file never overrides variables already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"
)

var LogLevels = []string{"debug", "info", "warn", "error"}

type binding struct {
	flag string
	env  string
}

type common struct {
	EnvFile  string
	LogLevel string
}

func (c *common) register(set *cli.FlagSet) {
	set.StringVarP(&c.EnvFile, "env", "e", ".env", "Env file path")
	set.StringVarP(&c.LogLevel, "log", "l", "info", "Log level (debug|info|warn|error)")
}

func (c *common) validate() error {
	if slices.Contains(LogLevels, c.LogLevel) {
		return nil
	}
	return fmt.Errorf("unknown log level %q", c.LogLevel)
}

// load parses args, reads the env file named by --env and fills every flag
// left unset on the command line from its environment variable.
func load(set *cli.FlagSet, c *common, args []string, bindings []binding) error {
	if err := set.Parse(args); err != nil {
		return err
	}

	if c.EnvFile != "" {
		if err := godotenv.Load(c.EnvFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) || set.Changed("env") {
				return fmt.Errorf("load env file %s: %w", c.EnvFile, err)
			}
		}
	}

	for _, b := range bindings {
		f := set.Lookup(b.flag)
		if f == nil || f.Changed {
			continue
		}
		v, ok := os.LookupEnv(b.env)
		if !ok || v == "" {
			continue
		}
		if err := f.Value.Set(v); err != nil {
			return fmt.Errorf("%s=%q: %w", b.env, v, err)
		}
	}
	return nil
}

func defaultKeyDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".aisam"
	}
	return filepath.Join(dir, "aisam")
}

func validURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: want an http or https URL, got %q", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host in %q", name, raw)
	}
	return nil
}

func positive(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, d)
	}
	return nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
