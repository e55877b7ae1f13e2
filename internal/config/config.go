// Package config resolves the optional ferry configuration file and the
// built-in copy profiles.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional ferry configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
}

// DefaultsConfig holds persistent flag defaults. Pointer fields distinguish
// "unset" from explicit values so CLI flags always win.
type DefaultsConfig struct {
	Profile  *string `toml:"profile"`
	Parallel *int    `toml:"parallel"`
	Fsync    *bool   `toml:"fsync"`
	Journal  *bool   `toml:"journal"`
	Output   *string `toml:"output"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "ferry", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config (no
// error) if the file does not exist; the config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}

	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}

// Profile is a named bundle of copy settings.
type Profile struct {
	Name                  string
	Parallel              int
	Fsync                 bool
	Reflink               bool
	BlockEscapingSymlinks bool
}

// ResolveProfile maps a profile name to its settings.
//
//	modern — the contract defaults: parallel 16, fsync, reflink when available.
//	safe   — low parallelism, fsync, no reflink, escaping symlinks blocked.
//	fast   — high parallelism, no fsync, reflink when available.
func ResolveProfile(name string) (Profile, error) {
	switch name {
	case "", "modern":
		return Profile{Name: "modern", Parallel: 16, Fsync: true, Reflink: true}, nil
	case "safe":
		return Profile{Name: "safe", Parallel: 4, Fsync: true, BlockEscapingSymlinks: true}, nil
	case "fast":
		return Profile{Name: "fast", Parallel: 32, Reflink: true}, nil
	default:
		return Profile{}, fmt.Errorf("unknown profile %q (want modern, safe, or fast)", name)
	}
}
