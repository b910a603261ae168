package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"bwkp-go/internal/config"
)

// Paths are the locations bwkp needs before a config file has been read.
type Paths struct {
	ConfigPath string
	BaseDir    string
}

// DefaultPaths resolves Paths from the environment. Each path comes from its
// BWKP_ variable, then the matching XDG base directory, then the home dir:
//   - config: BWKP_CONFIG_PATH, $XDG_CONFIG_HOME/bwkp.toml, ~/.config/bwkp.toml
//   - data:   BWKP_HOME, $XDG_DATA_HOME/bwkp, ~/.local/share/bwkp
func DefaultPaths() (*Paths, error) {
	configPath, err := resolvePath("BWKP_CONFIG_PATH", "XDG_CONFIG_HOME", ".config", "bwkp.toml")
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	baseDir, err := resolvePath("BWKP_HOME", "XDG_DATA_HOME", filepath.Join(".local", "share"), "bwkp")
	if err != nil {
		return nil, fmt.Errorf("resolving base directory: %w", err)
	}
	return &Paths{ConfigPath: configPath, BaseDir: baseDir}, nil
}

// NewConfig returns the default configuration rooted at BaseDir.
func (p *Paths) NewConfig() *config.Config {
	return config.NewConfig(p.BaseDir)
}

// LoadConfig reads the config file at ConfigPath.
func (p *Paths) LoadConfig() (*config.Config, error) {
	cfg, err := config.ReadFromFile(p.ConfigPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no config at %s (run `bwkp config init`): %w", p.ConfigPath, err)
		}
		return nil, err
	}
	return cfg, nil
}

// resolvePath returns the override variable if set, else name under the XDG
// directory (ignored unless absolute, as the XDG spec requires), else name
// under homeRel in the user's home directory.
func resolvePath(override, xdgVar, homeRel, name string) (string, error) {
	if path := os.Getenv(override); path != "" {
		return path, nil
	}
	if dir := os.Getenv(xdgVar); dir != "" && filepath.IsAbs(dir) {
		return filepath.Join(dir, name), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, homeRel, name), nil
}
