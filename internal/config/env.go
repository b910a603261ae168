package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Env holds settings that come from the environment (or a .env file) and
// are never written to the config file.
type Env struct {
	KDBXPassword  string `envconfig:"BWKP_KDBX_PASSWORD"`
	KeyPassphrase string `envconfig:"BWKP_KEY_PASSPHRASE"`
	Debug         bool   `envconfig:"BWKP_DEBUG"`
	OutputDir     string `envconfig:"BWKP_OUTPUT_DIR"`
	Session       string `envconfig:"BW_SESSION"`

	S3AccessKeyID     string `envconfig:"BWKP_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `envconfig:"BWKP_S3_SECRET_ACCESS_KEY"`
}

// LoadEnv reads Env from the process environment.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	return &env, nil
}

// Apply overlays environment settings onto cfg.
func (e *Env) Apply(cfg *Config) {
	if e.Debug {
		cfg.LogLevel = "debug"
	}
	if e.OutputDir != "" {
		cfg.Export.OutputDir = e.OutputDir
	}
}
