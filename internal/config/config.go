package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the bwkp configuration file.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level"` // "debug", "info" (default), "warn" or "error"
	Vault      VaultConfig      `toml:"vault"`
	Export     ExportConfig     `toml:"export"`
	Encryption EncryptionConfig `toml:"encryption"`
	Database   DatabaseConfig   `toml:"database"`
	Archives   []ArchiveConfig  `toml:"archives"`
}

// VaultConfig selects where vault data is read from.
// Tagged union: Type decides which other fields apply.
type VaultConfig struct {
	Type string `toml:"type"` // "cli" or "snapshot"

	// cli: the Bitwarden CLI binary, where attachments are downloaded and
	// how many CLI results are memoized.
	BWPath        string `toml:"bw_path,omitempty"`
	AttachmentDir string `toml:"attachment_dir,omitempty"`
	CacheSize     int    `toml:"cache_size,omitempty"`

	// snapshot: a directory written by `bwkp dump`.
	SnapshotDir string `toml:"snapshot_dir,omitempty"`
}

// ExportConfig holds export behaviour switches.
type ExportConfig struct {
	OutputDir                          string `toml:"output_dir"`
	AllowDuplicateCollectionMembership bool   `toml:"allow_duplicate_collection_membership"`
	SavePartialOnError                 bool   `toml:"save_partial_on_error"`
	EmbedRawExport                     bool   `toml:"embed_raw_export"`
	AttachmentWorkers                  int    `toml:"attachment_workers"`
}

// EncryptionConfig holds the age key pair protecting dump files.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// DatabaseConfig configures the run ledger.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // sqlite only
}

// ArchiveConfig is one copy target for finished KDBX files.
// Tagged union: Type decides which other fields apply.
type ArchiveConfig struct {
	Type string `toml:"type"` // "filesystem", "s3" or "memory"
	Name string `toml:"name"`

	// s3
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	// filesystem
	FSRoot string `toml:"fs_root,omitempty"`
}

// NewConfig returns a Config with every path derived from baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Vault: VaultConfig{
			Type:          "cli",
			BWPath:        "bw",
			AttachmentDir: filepath.Join(baseDir, "attachments"),
			CacheSize:     64,
		},
		Export: ExportConfig{
			OutputDir:         filepath.Join(baseDir, "exports"),
			AttachmentWorkers: 4,
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "bwkp.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "bwkp.key"),
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
	}
}

// Manager reads and writes configuration.
type Manager struct{}

func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// ReadFromFile reads the Config at path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	cfg, err := (&Manager{}).Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Init writes cfg to path. An existing file is never overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	if err := (&Manager{}).Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
