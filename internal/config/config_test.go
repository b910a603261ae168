package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite(t *testing.T) {
	original := NewConfig("/home/user/.local/share/bwkp")
	original.Export.AllowDuplicateCollectionMembership = true
	original.Export.SavePartialOnError = true
	original.Archives = []ArchiveConfig{
		{Type: "filesystem", Name: "nas", FSRoot: "/mnt/nas/kdbx"},
		{Type: "s3", Name: "offsite", S3Bucket: "vault-backups", S3Prefix: "kdbx/", S3Region: "eu-central-1"},
	}

	var buf bytes.Buffer
	m := &Manager{}
	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.Vault.Type != "cli" || got.Vault.BWPath != "bw" {
		t.Errorf("Vault = %+v, want cli with bw", got.Vault)
	}
	if !got.Export.AllowDuplicateCollectionMembership || !got.Export.SavePartialOnError {
		t.Errorf("Export = %+v, want both switches on", got.Export)
	}
	if got.Export.AttachmentWorkers != 4 {
		t.Errorf("Export.AttachmentWorkers = %d, want 4", got.Export.AttachmentWorkers)
	}
	if len(got.Archives) != 2 {
		t.Fatalf("len(Archives) = %d, want 2", len(got.Archives))
	}
	if got.Archives[1].S3Bucket != "vault-backups" {
		t.Errorf("Archives[1].S3Bucket = %q, want vault-backups", got.Archives[1].S3Bucket)
	}
	if got.Database.DataDir != original.Database.DataDir {
		t.Errorf("Database.DataDir = %q, want %q", got.Database.DataDir, original.Database.DataDir)
	}
}

func TestManager_ReadInvalid(t *testing.T) {
	_, err := (&Manager{}).Read(bytes.NewBufferString("[vault\ntype = "))
	if err == nil {
		t.Error("Read() expected error for malformed TOML")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/bwkp")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"LogDir", cfg.LogDir, "/data/bwkp/log"},
		{"AttachmentDir", cfg.Vault.AttachmentDir, "/data/bwkp/attachments"},
		{"OutputDir", cfg.Export.OutputDir, "/data/bwkp/exports"},
		{"PublicKeyPath", cfg.Encryption.PublicKeyPath, "/data/bwkp/keys/bwkp.pub"},
		{"PrivateKeyPath", cfg.Encryption.PrivateKeyPath, "/data/bwkp/keys/bwkp.key"},
		{"DataDir", cfg.Database.DataDir, "/data/bwkp/db"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sub", "bwkp.toml")
		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("config mode = %o, want 600", info.Mode().Perm())
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bwkp.toml")
		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, NewConfig(dir)); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bwkp.toml")
		cfg := NewConfig(dir)
		cfg.Vault = VaultConfig{Type: "snapshot", SnapshotDir: "/dumps/latest"}
		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Vault.SnapshotDir != "/dumps/latest" {
			t.Errorf("Vault.SnapshotDir = %q, want /dumps/latest", got.Vault.SnapshotDir)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/bwkp.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
