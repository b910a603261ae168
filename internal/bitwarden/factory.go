package bitwarden

import (
	"fmt"
	"os"
	"path/filepath"

	"bwkp-go/internal/bwkp"
	"bwkp-go/internal/config"
)

// NewVaultClientFromConfig creates the vault client for cfg. session is the
// BW_SESSION token for the cli client. dc decrypts encrypted snapshots and
// may be nil.
func NewVaultClientFromConfig(cfg config.VaultConfig, session string, dc bwkp.DecryptionContext, logger bwkp.Logger) (bwkp.VaultClient, error) {
	switch cfg.Type {
	case "cli", "":
		bwPath := cfg.BWPath
		if bwPath == "" {
			bwPath = "bw"
		}
		if cfg.AttachmentDir == "" {
			return nil, fmt.Errorf("cli vault requires attachment_dir")
		}
		return NewCLIClient(ExecRunner{}, bwPath, session, cfg.AttachmentDir, cfg.CacheSize, logger)
	case "snapshot":
		if cfg.SnapshotDir == "" {
			return nil, fmt.Errorf("snapshot vault requires snapshot_dir")
		}
		workDir := cfg.AttachmentDir
		if workDir == "" {
			workDir = filepath.Join(os.TempDir(), "bwkp-attachments")
		}
		return NewSnapshotClient(cfg.SnapshotDir, dc, workDir, logger)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
