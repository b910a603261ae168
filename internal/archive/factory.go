package archive

import (
	"context"
	"fmt"

	"bwkp-go/internal/bwkp"
	"bwkp-go/internal/config"
)

// NewArchiveFromConfig creates the archive described by cfg.
func NewArchiveFromConfig(ctx context.Context, cfg config.ArchiveConfig, creds S3Credentials) (bwkp.Archive, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryArchive(cfg.Name), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem archive %q requires fs_root", cfg.Name)
		}
		return NewFileSystemArchive(cfg.Name, cfg.FSRoot)
	case "s3":
		return NewS3Archive(ctx, cfg, creds)
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
