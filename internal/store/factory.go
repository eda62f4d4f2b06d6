package store

import (
	"context"
	"fmt"

	"h2hcat/internal/catalog"
	"h2hcat/internal/config"
)

// NewFromConfig creates an ArchiveStore implementation based on the store
// config type.
func NewFromConfig(ctx context.Context, cfg config.StoreConfig) (catalog.ArchiveStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem store requires root to be set")
		}
		return NewFileSystemStore(cfg.Root)
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
