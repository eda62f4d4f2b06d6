package catalog

import (
	"context"
	"io"
)

// ArchiveStore is the destination for published archives. Implementations
// must publish atomically: a reader never observes a partial archive at its
// final path. Paths are store-relative, slash-separated, and deterministic
// from gallery title and grouping scheme.
type ArchiveStore interface {
	// Put publishes an archive at the given relative path, replacing any
	// existing archive there. size is the number of bytes that will be
	// read from r.
	Put(ctx context.Context, relPath string, r io.Reader, size int64) error

	// Open returns a reader for a published archive.
	Open(ctx context.Context, relPath string) (io.ReadCloser, error)

	// Exists reports whether an archive is published at the path.
	Exists(ctx context.Context, relPath string) (bool, error)

	// List returns the relative paths of all published archives.
	List(ctx context.Context) ([]string, error)

	// Remove deletes a published archive. Removing a missing path is a no-op.
	// Empty directories left behind are pruned where the backend has them.
	Remove(ctx context.Context, relPath string) error

	// ValidateSetup verifies the store is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}
