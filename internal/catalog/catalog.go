package catalog

import "time"

// Catalog provides the normalized relational store for galleries, files,
// digests, tags, the removal queue, and archive build manifests.
// Surrogate ids are monotonically increasing per entity kind and never
// reused, even after deletion. All methods are safe for use by concurrent
// workers as long as no two workers touch the same gallery's rows; the sync
// engine enforces that with a per-gallery lock.
type Catalog interface {
	// Gallery operations

	// FindGalleryByName returns the gallery with the given folder name,
	// or nil if it is not cataloged.
	FindGalleryByName(name string) (*Gallery, error)

	// FindGalleryByGID returns the live gallery carrying the external gid,
	// or nil if none does.
	FindGalleryByGID(gid int64) (*Gallery, error)

	// ListGalleryNames returns the folder names of all cataloged galleries.
	ListGalleryNames() ([]string, error)

	// ListGalleries returns all cataloged galleries.
	ListGalleries() ([]*Gallery, error)

	// UpsertGallery inserts the gallery or, when a row with the same folder
	// name exists, updates every changed field of that row. Tag sets are not
	// touched. Returns the gallery's surrogate id. A GID collision with a
	// differently-named live gallery returns ErrSchemaConflict.
	UpsertGallery(g *Gallery) (int64, error)

	// ReplaceTags atomically replaces the gallery's tag set
	// (delete-then-insert in a single transaction).
	ReplaceTags(galleryID int64, tags []Tag) error

	// TagsForGallery returns the gallery's tags ordered by (category, value).
	TagsForGallery(galleryID int64) ([]Tag, error)

	// File operations

	// FilesForGallery returns the gallery's files ordered by name.
	FilesForGallery(galleryID int64) ([]*File, error)

	// UpsertFile inserts or updates a file row keyed by (gallery, name)
	// and returns its surrogate id.
	UpsertFile(f *File) (int64, error)

	// SetFileHashes replaces the file's digest set, one row per algorithm.
	SetFileHashes(fileID int64, digests map[string]string) error

	// FileDigest returns one digest of a cataloged file, or "" when the
	// file or digest is not recorded.
	FileDigest(galleryName, fileName, algorithm string) (string, error)

	// PruneFiles deletes file rows (and their digests) whose names are not
	// in keep. Used when files disappear from a gallery folder.
	PruneFiles(galleryID int64, keep []string) error

	// Denormalized views

	// GalleryInfos reads the galleries_infos view.
	GalleryInfos() ([]*GalleryInfo, error)

	// FileHashes reads the files_hashs view filtered to one gallery.
	FileHashes(galleryName string) ([]FileHash, error)

	// Removal queue

	// EnqueueRemoval adds a durable pending-removal entry for the gallery.
	// Enqueueing an already-queued name is a no-op.
	EnqueueRemoval(galleryName string, at time.Time) error

	// DequeueRemoval deletes the pending-removal entry.
	DequeueRemoval(galleryName string) error

	// PendingRemovals returns all queued entries, oldest first.
	PendingRemovals() ([]PendingRemoval, error)

	// DeleteGalleryData deletes the gallery's digest, file, and tag rows and
	// then the gallery row itself, children before parent, in one
	// transaction. Deleting an unknown name is a no-op.
	DeleteGalleryData(galleryName string) error

	// Removed GIDs

	// IsGIDRemoved reports whether the gid was intentionally purged.
	IsGIDRemoved(gid int64) (bool, error)

	// MarkGIDRemoved records the gid as purged so the folder is not
	// re-ingested without an explicit operator override.
	MarkGIDRemoved(gid int64, at time.Time) error

	// ClearRemovedGID is the operator override re-admitting a purged gid.
	ClearRemovedGID(gid int64) error

	// Archive build manifests and junk signatures

	// RecordArchiveBuild stores a build manifest: the header plus the name
	// and comparison digest of every member included in the archive.
	RecordArchiveBuild(b *ArchiveBuild, members []BuildMember) (int64, error)

	// BuildHistory returns the lineage's builds, oldest first.
	BuildHistory(gid int64) ([]*ArchiveBuild, error)

	// BuildDigests returns the member digests of one build.
	BuildDigests(buildID int64) ([]string, error)

	// LatestBuild returns the lineage's most recent build, or nil.
	LatestBuild(gid int64) (*ArchiveBuild, error)

	// AddJunkSignatures inserts digests into the junk set. Signatures are
	// content-addressed and global: the same junk image recurring in another
	// gallery is excluded there too. Insertion is idempotent; nothing ever
	// removes a signature.
	AddJunkSignatures(digests []string, at time.Time) error

	// JunkSignatures returns the full exclusion set.
	JunkSignatures() (map[string]bool, error)

	// Stats returns catalog-wide row counts.
	Stats() (*Stats, error)

	// Close closes the underlying store.
	Close() error
}

// Stats is a snapshot of catalog-wide row counts.
type Stats struct {
	Galleries       int64
	Files           int64
	Tags            int64
	PendingRemovals int64
	RemovedGIDs     int64
	JunkSignatures  int64
	ArchiveBuilds   int64
}
