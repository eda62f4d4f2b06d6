package catalog

import "time"

// Gallery is a cataloged download folder. The surrogate ID is allocated by
// the catalog and never reused; GID is the external identifier parsed from
// the folder name and is unique among live galleries.
type Gallery struct {
	ID            int64
	Name          string // folder name, unique among currently-present galleries
	GID           int64
	Title         string
	UploadAccount string
	Comment       string // uploader's comment block from the sidecar
	UploadTime    time.Time
	DownloadTime  time.Time
	ModifiedTime  time.Time // mtime of the sidecar file at last sync
	AccessTime    time.Time
	InfoDigest    string // sha512 of the sidecar file, used for change detection
}

// File is one member of a gallery. Name is unique within the gallery.
type File struct {
	ID           int64
	GalleryID    int64
	Name         string
	Size         int64
	ModifiedTime time.Time
}

// Tag is a (category, value) pair scoped to one gallery.
// An empty category means the raw tag carried no category prefix.
type Tag struct {
	Category string
	Value    string
}

// PendingRemoval is a durable queue entry naming a gallery scheduled for
// full multi-table deletion. Entries survive process restarts; an entry is
// deleted only after every dependent row is confirmed gone.
type PendingRemoval struct {
	GalleryName string
	QueuedAt    time.Time
}

// ArchiveBuild is the manifest header of one published archive.
// Builds for the same GID form a lineage; the junk learner diffs
// member digests across a lineage's builds.
type ArchiveBuild struct {
	ID          int64
	GID         int64
	GalleryName string
	ArchivePath string // store-relative path of the published archive
	BuiltAt     time.Time
}

// BuildMember is one file included in an archive build, identified by its
// comparison digest.
type BuildMember struct {
	FileName string
	Digest   string
}

// GalleryInfo is the denormalized galleries_infos view row.
type GalleryInfo struct {
	Gallery
	FileCount int64
	TagCount  int64
}

// FileHash is one row of the files_hashs view: a single digest of a single
// gallery member.
type FileHash struct {
	GalleryName string
	FileName    string
	Algorithm   string
	Digest      string
}
