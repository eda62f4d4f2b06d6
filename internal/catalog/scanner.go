package catalog

import "time"

// GalleryFolder is one candidate folder found under the download root.
type GalleryFolder struct {
	Path string // absolute path
	Name string // folder name (base of Path)
}

// FileStat is the filesystem state of one gallery member, enough to decide
// whether its digests must be recomputed.
type FileStat struct {
	Name         string
	Size         int64
	ModifiedTime time.Time
}

// Scanner abstracts gallery discovery so the engine is testable without a
// real download tree.
type Scanner interface {
	// ScanGalleries walks the download root and returns every folder that
	// contains a sidecar metadata file.
	ScanGalleries(root string) ([]GalleryFolder, error)

	// ListFiles returns the regular files directly inside a gallery folder,
	// sidecar included, ordered by name.
	ListFiles(folder string) ([]FileStat, error)
}
