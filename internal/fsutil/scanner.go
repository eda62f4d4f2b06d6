package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"h2hcat/internal/catalog"
)

// OSScanner discovers gallery folders on the real filesystem.
type OSScanner struct{}

func NewOSScanner() *OSScanner { return &OSScanner{} }

var _ catalog.Scanner = (*OSScanner)(nil)

// ScanGalleries walks root and returns every directory containing a sidecar
// metadata file. Nested galleries are all reported; the walk does not stop
// at the first match.
func (s *OSScanner) ScanGalleries(root string) ([]catalog.GalleryFolder, error) {
	var folders []catalog.GalleryFolder
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if _, err := os.Stat(filepath.Join(path, catalog.SidecarName)); err == nil {
			folders = append(folders, catalog.GalleryFolder{
				Path: path,
				Name: filepath.Base(path),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	return folders, nil
}

// ListFiles returns the regular files directly inside folder, ordered by name.
func (s *OSScanner) ListFiles(folder string) ([]catalog.FileStat, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", folder, err)
	}

	var files []catalog.FileStat
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		files = append(files, catalog.FileStat{
			Name:         entry.Name(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
