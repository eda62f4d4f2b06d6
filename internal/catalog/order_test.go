package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// pageStubScanner serves a fixed image count per folder name. Only ListFiles
// matters to ingest ordering.
type pageStubScanner struct {
	pages map[string]int
}

func (s *pageStubScanner) ScanGalleries(root string) ([]GalleryFolder, error) {
	return nil, nil
}

func (s *pageStubScanner) ListFiles(folder string) ([]FileStat, error) {
	files := []FileStat{{Name: SidecarName}}
	for i := 0; i < s.pages[filepath.Base(folder)]; i++ {
		files = append(files, FileStat{Name: fmt.Sprintf("page%03d.jpg", i+1)})
	}
	return files, nil
}

// writeSidecarFolder creates a gallery folder holding only a sidecar with the
// given timestamps.
func writeSidecarFolder(t *testing.T, root, name, uploadTime, downloadTime string) GalleryFolder {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	sidecar := "Title: " + name + "\n" +
		"Upload Time: " + uploadTime + "\n" +
		"Downloaded: " + downloadTime + "\n"
	if err := os.WriteFile(filepath.Join(dir, SidecarName), []byte(sidecar), 0644); err != nil {
		t.Fatal(err)
	}
	return GalleryFolder{Path: dir, Name: name}
}

func TestSyncEngine_IngestOrder(t *testing.T) {
	root := t.TempDir()
	folders := []GalleryFolder{
		// Alphabetical by name; times and page counts deliberately disagree
		// with that order so each sort mode produces a distinct result.
		writeSidecarFolder(t, root, "Alpha [1]", "2021-01-01 00:00:00", "2023-06-01 00:00:00"),
		writeSidecarFolder(t, root, "Bravo [2]", "2023-01-01 00:00:00", "2021-06-01 00:00:00"),
		writeSidecarFolder(t, root, "Charlie [3]", "2022-01-01 00:00:00", "2022-06-01 00:00:00"),
	}
	scanner := &pageStubScanner{pages: map[string]int{
		"Alpha [1]":   5,
		"Bravo [2]":   19,
		"Charlie [3]": 40,
	}}

	orderedNames := func(sortMode string) []string {
		engine := NewSyncEngine(nil, scanner, NewNopLogger(), RealClock{},
			SyncOptions{Sort: sortMode})
		units := engine.order(folders)
		names := make([]string, len(units))
		for i, u := range units {
			names[i] = u.folder.Name
		}
		return names
	}

	assertOrder := func(t *testing.T, got, want []string) {
		t.Helper()
		if len(got) != len(want) {
			t.Fatalf("ordered %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("ordered %v, want %v", got, want)
			}
		}
	}

	t.Run("upload_time orders newest upload first", func(t *testing.T) {
		assertOrder(t, orderedNames(SortUploadTime),
			[]string{"Bravo [2]", "Charlie [3]", "Alpha [1]"})
	})

	t.Run("download_time orders newest download first", func(t *testing.T) {
		assertOrder(t, orderedNames(SortDownloadTime),
			[]string{"Alpha [1]", "Charlie [3]", "Bravo [2]"})
	})

	t.Run("pages orders by distance from the default base", func(t *testing.T) {
		// Distances from 20: Bravo 1, Alpha 15, Charlie 20.
		assertOrder(t, orderedNames(SortPages),
			[]string{"Bravo [2]", "Alpha [1]", "Charlie [3]"})
	})

	t.Run("pages+N orders by distance from the offset", func(t *testing.T) {
		// Distances from 42: Charlie 2, Bravo 23, Alpha 37.
		assertOrder(t, orderedNames("pages+42"),
			[]string{"Charlie [3]", "Bravo [2]", "Alpha [1]"})
	})

	t.Run("unparsable pages offset falls back to the default base", func(t *testing.T) {
		assertOrder(t, orderedNames("pages+many"),
			[]string{"Bravo [2]", "Alpha [1]", "Charlie [3]"})
	})

	t.Run("unrecognized sort falls back to name order", func(t *testing.T) {
		assertOrder(t, orderedNames(""),
			[]string{"Alpha [1]", "Bravo [2]", "Charlie [3]"})
	})
}
