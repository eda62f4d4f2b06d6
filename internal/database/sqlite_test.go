package database

import (
	"errors"
	"testing"
	"time"

	"h2hcat/internal/catalog"
	"h2hcat/internal/database/migrations"
)

// newTestCatalog creates an in-memory catalog with all migrations applied.
func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()

	db, err := OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		t.Fatalf("failed to apply migrations: %v", err)
	}

	c := NewFromDB(db)
	t.Cleanup(func() {
		c.Close()
	})
	return c
}

func testGallery(name string, gid int64) *catalog.Gallery {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return &catalog.Gallery{
		Name:          name,
		GID:           gid,
		Title:         "Test Title",
		UploadAccount: "uploader",
		Comment:       "a comment",
		UploadTime:    now.Add(-48 * time.Hour),
		DownloadTime:  now.Add(-24 * time.Hour),
		ModifiedTime:  now,
		AccessTime:    now,
		InfoDigest:    "digest-" + name,
	}
}

func TestSQLiteCatalog_UpsertGallery(t *testing.T) {
	t.Run("inserts and finds by name and gid", func(t *testing.T) {
		c := newTestCatalog(t)

		id, err := c.UpsertGallery(testGallery("Gallery [1]", 1))
		if err != nil {
			t.Fatalf("UpsertGallery() error = %v", err)
		}
		if id == 0 {
			t.Fatal("UpsertGallery() returned id 0")
		}

		byName, err := c.FindGalleryByName("Gallery [1]")
		if err != nil {
			t.Fatalf("FindGalleryByName() error = %v", err)
		}
		if byName == nil || byName.ID != id {
			t.Fatalf("FindGalleryByName() = %v, want id %d", byName, id)
		}
		if byName.Title != "Test Title" || byName.GID != 1 {
			t.Errorf("gallery fields = %+v", byName)
		}

		byGID, err := c.FindGalleryByGID(1)
		if err != nil {
			t.Fatalf("FindGalleryByGID() error = %v", err)
		}
		if byGID == nil || byGID.ID != id {
			t.Errorf("FindGalleryByGID() = %v, want id %d", byGID, id)
		}
	})

	t.Run("returns nil for unknown gallery", func(t *testing.T) {
		c := newTestCatalog(t)

		g, err := c.FindGalleryByName("nope")
		if err != nil {
			t.Fatalf("FindGalleryByName() error = %v", err)
		}
		if g != nil {
			t.Errorf("FindGalleryByName() = %v, want nil", g)
		}
	})

	t.Run("updates in place on name conflict", func(t *testing.T) {
		c := newTestCatalog(t)

		first, err := c.UpsertGallery(testGallery("Gallery [1]", 1))
		if err != nil {
			t.Fatal(err)
		}

		updated := testGallery("Gallery [1]", 1)
		updated.Title = "New Title"
		second, err := c.UpsertGallery(updated)
		if err != nil {
			t.Fatalf("UpsertGallery() update error = %v", err)
		}
		if second != first {
			t.Errorf("update allocated new id %d, want %d", second, first)
		}

		g, _ := c.FindGalleryByName("Gallery [1]")
		if g.Title != "New Title" {
			t.Errorf("Title = %q after update", g.Title)
		}
	})

	t.Run("gid collision returns ErrSchemaConflict", func(t *testing.T) {
		c := newTestCatalog(t)

		if _, err := c.UpsertGallery(testGallery("Gallery [1]", 1)); err != nil {
			t.Fatal(err)
		}
		_, err := c.UpsertGallery(testGallery("Other Gallery [1]", 1))
		if !errors.Is(err, catalog.ErrSchemaConflict) {
			t.Errorf("UpsertGallery() error = %v, want ErrSchemaConflict", err)
		}
	})

	t.Run("surrogate ids are never reused", func(t *testing.T) {
		c := newTestCatalog(t)

		first, err := c.UpsertGallery(testGallery("Gallery [1]", 1))
		if err != nil {
			t.Fatal(err)
		}
		if err := c.DeleteGalleryData("Gallery [1]"); err != nil {
			t.Fatal(err)
		}

		second, err := c.UpsertGallery(testGallery("Gallery [1]", 1))
		if err != nil {
			t.Fatal(err)
		}
		if second <= first {
			t.Errorf("id %d reused after deletion of id %d", second, first)
		}
	})
}

func TestSQLiteCatalog_Tags(t *testing.T) {
	c := newTestCatalog(t)
	id, err := c.UpsertGallery(testGallery("Gallery [1]", 1))
	if err != nil {
		t.Fatal(err)
	}

	tags := []catalog.Tag{
		{Category: "artist", Value: "foo"},
		{Category: "", Value: "solo"},
	}
	if err := c.ReplaceTags(id, tags); err != nil {
		t.Fatalf("ReplaceTags() error = %v", err)
	}

	got, err := c.TagsForGallery(id)
	if err != nil {
		t.Fatalf("TagsForGallery() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("TagsForGallery() = %v, want 2 tags", got)
	}

	// Replacement is total: the old set is gone.
	if err := c.ReplaceTags(id, []catalog.Tag{{Category: "language", Value: "english"}}); err != nil {
		t.Fatal(err)
	}
	got, _ = c.TagsForGallery(id)
	if len(got) != 1 || got[0].Category != "language" {
		t.Errorf("TagsForGallery() after replace = %v", got)
	}
}

func TestSQLiteCatalog_Files(t *testing.T) {
	c := newTestCatalog(t)
	galleryID, err := c.UpsertGallery(testGallery("Gallery [1]", 1))
	if err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	t.Run("upsert, digest lookup and prune", func(t *testing.T) {
		fileID, err := c.UpsertFile(&catalog.File{
			GalleryID: galleryID, Name: "page001.jpg", Size: 100, ModifiedTime: mtime,
		})
		if err != nil {
			t.Fatalf("UpsertFile() error = %v", err)
		}
		if err := c.SetFileHashes(fileID, map[string]string{"sha512": "aaa", "sha256": "bbb"}); err != nil {
			t.Fatalf("SetFileHashes() error = %v", err)
		}

		digest, err := c.FileDigest("Gallery [1]", "page001.jpg", "sha512")
		if err != nil {
			t.Fatalf("FileDigest() error = %v", err)
		}
		if digest != "aaa" {
			t.Errorf("FileDigest() = %q, want aaa", digest)
		}

		// Unknown digests come back empty, not as errors.
		digest, err = c.FileDigest("Gallery [1]", "page001.jpg", "md5")
		if err != nil || digest != "" {
			t.Errorf("FileDigest() unknown algorithm = %q, %v", digest, err)
		}

		if _, err := c.UpsertFile(&catalog.File{
			GalleryID: galleryID, Name: "page002.jpg", Size: 200, ModifiedTime: mtime,
		}); err != nil {
			t.Fatal(err)
		}

		if err := c.PruneFiles(galleryID, []string{"page001.jpg"}); err != nil {
			t.Fatalf("PruneFiles() error = %v", err)
		}
		files, err := c.FilesForGallery(galleryID)
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != 1 || files[0].Name != "page001.jpg" {
			t.Errorf("FilesForGallery() after prune = %v", files)
		}
	})

	t.Run("views reflect files and digests", func(t *testing.T) {
		infos, err := c.GalleryInfos()
		if err != nil {
			t.Fatalf("GalleryInfos() error = %v", err)
		}
		if len(infos) != 1 {
			t.Fatalf("GalleryInfos() = %v, want one row", infos)
		}
		if infos[0].FileCount != 1 {
			t.Errorf("FileCount = %d, want 1", infos[0].FileCount)
		}

		hashes, err := c.FileHashes("Gallery [1]")
		if err != nil {
			t.Fatalf("FileHashes() error = %v", err)
		}
		if len(hashes) != 2 {
			t.Errorf("FileHashes() = %v, want 2 rows", hashes)
		}
	})
}

func TestSQLiteCatalog_RemovalQueue(t *testing.T) {
	c := newTestCatalog(t)
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	t.Run("enqueue is idempotent", func(t *testing.T) {
		if err := c.EnqueueRemoval("Gallery [1]", at); err != nil {
			t.Fatalf("EnqueueRemoval() error = %v", err)
		}
		if err := c.EnqueueRemoval("Gallery [1]", at.Add(time.Hour)); err != nil {
			t.Fatalf("second EnqueueRemoval() error = %v", err)
		}

		pending, err := c.PendingRemovals()
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) != 1 {
			t.Fatalf("PendingRemovals() = %v, want one entry", pending)
		}
		if !pending[0].QueuedAt.Equal(at) {
			t.Errorf("QueuedAt = %v, want original %v", pending[0].QueuedAt, at)
		}
	})

	t.Run("dequeue removes the entry", func(t *testing.T) {
		if err := c.DequeueRemoval("Gallery [1]"); err != nil {
			t.Fatalf("DequeueRemoval() error = %v", err)
		}
		pending, _ := c.PendingRemovals()
		if len(pending) != 0 {
			t.Errorf("PendingRemovals() = %v, want empty", pending)
		}
	})
}

func TestSQLiteCatalog_DeleteGalleryData(t *testing.T) {
	c := newTestCatalog(t)

	id, err := c.UpsertGallery(testGallery("Gallery [1]", 1))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.ReplaceTags(id, []catalog.Tag{{Category: "artist", Value: "foo"}}); err != nil {
		t.Fatal(err)
	}
	fileID, err := c.UpsertFile(&catalog.File{GalleryID: id, Name: "page001.jpg", Size: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetFileHashes(fileID, map[string]string{"sha512": "aaa"}); err != nil {
		t.Fatal(err)
	}

	if err := c.DeleteGalleryData("Gallery [1]"); err != nil {
		t.Fatalf("DeleteGalleryData() error = %v", err)
	}

	if g, _ := c.FindGalleryByName("Gallery [1]"); g != nil {
		t.Error("gallery row survived deletion")
	}
	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Files != 0 || stats.Tags != 0 {
		t.Errorf("dependent rows survived deletion: %+v", stats)
	}

	// Unknown names are a no-op.
	if err := c.DeleteGalleryData("never existed"); err != nil {
		t.Errorf("DeleteGalleryData() unknown name error = %v", err)
	}
}

func TestSQLiteCatalog_RemovedGIDs(t *testing.T) {
	c := newTestCatalog(t)
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	removed, err := c.IsGIDRemoved(42)
	if err != nil || removed {
		t.Fatalf("IsGIDRemoved() = %v, %v; want false, nil", removed, err)
	}

	if err := c.MarkGIDRemoved(42, at); err != nil {
		t.Fatalf("MarkGIDRemoved() error = %v", err)
	}
	// Marking twice is fine.
	if err := c.MarkGIDRemoved(42, at); err != nil {
		t.Fatalf("second MarkGIDRemoved() error = %v", err)
	}

	removed, err = c.IsGIDRemoved(42)
	if err != nil || !removed {
		t.Fatalf("IsGIDRemoved() = %v, %v; want true, nil", removed, err)
	}

	if err := c.ClearRemovedGID(42); err != nil {
		t.Fatalf("ClearRemovedGID() error = %v", err)
	}
	removed, _ = c.IsGIDRemoved(42)
	if removed {
		t.Error("gid still removed after clear")
	}
}

func TestSQLiteCatalog_ArchiveBuilds(t *testing.T) {
	c := newTestCatalog(t)
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	build := func(path string, digests ...string) int64 {
		t.Helper()
		members := make([]catalog.BuildMember, len(digests))
		for i, d := range digests {
			members[i] = catalog.BuildMember{FileName: d + ".jpg", Digest: d}
		}
		id, err := c.RecordArchiveBuild(&catalog.ArchiveBuild{
			GID: 7, GalleryName: "Gallery [7]", ArchivePath: path, BuiltAt: at,
		}, members)
		if err != nil {
			t.Fatalf("RecordArchiveBuild() error = %v", err)
		}
		return id
	}

	first := build("Gallery [7].cbz", "aaa", "bbb")
	second := build("2024/Gallery [7].cbz", "aaa")

	history, err := c.BuildHistory(7)
	if err != nil {
		t.Fatalf("BuildHistory() error = %v", err)
	}
	if len(history) != 2 || history[0].ID != first || history[1].ID != second {
		t.Fatalf("BuildHistory() = %v, want oldest first", history)
	}

	latest, err := c.LatestBuild(7)
	if err != nil {
		t.Fatalf("LatestBuild() error = %v", err)
	}
	if latest == nil || latest.ID != second || latest.ArchivePath != "2024/Gallery [7].cbz" {
		t.Errorf("LatestBuild() = %v, want the second build", latest)
	}

	digests, err := c.BuildDigests(first)
	if err != nil {
		t.Fatalf("BuildDigests() error = %v", err)
	}
	if len(digests) != 2 {
		t.Errorf("BuildDigests() = %v, want 2", digests)
	}

	none, err := c.LatestBuild(999)
	if err != nil || none != nil {
		t.Errorf("LatestBuild() unknown gid = %v, %v; want nil, nil", none, err)
	}
}

func TestSQLiteCatalog_JunkSignatures(t *testing.T) {
	c := newTestCatalog(t)
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	if err := c.AddJunkSignatures([]string{"aaa", "bbb"}, at); err != nil {
		t.Fatalf("AddJunkSignatures() error = %v", err)
	}
	// Re-inserting an existing signature is a no-op.
	if err := c.AddJunkSignatures([]string{"aaa", "ccc"}, at); err != nil {
		t.Fatalf("second AddJunkSignatures() error = %v", err)
	}

	junk, err := c.JunkSignatures()
	if err != nil {
		t.Fatalf("JunkSignatures() error = %v", err)
	}
	if len(junk) != 3 || !junk["aaa"] || !junk["bbb"] || !junk["ccc"] {
		t.Errorf("JunkSignatures() = %v", junk)
	}
}

func TestSQLiteCatalog_Stats(t *testing.T) {
	c := newTestCatalog(t)

	id, err := c.UpsertGallery(testGallery("Gallery [1]", 1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.UpsertFile(&catalog.File{GalleryID: id, Name: "page001.jpg"}); err != nil {
		t.Fatal(err)
	}
	if err := c.ReplaceTags(id, []catalog.Tag{{Category: "artist", Value: "foo"}}); err != nil {
		t.Fatal(err)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Galleries != 1 || stats.Files != 1 || stats.Tags != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}
