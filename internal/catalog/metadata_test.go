package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseGID(t *testing.T) {
	tests := []struct {
		name    string
		folder  string
		want    int64
		wantErr bool
	}{
		{"title with gid suffix", "Some Gallery Title [12345]", 12345, false},
		{"bare gid", "98765", 98765, false},
		{"multiple bracketed groups", "[Group][Title][100]", 100, false},
		{"spaces inside brackets", "Title [ 42 ]", 42, false},
		{"no gid", "just a title", 0, true},
		{"non-numeric brackets", "Title [abc]", 0, true},
		{"empty name", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGID(tt.folder)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGID(%q) error = %v, wantErr %v", tt.folder, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseGID(%q) = %d, want %d", tt.folder, got, tt.want)
			}
		})
	}
}

func writeSidecar(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, SidecarName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestParseSidecar(t *testing.T) {
	t.Run("parses a complete sidecar", func(t *testing.T) {
		dir := t.TempDir()
		writeSidecar(t, dir, `Title: An Example Gallery
Upload Time: 2021-03-04 05:06:07
Uploaded By: someuser
Downloaded: 2021-03-05 06:07:08
Tags: artist:foo, language:english, untagged
Uploader's Comments
first comment line
second comment line
`)

		meta, err := ParseSidecar(dir)
		if err != nil {
			t.Fatalf("ParseSidecar() error = %v", err)
		}
		if meta.Title != "An Example Gallery" {
			t.Errorf("Title = %q", meta.Title)
		}
		if meta.UploadAccount != "someuser" {
			t.Errorf("UploadAccount = %q", meta.UploadAccount)
		}
		wantUpload := time.Date(2021, 3, 4, 5, 6, 7, 0, time.Local)
		if !meta.UploadTime.Equal(wantUpload) {
			t.Errorf("UploadTime = %v, want %v", meta.UploadTime, wantUpload)
		}
		wantDownload := time.Date(2021, 3, 5, 6, 7, 8, 0, time.Local)
		if !meta.DownloadTime.Equal(wantDownload) {
			t.Errorf("DownloadTime = %v, want %v", meta.DownloadTime, wantDownload)
		}
		if meta.Comment != "first comment line\nsecond comment line" {
			t.Errorf("Comment = %q", meta.Comment)
		}
		wantTags := []Tag{
			{Category: "artist", Value: "foo"},
			{Category: "language", Value: "english"},
			{Category: "", Value: "untagged"},
		}
		if len(meta.Tags) != len(wantTags) {
			t.Fatalf("Tags = %v, want %v", meta.Tags, wantTags)
		}
		for i, want := range wantTags {
			if meta.Tags[i] != want {
				t.Errorf("Tags[%d] = %v, want %v", i, meta.Tags[i], want)
			}
		}
	})

	t.Run("missing sidecar returns ErrMetadataMissing", func(t *testing.T) {
		_, err := ParseSidecar(t.TempDir())
		if !errors.Is(err, ErrMetadataMissing) {
			t.Errorf("ParseSidecar() error = %v, want ErrMetadataMissing", err)
		}
	})

	t.Run("malformed timestamp returns MetadataError naming the field", func(t *testing.T) {
		dir := t.TempDir()
		writeSidecar(t, dir, `Title: Broken
Upload Time: not-a-time
`)

		_, err := ParseSidecar(dir)
		var me *MetadataError
		if !errors.As(err, &me) {
			t.Fatalf("ParseSidecar() error = %v, want MetadataError", err)
		}
		if me.Field != "Upload Time" {
			t.Errorf("MetadataError.Field = %q, want %q", me.Field, "Upload Time")
		}
	})

	t.Run("colons inside values survive", func(t *testing.T) {
		dir := t.TempDir()
		writeSidecar(t, dir, "Title: Part 1: The Beginning\n")

		meta, err := ParseSidecar(dir)
		if err != nil {
			t.Fatalf("ParseSidecar() error = %v", err)
		}
		if meta.Title != "Part 1: The Beginning" {
			t.Errorf("Title = %q", meta.Title)
		}
	})
}

func TestParseTags(t *testing.T) {
	t.Run("deduplicates repeated pairs", func(t *testing.T) {
		tags := parseTags("artist:foo, artist:foo, artist:bar")
		if len(tags) != 2 {
			t.Fatalf("parseTags() = %v, want 2 entries", tags)
		}
	})

	t.Run("skips empty entries", func(t *testing.T) {
		tags := parseTags(" , artist: , :empty, solo")
		// "artist:" has an empty value and is dropped; ":empty" keeps the
		// empty category; "solo" lands in the empty category as well.
		want := []Tag{{Category: "", Value: "empty"}, {Category: "", Value: "solo"}}
		if len(tags) != len(want) {
			t.Fatalf("parseTags() = %v, want %v", tags, want)
		}
		for i := range want {
			if tags[i] != want[i] {
				t.Errorf("tags[%d] = %v, want %v", i, tags[i], want[i])
			}
		}
	})

	t.Run("empty input yields no tags", func(t *testing.T) {
		if tags := parseTags(""); len(tags) != 0 {
			t.Errorf("parseTags(\"\") = %v, want none", tags)
		}
	})
}
