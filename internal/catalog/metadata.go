package catalog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// SidecarName is the per-folder metadata file written by the download client.
const SidecarName = "galleryinfo.txt"

// timeLayout is the timestamp format used inside the sidecar file.
const timeLayout = "2006-01-02 15:04:05"

// Metadata is the structured content of a gallery's sidecar file.
type Metadata struct {
	Title         string
	UploadAccount string
	UploadTime    time.Time
	DownloadTime  time.Time
	Comment       string
	Tags          []Tag // in sidecar order, duplicates removed
}

// ParseGID extracts the external gallery identifier from a folder name.
// Download folders are named either "<title> [<gid>]" or just "<gid>";
// the last bracketed group wins so bracketed title fragments don't confuse it.
func ParseGID(folderName string) (int64, error) {
	candidate := folderName
	if open := strings.LastIndex(folderName, "["); open >= 0 {
		if close := strings.Index(folderName[open:], "]"); close > 0 {
			candidate = folderName[open+1 : open+close]
		}
	}
	gid, err := strconv.ParseInt(strings.TrimSpace(candidate), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("no gid in folder name %q: %w", folderName, err)
	}
	return gid, nil
}

// ParseSidecar reads and parses the sidecar file inside folder.
// A missing file returns ErrMetadataMissing; the caller decides whether that
// blocks ingestion. A malformed timestamp returns a MetadataError naming the
// offending field.
func ParseSidecar(folder string) (*Metadata, error) {
	path := filepath.Join(folder, SidecarName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMetadataMissing, path)
		}
		return nil, fmt.Errorf("%w: opening %s: %v", ErrIOUnavailable, path, err)
	}
	defer f.Close()

	meta := &Metadata{}
	var commentLines []string
	inComments := false

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "Uploader's Comments"):
			inComments = true
		case inComments:
			commentLines = append(commentLines, strings.TrimSpace(line))
		case strings.Contains(line, ":"):
			key, value, _ := strings.Cut(line, ":")
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			switch key {
			case "Title":
				meta.Title = value
			case "Upload Time":
				meta.UploadTime, err = time.ParseInLocation(timeLayout, value, time.Local)
				if err != nil {
					return nil, &MetadataError{Folder: folder, Field: "Upload Time", Err: err}
				}
			case "Uploaded By":
				meta.UploadAccount = value
			case "Downloaded":
				meta.DownloadTime, err = time.ParseInLocation(timeLayout, value, time.Local)
				if err != nil {
					return nil, &MetadataError{Folder: folder, Field: "Downloaded", Err: err}
				}
			case "Tags":
				meta.Tags = parseTags(value)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrIOUnavailable, path, err)
	}

	meta.Comment = strings.Trim(strings.Join(commentLines, "\n"), "\n")
	return meta, nil
}

// parseTags splits a comma-separated tag list. Each entry is either
// "category:value" or a bare value, which lands in the empty category.
// Duplicate (category, value) pairs collapse to one.
func parseTags(value string) []Tag {
	var tags []Tag
	seen := make(map[Tag]bool)
	for _, raw := range strings.Split(value, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		var tag Tag
		if category, v, found := strings.Cut(raw, ":"); found {
			tag = Tag{Category: strings.TrimSpace(category), Value: strings.TrimSpace(v)}
		} else {
			tag = Tag{Category: "", Value: raw}
		}
		if tag.Value == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
