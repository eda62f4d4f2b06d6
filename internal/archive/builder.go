// Package archive packages gallery folders into CBZ files, downscaling
// oversized images and excluding learned junk images. Archives are assembled
// in scratch space and published atomically through an ArchiveStore.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"unicode/utf8"

	"h2hcat/internal/catalog"
)

// archiveExt is the output container extension. A CBZ is a plain zip.
const archiveExt = ".cbz"

// maxArchiveNameBytes bounds the published file name; most filesystems cap
// names at 255 bytes.
const maxArchiveNameBytes = 255

// Options configures a Builder.
type Options struct {
	DownloadRoot string // gallery folders live here
	TmpDir       string // scratch space for archive assembly
	Grouping     string // "flat", "date-yyyy", "date-yyyy-mm", "date-yyyy-mm-dd"
	MaxSize      int    // max smaller image dimension; 0 disables resizing
}

// Builder builds and publishes one archive per cataloged gallery.
type Builder struct {
	catalog catalog.Catalog
	store   catalog.ArchiveStore
	learner *catalog.JunkLearner
	logger  catalog.Logger
	clock   catalog.Clock
	opts    Options
}

// NewBuilder creates a Builder with the provided dependencies.
func NewBuilder(cat catalog.Catalog, store catalog.ArchiveStore, learner *catalog.JunkLearner, logger catalog.Logger, clock catalog.Clock, opts Options) *Builder {
	return &Builder{
		catalog: cat,
		store:   store,
		learner: learner,
		logger:  logger,
		clock:   clock,
		opts:    opts,
	}
}

// BuildAll builds or refreshes the archive of every cataloged gallery, then
// removes stale archives from the store. Per-gallery failures land in the
// report; cancellation takes effect between galleries.
func (b *Builder) BuildAll(ctx context.Context) (*catalog.PassReport, error) {
	report := &catalog.PassReport{}

	galleries, err := b.catalog.ListGalleries()
	if err != nil {
		return report, fmt.Errorf("listing galleries: %w", err)
	}

	active := make(map[string]bool, len(galleries))
	for _, g := range galleries {
		if ctx.Err() != nil {
			b.logger.Warn("archive pass cancelled")
			break
		}
		relPath, built, err := b.BuildOne(ctx, g)
		if relPath != "" {
			active[relPath] = true
		}
		switch {
		case err != nil:
			b.logger.Error("archive build failed", "gallery", g.Name, "error", err)
			report.AddFailure(g.Name, err)
		case built:
			report.AddSynced(g.Name)
		default:
			report.AddSkipped(g.Name)
		}
	}

	if ctx.Err() == nil {
		if err := b.cleanStale(ctx, active); err != nil {
			b.logger.Error("stale archive cleanup failed", "error", err)
		}
	}

	b.logger.Info("archive pass finished", "result", report.Summary())
	return report, nil
}

// BuildOne builds and publishes the gallery's archive unless it is already
// current. Returns the archive's store-relative path and whether a new
// archive was published.
func (b *Builder) BuildOne(ctx context.Context, g *catalog.Gallery) (relPath string, built bool, err error) {
	relPath = path.Join(b.groupDir(g), archiveFileName(g.Name))

	members, err := b.selectMembers(g)
	if err != nil {
		return relPath, false, err
	}

	current, err := b.isCurrent(ctx, g, relPath, members)
	if err != nil {
		return relPath, false, err
	}
	if current {
		b.logger.Debug("archive up to date", "gallery", g.Name, "archive", relPath)
		return relPath, false, nil
	}

	if err := b.buildAndPublish(ctx, g, relPath, members); err != nil {
		return relPath, false, err
	}

	manifest := make([]catalog.BuildMember, len(members))
	for i, m := range members {
		manifest[i] = catalog.BuildMember{FileName: m.Name, Digest: m.Digest}
	}
	build := &catalog.ArchiveBuild{
		GID:         g.GID,
		GalleryName: g.Name,
		ArchivePath: relPath,
		BuiltAt:     b.clock.Now(),
	}
	if _, err := b.catalog.RecordArchiveBuild(build, manifest); err != nil {
		return relPath, false, fmt.Errorf("recording build manifest: %w", err)
	}

	learned, err := b.learner.Learn(g.GID)
	if err != nil {
		return relPath, false, fmt.Errorf("learning junk signatures: %w", err)
	}
	if len(learned) > 0 {
		b.logger.Info("junk signatures learned", "gallery", g.Name, "count", len(learned))
	}

	b.logger.Info("archive published", "gallery", g.Name, "archive", relPath,
		"members", len(members))
	return relPath, true, nil
}

// member is one file selected for inclusion in the archive.
type member struct {
	Name   string
	Digest string
}

// selectMembers picks the gallery's files minus learned junk. The sidecar is
// always included so a published archive stays self-describing.
func (b *Builder) selectMembers(g *catalog.Gallery) ([]member, error) {
	files, err := b.catalog.FilesForGallery(g.ID)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	junk, err := b.learner.Exclusions()
	if err != nil {
		return nil, fmt.Errorf("reading junk set: %w", err)
	}

	var members []member
	for _, f := range files {
		digest, err := b.catalog.FileDigest(g.Name, f.Name, catalog.ComparisonAlgorithm)
		if err != nil {
			return nil, err
		}
		if junk[digest] && f.Name != catalog.SidecarName {
			continue
		}
		members = append(members, member{Name: f.Name, Digest: digest})
	}
	return members, nil
}

// isCurrent reports whether the published archive already matches the
// member set, by comparing against the lineage's latest build manifest.
func (b *Builder) isCurrent(ctx context.Context, g *catalog.Gallery, relPath string, members []member) (bool, error) {
	latest, err := b.catalog.LatestBuild(g.GID)
	if err != nil {
		return false, err
	}
	if latest == nil || latest.ArchivePath != relPath {
		return false, nil
	}

	exists, err := b.store.Exists(ctx, relPath)
	if err != nil {
		return false, fmt.Errorf("checking published archive: %w", err)
	}
	if !exists {
		return false, nil
	}

	previous, err := b.catalog.BuildDigests(latest.ID)
	if err != nil {
		return false, err
	}
	// Compare as multisets: duplicate-content members must not mask a change.
	prevCount := make(map[string]int, len(previous))
	for _, d := range previous {
		prevCount[d]++
	}
	for _, m := range members {
		if prevCount[m.Digest] == 0 {
			return false, nil
		}
		prevCount[m.Digest]--
	}
	for _, n := range prevCount {
		if n != 0 {
			return false, nil
		}
	}
	return true, nil
}

// buildAndPublish assembles the zip in scratch space and streams it to the
// store. The store's Put is atomic, so no partial archive is ever visible at
// the final path.
func (b *Builder) buildAndPublish(ctx context.Context, g *catalog.Gallery, relPath string, members []member) error {
	if err := os.MkdirAll(b.opts.TmpDir, 0755); err != nil {
		return fmt.Errorf("%w: creating scratch dir: %v", catalog.ErrArchiveWrite, err)
	}
	tmpFile, err := os.CreateTemp(b.opts.TmpDir, "h2hcat-*"+archiveExt)
	if err != nil {
		return fmt.Errorf("%w: creating scratch file: %v", catalog.ErrArchiveWrite, err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)
	defer tmpFile.Close()

	if err := b.writeZip(tmpFile, g, members); err != nil {
		return err
	}

	info, err := tmpFile.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat scratch file: %v", catalog.ErrArchiveWrite, err)
	}
	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: rewinding scratch file: %v", catalog.ErrArchiveWrite, err)
	}

	if err := b.store.Put(ctx, relPath, tmpFile, info.Size()); err != nil {
		return fmt.Errorf("%w: publishing %s: %v", catalog.ErrArchiveWrite, relPath, err)
	}
	return nil
}

func (b *Builder) writeZip(w io.Writer, g *catalog.Gallery, members []member) error {
	zw := zip.NewWriter(w)
	folder := filepath.Join(b.opts.DownloadRoot, g.Name)

	for _, m := range members {
		srcPath := filepath.Join(folder, m.Name)
		if err := b.writeMember(zw, srcPath, m.Name); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: finishing zip: %v", catalog.ErrArchiveWrite, err)
	}
	return nil
}

// writeMember adds one file to the zip, downscaling oversized images where
// the format can be re-encoded.
func (b *Builder) writeMember(zw *zip.Writer, srcPath, name string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("%w: opening member %s: %v", catalog.ErrArchiveWrite, name, err)
	}
	defer src.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("%w: adding member %s: %v", catalog.ErrArchiveWrite, name, err)
	}

	if b.opts.MaxSize > 0 && catalog.IsImageName(name) && resizable(name) {
		resized, err := downscale(src, dst, name, b.opts.MaxSize)
		if err != nil {
			return fmt.Errorf("%w: %v", catalog.ErrArchiveWrite, err)
		}
		if resized {
			return nil
		}
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("%w: rewinding member %s: %v", catalog.ErrArchiveWrite, name, err)
		}
	}

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("%w: copying member %s: %v", catalog.ErrArchiveWrite, name, err)
	}
	return nil
}

// groupDir returns the store-relative directory the gallery's archive is
// published under, per the configured grouping scheme.
func (b *Builder) groupDir(g *catalog.Gallery) string {
	t := g.UploadTime
	switch b.opts.Grouping {
	case "date-yyyy":
		return t.Format("2006")
	case "date-yyyy-mm":
		return t.Format("2006/01")
	case "date-yyyy-mm-dd":
		return t.Format("2006/01/02")
	default: // flat
		return ""
	}
}

// cleanStale removes published archives that no current gallery produces,
// e.g. after a gallery was removed or its grouping directory changed.
func (b *Builder) cleanStale(ctx context.Context, active map[string]bool) error {
	published, err := b.store.List(ctx)
	if err != nil {
		return err
	}
	for _, relPath := range published {
		if active[relPath] {
			continue
		}
		if err := b.store.Remove(ctx, relPath); err != nil {
			return fmt.Errorf("removing %s: %w", relPath, err)
		}
		b.logger.Info("stale archive removed", "archive", relPath)
	}
	return nil
}

// archiveFileName derives the published file name from the folder name,
// truncated from the front so name+extension fits common filesystem limits.
// Truncating the front keeps the trailing [gid] marker intact.
func archiveFileName(galleryName string) string {
	name := galleryName
	for len(name)+len(archiveExt) > maxArchiveNameBytes && name != "" {
		// Trim whole runes so the published name stays valid UTF-8.
		_, size := utf8.DecodeRuneInString(name)
		name = name[size:]
	}
	return name + archiveExt
}
