package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sort orders accepted by SyncOptions.Sort. "pages+N" orders galleries by
// distance of their page count from N.
const (
	SortUploadTime   = "upload_time"
	SortDownloadTime = "download_time"
	SortPages        = "pages"
)

// defaultPagesBase is the page count galleries are measured against when
// sorting by "pages" with no explicit offset.
const defaultPagesBase = 20

// SyncOptions configures one engine instance.
type SyncOptions struct {
	Root    string // download root to scan
	Workers int    // bounded worker pool size; min 1
	Sort    string // gallery ingest order; see Sort constants
}

// SyncEngine drives full synchronization passes: drain the removal queue,
// reconcile every discovered folder against the catalog, then enqueue
// removals for folders that disappeared. Independent galleries are processed
// in parallel; within one gallery all steps are strictly sequential.
type SyncEngine struct {
	catalog Catalog
	scanner Scanner
	logger  Logger
	clock   Clock
	opts    SyncOptions
	locks   keyedMutex
}

// NewSyncEngine creates a SyncEngine with the provided dependencies.
func NewSyncEngine(catalog Catalog, scanner Scanner, logger Logger, clock Clock, opts SyncOptions) *SyncEngine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &SyncEngine{
		catalog: catalog,
		scanner: scanner,
		logger:  logger,
		clock:   clock,
		opts:    opts,
	}
}

// LockGallery serializes mutations of one gallery's rows across components
// sharing this engine (sync workers, archive builders). The returned func
// releases the lock.
func (e *SyncEngine) LockGallery(name string) func() {
	return e.locks.lock(name)
}

// SyncPass runs one full synchronization pass. Per-gallery failures are
// collected into the report and never abort the pass; the returned error is
// reserved for environment-level failures (root unreadable, queue unreadable).
// Cancellation takes effect at gallery boundaries only.
func (e *SyncEngine) SyncPass(ctx context.Context) (*PassReport, error) {
	report := &PassReport{}

	// Deletions always precede insert/update within a pass, so a folder
	// removed and re-created under the same name is never half-applied.
	if err := e.DrainRemovals(ctx, report); err != nil {
		return report, err
	}

	folders, err := e.scanner.ScanGalleries(e.opts.Root)
	if err != nil {
		return report, fmt.Errorf("scanning download root: %w", err)
	}
	e.logger.Info("scan complete", "root", e.opts.Root, "folders", len(folders))

	units := e.order(folders)

	sem := make(chan struct{}, e.opts.Workers)
	var wg sync.WaitGroup
	for i, unit := range units {
		if ctx.Err() != nil {
			e.logger.Warn("pass cancelled", "remaining", len(units)-i)
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(unit syncUnit) {
			defer wg.Done()
			defer func() { <-sem }()
			e.syncOne(unit, report)
		}(unit)
	}
	wg.Wait()

	if err := e.enqueueMissing(folders, report); err != nil {
		return report, err
	}

	e.logger.Info("sync pass finished", "result", report.Summary())
	return report, nil
}

// DrainRemovals consumes the whole pending-removal queue. For each entry the
// gallery's dependent rows are deleted children-first and the entry is
// removed only after the parent row is confirmed gone. A failed entry stays
// queued for the next pass and does not block the others.
func (e *SyncEngine) DrainRemovals(ctx context.Context, report *PassReport) error {
	pending, err := e.catalog.PendingRemovals()
	if err != nil {
		return fmt.Errorf("reading removal queue: %w", err)
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			e.logger.Warn("drain cancelled", "pending", len(pending))
			return nil
		}
		unlock := e.locks.lock(entry.GalleryName)
		err := e.drainOne(entry.GalleryName)
		unlock()
		if err != nil {
			e.logger.Error("removal failed, entry stays queued",
				"gallery", entry.GalleryName, "error", err)
			report.AddFailure(entry.GalleryName, err)
			continue
		}
		report.AddDrained(1)
		e.logger.Info("gallery removed", "gallery", entry.GalleryName)
	}
	return nil
}

func (e *SyncEngine) drainOne(galleryName string) error {
	if err := e.catalog.DeleteGalleryData(galleryName); err != nil {
		return fmt.Errorf("deleting gallery rows: %w", err)
	}
	// Confirm the parent row is gone before dropping the ledger entry.
	g, err := e.catalog.FindGalleryByName(galleryName)
	if err != nil {
		return fmt.Errorf("confirming deletion: %w", err)
	}
	if g != nil {
		return fmt.Errorf("gallery row still present after deletion")
	}
	if err := e.catalog.DequeueRemoval(galleryName); err != nil {
		return fmt.Errorf("dequeueing removal: %w", err)
	}
	return nil
}

// syncUnit is one folder with its pre-parsed sidecar, or the parse error
// that will be reported for it.
type syncUnit struct {
	folder GalleryFolder
	meta   *Metadata
	pages  int
	err    error
}

// order parses sidecars up front (once, also needed for sort keys) and
// returns the units in configured ingest order.
func (e *SyncEngine) order(folders []GalleryFolder) []syncUnit {
	units := make([]syncUnit, 0, len(folders))
	for _, folder := range folders {
		unit := syncUnit{folder: folder}
		unit.meta, unit.err = ParseSidecar(folder.Path)
		if unit.err == nil {
			if files, err := e.scanner.ListFiles(folder.Path); err == nil {
				unit.pages = countImages(files)
			}
		}
		units = append(units, unit)
	}

	switch {
	case e.opts.Sort == SortUploadTime:
		sort.SliceStable(units, func(i, j int) bool {
			return sortTime(units[i], true).After(sortTime(units[j], true))
		})
	case e.opts.Sort == SortDownloadTime:
		sort.SliceStable(units, func(i, j int) bool {
			return sortTime(units[i], false).After(sortTime(units[j], false))
		})
	case strings.HasPrefix(e.opts.Sort, SortPages):
		base := defaultPagesBase
		if _, offset, found := strings.Cut(e.opts.Sort, "+"); found {
			if n, err := strconv.Atoi(offset); err == nil && n >= 1 {
				base = n
			}
		}
		sort.SliceStable(units, func(i, j int) bool {
			return abs(units[i].pages-base) < abs(units[j].pages-base)
		})
	default:
		sort.SliceStable(units, func(i, j int) bool {
			return units[i].folder.Name < units[j].folder.Name
		})
	}
	return units
}

func sortTime(u syncUnit, upload bool) time.Time {
	if u.meta == nil {
		return time.Time{}
	}
	if upload {
		return u.meta.UploadTime
	}
	return u.meta.DownloadTime
}

// syncOne reconciles a single folder. All failure paths land in the report.
func (e *SyncEngine) syncOne(unit syncUnit, report *PassReport) {
	name := unit.folder.Name

	if unit.err != nil {
		e.logger.Error("gallery sync failed", "gallery", name, "error", unit.err)
		report.AddFailure(name, unit.err)
		return
	}

	unlock := e.locks.lock(name)
	defer unlock()

	skipped, err := e.ingest(unit)
	switch {
	case err != nil:
		e.logger.Error("gallery sync failed", "gallery", name, "error", err)
		report.AddFailure(name, err)
	case skipped:
		report.AddSkipped(name)
	default:
		report.AddSynced(name)
	}
}

// ingest performs the actual reconciliation of one folder against the
// catalog. Returns skipped=true when the gid was intentionally purged.
func (e *SyncEngine) ingest(unit syncUnit) (skipped bool, err error) {
	folder, meta := unit.folder, unit.meta

	gid, err := ParseGID(folder.Name)
	if err != nil {
		return false, err
	}

	removed, err := e.catalog.IsGIDRemoved(gid)
	if err != nil {
		return false, err
	}
	if removed {
		// Operator must clear the removal record to re-admit this gid.
		e.logger.Warn("skipping purged gallery", "gallery", folder.Name, "gid", gid)
		return true, nil
	}

	sidecarDigests, err := HashFile(filepath.Join(folder.Path, SidecarName))
	if err != nil {
		return false, err
	}
	infoDigest := sidecarDigests[ComparisonAlgorithm]

	existing, err := e.catalog.FindGalleryByName(folder.Name)
	if err != nil {
		return false, err
	}
	metaChanged := existing == nil || existing.InfoDigest != infoDigest

	files, err := e.scanner.ListFiles(folder.Path)
	if err != nil {
		return false, fmt.Errorf("%w: listing %s: %v", ErrIOUnavailable, folder.Path, err)
	}

	// Write-ahead guard: if this rewrite dies half-way the entry stays
	// queued and the next pass's drain cleans the partial rows up.
	if metaChanged {
		if err := e.catalog.EnqueueRemoval(folder.Name, e.clock.Now()); err != nil {
			return false, fmt.Errorf("queueing rewrite guard: %w", err)
		}
	}

	galleryID, err := e.upsertGallery(existing, folder, meta, gid, infoDigest, metaChanged)
	if err != nil {
		return false, err
	}

	if metaChanged {
		if err := e.catalog.ReplaceTags(galleryID, meta.Tags); err != nil {
			return false, fmt.Errorf("replacing tags: %w", err)
		}
	}

	if err := e.refreshFiles(galleryID, folder, files, sidecarDigests); err != nil {
		return false, err
	}

	if metaChanged {
		if err := e.catalog.DequeueRemoval(folder.Name); err != nil {
			return false, fmt.Errorf("releasing rewrite guard: %w", err)
		}
		e.logger.Info("gallery cataloged", "gallery", folder.Name, "gid", gid,
			"files", len(files), "tags", len(meta.Tags))
	} else {
		e.logger.Debug("gallery unchanged", "gallery", folder.Name, "gid", gid)
	}
	return false, nil
}

func (e *SyncEngine) upsertGallery(existing *Gallery, folder GalleryFolder, meta *Metadata, gid int64, infoDigest string, metaChanged bool) (int64, error) {
	if existing != nil && !metaChanged {
		return existing.ID, nil
	}

	g := &Gallery{
		Name:          folder.Name,
		GID:           gid,
		Title:         meta.Title,
		UploadAccount: meta.UploadAccount,
		Comment:       meta.Comment,
		UploadTime:    meta.UploadTime,
		DownloadTime:  meta.DownloadTime,
		AccessTime:    meta.DownloadTime,
		ModifiedTime:  e.clock.Now(),
		InfoDigest:    infoDigest,
	}
	if existing != nil {
		g.ID = existing.ID
		g.AccessTime = existing.AccessTime
	}
	id, err := e.catalog.UpsertGallery(g)
	if err != nil {
		return 0, fmt.Errorf("upserting gallery: %w", err)
	}
	return id, nil
}

// refreshFiles upserts file rows and recomputes digests only for files whose
// size or mtime changed; digests are immutable otherwise. Rows for files no
// longer on disk are pruned.
func (e *SyncEngine) refreshFiles(galleryID int64, folder GalleryFolder, files []FileStat, sidecarDigests map[string]string) error {
	known, err := e.catalog.FilesForGallery(galleryID)
	if err != nil {
		return fmt.Errorf("listing cataloged files: %w", err)
	}
	byName := make(map[string]*File, len(known))
	for _, f := range known {
		byName[f.Name] = f
	}

	keep := make([]string, 0, len(files))
	for _, stat := range files {
		keep = append(keep, stat.Name)

		prev := byName[stat.Name]
		if prev != nil && prev.Size == stat.Size && prev.ModifiedTime.Equal(stat.ModifiedTime) {
			continue
		}

		var digests map[string]string
		if stat.Name == SidecarName {
			digests = sidecarDigests
		} else {
			digests, err = HashFile(filepath.Join(folder.Path, stat.Name))
			if err != nil {
				return err
			}
		}

		row := &File{GalleryID: galleryID, Name: stat.Name, Size: stat.Size, ModifiedTime: stat.ModifiedTime}
		if prev != nil {
			row.ID = prev.ID
		}
		fileID, err := e.catalog.UpsertFile(row)
		if err != nil {
			return fmt.Errorf("upserting file %s: %w", stat.Name, err)
		}
		if err := e.catalog.SetFileHashes(fileID, digests); err != nil {
			return fmt.Errorf("recording digests for %s: %w", stat.Name, err)
		}
	}

	if err := e.catalog.PruneFiles(galleryID, keep); err != nil {
		return fmt.Errorf("pruning vanished files: %w", err)
	}
	return nil
}

// enqueueMissing queues a pending removal for every cataloged gallery whose
// folder is gone from disk. Deletion itself always happens through the
// queue, in the drain step of a later pass, keeping removal a single path.
func (e *SyncEngine) enqueueMissing(folders []GalleryFolder, report *PassReport) error {
	present := make(map[string]bool, len(folders))
	for _, f := range folders {
		present[f.Name] = true
	}

	names, err := e.catalog.ListGalleryNames()
	if err != nil {
		return fmt.Errorf("listing cataloged galleries: %w", err)
	}
	for _, name := range names {
		if present[name] {
			continue
		}
		if err := e.catalog.EnqueueRemoval(name, e.clock.Now()); err != nil {
			report.AddFailure(name, fmt.Errorf("queueing removal: %w", err))
			continue
		}
		e.logger.Info("gallery vanished, removal queued", "gallery", name)
	}
	return nil
}

// RemoveGID records the gid as purged and queues its gallery, if cataloged,
// for deletion on the next drain.
func (e *SyncEngine) RemoveGID(gid int64) error {
	if err := e.catalog.MarkGIDRemoved(gid, e.clock.Now()); err != nil {
		return fmt.Errorf("marking gid removed: %w", err)
	}
	g, err := e.catalog.FindGalleryByGID(gid)
	if err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	if err := e.catalog.EnqueueRemoval(g.Name, e.clock.Now()); err != nil {
		return fmt.Errorf("queueing removal: %w", err)
	}
	e.logger.Info("gid purged, removal queued", "gid", gid, "gallery", g.Name)
	return nil
}

// IsMetadataError reports whether err belongs to the sidecar error family.
func IsMetadataError(err error) bool {
	var me *MetadataError
	return errors.Is(err, ErrMetadataMissing) || errors.As(err, &me)
}

func countImages(files []FileStat) int {
	n := 0
	for _, f := range files {
		if IsImageName(f.Name) {
			n++
		}
	}
	return n
}

// IsImageName reports whether the file name carries a recognized image
// extension.
func IsImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// keyedMutex serializes work per gallery name.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
