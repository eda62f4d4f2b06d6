package app

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"h2hcat/internal/archive"
	"h2hcat/internal/catalog"
	"h2hcat/internal/config"
	"h2hcat/internal/database"
	"h2hcat/internal/fsutil"
	"h2hcat/internal/komga"
	"h2hcat/internal/store"
)

// CatApp is the application layer between the CLI and the engine/builder.
// It constructs all dependencies from config, exposes the high-level
// operations the commands call, and manages the DB lifecycle on Close.
type CatApp struct {
	cfg      *config.Config
	catalog  catalog.Catalog
	engine   *catalog.SyncEngine
	builder  *archive.Builder
	notifier catalog.Notifier
	logger   catalog.Logger
	logFile  *os.File
}

// NewCatApp creates a fully wired CatApp from the given config.
// The caller must call Close when done.
func NewCatApp(ctx context.Context, cfg *config.Config) (*CatApp, error) {
	opID := uuid.NewString()
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	cat, err := database.Open(cfg.Database.Path)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}

	archiveStore, err := store.NewFromConfig(ctx, cfg.Store)
	if err != nil {
		cat.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating archive store: %w", err)
	}
	if err := archiveStore.ValidateSetup(ctx); err != nil {
		cat.Close()
		logFile.Close()
		return nil, fmt.Errorf("validating archive store: %w", err)
	}

	var notifier catalog.Notifier = catalog.NopNotifier{}
	if cfg.Komga.BaseURL != "" {
		notifier, err = komga.NewClient(cfg.Komga.BaseURL, cfg.Komga.LibraryID,
			cfg.Komga.Username, cfg.Komga.Password, logger)
		if err != nil {
			cat.Close()
			logFile.Close()
			return nil, fmt.Errorf("creating komga notifier: %w", err)
		}
	}

	clock := catalog.RealClock{}
	engine := catalog.NewSyncEngine(cat, fsutil.NewOSScanner(), logger, clock, catalog.SyncOptions{
		Root:    cfg.Scan.DownloadPath,
		Workers: cfg.Scan.Workers,
		Sort:    cfg.Scan.Sort,
	})
	learner := catalog.NewJunkLearner(cat, clock)
	builder := archive.NewBuilder(cat, archiveStore, learner, logger, clock, archive.Options{
		DownloadRoot: cfg.Scan.DownloadPath,
		TmpDir:       cfg.Archive.TmpDir,
		Grouping:     cfg.Archive.Grouping,
		MaxSize:      cfg.Archive.MaxSize,
	})

	return &CatApp{
		cfg:      cfg,
		catalog:  cat,
		engine:   engine,
		builder:  builder,
		notifier: notifier,
		logger:   logger,
		logFile:  logFile,
	}, nil
}

// Sync runs one full synchronization pass over the download root.
func (a *CatApp) Sync(ctx context.Context) (*catalog.PassReport, error) {
	return a.engine.SyncPass(ctx)
}

// Archive builds or refreshes the CBZ archive of every cataloged gallery and,
// when any archive was published, asks the media server to rescan.
func (a *CatApp) Archive(ctx context.Context) (*catalog.PassReport, error) {
	report, err := a.builder.BuildAll(ctx)
	if err != nil {
		return report, err
	}
	if len(report.Synced()) > 0 {
		if err := a.notifier.RefreshLibrary(ctx); err != nil {
			a.logger.Error("media server notification failed", "error", err)
		}
	}
	return report, nil
}

// Run performs a sync pass followed by an archive pass.
func (a *CatApp) Run(ctx context.Context) (*catalog.PassReport, *catalog.PassReport, error) {
	syncReport, err := a.Sync(ctx)
	if err != nil {
		return syncReport, nil, err
	}
	archiveReport, err := a.Archive(ctx)
	return syncReport, archiveReport, err
}

// RemoveGID purges the gid: its gallery, if cataloged, is queued for deletion
// and the gid is blocked from re-ingestion.
func (a *CatApp) RemoveGID(gid int64) error {
	return a.engine.RemoveGID(gid)
}

// ClearRemovedGID re-admits a purged gid for ingestion.
func (a *CatApp) ClearRemovedGID(gid int64) error {
	return a.catalog.ClearRemovedGID(gid)
}

// Stats returns catalog-wide row counts.
func (a *CatApp) Stats() (*catalog.Stats, error) {
	return a.catalog.Stats()
}

// PendingRemovals returns the queued removal entries, oldest first.
func (a *CatApp) PendingRemovals() ([]catalog.PendingRemoval, error) {
	return a.catalog.PendingRemovals()
}

// Close closes the catalog database and the log file.
func (a *CatApp) Close() error {
	var firstErr error
	if err := a.catalog.Close(); err != nil {
		firstErr = fmt.Errorf("closing catalog: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
