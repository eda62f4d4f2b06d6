package main

import (
	"fmt"
	"os"
	"strconv"

	"h2hcat/internal/app"
	"h2hcat/internal/catalog"
	"h2hcat/internal/config"
	"h2hcat/internal/database"
	"h2hcat/internal/database/migrations"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a CatApp. The caller must defer a.Close().
func newApp(cmd *cobra.Command) (*app.CatApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewCatApp(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

func printReport(label string, report *catalog.PassReport) {
	fmt.Printf("%s: %s\n", label, report.Summary())
	for _, f := range report.Failures() {
		fmt.Printf("  failed: %s\n", f.Error())
	}
}

var rootCmd = &cobra.Command{
	Use:   "h2hcat",
	Short: "Gallery catalog and CBZ archive builder",
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the download root into the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Sync(cmd.Context())
		if report != nil {
			printReport("sync", report)
		}
		return err
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Build CBZ archives for cataloged galleries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Archive(cmd.Context())
		if report != nil {
			printReport("archive", report)
		}
		return err
	},
}

// run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a sync pass followed by an archive pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		syncReport, archiveReport, err := a.Run(cmd.Context())
		if syncReport != nil {
			printReport("sync", syncReport)
		}
		if archiveReport != nil {
			printReport("archive", archiveReport)
		}
		return err
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog row counts and the pending removal queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("Galleries:        %d\n", stats.Galleries)
		fmt.Printf("Files:            %d\n", stats.Files)
		fmt.Printf("Tags:             %d\n", stats.Tags)
		fmt.Printf("Archive builds:   %d\n", stats.ArchiveBuilds)
		fmt.Printf("Junk signatures:  %d\n", stats.JunkSignatures)
		fmt.Printf("Removed gids:     %d\n", stats.RemovedGIDs)
		fmt.Printf("Pending removals: %d\n", stats.PendingRemovals)

		pending, err := a.PendingRemovals()
		if err != nil {
			return err
		}
		for _, p := range pending {
			fmt.Printf("  queued %s  %s\n", p.QueuedAt.Format("2006-01-02 15:04:05"), p.GalleryName)
		}
		return nil
	},
}

// gid command
var gidCmd = &cobra.Command{
	Use:   "gid",
	Short: "Manage removed gallery ids",
}

var gidRemoveCmd = &cobra.Command{
	Use:   "remove GID",
	Short: "Purge a gallery id and queue its gallery for removal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid gid %q: %w", args[0], err)
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RemoveGID(gid); err != nil {
			return err
		}
		fmt.Printf("Gid %d purged; removal applies on the next sync\n", gid)
		return nil
	},
}

var gidClearCmd = &cobra.Command{
	Use:   "clear GID",
	Short: "Re-admit a purged gallery id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid gid %q: %w", args[0], err)
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ClearRemovedGID(gid); err != nil {
			return err
		}
		fmt.Printf("Gid %d cleared\n", gid)
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Database:      %s\n", cfg.Database.Path)
		fmt.Printf("Download Path: %s\n", cfg.Scan.DownloadPath)
		fmt.Printf("Workers:       %d\n", cfg.Scan.Workers)
		fmt.Printf("Sort:          %s\n", cfg.Scan.Sort)
		fmt.Printf("Grouping:      %s\n", cfg.Archive.Grouping)
		fmt.Printf("Store:         %s\n", cfg.Store.Type)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the catalog database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		db, err := database.OpenConnection(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		if err := migrations.Up(db); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
		fmt.Println("Database schema is up to date")
		return nil
	},
}

func init() {
	// gid subcommands
	gidCmd.AddCommand(gidRemoveCmd)
	gidCmd.AddCommand(gidClearCmd)

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)

	// root commands
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(gidCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
}
