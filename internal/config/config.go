package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for h2hcat.
type Config struct {
	LogDir   string         `toml:"log_dir"`
	Database DatabaseConfig `toml:"database"`
	Scan     ScanConfig     `toml:"scan"`
	Archive  ArchiveConfig  `toml:"archive"`
	Store    StoreConfig    `toml:"store"`
	Komga    KomgaConfig    `toml:"komga"`
}

// DatabaseConfig locates the catalog database.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// ScanConfig controls gallery discovery and synchronization.
type ScanConfig struct {
	DownloadPath string `toml:"download_path"`
	Workers      int    `toml:"workers"` // bounded worker pool size; defaults to 1
	Sort         string `toml:"sort"`    // "upload_time", "download_time", "pages" or "pages+N"
}

// ArchiveConfig controls archive building.
type ArchiveConfig struct {
	Grouping string `toml:"grouping"` // "flat", "date-yyyy", "date-yyyy-mm" or "date-yyyy-mm-dd"
	MaxSize  int    `toml:"max_size"` // max smaller image dimension in pixels; 0 disables resizing
	TmpDir   string `toml:"tmp_dir"`  // scratch space for archive assembly
}

// StoreConfig represents configuration for the archive output backend.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type StoreConfig struct {
	Type string `toml:"type"` // "filesystem", "s3", or "memory"

	// Filesystem-specific field (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
}

// KomgaConfig points at the media server notified after publishes.
// An empty BaseURL disables notification.
type KomgaConfig struct {
	BaseURL   string `toml:"base_url"`
	LibraryID string `toml:"library_id"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// NewConfig creates a Config with default values rooted under baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		LogDir: filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Path: filepath.Join(baseDir, "h2hcat.db"),
		},
		Scan: ScanConfig{
			Workers: 4,
			Sort:    "pages",
		},
		Archive: ArchiveConfig{
			Grouping: "flat",
			TmpDir:   filepath.Join(baseDir, "tmp"),
		},
		Store: StoreConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "cbz"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path.
// Refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
