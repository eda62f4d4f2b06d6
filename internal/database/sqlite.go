package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"h2hcat/internal/catalog"
	"h2hcat/internal/database/migrations"
)

// SQLiteCatalog implements catalog.Catalog on a single SQLite database.
type SQLiteCatalog struct {
	db   *sql.DB
	path string
}

var _ catalog.Catalog = (*SQLiteCatalog)(nil)

// Open opens (and migrates) the catalog database at path.
// path can be ":memory:" for an in-memory catalog.
func Open(path string) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating catalog: %w", err)
	}
	return &SQLiteCatalog{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the catalog relies on. Exported for tools and tests that need a properly
// configured connection without migrations.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}
	return db, nil
}

// NewFromDB wraps an existing connection. The caller keeps ownership of db's
// lifecycle configuration; Close still closes it.
func NewFromDB(db *sql.DB) *SQLiteCatalog {
	return &SQLiteCatalog{db: db}
}

func (c *SQLiteCatalog) Close() error { return c.db.Close() }

// mapConstraint rewraps unique-constraint violations as catalog.ErrSchemaConflict.
func mapConstraint(err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", catalog.ErrSchemaConflict, err)
	}
	return err
}

// Gallery operations

const galleryColumns = `id, name, gid, title, upload_account, comment,
	upload_time, download_time, modified_time, access_time, info_digest`

func scanGallery(row interface{ Scan(...any) error }) (*catalog.Gallery, error) {
	var g catalog.Gallery
	var uploadTime, downloadTime, modifiedTime, accessTime sql.NullTime
	err := row.Scan(&g.ID, &g.Name, &g.GID, &g.Title, &g.UploadAccount, &g.Comment,
		&uploadTime, &downloadTime, &modifiedTime, &accessTime, &g.InfoDigest)
	if err != nil {
		return nil, err
	}
	g.UploadTime = uploadTime.Time
	g.DownloadTime = downloadTime.Time
	g.ModifiedTime = modifiedTime.Time
	g.AccessTime = accessTime.Time
	return &g, nil
}

func (c *SQLiteCatalog) FindGalleryByName(name string) (*catalog.Gallery, error) {
	row := c.db.QueryRow(`SELECT `+galleryColumns+` FROM galleries WHERE name = ?`, name)
	g, err := scanGallery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding gallery by name: %w", err)
	}
	return g, nil
}

func (c *SQLiteCatalog) FindGalleryByGID(gid int64) (*catalog.Gallery, error) {
	row := c.db.QueryRow(`SELECT `+galleryColumns+` FROM galleries WHERE gid = ?`, gid)
	g, err := scanGallery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding gallery by gid: %w", err)
	}
	return g, nil
}

func (c *SQLiteCatalog) ListGalleryNames() ([]string, error) {
	rows, err := c.db.Query(`SELECT name FROM galleries ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing gallery names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c *SQLiteCatalog) ListGalleries() ([]*catalog.Gallery, error) {
	rows, err := c.db.Query(`SELECT ` + galleryColumns + ` FROM galleries ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing galleries: %w", err)
	}
	defer rows.Close()

	var galleries []*catalog.Gallery
	for rows.Next() {
		g, err := scanGallery(rows)
		if err != nil {
			return nil, err
		}
		galleries = append(galleries, g)
	}
	return galleries, rows.Err()
}

func (c *SQLiteCatalog) UpsertGallery(g *catalog.Gallery) (int64, error) {
	_, err := c.db.Exec(`
		INSERT INTO galleries
			(name, gid, title, upload_account, comment,
			 upload_time, download_time, modified_time, access_time, info_digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			gid = excluded.gid,
			title = excluded.title,
			upload_account = excluded.upload_account,
			comment = excluded.comment,
			upload_time = excluded.upload_time,
			download_time = excluded.download_time,
			modified_time = excluded.modified_time,
			access_time = excluded.access_time,
			info_digest = excluded.info_digest`,
		g.Name, g.GID, g.Title, g.UploadAccount, g.Comment,
		g.UploadTime, g.DownloadTime, g.ModifiedTime, g.AccessTime, g.InfoDigest)
	if err != nil {
		// The name conflict is absorbed above; what remains is the gid
		// uniqueness constraint, i.e. a gid collision across folders.
		return 0, mapConstraint(err)
	}

	var id int64
	if err := c.db.QueryRow(`SELECT id FROM galleries WHERE name = ?`, g.Name).Scan(&id); err != nil {
		return 0, fmt.Errorf("reading gallery id: %w", err)
	}
	return id, nil
}

func (c *SQLiteCatalog) ReplaceTags(galleryID int64, tags []catalog.Tag) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tags WHERE gallery_id = ?`, galleryID); err != nil {
		return fmt.Errorf("clearing tags: %w", err)
	}
	for _, tag := range tags {
		if _, err := tx.Exec(`INSERT INTO tags (gallery_id, category, value) VALUES (?, ?, ?)`,
			galleryID, tag.Category, tag.Value); err != nil {
			return mapConstraint(fmt.Errorf("inserting tag %s:%s: %w", tag.Category, tag.Value, err))
		}
	}
	return tx.Commit()
}

func (c *SQLiteCatalog) TagsForGallery(galleryID int64) ([]catalog.Tag, error) {
	rows, err := c.db.Query(
		`SELECT category, value FROM tags WHERE gallery_id = ? ORDER BY category, value`, galleryID)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var tags []catalog.Tag
	for rows.Next() {
		var t catalog.Tag
		if err := rows.Scan(&t.Category, &t.Value); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// File operations

func (c *SQLiteCatalog) FilesForGallery(galleryID int64) ([]*catalog.File, error) {
	rows, err := c.db.Query(
		`SELECT id, gallery_id, name, size, modified_time FROM files
		 WHERE gallery_id = ? ORDER BY name`, galleryID)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	var files []*catalog.File
	for rows.Next() {
		var f catalog.File
		var modified sql.NullTime
		if err := rows.Scan(&f.ID, &f.GalleryID, &f.Name, &f.Size, &modified); err != nil {
			return nil, err
		}
		f.ModifiedTime = modified.Time
		files = append(files, &f)
	}
	return files, rows.Err()
}

func (c *SQLiteCatalog) UpsertFile(f *catalog.File) (int64, error) {
	_, err := c.db.Exec(`
		INSERT INTO files (gallery_id, name, size, modified_time)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(gallery_id, name) DO UPDATE SET
			size = excluded.size,
			modified_time = excluded.modified_time`,
		f.GalleryID, f.Name, f.Size, f.ModifiedTime)
	if err != nil {
		return 0, mapConstraint(err)
	}

	var id int64
	err = c.db.QueryRow(`SELECT id FROM files WHERE gallery_id = ? AND name = ?`,
		f.GalleryID, f.Name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("reading file id: %w", err)
	}
	return id, nil
}

func (c *SQLiteCatalog) SetFileHashes(fileID int64, digests map[string]string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM file_hashes WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("clearing digests: %w", err)
	}
	for algorithm, digest := range digests {
		if _, err := tx.Exec(
			`INSERT INTO file_hashes (file_id, algorithm, digest) VALUES (?, ?, ?)`,
			fileID, algorithm, digest); err != nil {
			return fmt.Errorf("inserting %s digest: %w", algorithm, err)
		}
	}
	return tx.Commit()
}

func (c *SQLiteCatalog) FileDigest(galleryName, fileName, algorithm string) (string, error) {
	var digest string
	err := c.db.QueryRow(`
		SELECT digest FROM files_hashs
		WHERE gallery_name = ? AND file_name = ? AND algorithm = ?`,
		galleryName, fileName, algorithm).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading digest: %w", err)
	}
	return digest, nil
}

func (c *SQLiteCatalog) PruneFiles(galleryID int64, keep []string) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",")
	query := `DELETE FROM files WHERE gallery_id = ?`
	args := []any{galleryID}
	if len(keep) > 0 {
		query += ` AND name NOT IN (` + placeholders + `)`
		for _, name := range keep {
			args = append(args, name)
		}
	}
	if _, err := c.db.Exec(query, args...); err != nil {
		return fmt.Errorf("pruning files: %w", err)
	}
	return nil
}

// Denormalized views

func (c *SQLiteCatalog) GalleryInfos() ([]*catalog.GalleryInfo, error) {
	rows, err := c.db.Query(`SELECT ` + galleryColumns + `, file_count, tag_count
		FROM galleries_infos ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("reading galleries_infos: %w", err)
	}
	defer rows.Close()

	var infos []*catalog.GalleryInfo
	for rows.Next() {
		var info catalog.GalleryInfo
		var uploadTime, downloadTime, modifiedTime, accessTime sql.NullTime
		err := rows.Scan(&info.ID, &info.Name, &info.GID, &info.Title,
			&info.UploadAccount, &info.Comment,
			&uploadTime, &downloadTime, &modifiedTime, &accessTime,
			&info.InfoDigest, &info.FileCount, &info.TagCount)
		if err != nil {
			return nil, err
		}
		info.UploadTime = uploadTime.Time
		info.DownloadTime = downloadTime.Time
		info.ModifiedTime = modifiedTime.Time
		info.AccessTime = accessTime.Time
		infos = append(infos, &info)
	}
	return infos, rows.Err()
}

func (c *SQLiteCatalog) FileHashes(galleryName string) ([]catalog.FileHash, error) {
	rows, err := c.db.Query(`
		SELECT gallery_name, file_name, algorithm, digest FROM files_hashs
		WHERE gallery_name = ? ORDER BY file_name, algorithm`, galleryName)
	if err != nil {
		return nil, fmt.Errorf("reading files_hashs: %w", err)
	}
	defer rows.Close()

	var hashes []catalog.FileHash
	for rows.Next() {
		var h catalog.FileHash
		if err := rows.Scan(&h.GalleryName, &h.FileName, &h.Algorithm, &h.Digest); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// Removal queue

func (c *SQLiteCatalog) EnqueueRemoval(galleryName string, at time.Time) error {
	_, err := c.db.Exec(`
		INSERT INTO pending_removals (gallery_name, queued_at) VALUES (?, ?)
		ON CONFLICT(gallery_name) DO NOTHING`, galleryName, at)
	if err != nil {
		return fmt.Errorf("queueing removal: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) DequeueRemoval(galleryName string) error {
	if _, err := c.db.Exec(`DELETE FROM pending_removals WHERE gallery_name = ?`, galleryName); err != nil {
		return fmt.Errorf("dequeueing removal: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) PendingRemovals() ([]catalog.PendingRemoval, error) {
	rows, err := c.db.Query(`SELECT gallery_name, queued_at FROM pending_removals ORDER BY queued_at`)
	if err != nil {
		return nil, fmt.Errorf("listing pending removals: %w", err)
	}
	defer rows.Close()

	var pending []catalog.PendingRemoval
	for rows.Next() {
		var p catalog.PendingRemoval
		if err := rows.Scan(&p.GalleryName, &p.QueuedAt); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

func (c *SQLiteCatalog) DeleteGalleryData(galleryName string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	// Children before parent. The cascade constraints would get this right
	// on their own, but the explicit order keeps deletion one well-tested
	// path regardless of how the constraints are configured.
	if _, err := tx.Exec(`
		DELETE FROM file_hashes WHERE file_id IN (
			SELECT f.id FROM files f
			JOIN galleries g ON g.id = f.gallery_id
			WHERE g.name = ?)`, galleryName); err != nil {
		return fmt.Errorf("deleting digests: %w", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM files WHERE gallery_id IN (
			SELECT id FROM galleries WHERE name = ?)`, galleryName); err != nil {
		return fmt.Errorf("deleting files: %w", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM tags WHERE gallery_id IN (
			SELECT id FROM galleries WHERE name = ?)`, galleryName); err != nil {
		return fmt.Errorf("deleting tags: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM galleries WHERE name = ?`, galleryName); err != nil {
		return fmt.Errorf("deleting gallery: %w", err)
	}
	return tx.Commit()
}

// Removed GIDs

func (c *SQLiteCatalog) IsGIDRemoved(gid int64) (bool, error) {
	var one int
	err := c.db.QueryRow(`SELECT 1 FROM removed_gids WHERE gid = ?`, gid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking removed gid: %w", err)
	}
	return true, nil
}

func (c *SQLiteCatalog) MarkGIDRemoved(gid int64, at time.Time) error {
	_, err := c.db.Exec(`
		INSERT INTO removed_gids (gid, removed_at) VALUES (?, ?)
		ON CONFLICT(gid) DO NOTHING`, gid, at)
	if err != nil {
		return fmt.Errorf("marking gid removed: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) ClearRemovedGID(gid int64) error {
	if _, err := c.db.Exec(`DELETE FROM removed_gids WHERE gid = ?`, gid); err != nil {
		return fmt.Errorf("clearing removed gid: %w", err)
	}
	return nil
}

// Archive build manifests and junk signatures

func (c *SQLiteCatalog) RecordArchiveBuild(b *catalog.ArchiveBuild, members []catalog.BuildMember) (int64, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO archive_builds (gid, gallery_name, archive_path, built_at)
		VALUES (?, ?, ?, ?)`, b.GID, b.GalleryName, b.ArchivePath, b.BuiltAt)
	if err != nil {
		return 0, fmt.Errorf("recording build: %w", err)
	}
	buildID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, m := range members {
		if _, err := tx.Exec(`
			INSERT INTO archive_build_files (build_id, file_name, digest)
			VALUES (?, ?, ?)`, buildID, m.FileName, m.Digest); err != nil {
			return 0, fmt.Errorf("recording build member %s: %w", m.FileName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return buildID, nil
}

func (c *SQLiteCatalog) BuildHistory(gid int64) ([]*catalog.ArchiveBuild, error) {
	rows, err := c.db.Query(`
		SELECT id, gid, gallery_name, archive_path, built_at
		FROM archive_builds WHERE gid = ? ORDER BY id`, gid)
	if err != nil {
		return nil, fmt.Errorf("reading build history: %w", err)
	}
	defer rows.Close()

	var builds []*catalog.ArchiveBuild
	for rows.Next() {
		var b catalog.ArchiveBuild
		if err := rows.Scan(&b.ID, &b.GID, &b.GalleryName, &b.ArchivePath, &b.BuiltAt); err != nil {
			return nil, err
		}
		builds = append(builds, &b)
	}
	return builds, rows.Err()
}

func (c *SQLiteCatalog) LatestBuild(gid int64) (*catalog.ArchiveBuild, error) {
	row := c.db.QueryRow(`
		SELECT id, gid, gallery_name, archive_path, built_at
		FROM archive_builds WHERE gid = ? ORDER BY id DESC LIMIT 1`, gid)
	var b catalog.ArchiveBuild
	err := row.Scan(&b.ID, &b.GID, &b.GalleryName, &b.ArchivePath, &b.BuiltAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading latest build: %w", err)
	}
	return &b, nil
}

func (c *SQLiteCatalog) BuildDigests(buildID int64) ([]string, error) {
	rows, err := c.db.Query(
		`SELECT digest FROM archive_build_files WHERE build_id = ? ORDER BY file_name`, buildID)
	if err != nil {
		return nil, fmt.Errorf("reading build digests: %w", err)
	}
	defer rows.Close()

	var digests []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		digests = append(digests, d)
	}
	return digests, rows.Err()
}

func (c *SQLiteCatalog) AddJunkSignatures(digests []string, at time.Time) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, digest := range digests {
		if _, err := tx.Exec(`
			INSERT INTO junk_signatures (digest, learned_at) VALUES (?, ?)
			ON CONFLICT(digest) DO NOTHING`, digest, at); err != nil {
			return fmt.Errorf("inserting junk signature: %w", err)
		}
	}
	return tx.Commit()
}

func (c *SQLiteCatalog) JunkSignatures() (map[string]bool, error) {
	rows, err := c.db.Query(`SELECT digest FROM junk_signatures`)
	if err != nil {
		return nil, fmt.Errorf("reading junk signatures: %w", err)
	}
	defer rows.Close()

	junk := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		junk[d] = true
	}
	return junk, rows.Err()
}

func (c *SQLiteCatalog) Stats() (*catalog.Stats, error) {
	var stats catalog.Stats
	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM galleries`, &stats.Galleries},
		{`SELECT COUNT(*) FROM files`, &stats.Files},
		{`SELECT COUNT(*) FROM tags`, &stats.Tags},
		{`SELECT COUNT(*) FROM pending_removals`, &stats.PendingRemovals},
		{`SELECT COUNT(*) FROM removed_gids`, &stats.RemovedGIDs},
		{`SELECT COUNT(*) FROM junk_signatures`, &stats.JunkSignatures},
		{`SELECT COUNT(*) FROM archive_builds`, &stats.ArchiveBuilds},
	}
	for _, count := range counts {
		if err := c.db.QueryRow(count.query).Scan(count.dest); err != nil {
			return nil, fmt.Errorf("counting rows: %w", err)
		}
	}
	return &stats, nil
}
