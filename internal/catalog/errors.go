package catalog

import (
	"errors"
	"fmt"
)

// ErrIOUnavailable marks a source read failure (open or mid-stream).
// Per-file: it fails that gallery's sync, never the whole pass.
var ErrIOUnavailable = errors.New("source unavailable")

// ErrMetadataMissing marks a gallery folder without a sidecar file.
// Policy for handling it lives in the sync engine, not the parser.
var ErrMetadataMissing = errors.New("gallery metadata missing")

// ErrSchemaConflict marks a unique-constraint violation during upsert,
// typically a GID collision across differently-named folders. Fatal for
// that gallery's sync, not the pass.
var ErrSchemaConflict = errors.New("schema conflict")

// ErrArchiveWrite marks an archive destination that could not be created
// or a member that could not be read. A partial archive is never left at
// the final path.
var ErrArchiveWrite = errors.New("archive write failed")

// MetadataError reports a malformed sidecar field. It is surfaced with the
// offending folder and field, never silently defaulted, because upload and
// download times drive archive grouping and ordering.
type MetadataError struct {
	Folder string
	Field  string
	Err    error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("malformed metadata in %s: field %q: %v", e.Folder, e.Field, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }
