// Package testutil provides shared test helpers: an in-memory catalog with
// schema applied, a stub clock, and a recording notifier.
package testutil

import (
	"testing"

	"h2hcat/internal/catalog"
	"h2hcat/internal/database"
	"h2hcat/internal/database/migrations"
)

// NewTestCatalog creates an in-memory SQLite catalog with all migrations
// applied. The catalog is automatically closed when the test completes.
func NewTestCatalog(t *testing.T) catalog.Catalog {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := migrations.Up(sqlDB); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply migrations: %v", err)
	}

	cat := database.NewFromDB(sqlDB)

	t.Cleanup(func() {
		cat.Close()
	})

	return cat
}
