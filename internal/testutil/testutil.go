// Package testutil provides test utilities and helpers.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/channel-scout/internal/models"
	"github.com/channel-scout/internal/storage/sqlite"
)

// NewRepository opens a migrated SQLite repository in a temporary directory.
// The database is closed when the test finishes.
func NewRepository(t *testing.T) *sqlite.Repository {
	t.Helper()

	repo, err := sqlite.New(filepath.Join(t.TempDir(), "scout_test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := repo.Migrate(); err != nil {
		repo.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// CreateKeyword creates a keyword with the given status and returns it.
func CreateKeyword(t *testing.T, repo *sqlite.Repository, text string, status models.KeywordStatus) *models.Keyword {
	t.Helper()

	kw := &models.Keyword{Text: text, Status: status}
	if err := repo.CreateKeyword(context.Background(), kw); err != nil {
		t.Fatalf("failed to create test keyword %q: %v", text, err)
	}
	return kw
}
