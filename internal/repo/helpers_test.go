package repo

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-filebot-backend/internal/domain"
)

// newTestDB opens a file-backed SQLite database in t.TempDir() and migrates
// the given models. File-backed databases keep every pooled connection on
// the same schema.
func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func allModels() []any {
	return []any{
		&domain.User{}, &domain.SubscribeChannel{}, &domain.Location{}, &domain.SearchQuery{},
		&domain.Broadcast{}, &domain.BroadcastRecipient{},
		&domain.Document{}, &domain.Product{}, &domain.DocumentError{},
		&domain.Idempotency{},
	}
}

func seedUser(t *testing.T, db *gorm.DB, tgID int64, mut func(*domain.User)) *domain.User {
	t.Helper()
	u := &domain.User{TelegramID: tgID, FirstName: fmt.Sprintf("u%d", tgID), LastActive: time.Now().UTC()}
	if mut != nil {
		mut(u)
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user %d: %v", tgID, err)
	}
	return u
}

func strptr(s string) *string { return &s }

func seedDocument(t *testing.T, db *gorm.DB, id, title string, mut func(*domain.Document)) *domain.Document {
	t.Helper()
	d := &domain.Document{ID: id}
	if mut != nil {
		mut(d)
	}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("seed document %s: %v", id, err)
	}
	if title != "" {
		p := &domain.Product{Title: title, Slug: id, DocumentID: id}
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("seed product %s: %v", id, err)
		}
	}
	return d
}
