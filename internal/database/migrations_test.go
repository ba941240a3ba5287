package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/quicknotes/internal/keystore"
)

func openBare(t *testing.T) (*gorm.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quicknotes.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db, path
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite("", nil); err == nil {
		t.Fatalf("expected error for empty database path")
	}
}

func TestOpenSQLiteMigratesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quicknotes.db")
	db, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}

	for _, table := range []string{"kv_entries", "user_identities", "db_migrations"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("expected table %q to exist", table)
		}
	}
}

func TestNormalizeThemePreferenceMigration(t *testing.T) {
	db, path := openBare(t)
	if err := db.AutoMigrate(&keystore.Entry{}); err != nil {
		t.Fatalf("failed to migrate keystore schema: %v", err)
	}
	if err := db.Create(&keystore.Entry{Key: keystore.KeyTheme, Value: " DARK "}).Error; err != nil {
		t.Fatalf("failed to seed theme entry: %v", err)
	}

	reopened, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}

	keys, err := keystore.New(reopened)
	if err != nil {
		t.Fatalf("failed to build keystore: %v", err)
	}
	value, present, err := keys.Get(keystore.KeyTheme)
	if err != nil || !present {
		t.Fatalf("expected theme entry to survive migration")
	}
	if value != "dark" {
		t.Fatalf("expected normalized theme value, got %q", value)
	}
}

func TestMigrationsApplyOnlyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quicknotes.db")
	if _, err := OpenSQLite(path, nil); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}

	db, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("unexpected reopen error: %v", err)
	}

	var count int64
	if err := db.Model(&migrationRecord{}).
		Where("name = ?", migrationNormalizeThemePreference).
		Count(&count).Error; err != nil {
		t.Fatalf("failed to count migration records: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one migration record, got %d", count)
	}
}
