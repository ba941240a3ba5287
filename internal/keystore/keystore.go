package keystore

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Well-known entry keys. The names mirror the browser build of Quick Notes so
// that exported state stays recognizable across clients.
const (
	KeyTheme       = "quickNotes_theme"
	KeyLoggedIn    = "isLoggedIn"
	KeyCurrentUser = "currentUserName"
)

var errMissingDatabase = errors.New("keystore: database handle is required")

// Entry is a single persisted key/value blob.
type Entry struct {
	Key       string    `gorm:"column:entry_key;primaryKey;size:190;not null"`
	Value     string    `gorm:"column:entry_value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "kv_entries"
}

// Store is a local key/value blob store backed by a single SQLite table. Each
// key holds one serialized blob and every write is a whole-value overwrite.
type Store struct {
	db *gorm.DB
}

// New constructs a Store over the provided database handle.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &Store{db: db}, nil
}

// Get returns the value stored under key. The second return reports whether
// the key was present at all.
func (s *Store) Get(key string) (string, bool, error) {
	var entry Entry
	err := s.db.Where("entry_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

// Put overwrites the value stored under key, creating the entry when absent.
func (s *Store) Put(key, value string) error {
	entry := Entry{Key: key, Value: value}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
	}).Create(&entry).Error
}

// Delete removes the entry stored under key. Removing an absent key is not an
// error.
func (s *Store) Delete(key string) error {
	return s.db.Where("entry_key = ?", key).Delete(&Entry{}).Error
}
