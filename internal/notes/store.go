package notes

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/quicknotes/internal/debounce"
)

const (
	collectionStorageKey = "quickNotes_data"
	draftStorageKey      = "quickNotes_draft"

	defaultDraftSaveDelay = 500 * time.Millisecond
)

var (
	errMissingKeyValue   = errors.New("key/value store is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// KeyValue is the persistence surface the store writes through. It mirrors a
// browser localStorage: whole-value reads and writes under fixed keys.
type KeyValue interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
	Delete(key string) error
}

// IDProvider issues identifiers for newly created notes.
type IDProvider interface {
	NewID() (string, error)
}

// StoreConfig describes the dependencies required to construct a Store.
type StoreConfig struct {
	Keys           KeyValue
	Clock          func() time.Time
	IDProvider     IDProvider
	Logger         *zap.Logger
	DraftSaveDelay time.Duration
}

// Store owns the in-memory note collection for the current session. Every
// mutation is written through to the key/value store; a failed write keeps
// the in-memory change and is reported as ErrSaveFailed so the caller can
// warn instead of rolling back.
type Store struct {
	mu        sync.Mutex
	keys      KeyValue
	clock     func() time.Time
	ids       IDProvider
	logger    *zap.Logger
	notes     []Note
	recovered bool
	draftSave *debounce.Debouncer
}

// NewStore constructs a Store and loads the persisted collection. A missing
// or malformed blob yields an empty collection; RecoveredFromCorruption
// reports whether anything was discarded.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Keys == nil {
		return nil, newStoreError(opStoreNew, "missing_key_value", errMissingKeyValue)
	}
	if cfg.IDProvider == nil {
		return nil, newStoreError(opStoreNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	draftDelay := cfg.DraftSaveDelay
	if draftDelay <= 0 {
		draftDelay = defaultDraftSaveDelay
	}

	store := &Store{
		keys:      cfg.Keys,
		clock:     clock,
		ids:       cfg.IDProvider,
		logger:    logger,
		draftSave: debounce.New(draftDelay),
	}
	store.notes, store.recovered = loadCollection(cfg.Keys, logger)
	return store, nil
}

func loadCollection(keys KeyValue, logger *zap.Logger) ([]Note, bool) {
	raw, present, err := keys.Get(collectionStorageKey)
	if err != nil {
		logger.Warn("note collection read failed, starting empty", zap.Error(err))
		return []Note{}, true
	}
	if !present || raw == "" {
		return []Note{}, false
	}
	var collection []Note
	if err := json.Unmarshal([]byte(raw), &collection); err != nil {
		logger.Warn("note collection blob is malformed, starting empty", zap.Error(err))
		return []Note{}, true
	}
	if collection == nil {
		collection = []Note{}
	}
	return collection, false
}

// RecoveredFromCorruption reports whether the persisted collection was
// discarded at load time because it could not be read or parsed.
func (s *Store) RecoveredFromCorruption() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recovered
}

// List returns a snapshot copy of the collection in insertion order.
func (s *Store) List() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]Note, len(s.notes))
	copy(snapshot, s.notes)
	return snapshot
}

// Create validates, stamps, and prepends a new note owned by owner.
func (s *Store) Create(owner UserID, title, content string) (Note, error) {
	trimmedTitle := strings.TrimSpace(title)
	trimmedContent := strings.TrimSpace(content)
	if trimmedTitle == "" && trimmedContent == "" {
		return Note{}, newStoreError(opCreate, "empty_note", ErrEmptyNote)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.ids.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return Note{}, newStoreError(opCreate, "id_generation_failed", err)
	}

	now := s.timestamp()
	note := Note{
		ID:        id,
		Title:     trimmedTitle,
		Content:   trimmedContent,
		CreatedAt: now,
		UpdatedAt: now,
		Pinned:    false,
		Owner:     owner.String(),
	}
	s.notes = append([]Note{note}, s.notes...)

	if err := s.persistLocked(opCreate); err != nil {
		return note, err
	}
	return note, nil
}

// Update replaces the title and content of the note with the given id and
// bumps its updatedAt timestamp.
func (s *Store) Update(id NoteID, title, content string) (Note, error) {
	trimmedTitle := strings.TrimSpace(title)
	trimmedContent := strings.TrimSpace(content)
	if trimmedTitle == "" && trimmedContent == "" {
		return Note{}, newStoreError(opUpdate, "empty_note", ErrEmptyNote)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.indexLocked(id)
	if index < 0 {
		return Note{}, newStoreError(opUpdate, "not_found", ErrNoteNotFound)
	}

	s.notes[index].Title = trimmedTitle
	s.notes[index].Content = trimmedContent
	s.notes[index].UpdatedAt = s.timestamp()

	updated := s.notes[index]
	if err := s.persistLocked(opUpdate); err != nil {
		return updated, err
	}
	return updated, nil
}

// Delete removes the note with the given id. Deleting an absent id is a
// no-op, not an error.
func (s *Store) Delete(id NoteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.indexLocked(id)
	if index < 0 {
		return nil
	}

	s.notes = append(s.notes[:index], s.notes[index+1:]...)
	return s.persistLocked(opDelete)
}

// TogglePin flips the pinned flag of the note with the given id and bumps its
// updatedAt timestamp. Calling it twice restores the prior pinned value.
func (s *Store) TogglePin(id NoteID) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.indexLocked(id)
	if index < 0 {
		return Note{}, newStoreError(opTogglePin, "not_found", ErrNoteNotFound)
	}

	s.notes[index].Pinned = !s.notes[index].Pinned
	s.notes[index].UpdatedAt = s.timestamp()

	updated := s.notes[index]
	if err := s.persistLocked(opTogglePin); err != nil {
		return updated, err
	}
	return updated, nil
}

// ImportBatch prepends every element of a JSON array payload to the
// collection, verbatim. Elements are not validated and ids are not checked
// for collisions; an export followed by an import duplicates notes.
func (s *Store) ImportBatch(rawPayload []byte) (int, error) {
	var imported []Note
	if err := json.Unmarshal(rawPayload, &imported); err != nil {
		return 0, newStoreError(opImport, "invalid_payload", ErrInvalidImport)
	}
	// A JSON null decodes into a nil slice without error; only an actual
	// array counts as a valid import.
	if imported == nil {
		return 0, newStoreError(opImport, "invalid_payload", ErrInvalidImport)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.notes = append(imported, s.notes...)
	if err := s.persistLocked(opImport); err != nil {
		return len(imported), err
	}
	return len(imported), nil
}

// Export serializes the full collection, regardless of owner, and returns it
// together with a date-stamped download filename.
func (s *Store) Export() ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.notes) == 0 {
		return nil, "", newStoreError(opExport, "empty_collection", ErrNothingToExport)
	}

	data, err := json.MarshalIndent(s.notes, "", "  ")
	if err != nil {
		s.logError(opExport, "marshal_failed", err)
		return nil, "", newStoreError(opExport, "marshal_failed", err)
	}

	filename := fmt.Sprintf("quick-notes-%s.json", s.clock().UTC().Format("2006-01-02"))
	return data, filename, nil
}

// Close cancels any pending debounced draft write.
func (s *Store) Close() {
	s.draftSave.Stop()
}

func (s *Store) timestamp() string {
	return s.clock().UTC().Format(time.RFC3339)
}

func (s *Store) indexLocked(id NoteID) int {
	for i := range s.notes {
		if s.notes[i].ID == id.String() {
			return i
		}
	}
	return -1
}

func (s *Store) persistLocked(operation string) error {
	data, err := json.Marshal(s.notes)
	if err != nil {
		s.logError(operation, "marshal_failed", err)
		return newStoreError(operation, "save_failed", fmt.Errorf("%w: %v", ErrSaveFailed, err))
	}
	if err := s.keys.Put(collectionStorageKey, string(data)); err != nil {
		s.logError(operation, "save_failed", err)
		return newStoreError(operation, "save_failed", fmt.Errorf("%w: %v", ErrSaveFailed, err))
	}
	return nil
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("note store error", attrs...)
}
