package notes

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidNoteID indicates that a note identifier is empty or exceeds storage bounds.
	ErrInvalidNoteID = errors.New("notes: invalid note id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("notes: invalid user id")
	// ErrEmptyNote indicates that both the title and the content trim to nothing.
	ErrEmptyNote = errors.New("notes: title and content are both empty")
	// ErrNoteNotFound indicates that no note with the requested id exists.
	ErrNoteNotFound = errors.New("notes: note not found")
	// ErrInvalidImport indicates that an import payload is not a JSON array.
	ErrInvalidImport = errors.New("notes: import payload is not a list")
	// ErrNothingToExport indicates an export was requested on an empty collection.
	ErrNothingToExport = errors.New("notes: nothing to export")
	// ErrSaveFailed indicates the collection could not be written to storage.
	// The in-memory collection keeps the mutation; callers surface a warning.
	ErrSaveFailed = errors.New("notes: collection save failed")
)

// NoteID represents a validated note identifier.
type NoteID string

// NewNoteID validates raw input and returns a NoteID.
func NewNoteID(rawInput string) (NoteID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidNoteID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidNoteID, maxIdentifierLength)
	}
	return NoteID(trimmed), nil
}

// String returns the underlying string identifier.
func (id NoteID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// Note models a single persisted note. The JSON shape doubles as the
// export/import format, so field names stay camelCase and timestamps are
// RFC 3339 strings.
type Note struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	Pinned    bool   `json:"pinned"`
	Owner     string `json:"owner,omitempty"`
}

// StoreError carries a dotted operation code alongside the underlying cause.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

// Code exposes the dotted operation code for logging and assertions.
func (e *StoreError) Code() string {
	return e.code
}

const (
	opStoreNew  = "notes.store.new"
	opCreate    = "notes.create"
	opUpdate    = "notes.update"
	opDelete    = "notes.delete"
	opTogglePin = "notes.toggle_pin"
	opImport    = "notes.import"
	opExport    = "notes.export"
)

func newStoreError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &StoreError{code: code, err: cause}
}
