package notes

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func mustNoteID(t *testing.T, value string) NoteID {
	t.Helper()
	id, err := NewNoteID(value)
	if err != nil {
		t.Fatalf("unexpected note id error: %v", err)
	}
	return id
}

// fakeKeyValue is an in-memory KeyValue used to exercise the store without a
// database.
type fakeKeyValue struct {
	entries  map[string]string
	failPuts bool
}

func newFakeKeyValue() *fakeKeyValue {
	return &fakeKeyValue{entries: map[string]string{}}
}

func (f *fakeKeyValue) Get(key string) (string, bool, error) {
	value, ok := f.entries[key]
	return value, ok, nil
}

func (f *fakeKeyValue) Put(key, value string) error {
	if f.failPuts {
		return errors.New("write rejected")
	}
	f.entries[key] = value
	return nil
}

func (f *fakeKeyValue) Delete(key string) error {
	delete(f.entries, key)
	return nil
}

// sequenceIDProvider issues deterministic, lexicographically increasing ids.
type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("id-%04d", p.next), nil
}

func newTestStore(t *testing.T, keys KeyValue) *Store {
	t.Helper()
	store, err := NewStore(StoreConfig{
		Keys:       keys,
		Clock:      func() time.Time { return time.Unix(1760000000, 0) },
		IDProvider: &sequenceIDProvider{},
	})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}
