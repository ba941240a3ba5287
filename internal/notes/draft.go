package notes

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Draft is the single in-progress unsaved note. It lives outside the
// collection and is overwritten wholesale on every autosave.
type Draft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// SaveDraft schedules a best-effort write of the draft after the autosave
// quiet window. Rapid successive calls collapse into one write carrying the
// most recent values. Draft loss is acceptable, so write errors are only
// logged.
func (s *Store) SaveDraft(draft Draft) {
	s.draftSave.Trigger(func() {
		s.saveDraftNow(draft)
	})
}

func (s *Store) saveDraftNow(draft Draft) {
	data, err := json.Marshal(draft)
	if err != nil {
		s.logger.Debug("draft marshal failed", zap.Error(err))
		return
	}
	if err := s.keys.Put(draftStorageKey, string(data)); err != nil {
		s.logger.Debug("draft save failed", zap.Error(err))
	}
}

// LoadDraft returns the persisted draft. The second return reports whether a
// usable draft was present; read or parse failures count as absent.
func (s *Store) LoadDraft() (Draft, bool) {
	raw, present, err := s.keys.Get(draftStorageKey)
	if err != nil || !present || raw == "" {
		return Draft{}, false
	}
	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return Draft{}, false
	}
	return draft, true
}

// ClearDraft cancels any pending autosave and removes the persisted draft.
func (s *Store) ClearDraft() {
	s.draftSave.Stop()
	if err := s.keys.Delete(draftStorageKey); err != nil {
		s.logger.Debug("draft clear failed", zap.Error(err))
	}
}
