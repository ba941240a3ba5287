package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MarcoPoloResearchLab/quicknotes/internal/auth"
	"github.com/MarcoPoloResearchLab/quicknotes/internal/database"
	"github.com/MarcoPoloResearchLab/quicknotes/internal/keystore"
	"github.com/MarcoPoloResearchLab/quicknotes/internal/notes"
	"github.com/MarcoPoloResearchLab/quicknotes/internal/users"
)

type testEnv struct {
	handler http.Handler
	tokens  *auth.SessionManager
	store   *notes.Store
	keys    *keystore.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "quicknotes.db"), nil)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	keys, err := keystore.New(db)
	if err != nil {
		t.Fatalf("failed to build keystore: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db, Keys: keys})
	if err != nil {
		t.Fatalf("failed to build user service: %v", err)
	}
	store, err := notes.NewStore(notes.StoreConfig{
		Keys:           keys,
		IDProvider:     notes.NewUUIDProvider(),
		DraftSaveDelay: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to build note store: %v", err)
	}
	t.Cleanup(store.Close)

	tokens := auth.NewSessionManager(auth.SessionManagerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "quicknotes-auth",
		Audience:      "quicknotes-api",
	})

	handler, err := NewHTTPHandler(Dependencies{
		TokenManager: tokens,
		UserService:  userService,
		NoteStore:    store,
		Keys:         keys,
		RefreshDelay: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	return &testEnv{handler: handler, tokens: tokens, store: store, keys: keys}
}

func (env *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch payload := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(payload)
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, request)
	return recorder
}

func (env *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	recorder := env.request(t, http.MethodPost, "/auth/login", "", gin.H{"username": username})
	if recorder.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", recorder.Code, recorder.Body.String())
	}
	var response loginResponsePayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if response.AccessToken == "" {
		t.Fatalf("expected a session token")
	}
	return response.AccessToken
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}
