package users

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/quicknotes/internal/keystore"
)

func newTestService(t *testing.T, clock func() time.Time) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "users.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&Identity{}, &keystore.Entry{}); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	keys, err := keystore.New(db)
	if err != nil {
		t.Fatalf("failed to build keystore: %v", err)
	}
	service, err := NewService(ServiceConfig{Database: db, Keys: keys, Clock: clock})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

func TestLoginCreatesIdentityAndSetsState(t *testing.T) {
	service := newTestService(t, func() time.Time { return time.Unix(1760000000, 0) })

	identity, err := service.Login("bob")
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}
	if identity.Username != "bob" || identity.LoginCount != 1 {
		t.Fatalf("unexpected identity: %#v", identity)
	}

	if !service.IsLoggedIn() {
		t.Fatalf("expected logged-in state after login")
	}
	user, ok := service.CurrentUser()
	if !ok || user != "bob" {
		t.Fatalf("expected current user bob, got %q (%v)", user, ok)
	}
}

func TestLoginTrimsAndRejectsEmptyUsername(t *testing.T) {
	service := newTestService(t, nil)

	identity, err := service.Login("  alice  ")
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}
	if identity.Username != "alice" {
		t.Fatalf("expected trimmed username, got %q", identity.Username)
	}

	if _, err := service.Login("   "); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestRepeatLoginBumpsLastSeen(t *testing.T) {
	current := time.Unix(1760000000, 0)
	service := newTestService(t, func() time.Time { return current })

	if _, err := service.Login("bob"); err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}

	current = current.Add(time.Hour)
	identity, err := service.Login("bob")
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}
	if identity.LoginCount != 2 {
		t.Fatalf("expected login count 2, got %d", identity.LoginCount)
	}
	if !identity.LastSeenAt.After(identity.FirstSeenAt) {
		t.Fatalf("expected last seen to advance past first seen")
	}
}

func TestLogoutClearsState(t *testing.T) {
	service := newTestService(t, nil)
	if _, err := service.Login("bob"); err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}

	if err := service.Logout(); err != nil {
		t.Fatalf("unexpected logout error: %v", err)
	}
	if service.IsLoggedIn() {
		t.Fatalf("expected logged-out state after logout")
	}
	if _, ok := service.CurrentUser(); ok {
		t.Fatalf("expected no current user after logout")
	}
}
