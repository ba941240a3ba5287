package users

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/quicknotes/internal/keystore"
)

const maxUsernameLength = 190

// ErrInvalidUsername indicates the supplied username is empty or exceeds
// storage bounds.
var ErrInvalidUsername = errors.New("users: invalid username")

// ServiceConfig describes the dependencies required for identity tracking.
type ServiceConfig struct {
	Database *gorm.DB
	Keys     *keystore.Store
	Clock    func() time.Time
}

// Service is the identity provider: it records logins in the identity table
// and keeps the login flag and current-user keys in the key/value store, the
// same state the browser build kept in localStorage.
type Service struct {
	db   *gorm.DB
	keys *keystore.Store
	now  func() time.Time
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	if cfg.Keys == nil {
		return nil, fmt.Errorf("users: key/value store required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:   cfg.Database,
		keys: cfg.Keys,
		now:  clock,
	}, nil
}

// Login validates the username, upserts its identity record, and marks the
// session as logged in.
func (s *Service) Login(username string) (Identity, error) {
	trimmed := normalize(username)
	if trimmed == "" {
		return Identity{}, fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if len(trimmed) > maxUsernameLength {
		return Identity{}, fmt.Errorf("%w: exceeds %d characters", ErrInvalidUsername, maxUsernameLength)
	}

	now := s.now().UTC()
	var identity Identity
	err := s.db.Where("username = ?", trimmed).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		identity = Identity{
			Username:    trimmed,
			FirstSeenAt: now,
			LastSeenAt:  now,
			LoginCount:  1,
		}
		if err := s.db.Create(&identity).Error; err != nil {
			return Identity{}, err
		}
	} else if err != nil {
		return Identity{}, err
	} else {
		identity.LastSeenAt = now
		identity.LoginCount++
		if err := s.db.Model(&Identity{}).
			Where("username = ?", trimmed).
			Updates(map[string]interface{}{
				"last_seen_at": now,
				"login_count":  identity.LoginCount,
			}).Error; err != nil {
			return Identity{}, err
		}
	}

	if err := s.keys.Put(keystore.KeyLoggedIn, "true"); err != nil {
		return Identity{}, err
	}
	if err := s.keys.Put(keystore.KeyCurrentUser, trimmed); err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// Logout clears the login flag and the current-user key.
func (s *Service) Logout() error {
	if err := s.keys.Delete(keystore.KeyLoggedIn); err != nil {
		return err
	}
	return s.keys.Delete(keystore.KeyCurrentUser)
}

// IsLoggedIn reports whether the login flag is set. Anything other than the
// literal "true" counts as logged out.
func (s *Service) IsLoggedIn() bool {
	value, present, err := s.keys.Get(keystore.KeyLoggedIn)
	if err != nil || !present {
		return false
	}
	return value == "true"
}

// CurrentUser returns the identity used for ownership filtering. The second
// return is false when nobody is logged in.
func (s *Service) CurrentUser() (string, bool) {
	if !s.IsLoggedIn() {
		return "", false
	}
	value, present, err := s.keys.Get(keystore.KeyCurrentUser)
	if err != nil || !present || normalize(value) == "" {
		return "", false
	}
	return value, true
}
