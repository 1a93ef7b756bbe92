package authclient

import (
	"encoding/json"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

// Storage keys. Per-user records hang off a deterministic hash of the user id
// so keys stay valid across restarts regardless of what the id contains.
const (
	storageKeyDeviceID   = "auth_device_id"
	storageKeyActiveUser = "auth_active_user"
	storageKeyUserIndex  = "auth_all_users"
	storageKeyUserPrefix = "auth_user:"
)

// storedUser is the persisted form of one known user's session.
type storedUser struct {
	Info             AuthInfo  `json:"auth_info"`
	LoggedIn         bool      `json:"logged_in"`
	LastAuthActivity time.Time `json:"last_auth_activity"`
}

// sessionStore layers the session persistence schema on top of the raw
// Storage collaborator: one record per known user, an index record holding
// first-login order, the active user pointer, and the device id.
type sessionStore struct {
	storage Storage
	logger  Logger
}

func newSessionStore(storage Storage, logger Logger) *sessionStore {
	if logger == nil {
		logger = defLogger{}
	}
	return &sessionStore{storage: storage, logger: logger}
}

func userStorageKey(userID string) string {
	if id, err := hashid.NewUUID(userID); err == nil {
		return storageKeyUserPrefix + id.String()
	}
	return storageKeyUserPrefix + userID
}

func (s *sessionStore) loadDeviceID() (string, error) {
	value, found, err := s.storage.Get(storageKeyDeviceID)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryOperation, "could not read device id")
	}
	if !found {
		return "", nil
	}
	return value, nil
}

func (s *sessionStore) saveDeviceID(deviceID string) error {
	if err := s.storage.Set(storageKeyDeviceID, deviceID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "could not persist device id")
	}
	return nil
}

func (s *sessionStore) loadActiveUser() string {
	value, found, err := s.storage.Get(storageKeyActiveUser)
	if err != nil || !found {
		return ""
	}
	return value
}

func (s *sessionStore) saveActiveUser(userID string) error {
	if userID == "" {
		if err := s.storage.Remove(storageKeyActiveUser); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "could not clear active user")
		}
		return nil
	}
	if err := s.storage.Set(storageKeyActiveUser, userID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "could not persist active user")
	}
	return nil
}

// loadUsers returns the known users in first-login order. Missing or corrupt
// records are skipped so a damaged store degrades to "no persisted session"
// instead of failing construction.
func (s *sessionStore) loadUsers() ([]string, map[string]*storedUser) {
	order := []string{}
	users := map[string]*storedUser{}

	raw, found, err := s.storage.Get(storageKeyUserIndex)
	if err != nil || !found {
		return order, users
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		s.logger.Warn("Session store user index is corrupt, starting empty", "error", err)
		return order, users
	}

	for _, id := range ids {
		record, ok := s.loadUser(id)
		if !ok {
			continue
		}
		order = append(order, id)
		users[id] = record
	}
	return order, users
}

func (s *sessionStore) loadUser(userID string) (*storedUser, bool) {
	raw, found, err := s.storage.Get(userStorageKey(userID))
	if err != nil {
		s.logger.Warn("Session store could not read user record", "user_id", userID, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var record storedUser
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		s.logger.Warn("Session store user record is corrupt, skipping", "user_id", userID, "error", err)
		return nil, false
	}
	return &record, true
}

func (s *sessionStore) saveUser(userID string, record *storedUser) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not encode user record")
	}
	if err := s.storage.Set(userStorageKey(userID), string(raw)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "could not persist user record")
	}
	return nil
}

func (s *sessionStore) removeUser(userID string) error {
	if err := s.storage.Remove(userStorageKey(userID)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "could not remove user record")
	}
	return nil
}

func (s *sessionStore) saveIndex(order []string) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not encode user index")
	}
	if err := s.storage.Set(storageKeyUserIndex, string(raw)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "could not persist user index")
	}
	return nil
}
