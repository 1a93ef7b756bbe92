package authclient

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// StorageModel is the Bun model for persisted session entries. Entries are
// scoped so several clients (one per app id) can share one database.
type StorageModel struct {
	bun.BaseModel `bun:"table:auth_storage,alias:ast"`

	Scope     string    `bun:"scope,pk,notnull"`
	Key       string    `bun:"key,pk,notnull"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

// BunStorage implements Storage on top of a Bun database. SQLite is the
// expected dialect for client-side use, but nothing here is SQLite-specific.
type BunStorage struct {
	db    *bun.DB
	scope string
}

var _ Storage = (*BunStorage)(nil)

// NewBunStorage creates a Storage persisting entries under the given scope.
func NewBunStorage(db *bun.DB, scope string) *BunStorage {
	return &BunStorage{db: db, scope: scope}
}

// CreateStorageSchema creates the auth_storage table if it does not exist.
// Call it once at startup, or run the embedded migration instead.
func CreateStorageSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*StorageModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Get implements Storage.
func (s *BunStorage) Get(key string) (string, bool, error) {
	var model StorageModel
	err := s.db.NewSelect().
		Model(&model).
		Where("scope = ? AND key = ?", s.scope, key).
		Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return model.Value, true, nil
}

// Set implements Storage.
func (s *BunStorage) Set(key, value string) error {
	model := &StorageModel{
		Scope:     s.scope,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	_, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT (scope, key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(context.Background())
	return err
}

// Remove implements Storage.
func (s *BunStorage) Remove(key string) error {
	_, err := s.db.NewDelete().
		Model((*StorageModel)(nil)).
		Where("scope = ? AND key = ?", s.scope, key).
		Exec(context.Background())
	return err
}
