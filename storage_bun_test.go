package authclient_test

import (
	"context"
	"database/sql"
	"testing"

	authclient "github.com/goliatone/go-authclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupBunDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() { _ = bunDB.Close() })

	require.NoError(t, authclient.CreateStorageSchema(context.Background(), bunDB))
	return bunDB
}

func TestBunStorageRoundTrip(t *testing.T) {
	db := setupBunDB(t)
	storage := authclient.NewBunStorage(db, testAppID)

	_, found, err := storage.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, storage.Set("k", "v1"))
	value, found, err := storage.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v1", value)

	// Upsert on the same key.
	require.NoError(t, storage.Set("k", "v2"))
	value, _, err = storage.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", value)

	require.NoError(t, storage.Remove("k"))
	_, found, err = storage.Get("k")
	require.NoError(t, err)
	assert.False(t, found)

	// Removing an absent key is not an error.
	require.NoError(t, storage.Remove("k"))
}

func TestBunStorageScopesAreIsolated(t *testing.T) {
	db := setupBunDB(t)
	first := authclient.NewBunStorage(db, "app-one")
	second := authclient.NewBunStorage(db, "app-two")

	require.NoError(t, first.Set("k", "one"))
	require.NoError(t, second.Set("k", "two"))

	value, _, err := first.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "one", value)

	require.NoError(t, first.Remove("k"))
	value, found, err := second.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "two", value)
}

func TestManagerPersistsSessionsThroughBunStorage(t *testing.T) {
	ctx := context.Background()
	db := setupBunDB(t)
	backend := newTestBackend()
	registerLoginFlow(t, backend, authclient.ProviderTypeUserPassword, "user-1")

	first := newTestManager(t, backend, authclient.NewBunStorage(db, testAppID))
	_, err := first.LoginWithCredential(ctx, authclient.UserPasswordCredential("tester@example.com", "hunter2"))
	require.NoError(t, err)
	deviceID := first.DeviceID()
	require.NoError(t, first.Close())

	second := newTestManager(t, backend, authclient.NewBunStorage(db, testAppID))
	assert.Equal(t, deviceID, second.DeviceID())
	require.NotNil(t, second.ActiveUser())
	assert.Equal(t, "user-1", second.ActiveUser().ID)
}
