package authclient_test

import (
	"context"
	"testing"
	"time"

	authclient "github.com/goliatone/go-authclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRefreshingManager builds a manager with the background refresher enabled
// on a short check interval, logged in with the given access token.
func newRefreshingManager(t *testing.T, backend *testBackend, accessToken string) *authclient.Manager {
	t.Helper()
	routes := testRoutes()
	backend.handle("POST", routes.ProviderLoginRoute(authclient.ProviderTypeUserPassword),
		func(req *authclient.Request) (*authclient.Response, error) {
			return jsonResponse(t, 200, sessionBody("user-1", accessToken, "refresh-user-1")), nil
		})
	backend.handle("GET", routes.ProfileRoute(), func(req *authclient.Request) (*authclient.Response, error) {
		return jsonResponse(t, 200, profileBody()), nil
	})

	manager, err := authclient.NewManager(backend, authclient.NewMemoryStorage(), routes,
		authclient.WithRefreshCheckInterval(5*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	_, err = manager.LoginWithCredential(context.Background(), authclient.UserPasswordCredential("tester@example.com", "hunter2"))
	require.NoError(t, err)
	return manager
}

func TestBackgroundRefreshRenewsExpiringToken(t *testing.T) {
	backend := newTestBackend()
	routes := testRoutes()

	// The renewed token is far from expiry, so refreshing stops after one
	// renewal.
	backend.handle("POST", routes.SessionRoute(), func(req *authclient.Request) (*authclient.Response, error) {
		assert.Equal(t, "Bearer refresh-user-1", req.Headers["Authorization"])
		return jsonResponse(t, 200, map[string]string{"access_token": makeJWT(t, time.Now().Add(time.Hour))}), nil
	})

	newRefreshingManager(t, backend, makeJWT(t, time.Now().Add(30*time.Second)))

	require.Eventually(t, func() bool {
		return backend.count("POST", routes.SessionRoute()) >= 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, 1, backend.count("POST", routes.SessionRoute()))
}

func TestBackgroundRefreshSkipsFreshToken(t *testing.T) {
	backend := newTestBackend()
	newRefreshingManager(t, backend, makeJWT(t, time.Now().Add(time.Hour)))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, backend.count("POST", testRoutes().SessionRoute()))
}

func TestBackgroundRefreshSkipsOpaqueToken(t *testing.T) {
	backend := newTestBackend()
	newRefreshingManager(t, backend, "not-a-jwt")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, backend.count("POST", testRoutes().SessionRoute()))
}

func TestCloseStopsBackgroundRefresh(t *testing.T) {
	backend := newTestBackend()
	routes := testRoutes()

	// The renewed token is itself near expiry, so the refresher keeps firing
	// until closed.
	expiring := makeJWT(t, time.Now().Add(30*time.Second))
	backend.handle("POST", routes.SessionRoute(), func(req *authclient.Request) (*authclient.Response, error) {
		return jsonResponse(t, 200, map[string]string{"access_token": expiring}), nil
	})

	manager := newRefreshingManager(t, backend, expiring)

	require.Eventually(t, func() bool {
		return backend.count("POST", routes.SessionRoute()) >= 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, manager.Close())
	settled := backend.count("POST", routes.SessionRoute())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, backend.count("POST", routes.SessionRoute()))
}
