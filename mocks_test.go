package authclient_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	authclient "github.com/goliatone/go-authclient"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testAppID = "test-app"

// MockTransport implements authclient.Transport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) RoundTrip(ctx context.Context, req *authclient.Request) (*authclient.Response, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*authclient.Response)
	return res, args.Error(1)
}

// call records one request the fake backend served.
type call struct {
	Method string
	Path   string
	Auth   string
	Body   []byte
}

// testBackend is a scripted Transport. Handlers are keyed by "METHOD path";
// unmatched requests fall through to fallback or a 404.
type testBackend struct {
	mu       sync.Mutex
	calls    []call
	handlers map[string]func(req *authclient.Request) (*authclient.Response, error)
	fallback func(req *authclient.Request) (*authclient.Response, error)
}

func newTestBackend() *testBackend {
	return &testBackend{
		handlers: map[string]func(req *authclient.Request) (*authclient.Response, error){},
	}
}

func (b *testBackend) handle(method, path string, h func(req *authclient.Request) (*authclient.Response, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[method+" "+path] = h
}

func (b *testBackend) RoundTrip(ctx context.Context, req *authclient.Request) (*authclient.Response, error) {
	b.mu.Lock()
	b.calls = append(b.calls, call{
		Method: req.Method,
		Path:   req.Path,
		Auth:   req.Headers["Authorization"],
		Body:   req.Body,
	})
	handler := b.handlers[req.Method+" "+req.Path]
	fallback := b.fallback
	b.mu.Unlock()

	if handler != nil {
		return handler(req)
	}
	if fallback != nil {
		return fallback(req)
	}
	return &authclient.Response{StatusCode: 404, Body: []byte(`{"error":"no handler"}`)}, nil
}

func (b *testBackend) count(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (b *testBackend) countPrefix(method, prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// eventRecorder collects dispatched auth events.
type eventRecorder struct {
	mu     sync.Mutex
	events []authclient.AuthEvent
}

func (r *eventRecorder) OnAuthEvent(event authclient.AuthEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) types() []authclient.AuthEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]authclient.AuthEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *eventRecorder) countOf(eventType authclient.AuthEventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func testRoutes() authclient.DefaultRoutes {
	return authclient.NewDefaultRoutes(testAppID)
}

func newTestManager(t *testing.T, transport authclient.Transport, storage authclient.Storage, opts ...authclient.ManagerOption) *authclient.Manager {
	t.Helper()
	base := []authclient.ManagerOption{authclient.WithoutProactiveRefresh()}
	m, err := authclient.NewManager(transport, storage, testRoutes(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func jsonResponse(t *testing.T, status int, v any) *authclient.Response {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return &authclient.Response{StatusCode: status, Body: body}
}

func sessionBody(userID, accessToken, refreshToken string) map[string]string {
	return map[string]string{
		"user_id":       userID,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	}
}

func profileBody(identities ...authclient.ProviderIdentity) map[string]any {
	return map[string]any{
		"type":       "normal",
		"data":       map[string]string{"email": "tester@example.com"},
		"identities": identities,
	}
}

func invalidSessionResponse() *authclient.Response {
	return &authclient.Response{
		StatusCode: 401,
		Body:       []byte(`{"error":"invalid session","error_code":"InvalidSession"}`),
	}
}

// registerLoginFlow wires the happy-path handlers for one user: provider
// login, profile fetch, session refresh, and session delete.
func registerLoginFlow(t *testing.T, backend *testBackend, providerName, userID string, identities ...authclient.ProviderIdentity) {
	t.Helper()
	routes := testRoutes()
	if len(identities) == 0 {
		identities = []authclient.ProviderIdentity{{ID: userID + "-identity", ProviderType: providerName}}
	}
	backend.handle("POST", routes.ProviderLoginRoute(providerName), func(req *authclient.Request) (*authclient.Response, error) {
		return jsonResponse(t, 200, sessionBody(userID, "access-"+userID, "refresh-"+userID)), nil
	})
	backend.handle("GET", routes.ProfileRoute(), func(req *authclient.Request) (*authclient.Response, error) {
		return jsonResponse(t, 200, profileBody(identities...)), nil
	})
	backend.handle("POST", routes.SessionRoute(), func(req *authclient.Request) (*authclient.Response, error) {
		return jsonResponse(t, 200, map[string]string{"access_token": "access-" + userID + "-refreshed"}), nil
	})
	backend.handle("DELETE", routes.SessionRoute(), func(req *authclient.Request) (*authclient.Response, error) {
		return &authclient.Response{StatusCode: 204}, nil
	})
}

func makeJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "test-user",
		"iat": time.Now().Add(-time.Minute).Unix(),
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}
