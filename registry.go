package authclient

import (
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// Registry holds at most one client per app id. It replaces the usual static
// registration map: the embedding application constructs one Registry and
// passes it to call sites, so there is no hidden package-level state.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Manager
}

// NewRegistry creates an empty client registry.
func NewRegistry() *Registry {
	return &Registry{clients: map[string]*Manager{}}
}

// Register associates a client with an app id. Registering the same app id
// twice is a conflict.
func (r *Registry) Register(appID string, client *Manager) error {
	if err := validation.Validate(appID, validation.Required); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid app id")
	}
	if client == nil {
		return goerrors.New("client is required", goerrors.CategoryBadInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[appID]; exists {
		return goerrors.New("a client is already registered for this app id", goerrors.CategoryConflict).
			WithTextCode(TextCodeClientConflict).
			WithCode(goerrors.CodeConflict)
	}
	r.clients[appID] = client
	return nil
}

// Client returns the client registered for an app id.
func (r *Registry) Client(appID string) (*Manager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[appID]
	if !ok {
		return nil, goerrors.New("no client registered for this app id", goerrors.CategoryNotFound).
			WithTextCode(TextCodeClientNotFound).
			WithCode(goerrors.CodeNotFound)
	}
	return client, nil
}

// Remove deregisters an app id. It reports whether a client was present. The
// client is not closed; the caller owns its lifecycle.
func (r *Registry) Remove(appID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[appID]
	delete(r.clients, appID)
	return ok
}

// Close closes every registered client and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for appID, client := range r.clients {
		if err := client.Close(); err != nil && first == nil {
			first = err
		}
		delete(r.clients, appID)
	}
	return first
}
