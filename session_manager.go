package authclient

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	defaultRefreshCheckInterval = time.Minute
	defaultRefreshLookahead     = 5 * time.Minute
)

// authRecord is the in-memory session state for one known user.
type authRecord struct {
	info             AuthInfo
	loggedIn         bool
	lastAuthActivity time.Time
}

// Manager owns the set of known users, the active user pointer, and every
// session mutation. All public operations serialize on one mutex held across
// the full read-modify-persist sequence, so partial merges cannot interleave.
type Manager struct {
	transport Transport
	store     *sessionStore
	routes    Routes
	logger    Logger

	dispatcher   *eventDispatcher
	refresher    *tokenRefresher
	refreshGroup singleflight.Group
	clock        func() time.Time

	refreshCheckInterval time.Duration
	refreshLookahead     time.Duration
	proactiveRefresh     bool
	eventBuffer          int

	mu       sync.Mutex
	records  map[string]*authRecord
	order    []string
	activeID string
	deviceID string
	closed   bool
}

// ManagerOption customizes Manager construction.
type ManagerOption func(*Manager)

// WithLogger overrides the default logger.
func WithLogger(l Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithRefreshCheckInterval sets how often the background refresher inspects
// the active access token.
func WithRefreshCheckInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.refreshCheckInterval = d
		}
	}
}

// WithRefreshLookahead sets how close to expiry a token must be before the
// background refresher renews it.
func WithRefreshLookahead(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.refreshLookahead = d
		}
	}
}

// WithoutProactiveRefresh disables the background refresher. Authenticated
// requests still refresh reactively on session expiry.
func WithoutProactiveRefresh() ManagerOption {
	return func(m *Manager) {
		m.proactiveRefresh = false
	}
}

// WithEventBuffer sets the async event queue depth.
func WithEventBuffer(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.eventBuffer = n
		}
	}
}

// NewManager loads persisted session state from storage and starts the
// background refresher. A missing or corrupt persisted session loads as "no
// session"; only storage and device id failures abort construction.
func NewManager(transport Transport, storage Storage, routes Routes, opts ...ManagerOption) (*Manager, error) {
	if transport == nil {
		return nil, goerrors.New("transport is required", goerrors.CategoryBadInput)
	}
	if storage == nil {
		return nil, goerrors.New("storage is required", goerrors.CategoryBadInput)
	}
	if routes == nil {
		return nil, goerrors.New("routes are required", goerrors.CategoryBadInput)
	}

	m := &Manager{
		transport:            transport,
		routes:               routes,
		logger:               defLogger{},
		clock:                time.Now,
		refreshCheckInterval: defaultRefreshCheckInterval,
		refreshLookahead:     defaultRefreshLookahead,
		proactiveRefresh:     true,
		records:              map[string]*authRecord{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.store = newSessionStore(storage, m.logger)

	deviceID, err := m.store.loadDeviceID()
	if err != nil {
		return nil, err
	}
	if deviceID == "" {
		deviceID = uuid.NewString()
		if err := m.store.saveDeviceID(deviceID); err != nil {
			return nil, err
		}
	}
	m.deviceID = deviceID

	order, users := m.store.loadUsers()
	m.order = order
	for id, stored := range users {
		m.records[id] = &authRecord{
			info:             stored.Info,
			loggedIn:         stored.LoggedIn,
			lastAuthActivity: stored.LastAuthActivity,
		}
	}

	if active := m.store.loadActiveUser(); active != "" {
		if rec, ok := m.records[active]; ok && rec.loggedIn {
			m.activeID = active
		} else {
			m.logger.Warn("Persisted active user is not logged in, clearing pointer", "user_id", active)
			if err := m.store.saveActiveUser(""); err != nil {
				m.logger.Warn("Could not clear stale active user pointer", "error", err)
			}
		}
	}

	m.dispatcher = newEventDispatcher(m.eventBuffer)
	if m.proactiveRefresh {
		m.refresher = newTokenRefresher(m, m.refreshCheckInterval, m.refreshLookahead, m.logger)
		m.refresher.start()
	}
	return m, nil
}

// Close stops the background refresher and drains the event dispatcher.
// Idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.refresher != nil {
		m.refresher.stop()
	}
	m.dispatcher.close()
	return nil
}

// DeviceID returns the device id generated on first construction against this
// storage.
func (m *Manager) DeviceID() string {
	return m.deviceID
}

// AddListener registers a synchronous listener. It immediately receives a
// synthetic registration event so it can reconcile against current state.
func (m *Manager) AddListener(l AuthListener) {
	m.dispatcher.addSync(l, m.registeredEvent())
}

// AddAsyncListener registers a listener invoked on the deferred dispatch
// goroutine.
func (m *Manager) AddAsyncListener(l AuthListener) {
	m.dispatcher.addAsync(l, m.registeredEvent())
}

// RemoveListener deregisters a listener from both registries.
func (m *Manager) RemoveListener(l AuthListener) {
	m.dispatcher.remove(l)
}

func (m *Manager) registeredEvent() AuthEvent {
	return AuthEvent{Type: EventListenerRegistered, OccurredAt: m.clock()}
}

// ListUsers returns all known users in first-login order.
func (m *Manager) ListUsers() []*User {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*User, 0, len(m.order))
	for _, id := range m.order {
		if user := m.userSnapshotLocked(id); user != nil {
			out = append(out, user)
		}
	}
	return out
}

// ActiveUser returns the user whose credentials are attached to outgoing
// requests, or nil when nobody is logged in.
func (m *Manager) ActiveUser() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeID == "" {
		return nil
	}
	return m.userSnapshotLocked(m.activeID)
}

// LoginWithCredential authenticates against the credential's provider and
// makes the resulting user active. Logging in anonymously while an anonymous
// session is already active returns the active user without a network call;
// any other login while a user is active logs that user out first.
func (m *Manager) LoginWithCredential(ctx context.Context, credential Credential) (*User, error) {
	if err := credential.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid credential")
	}

	var events []AuthEvent
	m.mu.Lock()
	user, err := m.loginLocked(ctx, credential, &events)
	m.mu.Unlock()
	m.dispatchAll(events)
	return user, err
}

func (m *Manager) loginLocked(ctx context.Context, credential Credential, events *[]AuthEvent) (*User, error) {
	if active := m.records[m.activeID]; m.activeID != "" && active != nil && active.loggedIn {
		if credential.ProviderType == ProviderTypeAnonymous &&
			active.info.LoggedInProviderType == ProviderTypeAnonymous {
			return m.userSnapshotLocked(m.activeID), nil
		}
		m.logoutLocked(ctx, m.activeID, true, events)
	}

	var fresh AuthInfo
	if credential.MaterialContainsAuthInfo {
		fresh = authInfoFromMaterial(credential.Material)
		if fresh.UserID == "" || !fresh.HasTokens() {
			return nil, goerrors.New("credential material does not contain a complete session", goerrors.CategoryBadInput)
		}
	} else {
		body, err := m.loginRequestBody(credential.Material)
		if err != nil {
			return nil, err
		}
		res, err := m.transport.RoundTrip(ctx, &Request{
			Method:  "POST",
			Path:    m.routes.ProviderLoginRoute(credential.ProviderName),
			Headers: map[string]string{headerContentType: contentTypeJSON},
			Body:    body,
		})
		if err != nil {
			return nil, err
		}
		if !is2xx(res) {
			return nil, errorFromResponse(res)
		}
		if fresh, err = decodeAPIAuthInfo(res.Body); err != nil {
			return nil, err
		}
		if fresh.UserID == "" {
			return nil, goerrors.New("session payload is missing the user id", goerrors.CategoryOperation).
				WithTextCode(TextCodeServiceError)
		}
	}

	base := AuthInfo{DeviceID: m.deviceID}
	rec, wasKnown := m.records[fresh.UserID]
	if wasKnown {
		base = rec.info
	}
	merged := base.Merge(fresh)
	merged.LoggedInProviderType = credential.ProviderType
	merged.LoggedInProviderName = credential.ProviderName
	if merged.DeviceID == "" {
		merged.DeviceID = m.deviceID
	}

	if fresh.Profile == nil {
		profile, err := m.fetchProfile(ctx, merged.AccessToken)
		if err != nil {
			return nil, err
		}
		merged.Profile = profile
	}

	if !wasKnown {
		rec = &authRecord{}
		m.records[fresh.UserID] = rec
		m.order = append(m.order, fresh.UserID)
	}
	rec.info = merged
	rec.loggedIn = true
	rec.lastAuthActivity = m.clock()

	previous := m.userSnapshotLocked(m.activeID)
	m.activeID = fresh.UserID

	if err := m.store.saveUser(fresh.UserID, rec.stored()); err != nil {
		return nil, err
	}
	if !wasKnown {
		if err := m.store.saveIndex(m.order); err != nil {
			return nil, err
		}
	}
	if err := m.store.saveActiveUser(m.activeID); err != nil {
		return nil, err
	}

	user := m.userSnapshotLocked(fresh.UserID)
	if !wasKnown {
		*events = append(*events, AuthEvent{Type: EventUserAdded, User: user, OccurredAt: m.clock()})
	}
	*events = append(*events, AuthEvent{Type: EventUserLoggedIn, User: user, OccurredAt: m.clock()})
	*events = append(*events, AuthEvent{
		Type:               EventActiveUserChanged,
		CurrentActiveUser:  user,
		PreviousActiveUser: previous,
		OccurredAt:         m.clock(),
	})
	return user, nil
}

// LinkUserWithCredential attaches an additional login identity to the given
// user, which must be the currently active user.
func (m *Manager) LinkUserWithCredential(ctx context.Context, user *User, credential Credential) (*User, error) {
	if user == nil {
		return nil, goerrors.New("user is required", goerrors.CategoryBadInput)
	}
	if err := credential.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid credential")
	}

	var events []AuthEvent
	m.mu.Lock()
	linked, err := m.linkLocked(ctx, user.ID, credential, &events)
	m.mu.Unlock()
	m.dispatchAll(events)
	return linked, err
}

func (m *Manager) linkLocked(ctx context.Context, userID string, credential Credential, events *[]AuthEvent) (*User, error) {
	rec := m.records[m.activeID]
	if m.activeID == "" || m.activeID != userID || rec == nil || !rec.loggedIn {
		return nil, ErrInvalidSession
	}

	body, err := m.loginRequestBody(credential.Material)
	if err != nil {
		return nil, err
	}
	res, err := m.transport.RoundTrip(ctx, &Request{
		Method: "POST",
		Path:   m.routes.ProviderLinkRoute(credential.ProviderName),
		Headers: map[string]string{
			headerContentType:   contentTypeJSON,
			headerAuthorization: bearerPrefix + rec.info.AccessToken,
		},
		Body: body,
	})
	if err != nil {
		return nil, err
	}
	if !is2xx(res) {
		return nil, errorFromResponse(res)
	}
	fresh, err := decodeAPIAuthInfo(res.Body)
	if err != nil {
		return nil, err
	}

	merged := rec.info.Merge(fresh)
	merged.LoggedInProviderType = credential.ProviderType
	merged.LoggedInProviderName = credential.ProviderName

	// Linking changes the identity list server-side, so the profile is always
	// refetched rather than trusting the local copy.
	profile, err := m.fetchProfile(ctx, merged.AccessToken)
	if err != nil {
		return nil, err
	}
	merged.Profile = profile

	rec.info = merged
	rec.lastAuthActivity = m.clock()
	if err := m.store.saveUser(userID, rec.stored()); err != nil {
		return nil, err
	}

	user := m.userSnapshotLocked(userID)
	*events = append(*events, AuthEvent{Type: EventUserLinked, User: user, OccurredAt: m.clock()})
	return user, nil
}

// Logout logs out the active user. A missing active user is a no-op success.
// The remote session termination is best-effort: local state is cleared even
// when the network call fails. Anonymous users are deleted outright.
func (m *Manager) Logout(ctx context.Context) error {
	var events []AuthEvent
	m.mu.Lock()
	if m.activeID != "" {
		m.logoutLocked(ctx, m.activeID, true, &events)
	}
	m.mu.Unlock()
	m.dispatchAll(events)
	return nil
}

// LogoutUserWithID logs out the given user, which does not have to be the
// active one. Logging out a non-active user invalidates only that record.
func (m *Manager) LogoutUserWithID(ctx context.Context, userID string) error {
	var events []AuthEvent
	m.mu.Lock()
	_, ok := m.records[userID]
	if !ok {
		m.mu.Unlock()
		return ErrUserNotFound
	}
	m.logoutLocked(ctx, userID, true, &events)
	m.mu.Unlock()
	m.dispatchAll(events)
	return nil
}

// logoutLocked clears one user's session. With remote set, the backend
// session is terminated first (best-effort). Anonymous records are deleted
// instead of retained.
func (m *Manager) logoutLocked(ctx context.Context, userID string, remote bool, events *[]AuthEvent) {
	rec := m.records[userID]
	if rec == nil {
		return
	}

	user := m.userSnapshotLocked(userID)
	user.LoggedIn = false

	if remote && rec.loggedIn && rec.info.RefreshToken != "" {
		m.terminateRemoteSession(ctx, rec.info.RefreshToken)
	}

	wasActive := userID == m.activeID
	isAnonymous := rec.info.LoggedInProviderType == ProviderTypeAnonymous

	if isAnonymous {
		delete(m.records, userID)
		m.order = removeID(m.order, userID)
		if err := m.store.removeUser(userID); err != nil {
			m.logger.Warn("Could not remove anonymous user record", "user_id", userID, "error", err)
		}
		if err := m.store.saveIndex(m.order); err != nil {
			m.logger.Warn("Could not persist user index", "error", err)
		}
	} else {
		rec.info = rec.info.LoggedOut()
		rec.loggedIn = false
		rec.lastAuthActivity = m.clock()
		if err := m.store.saveUser(userID, rec.stored()); err != nil {
			m.logger.Warn("Could not persist logged out user record", "user_id", userID, "error", err)
		}
	}

	*events = append(*events, AuthEvent{Type: EventUserLoggedOut, User: user, OccurredAt: m.clock()})
	if isAnonymous {
		*events = append(*events, AuthEvent{Type: EventUserRemoved, User: user, OccurredAt: m.clock()})
	}
	if wasActive {
		m.activeID = ""
		if err := m.store.saveActiveUser(""); err != nil {
			m.logger.Warn("Could not clear active user pointer", "error", err)
		}
		*events = append(*events, AuthEvent{
			Type:               EventActiveUserChanged,
			PreviousActiveUser: user,
			OccurredAt:         m.clock(),
		})
	}
}

// terminateRemoteSession asks the backend to drop the session belonging to
// the refresh token. Failures are logged and ignored; logout proceeds
// locally regardless.
func (m *Manager) terminateRemoteSession(ctx context.Context, refreshToken string) {
	res, err := m.transport.RoundTrip(ctx, &Request{
		Method:  "DELETE",
		Path:    m.routes.SessionRoute(),
		Headers: map[string]string{headerAuthorization: bearerPrefix + refreshToken},
	})
	if err != nil {
		m.logger.Warn("Remote session termination failed", "error", err)
		return
	}
	if !is2xx(res) {
		m.logger.Warn("Remote session termination rejected", "status", res.StatusCode)
	}
}

// RemoveUser removes the active user: logs it out first if needed, then
// deletes the record.
func (m *Manager) RemoveUser(ctx context.Context) error {
	var events []AuthEvent
	m.mu.Lock()
	if m.activeID == "" {
		m.mu.Unlock()
		return ErrUnauthorized
	}
	m.removeLocked(ctx, m.activeID, &events)
	m.mu.Unlock()
	m.dispatchAll(events)
	return nil
}

// RemoveUserWithID removes the given user, active or not.
func (m *Manager) RemoveUserWithID(ctx context.Context, userID string) error {
	var events []AuthEvent
	m.mu.Lock()
	if _, ok := m.records[userID]; !ok {
		m.mu.Unlock()
		return ErrUserNotFound
	}
	m.removeLocked(ctx, userID, &events)
	m.mu.Unlock()
	m.dispatchAll(events)
	return nil
}

func (m *Manager) removeLocked(ctx context.Context, userID string, events *[]AuthEvent) {
	if rec := m.records[userID]; rec != nil && rec.loggedIn {
		m.logoutLocked(ctx, userID, true, events)
	}
	// Anonymous logout already deletes the record and emits UserRemoved.
	if _, still := m.records[userID]; !still {
		return
	}
	user := m.userSnapshotLocked(userID)
	user.LoggedIn = false
	delete(m.records, userID)
	m.order = removeID(m.order, userID)
	if err := m.store.removeUser(userID); err != nil {
		m.logger.Warn("Could not remove user record", "user_id", userID, "error", err)
	}
	if err := m.store.saveIndex(m.order); err != nil {
		m.logger.Warn("Could not persist user index", "error", err)
	}
	*events = append(*events, AuthEvent{Type: EventUserRemoved, User: user, OccurredAt: m.clock()})
}

// SwitchToUserWithID makes a known, logged-in user the active one. Purely
// local; no network call is performed.
func (m *Manager) SwitchToUserWithID(userID string) (*User, error) {
	var events []AuthEvent
	m.mu.Lock()
	user, err := m.switchLocked(userID, &events)
	m.mu.Unlock()
	m.dispatchAll(events)
	return user, err
}

func (m *Manager) switchLocked(userID string, events *[]AuthEvent) (*User, error) {
	rec, ok := m.records[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	if !rec.loggedIn {
		return nil, ErrInvalidSession
	}

	now := m.clock()
	previous := m.userSnapshotLocked(m.activeID)
	if m.activeID != "" && m.activeID != userID {
		if prevRec := m.records[m.activeID]; prevRec != nil {
			prevRec.lastAuthActivity = now
			if err := m.store.saveUser(m.activeID, prevRec.stored()); err != nil {
				m.logger.Warn("Could not persist previous active user", "user_id", m.activeID, "error", err)
			}
		}
	}

	rec.lastAuthActivity = now
	m.activeID = userID
	if err := m.store.saveUser(userID, rec.stored()); err != nil {
		return nil, err
	}
	if err := m.store.saveActiveUser(userID); err != nil {
		return nil, err
	}

	user := m.userSnapshotLocked(userID)
	*events = append(*events, AuthEvent{
		Type:               EventActiveUserChanged,
		CurrentActiveUser:  user,
		PreviousActiveUser: previous,
		OccurredAt:         now,
	})
	return user, nil
}

// RefreshAccessToken renews the active user's access token using its refresh
// token. Concurrent callers coalesce onto a single in-flight request.
func (m *Manager) RefreshAccessToken(ctx context.Context) error {
	m.mu.Lock()
	userID := m.activeID
	m.mu.Unlock()
	if userID == "" {
		return ErrUnauthorized
	}

	_, err, _ := m.refreshGroup.Do(userID, func() (any, error) {
		return nil, m.refreshUserToken(ctx, userID)
	})
	return err
}

func (m *Manager) refreshUserToken(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[userID]
	if !ok || !rec.loggedIn {
		return ErrInvalidSession
	}

	res, err := m.transport.RoundTrip(ctx, &Request{
		Method:  "POST",
		Path:    m.routes.SessionRoute(),
		Headers: map[string]string{headerAuthorization: bearerPrefix + rec.info.RefreshToken},
	})
	if err != nil {
		return err
	}
	if !is2xx(res) {
		return errorFromResponse(res)
	}
	fresh, err := decodeAPIAuthInfo(res.Body)
	if err != nil {
		return err
	}

	rec.info = rec.info.Merge(fresh)
	rec.lastAuthActivity = m.clock()
	return m.store.saveUser(userID, rec.stored())
}

// activeAccessToken returns the active user's access token, or "" when nobody
// is logged in. Used by the background refresher.
func (m *Manager) activeAccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeID == "" {
		return ""
	}
	rec := m.records[m.activeID]
	if rec == nil || !rec.loggedIn {
		return ""
	}
	return rec.info.AccessToken
}

func (m *Manager) fetchProfile(ctx context.Context, accessToken string) (*UserProfile, error) {
	res, err := m.transport.RoundTrip(ctx, &Request{
		Method:  "GET",
		Path:    m.routes.ProfileRoute(),
		Headers: map[string]string{headerAuthorization: bearerPrefix + accessToken},
	})
	if err != nil {
		return nil, err
	}
	if !is2xx(res) {
		return nil, errorFromResponse(res)
	}
	var profile UserProfile
	if err := json.Unmarshal(res.Body, &profile); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "could not decode profile payload").
			WithTextCode(TextCodeServiceError)
	}
	return &profile, nil
}

// loginRequestBody wraps credential material with device metadata.
func (m *Manager) loginRequestBody(material map[string]string) ([]byte, error) {
	payload := make(map[string]any, len(material)+1)
	for k, v := range material {
		payload[k] = v
	}
	payload["options"] = map[string]any{
		"device": map[string]any{
			MaterialKeyDeviceID: m.deviceID,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not encode login payload")
	}
	return body, nil
}

func (m *Manager) userSnapshotLocked(userID string) *User {
	rec := m.records[userID]
	if rec == nil {
		return nil
	}
	return &User{
		ID:               userID,
		DeviceID:         rec.info.DeviceID,
		ProviderType:     rec.info.LoggedInProviderType,
		ProviderName:     rec.info.LoggedInProviderName,
		Profile:          rec.info.Profile.Clone(),
		LoggedIn:         rec.loggedIn,
		LastAuthActivity: rec.lastAuthActivity,
	}
}

func (m *Manager) dispatchAll(events []AuthEvent) {
	for _, event := range events {
		m.dispatcher.dispatch(event)
	}
}

func (r *authRecord) stored() *storedUser {
	return &storedUser{
		Info:             r.info,
		LoggedIn:         r.loggedIn,
		LastAuthActivity: r.lastAuthActivity,
	}
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

func is2xx(res *Response) bool {
	return res.StatusCode >= 200 && res.StatusCode < 300
}
