// Package authclient implements the client side of an authentication session:
// login state for a client talking to a remote backend, multi-user credential
// persistence, proactive access token refresh, and transparent retry of
// authenticated requests that fail because the session expired.
//
// The package owns no transport and no storage. Both are injected:
//   - Transport sends a request and returns a response. HTTP clients,
//     fetch shims, and test doubles all fit behind the same interface.
//   - Storage is a string key/value store. We ship an in-memory implementation
//     and a Bun/SQLite-backed one; keychains and browser storage plug in the
//     same way.
//   - Routes supplies the backend paths for session, profile, and per-provider
//     login/link endpoints. The core treats them as opaque strings.
//
// Session lifecycle:
//   - Manager owns the set of known users, the active user pointer, and every
//     mutation: login, link, logout, switch, remove, refresh. State is
//     persisted through Storage after each mutation and reloaded on
//     construction, so sessions survive restarts.
//   - Anonymous identities are ephemeral. Logging out an anonymous user
//     deletes its record instead of retaining it for later re-login.
//
// Authenticated requests:
//   - Manager.Do attaches the active user's access token, detects
//     backend-reported invalid sessions, refreshes once, and retries once.
//     Concurrent expiries coalesce onto a single in-flight refresh.
//   - A background refresher inspects the access token expiry and renews it
//     before authenticated calls start failing.
//
// Auth events:
//   - Lifecycle changes (user added, logged in/out, linked, removed, active
//     user changed) fan out to listeners, either inline or on a deferred
//     dispatch goroutine. New listeners receive a synthetic registration
//     event so they can reconcile against current state.
package authclient
