package authclient

import (
	"context"
	"encoding/json"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	contentTypeJSON     = "application/json"
	bearerPrefix        = "Bearer "
)

// apiErrorCodeInvalidSession is the structured error code the backend uses
// when the presented token is no longer accepted. Only this code drives the
// refresh-retry path; any other failure passes through untouched.
const apiErrorCodeInvalidSession = "InvalidSession"

type apiErrorPayload struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

// errorFromResponse classifies a non-2xx backend response. Invalid sessions
// become ErrInvalidSession-coded errors; everything else is surfaced as a
// service error carrying the backend message and status.
func errorFromResponse(res *Response) error {
	var payload apiErrorPayload
	if len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, &payload); err != nil {
			payload = apiErrorPayload{}
		}
	}

	message := payload.Error
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", res.StatusCode)
	}

	if payload.ErrorCode == apiErrorCodeInvalidSession {
		return goerrors.New(message, goerrors.CategoryAuth).
			WithTextCode(TextCodeInvalidSession).
			WithCode(goerrors.CodeUnauthorized)
	}
	return goerrors.New(fmt.Sprintf("%s (status %d)", message, res.StatusCode), goerrors.CategoryOperation).
		WithTextCode(TextCodeServiceError)
}

type requestOptions struct {
	useRefreshToken bool
}

// RequestOption customizes a single authenticated request.
type RequestOption func(*requestOptions)

// UseRefreshToken attaches the refresh token instead of the access token.
// Session endpoints themselves authenticate this way.
func UseRefreshToken() RequestOption {
	return func(o *requestOptions) {
		o.useRefreshToken = true
	}
}

// Do sends an authenticated request. It fails immediately with
// ErrUnauthorized when nobody is logged in, attaches the active user's
// bearer token, and on a backend-reported invalid session refreshes the
// access token and retries exactly once. A second invalid session clears the
// user's local credentials and surfaces the error; all other failures pass
// through without retry.
func (m *Manager) Do(ctx context.Context, req *Request, opts ...RequestOption) (*Response, error) {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}
	return m.doAuthenticated(ctx, req, o, true)
}

func (m *Manager) doAuthenticated(ctx context.Context, req *Request, o requestOptions, retryOnInvalid bool) (*Response, error) {
	token, userID, err := m.credentialForRequest(o.useRefreshToken)
	if err != nil {
		return nil, err
	}

	out := cloneRequest(req)
	out.Headers[headerAuthorization] = bearerPrefix + token

	res, err := m.transport.RoundTrip(ctx, out)
	if err != nil {
		return nil, err
	}
	if is2xx(res) {
		return res, nil
	}

	resErr := errorFromResponse(res)
	if !IsInvalidSessionError(resErr) {
		return nil, resErr
	}

	if retryOnInvalid {
		if refreshErr := m.RefreshAccessToken(ctx); refreshErr != nil {
			if IsInvalidSessionError(refreshErr) {
				// The refresh token itself is dead; nothing left to retry
				// with.
				m.forceLocalLogout(userID)
			}
			return nil, refreshErr
		}
		return m.doAuthenticated(ctx, req, o, false)
	}

	m.forceLocalLogout(userID)
	return nil, resErr
}

func (m *Manager) credentialForRequest(useRefreshToken bool) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeID == "" {
		return "", "", ErrUnauthorized
	}
	rec := m.records[m.activeID]
	if rec == nil || !rec.loggedIn {
		return "", "", ErrUnauthorized
	}
	if useRefreshToken {
		return rec.info.RefreshToken, m.activeID, nil
	}
	return rec.info.AccessToken, m.activeID, nil
}

// forceLocalLogout clears one user's credentials after an unrecoverable
// session error. No network call is made and no other user is touched.
func (m *Manager) forceLocalLogout(userID string) {
	var events []AuthEvent
	m.mu.Lock()
	m.logoutLocked(context.Background(), userID, false, &events)
	m.mu.Unlock()
	m.dispatchAll(events)
}
