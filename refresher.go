package authclient

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenRefresher periodically inspects the active access token and renews it
// before it expires. The loop never raises: a failed refresh is logged and
// retried on the next tick, and the next authenticated request surfaces a
// real failure if the token is actually unusable.
type tokenRefresher struct {
	manager   *Manager
	interval  time.Duration
	lookahead time.Duration
	logger    Logger

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newTokenRefresher(manager *Manager, interval, lookahead time.Duration, logger Logger) *tokenRefresher {
	if logger == nil {
		logger = defLogger{}
	}
	return &tokenRefresher{
		manager:   manager,
		interval:  interval,
		lookahead: lookahead,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

func (r *tokenRefresher) start() {
	r.wg.Add(1)
	go r.run()
}

func (r *tokenRefresher) run() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.checkOnce(context.Background())
		case <-r.done:
			return
		}
	}
}

func (r *tokenRefresher) checkOnce(ctx context.Context) {
	token := r.manager.activeAccessToken()
	if token == "" {
		return
	}
	if !shouldRefresh(token, r.lookahead, r.manager.clock()) {
		return
	}
	if err := r.manager.RefreshAccessToken(ctx); err != nil {
		r.logger.Warn("Proactive access token refresh failed", "error", err)
	}
}

func (r *tokenRefresher) stop() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

// shouldRefresh reports whether the token is expired or expires within the
// lookahead window. Malformed tokens and tokens without an expiry claim are
// not refreshed.
func shouldRefresh(accessToken string, lookahead time.Duration, now time.Time) bool {
	token, _, err := jwt.NewParser().ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.Add(lookahead).After(exp.Time)
}
