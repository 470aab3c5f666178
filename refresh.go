package renovo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// refreshAttempt is one in-flight credential refresh shared by every request
// that hit a 401 while it ran. The owner resolves ok before closing done;
// waiters read ok only after done is closed.
type refreshAttempt struct {
	ok   bool
	done chan struct{}
}

// joinRefresh returns the current attempt, or installs a new one. Exactly one
// goroutine per attempt sees owner=true.
func (c *Client) joinRefresh() (*refreshAttempt, bool) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if c.refreshing != nil {
		return c.refreshing, false
	}
	attempt := &refreshAttempt{done: make(chan struct{})}
	c.refreshing = attempt
	return attempt, true
}

// refreshAccessToken coordinates a single-flight token refresh: at most one
// network refresh runs at a time, and every caller that joins while it is in
// flight shares its outcome. The returned error is non-nil only when the
// caller's own context ended while waiting, which says nothing about the
// shared attempt still running behind it.
func (c *Client) refreshAccessToken(ctx context.Context) (bool, error) {
	attempt, owner := c.joinRefresh()
	if !owner {
		if c.metrics != nil {
			c.metrics.RecordRefreshJoined()
		}
		select {
		case <-attempt.done:
			return attempt.ok, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	attempt.ok = c.doRefresh(ctx)

	// Clear the slot before releasing waiters so a 401 arriving after the
	// broadcast starts a new attempt instead of joining a finished one.
	c.refreshMu.Lock()
	c.refreshing = nil
	c.refreshMu.Unlock()
	close(attempt.done)

	return attempt.ok, nil
}

// doRefresh performs the refresh call and commits the rotated pair. It
// returns false without touching the network when no refresh token exists or
// the session is already latched logged-out.
func (c *Client) doRefresh(ctx context.Context) bool {
	refreshToken := c.currentRefreshToken()
	if refreshToken == "" || c.loggedOut.Load() {
		if c.metrics != nil {
			c.metrics.RecordRefresh("skipped", 0)
		}
		return false
	}

	if c.debugEnabled() && c.debug.LogAuth {
		c.logger.Debug("refreshing access token")
	}

	// The refresh serves every waiter, so one canceled caller must not
	// abort it for the rest. Detach from the owner's cancellation and
	// bound the call with the client timeout instead.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(rctx, http.MethodPost, c.refreshURL, bytes.NewReader(payload))
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordRefresh("failure", 0)
		}
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := c.defaultHeader.Get("User-Agent"); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	start := time.Now()
	resp, err := c.transport(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordRefresh("failure", time.Since(start))
		}
		if c.debugEnabled() && c.debug.LogAuth {
			c.logger.Warn("token refresh failed", "error", err)
		}
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordRefresh("failure", time.Since(start))
		}
		return false
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.metrics != nil {
			c.metrics.RecordRefresh("failure", time.Since(start))
		}
		if c.debugEnabled() && c.debug.LogAuth {
			c.logger.Warn("token refresh rejected", "status", resp.StatusCode)
		}
		return false
	}

	var issued struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := json.Unmarshal(body, &issued); err != nil || issued.Access == "" {
		// Malformed grant: existing credentials stay untouched.
		if c.metrics != nil {
			c.metrics.RecordRefresh("failure", time.Since(start))
		}
		return false
	}

	c.credMu.Lock()
	if c.loggedOut.Load() {
		// Logout won the race while the request was in flight; do not
		// resurrect the session with the fresh pair.
		c.credMu.Unlock()
		if c.metrics != nil {
			c.metrics.RecordRefresh("skipped", time.Since(start))
		}
		return false
	}
	c.accessToken = issued.Access
	if issued.Refresh != "" {
		c.refreshToken = issued.Refresh
	}
	access, refresh := c.accessToken, c.refreshToken
	c.credMu.Unlock()

	if c.store != nil {
		if err := c.store.Save(access, refresh); err != nil {
			c.logStoreFailure("save", err)
			if c.metrics != nil {
				c.metrics.RecordStoreError("save")
			}
		}
	}

	if c.metrics != nil {
		c.metrics.RecordRefresh("success", time.Since(start))
	}
	if c.debugEnabled() && c.debug.LogAuth {
		c.logger.Debug("access token refreshed", "rotated", issued.Refresh != "")
	}
	return true
}

// Refresh forces a token refresh, sharing flight with any refresh already
// running, and reports whether fresh credentials are installed. Failure here
// does not tear the session down; that remains the job of the automatic
// 401 path.
func (c *Client) Refresh(ctx context.Context) bool {
	ok, err := c.refreshAccessToken(ctx)
	return ok && err == nil
}

// maybeRefreshEarly refreshes ahead of expiry when the access token will age
// out within the configured leeway. The request proceeds with whatever
// credential state results; a failed eager refresh is not an error.
func (c *Client) maybeRefreshEarly(ctx context.Context) {
	if c.eagerRefreshLeeway <= 0 {
		return
	}
	expiry, ok := c.TokenExpiry()
	if !ok {
		return
	}
	if time.Until(expiry) > c.eagerRefreshLeeway {
		return
	}
	_, _ = c.refreshAccessToken(ctx)
}
