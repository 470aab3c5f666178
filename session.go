package renovo

import "fmt"

// SetTokens installs a freshly issued credential pair, marking the session
// live again after any previous expiry. This is the login entry point: only
// an explicit call here (or RestoreSession) re-arms the unauthorized callback
// once it has fired.
func (c *Client) SetTokens(access, refresh string) {
	c.credMu.Lock()
	c.accessToken = access
	c.refreshToken = refresh
	c.loggedOut.Store(false)
	c.credMu.Unlock()

	if c.store != nil {
		if err := c.store.Save(access, refresh); err != nil {
			c.logStoreFailure("save", err)
			if c.metrics != nil {
				c.metrics.RecordStoreError("save")
			}
		}
	}
}

// ClearTokens drops the session on purpose. The logged-out latch is set
// before the credentials go away so a request already failing in flight
// cannot fire the unauthorized callback on a session the caller ended
// deliberately.
func (c *Client) ClearTokens() {
	c.credMu.Lock()
	c.loggedOut.Store(true)
	c.accessToken = ""
	c.refreshToken = ""
	c.credMu.Unlock()

	if c.store != nil {
		if err := c.store.Clear(); err != nil {
			c.logStoreFailure("clear", err)
			if c.metrics != nil {
				c.metrics.RecordStoreError("clear")
			}
		}
	}
}

// RestoreSession loads a previously saved pair from the token store and, if
// one exists, installs it like SetTokens (without writing it back). It
// reports whether a session was found.
func (c *Client) RestoreSession() (bool, error) {
	if c.store == nil {
		return false, nil
	}
	access, refresh, err := c.store.Load()
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordStoreError("load")
		}
		return false, fmt.Errorf("restore session: %w", err)
	}
	if access == "" && refresh == "" {
		return false, nil
	}

	c.credMu.Lock()
	c.accessToken = access
	c.refreshToken = refresh
	c.loggedOut.Store(false)
	c.credMu.Unlock()
	return true, nil
}

// Tokens returns the current credential pair.
func (c *Client) Tokens() (access, refresh string) {
	c.credMu.Lock()
	defer c.credMu.Unlock()
	return c.accessToken, c.refreshToken
}

// Authenticated reports whether the client currently holds credentials.
func (c *Client) Authenticated() bool {
	access, refresh := c.Tokens()
	return (access != "" || refresh != "") && !c.loggedOut.Load()
}

// SetOnUnauthorized registers the hook invoked after a failed refresh has
// torn the session down. It runs at most once per expiry no matter how many
// requests fail concurrently; a new SetTokens re-arms it.
func (c *Client) SetOnUnauthorized(fn func()) {
	c.callbackMu.Lock()
	c.onUnauthorized = fn
	c.callbackMu.Unlock()
}

// signalUnauthorized latches the session into the logged-out state. The
// compare-and-swap makes the transition exclusive: when N concurrent requests
// all fail their refresh, exactly one of them clears the credentials and runs
// the callback; the rest only surface their own errors.
func (c *Client) signalUnauthorized() {
	if !c.loggedOut.CompareAndSwap(false, true) {
		return
	}

	c.credMu.Lock()
	c.accessToken = ""
	c.refreshToken = ""
	c.credMu.Unlock()

	if c.store != nil {
		if err := c.store.Clear(); err != nil {
			c.logStoreFailure("clear", err)
			if c.metrics != nil {
				c.metrics.RecordStoreError("clear")
			}
		}
	}
	if c.metrics != nil {
		c.metrics.RecordSessionExpired()
	}
	if c.debugEnabled() && c.debug.LogAuth {
		c.logger.Warn("session expired, credentials cleared")
	}

	c.callbackMu.Lock()
	fn := c.onUnauthorized
	c.callbackMu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) currentAccessToken() string {
	c.credMu.Lock()
	defer c.credMu.Unlock()
	return c.accessToken
}

func (c *Client) currentRefreshToken() string {
	c.credMu.Lock()
	defer c.credMu.Unlock()
	return c.refreshToken
}

// Store failures are logged but never fail the calling operation: the
// in-memory session stays usable even when persistence is broken.
func (c *Client) logStoreFailure(op string, err error) {
	if c.logger != nil {
		c.logger.Error("token store "+op+" failed", "error", err)
	}
}
