package renovo

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reports when the current access token expires, provided the
// token is a JWT carrying an exp claim. The signature is deliberately not
// verified: the client is not the token's audience, it only uses the claim
// to schedule refreshes. Opaque tokens report false.
func (c *Client) TokenExpiry() (time.Time, bool) {
	access := c.currentAccessToken()
	if access == "" {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// TokenExpiresWithin reports whether the access token is a JWT expiring
// inside the given window.
func (c *Client) TokenExpiresWithin(window time.Duration) bool {
	expiry, ok := c.TokenExpiry()
	if !ok {
		return false
	}
	return time.Until(expiry) <= window
}
