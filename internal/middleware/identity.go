package middleware

import "github.com/labstack/echo/v4"

// CallerID returns the verified subject set by JWTAuth, or "" when the
// request is anonymous.
func CallerID(c echo.Context) string {
	s, _ := c.Get(CtxUserID).(string)
	return s
}

// ClaimedRole returns the role claim of the access token. It may be stale.
func ClaimedRole(c echo.Context) string {
	s, _ := c.Get(CtxRole).(string)
	return s
}

// callerKey identifies the caller for rate limiting and cache keys.
func callerKey(c echo.Context) string {
	if id := CallerID(c); id != "" {
		return id
	}
	return "anon"
}
