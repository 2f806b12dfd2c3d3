package middleware

// identity.go exposes the identity values the other middleware stored in
// the echo context.  Missing values come back as empty strings.

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// TenantHeader is set by the upstream router on requests it has already
// attributed to a studio, such as payment provider callbacks.
const TenantHeader = "X-Organization-Id"

// UserID returns the authenticated staff user id.
func UserID(c echo.Context) string { return ctxString(c, ctxUserID) }

// Role returns the authenticated staff role.
func Role(c echo.Context) string { return ctxString(c, ctxRole) }

// OrgID returns the organization the request acts for.
func OrgID(c echo.Context) string { return ctxString(c, ctxOrgID) }

// TrustedTenant copies the organization id from TenantHeader into the
// context.  It must only be mounted on routes the upstream router
// attributes itself; the header is never accepted on staff routes.
func TrustedTenant() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if org := strings.TrimSpace(c.Request().Header.Get(TenantHeader)); org != "" {
				c.Set(ctxOrgID, org)
			}
			return next(c)
		}
	}
}

func ctxString(c echo.Context, key string) string {
	if s, ok := c.Get(key).(string); ok {
		return s
	}
	return ""
}
