// Package middleware contains the echo middleware shared by the staff API
// and the webhook endpoint.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by the middleware in this package.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
	ctxOrgID  = "org_id"
)

// StaffClaims is the token body issued to staff by the identity provider.
// Subject is the staff user id; OrgID is the studio the session acts for.
type StaffClaims struct {
	Role  string `json:"role"`
	OrgID string `json:"org_id"`
	jwt.RegisteredClaims
}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the subject, role and organization claims into the request
// context.  Tokens without an organization are rejected since every staff
// operation is tenant scoped.  Handlers read the values through UserID,
// Role and OrgID.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			var claims StaffClaims
			tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			if claims.Subject == "" || claims.OrgID == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set(ctxUserID, claims.Subject)
			c.Set(ctxRole, claims.Role)
			c.Set(ctxOrgID, claims.OrgID)
			return next(c)
		}
	}
}
