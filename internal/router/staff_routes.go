package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-pos/internal/handler"
	"github.com/iliyamo/studio-pos/internal/middleware"
)

// StaffHandlers bundles the handlers behind the staff API.
type StaffHandlers struct {
	Checkins     *handler.CheckinHandler
	Transactions *handler.TransactionHandler
	Payments     *handler.PaymentHandler
	TSE          *handler.TSEHandler
}

// RegisterStaff registers the /v1 endpoints used by the desk and the
// register.  All routes require a valid JWT with role STAFF or OWNER.
// rateLimit fronts the check-in scanner and cache fronts provider lookups;
// either may be a pass-through.
func RegisterStaff(e *echo.Echo, h StaffHandlers, jwtSecret string, rateLimit, cache echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleStaff, middleware.RoleOwner),
	)

	// ---- Check-in ----
	g.POST("/checkins", h.Checkins.CheckIn, rateLimit)
	g.GET("/checkins", h.Checkins.List)

	// ---- Transactions ----
	g.GET("/transactions/:id", h.Transactions.Get)
	g.POST("/transactions/:id/finalize", h.Transactions.Finalize)

	// ---- Payment provider ----
	g.GET("/payments/methods", h.Payments.Methods, cache)
	g.POST("/payments/test-connection", h.Payments.TestConnection)

	// ---- Fiscal signer ----
	g.GET("/tse/status", h.TSE.Status)
}
