// Package router registers the HTTP routes of the POS service.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-pos/internal/handler"
	"github.com/iliyamo/studio-pos/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterWebhooks registers the payment provider callbacks.  They carry no
// token; the organization comes from the header set by upstream routing.
func RegisterWebhooks(e *echo.Echo, w *handler.WebhookHandler) {
	g := e.Group("/api/webhooks", middleware.TrustedTenant())
	g.POST("/mollie", w.Mollie)
}
