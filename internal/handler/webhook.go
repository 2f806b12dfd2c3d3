package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-pos/internal/middleware"
	"github.com/iliyamo/studio-pos/internal/service"
)

// WebhookReconciler processes one payment provider callback.
type WebhookReconciler interface {
	HandleWebhook(ctx context.Context, organizationID, externalPaymentID string) error
}

// WebhookHandler receives Mollie callbacks.  The organization comes from
// the trusted tenant header, the payment id from the form body.
type WebhookHandler struct {
	Reconciler WebhookReconciler
	Logger     *log.Logger
}

// NewWebhookHandler panics when reconciler is nil.
func NewWebhookHandler(reconciler WebhookReconciler, logger *log.Logger) *WebhookHandler {
	if reconciler == nil {
		panic("nil reconciler passed to NewWebhookHandler")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WebhookHandler{Reconciler: reconciler, Logger: logger}
}

// Mollie handles POST /api/webhooks/mollie.  Mollie only sends the payment
// id and expects a 2xx once the callback has been taken over; anything else
// is redelivered.  Finalization problems after the payment was stored are
// still acknowledged.
func (h *WebhookHandler) Mollie(c echo.Context) error {
	org := middleware.OrgID(c)
	id := c.FormValue("id")

	err := h.Reconciler.HandleWebhook(c.Request().Context(), org, id)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	case errors.Is(err, service.ErrBadWebhook), errors.Is(err, service.ErrPaymentNotConfigured):
		h.Logger.Printf("webhook: rejected payment %q for org %q: %v", id, org, err)
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	default:
		h.Logger.Printf("webhook: payment %q for org %q: %v", id, org, err)
		return c.JSON(http.StatusInternalServerError, errorBody("webhook processing failed"))
	}
}
