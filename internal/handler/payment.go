package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-pos/internal/middleware"
	"github.com/iliyamo/studio-pos/internal/payment"
	"github.com/iliyamo/studio-pos/internal/service"
)

// PaymentSettings answers the payment settings screens.
type PaymentSettings interface {
	Methods(ctx context.Context, orgID string) ([]payment.Method, error)
	TestConnection(ctx context.Context, orgID string) (payment.ConnectionReport, error)
}

// PaymentHandler exposes the organization's payment provider setup.
type PaymentHandler struct {
	Settings PaymentSettings
	Logger   *log.Logger
}

// NewPaymentHandler panics when settings is nil.
func NewPaymentHandler(settings PaymentSettings, logger *log.Logger) *PaymentHandler {
	if settings == nil {
		panic("nil payment settings passed to NewPaymentHandler")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PaymentHandler{Settings: settings, Logger: logger}
}

// Methods handles GET /v1/payments/methods.
func (h *PaymentHandler) Methods(c echo.Context) error {
	methods, err := h.Settings.Methods(c.Request().Context(), middleware.OrgID(c))
	if err != nil {
		return h.fail(c, "list methods", err)
	}
	if methods == nil {
		methods = []payment.Method{}
	}
	return c.JSON(http.StatusOK, echo.Map{"methods": methods})
}

// TestConnection handles POST /v1/payments/test-connection.  A rejected
// key is a report with success false, not an error.
func (h *PaymentHandler) TestConnection(c echo.Context) error {
	report, err := h.Settings.TestConnection(c.Request().Context(), middleware.OrgID(c))
	if err != nil {
		return h.fail(c, "test connection", err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *PaymentHandler) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, service.ErrPaymentNotConfigured):
		return c.JSON(http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, service.ErrMissingOrganization):
		return c.JSON(http.StatusUnauthorized, errorBody("unauthorized"))
	case errors.Is(err, payment.ErrUnauthorized):
		return c.JSON(http.StatusBadGateway, errorBody("payment provider rejected the API key"))
	}
	h.Logger.Printf("payments: %s for org %s: %v", op, middleware.OrgID(c), err)
	var apiErr *payment.APIError
	if errors.As(err, &apiErr) {
		return c.JSON(http.StatusBadGateway, errorBody("payment provider unavailable"))
	}
	return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
}
