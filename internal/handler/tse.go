package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-pos/internal/middleware"
	"github.com/iliyamo/studio-pos/internal/model"
)

// TSEConfigSource returns the organization's signer configuration, nil
// when none is stored.
type TSEConfigSource interface {
	GetConfig(ctx context.Context, orgID string) (*model.TSEConfig, error)
}

// TSEHandler reports the fiscal signer setup without exposing secrets.
type TSEHandler struct {
	Configs TSEConfigSource
	Logger  *log.Logger
}

// NewTSEHandler panics when configs is nil.
func NewTSEHandler(configs TSEConfigSource, logger *log.Logger) *TSEHandler {
	if configs == nil {
		panic("nil config source passed to NewTSEHandler")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TSEHandler{Configs: configs, Logger: logger}
}

type tseStatus struct {
	Enabled     bool   `json:"enabled"`
	Environment string `json:"environment,omitempty"`
	TSSID       string `json:"tss_id,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
}

// Status handles GET /v1/tse/status.
func (h *TSEHandler) Status(c echo.Context) error {
	cfg, err := h.Configs.GetConfig(c.Request().Context(), middleware.OrgID(c))
	if err != nil {
		h.Logger.Printf("tse: status for org %s: %v", middleware.OrgID(c), err)
		return c.JSON(http.StatusInternalServerError, errorBody("database error"))
	}
	if cfg == nil {
		return c.JSON(http.StatusOK, tseStatus{})
	}
	return c.JSON(http.StatusOK, tseStatus{
		Enabled:     cfg.Usable(),
		Environment: cfg.Environment,
		TSSID:       cfg.TSSID,
		ClientID:    cfg.ClientID,
	})
}
