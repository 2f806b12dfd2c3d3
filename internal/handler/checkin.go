package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-pos/internal/middleware"
	"github.com/iliyamo/studio-pos/internal/model"
	"github.com/iliyamo/studio-pos/internal/service"
)

// Checkins is the check-in use case as seen by the desk.
type Checkins interface {
	CheckIn(ctx context.Context, in service.CheckinInput) (service.CheckinResult, error)
	Recent(ctx context.Context, orgID string, limit int) ([]model.Checkin, error)
}

// CheckinHandler serves the front desk scanner.  JWTAuth and RequireRole
// run before every method, so the organization and staff id are always
// present in the context.
type CheckinHandler struct {
	Checkins Checkins
	Logger   *log.Logger
}

// NewCheckinHandler panics when checkins is nil.
func NewCheckinHandler(checkins Checkins, logger *log.Logger) *CheckinHandler {
	if checkins == nil {
		panic("nil check-in service passed to NewCheckinHandler")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CheckinHandler{Checkins: checkins, Logger: logger}
}

type checkinRequest struct {
	Identifier string `json:"identifier"`
	Location   string `json:"location"`
}

// CheckIn handles POST /v1/checkins.  Refusals such as an empty card are
// regular results and come back with 200 and success false.  The message
// language follows Accept-Language, German by default.
func (h *CheckinHandler) CheckIn(c echo.Context) error {
	var body checkinRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	res, err := h.Checkins.CheckIn(c.Request().Context(), service.CheckinInput{
		OrganizationID: middleware.OrgID(c),
		Identifier:     body.Identifier,
		Location:       body.Location,
		ProcessedBy:    middleware.UserID(c),
		Lang:           service.MatchLanguage(c.Request().Header.Get("Accept-Language")),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingOrganization):
			return c.JSON(http.StatusUnauthorized, errorBody("unauthorized"))
		case errors.Is(err, service.ErrCheckinContention):
			return c.JSON(http.StatusConflict, errorBody(err.Error()))
		}
		h.Logger.Printf("checkin: org %s: %v", middleware.OrgID(c), err)
		return c.JSON(http.StatusInternalServerError, errorBody("database error"))
	}
	return c.JSON(http.StatusOK, res)
}

// List handles GET /v1/checkins and returns the newest audit rows.
func (h *CheckinHandler) List(c echo.Context) error {
	rows, err := h.Checkins.Recent(c.Request().Context(), middleware.OrgID(c), queryLimit(c))
	if err != nil {
		if errors.Is(err, service.ErrMissingOrganization) {
			return c.JSON(http.StatusUnauthorized, errorBody("unauthorized"))
		}
		h.Logger.Printf("checkin: list for org %s: %v", middleware.OrgID(c), err)
		return c.JSON(http.StatusInternalServerError, errorBody("database error"))
	}
	if rows == nil {
		rows = []model.Checkin{}
	}
	return c.JSON(http.StatusOK, echo.Map{"checkins": rows})
}
