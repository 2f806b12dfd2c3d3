package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-pos/internal/middleware"
	"github.com/iliyamo/studio-pos/internal/model"
	"github.com/iliyamo/studio-pos/internal/repository"
	"github.com/iliyamo/studio-pos/internal/service"
)

// TransactionReader loads a sale of an organization.
type TransactionReader interface {
	GetByID(ctx context.Context, orgID, id string) (*model.Transaction, error)
}

// TransactionFinalizer completes a pending sale.
type TransactionFinalizer interface {
	Finalize(ctx context.Context, transactionID, organizationID string) (service.FinalizeResult, error)
}

// TransactionHandler exposes sales and the manual finalize trigger used by
// the register for cash and card payments.
type TransactionHandler struct {
	Transactions TransactionReader
	Finalizer    TransactionFinalizer
	Logger       *log.Logger
}

// NewTransactionHandler panics when a dependency is nil.
func NewTransactionHandler(transactions TransactionReader, finalizer TransactionFinalizer, logger *log.Logger) *TransactionHandler {
	if transactions == nil || finalizer == nil {
		panic("nil dependency passed to NewTransactionHandler")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TransactionHandler{Transactions: transactions, Finalizer: finalizer, Logger: logger}
}

// transactionView is the JSON shape of a sale.  TSEData is null for sales
// completed without a fiscal signature.
type transactionView struct {
	ID            string                 `json:"id"`
	TotalAmount   decimal.Decimal        `json:"total_amount"`
	PaymentMethod string                 `json:"payment_method"`
	Status        string                 `json:"status"`
	Items         []model.LineItem       `json:"items"`
	TSEData       *model.FiscalSignature `json:"tse_data"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func viewTransaction(t *model.Transaction) transactionView {
	items := t.Items
	if items == nil {
		items = []model.LineItem{}
	}
	return transactionView{
		ID:            t.ID,
		TotalAmount:   t.TotalAmount,
		PaymentMethod: t.PaymentMethod,
		Status:        t.Status,
		Items:         items,
		TSEData:       t.TSEData,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// Get handles GET /v1/transactions/:id.
func (h *TransactionHandler) Get(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, errorBody("invalid transaction id"))
	}
	tx, err := h.Transactions.GetByID(c.Request().Context(), middleware.OrgID(c), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorBody("transaction not found"))
		}
		h.Logger.Printf("transaction: get %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, errorBody("database error"))
	}
	return c.JSON(http.StatusOK, viewTransaction(tx))
}

// Finalize handles POST /v1/transactions/:id/finalize.  Skipped outcomes
// such as an already completed sale are returned with 200 so the register
// can retry safely.
func (h *TransactionHandler) Finalize(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, errorBody("invalid transaction id"))
	}
	res, err := h.Finalizer.Finalize(c.Request().Context(), id, middleware.OrgID(c))
	if err != nil {
		h.Logger.Printf("transaction: finalize %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, errorBody("finalization failed"))
	}
	return c.JSON(http.StatusOK, res)
}
