package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction statuses.  A transaction only ever moves forward:
// pending -> completed or pending -> cancelled.
const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
	TransactionCancelled = "cancelled"
)

// Payment methods accepted at the register.  Mollie covers online card
// payments confirmed asynchronously through the webhook.
const (
	PaymentCash    = "cash"
	PaymentCard    = "card"
	PaymentVoucher = "voucher"
	PaymentMollie  = "mollie"
)

// Transaction is a sale recorded by the POS checkout.  It is created in
// pending state and finalized exactly once.
//
// Fields:
//  ID             – primary key (uuid).
//  OrganizationID – tenant that owns the sale.
//  TotalAmount    – gross amount of all lines.
//  PaymentMethod  – cash, card, voucher or mollie.
//  Items          – sold lines, stored as JSON.
//  Status         – pending, completed or cancelled.
//  TSEData        – fiscal signature, nil when the sale was completed unsigned.
type Transaction struct {
	ID             string           // transactions.id
	OrganizationID string           // transactions.organization_id
	TotalAmount    decimal.Decimal  // transactions.total_amount
	PaymentMethod  string           // transactions.payment_method
	Items          []LineItem       // transactions.items (JSON)
	Status         string           // transactions.status
	TSEData        *FiscalSignature // transactions.tse_data (JSON, nullable)
	CreatedAt      time.Time        // transactions.created_at
	UpdatedAt      time.Time        // transactions.updated_at
}

// LineItem is one position on a receipt.  VATRate is a percentage; a nil
// rate means the organization default applies.
type LineItem struct {
	Name     string           `json:"name"`
	Price    decimal.Decimal  `json:"price"`
	Quantity int              `json:"quantity"`
	VATRate  *decimal.Decimal `json:"vat_rate,omitempty"`
}

// IsPending reports whether the transaction still awaits finalization.
func (t *Transaction) IsPending() bool { return t.Status == TransactionPending }
