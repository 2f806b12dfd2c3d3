package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentPaid is the provider status that triggers finalization.
const PaymentPaid = "paid"

// PaymentRecord mirrors a row of mollie_payments.  (OrganizationID,
// ExternalID) is unique; the webhook upserts on that pair.
type PaymentRecord struct {
	ID             string          // mollie_payments.id
	OrganizationID string          // mollie_payments.organization_id
	ExternalID     string          // mollie_payments.mollie_payment_id
	Amount         decimal.Decimal // mollie_payments.amount
	Currency       string          // mollie_payments.currency
	Status         string          // mollie_payments.status
	Method         *string         // mollie_payments.method (nullable)
	PaidAt         *time.Time      // mollie_payments.paid_at (nullable)
	TransactionID  *string         // mollie_payments.transaction_id (nullable)
	CreatedAt      time.Time       // mollie_payments.created_at
	UpdatedAt      time.Time       // mollie_payments.updated_at
}

// PaymentConfig is an organization's payment provider setup.
type PaymentConfig struct {
	OrganizationID string // payment_configs.organization_id
	Provider       string // payment_configs.provider
	APIKey         string // payment_configs.api_key (opened)
	TestMode       bool   // payment_configs.test_mode
	IsActive       bool   // payment_configs.is_active
}
