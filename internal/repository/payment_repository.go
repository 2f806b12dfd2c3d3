package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/studio-pos/internal/model"
)

// PaymentRepo persists provider payments observed through webhooks.  Rows
// are unique per (organization_id, mollie_payment_id).
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// GetByExternalID loads the local record of a provider payment.
func (r *PaymentRepo) GetByExternalID(ctx context.Context, orgID, externalID string) (*model.PaymentRecord, error) {
	const q = `SELECT id, organization_id, mollie_payment_id, amount, currency, status, method, paid_at,
                      transaction_id, created_at, updated_at
               FROM mollie_payments
               WHERE organization_id = ? AND mollie_payment_id = ?`
	var (
		p      model.PaymentRecord
		method sql.NullString
		paidAt sql.NullTime
		txID   sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, orgID, externalID).Scan(
		&p.ID, &p.OrganizationID, &p.ExternalID, &p.Amount, &p.Currency, &p.Status, &method, &paidAt,
		&txID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if method.Valid {
		m := method.String
		p.Method = &m
	}
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		p.PaidAt = &t
	}
	if txID.Valid {
		id := txID.String
		p.TransactionID = &id
	}
	return &p, nil
}

// Insert creates the local record.  ErrDuplicate is returned when a
// concurrent delivery inserted the same payment first.
func (r *PaymentRepo) Insert(ctx context.Context, p *model.PaymentRecord) error {
	const q = `INSERT INTO mollie_payments
               (id, organization_id, mollie_payment_id, amount, currency, status, method, paid_at, transaction_id)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, p.ID, p.OrganizationID, p.ExternalID, p.Amount, p.Currency, p.Status,
		p.Method, utcPtr(p.PaidAt), p.TransactionID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdateStatus refreshes status, method and paid_at of an existing record.
// A transaction link is only filled in, never replaced.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, p *model.PaymentRecord) error {
	const q = `UPDATE mollie_payments
               SET status = ?, method = ?, paid_at = ?, transaction_id = COALESCE(transaction_id, ?)
               WHERE organization_id = ? AND mollie_payment_id = ?`
	res, err := r.db.ExecContext(ctx, q, p.Status, p.Method, utcPtr(p.PaidAt), p.TransactionID, p.OrganizationID, p.ExternalID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows when nothing changed; only a missing row is an error.
	if n == 0 {
		if _, err := r.GetByExternalID(ctx, p.OrganizationID, p.ExternalID); err != nil {
			return err
		}
	}
	return nil
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
