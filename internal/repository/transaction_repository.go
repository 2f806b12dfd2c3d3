package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/studio-pos/internal/model"
)

// TransactionRepo reads transactions and performs the two mutations the
// finalizer is allowed to make: completing a pending sale and attaching a
// late signature to an unsigned one.  Both are conditional updates so
// repeated or concurrent calls cannot move a transaction backwards or sign
// it twice.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo returns a TransactionRepo bound to the given database.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// GetByID loads a transaction of the organization.  ErrNotFound is
// returned when the id does not exist or belongs to another tenant.
func (r *TransactionRepo) GetByID(ctx context.Context, orgID, id string) (*model.Transaction, error) {
	const q = `SELECT id, organization_id, total_amount, payment_method, items, status, tse_data, created_at, updated_at
               FROM transactions
               WHERE id = ? AND organization_id = ?`
	var (
		t       model.Transaction
		items   []byte
		tseData []byte
	)
	err := r.db.QueryRowContext(ctx, q, id, orgID).Scan(
		&t.ID, &t.OrganizationID, &t.TotalAmount, &t.PaymentMethod, &items, &t.Status, &tseData,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &t.Items); err != nil {
			return nil, fmt.Errorf("decode items of transaction %s: %w", t.ID, err)
		}
	}
	if len(tseData) > 0 && string(tseData) != "null" {
		var sig model.FiscalSignature
		if err := json.Unmarshal(tseData, &sig); err != nil {
			return nil, fmt.Errorf("decode tse_data of transaction %s: %w", t.ID, err)
		}
		t.TSEData = &sig
	}
	return &t, nil
}

// CompletePending moves a pending transaction to completed and stores the
// signature when one is given.  It reports false when the transaction was
// no longer pending, which callers treat as a no-op.
func (r *TransactionRepo) CompletePending(ctx context.Context, orgID, id string, sig *model.FiscalSignature) (bool, error) {
	var payload interface{}
	if sig != nil {
		b, err := json.Marshal(sig)
		if err != nil {
			return false, err
		}
		payload = b
	}
	const q = `UPDATE transactions SET status = 'completed', tse_data = ?
               WHERE id = ? AND organization_id = ? AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, q, payload, id, orgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AttachSignature stores a signature on a completed transaction that was
// finalized without one.  It reports false when the transaction already
// carries a signature or is not completed.
func (r *TransactionRepo) AttachSignature(ctx context.Context, orgID, id string, sig model.FiscalSignature) (bool, error) {
	b, err := json.Marshal(sig)
	if err != nil {
		return false, err
	}
	const q = `UPDATE transactions SET tse_data = ?
               WHERE id = ? AND organization_id = ? AND status = 'completed' AND tse_data IS NULL`
	res, err := r.db.ExecContext(ctx, q, b, id, orgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListUnsigned returns ids of completed transactions without a signature,
// oldest first.  It feeds the re-sign command.
func (r *TransactionRepo) ListUnsigned(ctx context.Context, orgID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT id FROM transactions
               WHERE organization_id = ? AND status = 'completed' AND tse_data IS NULL
               ORDER BY created_at
               LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
