package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/studio-pos/internal/model"
)

// FindProfile resolves a scanned or typed identifier to a member.  The
// identifier may be the member number, the profile id or the e-mail
// address.  ErrNotFound is returned when nothing matches in the tenant.
func (r *CheckinRepo) FindProfile(ctx context.Context, orgID, identifier string) (*model.Profile, error) {
	const q = `SELECT id, organization_id, COALESCE(member_number, ''), first_name, last_name, COALESCE(email, '')
               FROM profiles
               WHERE organization_id = ? AND (member_number = ? OR id = ? OR LOWER(email) = LOWER(?))
               ORDER BY member_number = ? DESC
               LIMIT 1`
	var p model.Profile
	err := r.db.QueryRowContext(ctx, q, orgID, identifier, identifier, identifier, identifier).Scan(
		&p.ID, &p.OrganizationID, &p.MemberNumber, &p.FirstName, &p.LastName, &p.Email,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// FindActiveSubscription returns the member's most recent active
// subscription together with its product name.
func (r *CheckinRepo) FindActiveSubscription(ctx context.Context, orgID, userID string) (*model.Subscription, error) {
	const q = `SELECT s.id, s.user_id, s.organization_id, s.product_id, COALESCE(p.name, ''),
                      s.start_date, s.end_date, s.remaining_entries, s.is_active
               FROM subscriptions s
               LEFT JOIN products p ON p.id = s.product_id AND p.organization_id = s.organization_id
               WHERE s.organization_id = ? AND s.user_id = ? AND s.is_active = TRUE
               ORDER BY s.start_date DESC
               LIMIT 1`
	var (
		s         model.Subscription
		endDate   sql.NullTime
		remaining sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, q, orgID, userID).Scan(
		&s.ID, &s.UserID, &s.OrganizationID, &s.ProductID, &s.TariffName,
		&s.StartDate, &endDate, &remaining, &s.IsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if endDate.Valid {
		t := endDate.Time.UTC()
		s.EndDate = &t
	}
	if remaining.Valid {
		n := int(remaining.Int64)
		s.RemainingEntries = &n
	}
	return &s, nil
}

// GetRemainingEntries re-reads the entry counter of a subscription.  A nil
// result means the subscription is not entry-based.
func (r *CheckinRepo) GetRemainingEntries(ctx context.Context, orgID, subscriptionID string) (*int, error) {
	const q = `SELECT remaining_entries FROM subscriptions WHERE id = ? AND organization_id = ?`
	var remaining sql.NullInt64
	if err := r.db.QueryRowContext(ctx, q, subscriptionID, orgID).Scan(&remaining); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !remaining.Valid {
		return nil, nil
	}
	n := int(remaining.Int64)
	return &n, nil
}

// ConsumeEntry decrements remaining_entries by exactly one and writes the
// valid audit row in the same database transaction.  The update only
// applies while the counter still equals expected and is positive;
// otherwise ErrConflict is returned and nothing is written.  On success the
// new counter is returned.
func (r *CheckinRepo) ConsumeEntry(ctx context.Context, orgID, subscriptionID string, expected int, rec *model.Checkin) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const upd = `UPDATE subscriptions SET remaining_entries = remaining_entries - 1
                 WHERE id = ? AND organization_id = ? AND remaining_entries = ? AND remaining_entries > 0`
	res, err := tx.ExecContext(ctx, upd, subscriptionID, orgID, expected)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, ErrConflict
	}
	if err := insertCheckin(ctx, tx, rec); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return expected - 1, nil
}
