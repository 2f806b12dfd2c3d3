package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/studio-pos/internal/model"
)

// CheckinRepo backs the check-in desk: it resolves members and their
// active subscriptions, consumes entries and appends audit rows.  Every
// query is scoped by organization_id.
type CheckinRepo struct {
	db *sql.DB
}

// NewCheckinRepo returns a CheckinRepo bound to the given database.
func NewCheckinRepo(db *sql.DB) *CheckinRepo { return &CheckinRepo{db: db} }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertCheckin(ctx context.Context, ex execer, rec *model.Checkin) error {
	const q = `INSERT INTO checkins (id, user_id, organization_id, processed_by, location, checked_in_at, status)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := ex.ExecContext(ctx, q, rec.ID, rec.UserID, rec.OrganizationID, rec.ProcessedBy,
		rec.Location, rec.CheckedInAt.UTC(), rec.Status)
	return err
}

// InsertCheckin appends an audit row outside of any transaction.
func (r *CheckinRepo) InsertCheckin(ctx context.Context, rec *model.Checkin) error {
	return insertCheckin(ctx, r.db, rec)
}

// ListCheckins returns the newest audit rows of the organization.
func (r *CheckinRepo) ListCheckins(ctx context.Context, orgID string, limit int) ([]model.Checkin, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const q = `SELECT id, user_id, organization_id, processed_by, location, checked_in_at, status
               FROM checkins
               WHERE organization_id = ?
               ORDER BY checked_in_at DESC
               LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Checkin, 0)
	for rows.Next() {
		var (
			c           model.Checkin
			processedBy sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.OrganizationID, &processedBy, &c.Location, &c.CheckedInAt, &c.Status); err != nil {
			return nil, err
		}
		if processedBy.Valid {
			pb := processedBy.String
			c.ProcessedBy = &pb
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
