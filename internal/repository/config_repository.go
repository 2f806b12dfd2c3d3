package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/studio-pos/internal/model"
	"github.com/iliyamo/studio-pos/internal/utils"
)

// ConfigRepo loads per-organization provider credentials.  Secret columns
// may hold values sealed by utils.Sealer; they are opened before being
// returned so callers never see ciphertext.
type ConfigRepo struct {
	db     *sql.DB
	sealer *utils.Sealer
}

// NewConfigRepo returns a ConfigRepo.  sealer may be nil when no secrets
// key is configured; sealed rows then fail to load.
func NewConfigRepo(db *sql.DB, sealer *utils.Sealer) *ConfigRepo {
	return &ConfigRepo{db: db, sealer: sealer}
}

// GetTSEConfig returns the fiscal signer config of the organization.
// ErrNotFound is returned when none exists.
func (r *ConfigRepo) GetTSEConfig(ctx context.Context, orgID string) (*model.TSEConfig, error) {
	const q = `SELECT organization_id, api_key, api_secret, tss_id, client_id, environment, is_active
               FROM tse_configs
               WHERE organization_id = ?`
	var c model.TSEConfig
	err := r.db.QueryRowContext(ctx, q, orgID).Scan(
		&c.OrganizationID, &c.APIKey, &c.APISecret, &c.TSSID, &c.ClientID, &c.Environment, &c.IsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if c.APIKey, err = r.sealer.Open(c.APIKey); err != nil {
		return nil, fmt.Errorf("tse api key: %w", err)
	}
	if c.APISecret, err = r.sealer.Open(c.APISecret); err != nil {
		return nil, fmt.Errorf("tse api secret: %w", err)
	}
	return &c, nil
}

// GetPaymentConfig returns the payment provider config of the organization.
func (r *ConfigRepo) GetPaymentConfig(ctx context.Context, orgID string) (*model.PaymentConfig, error) {
	const q = `SELECT organization_id, provider, api_key, test_mode, is_active
               FROM payment_configs
               WHERE organization_id = ?`
	var c model.PaymentConfig
	err := r.db.QueryRowContext(ctx, q, orgID).Scan(&c.OrganizationID, &c.Provider, &c.APIKey, &c.TestMode, &c.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if c.APIKey, err = r.sealer.Open(c.APIKey); err != nil {
		return nil, fmt.Errorf("payment api key: %w", err)
	}
	return &c, nil
}
