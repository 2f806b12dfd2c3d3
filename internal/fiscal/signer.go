package fiscal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-pos/internal/model"
	"github.com/iliyamo/studio-pos/internal/repository"
)

// ErrNotConfigured is returned when the organization has no usable TSE
// configuration.
var ErrNotConfigured = errors.New("fiscal signer not configured")

// ConfigSource loads an organization's TSE configuration.
// repository.ConfigRepo satisfies it.
type ConfigSource interface {
	GetTSEConfig(ctx context.Context, orgID string) (*model.TSEConfig, error)
}

// SignRequest describes the sale to sign.
type SignRequest struct {
	TransactionID string
	Amount        decimal.Decimal
	PaymentMethod string
	Items         []model.LineItem
}

// Options configures how the Signer reaches the TSS.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries uint
	DefaultVAT decimal.Decimal
}

// Signer signs transactions with the credentials stored for each
// organization.  Clients are cached per organization and rebuilt when the
// stored credentials change.
type Signer struct {
	configs ConfigSource
	opts    Options
	logger  *log.Logger

	mu      sync.Mutex
	clients map[string]cachedClient
}

type cachedClient struct {
	creds  Credentials
	client *Client
}

// NewSigner returns a Signer.
func NewSigner(configs ConfigSource, opts Options, logger *log.Logger) *Signer {
	if logger == nil {
		logger = log.Default()
	}
	return &Signer{configs: configs, opts: opts, logger: logger, clients: make(map[string]cachedClient)}
}

// GetConfig returns the organization's TSE configuration, or nil when
// none is stored.
func (s *Signer) GetConfig(ctx context.Context, orgID string) (*model.TSEConfig, error) {
	cfg, err := s.configs.GetTSEConfig(ctx, orgID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return cfg, nil
}

// IsEnabled reports whether transactions of the organization should be
// signed.  Lookup failures are logged and reported as disabled.
func (s *Signer) IsEnabled(ctx context.Context, orgID string) bool {
	cfg, err := s.GetConfig(ctx, orgID)
	if err != nil {
		s.logger.Printf("fiscal: load config for org %s: %v", orgID, err)
		return false
	}
	return cfg.Usable()
}

// SignTransaction registers the sale on the organization's TSS and returns
// the resulting signature.
func (s *Signer) SignTransaction(ctx context.Context, orgID string, req SignRequest) (*model.FiscalSignature, error) {
	cfg, err := s.GetConfig(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !cfg.Usable() {
		return nil, ErrNotConfigured
	}
	receipt, err := BuildReceipt(req, s.opts.DefaultVAT)
	if err != nil {
		return nil, err
	}

	client := s.client(orgID, cfg)
	// every attempt gets its own TSS transaction; a half-open one from an
	// earlier failure is left to expire on the device
	tssTx := uuid.NewString()
	if err := client.StartTransaction(ctx, tssTx); err != nil {
		return nil, fmt.Errorf("sign %s: %w", req.TransactionID, err)
	}
	resp, err := client.FinishTransaction(ctx, tssTx, receipt)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", req.TransactionID, err)
	}

	signedAt := time.Now().UTC()
	if resp.TimeEnd > 0 {
		signedAt = time.Unix(resp.TimeEnd, 0).UTC()
	}
	return &model.FiscalSignature{
		TransactionNumber: resp.Number,
		SignatureCounter:  resp.Signature.Counter,
		SignatureValue:    resp.Signature.Value,
		SignatureAlgo:     resp.Signature.Algorithm,
		TSSSerialNumber:   resp.TSSSerialNumber,
		ClientID:          cfg.ClientID,
		SignedAt:          signedAt,
	}, nil
}

func (s *Signer) client(orgID string, cfg *model.TSEConfig) *Client {
	creds := Credentials{APIKey: cfg.APIKey, APISecret: cfg.APISecret, TSSID: cfg.TSSID, ClientID: cfg.ClientID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[orgID]; ok && c.creds == creds {
		return c.client
	}
	c := NewClient(s.opts.BaseURL, s.opts.Timeout, s.opts.MaxRetries, creds)
	s.clients[orgID] = cachedClient{creds: creds, client: c}
	return c
}
