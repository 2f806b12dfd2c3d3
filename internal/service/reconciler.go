package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/studio-pos/internal/model"
	"github.com/iliyamo/studio-pos/internal/payment"
	"github.com/iliyamo/studio-pos/internal/repository"
)

var (
	// ErrBadWebhook is returned when the callback lacks the tenant or the
	// payment id, or names a payment the provider does not know.
	ErrBadWebhook = errors.New("webhook is missing organization or payment id")
	// ErrPaymentNotConfigured is returned when the organization has no
	// active payment configuration with an API key.
	ErrPaymentNotConfigured = errors.New("payment provider not configured for organization")
)

// TransactionFinalizer is what the reconciler triggers for paid payments.
// *Finalizer implements it.
type TransactionFinalizer interface {
	Finalize(ctx context.Context, transactionID, organizationID string) (FinalizeResult, error)
}

// Reconciler maps payment provider callbacks onto local payment records.
// Deliveries are at-least-once, so every step is safe to repeat.
type Reconciler struct {
	payments  PaymentStore
	configs   ConfigStore
	providers ProviderFactory
	finalizer TransactionFinalizer
	logger    *log.Logger
}

// NewReconciler returns a Reconciler.
func NewReconciler(logger *log.Logger, payments PaymentStore, configs ConfigStore, providers ProviderFactory, finalizer TransactionFinalizer) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{payments: payments, configs: configs, providers: providers, finalizer: finalizer, logger: logger}
}

// HandleWebhook fetches the authoritative state of payment
// externalPaymentID, upserts the local record and finalizes the linked
// transaction once the payment is paid.  A nil error acknowledges the
// callback; finalization problems never turn into an error here.
func (r *Reconciler) HandleWebhook(ctx context.Context, organizationID, externalPaymentID string) error {
	organizationID = strings.TrimSpace(organizationID)
	externalPaymentID = strings.TrimSpace(externalPaymentID)
	if organizationID == "" || externalPaymentID == "" {
		return ErrBadWebhook
	}

	provider, err := r.provider(ctx, organizationID)
	if err != nil {
		return err
	}
	p, err := provider.GetPayment(ctx, externalPaymentID)
	if err != nil {
		var apiErr *payment.APIError
		if errors.As(err, &apiErr) {
			r.logger.Printf("webhook: provider answered %d for payment %s: %s", apiErr.StatusCode, externalPaymentID, apiErr.Body)
			if apiErr.StatusCode == http.StatusNotFound {
				return fmt.Errorf("%w: unknown payment %s", ErrBadWebhook, externalPaymentID)
			}
		}
		if errors.Is(err, payment.ErrUnauthorized) {
			// a revoked key is a setup problem; redelivery cannot fix it
			return fmt.Errorf("%w: %v", ErrPaymentNotConfigured, err)
		}
		return fmt.Errorf("fetch payment %s: %w", externalPaymentID, err)
	}

	rec, err := recordFromPayment(organizationID, p)
	if err != nil {
		return err
	}
	stored, err := r.upsert(ctx, rec)
	if err != nil {
		return err
	}

	if stored.Status != model.PaymentPaid {
		return nil
	}
	txID := ""
	if stored.TransactionID != nil {
		txID = *stored.TransactionID
	}
	if txID == "" {
		r.logger.Printf("webhook: payment %s of org %s is paid but not linked to a transaction", externalPaymentID, organizationID)
		return nil
	}
	res, err := r.finalizer.Finalize(ctx, txID, organizationID)
	if err != nil {
		r.logger.Printf("webhook: finalize transaction %s for payment %s: %v", txID, externalPaymentID, err)
		return nil
	}
	r.logger.Printf("webhook: payment %s paid, transaction %s %s", externalPaymentID, txID, res.Outcome)
	return nil
}

// upsert inserts the record or updates the existing one and returns the
// stored state.  A concurrent delivery that inserted first turns the
// insert into an update.
func (r *Reconciler) upsert(ctx context.Context, rec *model.PaymentRecord) (*model.PaymentRecord, error) {
	existing, err := r.payments.GetByExternalID(ctx, rec.OrganizationID, rec.ExternalID)
	switch {
	case err == nil:
		return r.update(ctx, existing, rec)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("load payment %s: %w", rec.ExternalID, err)
	}

	rec.ID = uuid.NewString()
	err = r.payments.Insert(ctx, rec)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("insert payment %s: %w", rec.ExternalID, err)
	}
	existing, err = r.payments.GetByExternalID(ctx, rec.OrganizationID, rec.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("reload payment %s: %w", rec.ExternalID, err)
	}
	return r.update(ctx, existing, rec)
}

func (r *Reconciler) update(ctx context.Context, existing, fresh *model.PaymentRecord) (*model.PaymentRecord, error) {
	merged := *existing
	merged.Status = fresh.Status
	merged.Method = fresh.Method
	merged.PaidAt = fresh.PaidAt
	if merged.TransactionID == nil {
		merged.TransactionID = fresh.TransactionID
	}
	if err := r.payments.UpdateStatus(ctx, &merged); err != nil {
		return nil, fmt.Errorf("update payment %s: %w", fresh.ExternalID, err)
	}
	return &merged, nil
}

func (r *Reconciler) provider(ctx context.Context, orgID string) (PaymentProvider, error) {
	cfg, err := r.configs.GetPaymentConfig(ctx, orgID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotConfigured
		}
		return nil, fmt.Errorf("load payment config: %w", err)
	}
	if !cfg.IsActive || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrPaymentNotConfigured
	}
	return r.providers(*cfg), nil
}

func recordFromPayment(orgID string, p *payment.Payment) (*model.PaymentRecord, error) {
	amount, err := p.Amount.Decimal()
	if err != nil {
		return nil, fmt.Errorf("payment %s amount %q: %w", p.ID, p.Amount.Value, err)
	}
	rec := &model.PaymentRecord{
		OrganizationID: orgID,
		ExternalID:     p.ID,
		Amount:         amount,
		Currency:       p.Amount.Currency,
		Status:         p.Status,
		PaidAt:         p.PaidAt,
	}
	if p.Method != "" {
		m := p.Method
		rec.Method = &m
	}
	if txID := p.TransactionID(); txID != "" {
		rec.TransactionID = &txID
	}
	return rec, nil
}
