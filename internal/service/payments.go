package service

import (
	"context"

	"github.com/iliyamo/studio-pos/internal/payment"
)

// PaymentSettings answers the payment settings screens of an organization
// using its stored provider credentials.
type PaymentSettings struct {
	reconciler *Reconciler
}

// NewPaymentSettings shares the reconciler's config lookup and provider
// factory.
func NewPaymentSettings(r *Reconciler) *PaymentSettings {
	return &PaymentSettings{reconciler: r}
}

// Methods lists the payment methods enabled for the organization.
func (s *PaymentSettings) Methods(ctx context.Context, orgID string) ([]payment.Method, error) {
	if orgID == "" {
		return nil, ErrMissingOrganization
	}
	p, err := s.reconciler.provider(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return p.ListMethods(ctx)
}

// TestConnection checks the organization's credentials against the
// provider.
func (s *PaymentSettings) TestConnection(ctx context.Context, orgID string) (payment.ConnectionReport, error) {
	if orgID == "" {
		return payment.ConnectionReport{}, ErrMissingOrganization
	}
	p, err := s.reconciler.provider(ctx, orgID)
	if err != nil {
		return payment.ConnectionReport{}, err
	}
	return p.TestConnection(ctx), nil
}
