package service

import (
	"context"
	"time"

	"github.com/iliyamo/studio-pos/internal/fiscal"
	"github.com/iliyamo/studio-pos/internal/model"
	"github.com/iliyamo/studio-pos/internal/payment"
	"github.com/iliyamo/studio-pos/internal/queue"
)

// TransactionStore is the persistence the finalizer needs.
// repository.TransactionRepo implements it.
type TransactionStore interface {
	GetByID(ctx context.Context, orgID, id string) (*model.Transaction, error)
	CompletePending(ctx context.Context, orgID, id string, sig *model.FiscalSignature) (bool, error)
	AttachSignature(ctx context.Context, orgID, id string, sig model.FiscalSignature) (bool, error)
	ListUnsigned(ctx context.Context, orgID string, limit int) ([]string, error)
}

// CheckinStore is the persistence the check-in desk needs.
// repository.CheckinRepo implements it.
type CheckinStore interface {
	FindProfile(ctx context.Context, orgID, identifier string) (*model.Profile, error)
	FindActiveSubscription(ctx context.Context, orgID, userID string) (*model.Subscription, error)
	GetRemainingEntries(ctx context.Context, orgID, subscriptionID string) (*int, error)
	ConsumeEntry(ctx context.Context, orgID, subscriptionID string, expected int, rec *model.Checkin) (int, error)
	InsertCheckin(ctx context.Context, rec *model.Checkin) error
	ListCheckins(ctx context.Context, orgID string, limit int) ([]model.Checkin, error)
}

// PaymentStore persists provider payments.  repository.PaymentRepo
// implements it.
type PaymentStore interface {
	GetByExternalID(ctx context.Context, orgID, externalID string) (*model.PaymentRecord, error)
	Insert(ctx context.Context, p *model.PaymentRecord) error
	UpdateStatus(ctx context.Context, p *model.PaymentRecord) error
}

// ConfigStore loads payment provider configuration.
// repository.ConfigRepo implements it.
type ConfigStore interface {
	GetPaymentConfig(ctx context.Context, orgID string) (*model.PaymentConfig, error)
}

// Signer is the fiscal signer as seen by the finalizer.  *fiscal.Signer
// implements it.
type Signer interface {
	IsEnabled(ctx context.Context, orgID string) bool
	SignTransaction(ctx context.Context, orgID string, req fiscal.SignRequest) (*model.FiscalSignature, error)
}

// UnsignedPublisher announces transactions completed without signature.
// *queue.Publisher implements it.
type UnsignedPublisher interface {
	PublishTransactionUnsigned(ctx context.Context, ev queue.TransactionUnsignedEvent) error
}

// Locker grants best-effort exclusive access to a key.  *RedisLocker
// implements it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// PaymentProvider is one organization's view of the payment provider.
// *payment.Client implements it.
type PaymentProvider interface {
	GetPayment(ctx context.Context, id string) (*payment.Payment, error)
	ListMethods(ctx context.Context) ([]payment.Method, error)
	TestConnection(ctx context.Context) payment.ConnectionReport
}

// ProviderFactory builds a PaymentProvider from stored credentials.
type ProviderFactory func(cfg model.PaymentConfig) PaymentProvider

// MollieFactory returns a ProviderFactory creating Mollie clients that
// share the given endpoint, timeout and retry settings.
func MollieFactory(baseURL string, timeout time.Duration, maxRetries uint) ProviderFactory {
	return func(cfg model.PaymentConfig) PaymentProvider {
		return payment.NewClient(payment.Config{
			APIKey:     cfg.APIKey,
			TestMode:   cfg.TestMode,
			BaseURL:    baseURL,
			Timeout:    timeout,
			MaxRetries: maxRetries,
		})
	}
}
