package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/studio-pos/internal/fiscal"
	"github.com/iliyamo/studio-pos/internal/model"
	"github.com/iliyamo/studio-pos/internal/queue"
	"github.com/iliyamo/studio-pos/internal/repository"
)

// Finalization outcomes.
const (
	OutcomeCompletedSigned   = "completed_signed"
	OutcomeCompletedUnsigned = "completed_unsigned"
	OutcomeSkipped           = "skipped"
)

// Reasons attached to unsigned or skipped outcomes.
const (
	ReasonSignerDisabled = "signer_disabled"
	ReasonSignerError    = "signer_error"
	ReasonNotFound       = "not_found"
	ReasonNotPending     = "not_pending"
	ReasonAlreadySigned  = "already_signed"
	ReasonInProgress     = "in_progress"
	ReasonMissingID      = "missing_id"
)

// FinalizeResult tells the caller what happened to the transaction.
type FinalizeResult struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

func skipped(reason string) FinalizeResult {
	return FinalizeResult{Outcome: OutcomeSkipped, Reason: reason}
}

// Finalizer completes pending transactions and signs them when the
// organization's fiscal signer is available.  A sale is never held back
// by the signer: signer failures complete the sale unsigned and announce
// it on the transaction.unsigned queue.
type Finalizer struct {
	store     TransactionStore
	signer    Signer
	publisher UnsignedPublisher
	locker    Locker
	lockTTL   time.Duration
	logger    *log.Logger
}

// NewFinalizer returns a Finalizer.  publisher and locker may be nil.
func NewFinalizer(logger *log.Logger, store TransactionStore, signer Signer, publisher UnsignedPublisher, locker Locker, lockTTL time.Duration) *Finalizer {
	if logger == nil {
		logger = log.Default()
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Finalizer{store: store, signer: signer, publisher: publisher, locker: locker, lockTTL: lockTTL, logger: logger}
}

// Finalize moves transaction transactionID of organizationID from pending
// to completed, attaching a fiscal signature when one can be obtained.
// Missing, foreign or already finalized transactions are skipped.  Only
// store failures are returned as errors.
func (f *Finalizer) Finalize(ctx context.Context, transactionID, organizationID string) (FinalizeResult, error) {
	if transactionID == "" || organizationID == "" {
		return skipped(ReasonMissingID), nil
	}
	release, ok := f.lock(ctx, organizationID, transactionID)
	if !ok {
		f.logger.Printf("finalizer: transaction %s of org %s is being finalized elsewhere", transactionID, organizationID)
		return skipped(ReasonInProgress), nil
	}
	defer release()

	tx, err := f.store.GetByID(ctx, organizationID, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			f.logger.Printf("finalizer: transaction %s not found in org %s", transactionID, organizationID)
			return skipped(ReasonNotFound), nil
		}
		return FinalizeResult{}, fmt.Errorf("load transaction %s: %w", transactionID, err)
	}
	if !tx.IsPending() {
		f.logger.Printf("finalizer: transaction %s is %s, nothing to do", transactionID, tx.Status)
		return skipped(ReasonNotPending), nil
	}

	sig, reason := f.sign(ctx, tx)

	updated, err := f.store.CompletePending(ctx, organizationID, transactionID, sig)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("complete transaction %s: %w", transactionID, err)
	}
	if !updated {
		if sig != nil {
			f.logger.Printf("finalizer: transaction %s finalized concurrently, discarding signature #%d", transactionID, sig.TransactionNumber)
		}
		return skipped(ReasonNotPending), nil
	}
	if sig != nil {
		f.logger.Printf("finalizer: transaction %s completed with signature #%d", transactionID, sig.TransactionNumber)
		return FinalizeResult{Outcome: OutcomeCompletedSigned}, nil
	}

	f.logger.Printf("finalizer: transaction %s completed without signature (%s)", transactionID, reason)
	if reason == ReasonSignerError {
		f.announceUnsigned(ctx, tx, reason)
	}
	return FinalizeResult{Outcome: OutcomeCompletedUnsigned, Reason: reason}, nil
}

// Resign signs a transaction that was completed without a signature and
// attaches the signature.  The signer is only reached for completed
// transactions without a signature, so a transaction is signed at most
// once.  Signer failures are returned so the caller can retry later.
func (f *Finalizer) Resign(ctx context.Context, transactionID, organizationID string) (FinalizeResult, error) {
	if transactionID == "" || organizationID == "" {
		return skipped(ReasonMissingID), nil
	}
	release, ok := f.lock(ctx, organizationID, transactionID)
	if !ok {
		return skipped(ReasonInProgress), nil
	}
	defer release()

	tx, err := f.store.GetByID(ctx, organizationID, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return skipped(ReasonNotFound), nil
		}
		return FinalizeResult{}, fmt.Errorf("load transaction %s: %w", transactionID, err)
	}
	if tx.Status != model.TransactionCompleted {
		return skipped(ReasonNotPending), nil
	}
	if tx.TSEData != nil {
		return skipped(ReasonAlreadySigned), nil
	}
	if !f.signer.IsEnabled(ctx, organizationID) {
		return skipped(ReasonSignerDisabled), nil
	}

	sig, err := f.signer.SignTransaction(ctx, organizationID, signRequest(tx))
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("resign transaction %s: %w", transactionID, err)
	}
	updated, err := f.store.AttachSignature(ctx, organizationID, transactionID, *sig)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("attach signature to %s: %w", transactionID, err)
	}
	if !updated {
		return skipped(ReasonAlreadySigned), nil
	}
	f.logger.Printf("finalizer: transaction %s re-signed with signature #%d", transactionID, sig.TransactionNumber)
	return FinalizeResult{Outcome: OutcomeCompletedSigned}, nil
}

// ResignAll re-signs up to limit unsigned transactions of the organization
// and returns how many got a signature.  It stops at the first signer
// failure since the following ones would most likely fail the same way.
func (f *Finalizer) ResignAll(ctx context.Context, organizationID string, limit int) (int, error) {
	ids, err := f.store.ListUnsigned(ctx, organizationID, limit)
	if err != nil {
		return 0, fmt.Errorf("list unsigned transactions: %w", err)
	}
	signed := 0
	for _, id := range ids {
		res, err := f.Resign(ctx, id, organizationID)
		if err != nil {
			return signed, err
		}
		if res.Outcome == OutcomeCompletedSigned {
			signed++
		}
	}
	return signed, nil
}

// sign returns a signature, or nil and the reason why none was obtained.
func (f *Finalizer) sign(ctx context.Context, tx *model.Transaction) (*model.FiscalSignature, string) {
	if !f.signer.IsEnabled(ctx, tx.OrganizationID) {
		return nil, ReasonSignerDisabled
	}
	sig, err := f.signer.SignTransaction(ctx, tx.OrganizationID, signRequest(tx))
	if err != nil {
		var apiErr *fiscal.APIError
		if errors.As(err, &apiErr) {
			f.logger.Printf("finalizer: signer answered %d for transaction %s: %s", apiErr.StatusCode, tx.ID, apiErr.Body)
		} else {
			f.logger.Printf("finalizer: signing transaction %s failed: %v", tx.ID, err)
		}
		return nil, ReasonSignerError
	}
	return sig, ""
}

func (f *Finalizer) lock(ctx context.Context, orgID, txID string) (func(), bool) {
	if f.locker == nil {
		return func() {}, true
	}
	release, ok, err := f.locker.Acquire(ctx, finalizeLockKey(orgID, txID), f.lockTTL)
	if err != nil {
		// the pending guard still protects the transaction
		f.logger.Printf("finalizer: lock unavailable, continuing: %v", err)
		return func() {}, true
	}
	return release, ok
}

func (f *Finalizer) announceUnsigned(ctx context.Context, tx *model.Transaction, reason string) {
	if f.publisher == nil {
		return
	}
	ev := queue.TransactionUnsignedEvent{
		TransactionID:  tx.ID,
		OrganizationID: tx.OrganizationID,
		Reason:         reason,
		CompletedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := f.publisher.PublishTransactionUnsigned(ctx, ev); err != nil {
		f.logger.Printf("finalizer: announce unsigned transaction %s: %v", tx.ID, err)
	}
}

func signRequest(tx *model.Transaction) fiscal.SignRequest {
	return fiscal.SignRequest{
		TransactionID: tx.ID,
		Amount:        tx.TotalAmount,
		PaymentMethod: tx.PaymentMethod,
		Items:         tx.Items,
	}
}
