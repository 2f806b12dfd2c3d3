package app

import (
	"context"
	"fmt"
	"log"

	"github.com/iliyamo/studio-pos/internal/queue"
	"github.com/iliyamo/studio-pos/internal/service"
)

// Resigner signs one pending sale after the fact.
type Resigner interface {
	Resign(ctx context.Context, transactionID, organizationID string) (service.FinalizeResult, error)
}

// ResignHandler turns unsigned-transaction events into Resign calls.  A sale
// locked by a concurrent finalize is handed back to the queue.
func ResignHandler(r Resigner, logger *log.Logger) queue.UnsignedHandler {
	return func(ctx context.Context, ev queue.TransactionUnsignedEvent) error {
		res, err := r.Resign(ctx, ev.TransactionID, ev.OrganizationID)
		if err != nil {
			return err
		}
		if res.Outcome == service.OutcomeSkipped && res.Reason == service.ReasonInProgress {
			return fmt.Errorf("transaction %s: %w", ev.TransactionID, queue.ErrRetryLater)
		}
		logger.Printf("tse-consumer: transaction %s of org %s: %s %s", ev.TransactionID, ev.OrganizationID, res.Outcome, res.Reason)
		return nil
	}
}
