// Package queue defines message payloads exchanged over the message broker
// together with the publisher and consumer for them.
package queue

// UnsignedQueueName carries transactions that were completed without a
// fiscal signature and still need one.
const UnsignedQueueName = "transaction.unsigned"

// TransactionUnsignedEvent is published when finalization had to complete
// a sale without a signature.  The consumer retries the signing and
// attaches the signature to the already completed transaction.
type TransactionUnsignedEvent struct {
	TransactionID  string `json:"transaction_id"`
	OrganizationID string `json:"organization_id"`
	Reason         string `json:"reason"`
	CompletedAt    string `json:"completed_at"`
}
