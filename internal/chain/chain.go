// Package chain abstracts the Algorand ledger for the escrow core.
//
// The core never signs transactions and never verifies consensus; it
// submits pre-signed bytes, asks whether a transaction confirmed, and
// instructs a release signer to pay out an escrow. Everything else is
// the chain's problem.
package chain

import (
	"context"
	"errors"
)

// ErrTxNotFound indicates the node has no record of the transaction
// (never submitted, or dropped from the pool).
var ErrTxNotFound = errors.New("transaction not found")

// TxStatus is the observed state of a submitted transaction.
type TxStatus struct {
	// Confirmed is true once the transaction is final in a round.
	Confirmed bool
	// Round is the confirmation round, zero while pending.
	Round uint64
	// PoolError is non-empty when the node rejected the transaction.
	PoolError string
}

// Client is the read/submit surface of the ledger.
type Client interface {
	// SubmitTransaction broadcasts pre-signed transaction bytes and
	// returns the transaction ID.
	SubmitTransaction(ctx context.Context, signed []byte) (string, error)

	// TransactionStatus reports the current confirmation state of a
	// transaction. Returns ErrTxNotFound when the node has no record
	// of it.
	TransactionStatus(ctx context.Context, txID string) (TxStatus, error)

	// WaitForConfirmation blocks until the transaction confirms, is
	// rejected, the given number of rounds elapse, or ctx is done.
	WaitForConfirmation(ctx context.Context, txID string, waitRounds uint64) (TxStatus, error)
}

// Releaser instructs the escrow contract to pay out to the seller.
// Signing happens outside the core (operator-held key or sidecar);
// the core only consumes the capability.
type Releaser interface {
	Release(ctx context.Context, appID uint64, seller string) (string, error)
}
