// Package order implements the escrow order lifecycle.
//
// Flow:
//  1. Seller lists a product → order created in INIT
//  2. Buyer funds the escrow contract → FUNDED (verified against chain)
//  3. Seller ships → DELIVERED
//  4. Buyer confirms receipt → COMPLETED (escrow pays the seller)
//  5. Either side disputes → DISPUTED, resolved by an operator to
//     COMPLETED or REFUNDED
//
// The Service is the only writer of order status. Admin overrides and
// funding reconciliation both route through it.
package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status for this transition")
	ErrUnauthorized      = errors.New("not authorized for this order operation")
	ErrBlocked           = errors.New("wallet address is blocked from trading")
	ErrInvalidResolution = errors.New("invalid dispute resolution")
	ErrReleaseFailed     = errors.New("escrow release failed")
)

// Status represents the state of an order.
type Status string

const (
	StatusInit      Status = "INIT"      // Listed, awaiting a buyer's funding
	StatusFunded    Status = "FUNDED"    // Buyer paid into the escrow contract
	StatusDelivered Status = "DELIVERED" // Seller shipped the goods
	StatusCompleted Status = "COMPLETED" // Escrow released to the seller
	StatusDisputed  Status = "DISPUTED"  // Frozen pending operator resolution
	StatusRefunded  Status = "REFUNDED"  // Dispute resolved in the buyer's favor
	StatusCancelled Status = "CANCELLED" // Withdrawn before funding
)

// Valid reports whether s is a recognized status value.
func (s Status) Valid() bool {
	switch s {
	case StatusInit, StatusFunded, StatusDelivered, StatusCompleted,
		StatusDisputed, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

// EscrowOrder is one listed product with its settlement state.
// Amount is in microAlgos. Buyer is empty until a buyer attaches
// details or funds the order.
type EscrowOrder struct {
	ID                 string    `json:"id"`
	Seller             string    `json:"seller"`
	Buyer              string    `json:"buyer,omitempty"`
	Amount             int64     `json:"amount"`
	EscrowAddress      string    `json:"escrowAddress"`
	AppID              uint64    `json:"appId"`
	Status             Status    `json:"status"`
	TxID               string    `json:"txId,omitempty"`
	ReleaseTxID        string    `json:"releaseTxId,omitempty"`
	ProductName        string    `json:"productName"`
	ProductDescription string    `json:"productDescription"`
	ImageURL           string    `json:"imageUrl,omitempty"`
	BuyerName          string    `json:"buyerName,omitempty"`
	BuyerEmail         string    `json:"buyerEmail,omitempty"`
	BuyerShipping      string    `json:"buyerShipping,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// IsTerminal returns true if the order is in a final state.
func (o *EscrowOrder) IsTerminal() bool {
	return o.Status.Terminal()
}

// Clone returns a deep copy. Stores hand out clones so callers cannot
// mutate persisted records.
func (o *EscrowOrder) Clone() *EscrowOrder {
	c := *o
	return &c
}
