package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	sdkcrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
)

// Algod is a Client backed by an algod node.
type Algod struct {
	client *algod.Client
}

var _ Client = (*Algod)(nil)

// NewAlgod connects to an algod node at the given address.
func NewAlgod(address, token string) (*Algod, error) {
	c, err := algod.MakeClient(address, token)
	if err != nil {
		return nil, fmt.Errorf("algod client: %w", err)
	}
	return &Algod{client: c}, nil
}

func (a *Algod) SubmitTransaction(ctx context.Context, signed []byte) (string, error) {
	txID, err := a.client.SendRawTransaction(signed).Do(ctx)
	if err != nil {
		return "", fmt.Errorf("submit transaction: %w", err)
	}
	return txID, nil
}

func (a *Algod) TransactionStatus(ctx context.Context, txID string) (TxStatus, error) {
	info, _, err := a.client.PendingTransactionInformation(txID).Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return TxStatus{}, fmt.Errorf("transaction %s: %w", txID, ErrTxNotFound)
		}
		return TxStatus{}, fmt.Errorf("transaction status: %w", err)
	}
	return TxStatus{
		Confirmed: info.ConfirmedRound > 0,
		Round:     info.ConfirmedRound,
		PoolError: info.PoolError,
	}, nil
}

func (a *Algod) WaitForConfirmation(ctx context.Context, txID string, waitRounds uint64) (TxStatus, error) {
	info, err := transaction.WaitForConfirmation(a.client, txID, waitRounds, ctx)
	if err != nil {
		return TxStatus{}, fmt.Errorf("wait for confirmation: %w", err)
	}
	return TxStatus{
		Confirmed: info.ConfirmedRound > 0,
		Round:     info.ConfirmedRound,
		PoolError: info.PoolError,
	}, nil
}

// Healthy pings the node, for readiness checks.
func (a *Algod) Healthy(ctx context.Context) error {
	if _, err := a.client.Status().Do(ctx); err != nil {
		return fmt.Errorf("algod status: %w", err)
	}
	return nil
}

// isNotFound detects algod's 404 for unknown transaction IDs. The SDK
// surfaces it as a plain error, so we match on the message.
func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "404") || strings.Contains(msg, "could not find")
}

// AppEscrowAddress derives the escrow account address owned by an
// application. Deterministic for a given app ID.
func AppEscrowAddress(appID uint64) string {
	return sdkcrypto.GetApplicationAddress(appID).String()
}
