package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/algocart/escrowd/internal/idgen"
)

// Fake is an in-memory Client and Releaser for tests and for running
// the server without an algod node. Transactions become visible only
// after a test confirms or rejects them, except those the Fake itself
// produced, which confirm immediately.
type Fake struct {
	mu       sync.Mutex
	statuses map[string]TxStatus

	submitErr  error
	releaseErr error
	released   []ReleaseCall
}

// ReleaseCall records one Release invocation.
type ReleaseCall struct {
	AppID  uint64
	Seller string
}

var (
	_ Client   = (*Fake)(nil)
	_ Releaser = (*Fake)(nil)
)

func NewFake() *Fake {
	return &Fake{statuses: make(map[string]TxStatus)}
}

// Confirm marks a transaction as confirmed in the given round.
func (f *Fake) Confirm(txID string, round uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[txID] = TxStatus{Confirmed: true, Round: round}
}

// Reject marks a transaction as rejected with a pool error.
func (f *Fake) Reject(txID, poolError string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[txID] = TxStatus{PoolError: poolError}
}

// SetPending makes a transaction visible but unconfirmed.
func (f *Fake) SetPending(txID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[txID] = TxStatus{}
}

// FailSubmit makes subsequent SubmitTransaction calls return err.
func (f *Fake) FailSubmit(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitErr = err
}

// FailRelease makes subsequent Release calls return err.
func (f *Fake) FailRelease(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseErr = err
}

// Released returns a copy of all recorded Release calls.
func (f *Fake) Released() []ReleaseCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ReleaseCall, len(f.released))
	copy(out, f.released)
	return out
}

func (f *Fake) SubmitTransaction(ctx context.Context, signed []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	txID := "FAKE" + idgen.Hex(26)
	f.statuses[txID] = TxStatus{Confirmed: true, Round: 1}
	return txID, nil
}

func (f *Fake) TransactionStatus(ctx context.Context, txID string) (TxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.statuses[txID]
	if !ok {
		return TxStatus{}, fmt.Errorf("transaction %s: %w", txID, ErrTxNotFound)
	}
	return st, nil
}

func (f *Fake) WaitForConfirmation(ctx context.Context, txID string, waitRounds uint64) (TxStatus, error) {
	for i := uint64(0); ; i++ {
		f.mu.Lock()
		st, ok := f.statuses[txID]
		f.mu.Unlock()
		if ok && (st.Confirmed || st.PoolError != "") {
			return st, nil
		}
		if i >= waitRounds {
			return TxStatus{}, fmt.Errorf("transaction %s not confirmed after %d rounds", txID, waitRounds)
		}
		select {
		case <-ctx.Done():
			return TxStatus{}, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (f *Fake) Release(ctx context.Context, appID uint64, seller string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.releaseErr != nil {
		return "", f.releaseErr
	}
	f.released = append(f.released, ReleaseCall{AppID: appID, Seller: seller})
	txID := "FAKE" + idgen.Hex(26)
	f.statuses[txID] = TxStatus{Confirmed: true, Round: 1}
	return txID, nil
}
