// Package reconcile verifies funding transactions against the chain.
//
// Funding flips an order to FUNDED before the chain has confirmed the
// payment. A verification task then polls the ledger; if the
// transaction is rejected, disappears, or never confirms within the
// window, the task reverts the order to INIT so the listing is
// fundable again. The chain is the source of truth for money, the
// order record only mirrors it.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/algocart/escrowd/internal/chain"
	"github.com/algocart/escrowd/internal/logging"
	"github.com/algocart/escrowd/internal/metrics"
	"github.com/algocart/escrowd/internal/order"
	"github.com/algocart/escrowd/internal/retry"
)

// Reason classifies why a funding verification failed.
type Reason string

const (
	// ReasonRejected: the node rejected the transaction outright.
	ReasonRejected Reason = "rejected"
	// ReasonTimeout: the transaction stayed pending past the window.
	ReasonTimeout Reason = "timeout"
	// ReasonNotFound: the node never saw the transaction at all.
	ReasonNotFound Reason = "not_found"
)

// Error reports a failed verification. The order has already been
// reverted to INIT by the time callers see it.
type Error struct {
	OrderID string
	TxID    string
	Reason  Reason
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("funding verification failed for %s (%s): %s", e.OrderID, e.Reason, e.Detail)
	}
	return fmt.Sprintf("funding verification failed for %s (%s)", e.OrderID, e.Reason)
}

// errCallerGone aborts a poll whose caller went away before a verdict.
// Internal only; the poll is re-run detached, never reverted on it.
var errCallerGone = errors.New("caller gone before verification verdict")

// Engine is the slice of the order service reconciliation needs.
type Engine interface {
	RevertFunding(ctx context.Context, id, txID string) (*order.EscrowOrder, error)
}

// Service polls the chain for funding confirmations.
type Service struct {
	chain   chain.Client
	orders  Engine
	timeout time.Duration
	poll    time.Duration
	wg      sync.WaitGroup
}

var _ order.FundingVerifier = (*Service)(nil)

// NewService creates a verification service. timeout bounds how long a
// transaction may stay pending, poll is the ledger query interval.
func NewService(c chain.Client, orders Engine, timeout, poll time.Duration) *Service {
	return &Service{
		chain:   c,
		orders:  orders,
		timeout: timeout,
		poll:    poll,
	}
}

// VerifySync polls until the transaction confirms or the verification
// window closes. On rejection, disappearance, or timeout the order is
// reverted before returning. If the caller goes away mid-poll the
// verification does not stop with it: the poll detaches onto a
// server-scoped context and still delivers a confirm-or-revert
// verdict, because a pending transaction may well confirm after the
// client hangs up and reverting it would fork the order record from
// the chain.
func (s *Service) VerifySync(ctx context.Context, orderID, txID string) error {
	log := logging.L(ctx).With("orderId", orderID, "txId", txID)
	deadline := time.Now().Add(s.timeout)

	err := s.run(ctx, log, orderID, txID, deadline)
	if !errors.Is(err, errCallerGone) {
		return err
	}

	log.Warn("caller gone, detaching funding verification", "cause", ctx.Err())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		dctx, cancel := context.WithDeadline(context.Background(), deadline.Add(s.poll))
		defer cancel()
		if derr := s.run(dctx, log, orderID, txID, deadline); derr != nil {
			log.Warn("detached funding verification failed", "err", derr)
		}
	}()
	return fmt.Errorf("funding verification for %s detached: %w", orderID, ctx.Err())
}

// VerifyAsync verifies in the background, detached from the request
// that triggered it.
func (s *Service) VerifyAsync(orderID, txID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout+s.poll)
		defer cancel()
		if err := s.VerifySync(ctx, orderID, txID); err != nil {
			logging.L(ctx).Warn("async funding verification failed", "err", err)
		}
	}()
}

// Close waits for in-flight background verifications to finish.
func (s *Service) Close() {
	s.wg.Wait()
}

// run is the poll loop. It returns nil on confirmation, *Error after
// reverting the order, or errCallerGone when ctx ends before the
// deadline with the verdict still open.
func (s *Service) run(ctx context.Context, log *slog.Logger, orderID, txID string, deadline time.Time) error {
	metrics.ReconciliationInFlight.Inc()
	defer metrics.ReconciliationInFlight.Dec()

	var lastErr error
	for {
		st, err := s.chain.TransactionStatus(ctx, txID)
		switch {
		case err != nil:
			// Not-found and transient node errors both mean "keep
			// polling"; the transaction may still propagate.
			lastErr = err
		case st.PoolError != "":
			log.Warn("funding transaction rejected", "poolError", st.PoolError)
			s.revert(orderID, txID)
			metrics.ReconciliationRunsTotal.WithLabelValues("reverted").Inc()
			return &Error{OrderID: orderID, TxID: txID, Reason: ReasonRejected, Detail: st.PoolError}
		case st.Confirmed:
			log.Info("funding transaction confirmed", "round", st.Round)
			metrics.ReconciliationRunsTotal.WithLabelValues("confirmed").Inc()
			return nil
		}

		if time.Now().After(deadline) {
			reason := ReasonTimeout
			if lastErr != nil && errors.Is(lastErr, chain.ErrTxNotFound) {
				reason = ReasonNotFound
			}
			log.Warn("funding transaction never confirmed", "reason", string(reason), "lastErr", lastErr)
			s.revert(orderID, txID)
			metrics.ReconciliationRunsTotal.WithLabelValues("reverted").Inc()
			return &Error{OrderID: orderID, TxID: txID, Reason: reason}
		}
		select {
		case <-ctx.Done():
			return errCallerGone
		case <-time.After(s.poll):
		}
	}
}

// revert undoes the optimistic FUNDED flip. Uses a fresh context so a
// cancelled request cannot strand the order in FUNDED, and retries
// store errors. A stale revert (order moved on) is fine.
func (s *Service) revert(orderID, txID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := retry.Do(ctx, 3, 250*time.Millisecond, func() error {
		_, err := s.orders.RevertFunding(ctx, orderID, txID)
		if errors.Is(err, order.ErrInvalidTransition) || errors.Is(err, order.ErrNotFound) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil && !errors.Is(err, order.ErrInvalidTransition) && !errors.Is(err, order.ErrNotFound) {
		logging.L(ctx).Error("failed to revert unconfirmed funding",
			"orderId", orderID, "txId", txID, "err", err)
		metrics.ReconciliationRunsTotal.WithLabelValues("error").Inc()
	}
}
