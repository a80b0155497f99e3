package admin

import (
	"context"
	"fmt"

	"github.com/algocart/escrowd/internal/blocklist"
	"github.com/algocart/escrowd/internal/logging"
	"github.com/algocart/escrowd/internal/metrics"
	"github.com/algocart/escrowd/internal/order"
)

// Resolution values accepted by ResolveDispute. REFUND is spelled
// without the -ED on the wire; the stored status is REFUNDED.
const (
	ResolutionCompleted = "COMPLETED"
	ResolutionRefund    = "REFUND"
)

// principalName identifies the operator on audit entries. The gateway
// authenticates a single shared secret, so every override is recorded
// under this one principal.
const principalName = "admin"

// Gateway routes operator overrides through the order state machine.
// It never touches order status itself.
type Gateway struct {
	verifier  *Verifier
	orders    *order.Service
	blocklist *blocklist.Service
	audit     AuditLogger
}

// NewGateway creates an admin gateway.
func NewGateway(verifier *Verifier, orders *order.Service, bl *blocklist.Service, audit AuditLogger) *Gateway {
	return &Gateway{
		verifier:  verifier,
		orders:    orders,
		blocklist: bl,
		audit:     audit,
	}
}

// Authenticate checks an admin secret.
func (g *Gateway) Authenticate(secret string) error {
	return g.verifier.Verify(secret)
}

// ForceRelease pays the seller of a FUNDED or DELIVERED order by
// operator decision, bypassing buyer confirmation.
func (g *Gateway) ForceRelease(ctx context.Context, secret, orderID, note string) (*order.EscrowOrder, error) {
	if err := g.verifier.Verify(secret); err != nil {
		return nil, err
	}

	prior, err := g.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	o, err := g.orders.ForceRelease(ctx, orderID)
	if err != nil {
		return nil, err
	}

	metrics.AdminOverridesTotal.WithLabelValues("force_release").Inc()
	g.record(ctx, &AuditEntry{
		Operation: "force_release",
		OrderID:   orderID,
		Prior:     string(prior.Status),
		Result:    string(o.Status),
		Note:      note,
	})
	return o, nil
}

// ResolveDispute settles a DISPUTED order. resolution must be exactly
// COMPLETED or REFUND.
func (g *Gateway) ResolveDispute(ctx context.Context, secret, orderID, resolution, note string) (*order.EscrowOrder, error) {
	if err := g.verifier.Verify(secret); err != nil {
		return nil, err
	}

	var outcome order.Status
	switch resolution {
	case ResolutionCompleted:
		outcome = order.StatusCompleted
	case ResolutionRefund:
		outcome = order.StatusRefunded
	default:
		return nil, fmt.Errorf("%w: %q", order.ErrInvalidResolution, resolution)
	}

	prior, err := g.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	o, err := g.orders.ResolveDispute(ctx, orderID, outcome)
	if err != nil {
		return nil, err
	}

	metrics.AdminOverridesTotal.WithLabelValues("resolve_dispute").Inc()
	g.record(ctx, &AuditEntry{
		Operation: "resolve_dispute",
		OrderID:   orderID,
		Prior:     string(prior.Status),
		Result:    string(o.Status),
		Note:      note,
	})
	return o, nil
}

// BlockUser adds a wallet to the blocklist.
func (g *Gateway) BlockUser(ctx context.Context, secret, wallet, reason string) (*blocklist.BlockedUser, error) {
	if err := g.verifier.Verify(secret); err != nil {
		return nil, err
	}

	u, err := g.blocklist.Block(ctx, wallet, reason, principalName)
	if err != nil {
		return nil, err
	}

	g.record(ctx, &AuditEntry{
		Operation: "block_user",
		Wallet:    wallet,
		Note:      reason,
	})
	return u, nil
}

// UnblockUser removes a wallet from the blocklist.
func (g *Gateway) UnblockUser(ctx context.Context, secret, wallet string) error {
	if err := g.verifier.Verify(secret); err != nil {
		return err
	}

	if err := g.blocklist.Unblock(ctx, wallet); err != nil {
		return err
	}

	g.record(ctx, &AuditEntry{
		Operation: "unblock_user",
		Wallet:    wallet,
	})
	return nil
}

// ListBlockedUsers returns the blocklist.
func (g *Gateway) ListBlockedUsers(ctx context.Context, secret string, limit, offset int) ([]*blocklist.BlockedUser, int, error) {
	if err := g.verifier.Verify(secret); err != nil {
		return nil, 0, err
	}
	return g.blocklist.List(ctx, limit, offset)
}

// QueryAudit returns audit entries, newest first.
func (g *Gateway) QueryAudit(ctx context.Context, secret, orderID string, limit int) ([]*AuditEntry, error) {
	if err := g.verifier.Verify(secret); err != nil {
		return nil, err
	}
	return g.audit.Query(ctx, orderID, limit)
}

// record appends an audit entry. Audit failures never fail the
// operation that already happened; they are logged loudly instead.
func (g *Gateway) record(ctx context.Context, entry *AuditEntry) {
	entry.Actor = principalName
	entry.RequestID = logging.RequestID(ctx)
	entry.IPAddress = logging.ClientIP(ctx)
	if err := g.audit.Append(ctx, entry); err != nil {
		logging.L(ctx).Error("audit append failed",
			"operation", entry.Operation, "orderId", entry.OrderID, "err", err)
	}
}
