package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/algocart/escrowd/internal/idgen"
	"github.com/algocart/escrowd/internal/logging"
	"github.com/algocart/escrowd/internal/metrics"
	"github.com/algocart/escrowd/internal/syncutil"
	"github.com/algocart/escrowd/internal/validation"
)

// BlockPolicy decides whether a wallet may trade. Implemented by the
// blocklist service; nil means everyone may trade.
type BlockPolicy interface {
	IsBlocked(ctx context.Context, wallet string) (bool, error)
}

// Releaser pays out an escrow contract to the seller. Implemented by
// the chain package; nil means releases must arrive as client-signed
// transaction IDs.
type Releaser interface {
	Release(ctx context.Context, appID uint64, seller string) (string, error)
}

// CreateRequest contains the parameters for listing a product.
type CreateRequest struct {
	Seller             string `json:"seller" binding:"required"`
	Amount             int64  `json:"amount" binding:"required"`
	EscrowAddress      string `json:"escrowAddress" binding:"required"`
	AppID              uint64 `json:"appId" binding:"required"`
	ProductName        string `json:"productName" binding:"required"`
	ProductDescription string `json:"productDescription" binding:"required"`
	ImageURL           string `json:"imageUrl"`
	Buyer              string `json:"buyer"`
}

// BuyerDetailsRequest attaches a buyer and shipping details to an order.
type BuyerDetailsRequest struct {
	Buyer         string `json:"buyer" binding:"required"`
	BuyerName     string `json:"buyerName"`
	BuyerEmail    string `json:"buyerEmail"`
	BuyerShipping string `json:"buyerShipping"`
}

// Service implements the order state machine. It owns every status
// write; per-order locks serialize transitions so two requests cannot
// interleave a read-check-write on the same order.
type Service struct {
	store    Store
	locks    *syncutil.ContextShardedMutex
	blocks   BlockPolicy
	releaser Releaser
	derive   func(appID uint64) string
}

// NewService creates a new order service.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		locks: syncutil.NewContextShardedMutex(),
	}
}

// WithBlockPolicy adds a blocklist gate on order creation and funding.
func (s *Service) WithBlockPolicy(b BlockPolicy) *Service {
	s.blocks = b
	return s
}

// WithReleaser adds server-side escrow release capability.
func (s *Service) WithReleaser(r Releaser) *Service {
	s.releaser = r
	return s
}

// WithEscrowDeriver adds an app-ID-to-escrow-address derivation used
// to repair orders whose stored escrow address is malformed.
func (s *Service) WithEscrowDeriver(derive func(appID uint64) string) *Service {
	s.derive = derive
	return s
}

// Create lists a new product and returns the order in INIT.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*EscrowOrder, error) {
	req.ProductName = validation.SanitizeString(req.ProductName, 500)
	req.ProductDescription = validation.SanitizeString(req.ProductDescription, validation.MaxStringLength)
	req.ImageURL = validation.SanitizeString(req.ImageURL, 2000)

	verrs := validation.Validate(
		validation.Required("seller", req.Seller),
		validation.ValidAddress("seller", req.Seller),
		validation.PositiveAmount("amount", req.Amount),
		validation.Required("escrowAddress", req.EscrowAddress),
		validation.ValidAddress("escrowAddress", req.EscrowAddress),
		validation.Required("productName", req.ProductName),
		validation.Required("productDescription", req.ProductDescription),
		validation.ValidAddress("buyer", req.Buyer),
	)
	if req.AppID == 0 {
		verrs = append(verrs, validation.ValidationError{Field: "appId", Message: "is required"})
	}
	if req.Buyer != "" && req.Buyer == req.Seller {
		verrs = append(verrs, validation.ValidationError{Field: "buyer", Message: "buyer and seller cannot be the same address"})
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	if err := s.checkBlocked(ctx, req.Seller, req.Buyer); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	o := &EscrowOrder{
		ID:                 idgen.WithPrefix("ord_"),
		Seller:             req.Seller,
		Buyer:              req.Buyer,
		Amount:             req.Amount,
		EscrowAddress:      req.EscrowAddress,
		AppID:              req.AppID,
		Status:             StatusInit,
		ProductName:        req.ProductName,
		ProductDescription: req.ProductDescription,
		ImageURL:           req.ImageURL,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.store.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order record: %w", err)
	}

	metrics.OrdersCreatedTotal.Inc()
	logging.L(ctx).Info("order created",
		"orderId", o.ID, "seller", o.Seller, "amount", o.Amount, "appId", o.AppID)
	return o, nil
}

// Get returns an order by ID.
func (s *Service) Get(ctx context.Context, id string) (*EscrowOrder, error) {
	return s.store.Get(ctx, id)
}

// List returns orders matching the filter plus the total match count.
func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*EscrowOrder, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, validation.ValidationErrors{{Field: "status", Message: "unknown status value"}}
	}
	if filter.Wallet != "" && !validation.IsValidAddress(filter.Wallet) {
		return nil, 0, validation.ValidationErrors{{Field: "wallet", Message: "must be a valid Algorand address (58 base32 chars)"}}
	}
	orders, err := s.store.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// FundingInfo returns the order a wallet needs to pay into. When the
// stored escrow address fails validation it is re-derived from the
// application ID and persisted, so a bad listing does not strand the
// buyer.
func (s *Service) FundingInfo(ctx context.Context, id string) (*EscrowOrder, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if validation.IsValidAddress(o.EscrowAddress) || s.derive == nil || o.AppID == 0 {
		return o, nil
	}

	return s.transition(ctx, id, "repair_escrow_address", func(o *EscrowOrder) error {
		if validation.IsValidAddress(o.EscrowAddress) {
			return nil
		}
		o.EscrowAddress = s.derive(o.AppID)
		logging.L(ctx).Warn("repaired malformed escrow address",
			"orderId", o.ID, "appId", o.AppID, "escrowAddress", o.EscrowAddress)
		return nil
	})
}

// AttachBuyer sets the buyer wallet and shipping details on an INIT
// order. Once a buyer is attached, only that buyer may change the
// details.
func (s *Service) AttachBuyer(ctx context.Context, id string, req BuyerDetailsRequest) (*EscrowOrder, error) {
	req.BuyerName = validation.SanitizeString(req.BuyerName, 200)
	req.BuyerEmail = validation.SanitizeString(req.BuyerEmail, 320)
	req.BuyerShipping = validation.SanitizeString(req.BuyerShipping, 2000)

	verrs := validation.Validate(
		validation.Required("buyer", req.Buyer),
		validation.ValidAddress("buyer", req.Buyer),
	)
	if len(verrs) > 0 {
		return nil, verrs
	}

	return s.transition(ctx, id, "attach_buyer", func(o *EscrowOrder) error {
		if o.Status != StatusInit {
			return ErrInvalidTransition
		}
		if req.Buyer == o.Seller {
			return validation.ValidationErrors{{Field: "buyer", Message: "buyer and seller cannot be the same address"}}
		}
		if o.Buyer != "" && o.Buyer != req.Buyer {
			return ErrUnauthorized
		}
		if err := s.checkBlocked(ctx, req.Buyer); err != nil {
			return err
		}
		o.Buyer = req.Buyer
		o.BuyerName = req.BuyerName
		o.BuyerEmail = req.BuyerEmail
		o.BuyerShipping = req.BuyerShipping
		return nil
	})
}

// Fund records the buyer's payment transaction and moves the order to
// FUNDED. The flip is optimistic: reconciliation verifies the
// transaction against the chain afterwards and calls RevertFunding if
// it never confirms.
func (s *Service) Fund(ctx context.Context, id, buyer, txID string) (*EscrowOrder, error) {
	verrs := validation.Validate(
		validation.Required("buyer", buyer),
		validation.ValidAddress("buyer", buyer),
		validation.Required("txId", txID),
		validation.MaxLength("txId", txID, 128),
	)
	if len(verrs) > 0 {
		return nil, verrs
	}

	return s.transition(ctx, id, "fund", func(o *EscrowOrder) error {
		if o.Status != StatusInit {
			return ErrInvalidTransition
		}
		if buyer == o.Seller {
			return ErrUnauthorized
		}
		if o.Buyer != "" && o.Buyer != buyer {
			return ErrUnauthorized
		}
		if err := s.checkBlocked(ctx, buyer); err != nil {
			return err
		}
		o.Buyer = buyer
		o.TxID = txID
		o.Status = StatusFunded
		return nil
	})
}

// RevertFunding undoes an optimistic FUNDED flip whose transaction
// never confirmed. The txID guard makes stale reverts harmless: if the
// order moved on or was re-funded with a different transaction, the
// revert is rejected.
func (s *Service) RevertFunding(ctx context.Context, id, txID string) (*EscrowOrder, error) {
	return s.transition(ctx, id, "revert_funding", func(o *EscrowOrder) error {
		if o.Status != StatusFunded || o.TxID != txID {
			return ErrInvalidTransition
		}
		o.Status = StatusInit
		o.TxID = ""
		return nil
	})
}

// MarkDelivered marks the order as shipped by the seller.
func (s *Service) MarkDelivered(ctx context.Context, id, caller string) (*EscrowOrder, error) {
	return s.transition(ctx, id, "deliver", func(o *EscrowOrder) error {
		if caller != o.Seller {
			return ErrUnauthorized
		}
		if o.Status != StatusFunded {
			return ErrInvalidTransition
		}
		o.Status = StatusDelivered
		return nil
	})
}

// Confirm completes the order: the buyer acknowledges receipt and the
// escrow pays the seller. releaseTxID carries a client-signed release
// already submitted by the buyer's wallet; when empty and a Releaser
// is configured, the service releases the escrow itself.
func (s *Service) Confirm(ctx context.Context, id, caller, releaseTxID string) (*EscrowOrder, error) {
	// Precheck outside the lock so the chain call below never blocks
	// other transitions on this order.
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller == "" || caller != o.Buyer {
		metrics.TransitionsTotal.WithLabelValues("confirm", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}
	if o.Status != StatusDelivered {
		metrics.TransitionsTotal.WithLabelValues("confirm", "invalid_transition").Inc()
		return nil, ErrInvalidTransition
	}

	released := releaseTxID
	if released == "" && s.releaser != nil {
		released, err = s.releaser.Release(ctx, o.AppID, o.Seller)
		if err != nil {
			metrics.TransitionsTotal.WithLabelValues("confirm", "release_failed").Inc()
			return nil, fmt.Errorf("%w: %v", ErrReleaseFailed, err)
		}
	}

	return s.transition(ctx, id, "confirm", func(o *EscrowOrder) error {
		if caller != o.Buyer {
			return ErrUnauthorized
		}
		if o.Status != StatusDelivered {
			// Funds may already have moved on chain. Surface loudly;
			// the ledger is the source of truth for money either way.
			if released != "" {
				logging.L(ctx).Error("order moved during escrow release",
					"orderId", id, "status", o.Status, "releaseTxId", released)
			}
			return ErrInvalidTransition
		}
		o.Status = StatusCompleted
		o.ReleaseTxID = released
		return nil
	})
}

// Dispute freezes a FUNDED or DELIVERED order for operator resolution.
// Either trading party may raise it.
func (s *Service) Dispute(ctx context.Context, id, caller string) (*EscrowOrder, error) {
	return s.transition(ctx, id, "dispute", func(o *EscrowOrder) error {
		if caller == "" || (caller != o.Buyer && caller != o.Seller) {
			return ErrUnauthorized
		}
		if o.Status != StatusFunded && o.Status != StatusDelivered {
			return ErrInvalidTransition
		}
		o.Status = StatusDisputed
		return nil
	})
}

// Cancel withdraws an unfunded order.
func (s *Service) Cancel(ctx context.Context, id, caller string) (*EscrowOrder, error) {
	return s.transition(ctx, id, "cancel", func(o *EscrowOrder) error {
		if caller == "" || (caller != o.Seller && caller != o.Buyer) {
			return ErrUnauthorized
		}
		if o.Status != StatusInit {
			return ErrInvalidTransition
		}
		o.Status = StatusCancelled
		return nil
	})
}

// ForceRelease completes a FUNDED or DELIVERED order by operator
// override, paying the seller through the configured Releaser.
func (s *Service) ForceRelease(ctx context.Context, id string) (*EscrowOrder, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusFunded && o.Status != StatusDelivered {
		metrics.TransitionsTotal.WithLabelValues("force_release", "invalid_transition").Inc()
		return nil, ErrInvalidTransition
	}

	var released string
	if s.releaser != nil {
		released, err = s.releaser.Release(ctx, o.AppID, o.Seller)
		if err != nil {
			metrics.TransitionsTotal.WithLabelValues("force_release", "release_failed").Inc()
			return nil, fmt.Errorf("%w: %v", ErrReleaseFailed, err)
		}
	}

	return s.transition(ctx, id, "force_release", func(o *EscrowOrder) error {
		if o.Status != StatusFunded && o.Status != StatusDelivered {
			if released != "" {
				logging.L(ctx).Error("order moved during escrow release",
					"orderId", id, "status", o.Status, "releaseTxId", released)
			}
			return ErrInvalidTransition
		}
		o.Status = StatusCompleted
		o.ReleaseTxID = released
		return nil
	})
}

// ResolveDispute settles a DISPUTED order. outcome must be
// StatusCompleted (pay the seller) or StatusRefunded (refund the
// buyer).
func (s *Service) ResolveDispute(ctx context.Context, id string, outcome Status) (*EscrowOrder, error) {
	if outcome != StatusCompleted && outcome != StatusRefunded {
		return nil, ErrInvalidResolution
	}

	var released string
	if outcome == StatusCompleted && s.releaser != nil {
		o, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if o.Status != StatusDisputed {
			metrics.TransitionsTotal.WithLabelValues("resolve", "invalid_transition").Inc()
			return nil, ErrInvalidTransition
		}
		released, err = s.releaser.Release(ctx, o.AppID, o.Seller)
		if err != nil {
			metrics.TransitionsTotal.WithLabelValues("resolve", "release_failed").Inc()
			return nil, fmt.Errorf("%w: %v", ErrReleaseFailed, err)
		}
	}

	return s.transition(ctx, id, "resolve", func(o *EscrowOrder) error {
		if o.Status != StatusDisputed {
			if released != "" {
				logging.L(ctx).Error("order moved during escrow release",
					"orderId", id, "status", o.Status, "releaseTxId", released)
			}
			return ErrInvalidTransition
		}
		o.Status = outcome
		o.ReleaseTxID = released
		return nil
	})
}

// transition runs apply on the order under its per-ID lock and
// persists the result. apply mutates the order in place and returns an
// error to abort with no effect.
func (s *Service) transition(ctx context.Context, id, name string, apply func(o *EscrowOrder) error) (*EscrowOrder, error) {
	unlock, err := s.locks.LockContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prior := o.Status

	if err := apply(o); err != nil {
		metrics.TransitionsTotal.WithLabelValues(name, outcomeLabel(err)).Inc()
		return nil, err
	}

	o.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, o); err != nil {
		metrics.TransitionsTotal.WithLabelValues(name, "store_error").Inc()
		return nil, fmt.Errorf("update order: %w", err)
	}

	metrics.TransitionsTotal.WithLabelValues(name, "applied").Inc()
	if o.IsTerminal() {
		metrics.OrderSettlementDuration.Observe(time.Since(o.CreatedAt).Seconds())
	}
	logging.L(ctx).Info("order transition",
		"orderId", o.ID, "transition", name, "from", prior, "to", o.Status)
	return o, nil
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrBlocked):
		return "blocked"
	default:
		return "rejected"
	}
}

// checkBlocked returns ErrBlocked if any non-empty address is on the
// blocklist. Reads are never gated, only writes that enter a trade.
func (s *Service) checkBlocked(ctx context.Context, addrs ...string) error {
	if s.blocks == nil {
		return nil
	}
	for _, addr := range addrs {
		if addr == "" {
			continue
		}
		blocked, err := s.blocks.IsBlocked(ctx, addr)
		if err != nil {
			return fmt.Errorf("blocklist check: %w", err)
		}
		if blocked {
			return fmt.Errorf("%w: %s", ErrBlocked, addr)
		}
	}
	return nil
}
