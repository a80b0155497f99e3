// Package blocklist maintains the set of wallet addresses barred from
// trading. The order service consults it on creation and funding;
// reads of existing orders are never gated.
package blocklist

import (
	"context"
	"errors"
	"time"

	"github.com/algocart/escrowd/internal/logging"
	"github.com/algocart/escrowd/internal/validation"
)

var (
	ErrNotBlocked     = errors.New("wallet address is not blocked")
	ErrAlreadyBlocked = errors.New("wallet address is already blocked")
)

// BlockedUser is one blocklist entry.
type BlockedUser struct {
	WalletAddress string    `json:"walletAddress"`
	Reason        string    `json:"reason,omitempty"`
	BlockedBy     string    `json:"blockedBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Store persists blocklist entries.
type Store interface {
	Put(ctx context.Context, u *BlockedUser) error
	Delete(ctx context.Context, wallet string) error
	Get(ctx context.Context, wallet string) (*BlockedUser, error)
	List(ctx context.Context, limit, offset int) ([]*BlockedUser, int, error)
}

// Service implements blocklist management.
type Service struct {
	store Store
}

// NewService creates a new blocklist service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// IsBlocked reports whether a wallet is on the blocklist. Satisfies
// the order service's block policy.
func (s *Service) IsBlocked(ctx context.Context, wallet string) (bool, error) {
	_, err := s.store.Get(ctx, wallet)
	if errors.Is(err, ErrNotBlocked) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Block adds a wallet to the blocklist.
func (s *Service) Block(ctx context.Context, wallet, reason, blockedBy string) (*BlockedUser, error) {
	verrs := validation.Validate(
		validation.Required("walletAddress", wallet),
		validation.ValidAddress("walletAddress", wallet),
		validation.MaxLength("reason", reason, 1000),
	)
	if len(verrs) > 0 {
		return nil, verrs
	}

	if _, err := s.store.Get(ctx, wallet); err == nil {
		return nil, ErrAlreadyBlocked
	} else if !errors.Is(err, ErrNotBlocked) {
		return nil, err
	}

	now := time.Now().UTC()
	u := &BlockedUser{
		WalletAddress: wallet,
		Reason:        validation.SanitizeString(reason, 1000),
		BlockedBy:     blockedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Put(ctx, u); err != nil {
		return nil, err
	}

	logging.L(ctx).Info("wallet blocked", "wallet", wallet, "blockedBy", blockedBy)
	return u, nil
}

// Unblock removes a wallet from the blocklist.
func (s *Service) Unblock(ctx context.Context, wallet string) error {
	if err := s.store.Delete(ctx, wallet); err != nil {
		return err
	}
	logging.L(ctx).Info("wallet unblocked", "wallet", wallet)
	return nil
}

// List returns blocklist entries plus the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*BlockedUser, int, error) {
	return s.store.List(ctx, limit, offset)
}
