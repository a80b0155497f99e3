package order

import "context"

// ListFilter narrows a List call. Zero values match everything.
type ListFilter struct {
	// Status restricts results to one status.
	Status Status
	// Wallet matches orders where the address is buyer or seller.
	Wallet string
}

// Store persists order data.
type Store interface {
	Create(ctx context.Context, o *EscrowOrder) error
	Get(ctx context.Context, id string) (*EscrowOrder, error)
	Update(ctx context.Context, o *EscrowOrder) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*EscrowOrder, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
}
