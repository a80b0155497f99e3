package order

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory order store for demo/development mode.
type MemoryStore struct {
	orders map[string]*EscrowOrder
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory order store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]*EscrowOrder),
	}
}

func (m *MemoryStore) Create(ctx context.Context, o *EscrowOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*EscrowOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	// Return a copy to prevent races on the shared pointer.
	return o.Clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, o *EscrowOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[o.ID]; !ok {
		return ErrNotFound
	}
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *MemoryStore) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*EscrowOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := m.match(filter)
	// Newest first, ID as tiebreaker so paging is stable.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	result := make([]*EscrowOrder, len(matched))
	for i, o := range matched {
		result[i] = o.Clone()
	}
	return result, nil
}

func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.match(filter)), nil
}

// match returns the stored pointers matching filter. Caller holds mu.
func (m *MemoryStore) match(filter ListFilter) []*EscrowOrder {
	var result []*EscrowOrder
	for _, o := range m.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.Wallet != "" && o.Buyer != filter.Wallet && o.Seller != filter.Wallet {
			continue
		}
		result = append(result, o)
	}
	return result
}

var _ Store = (*MemoryStore)(nil)
