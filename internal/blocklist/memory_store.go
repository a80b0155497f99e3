package blocklist

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory blocklist store for demo/development mode.
type MemoryStore struct {
	users map[string]*BlockedUser
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory blocklist store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*BlockedUser),
	}
}

func (m *MemoryStore) Put(ctx context.Context, u *BlockedUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *u
	m.users[u.WalletAddress] = &cp
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, wallet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[wallet]; !ok {
		return ErrNotBlocked
	}
	delete(m.users, wallet)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, wallet string) (*BlockedUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[wallet]
	if !ok {
		return nil, ErrNotBlocked
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context, limit, offset int) ([]*BlockedUser, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*BlockedUser, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].WalletAddress < all[j].WalletAddress
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	result := make([]*BlockedUser, len(all))
	for i, u := range all {
		cp := *u
		result[i] = &cp
	}
	return result, total, nil
}

var _ Store = (*MemoryStore)(nil)
