package trustline

import (
	"context"
	"sort"
	"sync"
)

// Repository persists trustlines.
type Repository interface {
	Upsert(ctx context.Context, line Trustline) (Trustline, error)
	ListByAccount(ctx context.Context, accountID string) ([]Trustline, error)
}

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Trustline
}

// NewMemoryRepository constructs an in-memory trustline repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Trustline)}
}

func (r *memoryRepository) Upsert(_ context.Context, line Trustline) (Trustline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(line.Account, line.Issuer, line.Currency)
	if existing, ok := r.storage[k]; ok {
		line.CreatedAt = existing.CreatedAt
	}
	r.storage[k] = line
	return line, nil
}

func (r *memoryRepository) ListByAccount(_ context.Context, accountID string) ([]Trustline, error) {
	r.mu.RLock()
	out := make([]Trustline, 0)
	for _, line := range r.storage {
		if line.Account == accountID {
			out = append(out, line)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Currency != out[j].Currency {
			return out[i].Currency < out[j].Currency
		}
		return out[i].Issuer < out[j].Issuer
	})
	return out, nil
}
