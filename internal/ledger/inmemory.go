package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

type inMemoryStore struct {
	mu       sync.RWMutex
	balances map[string][]Balance
}

// NewInMemory creates a concurrency-safe in-memory balance store. State lives
// for the lifetime of the process.
func NewInMemory() Store {
	return &inMemoryStore{balances: make(map[string][]Balance)}
}

func (s *inMemoryStore) Balances(_ context.Context, account string) ([]Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.balances[account]
	out := make([]Balance, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *inMemoryStore) Balance(_ context.Context, account, currency string) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.balances[account], currency); i >= 0 {
		return s.balances[account][i].Value, true, nil
	}
	return decimal.Zero, false, nil
}

func (s *inMemoryStore) Credit(_ context.Context, account, currency string, amount decimal.Decimal, counterparty string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: credit of %s", ErrInvalidAmount, amount.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.balances[account]
	if i := indexOf(entries, currency); i >= 0 {
		entries[i].Value = entries[i].Value.Add(amount)
		return entries[i].Value, nil
	}

	s.balances[account] = append(entries, Balance{
		Currency:     currency,
		Value:        amount,
		Counterparty: counterparty,
	})
	return amount, nil
}

func (s *inMemoryStore) Debit(_ context.Context, account, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: debit of %s", ErrInvalidAmount, amount.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.balances[account]
	i := indexOf(entries, currency)
	if i < 0 {
		return decimal.Decimal{}, &InsufficientFundsError{Account: account, Currency: currency, Have: decimal.Zero, Need: amount}
	}
	if entries[i].Value.LessThan(amount) {
		return decimal.Decimal{}, &InsufficientFundsError{Account: account, Currency: currency, Have: entries[i].Value, Need: amount}
	}

	entries[i].Value = entries[i].Value.Sub(amount)
	return entries[i].Value, nil
}

func (s *inMemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = make(map[string][]Balance)
}

func indexOf(entries []Balance, currency string) int {
	for i := range entries {
		if entries[i].Currency == currency {
			return i
		}
	}
	return -1
}
