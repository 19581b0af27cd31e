package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that overwrites a balance when using the in-memory store.
func SeedBalance(s Store, account, currency, value, counterparty string) {
	mem, ok := s.(*inMemoryStore)
	if !ok {
		return
	}
	amount := decimal.RequireFromString(value)

	mem.mu.Lock()
	defer mem.mu.Unlock()
	entries := mem.balances[account]
	if i := indexOf(entries, currency); i >= 0 {
		entries[i].Value = amount
		return
	}
	mem.balances[account] = append(entries, Balance{Currency: currency, Value: amount, Counterparty: counterparty})
}
