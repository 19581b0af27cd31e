package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func TestInMemoryStore_CreditCreatesAndIncrements(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if _, err := s.Credit(ctx, "rAlice", "RLUSD", decimal.RequireFromString("100"), "rIssuer"); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	total, err := s.Credit(ctx, "rAlice", "RLUSD", decimal.RequireFromString("0.25"), "rSomeoneElse")
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if total.String() != "100.25" {
		t.Fatalf("expected 100.25, got %s", total.String())
	}

	balances, err := s.Balances(ctx, "rAlice")
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if len(balances) != 1 {
		t.Fatalf("expected a single entry per currency, got %d", len(balances))
	}
	if balances[0].Counterparty != "rIssuer" {
		t.Fatalf("counterparty should stay with the first credit, got %s", balances[0].Counterparty)
	}
}

func TestInMemoryStore_DecimalArithmeticIsExact(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	s.Credit(ctx, "rAlice", "USD", decimal.RequireFromString("0.1"), "rIssuer")
	total, _ := s.Credit(ctx, "rAlice", "USD", decimal.RequireFromString("0.2"), "rIssuer")
	if total.String() != "0.3" {
		t.Fatalf("expected exact 0.3, got %s", total.String())
	}
}

func TestInMemoryStore_DebitInsufficient(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedBalance(s, "rAlice", "RLUSD", "10", "rIssuer")

	_, err := s.Debit(ctx, "rAlice", "RLUSD", decimal.RequireFromString("10.01"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected *InsufficientFundsError, got %T", err)
	}
	if insufficient.Have.String() != "10" || insufficient.Need.String() != "10.01" {
		t.Fatalf("unexpected have/need: %s/%s", insufficient.Have, insufficient.Need)
	}

	value, _, _ := s.Balance(ctx, "rAlice", "RLUSD")
	if value.String() != "10" {
		t.Fatalf("failed debit must not change balance, got %s", value)
	}
}

func TestInMemoryStore_DebitMissingCurrencyDoesNotCreateEntry(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if _, err := s.Debit(ctx, "rAlice", "EUR", decimal.RequireFromString("1")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	balances, _ := s.Balances(ctx, "rAlice")
	if len(balances) != 0 {
		t.Fatalf("debit must not create entries, got %+v", balances)
	}
}

func TestInMemoryStore_DebitToZero(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedBalance(s, "rAlice", "RLUSD", "40", "rIssuer")

	left, err := s.Debit(ctx, "rAlice", "RLUSD", decimal.RequireFromString("40"))
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !left.IsZero() {
		t.Fatalf("expected zero, got %s", left)
	}
}

func TestInMemoryStore_RejectsNonPositiveAmounts(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if _, err := s.Credit(ctx, "rAlice", "USD", decimal.Zero, "rIssuer"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount on zero credit, got %v", err)
	}
	if _, err := s.Debit(ctx, "rAlice", "USD", decimal.RequireFromString("-1")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount on negative debit, got %v", err)
	}
}

func TestInMemoryStore_BalancesReturnsCopy(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedBalance(s, "rAlice", "USD", "5", "rIssuer")

	balances, _ := s.Balances(ctx, "rAlice")
	balances[0].Value = decimal.RequireFromString("999")

	value, _, _ := s.Balance(ctx, "rAlice", "USD")
	if value.String() != "5" {
		t.Fatalf("caller mutation leaked into store: %s", value)
	}
}

func TestInMemoryStore_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedBalance(s, "rAlice", "USD", "1000", "rIssuer")

	const workers = 50
	amount := decimal.RequireFromString("30")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Debit(ctx, "rAlice", "USD", amount); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if success != 33 {
		t.Fatalf("expected 33 successful debits, got %d", success)
	}
	value, _, _ := s.Balance(ctx, "rAlice", "USD")
	if value.String() != "10" {
		t.Fatalf("expected 10 left, got %s", value)
	}
}

func TestInMemoryStore_Reset(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedBalance(s, "rAlice", "USD", "5", "rIssuer")

	s.Reset()

	balances, _ := s.Balances(ctx, "rAlice")
	if len(balances) != 0 {
		t.Fatalf("expected empty store after reset, got %+v", balances)
	}
}

func TestParseAmount(t *testing.T) {
	if v, err := ParseAmount(" 40.50 "); err != nil || v.String() != "40.5" {
		t.Fatalf("expected 40.5, got %v (%v)", v, err)
	}
	for _, raw := range []string{"", "abc", "0", "-3", "1e", "1e-20000000", "1e-2000000000", "1e-2147483648", "1e2000000000", "0.0000000000000000001", "123456789012345678901"} {
		if _, err := ParseAmount(raw); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("expected invalid amount for %q, got %v", raw, err)
		}
	}
}

func TestParseAmountPrecisionBounds(t *testing.T) {
	for raw, want := range map[string]string{
		"0.000000000000000001":    "0.000000000000000001",
		"99999999999999999999":    "99999999999999999999",
		"1.50000000000000000000":  "1.5",
		"2.5e3":                   "2500",
		"12345678901234567890.25": "12345678901234567890.25",
	} {
		v, err := ParseAmount(raw)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", raw, err)
		}
		if v.String() != want {
			t.Fatalf("%q: expected %s, got %s", raw, want, v.String())
		}
	}
}

func TestCreditWithBoundedAmountStaysSmall(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedBalance(s, "rAlice", "RLUSD", "100", "rIssuer")

	tiny, err := ParseAmount("1e-18")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := s.Credit(ctx, "rAlice", "RLUSD", tiny, "rIssuer")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got.String() != "100.000000000000000001" {
		t.Fatalf("unexpected balance %s", got)
	}
}
