package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount indicates an amount that is malformed, zero or negative.
	ErrInvalidAmount = errors.New("invalid amount")
)

const (
	// NativeCurrency is the base asset code of the demo ledger.
	NativeCurrency = "XRP"
	// NativeCounterparty marks balances of the base asset.
	NativeCounterparty = "Native"
)

// InsufficientFundsError carries the available and requested amounts of a failed debit.
type InsufficientFundsError struct {
	Account  string
	Currency string
	Have     decimal.Decimal
	Need     decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s %s, need %s", e.Have.String(), e.Currency, e.Need.String())
}

// Is reports ErrInsufficientFunds so callers can match on the sentinel.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Balance is a single currency position held by an account.
type Balance struct {
	Currency     string
	Value        decimal.Decimal
	Counterparty string
}

// Store defines the contract implemented by balance backends.
type Store interface {
	Balances(ctx context.Context, account string) ([]Balance, error)
	Balance(ctx context.Context, account, currency string) (decimal.Decimal, bool, error)
	Credit(ctx context.Context, account, currency string, amount decimal.Decimal, counterparty string) (decimal.Decimal, error)
	Debit(ctx context.Context, account, currency string, amount decimal.Decimal) (decimal.Decimal, error)
	Reset()
}

const (
	// MaxFractionDigits bounds the scale of any amount the ledger accepts.
	MaxFractionDigits = 18
	// MaxIntegerDigits bounds the magnitude of any amount the ledger accepts.
	MaxIntegerDigits = 20

	maxSignificantDigits = 64
)

// CheckPrecision rejects values whose scale or magnitude exceeds the ledger's
// bounds. Unbounded exponents would make later arithmetic rescale to arbitrary size.
func CheckPrecision(d decimal.Decimal) error {
	if d.IsZero() {
		return nil
	}
	if int64(d.NumDigits())+int64(d.Exponent()) > MaxIntegerDigits {
		return fmt.Errorf("%w: at most %d integer digits are allowed", ErrInvalidAmount, MaxIntegerDigits)
	}
	if -int64(d.Exponent()) > MaxFractionDigits && !fitsScale(d) {
		return fmt.Errorf("%w: at most %d fractional digits are allowed", ErrInvalidAmount, MaxFractionDigits)
	}
	return nil
}

// fitsScale reports whether d is exactly representable with MaxFractionDigits,
// as with trailing zeros such as "1.50000000000000000000".
func fitsScale(d decimal.Decimal) bool {
	if d.NumDigits() > maxSignificantDigits {
		return false
	}
	// every digit sits below the smallest allowed unit
	if int64(d.Exponent())+int64(d.NumDigits()) <= -MaxFractionDigits {
		return false
	}
	return d.Truncate(MaxFractionDigits).Equal(d)
}

// ParseAmount converts a decimal string into an exact, strictly positive amount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: amount is empty", ErrInvalidAmount)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not a decimal", ErrInvalidAmount, raw)
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, raw)
	}
	if err := CheckPrecision(amount); err != nil {
		return decimal.Decimal{}, err
	}
	return amount.Truncate(MaxFractionDigits), nil
}
