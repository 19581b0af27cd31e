package escrow

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation wraps every missing or malformed input field.
	ErrValidation = errors.New("validation error")
	// ErrEscrowNotFound is returned when no escrow exists for a sequence.
	ErrEscrowNotFound = errors.New("escrow not found")
	// ErrEscrowLocked is returned by a time-lock enforcing engine before finishAfter has elapsed.
	ErrEscrowLocked = errors.New("escrow is time-locked")
	// ErrSequenceExhausted signals that no free sequence could be drawn.
	ErrSequenceExhausted = errors.New("no free escrow sequence")
)

const (
	// PolicyNativeDefault reports a synthetic native balance for accounts without entries.
	PolicyNativeDefault = "native"
	// PolicyEmpty reports accounts without entries as an empty list.
	PolicyEmpty = "empty"

	// DefaultIssuerAddress is the counterparty recorded on issued tokens.
	DefaultIssuerAddress = "rIssuer123456789012345678901234567"
	// NativeDefaultValue is the synthetic native balance shown under PolicyNativeDefault.
	NativeDefaultValue = "100"

	// SequenceSpace bounds randomly drawn escrow sequences: [0, SequenceSpace).
	SequenceSpace = 1_000_000
)

// Escrow is a pending lock of value owned by Owner and payable to Destination.
type Escrow struct {
	Sequence    int64
	Owner       string
	Destination string
	Amount      decimal.Decimal
	Currency    string
	FinishAfter *int64
	CreatedAt   time.Time
}

// MaxFinishAfter is the largest time lock, in seconds, that fits a time.Duration.
const MaxFinishAfter = math.MaxInt64 / int64(time.Second)

// UnlockAt returns the earliest finish time, or the zero time when the escrow has no time lock.
func (e Escrow) UnlockAt() time.Time {
	if e.FinishAfter == nil {
		return time.Time{}
	}
	return e.CreatedAt.Add(time.Duration(*e.FinishAfter) * time.Second)
}

// IssueInput captures a token issuance request.
type IssueInput struct {
	Seed        string
	Destination string
	Currency    string
	Value       string
}

// IssueResult describes a completed issuance.
type IssueResult struct {
	Destination string
	Currency    string
	Value       decimal.Decimal
	Balance     decimal.Decimal
	TxHash      string
	Timestamp   time.Time
}

// CreateInput captures an escrow creation request.
type CreateInput struct {
	Seed        string
	Destination string
	Amount      string
	Currency    string
	FinishAfter *int64
}

// EscrowCreated describes a newly locked escrow.
type EscrowCreated struct {
	Sequence    int64
	Owner       string
	Destination string
	Amount      decimal.Decimal
	Currency    string
	FinishAfter *int64
	TxHash      string
	Timestamp   time.Time
}

// FinishInput identifies the escrow to release. Owner and Seed are informational.
type FinishInput struct {
	Sequence *int64
	Owner    string
	Seed     string
}

// EscrowFinished describes a released escrow.
type EscrowFinished struct {
	Sequence    int64
	Owner       string
	Destination string
	Amount      decimal.Decimal
	Currency    string
	TxHash      string
	Timestamp   time.Time
}
