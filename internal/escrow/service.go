package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/token-lend/token_lend/internal/account"
	"github.com/token-lend/token_lend/internal/ledger"
	"github.com/token-lend/token_lend/internal/metrics"
	"github.com/token-lend/token_lend/internal/notification"
)

const maxSequenceDraws = 64

// Options tunes the engine. The zero value reproduces the demo behavior.
type Options struct {
	// IssuerAddress is recorded as counterparty on issued tokens.
	IssuerAddress string
	// EmptyBalancePolicy is PolicyNativeDefault (default) or PolicyEmpty.
	EmptyBalancePolicy string
	// EnforceFinishAfter rejects finishes before createdAt + finishAfter.
	EnforceFinishAfter bool
	// Sequence draws candidate escrow sequences; defaults to uniform [0, SequenceSpace).
	Sequence func() int64
	// Clock defaults to time.Now.
	Clock func() time.Time
	// TxHash defaults to NewTxHash.
	TxHash   func() string
	Notifier notification.Notifier
	Metrics  *metrics.Recorder
}

// Service orchestrates issuance and the escrow lifecycle over a balance store.
// Every mutating operation holds mu for its full duration, so a debit and the
// matching escrow insert (or a credit and the matching delete) apply together.
type Service struct {
	mu      sync.Mutex
	store   ledger.Store
	deriver account.Deriver
	escrows map[int64]Escrow

	issuer             string
	emptyPolicy        string
	enforceFinishAfter bool
	nextSequence       func() int64
	now                func() time.Time
	newTxHash          func() string
	notifier           notification.Notifier
	metrics            *metrics.Recorder
}

// NewService constructs an escrow engine around the provided store.
func NewService(store ledger.Store, deriver account.Deriver, opts Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("balance store is required")
	}
	if deriver == nil {
		deriver = account.SumDeriver{}
	}

	policy := strings.ToLower(strings.TrimSpace(opts.EmptyBalancePolicy))
	switch policy {
	case "":
		policy = PolicyNativeDefault
	case PolicyNativeDefault, PolicyEmpty:
	default:
		return nil, fmt.Errorf("unknown empty balance policy %q", opts.EmptyBalancePolicy)
	}

	s := &Service{
		store:              store,
		deriver:            deriver,
		escrows:            make(map[int64]Escrow),
		issuer:             opts.IssuerAddress,
		emptyPolicy:        policy,
		enforceFinishAfter: opts.EnforceFinishAfter,
		nextSequence:       opts.Sequence,
		now:                opts.Clock,
		newTxHash:          opts.TxHash,
		notifier:           opts.Notifier,
		metrics:            opts.Metrics,
	}
	if s.issuer == "" {
		s.issuer = DefaultIssuerAddress
	}
	if s.nextSequence == nil {
		s.nextSequence = func() int64 { return rand.Int63n(SequenceSpace) }
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newTxHash == nil {
		s.newTxHash = NewTxHash
	}
	return s, nil
}

// DeriveAccount maps a seed to its account identifier using the configured strategy.
func (s *Service) DeriveAccount(seed string) string {
	return s.deriver.Derive(seed)
}

// Issue mints value of a currency into the destination account. The issuer's
// own balances are neither checked nor changed.
func (s *Service) Issue(ctx context.Context, input IssueInput) (result IssueResult, err error) {
	defer s.observe("issue", time.Now(), &err)

	destination := strings.TrimSpace(input.Destination)
	currency := strings.TrimSpace(input.Currency)
	if strings.TrimSpace(input.Seed) == "" || destination == "" || currency == "" || strings.TrimSpace(input.Value) == "" {
		return IssueResult{}, fmt.Errorf("%w: seed, destination, currency, and value are required", ErrValidation)
	}
	value, err := ledger.ParseAmount(input.Value)
	if err != nil {
		return IssueResult{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	s.mu.Lock()
	balance, err := s.store.Credit(ctx, destination, currency, value, s.issuer)
	s.mu.Unlock()
	if err != nil {
		return IssueResult{}, fmt.Errorf("credit %s: %w", destination, err)
	}

	s.notify(ctx, notification.Message{
		Kind:        notification.KindTokenIssued,
		Destination: destination,
		Body:        fmt.Sprintf("Issued %s %s", value.String(), currency),
	})

	return IssueResult{
		Destination: destination,
		Currency:    currency,
		Value:       value,
		Balance:     balance,
		TxHash:      s.newTxHash(),
		Timestamp:   s.now().UTC(),
	}, nil
}

// CreateEscrow debits the seed's derived account and records an escrow for the destination.
func (s *Service) CreateEscrow(ctx context.Context, input CreateInput) (result EscrowCreated, err error) {
	defer s.observe("create_escrow", time.Now(), &err)

	destination := strings.TrimSpace(input.Destination)
	currency := strings.TrimSpace(input.Currency)
	if strings.TrimSpace(input.Seed) == "" || destination == "" || currency == "" || strings.TrimSpace(input.Amount) == "" {
		return EscrowCreated{}, fmt.Errorf("%w: seed, destination, amount, and currency are required", ErrValidation)
	}
	amount, err := ledger.ParseAmount(input.Amount)
	if err != nil {
		return EscrowCreated{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if input.FinishAfter != nil && (*input.FinishAfter < 0 || *input.FinishAfter > MaxFinishAfter) {
		return EscrowCreated{}, fmt.Errorf("%w: finishAfter must be between 0 and %d seconds", ErrValidation, MaxFinishAfter)
	}

	owner := s.deriver.Derive(input.Seed)
	rec, err := s.lockValue(ctx, owner, destination, currency, amount, input.FinishAfter)
	if err != nil {
		return EscrowCreated{Owner: owner}, err
	}

	s.notify(ctx, notification.Message{
		Kind:        notification.KindEscrowCreated,
		Destination: destination,
		Body:        fmt.Sprintf("Escrow %d locked %s %s from %s", rec.Sequence, amount.String(), currency, owner),
	})

	return EscrowCreated{
		Sequence:    rec.Sequence,
		Owner:       owner,
		Destination: destination,
		Amount:      amount,
		Currency:    currency,
		FinishAfter: rec.FinishAfter,
		TxHash:      s.newTxHash(),
		Timestamp:   rec.CreatedAt,
	}, nil
}

func (s *Service) lockValue(ctx context.Context, owner, destination, currency string, amount decimal.Decimal, finishAfter *int64) (Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.allocateSequence()
	if err != nil {
		return Escrow{}, err
	}

	if _, err := s.store.Debit(ctx, owner, currency, amount); err != nil {
		return Escrow{}, err
	}

	rec := Escrow{
		Sequence:    seq,
		Owner:       owner,
		Destination: destination,
		Amount:      amount,
		Currency:    currency,
		FinishAfter: cloneInt64(finishAfter),
		CreatedAt:   s.now().UTC(),
	}
	s.escrows[seq] = rec
	s.metrics.SetOpenEscrows(len(s.escrows))
	return rec, nil
}

// allocateSequence draws until it finds a sequence absent from the table. Callers hold mu.
func (s *Service) allocateSequence() (int64, error) {
	for i := 0; i < maxSequenceDraws; i++ {
		seq := s.nextSequence()
		if _, taken := s.escrows[seq]; !taken {
			return seq, nil
		}
	}
	return 0, ErrSequenceExhausted
}

// FinishEscrow releases an escrow to its destination and removes it. A second
// finish of the same sequence fails with ErrEscrowNotFound.
func (s *Service) FinishEscrow(ctx context.Context, input FinishInput) (result EscrowFinished, err error) {
	defer s.observe("finish_escrow", time.Now(), &err)

	if input.Sequence == nil {
		return EscrowFinished{}, fmt.Errorf("%w: offerSequence is required", ErrValidation)
	}

	rec, err := s.release(ctx, *input.Sequence)
	if err != nil {
		return EscrowFinished{}, err
	}

	s.notify(ctx, notification.Message{
		Kind:        notification.KindEscrowFinished,
		Destination: rec.Destination,
		Body:        fmt.Sprintf("Escrow %d released %s %s", rec.Sequence, rec.Amount.String(), rec.Currency),
	})

	return EscrowFinished{
		Sequence:    rec.Sequence,
		Owner:       rec.Owner,
		Destination: rec.Destination,
		Amount:      rec.Amount,
		Currency:    rec.Currency,
		TxHash:      s.newTxHash(),
		Timestamp:   s.now().UTC(),
	}, nil
}

func (s *Service) release(ctx context.Context, seq int64) (Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.escrows[seq]
	if !ok {
		return Escrow{}, fmt.Errorf("%w: %d", ErrEscrowNotFound, seq)
	}

	if s.enforceFinishAfter && rec.FinishAfter != nil {
		if unlockAt := rec.UnlockAt(); s.now().Before(unlockAt) {
			return Escrow{}, fmt.Errorf("%w: escrow %d unlocks at %s", ErrEscrowLocked, seq, unlockAt.Format(time.RFC3339))
		}
	}

	if _, err := s.store.Credit(ctx, rec.Destination, rec.Currency, rec.Amount, rec.Owner); err != nil {
		return Escrow{}, fmt.Errorf("credit %s: %w", rec.Destination, err)
	}

	delete(s.escrows, seq)
	s.metrics.SetOpenEscrows(len(s.escrows))
	return rec, nil
}

// Balances returns the account's balances, applying the empty-account policy.
func (s *Service) Balances(ctx context.Context, address string) ([]ledger.Balance, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrValidation)
	}
	balances, err := s.store.Balances(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(balances) == 0 && s.emptyPolicy == PolicyNativeDefault {
		return []ledger.Balance{{
			Currency:     ledger.NativeCurrency,
			Value:        decimal.RequireFromString(NativeDefaultValue),
			Counterparty: ledger.NativeCounterparty,
		}}, nil
	}
	return balances, nil
}

// Escrow looks up a pending escrow by sequence.
func (s *Service) Escrow(_ context.Context, seq int64) (Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.escrows[seq]
	if !ok {
		return Escrow{}, fmt.Errorf("%w: %d", ErrEscrowNotFound, seq)
	}
	rec.FinishAfter = cloneInt64(rec.FinishAfter)
	return rec, nil
}

// Escrows lists pending escrows ordered by sequence, optionally filtered by owner.
func (s *Service) Escrows(_ context.Context, owner string) []Escrow {
	owner = strings.TrimSpace(owner)

	s.mu.Lock()
	out := make([]Escrow, 0, len(s.escrows))
	for _, rec := range s.escrows {
		if owner != "" && rec.Owner != owner {
			continue
		}
		rec.FinishAfter = cloneInt64(rec.FinishAfter)
		out = append(out, rec)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// Reset discards every balance and escrow.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Reset()
	s.escrows = make(map[int64]Escrow)
	s.metrics.SetOpenEscrows(0)
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, msg)
}

func (s *Service) observe(operation string, start time.Time, err *error) {
	outcome := metrics.OutcomeSuccess
	if *err != nil {
		outcome = metrics.OutcomeFailed
		if IsRejection(*err) {
			outcome = metrics.OutcomeRejected
		}
	}
	s.metrics.Observe(operation, outcome, time.Since(start))
}

// IsRejection reports whether err is an expected business outcome rather than a fault.
func IsRejection(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ledger.ErrInsufficientFunds) ||
		errors.Is(err, ErrEscrowNotFound) ||
		errors.Is(err, ErrEscrowLocked)
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
