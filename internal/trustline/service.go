package trustline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/token-lend/token_lend/internal/account"
	"github.com/token-lend/token_lend/internal/ledger"
)

// ErrValidation wraps missing or malformed trustline fields.
var ErrValidation = errors.New("validation error")

// Service manages trustlines for seed-derived accounts.
type Service struct {
	repo    Repository
	deriver account.Deriver
	now     func() time.Time
}

// NewService builds a trustline service.
func NewService(repo Repository, deriver account.Deriver) *Service {
	if deriver == nil {
		deriver = account.SumDeriver{}
	}
	return &Service{repo: repo, deriver: deriver, now: time.Now}
}

// SetInput captures a trustline request.
type SetInput struct {
	Seed     string
	Issuer   string
	Currency string
	Limit    string
}

// Set creates or updates the trustline from the seed's account to issuer for currency.
func (s *Service) Set(ctx context.Context, input SetInput) (Trustline, error) {
	issuer := strings.TrimSpace(input.Issuer)
	currency := strings.TrimSpace(input.Currency)
	if strings.TrimSpace(input.Seed) == "" || issuer == "" || currency == "" {
		return Trustline{}, fmt.Errorf("%w: seed, issuer, and currency are required", ErrValidation)
	}

	limit := decimal.Zero
	if raw := strings.TrimSpace(input.Limit); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || parsed.IsNegative() {
			return Trustline{}, fmt.Errorf("%w: limit must be a non-negative decimal", ErrValidation)
		}
		if err := ledger.CheckPrecision(parsed); err != nil {
			return Trustline{}, fmt.Errorf("%w: limit: %w", ErrValidation, err)
		}
		limit = parsed
	}

	now := s.now().UTC()
	return s.repo.Upsert(ctx, Trustline{
		Account:   s.deriver.Derive(input.Seed),
		Issuer:    issuer,
		Currency:  currency,
		Limit:     limit,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// List returns the trustlines held by an account.
func (s *Service) List(ctx context.Context, accountID string) ([]Trustline, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("%w: account is required", ErrValidation)
	}
	return s.repo.ListByAccount(ctx, accountID)
}
