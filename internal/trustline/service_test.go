package trustline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/token-lend/token_lend/internal/account"
)

func TestServiceSetAndList(t *testing.T) {
	svc := NewService(NewMemoryRepository(), account.SumDeriver{})
	ctx := context.Background()

	line, err := svc.Set(ctx, SetInput{Seed: "sHolderSeed", Issuer: "rIssuer", Currency: "RLUSD", Limit: "1000"})
	if err != nil {
		t.Fatalf("set trustline: %v", err)
	}
	holder := (account.SumDeriver{}).Derive("sHolderSeed")
	if line.Account != holder {
		t.Fatalf("expected derived account %s, got %s", holder, line.Account)
	}

	if _, err := svc.Set(ctx, SetInput{Seed: "sHolderSeed", Issuer: "rIssuer", Currency: "EUR"}); err != nil {
		t.Fatalf("set second trustline: %v", err)
	}

	lines, err := svc.List(ctx, holder)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lines) != 2 || lines[0].Currency != "EUR" || lines[1].Currency != "RLUSD" {
		t.Fatalf("unexpected trustlines: %+v", lines)
	}
	if !lines[0].Limit.IsZero() || lines[1].Limit.String() != "1000" {
		t.Fatalf("unexpected limits: %s, %s", lines[0].Limit, lines[1].Limit)
	}
}

func TestServiceSetUpdatesLimitKeepsCreatedAt(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	first, _ := svc.Set(ctx, SetInput{Seed: "s", Issuer: "rIssuer", Currency: "RLUSD", Limit: "10"})

	svc.now = func() time.Time { return start.Add(time.Hour) }
	second, err := svc.Set(ctx, SetInput{Seed: "s", Issuer: "rIssuer", Currency: "RLUSD", Limit: "20"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) || second.Limit.String() != "20" {
		t.Fatalf("unexpected updated trustline: %+v", second)
	}
	lines, _ := svc.List(ctx, first.Account)
	if len(lines) != 1 {
		t.Fatalf("expected one trustline after update, got %d", len(lines))
	}
}

func TestServiceSetValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	ctx := context.Background()

	for _, in := range []SetInput{
		{Issuer: "rIssuer", Currency: "RLUSD"},
		{Seed: "s", Currency: "RLUSD"},
		{Seed: "s", Issuer: "rIssuer"},
		{Seed: "s", Issuer: "rIssuer", Currency: "RLUSD", Limit: "-1"},
		{Seed: "s", Issuer: "rIssuer", Currency: "RLUSD", Limit: "lots"},
		{Seed: "s", Issuer: "rIssuer", Currency: "RLUSD", Limit: "1e2000000000"},
		{Seed: "s", Issuer: "rIssuer", Currency: "RLUSD", Limit: "1e-2000000000"},
	} {
		if _, err := svc.Set(ctx, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", in, err)
		}
	}
	if _, err := svc.List(ctx, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for blank account, got %v", err)
	}
}
