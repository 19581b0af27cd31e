package did

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/blake2b"

	"github.com/token-lend/token_lend/internal/account"
)

const (
	methodPrefix = "did:xrpl:"
	suffixLength = 6
)

var (
	// ErrSeedRequired is returned when no seed is supplied.
	ErrSeedRequired = errors.New("seed is required")
	// ErrTaken is returned when another seed already owns the DID.
	ErrTaken = errors.New("did already registered to a different seed")
)

// Service manages DID registration and resolution.
type Service struct {
	repo    Repository
	deriver account.Deriver
	now     func() time.Time
}

// NewService creates a DID service.
func NewService(repo Repository, deriver account.Deriver) *Service {
	if deriver == nil {
		deriver = account.SumDeriver{}
	}
	return &Service{repo: repo, deriver: deriver, now: time.Now}
}

// Identifier returns the DID for a seed: the method prefix plus the seed's last six characters.
func Identifier(seed string) string {
	return methodPrefix + account.Suffix(seed, suffixLength)
}

// Register creates the DID document for seed. Registering the same seed again
// returns the stored document with created=false.
func (s *Service) Register(ctx context.Context, seed string) (doc Document, created bool, err error) {
	if strings.TrimSpace(seed) == "" {
		return Document{}, false, ErrSeedRequired
	}

	id := Identifier(seed)
	if existing, err := s.repo.FindByDID(ctx, id); err == nil {
		return s.matchExisting(existing, seed)
	} else if !errors.Is(err, ErrNotFound) {
		return Document{}, false, err
	}

	hash, err := bcrypt.GenerateFromPassword(seedDigest(seed), bcrypt.DefaultCost)
	if err != nil {
		return Document{}, false, fmt.Errorf("hash seed: %w", err)
	}

	doc = Document{
		DID:       id,
		Account:   s.deriver.Derive(seed),
		SeedHash:  hash,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if !errors.Is(err, errExists) {
			return Document{}, false, err
		}
		// lost a race with a concurrent registration
		existing, findErr := s.repo.FindByDID(ctx, id)
		if findErr != nil {
			return Document{}, false, findErr
		}
		return s.matchExisting(existing, seed)
	}
	return doc, true, nil
}

func (s *Service) matchExisting(existing Document, seed string) (Document, bool, error) {
	if err := bcrypt.CompareHashAndPassword(existing.SeedHash, seedDigest(seed)); err != nil {
		return Document{}, false, ErrTaken
	}
	return existing, false, nil
}

// seedDigest condenses the seed to a fixed 32 bytes, keeping long seeds within
// bcrypt's 72-byte input limit without truncating them.
func seedDigest(seed string) []byte {
	sum := blake2b.Sum256([]byte(seed))
	return sum[:]
}

// Resolve returns the document registered under id.
func (s *Service) Resolve(ctx context.Context, id string) (Document, error) {
	return s.repo.FindByDID(ctx, strings.TrimSpace(id))
}
