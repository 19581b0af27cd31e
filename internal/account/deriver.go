package account

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	// StrategySum names the demo derivation: prefix, character-code sum, seed suffix.
	StrategySum = "sum"
	// StrategyBlake2b names the hashed derivation.
	StrategyBlake2b = "blake2b"
)

// Deriver turns a seed into a ledger account identifier.
type Deriver interface {
	Name() string
	Derive(seed string) string
}

// NewDeriver returns the strategy registered under name. An empty name selects StrategySum.
func NewDeriver(name string) (Deriver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategySum:
		return SumDeriver{}, nil
	case StrategyBlake2b:
		return Blake2bDeriver{}, nil
	default:
		return nil, fmt.Errorf("unknown account derivation %q", name)
	}
}

// SumDeriver reproduces the demo derivation "r<sum>xrpl<last4>", where sum adds
// the UTF-16 code units of the seed. Distinct seeds with equal sums and equal
// suffixes collide.
type SumDeriver struct{}

// Name implements Deriver.
func (SumDeriver) Name() string { return StrategySum }

// Derive implements Deriver.
func (SumDeriver) Derive(seed string) string {
	units := utf16.Encode([]rune(seed))
	sum := 0
	for _, u := range units {
		sum += int(u)
	}
	return "r" + strconv.Itoa(sum) + "xrpl" + suffix(units, 4)
}

// Blake2bDeriver hashes the seed with BLAKE2b-160 and base58-encodes the digest.
type Blake2bDeriver struct{}

// Name implements Deriver.
func (Blake2bDeriver) Name() string { return StrategyBlake2b }

// Derive implements Deriver.
func (Blake2bDeriver) Derive(seed string) string {
	h, err := blake2b.New(20, nil)
	if err != nil {
		// only returned for sizes outside 1..64 or oversized keys
		panic(err)
	}
	h.Write([]byte(seed))
	return "r" + base58.Encode(h.Sum(nil))
}

// Suffix returns the last n characters of s, or s itself when it is shorter.
func Suffix(s string, n int) string {
	return suffix(utf16.Encode([]rune(s)), n)
}

func suffix(units []uint16, n int) string {
	if len(units) > n {
		units = units[len(units)-n:]
	}
	return string(utf16.Decode(units))
}
