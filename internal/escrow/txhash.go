package escrow

import (
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const txHashDigits = 12

// NewTxHash returns an opaque demo transaction reference: "TX" followed by
// random upper-case base-36 digits. It is not a hash of any content.
func NewTxHash() string {
	id := uuid.New()
	digits := new(big.Int).SetBytes(id[:]).Text(36)
	if len(digits) < txHashDigits {
		digits = strings.Repeat("0", txHashDigits-len(digits)) + digits
	}
	return "TX" + strings.ToUpper(digits[:txHashDigits])
}
