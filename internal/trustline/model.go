package trustline

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trustline records that Account is willing to hold Currency issued by Issuer,
// optionally up to Limit. A zero Limit means unlimited.
type Trustline struct {
	Account   string
	Issuer    string
	Currency  string
	Limit     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

func key(accountID, issuer, currency string) string {
	return accountID + "|" + issuer + "|" + currency
}
