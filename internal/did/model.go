package did

import "time"

// Document binds a decentralized identifier to the account derived from its seed.
type Document struct {
	DID       string
	Account   string
	SeedHash  []byte
	CreatedAt time.Time
}
