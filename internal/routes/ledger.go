package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/token-lend/token_lend/internal/escrow"
)

// RegisterLedgerRoutes wires issuance, escrow and balance endpoints.
func RegisterLedgerRoutes(r fiber.Router, h *escrow.Handler) {
	r.Post("/issue", h.Issue)
	r.Post("/create-escrow", h.CreateEscrow)
	r.Post("/finish-escrow", h.FinishEscrow)
	r.Get("/balances/:address", h.Balances)
	r.Get("/escrows", h.Escrows)
	r.Get("/escrows/:sequence", h.Escrow)
}
