package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/token-lend/token_lend/internal/did"
)

// RegisterDIDRoutes wires DID registration and resolution.
func RegisterDIDRoutes(r fiber.Router, h *did.Handler) {
	r.Post("/did", h.Register)
	r.Get("/did/:did", h.Resolve)
}
