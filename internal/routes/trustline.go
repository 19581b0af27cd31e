package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/token-lend/token_lend/internal/trustline"
)

// RegisterTrustlineRoutes wires trustline endpoints.
func RegisterTrustlineRoutes(r fiber.Router, h *trustline.Handler) {
	r.Post("/trustline", h.Set)
	r.Get("/trustlines/:account", h.List)
}
