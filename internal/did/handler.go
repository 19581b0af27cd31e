package did

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/token-lend/token_lend/internal/apierror"
)

// Handler exposes DID endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a DID HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Seed string `json:"seed"`
}

// Register creates (or returns) the DID bound to a seed.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return apierror.Validation(err.Error())
	}
	doc, created, err := h.service.Register(c.UserContext(), req.Seed)
	if err != nil {
		switch {
		case errors.Is(err, ErrSeedRequired):
			return apierror.Validation("Seed is required")
		case errors.Is(err, ErrTaken):
			return apierror.New(http.StatusConflict, apierror.CodeDIDTaken, err.Error())
		default:
			return apierror.Internal(err)
		}
	}
	message := "DID created successfully"
	if !created {
		message = "DID already registered"
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"result": fiber.Map{
		"did":       doc.DID,
		"account":   doc.Account,
		"timestamp": doc.CreatedAt.Format(time.RFC3339Nano),
		"message":   message,
	}})
}

// Resolve returns a registered DID document.
func (h *Handler) Resolve(c *fiber.Ctx) error {
	doc, err := h.service.Resolve(c.UserContext(), c.Params("did"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return apierror.New(http.StatusNotFound, apierror.CodeNotFound, "DID not found")
		}
		return apierror.Internal(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"did":       doc.DID,
		"account":   doc.Account,
		"createdAt": doc.CreatedAt.Format(time.RFC3339Nano),
	})
}
