package trustline

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/token-lend/token_lend/internal/apierror"
)

// Handler exposes trustline HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a trustline HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type setRequest struct {
	Seed     string      `json:"seed"`
	Issuer   string      `json:"issuer"`
	Currency string      `json:"currency"`
	Limit    json.Number `json:"limit"`
}

type trustlineResponse struct {
	Account   string `json:"account"`
	Issuer    string `json:"issuer"`
	Currency  string `json:"currency"`
	Limit     string `json:"limit"`
	CreatedAt string `json:"createdAt"`
}

// Set records a trustline for the seed's account.
func (h *Handler) Set(c *fiber.Ctx) error {
	var req setRequest
	if err := c.BodyParser(&req); err != nil {
		return apierror.Validation(err.Error())
	}
	line, err := h.service.Set(c.UserContext(), SetInput{Seed: req.Seed, Issuer: req.Issuer, Currency: req.Currency, Limit: req.Limit.String()})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return apierror.Validation(err.Error())
		}
		return apierror.Internal(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"result": fiber.Map{
		"status":    "success",
		"account":   line.Account,
		"currency":  line.Currency,
		"issuer":    line.Issuer,
		"limit":     line.Limit.String(),
		"timestamp": line.UpdatedAt.Format(time.RFC3339Nano),
		"message":   "Trustline set successfully",
	}})
}

// List returns an account's trustlines.
func (h *Handler) List(c *fiber.Ctx) error {
	lines, err := h.service.List(c.UserContext(), c.Params("account"))
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return apierror.Validation(err.Error())
		}
		return apierror.Internal(err)
	}
	out := make([]trustlineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, trustlineResponse{
			Account:   l.Account,
			Issuer:    l.Issuer,
			Currency:  l.Currency,
			Limit:     l.Limit.String(),
			CreatedAt: l.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	return c.Status(http.StatusOK).JSON(out)
}
