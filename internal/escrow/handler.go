package escrow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/token-lend/token_lend/internal/apierror"
	"github.com/token-lend/token_lend/internal/ledger"
)

// Handler exposes issuance, escrow and balance endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an escrow HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// numeric accepts a JSON string or number and keeps its literal text.
type numeric string

func (n *numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = numeric(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected a number or numeric string")
	}
	*n = numeric(num.String())
	return nil
}

func (n *numeric) int64Ptr(field string) (*int64, error) {
	if n == nil || strings.TrimSpace(string(*n)) == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(*n)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", field)
	}
	return &v, nil
}

type issueRequest struct {
	Seed        string  `json:"seed"`
	Destination string  `json:"destination"`
	Currency    string  `json:"currency"`
	Value       numeric `json:"value"`
}

type createEscrowRequest struct {
	Seed        string   `json:"seed"`
	Destination string   `json:"destination"`
	Amount      numeric  `json:"amount"`
	Currency    string   `json:"currency"`
	FinishAfter *numeric `json:"finishAfter"`
}

type finishEscrowRequest struct {
	Seed          string   `json:"seed"`
	Owner         string   `json:"owner"`
	OfferSequence *numeric `json:"offerSequence"`
}

type balanceResponse struct {
	Currency     string `json:"currency"`
	Value        string `json:"value"`
	Counterparty string `json:"counterparty"`
}

type escrowResponse struct {
	Sequence    int64  `json:"sequence"`
	Owner       string `json:"owner"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	FinishAfter *int64 `json:"finishAfter,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

// Issue mints tokens into a destination account.
func (h *Handler) Issue(c *fiber.Ctx) error {
	var req issueRequest
	if err := c.BodyParser(&req); err != nil {
		return apierror.Validation(err.Error())
	}
	res, err := h.service.Issue(c.UserContext(), IssueInput{
		Seed:        req.Seed,
		Destination: req.Destination,
		Currency:    req.Currency,
		Value:       string(req.Value),
	})
	if err != nil {
		return toAPIError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"result": fiber.Map{
		"status":      "success",
		"destination": res.Destination,
		"currency":    res.Currency,
		"value":       res.Value.String(),
		"balance":     res.Balance.String(),
		"txHash":      res.TxHash,
		"timestamp":   formatTime(res.Timestamp),
		"message":     "Token issued successfully",
	}})
}

// CreateEscrow locks funds of the seed's account for a destination.
func (h *Handler) CreateEscrow(c *fiber.Ctx) error {
	var req createEscrowRequest
	if err := c.BodyParser(&req); err != nil {
		return apierror.Validation(err.Error())
	}
	finishAfter, err := req.FinishAfter.int64Ptr("finishAfter")
	if err != nil {
		return apierror.Validation(err.Error())
	}
	res, err := h.service.CreateEscrow(c.UserContext(), CreateInput{
		Seed:        req.Seed,
		Destination: req.Destination,
		Amount:      string(req.Amount),
		Currency:    req.Currency,
		FinishAfter: finishAfter,
	})
	if err != nil {
		return toAPIError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"result": fiber.Map{
		"status":         "success",
		"escrowSequence": res.Sequence,
		"owner":          res.Owner,
		"issuer":         res.Owner,
		"destination":    res.Destination,
		"amount":         res.Amount.String(),
		"currency":       res.Currency,
		"finishAfter":    res.FinishAfter,
		"txHash":         res.TxHash,
		"timestamp":      formatTime(res.Timestamp),
		"message":        "Escrow contract initialized - funds locked",
	}})
}

// FinishEscrow releases an escrow to its destination.
func (h *Handler) FinishEscrow(c *fiber.Ctx) error {
	var req finishEscrowRequest
	if err := c.BodyParser(&req); err != nil {
		return apierror.Validation(err.Error())
	}
	seq, err := req.OfferSequence.int64Ptr("offerSequence")
	if err != nil {
		return apierror.Validation(err.Error())
	}
	res, err := h.service.FinishEscrow(c.UserContext(), FinishInput{
		Sequence: seq,
		Owner:    req.Owner,
		Seed:     req.Seed,
	})
	if err != nil {
		return toAPIError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"result": fiber.Map{
		"status":         "success",
		"escrowSequence": res.Sequence,
		"owner":          res.Owner,
		"destination":    res.Destination,
		"amount":         res.Amount.String(),
		"currency":       res.Currency,
		"txHash":         res.TxHash,
		"timestamp":      formatTime(res.Timestamp),
		"message":        "Escrow finished - funds released to destination",
	}})
}

// Balances lists the balances of an account.
func (h *Handler) Balances(c *fiber.Ctx) error {
	balances, err := h.service.Balances(c.UserContext(), c.Params("address"))
	if err != nil {
		return toAPIError(err)
	}
	out := make([]balanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, balanceResponse{Currency: b.Currency, Value: b.Value.String(), Counterparty: b.Counterparty})
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Escrows lists pending escrows, optionally filtered by ?owner=.
func (h *Handler) Escrows(c *fiber.Ctx) error {
	escrows := h.service.Escrows(c.UserContext(), c.Query("owner"))
	out := make([]escrowResponse, 0, len(escrows))
	for _, e := range escrows {
		out = append(out, toEscrowResponse(e))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Escrow returns one pending escrow.
func (h *Handler) Escrow(c *fiber.Ctx) error {
	seq, err := strconv.ParseInt(c.Params("sequence"), 10, 64)
	if err != nil {
		return apierror.Validation("sequence must be an integer")
	}
	e, err := h.service.Escrow(c.UserContext(), seq)
	if err != nil {
		return toAPIError(err)
	}
	return c.Status(http.StatusOK).JSON(toEscrowResponse(e))
}

func toEscrowResponse(e Escrow) escrowResponse {
	return escrowResponse{
		Sequence:    e.Sequence,
		Owner:       e.Owner,
		Destination: e.Destination,
		Amount:      e.Amount.String(),
		Currency:    e.Currency,
		FinishAfter: e.FinishAfter,
		CreatedAt:   formatTime(e.CreatedAt),
	}
}

func toAPIError(err error) error {
	var insufficient *ledger.InsufficientFundsError
	switch {
	case errors.Is(err, ErrValidation):
		return apierror.Validation(err.Error())
	case errors.As(err, &insufficient):
		apiErr := apierror.New(http.StatusBadRequest, apierror.CodeInsufficientFunds,
			fmt.Sprintf("Insufficient balance. Have %s %s, need %s", insufficient.Have.String(), insufficient.Currency, insufficient.Need.String()))
		apiErr.Fields = fiber.Map{"have": insufficient.Have.String(), "need": insufficient.Need.String(), "currency": insufficient.Currency}
		return apiErr
	case errors.Is(err, ErrEscrowNotFound):
		return apierror.New(http.StatusNotFound, apierror.CodeEscrowNotFound, err.Error())
	case errors.Is(err, ErrEscrowLocked):
		return apierror.New(http.StatusTooEarly, apierror.CodeEscrowLocked, err.Error())
	default:
		return apierror.Internal(err)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
