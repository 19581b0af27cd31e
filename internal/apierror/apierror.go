package apierror

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/token-lend/token_lend/internal/logging"
)

// Code is the machine-readable error category returned to clients.
type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeEscrowNotFound    Code = "ESCROW_NOT_FOUND"
	CodeEscrowLocked      Code = "ESCROW_LOCKED"
	CodeDIDTaken          Code = "DID_TAKEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeInternal          Code = "INTERNAL_FAULT"
)

const internalMessage = "internal error"

// Error is an HTTP-facing error with a public message. Cause is logged, never returned.
type Error struct {
	Status  int
	Code    Code
	Message string
	Fields  fiber.Map
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error.
func New(status int, code Code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Validation reports a missing or malformed request field.
func Validation(message string) *Error {
	return New(http.StatusBadRequest, CodeValidation, message)
}

// Internal hides cause behind a generic message.
func Internal(cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: internalMessage, Cause: cause}
}

type response struct {
	Error string `json:"error"`
	Code  Code   `json:"code"`
}

// Handler renders every error returned by a route as {"error", "code", ...}.
// Unknown errors become INTERNAL_FAULT without leaking their text.
func Handler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var apiErr *Error
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &fiberErr) && fiberErr.Code < http.StatusInternalServerError:
			apiErr = New(fiberErr.Code, codeForStatus(fiberErr.Code), fiberErr.Message)
		default:
			apiErr = Internal(err)
		}

		if apiErr.Status >= http.StatusInternalServerError && logger != nil {
			attrs := []any{
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Any("error", err),
			}
			if reqID := logging.RequestIDFromContext(c.UserContext()); reqID != "" {
				attrs = append(attrs, slog.String("request_id", reqID))
			}
			logger.Error("request failed", attrs...)
		}

		if len(apiErr.Fields) == 0 {
			return c.Status(apiErr.Status).JSON(response{Error: apiErr.Message, Code: apiErr.Code})
		}
		body := fiber.Map{"error": apiErr.Message, "code": apiErr.Code}
		for k, v := range apiErr.Fields {
			body[k] = v
		}
		return c.Status(apiErr.Status).JSON(body)
	}
}

func codeForStatus(status int) Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusTooManyRequests:
		return CodeRateLimited
	}
	if status >= http.StatusInternalServerError {
		return CodeInternal
	}
	return Code(http.StatusText(status))
}
