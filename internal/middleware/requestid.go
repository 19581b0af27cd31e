package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/token-lend/token_lend/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns each request an identifier, echoes it in X-Request-ID and
// carries it on the user context so service-level logs can be correlated.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Locals(requestIDHeader, reqID)
		c.SetUserContext(logging.ContextWithRequestID(c.UserContext(), reqID))

		return c.Next()
	}
}
