package notification

import (
	"context"
	"log/slog"

	"github.com/token-lend/token_lend/internal/logging"
)

const (
	// KindTokenIssued indicates tokens were minted into an account.
	KindTokenIssued = "token_issued"
	// KindEscrowCreated indicates value was locked in a new escrow.
	KindEscrowCreated = "escrow_created"
	// KindEscrowFinished indicates an escrow released its value.
	KindEscrowFinished = "escrow_finished"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("body", message.Body),
	}
	if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
		attrs = append(attrs, slog.String("request_id", reqID))
	}
	n.logger.InfoContext(ctx, "notification", attrs...)
	return nil
}
