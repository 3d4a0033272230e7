package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/alephbunnies/bunny_token/internal/account"
)

const (
	// KindTransfer is emitted for every balance movement, mints included.
	KindTransfer = "transfer"
)

// Transfer describes a balance movement. From is nil for mints.
type Transfer struct {
	ID     string
	From   *account.ID
	To     *account.ID
	Amount uint256.Int
	At     time.Time
}

// NewTransfer stamps a transfer event with a fresh identifier.
func NewTransfer(from, to *account.ID, amount uint256.Int) Transfer {
	return Transfer{ID: uuid.NewString(), From: from, To: to, Amount: amount, At: time.Now().UTC()}
}

// Sink delivers transfer notifications to downstream systems.
type Sink interface {
	Emit(ctx context.Context, event Transfer) error
}

// LoggerSink writes events to the structured logger.
type LoggerSink struct {
	logger *slog.Logger
}

// NewLoggerSink constructs a logging sink.
func NewLoggerSink(logger *slog.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// Emit writes the event to the structured logger.
func (s *LoggerSink) Emit(_ context.Context, event Transfer) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Info("event",
		slog.String("kind", KindTransfer),
		slog.String("id", event.ID),
		slog.String("from", optional(event.From)),
		slog.String("to", optional(event.To)),
		slog.String("amount", event.Amount.Dec()),
	)
	return nil
}

// Multi fans an event out to several sinks and joins their errors.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, event Transfer) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func optional(id *account.ID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
