package transaction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ortizpassos/trustpay/internal/core/events"
)

// EventHandler writes a receipt line for every lifecycle event so operators can audit outcomes.
type EventHandler struct {
	logger *slog.Logger
}

func NewEventHandler(logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{logger: logger}
}

func (h *EventHandler) HandleLifecycleEvent(ctx context.Context, event events.Event) error {
	txEvent, ok := event.(*events.TransactionEvent)
	if !ok {
		h.logger.Error("invalid event type for transaction audit handler", "event_type", event.EventType())
		return fmt.Errorf("expected TransactionEvent, got %T", event)
	}

	level := slog.LevelInfo
	if txEvent.Status == string(StatusFailed) {
		level = slog.LevelWarn
	}

	h.logger.Log(ctx, level, "transaction receipt",
		"event_id", txEvent.EventID(),
		"event_type", txEvent.EventType(),
		"transaction_id", txEvent.TransactionID,
		"order_id", txEvent.OrderID,
		"owner", txEvent.OwnerScope,
		"method", txEvent.PaymentMethod,
		"amount", txEvent.Amount,
		"currency", txEvent.Currency,
		"from", txEvent.PreviousStatus,
		"to", txEvent.Status,
		"reason", txEvent.Reason,
		"occurred_at", txEvent.OccurredAt())

	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	for _, eventType := range events.TransactionEventTypes {
		eventBus.Subscribe(eventType, h.HandleLifecycleEvent)
	}

	h.logger.Info("transaction event handlers registered", "handlers", events.TransactionEventTypes)
}
