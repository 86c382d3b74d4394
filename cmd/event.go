package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ortizpassos/trustpay/internal/core/events"
	"github.com/ortizpassos/trustpay/internal/transaction"
	"github.com/ortizpassos/trustpay/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish transaction lifecycle events through the in-process bus to check the registered handlers.`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a sample transaction lifecycle event",
	Long:  `Publish a sample event (e.g. transaction.approved) to the event bus and wait for its handlers.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := publishTestEvent(cmd.Context(), args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var (
	eventOrderID string
	eventAmount  string
)

func publishTestEvent(ctx context.Context, eventType string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	lg := logger.LoggerWrapper()

	status := ""
	for _, known := range events.TransactionEventTypes {
		if known == eventType {
			status = strings.ToUpper(strings.TrimPrefix(eventType, "transaction."))
		}
	}
	if status == "" {
		return fmt.Errorf("unknown event type %q; expected one of %s", eventType, strings.Join(events.TransactionEventTypes, ", "))
	}

	eventBus := events.NewEventBus(lg)
	transaction.NewEventHandler(lg).RegisterEventHandlers(eventBus)

	event := events.NewTransactionEvent(eventType, events.TransactionEventInput{
		TransactionID:  uuid.NewString(),
		OrderID:        eventOrderID,
		OwnerScope:     "cli",
		PaymentMethod:  string(transaction.MethodCreditCard),
		Amount:         eventAmount,
		Currency:       "BRL",
		PreviousStatus: string(transaction.StatusPending),
		Status:         status,
	})

	lg.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())
	if err := eventBus.PublishSync(ctx, event); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	lg.Info("test event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventOrderID, "order-id", "cli-order", "order id carried by the event")
	publishEventCmd.Flags().StringVar(&eventAmount, "amount", "10.00", "amount carried by the event")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
