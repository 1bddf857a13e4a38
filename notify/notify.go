// Package notify delivers post-commit payment notifications.
//
// Notifiers run after the payment transaction has committed; a notifier
// failing must never fail or roll back the payment itself.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/quickstep/payment-engine/billing"
)

// Notifier receives payment events after commit.
type Notifier interface {
	PaymentCreated(ctx context.Context, event billing.PaymentEvent)
}

// LogNotifier writes payment events to the structured log. It stands in for
// the mail/webhook integrations of the surrounding system.
type LogNotifier struct {
	Logger zerolog.Logger
}

// PaymentCreated logs the payment event.
func (n LogNotifier) PaymentCreated(ctx context.Context, event billing.PaymentEvent) {
	n.Logger.Info().
		Ints64("registration_ids", event.RegistrationIDs).
		Str("total_amount", event.TotalAmount.String()).
		Str("discount_amount", event.DiscountAmount.String()).
		Str("group_name", event.PaymentGroupName).
		Msg("payment created")
}

// Multi fans one event out to several notifiers.
type Multi []Notifier

// PaymentCreated delivers the event to every notifier in order.
func (m Multi) PaymentCreated(ctx context.Context, event billing.PaymentEvent) {
	for _, n := range m {
		n.PaymentCreated(ctx, event)
	}
}
