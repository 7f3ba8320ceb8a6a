package worker

import (
	"context"

	"storefront-service/internal/broker"
	"storefront-service/internal/mailer"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

type emailSender interface {
	Send(ctx context.Context, kind, to, subject, text string) error
}

// EmailWorker consumes order events and sends transactional emails. A
// failed send is logged and the message is still committed; customers
// tolerate a missing email better than a stalled partition.
type EmailWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	mail         emailSender
	logger       *zap.Logger
}

// NewEmailWorker creates a new email worker
func NewEmailWorker(consumer *broker.Consumer, mail emailSender) *EmailWorker {
	w := &EmailWorker{
		consumer: consumer,
		mail:     mail,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderShipped(w.handleOrderShipped)
	eventHandler.OnOrderRefunded(w.handleOrderRefunded)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *EmailWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting email worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *EmailWorker) Stop() error {
	w.logger.Info("Stopping email worker")
	return w.consumer.Close()
}

func (w *EmailWorker) handleOrderShipped(ctx context.Context, event *models.OrderShippedEvent) error {
	msg := mailer.ShippingNotification(event.FirstName, event.OrderNumber, event.Carrier, event.TrackingNumber)
	if err := w.mail.Send(ctx, "order_shipped", event.Email, msg.Subject, msg.Text); err != nil {
		w.logger.Error("Failed to send shipping notification",
			zap.Int64("order_id", event.OrderID),
			zap.String("email", event.Email),
			zap.Error(err))
	}
	return nil
}

func (w *EmailWorker) handleOrderRefunded(ctx context.Context, event *models.OrderRefundedEvent) error {
	msg := mailer.RefundNotification(event.FirstName, event.OrderNumber, event.AmountInCents, event.Reason)
	if err := w.mail.Send(ctx, "order_refunded", event.Email, msg.Subject, msg.Text); err != nil {
		w.logger.Error("Failed to send refund notification",
			zap.Int64("order_id", event.OrderID),
			zap.String("email", event.Email),
			zap.Error(err))
	}
	return nil
}
