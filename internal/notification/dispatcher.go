package notification

import (
	"context"
	"sync"
	"time"

	"github.com/Ssanntii/Stock-Final-UTN/internal/domain"
	"github.com/Ssanntii/Stock-Final-UTN/internal/identity"
	"github.com/Ssanntii/Stock-Final-UTN/pkg/kafka"
	"github.com/Ssanntii/Stock-Final-UTN/pkg/logging"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Dispatcher fans a committed checkout out to the purchaser (email) and the
// purchase-events topic. Every delivery runs detached from the request that
// triggered it; failures are logged and dropped, never returned.
type Dispatcher struct {
	sender   Sender
	producer kafka.Producer
	topic    string
	logger   *zap.Logger
	cb       *gobreaker.CircuitBreaker
	tracer   trace.Tracer
	wg       sync.WaitGroup
}

func NewDispatcher(sender Sender, producer kafka.Producer, topic string, logger *zap.Logger) *Dispatcher {
	settings := gobreaker.Settings{
		Name:        "PurchaseEmail",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(
				"Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Dispatcher{
		sender:   sender,
		producer: producer,
		topic:    topic,
		logger:   logger,
		cb:       gobreaker.NewCircuitBreaker(settings),
		tracer:   otel.Tracer("notification/dispatcher"),
	}
}

// DispatchPurchase schedules delivery and returns immediately.
func (d *Dispatcher) DispatchPurchase(ctx context.Context, principal *identity.Principal, receipt *domain.OrderReceipt) {
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()
		d.deliver(ctx, principal, receipt)
	}()
}

// Close waits for in-flight deliveries, bounded by ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, principal *identity.Principal, receipt *domain.OrderReceipt) {
	ctx, span := d.tracer.Start(ctx, "Dispatcher.deliver")
	defer span.End()

	if _, err := d.cb.Execute(func() (interface{}, error) {
		return nil, d.sender.SendPurchaseConfirmation(ctx, principal.Email, principal.FullName, receipt)
	}); err != nil {
		span.RecordError(err)

		logging.Error(
			ctx,
			d.logger,
			"Failed to send purchase confirmation",
			zap.String("order_number", receipt.OrderNumber),
			zap.String("to", principal.Email),
			zap.Error(err),
		)
	}

	if d.producer == nil {
		return
	}

	items := make([]domain.PurchasedItem, len(receipt.Items))
	for i, item := range receipt.Items {
		items[i] = domain.PurchasedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	event := map[string]any{
		"event": "PurchaseCompleted",
		"payload": domain.PurchaseCompletedEvent{
			OrderNumber: receipt.OrderNumber,
			UserID:      principal.ID,
			Email:       principal.Email,
			Items:       items,
			Total:       receipt.Total,
			Date:        receipt.Date,
		},
	}

	if err := d.producer.ProduceMessage(ctx, d.topic, event); err != nil {
		span.RecordError(err)

		logging.Error(
			ctx,
			d.logger,
			"Failed to publish purchase event",
			zap.String("order_number", receipt.OrderNumber),
			zap.Error(err),
		)
	}
}
