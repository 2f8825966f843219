package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Ssanntii/Stock-Final-UTN/internal/domain"
	"github.com/Ssanntii/Stock-Final-UTN/internal/identity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSender) SendPurchaseConfirmation(ctx context.Context, to, fullName string, receipt *domain.OrderReceipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeProducer struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (f *fakeProducer) ProduceMessage(ctx context.Context, topic string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return f.err
}

func (f *fakeProducer) Close() error { return nil }

func (f *fakeProducer) produced() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.topics...)
}

func testReceipt() *domain.OrderReceipt {
	return &domain.OrderReceipt{
		OrderNumber: "ORD-1-1",
		Items: []domain.OrderLineItem{
			{ProductID: 1, Name: "Keyboard", UnitPrice: decimal.RequireFromString("19.99"), Quantity: 3, Subtotal: decimal.RequireFromString("59.97")},
		},
		Total: decimal.RequireFromString("59.97"),
		Date:  "01/01/2025 12:00",
	}
}

func testPrincipal() *identity.Principal {
	return &identity.Principal{ID: 1, Email: "buyer@example.com", FullName: "Buyer"}
}

func TestDispatcher_DeliversEmailAndEvent(t *testing.T) {
	sender := &fakeSender{}
	producer := &fakeProducer{}
	d := NewDispatcher(sender, producer, "purchase_events", zap.NewNop())

	d.DispatchPurchase(context.Background(), testPrincipal(), testReceipt())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	assert.Equal(t, 1, sender.callCount())
	assert.Equal(t, []string{"purchase_events"}, producer.produced())
}

func TestDispatcher_SenderFailureIsSwallowed(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	producer := &fakeProducer{}
	d := NewDispatcher(sender, producer, "purchase_events", zap.NewNop())

	d.DispatchPurchase(context.Background(), testPrincipal(), testReceipt())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	// The event still goes out even when the email fails.
	assert.Equal(t, 1, sender.callCount())
	assert.Equal(t, []string{"purchase_events"}, producer.produced())
}

func TestDispatcher_ProducerFailureIsSwallowed(t *testing.T) {
	sender := &fakeSender{}
	producer := &fakeProducer{err: errors.New("broker down")}
	d := NewDispatcher(sender, producer, "purchase_events", zap.NewNop())

	d.DispatchPurchase(context.Background(), testPrincipal(), testReceipt())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	assert.Equal(t, 1, sender.callCount())
}

func TestDispatcher_NilProducerOnlySendsEmail(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, nil, "purchase_events", zap.NewNop())

	d.DispatchPurchase(context.Background(), testPrincipal(), testReceipt())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	assert.Equal(t, 1, sender.callCount())
}

func TestRenderPurchaseBody(t *testing.T) {
	body := renderPurchaseBody("Buyer", testReceipt())

	assert.Contains(t, body, "ORD-1-1")
	assert.Contains(t, body, "Keyboard")
	assert.Contains(t, body, "$19.99")
	assert.Contains(t, body, "Total: $59.97")
}
