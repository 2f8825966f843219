package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Ssanntii/Stock-Final-UTN/internal/domain"
	"github.com/Ssanntii/Stock-Final-UTN/internal/identity"
	"github.com/Ssanntii/Stock-Final-UTN/internal/notification"
	"github.com/Ssanntii/Stock-Final-UTN/internal/repository"
	"github.com/Ssanntii/Stock-Final-UTN/internal/service"
	"github.com/Ssanntii/Stock-Final-UTN/pkg/testsuite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type capturingNotifier struct {
	mu       sync.Mutex
	receipts []*domain.OrderReceipt
}

func (n *capturingNotifier) DispatchPurchase(ctx context.Context, principal *identity.Principal, receipt *domain.OrderReceipt) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, receipt)
}

func (n *capturingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.receipts)
}

type failingSender struct{}

func (failingSender) SendPurchaseConfirmation(ctx context.Context, to, fullName string, receipt *domain.OrderReceipt) error {
	return errors.New("smtp always down")
}

type CheckoutSuite struct {
	testsuite.BaseSuite

	productRepo repository.ProductRepository
	notifier    *capturingNotifier
	checkout    service.CheckoutService
	principal   *identity.Principal
}

func (s *CheckoutSuite) SetupSuite() {
	s.BaseSuite.SetupInfrastructure("../../migrations", false)
}

func (s *CheckoutSuite) TearDownSuite() {
	s.BaseSuite.TearDownInfrastructure()
}

func (s *CheckoutSuite) SetupTest() {
	s.BaseSuite.TruncateTable("products")

	logger := zap.NewNop()
	s.productRepo = repository.NewProductRepository(s.DbPool, logger)
	s.notifier = &capturingNotifier{}
	s.checkout = service.NewCheckoutService(s.DbPool, logger, s.productRepo, s.notifier, nil)
	s.principal = &identity.Principal{ID: 42, Email: "buyer@example.com", FullName: "Buyer Person"}
}

func (s *CheckoutSuite) seedProduct(name, price string, stock int64) int64 {
	var id int64
	err := s.DbPool.QueryRow(
		s.Ctx,
		`INSERT INTO products (name, price, stock) VALUES ($1, $2, $3) RETURNING id`,
		name, price, stock,
	).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *CheckoutSuite) stockOf(id int64) int64 {
	var stock int64
	err := s.DbPool.QueryRow(s.Ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock)
	s.Require().NoError(err)
	return stock
}

func (s *CheckoutSuite) TestCheckout_Success() {
	id := s.seedProduct("Keyboard", "10.00", 5)

	receipt, err := s.checkout.Checkout(s.Ctx, s.principal, &domain.Cart{
		Items: []domain.CartItem{{ProductID: id, Quantity: 3}},
	})
	s.Require().NoError(err)
	s.Require().NotNil(receipt)

	s.Require().Len(receipt.Items, 1)
	s.Assert().Equal("Keyboard", receipt.Items[0].Name)
	s.Assert().Equal(int64(3), receipt.Items[0].Quantity)
	s.Assert().True(decimal.RequireFromString("30.00").Equal(receipt.Total),
		"expected total 30.00, got %s", receipt.Total)
	s.Assert().Contains(receipt.OrderNumber, "-42")

	s.Assert().Equal(int64(2), s.stockOf(id))

	s.Require().Eventually(func() bool {
		return s.notifier.count() == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func (s *CheckoutSuite) TestCheckout_ExactDecimalTotal() {
	id := s.seedProduct("Keyboard", "19.99", 10)

	receipt, err := s.checkout.Checkout(s.Ctx, s.principal, &domain.Cart{
		Items: []domain.CartItem{{ProductID: id, Quantity: 3}},
	})
	s.Require().NoError(err)

	s.Assert().True(decimal.RequireFromString("59.97").Equal(receipt.Total),
		"expected total 59.97, got %s", receipt.Total)
	s.Assert().True(decimal.RequireFromString("59.97").Equal(receipt.Items[0].Subtotal))
}

func (s *CheckoutSuite) TestCheckout_InsufficientStock() {
	idA := s.seedProduct("Product A", "10.00", 5)
	idB := s.seedProduct("Product B", "4.50", 0)

	_, err := s.checkout.Checkout(s.Ctx, s.principal, &domain.Cart{
		Items: []domain.CartItem{
			{ProductID: idA, Quantity: 3},
			{ProductID: idB, Quantity: 1},
		},
	})

	var insufficient *service.InsufficientStockError
	s.Require().ErrorAs(err, &insufficient)
	s.Require().Len(insufficient.Conflicts, 1)
	s.Assert().Equal(domain.StockConflict{Name: "Product B", Available: 0, Requested: 1}, insufficient.Conflicts[0])

	// Atomicity: the sufficient line must not have been decremented either.
	s.Assert().Equal(int64(5), s.stockOf(idA))
	s.Assert().Equal(int64(0), s.stockOf(idB))
	s.Assert().Equal(0, s.notifier.count())
}

func (s *CheckoutSuite) TestCheckout_ReportsEveryConflict() {
	idA := s.seedProduct("Product A", "10.00", 1)
	idB := s.seedProduct("Product B", "4.50", 2)

	_, err := s.checkout.Checkout(s.Ctx, s.principal, &domain.Cart{
		Items: []domain.CartItem{
			{ProductID: idA, Quantity: 2},
			{ProductID: idB, Quantity: 5},
		},
	})

	var insufficient *service.InsufficientStockError
	s.Require().ErrorAs(err, &insufficient)
	s.Assert().Len(insufficient.Conflicts, 2)
}

func (s *CheckoutSuite) TestCheckout_ProductNotFoundPrecedence() {
	id := s.seedProduct("Keyboard", "10.00", 5)

	_, err := s.checkout.Checkout(s.Ctx, s.principal, &domain.Cart{
		Items: []domain.CartItem{
			{ProductID: id, Quantity: 1},
			{ProductID: id + 999, Quantity: 1},
		},
	})

	var notFound *service.ProductNotFoundError
	s.Require().ErrorAs(err, &notFound)
	s.Assert().Equal([]int64{id + 999}, notFound.MissingIDs)

	s.Assert().Equal(int64(5), s.stockOf(id))
}

func (s *CheckoutSuite) TestCheckout_DuplicateLinesAreSummed() {
	id := s.seedProduct("Keyboard", "10.00", 5)

	// 3 + 3 across two lines exceeds the 5 in stock, so the cart must fail
	// even though each line alone would fit.
	_, err := s.checkout.Checkout(s.Ctx, s.principal, &domain.Cart{
		Items: []domain.CartItem{
			{ProductID: id, Quantity: 3},
			{ProductID: id, Quantity: 3},
		},
	})

	var insufficient *service.InsufficientStockError
	s.Require().ErrorAs(err, &insufficient)
	s.Require().Len(insufficient.Conflicts, 1)
	s.Assert().Equal(int64(6), insufficient.Conflicts[0].Requested)

	s.Assert().Equal(int64(5), s.stockOf(id))
}

func (s *CheckoutSuite) TestCheckout_MultiItemConservation() {
	idA := s.seedProduct("Product A", "10.00", 5)
	idB := s.seedProduct("Product B", "4.50", 7)
	idC := s.seedProduct("Product C", "1.25", 9)

	receipt, err := s.checkout.Checkout(s.Ctx, s.principal, &domain.Cart{
		Items: []domain.CartItem{
			{ProductID: idA, Quantity: 2},
			{ProductID: idB, Quantity: 7},
		},
	})
	s.Require().NoError(err)

	s.Assert().True(decimal.RequireFromString("51.50").Equal(receipt.Total),
		"expected total 51.50, got %s", receipt.Total)

	s.Assert().Equal(int64(3), s.stockOf(idA))
	s.Assert().Equal(int64(0), s.stockOf(idB))
	// Untouched neighbor keeps its stock.
	s.Assert().Equal(int64(9), s.stockOf(idC))
}

func (s *CheckoutSuite) TestCheckout_ConcurrentOversellPrevented() {
	id := s.seedProduct("Last units", "10.00", 5)

	start := make(chan struct{})
	results := make(chan error, 2)

	for i := 0; i < 2; i++ {
		buyer := &identity.Principal{ID: int64(100 + i), Email: "b@example.com", FullName: "B"}
		go func(p *identity.Principal) {
			<-start
			_, err := s.checkout.Checkout(s.Ctx, p, &domain.Cart{
				Items: []domain.CartItem{{ProductID: id, Quantity: 3}},
			})
			results <- err
		}(buyer)
	}

	close(start)

	var successes, conflicts int
	for i := 0; i < 2; i++ {
		err := <-results
		if err == nil {
			successes++
			continue
		}

		var insufficient *service.InsufficientStockError
		s.Require().ErrorAs(err, &insufficient, "unexpected error kind: %v", err)
		conflicts++
	}

	// Exactly one buyer gets the stock, and only their quantity is deducted.
	s.Assert().Equal(1, successes)
	s.Assert().Equal(1, conflicts)
	s.Assert().Equal(int64(2), s.stockOf(id))
}

func (s *CheckoutSuite) TestCheckout_NotificationFailureDoesNotFailCheckout() {
	id := s.seedProduct("Keyboard", "10.00", 5)

	dispatcher := notification.NewDispatcher(failingSender{}, nil, "purchase_events", zap.NewNop())
	checkout := service.NewCheckoutService(s.DbPool, zap.NewNop(), s.productRepo, dispatcher, nil)

	receipt, err := checkout.Checkout(s.Ctx, s.principal, &domain.Cart{
		Items: []domain.CartItem{{ProductID: id, Quantity: 3}},
	})
	s.Require().NoError(err)
	s.Require().NotNil(receipt)
	s.Assert().Equal(int64(2), s.stockOf(id))

	closeCtx, cancel := context.WithTimeout(s.Ctx, 2*time.Second)
	defer cancel()
	s.Require().NoError(dispatcher.Close(closeCtx))
}

func TestCheckoutSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration suite requires docker")
	}

	suite.Run(t, new(CheckoutSuite))
}
