package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ssanntii/Stock-Final-UTN/internal/domain"
	"github.com/Ssanntii/Stock-Final-UTN/internal/identity"
	"github.com/Ssanntii/Stock-Final-UTN/internal/repository"
	"github.com/Ssanntii/Stock-Final-UTN/pkg/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// PurchaseNotifier receives the receipt after a checkout commits. It must
// never block the caller or report failures back into the checkout path.
type PurchaseNotifier interface {
	DispatchPurchase(ctx context.Context, principal *identity.Principal, receipt *domain.OrderReceipt)
}

// CacheInvalidator drops cached product entries whose stock a committed
// checkout just changed. A nil invalidator is allowed.
type CacheInvalidator interface {
	InvalidateProducts(ctx context.Context, ids []int64)
}

type CheckoutService interface {
	Checkout(ctx context.Context, principal *identity.Principal, cart *domain.Cart) (*domain.OrderReceipt, error)
}

type checkoutService struct {
	pool        *pgxpool.Pool
	logger      *zap.Logger
	productRepo repository.ProductRepository
	notifier    PurchaseNotifier
	cache       CacheInvalidator
	tracer      trace.Tracer
}

func NewCheckoutService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	productRepo repository.ProductRepository,
	notifier PurchaseNotifier,
	cache CacheInvalidator,
) CheckoutService {
	return &checkoutService{
		pool:        pool,
		logger:      logger,
		productRepo: productRepo,
		notifier:    notifier,
		cache:       cache,
		tracer:      otel.Tracer("checkout_service"),
	}
}

// Checkout atomically reserves stock for every cart line or fails the whole
// cart. Product rows are read under FOR UPDATE, so two concurrent checkouts
// over the same products serialize at the lock and the loser always sees the
// winner's decremented stock.
func (s *checkoutService) Checkout(ctx context.Context, principal *identity.Principal, cart *domain.Cart) (*domain.OrderReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.Checkout")
	defer span.End()

	lines, err := mergeCartLines(cart)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("user_id", principal.ID),
		attribute.Int("line_count", len(lines)),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		logging.Error(
			ctx,
			s.logger,
			"Failed to begin transaction",
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logging.Warn(
				cleanupCtx,
				s.logger,
				"Error rolling back transaction",
				zap.Error(err),
			)
		}
	}()

	ids := make([]int64, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}

	products, err := s.productRepo.LockForCheckout(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	if len(products) != len(lines) {
		var missing []int64
		for _, id := range ids {
			if _, ok := byID[id]; !ok {
				missing = append(missing, id)
			}
		}

		logging.Warn(
			ctx,
			s.logger,
			"Checkout references unknown products",
			zap.Int64s("missing_ids", missing),
		)

		return nil, &ProductNotFoundError{MissingIDs: missing}
	}

	// Collect every shortage before deciding, so the response names all
	// conflicting lines instead of the first one.
	var conflicts []domain.StockConflict
	for _, line := range lines {
		product := byID[line.ProductID]
		if product.Stock < line.Quantity {
			conflicts = append(conflicts, domain.StockConflict{
				Name:      product.Name,
				Available: product.Stock,
				Requested: line.Quantity,
			})
		}
	}

	if len(conflicts) > 0 {
		logging.Warn(
			ctx,
			s.logger,
			"Insufficient stock for checkout",
			zap.Int64("user_id", principal.ID),
			zap.Int("conflict_count", len(conflicts)),
		)

		return nil, &InsufficientStockError{Conflicts: conflicts}
	}

	items := make([]domain.OrderLineItem, 0, len(lines))
	total := decimal.Zero

	for _, line := range lines {
		product := byID[line.ProductID]

		if err := s.productRepo.DecrementStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
			logging.Error(
				ctx,
				s.logger,
				"Failed to decrement stock",
				zap.Int64("product_id", line.ProductID),
				zap.Error(err),
			)

			return nil, fmt.Errorf("failed to decrement stock for product %d: %w", line.ProductID, err)
		}

		subtotal := product.Price.Mul(decimal.NewFromInt(line.Quantity))
		items = append(items, domain.OrderLineItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  line.Quantity,
			Subtotal:  subtotal,
		})
		total = total.Add(subtotal)
	}

	now := time.Now()
	receipt := &domain.OrderReceipt{
		OrderNumber: domain.NewOrderNumber(now, principal.ID),
		Items:       items,
		Total:       total,
		Date:        domain.FormatOrderDate(now),
	}

	if err := tx.Commit(ctx); err != nil {
		logging.Error(
			ctx,
			s.logger,
			"Failed to commit checkout transaction",
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.Info(
		ctx,
		s.logger,
		"Checkout committed",
		zap.String("order_number", receipt.OrderNumber),
		zap.Int64("user_id", principal.ID),
		zap.String("total", receipt.Total.String()),
	)

	if s.cache != nil {
		s.cache.InvalidateProducts(context.WithoutCancel(ctx), ids)
	}

	// Post-commit side effect. The dispatcher detaches from the request and
	// only logs failures; a lost email never fails a committed checkout.
	s.notifier.DispatchPurchase(context.WithoutCancel(ctx), principal, receipt)

	return receipt, nil
}

// mergeCartLines validates the cart and sums duplicate product ids into a
// single line each, keeping first-appearance order. The per-id sum is what
// gets checked against the locked stock, so a cart cannot sneak past the
// check by splitting one product across several lines.
func mergeCartLines(cart *domain.Cart) ([]domain.CartItem, error) {
	if cart == nil || len(cart.Items) == 0 {
		return nil, ErrInvalidCart
	}

	index := make(map[int64]int, len(cart.Items))
	merged := make([]domain.CartItem, 0, len(cart.Items))

	for _, item := range cart.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return nil, ErrInvalidCart
		}

		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}

		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}

	return merged, nil
}
