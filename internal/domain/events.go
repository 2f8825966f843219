package domain

import "github.com/shopspring/decimal"

// PurchaseCompletedEvent is published to Kafka after a checkout commits.
// Delivery is best effort: the checkout result never depends on it.
type PurchaseCompletedEvent struct {
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	Email       string          `json:"email"`
	Items       []PurchasedItem `json:"items"`
	Total       decimal.Decimal `json:"total"`
	Date        string          `json:"date"`
}

type PurchasedItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}
