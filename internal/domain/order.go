package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is one requested line: a product id and how many units to buy.
type CartItem struct {
	ProductID int64 `json:"id"`
	Quantity  int64 `json:"quantity"`
}

type Cart struct {
	Items []CartItem `json:"items"`
}

// OrderLineItem is a priced cart line. It exists only in the checkout
// response and the confirmation email; orders are not persisted.
type OrderLineItem struct {
	ProductID int64           `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderReceipt struct {
	OrderNumber string          `json:"orderNumber"`
	Items       []OrderLineItem `json:"items"`
	Total       decimal.Decimal `json:"total"`
	Date        string          `json:"date"`
}

// StockConflict describes one cart line that asked for more units than the
// locked row had available.
type StockConflict struct {
	Name      string `json:"name"`
	Available int64  `json:"available"`
	Requested int64  `json:"requested"`
}

// NewOrderNumber builds the display order number from the commit instant and
// the purchaser, e.g. ORD-1735689600000-42.
func NewOrderNumber(at time.Time, userID int64) string {
	return fmt.Sprintf("ORD-%d-%d", at.UnixMilli(), userID)
}

// FormatOrderDate renders the receipt timestamp day-first, the way the shop
// displays dates.
func FormatOrderDate(at time.Time) string {
	return at.Format("02/01/2006 15:04")
}
