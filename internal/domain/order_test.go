package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOrderNumber(t *testing.T) {
	at := time.UnixMilli(1735689600000)

	assert.Equal(t, "ORD-1735689600000-42", NewOrderNumber(at, 42))
}

func TestFormatOrderDate_DayFirst(t *testing.T) {
	at := time.Date(2025, time.March, 9, 18, 5, 0, 0, time.UTC)

	assert.Equal(t, "09/03/2025 18:05", FormatOrderDate(at))
}
