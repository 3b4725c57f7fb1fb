package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRefundPercent(t *testing.T) {
	tests := []struct {
		hours    float64
		expected int
	}{
		{72, 100},
		{24, 100},
		{23.99, 50},
		{10, 50},
		{0, 50},
		{-0.01, 0},
		{-5, 0},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, RefundPercent(tc.hours), "hours=%v", tc.hours)
	}
}

func TestCalculateRefund(t *testing.T) {
	total := decimal.RequireFromString("333333.33")

	amount, percent := CalculateRefund(total, 30)
	assert.Equal(t, 100, percent)
	assert.True(t, total.Equal(amount))

	amount, percent = CalculateRefund(total, 10)
	assert.Equal(t, 50, percent)
	assert.Equal(t, "166666.67", amount.StringFixed(2))

	amount, percent = CalculateRefund(total, -5)
	assert.Equal(t, 0, percent)
	assert.True(t, amount.IsZero())
}
