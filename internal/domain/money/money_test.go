package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestPercent(t *testing.T) {
	tests := []struct {
		amount, pct, want string
	}{
		{"300", "20", "60"},
		{"30", "15", "4.5"},
		{"10.01", "33.33", "3.336333"},
		{"0", "50", "0"},
		{"99.99", "0", "0"},
		{"45", "100", "45"},
	}
	for _, tt := range tests {
		got := Percent(d(tt.amount), d(tt.pct))
		assert.True(t, d(tt.want).Equal(got), "%s%% of %s: want %s, got %s", tt.pct, tt.amount, tt.want, got)
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"3.336333", "3.34"},
		{"4.4955", "4.5"},
		{"0.005", "0.01"},
		{"0.0049", "0"},
		{"12.345", "12.35"},
		{"7", "7"},
	}
	for _, tt := range tests {
		got := Round(d(tt.in))
		assert.True(t, d(tt.want).Equal(got), "round %s: want %s, got %s", tt.in, tt.want, got)
	}
}

func TestLine(t *testing.T) {
	assert.True(t, d("29.97").Equal(Line(3, d("9.99"))))
	assert.True(t, Zero.Equal(Line(0, d("9.99"))))
}

func TestFloorAtZero(t *testing.T) {
	assert.True(t, Zero.Equal(FloorAtZero(d("-0.01"))))
	assert.True(t, d("1.5").Equal(FloorAtZero(d("1.5"))))
}

func TestIsPercentage(t *testing.T) {
	assert.True(t, IsPercentage(d("0")))
	assert.True(t, IsPercentage(d("100")))
	assert.True(t, IsPercentage(d("12.5")))
	assert.False(t, IsPercentage(d("-1")))
	assert.False(t, IsPercentage(d("100.01")))
}
