package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundMoney_HalfEven(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.005", "1.00"},
		{"1.015", "1.02"},
		{"1.025", "1.02"},
		{"1.035", "1.04"},
		{"-1.005", "-1.00"},
		{"2.4999", "2.50"},
		{"2.50", "2.50"},
	}
	for _, tc := range cases {
		got := RoundMoney(MustMoney(tc.in))
		assert.True(t, got.Equal(MustMoney(tc.want)), "RoundMoney(%s) = %s, want %s", tc.in, got, tc.want)
	}
}

func TestWithinTolerance(t *testing.T) {
	assert.True(t, WithinTolerance(MustMoney("100.00"), MustMoney("100.00")))
	assert.True(t, WithinTolerance(MustMoney("100.00"), MustMoney("100.01")))
	assert.True(t, WithinTolerance(MustMoney("100.01"), MustMoney("100.00")))
	assert.False(t, WithinTolerance(MustMoney("100.00"), MustMoney("100.02")))
}

func TestQuantity_Construction(t *testing.T) {
	assert.Equal(t, Quantity(5000), NewQuantityFromInt64(5))
	assert.Equal(t, Quantity(5000), NewQuantityFromInt64Scaled(5000))
	assert.Equal(t, Quantity(2500), NewQuantityFromFloat64(2.5))
	assert.Equal(t, int64(2500), NewQuantityFromFloat64(2.5).Int64Scaled())
}

func TestQuantity_String(t *testing.T) {
	assert.Equal(t, "5.000", NewQuantityFromInt64(5).String())
	assert.Equal(t, "0.250", NewQuantityFromInt64Scaled(250).String())
	assert.Equal(t, "-3.125", NewQuantityFromInt64Scaled(-3125).String())
	assert.Equal(t, "0.000", Quantity(0).String())
}

func TestQuantity_Decimal(t *testing.T) {
	d := NewQuantityFromInt64Scaled(1500).Decimal()
	assert.Equal(t, "1.5", d.String())

	// 1.5 * 4.80 = 7.20
	cost := MustMoney("4.80").Mul(d)
	assert.True(t, cost.Equal(MustMoney("7.20")))
}

func TestQuantity_Signs(t *testing.T) {
	q := NewQuantityFromInt64(3)
	assert.True(t, q.IsPositive())
	assert.True(t, q.Neg().IsNegative())
	assert.Equal(t, q, q.Neg().Abs())
	assert.True(t, Quantity(0).IsZero())
}

func TestQuantity_JSON(t *testing.T) {
	var q Quantity

	require.NoError(t, json.Unmarshal([]byte(`12.5`), &q))
	assert.Equal(t, Quantity(12500), q)

	require.NoError(t, json.Unmarshal([]byte(`"7.125"`), &q))
	assert.Equal(t, Quantity(7125), q)

	// extra fractional digits truncate to scale 3
	require.NoError(t, json.Unmarshal([]byte(`1.23456`), &q))
	assert.Equal(t, Quantity(1234), q)

	require.NoError(t, json.Unmarshal([]byte(`-2`), &q))
	assert.Equal(t, Quantity(-2000), q)

	out, err := json.Marshal(NewQuantityFromInt64Scaled(1250))
	require.NoError(t, err)
	assert.Equal(t, "1.250", string(out))

	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &q))
}
