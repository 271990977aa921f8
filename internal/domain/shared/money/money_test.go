package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormalizesCurrency(t *testing.T) {
	m, err := New(1500, "rub")
	require.NoError(t, err)
	assert.Equal(t, "RUB", m.Currency)

	_, err = New(10, "RUBL")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestArithmeticRequiresSameCurrency(t *testing.T) {
	_, err := Must(100, "RUB").Add(Must(100, "USD"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	diff, err := Must(1000, "RUB").Sub(Must(250, "RUB"))
	require.NoError(t, err)
	assert.Equal(t, int64(750), diff.Amount)
}

func TestPercentAndDecimal(t *testing.T) {
	total := Must(123456, "RUB")
	assert.Equal(t, int64(61728), total.Percent(50).Amount)
	assert.Equal(t, int64(0), total.Percent(-5).Amount)
	assert.Equal(t, total.Amount, total.Percent(150).Amount)
	assert.Equal(t, "1234.56", total.Decimal())
	assert.Equal(t, "-0.05", Money{Amount: -5, Currency: "RUB"}.Decimal())
}
