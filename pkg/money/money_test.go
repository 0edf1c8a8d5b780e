package money_test

import (
	"encoding/json"
	"testing"

	"github.com/buildrail/escrow/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ConvertsToSmallestUnit(t *testing.T) {
	m, err := money.New(100.50, money.USD)
	require.NoError(t, err)
	assert.Equal(t, int64(10050), m.Amount())
	assert.Equal(t, money.USD, m.Currency())
}

func TestNew_ZeroDecimalCurrency(t *testing.T) {
	m, err := money.New(500, money.JPY)
	require.NoError(t, err)
	assert.Equal(t, int64(500), m.Amount())
}

func TestNew_RejectsExcessPrecision(t *testing.T) {
	_, err := money.New(1.005, money.USD)
	require.Error(t, err)
}

func TestNew_RejectsInvalidCurrency(t *testing.T) {
	_, err := money.New(10, "us")
	require.ErrorIs(t, err, money.ErrInvalidCurrency)

	_, err = money.New(10, "usd1")
	require.ErrorIs(t, err, money.ErrInvalidCurrency)
}

func TestNew_DefaultsCurrency(t *testing.T) {
	m, err := money.New(1, "")
	require.NoError(t, err)
	assert.Equal(t, money.DefaultCode, m.Currency())
}

func TestNewFromSmallestUnit(t *testing.T) {
	m, err := money.NewFromSmallestUnit(12345, money.EUR)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), m.Amount())
	assert.InDelta(t, 123.45, m.AmountFloat(), 1e-9)
}

func TestAdd(t *testing.T) {
	a := money.Must(10, money.USD)
	b := money.Must(2.50, money.USD)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1250+1000), sum.Amount())
}

func TestAdd_MismatchedCurrencies(t *testing.T) {
	a := money.Must(10, money.USD)
	b := money.Must(10, money.EUR)

	_, err := a.Add(b)
	require.ErrorIs(t, err, money.ErrMismatchedCurrencies)
}

func TestAdd_Overflow(t *testing.T) {
	a, err := money.NewFromSmallestUnit(1<<62, money.USD)
	require.NoError(t, err)

	_, err = a.Add(a)
	require.ErrorIs(t, err, money.ErrAmountExceedsMaxSafeInt)
}

func TestSubtract_MayGoNegative(t *testing.T) {
	a := money.Must(1, money.USD)
	b := money.Must(2, money.USD)

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.True(t, diff.IsNegative())
	assert.Equal(t, int64(-100), diff.Amount())
}

func TestComparisons(t *testing.T) {
	a := money.Must(2, money.USD)
	b := money.Must(1, money.USD)

	gt, err := a.GreaterThan(b)
	require.NoError(t, err)
	assert.True(t, gt)

	gte, err := b.GreaterThanOrEqual(a)
	require.NoError(t, err)
	assert.False(t, gte)

	_, err = a.GreaterThan(money.Must(1, money.EUR))
	require.ErrorIs(t, err, money.ErrMismatchedCurrencies)
}

func TestEqualsAndZero(t *testing.T) {
	assert.True(t, money.Must(1, money.USD).Equals(money.Must(1, money.USD)))
	assert.False(t, money.Must(1, money.USD).Equals(money.Must(1, money.EUR)))
	assert.True(t, money.Zero(money.USD).IsZero())
	assert.False(t, money.Zero(money.USD).IsPositive())
}

func TestJSONRoundTrip(t *testing.T) {
	m := money.Must(19.99, money.USD)
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var got money.Money
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, m.Equals(got))
}

func TestUnmarshalJSON_RejectsBadCurrency(t *testing.T) {
	var got money.Money
	err := json.Unmarshal([]byte(`{"amount":1,"currency":"nope"}`), &got)
	require.ErrorIs(t, err, money.ErrInvalidCurrency)
}
