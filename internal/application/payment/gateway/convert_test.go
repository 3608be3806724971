package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteAsset(t *testing.T) {
	rates := []ExchangeRate{
		{Source: "USDT", Target: "EUR", Rate: 0.92, Valid: true},
		{Source: "BTC", Target: "USDT", Rate: 65000, Valid: true},
		{Source: "TON", Target: "EUR", Rate: 5.0, Valid: true},
		{Source: "LTC", Target: "EUR", Rate: 0, Valid: true},
		{Source: "ETH", Target: "EUR", Rate: 3000, Valid: false},
	}

	t.Run("direct rate", func(t *testing.T) {
		// 25 EUR at 5 EUR per TON.
		amount, err := QuoteAsset(2500, "TON", rates)
		require.NoError(t, err)
		assert.Equal(t, "5.00", amount)
	})

	t.Run("cross rate through USDT", func(t *testing.T) {
		// No direct BTC→EUR rate: 59.80 EUR / (65000 * 0.92).
		amount, err := QuoteAsset(5980, "BTC", rates)
		require.NoError(t, err)
		assert.Equal(t, "0.00100000", amount)
	})

	t.Run("BTC formatted to eight decimals", func(t *testing.T) {
		amount, err := QuoteAsset(5980, "BTC", rates)
		require.NoError(t, err)
		assert.Len(t, amount, len("0.")+8)
	})

	t.Run("zero rate is ignored", func(t *testing.T) {
		_, err := QuoteAsset(1000, "LTC", rates)
		assert.ErrorIs(t, err, ErrNoRate)
	})

	t.Run("invalid rate is ignored", func(t *testing.T) {
		_, err := QuoteAsset(1000, "ETH", rates)
		assert.ErrorIs(t, err, ErrNoRate)
	})

	t.Run("unknown asset", func(t *testing.T) {
		_, err := QuoteAsset(1000, "DOGE", rates)
		assert.ErrorIs(t, err, ErrNoRate)
	})

	t.Run("no rates at all", func(t *testing.T) {
		_, err := QuoteAsset(1000, "USDT", nil)
		assert.ErrorIs(t, err, ErrNoRate)
	})
}
