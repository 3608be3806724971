package gateway

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	// SettlementCurrency is the fiat currency plans are priced in.
	SettlementCurrency = "EUR"

	// crossCurrency is the intermediate used when no direct rate exists.
	crossCurrency = "USDT"

	// referenceAsset gets 8 decimal places in quotes; everything else 2.
	referenceAsset = "BTC"
)

// ErrNoRate means neither a direct nor a cross rate was available for
// the requested asset. Invoice creation must abort on it.
var ErrNoRate = errors.New("no exchange rate available")

// QuoteAsset converts a settlement-currency price into an asset amount
// using the processor's rate table. It tries the direct asset→EUR rate
// first and falls back to a cross rate through USDT. The result is a
// decimal string formatted to the asset's precision.
func QuoteAsset(priceCents int64, asset string, rates []ExchangeRate) (string, error) {
	eurAmount := float64(priceCents) / 100

	if rate, ok := findRate(rates, asset, SettlementCurrency); ok {
		return formatAmount(eurAmount/rate, asset), nil
	}

	// Cross rate: EUR per asset = (USDT per asset) * (EUR per USDT).
	assetToCross, ok1 := findRate(rates, asset, crossCurrency)
	crossToEUR, ok2 := findRate(rates, crossCurrency, SettlementCurrency)
	if ok1 && ok2 && assetToCross > 0 && crossToEUR > 0 {
		return formatAmount(eurAmount/(assetToCross*crossToEUR), asset), nil
	}

	return "", fmt.Errorf("%w: %s to %s", ErrNoRate, asset, SettlementCurrency)
}

func findRate(rates []ExchangeRate, source, target string) (float64, bool) {
	for _, r := range rates {
		if r.Valid && r.Source == source && r.Target == target && r.Rate > 0 {
			return r.Rate, true
		}
	}
	return 0, false
}

func formatAmount(amount float64, asset string) string {
	if asset == referenceAsset {
		return strconv.FormatFloat(amount, 'f', 8, 64)
	}
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
