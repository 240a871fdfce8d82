package recon

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// SplitSymbol splits an exchange symbol into base and quote asset using the
// configured set of recognized quote suffixes. When more than one suffix
// matches, the longest wins, so "BTCUSDT" resolves against "USDT" even if a
// shorter overlapping suffix is also configured.
func SplitSymbol(exchangeSymbol string, quoteAssets []string) (base, quote string, err error) {
	for _, q := range quoteAssets {
		if len(q) > len(quote) && len(exchangeSymbol) > len(q) && strings.HasSuffix(exchangeSymbol, q) {
			quote = q
		}
	}
	if quote == "" {
		return "", "", &UnsupportedSymbolError{Symbol: exchangeSymbol}
	}
	return strings.TrimSuffix(exchangeSymbol, quote), quote, nil
}

// Normalize converts raw exchange fills for one symbol into canonical Fills:
// base/quote split, fee converted to quote terms, sorted ascending by
// timestamp with the original sequence preserved on ties.
//
// A fill with a missing or unparsable required field is skipped with a
// warning; only an unrecognized symbol fails the call.
func Normalize(logger *zap.Logger, raws []RawFill, exchangeSymbol string, quoteAssets []string) ([]Fill, error) {
	base, quote, err := SplitSymbol(exchangeSymbol, quoteAssets)
	if err != nil {
		return nil, err
	}

	fills := make([]Fill, 0, len(raws))
	for i, raw := range raws {
		fill, err := normalizeOne(raw, i, base, quote)
		if err != nil {
			logger.Warn("Skipping malformed fill",
				zap.String("symbol", exchangeSymbol),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		if raw.CommissionAsset != "" && raw.CommissionAsset != quote && raw.CommissionAsset != base {
			logger.Warn("Fee asset is neither base nor quote, treating fee as zero",
				zap.String("symbol", exchangeSymbol),
				zap.String("fee_asset", raw.CommissionAsset))
		}
		fills = append(fills, fill)
	}

	// Stable: fills with identical timestamps keep their original order.
	sort.SliceStable(fills, func(i, j int) bool {
		return fills[i].Timestamp < fills[j].Timestamp
	})

	return fills, nil
}

func normalizeOne(raw RawFill, index int, base, quote string) (Fill, error) {
	if raw.Side != SideBuy && raw.Side != SideSell {
		return Fill{}, &MalformedFillError{Symbol: raw.Symbol, Index: index, Field: "side",
			Err: fmt.Errorf("expected BUY or SELL, got %q", raw.Side)}
	}
	if raw.Time <= 0 {
		return Fill{}, &MalformedFillError{Symbol: raw.Symbol, Index: index, Field: "time",
			Err: fmt.Errorf("missing timestamp")}
	}

	qty, err := strconv.ParseFloat(raw.Quantity, 64)
	if err != nil || qty <= 0 {
		return Fill{}, &MalformedFillError{Symbol: raw.Symbol, Index: index, Field: "qty",
			Err: fmt.Errorf("expected positive decimal, got %q", raw.Quantity)}
	}
	price, err := strconv.ParseFloat(raw.Price, 64)
	if err != nil || price <= 0 {
		return Fill{}, &MalformedFillError{Symbol: raw.Symbol, Index: index, Field: "price",
			Err: fmt.Errorf("expected positive decimal, got %q", raw.Price)}
	}

	fee := 0.0
	if raw.Commission != "" {
		fee, err = strconv.ParseFloat(raw.Commission, 64)
		if err != nil {
			return Fill{}, &MalformedFillError{Symbol: raw.Symbol, Index: index, Field: "commission",
				Err: fmt.Errorf("expected decimal, got %q", raw.Commission)}
		}
	}

	// Fee to quote-asset terms: quote fees pass through, base fees are valued
	// at the fill price, anything else is unpriceable here and becomes zero.
	var feeQuote float64
	switch raw.CommissionAsset {
	case quote:
		feeQuote = fee
	case base:
		feeQuote = fee * price
	default:
		feeQuote = 0
	}

	// The exchange-reported quote notional is more accurate than qty*price
	// when the exchange rounds the two independently.
	notional := qty * price
	if raw.QuoteQuantity != "" {
		if n, err := strconv.ParseFloat(raw.QuoteQuantity, 64); err == nil && n > 0 {
			notional = n
		}
	}

	return Fill{
		Symbol:        base,
		Side:          raw.Side,
		Quantity:      qty,
		Price:         price,
		FeeQuote:      feeQuote,
		QuoteNotional: notional,
		Timestamp:     raw.Time,
	}, nil
}

// NormalizeFunding converts raw funding payments into FundingEvents keyed by
// the canonical base-asset symbol, so the funding index lines up with
// normalized fills. Payments for unrecognized symbols or with unparsable
// income are skipped with a warning.
func NormalizeFunding(logger *zap.Logger, raws []RawFunding, quoteAssets []string) []FundingEvent {
	events := make([]FundingEvent, 0, len(raws))
	for _, raw := range raws {
		base, _, err := SplitSymbol(raw.Symbol, quoteAssets)
		if err != nil {
			logger.Warn("Skipping funding payment for unrecognized symbol",
				zap.String("symbol", raw.Symbol))
			continue
		}
		income, err := strconv.ParseFloat(raw.Income, 64)
		if err != nil {
			logger.Warn("Skipping funding payment with unparsable income",
				zap.String("symbol", raw.Symbol),
				zap.String("income", raw.Income))
			continue
		}
		events = append(events, FundingEvent{Symbol: base, Income: income, Timestamp: raw.Time})
	}
	return events
}
