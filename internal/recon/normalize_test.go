package recon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var testQuoteAssets = []string{"USDT", "USDC"}

func TestSplitSymbol(t *testing.T) {
	testCases := []struct {
		name         string
		symbol       string
		quoteAssets  []string
		expectedBase string
		expectError  bool
	}{
		{
			name:         "USDT pair",
			symbol:       "BTCUSDT",
			quoteAssets:  testQuoteAssets,
			expectedBase: "BTC",
		},
		{
			name:         "USDC pair",
			symbol:       "ETHUSDC",
			quoteAssets:  testQuoteAssets,
			expectedBase: "ETH",
		},
		{
			name:         "Longest suffix wins",
			symbol:       "BTCUSDT",
			quoteAssets:  []string{"T", "USDT"},
			expectedBase: "BTC",
		},
		{
			name:        "No recognized quote suffix",
			symbol:      "BTCEUR",
			quoteAssets: testQuoteAssets,
			expectError: true,
		},
		{
			name:        "Symbol equal to quote asset",
			symbol:      "USDT",
			quoteAssets: testQuoteAssets,
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			base, _, err := SplitSymbol(tc.symbol, tc.quoteAssets)
			if tc.expectError {
				assert.Error(t, err)
				var unsupported *UnsupportedSymbolError
				assert.ErrorAs(t, err, &unsupported)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedBase, base)
			}
		})
	}
}

func TestNormalizeFeeConversion(t *testing.T) {
	testCases := []struct {
		name        string
		raw         RawFill
		expectedFee float64
	}{
		{
			name: "Fee in quote asset passes through",
			raw: RawFill{Symbol: "BTCUSDT", Side: SideBuy, Quantity: "1", Price: "30000",
				Commission: "0.5", CommissionAsset: "USDT", Time: 1000},
			expectedFee: 0.5,
		},
		{
			name: "Fee in base asset valued at fill price",
			raw: RawFill{Symbol: "BTCUSDT", Side: SideBuy, Quantity: "1", Price: "30000",
				Commission: "0.001", CommissionAsset: "BTC", Time: 1000},
			expectedFee: 30.0,
		},
		{
			name: "Fee in unrelated asset treated as zero",
			raw: RawFill{Symbol: "BTCUSDT", Side: SideBuy, Quantity: "1", Price: "30000",
				Commission: "0.1", CommissionAsset: "BNB", Time: 1000},
			expectedFee: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fills, err := Normalize(zap.NewNop(), []RawFill{tc.raw}, "BTCUSDT", testQuoteAssets)
			assert.NoError(t, err)
			assert.Len(t, fills, 1)
			assert.InDelta(t, tc.expectedFee, fills[0].FeeQuote, 1e-9)
			assert.Equal(t, "BTC", fills[0].Symbol)
		})
	}
}

func TestNormalizeUnsupportedSymbol(t *testing.T) {
	_, err := Normalize(zap.NewNop(), nil, "BTCEUR", testQuoteAssets)
	var unsupported *UnsupportedSymbolError
	assert.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "BTCEUR", unsupported.Symbol)
}

func TestNormalizeSkipsMalformedFills(t *testing.T) {
	raws := []RawFill{
		{Symbol: "BTCUSDT", Side: SideBuy, Quantity: "1", Price: "100", Time: 1000},
		{Symbol: "BTCUSDT", Side: SideBuy, Quantity: "not-a-number", Price: "100", Time: 2000},
		{Symbol: "BTCUSDT", Side: "HOLD", Quantity: "1", Price: "100", Time: 3000},
		{Symbol: "BTCUSDT", Side: SideSell, Quantity: "1", Price: "-5", Time: 4000},
		{Symbol: "BTCUSDT", Side: SideSell, Quantity: "1", Price: "100", Time: 0},
		{Symbol: "BTCUSDT", Side: SideSell, Quantity: "2", Price: "110", Time: 5000},
	}

	fills, err := Normalize(zap.NewNop(), raws, "BTCUSDT", testQuoteAssets)

	assert.NoError(t, err)
	assert.Len(t, fills, 2)
	assert.Equal(t, 1.0, fills[0].Quantity)
	assert.Equal(t, 2.0, fills[1].Quantity)
}

func TestNormalizeSortsByTimestampStable(t *testing.T) {
	raws := []RawFill{
		{Symbol: "BTCUSDT", Side: SideSell, Quantity: "3", Price: "100", Time: 2000},
		{Symbol: "BTCUSDT", Side: SideBuy, Quantity: "1", Price: "100", Time: 1000},
		{Symbol: "BTCUSDT", Side: SideBuy, Quantity: "2", Price: "100", Time: 2000},
	}

	fills, err := Normalize(zap.NewNop(), raws, "BTCUSDT", testQuoteAssets)

	assert.NoError(t, err)
	assert.Len(t, fills, 3)
	assert.Equal(t, 1.0, fills[0].Quantity)
	// Equal timestamps keep their input order: the sell came first.
	assert.Equal(t, 3.0, fills[1].Quantity)
	assert.Equal(t, 2.0, fills[2].Quantity)
}

func TestNormalizePrefersReportedNotional(t *testing.T) {
	raws := []RawFill{
		{Symbol: "BTCUSDT", Side: SideBuy, Quantity: "0.3", Price: "30000.1",
			QuoteQuantity: "9000.00", Time: 1000},
	}

	fills, err := Normalize(zap.NewNop(), raws, "BTCUSDT", testQuoteAssets)

	assert.NoError(t, err)
	assert.Equal(t, 9000.0, fills[0].QuoteNotional)
}

func TestNormalizeFunding(t *testing.T) {
	raws := []RawFunding{
		{Symbol: "BTCUSDT", Income: "0.5", Time: 1000},
		{Symbol: "BTCUSDT", Income: "-0.2", Time: 2000},
		{Symbol: "BTCEUR", Income: "1", Time: 3000},     // unrecognized quote
		{Symbol: "ETHUSDT", Income: "oops", Time: 4000}, // unparsable income
	}

	events := NormalizeFunding(zap.NewNop(), raws, testQuoteAssets)

	assert.Len(t, events, 2)
	assert.Equal(t, "BTC", events[0].Symbol)
	assert.Equal(t, 0.5, events[0].Income)
	assert.Equal(t, -0.2, events[1].Income)
}
