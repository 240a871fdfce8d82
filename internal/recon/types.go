package recon

// Side of a fill as reported by the exchange.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Semantic tags for closed-position records. Orphan sells and leftover opens
// are artifacts of an incomplete history window and carry IgnoreFlag so
// downstream PnL aggregates can exclude them.
const (
	TagLongClose    = "long-close"
	TagOrphanSell   = "orphan-sell"
	TagLeftoverOpen = "leftover-open"
)

// RawFill is one trade execution as reported by an exchange connector,
// numeric fields kept as the wire strings so a single malformed record can be
// skipped during normalization instead of failing the fetch.
type RawFill struct {
	Symbol          string `json:"symbol"`
	Side            string `json:"side"`
	Quantity        string `json:"qty"`
	Price           string `json:"price"`
	QuoteQuantity   string `json:"quoteQty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	Time            int64  `json:"time"`
}

// RawFunding is one funding payment as reported by an exchange connector.
type RawFunding struct {
	Symbol string `json:"symbol"`
	Income string `json:"income"`
	Time   int64  `json:"time"`
}

// Fill is the canonical, normalized form of one trade execution. Symbol is
// the base asset with the quote suffix stripped, and FeeQuote is the fill fee
// converted into quote-asset terms.
type Fill struct {
	Symbol        string
	Side          string
	Quantity      float64
	Price         float64
	FeeQuote      float64
	QuoteNotional float64
	Timestamp     int64
}

// FundingEvent is a normalized funding payment. Income is signed: positive
// means received, negative means paid.
type FundingEvent struct {
	Symbol    string
	Income    float64
	Timestamp int64
}

// openLot is one unclosed buy tracked inside the matching engine. It lives
// only in the per-symbol FIFO queue for the duration of one run.
type openLot struct {
	remaining        float64
	originalQuantity float64
	entryPrice       float64
	entryFeeQuote    float64
	grossNotional    float64
	openTimestamp    int64
}

// ClosedPosition is one reconstructed round-trip trade.
type ClosedPosition struct {
	Exchange        string  `json:"exchange"`
	Symbol          string  `json:"symbol"`
	Side            string  `json:"side"`
	MatchedQuantity float64 `json:"matched_quantity"`
	EntryPrice      float64 `json:"entry_price"`
	ClosePrice      float64 `json:"close_price"`
	GrossPnL        float64 `json:"gross_pnl"`
	NetPnL          float64 `json:"net_pnl"`
	EntryFeeQuote   float64 `json:"entry_fee_quote"`
	ExitFeeQuote    float64 `json:"exit_fee_quote"`
	FundingTotal    float64 `json:"funding_total"`
	OpenTimestamp   int64   `json:"open_timestamp"`
	CloseTimestamp  int64   `json:"close_timestamp"`
	Notional        float64 `json:"notional"`
	IgnoreFlag      bool    `json:"ignore_flag"`
}
