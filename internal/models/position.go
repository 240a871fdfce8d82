package models

import "gorm.io/gorm"

// Position is a closed-position record persisted to the database.
// The composite unique index is the deduplication identity: a reconstruction
// run over an overlapping time window re-derives the same records, and the
// store must skip rather than re-insert them.
type Position struct {
	gorm.Model
	Exchange        string  `gorm:"uniqueIndex:idx_position_identity;not null" json:"exchange"`
	Symbol          string  `gorm:"uniqueIndex:idx_position_identity;not null" json:"symbol"`
	Side            string  `json:"side"`
	MatchedQuantity float64 `gorm:"uniqueIndex:idx_position_identity;not null" json:"matched_quantity"`
	EntryPrice      float64 `json:"entry_price"`
	ClosePrice      float64 `json:"close_price"`
	OpenTimestamp   int64   `json:"open_timestamp"`
	CloseTimestamp  int64   `gorm:"uniqueIndex:idx_position_identity;not null" json:"close_timestamp"`
	GrossPnL        float64 `gorm:"column:gross_pnl" json:"gross_pnl"`
	NetPnL          float64 `gorm:"column:net_pnl" json:"net_pnl"`
	EntryFeeQuote   float64 `json:"entry_fee_quote"`
	ExitFeeQuote    float64 `json:"exit_fee_quote"`
	FundingTotal    float64 `json:"funding_total"`
	Notional        float64 `json:"notional"`
	IgnoreFlag      bool    `json:"ignore_flag"`
}

func (Position) TableName() string {
	return "positions"
}
