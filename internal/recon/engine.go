package recon

import (
	"math"

	"go.uber.org/zap"
)

// matchSymbol runs FIFO lot matching over one symbol's normalized fills,
// which must be sorted ascending by timestamp. Each sell consumes open lots
// from the oldest forward and emits one ClosedPosition per lot it touches,
// with entry and exit fees prorated to the matched quantity.
//
// Funding attribution happens later; NetPnL here is gross minus fees.
func matchSymbol(logger *zap.Logger, exchange, symbol string, fills []Fill, dust float64) []ClosedPosition {
	var (
		lots      []*openLot
		positions []ClosedPosition
	)
	firstFill := true

	for _, f := range fills {
		switch f.Side {
		case SideBuy:
			lots = append(lots, &openLot{
				remaining:        f.Quantity,
				originalQuantity: f.Quantity,
				entryPrice:       f.Price,
				entryFeeQuote:    f.FeeQuote,
				grossNotional:    f.QuoteNotional,
				openTimestamp:    f.Timestamp,
			})

		case SideSell:
			if firstFill && len(lots) == 0 {
				// The very first fill in the window is a sell: there is no
				// prior history to match against, so record it flagged
				// rather than invent an entry price.
				logger.Warn("Orphan sell with no prior open lot",
					zap.String("symbol", symbol),
					zap.Float64("quantity", f.Quantity),
					zap.Int64("timestamp", f.Timestamp))
				positions = append(positions, ClosedPosition{
					Exchange:        exchange,
					Symbol:          symbol,
					Side:            TagOrphanSell,
					MatchedQuantity: f.Quantity,
					EntryPrice:      f.Price,
					ClosePrice:      f.Price,
					ExitFeeQuote:    f.FeeQuote,
					OpenTimestamp:   f.Timestamp,
					CloseTimestamp:  f.Timestamp,
					Notional:        f.Price * f.Quantity,
					IgnoreFlag:      true,
				})
				firstFill = false
				continue
			}

			remainingSell := f.Quantity
			feePerUnitSell := f.FeeQuote / math.Max(f.Quantity, dust)

			for remainingSell > dust && len(lots) > 0 {
				head := lots[0]
				matchQty := math.Min(remainingSell, head.remaining)

				// The lot's effective quantity is derived from its reported
				// notional rather than the raw fill quantity, so the prorated
				// entry fees across all of a lot's matches sum back to the
				// fee actually paid.
				lotQty := head.grossNotional / head.entryPrice
				feePerUnitBuy := head.entryFeeQuote / math.Max(lotQty, dust)

				entryFee := feePerUnitBuy * matchQty
				exitFee := feePerUnitSell * matchQty
				gross := (f.Price - head.entryPrice) * matchQty

				positions = append(positions, ClosedPosition{
					Exchange:        exchange,
					Symbol:          symbol,
					Side:            TagLongClose,
					MatchedQuantity: matchQty,
					EntryPrice:      head.entryPrice,
					ClosePrice:      f.Price,
					GrossPnL:        gross,
					NetPnL:          gross - entryFee - exitFee,
					EntryFeeQuote:   entryFee,
					ExitFeeQuote:    exitFee,
					OpenTimestamp:   head.openTimestamp,
					CloseTimestamp:  f.Timestamp,
					Notional:        head.entryPrice * matchQty,
					IgnoreFlag:      false,
				})

				head.remaining -= matchQty
				remainingSell -= matchQty
				if head.remaining < dust {
					lots = lots[1:]
				}
			}

			if remainingSell > dust {
				// Known incomplete-history case: the window missed the buys
				// backing this sell. The excess is dropped, not synthesized.
				logger.Warn("Sell quantity exceeds all open lots, dropping unmatched excess",
					zap.String("symbol", symbol),
					zap.Float64("unmatched_quantity", remainingSell),
					zap.Int64("timestamp", f.Timestamp))
			}
		}
		firstFill = false
	}

	// Lots still open at the end of the window are emitted flagged, so
	// downstream consumers can tell "still open" from "fully reconciled".
	if len(lots) > 0 {
		lastTs := fills[len(fills)-1].Timestamp
		for _, lot := range lots {
			if lot.remaining <= dust {
				continue
			}
			entryFee := lot.entryFeeQuote * (lot.remaining / lot.originalQuantity)
			positions = append(positions, ClosedPosition{
				Exchange:        exchange,
				Symbol:          symbol,
				Side:            TagLeftoverOpen,
				MatchedQuantity: lot.remaining,
				EntryPrice:      lot.entryPrice,
				ClosePrice:      lot.entryPrice,
				EntryFeeQuote:   entryFee,
				OpenTimestamp:   lot.openTimestamp,
				CloseTimestamp:  lastTs,
				Notional:        lot.entryPrice * lot.remaining,
				IgnoreFlag:      true,
			})
		}
	}

	return positions
}
