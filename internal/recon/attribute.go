package recon

// attributeFunding fills in FundingTotal for each candidate position by
// summing funding income inside [open-grace, close+grace] and folds it into
// NetPnL. Ignore-flagged records (orphan sells, leftover opens) keep
// NetPnL equal to GrossPnL: their fee and funding figures are informational
// and must not leak into PnL aggregates.
func attributeFunding(positions []ClosedPosition, idx FundingIndex, graceMs int64) {
	for i := range positions {
		p := &positions[i]
		p.FundingTotal = idx.SumRange(p.Symbol, p.OpenTimestamp-graceMs, p.CloseTimestamp+graceMs)
		if p.IgnoreFlag {
			p.NetPnL = p.GrossPnL
			continue
		}
		p.NetPnL = p.GrossPnL - p.EntryFeeQuote - p.ExitFeeQuote + p.FundingTotal
	}
}
