package recon

import "sort"

// FundingIndex maps a canonical symbol to its funding events, sorted
// ascending by timestamp. It is built once per run and only read afterwards,
// so concurrent symbol workers can share it.
type FundingIndex map[string][]FundingEvent

// IndexFunding groups funding events by symbol and sorts each group by
// timestamp. Empty input yields an empty index.
func IndexFunding(events []FundingEvent) FundingIndex {
	idx := make(FundingIndex)
	for _, ev := range events {
		idx[ev.Symbol] = append(idx[ev.Symbol], ev)
	}
	for symbol := range idx {
		group := idx[symbol]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Timestamp < group[j].Timestamp
		})
	}
	return idx
}

// SumRange returns the total funding income for a symbol with
// from <= timestamp <= to. Both bounds are inclusive.
func (idx FundingIndex) SumRange(symbol string, from, to int64) float64 {
	events := idx[symbol]
	if len(events) == 0 || to < from {
		return 0
	}
	// First event at or after from.
	lo := sort.Search(len(events), func(i int) bool {
		return events[i].Timestamp >= from
	})
	total := 0.0
	for i := lo; i < len(events) && events[i].Timestamp <= to; i++ {
		total += events[i].Income
	}
	return total
}
