package recon

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"position-ledger-go/internal/config"
	"position-ledger-go/internal/models"
	"position-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Reconstructor turns raw exchange fills and funding payments into
// deduplicated closed-position records: normalize -> FIFO match -> funding
// attribution -> persist. One instance is safe for sequential reuse across
// exchanges; the per-symbol lot state lives only inside a single call.
type Reconstructor struct {
	logger *zap.Logger
	cfg    *config.Recon
	store  store.PositionStore
}

// Summary reports the outcome of one reconstruction run.
type Summary struct {
	Saved            int
	Skipped          int
	SkippedSymbols   []string
	FailedIdentities []string
}

// New creates a Reconstructor. The store may be nil if only
// PreviewPositions will be called.
func New(logger *zap.Logger, cfg *config.Recon, st store.PositionStore) *Reconstructor {
	return &Reconstructor{
		logger: logger,
		cfg:    cfg,
		store:  st,
	}
}

type symbolResult struct {
	symbol    string
	positions []ClosedPosition
	skipped   bool
}

// PreviewPositions runs the full reconstruction computation without touching
// the store. fills is keyed by the exchange-reported symbol.
func (r *Reconstructor) PreviewPositions(ctx context.Context, exchange string, fills map[string][]RawFill, funding []RawFunding) ([]ClosedPosition, error) {
	positions, _, err := r.reconstruct(ctx, exchange, fills, funding)
	return positions, err
}

// Reconstruct runs the full pipeline and persists the results, skipping
// records whose identity already exists in the store. A failure persisting a
// single record is logged and counted; it never aborts the batch.
func (r *Reconstructor) Reconstruct(ctx context.Context, exchange string, fills map[string][]RawFill, funding []RawFunding) (Summary, error) {
	positions, skippedSymbols, err := r.reconstruct(ctx, exchange, fills, funding)
	if err != nil {
		return Summary{}, err
	}
	if r.store == nil {
		return Summary{}, errors.New("reconstruct: no position store configured")
	}

	summary := Summary{SkippedSymbols: skippedSymbols}
	for i := range positions {
		rec := toRecord(&positions[i])
		inserted, err := r.store.InsertIfAbsent(rec)
		if err != nil {
			identity := store.IdentityOf(rec)
			r.logger.Error("Failed to persist position",
				zap.String("identity", identity.String()),
				zap.Error(err))
			summary.FailedIdentities = append(summary.FailedIdentities, identity.String())
			continue
		}
		if inserted {
			summary.Saved++
		} else {
			summary.Skipped++
		}
	}

	r.logger.Info("Reconstruction run complete",
		zap.String("exchange", exchange),
		zap.Int("saved", summary.Saved),
		zap.Int("skipped", summary.Skipped),
		zap.Strings("skipped_symbols", summary.SkippedSymbols),
		zap.Int("failed", len(summary.FailedIdentities)))

	return summary, nil
}

// reconstruct fans symbol matching out across a bounded worker pool. Lot
// state is scoped per symbol and the funding index is read-only, so workers
// share nothing mutable; within one symbol fills stay strictly sequential.
func (r *Reconstructor) reconstruct(ctx context.Context, exchange string, fills map[string][]RawFill, funding []RawFunding) ([]ClosedPosition, []string, error) {
	if len(r.cfg.QuoteAssets) == 0 {
		return nil, nil, fmt.Errorf("reconstruct: no recognized quote assets configured")
	}

	grace := r.cfg.FundingGraceFor(exchange)
	idx := IndexFunding(NormalizeFunding(r.logger, funding, r.cfg.QuoteAssets))

	workers := r.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(fills) {
		workers = len(fills)
	}

	jobs := make(chan string)
	results := make(chan symbolResult, len(fills))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				if ctx.Err() != nil {
					continue // drain remaining jobs after cancellation
				}
				results <- r.matchOne(exchange, symbol, fills[symbol], idx, grace)
			}
		}()
	}

	go func() {
		for symbol := range fills {
			jobs <- symbol
		}
		close(jobs)
	}()

	wg.Wait()
	close(results)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var positions []ClosedPosition
	var skippedSymbols []string
	for res := range results {
		if res.skipped {
			skippedSymbols = append(skippedSymbols, res.symbol)
			continue
		}
		positions = append(positions, res.positions...)
	}

	// Workers finish in arbitrary order; make the output deterministic.
	sort.SliceStable(positions, func(i, j int) bool {
		if positions[i].Symbol != positions[j].Symbol {
			return positions[i].Symbol < positions[j].Symbol
		}
		if positions[i].CloseTimestamp != positions[j].CloseTimestamp {
			return positions[i].CloseTimestamp < positions[j].CloseTimestamp
		}
		return positions[i].OpenTimestamp < positions[j].OpenTimestamp
	})
	sort.Strings(skippedSymbols)

	return positions, skippedSymbols, nil
}

func (r *Reconstructor) matchOne(exchange, symbol string, raws []RawFill, idx FundingIndex, graceMs int64) symbolResult {
	normalized, err := Normalize(r.logger, raws, symbol, r.cfg.QuoteAssets)
	if err != nil {
		var unsupported *UnsupportedSymbolError
		if errors.As(err, &unsupported) {
			r.logger.Warn("Skipping symbol with no recognized quote asset",
				zap.String("symbol", symbol))
		} else {
			r.logger.Warn("Skipping symbol: normalization failed",
				zap.String("symbol", symbol),
				zap.Error(err))
		}
		return symbolResult{symbol: symbol, skipped: true}
	}

	positions := matchSymbol(r.logger, exchange, symbol, normalized, r.cfg.DustThreshold)
	attributeFunding(positions, idx, graceMs)
	return symbolResult{symbol: symbol, positions: positions}
}

// toRecord maps an in-memory closed position onto the persisted row shape.
func toRecord(p *ClosedPosition) *models.Position {
	return &models.Position{
		Exchange:        p.Exchange,
		Symbol:          p.Symbol,
		Side:            p.Side,
		MatchedQuantity: p.MatchedQuantity,
		EntryPrice:      p.EntryPrice,
		ClosePrice:      p.ClosePrice,
		OpenTimestamp:   p.OpenTimestamp,
		CloseTimestamp:  p.CloseTimestamp,
		GrossPnL:        p.GrossPnL,
		NetPnL:          p.NetPnL,
		EntryFeeQuote:   p.EntryFeeQuote,
		ExitFeeQuote:    p.ExitFeeQuote,
		FundingTotal:    p.FundingTotal,
		Notional:        p.Notional,
		IgnoreFlag:      p.IgnoreFlag,
	}
}
