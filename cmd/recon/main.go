package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"position-ledger-go/internal/binance"
	"position-ledger-go/internal/config"
	"position-ledger-go/internal/database"
	"position-ledger-go/internal/logger"
	"position-ledger-go/internal/recon"
	"position-ledger-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "./configs", "directory containing config.yml")
	preview := flag.Bool("preview", false, "compute positions and log them without persisting")
	flag.Parse()

	// Load application configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded", zap.String("exchange", cfg.Recon.Exchange))

	// Setup context for graceful shutdown during fetch
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Initialize Binance REST client
	restClient := binance.NewRestClient(&cfg.Binance, logger.Component(log, "binance"))
	if _, err := restClient.GetServerTime(); err != nil {
		log.Fatal("Failed to connect to Binance API", zap.Error(err))
	}
	log.Info("Successfully connected to Binance API.")

	startTime := time.Now().AddDate(0, 0, -cfg.Recon.WindowDays).UnixMilli()

	fills := make(map[string][]recon.RawFill, len(cfg.Recon.Symbols))
	for _, symbol := range cfg.Recon.Symbols {
		symbolFills, err := restClient.GetFills(ctx, symbol, startTime)
		if err != nil {
			log.Error("Failed to fetch fills, skipping symbol",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		fills[symbol] = symbolFills
	}

	funding, err := restClient.GetFundingIncome(ctx, startTime)
	if err != nil {
		log.Error("Failed to fetch funding income, attributing zero funding", zap.Error(err))
	}

	if *preview {
		reconstructor := recon.New(logger.Component(log, "recon"), &cfg.Recon, nil)
		positions, err := reconstructor.PreviewPositions(ctx, cfg.Recon.Exchange, fills, funding)
		if err != nil {
			log.Fatal("Preview failed", zap.Error(err))
		}
		for _, p := range positions {
			log.Info("Position",
				zap.String("symbol", p.Symbol),
				zap.String("side", p.Side),
				zap.Float64("quantity", p.MatchedQuantity),
				zap.Float64("entry", p.EntryPrice),
				zap.Float64("close", p.ClosePrice),
				zap.Float64("gross_pnl", p.GrossPnL),
				zap.Float64("net_pnl", p.NetPnL),
				zap.Float64("funding", p.FundingTotal),
				zap.Bool("ignore", p.IgnoreFlag))
		}
		log.Info("Preview complete", zap.Int("positions", len(positions)))
		return
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	reconstructor := recon.New(logger.Component(log, "recon"), &cfg.Recon, store.NewGormStore(db))
	summary, err := reconstructor.Reconstruct(ctx, cfg.Recon.Exchange, fills, funding)
	if err != nil {
		log.Fatal("Reconstruction failed", zap.Error(err))
	}

	log.Info("Done",
		zap.Int("saved", summary.Saved),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", len(summary.FailedIdentities)))
}
