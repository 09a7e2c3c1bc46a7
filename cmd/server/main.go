package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/castlegate/networth/internal/clients/alphavantage"
	"github.com/castlegate/networth/internal/config"
	"github.com/castlegate/networth/internal/database"
	"github.com/castlegate/networth/internal/modules/history"
	"github.com/castlegate/networth/internal/modules/ledger"
	"github.com/castlegate/networth/internal/modules/market_hours"
	markethourshandlers "github.com/castlegate/networth/internal/modules/market_hours/handlers"
	"github.com/castlegate/networth/internal/modules/marketdata"
	"github.com/castlegate/networth/internal/modules/portfolio"
	portfoliohandlers "github.com/castlegate/networth/internal/modules/portfolio/handlers"
	"github.com/castlegate/networth/internal/scheduler"
	"github.com/castlegate/networth/internal/server"
	"github.com/castlegate/networth/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info"})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("exchange", cfg.Exchange).Msg("Starting networth server")

	// Databases
	ledgerDB, err := database.New(database.Config{
		Path:    cfg.LedgerDBPath(),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	historyDB, err := database.New(database.Config{
		Path:    cfg.HistoryDBPath(),
		Profile: database.ProfileHistory,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	// Repositories
	ledgerRepo, err := ledger.NewRepository(ledgerDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger repository")
	}
	historyRepo, err := history.NewRepository(historyDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize history repository")
	}

	// Market calendar
	clock := market_hours.New(cfg.Exchange)

	// Provider client
	client := alphavantage.NewClient(alphavantage.Config{
		BaseURL: cfg.ProviderBaseURL,
		APIKey:  cfg.ProviderAPIKey,
		Timeout: cfg.ProviderTimeout,
	}, log)

	// Quote cache, restored from the last snapshot when one exists
	cache := marketdata.NewQuoteCache(marketdata.CacheConfig{
		MarketHoursTTL: cfg.MarketHoursTTL,
		OffHoursTTL:    cfg.OffHoursTTL,
		MaxEntries:     cfg.CacheMaxEntries,
	}, time.Now)
	if cfg.CacheSnapshot != "" {
		if err := cache.LoadSnapshotFile(cfg.CacheSnapshot); err != nil {
			log.Warn().Err(err).Str("path", cfg.CacheSnapshot).Msg("Failed to restore cache snapshot")
		}
	}

	marketDataSvc := marketdata.NewService(cache, client, clock, marketdata.ServiceConfig{
		FetchTimeout: cfg.ProviderTimeout,
	}, log)

	// Reconstruction and portfolio reads
	engine := portfolio.NewReconstructionEngine(historyRepo, ledgerRepo, clock, portfolio.EngineConfig{
		PriceLookback: cfg.PriceLookback,
	}, log)
	portfolioSvc := portfolio.NewService(ledgerRepo, marketDataSvc, engine, clock, log)

	// Background jobs
	sched := scheduler.New(log)
	warming := marketdata.NewWarmingJob(marketDataSvc, cfg.WarmingTopN, cfg.ProviderTimeout, log)
	if err := sched.AddJob(cfg.WarmingSchedule, warming); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cache warming")
	}
	priceSync := history.NewSyncJob(historyRepo, client, ledgerRepo, clock, cfg.PriceLookback, 5*time.Minute, log)
	if err := sched.AddJob(cfg.PriceSyncSchedule, priceSync); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule price sync")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP surface
	srv := server.New(server.Config{
		Port:           cfg.Port,
		RequestTimeout: cfg.RequestTimeout,
		Log:            log,
		Modules: []server.RouteRegistrar{
			portfoliohandlers.NewHandler(portfolioSvc, marketDataSvc, ledgerRepo, log),
			markethourshandlers.NewHandler(clock, log),
		},
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if cfg.CacheSnapshot != "" {
		if err := cache.SaveSnapshotFile(cfg.CacheSnapshot); err != nil {
			log.Error().Err(err).Str("path", cfg.CacheSnapshot).Msg("Failed to save cache snapshot")
		}
	}

	log.Info().Msg("Server stopped")
}
