// Package main provides the API server entry point for the fund ledger service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fund-ledger/internal/api"
	"github.com/fund-ledger/internal/chain"
	"github.com/fund-ledger/internal/config"
	"github.com/fund-ledger/internal/costbasis"
	"github.com/fund-ledger/internal/decoder"
	"github.com/fund-ledger/internal/ledger"
	"github.com/fund-ledger/internal/logging"
	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/storage"
	"github.com/fund-ledger/internal/types"
)

func main() {
	fmt.Println("Fund Ledger API Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections. Postgres and Redis are optional:
	// the decode pipeline runs in memory when they are unavailable.
	logger.Info("Connecting to databases...")

	var journalRepo *storage.JournalRepository
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Warn("Postgres unavailable, journal persistence disabled")
	} else {
		defer postgres.Close()
		journalRepo = storage.NewJournalRepository(postgres)
	}

	var redis *storage.RedisCache
	redis, err = storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, price caching disabled")
		redis = nil
	} else {
		defer redis.Close()
	}

	// Initialize chain data source
	logger.Info("Initializing chain source...")
	source, err := chain.NewEthereumSource(cfg.Chain)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Ethereum source")
	}
	defer source.Close()

	logger.WithFields(map[string]interface{}{
		"rpc": cfg.Chain.RPCPrimary,
		"rps": cfg.Chain.RequestsPerSecond,
	}).Info("Chain source initialized")

	// Initialize price oracle
	staticPrice, err := decimal.NewFromString(cfg.Oracle.StaticPrice)
	if err != nil {
		logger.WithError(err).Fatal("Invalid ORACLE_STATIC_PRICE")
	}
	var oracle chain.PriceOracle = chain.NewStaticPriceOracle(staticPrice)
	if redis != nil {
		oracle = storage.NewCachedPriceOracle(redis, oracle, cfg.Oracle.CacheTTL)
	}

	// Build the decode context from fund configuration
	equivalence := models.NewAssetEquivalence(map[string][]string{
		"native": cfg.Ledger.NativeEquivalents,
		"usd":    cfg.Ledger.StableAssets,
	}, "native", "usd")

	roles := decoder.NewStaticRoleResolver(cfg.Fund.Roles)
	dctx := decoder.NewContext(
		cfg.Fund.FundID,
		cfg.Ledger.NativeAsset,
		cfg.Ledger.ClearingAccountPattern,
		cfg.Fund.Wallets,
		knownTokens(),
		equivalence,
		roles,
	)

	// Initialize cost basis tracking and journal integration
	tracker := costbasis.NewTracker(lotMethod(cfg.Ledger.LotMethod))
	integrator := ledger.NewIntegrator(tracker, equivalence, cfg.Ledger.ClearingAccountPattern)

	// Platform decoders, ordered most specific first. The generic decoder
	// matches anything and must stay last.
	decoders := []decoder.Decoder{
		decoder.NewWETHDecoder(dctx, oracle, cfg.Contracts.WETH, "WETH"),
		decoder.NewLendingDecoder(dctx, oracle, cfg.Contracts.LendingPool),
		decoder.NewSwapDecoder(dctx, oracle, cfg.Contracts.SwapRouter),
		decoder.NewERC20Decoder(dctx, oracle),
		decoder.NewGenericDecoder(dctx, oracle),
	}

	registry := decoder.NewRegistry(source, dctx, cfg.Ledger.AutoPostCategories, integrator, decoders...)

	logger.WithFields(map[string]interface{}{
		"fund":       cfg.Fund.FundID,
		"wallets":    len(cfg.Fund.Wallets),
		"lot_method": cfg.Ledger.LotMethod,
	}).Info("Decode pipeline initialized")

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}

	server := api.NewServer(serverConfig, registry, tracker, journalRepo)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// lotMethod maps the configured method name to a lot consumption method,
// defaulting to FIFO for unrecognized values.
func lotMethod(name string) types.LotMethod {
	switch name {
	case "lifo":
		return types.MethodLIFO
	case "hifo":
		return types.MethodHIFO
	default:
		return types.MethodFIFO
	}
}

// knownTokens returns the mainnet token contracts the decoders resolve
// without an on-chain metadata lookup.
func knownTokens() map[string]decoder.TokenInfo {
	return map[string]decoder.TokenInfo{
		"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": {Symbol: "WETH", Decimals: 18},
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": {Symbol: "USDC", Decimals: 6},
		"0xdac17f958d2ee523a2206206994597c13d831ec7": {Symbol: "USDT", Decimals: 6},
		"0x6b175474e89094c44da98b954eedeac495271d0f": {Symbol: "DAI", Decimals: 18},
		"0xae7ab96520de3a18e5e111b5eaab095312d7fe84": {Symbol: "STETH", Decimals: 18},
	}
}
