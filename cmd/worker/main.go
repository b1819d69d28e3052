// Package main provides the batch decode worker entry point for the
// fund ledger service. It decodes a list of transaction hashes, persists
// the resulting journal entries, and archives the decoded transactions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fund-ledger/internal/chain"
	"github.com/fund-ledger/internal/config"
	"github.com/fund-ledger/internal/costbasis"
	"github.com/fund-ledger/internal/decoder"
	"github.com/fund-ledger/internal/ledger"
	"github.com/fund-ledger/internal/logging"
	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/storage"
	"github.com/fund-ledger/internal/types"
	"github.com/fund-ledger/internal/worker"
)

func main() {
	var (
		hashesFlag = flag.String("hashes", "", "Comma-separated transaction hashes to decode (falls back to positional args)")
		timeout    = flag.Duration("timeout", 10*time.Minute, "Overall batch timeout")
	)
	flag.Parse()

	fmt.Println("Fund Ledger Decode Worker")
	log.Println("Worker starting...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	txHashes := collectHashes(*hashesFlag, flag.Args())
	if len(txHashes) == 0 {
		log.Fatal("No transaction hashes provided: use -hashes or positional args")
	}

	// Persistence is optional for the worker: without Postgres the batch
	// still decodes and reports, it just does not persist entries.
	var journalRepo *storage.JournalRepository
	var ledgerRepo *storage.LedgerRepository
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Warn("Postgres unavailable, journal persistence disabled")
	} else {
		defer postgres.Close()
		journalRepo = storage.NewJournalRepository(postgres)
		ledgerRepo = storage.NewLedgerRepository(postgres)
	}

	var archiveRepo *storage.DecodedTxRepository
	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Warn("ClickHouse unavailable, decode archive disabled")
	} else {
		defer clickhouse.Close()
		archiveRepo = storage.NewDecodedTxRepository(clickhouse)
	}

	var redis *storage.RedisCache
	redis, err = storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, price caching disabled")
		redis = nil
	} else {
		defer redis.Close()
	}

	source, err := chain.NewEthereumSource(cfg.Chain)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Ethereum source")
	}
	defer source.Close()

	staticPrice, err := decimal.NewFromString(cfg.Oracle.StaticPrice)
	if err != nil {
		logger.WithError(err).Fatal("Invalid ORACLE_STATIC_PRICE")
	}
	var oracle chain.PriceOracle = chain.NewStaticPriceOracle(staticPrice)
	if redis != nil {
		oracle = storage.NewCachedPriceOracle(redis, oracle, cfg.Oracle.CacheTTL)
	}

	equivalence := models.NewAssetEquivalence(map[string][]string{
		"native": cfg.Ledger.NativeEquivalents,
		"usd":    cfg.Ledger.StableAssets,
	}, "native", "usd")

	dctx := decoder.NewContext(
		cfg.Fund.FundID,
		cfg.Ledger.NativeAsset,
		cfg.Ledger.ClearingAccountPattern,
		cfg.Fund.Wallets,
		knownTokens(),
		equivalence,
		decoder.NewStaticRoleResolver(cfg.Fund.Roles),
	)

	tracker := costbasis.NewTracker(lotMethod(cfg.Ledger.LotMethod))
	integrator := ledger.NewIntegrator(tracker, equivalence, cfg.Ledger.ClearingAccountPattern)

	registry := decoder.NewRegistry(source, dctx, cfg.Ledger.AutoPostCategories, integrator,
		decoder.NewWETHDecoder(dctx, oracle, cfg.Contracts.WETH, "WETH"),
		decoder.NewLendingDecoder(dctx, oracle, cfg.Contracts.LendingPool),
		decoder.NewSwapDecoder(dctx, oracle, cfg.Contracts.SwapRouter),
		decoder.NewERC20Decoder(dctx, oracle),
		decoder.NewGenericDecoder(dctx, oracle),
	)

	decodeWorker := worker.NewDecodeWorker(registry, journalRepo, archiveRepo, cfg.Ledger.WorkerConcurrency)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Cancel the batch on interrupt so partial results still persist.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("Interrupt received, cancelling batch...")
		cancel()
	}()

	logger.WithFields(map[string]interface{}{
		"hashes":      len(txHashes),
		"concurrency": cfg.Ledger.WorkerConcurrency,
	}).Info("Starting decode batch")

	result, _ := decodeWorker.ProcessBatch(ctx, txHashes)

	stats := registry.GetStats()
	logger.WithFields(map[string]interface{}{
		"total":           result.Total,
		"succeeded":       result.Succeeded,
		"failed":          result.Failed,
		"persisted":       result.Persisted,
		"auto_post_ready": stats.AutoPostReady,
		"review_queue":    stats.ReviewQueue,
	}).Info("Decode batch completed")

	for _, disposal := range tracker.Disposals() {
		logger.WithFields(map[string]interface{}{
			"asset":     disposal.Asset,
			"amount":    disposal.Amount.String(),
			"gain_loss": disposal.GainLoss.String(),
			"treatment": disposal.Treatment,
		}).Info("Disposal recorded")
	}

	if ledgerRepo != nil {
		persistLedger(logger, ledgerRepo, tracker)
	}
}

// persistLedger writes the batch's remaining lots and disposal events
// to Postgres. It uses its own context so an interrupted batch still
// gets its partial results recorded.
func persistLedger(logger *logging.Logger, repo *storage.LedgerRepository, tracker *costbasis.Tracker) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var lotCount, disposalCount int
	for _, pos := range tracker.GetAllPositions() {
		for _, lot := range tracker.Lots(pos.FundID, pos.WalletID, pos.Asset) {
			if err := repo.InsertLot(ctx, lot); err != nil {
				logger.WithError(err).WithField("lot_id", lot.LotID).Warn("Failed to persist tax lot")
				continue
			}
			lotCount++
		}
	}
	for _, d := range tracker.Disposals() {
		if err := repo.InsertDisposal(ctx, d); err != nil {
			logger.WithError(err).WithField("disposal_id", d.DisposalID).Warn("Failed to persist disposal event")
			continue
		}
		disposalCount++
	}

	logger.WithFields(map[string]interface{}{
		"lots":      lotCount,
		"disposals": disposalCount,
	}).Info("Ledger history persisted")
}

// collectHashes merges the -hashes flag with positional arguments,
// dropping empties and duplicates while preserving order.
func collectHashes(flagValue string, args []string) []string {
	seen := make(map[string]bool)
	var hashes []string
	add := func(h string) {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			return
		}
		seen[h] = true
		hashes = append(hashes, h)
	}
	for _, h := range strings.Split(flagValue, ",") {
		add(h)
	}
	for _, h := range args {
		add(h)
	}
	return hashes
}

// knownTokens seeds the decoders with mainnet token metadata so common
// assets resolve to real symbols instead of placeholder names.
func knownTokens() map[string]decoder.TokenInfo {
	return map[string]decoder.TokenInfo{
		"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": {Symbol: "WETH", Decimals: 18},
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": {Symbol: "USDC", Decimals: 6},
		"0xdac17f958d2ee523a2206206994597c13d831ec7": {Symbol: "USDT", Decimals: 6},
		"0x6b175474e89094c44da98b954eedeac495271d0f": {Symbol: "DAI", Decimals: 18},
		"0xae7ab96520de3a18e5e111b5eaab095312d7fe84": {Symbol: "STETH", Decimals: 18},
	}
}

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
