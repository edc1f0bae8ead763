package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mselser95/dexsim/internal/batch"
	"github.com/mselser95/dexsim/internal/engine"
	"github.com/mselser95/dexsim/internal/storage"
	"github.com/mselser95/dexsim/internal/tokens"
	"github.com/mselser95/dexsim/pkg/cache"
	"github.com/mselser95/dexsim/pkg/chain"
	"github.com/mselser95/dexsim/pkg/config"
	"github.com/mselser95/dexsim/pkg/fork"
	"github.com/mselser95/dexsim/pkg/healthprobe"
	"github.com/mselser95/dexsim/pkg/httpserver"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a batch file against a forked snapshot",
	Long: `Fork the upstream chain one block before the batch's source block,
execute every swap and order in the file, and print the outcome report.

Exits non-zero when any operation failed or reverted.`,
	RunE: runBatch,
}

var (
	batchFile string
	serveHTTP bool
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&batchFile, "batch", "b", "", "Path to the batch JSON file (required)")
	runCmd.Flags().BoolVar(&serveHTTP, "serve", false, "Keep the HTTP server up after the batch finishes")
	_ = runCmd.MarkFlagRequired("batch")
}

// reportHolder publishes the finished report to the HTTP server.
type reportHolder struct {
	mu     sync.RWMutex
	report *engine.Report
}

func (h *reportHolder) Report() *engine.Report {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.report
}

func (h *reportHolder) set(r *engine.Report) {
	h.mu.Lock()
	h.report = r
	h.mu.Unlock()
}

func runBatch(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure is uninteresting

	doc, err := batch.Load(batchFile)
	if err != nil {
		return fmt.Errorf("load batch: %w", err)
	}

	b := batch.Parse(doc)

	logger.Info("batch-loaded",
		zap.String("file", batchFile),
		zap.Uint64("block", b.Block),
		zap.Uint64("fork-block", b.ForkBlock),
		zap.Int("operations", len(b.Items)))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BatchDeadline)
	defer cancel()

	probe := healthprobe.New()
	holder := &reportHolder{}

	server := httpserver.New(&httpserver.Config{
		Port:           cfg.HTTPPort,
		Logger:         logger,
		HealthChecker:  probe,
		ReportProvider: holder,
	})

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("http-server-error", zap.Error(err))
		}
	}()
	defer server.Shutdown(context.Background()) //nolint:errcheck // best-effort on exit

	probe.SetPhase("forking")

	anvil, err := fork.Start(ctx, &fork.Config{
		BinPath:        cfg.AnvilBin,
		UpstreamRPC:    cfg.RPCURL,
		ForkBlock:      b.ForkBlock,
		Port:           cfg.AnvilPort,
		StartupTimeout: cfg.StartupTimeout,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("start fork: %w", err)
	}
	defer anvil.Close() //nolint:errcheck // kill failure on exit is unrecoverable

	key, err := signingKey(cfg, anvil)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}

	gateway, err := chain.NewEthGateway(ctx, &chain.Config{
		Endpoint: anvil.Endpoint(),
		Key:      key,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("connect gateway: %w", err)
	}
	defer gateway.Close()

	metaCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create metadata cache: %w", err)
	}
	defer metaCache.Close()

	meta := tokens.NewCachedMetadataClient(tokens.NewMetadataClient(gateway), metaCache)

	probe.SetPhase("seeding")

	err = seedTakerFunds(ctx, anvil, gateway, b, cfg.TakerSeedFactor, logger)
	if err != nil {
		return fmt.Errorf("seed taker funds: %w", err)
	}

	probe.SetPhase("executing")
	probe.SetReady(true)

	eng := engine.New(&engine.Config{
		Gateway:      gateway,
		SlippageBps:  cfg.SlippageBps,
		CallDeadline: cfg.CallDeadline,
		Logger:       logger,
	})

	report := eng.Run(ctx, b)
	holder.set(report)
	probe.SetPhase("done")

	store, err := newStorage(cfg, meta, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close() //nolint:errcheck // nothing left to do with a close error

	err = store.SaveReport(ctx, report)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	if serveHTTP {
		logger.Info("serving-report", zap.String("port", cfg.HTTPPort))
		waitForSignal()
	}

	if !report.Succeeded() {
		return fmt.Errorf("%d operation(s) did not confirm", report.Reverted()+report.Failed())
	}

	return nil
}

// signingKey picks the acting account: PRIVATE_KEY when configured, anvil's
// funded dev account otherwise.
func signingKey(cfg *config.Config, anvil *fork.Anvil) (*ecdsa.PrivateKey, error) {
	if cfg.PrivateKey == "" {
		return anvil.DefaultKey()
	}

	return crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
}

// seedTakerFunds funds and approves the acting account for every order fill
// in the batch. Fills pull the taker asset from the acting account, which the
// snapshot does not fund; seeding a multiple of each fill leaves headroom for
// price movement between quote and execution.
func seedTakerFunds(ctx context.Context, anvil *fork.Anvil, gateway chain.Gateway, b *batch.Batch, factor int64, logger *zap.Logger) error {
	needs := make(map[string]*big.Int)

	for i := range b.Items {
		item := &b.Items[i]
		if item.Op == nil || item.Kind != batch.KindOrder {
			continue
		}

		order := item.Op.Order

		fill := order.FillAmount
		if fill == nil || fill.Sign() == 0 {
			fill = order.TakingAmount
		}

		amount := new(big.Int).Mul(fill, big.NewInt(factor))
		key := order.TakerAsset.Hex()

		if prev, ok := needs[key]; ok {
			prev.Add(prev, amount)
		} else {
			needs[key] = amount
		}
	}

	for hexAddr, amount := range needs {
		token := common.HexToAddress(hexAddr)

		err := anvil.SetERC20Balance(ctx, token, gateway.Account(), amount)
		if err != nil {
			return fmt.Errorf("seed balance for %s: %w", hexAddr, err)
		}

		_, err = gateway.Approve(ctx, token, batch.OneInchRouter(), amount)
		if err != nil {
			return fmt.Errorf("approve %s: %w", hexAddr, err)
		}

		logger.Info("taker-seeded",
			zap.String("token", hexAddr),
			zap.String("amount", amount.String()))
	}

	return nil
}

// waitForSignal blocks until SIGINT or SIGTERM.
func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}

// newStorage builds the configured report sink.
func newStorage(cfg *config.Config, meta storage.MetadataFetcher, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		return storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
	}

	return storage.NewConsoleStorage(logger, meta), nil
}
