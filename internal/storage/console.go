package storage

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/dexsim/internal/engine"
	"github.com/mselser95/dexsim/internal/tokens"
)

// MetadataFetcher resolves token display metadata for report rendering.
type MetadataFetcher interface {
	Fetch(ctx context.Context, token common.Address) *tokens.Metadata
}

// ConsoleStorage implements Storage by pretty-printing to console.
type ConsoleStorage struct {
	logger *zap.Logger
	meta   MetadataFetcher
}

// NewConsoleStorage creates a new console storage. meta may be nil, in which
// case amounts print in raw token units.
func NewConsoleStorage(logger *zap.Logger, meta MetadataFetcher) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger: logger,
		meta:   meta,
	}
}

// SaveReport pretty-prints a batch report to console.
func (c *ConsoleStorage) SaveReport(ctx context.Context, report *engine.Report) error {
	rule := "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

	fmt.Println("\n" + rule)
	fmt.Printf("📋 BATCH EXECUTION REPORT\n")
	fmt.Println(rule)
	fmt.Printf("Block:    %d\n", report.Block)
	fmt.Printf("Started:  %s\n", report.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration: %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	fmt.Printf("Result:   %d confirmed / %d reverted / %d failed (of %d)\n",
		report.Confirmed(), report.Reverted(), report.Failed(), report.Total())
	fmt.Println(rule)

	for _, o := range report.Outcomes {
		icon := "✅"
		if o.State != engine.StateConfirmed {
			icon = "❌"
		}

		fmt.Printf("%s [%d] %s  %s\n", icon, o.Index, o.Kind, o.State)
		if o.Reason != "" {
			fmt.Printf("     reason:     %s\n", o.Reason)
		}
		if o.Receipt != nil {
			fmt.Printf("     tx:         %s\n", o.Receipt.TxHash)
			fmt.Printf("     gas:        %d (block %d)\n", o.Receipt.GasUsed, o.Receipt.BlockNumber)
		}
		if o.QuotedOut != nil {
			fmt.Printf("     quoted out: %s\n", c.renderAmount(ctx, o.AssetOut, o.QuotedOut))
		}
		if o.DeclaredOut != nil {
			fmt.Printf("     expected:   %s (divergence %d bps)\n",
				c.renderAmount(ctx, o.AssetOut, o.DeclaredOut), o.DivergenceBps)
		}
		if o.Info != nil && o.Info.Hash != "" {
			fmt.Printf("     origin tx:  %s\n", o.Info.Hash)
		}
	}

	fmt.Println(rule)
	if report.Succeeded() {
		fmt.Printf("✅ All operations confirmed\n")
	} else {
		fmt.Printf("❌ %d operation(s) did not confirm\n", report.Reverted()+report.Failed())
	}
	fmt.Println(rule)

	return nil
}

// renderAmount formats a raw amount with the token's own symbol and precision
// when metadata is available.
func (c *ConsoleStorage) renderAmount(ctx context.Context, token common.Address, amount *big.Int) string {
	if c.meta == nil || token == (common.Address{}) {
		return amount.String()
	}

	meta := c.meta.Fetch(ctx, token)

	return tokens.FormatAmount(amount, meta.Decimals) + " " + meta.Symbol
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
