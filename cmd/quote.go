package cmd

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mselser95/dexsim/internal/batch"
	"github.com/mselser95/dexsim/internal/tokens"
	"github.com/mselser95/dexsim/pkg/config"
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Quote a swap against a running fork",
	Long: `Ask the router what a swap would currently return on a running fork
(or any RPC endpoint), without submitting anything. Useful for checking
how far pool state has moved from a batch's expectations.`,
	RunE: runQuote,
}

var (
	quoteRPC      string
	quoteTokenIn  string
	quoteTokenOut string
	quoteAmountIn string
	quoteProtocol string
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVarP(&quoteRPC, "rpc", "r", "http://127.0.0.1:8545", "RPC endpoint")
	quoteCmd.Flags().StringVar(&quoteTokenIn, "token-in", "", "Input token address (required)")
	quoteCmd.Flags().StringVar(&quoteTokenOut, "token-out", "", "Output token address (required)")
	quoteCmd.Flags().StringVar(&quoteAmountIn, "amount", "", "Input amount in raw token units (required)")
	quoteCmd.Flags().StringVar(&quoteProtocol, "protocol", "PancakeV2", "Swap protocol (Univ2 or PancakeV2)")
	_ = quoteCmd.MarkFlagRequired("token-in")
	_ = quoteCmd.MarkFlagRequired("token-out")
	_ = quoteCmd.MarkFlagRequired("amount")
}

func runQuote(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure is uninteresting

	protocol, ok := batch.ParseProtocol(quoteProtocol)
	if !ok || !protocol.ConstantProduct() {
		return fmt.Errorf("unsupported protocol %q", quoteProtocol)
	}

	router, _ := protocol.Router()

	amountIn, ok := new(big.Int).SetString(quoteAmountIn, 10)
	if !ok || amountIn.Sign() <= 0 {
		return fmt.Errorf("invalid amount %q", quoteAmountIn)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gateway, err := dialGateway(ctx, quoteRPC, logger)
	if err != nil {
		return err
	}
	defer gateway.Close()

	tokenIn := common.HexToAddress(quoteTokenIn)
	tokenOut := common.HexToAddress(quoteTokenOut)
	path := []common.Address{tokenIn, tokenOut}

	amounts, err := gateway.QuoteAmountsOut(ctx, router, amountIn, path)
	if err != nil {
		return fmt.Errorf("quote: %w", err)
	}

	meta := tokens.NewMetadataClient(gateway)
	inMeta := meta.Fetch(ctx, tokenIn)
	outMeta := meta.Fetch(ctx, tokenOut)

	quoted := amounts[len(amounts)-1]

	fmt.Printf("Router:  %s (%s)\n", router.Hex(), protocol)
	fmt.Printf("In:      %s %s\n", tokens.FormatAmount(amountIn, inMeta.Decimals), inMeta.Symbol)
	fmt.Printf("Out:     %s %s\n", tokens.FormatAmount(quoted, outMeta.Decimals), outMeta.Symbol)

	return nil
}
