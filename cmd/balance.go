package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mselser95/dexsim/internal/tokens"
	"github.com/mselser95/dexsim/pkg/chain"
	"github.com/mselser95/dexsim/pkg/config"
	"github.com/mselser95/dexsim/pkg/fork"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Check an account's ERC-20 balance on a running fork",
	Long: `Read an ERC-20 balance directly from a running fork (or any RPC
endpoint) and print it with the token's own precision. Useful for
verifying seeded balances before running a batch.`,
	RunE: runBalanceCheck,
}

var (
	balanceRPC     string
	balanceToken   string
	balanceAccount string
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().StringVarP(&balanceRPC, "rpc", "r", "http://127.0.0.1:8545", "RPC endpoint")
	balanceCmd.Flags().StringVarP(&balanceToken, "token", "t", "", "ERC-20 token address (required)")
	balanceCmd.Flags().StringVarP(&balanceAccount, "account", "a", "", "Account to check (defaults to the acting account)")
	_ = balanceCmd.MarkFlagRequired("token")
}

func runBalanceCheck(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure is uninteresting

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gateway, err := dialGateway(ctx, balanceRPC, logger)
	if err != nil {
		return err
	}
	defer gateway.Close()

	token := common.HexToAddress(balanceToken)

	account := gateway.Account()
	if balanceAccount != "" {
		account = common.HexToAddress(balanceAccount)
	}

	balance, err := gateway.BalanceOf(ctx, token, account)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	meta := tokens.NewMetadataClient(gateway).Fetch(ctx, token)

	fmt.Printf("Account: %s\n", account.Hex())
	fmt.Printf("Token:   %s (%s)\n", token.Hex(), meta.Symbol)
	fmt.Printf("Balance: %s %s\n", tokens.FormatAmount(balance, meta.Decimals), meta.Symbol)

	return nil
}

// dialGateway connects a gateway using PRIVATE_KEY when set or anvil's dev
// account otherwise. The key only matters for writes; reads work either way.
func dialGateway(ctx context.Context, endpoint string, logger *zap.Logger) (*chain.EthGateway, error) {
	keyHex := os.Getenv("PRIVATE_KEY")

	var key *ecdsa.PrivateKey
	var err error
	if keyHex == "" {
		key, err = fork.DevKey()
	} else {
		key, err = crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	}
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}

	gateway, err := chain.NewEthGateway(ctx, &chain.Config{
		Endpoint: endpoint,
		Key:      key,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect gateway: %w", err)
	}

	return gateway, nil
}
