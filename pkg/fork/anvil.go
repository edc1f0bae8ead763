package fork

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// devKeyHex is anvil's well-known dev account 0 private key, funded with ETH
// on every fork. Used as the default acting signer.
const devKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// Config holds fork process configuration.
type Config struct {
	BinPath        string // anvil binary, defaults to "anvil" on PATH
	UpstreamRPC    string // endpoint of the chain to fork
	ForkBlock      uint64 // snapshot point; 0 means latest
	Port           int
	StartupTimeout time.Duration
	Logger         *zap.Logger
}

// Anvil is a running forked-chain process. It is a scoped resource: callers
// must Close it on every exit path, including fatal aborts.
type Anvil struct {
	cmd      *exec.Cmd
	endpoint string
	rpc      *rpc.Client
	eth      *ethclient.Client
	logger   *zap.Logger
}

// Start spawns an anvil fork of the upstream chain and blocks until it
// answers eth_blockNumber or the startup timeout elapses. On any error the
// process is torn down before returning.
func Start(ctx context.Context, cfg *Config) (*Anvil, error) {
	if cfg.UpstreamRPC == "" {
		return nil, errors.New("upstream RPC cannot be empty")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	bin := cfg.BinPath
	if bin == "" {
		bin = "anvil"
	}

	port := cfg.Port
	if port == 0 {
		port = 8545
	}

	timeout := cfg.StartupTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	args := buildArgs(cfg.UpstreamRPC, cfg.ForkBlock, port)
	cmd := exec.Command(bin, args...)

	startedAt := time.Now()

	err := cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("start anvil: %w", err)
	}

	endpoint := "http://127.0.0.1:" + strconv.Itoa(port)

	cfg.Logger.Info("fork-starting",
		zap.String("endpoint", endpoint),
		zap.Uint64("fork-block", cfg.ForkBlock))

	rpcClient, err := waitHealthy(ctx, endpoint, timeout)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("fork health check: %w", err)
	}

	a := &Anvil{
		cmd:      cmd,
		endpoint: endpoint,
		rpc:      rpcClient,
		eth:      ethclient.NewClient(rpcClient),
		logger:   cfg.Logger,
	}

	StartupDurationSeconds.Observe(time.Since(startedAt).Seconds())

	cfg.Logger.Info("fork-ready", zap.String("endpoint", endpoint))

	return a, nil
}

// buildArgs assembles the anvil command line for a fork at a fixed block.
func buildArgs(upstream string, forkBlock uint64, port int) []string {
	args := []string{
		"--fork-url", upstream,
		"--port", strconv.Itoa(port),
		"--silent",
	}

	if forkBlock > 0 {
		args = append(args, "--fork-block-number", strconv.FormatUint(forkBlock, 10))
	}

	return args
}

// waitHealthy polls eth_blockNumber until the fork answers.
func waitHealthy(ctx context.Context, endpoint string, timeout time.Duration) (*rpc.Client, error) {
	deadline := time.Now().Add(timeout)

	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("fork did not become healthy within %s", timeout)
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		client, err := rpc.DialContext(ctx, endpoint)
		if err == nil {
			var blockHex string
			err = client.CallContext(ctx, &blockHex, "eth_blockNumber")
			if err == nil {
				return client, nil
			}
			client.Close()
		}

		time.Sleep(250 * time.Millisecond)
	}
}

// Endpoint returns the local RPC endpoint of the fork.
func (a *Anvil) Endpoint() string { return a.endpoint }

// DefaultKey returns anvil's funded dev account 0 key.
func (a *Anvil) DefaultKey() (*ecdsa.PrivateKey, error) {
	return DevKey()
}

// DevKey returns anvil's funded dev account 0 key without a running fork.
func DevKey() (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(devKeyHex)
}

// Close tears the fork process down. Safe to call from a defer on every exit
// path; the fork must not outlive the batch run.
func (a *Anvil) Close() error {
	a.logger.Info("fork-stopping")

	if a.rpc != nil {
		a.rpc.Close()
	}

	if a.cmd == nil || a.cmd.Process == nil {
		return nil
	}

	err := a.cmd.Process.Kill()
	if err != nil {
		return fmt.Errorf("kill anvil: %w", err)
	}

	_ = a.cmd.Wait()
	a.logger.Info("fork-stopped")

	return nil
}
