package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/mselser95/dexsim/pkg/types"
)

// fallbackGasLimit is used when gas estimation fails for a reason other than
// an execution revert.
const fallbackGasLimit = 1_500_000

// EthGateway implements Gateway over a JSON-RPC endpoint using go-ethereum.
// Writes are serialized with a mutex so no two transactions from the acting
// account are ever in flight at once (nonce safety on the shared fork).
type EthGateway struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	logger  *zap.Logger

	erc20  abi.ABI
	router abi.ABI
	lop    abi.ABI

	writeMu sync.Mutex
}

// Config holds gateway construction parameters.
type Config struct {
	Endpoint string
	Key      *ecdsa.PrivateKey
	Logger   *zap.Logger
}

// NewEthGateway dials the endpoint and verifies it is reachable. An
// unreachable endpoint is the one batch-fatal error class: nothing can be
// executed without the chain.
func NewEthGateway(ctx context.Context, cfg *Config) (*EthGateway, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint cannot be empty")
	}
	if cfg.Key == nil {
		return nil, errors.New("signing key cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	client, err := ethclient.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain unreachable: %w", err)
	}

	erc20Parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse ERC20 ABI: %w", err)
	}

	routerParsed, err := abi.JSON(strings.NewReader(routerV2ABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse router ABI: %w", err)
	}

	lopParsed, err := abi.JSON(strings.NewReader(limitOrderABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse limit order ABI: %w", err)
	}

	from := crypto.PubkeyToAddress(cfg.Key.PublicKey)

	cfg.Logger.Info("gateway-connected",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("account", from.Hex()),
		zap.String("chain-id", chainID.String()))

	return &EthGateway{
		client:  client,
		key:     cfg.Key,
		from:    from,
		chainID: chainID,
		logger:  cfg.Logger,
		erc20:   erc20Parsed,
		router:  routerParsed,
		lop:     lopParsed,
	}, nil
}

// Account returns the acting account address.
func (g *EthGateway) Account() common.Address { return g.from }

// Close releases the RPC connection.
func (g *EthGateway) Close() {
	g.client.Close()
	g.logger.Info("gateway-closed")
}

// QuoteAmountsOut calls getAmountsOut on the router.
func (g *EthGateway) QuoteAmountsOut(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	out, err := g.read(ctx, router, g.router, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, &types.ReadError{Call: "getAmountsOut", Err: err}
	}

	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) == 0 {
		return nil, &types.ReadError{Call: "getAmountsOut", Err: errors.New("empty amounts")}
	}

	return amounts, nil
}

// BalanceOf reads an ERC-20 balance.
func (g *EthGateway) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := g.read(ctx, token, g.erc20, "balanceOf", owner)
	if err != nil {
		return nil, &types.ReadError{Call: "balanceOf", Err: err}
	}

	return out[0].(*big.Int), nil
}

// Allowance reads an ERC-20 allowance.
func (g *EthGateway) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := g.read(ctx, token, g.erc20, "allowance", owner, spender)
	if err != nil {
		return nil, &types.ReadError{Call: "allowance", Err: err}
	}

	return out[0].(*big.Int), nil
}

// TokenSymbol reads the ERC-20 symbol.
func (g *EthGateway) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	out, err := g.read(ctx, token, g.erc20, "symbol")
	if err != nil {
		return "", &types.ReadError{Call: "symbol", Err: err}
	}

	return out[0].(string), nil
}

// TokenDecimals reads the ERC-20 decimals.
func (g *EthGateway) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := g.read(ctx, token, g.erc20, "decimals")
	if err != nil {
		return 0, &types.ReadError{Call: "decimals", Err: err}
	}

	return out[0].(uint8), nil
}

// Approve submits an ERC-20 approve transaction.
func (g *EthGateway) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	data, err := g.erc20.Pack("approve", spender, amount)
	if err != nil {
		return nil, &types.SubmitError{Reason: fmt.Sprintf("pack approve: %v", err), Err: err}
	}

	return g.write(ctx, "approve", token, data)
}

// SwapExactTokensForTokens submits a V2-style swap through the router.
func (g *EthGateway) SwapExactTokensForTokens(ctx context.Context, router common.Address, amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) (*types.Receipt, error) {
	data, err := g.router.Pack("swapExactTokensForTokens", amountIn, amountOutMin, path, to, deadline)
	if err != nil {
		return nil, &types.SubmitError{Reason: fmt.Sprintf("pack swap: %v", err), Err: err}
	}

	return g.write(ctx, "swapExactTokensForTokens", router, data)
}

// FillOrderArgs submits a signed limit order fill through the router.
func (g *EthGateway) FillOrderArgs(ctx context.Context, router common.Address, order LimitOrder, sig Signature, amount, takerTraits *big.Int, args []byte) (*types.Receipt, error) {
	data, err := g.lop.Pack("fillOrderArgs", order.words(), sig.R, sig.VS, amount, takerTraits, args)
	if err != nil {
		return nil, &types.SubmitError{Reason: fmt.Sprintf("pack fillOrderArgs: %v", err), Err: err}
	}

	return g.write(ctx, "fillOrderArgs", router, data)
}

// read packs, executes and unpacks a constant call against target.
func (g *EthGateway) read(ctx context.Context, target common.Address, parsed abi.ABI, method string, callArgs ...interface{}) ([]interface{}, error) {
	start := time.Now()

	data, err := parsed.Pack(method, callArgs...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{
		From: g.from,
		To:   &target,
		Data: data,
	}

	result, err := g.client.CallContract(ctx, msg, nil)
	observeCall(method, err, start)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := parsed.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}

	return out, nil
}

// write signs and submits a transaction, waits for it to mine and classifies
// the outcome. Held under writeMu end to end: the fork state is a shared
// singleton and a second in-flight write would race the nonce.
func (g *EthGateway) write(ctx context.Context, method string, to common.Address, data []byte) (*types.Receipt, error) {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	start := time.Now()

	msg := ethereum.CallMsg{From: g.from, To: &to, Data: data}

	gasLimit, err := g.client.EstimateGas(ctx, msg)
	if err != nil {
		if reason, reverted := revertReason(err); reverted {
			observeCall(method, err, start)
			g.logger.Warn("write-reverted-at-estimation",
				zap.String("method", method),
				zap.String("reason", reason))
			return nil, &types.SubmitError{Reason: reason, Reverted: true, Err: err}
		}
		gasLimit = fallbackGasLimit
	}

	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		observeCall(method, err, start)
		return nil, &types.SubmitError{Reason: fmt.Sprintf("suggest gas price: %v", err), Err: err}
	}

	nonce, err := g.client.PendingNonceAt(ctx, g.from)
	if err != nil {
		observeCall(method, err, start)
		return nil, &types.SubmitError{Reason: fmt.Sprintf("fetch nonce: %v", err), Err: err}
	}

	tx := ethtypes.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(g.chainID), g.key)
	if err != nil {
		observeCall(method, err, start)
		return nil, &types.SubmitError{Reason: fmt.Sprintf("sign transaction: %v", err), Err: err}
	}

	err = g.client.SendTransaction(ctx, signed)
	if err != nil {
		observeCall(method, err, start)
		return nil, &types.SubmitError{Reason: fmt.Sprintf("send transaction: %v", err), Err: err}
	}

	receipt, err := bind.WaitMined(ctx, g.client, signed)
	observeCall(method, err, start)
	if err != nil {
		return nil, &types.SubmitError{Reason: fmt.Sprintf("wait mined: %v", err), TxHash: signed.Hash().Hex(), Err: err}
	}

	if receipt.Status == ethtypes.ReceiptStatusFailed {
		reason := g.replayForReason(ctx, msg, receipt.BlockNumber)
		g.logger.Warn("transaction-reverted",
			zap.String("method", method),
			zap.String("tx-hash", signed.Hash().Hex()),
			zap.String("reason", reason))
		return nil, &types.SubmitError{Reason: reason, Reverted: true, TxHash: signed.Hash().Hex()}
	}

	g.logger.Debug("transaction-confirmed",
		zap.String("method", method),
		zap.String("tx-hash", signed.Hash().Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
		zap.Uint64("gas-used", receipt.GasUsed))

	return &types.Receipt{
		TxHash:      signed.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// replayForReason re-executes a reverted transaction as a call at the block
// it mined in, to decode the revert reason. Best effort: an opaque marker is
// returned when the reason cannot be decoded.
func (g *EthGateway) replayForReason(ctx context.Context, msg ethereum.CallMsg, block *big.Int) string {
	_, err := g.client.CallContract(ctx, msg, block)
	if err == nil {
		return "execution reverted"
	}

	if reason, reverted := revertReason(err); reverted {
		return reason
	}

	return "execution reverted"
}

// revertReason extracts a decoded revert string from an RPC error, reporting
// whether the error actually carries revert data.
func revertReason(err error) (string, bool) {
	type dataError interface {
		ErrorData() interface{}
	}

	var de dataError
	if !errors.As(err, &de) {
		if strings.Contains(err.Error(), "execution reverted") {
			return err.Error(), true
		}
		return "", false
	}

	hexData, ok := de.ErrorData().(string)
	if !ok {
		return err.Error(), true
	}

	reason, uerr := abi.UnpackRevert(common.FromHex(hexData))
	if uerr != nil {
		return err.Error(), true
	}

	return reason, true
}

func observeCall(method string, err error, start time.Time) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	CallsTotal.WithLabelValues(method, status).Inc()
	CallDurationSeconds.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
