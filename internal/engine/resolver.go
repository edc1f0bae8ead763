package engine

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/dexsim/internal/batch"
	"github.com/mselser95/dexsim/pkg/chain"
	"github.com/mselser95/dexsim/pkg/types"
)

const bpsDenominator = 10_000

// ResolvedSwap carries everything submission needs for a pool swap. The
// minimum output is derived from the live quote, never from the descriptor's
// declared expectation.
type ResolvedSwap struct {
	Router       common.Address
	Path         []common.Address
	AmountIn     *big.Int
	AmountOutMin *big.Int
	QuotedOut    *big.Int
	Deadline     *big.Int
}

// ResolvedOrder carries everything submission needs for a limit order fill.
// PayToMaker and OpenFill record the resolved zero-address sentinels.
type ResolvedOrder struct {
	Router      common.Address
	Order       chain.LimitOrder
	Sig         chain.Signature
	FillAmount  *big.Int
	TakerTraits *big.Int
	Args        []byte
	PayToMaker  bool
	OpenFill    bool
}

// Resolver turns operations into validated, executable intents using only
// gateway reads (plus an approve when the allowance is short).
type Resolver struct {
	gateway     chain.Gateway
	account     common.Address
	slippageBps int64
	deadline    time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// ResolverConfig holds resolver construction parameters.
type ResolverConfig struct {
	Gateway     chain.Gateway
	SlippageBps int64         // tolerated drop below the live quote, default 0
	Deadline    time.Duration // per-call execution deadline
	Logger      *zap.Logger
	Now         func() time.Time // injectable clock, defaults to time.Now
}

// NewResolver creates a resolver acting as the gateway's account.
func NewResolver(cfg *ResolverConfig) *Resolver {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Resolver{
		gateway:     cfg.Gateway,
		account:     cfg.Gateway.Account(),
		slippageBps: cfg.SlippageBps,
		deadline:    cfg.Deadline,
		logger:      cfg.Logger,
		now:         now,
	}
}

// ResolveSwap validates a swap and produces its execution parameters.
// The live quote is authoritative: the descriptor's expected output is only
// compared for divergence reporting and never blocks execution by itself.
func (r *Resolver) ResolveSwap(ctx context.Context, op *batch.SwapOperation) (*ResolvedSwap, error) {
	if op.AmountIn == nil || op.AmountIn.Sign() == 0 {
		return nil, &types.ValidationError{Reason: types.ReasonZeroAmount}
	}

	if !op.Protocol.ConstantProduct() {
		return nil, &types.ValidationError{
			Reason: types.ReasonUnsupportedProtocol,
			Err:    fmt.Errorf("protocol %q has no swap path", op.Protocol),
		}
	}

	router, ok := op.Protocol.Router()
	if !ok {
		return nil, &types.ValidationError{
			Reason: types.ReasonUnsupportedProtocol,
			Err:    fmt.Errorf("no router for protocol %q", op.Protocol),
		}
	}

	balance, err := r.gateway.BalanceOf(ctx, op.TokenIn, r.account)
	if err != nil {
		return nil, err
	}

	if balance.Cmp(op.AmountIn) < 0 {
		r.logger.Warn("swap-balance-short",
			zap.String("token", op.TokenIn.Hex()),
			zap.String("balance", balance.String()),
			zap.String("amount-in", op.AmountIn.String()))
		return nil, &types.ValidationError{Reason: types.ReasonInsufficientBalance}
	}

	path := []common.Address{op.TokenIn, op.TokenOut}

	amounts, err := r.gateway.QuoteAmountsOut(ctx, router, op.AmountIn, path)
	if err != nil {
		return nil, err
	}

	quoted := amounts[len(amounts)-1]
	amountOutMin := applySlippage(quoted, r.slippageBps)

	allowance, err := r.gateway.Allowance(ctx, op.TokenIn, r.account, router)
	if err != nil {
		return nil, err
	}

	if allowance.Cmp(op.AmountIn) < 0 {
		_, err = r.gateway.Approve(ctx, op.TokenIn, router, op.AmountIn)
		if err != nil {
			return nil, &types.ValidationError{Reason: types.ReasonApprovalFailed, Err: err}
		}
	}

	return &ResolvedSwap{
		Router:       router,
		Path:         path,
		AmountIn:     op.AmountIn,
		AmountOutMin: amountOutMin,
		QuotedOut:    quoted,
		Deadline:     big.NewInt(r.now().Add(r.deadline).Unix()),
	}, nil
}

// ResolveOrder validates a limit order fill. No chain reads happen here
// beyond what fillOrderArgs itself performs; the signature is forwarded
// opaquely and left to the chain to verify.
func (r *Resolver) ResolveOrder(_ context.Context, op *batch.OrderOperation) (*ResolvedOrder, error) {
	if op.MakingAmount == nil || op.MakingAmount.Sign() == 0 ||
		op.TakingAmount == nil || op.TakingAmount.Sign() == 0 {
		return nil, &types.ValidationError{Reason: types.ReasonZeroOrderAmount}
	}

	// Zero receiver/allowed-sender are protocol sentinels, resolved to
	// "unset" here: the maker is paid, anyone may fill. They are never
	// compared or forwarded as literal transfer targets.
	payToMaker := op.Receiver == (common.Address{})
	openFill := op.AllowedSender == (common.Address{})

	fillAmount := op.FillAmount
	if fillAmount == nil || fillAmount.Sign() == 0 {
		fillAmount = op.TakingAmount
	}

	extension := extensionBlob(op.Offsets, op.Interactions)
	args := chain.BuildFillOrderArgs(nil, extension, nil)

	takerTraits := op.TakerTraits
	if takerTraits == nil || takerTraits.Sign() == 0 {
		takerTraits = chain.BuildTakerTraits(chain.TakerTraitsOptions{
			ExtensionLen: uint32(len(extension)),
		})
	}

	return &ResolvedOrder{
		Router: batch.OneInchRouter(),
		Order: chain.LimitOrder{
			Salt:         op.Salt,
			Maker:        op.Maker,
			Receiver:     op.Receiver,
			MakerAsset:   op.MakerAsset,
			TakerAsset:   op.TakerAsset,
			MakingAmount: op.MakingAmount,
			TakingAmount: op.TakingAmount,
			MakerTraits:  op.MakerTraits,
		},
		Sig:         chain.SplitSignature(op.Signature),
		FillAmount:  fillAmount,
		TakerTraits: takerTraits,
		Args:        args,
		PayToMaker:  payToMaker,
		OpenFill:    openFill,
	}, nil
}

// extensionBlob rebuilds the order extension: the offsets word followed by
// the interaction payload. Empty when the order carries neither.
func extensionBlob(offsets *big.Int, interactions []byte) []byte {
	if len(interactions) == 0 {
		return nil
	}

	blob := make([]byte, 32, 32+len(interactions))
	if offsets != nil {
		offsets.FillBytes(blob[:32])
	}

	return append(blob, interactions...)
}

// applySlippage lowers the quoted output by the tolerance in basis points.
// At the default 0 bps the minimum equals the live quote.
func applySlippage(quoted *big.Int, bps int64) *big.Int {
	if bps <= 0 {
		return new(big.Int).Set(quoted)
	}

	min := new(big.Int).Mul(quoted, big.NewInt(bpsDenominator-bps))
	return min.Div(min, big.NewInt(bpsDenominator))
}
