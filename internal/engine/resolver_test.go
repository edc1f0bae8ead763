package engine_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/dexsim/internal/batch"
	"github.com/mselser95/dexsim/internal/engine"
	"github.com/mselser95/dexsim/internal/testutil"
	"github.com/mselser95/dexsim/pkg/chain"
	"github.com/mselser95/dexsim/pkg/types"
)

func fixedClock() func() time.Time {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func newResolver(gw chain.Gateway, slippageBps int64) *engine.Resolver {
	return engine.NewResolver(&engine.ResolverConfig{
		Gateway:     gw,
		SlippageBps: slippageBps,
		Deadline:    20 * time.Minute,
		Logger:      zap.NewNop(),
		Now:         fixedClock(),
	})
}

func swapOp(amountIn int64) *batch.SwapOperation {
	return &batch.SwapOperation{
		TokenIn:           testutil.TokenA,
		TokenOut:          testutil.TokenB,
		AmountIn:          big.NewInt(amountIn),
		ExpectedAmountOut: big.NewInt(2000),
		Protocol:          batch.ProtocolPancakeV2,
	}
}

func orderOp() *batch.OrderOperation {
	return &batch.OrderOperation{
		Salt:         big.NewInt(42),
		Maker:        testutil.Maker,
		MakerAsset:   testutil.TokenA,
		TakerAsset:   testutil.TokenB,
		MakingAmount: big.NewInt(100),
		TakingAmount: big.NewInt(200),
		MakerTraits:  big.NewInt(0),
		Signature:    make([]byte, 65),
		FillAmount:   big.NewInt(0),
		TakerTraits:  big.NewInt(0),
		Offsets:      big.NewInt(0),
	}
}

func TestResolveSwap_ZeroAmount(t *testing.T) {
	gw := testutil.NewMockGateway(testutil.Taker)
	r := newResolver(gw, 0)

	_, err := r.ResolveSwap(context.Background(), swapOp(0))

	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, types.ReasonZeroAmount, ve.Reason)
	assert.Zero(t, gw.WriteCount(), "zero-amount swap must not touch the chain")
}

func TestResolveSwap_UnsupportedProtocol(t *testing.T) {
	gw := testutil.NewMockGateway(testutil.Taker)
	r := newResolver(gw, 0)

	op := swapOp(1000)
	op.Protocol = batch.ProtocolUniswapV3

	_, err := r.ResolveSwap(context.Background(), op)

	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, types.ReasonUnsupportedProtocol, ve.Reason)
}

func TestResolveSwap_InsufficientBalance(t *testing.T) {
	gw := testutil.NewMockGateway(testutil.Taker)
	gw.SetBalance(testutil.TokenA, testutil.Taker, big.NewInt(999))
	r := newResolver(gw, 0)

	_, err := r.ResolveSwap(context.Background(), swapOp(1000))

	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, types.ReasonInsufficientBalance, ve.Reason)
	assert.Zero(t, gw.WriteCount(), "a short balance must produce zero writes")
}

func TestResolveSwap_QuoteWins(t *testing.T) {
	router, _ := batch.ProtocolPancakeV2.Router()

	gw := testutil.NewMockGateway(testutil.Taker)
	gw.SetBalance(testutil.TokenA, testutil.Taker, big.NewInt(5000))
	gw.SetAllowance(testutil.TokenA, testutil.Taker, router, big.NewInt(5000))
	// The live quote disagrees with the declared expectation of 2000.
	gw.SetQuote([]common.Address{testutil.TokenA, testutil.TokenB}, []*big.Int{big.NewInt(1000), big.NewInt(1700)})

	r := newResolver(gw, 0)

	resolved, err := r.ResolveSwap(context.Background(), swapOp(1000))
	require.NoError(t, err)

	assert.Equal(t, int64(1700), resolved.QuotedOut.Int64())
	assert.Equal(t, int64(1700), resolved.AmountOutMin.Int64(),
		"at zero slippage the minimum is the live quote, not the declared expectation")
	assert.Equal(t, router, resolved.Router)
}

func TestResolveSwap_Slippage(t *testing.T) {
	router, _ := batch.ProtocolPancakeV2.Router()

	gw := testutil.NewMockGateway(testutil.Taker)
	gw.SetBalance(testutil.TokenA, testutil.Taker, big.NewInt(5000))
	gw.SetAllowance(testutil.TokenA, testutil.Taker, router, big.NewInt(5000))
	gw.SetQuote([]common.Address{testutil.TokenA, testutil.TokenB}, []*big.Int{big.NewInt(1000), big.NewInt(10000)})

	r := newResolver(gw, 50)

	resolved, err := r.ResolveSwap(context.Background(), swapOp(1000))
	require.NoError(t, err)

	assert.Equal(t, int64(9950), resolved.AmountOutMin.Int64())
}

func TestResolveSwap_ApprovesWhenAllowanceShort(t *testing.T) {
	router, _ := batch.ProtocolPancakeV2.Router()

	gw := testutil.NewMockGateway(testutil.Taker)
	gw.SetBalance(testutil.TokenA, testutil.Taker, big.NewInt(5000))
	gw.SetQuote([]common.Address{testutil.TokenA, testutil.TokenB}, []*big.Int{big.NewInt(1000), big.NewInt(900)})

	r := newResolver(gw, 0)

	_, err := r.ResolveSwap(context.Background(), swapOp(1000))
	require.NoError(t, err)

	require.Len(t, gw.ApproveCalls, 1)
	assert.Equal(t, testutil.TokenA, gw.ApproveCalls[0].Token)
	assert.Equal(t, router, gw.ApproveCalls[0].Spender)
	assert.Equal(t, int64(1000), gw.ApproveCalls[0].Amount.Int64())
}

func TestResolveSwap_ApprovalFailure(t *testing.T) {
	gw := testutil.NewMockGateway(testutil.Taker)
	gw.SetBalance(testutil.TokenA, testutil.Taker, big.NewInt(5000))
	gw.SetQuote([]common.Address{testutil.TokenA, testutil.TokenB}, []*big.Int{big.NewInt(1000), big.NewInt(900)})
	gw.ApproveErr = &types.SubmitError{Reason: "nonce gap", Err: errors.New("nonce gap")}

	r := newResolver(gw, 0)

	_, err := r.ResolveSwap(context.Background(), swapOp(1000))

	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, types.ReasonApprovalFailed, ve.Reason)
}

func TestResolveSwap_Idempotent(t *testing.T) {
	router, _ := batch.ProtocolPancakeV2.Router()

	gw := testutil.NewMockGateway(testutil.Taker)
	gw.SetBalance(testutil.TokenA, testutil.Taker, big.NewInt(5000))
	gw.SetAllowance(testutil.TokenA, testutil.Taker, router, big.NewInt(5000))
	gw.SetQuote([]common.Address{testutil.TokenA, testutil.TokenB}, []*big.Int{big.NewInt(1000), big.NewInt(900)})

	r := newResolver(gw, 25)

	first, err := r.ResolveSwap(context.Background(), swapOp(1000))
	require.NoError(t, err)

	second, err := r.ResolveSwap(context.Background(), swapOp(1000))
	require.NoError(t, err)

	// Same chain state, same clock: resolving twice is byte-identical and
	// performs no writes.
	assert.Equal(t, first.AmountOutMin, second.AmountOutMin)
	assert.Equal(t, first.Deadline, second.Deadline)
	assert.Equal(t, first.Path, second.Path)
	assert.Zero(t, gw.WriteCount())
}

func TestResolveOrder_ZeroAmounts(t *testing.T) {
	gw := testutil.NewMockGateway(testutil.Taker)
	r := newResolver(gw, 0)

	op := orderOp()
	op.MakingAmount = big.NewInt(0)

	_, err := r.ResolveOrder(context.Background(), op)

	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, types.ReasonZeroOrderAmount, ve.Reason)
}

func TestResolveOrder_Defaults(t *testing.T) {
	gw := testutil.NewMockGateway(testutil.Taker)
	r := newResolver(gw, 0)

	resolved, err := r.ResolveOrder(context.Background(), orderOp())
	require.NoError(t, err)

	assert.Equal(t, int64(200), resolved.FillAmount.Int64(), "fill defaults to the full taking amount")
	assert.Equal(t, batch.OneInchRouter(), resolved.Router)
	assert.True(t, resolved.PayToMaker, "zero receiver resolves to pay-the-maker")
	assert.True(t, resolved.OpenFill, "zero allowed sender resolves to open fill")
	assert.Zero(t, resolved.TakerTraits.Sign(), "no extension, no traits")
	assert.Empty(t, resolved.Args)
	assert.Zero(t, gw.WriteCount(), "order resolution performs no chain access")
}

func TestResolveOrder_ExplicitReceiver(t *testing.T) {
	gw := testutil.NewMockGateway(testutil.Taker)
	r := newResolver(gw, 0)

	op := orderOp()
	op.Receiver = testutil.TokenC
	op.AllowedSender = testutil.Taker
	op.FillAmount = big.NewInt(50)

	resolved, err := r.ResolveOrder(context.Background(), op)
	require.NoError(t, err)

	assert.False(t, resolved.PayToMaker)
	assert.False(t, resolved.OpenFill)
	assert.Equal(t, int64(50), resolved.FillAmount.Int64())
	assert.Equal(t, testutil.TokenC, resolved.Order.Receiver)
}

func TestResolveOrder_ExtensionTraits(t *testing.T) {
	gw := testutil.NewMockGateway(testutil.Taker)
	r := newResolver(gw, 0)

	op := orderOp()
	op.Offsets = big.NewInt(7)
	op.Interactions = []byte{0x01, 0x02, 0x03}

	resolved, err := r.ResolveOrder(context.Background(), op)
	require.NoError(t, err)

	// Extension is the 32-byte offsets word plus the interaction payload.
	require.Len(t, resolved.Args, 35)
	assert.Equal(t, byte(7), resolved.Args[31])
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, resolved.Args[32:])

	extLen := new(big.Int).Rsh(resolved.TakerTraits, 224)
	extLen.And(extLen, big.NewInt(0xFFFFFF))
	assert.Equal(t, int64(35), extLen.Int64(), "taker traits must declare the extension length")
}

func TestResolveOrder_PlaceholderSignatureAccepted(t *testing.T) {
	gw := testutil.NewMockGateway(testutil.Taker)
	r := newResolver(gw, 0)

	op := orderOp()
	op.Signature = []byte{0xde, 0xad}

	// Not a valid signature, but validity is the chain's decision: resolution
	// must pass it through instead of rejecting locally.
	resolved, err := r.ResolveOrder(context.Background(), op)
	require.NoError(t, err)
	assert.Equal(t, byte(0xde), resolved.Sig.R[0])
}
