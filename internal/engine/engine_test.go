package engine_test

import (
	"context"
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
	"github.com/mselser95/dexsim/pkg/types"
)

func newEngine(gw *testutil.MockGateway) *engine.Engine {
	return engine.New(&engine.Config{
		Gateway: gw,
		Logger:  zap.NewNop(),
		Now:     fixedClock(),
	})
}

func seededGateway(t *testing.T) *testutil.MockGateway {
	t.Helper()

	router, _ := batch.ProtocolPancakeV2.Router()

	gw := testutil.NewMockGateway(testutil.Taker)
	gw.SetBalance(testutil.TokenA, testutil.Taker, big.NewInt(1e18))
	gw.SetAllowance(testutil.TokenA, testutil.Taker, router, big.NewInt(1e18))
	gw.SetQuote([]common.Address{testutil.TokenA, testutil.TokenB},
		[]*big.Int{big.NewInt(1000), big.NewInt(1950)})

	return gw
}

func TestRun_ConfirmedSwap(t *testing.T) {
	gw := seededGateway(t)
	eng := newEngine(gw)

	swap := testutil.CreateTestSwap("1000")
	swap.ExpectedAmountOut = "2000"
	b := batch.Parse(testutil.CreateTestDocument(100, []batch.SwapDescriptor{swap}, nil))

	report := eng.Run(context.Background(), b)

	require.Equal(t, 1, report.Total())
	outcome := report.Outcomes[0]

	assert.Equal(t, engine.StateConfirmed, outcome.State)
	require.NotNil(t, outcome.Receipt)
	assert.NotEmpty(t, outcome.Receipt.TxHash)

	// The live quote, not the declared expectation, set the floor.
	require.Len(t, gw.SwapCalls, 1)
	assert.Equal(t, int64(1950), gw.SwapCalls[0].AmountOutMin.Int64())
	assert.Equal(t, testutil.Taker, gw.SwapCalls[0].To)

	// Divergence: |1950-2000| * 10000 / 2000 = 250 bps, reported not enforced.
	assert.Equal(t, int64(250), outcome.DivergenceBps)
	assert.Equal(t, testutil.TokenB, outcome.AssetOut)
	assert.True(t, report.Succeeded())
}

func TestRun_InsufficientBalanceProducesNoWrites(t *testing.T) {
	gw := testutil.NewMockGateway(testutil.Taker)
	gw.SetBalance(testutil.TokenA, testutil.Taker, big.NewInt(10))
	eng := newEngine(gw)

	b := batch.Parse(testutil.CreateTestDocument(100,
		[]batch.SwapDescriptor{testutil.CreateTestSwap("1000")}, nil))

	report := eng.Run(context.Background(), b)

	outcome := report.Outcomes[0]
	assert.Equal(t, engine.StateFailed, outcome.State)
	assert.Equal(t, types.ReasonInsufficientBalance, outcome.Reason)
	assert.Nil(t, outcome.Receipt)
	assert.Zero(t, gw.WriteCount(), "a validation failure must not submit anything")
}

func TestRun_RevertClassification(t *testing.T) {
	gw := seededGateway(t)
	gw.SwapErr = &types.SubmitError{
		Reason:   "Pancake: INSUFFICIENT_OUTPUT_AMOUNT",
		Reverted: true,
	}
	eng := newEngine(gw)

	b := batch.Parse(testutil.CreateTestDocument(100,
		[]batch.SwapDescriptor{testutil.CreateTestSwap("1000")}, nil))

	report := eng.Run(context.Background(), b)

	outcome := report.Outcomes[0]
	assert.Equal(t, engine.StateReverted, outcome.State)
	assert.Equal(t, "Pancake: INSUFFICIENT_OUTPUT_AMOUNT", outcome.Reason)
	assert.False(t, report.Succeeded())
}

func TestRun_SubmitFailureClassification(t *testing.T) {
	gw := seededGateway(t)
	gw.SwapErr = &types.SubmitError{Reason: "connection reset", Reverted: false}
	eng := newEngine(gw)

	b := batch.Parse(testutil.CreateTestDocument(100,
		[]batch.SwapDescriptor{testutil.CreateTestSwap("1000")}, nil))

	report := eng.Run(context.Background(), b)

	assert.Equal(t, engine.StateFailed, report.Outcomes[0].State)
	assert.Equal(t, "connection reset", report.Outcomes[0].Reason)
}

func TestRun_OrderFill(t *testing.T) {
	gw := testutil.NewMockGateway(testutil.Taker)
	eng := newEngine(gw)

	order := testutil.CreateTestOrder("100", "200")
	b := batch.Parse(testutil.CreateTestDocument(100, nil, []batch.OrderDescriptor{order}))

	report := eng.Run(context.Background(), b)

	outcome := report.Outcomes[0]
	assert.Equal(t, engine.StateConfirmed, outcome.State)

	require.Len(t, gw.FillCalls, 1)
	fill := gw.FillCalls[0]
	assert.Equal(t, batch.OneInchRouter(), fill.Router)
	assert.Equal(t, int64(200), fill.Amount.Int64(), "fill amount defaults to the taking amount")
	assert.Equal(t, testutil.Maker, fill.Order.Maker)
	assert.Equal(t, testutil.TokenA, outcome.AssetOut, "the taker receives the maker asset")
}

func TestRun_OrderFillReverted(t *testing.T) {
	gw := testutil.NewMockGateway(testutil.Taker)
	gw.FillErr = &types.SubmitError{Reason: "bad signature", Reverted: true}
	eng := newEngine(gw)

	order := testutil.CreateTestOrder("100", "200")
	b := batch.Parse(testutil.CreateTestDocument(100, nil, []batch.OrderDescriptor{order}))

	report := eng.Run(context.Background(), b)

	assert.Equal(t, engine.StateReverted, report.Outcomes[0].State)
	assert.Equal(t, "bad signature", report.Outcomes[0].Reason)
}

func TestRun_MalformedEntryReportedInPlace(t *testing.T) {
	gw := seededGateway(t)
	eng := newEngine(gw)

	bad := testutil.CreateTestSwap("1000")
	bad.TokenIn = "not-an-address"

	b := batch.Parse(testutil.CreateTestDocument(100,
		[]batch.SwapDescriptor{bad, testutil.CreateTestSwap("1000")}, nil))

	report := eng.Run(context.Background(), b)

	require.Equal(t, 2, report.Total())
	assert.Equal(t, engine.StateFailed, report.Outcomes[0].State)
	assert.Contains(t, report.Outcomes[0].Reason, "malformed")
	assert.Equal(t, engine.StateConfirmed, report.Outcomes[1].State,
		"a malformed entry must not block the rest of the batch")
}

func TestRun_ExpiredDeadlineFailsPendingOperations(t *testing.T) {
	gw := seededGateway(t)
	eng := newEngine(gw)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := batch.Parse(testutil.CreateTestDocument(100,
		[]batch.SwapDescriptor{testutil.CreateTestSwap("1000")}, nil))

	report := eng.Run(ctx, b)

	assert.Equal(t, engine.StateFailed, report.Outcomes[0].State)
	assert.Equal(t, types.ReasonDeadlineExceeded, report.Outcomes[0].Reason)
	assert.Zero(t, gw.WriteCount())
}

// cancelAfterAllowance expires the batch context during the last resolution
// read, leaving the operation mid-validation when resolve returns.
type cancelAfterAllowance struct {
	*testutil.MockGateway
	cancel context.CancelFunc
}

func (g *cancelAfterAllowance) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	g.cancel()
	return g.MockGateway.Allowance(ctx, token, owner, spender)
}

func TestRun_DeadlineDuringValidationBlocksSubmission(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := seededGateway(t)
	eng := engine.New(&engine.Config{
		Gateway: &cancelAfterAllowance{MockGateway: gw, cancel: cancel},
		Logger:  zap.NewNop(),
		Now:     fixedClock(),
	})

	b := batch.Parse(testutil.CreateTestDocument(100,
		[]batch.SwapDescriptor{testutil.CreateTestSwap("1000")}, nil))

	report := eng.Run(ctx, b)

	outcome := report.Outcomes[0]
	assert.Equal(t, engine.StateFailed, outcome.State)
	assert.Equal(t, types.ReasonDeadlineExceeded, outcome.Reason)
	assert.Empty(t, gw.SwapCalls, "an operation still validating at expiry must not be submitted")
}

func TestRun_CancelledReadReportsDeadline(t *testing.T) {
	gw := seededGateway(t)
	gw.BalanceErr = &types.ReadError{Call: "balanceOf", Err: context.Canceled}
	eng := newEngine(gw)

	b := batch.Parse(testutil.CreateTestDocument(100,
		[]batch.SwapDescriptor{testutil.CreateTestSwap("1000")}, nil))

	report := eng.Run(context.Background(), b)

	assert.Equal(t, engine.StateFailed, report.Outcomes[0].State)
	assert.Equal(t, types.ReasonDeadlineExceeded, report.Outcomes[0].Reason)
	assert.Zero(t, gw.WriteCount())
}

func TestRun_MixedBatchPreservesOrder(t *testing.T) {
	gw := seededGateway(t)
	eng := newEngine(gw)

	badOrder := testutil.CreateTestOrder("0", "0") // valid structurally, zero amounts
	order := testutil.CreateTestOrder("100", "200")

	b := batch.Parse(testutil.CreateTestDocument(100,
		[]batch.SwapDescriptor{testutil.CreateTestSwap("1000")},
		[]batch.OrderDescriptor{badOrder, order}))

	report := eng.Run(context.Background(), b)

	require.Equal(t, 3, report.Total())

	assert.Equal(t, batch.KindSwap, report.Outcomes[0].Kind)
	assert.Equal(t, engine.StateConfirmed, report.Outcomes[0].State)

	assert.Equal(t, batch.KindOrder, report.Outcomes[1].Kind)
	assert.Equal(t, engine.StateFailed, report.Outcomes[1].State)
	assert.Equal(t, types.ReasonZeroOrderAmount, report.Outcomes[1].Reason)

	assert.Equal(t, batch.KindOrder, report.Outcomes[2].Kind)
	assert.Equal(t, engine.StateConfirmed, report.Outcomes[2].State)

	// Indexes are stable insertion order.
	for i, o := range report.Outcomes {
		assert.Equal(t, i, o.Index)
		assert.NotEmpty(t, o.ID)
	}

	assert.WithinDuration(t, report.FinishedAt, report.StartedAt, time.Minute)
}
