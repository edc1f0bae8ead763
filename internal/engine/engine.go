package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mselser95/dexsim/internal/batch"
	"github.com/mselser95/dexsim/pkg/chain"
	"github.com/mselser95/dexsim/pkg/types"
)

// Engine drives a batch of operations through the per-operation lifecycle:
// Pending, Validating, Validated, Submitting, then one of the terminal
// Confirmed, Reverted or Failed. Operations run one at a time in insertion
// order: every write is signed by one acting account, and interleaved
// submissions from the same account race its nonce on the shared fork.
type Engine struct {
	gateway      chain.Gateway
	resolver     *Resolver
	callDeadline time.Duration
	logger       *zap.Logger
}

// Config holds engine construction parameters.
type Config struct {
	Gateway      chain.Gateway
	SlippageBps  int64         // tolerated drop below the live quote, default 0
	CallDeadline time.Duration // per-call execution deadline
	Logger       *zap.Logger
	Now          func() time.Time // injectable clock for resolution
}

// New creates an engine acting as the gateway's account.
func New(cfg *Config) *Engine {
	callDeadline := cfg.CallDeadline
	if callDeadline == 0 {
		callDeadline = 5 * time.Minute
	}

	return &Engine{
		gateway: cfg.Gateway,
		resolver: NewResolver(&ResolverConfig{
			Gateway:     cfg.Gateway,
			SlippageBps: cfg.SlippageBps,
			Deadline:    callDeadline,
			Logger:      cfg.Logger,
			Now:         cfg.Now,
		}),
		callDeadline: callDeadline,
		logger:       cfg.Logger,
	}
}

// Run executes the batch and returns the ordered report. The context carries
// the overall batch deadline: operations still pending or validating when it
// expires are marked failed without being submitted, while an operation
// already submitting runs to its natural terminal state. Per-operation
// failures never abort the batch.
func (e *Engine) Run(ctx context.Context, b *batch.Batch) *Report {
	report := &Report{
		Block:     b.Block,
		StartedAt: time.Now(),
		Outcomes:  make([]*Outcome, 0, len(b.Items)),
	}

	BatchesTotal.Inc()

	e.logger.Info("engine-starting",
		zap.Uint64("block", b.Block),
		zap.Int("operations", len(b.Items)))

	for i := range b.Items {
		start := time.Now()
		outcome := e.runOne(ctx, &b.Items[i])
		report.add(outcome)

		OperationsTotal.WithLabelValues(string(outcome.Kind), string(outcome.State)).Inc()
		OperationDurationSeconds.Observe(time.Since(start).Seconds())

		e.logger.Info("operation-finished",
			zap.Int("index", outcome.Index),
			zap.String("kind", string(outcome.Kind)),
			zap.String("state", string(outcome.State)),
			zap.String("reason", outcome.Reason))
	}

	report.FinishedAt = time.Now()

	e.logger.Info("engine-finished",
		zap.Int("total", report.Total()),
		zap.Int("confirmed", report.Confirmed()),
		zap.Int("reverted", report.Reverted()),
		zap.Int("failed", report.Failed()))

	return report
}

// runOne takes a single item from Pending to a terminal state. Every error is
// caught here and converted into a terminal outcome; nothing unwinds past one
// operation's processing.
func (e *Engine) runOne(ctx context.Context, item *batch.Item) *Outcome {
	if item.Err != nil {
		return &Outcome{
			ID:     uuid.NewString(),
			Kind:   item.Kind,
			State:  StateFailed,
			Reason: item.Err.Error(),
			Info:   item.Info,
		}
	}

	op := item.Op

	// Pending: a batch deadline that expired before validation began fails
	// the operation without submission.
	if ctx.Err() != nil {
		return &Outcome{
			ID:     op.ID,
			Kind:   op.Kind,
			State:  StateFailed,
			Reason: types.ReasonDeadlineExceeded,
			Info:   op.Info,
		}
	}

	switch op.Kind {
	case batch.KindSwap:
		return e.runSwap(ctx, op)
	case batch.KindOrder:
		return e.runOrder(ctx, op)
	default:
		return &Outcome{
			ID:     op.ID,
			Kind:   op.Kind,
			State:  StateFailed,
			Reason: "unknown operation kind",
			Info:   op.Info,
		}
	}
}

func (e *Engine) runSwap(ctx context.Context, op *batch.Operation) *Outcome {
	outcome := &Outcome{
		ID:          op.ID,
		Kind:        batch.KindSwap,
		DeclaredOut: op.Swap.ExpectedAmountOut,
		AssetOut:    op.Swap.TokenOut,
		Info:        op.Info,
	}

	state := e.advance(op.ID, StatePending, StateValidating)

	resolved, err := e.resolver.ResolveSwap(ctx, op.Swap)
	if err != nil {
		outcome.State = StateFailed
		outcome.Reason = failureReason(err)
		return outcome
	}

	outcome.QuotedOut = resolved.QuotedOut
	outcome.DivergenceBps = divergenceBps(outcome.DeclaredOut, resolved.QuotedOut)
	QuoteDivergenceBps.Observe(float64(outcome.DivergenceBps))

	// The batch deadline can expire while resolution reads are in flight.
	// An operation still validating at expiry must not reach the chain.
	if ctx.Err() != nil {
		outcome.State = StateFailed
		outcome.Reason = types.ReasonDeadlineExceeded
		return outcome
	}

	state = e.advance(op.ID, state, StateValidated)
	state = e.advance(op.ID, state, StateSubmitting)

	// Submission is not interruptible mid-flight: it detaches from the batch
	// deadline and runs under its own per-call deadline instead.
	subCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.callDeadline)
	defer cancel()

	receipt, err := e.gateway.SwapExactTokensForTokens(subCtx,
		resolved.Router, resolved.AmountIn, resolved.AmountOutMin,
		resolved.Path, e.gateway.Account(), resolved.Deadline)
	if err != nil {
		outcome.State, outcome.Reason = classifySubmit(err)
		return outcome
	}

	e.advance(op.ID, state, StateConfirmed)
	outcome.State = StateConfirmed
	outcome.Receipt = receipt

	return outcome
}

func (e *Engine) runOrder(ctx context.Context, op *batch.Operation) *Outcome {
	outcome := &Outcome{
		ID:          op.ID,
		Kind:        batch.KindOrder,
		DeclaredOut: op.Order.ExpectedAmountOut,
		AssetOut:    op.Order.MakerAsset,
		Info:        op.Info,
	}

	state := e.advance(op.ID, StatePending, StateValidating)

	resolved, err := e.resolver.ResolveOrder(ctx, op.Order)
	if err != nil {
		outcome.State = StateFailed
		outcome.Reason = failureReason(err)
		return outcome
	}

	if ctx.Err() != nil {
		outcome.State = StateFailed
		outcome.Reason = types.ReasonDeadlineExceeded
		return outcome
	}

	state = e.advance(op.ID, state, StateValidated)
	state = e.advance(op.ID, state, StateSubmitting)

	subCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.callDeadline)
	defer cancel()

	receipt, err := e.gateway.FillOrderArgs(subCtx,
		resolved.Router, resolved.Order, resolved.Sig,
		resolved.FillAmount, resolved.TakerTraits, resolved.Args)
	if err != nil {
		outcome.State, outcome.Reason = classifySubmit(err)
		return outcome
	}

	e.advance(op.ID, state, StateConfirmed)
	outcome.State = StateConfirmed
	outcome.Receipt = receipt

	return outcome
}

// advance moves the lifecycle forward, guarding against illegal transitions.
func (e *Engine) advance(id string, from, to State) State {
	if !from.CanTransition(to) {
		e.logger.Error("illegal-state-transition",
			zap.String("operation-id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		return from
	}

	e.logger.Debug("state-transition",
		zap.String("operation-id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	return to
}

// failureReason maps resolution errors onto report reasons.
func failureReason(err error) string {
	// A read cut short by the batch deadline is a deadline failure, not a
	// chain problem.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.ReasonDeadlineExceeded
	}

	var ve *types.ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}

	// Gateway read failures carry their call name; without the read the
	// operation cannot safely proceed.
	var re *types.ReadError
	if errors.As(err, &re) {
		return re.Error()
	}

	return err.Error()
}

// classifySubmit splits submission failures into Reverted (the chain executed
// and rejected) and Failed (never reached the chain).
func classifySubmit(err error) (State, string) {
	var se *types.SubmitError
	if errors.As(err, &se) {
		if se.Reverted {
			return StateReverted, se.Reason
		}
		return StateFailed, se.Reason
	}

	return StateFailed, err.Error()
}
