package engine

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/dexsim/internal/batch"
	"github.com/mselser95/dexsim/pkg/types"
)

// Outcome is the terminal record for one operation. Created exactly once;
// never updated after the operation reaches a terminal state.
type Outcome struct {
	Index         int                    `json:"index"`
	ID            string                 `json:"id"`
	Kind          batch.Kind             `json:"kind"`
	State         State                  `json:"state"`
	Reason        string                 `json:"reason,omitempty"`
	Receipt       *types.Receipt         `json:"receipt,omitempty"`
	QuotedOut     *big.Int               `json:"quoted_out,omitempty"`
	DeclaredOut   *big.Int               `json:"declared_out,omitempty"`
	DivergenceBps int64                  `json:"divergence_bps,omitempty"`
	AssetOut      common.Address         `json:"asset_out"` // token the taker receives
	Info          *batch.TransactionInfo `json:"transaction_info,omitempty"`
}

// Report collects terminal outcomes in insertion order. No operation's data
// is dropped regardless of how it ended.
type Report struct {
	Block      uint64     `json:"block"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Outcomes   []*Outcome `json:"outcomes"`
}

// Total is the number of operations in the batch.
func (r *Report) Total() int { return len(r.Outcomes) }

// Confirmed counts operations the chain accepted and executed.
func (r *Report) Confirmed() int { return r.countState(StateConfirmed) }

// Reverted counts operations the chain executed and rejected.
func (r *Report) Reverted() int { return r.countState(StateReverted) }

// Failed counts operations rejected before or during submission.
func (r *Report) Failed() int { return r.countState(StateFailed) }

// Succeeded reports whether the whole batch executed cleanly; this drives the
// CLI exit status.
func (r *Report) Succeeded() bool {
	return r.Failed()+r.Reverted() == 0
}

func (r *Report) countState(s State) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == s {
			n++
		}
	}

	return n
}

// add appends a terminal outcome, preserving insertion order.
func (r *Report) add(o *Outcome) {
	o.Index = len(r.Outcomes)
	r.Outcomes = append(r.Outcomes, o)
}

// divergenceBps measures how far the live quote strayed from the declared
// expectation, in basis points. Staleness is expected and reported, never
// enforced. Zero when either side is missing.
func divergenceBps(declared, quoted *big.Int) int64 {
	if declared == nil || quoted == nil || declared.Sign() == 0 {
		return 0
	}

	diff := new(big.Int).Sub(quoted, declared)
	diff.Abs(diff)
	diff.Mul(diff, big.NewInt(bpsDenominator))
	diff.Div(diff, declared)

	if !diff.IsInt64() {
		return int64(^uint64(0) >> 1)
	}

	return diff.Int64()
}
