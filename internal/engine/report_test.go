package engine

import (
	"math/big"
	"testing"

	"github.com/mselser95/dexsim/internal/batch"
)

func TestReportCounts(t *testing.T) {
	r := &Report{}
	r.add(&Outcome{Kind: batch.KindSwap, State: StateConfirmed})
	r.add(&Outcome{Kind: batch.KindSwap, State: StateFailed})
	r.add(&Outcome{Kind: batch.KindOrder, State: StateReverted})
	r.add(&Outcome{Kind: batch.KindOrder, State: StateConfirmed})

	if r.Total() != 4 {
		t.Errorf("total: got %d", r.Total())
	}
	if r.Confirmed() != 2 {
		t.Errorf("confirmed: got %d", r.Confirmed())
	}
	if r.Reverted() != 1 {
		t.Errorf("reverted: got %d", r.Reverted())
	}
	if r.Failed() != 1 {
		t.Errorf("failed: got %d", r.Failed())
	}
	if r.Succeeded() {
		t.Error("a batch with failures did not succeed")
	}

	// Indexes follow insertion order.
	for i, o := range r.Outcomes {
		if o.Index != i {
			t.Errorf("outcome %d has index %d", i, o.Index)
		}
	}
}

func TestReportSucceeded(t *testing.T) {
	r := &Report{}
	r.add(&Outcome{State: StateConfirmed})
	r.add(&Outcome{State: StateConfirmed})

	if !r.Succeeded() {
		t.Error("all-confirmed batch should succeed")
	}

	// An empty batch has nothing to fail.
	if !(&Report{}).Succeeded() {
		t.Error("empty batch should succeed")
	}
}

func TestDivergenceBps(t *testing.T) {
	tests := []struct {
		name     string
		declared *big.Int
		quoted   *big.Int
		want     int64
	}{
		{"exact match", big.NewInt(1000), big.NewInt(1000), 0},
		{"one percent under", big.NewInt(1000), big.NewInt(990), 100},
		{"one percent over", big.NewInt(1000), big.NewInt(1010), 100},
		{"half lost", big.NewInt(1000), big.NewInt(500), 5000},
		{"nil declared", nil, big.NewInt(500), 0},
		{"nil quoted", big.NewInt(1000), nil, 0},
		{"zero declared", big.NewInt(0), big.NewInt(500), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := divergenceBps(tt.declared, tt.quoted)
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDivergenceBpsClampsToInt64(t *testing.T) {
	declared := big.NewInt(1)
	quoted := new(big.Int).Lsh(big.NewInt(1), 200)

	got := divergenceBps(declared, quoted)
	if got != int64(^uint64(0)>>1) {
		t.Errorf("expected clamp to MaxInt64, got %d", got)
	}
}
