package trainer

import (
	"math/rand"
	"testing"

	"github.com/hailam/goweiqi/internal/history"
	"github.com/hailam/goweiqi/internal/learning"
	"github.com/hailam/goweiqi/internal/weight"
)

// fill records one episode of n non-terminal states with eval = t,
// then terminates it with the given score.
func fill(t *testing.T, ring *history.Ring, n int, score float64, policy history.PolicyType) {
	t.Helper()
	ring.NewEpisode()
	for i := 0; i < n; i++ {
		st := history.State{
			Timestep: i, Eval: float64(i), Evaluated: true, Policy: policy,
			ActiveFeature: []int{0}, ActiveOccurrences: []int{1}, HasActive: true,
		}
		if err := ring.AppendState(st); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := ring.TerminateEpisode(score); err != nil {
		t.Fatalf("terminate: %v", err)
	}
}

func TestForwardPairsInterleaved(t *testing.T) {
	ring := history.New(4, 100)
	fill(t, ring, 4, 1, history.PolicyBest) // length 6 with terminals
	f := Forward{Config: Config{Gap: 1, Interleave: true, Replays: 1}}
	pairs := f.Pairs(ring, rand.New(rand.NewSource(1)))
	if len(pairs) != 5 {
		t.Fatalf("got %d pairs, want 5 for a 6-state episode with gap 1", len(pairs))
	}
	for i, p := range pairs {
		if p.T != i || p.TK != i+1 {
			t.Fatalf("pair %d = (%d,%d), want (%d,%d)", i, p.T, p.TK, i, i+1)
		}
	}
}

func TestForwardPairsStrided(t *testing.T) {
	ring := history.New(4, 100)
	fill(t, ring, 8, 1, history.PolicyBest) // length 10
	f := Forward{Config: Config{Gap: 3, Interleave: false, Replays: 1}}
	pairs := f.Pairs(ring, rand.New(rand.NewSource(2)))
	if len(pairs) == 0 {
		t.Fatal("expected at least one strided pair")
	}
	for i, p := range pairs {
		if p.TK != p.T+3 {
			t.Fatalf("pair %d gap = %d, want 3", i, p.TK-p.T)
		}
		if i > 0 && p.T != pairs[i-1].T+3 {
			t.Fatalf("non-interleaved pairs must step by the gap, got %d after %d", p.T, pairs[i-1].T)
		}
	}
	if pairs[0].T < 0 || pairs[0].T >= 3 {
		t.Fatalf("strided start offset %d outside [0,3)", pairs[0].T)
	}
}

func TestBackwardReversesForward(t *testing.T) {
	ring := history.New(4, 100)
	fill(t, ring, 4, 1, history.PolicyBest)
	cfg := Config{Gap: 1, Interleave: true, Replays: 1}
	fwd := Forward{Config: cfg}.Pairs(ring, rand.New(rand.NewSource(3)))
	bwd := Backward{Config: cfg}.Pairs(ring, rand.New(rand.NewSource(3)))
	if len(fwd) != len(bwd) {
		t.Fatalf("lengths differ: %d vs %d", len(fwd), len(bwd))
	}
	for i := range fwd {
		if fwd[i] != bwd[len(bwd)-1-i] {
			t.Fatalf("backward is not the reverse of forward at %d", i)
		}
	}
}

func TestRandomPairsInRange(t *testing.T) {
	ring := history.New(4, 100)
	fill(t, ring, 6, 1, history.PolicyBest) // length 8
	r := Random{Config: Config{Gap: 2, Replays: 20}}
	pairs := r.Pairs(ring, rand.New(rand.NewSource(4)))
	if len(pairs) != 20 {
		t.Fatalf("got %d pairs, want one per replay", len(pairs))
	}
	for _, p := range pairs {
		if p.T < 0 || p.TK != p.T+2 || p.TK >= 8 {
			t.Fatalf("pair (%d,%d) out of range for an 8-state episode", p.T, p.TK)
		}
	}
}

func TestRunTD0AppliesUpdates(t *testing.T) {
	ring := history.New(4, 100)
	ring.NewEpisode()
	_ = ring.AppendState(history.State{Timestep: 0, Eval: 0, Evaluated: true, Policy: history.PolicyBest,
		ActiveFeature: []int{0}, ActiveOccurrences: []int{1}, HasActive: true})
	_ = ring.AppendState(history.State{Timestep: 1, Eval: 1, Evaluated: true, Policy: history.PolicyBest,
		ActiveFeature: []int{1}, ActiveOccurrences: []int{1}, HasActive: true})
	_ = ring.TerminateEpisode(0)

	w := weight.New(2, weight.DefaultBounds, 0.1)
	rule := learning.TD0{Config: learning.Config{Alpha: 0.1}}
	total := RunTD0(ring, []Pair{{Episode: 0, T: 0, TK: 1}}, rule, w, 1)
	// delta = reward(0) + new(1) - old(0) = 1, applied to feature 0 only.
	if total != 1 {
		t.Fatalf("summed delta = %v, want 1", total)
	}
	if w.Get(0) != 0.1 {
		t.Fatalf("updated weight = %v, want alpha*delta = 0.1", w.Get(0))
	}
	if w.Get(1) != 0 {
		t.Fatal("feature 1 is not active at the paired state and should be untouched")
	}
}

func TestRunTD0SkipsOffPolicy(t *testing.T) {
	ring := history.New(4, 100)
	fill(t, ring, 4, 1, history.PolicyOff)
	w := weight.New(1, weight.DefaultBounds, 0.1)
	rule := learning.TD0{Config: learning.Config{Alpha: 0.1, OffPolicyOK: false}}
	pairs := Forward{Config: Config{Gap: 1, Interleave: true, Replays: 1}}.Pairs(ring, rand.New(rand.NewSource(6)))
	RunTD0(ring, pairs, rule, w, 1)
	if w.Get(0) != 0 {
		t.Fatal("weights must be untouched when every recorded move is off-policy")
	}
}

func TestRunMonteCarloUsesReturn(t *testing.T) {
	ring := history.New(4, 100)
	// Non-terminal rewards are zero, so the return is the final score
	// carried by the first terminal state.
	fill(t, ring, 2, 5, history.PolicyBest)
	if got := mustEpisode(t, ring).Return(); got != 5 {
		t.Fatalf("episode return = %v, want the final score 5", got)
	}
	w := weight.New(1, weight.DefaultBounds, 0.1)
	rule := learning.MonteCarlo{Config: learning.Config{Alpha: 1}}
	pairs := []Pair{{Episode: 0, T: 0, TK: 1}}
	RunMonteCarlo(ring, pairs, rule, w, 1)
	// delta = return(5) - eval(0) = 5, alpha 1, one occurrence.
	if w.Get(0) != 5 {
		t.Fatalf("weight = %v, want 5", w.Get(0))
	}
}

func mustEpisode(t *testing.T, ring *history.Ring) *history.Episode {
	t.Helper()
	ep, ok := ring.Episode(0)
	if !ok {
		t.Fatal("no recorded episode")
	}
	return ep
}

func TestRunTDLambdaWalksEpisode(t *testing.T) {
	ring := history.New(4, 100)
	fill(t, ring, 3, 2, history.PolicyBest)
	w := weight.New(1, weight.DefaultBounds, 0.1)
	rule := learning.TDLambda{Config: learning.Config{Alpha: 0.1, Lambda: 0.5, TraceMinAbs: 1e-9}}
	RunTDLambda(ring, 0, rule, w, 1)
	if w.Get(0) == 0 {
		t.Fatal("the always-active feature should have been updated")
	}
}
