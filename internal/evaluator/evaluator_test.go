package evaluator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/hailam/goweiqi/internal/board"
	"github.com/hailam/goweiqi/internal/features"
	"github.com/hailam/goweiqi/internal/movefilter"
	"github.com/hailam/goweiqi/internal/tracker"
	"github.com/hailam/goweiqi/internal/weight"
)

func newStack(t *testing.T, size int) (*board.Position, *features.LocalShapeSet, *Evaluator) {
	t.Helper()
	pos := board.NewPosition(size, 0, board.KoSimple)
	set := features.NewLocalShapeSet(1, 1, size, false)
	reg := tracker.NewRegistry()
	root := reg.Create(set)
	w := weight.New(set.NumFeatures(), weight.DefaultBounds, 0.1)
	e := New(reg, root, w, movefilter.New(pos))
	e.Reset(pos)
	return pos, set, e
}

// identity recomputes eval = Σ occurrences·weight from the active set,
// the invariant the running value must track exactly.
func identity(e *Evaluator) float64 {
	a := e.Root().Active()
	var v float64
	for s := 0; s < a.Size(); s++ {
		if f, occ, ok := a.FeatureAt(s); ok {
			v += float64(occ) * e.Weights().Get(f)
		}
	}
	return v
}

func TestRunningValueTracksActiveSet(t *testing.T) {
	pos, _, e := newStack(t, 5)
	rng := rand.New(rand.NewSource(3))
	e.Weights().Randomise(-1, 1, rng)
	e.Reset(pos)

	script := []struct {
		p board.Point
		c board.Color
	}{
		{board.Point{X: 2, Y: 2}, board.White},
		{board.Point{X: 1, Y: 2}, board.Black},
		{board.Point{X: 3, Y: 2}, board.Black},
		{board.Point{X: 2, Y: 1}, board.Black},
		{board.Point{X: 2, Y: 3}, board.Black}, // captures
	}
	for i, s := range script {
		if _, err := e.PlayExecute(pos, board.PlayAt(s.p), s.c); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got, want := e.Value(), identity(e); math.Abs(got-want) > 1e-9 {
			t.Fatalf("step %d: running value %v, recomputed %v", i, got, want)
		}
	}
}

func TestUndoRoundTrip(t *testing.T) {
	pos, _, e := newStack(t, 5)
	rng := rand.New(rand.NewSource(5))
	e.Weights().Randomise(-1, 1, rng)
	e.Reset(pos)
	v0 := e.Value()

	script := []struct {
		p board.Point
		c board.Color
	}{
		{board.Point{X: 2, Y: 2}, board.White},
		{board.Point{X: 1, Y: 2}, board.Black},
		{board.Point{X: 3, Y: 2}, board.Black},
		{board.Point{X: 2, Y: 1}, board.Black},
		{board.Point{X: 2, Y: 3}, board.Black},
	}
	for _, s := range script {
		if _, err := e.PlayExecute(pos, board.PlayAt(s.p), s.c); err != nil {
			t.Fatalf("play: %v", err)
		}
	}
	for range script {
		if err := e.TakeBackUndo(pos); err != nil {
			t.Fatalf("undo: %v", err)
		}
	}
	if math.Abs(e.Value()-v0) > 1e-9 {
		t.Fatalf("value after full unwind = %v, want %v", e.Value(), v0)
	}
	if err := e.Root().Verify(pos); err != nil {
		t.Fatalf("tracker verify after unwind: %v", err)
	}
}

// TestEvaluateMoveMatchesCommit checks that the uncommitted candidate
// score equals the committed value, and that scoring a candidate
// leaves the running value and active set untouched.
func TestEvaluateMoveMatchesCommit(t *testing.T) {
	pos, _, e := newStack(t, 5)
	rng := rand.New(rand.NewSource(11))
	e.Weights().Randomise(-1, 1, rng)
	e.Reset(pos)

	p := board.Point{X: 1, Y: 3}
	before := e.Value()
	activeBefore := e.Root().Active().Clone()

	v, err := e.EvaluateMove(pos, p, board.Black)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if e.Value() != before {
		t.Fatal("EvaluateMove changed the running value")
	}
	if !e.Root().Active().Equal(activeBefore) {
		t.Fatal("EvaluateMove changed the active set")
	}

	if _, err := e.PlayExecute(pos, board.PlayAt(p), board.Black); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if e.Value() != v {
		t.Fatalf("committed value %v, evaluate promised %v", e.Value(), v)
	}
}

// TestDeltaCacheSurvivesDistantCommit exercises the per-(move,color)
// dirty bits: a committed move outside a candidate's window must keep
// its cached delta valid (observable because the cache returns a stale
// delta after the test perturbs a weight behind its back), while a
// reset recomputes.
func TestDeltaCacheSurvivesDistantCommit(t *testing.T) {
	pos, set, e := newStack(t, 5)
	cand := board.Point{X: 0, Y: 0}

	v1, err := e.EvaluateMove(pos, cand, board.Black)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v1 != 0 {
		t.Fatalf("zero weights should score 0, got %v", v1)
	}

	// Perturb the weight of the black-at-(0,0) feature. A recompute
	// would now see +1; the cache still holds delta 0.
	blackFeat := set.FeatureIndex(set.AnchorIndex(0, 0), int(board.Black))
	e.Weights().Set(blackFeat, 1)

	v2, err := e.EvaluateMove(pos, cand, board.Black)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v2 != 0 {
		t.Fatalf("expected the cached delta (0) to be reused, got %v", v2)
	}

	// Committing a far-away move (1x1 windows never overlap other
	// points) must not invalidate the cached candidate.
	if _, err := e.PlayExecute(pos, board.PlayAt(board.Point{X: 4, Y: 4}), board.White); err != nil {
		t.Fatalf("distant commit: %v", err)
	}
	v3, err := e.EvaluateMove(pos, cand, board.Black)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v3 != e.Value() {
		t.Fatalf("cached delta should still be 0 relative to the running value %v, got %v", e.Value(), v3)
	}

	// A reset drops the cache; the perturbed weight becomes visible.
	e.Reset(pos)
	v4, err := e.EvaluateMove(pos, cand, board.Black)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if want := e.Value() + 1; v4 != want {
		t.Fatalf("post-reset evaluate = %v, want recomputed %v", v4, want)
	}
}

func TestFindBestArgmaxArgmin(t *testing.T) {
	pos, set, e := newStack(t, 5)
	rng := rand.New(rand.NewSource(9))

	best := board.Point{X: 1, Y: 1}
	blackFeat := set.FeatureIndex(set.AnchorIndex(1, 1), int(board.Black))
	e.Weights().Set(blackFeat, 1)
	got, err := e.FindBest(pos, board.Black, rng)
	if err != nil {
		t.Fatalf("find best: %v", err)
	}
	if got.Pass || got.Move != best {
		t.Fatalf("black best = %+v, want %v", got, best)
	}

	worst := board.Point{X: 3, Y: 2}
	whiteFeat := set.FeatureIndex(set.AnchorIndex(3, 2), int(board.White))
	e.Weights().Set(whiteFeat, -1)
	got, err = e.FindBest(pos, board.White, rng)
	if err != nil {
		t.Fatalf("find best: %v", err)
	}
	if got.Pass || got.Move != worst {
		t.Fatalf("white best = %+v, want argmin at %v", got, worst)
	}
}
