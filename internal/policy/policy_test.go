package policy

import (
	"math/rand"
	"testing"

	"github.com/coder/quartz"

	"github.com/hailam/goweiqi/internal/board"
	"github.com/hailam/goweiqi/internal/movefilter"
)

type fakeFilter []board.Point

func (f fakeFilter) Moves() []board.Point { return f }

// fakeEval scores moves from a fixed table; black maximizes, white
// minimizes, mirroring the real evaluator's FindBest convention.
type fakeEval struct {
	values map[board.Point]float64
	base   float64
}

func (f fakeEval) EvaluateMove(_ *board.Position, m board.Point, _ board.Color) (float64, error) {
	return f.values[m], nil
}

func (f fakeEval) Value() float64 { return f.base }

func (f fakeEval) FindBest(_ *board.Position, c board.Color, _ *rand.Rand) (BestResult, error) {
	maximize := c == board.Black
	var best BestResult
	first := true
	for m, v := range f.values {
		if first || (maximize && v > best.Value) || (!maximize && v < best.Value) {
			best = BestResult{Move: m, Value: v}
			first = false
		}
	}
	if first {
		return BestResult{Pass: true}, nil
	}
	return best, nil
}

func (f fakeEval) PlayExecute(pos *board.Position, m board.Move, c board.Color) ([]board.Point, error) {
	return pos.Play(m, c)
}

func (f fakeEval) TakeBackUndo(pos *board.Position) error { return pos.Undo() }

// fixed is a stub policy always returning one move.
type fixed struct{ p board.Point }

func (f fixed) Select(*board.Position, board.Color, *rand.Rand) (Move, error) {
	return Move{Point: f.p}, nil
}

func TestGreedyPlaysBest(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	best := board.Point{X: 2, Y: 2}
	g := Greedy{Eval: fakeEval{values: map[board.Point]float64{
		best: 3, {X: 0, Y: 0}: 1,
	}}}
	mv, err := g.Select(pos, board.Black, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if mv.Pass || mv.Point != best || mv.Value != 3 {
		t.Fatalf("greedy selected %+v, want %v at value 3", mv, best)
	}
}

func TestRandomDrawsFromFilter(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	allowed := fakeFilter{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}}
	r := Random{Filter: allowed}
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 20; i++ {
		mv, err := r.Select(pos, board.Black, rng)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		found := false
		for _, a := range allowed {
			if mv.Point == a {
				found = true
			}
		}
		if !found {
			t.Fatalf("random selected %v outside the allowed set", mv.Point)
		}
	}
	empty := Random{Filter: fakeFilter{}}
	mv, _ := empty.Select(pos, board.Black, rng)
	if !mv.Pass {
		t.Fatal("no allowed moves should produce a pass")
	}
}

func TestEpsilonGreedyExtremes(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	pMove := board.Point{X: 0, Y: 0}
	nMove := board.Point{X: 4, Y: 4}
	rng := rand.New(rand.NewSource(3))

	always := EpsilonGreedy{P: fixed{pMove}, N: fixed{nMove}, Epsilon: 1}
	for i := 0; i < 5; i++ {
		mv, _ := always.Select(pos, board.Black, rng, i)
		if mv.Point != pMove {
			t.Fatalf("epsilon 1 must always explore, got %v", mv.Point)
		}
	}
	never := EpsilonGreedy{P: fixed{pMove}, N: fixed{nMove}, Epsilon: 0}
	for i := 0; i < 5; i++ {
		mv, _ := never.Select(pos, board.Black, rng, i)
		if mv.Point != nMove {
			t.Fatalf("epsilon 0 must never explore, got %v", mv.Point)
		}
	}
}

func TestAtTimestepAdapter(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	first := board.Point{X: 0, Y: 0}
	second := board.Point{X: 4, Y: 4}
	ts := TwoStage{First: fixed{first}, Second: fixed{second}, Schedule: LinearSwitch(2, 0)}
	tstep := 0
	p := AtTimestep{P: ts, T: &tstep}
	rng := rand.New(rand.NewSource(4))

	mv, _ := p.Select(pos, board.Black, rng)
	if mv.Point != first {
		t.Fatalf("t=0 should use the first policy, got %v", mv.Point)
	}
	tstep = 3
	mv, _ = p.Select(pos, board.Black, rng)
	if mv.Point != second {
		t.Fatalf("t=3 should use the second policy, got %v", mv.Point)
	}
}

func TestTwoStageBoundary(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	first := board.Point{X: 0, Y: 0}
	second := board.Point{X: 4, Y: 4}
	rng := rand.New(rand.NewSource(5))
	// Integral switch time: the boundary step has fractional part 0 and
	// must deterministically stay on the first policy.
	ts := TwoStage{First: fixed{first}, Second: fixed{second}, Schedule: LinearSwitch(2, 0)}
	for i := 0; i < 10; i++ {
		mv, _ := ts.Select(pos, board.Black, rng, 2)
		if mv.Point != first {
			t.Fatalf("boundary with zero fraction chose %v, want first policy", mv.Point)
		}
	}
}

func TestGibbsCollapsesOnCap(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	hot := board.Point{X: 1, Y: 1}
	cold := board.Point{X: 3, Y: 3}
	g := Gibbs{
		Eval:        fakeEval{values: map[board.Point]float64{hot: 100, cold: 0}},
		Filter:      fakeFilter{hot, cold},
		Temperature: 1,
		ExponentCap: 10,
	}
	for i := 0; i < 10; i++ {
		mv, err := g.Select(pos, board.Black, rand.New(rand.NewSource(int64(i))))
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if mv.Point != hot {
			t.Fatalf("over-cap Gibbs must collapse onto the argmax, got %v", mv.Point)
		}
	}
}

func TestPriorityFallsBack(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	fall := board.Point{X: 2, Y: 2}
	p := Priority{
		Try: func(*board.Position, board.Color, *rand.Rand) (Move, bool, error) {
			return Move{}, false, nil
		},
		Fallback: fixed{fall},
	}
	mv, err := p.Select(pos, board.Black, rand.New(rand.NewSource(6)))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if mv.Point != fall {
		t.Fatalf("null priority move should fall back, got %v", mv.Point)
	}
}

func TestAtariPolicyCaptures(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	setup := []struct {
		p board.Point
		c board.Color
	}{
		{board.Point{X: 2, Y: 2}, board.White},
		{board.Point{X: 1, Y: 2}, board.Black},
		{board.Point{X: 3, Y: 2}, board.Black},
		{board.Point{X: 2, Y: 1}, board.Black},
	}
	for _, s := range setup {
		if _, err := pos.Play(board.PlayAt(s.p), s.c); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	a := AtariPolicy{Filter: movefilter.New(pos)}
	mv, ok, err := a.Try(pos, board.Black, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("try: %v", err)
	}
	if !ok || mv.Point != (board.Point{X: 2, Y: 3}) {
		t.Fatalf("atari policy = %+v (%v), want the capture at (2,3)", mv, ok)
	}
}

func TestAtariPolicySavesGroup(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	if _, err := pos.Play(board.PlayAt(board.Point{X: 0, Y: 0}), board.Black); err != nil {
		t.Fatal(err)
	}
	if _, err := pos.Play(board.PlayAt(board.Point{X: 1, Y: 0}), board.White); err != nil {
		t.Fatal(err)
	}
	// Black (0,0) is in atari; extending to (0,1) reaches two liberties.
	a := AtariPolicy{Filter: movefilter.New(pos)}
	mv, ok, err := a.Try(pos, board.Black, rand.New(rand.NewSource(8)))
	if err != nil {
		t.Fatalf("try: %v", err)
	}
	if !ok || mv.Point != (board.Point{X: 0, Y: 1}) {
		t.Fatalf("atari policy = %+v (%v), want the saving extension at (0,1)", mv, ok)
	}
}

// scoreIfOccupied scores a playout +10 when the probe point got played,
// making the Monte-Carlo argmax observable without a real simulation.
type scoreIfOccupied struct{ probe board.Point }

func (s scoreIfOccupied) Simulate(pos *board.Position, _ board.Color, _ *rand.Rand, _ int) (float64, error) {
	if pos.Occupied(s.probe) {
		return 10, nil
	}
	return 0, nil
}

func TestMonteCarloPicksBestMean(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	target := board.Point{X: 1, Y: 1}
	mc := MonteCarlo{
		Eval:        fakeEval{},
		Filter:      fakeFilter{{X: 0, Y: 0}, target, {X: 3, Y: 3}},
		Sim:         scoreIfOccupied{probe: target},
		NumPlayouts: 2,
		Clock:       quartz.NewMock(t),
	}
	mv, err := mc.Select(pos, board.Black, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if mv.Pass || mv.Point != target {
		t.Fatalf("monte-carlo selected %+v, want %v", mv, target)
	}
	if mv.Value != 10 {
		t.Fatalf("mean score = %v, want 10", mv.Value)
	}
	if pos.MoveNumber() != 0 {
		t.Fatal("candidate probing must leave the position unchanged")
	}
}

func TestRandomPlayoutRestoresPosition(t *testing.T) {
	pos := board.NewPosition(3, 0, board.KoSimple)
	h0 := pos.Hash()
	score, err := RandomPlayout{}.Simulate(pos, board.Black, rand.New(rand.NewSource(10)), 30)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if pos.Hash() != h0 || pos.MoveNumber() != 0 {
		t.Fatal("playout must unwind every move it made")
	}
	_ = score
}
