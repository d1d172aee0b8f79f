// Package policy implements the move-selection strategies layered on
// top of an Evaluator and MoveFilter: greedy, ε-greedy (with
// an epsilon-decay variant), Gibbs sampling, a priority/atari policy
// with fallback, a Monte-Carlo simulation policy, two-stage switching
// (with logarithmic/linear switch-time schedules), and thin wrapper
// interfaces for externally provided playout and search engines.
package policy

import (
	"math"
	"math/rand"

	"github.com/coder/quartz"

	"github.com/hailam/goweiqi/internal/board"
)

// Move is a candidate move plus whatever value led to its selection.
type Move struct {
	Point board.Point
	Pass  bool
	Value float64
}

// Evaluator is the subset of evaluator.Evaluator a policy needs, kept
// narrow to avoid importing the evaluator package's move filter
// dependency here.
type Evaluator interface {
	FindBest(pos *board.Position, c board.Color, rng *rand.Rand) (BestResult, error)
	EvaluateMove(pos *board.Position, m board.Point, c board.Color) (float64, error)
	PlayExecute(pos *board.Position, m board.Move, c board.Color) ([]board.Point, error)
	TakeBackUndo(pos *board.Position) error
	Value() float64
}

// BestResult mirrors evaluator.BestResult, redeclared here so this
// package does not need to import evaluator just for the return type
// of FindBest (both are structurally identical and freely convertible).
type BestResult struct {
	Move  board.Point
	Value float64
	Pass  bool
}

// MoveFilter is the subset of movefilter.Filter a policy needs.
type MoveFilter interface {
	Moves() []board.Point
}

// Policy selects a move for c to play at pos.
type Policy interface {
	Select(pos *board.Position, c board.Color, rng *rand.Rand) (Move, error)
}

// Greedy always calls find_best and plays the returned move.
type Greedy struct{ Eval Evaluator }

func (g Greedy) Select(pos *board.Position, c board.Color, rng *rand.Rand) (Move, error) {
	best, err := g.Eval.FindBest(pos, c, rng)
	if err != nil {
		return Move{}, err
	}
	return Move{Point: best.Move, Pass: best.Pass, Value: best.Value}, nil
}

// Random picks uniformly among the filter's allowed moves, passing if
// none remain.
type Random struct{ Filter MoveFilter }

func (r Random) Select(pos *board.Position, c board.Color, rng *rand.Rand) (Move, error) {
	moves := r.Filter.Moves()
	if len(moves) == 0 {
		return Move{Pass: true}, nil
	}
	return Move{Point: moves[rng.Intn(len(moves))]}, nil
}

// Timestepped is a policy whose choice depends on the episode timestep
// (ε-greedy decay, two-stage switching). AtTimestep adapts one back to
// the plain Policy interface.
type Timestepped interface {
	Select(pos *board.Position, c board.Color, rng *rand.Rand, t int) (Move, error)
}

// AtTimestep adapts a Timestepped policy to Policy by reading the
// current timestep through a caller-owned counter.
type AtTimestep struct {
	P Timestepped
	T *int
}

func (a AtTimestep) Select(pos *board.Position, c board.Color, rng *rand.Rand) (Move, error) {
	return a.P.Select(pos, c, rng, *a.T)
}

// EpsilonGreedy plays P with probability Epsilon, else N. Decay enables the per-move probability
// (1-epsilon)^(t+1) variant in place of a fixed Epsilon.
type EpsilonGreedy struct {
	P, N    Policy
	Epsilon float64
	Decay   bool
}

// Select chooses between P and N for timestep t (only consulted when
// Decay is set).
func (e EpsilonGreedy) Select(pos *board.Position, c board.Color, rng *rand.Rand, t int) (Move, error) {
	eps := e.Epsilon
	if e.Decay {
		eps = math.Pow(1-e.Epsilon, float64(t+1))
	}
	if rng.Float64() < eps {
		return e.P.Select(pos, c, rng)
	}
	return e.N.Select(pos, c, rng)
}

// Gibbs samples among every allowed move (plus pass, when AllowPass is
// set) weighted by exp((sign*eval - mean)/Temperature), with an
// optional mean subtraction and an exponent-cap collapse onto the
// argmax.
type Gibbs struct {
	Eval         Evaluator
	Filter       MoveFilter
	Temperature  float64
	SubtractMean bool
	ExponentCap  float64 // collapse to argmax if any exponent would exceed this
	AllowPass    bool
}

func (g Gibbs) Select(pos *board.Position, c board.Color, rng *rand.Rand) (Move, error) {
	moves := g.Filter.Moves()
	if len(moves) == 0 {
		return Move{Pass: true}, nil
	}
	sign := 1.0
	if c == board.White {
		sign = -1
	}
	passAt := -1
	values := make([]float64, len(moves))
	for i, m := range moves {
		v, err := g.Eval.EvaluateMove(pos, m, c)
		if err != nil {
			return Move{}, err
		}
		values[i] = sign * v
	}
	if g.AllowPass {
		// Passing keeps the position as-is, so its candidate value is
		// the current evaluation.
		passAt = len(moves)
		moves = append(moves, board.NoPoint)
		values = append(values, sign*g.Eval.Value())
	}
	mean := 0.0
	if g.SubtractMean {
		for _, v := range values {
			mean += v
		}
		mean /= float64(len(values))
	}
	exponents := make([]float64, len(values))
	maxExp := math.Inf(-1)
	maxIdx := 0
	overCap := false
	for i, v := range values {
		e := (v - mean) / g.Temperature
		exponents[i] = e
		if e > maxExp {
			maxExp = e
			maxIdx = i
		}
		if g.ExponentCap > 0 && e > g.ExponentCap {
			overCap = true
		}
	}
	if overCap {
		return gibbsMove(moves, values, maxIdx, passAt), nil
	}
	weights := make([]float64, len(exponents))
	var total float64
	for i, e := range exponents {
		w := math.Exp(e - maxExp)
		weights[i] = w
		total += w
	}
	r := rng.Float64() * total
	var cum float64
	for i, w := range weights {
		cum += w
		if r <= cum {
			return gibbsMove(moves, values, i, passAt), nil
		}
	}
	return gibbsMove(moves, values, len(moves)-1, passAt), nil
}

func gibbsMove(moves []board.Point, values []float64, i, passAt int) Move {
	if i == passAt {
		return Move{Pass: true, Value: values[i]}
	}
	return Move{Point: moves[i], Value: values[i]}
}

// Priority tries Try first; if it returns no move (the null move),
// falls back to Fallback.
type Priority struct {
	Try      func(pos *board.Position, c board.Color, rng *rand.Rand) (Move, bool, error)
	Fallback Policy
}

func (p Priority) Select(pos *board.Position, c board.Color, rng *rand.Rand) (Move, error) {
	if m, ok, err := p.Try(pos, c, rng); err != nil {
		return Move{}, err
	} else if ok {
		return m, nil
	}
	return p.Fallback.Select(pos, c, rng)
}

// AtariPolicy returns the largest capture or capture-saving move, by
// stone count, constrained so a saving move must bring the saved
// group to at least MinSaveLiberties liberties; otherwise it reports
// no move. This is a from-scratch definition
// against the stated rule rather than a reconstruction of any
// undocumented upstream heuristic.
type AtariPolicy struct {
	Filter           MoveFilter
	MinSaveLiberties int
}

func neighborsIn(pos *board.Position, p board.Point) []board.Point {
	cand := [4]board.Point{{X: p.X - 1, Y: p.Y}, {X: p.X + 1, Y: p.Y}, {X: p.X, Y: p.Y - 1}, {X: p.X, Y: p.Y + 1}}
	out := make([]board.Point, 0, 4)
	for _, n := range cand {
		if pos.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

// Try implements the Priority.Try signature: it plays each candidate
// hypothetically (Play/Undo) and measures stones captured or the
// liberty count of any own group it rescues from atari.
func (a AtariPolicy) Try(pos *board.Position, c board.Color, rng *rand.Rand) (Move, bool, error) {
	minLibs := a.MinSaveLiberties
	if minLibs <= 0 {
		minLibs = 2
	}
	moves := a.Filter.Moves()
	bestSize := 0
	var best board.Point
	found := false
	for _, p := range moves {
		size, ok, err := a.score(pos, p, c, minLibs)
		if err != nil {
			return Move{}, false, err
		}
		if ok && size > bestSize {
			bestSize = size
			best = p
			found = true
		}
	}
	if !found {
		return Move{}, false, nil
	}
	return Move{Point: best}, true, nil
}

// score plays candidate p as c and reports the larger of: the number
// of enemy stones captured, or the stone count of any own group at p
// that was in atari before the move and reaches at least minLibs
// liberties after it.
func (a AtariPolicy) score(pos *board.Position, p board.Point, c board.Color, minLibs int) (int, bool, error) {
	var rescued int
	for _, n := range neighborsIn(pos, p) {
		// Counting up to 2 liberties distinguishes a group actually in
		// atari from a healthy one; a 1-capped count is 1 for both.
		if pos.ColorAt(n) == c && pos.NumLibertiesAtMost(n, 2) <= 1 {
			if s := len(pos.BlockStones(n)); s > rescued {
				rescued = s
			}
		}
	}
	captured, err := pos.Play(board.PlayAt(p), c)
	if err != nil {
		return 0, false, nil
	}
	savedLibs := pos.NumLibertiesAtMost(p, minLibs)
	if err := pos.Undo(); err != nil {
		return 0, false, err
	}
	best := len(captured)
	if rescued > 0 && savedLibs >= minLibs && rescued > best {
		best = rescued
	}
	return best, best > 0, nil
}

// Simulator runs a single random (or policy-driven) playout from pos to
// completion or MAX_SIM_MOVES, returning the score from Black's
// perspective, clamping silently at the move cap.
type Simulator interface {
	Simulate(pos *board.Position, c board.Color, rng *rand.Rand, maxMoves int) (float64, error)
}

// MonteCarlo plays each allowed move, runs NumPlayouts simulations from
// the resulting position, and picks the move whose mean Black-perspective
// score is highest for Black (lowest for White).
type MonteCarlo struct {
	Eval        Evaluator
	Filter      MoveFilter
	Sim         Simulator
	NumPlayouts int
	MaxMoves    int
	Clock       quartz.Clock // injectable for deterministic time-budget tests
	Budget      int64        // nanoseconds; zero means unbounded
}

func (mc MonteCarlo) clock() quartz.Clock {
	if mc.Clock != nil {
		return mc.Clock
	}
	return quartz.NewReal()
}

func (mc MonteCarlo) Select(pos *board.Position, c board.Color, rng *rand.Rand) (Move, error) {
	moves := mc.Filter.Moves()
	if len(moves) == 0 {
		return Move{Pass: true}, nil
	}
	clk := mc.clock()
	start := clk.Now()
	maximize := c == board.Black
	var best Move
	bestSet := false
	for _, m := range moves {
		if mc.Budget > 0 && clk.Since(start).Nanoseconds() > mc.Budget {
			break
		}
		captured, err := pos.Play(board.PlayAt(m), c)
		if err != nil {
			continue
		}
		var total float64
		n := mc.NumPlayouts
		if n <= 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			score, err := mc.Sim.Simulate(pos, c.Other(), rng, mc.MaxMoves)
			if err == nil {
				total += score
			}
		}
		mean := total / float64(n)
		_ = captured
		if err := pos.Undo(); err != nil {
			return Move{}, err
		}
		switch {
		case !bestSet:
			best = Move{Point: m, Value: mean}
			bestSet = true
		case maximize && mean > best.Value, !maximize && mean < best.Value:
			best = Move{Point: m, Value: mean}
		}
	}
	if !bestSet {
		return Move{Pass: true}, nil
	}
	return best, nil
}

// SwitchSchedule computes the timestep at which a TwoStage policy
// switches from its first to its second policy, as a function of the
// number of episodes played so far.
type SwitchSchedule func(episodesPlayed int) float64

// LinearSwitch returns a schedule switch(n) = a + b*n.
func LinearSwitch(a, b float64) SwitchSchedule {
	return func(n int) float64 { return a + b*float64(n) }
}

// LogSwitch returns a schedule switch(n) = a + b*log(1+n).
func LogSwitch(a, b float64) SwitchSchedule {
	return func(n int) float64 { return a + b*math.Log(1+float64(n)) }
}

// TwoStage uses First while t < floor(switch), Second after; the
// fractional part of switch is resolved probabilistically on the
// boundary timestep.
type TwoStage struct {
	First, Second  Policy
	Schedule       SwitchSchedule
	EpisodesPlayed int
}

// Select picks First or Second for timestep t, per the switch
// schedule evaluated at the current episode count.
func (ts TwoStage) Select(pos *board.Position, c board.Color, rng *rand.Rand, t int) (Move, error) {
	sw := ts.Schedule(ts.EpisodesPlayed)
	floor := math.Floor(sw)
	frac := sw - floor
	switch {
	case float64(t) < floor:
		return ts.First.Select(pos, c, rng)
	case float64(t) > floor:
		return ts.Second.Select(pos, c, rng)
	default:
		if rng.Float64() < frac {
			return ts.Second.Select(pos, c, rng)
		}
		return ts.First.Select(pos, c, rng)
	}
}

// FuegoPlayout is a wrapper interface for an external playout engine's
// move choice; defined here only by its interface, the engine itself
// lives elsewhere.
type FuegoPlayout interface {
	Playout(pos *board.Position, c board.Color, rng *rand.Rand) (board.Point, bool, error)
}

// FuegoPolicy adapts a FuegoPlayout into a Policy.
type FuegoPolicy struct{ Engine FuegoPlayout }

func (f FuegoPolicy) Select(pos *board.Position, c board.Color, rng *rand.Rand) (Move, error) {
	p, ok, err := f.Engine.Playout(pos, c, rng)
	if err != nil {
		return Move{}, err
	}
	if !ok {
		return Move{Pass: true}, nil
	}
	return Move{Point: p}, nil
}

// SearchEngine is a wrapper interface for an alpha-beta search's
// principal-variation first move; defined here only by its interface,
// the search itself lives elsewhere.
type SearchEngine interface {
	BestMove(pos *board.Position, c board.Color) (board.Point, bool, error)
}

// SearchPolicy adapts a SearchEngine into a Policy.
type SearchPolicy struct{ Engine SearchEngine }

func (s SearchPolicy) Select(pos *board.Position, c board.Color, rng *rand.Rand) (Move, error) {
	p, ok, err := s.Engine.BestMove(pos, c)
	if err != nil {
		return Move{}, err
	}
	if !ok {
		return Move{Pass: true}, nil
	}
	return Move{Point: p}, nil
}
