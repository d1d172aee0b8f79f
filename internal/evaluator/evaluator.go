// Package evaluator implements the linear value function: it drives a
// root tracker, maintains a running dot-product evaluation as moves
// are played and undone, and scores candidate moves for the policies
// in package policy without ever committing them to the board.
package evaluator

import (
	"math/rand"

	"github.com/hailam/goweiqi/internal/board"
	"github.com/hailam/goweiqi/internal/tracker"
	"github.com/hailam/goweiqi/internal/weight"
)

// MoveFilter is the subset of movefilter.Filter the evaluator needs to
// drive FindBest (kept as a narrow interface here to avoid an
// import cycle between evaluator and movefilter).
type MoveFilter interface {
	Moves() []board.Point
	Execute(pos *board.Position, played board.Point, captured []board.Point)
	Undo()
}

// dirtyTracker is implemented by root trackers that carry a
// per-(move,color) dirty set (the local-shape tracker, and the shared
// tracker forwarding its child's). When the root provides one, cached
// candidate deltas survive committed moves that cannot have affected
// them; otherwise the whole cache is dropped on every commit.
type dirtyTracker interface {
	Dirty() *tracker.DirtySet
}

type cacheKey struct {
	point board.Point
	color board.Color
}

// Evaluator owns one root tracker, a weight set, a move filter, and the
// running scalar value.
type Evaluator struct {
	Registry *tracker.Registry
	root     tracker.Tracker
	weights  *weight.Set
	filter   MoveFilter

	eval float64

	deltaCache map[cacheKey]float64
	dirty      *tracker.DirtySet // nil when the root has no dirty set
}

// New builds an evaluator over root (already constructed from reg) and
// weights. filter may be nil if the caller only needs Execute/Undo
// (e.g. a simulation sub-evaluator with its own filter wiring).
func New(reg *tracker.Registry, root tracker.Tracker, weights *weight.Set, filter MoveFilter) *Evaluator {
	e := &Evaluator{Registry: reg, root: root, weights: weights, filter: filter, deltaCache: make(map[cacheKey]float64)}
	if dt, ok := root.(dirtyTracker); ok {
		e.dirty = dt.Dirty()
	}
	return e
}

// Weights returns the underlying weight table.
func (e *Evaluator) Weights() *weight.Set { return e.weights }

// Root returns the root tracker.
func (e *Evaluator) Root() tracker.Tracker { return e.root }

// Value returns the current running evaluation.
func (e *Evaluator) Value() float64 { return e.eval }

func (e *Evaluator) sumDelta(cl tracker.ChangeList) float64 {
	var d float64
	for _, c := range cl {
		d += float64(c.Delta) * e.weights.Get(c.Feature)
	}
	return d
}

// Reset fully rebuilds the tracker and recomputes eval from scratch
// . The tracker's Reset marks every dirty bit itself.
func (e *Evaluator) Reset(pos *board.Position) {
	e.Registry.BeginTick()
	e.root.Reset(pos)
	e.eval = e.sumFromActive()
	e.deltaCache = make(map[cacheKey]float64)
}

func (e *Evaluator) sumFromActive() float64 {
	a := e.root.Active()
	var v float64
	for s := 0; s < a.Size(); s++ {
		f, occ, ok := a.FeatureAt(s)
		if ok {
			v += float64(occ) * e.weights.Get(f)
		}
	}
	return v
}

// Execute applies a move to the evaluator's running state. If real is
// true the move is a committed board-level change and this performs a
// full reset; otherwise it
// incrementally updates the tracker and eval, without persisting an undo
// record the caller can later pop via the tracker's own undo stack
// unless store is also requested by the caller via commit/store.
func (e *Evaluator) Execute(pos *board.Position, m board.Move, c board.Color, real, commit, store bool) {
	if real {
		e.Reset(pos)
		return
	}
	e.Registry.BeginTick()
	cl := e.root.Execute(pos, m, c, commit, store)
	e.eval += e.sumDelta(cl)
	if commit && e.dirty == nil {
		// No per-(move,color) dirty bits to lean on: conservatively
		// drop every cached delta. With a dirty set, the tracker has
		// already marked the affected candidates during Execute.
		e.deltaCache = make(map[cacheKey]float64)
	}
}

// Undo reverses the most recent committed Execute, updating eval by the
// negated change list.
func (e *Evaluator) Undo() error {
	e.Registry.BeginTick()
	cl, err := e.root.Undo()
	if err != nil {
		return err
	}
	e.eval += e.sumDelta(cl)
	e.deltaCache = make(map[cacheKey]float64)
	if e.dirty != nil {
		e.dirty.MarkAllDirty()
	}
	return nil
}

// PlayExecute plays m on pos (mutating the board), then incrementally
// updates the tracker/eval to match.
func (e *Evaluator) PlayExecute(pos *board.Position, m board.Move, c board.Color) ([]board.Point, error) {
	captured, err := pos.Play(m, c)
	if err != nil {
		return nil, err
	}
	e.Execute(pos, m, c, false, true, true)
	if e.filter != nil {
		e.filter.Execute(pos, m.At, captured)
	}
	return captured, nil
}

// TakeBackUndo undoes the tracker, the move filter, and the board, in
// that order.
func (e *Evaluator) TakeBackUndo(pos *board.Position) error {
	if err := e.Undo(); err != nil {
		return err
	}
	if e.filter != nil {
		e.filter.Undo()
	}
	return pos.Undo()
}

// EvaluateMove plays m as c, computes the incremental evaluation without
// committing, undoes the board, and returns the resulting value. If a valid cached delta exists for (m, c) it is
// returned without touching the tracker at all.
func (e *Evaluator) EvaluateMove(pos *board.Position, m board.Point, c board.Color) (float64, error) {
	mv := board.PlayAt(m)
	key := cacheKey{point: m, color: c}
	if cached, ok := e.deltaCache[key]; ok && (e.dirty == nil || !e.dirty.IsDirty(m, c)) {
		return e.eval + cached, nil
	}
	_, err := pos.Play(mv, c)
	if err != nil {
		return 0, err
	}
	e.Registry.BeginTick()
	cl := e.root.Execute(pos, mv, c, false, false)
	delta := e.sumDelta(cl)
	if err := pos.Undo(); err != nil {
		return 0, err
	}
	e.deltaCache[key] = delta
	if e.dirty != nil {
		e.dirty.SetClean(m, c)
	}
	return e.eval + delta, nil
}

// BestResult is the outcome of FindBest: the chosen move and its value.
type BestResult struct {
	Move  board.Point
	Value float64
	Pass  bool
}

// FindBest iterates the move filter's allowed set, scoring each via
// EvaluateMove, and picks the argmax for Black / argmin for White, with
// uniform-random tie-break.
func (e *Evaluator) FindBest(pos *board.Position, c board.Color, rng *rand.Rand) (BestResult, error) {
	if e.filter == nil {
		return BestResult{}, errNoFilter
	}
	moves := e.filter.Moves()
	if len(moves) == 0 {
		return BestResult{Pass: true}, nil
	}
	maximize := c == board.Black
	var best BestResult
	bestSet := false
	ties := 0
	for _, m := range moves {
		v, err := e.EvaluateMove(pos, m, c)
		if err != nil {
			continue
		}
		switch {
		case !bestSet:
			best = BestResult{Move: m, Value: v}
			bestSet = true
			ties = 1
		case (maximize && v > best.Value) || (!maximize && v < best.Value):
			best = BestResult{Move: m, Value: v}
			ties = 1
		case v == best.Value:
			ties++
			if rng.Intn(ties) == 0 {
				best.Move = m
			}
		}
	}
	if !bestSet {
		return BestResult{Pass: true}, nil
	}
	return best, nil
}

var errNoFilter = evaluatorErr("evaluator: FindBest requires a move filter")

type evaluatorErr string

func (e evaluatorErr) Error() string { return string(e) }
