// Package movefilter implements the incrementally maintained set of
// vacant/legal moves: a doubly-ended list of vacant points with O(1)
// removal via a by-point position index, plus composable predicates
// (single-eye, simple-eye, proximity, point-set membership, union,
// intersection) used by policies to restrict candidate moves.
package movefilter

import "github.com/hailam/goweiqi/internal/board"

// Predicate restricts which vacant points are allowed.
type Predicate func(pos *board.Position, p board.Point, toPlay board.Color) bool

// Filter is the base vacant-point list. It tracks every empty
// point on the board, independent of any predicate; Moves() applies
// the configured predicates on top.
type Filter struct {
	pos  *board.Position
	list []board.Point
	idx  map[board.Point]int // point -> position in list, for O(1) removal

	preds []Predicate

	undoStack [][]board.Point // per committed ply: points re-inserted by captures, plus the removed point
}

// New builds a filter over every vacant point of pos at construction
// time. Call Reset again if pos is mutated out from under the filter
// (e.g. loading a new position) without going through Execute/Undo.
func New(pos *board.Position) *Filter {
	f := &Filter{pos: pos, idx: make(map[board.Point]int)}
	f.Reset(pos)
	return f
}

// Reset rebuilds the vacant list from scratch.
func (f *Filter) Reset(pos *board.Position) {
	f.pos = pos
	f.list = f.list[:0]
	f.idx = make(map[board.Point]int)
	f.undoStack = nil
	for _, p := range pos.AllPoints() {
		if !pos.Occupied(p) {
			f.add(p)
		}
	}
}

// WithPredicate appends a predicate every Moves() call must satisfy, and
// returns the filter for chaining.
func (f *Filter) WithPredicate(p Predicate) *Filter {
	f.preds = append(f.preds, p)
	return f
}

func (f *Filter) add(p board.Point) {
	if _, ok := f.idx[p]; ok {
		return
	}
	f.idx[p] = len(f.list)
	f.list = append(f.list, p)
}

func (f *Filter) remove(p board.Point) {
	i, ok := f.idx[p]
	if !ok {
		return
	}
	last := len(f.list) - 1
	f.list[i] = f.list[last]
	f.idx[f.list[i]] = i
	f.list = f.list[:last]
	delete(f.idx, p)
}

// Execute removes played (if it's a real point) and re-inserts every
// captured point.
func (f *Filter) Execute(pos *board.Position, played board.Point, captured []board.Point) {
	entry := make([]board.Point, 0, 1+len(captured))
	if played != board.NoPoint {
		f.remove(played)
		entry = append(entry, played)
	}
	for _, c := range captured {
		f.add(c)
		entry = append(entry, c)
	}
	f.undoStack = append(f.undoStack, entry)
}

// Undo reverses the most recent Execute: removes re-inserted capture
// points, re-inserts the played point.
func (f *Filter) Undo() {
	if len(f.undoStack) == 0 {
		return
	}
	entry := f.undoStack[len(f.undoStack)-1]
	f.undoStack = f.undoStack[:len(f.undoStack)-1]
	if len(entry) == 0 {
		return
	}
	played := entry[0]
	captured := entry[1:]
	for _, c := range captured {
		f.remove(c)
	}
	if played != board.NoPoint {
		f.add(played)
	}
}

// Raw returns every vacant point, with no predicates applied.
func (f *Filter) Raw() []board.Point {
	out := make([]board.Point, len(f.list))
	copy(out, f.list)
	return out
}

// Moves returns every vacant point satisfying all configured predicates,
// evaluated against the color to play on the filter's current position.
func (f *Filter) Moves() []board.Point {
	if len(f.preds) == 0 {
		return f.Raw()
	}
	out := make([]board.Point, 0, len(f.list))
	toPlay := f.pos.ToPlay()
outer:
	for _, p := range f.list {
		for _, pred := range f.preds {
			if !pred(f.pos, p, toPlay) {
				continue outer
			}
		}
		out = append(out, p)
	}
	return out
}

// --- Predicates ---------------------------------------------------

// NotSingleEye excludes points that are a clear single-point eye for the
// color to play's own group, i.e. every neighbor is own-colored and at
// least one group around it has more than the bare minimum liberties -
// playing there would be a pointless self-fill. Simplified to "every
// orthogonal neighbor is friendly"; NotSimpleEye below adds the
// false-eye diagonal check.
func NotSingleEye(pos *board.Position, p board.Point, toPlay board.Color) bool {
	return !isEyeLike(pos, p, toPlay, false)
}

// NotSimpleEye excludes simple eyes, including false-eye detection by
// diagonals: an eye is false if too many diagonal points are
// enemy-colored (more than one in the interior, more than zero on an
// edge or in a corner, where some diagonals are off the board).
func NotSimpleEye(pos *board.Position, p board.Point, toPlay board.Color) bool {
	return !isEyeLike(pos, p, toPlay, true)
}

func isEyeLike(pos *board.Position, p board.Point, toPlay board.Color, checkDiagonals bool) bool {
	if pos.Occupied(p) {
		return false
	}
	orth := [4]board.Point{{X: p.X - 1, Y: p.Y}, {X: p.X + 1, Y: p.Y}, {X: p.X, Y: p.Y - 1}, {X: p.X, Y: p.Y + 1}}
	for _, n := range orth {
		if !pos.InBounds(n) {
			continue
		}
		if pos.ColorAt(n) != toPlay {
			return false
		}
	}
	if !checkDiagonals {
		return true
	}
	diag := [4]board.Point{{X: p.X - 1, Y: p.Y - 1}, {X: p.X + 1, Y: p.Y - 1}, {X: p.X - 1, Y: p.Y + 1}, {X: p.X + 1, Y: p.Y + 1}}
	enemyDiag, offBoard := 0, 0
	for _, d := range diag {
		if !pos.InBounds(d) {
			offBoard++
			continue
		}
		if pos.ColorAt(d) == toPlay.Other() {
			enemyDiag++
		}
	}
	allowed := 1
	if offBoard > 0 {
		allowed = 0
	}
	return enemyDiag <= allowed
}

// ManhattanNear returns a predicate allowing only points within Manhattan
// distance dist of last.
func ManhattanNear(last board.Point, dist int) Predicate {
	return func(pos *board.Position, p board.Point, toPlay board.Color) bool {
		if last == board.NoPoint {
			return true
		}
		d := abs(p.X-last.X) + abs(p.Y-last.Y)
		return d <= dist
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// InSet returns a predicate allowing only points present in set.
func InSet(set map[board.Point]bool) Predicate {
	return func(_ *board.Position, p board.Point, _ board.Color) bool {
		return set[p]
	}
}

// Union returns a predicate allowing a point if any of preds allows it.
func Union(preds ...Predicate) Predicate {
	return func(pos *board.Position, p board.Point, c board.Color) bool {
		for _, pred := range preds {
			if pred(pos, p, c) {
				return true
			}
		}
		return false
	}
}

// Intersection returns a predicate allowing a point only if every one of
// preds allows it.
func Intersection(preds ...Predicate) Predicate {
	return func(pos *board.Position, p board.Point, c board.Color) bool {
		for _, pred := range preds {
			if !pred(pos, p, c) {
				return false
			}
		}
		return true
	}
}
