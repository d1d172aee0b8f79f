package tracker

import "github.com/hailam/goweiqi/internal/board"

// DirtySet holds the per-(move,color) invalidation bits for the
// evaluator's candidate-move delta cache: a cached evaluation
// delta for a move is safe to reuse only while its bit is clear. After
// each committed move, every candidate whose shape window can reach the
// played point, a captured point, or the last liberty of an adjacent
// block (of either color) left in atari is marked dirty; resets mark
// everything dirty.
type DirtySet struct {
	size   int
	rx, ry int // window reach: a change at p can affect candidates within (rx, ry)
	dirty  [2][]bool
}

// NewDirtySet allocates the bits for an S×S board tracked by a W×H
// shape window, initially all dirty (nothing has been cached yet).
func NewDirtySet(size, w, h int) *DirtySet {
	d := &DirtySet{size: size, rx: w - 1, ry: h - 1}
	d.dirty[0] = make([]bool, size*size)
	d.dirty[1] = make([]bool, size*size)
	d.MarkAllDirty()
	return d
}

func colorSlot(c board.Color) int {
	if c == board.White {
		return 1
	}
	return 0
}

// MarkAllDirty invalidates every cached delta.
func (d *DirtySet) MarkAllDirty() {
	for s := 0; s < 2; s++ {
		for i := range d.dirty[s] {
			d.dirty[s][i] = true
		}
	}
}

// MarkMove invalidates the candidates affected by a committed move: all
// within window reach of the played point, of every captured point, and
// of the last liberty of each adjacent block (of either color) that has
// exactly one liberty.
func (d *DirtySet) MarkMove(pos *board.Position, at board.Point, captured []board.Point) {
	d.markAround(at)
	for _, c := range captured {
		d.markAround(c)
	}
	for _, n := range neighborsOf(pos, at) {
		if pos.ColorAt(n) != board.Empty && pos.NumLibertiesAtMost(n, 2) == 1 {
			for _, lib := range libertiesOf(pos, n) {
				d.markAround(lib)
			}
		}
	}
}

func (d *DirtySet) markAround(p board.Point) {
	if p == board.NoPoint {
		return
	}
	for dy := -d.ry; dy <= d.ry; dy++ {
		for dx := -d.rx; dx <= d.rx; dx++ {
			q := board.Point{X: p.X + dx, Y: p.Y + dy}
			if q.X < 0 || q.X >= d.size || q.Y < 0 || q.Y >= d.size {
				continue
			}
			d.dirty[0][q.Index(d.size)] = true
			d.dirty[1][q.Index(d.size)] = true
		}
	}
}

// IsDirty reports whether the cached delta for (p, c) is invalid.
func (d *DirtySet) IsDirty(p board.Point, c board.Color) bool {
	return d.dirty[colorSlot(c)][p.Index(d.size)]
}

// SetClean marks (p, c) valid again; called by the evaluator right
// after it stores a freshly computed delta for that candidate.
func (d *DirtySet) SetClean(p board.Point, c board.Color) {
	d.dirty[colorSlot(c)][p.Index(d.size)] = false
}

func neighborsOf(pos *board.Position, p board.Point) []board.Point {
	if p == board.NoPoint {
		return nil
	}
	cand := [4]board.Point{
		{X: p.X - 1, Y: p.Y},
		{X: p.X + 1, Y: p.Y},
		{X: p.X, Y: p.Y - 1},
		{X: p.X, Y: p.Y + 1},
	}
	out := make([]board.Point, 0, 4)
	for _, n := range cand {
		if pos.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

func libertiesOf(pos *board.Position, p board.Point) []board.Point {
	if pos.ColorAt(p) == board.Empty {
		return nil
	}
	stones := pos.BlockStones(p)
	seen := map[board.Point]bool{}
	var libs []board.Point
	for _, s := range stones {
		for _, n := range neighborsOf(pos, s) {
			if pos.ColorAt(n) == board.Empty && !seen[n] {
				seen[n] = true
				libs = append(libs, n)
			}
		}
	}
	return libs
}
