package tracker

import (
	"fmt"

	"github.com/hailam/goweiqi/internal/board"
	"github.com/hailam/goweiqi/internal/features"
	"github.com/hailam/goweiqi/internal/succache"
)

// localMoveEntry is one (anchor, local-move) pair affected by a stone
// change at a given point.
type localMoveEntry struct {
	anchor int
	move   int
}

// indexChange is one entry of the per-anchor undo log: the anchor whose
// index[] changed on a given committed step, and its previous value.
type indexChange struct {
	step   int
	anchor int
	prev   int
}

// LocalShapeTracker is the tracker for a LocalShapeSet: it
// precomputes a successor table and a stone->affected-anchors table at
// construction, then uses them to update each anchor's current feature
// index incrementally as stones are placed and removed.
type LocalShapeTracker struct {
	set *features.LocalShapeSet

	successor []int // [idx*3WH + localMove] -> new full feature index, or sentinel

	// localMovesByPoint[point][color] lists every (anchor, local-move)
	// pair whose window contains point, for a stone placement of color
	localMovesByPoint [][3][]localMoveEntry

	index     []int       // per-anchor current full feature index
	evalIndex map[int]int // per-anchor overlay during an uncommitted evaluate
	markIndex []int
	hasMark   bool

	changes []indexChange // undo log, stamped by step
	step    int

	cl     ChangeList
	active *ActiveSet
	dirty  *DirtySet
}

// NewLocalShapeTracker builds the successor and local-moves tables for
// set and returns a tracker ready for Reset.
func NewLocalShapeTracker(set *features.LocalShapeSet) *LocalShapeTracker {
	return NewLocalShapeTrackerCached(set, "")
}

// NewLocalShapeTrackerCached is NewLocalShapeTracker with an on-disk
// successor-table cache: if cacheDir holds a valid cache file
// for this (S, W, H) the successor table is loaded from it, otherwise
// the table is built and written there for the next run. An empty
// cacheDir disables caching.
func NewLocalShapeTrackerCached(set *features.LocalShapeSet, cacheDir string) *LocalShapeTracker {
	set.EnsureInitialised()
	t := &LocalShapeTracker{set: set}
	if cacheDir == "" || !t.loadSuccessorCache(cacheDir) {
		t.buildSuccessorTable()
		if cacheDir != "" {
			t.writeSuccessorCache(cacheDir)
		}
	}
	t.buildLocalMoves()
	t.index = make([]int, set.Xnum*set.Ynum)
	t.active = NewActiveSet(set.Xnum * set.Ynum)
	t.dirty = NewDirtySet(set.S, set.W, set.H)
	return t
}

func (t *LocalShapeTracker) loadSuccessorCache(dir string) bool {
	path := succache.SuccessorPath(dir, t.set.S, t.set.W, t.set.H)
	tbl, err := succache.ReadSuccessorTable(path)
	if err != nil || tbl.N != t.set.N || tbl.W != t.set.W || tbl.H != t.set.H {
		return false
	}
	t.successor = make([]int, len(tbl.Successors))
	for i, v := range tbl.Successors {
		t.successor[i] = int(v)
	}
	return true
}

func (t *LocalShapeTracker) writeSuccessorCache(dir string) {
	succ := make([]int32, len(t.successor))
	for i, v := range t.successor {
		succ[i] = int32(v)
	}
	ignore := make([]bool, t.set.N)
	for i := range ignore {
		ignore[i] = t.set.IsIgnored(i)
	}
	path := succache.SuccessorPath(dir, t.set.S, t.set.W, t.set.H)
	_ = succache.WriteSuccessorTable(path, succache.SuccessorTable{
		N: t.set.N, W: t.set.W, H: t.set.H, Successors: succ, Ignore: ignore,
	})
}

// LocalMoveSentinel mirrors features.LocalMoveSentinel for successor
// entries that correspond to an incompatible local move.
const LocalMoveSentinel = features.LocalMoveSentinel

func (t *LocalShapeTracker) buildSuccessorTable() {
	wh := t.set.W * t.set.H
	width := 3 * wh
	t.successor = make([]int, t.set.N*width)
	for idx := 0; idx < t.set.N; idx++ {
		anchorIdx, shapeIdx := t.set.Decode(idx)
		for lm := 0; lm < width; lm++ {
			lx := (lm / 3) % t.set.W
			ly := (lm / 3) / t.set.W
			c := board.Color(lm % 3)
			newShape := t.set.LocalMove(shapeIdx, lx, ly, c)
			if newShape == features.LocalMoveSentinel {
				t.successor[idx*width+lm] = LocalMoveSentinel
				continue
			}
			t.successor[idx*width+lm] = t.set.FeatureIndex(anchorIdx, newShape)
		}
	}
}

func (t *LocalShapeTracker) buildLocalMoves() {
	s := t.set.S
	t.localMovesByPoint = make([][3][]localMoveEntry, s*s)
	for py := 0; py < s; py++ {
		for px := 0; px < s; px++ {
			point := board.Point{X: px, Y: py}
			pidx := point.Index(s)
			for ax := max0(px - t.set.W + 1); ax <= px && ax < t.set.Xnum; ax++ {
				for ay := max0(py - t.set.H + 1); ay <= py && ay < t.set.Ynum; ay++ {
					lx, ly := px-ax, py-ay
					anchorIdx := t.set.AnchorIndex(ax, ay)
					for c := 0; c < 3; c++ {
						move := (ly*t.set.W+lx)*3 + c
						t.localMovesByPoint[pidx][c] = append(t.localMovesByPoint[pidx][c], localMoveEntry{anchor: anchorIdx, move: move})
					}
				}
			}
		}
	}
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// Reset rebuilds every anchor's feature index directly from board
// content; the ground truth against which incremental state must
// always agree.
func (t *LocalShapeTracker) Reset(pos *board.Position) {
	t.changes = nil
	t.step = 0
	t.active = NewActiveSet(t.set.Xnum * t.set.Ynum)
	t.cl = nil
	t.dirty.MarkAllDirty()

	for ay := 0; ay < t.set.Ynum; ay++ {
		for ax := 0; ax < t.set.Xnum; ax++ {
			digits := make([]int, t.set.W*t.set.H)
			for ly := 0; ly < t.set.H; ly++ {
				for lx := 0; lx < t.set.W; lx++ {
					p := board.Point{X: ax + lx, Y: ay + ly}
					digits[ly*t.set.W+lx] = int(pos.ColorAt(p))
				}
			}
			anchorIdx := t.set.AnchorIndex(ax, ay)
			idx := t.set.FeatureIndex(anchorIdx, t.set.ShapeFromDigits(digits))
			t.index[anchorIdx] = idx
			ch := Change{Slot: anchorIdx, Feature: idx, Delta: 1}
			t.cl = append(t.cl, ch)
			_ = t.active.Apply(ch)
		}
	}
}

// Execute applies the stone change(s) from m (and any captures pos
// already reflects) to the tracker. An uncommitted call computes the change list against an overlay of index[]
// and leaves both index[] and the active set untouched, so a capturing
// candidate whose window covers both the move and a captured stone
// still chains correctly through the successor table.
func (t *LocalShapeTracker) Execute(pos *board.Position, m board.Move, c board.Color, commit, store bool) ChangeList {
	t.cl = nil
	if !commit {
		t.evalIndex = make(map[int]int)
	}
	if m.IsPlay() {
		t.updateStone(pos, m.At, c, commit)
		for _, cap := range pos.LastCaptured() {
			t.updateStone(pos, cap, board.Empty, commit)
		}
	}
	if commit {
		// Every committed ply advances the step counter, passes
		// included, so Undo stays in lockstep with the board's own
		// ply history.
		t.step++
		if m.IsPlay() {
			t.dirty.MarkMove(pos, m.At, pos.LastCaptured())
		}
		if store {
			// The per-anchor index[] undo log (t.changes) already
			// carries everything Undo needs; "store" here only
			// controls whether this ply is poppable at all versus a
			// one-shot commit the caller never intends to undo. Since
			// every committed ply's index[] deltas are always
			// recorded, store=false simply means the caller promises
			// not to call Undo past this point.
		}
	}
	return t.cl
}

func (t *LocalShapeTracker) updateStone(pos *board.Position, stone board.Point, c board.Color, commit bool) {
	width := 3 * t.set.W * t.set.H
	for _, entry := range t.localMovesByPoint[stone.Index(t.set.S)][int(c)] {
		old := t.index[entry.anchor]
		if !commit {
			if v, ok := t.evalIndex[entry.anchor]; ok {
				old = v
			}
		}
		if commit {
			t.changes = append(t.changes, indexChange{step: t.step, anchor: entry.anchor, prev: old})
		}
		ch := Change{Slot: entry.anchor, Feature: old, Delta: -1}
		t.cl = append(t.cl, ch)

		newIdx := t.successor[old*width+entry.move]
		if newIdx == LocalMoveSentinel {
			// Incompatible local move for the current shape content;
			// this should never happen for moves actually played on
			// pos, since localMovesByPoint is keyed by the color being
			// written and updateStone is only called with the color
			// that just appeared/disappeared at `stone`.
			panic(fmt.Sprintf("tracker: incompatible local move at anchor %d for color %v", entry.anchor, c))
		}
		ch2 := Change{Slot: entry.anchor, Feature: newIdx, Delta: 1}
		t.cl = append(t.cl, ch2)

		if commit {
			_ = t.active.Apply(ch)
			_ = t.active.Apply(ch2)
			t.index[entry.anchor] = newIdx
		} else {
			t.evalIndex[entry.anchor] = newIdx
		}
	}
}

// Undo pops the most recent committed ply and restores index[].
// A pass ply has no recorded changes and unwinds to an empty list.
func (t *LocalShapeTracker) Undo() (ChangeList, error) {
	if t.step == 0 {
		return nil, ErrEmptyUndoStack
	}
	out := ChangeList{}
	// Pop every entry stamped with the step being undone.
	curStep := t.step - 1
	for len(t.changes) > 0 && t.changes[len(t.changes)-1].step == curStep {
		e := t.changes[len(t.changes)-1]
		t.changes = t.changes[:len(t.changes)-1]
		old := t.index[e.anchor]
		ch1 := Change{Slot: e.anchor, Feature: old, Delta: -1}
		out = append(out, ch1)
		_ = t.active.Apply(ch1)
		ch2 := Change{Slot: e.anchor, Feature: e.prev, Delta: 1}
		out = append(out, ch2)
		_ = t.active.Apply(ch2)
		t.index[e.anchor] = e.prev
	}
	t.step--
	t.cl = out
	return out, nil
}

func (t *LocalShapeTracker) ChangeList() ChangeList { return t.cl }
func (t *LocalShapeTracker) Active() *ActiveSet     { return t.active }
func (t *LocalShapeTracker) GetActiveSize() int     { return t.set.Xnum * t.set.Ynum }

func (t *LocalShapeTracker) SetMark() {
	t.markIndex = append([]int(nil), t.index...)
	t.hasMark = true
}

func (t *LocalShapeTracker) ClearMark() {
	t.markIndex = nil
	t.hasMark = false
}

func (t *LocalShapeTracker) RestoreMark() error {
	if !t.hasMark {
		return ErrNoMark
	}
	copy(t.index, t.markIndex)
	na := NewActiveSet(t.set.Xnum * t.set.Ynum)
	for anchorIdx, idx := range t.index {
		_ = na.Apply(Change{Slot: anchorIdx, Feature: idx, Delta: 1})
	}
	t.active = na
	t.changes = nil
	return nil
}

// Verify recomputes every anchor's index from pos and compares it
// against t.index.
func (t *LocalShapeTracker) Verify(pos *board.Position) error {
	for ay := 0; ay < t.set.Ynum; ay++ {
		for ax := 0; ax < t.set.Xnum; ax++ {
			digits := make([]int, t.set.W*t.set.H)
			for ly := 0; ly < t.set.H; ly++ {
				for lx := 0; lx < t.set.W; lx++ {
					p := board.Point{X: ax + lx, Y: ay + ly}
					digits[ly*t.set.W+lx] = int(pos.ColorAt(p))
				}
			}
			anchorIdx := t.set.AnchorIndex(ax, ay)
			want := t.set.FeatureIndex(anchorIdx, t.set.ShapeFromDigits(digits))
			if t.index[anchorIdx] != want {
				return fmt.Errorf("tracker: verify mismatch at anchor (%d,%d): have %d want %d", ax, ay, t.index[anchorIdx], want)
			}
		}
	}
	return nil
}

// Dirty returns the per-(move,color) evaluation cache invalidation
// tracker.
func (t *LocalShapeTracker) Dirty() *DirtySet { return t.dirty }
