package tracker

import (
	"testing"

	"github.com/hailam/goweiqi/internal/board"
	"github.com/hailam/goweiqi/internal/features"
)

func mustPlay(t *testing.T, pos *board.Position, tr Tracker, p board.Point, c board.Color) {
	t.Helper()
	m := board.PlayAt(p)
	if _, err := pos.Play(m, c); err != nil {
		t.Fatalf("play %v %v: %v", p, c, err)
	}
	tr.Execute(pos, m, c, true, true)
}

func mustUndo(t *testing.T, pos *board.Position, tr Tracker) {
	t.Helper()
	if _, err := tr.Undo(); err != nil {
		t.Fatalf("tracker undo: %v", err)
	}
	if err := pos.Undo(); err != nil {
		t.Fatalf("board undo: %v", err)
	}
}

// TestOneByOneScenario walks a 1x1 local-shape tracker on 5x5 through
// two plays and two undos, checking every emitted change.
func TestOneByOneScenario(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	set := features.NewLocalShapeSet(1, 1, 5, false)
	tr := NewLocalShapeTracker(set)

	tr.Reset(pos)
	if tr.Active().Size() != 25 {
		t.Fatalf("active size = %d, want 25 anchors", tr.Active().Size())
	}
	if tr.Active().Total() != 25 {
		t.Fatalf("active total = %d, want 25 empty shapes", tr.Active().Total())
	}
	for anchor := 0; anchor < 25; anchor++ {
		f, occ, ok := tr.Active().FeatureAt(anchor)
		if !ok || occ != 1 || f != set.FeatureIndex(anchor, 0) {
			t.Fatalf("anchor %d holds (%d,%d,%v), want the empty shape", anchor, f, occ, ok)
		}
	}
	afterReset := tr.Active().Clone()

	// B at (2,2): anchor 12 moves from empty to the single-point black shape.
	mustPlay(t, pos, tr, board.Point{X: 2, Y: 2}, board.Black)
	cl := tr.ChangeList()
	wantEmpty := set.FeatureIndex(12, 0)
	wantBlack := set.FeatureIndex(12, int(board.Black))
	if len(cl) != 2 || cl[0] != (Change{Slot: 12, Feature: wantEmpty, Delta: -1}) || cl[1] != (Change{Slot: 12, Feature: wantBlack, Delta: 1}) {
		t.Fatalf("black play changes = %v, want [-1 empty, +1 black] at slot 12", cl)
	}

	// W at (3,2): anchor 13 moves from empty to white.
	mustPlay(t, pos, tr, board.Point{X: 3, Y: 2}, board.White)
	cl = tr.ChangeList()
	wantEmpty = set.FeatureIndex(13, 0)
	wantWhite := set.FeatureIndex(13, int(board.White))
	if len(cl) != 2 || cl[0] != (Change{Slot: 13, Feature: wantEmpty, Delta: -1}) || cl[1] != (Change{Slot: 13, Feature: wantWhite, Delta: 1}) {
		t.Fatalf("white play changes = %v, want [-1 empty, +1 white] at slot 13", cl)
	}

	mustUndo(t, pos, tr)
	mustUndo(t, pos, tr)
	if !tr.Active().Equal(afterReset) {
		t.Fatal("active set did not return bit-identically to the post-Reset state after two undos")
	}
	if err := tr.Verify(pos); err != nil {
		t.Fatalf("verify after undos: %v", err)
	}
}

// TestConsistencyWithCaptures drives a 2x2 tracker through a capture
// and checks the incremental state against a from-scratch recompute at
// every step.
func TestConsistencyWithCaptures(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	set := features.NewLocalShapeSet(2, 2, 5, false)
	tr := NewLocalShapeTracker(set)
	tr.Reset(pos)

	script := []struct {
		p board.Point
		c board.Color
	}{
		{board.Point{X: 2, Y: 2}, board.White},
		{board.Point{X: 1, Y: 2}, board.Black},
		{board.Point{X: 3, Y: 2}, board.Black},
		{board.Point{X: 2, Y: 1}, board.Black},
		{board.Point{X: 2, Y: 3}, board.Black}, // captures the white stone
	}
	for i, s := range script {
		mustPlay(t, pos, tr, s.p, s.c)
		if err := tr.Verify(pos); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		fresh := NewLocalShapeTracker(set)
		fresh.Reset(pos)
		if !tr.Active().Equal(fresh.Active()) {
			t.Fatalf("step %d: incremental active diverged from recompute", i)
		}
	}
	if pos.Occupied(board.Point{X: 2, Y: 2}) {
		t.Fatal("setup error: white stone should have been captured")
	}

	for range script {
		mustUndo(t, pos, tr)
	}
	if err := tr.Verify(pos); err != nil {
		t.Fatalf("verify after full unwind: %v", err)
	}
	fresh := NewLocalShapeTracker(set)
	fresh.Reset(pos)
	if !tr.Active().Equal(fresh.Active()) {
		t.Fatal("active set diverged from recompute after full unwind")
	}
}

// TestEvaluateLeavesStateUntouched checks the evaluate contract:
// an uncommitted Execute must leave the active set and per-anchor
// indices exactly as they were, even for a capturing candidate whose
// window overlaps both the move and the captured stone.
func TestEvaluateLeavesStateUntouched(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	set := features.NewLocalShapeSet(2, 2, 5, false)
	tr := NewLocalShapeTracker(set)
	tr.Reset(pos)

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
		mustPlay(t, pos, tr, s.p, s.c)
	}

	before := tr.Active().Clone()
	capturing := board.PlayAt(board.Point{X: 2, Y: 3})
	if _, err := pos.Play(capturing, board.Black); err != nil {
		t.Fatalf("capturing play: %v", err)
	}
	cl := tr.Execute(pos, capturing, board.Black, false, false)
	if len(cl) == 0 {
		t.Fatal("expected a non-empty change list from evaluate")
	}
	if !tr.Active().Equal(before) {
		t.Fatal("evaluate mutated the active set")
	}

	// Applying the evaluate changes by hand must yield exactly the
	// from-scratch active set of the post-move board; the evaluate
	// change list is a correct diff even though nothing was committed.
	applied := before.Clone()
	for _, ch := range cl {
		if err := applied.Apply(ch); err != nil {
			t.Fatalf("evaluate change list is not self-consistent: %v", err)
		}
	}
	fresh := NewLocalShapeTracker(set)
	fresh.Reset(pos)
	if !applied.Equal(fresh.Active()) {
		t.Fatal("evaluate change list does not reproduce the post-move active set")
	}

	if err := pos.Undo(); err != nil {
		t.Fatalf("board undo: %v", err)
	}
	if err := tr.Verify(pos); err != nil {
		t.Fatalf("verify after evaluate round-trip: %v", err)
	}
}

func TestMarkRestore(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	set := features.NewLocalShapeSet(1, 1, 5, false)
	tr := NewLocalShapeTracker(set)
	tr.Reset(pos)

	mustPlay(t, pos, tr, board.Point{X: 1, Y: 1}, board.Black)
	atMark := tr.Active().Clone()
	WithMark(tr, func() {
		mustPlay(t, pos, tr, board.Point{X: 3, Y: 3}, board.White)
		mustPlay(t, pos, tr, board.Point{X: 0, Y: 4}, board.Black)
		if err := tr.RestoreMark(); err != nil {
			t.Fatalf("restore: %v", err)
		}
	})
	if !tr.Active().Equal(atMark) {
		t.Fatal("restore did not return the active set to the marked state")
	}
	if err := tr.RestoreMark(); err != ErrNoMark {
		t.Fatalf("restore after clear = %v, want ErrNoMark", err)
	}
}

// TestPassPlyUndo interleaves a pass between stone plays: the tracker
// must stay in lockstep with the board's ply history so each Undo pops
// exactly one ply, empty for the pass.
func TestPassPlyUndo(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	set := features.NewLocalShapeSet(1, 1, 5, false)
	tr := NewLocalShapeTracker(set)
	tr.Reset(pos)
	afterReset := tr.Active().Clone()

	mustPlay(t, pos, tr, board.Point{X: 1, Y: 1}, board.Black)
	if _, err := pos.Play(board.Pass, board.White); err != nil {
		t.Fatalf("pass: %v", err)
	}
	if cl := tr.Execute(pos, board.Pass, board.White, true, true); len(cl) != 0 {
		t.Fatalf("pass emitted %v, want no changes", cl)
	}
	mustPlay(t, pos, tr, board.Point{X: 2, Y: 2}, board.Black)

	mustUndo(t, pos, tr) // the second stone
	cl, err := tr.Undo() // the pass
	if err != nil {
		t.Fatalf("undo pass: %v", err)
	}
	if len(cl) != 0 {
		t.Fatalf("undoing a pass emitted %v, want no changes", cl)
	}
	if err := pos.Undo(); err != nil {
		t.Fatalf("board undo: %v", err)
	}
	mustUndo(t, pos, tr) // the first stone
	if !tr.Active().Equal(afterReset) {
		t.Fatal("active set did not unwind through the pass ply")
	}
	if err := tr.Verify(pos); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestUndoWithoutExecute(t *testing.T) {
	set := features.NewLocalShapeSet(1, 1, 5, false)
	tr := NewLocalShapeTracker(set)
	tr.Reset(board.NewPosition(5, 0, board.KoSimple))
	if _, err := tr.Undo(); err != ErrEmptyUndoStack {
		t.Fatalf("undo on empty stack = %v, want ErrEmptyUndoStack", err)
	}
}

func TestSuccessorCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	set := features.NewLocalShapeSet(2, 2, 5, false)
	built := NewLocalShapeTrackerCached(set, dir)
	loaded := NewLocalShapeTrackerCached(set, dir) // second construction reads the cache file
	if len(built.successor) != len(loaded.successor) {
		t.Fatalf("cached successor table length %d, want %d", len(loaded.successor), len(built.successor))
	}
	for i := range built.successor {
		if built.successor[i] != loaded.successor[i] {
			t.Fatalf("cached successor table diverges at %d", i)
		}
	}
}

func TestDirtySet(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	d := NewDirtySet(5, 2, 2)
	p := board.Point{X: 2, Y: 2}
	far := board.Point{X: 4, Y: 4}
	if !d.IsDirty(p, board.Black) {
		t.Fatal("fresh dirty set should start all dirty")
	}
	d.SetClean(p, board.Black)
	d.SetClean(far, board.Black)
	if d.IsDirty(p, board.Black) || d.IsDirty(far, board.Black) {
		t.Fatal("SetClean did not clear the bits")
	}
	d.MarkMove(pos, board.Point{X: 1, Y: 1}, nil)
	if !d.IsDirty(p, board.Black) {
		t.Fatal("a move within window reach should re-dirty the candidate")
	}
	if d.IsDirty(far, board.Black) {
		t.Fatal("a move out of window reach should leave the candidate clean")
	}
}
