package tracker

import (
	"testing"

	"github.com/hailam/goweiqi/internal/board"
	"github.com/hailam/goweiqi/internal/features"
)

// tickPlay drives a registry-rooted tracker the way the evaluator does:
// one BeginTick per external operation.
func tickPlay(t *testing.T, reg *Registry, tr Tracker, pos *board.Position, p board.Point, c board.Color) ChangeList {
	t.Helper()
	m := board.PlayAt(p)
	if _, err := pos.Play(m, c); err != nil {
		t.Fatalf("play %v %v: %v", p, c, err)
	}
	reg.BeginTick()
	return tr.Execute(pos, m, c, true, true)
}

// TestSharedTrackerSingletons: LI sharing over 1x1 features with
// ignore-empty and color inversion collapses to one output feature,
// +1 for a black stone and -1 for a white one, anywhere on the board.
func TestSharedTrackerSingletons(t *testing.T) {
	pos := board.NewPosition(5, 0, board.KoSimple)
	leaf := features.NewLocalShapeSet(1, 1, 5, true)
	shared := features.NewSharedSet(leaf, features.KindLI, true)
	reg := NewRegistry()
	tr := reg.Create(shared)

	reg.BeginTick()
	tr.Reset(pos)
	if tr.Active().Total() != 0 {
		t.Fatalf("empty board should activate nothing (all-empty shapes are ignored), got total %d", tr.Active().Total())
	}

	cl := tickPlay(t, reg, tr, pos, board.Point{X: 2, Y: 2}, board.Black)
	if len(cl) != 1 || cl[0].Feature != 0 || cl[0].Delta != 1 {
		t.Fatalf("black stone changes = %v, want a single (slot, 0, +1)", cl)
	}

	cl = tickPlay(t, reg, tr, pos, board.Point{X: 0, Y: 4}, board.White)
	if len(cl) != 1 || cl[0].Feature != 0 || cl[0].Delta != -1 {
		t.Fatalf("white stone changes = %v, want a single (slot, 0, -1)", cl)
	}
	if tr.Active().Total() != 0 {
		t.Fatalf("one black and one white stone should cancel to total 0, got %d", tr.Active().Total())
	}
}

// TestProductJoin checks the three-term Cartesian derivative on a
// single stone change: with two 1x1 children on a 3x3 board, one play
// produces |A|*|dB| + |dA|*|B| + |dA|*|dB| = 18+18+4 = 40 changes, and
// the resulting active set matches a from-scratch rebuild.
func TestProductJoin(t *testing.T) {
	pos := board.NewPosition(3, 0, board.KoSimple)
	a := features.NewLocalShapeSet(1, 1, 3, false)
	b := features.NewLocalShapeSet(1, 1, 3, false)
	prod := features.NewProductSet(a, b)
	reg := NewRegistry()
	tr := reg.Create(prod)

	reg.BeginTick()
	tr.Reset(pos)
	if got := tr.Active().Total(); got != 81 {
		t.Fatalf("product of two 9-anchor children should activate 9*9 = 81, got %d", got)
	}
	afterReset := tr.Active().Clone()

	cl := tickPlay(t, reg, tr, pos, board.Point{X: 1, Y: 1}, board.Black)
	if len(cl) != 40 {
		t.Fatalf("product change list has %d entries, want 40", len(cl))
	}
	freshReg := NewRegistry()
	fresh := freshReg.Create(prod)
	freshReg.BeginTick()
	fresh.Reset(pos)
	if !tr.Active().Equal(fresh.Active()) {
		t.Fatal("product active diverged from a from-scratch rebuild")
	}

	reg.BeginTick()
	if _, err := tr.Undo(); err != nil {
		t.Fatalf("product undo: %v", err)
	}
	if err := pos.Undo(); err != nil {
		t.Fatalf("board undo: %v", err)
	}
	if !tr.Active().Equal(afterReset) {
		t.Fatal("product active did not round-trip through undo")
	}
}

// TestSharedChildDeduplication routes one leaf tracker to a product
// through two different paths (directly, and via a shared set) and
// checks the leaf executes once per tick: double execution would leave
// the compound active set inconsistent with a fresh rebuild.
func TestSharedChildDeduplication(t *testing.T) {
	pos := board.NewPosition(3, 0, board.KoSimple)
	leaf := features.NewLocalShapeSet(1, 1, 3, true)
	shared := features.NewSharedSet(leaf, features.KindLI, true)
	prod := features.NewProductSet(shared, leaf)
	reg := NewRegistry()
	tr := reg.Create(prod)

	reg.BeginTick()
	tr.Reset(pos)

	moves := []struct {
		p board.Point
		c board.Color
	}{
		{board.Point{X: 0, Y: 0}, board.Black},
		{board.Point{X: 2, Y: 2}, board.White},
		{board.Point{X: 1, Y: 0}, board.Black},
	}
	for i, m := range moves {
		tickPlay(t, reg, tr, pos, m.p, m.c)
		freshReg := NewRegistry()
		fresh := freshReg.Create(prod)
		freshReg.BeginTick()
		fresh.Reset(pos)
		if !tr.Active().Equal(fresh.Active()) {
			t.Fatalf("move %d: DAG-shared leaf produced inconsistent compound state", i)
		}
	}
}

// TestSumTrackerOffsets checks the additive index and slot mapping.
func TestSumTrackerOffsets(t *testing.T) {
	pos := board.NewPosition(3, 0, board.KoSimple)
	a := features.NewLocalShapeSet(1, 1, 3, false)
	b := features.NewLocalShapeSet(2, 2, 3, false)
	sum := features.NewSumSet(a, b)
	reg := NewRegistry()
	tr := reg.Create(sum)

	reg.BeginTick()
	tr.Reset(pos)
	if tr.GetActiveSize() != 9+4 {
		t.Fatalf("sum active size = %d, want 13 slots", tr.GetActiveSize())
	}

	cl := tickPlay(t, reg, tr, pos, board.Point{X: 0, Y: 0}, board.Black)
	// The 1x1 child contributes 2 changes at its own slots; the 2x2
	// child's single affected anchor contributes 2 more at offset slots.
	if len(cl) != 4 {
		t.Fatalf("sum change list has %d entries, want 4", len(cl))
	}
	for _, ch := range cl[2:] {
		if ch.Slot < 9 {
			t.Fatalf("2x2 child change landed at slot %d, want offset past the 1x1 child's 9 slots", ch.Slot)
		}
		if ch.Feature < a.NumFeatures() {
			t.Fatalf("2x2 child feature %d not offset past the 1x1 child's %d features", ch.Feature, a.NumFeatures())
		}
	}
}

func TestActiveSetSlotConflict(t *testing.T) {
	a := NewActiveSet(1)
	if err := a.Apply(Change{Slot: 0, Feature: 3, Delta: 1}); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	// A different feature into the occupied slot is diagnosed but still
	// applied; the product join's transient churn depends on the
	// running-sum semantics.
	if err := a.Apply(Change{Slot: 0, Feature: 4, Delta: 1}); err != ErrSlotConflict {
		t.Fatalf("conflicting apply = %v, want ErrSlotConflict", err)
	}
	if f, occ, ok := a.FeatureAt(0); !ok || f != 4 || occ != 2 {
		t.Fatalf("slot after conflict = (%d,%d,%v), want the incoming label and summed occurrences", f, occ, ok)
	}
	_ = a.Apply(Change{Slot: 0, Feature: 4, Delta: -2})
	if _, _, ok := a.FeatureAt(0); ok {
		t.Fatal("slot should be empty after occurrences reach zero")
	}
}
