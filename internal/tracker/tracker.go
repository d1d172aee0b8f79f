// Package tracker implements the incremental active-feature-set
// machinery: trackers consume board moves and emit minimal change
// lists that keep a sparse active set in sync with a feature set,
// supporting both committed execution and the temporary, uncommitted
// evaluation candidate moves need.
package tracker

import (
	"errors"

	"github.com/hailam/goweiqi/internal/board"
)

// Change is a single active-set mutation: slot, the feature now
// occupying it, and how many occurrences to add.
type Change struct {
	Slot    int
	Feature int
	Delta   int
}

// ChangeList is the minimal diff a tracker emits for one operation.
type ChangeList []Change

// ErrSlotConflict is the invariant-violation diagnostic: a change
// wrote a different feature index into an already-occupied slot. Leaf
// trackers never do this; a product tracker's three-term join does it
// transiently on purpose (several features churn through one slot
// within a single change list, netting out by the end), so Apply
// reports the conflict but still applies the change: the contract
// is "abort in debug, defined by the running sum in release", and the
// change list as a whole always leaves the slot consistent.
var ErrSlotConflict = errors.New("tracker: change wrote a different feature into a non-empty slot")

type slotEntry struct {
	feature int
	occ     int
	used    bool
}

// ActiveSet is the sparse slot->feature vector a tracker maintains.
type ActiveSet struct {
	slots []slotEntry
}

// NewActiveSet allocates n empty slots.
func NewActiveSet(n int) *ActiveSet {
	return &ActiveSet{slots: make([]slotEntry, n)}
}

// Size returns the number of slots.
func (a *ActiveSet) Size() int { return len(a.slots) }

// FeatureAt returns the feature/occurrences held in slot, and whether
// the slot is occupied.
func (a *ActiveSet) FeatureAt(slot int) (feature, occurrences int, ok bool) {
	s := a.slots[slot]
	return s.feature, s.occ, s.used
}

// Total returns Σ occurrences across all slots.
func (a *ActiveSet) Total() int {
	total := 0
	for _, s := range a.slots {
		if s.used {
			total += s.occ
		}
	}
	return total
}

// Apply mutates one slot: occurrences accumulate, the
// slot takes the incoming feature label, and a slot reaching zero
// occurrences empties. A zero-delta change is a no-op. A change naming
// a different feature than the occupied slot applies anyway and returns
// ErrSlotConflict as a diagnostic (see the error's comment for why the
// product join needs this to be non-fatal mid-list).
func (a *ActiveSet) Apply(c Change) error {
	if c.Delta == 0 {
		return nil
	}
	s := &a.slots[c.Slot]
	var err error
	if s.used && s.feature != c.Feature {
		err = ErrSlotConflict
	}
	s.occ += c.Delta
	if s.occ == 0 {
		*s = slotEntry{}
		return err
	}
	s.used = true
	s.feature = c.Feature
	return err
}

// ApplyList applies every change in order. The whole list is always
// applied; the first conflict diagnostic, if any, is returned.
func (a *ActiveSet) ApplyList(cl ChangeList) error {
	var first error
	for _, c := range cl {
		if err := a.Apply(c); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Negate returns cl with every delta sign-flipped.
func (cl ChangeList) Negate() ChangeList {
	out := make(ChangeList, len(cl))
	for i, c := range cl {
		out[i] = Change{Slot: c.Slot, Feature: c.Feature, Delta: -c.Delta}
	}
	return out
}

// Clone deep-copies the active set.
func (a *ActiveSet) Clone() *ActiveSet {
	c := &ActiveSet{slots: make([]slotEntry, len(a.slots))}
	copy(c.slots, a.slots)
	return c
}

// Equal reports whether two active sets hold identical slot contents.
func (a *ActiveSet) Equal(b *ActiveSet) bool {
	if len(a.slots) != len(b.slots) {
		return false
	}
	for i := range a.slots {
		if a.slots[i] != b.slots[i] {
			return false
		}
	}
	return true
}

// Tracker is the incremental active-feature-set interface.
type Tracker interface {
	// Reset rebuilds the active set from scratch from the board state.
	Reset(pos *board.Position)

	// Execute computes the changes from playing m as c, given that pos
	// already reflects the move (and any captures) having happened. If
	// commit is true the tracker's own state (per-anchor indices and
	// the active set) is permanently updated and the ply is recorded
	// for Undo. store=false marks a ply the caller will not undo; the
	// trackers in this package record every committed ply either way.
	// commit=false with the board already mutated is the
	// "evaluate" operation: changes are computed and returned, but the
	// active set and all tracker state are left untouched, so the
	// caller can score the candidate and move on without any cleanup.
	Execute(pos *board.Position, m board.Move, c board.Color, commit, store bool) ChangeList

	// Undo reverses the most recently committed ply and returns
	// the (negated) changes applied, so a caller tracking a running sum
	// over change lists (the evaluator) can update it the same way.
	Undo() (ChangeList, error)

	// ChangeList returns the change list from the most recent
	// operation.
	ChangeList() ChangeList

	// Active returns the current active set.
	Active() *ActiveSet

	// GetActiveSize returns the number of slots in this tracker's
	// active set.
	GetActiveSize() int

	// SetMark snapshots the current active state for O(1) restoration.
	SetMark()
	// ClearMark discards the snapshot taken by SetMark.
	ClearMark()
	// RestoreMark resets active state to the last SetMark snapshot.
	RestoreMark() error

	// Verify recomputes the active set from pos and reports a
	// mismatch as an error. Intended for debug builds / tests, not the hot
	// path.
	Verify(pos *board.Position) error
}

// WithMark runs fn with a mark set, guaranteeing ClearMark runs on
// every exit path including panics.
func WithMark(t Tracker, fn func()) {
	t.SetMark()
	defer t.ClearMark()
	fn()
}

// ErrNoMark is returned by RestoreMark when SetMark was never called.
var ErrNoMark = errors.New("tracker: no mark set")

// ErrEmptyUndoStack is the runtime error for an unmatched Undo.
var ErrEmptyUndoStack = errors.New("tracker: undo without matching execute")
