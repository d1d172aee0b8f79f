package tracker

import (
	"errors"

	"github.com/hailam/goweiqi/internal/board"
	"github.com/hailam/goweiqi/internal/features"
)

// ErrUndoUnsupported is the runtime error for a tracker kind that
// cannot undo (none currently; kept so a future tracker kind without
// an undo log has an error to return).
var ErrUndoUnsupported = errors.New("tracker: undo not supported by this tracker kind")

// Registry builds one Tracker per distinct Set, memoizing by Set identity
// so that a feature set reached along multiple paths in a product/sum DAG
// gets exactly one tracker. It also owns the "tock" dedup for the DAG
// of shared children: when several compound parents share one child
// tracker, the child must run its own Reset/Execute/Undo exactly once per
// external call even though several parents ask for it. Every external
// entry point (Evaluator.Reset/Execute/Undo) calls BeginTick once before
// driving the root tracker; every compound tracker then routes its calls
// to children through resetChild/executeChild/undoChild instead of
// calling the child directly, so a child visited twice within the same
// tick simply replays its cached change list the second time.
type Registry struct {
	cache map[features.Set]Tracker

	// CacheDir, when non-empty, enables the on-disk successor-table
	// and share-table caches for the trackers and shared
	// sets built through this registry.
	CacheDir string

	gen     int
	lastGen map[Tracker]int
	lastCL  map[Tracker]ChangeList
}

// NewRegistry creates an empty tracker cache.
func NewRegistry() *Registry {
	return &Registry{
		cache:   make(map[features.Set]Tracker),
		gen:     1, // so a tracker never seen (lastGen zero) is never mistaken for already-visited
		lastGen: make(map[Tracker]int),
		lastCL:  make(map[Tracker]ChangeList),
	}
}

// BeginTick starts a new dedup tick. Call once per external Reset/
// Execute/Undo on the root tracker, before driving it.
func (r *Registry) BeginTick() {
	r.gen++
}

func (r *Registry) resetChild(c Tracker, pos *board.Position) ChangeList {
	if r.lastGen[c] == r.gen {
		return r.lastCL[c]
	}
	c.Reset(pos)
	r.lastGen[c] = r.gen
	r.lastCL[c] = c.ChangeList()
	return r.lastCL[c]
}

func (r *Registry) executeChild(c Tracker, pos *board.Position, m board.Move, col board.Color, commit, store bool) ChangeList {
	if r.lastGen[c] == r.gen {
		return r.lastCL[c]
	}
	cl := c.Execute(pos, m, col, commit, store)
	r.lastGen[c] = r.gen
	r.lastCL[c] = cl
	return cl
}

func (r *Registry) undoChild(c Tracker) (ChangeList, error) {
	if r.lastGen[c] == r.gen {
		return r.lastCL[c], nil
	}
	cl, err := c.Undo()
	if err != nil {
		return nil, err
	}
	r.lastGen[c] = r.gen
	r.lastCL[c] = cl
	return cl, nil
}

// Create returns (building if necessary) the tracker for s, per the kind
// of set it is. Unknown set types are a programming error: every Set
// concrete type in this module must be handled here.
func (r *Registry) Create(s features.Set) Tracker {
	if t, ok := r.cache[s]; ok {
		return t
	}
	r.ensureCached(s)
	s.EnsureInitialised()
	var t Tracker
	switch set := s.(type) {
	case *features.LocalShapeSet:
		t = NewLocalShapeTrackerCached(set, r.CacheDir)
	case *features.SharedSet:
		t = newSharedTracker(set, r)
	case *features.SumSet:
		t = newSumTracker(set, r)
	case *features.ProductSet:
		t = newProductTracker(set, r)
	default:
		panic("tracker: unknown feature set type in registry")
	}
	r.cache[s] = t
	return t
}

// ensureCached walks s's combinator DAG and initialises every shared
// set through the on-disk share-table cache before the generic
// EnsureInitialised pass can do the same work uncached.
func (r *Registry) ensureCached(s features.Set) {
	if r.CacheDir == "" {
		return
	}
	switch set := s.(type) {
	case *features.SharedSet:
		set.EnsureInitialisedCached(r.CacheDir)
	case *features.SumSet:
		for _, c := range set.Children() {
			r.ensureCached(c)
		}
	case *features.ProductSet:
		r.ensureCached(set.A)
		r.ensureCached(set.B)
	}
}

// --- Sum tracker ---------------------------------

// SumTracker forwards every child change to the parent at an offset slot
// and offset feature index.
type SumTracker struct {
	set      *features.SumSet
	reg      *Registry
	children []Tracker

	slotOffset []int
	cl         ChangeList
	active     *ActiveSet
}

func newSumTracker(set *features.SumSet, reg *Registry) *SumTracker {
	set.EnsureInitialised()
	children := make([]Tracker, len(set.Children()))
	slotOffset := make([]int, len(set.Children()))
	off := 0
	for i, c := range set.Children() {
		children[i] = reg.Create(c)
		slotOffset[i] = off
		off += children[i].GetActiveSize()
	}
	return &SumTracker{set: set, reg: reg, children: children, slotOffset: slotOffset, active: NewActiveSet(off)}
}

func (t *SumTracker) GetActiveSize() int     { return t.active.Size() }
func (t *SumTracker) Active() *ActiveSet     { return t.active }
func (t *SumTracker) ChangeList() ChangeList { return t.cl }

func (t *SumTracker) Reset(pos *board.Position) {
	t.active = NewActiveSet(t.active.Size())
	t.cl = nil
	for i, c := range t.children {
		cl := t.reg.resetChild(c, pos)
		t.absorb(i, cl, true)
	}
}

func (t *SumTracker) Execute(pos *board.Position, m board.Move, col board.Color, commit, store bool) ChangeList {
	t.cl = nil
	for i, c := range t.children {
		cl := t.reg.executeChild(c, pos, m, col, commit, store)
		t.absorb(i, cl, commit)
	}
	return t.cl
}

// absorb maps a child's changes into the parent index space; apply is
// false during an uncommitted evaluate, which must leave the active
// set untouched.
func (t *SumTracker) absorb(childIdx int, cl ChangeList, apply bool) {
	off := t.set.Offset(childIdx)
	for _, c := range cl {
		pc := Change{Slot: t.slotOffset[childIdx] + c.Slot, Feature: off + c.Feature, Delta: c.Delta}
		t.cl = append(t.cl, pc)
		if apply {
			_ = t.active.Apply(pc)
		}
	}
}

func (t *SumTracker) Undo() (ChangeList, error) {
	t.cl = nil
	for i, c := range t.children {
		cl, err := t.reg.undoChild(c)
		if err != nil {
			return nil, err
		}
		t.absorb(i, cl, true)
	}
	return t.cl, nil
}

func (t *SumTracker) SetMark() {
	for _, c := range t.children {
		c.SetMark()
	}
}
func (t *SumTracker) ClearMark() {
	for _, c := range t.children {
		c.ClearMark()
	}
}
func (t *SumTracker) RestoreMark() error {
	na := NewActiveSet(t.active.Size())
	for i, c := range t.children {
		if err := c.RestoreMark(); err != nil {
			return err
		}
		off, slotOff := t.set.Offset(i), t.slotOffset[i]
		ca := c.Active()
		for s := 0; s < ca.Size(); s++ {
			f, occ, ok := ca.FeatureAt(s)
			if ok {
				_ = na.Apply(Change{Slot: slotOff + s, Feature: off + f, Delta: occ})
			}
		}
	}
	t.active = na
	return nil
}

func (t *SumTracker) Verify(pos *board.Position) error {
	for _, c := range t.children {
		if err := c.Verify(pos); err != nil {
			return err
		}
	}
	return nil
}

// --- Shared tracker ---------------------------

// SharedTracker maps a child's changes through the parent SharedSet's
// lookup table, dropping sign-zero (ignored) features.
type SharedTracker struct {
	set   *features.SharedSet
	reg   *Registry
	child Tracker

	cl     ChangeList
	active *ActiveSet
}

func newSharedTracker(set *features.SharedSet, reg *Registry) Tracker {
	set.EnsureInitialised()
	child := reg.Create(set.Child())
	return &SharedTracker{set: set, reg: reg, child: child, active: NewActiveSet(child.GetActiveSize())}
}

func (t *SharedTracker) GetActiveSize() int     { return t.active.Size() }
func (t *SharedTracker) Active() *ActiveSet     { return t.active }
func (t *SharedTracker) ChangeList() ChangeList { return t.cl }

func (t *SharedTracker) Reset(pos *board.Position) {
	cl := t.reg.resetChild(t.child, pos)
	t.active = NewActiveSet(t.child.GetActiveSize())
	t.cl = t.translate(cl, true)
}

func (t *SharedTracker) Execute(pos *board.Position, m board.Move, c board.Color, commit, store bool) ChangeList {
	cl := t.reg.executeChild(t.child, pos, m, c, commit, store)
	t.cl = t.translate(cl, commit)
	return t.cl
}

func (t *SharedTracker) translate(cl ChangeList, apply bool) ChangeList {
	var out ChangeList
	for _, c := range cl {
		out2, sign := t.set.Lookup(c.Feature)
		if sign == 0 {
			continue
		}
		pc := Change{Slot: c.Slot, Feature: out2, Delta: c.Delta * sign}
		out = append(out, pc)
		if apply {
			_ = t.active.Apply(pc)
		}
	}
	return out
}

func (t *SharedTracker) Undo() (ChangeList, error) {
	cl, err := t.reg.undoChild(t.child)
	if err != nil {
		return nil, err
	}
	t.cl = t.translate(cl, true)
	return t.cl, nil
}

// Dirty forwards the child's dirty set when the child is a
// local-shape tracker, so an evaluator rooted at a shared tracker can
// still use the candidate-move delta cache.
func (t *SharedTracker) Dirty() *DirtySet {
	if lt, ok := t.child.(*LocalShapeTracker); ok {
		return lt.Dirty()
	}
	return nil
}

func (t *SharedTracker) SetMark()   { t.child.SetMark() }
func (t *SharedTracker) ClearMark() { t.child.ClearMark() }
func (t *SharedTracker) RestoreMark() error {
	if err := t.child.RestoreMark(); err != nil {
		return err
	}
	na := NewActiveSet(t.child.GetActiveSize())
	ca := t.child.Active()
	for s := 0; s < ca.Size(); s++ {
		f, occ, ok := ca.FeatureAt(s)
		if !ok {
			continue
		}
		out, sign := t.set.Lookup(f)
		if sign == 0 {
			continue
		}
		_ = na.Apply(Change{Slot: s, Feature: out, Delta: occ * sign})
	}
	t.active = na
	return nil
}
func (t *SharedTracker) Verify(pos *board.Position) error { return t.child.Verify(pos) }

// --- Product tracker -------------------------

// ProductTracker computes the Cartesian derivative
//
//	d(A*B) = A_active . dB + dA . B_active + dA . dB
//
// from its two children's change lists.
type ProductTracker struct {
	set  *features.ProductSet
	reg  *Registry
	a, b Tracker

	cl     ChangeList
	active *ActiveSet
	asize  int
}

func newProductTracker(set *features.ProductSet, reg *Registry) *ProductTracker {
	set.EnsureInitialised()
	a := reg.Create(set.A)
	b := reg.Create(set.B)
	return &ProductTracker{set: set, reg: reg, a: a, b: b, asize: a.GetActiveSize(), active: NewActiveSet(a.GetActiveSize() * b.GetActiveSize())}
}

func (t *ProductTracker) GetActiveSize() int     { return t.active.Size() }
func (t *ProductTracker) Active() *ActiveSet     { return t.active }
func (t *ProductTracker) ChangeList() ChangeList { return t.cl }

func (t *ProductTracker) Reset(pos *board.Position) {
	aBefore := NewActiveSet(t.a.GetActiveSize())
	bBefore := NewActiveSet(t.b.GetActiveSize())
	da := t.reg.resetChild(t.a, pos)
	db := t.reg.resetChild(t.b, pos)
	t.asize = t.a.GetActiveSize()
	t.active = NewActiveSet(t.asize * t.b.GetActiveSize())
	// Both "before" states are empty, so only the dA.dB term survives:
	// the full Cartesian product of the freshly-reset active entries.
	t.cl = t.joinFrom(aBefore, bBefore, da, db, true)
}

func (t *ProductTracker) Execute(pos *board.Position, m board.Move, c board.Color, commit, store bool) ChangeList {
	// Snapshot each child's active entries *before* executing, since the
	// join needs "old active . new delta" for the other side.
	aBefore := t.a.Active().Clone()
	bBefore := t.b.Active().Clone()
	da := t.reg.executeChild(t.a, pos, m, c, commit, store)
	db := t.reg.executeChild(t.b, pos, m, c, commit, store)
	t.cl = t.joinFrom(aBefore, bBefore, da, db, commit)
	return t.cl
}

// joinFrom expands d(A*B) = Abefore.dB + dA.Bbefore + dA.dB over the two children's pre-operation active sets and
// their change lists, occurrence by occurrence. apply is false during
// an uncommitted evaluate, which must leave the active set untouched.
func (t *ProductTracker) joinFrom(aBefore, bBefore *ActiveSet, da, db ChangeList, apply bool) ChangeList {
	var out ChangeList
	emit := func(slotA, slotB, featA, featB, delta int) {
		if delta == 0 {
			return
		}
		pc := Change{Slot: slotB*t.asize + slotA, Feature: t.set.Index(featA, featB), Delta: delta}
		out = append(out, pc)
		if apply {
			_ = t.active.Apply(pc)
		}
	}
	// Term 1: Abefore . dB
	for _, db1 := range db {
		for sa := 0; sa < aBefore.Size(); sa++ {
			fa, occA, ok := aBefore.FeatureAt(sa)
			if !ok {
				continue
			}
			emit(sa, db1.Slot, fa, db1.Feature, occA*db1.Delta)
		}
	}
	// Term 2: dA . Bbefore
	for _, da1 := range da {
		for sb := 0; sb < bBefore.Size(); sb++ {
			fb, occB, ok := bBefore.FeatureAt(sb)
			if !ok {
				continue
			}
			emit(da1.Slot, sb, da1.Feature, fb, da1.Delta*occB)
		}
	}
	// Term 3: dA . dB
	for _, da1 := range da {
		for _, db1 := range db {
			emit(da1.Slot, db1.Slot, da1.Feature, db1.Feature, da1.Delta*db1.Delta)
		}
	}
	return out
}

func (t *ProductTracker) Undo() (ChangeList, error) {
	aBefore := t.a.Active().Clone()
	bBefore := t.b.Active().Clone()
	da, err := t.reg.undoChild(t.a)
	if err != nil {
		return nil, err
	}
	db, err := t.reg.undoChild(t.b)
	if err != nil {
		return nil, err
	}
	out := t.joinFrom(aBefore, bBefore, da, db, true)
	t.cl = out
	return out, nil
}

func (t *ProductTracker) SetMark() {
	t.a.SetMark()
	t.b.SetMark()
}
func (t *ProductTracker) ClearMark() {
	t.a.ClearMark()
	t.b.ClearMark()
}
func (t *ProductTracker) RestoreMark() error {
	if err := t.a.RestoreMark(); err != nil {
		return err
	}
	if err := t.b.RestoreMark(); err != nil {
		return err
	}
	na := NewActiveSet(t.a.GetActiveSize() * t.b.GetActiveSize())
	aa, bb := t.a.Active(), t.b.Active()
	for sa := 0; sa < aa.Size(); sa++ {
		fa, oa, ok := aa.FeatureAt(sa)
		if !ok {
			continue
		}
		for sb := 0; sb < bb.Size(); sb++ {
			fb, ob, ok2 := bb.FeatureAt(sb)
			if !ok2 {
				continue
			}
			_ = na.Apply(Change{Slot: sb*t.asize + sa, Feature: t.set.Index(fa, fb), Delta: oa * ob})
		}
	}
	t.active = na
	return nil
}
func (t *ProductTracker) Verify(pos *board.Position) error {
	if err := t.a.Verify(pos); err != nil {
		return err
	}
	return t.b.Verify(pos)
}
