package features

import (
	"github.com/hailam/goweiqi/internal/board"
	"github.com/hailam/goweiqi/internal/succache"
)

// Symmetric is implemented by a child feature set that a SharedSet can
// build equivalence classes over. LocalShapeSet is the only
// implementation today, but the interface keeps SharedSet independent
// of the leaf set's concrete type.
type Symmetric interface {
	Set
	Transform(idx int, flipX, flipY, transpose bool) (int, bool)
	Invert(idx int) int
	Translate(idx, dx, dy int) (int, bool)
	IsSquare() bool
	IsIgnored(idx int) bool
	BoardSize() int
}

// SharedKind selects which generator set builds the equivalence classes.
type SharedKind int

const (
	KindLD SharedKind = iota // location-dependent: flips, transpose, invert
	KindLI                   // location-independent: LD generators + translate
	KindCI                   // color-inverse only: {i, invert(i)}
)

func (k SharedKind) suffix() string {
	switch k {
	case KindLD:
		return "LD"
	case KindLI:
		return "LI"
	default:
		return "CI"
	}
}

// generator maps an input index to (equivalent index, sign, ok).
type generator func(idx int) (int, int, bool)

// lookupEntry is one row of the lookup table.
type lookupEntry struct {
	output int
	sign   int
}

// SharedSet is an equivalence-class feature set over a Symmetric child.
type SharedSet struct {
	child       Symmetric
	kind        SharedKind
	selfInverse bool

	lookup  []lookupEntry
	inverse []int
	init    bool
}

// NewSharedSet builds a shared feature set of the given kind over child.
// selfInverse, when true, masks (sign 0) any class whose canonical is
// reached with both color polarities.
func NewSharedSet(child Symmetric, kind SharedKind, selfInverse bool) *SharedSet {
	return &SharedSet{child: child, kind: kind, selfInverse: selfInverse}
}

func (s *SharedSet) generators() []generator {
	flipX := func(i int) (int, int, bool) { r, ok := s.child.Transform(i, true, false, false); return r, 1, ok }
	flipY := func(i int) (int, int, bool) { r, ok := s.child.Transform(i, false, true, false); return r, 1, ok }
	transpose := func(i int) (int, int, bool) {
		if !s.child.IsSquare() {
			return 0, 0, false
		}
		r, ok := s.child.Transform(i, false, false, true)
		return r, 1, ok
	}
	invert := func(i int) (int, int, bool) { return s.child.Invert(i), -1, true }

	switch s.kind {
	case KindCI:
		return []generator{invert}
	case KindLI:
		moves := []generator{flipX, flipY, transpose, invert}
		for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			dx, dy := d[0], d[1]
			moves = append(moves, func(i int) (int, int, bool) {
				r, ok := s.child.Translate(i, dx, dy)
				return r, 1, ok
			})
		}
		return moves
	default: // KindLD
		return []generator{flipX, flipY, transpose, invert}
	}
}

// EnsureInitialised builds lookup/inverse via a single linear sweep: each
// feature is BFS-closed into its equivalence class exactly once, the
// canonical is the lowest input index in the class, and self-inverse
// classes are masked per the selfInverse flag.
func (s *SharedSet) EnsureInitialised() {
	if s.init {
		return
	}
	s.child.EnsureInitialised()

	n := s.child.NumFeatures()
	gens := s.generators()
	visited := make([]bool, n)
	s.lookup = make([]lookupEntry, n)
	s.inverse = nil

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		if s.child.IsIgnored(i) {
			visited[i] = true
			s.lookup[i] = lookupEntry{0, 0}
			continue
		}

		comp := map[int]int{i: 1}
		selfInv := false
		queue := []int{i}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, g := range gens {
				nxt, gsign, ok := g(cur)
				if !ok || s.child.IsIgnored(nxt) {
					continue
				}
				nsign := comp[cur] * gsign
				if existing, seen := comp[nxt]; seen {
					if existing != nsign {
						selfInv = true
					}
					continue
				}
				comp[nxt] = nsign
				queue = append(queue, nxt)
			}
		}

		canonical := i
		for idx := range comp {
			if idx < canonical {
				canonical = idx
			}
		}

		members := make([]int, 0, len(comp))
		for idx := range comp {
			members = append(members, idx)
			visited[idx] = true
		}

		if selfInv && s.selfInverse {
			for _, idx := range members {
				s.lookup[idx] = lookupEntry{0, 0}
			}
			continue
		}

		outIdx := len(s.inverse)
		s.inverse = append(s.inverse, canonical)
		canonSign := comp[canonical]
		for _, idx := range members {
			relSign := comp[idx] * canonSign // canonSign is ±1, self-inverse
			s.lookup[idx] = lookupEntry{outIdx, relSign}
		}
	}
	s.init = true
}

// EnsureInitialisedCached is EnsureInitialised backed by the on-disk
// share-table cache: if dir holds a valid table for this set it is
// loaded instead of re-canonicalising the whole input space, otherwise
// the tables are built and written there for the next run.
func (s *SharedSet) EnsureInitialisedCached(dir string) {
	if s.init {
		return
	}
	s.child.EnsureInitialised()
	path := succache.SharePath(dir, s.kind.suffix()+"-"+s.child.Name(), s.shareSuffix(), s.child.BoardSize())
	if tbl, err := succache.ReadShareTable(path); err == nil && tbl.InputCount == s.child.NumFeatures() {
		s.lookup = make([]lookupEntry, tbl.InputCount)
		for i := range s.lookup {
			s.lookup[i] = lookupEntry{output: int(tbl.OutputIndex[i]), sign: int(tbl.Sign[i])}
		}
		s.inverse = make([]int, tbl.OutputCount)
		for o := range s.inverse {
			s.inverse[o] = int(tbl.CanonicalInputOf[o])
		}
		s.init = true
		return
	}
	s.EnsureInitialised()
	tbl := succache.ShareTable{
		Version:          1,
		InputCount:       len(s.lookup),
		OutputCount:      len(s.inverse),
		OutputIndex:      make([]int32, len(s.lookup)),
		Sign:             make([]int8, len(s.lookup)),
		CanonicalInputOf: make([]int32, len(s.inverse)),
	}
	for i, e := range s.lookup {
		tbl.OutputIndex[i] = int32(e.output)
		tbl.Sign[i] = int8(e.sign)
	}
	for o, c := range s.inverse {
		tbl.CanonicalInputOf[o] = int32(c)
	}
	_ = succache.WriteShareTable(path, tbl)
}

// shareSuffix is the "[-SI]" marker in the share-table path template.
func (s *SharedSet) shareSuffix() string {
	if s.selfInverse {
		return "SI"
	}
	return ""
}

// NumFeatures returns the number of non-zero-sign classes.
func (s *SharedSet) NumFeatures() int {
	return len(s.inverse)
}

func (s *SharedSet) Name() string {
	return "Shared-" + s.kind.suffix() + "-" + s.child.Name()
}

// Child returns the feature set this shared set builds equivalence
// classes over, for callers (the tracker registry) that need to
// construct or look up its tracker.
func (s *SharedSet) Child() Symmetric { return s.child }

// Lookup returns (output index, sign) for input feature i.
func (s *SharedSet) Lookup(i int) (int, int) {
	e := s.lookup[i]
	return e.output, e.sign
}

// Canonical returns the lowest input index in output o's equivalence
// class.
func (s *SharedSet) Canonical(o int) int {
	return s.inverse[o]
}

func (s *SharedSet) Touches(o int, p board.Point) bool {
	return s.child.Touches(s.Canonical(o), p)
}

func (s *SharedSet) Describe(o int) string {
	return s.child.Describe(s.Canonical(o))
}
