package features

import (
	"strings"

	"github.com/hailam/goweiqi/internal/board"
)

// SumSet registers child sets in order and concatenates their index
// spaces. Parent index = child-local index + the
// child's offset; parent size = Σ child sizes.
type SumSet struct {
	children []Set
	offsets  []int
	total    int
	init     bool
}

// NewSumSet composes children into one additive feature space.
func NewSumSet(children ...Set) *SumSet {
	return &SumSet{children: children}
}

func (s *SumSet) EnsureInitialised() {
	if s.init {
		return
	}
	s.offsets = make([]int, len(s.children))
	off := 0
	for i, c := range s.children {
		c.EnsureInitialised()
		s.offsets[i] = off
		off += c.NumFeatures()
	}
	s.total = off
	s.init = true
}

func (s *SumSet) NumFeatures() int { return s.total }

func (s *SumSet) Name() string {
	names := make([]string, len(s.children))
	for i, c := range s.children {
		names[i] = c.Name()
	}
	return "Sum(" + strings.Join(names, "+") + ")"
}

// Offset returns the base offset of child i in the parent index space.
func (s *SumSet) Offset(i int) int { return s.offsets[i] }

// Children returns the registered child sets in order.
func (s *SumSet) Children() []Set { return s.children }

// Locate dispatches a global index to its owning child and the child's
// local index within it.
func (s *SumSet) Locate(idx int) (childIdx, localIdx int) {
	for i := len(s.offsets) - 1; i >= 0; i-- {
		if idx >= s.offsets[i] {
			return i, idx - s.offsets[i]
		}
	}
	return 0, idx
}

func (s *SumSet) Touches(idx int, p board.Point) bool {
	ci, local := s.Locate(idx)
	return s.children[ci].Touches(local, p)
}

func (s *SumSet) Describe(idx int) string {
	ci, local := s.Locate(idx)
	return s.children[ci].Name() + ": " + s.children[ci].Describe(local)
}
