// Package features implements the compositional family of binary board
// features: a local-shape leaf set, equivalence-class sharing over it,
// and sum/product combinators that compose child sets into larger ones.
package features

import "github.com/hailam/goweiqi/internal/board"

// Set is the feature-set interface. Every feature set, leaf or
// composed, satisfies it.
type Set interface {
	// NumFeatures returns N, the size of this set's dense index space.
	NumFeatures() int

	// Name identifies the set for cache-file keys and
	// logging; it is not required to be globally unique but should be
	// descriptive ("Local1x1-S9", "Shared-LI-Local3x3-S9", ...).
	Name() string

	// EnsureInitialised performs any one-time setup (e.g. building
	// symmetry lookup tables). It is idempotent and must recurse into
	// children first; calling it twice, or calling it on a set whose
	// children are already initialised, is always safe and cheap.
	EnsureInitialised()

	// Touches reports whether feature index touches board point p.
	// Logging/debug use only; never called from the hot tracking path.
	Touches(index int, p board.Point) bool

	// Describe renders a feature index as human-readable text, for logs
	// and TeX/SGF-adjacent tooling.
	Describe(index int) string
}
