// Package weight implements the dense per-feature weight table: one scalar per feature index, clamped to [MinWeight,
// MaxWeight], plus the optional eligibility-trace/step-size/count fields
// learning rules need. Only the scalar weight is ever persisted
// (the rest is rebuilt at load time).
package weight

import (
	"math"
	"math/rand"
)

// Bounds clamps every weight to [Min, Max].
type Bounds struct {
	Min, Max float64
}

// DefaultBounds matches common TD-learning setups: generous enough that
// normal gradient steps never saturate, tight enough to catch runaway
// updates from a misconfigured step size.
var DefaultBounds = Bounds{Min: -10, Max: 10}

func (b Bounds) clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// trace holds the optional per-weight learning-rule state. Design
// Notes "optional per-weight fields": rather than toggle these via
// compile-time flags, every Set always carries the struct, and a
// disabled-eligibility configuration simply never touches Trace/Active -
// a zero-sized no-op in effect, without conditional layout.
type trace struct {
	Trace  float64
	Active bool
	Step   float64
	Count  int
}

// Set is the dense per-feature weight table.
type Set struct {
	bounds  Bounds
	weights []float64
	traces  []trace

	defaultStep float64
}

// New allocates a zeroed weight set of size n.
func New(n int, bounds Bounds, defaultStep float64) *Set {
	s := &Set{bounds: bounds, weights: make([]float64, n), traces: make([]trace, n), defaultStep: defaultStep}
	for i := range s.traces {
		s.traces[i].Step = defaultStep
	}
	return s
}

// NumFeatures returns N.
func (s *Set) NumFeatures() int { return len(s.weights) }

// Zero resets every weight (and eligibility trace) to zero.
func (s *Set) Zero() {
	for i := range s.weights {
		s.weights[i] = 0
	}
	s.ClearTraces()
}

// Randomise sets every weight to a uniform random value in [lo, hi].
func (s *Set) Randomise(lo, hi float64, rng *rand.Rand) {
	for i := range s.weights {
		s.weights[i] = lo + rng.Float64()*(hi-lo)
	}
}

// Get returns the weight at feature index i.
func (s *Set) Get(i int) float64 { return s.weights[i] }

// Set assigns (clamped) the weight at feature index i.
func (s *Set) Set(i int, v float64) { s.weights[i] = s.bounds.clamp(v) }

// Add applies a delta to the weight at i, clamped to bounds.
func (s *Set) Add(i int, delta float64) { s.Set(i, s.weights[i]+delta) }

// Bounds returns the configured clamp range.
func (s *Set) Bounds() Bounds { return s.bounds }

// --- Eligibility traces -------------------------------

// Trace returns the current eligibility trace value for feature i.
func (s *Set) Trace(i int) float64 { return s.traces[i].Trace }

// TraceActive reports whether feature i has a non-zero trace (i.e. is on
// the sparse non-zero list TD(λ) maintains).
func (s *Set) TraceActive(i int) bool { return s.traces[i].Active }

// Step returns the per-weight step size for feature i.
func (s *Set) Step(i int) float64 { return s.traces[i].Step }

// SetStep overrides the step size for feature i.
func (s *Set) SetStep(i int, step float64) { s.traces[i].Step = step }

// Count returns the running update count for feature i.
func (s *Set) Count(i int) int { return s.traces[i].Count }

// IncrementCount bumps the update count for feature i.
func (s *Set) IncrementCount(i int) { s.traces[i].Count++ }

// DecayTraces multiplies every active trace by lambda, deactivating any
// that fall below threshold so the non-zero list stays sparse.
func (s *Set) DecayTraces(lambda, threshold float64) {
	for i := range s.traces {
		if !s.traces[i].Active {
			continue
		}
		s.traces[i].Trace *= lambda
		if math.Abs(s.traces[i].Trace) < threshold {
			s.traces[i].Trace = 0
			s.traces[i].Active = false
		}
	}
}

// BumpTrace adds (or, if replacing, first resets to) n occurrences to
// feature i's trace.
func (s *Set) BumpTrace(i int, n float64, replacing bool) {
	if replacing {
		s.traces[i].Trace = 0
	}
	s.traces[i].Trace += n
	s.traces[i].Active = s.traces[i].Trace != 0
}

// ResetTrace clears a single feature's trace.
func (s *Set) ResetTrace(i int) {
	s.traces[i].Trace = 0
	s.traces[i].Active = false
}

// ClearTraces clears every eligibility trace (e.g. at the start of an
// episode).
func (s *Set) ClearTraces() {
	for i := range s.traces {
		s.traces[i].Trace = 0
		s.traces[i].Active = false
	}
}

// ActiveTraces returns the indices of every feature with a non-zero
// trace; the sparse list TD(λ)'s weight update walks.
func (s *Set) ActiveTraces() []int {
	var out []int
	for i := range s.traces {
		if s.traces[i].Active {
			out = append(out, i)
		}
	}
	return out
}

// --- Arithmetic -----------------------------

// Add2 returns a new set holding a+b, pointwise. Both must have the same
// size; bounds and step defaults are taken from a.
func Add2(a, b *Set) *Set {
	out := New(len(a.weights), a.bounds, a.defaultStep)
	for i := range out.weights {
		out.weights[i] = a.bounds.clamp(a.weights[i] + b.weights[i])
	}
	return out
}

// Sub2 returns a new set holding a-b, pointwise.
func Sub2(a, b *Set) *Set {
	out := New(len(a.weights), a.bounds, a.defaultStep)
	for i := range out.weights {
		out.weights[i] = a.bounds.clamp(a.weights[i] - b.weights[i])
	}
	return out
}

// Weights exposes the raw backing slice for the weight-file codec
// and shared-memory mapping; callers must not resize it.
func (s *Set) Weights() []float64 { return s.weights }
