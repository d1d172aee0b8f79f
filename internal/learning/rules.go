// Package learning implements the temporal-difference learning rules
// that turn a pair of evaluated states into a weight update: TD(0),
// Monte-Carlo, λ-return (backward sweep), and TD(λ) with eligibility
// traces (forward sweep), plus the shared step-size modes and the
// logistic/off-policy options.
package learning

import (
	"math"

	"github.com/hailam/goweiqi/internal/weight"
)

// StepMode selects how the scalar step size for a weight update is
// computed.
type StepMode int

const (
	StepConstant        StepMode = iota
	StepNormOccSq                // 1 / Σ occurrences²
	StepNormActive               // 1 / #active
	StepReciprocalGames          // α / (games+1)
)

// Config holds the tunables shared by every rule.
type Config struct {
	Alpha         float64
	StepMode      StepMode
	Lambda        float64 // used by LambdaReturn and TDLambda
	Replacing     bool    // replacing vs accumulating traces (TD(λ))
	TraceMinAbs   float64 // threshold below which a trace deactivates
	Logistic      bool    // squash values through σ before comparing
	GradientFloor float64 // minimum clipped gradient for the logistic option
	OffPolicyOK   bool    // allow learning across an off-policy step
}

// DefaultConfig matches common TD(0)/TD(λ) setups.
var DefaultConfig = Config{Alpha: 0.1, StepMode: StepConstant, Lambda: 0.9, TraceMinAbs: 1e-6, GradientFloor: 0.01}

// ActiveEntry is one (feature, occurrences) pair from a state's active
// set, the minimal input a learning rule needs about "what was on" at a
// given timestep (kept independent of the tracker package to avoid an
// import cycle; callers project tracker.ActiveSet into this shape).
type ActiveEntry struct {
	Feature     int
	Occurrences int
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// squash applies the logistic option if configured, returning the
// (possibly squashed) value and the gradient multiplier to apply to the
// update.
func (c Config) squash(v float64) (float64, float64) {
	if !c.Logistic {
		return v, 1
	}
	s := sigmoid(v)
	grad := s * (1 - s)
	if grad < c.GradientFloor {
		grad = c.GradientFloor
	}
	return s, grad
}

// stepSize computes the per-update scalar step for a state's list of
// active entries, per the configured StepMode.
func (c Config) stepSize(active []ActiveEntry, games int) float64 {
	switch c.StepMode {
	case StepNormOccSq:
		var sumSq float64
		for _, a := range active {
			sumSq += float64(a.Occurrences) * float64(a.Occurrences)
		}
		if sumSq == 0 {
			return 0
		}
		return c.Alpha / sumSq
	case StepNormActive:
		if len(active) == 0 {
			return 0
		}
		return c.Alpha / float64(len(active))
	case StepReciprocalGames:
		return c.Alpha / float64(games+1)
	default:
		return c.Alpha
	}
}

func applyUpdate(w *weight.Set, active []ActiveEntry, delta, step, gradMul float64) {
	for _, a := range active {
		w.Add(a.Feature, step*delta*gradMul*float64(a.Occurrences))
		w.IncrementCount(a.Feature)
	}
}

// TD0 implements the one-step TD(0) rule: target = reward +
// new_value; delta = target - old_value.
type TD0 struct{ Config Config }

// Learn applies a single TD(0) step for the transition oldValue ->
// newValue with the given immediate reward, over the active features at
// the OLD state.
func (r TD0) Learn(w *weight.Set, active []ActiveEntry, oldValue, newValue, reward float64, games int) float64 {
	target := reward + newValue
	squashedTarget, gradMul := r.Config.squash(target)
	squashedOld, _ := r.Config.squash(oldValue)
	delta := squashedTarget - squashedOld
	step := r.Config.stepSize(active, games)
	applyUpdate(w, active, delta, step, gradMul)
	return delta
}

// MonteCarlo implements the full-return rule: target =
// episode_return; delta = return - old_value.
type MonteCarlo struct{ Config Config }

// Learn applies one Monte-Carlo update using the realized episode
// return.
func (r MonteCarlo) Learn(w *weight.Set, active []ActiveEntry, oldValue, episodeReturn float64, games int) float64 {
	squashedReturn, gradMul := r.Config.squash(episodeReturn)
	squashedOld, _ := r.Config.squash(oldValue)
	delta := squashedReturn - squashedOld
	step := r.Config.stepSize(active, games)
	applyUpdate(w, active, delta, step, gradMul)
	return delta
}

// LambdaReturn implements the backward-sweep λ-return rule:
//
//	Λ_t = reward_{t+1} + λ·Λ_{t+1} + (1-λ)·new_value, Λ_T = reward_T at terminals
//
// Off-policy steps reset Λ to old_value. Callers walk timesteps from T
// down to 0, feeding back the Λ they computed at t+1.
type LambdaReturn struct{ Config Config }

// Step computes Λ_t given the successor Λ_{t+1} (lambdaNext), the reward
// observed entering t+1, the state's own evaluated value, and whether
// the step from t to t+1 was on-policy. At a terminal state, pass
// terminal=true and lambdaNext is ignored (Λ_T = reward_T).
func (r LambdaReturn) Step(lambdaNext, reward, newValue, oldValue float64, onPolicy, terminal bool) float64 {
	if terminal {
		return reward
	}
	if !onPolicy && !r.Config.OffPolicyOK {
		return oldValue
	}
	return reward + r.Config.Lambda*lambdaNext + (1-r.Config.Lambda)*newValue
}

// Learn applies one backward-sweep update at timestep t using the
// already-computed Λ_t.
func (r LambdaReturn) Learn(w *weight.Set, active []ActiveEntry, oldValue, lambdaT float64, games int) float64 {
	squashedLambda, gradMul := r.Config.squash(lambdaT)
	squashedOld, _ := r.Config.squash(oldValue)
	delta := squashedLambda - squashedOld
	step := r.Config.stepSize(active, games)
	applyUpdate(w, active, delta, step, gradMul)
	return delta
}

// TDLambda implements forward-sweep TD(λ) with eligibility traces:
// decay all traces by λ, bump the active features' traces, then
// update every weight with a non-zero trace by step·delta·trace.
type TDLambda struct{ Config Config }

// Step performs one TD(λ) update: decays existing traces, bumps the
// traces for the features active at the current timestep, computes
// delta from (oldValue, newValue, reward), and applies step·delta·trace
// to every weight with a non-zero trace. If the step was off-policy and
// off-policy learning is disabled, traces are cleared and no weight
// update happens.
func (r TDLambda) Step(w *weight.Set, active []ActiveEntry, oldValue, newValue, reward float64, terminal, onPolicy bool, games int) float64 {
	if !onPolicy && !r.Config.OffPolicyOK {
		w.ClearTraces()
		return 0
	}
	w.DecayTraces(r.Config.Lambda, r.Config.TraceMinAbs)
	for _, a := range active {
		w.BumpTrace(a.Feature, float64(a.Occurrences), r.Config.Replacing)
	}
	target := reward + newValue
	if terminal {
		target = reward
	}
	squashedTarget, gradMul := r.Config.squash(target)
	squashedOld, _ := r.Config.squash(oldValue)
	delta := squashedTarget - squashedOld
	step := r.Config.stepSize(active, games)
	for _, f := range w.ActiveTraces() {
		w.Add(f, step*delta*gradMul*w.Trace(f))
		w.IncrementCount(f)
	}
	return delta
}
