package trainer

import (
	"math/rand"

	"github.com/hailam/goweiqi/internal/history"
	"github.com/hailam/goweiqi/internal/learning"
	"github.com/hailam/goweiqi/internal/weight"
)

// PairSource is satisfied by Forward, Backward, and Random: anything that
// turns a history ring into an ordered list of (t, t+k) pairs to replay.
type PairSource interface {
	Pairs(ring *history.Ring, rng *rand.Rand) []Pair
}

func activeOf(s history.State) []learning.ActiveEntry {
	if !s.HasActive {
		return nil
	}
	out := make([]learning.ActiveEntry, len(s.ActiveFeature))
	for i := range s.ActiveFeature {
		out[i] = learning.ActiveEntry{Feature: s.ActiveFeature[i], Occurrences: s.ActiveOccurrences[i]}
	}
	return out
}

func onPolicyBetween(ring *history.Ring, epIdx, t, tk int) bool {
	ep, ok := ring.Episode(epIdx)
	if !ok {
		return true
	}
	for i := t; i < tk; i++ {
		s, ok := ep.State(i)
		if !ok {
			continue
		}
		if s.Policy == history.PolicyOff {
			return false
		}
	}
	return true
}

// RunTD0 replays every pair pairs produces through rule, updating w and
// returning the sum of applied deltas (for logging/diagnostics).
func RunTD0(ring *history.Ring, pairs []Pair, rule learning.TD0, w *weight.Set, games int) float64 {
	var total float64
	for _, p := range pairs {
		ep, ok := ring.Episode(p.Episode)
		if !ok {
			continue
		}
		from, ok1 := ep.State(p.T)
		to, ok2 := ep.State(p.TK)
		if !ok1 || !ok2 {
			continue
		}
		if !onPolicyBetween(ring, p.Episode, p.T, p.TK) && !rule.Config.OffPolicyOK {
			continue
		}
		total += rule.Learn(w, activeOf(from), from.Eval, to.Eval, to.Reward, games)
	}
	return total
}

// RunMonteCarlo replays every pair against the enclosing episode's total
// return.
func RunMonteCarlo(ring *history.Ring, pairs []Pair, rule learning.MonteCarlo, w *weight.Set, games int) float64 {
	var total float64
	for _, p := range pairs {
		ep, ok := ring.Episode(p.Episode)
		if !ok {
			continue
		}
		from, ok1 := ep.State(p.T)
		if !ok1 {
			continue
		}
		total += rule.Learn(w, activeOf(from), from.Eval, ep.Return(), games)
	}
	return total
}

// RunLambdaReturn performs the backward sweep: for a Backward pair
// source, computes Λ from the end of the episode back to each pair's
// earlier timestep and applies the update.
func RunLambdaReturn(ring *history.Ring, pairs []Pair, rule learning.LambdaReturn, w *weight.Set, games int) float64 {
	var total float64
	// Cache Λ per (episode, timestep) since backward sweeps revisit the
	// same suffix repeatedly across overlapping pairs.
	lambdaCache := map[[2]int]float64{}
	var lambdaAt func(epIdx, t int) float64
	lambdaAt = func(epIdx, t int) float64 {
		if v, ok := lambdaCache[[2]int{epIdx, t}]; ok {
			return v
		}
		ep, ok := ring.Episode(epIdx)
		if !ok {
			return 0
		}
		s, ok := ep.State(t)
		if !ok {
			return 0
		}
		if s.Terminal {
			lambdaCache[[2]int{epIdx, t}] = s.Reward
			return s.Reward
		}
		next, ok := ep.State(t + 1)
		if !ok {
			lambdaCache[[2]int{epIdx, t}] = s.Eval
			return s.Eval
		}
		onPolicy := s.Policy != history.PolicyOff
		lnext := lambdaAt(epIdx, t+1)
		v := rule.Step(lnext, next.Reward, next.Eval, s.Eval, onPolicy, next.Terminal)
		lambdaCache[[2]int{epIdx, t}] = v
		return v
	}
	for _, p := range pairs {
		ep, ok := ring.Episode(p.Episode)
		if !ok {
			continue
		}
		from, ok := ep.State(p.T)
		if !ok {
			continue
		}
		lambdaT := lambdaAt(p.Episode, p.T)
		total += rule.Learn(w, activeOf(from), from.Eval, lambdaT, games)
	}
	return total
}

// RunTDLambda performs the forward sweep with eligibility traces over
// one episode (TD(λ) is inherently sequential, so it takes no pair
// list and instead walks every timestep of episode epIdx in order).
func RunTDLambda(ring *history.Ring, epIdx int, rule learning.TDLambda, w *weight.Set, games int) float64 {
	ep, ok := ring.Episode(epIdx)
	if !ok {
		return 0
	}
	w.ClearTraces()
	var total float64
	for t := 0; t < ep.Len()-1; t++ {
		s, _ := ep.State(t)
		next, ok := ep.State(t + 1)
		if !ok {
			break
		}
		onPolicy := s.Policy != history.PolicyOff
		total += rule.Step(w, activeOf(s), s.Eval, next.Eval, next.Reward, next.Terminal, onPolicy, games)
	}
	return total
}
