// Package trainer implements the traversal strategies over recorded
// history that drive the learning rules: forward,
// backward, and random replay, parameterized by an episode-choice mode,
// a replay count, a timestep gap k, and an interleave flag.
package trainer

import (
	"math/rand"

	"github.com/hailam/goweiqi/internal/history"
)

// EpisodeChoice selects which episode(s) a trainer replays.
type EpisodeChoice int

const (
	ChoiceCurrent EpisodeChoice = iota // the just-completed episode
	ChoiceMostRecent
	ChoiceRandom
)

// Config holds the tunables shared by every trainer.
type Config struct {
	Episodes   EpisodeChoice
	Replays    int
	Gap        int // k, the temporal-difference timestep gap
	Interleave bool
}

// Pair is one (t, t+k) timestep pair a trainer hands to the learning
// rule.
type Pair struct {
	Episode int // episodes-ago index into the ring (0 = most recent)
	T, TK   int
}

func (c Config) episodeIndex(ring *history.Ring, rng *rand.Rand) int {
	switch c.Episodes {
	case ChoiceRandom:
		if ring.Filled() == 0 {
			return 0
		}
		return rng.Intn(ring.Filled())
	default: // ChoiceCurrent, ChoiceMostRecent: both mean "the latest"
		return 0
	}
}

// Forward implements the forward trainer: for each chosen episode, walk
// t = start..T-1, pairing (t, t+k). If not interleaved, a random offset
// in [0,k) is chosen once and t steps by k thereafter.
type Forward struct{ Config Config }

// Pairs returns every (t, t+k) pair this trainer would visit for one
// replay pass, in forward order.
func (f Forward) Pairs(ring *history.Ring, rng *rand.Rand) []Pair {
	var out []Pair
	for r := 0; r < max1(f.Config.Replays); r++ {
		epIdx := f.Config.episodeIndex(ring, rng)
		ep, ok := ring.Episode(epIdx)
		if !ok {
			continue
		}
		k := max1(f.Config.Gap)
		start := 0
		if !f.Config.Interleave && k > 1 {
			start = rng.Intn(k)
		}
		step := 1
		if !f.Config.Interleave {
			step = k
		}
		for t := start; t+k < ep.Len(); t += step {
			out = append(out, Pair{Episode: epIdx, T: t, TK: t + k})
		}
	}
	return out
}

// Backward implements the backward trainer: same pairs as Forward, but
// walked from last to first.
type Backward struct{ Config Config }

// Pairs returns every (t, t+k) pair this trainer would visit, in
// backward (last-to-first) order; required for LambdaReturn's
// backward sweep.
func (b Backward) Pairs(ring *history.Ring, rng *rand.Rand) []Pair {
	fwd := Forward(b).Pairs(ring, rng)
	out := make([]Pair, len(fwd))
	for i, p := range fwd {
		out[len(fwd)-1-i] = p
	}
	return out
}

// Random implements the random trainer: draws t uniformly and pairs
// (t, t+k).
type Random struct{ Config Config }

// Pairs draws Replays random (t, t+k) pairs.
func (r Random) Pairs(ring *history.Ring, rng *rand.Rand) []Pair {
	var out []Pair
	for i := 0; i < max1(r.Config.Replays); i++ {
		epIdx := r.Config.episodeIndex(ring, rng)
		ep, ok := ring.Episode(epIdx)
		if !ok {
			continue
		}
		k := max1(r.Config.Gap)
		if ep.Len() <= k {
			continue
		}
		t := rng.Intn(ep.Len() - k)
		out = append(out, Pair{Episode: epIdx, T: t, TK: t + k})
	}
	return out
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
