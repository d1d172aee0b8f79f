// Package history implements the fixed-capacity ring buffer of
// episodes the learning rules and trainers replay: each episode is a
// finite sequence of per-timestep states, terminated by a pair of
// terminal states (one per color) carrying the final score.
package history

import "errors"

// ErrTimestepOverflow is the invariant-violation error for an
// episode that runs past TMax.
var ErrTimestepOverflow = errors.New("history: episode exceeds max timestep")

// PolicyType records which policy selected a state's move, for the
// on-policy/off-policy accounting learning rules need.
type PolicyType int

const (
	PolicyNone PolicyType = iota
	PolicyBest
	PolicyOn
	PolicyOff
	PolicyTerminal
)

// State is one timestep of one episode.
type State struct {
	Timestep    int
	ColorToPlay int8 // mirrors board.Color's int encoding without importing board, keeping this package dependency-free
	MovePlayed  int  // board.Point.Index(size), or -1 for pass/terminal
	Policy      PolicyType
	Evaluated   bool
	Terminal    bool
	Reward      float64
	Eval        float64
	BestMove    int // -1 if none
	BestValue   float64
	HasBestMove bool

	// ActiveFeature/ActiveOccurrences are the optional stored active set
	//, parallel slices rather than a dependency on
	// tracker.ActiveSet to keep this package import-free of the tracker
	// machinery; HasActive distinguishes "not recorded" from "recorded
	// empty".
	ActiveFeature     []int
	ActiveOccurrences []int
	HasActive         bool
}

// Episode is one game's sequence of states, up to TMax+2 (the +2 for the
// two terminal states).
type Episode struct {
	states []State
}

// Len returns the number of recorded states.
func (e *Episode) Len() int { return len(e.states) }

// State returns the state at timestep t.
func (e *Episode) State(t int) (State, bool) {
	if t < 0 || t >= len(e.states) {
		return State{}, false
	}
	return e.states[t], true
}

// Return sums rewards over the episode's length, stopping after the
// first terminal state so the return equals the game outcome rather
// than double-counting the second color's terminal.
func (e *Episode) Return() float64 {
	var r float64
	for _, s := range e.states {
		r += s.Reward
		if s.Terminal {
			break
		}
	}
	return r
}

// Ring is the fixed-capacity ring buffer of episodes.
type Ring struct {
	episodes []*Episode
	cursor   int // index of the current (in-progress) episode
	filled   int // number of episodes ever started, capped at capacity
	tmax     int
}

// New allocates a ring of capacity episodes, each capped at tmax
// timesteps (not counting the two terminal states).
func New(capacity, tmax int) *Ring {
	r := &Ring{episodes: make([]*Episode, capacity), tmax: tmax, cursor: -1}
	return r
}

// Capacity returns C.
func (r *Ring) Capacity() int { return len(r.episodes) }

// NewEpisode advances the cursor and starts a fresh episode, evicting
// the oldest if the ring is full.
func (r *Ring) NewEpisode() *Episode {
	r.cursor = (r.cursor + 1) % len(r.episodes)
	ep := &Episode{}
	r.episodes[r.cursor] = ep
	if r.filled < len(r.episodes) {
		r.filled++
	}
	return ep
}

// Current returns the in-progress episode, or nil if NewEpisode was
// never called.
func (r *Ring) Current() *Episode {
	if r.cursor < 0 {
		return nil
	}
	return r.episodes[r.cursor]
}

// AppendState appends a state to the current episode, enforcing the
// TMax invariant.
func (r *Ring) AppendState(s State) error {
	ep := r.Current()
	if ep == nil {
		return errors.New("history: no current episode")
	}
	if s.Terminal {
		// Two terminal states (one per color) are allowed past tmax.
		if len(ep.states) >= r.tmax+2 {
			return ErrTimestepOverflow
		}
	} else if len(ep.states) >= r.tmax {
		return ErrTimestepOverflow
	}
	ep.states = append(ep.states, s)
	return nil
}

// TerminateEpisode appends the two terminal states carrying score,
// completing the episode so every color sees a terminal self-transition.
func (r *Ring) TerminateEpisode(score float64) error {
	ep := r.Current()
	if ep == nil {
		return errors.New("history: no current episode")
	}
	t := len(ep.states)
	black := State{Timestep: t, ColorToPlay: 1, MovePlayed: -1, Policy: PolicyTerminal, Terminal: true, Reward: score, Evaluated: true}
	white := State{Timestep: t + 1, ColorToPlay: 2, MovePlayed: -1, Policy: PolicyTerminal, Terminal: true, Reward: score, Evaluated: true}
	if err := r.AppendState(black); err != nil {
		return err
	}
	return r.AppendState(white)
}

// GetState returns the state at timestep t of the n-th most recent
// episode (n=0 is the current/most recently completed episode).
func (r *Ring) GetState(t, n int) (State, bool) {
	ep, ok := r.Episode(n)
	if !ok {
		return State{}, false
	}
	return ep.State(t)
}

// Episode returns the n-th most recent episode (n=0 is most recent).
func (r *Ring) Episode(n int) (*Episode, bool) {
	if n < 0 || n >= r.filled {
		return nil, false
	}
	idx := r.cursor - n
	for idx < 0 {
		idx += len(r.episodes)
	}
	return r.episodes[idx], true
}

// Filled returns how many episodes are currently populated.
func (r *Ring) Filled() int { return r.filled }
