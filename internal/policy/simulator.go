package policy

import (
	"math/rand"

	"github.com/hailam/goweiqi/internal/board"
	"github.com/hailam/goweiqi/internal/movefilter"
)

// RandomPlayout is the default Simulator: uniformly random legal moves,
// never filling a simple eye, until two consecutive passes or the move
// cap, scored by area count from Black's perspective. Every move played
// is undone before returning, so the caller's position is untouched.
type RandomPlayout struct{}

func (RandomPlayout) Simulate(pos *board.Position, c board.Color, rng *rand.Rand, maxMoves int) (float64, error) {
	if maxMoves <= 0 {
		maxMoves = 2 * pos.Size() * pos.Size()
	}
	played := 0
	passes := 0
	for played < maxMoves && passes < 2 {
		p, ok := randomPlayoutMove(pos, c, rng)
		m := board.Pass
		if ok {
			m = board.PlayAt(p)
			passes = 0
		} else {
			passes++
		}
		if _, err := pos.Play(m, c); err != nil {
			return 0, err
		}
		played++
		c = c.Other()
	}
	score := pos.AreaScore()
	for i := 0; i < played; i++ {
		if err := pos.Undo(); err != nil {
			return 0, err
		}
	}
	return score, nil
}

// randomPlayoutMove draws vacant points in random order and returns the
// first legal non-eye-filling one, or ok=false if none exists.
func randomPlayoutMove(pos *board.Position, c board.Color, rng *rand.Rand) (board.Point, bool) {
	var vacant []board.Point
	for _, p := range pos.AllPoints() {
		if !pos.Occupied(p) {
			vacant = append(vacant, p)
		}
	}
	rng.Shuffle(len(vacant), func(i, j int) { vacant[i], vacant[j] = vacant[j], vacant[i] })
	for _, p := range vacant {
		if !movefilter.NotSimpleEye(pos, p, c) {
			continue
		}
		if pos.IsLegal(board.PlayAt(p), c) {
			return p, true
		}
	}
	return board.NoPoint, false
}
