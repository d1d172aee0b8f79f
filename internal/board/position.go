package board

import (
	"errors"
	"fmt"
)

// Errors returned by Play/Undo; the board abstraction's io/runtime error
// surface.
var (
	ErrIllegalMove   = errors.New("board: illegal move")
	ErrNothingToUndo = errors.New("board: undo without matching execute")
)

// KoRule selects which ko variant Play enforces: the simple
// one-point retake ban, or full positional superko via the hash
// history. Rules are a per-position parameter, not a global.
type KoRule int

const (
	KoSimple     KoRule = iota // single forbidden retake point
	KoPositional               // full positional superko via hash history
)

// undoRecord captures everything Play mutated, for exact LIFO rollback.
type undoRecord struct {
	move          Move
	color         Color
	captured      []Point
	prevKo        Point
	prevHash      uint64
	prevToPlay    Color
	prevMoveNo    int
	posHashPushed bool
}

// Position is a complete Go board position plus enough history to
// support Play/Undo and ko/superko enforcement.
type Position struct {
	size int
	komi float64
	ko   KoRule

	grid   []Color
	toPlay Color
	moveNo int
	hash   uint64
	koPt   Point

	history    []undoRecord
	posHistory map[uint64]int // positional superko: hash -> occurrence count

	lastCaptured []Point // captures from the most recently committed move
}

// NewPosition creates an empty size×size board.
func NewPosition(size int, komi float64, ko KoRule) *Position {
	p := &Position{
		size:       size,
		komi:       komi,
		ko:         ko,
		grid:       make([]Color, size*size),
		toPlay:     Black,
		koPt:       NoPoint,
		posHistory: make(map[uint64]int),
	}
	zt := zobristFor(size)
	p.hash = zt.blackToMove // Black to move: XOR in the side-to-move key
	p.posHistory[p.hash] = 1
	return p
}

// Size returns the board edge length S.
func (p *Position) Size() int { return p.size }

// Komi returns the configured komi.
func (p *Position) Komi() float64 { return p.komi }

// ToPlay returns the color to move.
func (p *Position) ToPlay() Color { return p.toPlay }

// MoveNumber returns the number of committed plies so far.
func (p *Position) MoveNumber() int { return p.moveNo }

// Hash returns the Zobrist hash including the side-to-move bit.
func (p *Position) Hash() uint64 { return p.hash }

// InBounds reports whether p lies on the board.
func (b *Position) InBounds(p Point) bool {
	return p.X >= 0 && p.X < b.size && p.Y >= 0 && p.Y < b.size
}

// ColorAt returns the stone color at p (Empty if p is vacant).
func (b *Position) ColorAt(p Point) Color {
	return b.grid[p.Index(b.size)]
}

// Occupied reports whether a stone sits at p.
func (b *Position) Occupied(p Point) bool {
	return b.ColorAt(p) != Empty
}

// AllPoints returns every point on the board in row-major order.
func (b *Position) AllPoints() []Point {
	pts := make([]Point, 0, b.size*b.size)
	for y := 0; y < b.size; y++ {
		for x := 0; x < b.size; x++ {
			pts = append(pts, Point{X: x, Y: y})
		}
	}
	return pts
}

func (b *Position) neighbors(p Point) []Point {
	cand := [4]Point{
		{X: p.X - 1, Y: p.Y},
		{X: p.X + 1, Y: p.Y},
		{X: p.X, Y: p.Y - 1},
		{X: p.X, Y: p.Y + 1},
	}
	out := make([]Point, 0, 4)
	for _, n := range cand {
		if b.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

// groupOf floods the block containing p, returning its stones and the
// set of liberty points. Returns ok=false if p is empty.
func (b *Position) groupOf(p Point) (stones, liberties []Point, ok bool) {
	c := b.ColorAt(p)
	if c == Empty {
		return nil, nil, false
	}
	seen := map[Point]bool{p: true}
	libSeen := map[Point]bool{}
	stack := []Point{p}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stones = append(stones, cur)
		for _, n := range b.neighbors(cur) {
			switch b.ColorAt(n) {
			case Empty:
				if !libSeen[n] {
					libSeen[n] = true
					liberties = append(liberties, n)
				}
			case c:
				if !seen[n] {
					seen[n] = true
					stack = append(stack, n)
				}
			}
		}
	}
	return stones, liberties, true
}

// NumLiberties returns the liberty count of the block containing p.
// Returns 0 if p is empty.
func (b *Position) NumLiberties(p Point) int {
	_, libs, ok := b.groupOf(p)
	if !ok {
		return 0
	}
	return len(libs)
}

// NumLibertiesAtMost returns min(actual liberties, k)+ok-style early exit:
// it stops counting once k is reached, for the hot paths (atari checks)
// that only care whether liberties are below a threshold.
func (b *Position) NumLibertiesAtMost(p Point, k int) int {
	c := b.ColorAt(p)
	if c == Empty {
		return 0
	}
	seen := map[Point]bool{p: true}
	libSeen := map[Point]bool{}
	stack := []Point{p}
	for len(stack) > 0 && len(libSeen) < k {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range b.neighbors(cur) {
			if len(libSeen) >= k {
				break
			}
			switch b.ColorAt(n) {
			case Empty:
				libSeen[n] = true
			case c:
				if !seen[n] {
					seen[n] = true
					stack = append(stack, n)
				}
			}
		}
	}
	return len(libSeen)
}

// BlockAnchor returns the lowest row-major-index point in p's block -
// the canonical representative used by callers that need one stable
// identity per group.
func (b *Position) BlockAnchor(p Point) Point {
	stones, _, ok := b.groupOf(p)
	if !ok {
		return NoPoint
	}
	anchor := stones[0]
	for _, s := range stones[1:] {
		if s.Index(b.size) < anchor.Index(b.size) {
			anchor = s
		}
	}
	return anchor
}

// BlockStones returns every stone in p's block.
func (b *Position) BlockStones(p Point) []Point {
	stones, _, _ := b.groupOf(p)
	return stones
}

// IsCapturingMove reports whether playing m as c would remove any
// opposing stones, without mutating the board.
func (b *Position) IsCapturingMove(m Move, c Color) bool {
	if !m.IsPlay() || b.Occupied(m.At) {
		return false
	}
	for _, n := range b.neighbors(m.At) {
		if b.ColorAt(n) == c.Other() && b.NumLibertiesAtMost(n, 2) == 1 {
			// n's group has no liberty other than m.At itself
			if b.groupLibertyIsOnly(n, m.At) {
				return true
			}
		}
	}
	return false
}

func (b *Position) groupLibertyIsOnly(groupPt, only Point) bool {
	_, libs, _ := b.groupOf(groupPt)
	return len(libs) == 1 && libs[0] == only
}

// IsLegal reports whether c may play m on the current position: the
// board state is unchanged either way.
func (b *Position) IsLegal(m Move, c Color) bool {
	switch m.Kind {
	case MovePass, MoveResign:
		return true
	}
	if !b.InBounds(m.At) || b.Occupied(m.At) {
		return false
	}
	if b.ko == KoSimple && m.At == b.koPt {
		return false
	}
	// Simulate: suicide is illegal unless it captures.
	captures := b.wouldCapture(m.At, c)
	if len(captures) == 0 && b.wouldBeSuicide(m.At, c) {
		return false
	}
	if b.ko == KoPositional {
		h := b.hashAfter(m.At, c, captures)
		if b.posHistory[h] > 0 {
			return false
		}
	}
	return true
}

func (b *Position) wouldCapture(at Point, c Color) []Point {
	var captured []Point
	seenGroup := map[Point]bool{}
	for _, n := range b.neighbors(at) {
		if b.ColorAt(n) != c.Other() {
			continue
		}
		anchor := b.BlockAnchor(n)
		if seenGroup[anchor] {
			continue
		}
		seenGroup[anchor] = true
		if b.groupLibertyIsOnly(n, at) {
			captured = append(captured, b.BlockStones(n)...)
		}
	}
	return captured
}

// wouldBeSuicide reports whether placing c at `at`, after removing any
// opponent stones it captures (none, by the time this is called), leaves
// the new stone's own group with zero liberties.
func (b *Position) wouldBeSuicide(at Point, c Color) bool {
	for _, n := range b.neighbors(at) {
		if b.ColorAt(n) == Empty {
			return false
		}
		if b.ColorAt(n) == c && b.NumLibertiesAtMost(n, 2) >= 2 {
			return false
		}
	}
	return true
}

func (b *Position) hashAfter(at Point, c Color, captured []Point) uint64 {
	zt := zobristFor(b.size)
	h := b.hash ^ zt.blackToMove // flip side to move
	h ^= zt.stone[at.Index(b.size)][stoneKeyIndex(c)]
	for _, cap := range captured {
		h ^= zt.stone[cap.Index(b.size)][stoneKeyIndex(c.Other())]
	}
	return h
}

// Play commits m as a move by color c, mutating the board and pushing an
// undo record. It returns the list of captured points (nil for a
// non-capturing move, pass, or resignation).
func (b *Position) Play(m Move, c Color) ([]Point, error) {
	if !b.IsLegal(m, c) {
		return nil, fmt.Errorf("%w: %s by %s", ErrIllegalMove, m, c)
	}
	rec := undoRecord{move: m, color: c, prevKo: b.koPt, prevHash: b.hash, prevToPlay: b.toPlay, prevMoveNo: b.moveNo}

	switch m.Kind {
	case MovePass, MoveResign:
		b.hash ^= zobristFor(b.size).blackToMove
		b.toPlay = c.Other()
		b.moveNo++
		b.history = append(b.history, rec)
		b.lastCaptured = nil
		return nil, nil
	}

	zt := zobristFor(b.size)
	captured := b.wouldCapture(m.At, c)
	b.grid[m.At.Index(b.size)] = c
	b.hash ^= zt.stone[m.At.Index(b.size)][stoneKeyIndex(c)]
	for _, cap := range captured {
		b.grid[cap.Index(b.size)] = Empty
		b.hash ^= zt.stone[cap.Index(b.size)][stoneKeyIndex(c.Other())]
	}
	b.hash ^= zt.blackToMove

	b.koPt = NoPoint
	if len(captured) == 1 && b.groupLibertyIsOnly(m.At, captured[0]) {
		b.koPt = captured[0]
	}

	rec.captured = captured
	b.toPlay = c.Other()
	b.moveNo++
	b.posHistory[b.hash]++
	rec.posHashPushed = true
	b.history = append(b.history, rec)
	b.lastCaptured = captured
	return captured, nil
}

// Undo reverses the most recently committed move.
func (b *Position) Undo() error {
	if len(b.history) == 0 {
		return ErrNothingToUndo
	}
	rec := b.history[len(b.history)-1]
	b.history = b.history[:len(b.history)-1]

	if rec.posHashPushed {
		b.posHistory[b.hash]--
		if b.posHistory[b.hash] == 0 {
			delete(b.posHistory, b.hash)
		}
	}

	switch rec.move.Kind {
	case MovePlay:
		b.grid[rec.move.At.Index(b.size)] = Empty
		for _, cap := range rec.captured {
			b.grid[cap.Index(b.size)] = rec.color.Other()
		}
	}
	b.hash = rec.prevHash
	b.koPt = rec.prevKo
	b.toPlay = rec.prevToPlay
	b.moveNo = rec.prevMoveNo
	b.lastCaptured = nil
	return nil
}

// LastCaptured returns the points captured by the most recently
// committed Play call (nil if none, or if the last call was Undo).
func (b *Position) LastCaptured() []Point {
	return b.lastCaptured
}

// AreaScore returns the area (Chinese-style) score from Black's
// perspective, komi subtracted: each stone counts for its color, and
// each empty region bordered by only one color counts for that color.
// Regions touching both colors (or nothing) are neutral.
func (b *Position) AreaScore() float64 {
	var black, white int
	seen := make([]bool, b.size*b.size)
	for _, p := range b.AllPoints() {
		switch b.ColorAt(p) {
		case Black:
			black++
			continue
		case White:
			white++
			continue
		}
		if seen[p.Index(b.size)] {
			continue
		}
		region, owner := b.floodRegion(p, seen)
		switch owner {
		case Black:
			black += region
		case White:
			white += region
		}
	}
	return float64(black-white) - b.komi
}

// floodRegion floods the empty region containing p, marking seen, and
// returns its size plus the single bordering color (Empty if the region
// borders both colors or none).
func (b *Position) floodRegion(p Point, seen []bool) (int, Color) {
	stack := []Point{p}
	seen[p.Index(b.size)] = true
	size := 0
	owner := Empty
	mixed := false
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		size++
		for _, n := range b.neighbors(cur) {
			c := b.ColorAt(n)
			if c == Empty {
				if !seen[n.Index(b.size)] {
					seen[n.Index(b.size)] = true
					stack = append(stack, n)
				}
				continue
			}
			if owner == Empty {
				owner = c
			} else if owner != c {
				mixed = true
			}
		}
	}
	if mixed {
		return size, Empty
	}
	return size, owner
}

// String renders the board as ASCII, '.' empty, 'X' black, 'O' white.
func (b *Position) String() string {
	s := ""
	for y := b.size - 1; y >= 0; y-- {
		for x := 0; x < b.size; x++ {
			switch b.ColorAt(Point{X: x, Y: y}) {
			case Black:
				s += "X"
			case White:
				s += "O"
			default:
				s += "."
			}
		}
		s += "\n"
	}
	return s
}
