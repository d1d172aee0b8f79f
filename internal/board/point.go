package board

import "fmt"

// Point is a board coordinate, distinct from the Move type that wraps it
// (points and moves are kept as separate numeric newtypes rather than
// overloading one int).
type Point struct {
	X, Y int
}

// NoPoint is the sentinel for "not a point on the board". It is
// {-1,-1}, not Point's zero value (which is A1).
var NoPoint = Point{X: -1, Y: -1}

// String renders a point in SGF-adjacent column/row form, e.g. "D4".
func (p Point) String() string {
	if p == NoPoint {
		return "--"
	}
	col := "ABCDEFGHJKLMNOPQRST"[p.X] // 'I' skipped, standard Go board lettering
	return fmt.Sprintf("%c%d", col, p.Y+1)
}

// Index returns the row-major index of p on an S×S board.
func (p Point) Index(s int) int {
	return p.Y*s + p.X
}

// PointFromIndex decodes a row-major index on an S×S board.
func PointFromIndex(idx, s int) Point {
	return Point{X: idx % s, Y: idx / s}
}

// MoveKind distinguishes the kinds of move a player may make.
type MoveKind uint8

const (
	MovePlay MoveKind = iota
	MovePass
	MoveResign
)

// Move is a single ply: either a stone placement, a pass, or a
// resignation. NullMove is a placement at NoPoint and is never legal.
// The zero Move value is not NullMove: it is a placement at (0,0).
type Move struct {
	Kind MoveKind
	At   Point
}

// NullMove is the invalid move sentinel.
var NullMove = Move{Kind: MovePlay, At: NoPoint}

// Pass is the pass move.
var Pass = Move{Kind: MovePass, At: NoPoint}

// Resign is the resignation move.
var Resign = Move{Kind: MoveResign, At: NoPoint}

// PlayAt builds a placement move at p.
func PlayAt(p Point) Move {
	return Move{Kind: MovePlay, At: p}
}

// IsPlay reports whether m places a stone on the board.
func (m Move) IsPlay() bool {
	return m.Kind == MovePlay && m != NullMove
}

func (m Move) String() string {
	switch m.Kind {
	case MovePass:
		return "pass"
	case MoveResign:
		return "resign"
	default:
		return m.At.String()
	}
}
