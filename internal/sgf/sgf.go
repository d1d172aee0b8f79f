// Package sgf emits minimal SGF game records:
// `(;FF[4]KM[komi]SZ[size] ;B[xy] ;W[xy] ...)`, with parenthesised
// variations wrapping simulated playouts branched off the main line.
package sgf

import (
	"strings"

	"github.com/hailam/goweiqi/internal/board"
)

// Node is one move (or the pass sentinel) plus any variations
// branching from it.
type Node struct {
	Color      board.Color
	Point      board.Point
	Pass       bool
	Variations [][]*Node // each a parenthesised move sequence branching after this node
}

// Game is a complete SGF record: root properties plus a main line of
// nodes.
type Game struct {
	Size int
	Komi float64
	Main []*Node
}

// coord renders a point as SGF's two-letter coordinate: 'a'+x, 'a'+y,
// zero-indexed with no axis flip, so Y=0 becomes 'a', SGF's top row
// (SGF's y axis runs top-to-bottom).
func coord(p board.Point) string {
	return string(rune('a'+p.X)) + string(rune('a'+p.Y))
}

// Render produces the full SGF text for g.
func Render(g Game) string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(";FF[4]")
	b.WriteString("KM[")
	b.WriteString(formatKomi(g.Komi))
	b.WriteString("]")
	b.WriteString("SZ[")
	b.WriteString(itoa(g.Size))
	b.WriteString("]")
	renderNodes(&b, g.Main)
	b.WriteByte(')')
	return b.String()
}

func renderNodes(b *strings.Builder, nodes []*Node) {
	for _, n := range nodes {
		b.WriteString(" ;")
		b.WriteString(colorTag(n.Color))
		b.WriteByte('[')
		if !n.Pass {
			b.WriteString(coord(n.Point))
		}
		b.WriteByte(']')
		for _, v := range n.Variations {
			b.WriteByte('(')
			renderNodes(b, v)
			b.WriteByte(')')
		}
	}
}

func colorTag(c board.Color) string {
	if c == board.White {
		return "W"
	}
	return "B"
}

func formatKomi(k float64) string {
	if k == float64(int64(k)) {
		return itoa(int(k))
	}
	s := trimFloat(k)
	return s
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func trimFloat(f float64) string {
	neg := f < 0
	if neg {
		f = -f
	}
	whole := int64(f)
	frac := int64((f-float64(whole))*100 + 0.5)
	s := itoa(int(whole)) + "." + padTwo(frac)
	if neg {
		return "-" + s
	}
	return s
}

func padTwo(n int64) string {
	if n < 10 {
		return "0" + itoa(int(n))
	}
	return itoa(int(n))
}

// Builder accumulates a main line incrementally, for callers that emit
// moves as a game is played rather than assembling a Game up front.
type Builder struct {
	game Game
	tail []*Node // append point: either &game.Main or a variation slice
}

// NewBuilder starts a fresh record for an SxS board with the given
// komi.
func NewBuilder(size int, komi float64) *Builder {
	b := &Builder{game: Game{Size: size, Komi: komi}}
	return b
}

// Play appends one move to the main line.
func (b *Builder) Play(c board.Color, p board.Point) {
	b.game.Main = append(b.game.Main, &Node{Color: c, Point: p})
}

// PlayPass appends a pass to the main line.
func (b *Builder) PlayPass(c board.Color) {
	b.game.Main = append(b.game.Main, &Node{Color: c, Pass: true})
}

// Variation appends a playout's move sequence as a parenthesised
// variation branching from the last main-line node.
func (b *Builder) Variation(moves []Node) {
	if len(b.game.Main) == 0 || len(moves) == 0 {
		return
	}
	last := b.game.Main[len(b.game.Main)-1]
	seq := make([]*Node, len(moves))
	for i := range moves {
		cp := moves[i]
		seq[i] = &cp
	}
	last.Variations = append(last.Variations, seq)
}

// String renders the builder's accumulated game.
func (b *Builder) String() string { return Render(b.game) }
