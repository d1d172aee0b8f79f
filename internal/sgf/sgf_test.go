package sgf

import (
	"strings"
	"testing"

	"github.com/hailam/goweiqi/internal/board"
)

func TestRenderMainLine(t *testing.T) {
	b := NewBuilder(5, 6.5)
	b.Play(board.Black, board.Point{X: 2, Y: 2})
	b.Play(board.White, board.Point{X: 3, Y: 2})
	b.PlayPass(board.Black)

	got := b.String()
	want := "(;FF[4]KM[6.50]SZ[5] ;B[cc] ;W[dc] ;B[])"
	if got != want {
		t.Fatalf("rendered %q, want %q", got, want)
	}
}

func TestIntegralKomi(t *testing.T) {
	b := NewBuilder(9, 7)
	if got := b.String(); !strings.Contains(got, "KM[7]") {
		t.Fatalf("integral komi rendered as %q, want KM[7]", got)
	}
}

func TestVariationWrapsPlayout(t *testing.T) {
	b := NewBuilder(5, 0)
	b.Play(board.Black, board.Point{X: 0, Y: 0})
	b.Variation([]Node{
		{Color: board.White, Point: board.Point{X: 1, Y: 1}},
		{Color: board.Black, Point: board.Point{X: 2, Y: 2}},
	})
	b.Play(board.White, board.Point{X: 4, Y: 4})

	got := b.String()
	want := "(;FF[4]KM[0]SZ[5] ;B[aa]( ;W[bb] ;B[cc]) ;W[ee])"
	if got != want {
		t.Fatalf("rendered %q, want %q", got, want)
	}
}

func TestTwoVariations(t *testing.T) {
	b := NewBuilder(3, 0)
	b.Play(board.Black, board.Point{X: 0, Y: 0})
	b.Variation([]Node{{Color: board.White, Point: board.Point{X: 1, Y: 0}}})
	b.Variation([]Node{{Color: board.White, Point: board.Point{X: 0, Y: 1}}})

	got := b.String()
	if !strings.Contains(got, "( ;W[ba])( ;W[ab])") {
		t.Fatalf("rendered %q, want two parenthesised variations", got)
	}
}
