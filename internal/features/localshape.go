package features

import (
	"fmt"

	"github.com/hailam/goweiqi/internal/board"
)

// LocalShapeSet enumerates every W×H stone pattern at every anchor on an
// S×S board. Digit values follow board.Color's own iota
// ordering (Empty=0, Black=1, White=2), so the empty shape is always
// shape index 0 with no separate encoding table needed.
type LocalShapeSet struct {
	W, H, S int

	Xnum, Ynum int
	Nshapes    int
	N          int

	ignoreEmpty bool
	init        bool
}

// NewLocalShapeSet builds a W×H local-shape set over an S×S board.
func NewLocalShapeSet(w, h, s int, ignoreEmpty bool) *LocalShapeSet {
	l := &LocalShapeSet{W: w, H: h, S: s, ignoreEmpty: ignoreEmpty}
	l.EnsureInitialised()
	return l
}

// EnsureInitialised computes the derived sizes; it has no children to
// recurse into and is idempotent by construction (pure arithmetic).
func (l *LocalShapeSet) EnsureInitialised() {
	if l.init {
		return
	}
	l.Xnum = l.S - l.W + 1
	l.Ynum = l.S - l.H + 1
	l.Nshapes = ipow(3, l.W*l.H)
	l.N = l.Nshapes * l.Xnum * l.Ynum
	l.init = true
}

func ipow(base, exp int) int {
	r := 1
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}

func (l *LocalShapeSet) NumFeatures() int { return l.N }

func (l *LocalShapeSet) Name() string {
	return fmt.Sprintf("Local%dx%d-S%d", l.W, l.H, l.S)
}

// AnchorIndex computes the row-major anchor index for anchor (x,y).
func (l *LocalShapeSet) AnchorIndex(x, y int) int {
	return y*l.Xnum + x
}

// AnchorXY decodes an anchor index back to (x,y).
func (l *LocalShapeSet) AnchorXY(anchorIdx int) (x, y int) {
	return anchorIdx % l.Xnum, anchorIdx / l.Xnum
}

// FeatureIndex composes an anchor index and a shape index into a full
// feature index.
func (l *LocalShapeSet) FeatureIndex(anchorIdx, shapeIdx int) int {
	return anchorIdx*l.Nshapes + shapeIdx
}

// Decode splits a full feature index back into (anchorIdx, shapeIdx).
func (l *LocalShapeSet) Decode(idx int) (anchorIdx, shapeIdx int) {
	return idx / l.Nshapes, idx % l.Nshapes
}

// ShapeDigits unpacks a shape index into its W·H base-3 digits, digit i
// corresponding to local point (i%W, i/W), row-major and
// least-significant first.
func (l *LocalShapeSet) ShapeDigits(shapeIdx int) []int {
	digits := make([]int, l.W*l.H)
	for i := range digits {
		digits[i] = shapeIdx % 3
		shapeIdx /= 3
	}
	return digits
}

// ShapeFromDigits re-packs digits produced by ShapeDigits (or a
// transform of them) into a shape index.
func (l *LocalShapeSet) ShapeFromDigits(digits []int) int {
	idx := 0
	mul := 1
	for _, d := range digits {
		idx += d * mul
		mul *= 3
	}
	return idx
}

// IsIgnored reports whether a feature should never appear as an output
// index: the empty shape, when ignoreEmpty is configured.
func (l *LocalShapeSet) IsIgnored(idx int) bool {
	_, shapeIdx := l.Decode(idx)
	return l.ignoreEmpty && shapeIdx == 0
}

// IsSquare reports whether the shape window (and hence transpose) is
// well-defined, i.e. W == H.
func (l *LocalShapeSet) IsSquare() bool {
	return l.W == l.H
}

// BoardSize returns the edge length S of the board this set covers.
func (l *LocalShapeSet) BoardSize() int {
	return l.S
}

// Translate keeps the shape fixed and moves the anchor by (dx,dy). ok is
// false if the new anchor falls outside [0,Xnum)×[0,Ynum).
func (l *LocalShapeSet) Translate(idx, dx, dy int) (int, bool) {
	anchorIdx, shapeIdx := l.Decode(idx)
	x, y := l.AnchorXY(anchorIdx)
	nx, ny := x+dx, y+dy
	if nx < 0 || nx >= l.Xnum || ny < 0 || ny >= l.Ynum {
		return 0, false
	}
	return l.FeatureIndex(l.AnchorIndex(nx, ny), shapeIdx), true
}

// Transform applies a combination of flip-x, flip-y and transpose to
// both the shape content and the anchor position. transpose is
// only valid when IsSquare(); ok is false otherwise or if the
// transformed anchor falls out of bounds (it never does for flips/
// transpose on a square board, but the check is kept explicit).
func (l *LocalShapeSet) Transform(idx int, flipX, flipY, transpose bool) (int, bool) {
	if transpose && !l.IsSquare() {
		return 0, false
	}
	anchorIdx, shapeIdx := l.Decode(idx)
	x, y := l.AnchorXY(anchorIdx)
	digits := l.ShapeDigits(shapeIdx)

	newDigits := make([]int, len(digits))
	w, h := l.W, l.H
	for ly := 0; ly < h; ly++ {
		for lx := 0; lx < w; lx++ {
			slx, sly := lx, ly
			if flipX {
				slx = w - 1 - slx
			}
			if flipY {
				sly = h - 1 - sly
			}
			if transpose {
				slx, sly = sly, slx
			}
			newDigits[sly*w+slx] = digits[ly*w+lx]
		}
	}

	nx, ny := x, y
	if flipX {
		nx = l.Xnum - 1 - nx
	}
	if flipY {
		ny = l.Ynum - 1 - ny
	}
	if transpose {
		nx, ny = ny, nx
	}
	if nx < 0 || nx >= l.Xnum || ny < 0 || ny >= l.Ynum {
		return 0, false
	}
	return l.FeatureIndex(l.AnchorIndex(nx, ny), l.ShapeFromDigits(newDigits)), true
}

// Invert swaps black and white throughout the shape, keeping the anchor
// fixed.
func (l *LocalShapeSet) Invert(idx int) int {
	anchorIdx, shapeIdx := l.Decode(idx)
	digits := l.ShapeDigits(shapeIdx)
	for i, d := range digits {
		digits[i] = invertDigit(d)
	}
	return l.FeatureIndex(anchorIdx, l.ShapeFromDigits(digits))
}

func invertDigit(d int) int {
	switch board.Color(d) {
	case board.Black:
		return int(board.White)
	case board.White:
		return int(board.Black)
	default:
		return d
	}
}

// localMoveIndex packs a (lx, ly, color) triple into the dense
// [0, 3·W·H) local-move space used by the successor table.
func (l *LocalShapeSet) localMoveIndex(lx, ly int, c board.Color) int {
	return (ly*l.W+lx)*3 + int(c)
}

// LocalMoveSentinel marks an invalid (incompatible) local move result.
const LocalMoveSentinel = -1

// LocalMove places color c at local coordinate (lx,ly) within the given
// shape index, returning the new shape index. It fails (returns
// LocalMoveSentinel) if the move is incompatible with the existing
// content: writing Empty where it's already Empty, or writing a stone
// where a stone already sits.
func (l *LocalShapeSet) LocalMove(shapeIdx, lx, ly int, c board.Color) int {
	digits := l.ShapeDigits(shapeIdx)
	pos := ly*l.W + lx
	old := board.Color(digits[pos])
	if old == board.Empty && c == board.Empty {
		return LocalMoveSentinel
	}
	if old != board.Empty && c != board.Empty {
		return LocalMoveSentinel
	}
	digits[pos] = int(c)
	return l.ShapeFromDigits(digits)
}

// Touches reports whether feature index touches board point p.
func (l *LocalShapeSet) Touches(idx int, p board.Point) bool {
	anchorIdx, _ := l.Decode(idx)
	x, y := l.AnchorXY(anchorIdx)
	return p.X >= x && p.X < x+l.W && p.Y >= y && p.Y < y+l.H
}

// Describe renders a feature index as "anchor=(x,y) shape=[digits]".
func (l *LocalShapeSet) Describe(idx int) string {
	anchorIdx, shapeIdx := l.Decode(idx)
	x, y := l.AnchorXY(anchorIdx)
	return fmt.Sprintf("anchor=(%d,%d) shape=%v", x, y, l.ShapeDigits(shapeIdx))
}
