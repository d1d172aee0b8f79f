package features

import "github.com/hailam/goweiqi/internal/board"

// ProductSet composes two child sets with the Cartesian index scheme
// `ia + na·ib`.
type ProductSet struct {
	A, B Set
	na   int
	init bool
}

// NewProductSet composes A and B into one multiplicative feature space.
func NewProductSet(a, b Set) *ProductSet {
	return &ProductSet{A: a, B: b}
}

func (p *ProductSet) EnsureInitialised() {
	if p.init {
		return
	}
	p.A.EnsureInitialised()
	p.B.EnsureInitialised()
	p.na = p.A.NumFeatures()
	p.init = true
}

func (p *ProductSet) NumFeatures() int { return p.na * p.B.NumFeatures() }

func (p *ProductSet) Name() string { return "Product(" + p.A.Name() + "," + p.B.Name() + ")" }

// Index composes (ia, ib) into the parent index.
func (p *ProductSet) Index(ia, ib int) int { return ia + p.na*ib }

// Decode splits a parent index back into (ia, ib).
func (p *ProductSet) Decode(idx int) (ia, ib int) {
	return idx % p.na, idx / p.na
}

func (p *ProductSet) Touches(idx int, pt board.Point) bool {
	ia, ib := p.Decode(idx)
	return p.A.Touches(ia, pt) || p.B.Touches(ib, pt)
}

func (p *ProductSet) Describe(idx int) string {
	ia, ib := p.Decode(idx)
	return p.A.Describe(ia) + " x " + p.B.Describe(ib)
}
