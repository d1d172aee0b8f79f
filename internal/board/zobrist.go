package board

// Zobrist hash keys for position hashing, including the side-to-move
// bit. Keys are seeded from a fixed xorshift64* stream so hashes are
// reproducible across runs for any board size.

// prng is a small xorshift64* generator used only to seed Zobrist keys
// reproducibly; it is not used anywhere performance-sensitive.
type prng struct {
	state uint64
}

func newPRNG(seed uint64) *prng {
	return &prng{state: seed}
}

func (p *prng) next() uint64 {
	p.state ^= p.state >> 12
	p.state ^= p.state << 25
	p.state ^= p.state >> 27
	return p.state * 0x2545F4914F6CDD1D
}

// zobristTable holds the per-(point,color) keys for one board size. Keyed
// tables are cached by size since board size is fixed per engine instance
// but the package may be exercised against several sizes in tests.
type zobristTable struct {
	stone       [][2]uint64 // [index][Black=0,White=1]
	blackToMove uint64
}

var zobristCache = map[int]*zobristTable{}

func zobristFor(size int) *zobristTable {
	if t, ok := zobristCache[size]; ok {
		return t
	}
	rng := newPRNG(0x9E3779B97F4A7C15 ^ uint64(size)*0x100000001B3)
	t := &zobristTable{stone: make([][2]uint64, size*size)}
	for i := range t.stone {
		t.stone[i][0] = rng.next()
		t.stone[i][1] = rng.next()
	}
	t.blackToMove = rng.next()
	zobristCache[size] = t
	return t
}

func stoneKeyIndex(c Color) int {
	if c == White {
		return 1
	}
	return 0
}
