// Package succache implements the two on-disk cache file formats the
// local-shape feature machinery builds once and reuses across runs:
// the per-board-size successor table
// (`Successors-SxS-WxH.dat`) and a shared feature set's canonicalised
// lookup table (`Share-<name>[-SI]-Size-S.share`). Both are created on
// first initialisation and loaded thereafter, checksummed with xxh3 the
// same way internal/weightfile checksums the weight file.
package succache

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"
)

// SuccessorPath returns the canonical path template for a successor
// cache file.
func SuccessorPath(dir string, size, w, h int) string {
	return filepath.Join(dir, fmt.Sprintf("Successors-%dx%d-%dx%d.dat", size, size, w, h))
}

// SharePath returns the canonical path template for a share-table
// cache file. suffix is
// the optional "SI" (or other canonicalisation-kind) marker, without
// the dash (SharePath adds it); pass "" to omit it.
func SharePath(dir, setName, suffix string, size int) string {
	if suffix == "" {
		return filepath.Join(dir, fmt.Sprintf("Share-%s-Size-%d.share", setName, size))
	}
	return filepath.Join(dir, fmt.Sprintf("Share-%s-%s-Size-%d.share", setName, suffix, size))
}

// SuccessorTable is the deserialized body of a successor cache file:
// N*W*H*3 successor integers plus N ignore bits.
type SuccessorTable struct {
	N, W, H    int
	Successors []int32
	Ignore     []bool
}

// WriteSuccessorTable writes tbl to path, overwriting any existing
// file.
func WriteSuccessorTable(path string, tbl SuccessorTable) error {
	expect := tbl.N * tbl.W * tbl.H * 3
	if len(tbl.Successors) != expect {
		return fmt.Errorf("succache: successor table has %d entries, want %d", len(tbl.Successors), expect)
	}
	if len(tbl.Ignore) != tbl.N {
		return fmt.Errorf("succache: ignore bits has %d entries, want %d", len(tbl.Ignore), tbl.N)
	}
	body := make([]byte, 12+4*len(tbl.Successors)+len(tbl.Ignore))
	binary.LittleEndian.PutUint32(body[0:], uint32(tbl.N))
	binary.LittleEndian.PutUint32(body[4:], uint32(tbl.W))
	binary.LittleEndian.PutUint32(body[8:], uint32(tbl.H))
	off := 12
	for _, s := range tbl.Successors {
		binary.LittleEndian.PutUint32(body[off:], uint32(s))
		off += 4
	}
	for _, ig := range tbl.Ignore {
		if ig {
			body[off] = 1
		}
		off++
	}
	return writeChecksummed(path, body)
}

// ReadSuccessorTable loads and validates a successor cache file
// previously written by WriteSuccessorTable.
func ReadSuccessorTable(path string) (SuccessorTable, error) {
	body, err := readChecksummed(path)
	if err != nil {
		return SuccessorTable{}, err
	}
	if len(body) < 12 {
		return SuccessorTable{}, fmt.Errorf("succache: truncated successor header")
	}
	n := int(binary.LittleEndian.Uint32(body[0:]))
	w := int(binary.LittleEndian.Uint32(body[4:]))
	h := int(binary.LittleEndian.Uint32(body[8:]))
	want := 12 + 4*n*w*h*3 + n
	if len(body) != want {
		return SuccessorTable{}, fmt.Errorf("succache: successor table size mismatch: have %d want %d", len(body), want)
	}
	off := 12
	succ := make([]int32, n*w*h*3)
	for i := range succ {
		succ[i] = int32(binary.LittleEndian.Uint32(body[off:]))
		off += 4
	}
	ignore := make([]bool, n)
	for i := range ignore {
		ignore[i] = body[off] != 0
		off++
	}
	return SuccessorTable{N: n, W: w, H: h, Successors: succ, Ignore: ignore}, nil
}

// ShareTable is the deserialized body of a share-table cache file:
// input_count (output_index, sign) pairs plus output_count canonical
// input indices.
type ShareTable struct {
	Version          uint32
	InputCount       int
	OutputCount      int
	OutputIndex      []int32
	Sign             []int8
	CanonicalInputOf []int32 // length OutputCount
}

func WriteShareTable(path string, t ShareTable) error {
	if len(t.OutputIndex) != t.InputCount || len(t.Sign) != t.InputCount {
		return fmt.Errorf("succache: share table lookup arrays must have InputCount entries")
	}
	if len(t.CanonicalInputOf) != t.OutputCount {
		return fmt.Errorf("succache: share table canonical-input array must have OutputCount entries")
	}
	body := make([]byte, 12+5*t.InputCount+4*t.OutputCount)
	binary.LittleEndian.PutUint32(body[0:], t.Version)
	binary.LittleEndian.PutUint32(body[4:], uint32(t.InputCount))
	binary.LittleEndian.PutUint32(body[8:], uint32(t.OutputCount))
	off := 12
	for i := 0; i < t.InputCount; i++ {
		binary.LittleEndian.PutUint32(body[off:], uint32(t.OutputIndex[i]))
		off += 4
		body[off] = byte(t.Sign[i])
		off++
	}
	for _, c := range t.CanonicalInputOf {
		binary.LittleEndian.PutUint32(body[off:], uint32(c))
		off += 4
	}
	return writeChecksummed(path, body)
}

func ReadShareTable(path string) (ShareTable, error) {
	body, err := readChecksummed(path)
	if err != nil {
		return ShareTable{}, err
	}
	if len(body) < 12 {
		return ShareTable{}, fmt.Errorf("succache: truncated share header")
	}
	version := binary.LittleEndian.Uint32(body[0:])
	inCount := int(binary.LittleEndian.Uint32(body[4:]))
	outCount := int(binary.LittleEndian.Uint32(body[8:]))
	want := 12 + 5*inCount + 4*outCount
	if len(body) != want {
		return ShareTable{}, fmt.Errorf("succache: share table size mismatch: have %d want %d", len(body), want)
	}
	off := 12
	outIdx := make([]int32, inCount)
	sign := make([]int8, inCount)
	for i := 0; i < inCount; i++ {
		outIdx[i] = int32(binary.LittleEndian.Uint32(body[off:]))
		off += 4
		sign[i] = int8(body[off])
		off++
	}
	canon := make([]int32, outCount)
	for i := range canon {
		canon[i] = int32(binary.LittleEndian.Uint32(body[off:]))
		off += 4
	}
	return ShareTable{Version: version, InputCount: inCount, OutputCount: outCount, OutputIndex: outIdx, Sign: sign, CanonicalInputOf: canon}, nil
}

// --- shared checksummed-file helpers --------------------------------------

func writeChecksummed(path string, body []byte) error {
	sum := xxh3.Hash(body)
	var footer [8]byte
	binary.LittleEndian.PutUint64(footer[:], sum)
	out := append(body, footer[:]...)
	return os.WriteFile(path, out, 0o644)
}

func readChecksummed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("succache: truncated file %s", path)
	}
	body := data[:len(data)-8]
	footer := data[len(data)-8:]
	want := binary.LittleEndian.Uint64(footer)
	got := xxh3.Hash(body)
	if want != got {
		return nil, fmt.Errorf("succache: checksum mismatch in %s", path)
	}
	return body, nil
}

// Exists reports whether a cache file is already present.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
