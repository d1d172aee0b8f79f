// Package weightfile implements the weight-file codec: a small
// header (version, feature-set name, feature count) followed by the
// scalar weight array in feature-index order, with an xxh3 checksum
// footer over the header+body so a truncated or corrupted file is
// caught at load time rather than silently misread.
//
// The footer uses github.com/zeebo/xxh3, the same hash family as the
// successor- and share-cache file footers in internal/succache, rather
// than introducing crc32 for just this one format.
package weightfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/zeebo/xxh3"

	"github.com/hailam/goweiqi/internal/weight"
)

const magic uint32 = 0x57455147 // "WEQG"
const version uint32 = 1

// Header identifies the feature set a weight file was trained against.
type Header struct {
	Version      uint32
	FeatureSet   string
	FeatureCount int
}

// ErrNameMismatch and ErrSizeMismatch are returned by Load in strict
// mode when the file's header doesn't match the caller's expectations.
var (
	ErrNameMismatch = fmt.Errorf("weightfile: feature-set name mismatch")
	ErrSizeMismatch = fmt.Errorf("weightfile: feature count mismatch")
	ErrChecksum     = fmt.Errorf("weightfile: checksum mismatch")
)

// Save writes w to path under the given feature-set name.
func Save(path, featureSet string, w *weight.Set) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	var body []byte

	nameBytes := []byte(featureSet)
	header := make([]byte, 0, 16+len(nameBytes))
	header = binary.LittleEndian.AppendUint32(header, magic)
	header = binary.LittleEndian.AppendUint32(header, version)
	header = binary.LittleEndian.AppendUint32(header, uint32(len(nameBytes)))
	header = append(header, nameBytes...)
	header = binary.LittleEndian.AppendUint32(header, uint32(w.NumFeatures()))

	body = make([]byte, 8*w.NumFeatures())
	for i, v := range w.Weights() {
		binary.LittleEndian.PutUint64(body[i*8:], math.Float64bits(v))
	}

	sum := xxh3.Hash(append(append([]byte{}, header...), body...))

	if _, err := bw.Write(header); err != nil {
		return err
	}
	if _, err := bw.Write(body); err != nil {
		return err
	}
	var footer [8]byte
	binary.LittleEndian.PutUint64(footer[:], sum)
	if _, err := bw.Write(footer[:]); err != nil {
		return err
	}
	return bw.Flush()
}

// Load reads path, returning the header and a weight.Set sized from
// the file. In strict mode a name or size mismatch against
// expectName/expectSize (ignored if empty/zero) is an error; in
// non-strict mode the prefix that fits both the file and the
// in-memory table is loaded and untouched is reported so the caller
// can log how many trailing weights of the returned (freshly allocated)
// set were left at zero (DESIGN.md "strict_mode weight-file load").
func Load(path string, expectName string, expectSize int, strict bool, bounds weight.Bounds, defaultStep float64) (*weight.Set, Header, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Header{}, 0, err
	}
	if len(data) < 16 {
		return nil, Header{}, 0, fmt.Errorf("weightfile: truncated header")
	}
	if binary.LittleEndian.Uint32(data[0:4]) != magic {
		return nil, Header{}, 0, fmt.Errorf("weightfile: bad magic")
	}
	ver := binary.LittleEndian.Uint32(data[4:8])
	nameLen := int(binary.LittleEndian.Uint32(data[8:12]))
	if len(data) < 12+nameLen+4 {
		return nil, Header{}, 0, fmt.Errorf("weightfile: truncated name/count")
	}
	name := string(data[12 : 12+nameLen])
	off := 12 + nameLen
	count := int(binary.LittleEndian.Uint32(data[off : off+4]))
	off += 4
	header := Header{Version: ver, FeatureSet: name, FeatureCount: count}

	bodyLen := 8 * count
	if len(data) < off+bodyLen+8 {
		return nil, header, 0, fmt.Errorf("weightfile: truncated body")
	}
	body := data[off : off+bodyLen]
	footer := data[off+bodyLen : off+bodyLen+8]
	want := binary.LittleEndian.Uint64(footer)
	got := xxh3.Hash(data[:off+bodyLen])
	if want != got {
		return nil, header, 0, ErrChecksum
	}

	if strict {
		if expectName != "" && name != expectName {
			return nil, header, 0, ErrNameMismatch
		}
		if expectSize != 0 && count != expectSize {
			return nil, header, 0, ErrSizeMismatch
		}
	}

	memSize := expectSize
	if memSize == 0 {
		memSize = count
	}
	w := weight.New(memSize, bounds, defaultStep)
	n := count
	if n > memSize {
		n = memSize
	}
	for i := 0; i < n; i++ {
		w.Set(i, math.Float64frombits(binary.LittleEndian.Uint64(body[i*8:])))
	}
	untouched := memSize - n
	return w, header, untouched, nil
}
