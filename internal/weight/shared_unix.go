//go:build unix

package weight

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// OpenShared maps the scalar weight array for n features from the file
// at path, at slot index (each slot holds n float64s), creating and
// growing the file as needed. Only the weight scalars live in the mapping; eligibility
// traces, step sizes and counts stay private to this process; only
// the weight scalars are ever persisted. Writers and readers
// coordinate externally. The returned close function unmaps the region;
// the Set must not be used after calling it.
func OpenShared(path string, index, n int, bounds Bounds, defaultStep float64) (*Set, func() error, error) {
	if index < 0 || n <= 0 {
		return nil, nil, fmt.Errorf("weight: invalid shared slot index %d / size %d", index, n)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	need := int64(index+1) * int64(n) * 8
	fi, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if fi.Size() < need {
		if err := f.Truncate(need); err != nil {
			return nil, nil, err
		}
	}

	// Map from offset zero so alignment never depends on the slot
	// index; the slot is a sub-slice of the mapping.
	data, err := unix.Mmap(int(f.Fd()), 0, int(need), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("weight: mmap %s: %w", path, err)
	}
	base := index * n * 8
	weights := unsafe.Slice((*float64)(unsafe.Pointer(&data[base])), n)

	s := &Set{bounds: bounds, weights: weights, traces: make([]trace, n), defaultStep: defaultStep}
	for i := range s.traces {
		s.traces[i].Step = defaultStep
	}
	return s, func() error { return unix.Munmap(data) }, nil
}
