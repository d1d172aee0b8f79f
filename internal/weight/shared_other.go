//go:build !unix

package weight

import "errors"

// OpenShared is unsupported on non-unix platforms; weight sets fall
// back to private per-process allocation.
func OpenShared(path string, index, n int, bounds Bounds, defaultStep float64) (*Set, func() error, error) {
	return nil, nil, errors.New("weight: shared-memory backing requires a unix platform")
}
