// Package wiring builds the feature-set stack a session runs on: from
// a settings file's object graph when one is configured, or
// from a small set of named built-in configurations otherwise.
package wiring

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hailam/goweiqi/internal/features"
	"github.com/hailam/goweiqi/internal/settings"
)

// FeatureSet resolves the feature set for a session. If settingsPath is
// non-empty the object graph is loaded from it (Includes resolved
// relative to its directory) and the set rooted at rootID is built;
// otherwise name selects a built-in configuration.
func FeatureSet(settingsPath, rootID, name string, boardSize int) (features.Set, error) {
	if settingsPath != "" {
		f, err := os.Open(settingsPath)
		if err != nil {
			return nil, fmt.Errorf("wiring: %w", err)
		}
		defer f.Close()
		dir := filepath.Dir(settingsPath)
		reg := settings.NewRegistry()
		open := func(inc string) (io.ReadCloser, error) {
			return os.Open(filepath.Join(dir, inc))
		}
		if err := settings.Load(reg, f, open); err != nil {
			return nil, err
		}
		return settings.BuildFeatureSet(reg, rootID, boardSize)
	}
	return Named(name, boardSize)
}

// Named builds one of the built-in feature-set configurations.
func Named(name string, boardSize int) (features.Set, error) {
	switch name {
	case "", "default", "shape1":
		return features.NewLocalShapeSet(1, 1, boardSize, false), nil
	case "shape2":
		return features.NewLocalShapeSet(2, 2, boardSize, true), nil
	case "shape3":
		return features.NewLocalShapeSet(3, 3, boardSize, true), nil
	case "shared1":
		l := features.NewLocalShapeSet(1, 1, boardSize, true)
		return features.NewSharedSet(l, features.KindLI, true), nil
	case "shapes":
		// The additive stack of 1x1..3x3 LI-shared shapes the original
		// system trains by default.
		var children []features.Set
		for s := 1; s <= 3 && s <= boardSize; s++ {
			l := features.NewLocalShapeSet(s, s, boardSize, true)
			children = append(children, features.NewSharedSet(l, features.KindLI, true))
		}
		return features.NewSumSet(children...), nil
	default:
		return nil, fmt.Errorf("wiring: unknown feature set %q", name)
	}
}
