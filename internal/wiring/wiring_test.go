package wiring

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNamedConfigurations(t *testing.T) {
	s, err := Named("default", 5)
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	s.EnsureInitialised()
	if s.NumFeatures() != 75 {
		t.Fatalf("default 1x1 on 5x5 = %d features, want 75", s.NumFeatures())
	}

	s, err = Named("shared1", 5)
	if err != nil {
		t.Fatalf("shared1: %v", err)
	}
	s.EnsureInitialised()
	if s.NumFeatures() != 1 {
		t.Fatalf("shared1 = %d features, want 1", s.NumFeatures())
	}

	if _, err := Named("nosuch", 5); err == nil {
		t.Fatal("unknown name should error")
	}
}

func TestFeatureSetFromSettingsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "features.set")
	text := `
LocalShape
{
    ID = leaf
    SizeX = 1
    SizeY = 1
    IgnoreEmpty = 1
}
Shared
{
    ID = root
    Child = leaf
    Kind = "LI"
    SelfInverse = 1
}
`
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := FeatureSet(path, "root", "", 5)
	if err != nil {
		t.Fatalf("build from settings: %v", err)
	}
	s.EnsureInitialised()
	if s.NumFeatures() != 1 {
		t.Fatalf("settings-built set = %d features, want 1", s.NumFeatures())
	}
}
