package settings

import (
	"fmt"

	"github.com/hailam/goweiqi/internal/features"
)

// BuildFeatureSet instantiates the feature-set object graph rooted at
// id from a loaded registry; the object-factory half of the two-pass
// settings protocol. Recognised classes and their settings:
//
//	LocalShape { SizeX SizeY IgnoreEmpty }
//	Shared { Child Kind("LD"|"LI"|"CI") SelfInverse }
//	Sum { Children = N [ id1 ... idN ] }
//	Product { A B }
//
// boardSize parameterises every LocalShape leaf; the settings format
// stores wiring, not board geometry. Objects reached along multiple paths are
// built once (the graph is a DAG, matching the tracker registry's own
// memoisation).
func BuildFeatureSet(reg *Registry, id string, boardSize int) (features.Set, error) {
	b := &builder{reg: reg, boardSize: boardSize, built: make(map[string]features.Set)}
	return b.build(id)
}

type builder struct {
	reg       *Registry
	boardSize int
	built     map[string]features.Set
	building  map[string]bool
}

func (b *builder) build(id string) (features.Set, error) {
	if s, ok := b.built[id]; ok {
		return s, nil
	}
	if b.building == nil {
		b.building = make(map[string]bool)
	}
	if b.building[id] {
		return nil, fmt.Errorf("settings: cycle through object %q", id)
	}
	b.building[id] = true
	defer delete(b.building, id)

	obj, ok := b.reg.Object(id)
	if !ok {
		return nil, fmt.Errorf("settings: unknown object %q", id)
	}
	var (
		s   features.Set
		err error
	)
	switch obj.Class {
	case "LocalShape":
		s, err = b.buildLocalShape(obj)
	case "Shared":
		s, err = b.buildShared(obj)
	case "Sum":
		s, err = b.buildSum(obj)
	case "Product":
		s, err = b.buildProduct(obj)
	default:
		return nil, fmt.Errorf("settings: unknown class %q for object %q", obj.Class, id)
	}
	if err != nil {
		return nil, err
	}
	b.built[id] = s
	return s, nil
}

func (b *builder) number(obj *Object, key string, def float64) float64 {
	v, ok := b.reg.Lookup(obj, key)
	if !ok || v.Kind != KindNumber {
		return def
	}
	return v.Number
}

func (b *builder) flag(obj *Object, key string) bool {
	return b.number(obj, key, 0) != 0
}

func (b *builder) refID(obj *Object, key string) (string, error) {
	v, ok := b.reg.Lookup(obj, key)
	if !ok {
		return "", fmt.Errorf("settings: %s.%s: missing required setting", obj.ID, key)
	}
	switch v.Kind {
	case KindRef:
		return v.RefID, nil
	case KindString:
		return v.Text, nil
	default:
		return "", fmt.Errorf("settings: %s.%s: expected an object reference", obj.ID, key)
	}
}

func (b *builder) buildLocalShape(obj *Object) (features.Set, error) {
	w := int(b.number(obj, "SizeX", 1))
	h := int(b.number(obj, "SizeY", 1))
	if w < 1 || h < 1 || w > b.boardSize || h > b.boardSize {
		return nil, fmt.Errorf("settings: %s: shape %dx%d does not fit a %d-board", obj.ID, w, h, b.boardSize)
	}
	return features.NewLocalShapeSet(w, h, b.boardSize, b.flag(obj, "IgnoreEmpty")), nil
}

func (b *builder) buildShared(obj *Object) (features.Set, error) {
	childID, err := b.refID(obj, "Child")
	if err != nil {
		return nil, err
	}
	child, err := b.build(childID)
	if err != nil {
		return nil, err
	}
	sym, ok := child.(features.Symmetric)
	if !ok {
		return nil, fmt.Errorf("settings: %s: child %q does not support sharing", obj.ID, childID)
	}
	var kind features.SharedKind
	kindName := "LD"
	if v, ok := b.reg.Lookup(obj, "Kind"); ok && v.Kind == KindString {
		kindName = v.Text
	}
	switch kindName {
	case "LD":
		kind = features.KindLD
	case "LI":
		kind = features.KindLI
	case "CI":
		kind = features.KindCI
	default:
		return nil, fmt.Errorf("settings: %s: unknown sharing kind %q", obj.ID, kindName)
	}
	return features.NewSharedSet(sym, kind, b.flag(obj, "SelfInverse")), nil
}

func (b *builder) buildSum(obj *Object) (features.Set, error) {
	v, ok := b.reg.Lookup(obj, "Children")
	if !ok || v.Kind != KindVector {
		return nil, fmt.Errorf("settings: %s: Children must be a vector of object references", obj.ID)
	}
	children := make([]features.Set, 0, len(v.Vector))
	for _, elem := range v.Vector {
		if elem.Kind != KindRef {
			return nil, fmt.Errorf("settings: %s: Children entries must be object references", obj.ID)
		}
		c, err := b.build(elem.RefID)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return features.NewSumSet(children...), nil
}

func (b *builder) buildProduct(obj *Object) (features.Set, error) {
	aID, err := b.refID(obj, "A")
	if err != nil {
		return nil, err
	}
	bID, err := b.refID(obj, "B")
	if err != nil {
		return nil, err
	}
	a, err := b.build(aID)
	if err != nil {
		return nil, err
	}
	bb, err := b.build(bID)
	if err != nil {
		return nil, err
	}
	return features.NewProductSet(a, bb), nil
}
