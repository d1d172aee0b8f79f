// Package settings parses the plain-text object-graph settings
// format: a sequence of `ClassName { ID = ...; Setting = value; ... }`
// blocks, where a value may be a scalar, a string, an ID reference to
// another object, or an `N [ v1 v2 ... vN ]` vector. Loading is a
// two-pass process (allocate and register every object by ID, then
// resolve settings and cross-references) plus the special `Include`
// and `Override` object kinds.
//
// The parser is hand-written recursive descent rather than a config
// library: the grammar's ID-reference resolution and the
// Include/Override special forms are bespoke enough that nothing off
// the shelf fits. A perfect-hash table was considered for the object
// registry and rejected because it needs the whole key set up front,
// while this format discovers IDs incrementally across an Include
// chain; a plain map is the right structure.
package settings

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Value is one setting's value: a scalar, a string, an ID reference
// (resolved to an *Object during pass two), or a vector.
type Value struct {
	Kind   ValueKind
	Number float64
	Text   string
	Ref    *Object // resolved ID reference
	RefID  string  // raw ID token, before resolution
	Vector []Value
}

type ValueKind int

const (
	KindNumber ValueKind = iota
	KindString
	KindRef
	KindVector
)

// Object is one parsed `ClassName { ... }` block.
type Object struct {
	Class    string
	ID       string
	Settings map[string]Value
	order    []string
}

// Registry holds every object allocated while loading a settings file
// (and any files it Includes), keyed by ID; the stdlib map the
// package doc comment justifies in place of a perfect-hash table.
type Registry struct {
	objects   map[string]*Object
	overrides map[string]Value // dotted "ObjectID.Setting" or undotted global token -> value
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{objects: make(map[string]*Object), overrides: make(map[string]Value)}
}

// Object looks up a previously loaded object by ID.
func (r *Registry) Object(id string) (*Object, bool) {
	o, ok := r.objects[id]
	return o, ok
}

// Opener resolves an Include object's filename to a readable file,
// letting callers load Includes from disk, an embedded FS, or a test
// fixture map.
type Opener func(name string) (io.ReadCloser, error)

type rawSetting struct {
	object *Object
	key    string
	text   string // unparsed RHS, resolved in pass two
}

// Load parses r (and any Include chain it references via open) into
// reg, performing both passes. Objects and overrides accumulate across
// repeated Load calls on the same registry, matching Include semantics.
func Load(reg *Registry, r io.Reader, open Opener) error {
	toks, err := tokenize(r)
	if err != nil {
		return err
	}
	p := &parser{toks: toks, reg: reg, open: open}
	return p.run()
}

type parser struct {
	toks []token
	pos  int
	reg  *Registry
	open Opener

	pending []rawSetting
}

func (p *parser) run() error {
	// Pass one: allocate every object (including nested Include files,
	// which are parsed eagerly so later ID references can see them) and
	// stash every raw setting for pass two.
	for p.pos < len(p.toks) {
		if err := p.parseObject(); err != nil {
			return err
		}
	}
	// Pass two: resolve every raw setting now that every ID is known.
	for _, rs := range p.pending {
		v, err := p.resolveValue(rs.text)
		if err != nil {
			return fmt.Errorf("settings: %s.%s: %w", rs.object.ID, rs.key, err)
		}
		rs.object.Settings[rs.key] = v
		rs.object.order = append(rs.object.order, rs.key)
	}
	return nil
}

func (p *parser) parseObject() error {
	class := p.next()
	if class.kind != tokIdent {
		return fmt.Errorf("settings: expected class name, got %q", class.text)
	}
	if brace := p.next(); brace.text != "{" {
		return fmt.Errorf("settings: expected '{' after %s, got %q", class.text, brace.text)
	}
	obj := &Object{Class: class.text, Settings: make(map[string]Value)}
	var rawLines []rawSetting
	for {
		t := p.peek()
		if t.text == "}" {
			p.next()
			break
		}
		key := p.next()
		if key.kind != tokIdent {
			return fmt.Errorf("settings: expected setting name in %s, got %q", class.text, key.text)
		}
		if eq := p.next(); eq.text != "=" {
			return fmt.Errorf("settings: expected '=' after %s.%s", class.text, key.text)
		}
		text, err := p.captureValue()
		if err != nil {
			return err
		}
		if key.text == "ID" {
			obj.ID = strings.Trim(text, `"`)
			continue
		}
		rawLines = append(rawLines, rawSetting{object: obj, key: key.text, text: text})
	}
	switch class.text {
	case "Include":
		return p.handleInclude(obj, rawLines)
	case "Override":
		return p.handleOverride(rawLines)
	default:
		if obj.ID != "" {
			p.reg.objects[obj.ID] = obj
		}
		p.pending = append(p.pending, rawLines...)
		return nil
	}
}

// captureValue reads tokens up to (but not including) the next
// setting-boundary, returning the raw text for pass-two resolution
// (handles bare scalars/strings/identifiers and `N [ ... ]` vectors).
func (p *parser) captureValue() (string, error) {
	t := p.next()
	if t.text == "[" {
		var parts []string
		for {
			n := p.peek()
			if n.text == "]" {
				p.next()
				break
			}
			parts = append(parts, p.next().text)
		}
		return "[" + strings.Join(parts, " ") + "]", nil
	}
	first := t.text
	// A vector may be written "N [ v1 v2 ... ]" with the count preceding
	// the bracket as a separate token.
	if p.peek().text == "[" {
		p.next()
		var parts []string
		for {
			n := p.peek()
			if n.text == "]" {
				p.next()
				break
			}
			parts = append(parts, p.next().text)
		}
		return first + " [" + strings.Join(parts, " ") + "]", nil
	}
	return first, nil
}

func (p *parser) resolveValue(text string) (Value, error) {
	text = strings.TrimSpace(text)
	if strings.Contains(text, "[") {
		idx := strings.Index(text, "[")
		inner := strings.TrimSuffix(strings.TrimSpace(text[idx+1:]), "]")
		fields := strings.Fields(inner)
		vec := make([]Value, 0, len(fields))
		for _, f := range fields {
			v, err := p.resolveValue(f)
			if err != nil {
				return Value{}, err
			}
			vec = append(vec, v)
		}
		return Value{Kind: KindVector, Vector: vec}, nil
	}
	if strings.HasPrefix(text, `"`) {
		return Value{Kind: KindString, Text: strings.Trim(text, `"`)}, nil
	}
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		return Value{Kind: KindNumber, Number: n}, nil
	}
	if obj, ok := p.reg.objects[text]; ok {
		return Value{Kind: KindRef, Ref: obj, RefID: text}, nil
	}
	// Unresolved identifier: keep as a dangling reference rather than
	// erroring, since forward references across an Include chain are
	// legal and pass two only runs once all files are loaded.
	return Value{Kind: KindRef, RefID: text}, nil
}

func (p *parser) handleInclude(obj *Object, raw []rawSetting) error {
	var filename string
	for _, rs := range raw {
		if rs.key == "File" || rs.key == "Path" {
			filename = strings.Trim(rs.text, `"`)
		}
	}
	if filename == "" || p.open == nil {
		return nil
	}
	rc, err := p.open(filename)
	if err != nil {
		return fmt.Errorf("settings: include %q: %w", filename, err)
	}
	defer rc.Close()
	return Load(p.reg, rc, p.open)
}

func (p *parser) handleOverride(raw []rawSetting) error {
	for _, rs := range raw {
		v, err := p.resolveValue(rs.text)
		if err != nil {
			return err
		}
		if _, exists := p.reg.overrides[rs.key]; !exists {
			p.reg.overrides[rs.key] = v
		}
	}
	return nil
}

func (p *parser) next() token {
	if p.pos >= len(p.toks) {
		return token{kind: tokEOF}
	}
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *parser) peek() token {
	if p.pos >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos]
}

// Lookup resolves a token for object obj's setting key, honoring the
// override-precedence rule: a dotted "obj.ID.key" override wins, else
// an undotted global "key" override wins, else the value as loaded
// from the file.
func (r *Registry) Lookup(obj *Object, key string) (Value, bool) {
	if v, ok := r.overrides[obj.ID+"."+key]; ok {
		return v, true
	}
	if v, ok := r.overrides[key]; ok {
		return v, true
	}
	v, ok := obj.Settings[key]
	return v, ok
}

// --- tokenizer --------------------------------------------------------

type tokKind int

const (
	tokIdent tokKind = iota
	tokEOF
)

type token struct {
	kind tokKind
	text string
}

func tokenize(r io.Reader) ([]token, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var toks []token
	for sc.Scan() {
		line := sc.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		toks = append(toks, scanLine(line)...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return toks, nil
}

func scanLine(line string) []token {
	var out []token
	var buf strings.Builder
	inString := false
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, token{kind: tokIdent, text: buf.String()})
			buf.Reset()
		}
	}
	for _, r := range line {
		switch {
		case inString:
			buf.WriteRune(r)
			if r == '"' {
				inString = false
				flush()
			}
		case r == '"':
			flush()
			buf.WriteRune(r)
			inString = true
		case r == '{' || r == '}' || r == '[' || r == ']' || r == '=':
			flush()
			out = append(out, token{kind: tokIdent, text: string(r)})
		case r == ' ' || r == '\t' || r == '\r':
			flush()
		default:
			buf.WriteRune(r)
		}
	}
	flush()
	return out
}
