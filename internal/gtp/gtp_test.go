package gtp

import (
	"strings"
	"testing"

	"github.com/hailam/goweiqi/internal/board"
)

// scriptEngine records the calls a GTP session makes.
type scriptEngine struct {
	cleared  int
	size     int
	komi     float64
	plays    []string
	genmoves []board.Color
	undos    int
	gen      board.Point
	genPass  bool
}

func (s *scriptEngine) ClearBoard(size int)  { s.cleared++; s.size = size }
func (s *scriptEngine) SetKomi(komi float64) { s.komi = komi }
func (s *scriptEngine) Play(c board.Color, p board.Point, pass bool) error {
	if pass {
		s.plays = append(s.plays, c.String()+" pass")
		return nil
	}
	s.plays = append(s.plays, c.String()+" "+p.String())
	return nil
}
func (s *scriptEngine) GenMove(c board.Color) (board.Point, bool, error) {
	s.genmoves = append(s.genmoves, c)
	return s.gen, s.genPass, nil
}
func (s *scriptEngine) ShowBoard() string { return "board" }
func (s *scriptEngine) Undo() error       { s.undos++; return nil }

func runSession(t *testing.T, eng Engine, script string) string {
	t.Helper()
	var out strings.Builder
	l := New(eng, &out)
	if err := l.Run(strings.NewReader(script)); err != nil {
		t.Fatalf("run: %v", err)
	}
	return out.String()
}

func TestSessionBasics(t *testing.T) {
	eng := &scriptEngine{gen: board.Point{X: 3, Y: 3}}
	out := runSession(t, eng, strings.Join([]string{
		"protocol_version",
		"1 name",
		"boardsize 9",
		"komi 6.5",
		"play b D4",
		"play white pass",
		"genmove w",
		"undo",
		"quit",
	}, "\n"))

	if !strings.Contains(out, "= 2\n\n") {
		t.Fatalf("missing protocol_version response in %q", out)
	}
	if !strings.Contains(out, "=1 goweiqi\n\n") {
		t.Fatalf("missing id-tagged name response in %q", out)
	}
	if eng.size != 9 || eng.cleared == 0 {
		t.Fatalf("boardsize did not clear to 9: size %d, cleared %d", eng.size, eng.cleared)
	}
	if eng.komi != 6.5 {
		t.Fatalf("komi = %v", eng.komi)
	}
	if len(eng.plays) != 2 || eng.plays[0] != "black D4" || eng.plays[1] != "white pass" {
		t.Fatalf("plays = %v", eng.plays)
	}
	if len(eng.genmoves) != 1 || eng.genmoves[0] != board.White {
		t.Fatalf("genmoves = %v", eng.genmoves)
	}
	if !strings.Contains(out, "= D4\n\n") {
		t.Fatalf("genmove response missing from %q", out)
	}
	if eng.undos != 1 {
		t.Fatalf("undos = %d", eng.undos)
	}
}

func TestUnknownCommandAndExtensions(t *testing.T) {
	eng := &scriptEngine{}
	var out strings.Builder
	l := New(eng, &out)
	l.Register("goweiqi_eval", func(args []string) (string, error) { return "0.1234", nil })
	if err := l.Run(strings.NewReader("nosuch\ngoweiqi_eval\nknown_command goweiqi_eval\nquit\n")); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "? unknown command") {
		t.Fatalf("missing error response in %q", got)
	}
	if !strings.Contains(got, "= 0.1234") {
		t.Fatalf("missing extension response in %q", got)
	}
	if !strings.Contains(got, "= true") {
		t.Fatalf("known_command should report the extension in %q", got)
	}
}

func TestVertexRoundTrip(t *testing.T) {
	cases := []struct {
		s    string
		want board.Point
	}{
		{"A1", board.Point{X: 0, Y: 0}},
		{"D4", board.Point{X: 3, Y: 3}},
		{"J9", board.Point{X: 8, Y: 8}}, // 'I' is skipped
	}
	for _, tc := range cases {
		p, err := parseVertex(tc.s, 9)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.s, err)
		}
		if p != tc.want {
			t.Fatalf("parse %q = %v, want %v", tc.s, p, tc.want)
		}
		if back := formatVertex(p); back != tc.s {
			t.Fatalf("format %v = %q, want %q", p, back, tc.s)
		}
	}
	if _, err := parseVertex("Z99", 9); err == nil {
		t.Fatal("out-of-range vertex should error")
	}
	if _, err := parseVertex("I5", 9); err == nil {
		t.Fatal("the skipped letter I should be rejected")
	}
}
