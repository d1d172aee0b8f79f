// Package gtp implements a Go Text Protocol command loop on
// stdin/stdout: the standard host commands (boardsize,
// clear_board, komi, play, genmove, showboard, known_command,
// list_commands, protocol_version, name, version, quit) plus
// registered analysis/diagnostic commands that are thin wrappers over
// the engine operations in package evaluator/policy/tracker.
package gtp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hailam/goweiqi/internal/board"
)

// Engine is the subset of game state a GTP loop drives; callers wire
// their own board/evaluator/policy stack behind this interface so this
// package stays free of a concrete dependency on any one of them.
type Engine interface {
	ClearBoard(size int)
	SetKomi(komi float64)
	Play(c board.Color, p board.Point, pass bool) error
	GenMove(c board.Color) (p board.Point, pass bool, err error)
	ShowBoard() string
	Undo() error
}

// Command is a registered extension command.
type Command func(args []string) (string, error)

// Loop is one GTP session.
type Loop struct {
	engine   Engine
	size     int
	out      *bufio.Writer
	commands map[string]Command
	quit     bool
}

// New builds a Loop over eng, writing responses to w.
func New(eng Engine, w io.Writer) *Loop {
	return &Loop{engine: eng, size: 19, out: bufio.NewWriter(w), commands: make(map[string]Command)}
}

// Register adds an analysis/diagnostic extension command.
func (l *Loop) Register(name string, cmd Command) {
	l.commands[name] = cmd
}

// Run reads commands from r until quit or EOF.
func (l *Loop) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() && !l.quit {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, cmd, args := parseLine(line)
		l.dispatch(id, cmd, args)
	}
	return scanner.Err()
}

func parseLine(line string) (id string, cmd string, args []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", "", nil
	}
	if _, err := strconv.Atoi(fields[0]); err == nil {
		id = fields[0]
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return id, "", nil
	}
	return id, fields[0], fields[1:]
}

func (l *Loop) dispatch(id, cmd string, args []string) {
	var result string
	var err error
	switch cmd {
	case "protocol_version":
		result = "2"
	case "name":
		result = "goweiqi"
	case "version":
		result = "0.1"
	case "known_command":
		result = boolStr(l.knows(args))
	case "list_commands":
		result = strings.Join(l.allCommands(), "\n")
	case "quit":
		l.quit = true
	case "boardsize":
		err = l.handleBoardsize(args)
	case "clear_board":
		l.engine.ClearBoard(l.size)
	case "komi":
		err = l.handleKomi(args)
	case "play":
		err = l.handlePlay(args)
	case "genmove":
		result, err = l.handleGenmove(args)
	case "undo":
		err = l.engine.Undo()
	case "showboard":
		result = l.engine.ShowBoard()
	default:
		if fn, ok := l.commands[cmd]; ok {
			result, err = fn(args)
		} else {
			l.writeError(id, "unknown command")
			return
		}
	}
	if err != nil {
		l.writeError(id, err.Error())
		return
	}
	l.writeOK(id, result)
}

func (l *Loop) knows(args []string) bool {
	if len(args) == 0 {
		return false
	}
	for _, c := range l.builtins() {
		if c == args[0] {
			return true
		}
	}
	_, ok := l.commands[args[0]]
	return ok
}

func (l *Loop) builtins() []string {
	return []string{"protocol_version", "name", "version", "known_command", "list_commands", "quit", "boardsize", "clear_board", "komi", "play", "genmove", "undo", "showboard"}
}

func (l *Loop) allCommands() []string {
	out := append([]string{}, l.builtins()...)
	for name := range l.commands {
		out = append(out, name)
	}
	return out
}

func (l *Loop) handleBoardsize(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("boardsize requires an argument")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid size")
	}
	l.size = n
	l.engine.ClearBoard(n)
	return nil
}

func (l *Loop) handleKomi(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("komi requires an argument")
	}
	k, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid komi")
	}
	l.engine.SetKomi(k)
	return nil
}

func (l *Loop) handlePlay(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("play requires color and vertex")
	}
	c, err := parseColor(args[0])
	if err != nil {
		return err
	}
	if strings.EqualFold(args[1], "pass") {
		return l.engine.Play(c, board.NoPoint, true)
	}
	p, err := parseVertex(args[1], l.size)
	if err != nil {
		return err
	}
	return l.engine.Play(c, p, false)
}

func (l *Loop) handleGenmove(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("genmove requires a color")
	}
	c, err := parseColor(args[0])
	if err != nil {
		return "", err
	}
	p, pass, err := l.engine.GenMove(c)
	if err != nil {
		return "", err
	}
	if pass {
		return "pass", nil
	}
	return formatVertex(p), nil
}

func (l *Loop) writeOK(id, result string) {
	fmt.Fprintf(l.out, "=%s %s\n\n", id, result)
	l.out.Flush()
}

func (l *Loop) writeError(id, msg string) {
	fmt.Fprintf(l.out, "?%s %s\n\n", id, msg)
	l.out.Flush()
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// letters skips 'i' the same way SGF/GTP vertex notation traditionally
// does, matching board.Point.String's lettering.
const letters = "ABCDEFGHJKLMNOPQRSTUVWXYZ"

func parseColor(s string) (board.Color, error) {
	switch strings.ToLower(s) {
	case "b", "black":
		return board.Black, nil
	case "w", "white":
		return board.White, nil
	default:
		return board.Empty, fmt.Errorf("invalid color %q", s)
	}
}

func parseVertex(s string, size int) (board.Point, error) {
	s = strings.ToUpper(s)
	if len(s) < 2 {
		return board.NoPoint, fmt.Errorf("invalid vertex %q", s)
	}
	col := strings.IndexByte(letters, s[0])
	if col < 0 {
		return board.NoPoint, fmt.Errorf("invalid vertex %q", s)
	}
	row, err := strconv.Atoi(s[1:])
	if err != nil || row < 1 || row > size {
		return board.NoPoint, fmt.Errorf("invalid vertex %q", s)
	}
	// GTP rows count from 1 at the bottom, same as board.Point's Y axis.
	return board.Point{X: col, Y: row - 1}, nil
}

func formatVertex(p board.Point) string {
	return string(letters[p.X]) + strconv.Itoa(p.Y+1)
}
