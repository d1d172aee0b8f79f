// Command goweiqi-gtp runs a GTP session over stdin/stdout,
// driving a board/feature-set/tracker/evaluator/policy stack built from
// an ambient config.Run (board size, komi, feature-set choice, weight
// file) and the settings-file object graph for the feature set itself.
//
// CLI flags are parsed with github.com/alecthomas/kong and startup/
// shutdown logged with github.com/charmbracelet/log, the same pair
// cmd/goweiqi-train uses.
package main

import (
	"math/rand"
	"os"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/hailam/goweiqi/internal/board"
	"github.com/hailam/goweiqi/internal/config"
	"github.com/hailam/goweiqi/internal/evaluator"
	"github.com/hailam/goweiqi/internal/features"
	"github.com/hailam/goweiqi/internal/gtp"
	"github.com/hailam/goweiqi/internal/movefilter"
	"github.com/hailam/goweiqi/internal/policy"
	"github.com/hailam/goweiqi/internal/tracker"
	"github.com/hailam/goweiqi/internal/weight"
	"github.com/hailam/goweiqi/internal/weightfile"
	"github.com/hailam/goweiqi/internal/wiring"
)

// cli is the kong command struct for the GTP binary.
var cli struct {
	Config       string `help:"Path to an ambient run-configuration YAML file (internal/config)." optional:""`
	Settings     string `help:"Feature-set wiring settings file (the object-graph format)." optional:""`
	FeatureID    string `help:"Root feature-set object ID within the settings file." default:"root"`
	CacheDir     string `help:"Directory for successor/share-table cache files." optional:""`
	WeightFile   string `help:"Path to a weight file to load; random init if absent." optional:""`
	WeightStrict bool   `help:"Reject a weight-file name/size mismatch instead of loading a prefix."`
	LogLevel     string `help:"charmbracelet/log level: debug, info, warn, error." default:"info"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("goweiqi-gtp"),
		kong.Description("GTP engine for the goweiqi reinforcement-learning Go player."),
		kong.UsageOnError(),
	)

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if lvl, err := log.ParseLevel(cli.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	run := config.Default()
	if cli.Config != "" {
		loaded, err := config.Load(cli.Config)
		if err != nil {
			logger.Fatal("loading config", "path", cli.Config, "err", err)
		}
		run = loaded
	}
	if cli.WeightFile != "" {
		run.WeightFile = cli.WeightFile
	}
	if cli.WeightStrict {
		run.WeightStrict = true
	}
	if cli.Settings != "" {
		run.SettingsFile = cli.Settings
		run.FeatureID = cli.FeatureID
	}
	if cli.CacheDir != "" {
		run.CacheDir = cli.CacheDir
	}

	eng, err := newEngine(run, logger)
	if err != nil {
		logger.Fatal("building engine", "err", err)
	}

	logger.Info("goweiqi-gtp ready", "boardSize", run.BoardSize, "komi", run.Komi, "featureSet", run.FeatureSet)

	loop := gtp.New(eng, os.Stdout)
	registerDiagnostics(loop, eng, logger)
	if err := loop.Run(os.Stdin); err != nil {
		logger.Fatal("gtp loop", "err", err)
	}
}

// goEngine adapts the board/evaluator/policy stack to gtp.Engine.
type goEngine struct {
	run     *config.Run
	pos     *board.Position
	featSet features.Set
	reg     *tracker.Registry
	filter  *movefilter.Filter
	eval    *evaluator.Evaluator
	weights *weight.Set
	pol     policy.Policy
	rng     *rand.Rand
	log     *log.Logger
}

func newEngine(run *config.Run, logger *log.Logger) (*goEngine, error) {
	e := &goEngine{run: run, rng: rand.New(rand.NewSource(1)), log: logger}
	e.rebuild(run.BoardSize)
	if run.WeightFile != "" {
		if err := e.loadWeights(run.WeightFile, run.WeightStrict); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// evalAdapter satisfies policy.Evaluator over a *evaluator.Evaluator,
// translating evaluator.BestResult into the structurally identical but
// distinctly-named policy.BestResult policy.Evaluator expects.
type evalAdapter struct{ *evaluator.Evaluator }

func (a evalAdapter) FindBest(pos *board.Position, c board.Color, rng *rand.Rand) (policy.BestResult, error) {
	r, err := a.Evaluator.FindBest(pos, c, rng)
	return policy.BestResult{Move: r.Move, Value: r.Value, Pass: r.Pass}, err
}

func (e *goEngine) rebuild(size int) {
	e.pos = board.NewPosition(size, e.run.Komi, board.KoPositional)
	set, err := wiring.FeatureSet(e.run.SettingsFile, e.run.FeatureID, e.run.FeatureSet, size)
	if err != nil {
		e.log.Error("building feature set; falling back to default", "err", err)
		set, _ = wiring.Named("default", size)
	}
	e.featSet = set
	e.reg = tracker.NewRegistry()
	e.reg.CacheDir = e.run.CacheDir
	root := e.reg.Create(e.featSet)
	e.weights = weight.New(e.featSet.NumFeatures(), weight.DefaultBounds, e.run.Rule.Alpha)
	e.filter = movefilter.New(e.pos)
	e.eval = evaluator.New(e.reg, root, e.weights, e.filter)
	e.eval.Reset(e.pos)
	e.pol = policy.Greedy{Eval: evalAdapter{e.eval}}
}

func (e *goEngine) loadWeights(path string, strict bool) error {
	w, _, untouched, err := weightfile.Load(path, e.featSet.Name(), e.featSet.NumFeatures(), strict, weight.DefaultBounds, e.run.Rule.Alpha)
	if err != nil {
		return err
	}
	if untouched > 0 {
		e.log.Warn("weight file shorter than feature set; trailing weights left at initial value", "untouched", untouched)
	}
	e.weights = w
	e.eval = evaluator.New(e.reg, e.eval.Root(), e.weights, e.filter)
	e.eval.Reset(e.pos)
	return nil
}

func (e *goEngine) ClearBoard(size int) { e.rebuild(size) }
func (e *goEngine) SetKomi(komi float64) {
	e.run.Komi = komi
	e.rebuild(e.pos.Size())
}

func (e *goEngine) Play(c board.Color, p board.Point, pass bool) error {
	m := board.Pass
	if !pass {
		m = board.PlayAt(p)
	}
	_, err := e.eval.PlayExecute(e.pos, m, c)
	return err
}

func (e *goEngine) GenMove(c board.Color) (board.Point, bool, error) {
	mv, err := e.pol.Select(e.pos, c, e.rng)
	if err != nil {
		return board.NoPoint, false, err
	}
	if mv.Pass {
		if err := e.Play(c, board.NoPoint, true); err != nil {
			return board.NoPoint, false, err
		}
		return board.NoPoint, true, nil
	}
	if err := e.Play(c, mv.Point, false); err != nil {
		return board.NoPoint, false, err
	}
	return mv.Point, false, nil
}

func (e *goEngine) ShowBoard() string { return e.pos.String() }
func (e *goEngine) Undo() error       { return e.eval.TakeBackUndo(e.pos) }

// registerDiagnostics wires the manual's documented analysis commands
// onto loop.
func registerDiagnostics(loop *gtp.Loop, e *goEngine, logger *log.Logger) {
	loop.Register("goweiqi_eval", func(args []string) (string, error) {
		return strconv.FormatFloat(e.eval.Value(), 'f', 4, 64), nil
	})
	loop.Register("goweiqi_num_features", func(args []string) (string, error) {
		return strconv.Itoa(e.featSet.NumFeatures()), nil
	})
	_ = logger
}
