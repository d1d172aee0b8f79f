// Command goweiqi-train runs self-play training episodes: an
// evaluator/policy pair plays games against
// itself, each game's states are recorded into a history.Ring, and a
// trainer/learning-rule pair replays that history to update the weight
// table; then saves the weights and per-run win/loss statistics.
//
// CLI flags via github.com/alecthomas/kong, progress logged with
// github.com/charmbracelet/log, run configuration loaded through
// internal/config (viper+yaml.v3), run statistics persisted through
// internal/trainstore (badger/v4).
package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/hailam/goweiqi/internal/board"
	"github.com/hailam/goweiqi/internal/config"
	"github.com/hailam/goweiqi/internal/evaluator"
	"github.com/hailam/goweiqi/internal/features"
	"github.com/hailam/goweiqi/internal/history"
	"github.com/hailam/goweiqi/internal/learning"
	"github.com/hailam/goweiqi/internal/movefilter"
	"github.com/hailam/goweiqi/internal/policy"
	"github.com/hailam/goweiqi/internal/sgf"
	"github.com/hailam/goweiqi/internal/tracker"
	"github.com/hailam/goweiqi/internal/trainer"
	"github.com/hailam/goweiqi/internal/trainstore"
	"github.com/hailam/goweiqi/internal/weight"
	"github.com/hailam/goweiqi/internal/weightfile"
	"github.com/hailam/goweiqi/internal/wiring"
)

var cli struct {
	Config        string `help:"Ambient run-configuration YAML file." optional:""`
	Settings      string `help:"Feature-set wiring settings file (the object-graph format)." optional:""`
	FeatureID     string `help:"Root feature-set object ID within the settings file." default:"root"`
	CacheDir      string `help:"Directory for successor/share-table cache files." optional:""`
	RunID         string `help:"Training-run identifier used to key trainstore stats." default:"default"`
	Episodes      int    `help:"Number of self-play episodes to run." default:"100"`
	MaxMoves      int    `help:"Move cap per episode (simulators silently clamp game length)." default:"400"`
	HistorySize   int    `help:"History ring capacity (C episodes)." default:"64"`
	OutWeights    string `help:"Path to write the trained weight file." optional:""`
	SharedWeights string `help:"Back the weight table by a shared-memory file at this path." optional:""`
	SharedIndex   int    `help:"Slot index within the shared weight file." default:"0"`
	SGFDir        string `help:"Directory to write one SGF record per episode, if set." optional:""`
	StatsDir      string `help:"trainstore (badger) directory; defaults to the platform data dir." optional:""`
	LogLevel      string `help:"charmbracelet/log level." default:"info"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("goweiqi-train"),
		kong.Description("Self-play trainer for the goweiqi reinforcement-learning Go player."),
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
	if cli.Settings != "" {
		run.SettingsFile = cli.Settings
		run.FeatureID = cli.FeatureID
	}
	if cli.CacheDir != "" {
		run.CacheDir = cli.CacheDir
	}

	statsDir := cli.StatsDir
	if statsDir == "" {
		dir, err := trainstore.GetDatabaseDir()
		if err != nil {
			logger.Fatal("resolving stats dir", "err", err)
		}
		statsDir = dir
	}
	store, err := trainstore.Open(statsDir)
	if err != nil {
		logger.Fatal("opening trainstore", "err", err)
	}
	defer store.Close()

	sess, err := newSession(run, cli.HistorySize, cli.MaxMoves, cli.SharedWeights, cli.SharedIndex)
	if err != nil {
		logger.Fatal("building training session", "err", err)
	}
	defer sess.close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano() % (1 << 31)))
	ruleCfg := learning.Config{
		Alpha: run.Rule.Alpha, StepMode: stepModeOf(run.Rule.StepMode), Lambda: run.Rule.Lambda,
		Replacing: run.Rule.Replacing, TraceMinAbs: 1e-6, Logistic: run.Rule.Logistic,
		GradientFloor: run.Rule.GradientFloor, OffPolicyOK: run.Rule.OffPolicyOK,
	}
	trainerCfg := trainer.Config{Episodes: episodeChoiceOf(run.Trainer.Episodes), Replays: run.Trainer.Replays, Gap: run.Trainer.Gap, Interleave: run.Trainer.Interleave}
	pairSrc := pairSourceOf(run.Trainer.Kind, trainerCfg)

	outcome := trainstore.GameOutcome{Policy: run.Policy.Kind}
	for ep := 0; ep < cli.Episodes; ep++ {
		won, draw, moves := sess.playEpisode(rng, cli.MaxMoves)
		total := applyRule(run.Rule.Kind, ruleCfg, sess, pairSrc, rng, ep+1)
		if ep%10 == 0 || ep == cli.Episodes-1 {
			logger.Info("episode complete", "episode", ep, "moves", moves, "tdDelta", total, "eval", sess.eval.Value())
		}
		outcome.Episodes++
		outcome.Won = won
		outcome.Draw = draw
		if cli.SGFDir != "" {
			if err := os.MkdirAll(cli.SGFDir, 0o755); err == nil {
				path := filepath.Join(cli.SGFDir, fmt.Sprintf("episode-%04d.sgf", ep))
				_ = os.WriteFile(path, []byte(sess.sgf.String()), 0o644)
			}
		}
	}
	if err := store.RecordGame(cli.RunID, outcome); err != nil {
		logger.Error("recording run stats", "err", err)
	}

	if cli.OutWeights != "" {
		if err := weightfile.Save(cli.OutWeights, sess.featSet.Name(), sess.weights); err != nil {
			logger.Fatal("saving weights", "err", err)
		}
		logger.Info("weights saved", "path", cli.OutWeights)
	}
}

func episodeChoiceOf(s string) trainer.EpisodeChoice {
	switch s {
	case "random":
		return trainer.ChoiceRandom
	case "mostRecent":
		return trainer.ChoiceMostRecent
	default:
		return trainer.ChoiceCurrent
	}
}

func pairSourceOf(kind string, cfg trainer.Config) trainer.PairSource {
	switch kind {
	case "backward":
		return trainer.Backward{Config: cfg}
	case "random":
		return trainer.Random{Config: cfg}
	default:
		return trainer.Forward{Config: cfg}
	}
}

// applyRule replays recorded history through the configured learning
// rule (the pairs src picks; TD(λ) walks the just-completed episode),
// returning the summed delta for logging.
func applyRule(kind string, cfg learning.Config, sess *session, src trainer.PairSource, rng *rand.Rand, games int) float64 {
	switch kind {
	case "montecarlo":
		return trainer.RunMonteCarlo(sess.ring, src.Pairs(sess.ring, rng), learning.MonteCarlo{Config: cfg}, sess.weights, games)
	case "lambdareturn":
		return trainer.RunLambdaReturn(sess.ring, src.Pairs(sess.ring, rng), learning.LambdaReturn{Config: cfg}, sess.weights, games)
	case "tdlambda":
		return trainer.RunTDLambda(sess.ring, 0, learning.TDLambda{Config: cfg}, sess.weights, games)
	default:
		return trainer.RunTD0(sess.ring, src.Pairs(sess.ring, rng), learning.TD0{Config: cfg}, sess.weights, games)
	}
}

func stepModeOf(s string) learning.StepMode {
	switch s {
	case "normOccSq":
		return learning.StepNormOccSq
	case "normActive":
		return learning.StepNormActive
	case "reciprocalGames":
		return learning.StepReciprocalGames
	default:
		return learning.StepConstant
	}
}

// session owns the board/tracker/evaluator/policy/history stack for one
// training run's self-play loop.
type session struct {
	run      *config.Run
	pos      *board.Position
	featSet  features.Set
	reg      *tracker.Registry
	root     tracker.Tracker
	filter   *movefilter.Filter
	eval     *evaluator.Evaluator
	weights  *weight.Set
	pol      policy.Policy
	ring     *history.Ring
	sgf      *sgf.Builder
	timestep int

	closeShared func() error
}

func newSession(run *config.Run, historySize, maxMoves int, sharedPath string, sharedIndex int) (*session, error) {
	s := &session{run: run}
	s.pos = board.NewPosition(run.BoardSize, run.Komi, board.KoPositional)
	set, err := wiring.FeatureSet(run.SettingsFile, run.FeatureID, run.FeatureSet, run.BoardSize)
	if err != nil {
		return nil, err
	}
	s.featSet = set
	s.reg = tracker.NewRegistry()
	s.reg.CacheDir = run.CacheDir
	s.root = s.reg.Create(s.featSet)
	if sharedPath != "" {
		w, closer, err := weight.OpenShared(sharedPath, sharedIndex, s.featSet.NumFeatures(), weight.DefaultBounds, run.Rule.Alpha)
		if err != nil {
			return nil, err
		}
		s.weights = w
		s.closeShared = closer
	} else {
		s.weights = weight.New(s.featSet.NumFeatures(), weight.DefaultBounds, run.Rule.Alpha)
	}
	s.filter = movefilter.New(s.pos)
	s.eval = evaluator.New(s.reg, s.root, s.weights, s.filter)
	s.eval.Reset(s.pos)
	s.pol = buildPolicy(run, s.eval, s.filter, &s.timestep)
	s.ring = history.New(historySize, maxMoves)
	return s, nil
}

func (s *session) close() {
	if s.closeShared != nil {
		_ = s.closeShared()
	}
}

func buildPolicy(run *config.Run, eval *evaluator.Evaluator, filter *movefilter.Filter, timestep *int) policy.Policy {
	adapted := evalAdapter{eval}
	switch run.Policy.Kind {
	case "random":
		return policy.Random{Filter: filter}
	case "gibbs":
		return policy.Gibbs{Eval: adapted, Filter: filter, Temperature: maxf(run.Policy.Temperature, 0.01)}
	case "epsilon":
		eg := policy.EpsilonGreedy{
			P:       policy.Random{Filter: filter},
			N:       policy.Greedy{Eval: adapted},
			Epsilon: run.Policy.Epsilon,
			Decay:   run.Policy.EpsilonDecay,
		}
		return policy.AtTimestep{P: eg, T: timestep}
	case "montecarlo":
		return policy.MonteCarlo{
			Eval: adapted, Filter: filter, Sim: policy.RandomPlayout{},
			NumPlayouts: 8, MaxMoves: 2 * run.BoardSize * run.BoardSize,
		}
	default:
		return policy.Greedy{Eval: adapted}
	}
}

func maxf(v, floor float64) float64 {
	if v <= 0 {
		return floor
	}
	return v
}

// evalAdapter bridges evaluator.Evaluator's BestResult to policy's
// distinctly-named but structurally identical type.
type evalAdapter struct{ *evaluator.Evaluator }

func (a evalAdapter) FindBest(pos *board.Position, c board.Color, rng *rand.Rand) (policy.BestResult, error) {
	r, err := a.Evaluator.FindBest(pos, c, rng)
	return policy.BestResult{Move: r.Move, Value: r.Value, Pass: r.Pass}, err
}

// playEpisode plays one self-play game to completion or maxMoves,
// recording a history.State per ply, and returns whether
// Black won, whether the game was scored a draw, and the ply count.
func (s *session) playEpisode(rng *rand.Rand, maxMoves int) (won, draw bool, moves int) {
	// Fresh board each episode; tracker/evaluator/filter are rebuilt
	// around it so the previous episode's stones don't leak forward,
	// since each evaluator Reset rebuilds from the current board.
	s.pos = board.NewPosition(s.run.BoardSize, s.run.Komi, board.KoPositional)
	s.filter = movefilter.New(s.pos)
	s.eval = evaluator.New(s.reg, s.root, s.weights, s.filter)
	s.eval.Reset(s.pos)
	s.pol = buildPolicy(s.run, s.eval, s.filter, &s.timestep)
	s.ring.NewEpisode()
	s.sgf = sgf.NewBuilder(s.run.BoardSize, s.run.Komi)

	// Greedy self-play is the on-policy "best" choice; the stochastic
	// policies record PolicyOn so learning rules can apply their
	// off-policy accounting against a different target policy.
	ptype := history.PolicyBest
	if s.run.Policy.Kind != "" && s.run.Policy.Kind != "greedy" {
		ptype = history.PolicyOn
	}

	c := board.Black
	consecutivePasses := 0
	s.timestep = 0
	for s.timestep < maxMoves && consecutivePasses < 2 {
		mv, err := s.pol.Select(s.pos, c, rng)
		if err != nil {
			break
		}
		st := history.State{Timestep: s.timestep, ColorToPlay: colorCode(c), Policy: ptype, Evaluated: true, MovePlayed: -1, BestMove: -1}
		if ptype == history.PolicyBest && !mv.Pass {
			st.BestMove = mv.Point.Index(s.run.BoardSize)
			st.BestValue = mv.Value
			st.HasBestMove = true
		}
		if mv.Pass {
			consecutivePasses++
			if _, err := s.eval.PlayExecute(s.pos, board.Pass, c); err != nil {
				break
			}
			s.sgf.PlayPass(c)
		} else {
			consecutivePasses = 0
			if _, err := s.eval.PlayExecute(s.pos, board.PlayAt(mv.Point), c); err != nil {
				break
			}
			s.sgf.Play(c, mv.Point)
			st.MovePlayed = mv.Point.Index(s.run.BoardSize)
		}
		st.Eval = s.eval.Value()
		recordActive(&st, s.root.Active())
		_ = s.ring.AppendState(st)
		c = c.Other()
		s.timestep++
		moves++
	}
	score := s.pos.AreaScore()
	_ = s.ring.TerminateEpisode(score)
	return score > 0, score == 0, moves
}

// recordActive snapshots the tracker's active entries into the state
// (the features the learning rules will credit this timestep's TD
// error to).
func recordActive(st *history.State, a *tracker.ActiveSet) {
	for slot := 0; slot < a.Size(); slot++ {
		if f, occ, ok := a.FeatureAt(slot); ok {
			st.ActiveFeature = append(st.ActiveFeature, f)
			st.ActiveOccurrences = append(st.ActiveOccurrences, occ)
		}
	}
	st.HasActive = true
}

func colorCode(c board.Color) int8 {
	if c == board.White {
		return 2
	}
	return 1
}
