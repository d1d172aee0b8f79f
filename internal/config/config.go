// Package config loads the ambient run configuration for a training
// or GTP session (board size, komi, feature-set choice, trainer/rule
// tunables, file paths) from a YAML file; separate from the
// settings-file object-graph grammar in package settings, which persists
// feature-set/tracker wiring rather than run-level knobs.
//
// viper reads the file into a generic map and gopkg.in/yaml.v3
// re-marshals/unmarshals the selected `def` subtree into a concrete
// struct, so one file can carry differently-shaped definitions behind
// a `kind` selector.
package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Run holds every ambient tunable a training run or GTP session reads
// at startup.
type Run struct {
	BoardSize  int     `yaml:"boardsize"`
	Komi       float64 `yaml:"komi"`
	FeatureSet string  `yaml:"featureset"`

	WeightFile    string `yaml:"weightfile"`
	WeightStrict  bool   `yaml:"weightstrict"`
	CacheDir      string `yaml:"cachedir"` // successor/share-table cache files
	SettingsFile  string `yaml:"settingsfile"`
	FeatureID     string `yaml:"featureid"` // root object ID within the settings file
	TrainStoreDir string `yaml:"trainstoredir"`
	SGFOutputDir  string `yaml:"sgfoutputdir"`

	Trainer TrainerConfig `yaml:"trainer"`
	Rule    RuleConfig    `yaml:"rule"`
	Policy  PolicyConfig  `yaml:"policy"`

	TrainingDeadline map[string]string `yaml:"trainingdeadline"`
}

// TrainerConfig mirrors trainer.Config's YAML-facing shape.
type TrainerConfig struct {
	Kind       string `yaml:"kind"` // "forward", "backward", "random"
	Episodes   string `yaml:"episodes"`
	Replays    int    `yaml:"replays"`
	Gap        int    `yaml:"gap"`
	Interleave bool   `yaml:"interleave"`
}

// RuleConfig mirrors learning.Config's YAML-facing shape.
type RuleConfig struct {
	Kind          string  `yaml:"kind"` // "td0", "montecarlo", "lambdareturn", "tdlambda"
	Alpha         float64 `yaml:"alpha"`
	StepMode      string  `yaml:"stepmode"`
	Lambda        float64 `yaml:"lambda"`
	Replacing     bool    `yaml:"replacing"`
	Logistic      bool    `yaml:"logistic"`
	GradientFloor float64 `yaml:"gradientfloor"`
	OffPolicyOK   bool    `yaml:"offpolicyok"`
}

// PolicyConfig selects and parameterizes the policy chain.
type PolicyConfig struct {
	Kind         string  `yaml:"kind"`
	Epsilon      float64 `yaml:"epsilon"`
	EpsilonDecay bool    `yaml:"epsilondecay"`
	Temperature  float64 `yaml:"temperature"`
}

// Deadline returns the configured training deadline duration, if one
// was specified, mirroring the grounding repo's
// TrainingConfig.WithTrainingDeadline shape but leaving context
// construction to the caller.
func (r *Run) Deadline() (time.Duration, bool) {
	val, ok := r.TrainingDeadline["duration"]
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, false
	}
	return d, true
}

// outer is the top-level `kind: ...\ndef: ...` envelope every config
// file carries, letting one file name which Run shape its def subtree
// should be parsed as (only "run" exists today, but the envelope keeps
// the door open the way the grounding repo's OuterConfig does).
type outer struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// Load reads path (a YAML file) into a Run.
func Load(path string) (*Run, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return nil, err
	}

	var o outer
	if err := vp.Unmarshal(&o); err != nil {
		return nil, err
	}

	spec, err := yaml.Marshal(o.Def)
	if err != nil {
		return nil, err
	}

	run := Default()
	if err := yaml.Unmarshal(spec, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Default returns a Run populated with sane starting values, used both
// as Load's base (so a partial file only overrides what it mentions)
// and directly by callers with no config file at all.
func Default() *Run {
	return &Run{
		BoardSize:  19,
		Komi:       6.5,
		FeatureSet: "default",
		Trainer: TrainerConfig{
			Kind:     "forward",
			Episodes: "current",
			Replays:  1,
			Gap:      1,
		},
		Rule: RuleConfig{
			Kind:          "td0",
			Alpha:         0.1,
			StepMode:      "constant",
			Lambda:        0.9,
			GradientFloor: 0.01,
		},
		Policy: PolicyConfig{Kind: "greedy"},
	}
}
