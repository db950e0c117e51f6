package dockermatch

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	domerrors "github.com/shaulab/dockertracer/pkg/domain/errors"
)

// ScoreWeights is the top-level facet weight vector the aggregator uses to
// combine base image, layer, metadata, and context scores into overall.
type ScoreWeights struct {
	BaseImage  float64 `yaml:"base_image"`
	LayerMatch float64 `yaml:"layer_match"`
	Metadata   float64 `yaml:"metadata"`
	Context    float64 `yaml:"context"`
}

// LayerMatchingConfig tunes the Layer Aligner (C5). AlignLayers reads the two
// thresholds; SequenceWeight and CommandWeight are loaded and validated but
// not read by any scorer.
type LayerMatchingConfig struct {
	ExactMatchThreshold   float64 `yaml:"exact_match_threshold"`
	PartialMatchThreshold float64 `yaml:"partial_match_threshold"`
	SequenceWeight        float64 `yaml:"sequence_weight"`
	CommandWeight         float64 `yaml:"command_weight"`
}

// PathMatchingConfig tunes the build-context facet's tiered path scores.
type PathMatchingConfig struct {
	Exact     float64 `yaml:"exact"`
	Parent    float64 `yaml:"parent"`
	Filename  float64 `yaml:"filename"`
	Extension float64 `yaml:"extension"`
}

// LabelMatchingConfig tunes the labels facet's per-key importance weights.
type LabelMatchingConfig struct {
	Maintainer  float64 `yaml:"maintainer"`
	Version     float64 `yaml:"version"`
	Description float64 `yaml:"description"`
	Other       float64 `yaml:"other"`
}

// ContextMatchingConfig holds build-context weights. They are loaded and
// validated but not read by any scorer: the build-context facet uses
// PathMatchingConfig only.
type ContextMatchingConfig struct {
	FilePresence float64 `yaml:"file_presence"`
	PathPattern  float64 `yaml:"path_pattern"`
}

// CommandTypeWeights weights a layer-creating instruction's contribution to
// the layer facet by its kind.
type CommandTypeWeights map[InstructionKind]float64

func (w CommandTypeWeights) forKind(kind InstructionKind) float64 {
	if v, ok := w[kind]; ok {
		return v
	}
	return w[KindOther]
}

// Thresholds are the quality-band cutoffs applied to the overall score.
type Thresholds struct {
	LikelyMatch float64 `yaml:"likely_match"`
	Excellent   float64 `yaml:"excellent"`
	Good        float64 `yaml:"good"`
	Fair        float64 `yaml:"fair"`
	Poor        float64 `yaml:"poor"`
}

// Config is the immutable weight/threshold configuration all scorers read
// from (C8).
type Config struct {
	ScoreWeights       ScoreWeights          `yaml:"score_weights"`
	LayerMatching      LayerMatchingConfig   `yaml:"layer_matching"`
	PathMatching       PathMatchingConfig    `yaml:"path_matching"`
	LabelMatching      LabelMatchingConfig   `yaml:"label_matching"`
	ContextMatching    ContextMatchingConfig `yaml:"context_matching"`
	CommandTypeWeights CommandTypeWeights    `yaml:"command_type_weights"`
	Thresholds         Thresholds            `yaml:"thresholds"`

	// KnownAliases is the table-driven image-alias lookup referenced by the
	// base-image facet. Empty unless supplied.
	KnownAliases map[string]string `yaml:"known_aliases"`

	// ScoringProfile selects the facet-weighting view. Only "four_facet" is
	// implemented; the field exists so a future seven-facet view can be
	// added without an incompatible config change.
	ScoringProfile string `yaml:"scoring_profile"`
}

// DefaultConfig returns the engine's baseline scoring configuration.
func DefaultConfig() *Config {
	return &Config{
		ScoreWeights: ScoreWeights{BaseImage: 0.30, LayerMatch: 0.40, Metadata: 0.15, Context: 0.15},
		LayerMatching: LayerMatchingConfig{
			ExactMatchThreshold:   0.95,
			PartialMatchThreshold: 0.5,
			SequenceWeight:        0.3,
			CommandWeight:         0.7,
		},
		PathMatching: PathMatchingConfig{Exact: 1.0, Parent: 0.8, Filename: 0.6, Extension: 0.3},
		LabelMatching: LabelMatchingConfig{
			Maintainer:  0.4,
			Version:     0.3,
			Description: 0.2,
			Other:       0.1,
		},
		ContextMatching: ContextMatchingConfig{FilePresence: 0.6, PathPattern: 0.4},
		CommandTypeWeights: CommandTypeWeights{
			KindRun:     1.0,
			KindCopy:    0.8,
			KindAdd:     0.8,
			KindEnv:     0.6,
			KindWorkdir: 0.4,
			KindExpose:  0.4,
			KindVolume:  0.4,
			KindLabel:   0.3,
			KindUser:    0.3,
			KindArg:     0.2,
			KindOther:   0.1,
		},
		Thresholds: Thresholds{
			LikelyMatch: 0.8,
			Excellent:   0.9,
			Good:        0.8,
			Fair:        0.6,
			Poor:        0.4,
		},
		KnownAliases:   map[string]string{},
		ScoringProfile: "four_facet",
	}
}

// LoadOption configures a call to Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	configFile string
	envFile    string
	useEnv     bool
}

// FromFile loads YAML configuration from path, overlaying it on the default
// configuration.
func FromFile(path string) LoadOption {
	return func(o *loadOptions) { o.configFile = path }
}

// FromEnvFile loads a .env file (via godotenv) before environment overrides
// are applied.
func FromEnvFile(path string) LoadOption {
	return func(o *loadOptions) { o.envFile = path }
}

// FromEnv enables environment-variable overrides (on by default).
func FromEnv() LoadOption {
	return func(o *loadOptions) { o.useEnv = true }
}

// Load builds a Config from DefaultConfig, a config file, an optional .env
// file, and environment overrides, in that order, and validates the result.
func Load(opts ...LoadOption) (*Config, error) {
	options := &loadOptions{useEnv: true}
	for _, opt := range opts {
		opt(options)
	}

	cfg := DefaultConfig()

	if options.envFile != "" {
		if err := godotenv.Load(options.envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	if options.configFile != "" {
		data, err := os.ReadFile(options.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if options.useEnv {
		loadFromEnv(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, domerrors.New(domerrors.CodeConfigurationInvalid, "dockermatch", err.Error(), err)
	}
	return cfg, nil
}

func loadFromEnv(cfg *Config) {
	envFloat("SCORE_WEIGHTS_BASE_IMAGE", &cfg.ScoreWeights.BaseImage)
	envFloat("SCORE_WEIGHTS_LAYER_MATCH", &cfg.ScoreWeights.LayerMatch)
	envFloat("SCORE_WEIGHTS_METADATA", &cfg.ScoreWeights.Metadata)
	envFloat("SCORE_WEIGHTS_CONTEXT", &cfg.ScoreWeights.Context)

	envFloat("LAYER_MATCHING_EXACT_MATCH_THRESHOLD", &cfg.LayerMatching.ExactMatchThreshold)
	envFloat("LAYER_MATCHING_PARTIAL_MATCH_THRESHOLD", &cfg.LayerMatching.PartialMatchThreshold)
	envFloat("LAYER_MATCHING_SEQUENCE_WEIGHT", &cfg.LayerMatching.SequenceWeight)
	envFloat("LAYER_MATCHING_COMMAND_WEIGHT", &cfg.LayerMatching.CommandWeight)

	envFloat("PATH_MATCHING_EXACT", &cfg.PathMatching.Exact)
	envFloat("PATH_MATCHING_PARENT", &cfg.PathMatching.Parent)
	envFloat("PATH_MATCHING_FILENAME", &cfg.PathMatching.Filename)
	envFloat("PATH_MATCHING_EXTENSION", &cfg.PathMatching.Extension)

	envFloat("LABEL_MATCHING_MAINTAINER", &cfg.LabelMatching.Maintainer)
	envFloat("LABEL_MATCHING_VERSION", &cfg.LabelMatching.Version)
	envFloat("LABEL_MATCHING_DESCRIPTION", &cfg.LabelMatching.Description)
	envFloat("LABEL_MATCHING_OTHER", &cfg.LabelMatching.Other)

	envFloat("CONTEXT_MATCHING_FILE_PRESENCE", &cfg.ContextMatching.FilePresence)
	envFloat("CONTEXT_MATCHING_PATH_PATTERN", &cfg.ContextMatching.PathPattern)

	envFloat("THRESHOLDS_LIKELY_MATCH", &cfg.Thresholds.LikelyMatch)
	envFloat("THRESHOLDS_EXCELLENT", &cfg.Thresholds.Excellent)
	envFloat("THRESHOLDS_GOOD", &cfg.Thresholds.Good)
	envFloat("THRESHOLDS_FAIR", &cfg.Thresholds.Fair)
	envFloat("THRESHOLDS_POOR", &cfg.Thresholds.Poor)

	if v := os.Getenv("SCORING_PROFILE"); v != "" {
		cfg.ScoringProfile = v
	}
}

func envFloat(name string, dst *float64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = f
	}
}

type weightField struct {
	name  string
	value float64
}

// Validate rejects any configuration with a weight/threshold outside [0,1]
// or an unrecognized scoring profile.
func (c *Config) Validate() error {
	fields := []weightField{
		{"score_weights.base_image", c.ScoreWeights.BaseImage},
		{"score_weights.layer_match", c.ScoreWeights.LayerMatch},
		{"score_weights.metadata", c.ScoreWeights.Metadata},
		{"score_weights.context", c.ScoreWeights.Context},
		{"layer_matching.exact_match_threshold", c.LayerMatching.ExactMatchThreshold},
		{"layer_matching.partial_match_threshold", c.LayerMatching.PartialMatchThreshold},
		{"layer_matching.sequence_weight", c.LayerMatching.SequenceWeight},
		{"layer_matching.command_weight", c.LayerMatching.CommandWeight},
		{"path_matching.exact", c.PathMatching.Exact},
		{"path_matching.parent", c.PathMatching.Parent},
		{"path_matching.filename", c.PathMatching.Filename},
		{"path_matching.extension", c.PathMatching.Extension},
		{"label_matching.maintainer", c.LabelMatching.Maintainer},
		{"label_matching.version", c.LabelMatching.Version},
		{"label_matching.description", c.LabelMatching.Description},
		{"label_matching.other", c.LabelMatching.Other},
		{"context_matching.file_presence", c.ContextMatching.FilePresence},
		{"context_matching.path_pattern", c.ContextMatching.PathPattern},
		{"thresholds.likely_match", c.Thresholds.LikelyMatch},
		{"thresholds.excellent", c.Thresholds.Excellent},
		{"thresholds.good", c.Thresholds.Good},
		{"thresholds.fair", c.Thresholds.Fair},
		{"thresholds.poor", c.Thresholds.Poor},
	}
	for _, f := range fields {
		if f.value < 0 || f.value > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", f.name, f.value)
		}
	}

	for kind, w := range c.CommandTypeWeights {
		if w < 0 || w > 1 {
			return fmt.Errorf("command_type_weights.%s must be in [0,1], got %v", kind, w)
		}
	}

	if c.ScoringProfile != "" && c.ScoringProfile != "four_facet" {
		return fmt.Errorf("scoring_profile %q is not supported (only four_facet is implemented)", c.ScoringProfile)
	}

	return nil
}
