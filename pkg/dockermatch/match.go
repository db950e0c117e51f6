package dockermatch

import (
	"context"
	"time"

	"github.com/shaulab/dockertracer/pkg/logger"

	domerrors "github.com/shaulab/dockertracer/pkg/domain/errors"
)

// Engine ties a configured Inspector to a scoring Config and exposes the
// full Dockerfile-to-image match operation.
type Engine struct {
	Inspector *Inspector
	Config    *Config
}

// NewEngine builds an Engine. A nil cfg falls back to DefaultConfig.
func NewEngine(inspector *Inspector, cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{Inspector: inspector, Config: cfg}
}

// Match parses dockerfileSource, inspects imageRef, aligns layers, and
// aggregates every facet into a MatchReport.
func (e *Engine) Match(ctx context.Context, dockerfileSource string, imageRef string) (MatchReport, error) {
	select {
	case <-ctx.Done():
		return MatchReport{}, domerrors.New(domerrors.CodeCancelled, "dockermatch", "match cancelled before starting", ctx.Err())
	default:
	}

	instructions, err := Parse(dockerfileSource)
	if err != nil {
		return MatchReport{}, err
	}

	facts, err := e.Inspector.Inspect(ctx, imageRef)
	if err != nil {
		return MatchReport{}, err
	}

	logger.Debugf("matching dockerfile (%d instructions) against image %q (%d history entries)", len(instructions), imageRef, len(facts.History))

	layerResult := AlignLayers(instructions, facts.History, e.Config.LayerMatching, e.Config.CommandTypeWeights)

	report, err := aggregate(ctx, instructions, facts, layerResult, e.Config)
	if err != nil {
		if ctx.Err() != nil {
			return MatchReport{}, domerrors.New(domerrors.CodeCancelled, "dockermatch", "match cancelled", ctx.Err())
		}
		return MatchReport{}, err
	}
	return report, nil
}

// Match is the package-level convenience form: build a short-lived Engine
// around engine and cfg and run a single match.
func Match(ctx context.Context, dockerfileSource, imageRef string, engine EngineClient, cfg *Config) (MatchReport, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	inspector := NewInspector(engine, 60*time.Second)
	e := NewEngine(inspector, cfg)
	return e.Match(ctx, dockerfileSource, imageRef)
}
