package dockermatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// deriveImageBaseImage recovers a base-image reference from an image's
// oldest history entry: ImageFacts itself carries no baseImage field, since
// real pulled images rarely record one explicitly in history.
func deriveImageBaseImage(facts ImageFacts) string {
	if len(facts.History) == 0 {
		return ""
	}
	raw := facts.History[0].RawCreatedBy

	if idx := strings.Index(raw, "FROM"); idx >= 0 {
		return strings.Trim(strings.TrimSpace(raw[idx+len("FROM"):]), `"'`)
	}
	if trimmed := strings.TrimSpace(raw); strings.HasPrefix(trimmed, "#") {
		fields := strings.Fields(trimmed)
		if len(fields) > 2 {
			return strings.Trim(fields[2], `"'`)
		}
	}
	return ""
}

func aggregate(ctx context.Context, instructions []DockerInstruction, facts ImageFacts, layerResult AlignResult, cfg *Config) (MatchReport, error) {
	analysis := AnalyzeDockerfile(instructions)
	imageBase := deriveImageBaseImage(facts)

	var baseImageScore, envScore, portsScore, volumesScore, workdirScore, platformScore, commandsScore, labelsScore, contextScore FacetScore

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		baseImageScore = scoreBaseImage(analysis.BaseImage, imageBase, cfg)
		return nil
	})
	g.Go(func() error {
		envScore = scoreEnvironment(instructions, facts.Config.Env)
		return nil
	})
	g.Go(func() error {
		portsScore = scorePorts(instructions, facts.Config.ExposedPorts)
		return nil
	})
	g.Go(func() error {
		volumesScore = scoreVolumes(instructions, facts.Config.Volumes)
		return nil
	})
	g.Go(func() error {
		workdirScore = scoreWorkdir(instructions, facts.Config.WorkingDir)
		return nil
	})
	g.Go(func() error {
		platformScore = scorePlatform(instructions, facts.Architecture)
		return nil
	})
	g.Go(func() error {
		commandsScore = scoreCommands(instructions, facts.Config.Cmd, facts.Config.Entrypoint)
		return nil
	})
	g.Go(func() error {
		labelsScore = scoreLabels(analysis.Metadata, facts.Config.Labels, cfg.LabelMatching)
		return nil
	})
	g.Go(func() error {
		contextScore = scoreBuildContext(instructions, layerResult.Matches, facts.History, cfg.PathMatching)
		return nil
	})
	if err := g.Wait(); err != nil {
		return MatchReport{}, err
	}

	metadataContributors := []FacetScore{envScore, portsScore, volumesScore, labelsScore, commandsScore, workdirScore, platformScore}
	var metaSum float64
	for _, f := range metadataContributors {
		metaSum += clamp01(f.Score)
	}
	metadataScore := FacetScore{
		Score:     metaSum / float64(len(metadataContributors)),
		Rationale: "mean of environment, ports, volumes, labels, commands, workdir, and platform facets",
	}

	layerFacet := FacetScore{
		Score:     layerResult.FacetScore,
		Rationale: fmt.Sprintf("%d/%d layer-creating instructions matched", countMatched(layerResult.Matches), len(layerResult.Matches)),
	}

	overall := clamp01(
		baseImageScore.Score*cfg.ScoreWeights.BaseImage +
			layerFacet.Score*cfg.ScoreWeights.LayerMatch +
			metadataScore.Score*cfg.ScoreWeights.Metadata +
			contextScore.Score*cfg.ScoreWeights.Context,
	)

	facets := map[FacetName]FacetScore{
		FacetBaseImage:   baseImageScore,
		FacetLayers:      layerFacet,
		FacetMetadata:    metadataScore,
		FacetContext:     contextScore,
		FacetEnvironment: envScore,
		FacetPorts:       portsScore,
		FacetVolumes:     volumesScore,
		FacetWorkdir:     workdirScore,
		FacetPlatform:    platformScore,
		FacetCommands:    commandsScore,
		FacetLabels:      labelsScore,
	}

	return MatchReport{
		ID:              uuid.New(),
		Overall:         overall,
		Quality:         classifyQuality(overall, cfg.Thresholds),
		Facets:          facets,
		LayerMatches:    layerResult.Matches,
		MismatchReasons: collectMismatchReasons(facets),
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func countMatched(matches []LayerMatch) int {
	n := 0
	for _, m := range matches {
		if m.Type != MatchNone {
			n++
		}
	}
	return n
}

func classifyQuality(overall float64, t Thresholds) Quality {
	switch {
	case overall >= t.Excellent:
		return QualityExcellent
	case overall >= t.Good:
		return QualityGood
	case overall >= t.Fair:
		return QualityFair
	case overall >= t.Poor:
		return QualityPoor
	default:
		return QualityVeryPoor
	}
}

// mismatchThresholds pairs each aggregate facet with the threshold below
// which it contributes a mismatch reason.
var mismatchThresholds = []struct {
	facet     FacetName
	threshold float64
}{
	{FacetBaseImage, 0.8},
	{FacetLayers, 0.7},
	{FacetMetadata, 0.7},
	{FacetContext, 0.7},
}

func collectMismatchReasons(facets map[FacetName]FacetScore) []string {
	var reasons []string
	for _, mt := range mismatchThresholds {
		f, ok := facets[mt.facet]
		if !ok || f.Score >= mt.threshold {
			continue
		}
		reasons = append(reasons, fmt.Sprintf("%s: %s (score %.2f below threshold %.2f)", mt.facet, f.Rationale, f.Score, mt.threshold))
	}
	return reasons
}
