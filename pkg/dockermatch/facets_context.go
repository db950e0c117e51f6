package dockermatch

import (
	"fmt"
	"path/filepath"
	"strings"
)

func filterOutFlags(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if strings.HasPrefix(t, "--") {
			continue
		}
		out = append(out, t)
	}
	return out
}

func dropLast(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	return tokens[:len(tokens)-1]
}

func tieredPathScore(p1, p2 string, cfg PathMatchingConfig) float64 {
	if p1 == p2 {
		return cfg.Exact
	}
	if filepath.Dir(p1) == filepath.Dir(p2) {
		return cfg.Parent
	}
	if filepath.Base(p1) == filepath.Base(p2) {
		return cfg.Filename
	}
	if ext := filepath.Ext(p1); ext != "" && ext == filepath.Ext(p2) {
		return cfg.Extension
	}
	return 0.0
}

func pathSimilarity(srcPaths, destPaths []string, cfg PathMatchingConfig) float64 {
	if len(srcPaths) == 0 || len(destPaths) == 0 {
		return 0.0
	}
	var sum float64
	for _, p1 := range srcPaths {
		best := 0.0
		for _, p2 := range destPaths {
			if s := tieredPathScore(p1, p2, cfg); s > best {
				best = s
			}
		}
		sum += best
	}
	return sum / float64(len(srcPaths))
}

// scoreBuildContext compares the source paths named by each COPY/ADD
// instruction against the paths named in its aligned history entry, using
// tiered path similarity. Source and destination paths are both derived by
// dropping the trailing token (the destination for the Dockerfile side; the
// best-effort equivalent on the history side).
func scoreBuildContext(instructions []DockerInstruction, matches []LayerMatch, history []HistoryEntry, cfg PathMatchingConfig) FacetScore {
	matchByIndex := make(map[int]LayerMatch, len(matches))
	for _, m := range matches {
		matchByIndex[m.InstructionIndex] = m
	}

	var total float64
	var count int
	for i, inst := range instructions {
		if inst.Kind != KindCopy && inst.Kind != KindAdd {
			continue
		}
		count++

		srcPaths := dropLast(filterOutFlags(inst.Args))

		var destPaths []string
		if m, ok := matchByIndex[i]; ok && m.HistoryIndex != nil {
			destPaths = dropLast(strings.Fields(history[*m.HistoryIndex].CreatedBy))
		}

		total += pathSimilarity(srcPaths, destPaths, cfg)
	}

	if count == 0 {
		return FacetScore{1.0, "no COPY/ADD instructions to compare"}
	}
	score := total / float64(count)
	return FacetScore{score, fmt.Sprintf("average path similarity %.2f over %d COPY/ADD instructions", score, count)}
}
