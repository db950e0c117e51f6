package dockermatch

import (
	"math"
	"strings"
)

// AlignResult is the output of AlignLayers: the per-instruction matches plus
// the aggregate layer facet score.
type AlignResult struct {
	Matches    []LayerMatch
	FacetScore float64
}

func isLayerCreating(kind InstructionKind) bool {
	return kind == KindRun || kind == KindCopy || kind == KindAdd
}

// AlignLayers sequentially aligns layer-creating Dockerfile instructions
// against image history entries (C5).
func AlignLayers(instructions []DockerInstruction, history []HistoryEntry, layerCfg LayerMatchingConfig, weights CommandTypeWeights) AlignResult {
	var layerIdx []int
	for i, inst := range instructions {
		if isLayerCreating(inst.Kind) {
			layerIdx = append(layerIdx, i)
		}
	}
	if len(layerIdx) == 0 {
		return AlignResult{FacetScore: 1.0}
	}

	used := make([]bool, len(history))
	matches := make([]LayerMatch, 0, len(layerIdx))
	var weightedSum float64

	for _, i := range layerIdx {
		inst := instructions[i]
		cleanInst := cleanCreatedBy(inst.Raw)

		bestJ := -1
		bestScore := 0.0
		bestSim := 0.0
		bestSeq := 0.0

		for j, h := range history {
			if used[j] {
				continue
			}
			sim := layerSimilarity(inst.Kind, cleanInst, cleanCreatedBy(h.CreatedBy))
			seq := 1 - 0.5*math.Abs(float64(i-j))/float64(len(history))
			score := sim * seq
			if score > bestScore {
				bestScore, bestJ, bestSim, bestSeq = score, j, sim, seq
			}
		}

		weight := weights.forKind(inst.Kind)

		if bestJ != -1 && bestScore >= layerCfg.PartialMatchThreshold {
			used[bestJ] = true
			hj := bestJ
			mtype := MatchPartial
			if bestScore >= layerCfg.ExactMatchThreshold {
				mtype = MatchExact
			}
			matches = append(matches, LayerMatch{
				InstructionIndex: i,
				HistoryIndex:     &hj,
				Score:            bestScore,
				Type:             mtype,
				Details: LayerMatchDetails{
					SequenceScore: bestSeq,
					CommandScore:  bestSim,
				},
			})
			weightedSum += bestScore * weight
		} else {
			matches = append(matches, LayerMatch{
				InstructionIndex: i,
				HistoryIndex:     nil,
				Score:            0,
				Type:             MatchNone,
				Details: LayerMatchDetails{
					Reason: "no history entry scored above the partial-match threshold",
				},
			})
		}
	}

	return AlignResult{
		Matches:    matches,
		FacetScore: weightedSum / float64(len(layerIdx)),
	}
}

func layerSimilarity(kind InstructionKind, a, b string) float64 {
	switch kind {
	case KindRun:
		return jaccard(tokenSet(a), tokenSet(b))
	case KindCopy, KindAdd:
		if a != "" && a == b {
			return 1.0
		}
		return 0.0
	default:
		return 0.0
	}
}

func tokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range strings.Fields(s) {
		out[f] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
