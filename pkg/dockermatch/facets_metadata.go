package dockermatch

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/docker/go-connections/nat"
	"github.com/google/shlex"
)

type envPair struct {
	key   string
	value string
}

func parseEnvBody(raw string) []envPair {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if strings.Contains(raw, "=") {
		tokens, err := shlex.Split(raw)
		if err != nil {
			tokens = strings.Fields(raw)
		}
		var out []envPair
		for _, tok := range tokens {
			idx := strings.Index(tok, "=")
			if idx < 0 {
				continue
			}
			out = append(out, envPair{key: tok[:idx], value: strings.Trim(tok[idx+1:], `"'`)})
		}
		return out
	}

	fields := strings.Fields(raw)
	if len(fields) >= 2 {
		return []envPair{{key: fields[0], value: strings.Trim(strings.Join(fields[1:], " "), `"'`)}}
	}
	return nil
}

func scoreEnvironment(instructions []DockerInstruction, imageEnv map[string]string) FacetScore {
	var entries []envPair
	for _, inst := range instructions {
		if inst.Kind == KindEnv {
			entries = append(entries, parseEnvBody(inst.Raw)...)
		}
	}

	if len(entries) == 0 && len(imageEnv) == 0 {
		return FacetScore{1.0, "no environment variables to compare"}
	}
	if len(entries) == 0 || len(imageEnv) == 0 {
		return FacetScore{0.0, "environment variables present on only one side"}
	}

	var total float64
	for _, e := range entries {
		if v, ok := imageEnv[e.key]; ok {
			if v == e.value {
				total += 1.0
			} else {
				total += 0.5
			}
		}
	}
	score := total / float64(len(entries))
	return FacetScore{score, fmt.Sprintf("environment match score %.2f over %d ENV entries", score, len(entries))}
}

// extractDockerfilePorts parses EXPOSE bodies with docker/go-connections/nat
// so the Dockerfile side and the image's ExposedPorts (itself a nat.PortSet)
// are normalized identically.
func extractDockerfilePorts(instructions []DockerInstruction) map[string]struct{} {
	out := map[string]struct{}{}
	for _, inst := range instructions {
		if inst.Kind != KindExpose {
			continue
		}
		for _, token := range strings.Fields(inst.Raw) {
			mappings, err := nat.ParsePortSpec(token)
			if err != nil {
				continue
			}
			for _, m := range mappings {
				out[string(m.Port)] = struct{}{}
			}
		}
	}
	return out
}

func scorePorts(instructions []DockerInstruction, imagePorts map[string]struct{}) FacetScore {
	dfPorts := extractDockerfilePorts(instructions)
	if len(dfPorts) == 0 && len(imagePorts) == 0 {
		return FacetScore{1.0, "no exposed ports to compare"}
	}
	if len(dfPorts) == 0 || len(imagePorts) == 0 {
		return FacetScore{0.0, "exposed ports present on only one side"}
	}

	inter := 0
	for p := range dfPorts {
		if _, ok := imagePorts[p]; ok {
			inter++
		}
	}
	denom := len(dfPorts)
	if len(imagePorts) > denom {
		denom = len(imagePorts)
	}
	score := float64(inter) / float64(denom)
	return FacetScore{score, fmt.Sprintf("%d/%d ports matched", inter, denom)}
}

func parseVolumeBody(raw string) []string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			return list
		}
		return nil
	}
	tokens, err := shlex.Split(raw)
	if err != nil {
		tokens = strings.Fields(raw)
	}
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, strings.Trim(t, `"'`))
	}
	return out
}

func normalizeVolumePath(p string) string {
	return strings.TrimRight(p, "/")
}

func extractDockerfileVolumes(instructions []DockerInstruction) map[string]struct{} {
	out := map[string]struct{}{}
	for _, inst := range instructions {
		if inst.Kind != KindVolume {
			continue
		}
		for _, v := range parseVolumeBody(inst.Raw) {
			out[normalizeVolumePath(v)] = struct{}{}
		}
	}
	return out
}

func scoreVolumes(instructions []DockerInstruction, imageVolumes map[string]struct{}) FacetScore {
	dfVolumes := extractDockerfileVolumes(instructions)

	normImg := map[string]struct{}{}
	for v := range imageVolumes {
		normImg[normalizeVolumePath(v)] = struct{}{}
	}

	if len(dfVolumes) == 0 && len(normImg) == 0 {
		return FacetScore{1.0, "no volumes to compare"}
	}
	if len(dfVolumes) == 0 || len(normImg) == 0 {
		return FacetScore{0.0, "volumes present on only one side"}
	}

	inter := 0
	for v := range dfVolumes {
		if _, ok := normImg[v]; ok {
			inter++
		}
	}
	denom := len(dfVolumes)
	if len(normImg) > denom {
		denom = len(normImg)
	}
	score := float64(inter) / float64(denom)
	return FacetScore{score, fmt.Sprintf("%d/%d volumes matched", inter, denom)}
}

func lastWorkdir(instructions []DockerInstruction) (string, bool) {
	var last string
	var found bool
	for _, inst := range instructions {
		if inst.Kind == KindWorkdir && len(inst.Args) > 0 {
			last, found = inst.Args[0], true
		}
	}
	return last, found
}

func scoreWorkdir(instructions []DockerInstruction, imageWorkdir string) FacetScore {
	dfWorkdir, found := lastWorkdir(instructions)
	imgFound := imageWorkdir != ""

	if !found && !imgFound {
		return FacetScore{1.0, "no working directory to compare"}
	}
	if !found || !imgFound {
		return FacetScore{0.0, "working directory present on only one side"}
	}
	if dfWorkdir == imageWorkdir {
		return FacetScore{1.0, fmt.Sprintf("working directory %q matches exactly", dfWorkdir)}
	}
	if strings.TrimRight(dfWorkdir, "/") == strings.TrimRight(imageWorkdir, "/") {
		return FacetScore{0.9, fmt.Sprintf("working directory %q matches after trailing-slash normalization", dfWorkdir)}
	}
	return FacetScore{0.0, fmt.Sprintf("working directory %q does not match %q", dfWorkdir, imageWorkdir)}
}

func lastInstructionRaw(instructions []DockerInstruction, kind InstructionKind) string {
	var raw string
	for _, inst := range instructions {
		if inst.Kind == kind {
			raw = inst.Raw
		}
	}
	return raw
}

func scoreCommands(instructions []DockerInstruction, imageCmd, imageEntrypoint []string) FacetScore {
	cmdEqual := Equal(Normalize(lastInstructionRaw(instructions, KindCmd)), Normalize(imageCmd), true)
	entrypointEqual := Equal(Normalize(lastInstructionRaw(instructions, KindEntrypoint)), Normalize(imageEntrypoint), true)

	var notes []string
	score := 0.0
	if cmdEqual {
		score += 0.5
		notes = append(notes, "CMD matches")
	} else {
		notes = append(notes, "CMD differs")
	}
	if entrypointEqual {
		score += 0.5
		notes = append(notes, "ENTRYPOINT matches")
	} else {
		notes = append(notes, "ENTRYPOINT differs")
	}
	return FacetScore{score, strings.Join(notes, "; ")}
}

func labelWeight(key string, cfg LabelMatchingConfig) float64 {
	switch {
	case strings.Contains(key, "maintainer"):
		return cfg.Maintainer
	case strings.Contains(key, "version"):
		return cfg.Version
	case strings.Contains(key, "description"):
		return cfg.Description
	default:
		return cfg.Other
	}
}

var digitRunPattern = regexp.MustCompile(`\d+`)

// compareVersions attempts a semver-aware equality short-circuit before
// falling back to a numeric-component-prefix match (used by the labels
// facet's partial-credit scoring).
func compareVersions(v1, v2 string) float64 {
	if sv1, err1 := semver.NewVersion(v1); err1 == nil {
		if sv2, err2 := semver.NewVersion(v2); err2 == nil {
			if sv1.Equal(sv2) {
				return 1.0
			}
		}
	}

	parts1 := digitRunPattern.FindAllString(v1, -1)
	parts2 := digitRunPattern.FindAllString(v2, -1)
	if len(parts1) == 0 || len(parts2) == 0 {
		return 0.0
	}

	maxParts := len(parts1)
	if len(parts2) > maxParts {
		maxParts = len(parts2)
	}
	matching := 0
	for i := 0; i < len(parts1) && i < len(parts2); i++ {
		if parts1[i] != parts2[i] {
			break
		}
		matching++
	}
	return float64(matching) / float64(maxParts)
}

func scoreLabels(dfLabels, imgLabels map[string]string, cfg LabelMatchingConfig) FacetScore {
	if len(dfLabels) == 0 && len(imgLabels) == 0 {
		return FacetScore{1.0, "no labels to compare"}
	}
	if len(dfLabels) == 0 || len(imgLabels) == 0 {
		return FacetScore{0.0, "labels present on only one side"}
	}

	var weightedSum, weightTotal float64
	var matched, compared int
	for key, dfVal := range dfLabels {
		imgVal, ok := imgLabels[key]
		if !ok {
			continue
		}
		compared++
		weight := labelWeight(strings.ToLower(key), cfg)
		weightTotal += weight

		if strings.EqualFold(dfVal, imgVal) {
			weightedSum += weight
			matched++
			continue
		}
		if strings.Contains(strings.ToLower(key), "version") {
			weightedSum += weight * compareVersions(dfVal, imgVal)
		}
	}

	if compared == 0 || weightTotal == 0 {
		return FacetScore{0.0, "no matching label keys between Dockerfile and image"}
	}
	score := weightedSum / weightTotal
	return FacetScore{score, fmt.Sprintf("%d/%d shared label keys scored", matched, compared)}
}
