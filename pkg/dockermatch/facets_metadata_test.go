package dockermatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreEnvironment(t *testing.T) {
	instructions := []DockerInstruction{
		{Kind: KindEnv, Raw: `PORT=8080 DEBUG=false`},
	}
	tests := []struct {
		name     string
		imageEnv map[string]string
		expected float64
	}{
		{"full match", map[string]string{"PORT": "8080", "DEBUG": "false"}, 1.0},
		{"key matches, value differs", map[string]string{"PORT": "9090", "DEBUG": "false"}, 0.75},
		{"missing on image side", map[string]string{"DEBUG": "false"}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreEnvironment(instructions, tt.imageEnv)
			assert.InDelta(t, tt.expected, got.Score, 0.001)
		})
	}
}

func TestScorePorts(t *testing.T) {
	instructions := []DockerInstruction{{Kind: KindExpose, Raw: "8080 9090/udp"}}

	full := map[string]struct{}{"8080/tcp": {}, "9090/udp": {}}
	partial := map[string]struct{}{"8080/tcp": {}}

	assert.InDelta(t, 1.0, scorePorts(instructions, full).Score, 0.001)
	assert.InDelta(t, 0.5, scorePorts(instructions, partial).Score, 0.001)
}

func TestScoreVolumes(t *testing.T) {
	instructions := []DockerInstruction{{Kind: KindVolume, Raw: `["/data/", "/logs"]`}}
	imageVolumes := map[string]struct{}{"/data": {}, "/logs": {}}
	got := scoreVolumes(instructions, imageVolumes)
	assert.InDelta(t, 1.0, got.Score, 0.001)
}

func TestScoreWorkdir(t *testing.T) {
	tests := []struct {
		name         string
		instructions []DockerInstruction
		imageWorkdir string
		expected     float64
	}{
		{"exact", []DockerInstruction{{Kind: KindWorkdir, Args: []string{"/app"}}}, "/app", 1.0},
		{"trailing slash normalized", []DockerInstruction{{Kind: KindWorkdir, Args: []string{"/app/"}}}, "/app", 0.9},
		{"both absent", nil, "", 1.0},
		{"only image side", nil, "/app", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreWorkdir(tt.instructions, tt.imageWorkdir)
			assert.InDelta(t, tt.expected, got.Score, 0.001)
		})
	}
}

func TestScoreCommands(t *testing.T) {
	instructions := []DockerInstruction{
		{Kind: KindEntrypoint, Raw: `["/usr/local/bin/app"]`},
		{Kind: KindCmd, Raw: `["--serve"]`},
	}
	got := scoreCommands(instructions, []string{"--serve"}, []string{"/usr/local/bin/app"})
	assert.InDelta(t, 1.0, got.Score, 0.001)

	mismatched := scoreCommands(instructions, []string{"--other"}, []string{"/usr/local/bin/app"})
	assert.InDelta(t, 0.5, mismatched.Score, 0.001)
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, 1.0, compareVersions("1.2.3", "1.2.3"))
	assert.InDelta(t, 1.0, compareVersions("2.0.1", "2.0.1"), 0.001)
	assert.InDelta(t, 2.0/3.0, compareVersions("1.2.3", "1.2.9"), 0.001)
	assert.InDelta(t, 0.0, compareVersions("1.2.3", "9.9.9"), 0.001)
}

func TestScoreLabels(t *testing.T) {
	cfg := DefaultConfig().LabelMatching

	dfLabels := map[string]string{"maintainer": "team@example.com", "version": "1.2.3"}
	imgLabels := map[string]string{"maintainer": "team@example.com", "version": "1.2.9"}

	got := scoreLabels(dfLabels, imgLabels, cfg)
	// maintainer matches fully (weight 0.4); version partially credits via
	// compareVersions (weight 0.3, 2/3 component match).
	expected := (cfg.Maintainer + cfg.Version*(2.0/3.0)) / (cfg.Maintainer + cfg.Version)
	assert.InDelta(t, expected, got.Score, 0.001)
}

func TestScoreLabels_bothEmpty(t *testing.T) {
	got := scoreLabels(nil, nil, DefaultConfig().LabelMatching)
	assert.Equal(t, 1.0, got.Score)
}
