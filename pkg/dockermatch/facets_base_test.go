package dockermatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreBaseImage(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		dfBase   string
		imgBase  string
		expected float64
	}{
		{"both empty", "", "", 1.0},
		{"one empty", "alpine", "", 0.0},
		{"exact match", "python:3.11", "python:3.11", 1.0},
		{"same repo different tag", "python:3.11", "python:3.12", 0.8},
		{"registry-qualified vs bare, same image (caught by alias widening)", "docker.io/library/python:3.11", "python:3.11", 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreBaseImage(tt.dfBase, tt.imgBase, cfg)
			assert.InDelta(t, tt.expected, got.Score, 0.001)
		})
	}
}

func TestScoreBaseImage_knownAlias(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KnownAliases = map[string]string{"node": "nodejs"}

	got := scoreBaseImage("node:20", "nodejs:20", cfg)
	assert.InDelta(t, 0.9, got.Score, 0.001)
}

func TestNormalizeImageRef(t *testing.T) {
	tests := []struct {
		ref      string
		expected string
	}{
		{"python", "python:latest"},
		{"Python:3.11", "python:3.11"},
		{"myregistry.example.com/team/app:1.0", "team/app:1.0"},
		{"localhost/app", "app:latest"},
		{"gcr.io/project/app", "project/app:latest"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizeImageRef(tt.ref), tt.ref)
	}
}

func TestScorePlatform(t *testing.T) {
	tests := []struct {
		name         string
		instructions []DockerInstruction
		imageArch    string
		expected     float64
	}{
		{
			name:         "matching via platform flag",
			instructions: []DockerInstruction{{Kind: KindFrom, Args: []string{"--platform=linux/arm64", "alpine"}}},
			imageArch:    "arm64",
			expected:     1.0,
		},
		{
			name:         "no Dockerfile platform defaults to image architecture",
			instructions: []DockerInstruction{{Kind: KindFrom, Raw: "alpine"}},
			imageArch:    "x86_64",
			expected:     1.0,
		},
		{
			name:         "no platform info either side",
			instructions: []DockerInstruction{{Kind: KindFrom, Raw: "alpine"}},
			imageArch:    "",
			expected:     1.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorePlatform(tt.instructions, tt.imageArch)
			assert.InDelta(t, tt.expected, got.Score, 0.001)
		})
	}
}
