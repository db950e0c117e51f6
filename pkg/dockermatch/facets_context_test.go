package dockermatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreBuildContext(t *testing.T) {
	cfg := DefaultConfig().PathMatching

	instructions := []DockerInstruction{
		{Kind: KindCopy, Args: []string{"app.py", "/app/app.py"}},
	}
	idx := 0
	matches := []LayerMatch{
		{InstructionIndex: 0, HistoryIndex: &idx},
	}
	history := []HistoryEntry{
		{CreatedBy: "app.py /app/app.py"},
	}

	got := scoreBuildContext(instructions, matches, history, cfg)
	assert.InDelta(t, 1.0, got.Score, 0.001)
}

func TestScoreBuildContext_noMatch(t *testing.T) {
	cfg := DefaultConfig().PathMatching
	instructions := []DockerInstruction{
		{Kind: KindCopy, Args: []string{"app.py", "/app/app.py"}},
	}
	got := scoreBuildContext(instructions, nil, nil, cfg)
	assert.InDelta(t, 0.0, got.Score, 0.001)
}

func TestScoreBuildContext_noCopyInstructions(t *testing.T) {
	cfg := DefaultConfig().PathMatching
	instructions := []DockerInstruction{{Kind: KindRun, Raw: "echo hi"}}
	got := scoreBuildContext(instructions, nil, nil, cfg)
	assert.Equal(t, 1.0, got.Score)
}

func TestTieredPathScore(t *testing.T) {
	cfg := DefaultConfig().PathMatching

	assert.Equal(t, cfg.Exact, tieredPathScore("/app/app.py", "/app/app.py", cfg))
	assert.Equal(t, cfg.Parent, tieredPathScore("/app/app.py", "/app/server.py", cfg))
	assert.Equal(t, cfg.Filename, tieredPathScore("/src/app.py", "/dest/app.py", cfg))
	assert.Equal(t, cfg.Extension, tieredPathScore("/src/a.py", "/dest/b.py", cfg))
	assert.Equal(t, 0.0, tieredPathScore("/src/a.py", "/dest/b.txt", cfg))
}
