package dockermatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDockerfile = `# build a small web service
FROM golang:1.22 AS builder
WORKDIR /src
COPY go.mod go.sum ./
RUN go mod download
COPY . .
RUN go build -o /out/app .

FROM debian:bookworm-slim
LABEL maintainer="team@example.com" version="1.0.0"
RUN apt-get update && apt-get install -y ca-certificates
COPY --from=builder /out/app /usr/local/bin/app
ENV PORT=8080
EXPOSE 8080
VOLUME ["/data"]
WORKDIR /app
ENTRYPOINT ["/usr/local/bin/app"]
CMD ["--serve"]
`

func TestParse(t *testing.T) {
	instructions, err := Parse(sampleDockerfile)
	require.NoError(t, err)
	require.NotEmpty(t, instructions)

	var kinds []InstructionKind
	for _, inst := range instructions {
		kinds = append(kinds, inst.Kind)
	}
	assert.Contains(t, kinds, KindFrom)
	assert.Contains(t, kinds, KindEntrypoint)
	assert.Contains(t, kinds, KindCmd)
}

func TestParse_lineContinuation(t *testing.T) {
	src := "FROM alpine\nRUN apk add --no-cache \\\n    curl \\\n    git\n"
	instructions, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, instructions, 2)
	assert.Equal(t, KindRun, instructions[1].Kind)
	assert.Contains(t, instructions[1].Raw, "curl")
	assert.Contains(t, instructions[1].Raw, "git")
}

func TestParse_emptyDockerfile(t *testing.T) {
	_, err := Parse("\n\n# just a comment\n")
	require.Error(t, err)
	assert.True(t, IsInvalidDockerfile(err))
}

func TestParse_noFromInstruction(t *testing.T) {
	_, err := Parse("RUN echo hello\n")
	require.Error(t, err)
	assert.True(t, IsInvalidDockerfile(err))
}

func TestAnalyzeDockerfile(t *testing.T) {
	instructions, err := Parse(sampleDockerfile)
	require.NoError(t, err)

	analysis := AnalyzeDockerfile(instructions)
	assert.Equal(t, "golang:1.22", analysis.BaseImage)
	assert.Contains(t, analysis.Stages, "builder")
	assert.Len(t, analysis.PackageCommands, 1)
	assert.NotEmpty(t, analysis.CopyCommands)
	assert.Equal(t, "team@example.com", analysis.Metadata["maintainer"])
	assert.Equal(t, "1.0.0", analysis.Metadata["version"])
}

func TestParseLabels_legacyForm(t *testing.T) {
	metadata := map[string]string{}
	parseLabels(`maintainer team@example.com`, metadata)
	assert.Equal(t, "team@example.com", metadata["maintainer"])
}
