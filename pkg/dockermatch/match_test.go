package dockermatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const matchTestDockerfile = `FROM debian:bookworm-slim
RUN apt-get update && apt-get install -y ca-certificates
ENTRYPOINT ["/usr/local/bin/app"]
CMD ["--serve"]
`

func TestEngine_Match_producesReport(t *testing.T) {
	fake := &fakeEngineClient{inspect: sampleInspect(), history: sampleHistory()}
	engine := NewEngine(NewInspector(fake, 0), nil)

	report, err := engine.Match(context.Background(), matchTestDockerfile, "myapp:latest")
	require.NoError(t, err)

	assert.NotEmpty(t, report.Facets)
	assert.Greater(t, report.Overall, 0.0)
}

func TestEngine_Match_invalidDockerfile(t *testing.T) {
	fake := &fakeEngineClient{inspect: sampleInspect(), history: sampleHistory()}
	engine := NewEngine(NewInspector(fake, 0), nil)

	_, err := engine.Match(context.Background(), "RUN echo hi\n", "myapp:latest")
	require.Error(t, err)
	assert.True(t, IsInvalidDockerfile(err))
}

func TestEngine_Match_inspectionError(t *testing.T) {
	fake := &fakeEngineClient{inspectErr: errBoom}
	engine := NewEngine(NewInspector(fake, 0), nil)

	_, err := engine.Match(context.Background(), matchTestDockerfile, "myapp:latest")
	require.Error(t, err)
}

func TestEngine_Match_cancelledContext(t *testing.T) {
	fake := &fakeEngineClient{inspect: sampleInspect(), history: sampleHistory()}
	engine := NewEngine(NewInspector(fake, 0), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Match(ctx, matchTestDockerfile, "myapp:latest")
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
}

func TestMatch_packageLevelConvenience(t *testing.T) {
	fake := &fakeEngineClient{inspect: sampleInspect(), history: sampleHistory()}

	report, err := Match(context.Background(), matchTestDockerfile, "myapp:latest", fake, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Facets)
}
