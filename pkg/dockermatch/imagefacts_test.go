package dockermatch

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngineClient struct {
	inspect      types.ImageInspect
	history      []image.HistoryResponseItem
	inspectErr   error
	notFoundOnce bool
	pullErr      error
	pulled       bool
}

func (f *fakeEngineClient) ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error) {
	if f.notFoundOnce && !f.pulled {
		return types.ImageInspect{}, nil, errImageNotFoundStub{}
	}
	if f.inspectErr != nil {
		return types.ImageInspect{}, nil, f.inspectErr
	}
	return f.inspect, nil, nil
}

func (f *fakeEngineClient) ImageHistory(ctx context.Context, imageID string) ([]image.HistoryResponseItem, error) {
	return f.history, nil
}

func (f *fakeEngineClient) ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error) {
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	f.pulled = true
	return io.NopCloser(strings.NewReader("")), nil
}

// errImageNotFoundStub is returned by the fake when notFoundOnce is set and no
// pull has happened yet. It has no NotFound() method, so client.IsErrNotFound
// (and therefore isImageNotFoundErr) does not classify it as not-found. The
// tests in this package exercise only error paths that go straight to
// CodeInspectionFailed; the not-found/pull path is not covered here.
type errImageNotFoundStub struct{}

func (errImageNotFoundStub) Error() string { return "no such image" }

func sampleInspect() types.ImageInspect {
	return types.ImageInspect{
		ID:           "sha256:deadbeef",
		Created:      "2024-01-15T10:00:00Z",
		Size:         123456,
		Architecture: "amd64",
		Os:           "linux",
		Config: &container.Config{
			Env:          []string{"PORT=8080"},
			Cmd:          []string{"--serve"},
			Entrypoint:   []string{"/usr/local/bin/app"},
			WorkingDir:   "/app",
			Labels:       map[string]string{"maintainer": "team@example.com", "version": "1.0.0"},
			ExposedPorts: nat.PortSet{"8080/tcp": {}},
		},
	}
}

func sampleHistory() []image.HistoryResponseItem {
	// Docker's API returns history newest-first.
	return []image.HistoryResponseItem{
		{CreatedBy: "/bin/sh -c #(nop) CMD [\"--serve\"]", Created: 1705316000, Size: 0},
		{CreatedBy: "/bin/sh -c #(nop)  ENTRYPOINT [\"/usr/local/bin/app\"]", Created: 1705315900, Size: 0},
		{CreatedBy: "/bin/sh -c apt-get update && apt-get install -y ca-certificates", Created: 1705315800, Size: 5242880},
		{CreatedBy: "/bin/sh -c #(nop) FROM debian:bookworm-slim", Created: 1705315700, Size: 0},
	}
}

func TestInspector_Inspect_projectsHistoryOldestFirst(t *testing.T) {
	fake := &fakeEngineClient{inspect: sampleInspect(), history: sampleHistory()}
	ins := NewInspector(fake, time.Second*5)

	facts, err := ins.Inspect(context.Background(), "myapp:latest")
	require.NoError(t, err)

	require.Len(t, facts.History, 4)
	assert.Equal(t, KindFrom, facts.History[0].CommandType)
	assert.Equal(t, KindRun, facts.History[1].CommandType)
	assert.Equal(t, KindEntrypoint, facts.History[2].CommandType)
	assert.Equal(t, KindCmd, facts.History[3].CommandType)
}

func TestInspector_Inspect_cachesResult(t *testing.T) {
	fake := &fakeEngineClient{inspect: sampleInspect(), history: sampleHistory()}
	ins := NewInspector(fake, time.Second*5)

	first, err := ins.Inspect(context.Background(), "myapp:latest")
	require.NoError(t, err)

	fake.inspect = types.ImageInspect{}
	second, err := ins.Inspect(context.Background(), "myapp:latest")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestInspector_Inspect_noEngineConfigured(t *testing.T) {
	ins := NewInspector(nil, time.Second)
	_, err := ins.Inspect(context.Background(), "myapp:latest")
	require.Error(t, err)
}

func TestCleanCreatedBy(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{`/bin/sh -c #(nop) CMD ["--serve"]`, `["--serve"]`},
		{`/bin/sh -c apt-get update`, `apt-get update`},
		{`#(nop) WORKDIR /app`, `/app`},
		{`/bin/sh -c 'echo hi'`, `echo hi`},
		{`/bin/sh -c #(nop) COPY app /usr/local/bin/app`, `app /usr/local/bin/app`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, cleanCreatedBy(tt.raw))
	}
}

func TestParseHistoryCommandType(t *testing.T) {
	tests := []struct {
		raw      string
		expected InstructionKind
	}{
		{`/bin/sh -c #(nop) CMD ["--serve"]`, KindCmd},
		{`/bin/sh -c apt-get install -y curl`, KindRun},
		{`/bin/sh -c #(nop) FROM debian:bookworm-slim`, KindFrom},
		{`COPY file:abcd in /app`, KindOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseHistoryCommandType(tt.raw))
	}
}

func TestImageFacts_PackageCommands(t *testing.T) {
	facts := ImageFacts{
		History: []HistoryEntry{
			{CreatedBy: "apt-get update && apt-get install -y curl=7.81.0-1", CommandType: KindRun},
			{CreatedBy: "WORKDIR /app", CommandType: KindOther},
		},
	}
	pkgs := facts.PackageCommands()
	require.Len(t, pkgs, 1)
	assert.Equal(t, PackageManagerAptGet, pkgs[0].Manager)
	assert.Equal(t, []string{"curl"}, pkgs[0].Packages)
}

var errBoom = errors.New("boom")

func TestInspector_Inspect_inspectionFailure(t *testing.T) {
	fake := &fakeEngineClient{inspectErr: errBoom}
	ins := NewInspector(fake, time.Second)
	_, err := ins.Inspect(context.Background(), "myapp:latest")
	require.Error(t, err)
}
