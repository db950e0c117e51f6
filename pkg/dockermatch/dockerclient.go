package dockermatch

import (
	"context"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// EngineClient is the small Docker Engine surface the match engine depends
// on: get, pull, inspect, history — small enough to be mocked in tests with
// fixture JSON. *client.Client from github.com/docker/docker satisfies it
// directly.
type EngineClient interface {
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ImageHistory(ctx context.Context, imageID string) ([]image.HistoryResponseItem, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
}

// NewDockerEngineClient connects to the local Docker Engine using the
// standard environment-derived configuration (DOCKER_HOST, DOCKER_CERT_PATH,
// etc.), negotiating the API version against the daemon.
func NewDockerEngineClient() (EngineClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return cli, nil
}

func isImageNotFoundErr(err error) bool {
	return client.IsErrNotFound(err)
}
