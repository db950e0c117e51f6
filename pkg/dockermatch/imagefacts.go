package dockermatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	digest "github.com/opencontainers/go-digest"

	domerrors "github.com/shaulab/dockertracer/pkg/domain/errors"
	"github.com/shaulab/dockertracer/pkg/logger"
)

// Inspector is the Image Inspector Facade (C4): it projects Docker Engine
// inspection payloads into ImageFacts and caches the result per reference.
type Inspector struct {
	engine   EngineClient
	deadline time.Duration
	cache    sync.Map // string ref -> ImageFacts
}

// NewInspector builds an Inspector over engine. deadline bounds a single
// Inspect call, including a pull on cache/engine miss (default 60s).
func NewInspector(engine EngineClient, deadline time.Duration) *Inspector {
	if deadline <= 0 {
		deadline = 60 * time.Second
	}
	return &Inspector{engine: engine, deadline: deadline}
}

// Inspect returns the ImageFacts for ref, pulling the image if it isn't
// present locally, and caching the result for subsequent calls.
func (ins *Inspector) Inspect(ctx context.Context, ref string) (ImageFacts, error) {
	if v, ok := ins.cache.Load(ref); ok {
		return v.(ImageFacts), nil
	}
	if ins.engine == nil {
		return ImageFacts{}, domerrors.New(domerrors.CodeConfigurationError, "dockermatch", "no docker engine client configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, ins.deadline)
	defer cancel()

	facts, err := ins.inspectWithRetry(ctx, ref)
	if err != nil {
		return ImageFacts{}, err
	}

	ins.cache.Store(ref, facts)
	return facts, nil
}

func (ins *Inspector) inspectWithRetry(ctx context.Context, ref string) (ImageFacts, error) {
	var facts ImageFacts

	operation := func() error {
		inspect, _, err := ins.engine.ImageInspectWithRaw(ctx, ref)
		if err != nil {
			if !isImageNotFoundErr(err) {
				return domerrors.New(domerrors.CodeInspectionFailed, "dockermatch", fmt.Sprintf("inspecting image %q", ref), err)
			}
			if pullErr := ins.pull(ctx, ref); pullErr != nil {
				return backoff.Permanent(domerrors.New(domerrors.CodeImageNotFound, "dockermatch", fmt.Sprintf("image %q not found", ref), pullErr))
			}
			inspect, _, err = ins.engine.ImageInspectWithRaw(ctx, ref)
			if err != nil {
				return backoff.Permanent(domerrors.New(domerrors.CodeImageNotFound, "dockermatch", fmt.Sprintf("image %q not found after pull", ref), err))
			}
		}

		history, err := ins.engine.ImageHistory(ctx, ref)
		if err != nil {
			return domerrors.New(domerrors.CodeInspectionFailed, "dockermatch", fmt.Sprintf("fetching history for %q", ref), err)
		}

		projected, err := projectImageFacts(inspect, history)
		if err != nil {
			return domerrors.New(domerrors.CodeInspectionFailed, "dockermatch", fmt.Sprintf("projecting image facts for %q", ref), err)
		}
		facts = projected
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	err := backoff.Retry(operation, policy)
	if err != nil {
		if ctx.Err() != nil {
			return ImageFacts{}, domerrors.New(domerrors.CodeCancelled, "dockermatch", fmt.Sprintf("inspection of %q cancelled", ref), ctx.Err())
		}
		var perm *backoff.PermanentError
		if stderrors.As(err, &perm) {
			return ImageFacts{}, perm.Err
		}
		return ImageFacts{}, err
	}
	return facts, nil
}

func (ins *Inspector) pull(ctx context.Context, ref string) error {
	logger.Infof("dockermatch: pulling image %q", ref)
	rc, err := ins.engine.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(io.Discard, rc)
	return err
}

func projectImageFacts(inspect types.ImageInspect, history []image.HistoryResponseItem) (ImageFacts, error) {
	createdAt, _ := parseImageTimestamp(inspect.Created)

	cfg := ImageConfig{
		Env:          map[string]string{},
		ExposedPorts: map[string]struct{}{},
		Volumes:      map[string]struct{}{},
	}
	if inspect.Config != nil {
		for _, kv := range inspect.Config.Env {
			if k, v, ok := strings.Cut(kv, "="); ok {
				cfg.Env[k] = v
			}
		}
		cfg.Cmd = inspect.Config.Cmd
		cfg.Entrypoint = inspect.Config.Entrypoint
		cfg.WorkingDir = inspect.Config.WorkingDir
		cfg.User = inspect.Config.User
		cfg.Labels = inspect.Config.Labels
		for p := range inspect.Config.ExposedPorts {
			cfg.ExposedPorts[string(p)] = struct{}{}
		}
		for v := range inspect.Config.Volumes {
			cfg.Volumes[v] = struct{}{}
		}
	}

	var layers []digest.Digest
	for _, l := range inspect.RootFS.Layers {
		layers = append(layers, digest.Digest(l))
	}

	// ImageHistory returns entries newest-first; ImageFacts.History is
	// oldest-first: history order matches build order.
	hist := make([]HistoryEntry, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		item := history[i]
		hist = append(hist, HistoryEntry{
			CreatedBy:    cleanCreatedBy(item.CreatedBy),
			RawCreatedBy: item.CreatedBy,
			CreatedAt:    time.Unix(item.Created, 0).UTC(),
			SizeBytes:    item.Size,
			EmptyLayer:   item.Size == 0,
			CommandType:  parseHistoryCommandType(item.CreatedBy),
		})
	}

	return ImageFacts{
		ID:           inspect.ID,
		Tags:         inspect.RepoTags,
		CreatedAt:    createdAt,
		SizeBytes:    inspect.Size,
		Architecture: inspect.Architecture,
		OS:           inspect.Os,
		Config:       cfg,
		History:      hist,
		RootFSLayers: layers,
	}, nil
}

func parseImageTimestamp(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", v)
}

// cleanCreatedBy strips the synthetic prefixes BuildKit/the classic builder
// embed in layer history, the leading instruction keyword the "#(nop)"
// marker carries (so the result is directly comparable to a
// DockerInstruction.Raw body, which never includes its own keyword), and
// surrounding matched quotes.
func cleanCreatedBy(raw string) string {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "/bin/sh -c #(nop)"):
		s = strings.TrimPrefix(s, "/bin/sh -c #(nop)")
	case strings.HasPrefix(s, "/bin/sh -c"):
		s = strings.TrimPrefix(s, "/bin/sh -c")
	case strings.HasPrefix(s, "#(nop)"):
		s = strings.TrimPrefix(s, "#(nop)")
	}
	s = strings.TrimSpace(s)

	if fields := strings.Fields(s); len(fields) > 0 {
		if _, known := knownKinds[strings.ToUpper(fields[0])]; known {
			s = strings.TrimSpace(strings.TrimPrefix(s, fields[0]))
		}
	}

	return stripMatchingQuotes(s)
}

func stripMatchingQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

var nopCommandPattern = regexp.MustCompile(`#\(nop\)\s+(\w+)`)
var packageManagerHints = []string{"apt-get", "apt", "pip3", "pip", "npm", "yarn", "yum", "dnf", "apk"}

// parseHistoryCommandType classifies a raw (uncleaned) history createdBy
// string into the kind of Dockerfile instruction that likely produced it —
// the image-history symmetric counterpart to DockerInstruction.Kind. Must
// run on the raw string: the "#(nop) KEYWORD" marker this relies on is
// stripped by cleanCreatedBy.
func parseHistoryCommandType(raw string) InstructionKind {
	if m := nopCommandPattern.FindStringSubmatch(raw); m != nil {
		return toKind(strings.ToUpper(m[1]))
	}

	if strings.Contains(raw, "/bin/sh -c") || strings.Contains(raw, "/bin/bash -c") {
		return KindRun
	}

	lower := strings.ToLower(raw)
	for _, pm := range packageManagerHints {
		if strings.Contains(lower, pm) {
			return KindRun
		}
	}
	return KindOther
}

// PackageCommands surfaces every package-manager invocation found in f's RUN
// layers. It is a pure, lazily-computed view over already-cached history, so
// no separate cache layer is needed beyond the Inspector's ImageFacts cache.
func (f ImageFacts) PackageCommands() []PackageCommand {
	var out []PackageCommand
	for _, h := range f.History {
		if h.CommandType != KindRun {
			continue
		}
		for _, atomic := range splitShellCommands(h.CreatedBy) {
			if cmd, ok := ParsePackageCommand(atomic); ok {
				out = append(out, *cmd)
			}
		}
	}
	return out
}
