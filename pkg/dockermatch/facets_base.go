package dockermatch

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"
)

// normalizeImageRef applies a deliberately simple normalization: drop a leading
// registry host (first path segment containing '.', ':', or "localhost"),
// append ":latest" when no tag is present, lowercase the result.
//
// This intentionally diverges from reference.ParseNormalizedNamed's
// Docker-standard behaviour (which expands official images to
// "library/<name>" and defaults the registry to "docker.io") — this
// rule is simpler and is what the base-image facet's exact-match tier uses.
// distribution/reference is used instead for the alias tier below, where its
// official-image expansion is genuinely useful.
func normalizeImageRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if parts := strings.SplitN(ref, "/", 2); len(parts) == 2 {
		if strings.ContainsAny(parts[0], ".:") || parts[0] == "localhost" {
			ref = parts[1]
		}
	}
	if !strings.Contains(ref, ":") {
		ref += ":latest"
	}
	return strings.ToLower(ref)
}

func repoNameOf(normalized string) string {
	if idx := strings.LastIndex(normalized, ":"); idx > strings.LastIndex(normalized, "/") {
		return normalized[:idx]
	}
	return normalized
}

// canonicalRepoName resolves ref to Docker's familiar name (e.g.
// "docker.io/library/python" and "library/python" both become "python"),
// used only to widen alias detection beyond the configured known-aliases
// table.
func canonicalRepoName(ref string) string {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return ""
	}
	return reference.FamiliarName(named)
}

func areImageAliases(a, b string, table map[string]string) bool {
	if table != nil {
		if v, ok := table[a]; ok && v == b {
			return true
		}
		if v, ok := table[b]; ok && v == a {
			return true
		}
	}
	ca, cb := canonicalRepoName(repoNameOf(a)), canonicalRepoName(repoNameOf(b))
	return ca != "" && cb != "" && ca == cb
}

func scoreBaseImage(dfBase, imgBase string, cfg *Config) FacetScore {
	if dfBase == "" && imgBase == "" {
		return FacetScore{1.0, "no base image to compare"}
	}
	if dfBase == "" || imgBase == "" {
		return FacetScore{0.0, "base image present on only one side"}
	}

	df := normalizeImageRef(dfBase)
	img := normalizeImageRef(imgBase)

	if df == img {
		return FacetScore{1.0, fmt.Sprintf("base image %q matches exactly", df)}
	}
	if repoNameOf(df) == repoNameOf(img) {
		return FacetScore{0.8, fmt.Sprintf("same repository %q, different tag", repoNameOf(df))}
	}
	if areImageAliases(repoNameOf(df), repoNameOf(img), cfg.KnownAliases) {
		return FacetScore{0.9, fmt.Sprintf("%q and %q are known aliases", df, img)}
	}
	return FacetScore{0.0, fmt.Sprintf("base image %q does not match %q", df, img)}
}

var platformAliasGroups = [][]string{
	{"amd64", "x86_64"},
	{"arm64", "aarch64"},
}

func normalizePlatform(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	for _, group := range platformAliasGroups {
		for _, alias := range group {
			if p == alias {
				return group[0]
			}
		}
	}
	return p
}

// extractDockerfilePlatform reads an architecture hint off the first FROM
// instruction only — the same instruction the base-image facet treats as
// authoritative.
func extractDockerfilePlatform(instructions []DockerInstruction) string {
	for _, inst := range instructions {
		if inst.Kind != KindFrom {
			continue
		}
		for _, a := range inst.Args {
			if strings.HasPrefix(a, "--platform=") {
				plat := strings.TrimPrefix(a, "--platform=")
				parts := strings.Split(plat, "/")
				return parts[len(parts)-1]
			}
		}
		lower := strings.ToLower(inst.Raw)
		for _, group := range platformAliasGroups {
			for _, alias := range group {
				if strings.Contains(lower, alias) {
					return alias
				}
			}
		}
		return ""
	}
	return ""
}

func scorePlatform(instructions []DockerInstruction, imageArch string) FacetScore {
	dfArch := extractDockerfilePlatform(instructions)
	if dfArch == "" {
		dfArch = imageArch
	}

	a, b := normalizePlatform(dfArch), normalizePlatform(imageArch)
	if a == "" && b == "" {
		return FacetScore{1.0, "no platform information on either side"}
	}
	if a == b {
		return FacetScore{1.0, fmt.Sprintf("platform %q matches", b)}
	}
	return FacetScore{0.0, fmt.Sprintf("platform %q does not match image architecture %q", a, b)}
}
