package dockermatch

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/shlex"
)

var (
	shellPrefixPattern = regexp.MustCompile(`^/bin/sh\s+-c\s+`)
	setFlagsPattern    = regexp.MustCompile(`^set\s+-[eux]+;\s*`)
)

type managerPattern struct {
	manager  PackageManager
	patterns []*regexp.Regexp
}

// packagePatterns is evaluated in this order on every atomic command (spec
// §4.2 step 2: "deterministic order: APT, PIP, YUM, DNF, APK, NPM, YARN").
var packagePatterns = []managerPattern{
	{PackageManagerAptGet, []*regexp.Regexp{
		regexp.MustCompile(`apt-get\s+install\s+(?:-\S*\s+)*([^;|&]+)`),
		regexp.MustCompile(`\bapt\s+install\s+(?:-\S*\s+)*([^;|&]+)`),
	}},
	{PackageManagerPip, []*regexp.Regexp{
		regexp.MustCompile(`pip[23]?\s+install\s+(?:-\S*\s+)*([^;|&]+)`),
		regexp.MustCompile(`python[23]?\s+-m\s+pip\s+install\s+(?:-\S*\s+)*([^;|&]+)`),
	}},
	{PackageManagerYum, []*regexp.Regexp{
		regexp.MustCompile(`yum\s+install\s+(?:-\S*\s+)*([^;|&]+)`),
	}},
	{PackageManagerDnf, []*regexp.Regexp{
		regexp.MustCompile(`dnf\s+install\s+(?:-\S*\s+)*([^;|&]+)`),
	}},
	{PackageManagerApk, []*regexp.Regexp{
		regexp.MustCompile(`apk\s+add\s+(?:-\S*\s+)*([^;|&]+)`),
	}},
	{PackageManagerNpm, []*regexp.Regexp{
		regexp.MustCompile(`npm\s+install\s+(?:-\S*\s+)*([^;|&]+)`),
	}},
	{PackageManagerYarn, []*regexp.Regexp{
		regexp.MustCompile(`yarn\s+add\s+(?:-\S*\s+)*([^;|&]+)`),
	}},
}

var subVerbs = []string{"install", "update", "remove", "purge"}

// NormalizeVerb canonicalizes a package-manager verb token. Exported since
// verb normalization is useful independently of full package-command parsing.
func NormalizeVerb(manager PackageManager, verb string) string {
	v := strings.ToLower(strings.TrimSpace(verb))
	switch v {
	case "install", "i":
		return "install"
	case "update", "up":
		return "update"
	case "upgrade":
		return "upgrade"
	case "add":
		if manager == PackageManagerApk || manager == PackageManagerYarn {
			return "add"
		}
		return "install"
	default:
		return v
	}
}

// splitShellCommands strips the /bin/sh -c wrapper and `set -eux;` prologue,
// then splits on &&, ||, ;, and | while respecting quotes, yielding atomic
// commands. An operator splits only when it stands as its own
// whitespace-separated token; one attached to a word (as in "update;") stays
// part of that word and does not split.
func splitShellCommands(command string) []string {
	command = shellPrefixPattern.ReplaceAllString(command, "")
	command = setFlagsPattern.ReplaceAllString(command, "")

	tokens, err := shlex.Split(command)
	if err != nil {
		tokens = strings.Fields(command)
	}

	var commands []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			commands = append(commands, strings.Join(current, " "))
			current = nil
		}
	}
	for _, tok := range tokens {
		switch tok {
		case "&&", "||", ";", "|":
			flush()
		default:
			current = append(current, tok)
		}
	}
	flush()
	return commands
}

// extractPackagePatterns matches an atomic command against packagePatterns
// and returns the manager, a coarse verb guess, and the cleaned-up package
// tokens.
func extractPackagePatterns(command string) (manager PackageManager, verb string, packages []string, ok bool) {
	for _, mp := range packagePatterns {
		for _, pat := range mp.patterns {
			m := pat.FindStringSubmatch(command)
			if m == nil {
				continue
			}
			region := strings.TrimSpace(m[1])
			rawTokens, err := shlex.Split(region)
			if err != nil {
				rawTokens = strings.Fields(region)
			}

			var pkgs []string
			for _, tok := range rawTokens {
				if strings.HasPrefix(tok, "-") {
					continue
				}
				lower := strings.ToLower(tok)
				isSubVerb := false
				for _, sv := range subVerbs {
					if strings.Contains(lower, sv) {
						isSubVerb = true
						break
					}
				}
				if isSubVerb {
					continue
				}
				pkgs = append(pkgs, tok)
			}
			if len(pkgs) == 0 {
				continue
			}

			verbGuess := "install"
			if strings.Contains(command, "add") {
				verbGuess = "add"
			}
			return mp.manager, NormalizeVerb(mp.manager, verbGuess), pkgs, true
		}
	}
	return "", "", nil, false
}

func cleanVersionString(v string) string {
	for i, r := range v {
		if unicode.IsDigit(r) {
			return v[i:]
		}
	}
	return v
}

var (
	npmVersionPattern = regexp.MustCompile(`^([^@]+)@(.+)$`)
	pipVersionPattern = regexp.MustCompile(`^([^=<>!~]+)(==|>=|<=|!=|~=)(\d.+)$`)
	aptVersionPattern = regexp.MustCompile(`^([^=]+)(=.+)$`)
	dnfVersionPattern = regexp.MustCompile(`^([^-]+)-(\d.+)$`)
)

// parseVersionConstraint parses a single package specification token using
// manager-specific grammars, falling back to a generic chain when the
// manager-specific grammar doesn't match.
func parseVersionConstraint(pkg string, manager PackageManager) (name, version string) {
	switch manager {
	case PackageManagerNpm, PackageManagerYarn:
		if m := npmVersionPattern.FindStringSubmatch(pkg); m != nil {
			return m[1], m[2]
		}
	case PackageManagerPip, PackageManagerPip3:
		if m := pipVersionPattern.FindStringSubmatch(pkg); m != nil {
			if m[2] == "==" {
				return m[1], m[3]
			}
			return m[1], m[2] + m[3]
		}
	case PackageManagerAPT, PackageManagerAptGet, PackageManagerApk:
		if m := aptVersionPattern.FindStringSubmatch(pkg); m != nil {
			return m[1], cleanVersionString(m[2])
		}
	case PackageManagerDnf, PackageManagerYum:
		if m := dnfVersionPattern.FindStringSubmatch(pkg); m != nil {
			return m[1], m[2]
		}
	}

	if m := pipVersionPattern.FindStringSubmatch(pkg); m != nil {
		if m[2] == "==" {
			return m[1], m[3]
		}
		return m[1], m[2] + m[3]
	}
	if m := aptVersionPattern.FindStringSubmatch(pkg); m != nil {
		return m[1], cleanVersionString(m[2])
	}
	if m := dnfVersionPattern.FindStringSubmatch(pkg); m != nil {
		return m[1], m[2]
	}
	return pkg, ""
}

// ParsePackageCommand identifies the first package-manager invocation inside
// a shell command string and parses its package specifications.
func ParsePackageCommand(shellCmd string) (*PackageCommand, bool) {
	for _, atomic := range splitShellCommands(shellCmd) {
		manager, verb, packages, ok := extractPackagePatterns(atomic)
		if !ok {
			continue
		}

		constraints := make(map[string]string)
		names := make([]string, len(packages))
		for i, pkg := range packages {
			name, version := parseVersionConstraint(pkg, manager)
			names[i] = name
			if version != "" {
				constraints[name] = version
			}
		}

		return &PackageCommand{
			Manager:            manager,
			Verb:               verb,
			Packages:           names,
			VersionConstraints: constraints,
		}, true
	}
	return nil, false
}

// Serialize reconstructs a shell command string equivalent to pc, used to
// verify the round-trip property in §8 (parsePackageCommand ∘ serialize ∘
// parsePackageCommand is idempotent for the supported manager subset).
func Serialize(pc *PackageCommand) string {
	if pc == nil {
		return ""
	}

	verb := pc.Verb
	if pc.Manager == PackageManagerApk && verb == "install" {
		verb = "add"
	}

	var binary string
	switch pc.Manager {
	case PackageManagerAptGet:
		binary = "apt-get"
	default:
		binary = string(pc.Manager)
	}

	specs := make([]string, len(pc.Packages))
	for i, pkg := range pc.Packages {
		version, ok := pc.VersionConstraints[pkg]
		if !ok {
			specs[i] = pkg
			continue
		}
		switch pc.Manager {
		case PackageManagerNpm, PackageManagerYarn:
			specs[i] = pkg + "@" + version
		case PackageManagerPip, PackageManagerPip3:
			if strings.ContainsAny(version, "<>=!~") {
				specs[i] = pkg + version
			} else {
				specs[i] = pkg + "==" + version
			}
		case PackageManagerDnf, PackageManagerYum:
			specs[i] = pkg + "-" + version
		default:
			specs[i] = pkg + "=" + version
		}
	}

	return binary + " " + verb + " " + strings.Join(specs, " ")
}
