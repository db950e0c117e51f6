package dockermatch

import (
	"regexp"
	"strings"

	"github.com/google/shlex"

	domerrors "github.com/shaulab/dockertracer/pkg/domain/errors"
)

var knownKinds = map[string]InstructionKind{
	"FROM":       KindFrom,
	"RUN":        KindRun,
	"CMD":        KindCmd,
	"ENTRYPOINT": KindEntrypoint,
	"COPY":       KindCopy,
	"ADD":        KindAdd,
	"ENV":        KindEnv,
	"ARG":        KindArg,
	"LABEL":      KindLabel,
	"EXPOSE":     KindExpose,
	"VOLUME":     KindVolume,
	"WORKDIR":    KindWorkdir,
	"USER":       KindUser,
	"STOPSIGNAL": KindStopsignal,
	"SHELL":      KindShell,
}

func toKind(keyword string) InstructionKind {
	if k, ok := knownKinds[keyword]; ok {
		return k
	}
	return KindOther
}

var firstWhitespaceRun = regexp.MustCompile(`\s+`)

// Parse tokenizes Dockerfile source into an ordered instruction stream (C3).
func Parse(content string) ([]DockerInstruction, error) {
	lines := strings.Split(content, "\n")

	var instructions []DockerInstruction
	var pending strings.Builder
	pendingLine := 0

	for i, line := range lines {
		lineNo := i + 1
		trimmedRight := strings.TrimRight(line, "\r")
		stripped := strings.TrimSpace(trimmedRight)
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			continue
		}

		if pending.Len() == 0 {
			pendingLine = lineNo
		}
		if strings.HasSuffix(trimmedRight, "\\") {
			pending.WriteString(strings.TrimSuffix(trimmedRight, "\\"))
			pending.WriteString(" ")
			continue
		}

		pending.WriteString(trimmedRight)
		full := pending.String()
		pending.Reset()

		if inst, ok := parseSingleInstruction(full, pendingLine); ok {
			instructions = append(instructions, inst)
		}
	}

	if len(instructions) == 0 {
		return nil, domerrors.New(domerrors.CodeInvalidDockerfile, "dockermatch", "no valid instructions found in Dockerfile", nil)
	}

	hasFrom := false
	for _, inst := range instructions {
		if inst.Kind == KindFrom {
			hasFrom = true
			break
		}
	}
	if !hasFrom {
		return nil, domerrors.New(domerrors.CodeNoBaseImage, "dockermatch", "no FROM instruction found in Dockerfile", nil)
	}

	return instructions, nil
}

func parseSingleInstruction(content string, lineNumber int) (DockerInstruction, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return DockerInstruction{}, false
	}

	var keyword, body string
	if loc := firstWhitespaceRun.FindStringIndex(content); loc != nil {
		keyword, body = content[:loc[0]], content[loc[1]:]
	} else {
		keyword = content
	}

	kind := toKind(strings.ToUpper(keyword))

	var args []string
	switch kind {
	case KindRun, KindLabel, KindEnv:
		args = []string{body}
	case KindCopy:
		trimmed := strings.TrimSpace(body)
		if strings.HasPrefix(trimmed, "--from=") || strings.HasPrefix(trimmed, "--chown=") {
			args = strings.Fields(body)
		} else {
			args = stripQuotesTokens(strings.Fields(body))
		}
	default:
		args = stripQuotesTokens(strings.Fields(body))
	}

	return DockerInstruction{Kind: kind, Raw: body, Args: args, LineNumber: lineNumber}, true
}

func stripQuotesTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = strings.Trim(t, `"'`)
	}
	return out
}

func firstFromImage(inst DockerInstruction) string {
	for _, a := range inst.Args {
		if strings.HasPrefix(a, "--") {
			continue
		}
		if strings.EqualFold(a, "as") {
			break
		}
		return a
	}
	return ""
}

func fromStageName(inst DockerInstruction) (string, bool) {
	for i, a := range inst.Args {
		if strings.EqualFold(a, "as") && i+1 < len(inst.Args) {
			return inst.Args[i+1], true
		}
	}
	return "", false
}

var packageInstallPattern = regexp.MustCompile(
	`apt-get\s+install|apk\s+add|yum\s+install|dnf\s+install|pip\d?\s+install|npm\s+install|gem\s+install`,
)

func isPackageInstall(raw string) bool {
	return packageInstallPattern.MatchString(strings.ToLower(raw))
}

// parseLabels folds a LABEL body into metadata, supporting both the
// "k=v [k2=v2 ...]" and the legacy "k v" forms.
func parseLabels(body string, metadata map[string]string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}

	if strings.Contains(body, "=") {
		tokens, err := shlex.Split(body)
		if err != nil {
			tokens = strings.Fields(body)
		}
		for _, tok := range tokens {
			idx := strings.Index(tok, "=")
			if idx < 0 {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(tok[:idx]))
			val := strings.Trim(strings.TrimSpace(tok[idx+1:]), `"'`)
			metadata[key] = val
		}
		return
	}

	fields := strings.Fields(body)
	if len(fields) >= 2 {
		key := strings.ToLower(fields[0])
		val := strings.Trim(strings.Join(fields[1:], " "), `"'`)
		metadata[key] = val
	}
}

// AnalyzeDockerfile derives a static analysis view over a parsed instruction
// stream: base image, stage labels, package/copy instructions, and label
// metadata.
func AnalyzeDockerfile(instructions []DockerInstruction) DockerfileAnalysis {
	analysis := DockerfileAnalysis{
		AllInstructions: instructions,
		Metadata:        map[string]string{},
	}

	for _, inst := range instructions {
		switch inst.Kind {
		case KindFrom:
			if analysis.BaseImage == "" {
				analysis.BaseImage = firstFromImage(inst)
			}
			if stage, ok := fromStageName(inst); ok {
				analysis.Stages = append(analysis.Stages, stage)
			}
		case KindRun:
			if isPackageInstall(inst.Raw) {
				analysis.PackageCommands = append(analysis.PackageCommands, inst)
			}
		case KindCopy, KindAdd:
			analysis.CopyCommands = append(analysis.CopyCommands, inst)
		case KindLabel:
			parseLabels(inst.Raw, analysis.Metadata)
		}
	}

	return analysis
}
