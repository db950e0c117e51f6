package dockermatch

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	"github.com/shaulab/dockertracer/pkg/logger"
)

var shellExecutables = map[string]bool{"sh": true, "bash": true}

// Normalize canonicalizes a Dockerfile command value or an image-config
// command value into a NormalizedCommand. value must be nil, a string, a
// []string, or a []any of strings (the shape json.Unmarshal produces for a
// JSON array) — the three input shapes this contract accepts.
func Normalize(value any) NormalizedCommand {
	switch v := value.(type) {
	case nil:
		return NormalizedCommand{}
	case NormalizedCommand:
		return v
	case []string:
		return normalizeList(v)
	case []any:
		return normalizeList(toStringSlice(v))
	case string:
		return normalizeString(v)
	default:
		logger.Warnf("dockermatch: Normalize received unsupported type %T, treating as empty", value)
		return NormalizedCommand{}
	}
}

func toStringSlice(items []any) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = fmt.Sprint(item)
	}
	return out
}

func normalizeList(items []string) NormalizedCommand {
	if len(items) == 0 {
		return NormalizedCommand{}
	}
	if len(items) == 1 {
		if parsed, ok := tryParseLiteral(items[0]); ok {
			return Normalize(parsed)
		}
	}

	exec := strings.TrimSpace(items[0])
	args := make([]string, len(items)-1)
	for i, a := range items[1:] {
		args[i] = strings.TrimSpace(a)
	}
	return withShellCommand(NormalizedCommand{Executable: exec, Args: args, ShellForm: false})
}

func normalizeString(s string) NormalizedCommand {
	s = strings.TrimSpace(s)
	if s == "" {
		return NormalizedCommand{}
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		if parsed, ok := tryParseLiteral(s); ok {
			return Normalize(parsed)
		}
	}

	parts, err := shlex.Split(s)
	if err != nil || len(parts) == 0 {
		parts = strings.Fields(s)
	}
	if len(parts) == 0 {
		return NormalizedCommand{}
	}

	cmd := NormalizedCommand{Executable: parts[0], Args: parts[1:], ShellForm: true}
	return withShellCommand(cmd)
}

func withShellCommand(cmd NormalizedCommand) NormalizedCommand {
	if shellCmd, ok := extractShellCommand(cmd.Executable, cmd.Args); ok {
		cmd.Args = []string{"-c", shellCmd}
		cmd.ShellCommand = shellCmd
	}
	return cmd
}

func extractShellCommand(executable string, args []string) (string, bool) {
	if len(args) < 2 {
		return "", false
	}
	if !shellExecutables[filepath.Base(executable)] {
		return "", false
	}
	if args[0] != "-c" {
		return "", false
	}
	joined := strings.Join(args[1:], " ")
	if joined == "" {
		return "", false
	}
	return joined, true
}

// tryParseLiteral attempts to interpret s as a JSON array or string literal,
// falling back to a single-quote-to-double-quote rewrite since Dockerfile
// exec-form arrays are sometimes written with Python-style single quotes,
// which aren't valid JSON.
func tryParseLiteral(s string) (any, bool) {
	if v, ok := parseLiteralJSON(s); ok {
		return v, true
	}
	alt := strings.ReplaceAll(s, "'", `"`)
	return parseLiteralJSON(alt)
}

func parseLiteralJSON(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			str, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}

// Equal compares two normalized commands. With ignorePath true (the common
// case), only the executable's basename is compared.
func Equal(a, b NormalizedCommand, ignorePath bool) bool {
	if a.Executable == "" && b.Executable == "" {
		return true
	}

	execA, execB := a.Executable, b.Executable
	if ignorePath {
		execA, execB = filepath.Base(execA), filepath.Base(execB)
	}
	if strings.TrimSpace(execA) != strings.TrimSpace(execB) {
		return false
	}

	if a.ShellCommand != "" && b.ShellCommand != "" {
		return strings.TrimSpace(a.ShellCommand) == strings.TrimSpace(b.ShellCommand)
	}
	if a.ShellCommand != "" || b.ShellCommand != "" {
		return false
	}

	argsA, argsB := normalizeArgsForCompare(a.Args), normalizeArgsForCompare(b.Args)
	if len(argsA) != len(argsB) {
		return false
	}
	for i := range argsA {
		if argsA[i] != argsB[i] {
			return false
		}
	}
	return true
}

func normalizeArgsForCompare(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if strings.Contains(a, "/") {
			a = filepath.Base(a)
		}
		out = append(out, a)
	}
	return out
}
