package executor

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Policy violations returned by CommandPolicy.Check.
var (
	ErrShellSyntax   = errors.New("shell syntax is not allowed")
	ErrPathTraversal = errors.New("path traversal is not allowed")
	ErrDenied        = errors.New("command is denied")
	ErrNotAllowed    = errors.New("command is not in the allowed list")
)

// shellOperators chain, redirect or substitute commands.
var shellOperators = []string{"&&", "||", "|", ";", "$(", "${", "`", ">", "<", "&", "\n"}

// CommandPolicy restricts the commands the Command executor runs.
//
// Patterns are "*", an exact command line, a bare command name matching any
// invocation of it, or "prefix *" matching the prefix followed by anything.
type CommandPolicy struct {
	Deny    []string
	Allowed []string // empty allows every command not denied

	// AllowShellSyntax lets operators, redirects and substitutions through.
	// Lists cannot be enforced on such commands, so config validation rejects
	// combining it with either list.
	AllowShellSyntax bool
}

// Check returns nil when command may run.
func (p CommandPolicy) Check(command string) error {
	command = strings.TrimSpace(command)
	if p.AllowShellSyntax {
		return nil
	}

	for _, op := range shellOperators {
		if strings.Contains(command, op) {
			return fmt.Errorf("%w: %q", ErrShellSyntax, op)
		}
	}

	for _, arg := range splitArgs(command) {
		if hasTraversal(arg) {
			return fmt.Errorf("%w: %q", ErrPathTraversal, arg)
		}
	}

	for _, pattern := range p.Deny {
		if MatchPattern(pattern, command) {
			return fmt.Errorf("%w by %q", ErrDenied, pattern)
		}
	}

	if len(p.Allowed) == 0 {
		return nil
	}
	if slices.ContainsFunc(p.Allowed, func(pattern string) bool {
		return MatchPattern(pattern, command)
	}) {
		return nil
	}
	return ErrNotAllowed
}

// MatchPattern reports whether command matches pattern.
func MatchPattern(pattern, command string) bool {
	pattern = strings.TrimSpace(pattern)
	command = strings.TrimSpace(command)

	switch {
	case pattern == "":
		return false
	case pattern == "*":
		return true
	case pattern == command:
		return true
	}

	if prefix, ok := strings.CutSuffix(pattern, " *"); ok {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" || unsafePrefix(prefix) {
			return false
		}
		return command == prefix || strings.HasPrefix(command, prefix+" ")
	}

	// A bare name matches any invocation of that command.
	if !strings.ContainsAny(pattern, " \t") {
		args := splitArgs(command)
		return len(args) > 0 && args[0] == pattern
	}
	return false
}

// ValidatePattern rejects patterns MatchPattern would never match.
func ValidatePattern(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return errors.New("empty command pattern")
	}
	if prefix, ok := strings.CutSuffix(pattern, " *"); ok && unsafePrefix(strings.TrimSpace(prefix)) {
		return fmt.Errorf("command pattern %q has shell syntax in its prefix", pattern)
	}
	return nil
}

func unsafePrefix(prefix string) bool {
	return slices.ContainsFunc(shellOperators, func(op string) bool {
		return strings.Contains(prefix, op)
	})
}

func hasTraversal(arg string) bool {
	return slices.Contains(strings.FieldsFunc(arg, func(r rune) bool {
		return r == '/' || r == '\\'
	}), "..")
}

// splitArgs splits a command line on whitespace, honouring single and
// double quotes.
func splitArgs(command string) []string {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inArg   bool
	)
	for _, r := range command {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}
	if inArg {
		args = append(args, current.String())
	}
	return args
}

// resolveDir returns the working directory for a payload-supplied dir. With a
// base dir the payload dir must stay inside it; without one it must not
// climb with "..".
func resolveDir(base, dir string) (string, error) {
	if base == "" {
		if hasTraversal(dir) {
			return "", fmt.Errorf("%w: dir %q", ErrPathTraversal, dir)
		}
		return dir, nil
	}
	if !filepath.IsLocal(dir) {
		return "", fmt.Errorf("%w: dir %q escapes %q", ErrPathTraversal, dir, base)
	}
	return filepath.Join(base, dir), nil
}
