package cli

import (
	"errors"
	"flag"
	"fmt"
	"regexp"
	"strings"
)

var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// EnvVar is one KEY=VALUE pair given with --env.
type EnvVar struct {
	Key   string
	Value string
}

// ParseEnvVar splits KEY=VALUE. The key must be a shell identifier; the
// value may be empty and may contain further '=' signs.
func ParseEnvVar(raw string) (EnvVar, error) {
	key, value, found := strings.Cut(raw, "=")
	if !found {
		return EnvVar{}, fmt.Errorf("invalid environment variable %q: expected KEY=VALUE", raw)
	}
	if key == "" {
		return EnvVar{}, errors.New("environment variable key cannot be empty")
	}
	if !envKeyPattern.MatchString(key) {
		return EnvVar{}, fmt.Errorf("invalid environment variable key %q", key)
	}
	return EnvVar{Key: key, Value: value}, nil
}

// EnvVars is a repeatable flag.Value; order is kept.
type EnvVars []EnvVar

func (e *EnvVars) String() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(*e))
	for _, env := range *e {
		parts = append(parts, env.Key+"="+env.Value)
	}
	return strings.Join(parts, ",")
}

func (e *EnvVars) Set(raw string) error {
	env, err := ParseEnvVar(raw)
	if err != nil {
		return err
	}
	*e = append(*e, env)
	return nil
}

// CommandFlags shape the command line typed into the pane.
type CommandFlags struct {
	WorkDir string
	Env     EnvVars
}

func AddCommandFlags(fs *flag.FlagSet) *CommandFlags {
	flags := &CommandFlags{}
	fs.StringVar(&flags.WorkDir, "work-dir", "", "Change to this directory before running the command")
	fs.Var(&flags.Env, "env", "Export KEY=VALUE before running the command (repeatable)")
	return flags
}

// Apply prefixes command with the directory change and exports, joined with
// && so the command does not run when a step fails. Values are single-quoted.
func (c *CommandFlags) Apply(command string) string {
	if c == nil {
		return command
	}
	var steps []string
	if dir := strings.TrimSpace(c.WorkDir); dir != "" {
		steps = append(steps, "cd "+shellQuote(dir))
	}
	if len(c.Env) > 0 {
		assignments := make([]string, 0, len(c.Env))
		for _, env := range c.Env {
			assignments = append(assignments, env.Key+"="+shellQuote(env.Value))
		}
		steps = append(steps, "export "+strings.Join(assignments, " "))
	}
	if len(steps) == 0 {
		return command
	}
	return strings.Join(append(steps, command), " && ")
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}
