// Package cli holds the flags shared by every sprite subcommand.
package cli

import (
	"flag"
	"time"
)

type HelpVersionFlags struct {
	Help    bool
	Version bool
}

func AddHelpVersionFlags(fs *flag.FlagSet) *HelpVersionFlags {
	flags := &HelpVersionFlags{}
	if fs == nil {
		return flags
	}
	fs.BoolVar(&flags.Help, "help", false, "Show help")
	fs.BoolVar(&flags.Help, "h", false, "Show help")
	fs.BoolVar(&flags.Version, "version", false, "Print version and exit")
	return flags
}

// CommonFlags are accepted by every subcommand that talks to panes.
type CommonFlags struct {
	*HelpVersionFlags

	ConfigPath string
	RosterPath string
	Socket     string
	Timeout    time.Duration
	Retries    int
	NoWait     bool
	Priority   string
	Sequential bool
	LogLevel   string
	Stats      bool
	Metrics    bool

	fs *flag.FlagSet
}

func AddCommonFlags(fs *flag.FlagSet) *CommonFlags {
	flags := &CommonFlags{HelpVersionFlags: AddHelpVersionFlags(fs), fs: fs}
	fs.StringVar(&flags.ConfigPath, "config", "", "Settings file (env: SPRITE_CONFIG, default: .sprite/config.toml)")
	fs.StringVar(&flags.RosterPath, "roster", "", "Agent roster YAML (default from settings)")
	fs.StringVar(&flags.Socket, "socket", "", "tmux server socket path")
	fs.DurationVar(&flags.Timeout, "timeout", 0, "Per-attempt acknowledgement timeout, e.g. 10s")
	fs.IntVar(&flags.Retries, "retries", -1, "Retries after a timed out attempt")
	fs.BoolVar(&flags.NoWait, "no-wait", false, "Do not wait for acknowledgement")
	fs.StringVar(&flags.Priority, "priority", "normal", "Priority label: low, normal or high")
	fs.BoolVar(&flags.Sequential, "sequential", false, "Deliver to one target at a time")
	fs.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warning or error")
	fs.BoolVar(&flags.Stats, "stats", false, "Print delivery statistics when done")
	fs.BoolVar(&flags.Metrics, "metrics", false, "Print Prometheus metrics when done")
	return flags
}

// Overrides maps the flags given on the command line to settings keys, so
// unset flags leave file and default values alone. Timeout is applied by the
// caller since settings only hold whole seconds.
func (c *CommonFlags) Overrides() map[string]any {
	overrides := map[string]any{}
	if c == nil || c.fs == nil {
		return overrides
	}
	c.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "roster":
			overrides["roster.path"] = c.RosterPath
		case "socket":
			overrides["tmux.socket"] = c.Socket
		case "retries":
			overrides["delivery.max-retries"] = int64(c.Retries)
		case "no-wait":
			overrides["delivery.wait-for-confirmation"] = !c.NoWait
		case "sequential":
			overrides["broadcast.sequential"] = c.Sequential
		case "log-level":
			overrides["log.level"] = c.LogLevel
		}
	})
	return overrides
}
