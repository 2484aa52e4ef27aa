// Package version exposes build metadata injected with -ldflags.
package version

import "strings"

var (
	Version   = "dev"
	GitCommit = ""
	Built     = ""
)

type Info struct {
	Version   string
	GitCommit string
	Built     string
}

func Get() Info {
	return Info{
		Version:   strings.TrimSpace(Version),
		GitCommit: strings.TrimSpace(GitCommit),
		Built:     strings.TrimSpace(Built),
	}
}

// String renders "sprite <version> (<commit>, built <time>)", omitting
// whatever was not stamped at build time.
func (i Info) String() string {
	version := i.Version
	if version == "" {
		version = "dev"
	}
	details := make([]string, 0, 2)
	if i.GitCommit != "" {
		commit := i.GitCommit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		details = append(details, commit)
	}
	if i.Built != "" {
		details = append(details, "built "+i.Built)
	}
	if len(details) == 0 {
		return "sprite " + version
	}
	return "sprite " + version + " (" + strings.Join(details, ", ") + ")"
}
