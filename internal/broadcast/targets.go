package broadcast

import (
	"errors"
	"strings"
)

var ErrNoTargets = errors.New("no broadcast targets")

// TargetAll selects every agent known to the registry.
const TargetAll = "all"

// ParseTargets expands a target spec: "all", a single id or a comma list.
// List entries are trimmed and de-duplicated, keeping first-seen order.
func ParseTargets(spec string, listAgents func() []string) ([]string, error) {
	trimmed := strings.TrimSpace(spec)
	if strings.EqualFold(trimmed, TargetAll) {
		var agents []string
		if listAgents != nil {
			agents = listAgents()
		}
		if len(agents) == 0 {
			return nil, ErrNoTargets
		}
		return agents, nil
	}

	seen := make(map[string]struct{})
	var targets []string
	for _, part := range strings.Split(trimmed, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	return targets, nil
}
