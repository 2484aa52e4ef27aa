package agent

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"sprite/internal/pane"
)

const DefaultSession = "sprite-main"

type rosterFile struct {
	Session string        `yaml:"session"`
	Agents  []rosterEntry `yaml:"agents"`
}

type rosterEntry struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Pane   string `yaml:"pane"`
	Status string `yaml:"status"`
}

// LoadRoster reads a YAML roster. Agents whose status is "inactive" are
// skipped; bare pane ids use the file's session, or DefaultSession.
func LoadRoster(path string) ([]Agent, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	agents, err := ParseRoster(payload)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}
	return agents, nil
}

func ParseRoster(payload []byte) ([]Agent, error) {
	var file rosterFile
	if err := yaml.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	session := strings.TrimSpace(file.Session)
	if session == "" {
		session = DefaultSession
	}

	seen := make(map[string]struct{}, len(file.Agents))
	agents := make([]Agent, 0, len(file.Agents))
	var problems []error
	for idx, entry := range file.Agents {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			problems = append(problems, fmt.Errorf("agent #%d: id is required", idx+1))
			continue
		}
		if _, dup := seen[id]; dup {
			problems = append(problems, fmt.Errorf("agent %q: duplicate id", id))
			continue
		}
		seen[id] = struct{}{}
		if strings.EqualFold(strings.TrimSpace(entry.Status), "inactive") {
			continue
		}
		address, err := pane.ParseAddress(entry.Pane, session)
		if err != nil {
			problems = append(problems, fmt.Errorf("agent %q: %w", id, err))
			continue
		}
		agents = append(agents, Agent{
			ID:   id,
			Name: strings.TrimSpace(entry.Name),
			Pane: address,
		})
	}
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return agents, nil
}
