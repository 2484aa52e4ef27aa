package agent

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sprite/internal/pane"
)

func TestParseRoster(t *testing.T) {
	payload := `
session: team
agents:
  - id: "1"
    name: frontend
    pane: "0.0"
    status: active
  - id: "2"
    name: backend
    pane: "other:1.1"
  - id: "3"
    name: parked
    pane: "0.2"
    status: inactive
`
	agents, err := ParseRoster([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 active agents, got %d", len(agents))
	}
	if agents[0].Pane != (pane.Address{Session: "team", Pane: "0.0"}) {
		t.Fatalf("unexpected pane %+v", agents[0].Pane)
	}
	if agents[1].Pane != (pane.Address{Session: "other", Pane: "1.1"}) {
		t.Fatalf("unexpected pane %+v", agents[1].Pane)
	}
	if agents[0].Label() != "frontend" {
		t.Fatalf("unexpected label %q", agents[0].Label())
	}
}

func TestParseRosterDefaultSession(t *testing.T) {
	agents, err := ParseRoster([]byte("agents:\n  - id: a\n    pane: \"1.0\"\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if agents[0].Pane.Session != DefaultSession {
		t.Fatalf("expected default session, got %q", agents[0].Pane.Session)
	}
	if agents[0].Label() != "a" {
		t.Fatalf("expected label fallback to id, got %q", agents[0].Label())
	}
}

func TestParseRosterValidation(t *testing.T) {
	payload := `
agents:
  - id: "1"
    pane: "0.0"
  - id: "1"
    pane: "0.1"
  - id: ""
    pane: "0.2"
  - id: "4"
`
	_, err := ParseRoster([]byte(payload))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, fragment := range []string{"duplicate id", "id is required", `agent "4"`} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %v", fragment, err)
		}
	}
}

func TestLoadRosterMissingFile(t *testing.T) {
	if _, err := LoadRoster(filepath.Join(t.TempDir(), "agents.yaml")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoadRosterFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	if err := os.WriteFile(path, []byte("agents:\n  - id: \"1\"\n    pane: \"s:0.0\"\n"), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	agents, err := LoadRoster(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(agents) != 1 || agents[0].Pane.String() != "s:0.0" {
		t.Fatalf("unexpected agents %+v", agents)
	}
}
