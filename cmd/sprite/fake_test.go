package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"sprite/internal/config"
	"sprite/internal/pane"
)

var sentinelPattern = regexp.MustCompile(`printf '%s-%s-%s\\n' SPRITE-ACK (\S+) (\d+)$`)

// shellTransport acks every command sent to a live session unless the pane
// is marked silent.
type shellTransport struct {
	mu       sync.Mutex
	sessions map[string]bool
	silent   map[string]bool
	buffers  map[string]*strings.Builder
	sent     []string
}

func newShellTransport(sessions ...string) *shellTransport {
	live := make(map[string]bool, len(sessions))
	for _, session := range sessions {
		live[session] = true
	}
	return &shellTransport{
		sessions: live,
		silent:   make(map[string]bool),
		buffers:  make(map[string]*strings.Builder),
	}
}

func (s *shellTransport) factory() transportFactory {
	return func(config.Settings) pane.Transport { return s }
}

// commandCount counts typed lines other than acknowledgement printfs.
func (s *shellTransport) commandCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, line := range s.sent {
		if !sentinelPattern.MatchString(strings.TrimRight(line, "\n")) {
			count++
		}
	}
	return count
}

func (s *shellTransport) sentLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func (s *shellTransport) SendKeys(_ context.Context, session, paneID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sessions[session] {
		return fmt.Errorf("%w: no session %s", pane.ErrTransport, session)
	}
	target := session + ":" + paneID
	s.sent = append(s.sent, target+" "+text)
	buffer := s.buffers[target]
	if buffer == nil {
		buffer = &strings.Builder{}
		s.buffers[target] = buffer
	}
	line := strings.TrimRight(text, "\n")
	buffer.WriteString("$ " + line + "\n")
	if s.silent[target] {
		return nil
	}
	if match := sentinelPattern.FindStringSubmatch(line); match != nil {
		buffer.WriteString("SPRITE-ACK-" + match[1] + "-" + match[2] + "\n")
	}
	return nil
}

func (s *shellTransport) CapturePane(_ context.Context, session, paneID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buffer := s.buffers[session+":"+paneID]
	if buffer == nil {
		return "", nil
	}
	return buffer.String(), nil
}

func (s *shellTransport) ListSessions(context.Context) ([]pane.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sessions []pane.SessionInfo
	for name, alive := range s.sessions {
		if alive {
			sessions = append(sessions, pane.SessionInfo{Name: name, WindowCount: 1})
		}
	}
	return sessions, nil
}

func (s *shellTransport) ListPanes(_ context.Context, session string) ([]pane.PaneInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sessions[session] {
		return nil, nil
	}
	return []pane.PaneInfo{{ID: "%0"}, {ID: "%1"}}, nil
}

const testRoster = `session: crew
agents:
  - id: "1"
    name: builder
    pane: "%0"
  - id: "2"
    name: reviewer
    pane: "%1"
  - id: "3"
    name: ghost
    pane: "graveyard:%0"
`

const testConfig = `[delivery]
default-timeout-secs = 1
max-retries = 0
retry-delay-secs = 0
poll-interval-ms = 5

[broadcast]
sequential-pace-ms = 0

[log]
level = "error"
`

// writeFixtures returns the common flags pointing at a temp roster and config.
func writeFixtures(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	rosterPath := filepath.Join(dir, "agents.yaml")
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(rosterPath, []byte(testRoster), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	if err := os.WriteFile(configPath, []byte(testConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return []string{"--config", configPath, "--roster", rosterPath}
}

func appendConfig(t *testing.T, path, extra string) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	defer file.Close()
	if _, err := file.WriteString(extra); err != nil {
		t.Fatalf("append config: %v", err)
	}
}
