package agent

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"sprite/internal/pane"
)

func testAgents() []Agent {
	return []Agent{
		{ID: "2", Name: "backend", Pane: pane.Address{Session: "sprite-main", Pane: "0.1"}},
		{ID: "1", Name: "frontend", Pane: pane.Address{Session: "sprite-main", Pane: "0.0"}},
		{ID: "9", Pane: pane.Address{Session: "other", Pane: "0.0"}},
	}
}

func TestRegistryResolve(t *testing.T) {
	transport := &fakeTransport{sessions: []pane.SessionInfo{{Name: "sprite-main", WindowCount: 1}}}
	registry := NewRegistry(transport, testAgents())

	address, err := registry.Resolve(context.Background(), "1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if address != (pane.Address{Session: "sprite-main", Pane: "0.0"}) {
		t.Fatalf("unexpected address %+v", address)
	}
}

func TestRegistryResolveUnknownAgent(t *testing.T) {
	transport := &fakeTransport{sessions: []pane.SessionInfo{{Name: "sprite-main"}}}
	registry := NewRegistry(transport, testAgents())

	_, err := registry.Resolve(context.Background(), "42")
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
	if transport.lists != 0 {
		t.Fatalf("expected no session lookup for unknown agent")
	}
}

func TestRegistryResolveDeadSession(t *testing.T) {
	transport := &fakeTransport{sessions: []pane.SessionInfo{{Name: "sprite-main"}}}
	registry := NewRegistry(transport, testAgents())

	_, err := registry.Resolve(context.Background(), "9")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRegistryResolveIsNotCached(t *testing.T) {
	transport := &fakeTransport{sessions: []pane.SessionInfo{{Name: "sprite-main"}}}
	registry := NewRegistry(transport, testAgents())

	if _, err := registry.Resolve(context.Background(), "1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	transport.setSessions()
	if _, err := registry.Resolve(context.Background(), "1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session to be gone, got %v", err)
	}
}

func TestRegistryResolveTransportError(t *testing.T) {
	transport := &fakeTransport{err: fmt.Errorf("%w: tmux exploded", pane.ErrTransport)}
	registry := NewRegistry(transport, testAgents())

	_, err := registry.Resolve(context.Background(), "1")
	if !errors.Is(err, pane.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestRegistryListAgentsSorted(t *testing.T) {
	registry := NewRegistry(&fakeTransport{}, testAgents())

	if got := registry.ListAgents(); !reflect.DeepEqual(got, []string{"1", "2", "9"}) {
		t.Fatalf("unexpected agent list %v", got)
	}
	if got := registry.Sessions(); !reflect.DeepEqual(got, []string{"other", "sprite-main"}) {
		t.Fatalf("unexpected sessions %v", got)
	}
}

func TestRegistryReplace(t *testing.T) {
	registry := NewRegistry(&fakeTransport{}, testAgents())

	registry.Replace([]Agent{{ID: "7", Pane: pane.Address{Session: "s", Pane: "1"}}})

	if got := registry.ListAgents(); !reflect.DeepEqual(got, []string{"7"}) {
		t.Fatalf("unexpected agent list %v", got)
	}
	if _, ok := registry.Get("1"); ok {
		t.Fatalf("expected old agent to be gone")
	}
}

func TestRegistryHealthCheck(t *testing.T) {
	transport := &fakeTransport{
		sessions: []pane.SessionInfo{{Name: "sprite-main", WindowCount: 2, Attached: true}},
		panes:    map[string][]pane.PaneInfo{"sprite-main": {{ID: "%0"}, {ID: "%1"}, {ID: "%2"}}},
	}
	registry := NewRegistry(transport, testAgents())

	health, err := registry.HealthCheck(context.Background(), "sprite-main")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	want := SessionHealth{Session: "sprite-main", Alive: true, WindowCount: 2, PaneCount: 3, Attached: true}
	if health != want {
		t.Fatalf("expected %+v, got %+v", want, health)
	}

	health, err = registry.HealthCheck(context.Background(), "missing")
	if err != nil {
		t.Fatalf("health of missing session: %v", err)
	}
	if health.Alive || health.PaneCount != 0 {
		t.Fatalf("expected dead session, got %+v", health)
	}
}
