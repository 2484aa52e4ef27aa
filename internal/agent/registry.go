package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"sprite/internal/pane"
)

// Registry resolves agents to pane addresses. Lookups consult the transport
// on every call; session liveness is never cached.
type Registry struct {
	transport pane.Transport

	mu     sync.RWMutex
	agents map[string]Agent
}

func NewRegistry(transport pane.Transport, agents []Agent) *Registry {
	registry := &Registry{transport: transport}
	registry.Replace(agents)
	return registry
}

// Replace swaps the roster atomically.
func (r *Registry) Replace(agents []Agent) {
	if r == nil {
		return
	}
	next := make(map[string]Agent, len(agents))
	for _, entry := range agents {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			continue
		}
		entry.ID = id
		next[id] = entry
	}
	r.mu.Lock()
	r.agents = next
	r.mu.Unlock()
}

// Get returns the roster entry without checking the session.
func (r *Registry) Get(agentID string) (Agent, bool) {
	if r == nil {
		return Agent{}, false
	}
	r.mu.RLock()
	entry, ok := r.agents[strings.TrimSpace(agentID)]
	r.mu.RUnlock()
	return entry, ok
}

// ListAgents returns every agent id in ascending order.
func (r *Registry) ListAgents() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Sessions returns the distinct sessions referenced by the roster, sorted.
func (r *Registry) Sessions() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{})
	r.mu.RLock()
	for _, entry := range r.agents {
		seen[entry.Pane.Session] = struct{}{}
	}
	r.mu.RUnlock()
	sessions := make([]string, 0, len(seen))
	for session := range seen {
		sessions = append(sessions, session)
	}
	sort.Strings(sessions)
	return sessions
}

// Resolve returns the pane for agentID, provided its session is alive.
func (r *Registry) Resolve(ctx context.Context, agentID string) (pane.Address, error) {
	if r == nil {
		return pane.Address{}, fmt.Errorf("resolve %q: %w", agentID, ErrAgentNotFound)
	}
	entry, ok := r.Get(agentID)
	if !ok {
		return pane.Address{}, fmt.Errorf("resolve %q: %w", agentID, ErrAgentNotFound)
	}
	_, alive, err := r.findSession(ctx, entry.Pane.Session)
	if err != nil {
		return pane.Address{}, fmt.Errorf("resolve %q: %w", agentID, err)
	}
	if !alive {
		return pane.Address{}, fmt.Errorf("resolve %q: %s: %w", agentID, entry.Pane.Session, ErrSessionNotFound)
	}
	return entry.Pane, nil
}

// HealthCheck reports the live state of session. A missing session is a
// normal result with Alive false.
func (r *Registry) HealthCheck(ctx context.Context, session string) (SessionHealth, error) {
	health := SessionHealth{Session: session}
	if r == nil {
		return health, nil
	}
	info, alive, err := r.findSession(ctx, session)
	if err != nil || !alive {
		return health, err
	}
	panes, err := r.transport.ListPanes(ctx, session)
	if err != nil {
		return health, fmt.Errorf("health check %s: %w", session, err)
	}
	health.Alive = true
	health.WindowCount = info.WindowCount
	health.Attached = info.Attached
	health.PaneCount = len(panes)
	return health, nil
}

func (r *Registry) findSession(ctx context.Context, session string) (pane.SessionInfo, bool, error) {
	if r.transport == nil {
		return pane.SessionInfo{}, false, fmt.Errorf("%w: no transport configured", pane.ErrTransport)
	}
	sessions, err := r.transport.ListSessions(ctx)
	if err != nil {
		return pane.SessionInfo{}, false, err
	}
	for _, info := range sessions {
		if info.Name == session {
			return info, true, nil
		}
	}
	return pane.SessionInfo{}, false, nil
}
