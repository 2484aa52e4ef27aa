// Package agent maps agent identifiers to multiplexer panes and reports
// session health.
package agent

import (
	"errors"

	"sprite/internal/pane"
)

var (
	ErrAgentNotFound   = errors.New("agent not found")
	ErrSessionNotFound = errors.New("session not found")
)

// Agent is a named worker bound to one pane.
type Agent struct {
	ID   string
	Name string
	Pane pane.Address
}

// Label is the display name, falling back to the id.
func (a Agent) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// SessionHealth is a point-in-time view of one session.
type SessionHealth struct {
	Session     string
	Alive       bool
	WindowCount int
	PaneCount   int
	Attached    bool
}
