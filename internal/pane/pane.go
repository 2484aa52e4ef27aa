// Package pane defines the transport contract the delivery core needs from a
// terminal multiplexer, plus the tmux-backed implementation.
package pane

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrTransport wraps every failure reported by a Transport.
var ErrTransport = errors.New("pane transport error")

// Address locates a pane on the multiplexer.
type Address struct {
	Session string
	Pane    string
}

// ParseAddress splits "session:pane". A bare pane id uses defaultSession.
func ParseAddress(raw, defaultSession string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Address{}, errors.New("pane address is required")
	}
	session, paneID, found := strings.Cut(trimmed, ":")
	if !found {
		session = strings.TrimSpace(defaultSession)
		paneID = trimmed
	}
	session = strings.TrimSpace(session)
	paneID = strings.TrimSpace(paneID)
	if session == "" {
		return Address{}, fmt.Errorf("pane address %q has no session", raw)
	}
	if paneID == "" {
		return Address{}, fmt.Errorf("pane address %q has no pane", raw)
	}
	return Address{Session: session, Pane: paneID}, nil
}

// String renders the tmux target form.
func (a Address) String() string {
	if a.Session == "" {
		return a.Pane
	}
	return a.Session + ":" + a.Pane
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a.Session == "" && a.Pane == ""
}

// SessionInfo describes one multiplexer session.
type SessionInfo struct {
	Name        string
	WindowCount int
	Attached    bool
}

// PaneInfo describes one pane inside a session.
type PaneInfo struct {
	ID string
}

// Transport sends keystrokes to panes and reads their buffers. It gives no
// delivery guarantee; callers confirm delivery by inspecting CapturePane.
type Transport interface {
	SendKeys(ctx context.Context, session, pane, text string) error
	CapturePane(ctx context.Context, session, pane string) (string, error)
	ListSessions(ctx context.Context) ([]SessionInfo, error)
	ListPanes(ctx context.Context, session string) ([]PaneInfo, error)
}
