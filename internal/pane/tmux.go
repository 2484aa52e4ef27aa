package pane

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sprite/internal/tmux"
)

// TmuxClient is the subset of tmux.Client used by TmuxTransport.
type TmuxClient interface {
	SendLiteral(ctx context.Context, target, text string) error
	SendKeys(ctx context.Context, target string, keys ...string) error
	CapturePane(ctx context.Context, target string) ([]byte, error)
	ListSessions(ctx context.Context) ([]tmux.Session, error)
	ListPanes(ctx context.Context, session string) ([]tmux.Pane, error)
}

// TmuxTransport implements Transport on top of the tmux CLI.
type TmuxTransport struct {
	client TmuxClient
}

// NewTmuxTransport wraps a tmux client.
func NewTmuxTransport(client TmuxClient) *TmuxTransport {
	return &TmuxTransport{client: client}
}

// SendKeys types text into the pane. A trailing newline is sent as Enter so
// line-oriented shells execute the command.
func (t *TmuxTransport) SendKeys(ctx context.Context, session, pane, text string) error {
	if t == nil || t.client == nil {
		return fmt.Errorf("%w: tmux client unavailable", ErrTransport)
	}
	target := Address{Session: session, Pane: pane}.String()
	body, submit := strings.CutSuffix(text, "\n")
	body = strings.TrimSuffix(body, "\r")
	if body != "" {
		if err := t.client.SendLiteral(ctx, target, body); err != nil {
			return wrap(err)
		}
	}
	if submit {
		if err := t.client.SendKeys(ctx, target, "Enter"); err != nil {
			return wrap(err)
		}
	}
	return nil
}

// CapturePane returns the visible buffer of the pane.
func (t *TmuxTransport) CapturePane(ctx context.Context, session, pane string) (string, error) {
	if t == nil || t.client == nil {
		return "", fmt.Errorf("%w: tmux client unavailable", ErrTransport)
	}
	output, err := t.client.CapturePane(ctx, Address{Session: session, Pane: pane}.String())
	if err != nil {
		return "", wrap(err)
	}
	return string(output), nil
}

// ListSessions lists sessions; a server that is not running has none.
func (t *TmuxTransport) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	if t == nil || t.client == nil {
		return nil, fmt.Errorf("%w: tmux client unavailable", ErrTransport)
	}
	sessions, err := t.client.ListSessions(ctx)
	if err != nil {
		if errors.Is(err, tmux.ErrNoServer) {
			return nil, nil
		}
		return nil, wrap(err)
	}
	infos := make([]SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, SessionInfo{
			Name:        session.Name,
			WindowCount: session.Windows,
			Attached:    session.Attached,
		})
	}
	return infos, nil
}

// ListPanes lists every pane of the session.
func (t *TmuxTransport) ListPanes(ctx context.Context, session string) ([]PaneInfo, error) {
	if t == nil || t.client == nil {
		return nil, fmt.Errorf("%w: tmux client unavailable", ErrTransport)
	}
	panes, err := t.client.ListPanes(ctx, session)
	if err != nil {
		return nil, wrap(err)
	}
	infos := make([]PaneInfo, 0, len(panes))
	for _, pane := range panes {
		infos = append(infos, PaneInfo{ID: pane.ID})
	}
	return infos, nil
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
