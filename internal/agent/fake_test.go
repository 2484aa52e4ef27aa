package agent

import (
	"context"
	"sync"

	"sprite/internal/pane"
)

type fakeTransport struct {
	mu       sync.Mutex
	sessions []pane.SessionInfo
	panes    map[string][]pane.PaneInfo
	err      error
	lists    int
}

func (f *fakeTransport) SendKeys(context.Context, string, string, string) error { return nil }

func (f *fakeTransport) CapturePane(context.Context, string, string) (string, error) {
	return "", nil
}

func (f *fakeTransport) ListSessions(context.Context) ([]pane.SessionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.err != nil {
		return nil, f.err
	}
	return append([]pane.SessionInfo(nil), f.sessions...), nil
}

func (f *fakeTransport) ListPanes(_ context.Context, session string) ([]pane.PaneInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.panes[session], nil
}

func (f *fakeTransport) setSessions(sessions ...pane.SessionInfo) {
	f.mu.Lock()
	f.sessions = sessions
	f.mu.Unlock()
}
