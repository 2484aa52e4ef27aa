package delivery

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"sprite/internal/pane"
)

var sentinelPattern = regexp.MustCompile(`printf '%s-%s-%s\\n' SPRITE-ACK (\S+) (\d+)$`)

// fakePane behaves like an interactive shell: typed lines are echoed into the
// buffer, and the sentinel printf runs when ackFrom allows it.
type fakePane struct {
	sendErr    error
	captureErr error
	silent     bool
	hang       bool
	ackFrom    int
}

type fakeTransport struct {
	mu       sync.Mutex
	panes    map[string]*fakePane
	buffers  map[string]*strings.Builder
	sent     map[string][]string
	captures int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		panes:   make(map[string]*fakePane),
		buffers: make(map[string]*strings.Builder),
		sent:    make(map[string][]string),
	}
}

func (f *fakeTransport) setPane(target string, behaviour fakePane) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyBehaviour := behaviour
	f.panes[target] = &copyBehaviour
}

func (f *fakeTransport) sentTo(target string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent[target]...)
}

func (f *fakeTransport) SendKeys(ctx context.Context, session, paneID, text string) error {
	target := session + ":" + paneID
	f.mu.Lock()
	behaviour := f.panes[target]
	if behaviour == nil {
		behaviour = &fakePane{}
	}
	f.sent[target] = append(f.sent[target], text)
	hang := behaviour.hang
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return fmt.Errorf("%w: tmux send-keys: %w", pane.ErrTransport, ctx.Err())
	}
	if behaviour.sendErr != nil {
		return fmt.Errorf("%w: %w", pane.ErrTransport, behaviour.sendErr)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	buffer := f.buffers[target]
	if buffer == nil {
		buffer = &strings.Builder{}
		f.buffers[target] = buffer
	}
	line := strings.TrimSuffix(text, "\n")
	buffer.WriteString("$ " + line + "\n")
	if behaviour.silent {
		return nil
	}
	if match := sentinelPattern.FindStringSubmatch(runnable(line)); match != nil {
		number, _ := strconv.Atoi(match[2])
		if number >= behaviour.ackFrom {
			buffer.WriteString(ackPrefix + "-" + match[1] + "-" + match[2] + "\n")
		}
	}
	return nil
}

func (f *fakeTransport) CapturePane(_ context.Context, session, paneID string) (string, error) {
	target := session + ":" + paneID
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	if behaviour := f.panes[target]; behaviour != nil && behaviour.captureErr != nil {
		return "", fmt.Errorf("%w: %w", pane.ErrTransport, behaviour.captureErr)
	}
	if buffer := f.buffers[target]; buffer != nil {
		return buffer.String(), nil
	}
	return "", nil
}

func (f *fakeTransport) ListSessions(context.Context) ([]pane.SessionInfo, error) {
	return nil, nil
}

func (f *fakeTransport) ListPanes(context.Context, string) ([]pane.PaneInfo, error) {
	return nil, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fastConfig() Config {
	return Config{
		WaitForConfirmation: true,
		DefaultTimeout:      60 * time.Millisecond,
		MaxRetries:          2,
		RetryDelay:          5 * time.Millisecond,
		CleanupAfter:        time.Minute,
		PollInterval:        5 * time.Millisecond,
	}
}

func request(id, paneID string) Request {
	return Request{
		MessageID:   id,
		TargetAgent: "agent-" + paneID,
		TargetPane:  pane.Address{Session: "sprite-main", Pane: paneID},
		Command:     "make test",
		Priority:    PriorityNormal,
	}
}

// runnable drops a trailing shell comment the way an interactive shell would.
func runnable(line string) string {
	if strings.HasPrefix(line, "#") {
		return ""
	}
	if idx := strings.Index(line, " #"); idx >= 0 {
		return strings.TrimRight(line[:idx], " ")
	}
	return line
}
