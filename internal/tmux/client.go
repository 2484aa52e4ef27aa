package tmux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoServer reports that no tmux server is listening on the target socket.
var ErrNoServer = errors.New("tmux server not running")

// CommandRunner executes tmux commands with optional stdin data.
type CommandRunner interface {
	Run(ctx context.Context, args []string, input []byte) ([]byte, error)
}

// Session is one row of list-sessions output.
type Session struct {
	Name     string
	Windows  int
	Attached bool
}

// Pane is one row of list-panes output.
type Pane struct {
	ID string
}

const (
	sessionFormat = "#{session_name}\t#{session_windows}\t#{session_attached}"
	paneFormat    = "#{pane_id}"
)

// Client executes tmux commands.
type Client struct {
	runner CommandRunner
	socket string
}

// NewClient returns a tmux client using the default command runner. A
// non-empty socket targets a dedicated server via -S.
func NewClient(socket string) *Client {
	return &Client{runner: execRunner{}, socket: strings.TrimSpace(socket)}
}

// NewClientWithRunner returns a tmux client using a custom command runner.
func NewClientWithRunner(runner CommandRunner, socket string) *Client {
	return &Client{runner: runner, socket: strings.TrimSpace(socket)}
}

// SendLiteral types text into a target pane without key-name lookup.
func (c *Client) SendLiteral(ctx context.Context, target, text string) error {
	return c.run(ctx, []string{"send-keys", "-t", target, "-l", "--", text}, nil)
}

// SendKeys sends named keys (Enter, C-c, ...) to a target pane.
func (c *Client) SendKeys(ctx context.Context, target string, keys ...string) error {
	args := append([]string{"send-keys", "-t", target}, keys...)
	return c.run(ctx, args, nil)
}

// CapturePane captures the visible contents of a pane as raw text.
func (c *Client) CapturePane(ctx context.Context, target string) ([]byte, error) {
	return c.runWithOutput(ctx, []string{"capture-pane", "-p", "-J", "-t", target}, nil)
}

// ListSessions returns every session on the server. A missing server is
// reported as ErrNoServer.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	output, err := c.runWithOutput(ctx, []string{"list-sessions", "-F", sessionFormat}, nil)
	if err != nil {
		return nil, err
	}
	var sessions []Session
	for _, line := range splitLines(output) {
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			continue
		}
		windows, _ := strconv.Atoi(fields[1])
		attached, _ := strconv.Atoi(fields[2])
		sessions = append(sessions, Session{
			Name:     fields[0],
			Windows:  windows,
			Attached: attached > 0,
		})
	}
	return sessions, nil
}

// ListPanes returns all panes across the windows of a session.
func (c *Client) ListPanes(ctx context.Context, session string) ([]Pane, error) {
	output, err := c.runWithOutput(ctx, []string{"list-panes", "-s", "-t", session, "-F", paneFormat}, nil)
	if err != nil {
		return nil, err
	}
	var panes []Pane
	for _, line := range splitLines(output) {
		panes = append(panes, Pane{ID: strings.TrimSpace(line)})
	}
	return panes, nil
}

func (c *Client) run(ctx context.Context, args []string, input []byte) error {
	_, err := c.runWithOutput(ctx, args, input)
	return err
}

func (c *Client) runWithOutput(ctx context.Context, args []string, input []byte) ([]byte, error) {
	if c == nil || c.runner == nil {
		return nil, errors.New("tmux runner unavailable")
	}
	output, err := c.runner.Run(ctx, c.withSocket(args), input)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("tmux %s: %w", args[0], ctxErr)
		}
		if isNoServer(output) {
			return nil, fmt.Errorf("tmux %s: %w", args[0], ErrNoServer)
		}
		if len(output) > 0 {
			return nil, fmt.Errorf("tmux %s failed: %s", args[0], bytes.TrimSpace(output))
		}
		return nil, fmt.Errorf("tmux %s failed: %w", args[0], err)
	}
	return output, nil
}

func (c *Client) withSocket(args []string) []string {
	if c.socket == "" {
		return args
	}
	return append([]string{"-S", c.socket}, args...)
}

func isNoServer(output []byte) bool {
	text := string(output)
	return strings.Contains(text, "no server running") ||
		(strings.Contains(text, "error connecting to") && strings.Contains(text, "No such file or directory"))
}

func splitLines(output []byte) []string {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return nil
	}
	lines := strings.Split(trimmed, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, args []string, input []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	if len(input) > 0 {
		cmd.Stdin = bytes.NewReader(input)
	}
	return cmd.CombinedOutput()
}
