package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sprite/internal/agent"
)

func runSupervise(args []string, std streams, factory transportFactory) int {
	var exitOnEOF bool
	flags, _, code, ok := parseCommand(commandSpec{name: "supervise", usage: "[options]"}, args, std, func(fs *flag.FlagSet) {
		fs.BoolVar(&exitOnEOF, "exit-on-eof", false, "Stop once stdin is closed and dispatches finish")
	})
	if !ok {
		return code
	}
	app, err := newApp(flags, std.errOut, factory, true)
	if err != nil {
		fmt.Fprintf(std.errOut, "sprite: %v\n", err)
		return exitUsage
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	stopSignals := watchShutdownSignals(app.logger, cancel, signalCh)
	defer stopSignals()

	sup := &supervisor{app: app, out: &lockedWriter{w: std.out}, sequential: flags.Sequential}
	if err := sup.run(ctx, cancel, std.in, exitOnEOF); err != nil {
		fmt.Fprintf(std.errOut, "sprite: %v\n", err)
		return exitUsage
	}
	return exitOK
}

// supervisor reads "<targets> <command...>" lines and keeps the retry,
// cleanup and health loops running until it is stopped.
type supervisor struct {
	app        *app
	out        *lockedWriter
	sequential bool

	dispatches sync.WaitGroup
	alive      map[string]bool

	// retryFailed defaults to the engine's RetryFailed.
	retryFailed func(context.Context) []string
	retrying    atomic.Bool
	retries     sync.WaitGroup
}

func (s *supervisor) run(ctx context.Context, cancel context.CancelFunc, in io.Reader, exitOnEOF bool) error {
	group, groupCtx := errgroup.WithContext(ctx)

	if addr := s.app.settings.Supervise.MetricsAddr; addr != "" {
		server, err := newStatusServer(addr, s.app.metrics, s.app.events, s.app.logger)
		if err != nil {
			return fmt.Errorf("status listener: %w", err)
		}
		group.Go(func() error {
			return server.Run(groupCtx)
		})
	}

	group.Go(func() error {
		if err := agent.WatchRoster(groupCtx, s.app.settings.Roster.Path, s.app.registry, s.app.logger); err != nil {
			s.app.logger.Warn("roster watch disabled", map[string]string{"error": err.Error()})
		}
		return nil
	})

	group.Go(func() error {
		s.maintain(groupCtx)
		return nil
	})

	lines := make(chan string)
	go scanLines(groupCtx, in, lines)

	s.app.logger.Info("supervisor started", map[string]string{
		"agents": fmt.Sprint(len(s.app.registry.ListAgents())),
	})

	for running := true; running; {
		select {
		case <-groupCtx.Done():
			running = false
		case line, ok := <-lines:
			if !ok {
				lines = nil
				if exitOnEOF {
					s.dispatches.Wait()
					cancel()
					running = false
				}
				continue
			}
			s.handleLine(groupCtx, line)
		}
	}

	s.dispatches.Wait()
	cancel()
	err := group.Wait()
	s.app.events.Close()

	fmt.Fprintln(s.out, s.app.engine.Stats().String())
	s.app.logger.Info("supervisor stopped", nil)
	return err
}

func (s *supervisor) handleLine(ctx context.Context, line string) {
	targets, command, ok := parseDispatchLine(line)
	if !ok {
		if strings.TrimSpace(line) != "" && !strings.HasPrefix(strings.TrimSpace(line), "#") {
			fmt.Fprintf(s.out, "error: expected \"<targets> <command>\", got %q\n", line)
		}
		return
	}
	s.dispatches.Add(1)
	go func() {
		defer s.dispatches.Done()
		report, err := s.app.coordinator.Broadcast(ctx, targets, command, s.app.broadcastOptions(s.sequential, false))
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			return
		}
		var buf strings.Builder
		printReport(&buf, report)
		fmt.Fprint(s.out, buf.String())
	}()
}

func (s *supervisor) maintain(ctx context.Context) {
	settings := s.app.settings.Supervise
	retry, stopRetry := tick(settings.RetryInterval)
	defer stopRetry()
	cleanup, stopCleanup := tick(settings.CleanupInterval)
	defer stopCleanup()
	health, stopHealth := tick(settings.HealthInterval)
	defer stopHealth()
	defer s.retries.Wait()

	s.checkHealth(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-retry:
			if !s.startRetry(ctx) {
				s.app.logger.Debug("retry pass still running", nil)
			}
		case <-cleanup:
			if removed := s.app.engine.Cleanup(); removed > 0 {
				s.app.logger.Debug("cleaned up deliveries", map[string]string{"removed": fmt.Sprint(removed)})
			}
		case <-health:
			s.checkHealth(ctx)
		}
	}
}

// startRetry runs one retry pass in the background so slow confirmations do
// not hold up cleanup and health checks. It reports false while a pass is
// already running.
func (s *supervisor) startRetry(ctx context.Context) bool {
	if !s.retrying.CompareAndSwap(false, true) {
		return false
	}
	retryFailed := s.retryFailed
	if retryFailed == nil {
		retryFailed = s.app.engine.RetryFailed
	}
	s.retries.Add(1)
	go func() {
		defer s.retries.Done()
		defer s.retrying.Store(false)
		if ids := retryFailed(ctx); len(ids) > 0 {
			s.app.logger.Info("retried failed deliveries", map[string]string{
				"count": fmt.Sprint(len(ids)),
				"ids":   strings.Join(ids, ","),
			})
		}
	}()
	return true
}

func (s *supervisor) checkHealth(ctx context.Context) {
	if s.alive == nil {
		s.alive = make(map[string]bool)
	}
	for _, session := range s.app.registry.Sessions() {
		health, err := s.app.registry.HealthCheck(ctx, session)
		if err != nil {
			s.app.logger.Warn("health check failed", map[string]string{"session": session, "error": err.Error()})
			continue
		}
		s.app.metrics.SetSessionHealth(session, health.Alive, health.PaneCount)
		previous, seen := s.alive[session]
		s.alive[session] = health.Alive
		if seen && previous == health.Alive {
			continue
		}
		fields := map[string]string{"session": session, "alive": fmt.Sprint(health.Alive)}
		if health.Alive {
			s.app.logger.Info("session health changed", fields)
		} else {
			s.app.logger.Warn("session health changed", fields)
		}
	}
}

// tick returns a nil channel when interval disables the loop.
func tick(interval time.Duration) (<-chan time.Time, func()) {
	if interval <= 0 {
		return nil, func() {}
	}
	ticker := time.NewTicker(interval)
	return ticker.C, ticker.Stop
}

func scanLines(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)
	if in == nil {
		return
	}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

// parseDispatchLine splits "<targets> <command...>".
func parseDispatchLine(line string) (string, string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	targets, command, found := strings.Cut(trimmed, " ")
	command = strings.TrimSpace(command)
	if !found || command == "" {
		return "", "", false
	}
	return targets, command, true
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
