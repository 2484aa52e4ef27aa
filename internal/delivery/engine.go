package delivery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"sprite/internal/event"
	"sprite/internal/logging"
	"sprite/internal/metrics"
	otelx "sprite/internal/otel"
	"sprite/internal/pane"
)

type Options struct {
	Logger  *logging.Logger
	Metrics *metrics.Registry
	// Events receives one event per attempt and one per terminal status.
	Events *event.Bus[Event]
	// Now and NewToken are replaced in tests.
	Now      func() time.Time
	NewToken func() string
}

// Engine owns the tracking table and drives deliveries through a transport.
type Engine struct {
	config    Config
	transport pane.Transport
	table     *table
	logger    *logging.Logger
	metrics   *metrics.Registry
	events    *event.Bus[Event]
	now       func() time.Time
	newToken  func() string
}

func NewEngine(transport pane.Transport, config Config, options Options) *Engine {
	engine := &Engine{
		config:    config.normalize(),
		transport: transport,
		table:     newTable(),
		logger:    options.Logger,
		metrics:   options.Metrics,
		events:    options.Events,
		now:       options.Now,
		newToken:  options.NewToken,
	}
	if engine.logger == nil {
		engine.logger = logging.Discard()
	}
	if engine.now == nil {
		engine.now = time.Now
	}
	if engine.newToken == nil {
		engine.newToken = newToken
	}
	return engine
}

func (e *Engine) Config() Config {
	return e.config
}

// Send delivers req and returns the terminal tracking. Timeouts and transport
// failures are reported through the tracking status, not the error; the
// error is non-nil only when the request is rejected before any attempt.
func (e *Engine) Send(ctx context.Context, req Request) (Tracking, error) {
	if err := req.validate(); err != nil {
		return Tracking{}, err
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = e.now()
	}
	tracking := Tracking{
		MessageID:   req.MessageID,
		TargetAgent: req.TargetAgent,
		TargetPane:  req.TargetPane,
		Command:     req.Command,
		Priority:    req.Priority,
		Status:      StatusPending,
		CreatedAt:   req.CreatedAt,
	}
	if !e.table.begin(tracking, e.newToken()) {
		return Tracking{}, fmt.Errorf("send %q: %w", req.MessageID, ErrDuplicateMessageID)
	}
	return e.advance(ctx, req.MessageID), nil
}

// Tracking returns a copy of the record for id.
func (e *Engine) Tracking(id string) (Tracking, bool) {
	return e.table.get(id)
}

// RetryFailed re-runs every failed or timed-out delivery that still has
// attempts left, continuing its attempt numbering. It returns the ids it
// retried, sorted, after all of them settle.
func (e *Engine) RetryFailed(ctx context.Context) []string {
	ids := e.table.reopen(e.config.MaxAttempts())
	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids)
	e.logger.Info("retrying deliveries", map[string]string{"count": strconv.Itoa(len(ids))})

	var group errgroup.Group
	for _, id := range ids {
		group.Go(func() error {
			e.advance(ctx, id)
			return nil
		})
	}
	_ = group.Wait()
	return ids
}

// Cleanup drops terminal records created more than CleanupAfter ago.
// Pending records are kept regardless of age.
func (e *Engine) Cleanup() int {
	cutoff := e.now().Add(-e.config.CleanupAfter)
	removed := e.table.removeIf(func(tracking *Tracking) bool {
		return tracking.Status.Terminal() && tracking.CreatedAt.Before(cutoff)
	})
	if removed > 0 {
		e.logger.Debug("cleaned up deliveries", map[string]string{"removed": strconv.Itoa(removed)})
	}
	return removed
}

// Pending lists records still being worked on, oldest first.
func (e *Engine) Pending() []Tracking {
	return e.collect(func(tracking *Tracking) bool {
		return tracking.Status == StatusPending
	})
}

// All lists every tracked record, oldest first.
func (e *Engine) All() []Tracking {
	return e.collect(func(*Tracking) bool { return true })
}

func (e *Engine) collect(match func(*Tracking) bool) []Tracking {
	var out []Tracking
	e.table.scan(func(tracking *Tracking) {
		if match(tracking) {
			out = append(out, tracking.clone())
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].MessageID < out[j].MessageID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// advance runs attempts on a pending record until it reaches a terminal
// status. It is the only code path that appends attempts.
func (e *Engine) advance(ctx context.Context, id string) Tracking {
	current, ok := e.table.get(id)
	if !ok {
		return Tracking{}
	}
	token := e.table.token(id)
	logger := e.logger.With(map[string]string{
		"message_id": id,
		"agent":      current.TargetAgent,
		"pane":       current.TargetPane.String(),
	})

	ctx, span := otelx.StartSpan(ctx, "delivery.send",
		attribute.String("message.id", id),
		attribute.String("agent.id", current.TargetAgent),
		attribute.String("pane", current.TargetPane.String()),
		attribute.String("priority", string(current.Priority)),
	)
	e.metrics.IncInFlight()
	defer e.metrics.DecInFlight()

	maxAttempts := e.config.MaxAttempts()
	for {
		number := len(current.Attempts) + 1
		if number > maxAttempts {
			current = e.finish(id, StatusTimeout, nil)
			break
		}

		attempt, ack := e.attempt(ctx, current, token, number)
		e.metrics.ObserveAttempt(string(attempt.Outcome), attempt.ResponseTime())
		otelx.RecordSpanEvent(ctx, "delivery.attempt",
			attribute.Int("attempt", number),
			attribute.String("outcome", string(attempt.Outcome)),
		)
		current, _ = e.table.update(id, func(tracking *Tracking) {
			tracking.Attempts[len(tracking.Attempts)-1] = attempt
		})
		e.publish(EventAttempt, current, attempt)

		fields := map[string]string{"attempt": strconv.Itoa(number), "outcome": string(attempt.Outcome)}
		if attempt.Error != "" {
			fields["error"] = attempt.Error
		}
		logger.Debug("delivery attempt finished", fields)

		switch attempt.Outcome {
		case OutcomeAcked:
			current = e.finish(id, StatusDelivered, &Receipt{
				DeliveredAt:    attempt.RespondedAt,
				Acknowledgment: ack,
			})
		case OutcomeTransportError:
			current = e.finish(id, StatusFailed, nil)
		default:
			if ctx.Err() != nil || number >= maxAttempts {
				current = e.finish(id, StatusTimeout, nil)
			} else if !sleepContext(ctx, e.config.RetryDelay) {
				current = e.finish(id, StatusTimeout, nil)
			} else {
				continue
			}
		}
		break
	}

	e.metrics.ObserveDelivery(string(current.Status), string(current.Priority))
	if last, ok := current.LastAttempt(); ok {
		e.publish(EventFinished, current, last)
	}
	fields := map[string]string{
		"status":   string(current.Status),
		"attempts": strconv.Itoa(len(current.Attempts)),
	}
	var spanErr error
	switch current.Status {
	case StatusDelivered:
		logger.Info("command delivered", fields)
	case StatusFailed:
		if last, ok := current.LastAttempt(); ok {
			fields["error"] = last.Error
		}
		logger.Warn("delivery failed", fields)
		spanErr = errors.New("delivery failed")
	default:
		logger.Warn("delivery timed out", fields)
		spanErr = errors.New("delivery timed out")
	}
	otelx.EndSpan(span, spanErr)
	return current
}

func (e *Engine) publish(kind EventType, tracking Tracking, attempt Attempt) {
	if e.events == nil {
		return
	}
	e.events.Publish(Event{
		Type:      kind,
		MessageID: tracking.MessageID,
		Agent:     tracking.TargetAgent,
		Pane:      tracking.TargetPane.String(),
		Status:    tracking.Status,
		Attempt:   attempt.Number,
		Outcome:   attempt.Outcome,
		Error:     attempt.Error,
		Timestamp: e.now(),
	})
}

func (e *Engine) finish(id string, status Status, receipt *Receipt) Tracking {
	tracking, _ := e.table.update(id, func(tracking *Tracking) {
		tracking.Status = status
		tracking.Receipt = receipt
	})
	return tracking
}

// attempt performs one send and, when confirming, polls for the ack marker.
// The transport calls share the attempt deadline, so an attempt never
// outlives DefaultTimeout.
func (e *Engine) attempt(ctx context.Context, tracking Tracking, token string, number int) (Attempt, string) {
	attempt := Attempt{Number: number, SentAt: e.now(), Outcome: OutcomeAwaitingAck}
	e.table.update(tracking.MessageID, func(live *Tracking) {
		live.Attempts = append(live.Attempts, attempt)
	})

	if err := ctx.Err(); err != nil {
		attempt.Outcome = OutcomeTimedOut
		attempt.Error = err.Error()
		return attempt, ""
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.config.DefaultTimeout)
	defer cancel()

	session, paneID := tracking.TargetPane.Session, tracking.TargetPane.Pane
	if err := e.transport.SendKeys(attemptCtx, session, paneID, tracking.Command+"\n"); err != nil {
		return classifyError(attemptCtx, attempt, err), ""
	}
	if !e.config.WaitForConfirmation {
		attempt.Outcome = OutcomeAcked
		attempt.RespondedAt = e.now()
		return attempt, ""
	}

	if err := e.transport.SendKeys(attemptCtx, session, paneID, sentinelCommand(token, number)+"\n"); err != nil {
		return classifyError(attemptCtx, attempt, err), ""
	}

	marker := ackMarker(token, number)
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()
	for {
		buffer, err := e.transport.CapturePane(attemptCtx, session, paneID)
		if err != nil {
			return classifyError(attemptCtx, attempt, err), ""
		}
		if line, ok := findAck(buffer, marker); ok {
			attempt.Outcome = OutcomeAcked
			attempt.RespondedAt = e.now()
			return attempt, line
		}
		select {
		case <-attemptCtx.Done():
			attempt.Outcome = OutcomeTimedOut
			attempt.Error = attemptCtx.Err().Error()
			return attempt, ""
		case <-ticker.C:
		}
	}
}

// classifyError treats failures caused by the attempt deadline or caller
// cancellation as timeouts and everything else as a transport fault.
func classifyError(attemptCtx context.Context, attempt Attempt, err error) Attempt {
	attempt.Error = err.Error()
	if attemptCtx.Err() != nil {
		attempt.Outcome = OutcomeTimedOut
		return attempt
	}
	attempt.Outcome = OutcomeTransportError
	return attempt
}

func sleepContext(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
