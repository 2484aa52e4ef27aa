// Package broadcast fans one command out to many agents and aggregates the
// per-target results.
package broadcast

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"sprite/internal/delivery"
	"sprite/internal/logging"
	"sprite/internal/metrics"
	"sprite/internal/pane"
)

const DefaultPace = 200 * time.Millisecond

// Resolver is the part of the agent registry the coordinator needs.
type Resolver interface {
	Resolve(ctx context.Context, agentID string) (pane.Address, error)
	ListAgents() []string
}

// Sender is the part of the delivery engine the coordinator needs.
type Sender interface {
	Send(ctx context.Context, req delivery.Request) (delivery.Tracking, error)
}

type Mode int

const (
	Parallel Mode = iota
	Sequential
)

type Options struct {
	Mode Mode
	// MaxParallel caps concurrent deliveries in parallel mode; zero means
	// one goroutine per target.
	MaxParallel int
	// Pace is the minimum gap between targets in sequential mode. Zero uses
	// DefaultPace; negative disables pacing.
	Pace     time.Duration
	Priority delivery.Priority
	DryRun   bool
	// BatchID prefixes every message id; generated when empty.
	BatchID string
}

type Coordinator struct {
	resolver Resolver
	sender   Sender
	logger   *logging.Logger
	metrics  *metrics.Registry
}

func NewCoordinator(resolver Resolver, sender Sender, logger *logging.Logger, registry *metrics.Registry) *Coordinator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Coordinator{resolver: resolver, sender: sender, logger: logger, metrics: registry}
}

// Broadcast resolves spec and delivers command to every target. Partial
// failure is reported in the Report, not as an error; the error is non-nil
// only when spec selects no targets.
func (c *Coordinator) Broadcast(ctx context.Context, spec, command string, options Options) (Report, error) {
	targets, err := ParseTargets(spec, c.resolver.ListAgents)
	if err != nil {
		return Report{}, err
	}

	batchID := options.BatchID
	if batchID == "" {
		batchID = delivery.NewID()
	}
	report := Report{BatchID: batchID, DryRun: options.DryRun, Results: make([]Result, len(targets))}
	logger := c.logger.With(map[string]string{"batch_id": batchID})
	logger.Info("broadcast started", map[string]string{
		"targets":    strconv.Itoa(len(targets)),
		"sequential": strconv.FormatBool(options.Mode == Sequential),
		"dry_run":    strconv.FormatBool(options.DryRun),
	})

	deliver := func(ctx context.Context, index int) {
		report.Results[index] = c.deliverOne(ctx, batchID, targets[index], command, options)
	}

	if options.Mode == Sequential {
		c.runSequential(ctx, targets, options, report.Results, deliver)
	} else {
		c.runParallel(ctx, len(targets), options.MaxParallel, deliver)
	}

	report.Summary = summarize(report.Results)
	c.metrics.ObserveBroadcast(report.outcome())
	logger.Info("broadcast finished", map[string]string{
		"delivered":  strconv.Itoa(report.Summary.Delivered),
		"failed":     strconv.Itoa(report.Summary.Failed),
		"timeout":    strconv.Itoa(report.Summary.Timeout),
		"unresolved": strconv.Itoa(report.Summary.Unresolved),
	})
	return report, nil
}

// runParallel starts every delivery and waits for all of them. Workers never
// return errors, so one target cannot cancel its siblings.
func (c *Coordinator) runParallel(ctx context.Context, count, limit int, deliver func(context.Context, int)) {
	var group errgroup.Group
	if limit > 0 {
		group.SetLimit(limit)
	}
	for index := 0; index < count; index++ {
		group.Go(func() error {
			deliver(ctx, index)
			return nil
		})
	}
	_ = group.Wait()
}

// runSequential delivers in target order, each target finishing before the
// next starts. Pace is the quiet gap between one delivery finishing and the
// next starting, so the limiter is rebuilt drained after every delivery.
func (c *Coordinator) runSequential(ctx context.Context, targets []string, options Options, results []Result, deliver func(context.Context, int)) {
	pace := options.Pace
	if pace == 0 {
		pace = DefaultPace
	}
	paced := pace > 0 && !options.DryRun
	var limiter *rate.Limiter
	for index := range targets {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				for rest := index; rest < len(targets); rest++ {
					results[rest] = Result{Agent: targets[rest], Err: fmt.Errorf("not started: %w", err)}
				}
				return
			}
		}
		deliver(ctx, index)
		if paced {
			limiter = drainedLimiter(pace)
		}
	}
}

func drainedLimiter(pace time.Duration) *rate.Limiter {
	limiter := rate.NewLimiter(rate.Every(pace), 1)
	limiter.Allow()
	return limiter
}

func (c *Coordinator) deliverOne(ctx context.Context, batchID, agentID, command string, options Options) Result {
	result := Result{Agent: agentID}
	address, err := c.resolver.Resolve(ctx, agentID)
	if err != nil {
		result.Err = err
		c.logger.Warn("broadcast target unresolved", map[string]string{"agent": agentID, "error": err.Error()})
		return result
	}
	result.Pane = address
	if options.DryRun {
		return result
	}

	tracking, err := c.sender.Send(ctx, delivery.Request{
		MessageID:   batchID + "-" + agentID,
		TargetAgent: agentID,
		TargetPane:  address,
		Command:     command,
		Priority:    options.Priority,
	})
	if err != nil {
		result.Err = err
		return result
	}
	result.Tracking = &tracking
	return result
}
