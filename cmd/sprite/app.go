package main

import (
	"context"
	"fmt"
	"io"

	"sprite/internal/agent"
	"sprite/internal/broadcast"
	"sprite/internal/cli"
	"sprite/internal/config"
	"sprite/internal/delivery"
	"sprite/internal/event"
	"sprite/internal/logging"
	"sprite/internal/metrics"
	"sprite/internal/pane"
	"sprite/internal/tmux"
)

const eventHistorySize = 256

type transportFactory func(settings config.Settings) pane.Transport

func newTmuxTransport(settings config.Settings) pane.Transport {
	return pane.NewTmuxTransport(tmux.NewClient(settings.Tmux.Socket))
}

// app is the wiring shared by every subcommand.
type app struct {
	settings    config.Settings
	logger      *logging.Logger
	metrics     *metrics.Registry
	transport   pane.Transport
	registry    *agent.Registry
	engine      *delivery.Engine
	events      *event.Bus[delivery.Event]
	coordinator *broadcast.Coordinator
	priority    delivery.Priority
}

func newApp(flags *cli.CommonFlags, errOut io.Writer, factory transportFactory, runtimeMetrics bool) (*app, error) {
	settings, err := config.LoadSettings(config.ResolvePath(flags.ConfigPath), flags.Overrides())
	if err != nil {
		return nil, err
	}
	level, ok := logging.ParseLevel(settings.Log.Level)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", settings.Log.Level)
	}
	priority, err := delivery.ParsePriority(flags.Priority)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLoggerWithOutput(nil, level, errOut)

	roster, err := agent.LoadRoster(settings.Roster.Path)
	if err != nil {
		return nil, err
	}

	registry := metrics.New()
	if runtimeMetrics {
		registry = metrics.NewWithRuntime()
	}

	deliveryConfig := delivery.Config{
		WaitForConfirmation: settings.Delivery.WaitForConfirmation,
		DefaultTimeout:      settings.Delivery.DefaultTimeout,
		MaxRetries:          settings.Delivery.MaxRetries,
		RetryDelay:          settings.Delivery.RetryDelay,
		CleanupAfter:        settings.Delivery.CleanupAfter,
		PollInterval:        settings.Delivery.PollInterval,
	}
	if flags.Timeout > 0 {
		deliveryConfig.DefaultTimeout = flags.Timeout
	}

	transport := factory(settings)
	agents := agent.NewRegistry(transport, roster)
	events := event.NewBus[delivery.Event](context.Background(), event.BusOptions{
		Name:        "deliveries",
		HistorySize: eventHistorySize,
		Registry:    registry,
	})
	engine := delivery.NewEngine(transport, deliveryConfig, delivery.Options{Logger: logger, Metrics: registry, Events: events})

	return &app{
		settings:    settings,
		logger:      logger,
		metrics:     registry,
		transport:   transport,
		registry:    agents,
		engine:      engine,
		events:      events,
		coordinator: broadcast.NewCoordinator(agents, engine, logger, registry),
		priority:    priority,
	}, nil
}

func (a *app) broadcastOptions(sequential, dryRun bool) broadcast.Options {
	mode := broadcast.Parallel
	if sequential || a.settings.Broadcast.Sequential {
		mode = broadcast.Sequential
	}
	pace := a.settings.Broadcast.Pace
	if pace == 0 {
		pace = -1
	}
	return broadcast.Options{
		Mode:        mode,
		MaxParallel: a.settings.Broadcast.MaxParallel,
		Pace:        pace,
		Priority:    a.priority,
		DryRun:      dryRun,
	}
}
