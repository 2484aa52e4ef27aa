package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"sprite/internal/broadcast"
	"sprite/internal/cli"
	"sprite/internal/version"
)

type commandSpec struct {
	name   string
	usage  string
	minArg int
}

func parseCommand(spec commandSpec, args []string, std streams, extra func(*flag.FlagSet)) (*cli.CommonFlags, *flag.FlagSet, int, bool) {
	fs := flag.NewFlagSet("sprite "+spec.name, flag.ContinueOnError)
	fs.SetOutput(std.errOut)
	flags := cli.AddCommonFlags(fs)
	if extra != nil {
		extra(fs)
	}
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: sprite %s %s\n\nOptions:\n", spec.name, spec.usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, exitOK, false
		}
		return nil, nil, exitUsage, false
	}
	if flags.Help {
		fs.SetOutput(std.out)
		fs.Usage()
		return nil, nil, exitOK, false
	}
	if flags.Version {
		fmt.Fprintln(std.out, version.Get().String())
		return nil, nil, exitOK, false
	}
	if fs.NArg() < spec.minArg {
		fs.Usage()
		return nil, nil, exitUsage, false
	}
	return flags, fs, exitOK, true
}

func runHey(args []string, std streams, factory transportFactory) int {
	var shape *cli.CommandFlags
	flags, fs, code, ok := parseCommand(commandSpec{name: "hey", usage: "[options] <agent> <command...>", minArg: 2}, args, std, func(fs *flag.FlagSet) {
		shape = cli.AddCommandFlags(fs)
	})
	if !ok {
		return code
	}
	agent := strings.TrimSpace(fs.Arg(0))
	if strings.EqualFold(agent, broadcast.TargetAll) || strings.Contains(agent, ",") {
		fmt.Fprintf(std.errOut, "sprite: hey takes a single agent, got %q; use send --targets for several\n", agent)
		return exitUsage
	}
	return dispatch(std, flags, factory, agent, shape.Apply(joinCommand(fs.Args()[1:])), false)
}

func runSend(args []string, std streams, factory transportFactory) int {
	var targets string
	var dryRun bool
	var shape *cli.CommandFlags
	flags, fs, code, ok := parseCommand(commandSpec{name: "send", usage: "[options] <command...>", minArg: 1}, args, std, func(fs *flag.FlagSet) {
		fs.StringVar(&targets, "targets", broadcast.TargetAll, "Agent id, comma-separated ids, or all")
		fs.BoolVar(&dryRun, "dry-run", false, "Resolve targets without sending")
		shape = cli.AddCommandFlags(fs)
	})
	if !ok {
		return code
	}
	return dispatch(std, flags, factory, targets, shape.Apply(joinCommand(fs.Args())), dryRun)
}

func runBroadcast(args []string, std streams, factory transportFactory) int {
	var dryRun bool
	flags, fs, code, ok := parseCommand(commandSpec{name: "broadcast", usage: "[options] <command...>", minArg: 1}, args, std, func(fs *flag.FlagSet) {
		fs.BoolVar(&dryRun, "dry-run", false, "Resolve targets without sending")
	})
	if !ok {
		return code
	}
	return dispatch(std, flags, factory, broadcast.TargetAll, joinCommand(fs.Args()), dryRun)
}

func dispatch(std streams, flags *cli.CommonFlags, factory transportFactory, targets, command string, dryRun bool) int {
	app, err := newApp(flags, std.errOut, factory, false)
	if err != nil {
		fmt.Fprintf(std.errOut, "sprite: %v\n", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := app.coordinator.Broadcast(ctx, targets, command, app.broadcastOptions(flags.Sequential, dryRun))
	if err != nil {
		fmt.Fprintf(std.errOut, "sprite: %v\n", err)
		return exitUsage
	}
	printReport(std.out, report)
	if flags.Stats {
		fmt.Fprintln(std.out)
		fmt.Fprintln(std.out, app.engine.Stats().String())
	}
	if flags.Metrics {
		fmt.Fprintln(std.out)
		if err := app.metrics.WriteText(std.out); err != nil {
			fmt.Fprintf(std.errOut, "sprite: %v\n", err)
		}
	}
	return exitCodeFor(report)
}

func exitCodeFor(report broadcast.Report) int {
	switch {
	case report.OK():
		return exitOK
	case report.Summary.Total > 0 && report.Summary.Unresolved == report.Summary.Total:
		return exitUnavailable
	default:
		return exitNotDelivered
	}
}

func printReport(out io.Writer, report broadcast.Report) {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "AGENT\tPANE\tSTATUS\tATTEMPTS\tRESPONSE\tDETAIL")
	for _, result := range report.Results {
		paneLabel := "-"
		if !result.Pane.IsZero() {
			paneLabel = result.Pane.String()
		}
		attempts, response, detail := "-", "-", ""
		if result.Err != nil {
			detail = result.Err.Error()
		}
		if tracking := result.Tracking; tracking != nil {
			attempts = strconv.Itoa(len(tracking.Attempts))
			if last, ok := tracking.LastAttempt(); ok {
				if latency := last.ResponseTime(); latency > 0 {
					response = strconv.FormatInt(latency.Milliseconds(), 10) + "ms"
				}
				detail = last.Error
			}
			if tracking.Receipt != nil {
				detail = tracking.Receipt.Acknowledgment
			}
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n", result.Agent, paneLabel, result.Status(), attempts, response, detail)
	}
	_ = writer.Flush()

	summary := report.Summary
	if report.DryRun {
		fmt.Fprintf(out, "dry run: %d targets, %d unresolved\n", summary.Total, summary.Unresolved)
		return
	}
	fmt.Fprintf(out, "batch %s: %d targets, %d delivered, %d failed, %d timeout, %d unresolved\n",
		report.BatchID, summary.Total, summary.Delivered, summary.Failed, summary.Timeout, summary.Unresolved)
}
