package main

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"
)

func runStatus(args []string, std streams, factory transportFactory) int {
	var session string
	flags, _, code, ok := parseCommand(commandSpec{name: "status", usage: "[options]"}, args, std, func(fs *flag.FlagSet) {
		fs.StringVar(&session, "session", "", "Only report this session")
	})
	if !ok {
		return code
	}
	app, err := newApp(flags, std.errOut, factory, false)
	if err != nil {
		fmt.Fprintf(std.errOut, "sprite: %v\n", err)
		return exitUsage
	}

	sessions := app.registry.Sessions()
	if session != "" {
		sessions = []string{session}
	}

	ctx := context.Background()
	code = exitOK
	writer := tabwriter.NewWriter(std.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "SESSION\tALIVE\tWINDOWS\tPANES\tATTACHED")
	for _, name := range sessions {
		health, err := app.registry.HealthCheck(ctx, name)
		if err != nil {
			fmt.Fprintf(writer, "%s\terror\t-\t-\t%v\n", name, err)
			code = exitUnavailable
			continue
		}
		app.metrics.SetSessionHealth(health.Session, health.Alive, health.PaneCount)
		if !health.Alive {
			code = exitUnavailable
		}
		fmt.Fprintf(writer, "%s\t%t\t%d\t%d\t%t\n", health.Session, health.Alive, health.WindowCount, health.PaneCount, health.Attached)
	}
	_ = writer.Flush()

	fmt.Fprintln(std.out)
	writer = tabwriter.NewWriter(std.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "AGENT\tNAME\tPANE")
	for _, id := range app.registry.ListAgents() {
		entry, ok := app.registry.Get(id)
		if !ok {
			continue
		}
		if session != "" && entry.Pane.Session != session {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", entry.ID, name, entry.Pane.String())
	}
	_ = writer.Flush()

	if flags.Metrics {
		fmt.Fprintln(std.out)
		if err := app.metrics.WriteText(std.out); err != nil {
			fmt.Fprintf(std.errOut, "sprite: %v\n", err)
		}
	}
	if len(sessions) == 0 {
		fmt.Fprintln(std.errOut, "sprite: roster has no agents")
		return exitUnavailable
	}
	return code
}
