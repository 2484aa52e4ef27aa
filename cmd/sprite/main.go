package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	otelx "sprite/internal/otel"
	"sprite/internal/version"
)

const (
	exitOK           = 0
	exitUsage        = 1
	exitNotDelivered = 2
	exitUnavailable  = 3
)

func main() {
	ctx := context.Background()
	options := otelx.SDKOptionsFromEnv()
	options.ServiceVersion = version.Get().Version
	shutdown, err := otelx.SetupSDK(ctx, options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sprite: tracing disabled: %v\n", err)
		shutdown = func(context.Context) error { return nil }
	}

	code := run(os.Args[1:], streams{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}, newTmuxTransport)
	_ = shutdown(ctx)
	os.Exit(code)
}

type streams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func run(args []string, std streams, transport transportFactory) int {
	if len(args) == 0 {
		printUsage(std.errOut)
		return exitUsage
	}
	command, rest := args[0], args[1:]
	switch command {
	case "hey":
		return runHey(rest, std, transport)
	case "send":
		return runSend(rest, std, transport)
	case "broadcast":
		return runBroadcast(rest, std, transport)
	case "status":
		return runStatus(rest, std, transport)
	case "supervise":
		return runSupervise(rest, std, transport)
	case "version", "--version":
		fmt.Fprintln(std.out, version.Get().String())
		return exitOK
	case "help", "--help", "-h":
		printUsage(std.out)
		return exitOK
	default:
		fmt.Fprintf(std.errOut, "sprite: unknown command %q\n\n", command)
		printUsage(std.errOut)
		return exitUsage
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: sprite <command> [options] [arguments]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Deliver commands to agents running in tmux panes and confirm they ran.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	writeOption(out, "hey <agent> <command...>", "Send a command to one agent")
	writeOption(out, "send [--targets T] <command...>", "Send to a comma list of agents or all (default)")
	writeOption(out, "broadcast [--dry-run] <command...>", "Send to every agent in the roster")
	writeOption(out, "status [--session S]", "Show session health and the roster")
	writeOption(out, "supervise", "Read \"<targets> <command...>\" lines from stdin and keep retrying")
	writeOption(out, "version", "Print version and exit")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Common options:")
	writeOption(out, "--config PATH", "Settings file (env: SPRITE_CONFIG, default: .sprite/config.toml)")
	writeOption(out, "--roster PATH", "Agent roster YAML (default: agents/agents.yaml)")
	writeOption(out, "--socket PATH", "tmux server socket")
	writeOption(out, "--timeout DURATION", "Per-attempt acknowledgement timeout")
	writeOption(out, "--retries N", "Retries after a timed out attempt")
	writeOption(out, "--no-wait", "Do not wait for acknowledgement")
	writeOption(out, "--priority P", "low, normal or high")
	writeOption(out, "--sequential", "Deliver to one target at a time")
	writeOption(out, "--stats", "Print delivery statistics when done")
	writeOption(out, "--metrics", "Print Prometheus metrics when done")
	writeOption(out, "--log-level L", "debug, info, warning or error")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Exit codes:")
	fmt.Fprintln(out, "  0  Every target delivered")
	fmt.Fprintln(out, "  1  Usage or configuration error")
	fmt.Fprintln(out, "  2  At least one target not delivered")
	fmt.Fprintln(out, "  3  No target could be reached")
}

func writeOption(out io.Writer, name, desc string) {
	fmt.Fprintf(out, "  %-36s %s\n", name, desc)
}

func joinCommand(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
