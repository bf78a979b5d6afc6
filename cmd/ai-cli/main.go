// Package main provides the ai-cli command: device-flow login plus chat, tool
// and agent modes against an OpenAI-compatible model endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/minhyannv/ai-cli/pkg/ui"
)

// main is the program entry point.
func main() {
	// Ctrl+C outside a raw-mode menu ends the process immediately.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		_, _ = fmt.Fprintln(os.Stderr, "\n"+ui.Warn("Cancelled"))
		os.Exit(0)
	}()

	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	os.Exit(execute(context.Background(), app, os.Args[1:]))
}

// execute runs the command tree and maps the outcome to an exit code.
func execute(ctx context.Context, app *App, args []string) int {
	root := newRootCmd(app)
	root.SetArgs(args)
	root.SetIn(app.in)
	root.SetOut(app.out)
	root.SetErr(app.errOut)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ui.ErrCancelled), errors.Is(err, context.Canceled):
		ui.Warnf(app.out, "Cancelled")
		return 0
	default:
		_, _ = fmt.Fprintln(app.errOut, ui.Box("Error", ui.Error(err.Error()), ui.ColorError))
		return 1
	}
}
