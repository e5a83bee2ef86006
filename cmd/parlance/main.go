// Command parlance is a small command line client for the Parlance API.
//
// Credentials and settings come from PARLANCE_* environment variables, a
// .env file in the working directory, and optionally a YAML file given with
// --config.
//
//	parlance auth check
//	parlance get /v1/conversations
//	parlance interact --conversation conv_123 --text "hello"
//	parlance interact --conversation conv_123 --audio question.wav
package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
)

// exitFunc is swapped in tests.
var exitFunc = os.Exit

// Config holds the process streams used by the commands.
type Config struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultConfig returns a Config bound to the process streams.
func DefaultConfig() *Config {
	return &Config{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], DefaultConfig()); err != nil {
		fatal("%v", err)
	}
}

// run executes the command line in args, without the program name.
func run(ctx context.Context, args []string, cfg *Config) error {
	root := newRootCmd(cfg)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func fatal(format string, args ...any) {
	color.New(color.FgRed).Fprintf(os.Stderr, format+"\n", args...)
	exitFunc(1)
}
