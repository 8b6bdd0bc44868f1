// Command skein runs programs written in the concatenative language
// described by the executor packages in this module. It is a thin
// urfave/cli/v2 driver: read the source file, tokenize it, hand the
// result to pkg/executor, and report the outcome on the exact
// PRINT/ERROR wire formats the language fixes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/skeinlang/skein/pkg/diag"
	"github.com/skeinlang/skein/pkg/executor"
	"github.com/skeinlang/skein/pkg/lexer"
	"github.com/skeinlang/skein/pkg/token"
)

const version = "0.1.0"

func main() {
	sink := diag.Sink{Out: os.Stdout, Err: os.Stderr}

	app := &cli.App{
		Name:    "skein",
		Usage:   "run programs written in the skein concatenative language",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "execute a source file",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "trace", Usage: "log every executor step at debug level"},
				},
				Action: func(c *cli.Context) error {
					return runFile(c.Args().First(), c.Bool("trace"), sink)
				},
			},
			{
				Name:      "disasm",
				Usage:     "dump a source file's parsed Values in the wire encoding",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					return disasmFile(c.Args().First(), sink)
				},
			},
		},
		// Bare `skein <file>` runs the file directly, matching spec.md's
		// original single-argument contract.
		Action: func(c *cli.Context) error {
			return runFile(c.Args().First(), false, sink)
		},
	}

	if err := app.Run(os.Args); err != nil {
		sink.Error(err)
		os.Exit(1)
	}
}

func runFile(path string, trace bool, sink diag.Sink) error {
	if path == "" {
		fmt.Fprintf(sink.Err, "Usage: %s <source-file>\n\n", os.Args[0])
		os.Exit(1)
	}

	if trace {
		diag.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	values := lexer.Tokenize(string(source))

	m := executor.NewMachine(sink)
	m.Load(values)
	return m.Run(context.Background(), 0)
}

func disasmFile(path string, sink diag.Sink) error {
	if path == "" {
		fmt.Fprintf(sink.Err, "Usage: %s disasm <source-file>\n\n", os.Args[0])
		os.Exit(1)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	values := lexer.Tokenize(string(source))
	return token.Encode(sink.Out, values)
}
