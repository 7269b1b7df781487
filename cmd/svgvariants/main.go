// Command svgvariants generates the variations of the SVG templates
// and the website files listing them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/benoitkugler/svgvariants/config"
)

func main() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, environment{
		fs:     osfs.New("/"),
		wd:     wd,
		vars:   config.Environ(),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}, os.Args[1:])
	stop()
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes the command line `args`.
func run(ctx context.Context, env environment, args []string) error {
	root := newRootCommand(env)
	root.SetArgs(args)
	root.SetOut(env.stdout)
	root.SetErr(env.stderr)
	return root.ExecuteContext(ctx)
}

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// usageError is returned for invalid flags or arguments.
func usageError(err error) error {
	return &ExitError{Code: 2, Message: err.Error()}
}
