// Command cropfit drives the thumbnail service from the shell: requests are
// read as JSON on stdin and results written as JSON on stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cropfit/internal/config"
	"cropfit/internal/observability"
	"cropfit/internal/services"
)

const usage = `usage: cropfit <command> [flags]

commands:
  reconcile    fit the thumbs of one image, or of many with --batch
  unlink       detach an auto crop from its reference
  relink       derive a thumb from a reference again
  inspect      check uploaded images against the minimum dimensions
  sizes        describe the configured size groups
  flush-cache  drop every cached fit
  health       check the size registry and the fit cache
`

// Exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env file: %v\n", err)
		os.Exit(exitError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitError
	}

	container, err := services.NewContainer(ctx, cfg, observability.LoadConfig())
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize services container: %v\n", err)
		return exitError
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Close(shutdownCtx); err != nil {
			container.Logger().Warn(shutdownCtx).Err(err).Msg("shutdown incomplete")
		}
	}()

	env := &env{
		container: container,
		stdin:     stdin,
		stdout:    stdout,
		stderr:    stderr,
	}
	if err := cmd(ctx, env, args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			return exitUsage
		}
		container.Logger().Error(ctx).Err(err).Str("command", args[0]).Msg("command failed")
		fmt.Fprintf(stderr, "cropfit %s: %v\n", args[0], err)
		return exitError
	}
	return exitOK
}
