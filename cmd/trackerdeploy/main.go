// Package main provides the trackerdeploy binary: a deployment orchestrator
// for the torrust tracker stack.
//
// Usage:
//
//	trackerdeploy [flags] <command> [args...]
//
// Commands:
//
//	create <env> <inputs-file>  - Create an environment from an inputs file
//	provision <env>             - Provision the environment's instance
//	configure <env>             - Install the container runtime on the instance
//	release <env>               - Render and transfer deployment descriptors
//	run <env>                   - Start the stack and validate health
//	destroy <env> [--force]     - Tear down the instance
//	purge <env> [--force]       - Remove all local state for a destroyed environment
//	list                        - List environments
//	show <env>                  - Show the full environment record
//	history <env>               - Show recorded runs for an environment
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"trackerdeploy/internal/app"
)

// Exit codes
const (
	ExitSuccess     = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitConfigError = 3
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("trackerdeploy %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: trackerdeploy [flags] <command> [args...]")
		return ExitUsage
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	logger := SetupLogger(cfg)
	logger.Debug("starting trackerdeploy", "version", Version, "config", *configPath)

	application, err := app.New(app.Config{
		StateDir:     cfg.StateDir,
		BuildDir:     cfg.BuildDir,
		ReadyTimeout: cfg.ReadyTimeout,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup error: %v\n", err)
		return ExitConfigError
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return dispatch(ctx, application, args[0], args[1:])
}
