package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"trackerdeploy/internal/app"
)

// dispatch routes the command to the appropriate handler.
func dispatch(ctx context.Context, a *app.App, cmd string, args []string) int {
	switch cmd {
	case "create":
		return createCmd(ctx, a, args)
	case "provision":
		return lifecycleCmd(ctx, args, a.Provision)
	case "configure":
		return lifecycleCmd(ctx, args, a.Configure)
	case "release":
		return lifecycleCmd(ctx, args, a.Release)
	case "run":
		return lifecycleCmd(ctx, args, a.Run)
	case "destroy":
		return confirmedCmd(ctx, args, "destroy", a.Destroy)
	case "purge":
		return confirmedCmd(ctx, args, "purge", a.Purge)
	case "list":
		return listCmd(ctx, a)
	case "show":
		return showCmd(ctx, a, args)
	case "history":
		return historyCmd(a, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		return ExitUsage
	}
}

// operation is the shared shape of the single-environment lifecycle
// operations.
type operation func(ctx context.Context, name string) (*app.StepOutcome, error)

func lifecycleCmd(ctx context.Context, args []string, op operation) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: trackerdeploy <command> <env>")
		return ExitUsage
	}

	result, err := op(ctx, args[0])
	if err != nil {
		return reportError(err)
	}
	reportOutcome(result)
	return ExitSuccess
}

// confirmedCmd wraps destructive operations behind a confirmation prompt,
// skipped with --force.
func confirmedCmd(ctx context.Context, args []string, verb string, op operation) int {
	var name string
	force := false
	for _, arg := range args {
		if arg == "--force" || arg == "-force" {
			force = true
			continue
		}
		if name != "" {
			fmt.Fprintf(os.Stderr, "usage: trackerdeploy %s <env> [--force]\n", verb)
			return ExitUsage
		}
		name = arg
	}
	if name == "" {
		fmt.Fprintf(os.Stderr, "usage: trackerdeploy %s <env> [--force]\n", verb)
		return ExitUsage
	}

	if !force && !confirm(fmt.Sprintf("%s environment %q?", verb, name)) {
		fmt.Println("aborted")
		return ExitFailure
	}

	result, err := op(ctx, name)
	if err != nil {
		return reportError(err)
	}
	reportOutcome(result)
	return ExitSuccess
}

func createCmd(ctx context.Context, a *app.App, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: trackerdeploy create <env> <inputs-file>")
		return ExitUsage
	}

	inputs, err := LoadInputs(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "inputs error: %v\n", err)
		return ExitConfigError
	}

	result, err := a.Create(ctx, args[0], inputs)
	if err != nil {
		return reportError(err)
	}
	reportOutcome(result)
	return ExitSuccess
}

func listCmd(ctx context.Context, a *app.App) int {
	summaries, err := a.List(ctx)
	if err != nil {
		return reportError(err)
	}

	if len(summaries) == 0 {
		fmt.Println("no environments")
		return ExitSuccess
	}

	fmt.Printf("%-20s %-12s %-14s %-16s %s\n", "NAME", "PHASE", "PROVIDER", "ADDRESS", "UPDATED")
	for _, s := range summaries {
		fmt.Printf("%-20s %-12s %-14s %-16s %s\n",
			s.Name, s.Phase, s.Provider, s.Address, s.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return ExitSuccess
}

func showCmd(ctx context.Context, a *app.App, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: trackerdeploy show <env>")
		return ExitUsage
	}

	env, err := a.Show(ctx, args[0])
	if err != nil {
		return reportError(err)
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode error: %v\n", err)
		return ExitFailure
	}
	fmt.Println(string(data))
	return ExitSuccess
}

func historyCmd(a *app.App, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: trackerdeploy history <env>")
		return ExitUsage
	}

	runs, err := a.History().Runs(args[0])
	if err != nil {
		return reportError(err)
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return ExitSuccess
	}

	fmt.Printf("%-20s %-12s %-10s %-22s %10s\n", "STARTED", "OPERATION", "OUTCOME", "ERROR", "DURATION")
	for _, r := range runs {
		fmt.Printf("%-20s %-12s %-10s %-22s %8dms\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Operation, r.Outcome, r.ErrorKind, r.DurationMS)
	}
	return ExitSuccess
}

// reportOutcome prints a successful step result.
func reportOutcome(result *app.StepOutcome) {
	fmt.Printf("%s %s: %s\n", result.Operation, result.Environment, result.Info)
}

// reportError prints a classified failure with its state-preservation note
// and returns the failure exit code.
func reportError(err error) int {
	var classified *app.Error
	if errors.As(err, &classified) {
		fmt.Fprintf(os.Stderr, "error [%s]: %v\n", classified.Kind, classified.Err)
		if classified.StatePreserved {
			fmt.Fprintln(os.Stderr, "local state preserved; fix the cause and re-run the operation")
		}
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return ExitFailure
}

// confirm asks for interactive confirmation on stdin.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
