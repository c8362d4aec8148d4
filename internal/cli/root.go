// Package cli implements ledgerctl, the admin tool for the economy store.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/alem-hub/alem-economy/internal/app"
)

// Opener builds the application graph on first use.
type Opener func(ctx context.Context) (*app.App, error)

// env is shared by all subcommands of one invocation.
type env struct {
	open  Opener
	app   *app.App
	actor string
}

func (e *env) get(ctx context.Context) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	a, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	e.app = a
	return a, nil
}

func (e *env) close() {
	if e.app != nil {
		e.app.Close()
		e.app = nil
	}
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
	dimColor  = color.New(color.Faint)
)

// Execute runs ledgerctl with args and releases the application afterwards.
func Execute(ctx context.Context, open Opener, args []string, stdout, stderr io.Writer) error {
	e := &env{open: open}
	defer e.close()

	root := newRootCmd(e)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Administer the economy ledger",
		Long: `ledgerctl inspects and corrects accounts, balances and achievements.

Every mutation is attributed to --actor (default: $USER) and goes through the
same command handlers as the worker, so locks, audit records and
achievement evaluation behave identically.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().StringVar(&e.actor, "actor", os.Getenv("USER"), "Name recorded in the audit trail")
	root.PersistentFlags().Bool("no-color", false, "Disable colored output")

	root.AddCommand(migrateCmd(e))
	root.AddCommand(accountCmd(e))
	root.AddCommand(balanceCmd(e))
	root.AddCommand(historyCmd(e))
	root.AddCommand(lockCmd(e, true))
	root.AddCommand(lockCmd(e, false))
	root.AddCommand(adjustCmd(e))
	root.AddCommand(grantCmd(e))
	root.AddCommand(reconcileCmd(e))
	root.AddCommand(sweepCmd(e))
	root.AddCommand(achievementsCmd(e))
	return root
}

func (e *env) requireActor() error {
	if e.actor == "" {
		return fmt.Errorf("--actor is required")
	}
	return nil
}

func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}
