package cli

import (
	"fmt"
	"math/big"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alem-hub/alem-economy/internal/application/command"
	"github.com/alem-hub/alem-economy/internal/application/saga"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
)

// parseAmount converts a display value such as "2.25" into smallest units.
func parseAmount(cur ledger.Currency, s string) (ledger.Amount, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt64(cur.Scale()))
	if !r.IsInt() || !r.Num().IsInt64() {
		return 0, fmt.Errorf("amount %q is not a whole number of %s units", s, cur)
	}
	return ledger.Amount(r.Num().Int64()), nil
}

func adjustCmd(e *env) *cobra.Command {
	var (
		currency string
		reason   string
	)
	cmd := &cobra.Command{
		Use:   "adjust ACCOUNT_ID DELTA",
		Short: "Apply a signed balance correction",
		Long: `Apply a signed balance correction in display units.

  ledgerctl adjust acc-1 -- -2.25 --reason "double payout"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.requireActor(); err != nil {
				return err
			}
			cur, err := ledger.ParseCurrency(currency)
			if err != nil {
				return err
			}
			delta, err := parseAmount(cur, args[1])
			if err != nil {
				return err
			}
			a, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Commands.Balances.Adjust(cmd.Context(), command.AdjustBalanceCommand{
				AccountID: args[0],
				Currency:  cur,
				Delta:     delta,
				Actor:     e.actor,
				Reason:    reason,
			})
			if err != nil {
				return err
			}
			printBalanceChange(cmd, cur, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&currency, "currency", string(ledger.Primary), "Currency (BUX or POINTS)")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded on the entry (required)")
	return cmd
}

func grantCmd(e *env) *cobra.Command {
	var (
		note   string
		source string
	)
	cmd := &cobra.Command{
		Use:   "grant ACCOUNT_ID POINTS",
		Short: "Grant legacy points",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.requireActor(); err != nil {
				return err
			}
			points, err := parseAmount(ledger.Legacy, args[1])
			if err != nil {
				return err
			}
			a, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Commands.Balances.GrantLegacy(cmd.Context(), command.GrantLegacyCommand{
				AccountID: args[0],
				Points:    points,
				Source:    ledger.Source(strings.ToUpper(source)),
				Actor:     e.actor,
				Note:      note,
			})
			if err != nil {
				return err
			}
			printBalanceChange(cmd, ledger.Legacy, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Note recorded on the entry")
	cmd.Flags().StringVar(&source, "source", string(ledger.SourceAdmin), "ADMIN or IMPORT")
	return cmd
}

func printBalanceChange(cmd *cobra.Command, cur ledger.Currency, res *command.BalanceChangeResult) {
	out := cmd.OutOrStdout()
	printf(out, "%s %s %s, balance %s\n",
		okColor.Sprint("✓"), res.Entry.Kind, res.Entry.Display(), cur.Format(res.Balance))
	printUnlocks(cmd, res.Unlocked)
}

func printUnlocks(cmd *cobra.Command, unlocks []saga.Unlock) {
	for _, u := range unlocks {
		line := fmt.Sprintf("unlocked %s", u.Achievement.Code)
		if u.Reward != nil {
			line += " (+" + u.Reward.Display() + ")"
		}
		printf(cmd.OutOrStdout(), "  %s %s\n", warnColor.Sprint("★"), line)
	}
}

func reconcileCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile ACCOUNT_ID",
		Short: "Rebuild cached balances from the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			results, err := a.Commands.Reconcile.Handle(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CURRENCY\tCACHED\tLEDGER\tSTATUS")
			for _, r := range results {
				cached := "-"
				if r.HadCache {
					cached = r.Currency.Format(r.Cached)
				}
				status := okColor.Sprint("ok")
				switch {
				case r.Drifted():
					status = errColor.Sprint("drift repaired")
				case !r.HadCache:
					status = warnColor.Sprint("cache created")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Currency, cached, r.Currency.Format(r.Actual), status)
			}
			return w.Flush()
		},
	}
}

func sweepCmd(e *env) *cobra.Command {
	jobs := map[string]string{
		"evaluate":  "evaluate_achievements",
		"reconcile": "reconcile_balances",
	}
	return &cobra.Command{
		Use:       "sweep evaluate|reconcile",
		Short:     "Run a background sweep over all accounts once",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"evaluate", "reconcile"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name, ok := jobs[args[0]]
			if !ok {
				return fmt.Errorf("unknown sweep %q (want evaluate or reconcile)", args[0])
			}
			a, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			sched, err := a.NewScheduler()
			if err != nil {
				return err
			}
			res, err := sched.RunNow(cmd.Context(), name)
			if err != nil {
				return err
			}
			if !res.Success {
				printf(cmd.OutOrStdout(), "%s %s failed after %s\n", errColor.Sprint("✗"), name, res.Duration.Round(time.Millisecond))
				return res.Error
			}
			printf(cmd.OutOrStdout(), "%s %s finished in %s\n", okColor.Sprint("✓"), name, res.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
