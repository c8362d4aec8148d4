package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alem-hub/alem-economy/internal/application/command"
	"github.com/alem-hub/alem-economy/internal/application/query"
	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
)

func migrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			applied, err := a.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			if applied == 0 {
				printf(cmd.OutOrStdout(), "%s schema is up to date\n", okColor.Sprint("✓"))
				return nil
			}
			printf(cmd.OutOrStdout(), "%s applied %d migration(s)\n", okColor.Sprint("✓"), applied)
			return nil
		},
	}
}

func accountCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}

	var path string
	open := &cobra.Command{
		Use:   "open ACCOUNT_ID",
		Short: "Open an account at the start of the curriculum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			acc, err := a.Commands.Accounts.Open(cmd.Context(), command.OpenAccountCommand{
				AccountID: args[0],
				Path:      curriculum.Path(path),
			})
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s opened %s on path %s at %s\n",
				okColor.Sprint("✓"), acc.ID, acc.Path, acc.Position)
			return nil
		},
	}
	open.Flags().StringVar(&path, "path", "", "Curriculum path (default: the schedule's default path)")
	cmd.AddCommand(open)
	return cmd
}

func balanceCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "balance ACCOUNT_ID",
		Short: "Show balances and progress of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			s, err := a.Summary.Handle(cmd.Context(), query.GetAccountSummaryQuery{AccountID: args[0]})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ACCOUNT\t%s\n", s.AccountID)
			fmt.Fprintf(w, "PATH\t%s\n", s.Path)
			position := s.Position.String()
			if s.CurriculumComplete {
				position += " " + okColor.Sprint("(complete)")
			}
			fmt.Fprintf(w, "POSITION\t%s\n", position)
			fmt.Fprintf(w, "PROGRESS\t%d%%\n", s.ProgressPercent)
			fmt.Fprintf(w, "%s\t%s\n", s.Primary.Currency, s.Primary.Display)
			fmt.Fprintf(w, "%s\t%s\n", s.Legacy.Currency, s.Legacy.Display)
			expected := s.ExpectedBalance.Display
			if s.ExpectedBalance.Amount != s.Primary.Amount {
				expected = warnColor.Sprint(expected)
			}
			fmt.Fprintf(w, "EXPECTED\t%s\n", expected)
			fmt.Fprintf(w, "LESSONS\t%d\n", s.LessonsCompleted)
			fmt.Fprintf(w, "QUIZ\t%d answered, %d%% correct\n", s.QuizAnswered, s.QuizAccuracy)
			fmt.Fprintf(w, "EARNED\t%s\n", s.TotalEarned)
			fmt.Fprintf(w, "SPENT\t%s\n", s.TotalSpent)
			if s.Locked {
				fmt.Fprintf(w, "STATUS\t%s\n", errColor.Sprint("locked"))
			}
			return w.Flush()
		},
	}
}

func historyCmd(e *env) *cobra.Command {
	var (
		currency string
		limit    int
		cursor   int64
	)
	cmd := &cobra.Command{
		Use:   "history ACCOUNT_ID",
		Short: "List ledger entries, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			h, err := a.History.Handle(cmd.Context(), query.GetHistoryQuery{
				AccountID: args[0],
				Currency:  ledger.Currency(currency),
				Limit:     limit,
				Cursor:    cursor,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(h.Entries) == 0 {
				printf(out, "no %s entries\n", h.Currency)
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tTIME\tKIND\tSOURCE\tAMOUNT\tNOTE")
			for _, en := range h.Entries {
				amount := en.Display
				if en.Amount < 0 {
					amount = errColor.Sprint(amount)
				} else {
					amount = okColor.Sprint("+" + amount)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					en.Seq, en.CreatedAt.Format("2006-01-02 15:04"), en.Kind, en.Source, amount, en.Note)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if h.NextCursor > 0 {
				printf(out, "%s\n", dimColor.Sprintf("more: --cursor %s", strconv.FormatInt(h.NextCursor, 10)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&currency, "currency", string(ledger.Primary), "Currency (BUX or POINTS)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Entries per page")
	cmd.Flags().Int64Var(&cursor, "cursor", 0, "Return entries older than this sequence number")
	return cmd
}

func lockCmd(e *env, locked bool) *cobra.Command {
	use, short, verb := "unlock ACCOUNT_ID", "Unlock an account", "unlocked"
	if locked {
		use, short, verb = "lock ACCOUNT_ID", "Lock an account against all mutations", "locked"
	}

	var reason string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.requireActor(); err != nil {
				return err
			}
			a, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			changed, err := a.Commands.Accounts.SetLocked(cmd.Context(), command.SetLockedCommand{
				AccountID: args[0],
				Locked:    locked,
				Actor:     e.actor,
				Reason:    reason,
			})
			if err != nil {
				return err
			}
			if !changed {
				printf(cmd.OutOrStdout(), "%s %s was already %s\n", warnColor.Sprint("!"), args[0], verb)
				return nil
			}
			printf(cmd.OutOrStdout(), "%s %s %s\n", okColor.Sprint("✓"), args[0], verb)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the audit trail")
	return cmd
}
