package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/alem-hub/alem-economy/internal/app"
	"github.com/alem-hub/alem-economy/internal/application/command"
	"github.com/alem-hub/alem-economy/internal/domain/achievement"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
)

// catalogFile is the TOML layout accepted by "achievements import".
//
//	[[achievement]]
//	code = "first-lesson"
//	name = "First Steps"
//	category = "PROGRESS"
//	reward = 4
//	criteria = { type = "LESSONS_COMPLETED", params = { threshold = 1 } }
type catalogFile struct {
	Achievements []catalogEntry `toml:"achievement"`
}

type catalogEntry struct {
	Code        string         `toml:"code"`
	Name        string         `toml:"name"`
	Description string         `toml:"description"`
	Category    string         `toml:"category"`
	Rarity      string         `toml:"rarity"`
	Icon        string         `toml:"icon"`
	Reward      int64          `toml:"reward"`
	ManualOnly  bool           `toml:"manual_only"`
	Hidden      bool           `toml:"hidden"`
	Inactive    bool           `toml:"inactive"`
	Criteria    *criteriaEntry `toml:"criteria"`
}

type criteriaEntry struct {
	Type   string                 `toml:"type"`
	Params map[string]interface{} `toml:"params"`
}

func (c catalogEntry) command() (command.DefineAchievementCommand, error) {
	cmd := command.DefineAchievementCommand{
		Code:        c.Code,
		Name:        c.Name,
		Description: c.Description,
		Category:    achievement.Category(strings.ToUpper(c.Category)),
		Rarity:      achievement.Rarity(strings.ToUpper(c.Rarity)),
		Icon:        c.Icon,
		Reward:      ledger.Amount(c.Reward),
		ManualOnly:  c.ManualOnly,
		Hidden:      c.Hidden,
		Inactive:    c.Inactive,
	}
	if c.Criteria == nil {
		return cmd, nil
	}
	raw, err := json.Marshal(map[string]interface{}{
		"type":   strings.ToUpper(c.Criteria.Type),
		"params": c.Criteria.Params,
	})
	if err != nil {
		return cmd, err
	}
	cmd.Criteria = achievement.DecodeCriteria(raw)
	return cmd, nil
}

// LoadCatalog parses a TOML achievement catalog into define commands.
func LoadCatalog(path string) ([]command.DefineAchievementCommand, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file catalogFile
	md, err := toml.Decode(string(data), &file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse %s: unknown key %s", path, undecoded[0])
	}

	cmds := make([]command.DefineAchievementCommand, 0, len(file.Achievements))
	for i, entry := range file.Achievements {
		cmd, err := entry.command()
		if err != nil {
			return nil, fmt.Errorf("achievement #%d: %w", i+1, err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

func achievementsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "achievements",
		Aliases: []string{"ach"},
		Short:   "Manage the achievement catalog and awards",
	}
	cmd.AddCommand(achievementsListCmd(e))
	cmd.AddCommand(achievementsImportCmd(e))
	cmd.AddCommand(achievementsAwardCmd(e, true))
	cmd.AddCommand(achievementsAwardCmd(e, false))
	return cmd
}

func achievementsListCmd(e *env) *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			list, err := a.Achievements.Catalog(cmd.Context(), activeOnly)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				printf(cmd.OutOrStdout(), "catalog is empty\n")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tCATEGORY\tRARITY\tREWARD")
			for _, d := range list {
				code := d.Code
				if d.Hidden {
					code = dimColor.Sprint(code + " (hidden)")
				}
				reward := d.Reward
				if reward == "" {
					reward = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", code, d.Name, d.Category, d.Rarity, reward)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active achievements")
	return cmd
}

func achievementsImportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE.toml",
		Short: "Create or update achievements from a TOML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := LoadCatalog(args[0])
			if err != nil {
				return err
			}
			a, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			for _, def := range defs {
				saved, err := a.Commands.Achievements.Define(cmd.Context(), def)
				if err != nil {
					return fmt.Errorf("define %q: %w", def.Name, err)
				}
				printf(cmd.OutOrStdout(), "%s %s\n", okColor.Sprint("✓"), saved.Code)
			}
			printf(cmd.OutOrStdout(), "imported %d achievement(s)\n", len(defs))
			return nil
		},
	}
}

func achievementsAwardCmd(e *env, award bool) *cobra.Command {
	use, short := "revoke ACCOUNT_ID CODE", "Revoke an unlocked achievement and claw back its reward"
	if award {
		use, short = "award ACCOUNT_ID CODE", "Award an achievement manually"
	}

	var reason string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.requireActor(); err != nil {
				return err
			}
			a, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			id, err := resolveAchievement(cmd.Context(), a, args[1])
			if err != nil {
				return err
			}

			if award {
				unlocks, err := a.Commands.Achievements.Award(cmd.Context(), command.AwardAchievementCommand{
					AccountID:     args[0],
					AchievementID: id,
					Actor:         e.actor,
					Reason:        reason,
				})
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "%s awarded %s to %s\n", okColor.Sprint("✓"), args[1], args[0])
				printUnlocks(cmd, unlocks)
				return nil
			}

			entry, err := a.Commands.Achievements.Revoke(cmd.Context(), command.RevokeAchievementCommand{
				AccountID:     args[0],
				AchievementID: id,
				Actor:         e.actor,
				Reason:        reason,
			})
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s revoked %s from %s\n", okColor.Sprint("✓"), args[1], args[0])
			if entry != nil {
				printf(cmd.OutOrStdout(), "  %s %s\n", errColor.Sprint("clawback"), entry.Display())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the audit trail")
	return cmd
}

// resolveAchievement accepts either a catalog code or an achievement ID.
func resolveAchievement(ctx context.Context, a *app.App, ref string) (string, error) {
	list, err := a.Achievements.Catalog(ctx, false)
	if err != nil {
		return "", err
	}
	for _, d := range list {
		if d.Code == ref || d.ID == ref {
			return d.ID, nil
		}
	}
	return "", fmt.Errorf("achievement %q not found", ref)
}
