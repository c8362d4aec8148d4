package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-economy/config"
	"github.com/alem-hub/alem-economy/internal/app"
	"github.com/alem-hub/alem-economy/internal/domain/achievement"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/pkg/logger"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func testOpener(t *testing.T) Opener {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "economy.db")
	return func(ctx context.Context) (*app.App, error) {
		cfg := &config.Config{
			App: config.AppConfig{Environment: config.EnvDevelopment, Version: "test", Location: time.UTC},
			Database: config.DatabaseConfig{
				Driver:      config.DriverSQLite,
				SQLitePath:  dbPath,
				AutoMigrate: true,
			},
			Redis: config.RedisConfig{Disabled: true},
			Economy: config.EconomyConfig{
				ConversionLegacyCost:      10,
				ConversionLessonThreshold: 10,
				ConversionCredit:          1,
			},
			Scheduler: config.SchedulerConfig{
				EvaluateSchedule:  "1h",
				ReconcileSchedule: "0 3 * * *",
				Concurrency:       2,
				BatchSize:         10,
				JobTimeout:        time.Minute,
				MaxFailureRate:    0.5,
			},
		}
		return app.New(ctx, cfg, logger.Discard())
	}
}

func run(t *testing.T, open Opener, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Execute(context.Background(), open, append([]string{"--actor", "ops"}, args...), &out, &errOut)
	return out.String(), err
}

func mustRun(t *testing.T, open Opener, args ...string) string {
	t.Helper()
	out, err := run(t, open, args...)
	require.NoError(t, err, out)
	return out
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		cur     ledger.Currency
		in      string
		want    ledger.Amount
		wantErr bool
	}{
		{ledger.Primary, "1", 4, false},
		{ledger.Primary, "2.25", 9, false},
		{ledger.Primary, "-0.75", -3, false},
		{ledger.Primary, "0.1", 0, true},
		{ledger.Legacy, "25", 25, false},
		{ledger.Legacy, "2.5", 0, true},
		{ledger.Primary, "abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.cur)+" "+tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.cur, tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccountLifecycle(t *testing.T) {
	open := testOpener(t)

	out := mustRun(t, open, "migrate")
	assert.Contains(t, out, "schema is up to date")

	out = mustRun(t, open, "account", "open", "acc-1")
	assert.Contains(t, out, "opened acc-1 on path core at WHITE/1/1")

	out = mustRun(t, open, "grant", "acc-1", "25", "--note", "import batch")
	assert.Contains(t, out, "GRANT 25, balance 25")

	out = mustRun(t, open, "adjust", "acc-1", "2.25", "--reason", "missed payout")
	assert.Contains(t, out, "ADJUST 2.25, balance 2.25")

	_, err := run(t, open, "adjust", "acc-1", "1")
	assert.Error(t, err, "reason is required")

	out = mustRun(t, open, "balance", "acc-1")
	assert.Contains(t, out, "WHITE/1/1")
	assert.Contains(t, out, "2.25")
	assert.Contains(t, out, "25")

	out = mustRun(t, open, "history", "acc-1")
	assert.Contains(t, out, "ADJUST")
	assert.Contains(t, out, "+2.25")

	out = mustRun(t, open, "history", "acc-1", "--currency", "POINTS")
	assert.Contains(t, out, "GRANT")

	out = mustRun(t, open, "lock", "acc-1", "--reason", "fraud review")
	assert.Contains(t, out, "acc-1 locked")

	_, err = run(t, open, "grant", "acc-1", "5")
	assert.Error(t, err, "locked accounts reject grants")

	out = mustRun(t, open, "lock", "acc-1")
	assert.Contains(t, out, "already locked")

	out = mustRun(t, open, "unlock", "acc-1")
	assert.Contains(t, out, "acc-1 unlocked")

	out = mustRun(t, open, "reconcile", "acc-1")
	assert.Contains(t, out, "BUX")
	assert.Contains(t, out, "POINTS")
	assert.NotContains(t, out, "drift repaired")

	out = mustRun(t, open, "sweep", "reconcile")
	assert.Contains(t, out, "reconcile_balances finished")

	_, err = run(t, open, "sweep", "nightly")
	assert.Error(t, err)
}

func TestUnknownAccount(t *testing.T) {
	open := testOpener(t)

	_, err := run(t, open, "balance", "ghost")
	assert.Error(t, err)

	_, err = run(t, open, "reconcile", "ghost")
	assert.Error(t, err)
}

const catalogTOML = `
[[achievement]]
code = "first-lesson"
name = "First Steps"
category = "progress"
reward = 4
criteria = { type = "LESSONS_COMPLETED", params = { threshold = 1 } }

[[achievement]]
code = "helper"
name = "Helper"
category = "SPECIAL"
rarity = "RARE"
reward = 8
manual_only = true

[[achievement]]
name = "Yellow Belt"
category = "PROGRESS"
hidden = true
criteria = { type = "BELT_REACHED", params = { belt = "YELLOW" } }
`

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadCatalog(t *testing.T) {
	defs, err := LoadCatalog(writeCatalog(t, catalogTOML))
	require.NoError(t, err)
	require.Len(t, defs, 3)

	assert.Equal(t, achievement.Category("PROGRESS"), defs[0].Category)
	assert.Equal(t, achievement.LessonsCompleted{Threshold: 1}, defs[0].Criteria)
	assert.Equal(t, ledger.Amount(4), defs[0].Reward)

	assert.True(t, defs[1].ManualOnly)
	assert.Nil(t, defs[1].Criteria)

	assert.Empty(t, defs[2].Code, "code is derived on define")
	assert.Equal(t, achievement.BeltReached{Belt: "YELLOW"}, defs[2].Criteria)

	_, err = LoadCatalog(writeCatalog(t, "[[achievement]]\nnmae = \"typo\"\n"))
	assert.Error(t, err)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestAchievements(t *testing.T) {
	open := testOpener(t)
	path := writeCatalog(t, catalogTOML)

	out := mustRun(t, open, "achievements", "import", path)
	assert.Contains(t, out, "imported 3 achievement(s)")
	assert.Contains(t, out, "yellow-belt")

	// Import is an upsert by code.
	mustRun(t, open, "achievements", "import", path)

	out = mustRun(t, open, "achievements", "list")
	assert.Contains(t, out, "first-lesson")
	assert.Contains(t, out, "helper")
	assert.Contains(t, out, "yellow-belt (hidden)")

	mustRun(t, open, "account", "open", "acc-1")

	out = mustRun(t, open, "achievements", "award", "acc-1", "helper", "--reason", "mentoring")
	assert.Contains(t, out, "awarded helper to acc-1")
	assert.Contains(t, out, "unlocked helper (+2.00)")

	_, err := run(t, open, "achievements", "award", "acc-1", "helper")
	assert.Error(t, err, "already unlocked")

	_, err = run(t, open, "ach", "award", "acc-1", "no-such-code")
	assert.Error(t, err)

	out = mustRun(t, open, "achievements", "revoke", "acc-1", "helper")
	assert.Contains(t, out, "revoked helper from acc-1")
	assert.Contains(t, out, "clawback -2.00")

	out = mustRun(t, open, "balance", "acc-1")
	assert.Contains(t, out, "0.00")
}

func TestMissingActor(t *testing.T) {
	open := testOpener(t)
	var out, errOut bytes.Buffer
	err := Execute(context.Background(), open, []string{"--actor", "", "lock", "acc-1"}, &out, &errOut)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--actor is required")
}
