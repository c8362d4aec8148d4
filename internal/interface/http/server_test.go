package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-economy/internal/application/command"
	"github.com/alem-hub/alem-economy/internal/application/query"
	"github.com/alem-hub/alem-economy/internal/application/saga"
	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/achievement"
	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/infrastructure/metrics"
	"github.com/alem-hub/alem-economy/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/alem-economy/internal/infrastructure/scheduler"
	"github.com/alem-hub/alem-economy/internal/interface/http/handlers"
)

type staticJobs []scheduler.JobInfo

func (j staticJobs) ListJobs() []scheduler.JobInfo { return j }

type fixture struct {
	server   *Server
	commands *command.Handlers
	health   *handlers.CompositeHealthChecker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "economy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := sqlite.NewStore(db)

	var specs []curriculum.TrackSpec
	for _, track := range curriculum.Tracks() {
		specs = append(specs, curriculum.TrackSpec{
			Track:         track,
			Path:          curriculum.DefaultPath,
			UnitsPerStage: []int{2, 2},
			PerUnit:       curriculum.QuarterRate(4),
			StageBonus:    2,
			TrackBonus:    8,
		})
	}
	schedule, err := curriculum.NewSchedule(curriculum.DefaultPath, specs...)
	require.NoError(t, err)
	calc := curriculum.NewCalculator(schedule)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	exec := command.NewExecutor(store, uow.NewKeyedMutex(),
		command.WithLogger(logger),
		command.WithMetrics(metrics.New(reg)),
	)
	flow := saga.NewAchievementFlow(achievement.NewEvaluator(calc, logger), logger)
	cmds := command.NewHandlers(exec, calc, flow, command.Settings{
		Conversion: ledger.ConversionRule{LegacyCost: 10, LessonThreshold: 5, PrimaryCredit: ledger.Units(1)},
	})

	health := handlers.NewCompositeHealthChecker("test")
	health.AddCheck("database", handlers.NewPingCheck(store))

	srv := NewServer(DefaultConfig(), Dependencies{
		Summary:      query.NewGetAccountSummaryHandler(store, calc),
		History:      query.NewGetHistoryHandler(store),
		Achievements: query.NewListAchievementsHandler(store),
		Health:       health,
		Jobs: staticJobs{{
			Name:     "evaluate_achievements",
			Schedule: "@every 1h0m0s",
			RunCount: 3,
			NextRun:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		}},
		Gatherer: reg,
		Logger:   logger,
	})
	return &fixture{server: srv, commands: cmds, health: health}
}

func (f *fixture) get(t *testing.T, path string, out interface{}) int {
	t.Helper()
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.commands.Accounts.Open(ctx, command.OpenAccountCommand{AccountID: "acc-1"})
	require.NoError(t, err)
	_, err = f.commands.Achievements.Define(ctx, command.DefineAchievementCommand{
		Code:     "first-lesson",
		Name:     "First Lesson",
		Category: achievement.CategoryProgress,
		Criteria: achievement.LessonsCompleted{Threshold: 1},
	})
	require.NoError(t, err)
	_, err = f.commands.Achievements.Define(ctx, command.DefineAchievementCommand{
		Code:     "ten-lessons",
		Name:     "Ten Lessons",
		Category: achievement.CategoryProgress,
		Criteria: achievement.LessonsCompleted{Threshold: 10},
	})
	require.NoError(t, err)
	_, err = f.commands.CompleteLesson.Handle(ctx, command.CompleteLessonCommand{AccountID: "acc-1"})
	require.NoError(t, err)
}

func TestProbes(t *testing.T) {
	f := newFixture(t)

	var live map[string]string
	assert.Equal(t, http.StatusOK, f.get(t, "/livez", &live))
	assert.Equal(t, "alive", live["status"])

	var status handlers.HealthStatus
	assert.Equal(t, http.StatusOK, f.get(t, "/healthz", &status))
	assert.True(t, status.Healthy)
	assert.Equal(t, "test", status.Version)

	f.health.AddOptionalCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	assert.Equal(t, http.StatusOK, f.get(t, "/readyz", nil))
	f.get(t, "/healthz", &status)
	assert.Equal(t, "Degraded: redis", status.Message)

	f.health.AddCheck("ledger", func(context.Context) error { return errors.New("locked") })
	assert.Equal(t, http.StatusServiceUnavailable, f.get(t, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, f.get(t, "/readyz", nil))
}

func TestAccountSummary(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var dto query.AccountSummaryDTO
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/accounts/acc-1", &dto))
	assert.Equal(t, "acc-1", dto.AccountID)
	assert.Equal(t, int64(1), dto.LessonsCompleted)
	assert.Equal(t, curriculum.Position{Track: curriculum.White, Stage: 1, Unit: 2}, dto.Position)
	assert.Equal(t, "BUX", dto.Primary.Currency)
	assert.Equal(t, dto.ExpectedBalance.Amount, dto.Primary.Amount)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/v1/accounts/missing", &errResp))
	assert.Equal(t, "not_found", errResp.Error.Code)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var page query.HistoryDTO
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/accounts/acc-1/history?limit=10", &page))
	assert.Equal(t, "BUX", page.Currency)
	require.NotEmpty(t, page.Entries)
	assert.Equal(t, string(ledger.KindEarn), page.Entries[len(page.Entries)-1].Kind)

	var legacy query.HistoryDTO
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/accounts/acc-1/history?currency=POINTS", &legacy))
	assert.Empty(t, legacy.Entries)

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/accounts/acc-1/history?currency=GOLD", nil))
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/accounts/acc-1/history?limit=ten", nil))
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/v1/accounts/nobody/history", nil))
}

func TestAchievements(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var all struct {
		Achievements []query.AchievementDTO `json:"achievements"`
	}
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/accounts/acc-1/achievements", &all))
	require.Len(t, all.Achievements, 2)

	var unlocked struct {
		Achievements []query.AchievementDTO `json:"achievements"`
	}
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/accounts/acc-1/achievements?unlocked=true", &unlocked))
	require.Len(t, unlocked.Achievements, 1)
	assert.Equal(t, "first-lesson", unlocked.Achievements[0].Code)
	assert.True(t, unlocked.Achievements[0].Unlocked)

	var catalog struct {
		Achievements []query.AchievementDTO `json:"achievements"`
	}
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/achievements?active=true", &catalog))
	assert.Len(t, catalog.Achievements, 2)
}

func TestJobsAndMetrics(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var jobs struct {
		Jobs []jobDTO `json:"jobs"`
	}
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/jobs", &jobs))
	require.Len(t, jobs.Jobs, 1)
	assert.Equal(t, "evaluate_achievements", jobs.Jobs[0].Name)
	assert.Equal(t, "2026-03-01T10:00:00Z", jobs.Jobs[0].NextRun)
	assert.Empty(t, jobs.Jobs[0].LastRun)

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "economy_ledger_entries_total")
	assert.Contains(t, rec.Body.String(), "economy_achievements_unlocked_total")
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	var errResp ErrorResponse
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/v2/anything", &errResp))
	assert.Equal(t, "not_found", errResp.Error.Code)
}
