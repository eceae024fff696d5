package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/botfleet/registry/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testPool connects to TEST_DATABASE_URL and migrates a throwaway schema that
// is dropped when the test ends. Without the variable the test is skipped.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres store tests")
	}
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	schema := "botreg_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool, "../../migrations", zap.NewNop()))
	// a second pass must be a no-op
	require.NoError(t, Migrate(ctx, pool, "../../migrations", zap.NewNop()))
	return pool
}

func newBot(name, city string) *domain.Bot {
	cfg := domain.DefaultBotConfig()
	cfg.Name = name
	cfg.CityName = city
	cfg.CountryCode = "NL"
	cfg.BotToken = "tok"
	cfg.TelegramChatID = "@" + name
	return &domain.Bot{Config: cfg, Status: domain.BotStatusIdle}
}

func dbNow(t *testing.T, pool *pgxpool.Pool) time.Time {
	t.Helper()
	var now time.Time
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT clock_timestamp()`).Scan(&now))
	return now
}

func TestPostgresBotStore_Lifecycle(t *testing.T) {
	pool := testPool(t)
	bots := NewBotStore(pool)
	runs := NewRunStore(pool)
	ctx := context.Background()

	b := newBot("utrecht", "Utrecht")
	require.NoError(t, bots.Create(ctx, b))
	assert.NotEqual(t, uuid.Nil, b.ID)

	started, err := bots.TryStartRun(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BotStatusRunning, started.Status)
	require.NotNil(t, started.RunStartedAt)

	_, err = bots.TryStartRun(ctx, b.ID)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = bots.TryStartRun(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	msg := "feed offline"
	got, err := bots.CompleteRun(ctx, &domain.Run{
		BotID: b.ID, RunTime: time.Now(), Processed: 4, Posted: 2, Duration: 1.5,
		Status: domain.RunStatusError, ErrorMessage: &msg,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BotStatusError, got.Status)
	assert.Equal(t, int64(2), got.TotalPosts)
	assert.Nil(t, got.RunStartedAt)

	list, err := runs.ListForBot(ctx, b.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, msg, *list[0].ErrorMessage)

	require.NoError(t, bots.Delete(ctx, b.ID))
	all, err := runs.AllForBot(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPostgresBotStore_TryStartRunConcurrent(t *testing.T) {
	pool := testPool(t)
	bots := NewBotStore(pool)
	ctx := context.Background()

	b := newBot("delft", "Delft")
	require.NoError(t, bots.Create(ctx, b))

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, conflict := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := bots.TryStartRun(ctx, b.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrConflict):
				conflict++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, n-1, conflict)
}

func TestPostgresBotStore_MarkStale(t *testing.T) {
	pool := testPool(t)
	bots := NewBotStore(pool)
	ctx := context.Background()

	stuck := newBot("stuck", "Leiden")
	idle := newBot("idle", "Gouda")
	require.NoError(t, bots.Create(ctx, stuck))
	require.NoError(t, bots.Create(ctx, idle))
	_, err := bots.TryStartRun(ctx, stuck.ID)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	cutoff := dbNow(t, pool)

	// a config edit after the run started must not hide it from the sweep
	cfg := stuck.Config
	cfg.PostIntervalMinutes = 45
	_, err = bots.UpdateConfig(ctx, stuck.ID, cfg)
	require.NoError(t, err)

	ids, err := bots.MarkStale(ctx, cutoff, "run timed out")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{stuck.ID}, ids)

	got, err := bots.GetByID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BotStatusError, got.Status)
	assert.Nil(t, got.RunStartedAt)

	ids, err = bots.MarkStale(ctx, dbNow(t, pool), "run timed out")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPostgresRunStore_AppendAndAggregate(t *testing.T) {
	pool := testPool(t)
	bots := NewBotStore(pool)
	runs := NewRunStore(pool)
	ctx := context.Background()

	a := newBot("a", "Breda")
	b := newBot("b", "Assen")
	require.NoError(t, bots.Create(ctx, a))
	require.NoError(t, bots.Create(ctx, b))

	base := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	for i, st := range []domain.RunStatus{domain.RunStatusSuccess, domain.RunStatusError, domain.RunStatusSuccess} {
		require.NoError(t, runs.Append(ctx, &domain.Run{
			BotID: a.ID, RunTime: base.Add(time.Duration(i) * time.Minute), Processed: 2, Posted: 1, Status: st,
		}))
	}
	require.NoError(t, runs.Append(ctx, &domain.Run{BotID: b.ID, RunTime: base, Status: domain.RunStatusError}))

	err := runs.Append(ctx, &domain.Run{BotID: uuid.New(), RunTime: base, Status: domain.RunStatusSuccess})
	assert.ErrorIs(t, err, ErrNotFound)

	recent, err := runs.ListForBot(ctx, a.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, base.Add(2*time.Minute).Equal(recent[0].RunTime))

	aggs, err := runs.AggregateByBot(ctx)
	require.NoError(t, err)
	byBot := map[uuid.UUID]domain.RunAggregate{}
	for _, agg := range aggs {
		byBot[agg.BotID] = agg
	}
	assert.Equal(t, domain.RunAggregate{BotID: a.ID, TotalRuns: 3, SuccessfulRuns: 2}, byBot[a.ID])
	assert.Equal(t, domain.RunAggregate{BotID: b.ID, TotalRuns: 1, SuccessfulRuns: 0}, byBot[b.ID])
}

func TestPostgresServiceStore(t *testing.T) {
	pool := testPool(t)
	s := NewServiceStore(pool)
	ctx := context.Background()

	svc := &domain.Service{Name: "scraper", URL: "http://scraper", Status: domain.ServiceStatusActive}
	require.NoError(t, s.Create(ctx, svc))

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.Heartbeat(ctx, svc.ID, domain.ServiceStatusInactive))
	assert.ErrorIs(t, s.Heartbeat(ctx, uuid.New(), domain.ServiceStatusActive), ErrNotFound)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.ServiceStatusInactive, list[0].Status)
	require.NotNil(t, list[0].LastPing)
	assert.True(t, list[0].LastPing.After(list[0].CreatedAt), "%v vs %v", list[0].LastPing, list[0].CreatedAt)
}
