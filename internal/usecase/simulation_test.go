package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tradyxa/internal/domain/models"
	"Tradyxa/internal/repository"
	pkgcache "Tradyxa/pkg/cache"
	"Tradyxa/pkg/logger"
	"Tradyxa/pkg/queue"
)

type simFixture struct {
	sim    *SimulationService
	jobs   *repository.CacheJobStore
	cache  *memCache
	events *memEvents
	queue  *queue.MemoryQueue
}

func newSimFixture(t *testing.T, start bool) *simFixture {
	t.Helper()
	backend := pkgcache.NewMemoryCache()
	t.Cleanup(func() { _ = backend.Close() })

	f := &simFixture{
		jobs:   repository.NewCacheJobStore(backend),
		cache:  newMemCache(),
		events: &memEvents{},
		queue:  queue.NewMemoryQueue(logger.Nop(), &queue.QueueConfig{Workers: 2, QueueSize: 8}),
	}
	tickers := NewTickerService(newPipeline(newMemDocs()), WithCache(f.cache, time.Minute))
	f.sim = NewSimulationService(SimulationConfig{StepDelay: 5 * time.Millisecond, Retention: time.Hour},
		f.jobs, f.queue, tickers, f.events, logger.Nop())
	f.queue.RegisterJob(f.sim)
	if start {
		require.NoError(t, f.queue.Start())
		t.Cleanup(func() { _ = f.queue.Stop(context.Background()) })
	}
	return f
}

func (f *simFixture) status(t *testing.T, id string) *models.SimulationJob {
	job, err := f.sim.Status(context.Background(), id)
	require.NoError(t, err)
	return job
}

func TestSimulationRunsToCompletion(t *testing.T) {
	f := newSimFixture(t, true)
	ctx := context.Background()
	f.cache.Set(ctx, "basic:TCS", &models.TickerSnapshot{}, time.Minute)
	f.cache.Set(ctx, "full:TCS", &models.TickerSnapshot{}, time.Minute)

	job, err := f.sim.Start(ctx, "tcs")
	require.NoError(t, err)
	assert.Regexp(t, `^sim_TCS_\d+-[0-9a-f]{8}$`, job.JobID)
	assert.Equal(t, models.JobPending, job.Status)
	assert.Equal(t, "TCS", job.Ticker)

	assert.Eventually(t, func() bool {
		return f.status(t, job.JobID).Status == models.JobCompleted
	}, 2*time.Second, 5*time.Millisecond)

	done := f.status(t, job.JobID)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, "Simulation completed", done.Message)
	assert.False(t, f.cache.has("basic:TCS"))
	assert.False(t, f.cache.has("full:TCS"))
	assert.Equal(t, []string{models.EventSimulationCompleted}, f.events.types())
}

func TestSimulationRunsOfOneTickerAreSerialised(t *testing.T) {
	f := newSimFixture(t, true)
	ctx := context.Background()

	a, err := f.sim.Start(ctx, "INFY")
	require.NoError(t, err)
	b, err := f.sim.Start(ctx, "INFY")
	require.NoError(t, err)
	require.NotEqual(t, a.JobID, b.JobID)

	assert.Eventually(t, func() bool {
		return f.status(t, a.JobID).Done() && f.status(t, b.JobID).Done()
	}, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, models.JobCompleted, f.status(t, a.JobID).Status)
	assert.Equal(t, models.JobCompleted, f.status(t, b.JobID).Status)
}

func TestSimulationStartErrors(t *testing.T) {
	f := newSimFixture(t, false)

	_, err := f.sim.Start(context.Background(), "bad ticker")
	assert.ErrorIs(t, err, ErrInvalidTicker)

	// queue not running
	_, err = f.sim.Start(context.Background(), "TCS")
	require.Error(t, err)
	f.sim.mu.Lock()
	var id string
	for k := range f.sim.index {
		id = k
	}
	f.sim.mu.Unlock()
	require.NotEmpty(t, id)
	assert.Equal(t, models.JobFailed, f.status(t, id).Status)
}

func TestSimulationStatusUnknown(t *testing.T) {
	f := newSimFixture(t, false)
	_, err := f.sim.Status(context.Background(), "sim_NOPE_1-abcdef12")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSimulationHandleSkipsFinishedJobs(t *testing.T) {
	f := newSimFixture(t, false)
	ctx := context.Background()
	job := &models.SimulationJob{JobID: "sim_TCS_1-00000000", Ticker: "TCS", Status: models.JobCompleted, Progress: 100}
	require.NoError(t, f.jobs.SaveJob(ctx, job, time.Hour))

	require.NoError(t, f.sim.Handle(ctx, simulationPayload{JobID: job.JobID, Ticker: "TCS"}))
	assert.Empty(t, f.events.types())

	err := f.sim.Handle(ctx, json.RawMessage(`{"jobId":"missing","ticker":"TCS"}`))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSimulationHandleCancelled(t *testing.T) {
	f := newSimFixture(t, false)
	f.sim.cfg.StepDelay = time.Hour
	ctx := context.Background()
	job := &models.SimulationJob{JobID: "sim_TCS_1-11111111", Ticker: "TCS", Status: models.JobPending}
	require.NoError(t, f.jobs.SaveJob(ctx, job, time.Hour))

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := f.sim.Handle(cctx, simulationPayload{JobID: job.JobID, Ticker: "TCS"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.JobFailed, f.status(t, job.JobID).Status)
	assert.Equal(t, []string{models.EventSimulationFailed}, f.events.types())

	// the lock was released
	ok, err := f.jobs.TryLock(ctx, "TCS", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSimulationPrune(t *testing.T) {
	f := newSimFixture(t, true)
	ctx := context.Background()
	f.sim.now = clock

	job, err := f.sim.Start(ctx, "TCS")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return f.status(t, job.JobID).Done() }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, f.sim.Prune(ctx))

	f.sim.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	assert.Equal(t, 1, f.sim.Prune(ctx))
	_, err = f.sim.Status(ctx, job.JobID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSimulationPruner(t *testing.T) {
	f := newSimFixture(t, false)
	f.sim.cfg.PruneSchedule = "not a schedule"
	assert.Error(t, f.sim.StartPruner())

	f.sim.cfg.PruneSchedule = "*/30 * * * * *"
	require.NoError(t, f.sim.StartPruner())
	assert.NoError(t, f.sim.StopPruner(context.Background()))
	assert.NoError(t, f.sim.StopPruner(context.Background()))
}
