package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"Tradyxa/internal/domain/models"
	domrepo "Tradyxa/internal/domain/repository"
	"Tradyxa/internal/services/symbols"
	applogger "Tradyxa/pkg/logger"
	"Tradyxa/pkg/queue"
)

// SimulationJobType is the queue message type of a simulation run.
const SimulationJobType = "simulation.run"

type simulationPayload struct {
	JobID  string `json:"jobId"`
	Ticker string `json:"ticker"`
}

// SimulationConfig tunes simulation runs.
type SimulationConfig struct {
	StepDelay     time.Duration // pause between progress steps
	Retention     time.Duration // how long finished jobs stay queryable
	PruneSchedule string        // cron spec with seconds field
}

// SimulationService creates simulation jobs and runs them from the queue.
// A run walks the job through running 0, running 50 and completed 100, and
// drops the cached snapshots of its ticker before completing.
type SimulationService struct {
	cfg     SimulationConfig
	jobs    domrepo.JobStore
	queue   queue.QueueService
	tickers *TickerService
	events  domrepo.EventPublisher
	l       *applogger.Logger
	now     func() time.Time

	mu    sync.Mutex
	index map[string]time.Time // job id -> created, for pruning
	cron  *cron.Cron
}

var _ queue.Job = (*SimulationService)(nil)

func NewSimulationService(cfg SimulationConfig, jobs domrepo.JobStore, q queue.QueueService, tickers *TickerService, events domrepo.EventPublisher, l *applogger.Logger) *SimulationService {
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &SimulationService{
		cfg:     cfg,
		jobs:    jobs,
		queue:   q,
		tickers: tickers,
		events:  events,
		l:       l,
		now:     time.Now,
		index:   make(map[string]time.Time),
	}
}

func (s *SimulationService) Name() string { return "simulation" }
func (s *SimulationService) Type() string { return SimulationJobType }

// Start creates a pending job for ticker and queues its run.
func (s *SimulationService) Start(ctx context.Context, ticker string) (*models.SimulationJob, error) {
	t := symbols.Canonical(ticker)
	if !symbols.Valid(t) {
		return nil, ErrInvalidTicker
	}
	now := s.now().UTC()
	job := &models.SimulationJob{
		JobID:     fmt.Sprintf("sim_%s_%d-%s", t, now.UnixMilli(), uuid.NewString()[:8]),
		Ticker:    t,
		Status:    models.JobPending,
		Message:   "Simulation queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.jobs.SaveJob(ctx, job, s.cfg.Retention); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.index[job.JobID] = now
	s.mu.Unlock()

	if err := s.queue.PublishMessage(ctx, SimulationJobType, simulationPayload{JobID: job.JobID, Ticker: t}); err != nil {
		s.update(ctx, job, models.JobFailed, 0, "Simulation could not be queued")
		return nil, fmt.Errorf("queue simulation: %w", err)
	}
	s.l.Info("simulation queued", applogger.String("job_id", job.JobID), applogger.String("ticker", t))
	return job, nil
}

// Status returns the job, or models.ErrNotFound.
func (s *SimulationService) Status(ctx context.Context, jobID string) (*models.SimulationJob, error) {
	return s.jobs.Job(ctx, jobID)
}

// Handle runs one simulation. Runs of the same ticker are serialised.
func (s *SimulationService) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[simulationPayload](payload)
	if err != nil {
		return err
	}
	job, err := s.jobs.Job(ctx, p.JobID)
	if err != nil {
		return fmt.Errorf("simulation %s: %w", p.JobID, err)
	}
	if job.Done() {
		return nil
	}

	if err := s.lock(ctx, job.Ticker); err != nil {
		s.update(context.WithoutCancel(ctx), job, models.JobFailed, job.Progress, "Simulation cancelled")
		return err
	}
	defer func() {
		if err := s.jobs.Unlock(context.WithoutCancel(ctx), job.Ticker); err != nil {
			s.l.Warn("simulation unlock failed", applogger.String("ticker", job.Ticker), applogger.Error(err))
		}
	}()

	steps := []struct {
		progress int
		message  string
	}{
		{0, "Simulation started"},
		{50, "Processing data..."},
	}
	for _, st := range steps {
		s.update(ctx, job, models.JobRunning, st.progress, st.message)
		if err := sleep(ctx, s.cfg.StepDelay); err != nil {
			s.update(context.WithoutCancel(ctx), job, models.JobFailed, job.Progress, "Simulation cancelled")
			s.publish(context.WithoutCancel(ctx), job, models.EventSimulationFailed)
			return err
		}
	}

	s.tickers.Invalidate(ctx, job.Ticker)
	s.update(ctx, job, models.JobCompleted, 100, "Simulation completed")
	s.publish(ctx, job, models.EventSimulationCompleted)
	s.l.Info("simulation completed", applogger.String("job_id", job.JobID), applogger.String("ticker", job.Ticker))
	return nil
}

// lock waits for the ticker's run lock, polling at the step delay.
func (s *SimulationService) lock(ctx context.Context, ticker string) error {
	ttl := 2*s.cfg.StepDelay + 30*time.Second
	poll := s.cfg.StepDelay
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	for {
		ok, err := s.jobs.TryLock(ctx, ticker, ttl)
		if err != nil {
			return fmt.Errorf("simulation lock: %w", err)
		}
		if ok {
			return nil
		}
		if err := sleep(ctx, poll); err != nil {
			return err
		}
	}
}

func (s *SimulationService) update(ctx context.Context, job *models.SimulationJob, status models.JobStatus, progress int, message string) {
	job.Status = status
	job.Progress = progress
	job.Message = message
	job.UpdatedAt = s.now().UTC()
	if err := s.jobs.SaveJob(ctx, job, s.cfg.Retention); err != nil {
		s.l.Error("simulation save failed", applogger.String("job_id", job.JobID), applogger.Error(err))
	}
}

func (s *SimulationService) publish(ctx context.Context, job *models.SimulationJob, kind string) {
	if s.events == nil {
		return
	}
	ev := models.Event{Type: kind, Ticker: job.Ticker, JobID: job.JobID, Status: job.Status, Timestamp: job.UpdatedAt}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.l.Warn("publish event failed", applogger.String("job_id", job.JobID), applogger.Error(err))
	}
}

// Prune deletes jobs created before the retention window and returns how
// many were removed.
func (s *SimulationService) Prune(ctx context.Context) int {
	cutoff := s.now().Add(-s.cfg.Retention)
	s.mu.Lock()
	var stale []string
	for id, created := range s.index {
		if created.Before(cutoff) {
			stale = append(stale, id)
			delete(s.index, id)
		}
	}
	s.mu.Unlock()

	for _, id := range stale {
		if err := s.jobs.DeleteJob(ctx, id); err != nil {
			s.l.Warn("simulation prune failed", applogger.String("job_id", id), applogger.Error(err))
		}
	}
	if len(stale) > 0 {
		s.l.Info("simulation jobs pruned", applogger.Int("count", len(stale)))
	}
	return len(stale)
}

// StartPruner schedules Prune on the configured cron spec.
func (s *SimulationService) StartPruner() error {
	if s.cfg.PruneSchedule == "" {
		return nil
	}
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(s.cfg.PruneSchedule, func() { s.Prune(context.Background()) }); err != nil {
		return fmt.Errorf("prune schedule %q: %w", s.cfg.PruneSchedule, err)
	}
	c.Start()
	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	return nil
}

// StopPruner stops the schedule and waits for a running prune.
func (s *SimulationService) StopPruner(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
