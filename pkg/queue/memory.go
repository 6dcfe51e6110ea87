package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"Tradyxa/pkg/logger"
)

// ErrQueueFull is returned when the in-process buffer has no room.
var ErrQueueFull = errors.New("queue full")

// MemoryQueue runs jobs on in-process workers. Messages do not survive a
// restart; use RedisQueue when they must.
type MemoryQueue struct {
	registry
	config    *QueueConfig
	msgs      chan Message
	wg        sync.WaitGroup
	runMu     sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

var _ Queue = (*MemoryQueue)(nil)

func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig) *MemoryQueue {
	cfg := config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		registry: newRegistry(lgr),
		config:   cfg,
		msgs:     make(chan Message, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (q *MemoryQueue) Start() error {
	q.runMu.Lock()
	defer q.runMu.Unlock()
	if q.isRunning {
		return fmt.Errorf("queue already running")
	}
	q.isRunning = true
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info("memory queue started", logger.Int("workers", q.config.Workers))
	return nil
}

// Stop cancels in-flight jobs and waits for the workers. Queued messages
// are dropped.
func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.runMu.Lock()
	if !q.isRunning {
		q.runMu.Unlock()
		return nil
	}
	q.isRunning = false
	q.cancel()
	q.runMu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		q.logger.Info("memory queue stopped", logger.Int("dropped", len(q.msgs)))
		return nil
	}
}

// Enqueue adds a message without blocking.
func (q *MemoryQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	q.runMu.RLock()
	defer q.runMu.RUnlock()
	if !q.isRunning {
		return fmt.Errorf("queue not running")
	}
	if err := q.requireJob(msgType); err != nil {
		return err
	}
	return q.push(Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

// PublishMessage publishes a message (implements QueueService).
func (q *MemoryQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return q.Enqueue(ctx, msgType, payload)
}

func (q *MemoryQueue) push(msg Message) error {
	select {
	case q.msgs <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) worker(id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case msg := <-q.msgs:
			q.process(msg)
		}
	}
}

func (q *MemoryQueue) process(msg Message) {
	job, ok := q.job(msg.Type)
	if !ok {
		q.logger.Error("no job found", logger.String("type", msg.Type), logger.String("id", msg.ID))
		return
	}
	err := job.Handle(q.ctx, msg.Payload)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	q.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= q.config.RetryLimit {
		q.logger.Error("max retries reached", logger.String("id", msg.ID), logger.String("job", job.Name()))
		return
	}
	msg.Attempts++
	time.AfterFunc(q.config.RetryDelay, func() {
		if q.ctx.Err() != nil {
			return
		}
		if err := q.push(msg); err != nil {
			q.logger.Error("retry dropped", logger.String("id", msg.ID), logger.Error(err))
		}
	})
}
