package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"Tradyxa/pkg/logger"
)

const (
	maxRetryDelay = 5 * time.Minute
	claimTimeout  = 2 * time.Second
	promoteEvery  = time.Second
	promoteBatch  = 50
)

// RedisQueue keeps messages in Redis lists so they outlive the process.
// A worker moves a message from pending to active before running it and
// removes it once the job returns, so a message that was active when the
// process died is pending again on the next Start.
type RedisQueue struct {
	registry
	config *QueueConfig
	client *redis.Client
	keys   redisKeys

	wg        sync.WaitGroup
	runMu     sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix namespaces the queue's keys.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.keys = keysFor(prefix + ":queue")
		}
	}
}

var _ Queue = (*RedisQueue)(nil)

func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	ctx, cancel := context.WithCancel(context.Background())
	r := &RedisQueue{
		registry: newRegistry(lgr),
		config:   config.withDefaults(),
		client:   client,
		keys:     keysFor("tradyxa:queue"),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type redisKeys struct {
	pending string
	active  string
	delayed string
	dead    string
}

func keysFor(prefix string) redisKeys {
	return redisKeys{
		pending: prefix + ":pending",
		active:  prefix + ":active",
		delayed: prefix + ":delayed",
		dead:    prefix + ":dead",
	}
}

// envelope is the stored form of a Message.
type envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// Start checks the connection, requeues messages left active by a previous
// run and starts the workers.
func (r *RedisQueue) Start() error {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.isRunning {
		return fmt.Errorf("queue already running")
	}

	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	recovered, err := r.requeueActive(ctx)
	if err != nil {
		return fmt.Errorf("requeue active: %w", err)
	}

	r.isRunning = true
	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.wg.Add(1)
	go r.promoteLoop()

	r.logger.Info("redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.String("addr", r.client.Options().Addr),
		logger.Int("recovered", recovered))
	return nil
}

func (r *RedisQueue) requeueActive(ctx context.Context) (int, error) {
	n := 0
	for {
		err := r.client.LMove(ctx, r.keys.active, r.keys.pending, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// Stop cancels running jobs and waits for the workers. Their messages stay
// active and are picked up again by the next Start.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.runMu.Lock()
	if !r.isRunning {
		r.runMu.Unlock()
		return nil
	}
	r.isRunning = false
	r.cancel()
	r.runMu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		r.logger.Info("redis queue stopped")
		return nil
	}
}

// Enqueue stores a message for the job registered under msgType.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.runMu.RLock()
	defer r.runMu.RUnlock()
	if !r.isRunning {
		return fmt.Errorf("queue not running")
	}
	if err := r.requireJob(msgType); err != nil {
		return err
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(envelope{
		ID:         uuid.NewString(),
		Type:       msgType,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return r.client.LPush(ctx, r.keys.pending, b).Err()
}

// PublishMessage publishes a message (implements QueueService).
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return r.Enqueue(ctx, msgType, payload)
}

func encodePayload(payload interface{}) (json.RawMessage, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		if !json.Valid(p) {
			return nil, errors.New("payload bytes are not JSON")
		}
		return p, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return b, nil
}

func (r *RedisQueue) worker() {
	defer r.wg.Done()
	for r.ctx.Err() == nil {
		raw, err := r.client.BLMove(r.ctx, r.keys.pending, r.keys.active, "RIGHT", "LEFT", claimTimeout).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if r.ctx.Err() != nil {
				return
			}
			r.logger.Error("claim message", logger.Error(err))
			r.sleep(time.Second)
			continue
		}
		r.process(raw)
	}
}

func (r *RedisQueue) process(raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		r.logger.Error("undecodable message moved to dead letters", logger.Error(err))
		r.settle(raw, func(ctx context.Context, p redis.Pipeliner) { p.LPush(ctx, r.keys.dead, raw) })
		return
	}
	job, ok := r.job(env.Type)
	if !ok {
		r.logger.Error("no job found", logger.String("type", env.Type), logger.String("id", env.ID))
		r.settle(raw, func(ctx context.Context, p redis.Pipeliner) { p.LPush(ctx, r.keys.dead, raw) })
		return
	}

	start := time.Now()
	err := job.Handle(r.ctx, env.Payload)
	if errors.Is(err, context.Canceled) && r.ctx.Err() != nil {
		// shutting down; the message stays active for the next Start
		return
	}
	if err == nil {
		r.settle(raw, nil)
		return
	}

	env.Attempts++
	env.LastError = err.Error()
	r.logger.Error("message processing error",
		logger.String("id", env.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", env.Attempts),
		logger.Duration("elapsed", time.Since(start)),
		logger.Error(err))

	next, merr := json.Marshal(env)
	if merr != nil {
		r.logger.Error("marshal message", logger.Error(merr))
		return
	}
	if env.Attempts > r.config.RetryLimit {
		r.logger.Error("max retries reached", logger.String("id", env.ID), logger.String("job", job.Name()))
		r.settle(raw, func(ctx context.Context, p redis.Pipeliner) { p.LPush(ctx, r.keys.dead, next) })
		return
	}
	due := time.Now().Add(retryDelay(r.config.RetryDelay, env.Attempts))
	r.settle(raw, func(ctx context.Context, p redis.Pipeliner) {
		p.ZAdd(ctx, r.keys.delayed, redis.Z{Score: float64(due.UnixMilli()), Member: next})
	})
}

// settle removes raw from the active list, together with whatever then
// queues in the same transaction. It outlives Stop so a finished job is not
// run again.
func (r *RedisQueue) settle(raw string, then func(context.Context, redis.Pipeliner)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, r.keys.active, 1, raw)
		if then != nil {
			then(ctx, p)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("settle message", logger.Error(err))
	}
}

// retryDelay doubles base for every attempt after the first, capped at
// maxRetryDelay.
func retryDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return d
}

// promoteDue moves delayed messages whose time has come back to pending.
// Running it as one script keeps two instances from promoting the same one.
var promoteDue = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, m in ipairs(due) do
	redis.call('ZREM', KEYS[1], m)
	redis.call('LPUSH', KEYS[2], m)
end
return #due
`)

func (r *RedisQueue) promoteLoop() {
	defer r.wg.Done()
	t := time.NewTicker(promoteEvery)
	defer t.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case now := <-t.C:
			keys := []string{r.keys.delayed, r.keys.pending}
			n, err := promoteDue.Run(r.ctx, r.client, keys, now.UnixMilli(), promoteBatch).Int()
			if err != nil && r.ctx.Err() == nil {
				r.logger.Error("promote delayed messages", logger.Error(err))
			}
			if n > 0 {
				r.logger.Debug("delayed messages promoted", logger.Int("count", n))
			}
		}
	}
}

func (r *RedisQueue) sleep(d time.Duration) {
	select {
	case <-r.ctx.Done():
	case <-time.After(d):
	}
}
