package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"Tradyxa/pkg/logger"
)

// Job runs the messages of one type. Handle receives the payload as it was
// enqueued on the memory backend and as json.RawMessage on Redis; decode it
// with ParsePayload.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}

type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Queue is a QueueService that also runs the registered jobs.
type Queue interface {
	QueueService
	RegisterJob(job Job)
	Start() error
	Stop(ctx context.Context) error
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers    int           // number of workers
	QueueSize  int           // size of the in-process buffer
	RetryLimit int           // number of maximum retries
	RetryDelay time.Duration // time delay between retries
}

func (c *QueueConfig) withDefaults() *QueueConfig {
	out := QueueConfig{}
	if c != nil {
		out = *c
	}
	if out.Workers <= 0 {
		out.Workers = 1
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 100
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = 10 * time.Second
	}
	return &out
}

// Message represents a message in the queue
type Message struct {
	ID        string
	Type      string
	Payload   interface{}
	Attempts  int
	Timestamp time.Time
}

// registry maps message types to jobs. Shared by every queue backend.
type registry struct {
	logger *logger.Logger
	mu     sync.RWMutex
	jobs   map[string]Job
}

func newRegistry(l *logger.Logger) registry {
	if l == nil {
		l = logger.Nop()
	}
	return registry{logger: l, jobs: make(map[string]Job)}
}

// RegisterJob registers a single job.
func (r *registry) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Type()]; exists {
		r.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.logger.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

func (r *registry) job(msgType string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[msgType]
	return j, ok
}

func (r *registry) requireJob(msgType string) error {
	if _, ok := r.job(msgType); !ok {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}
	return nil
}

// ParsePayload returns the payload as a *T, decoding it when it arrived as
// JSON.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var raw []byte
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		return nil, fmt.Errorf("payload is %T, want %T", payload, (*T)(nil))
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}
