package repository

import (
	"context"

	"Tradyxa/internal/domain/models"
	domrepo "Tradyxa/internal/domain/repository"
	applogger "Tradyxa/pkg/logger"
)

// Producer is satisfied by *kafka.Producer.
type Producer interface {
	Publish(ctx context.Context, key string, value interface{}, headers map[string]string) error
	Close() error
}

// KafkaEventPublisher writes events keyed by ticker, so the events of a
// ticker stay ordered within a partition. Simulation events without a
// ticker fall back to the job id.
type KafkaEventPublisher struct {
	producer Producer
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(producer Producer) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, ev models.Event) error {
	key := ev.Ticker
	if key == "" {
		key = ev.JobID
	}
	return p.producer.Publish(ctx, key, ev, map[string]string{"event_type": ev.Type})
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// LogEventPublisher records events in the log when no broker is configured.
type LogEventPublisher struct {
	l *applogger.Logger
}

var _ domrepo.EventPublisher = (*LogEventPublisher)(nil)

func NewLogEventPublisher(l *applogger.Logger) *LogEventPublisher {
	if l == nil {
		l = applogger.Nop()
	}
	return &LogEventPublisher{l: l}
}

func (p *LogEventPublisher) Publish(ctx context.Context, ev models.Event) error {
	fields := []applogger.Field{
		applogger.String("type", ev.Type),
		applogger.String("ticker", ev.Ticker),
	}
	if ev.Source != "" {
		fields = append(fields, applogger.String("source", string(ev.Source)))
	}
	if ev.JobID != "" {
		fields = append(fields, applogger.String("job_id", ev.JobID), applogger.String("status", string(ev.Status)))
	}
	p.l.Info("event", fields...)
	return nil
}

func (p *LogEventPublisher) Close() error { return nil }
