package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Producer writes keyed JSON messages to a single topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a producer for the configured topic. It does not
// contact the brokers; the first Publish does.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := DefaultProducerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("kafka producer config: %w", err)
	}
	codec, _ := parseCompression(cfg.Compression)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  codec,
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.Linger,
		Async:        cfg.Async,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID},
	}

	initProducerMetrics()
	return &Producer{writer: writer, topic: cfg.Topic}, nil
}

// Topic returns the topic Publish writes to.
func (p *Producer) Topic() string { return p.topic }

// Publish sends value under key. Values other than []byte are JSON encoded.
// Headers travel as Kafka record headers.
func (p *Producer) Publish(ctx context.Context, key string, value interface{}, headers map[string]string) error {
	v, err := encodeValue(value)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: v,
		Time:  time.Now(),
	}
	for k, hv := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(hv)})
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, msg)
	observePublish(p.topic, len(v), time.Since(start), err)
	return err
}

// Close flushes pending writes and closes the producer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func encodeValue(value interface{}) ([]byte, error) {
	switch val := value.(type) {
	case []byte:
		return val, nil
	case json.RawMessage:
		return val, nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

func parseCompression(s string) (kafka.Compression, error) {
	switch s {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

var (
	producerOnce      sync.Once
	publishedTotal    *prometheus.CounterVec
	publishedBytes    *prometheus.CounterVec
	publishLatencySec *prometheus.HistogramVec
)

func initProducerMetrics() {
	producerOnce.Do(func() {
		publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradyxa_events_published_total",
			Help: "Events published to Kafka by result",
		}, []string{"topic", "result"})
		publishedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradyxa_events_published_bytes_total",
			Help: "Encoded event bytes published to Kafka",
		}, []string{"topic"})
		publishLatencySec = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradyxa_events_publish_seconds",
			Help:    "Kafka publish latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"topic"})
	})
}

func observePublish(topic string, size int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	publishedTotal.WithLabelValues(topic, result).Inc()
	if err == nil {
		publishedBytes.WithLabelValues(topic).Add(float64(size))
	}
	publishLatencySec.WithLabelValues(topic).Observe(dur.Seconds())
}
