package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	applogger "Tradyxa/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// PermanentError marks a message that can never be handled. It skips the
// retry loop and goes straight to the DLQ.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func isPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	FromLatest bool // where a group with no committed offset starts

	// Lanes run handlers concurrently. A partition always maps to the same
	// lane, so messages of one partition are handled in order.
	Lanes      int
	LaneBuffer int

	RetryMax   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	DLQTopic   string

	MinBytes int
	MaxBytes int
}

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) {
		if groupID != "" {
			c.GroupID = groupID
		}
	}
}

// WithConsumerStartAtLatest makes a new group skip the topic's backlog.
// Live quotes older than the process are not worth replaying.
func WithConsumerStartAtLatest(latest bool) ConsumerOption {
	return func(c *ConsumerConfig) { c.FromLatest = latest }
}

// WithConsumerLanes sets how many handlers may run at once and how many
// fetched messages each may hold.
func WithConsumerLanes(lanes, buffer int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if lanes > 0 {
			c.Lanes = lanes
		}
		if buffer > 0 {
			c.LaneBuffer = buffer
		}
	}
}

// WithConsumerRetry configures retry attempts and backoff range.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ sets the topic failed messages are copied to. Failed
// messages are committed either way so one bad quote cannot stall a
// partition.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

// WithConsumerFetch sets fetch min/max bytes.
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

// fetcher is the part of *kafka.Reader a topic loop needs.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// dlqWriter is the part of *kafka.Writer the DLQ needs.
type dlqWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads registered topics in a consumer group and hands each
// message to its topic's handler.
type Consumer struct {
	cfg      ConsumerConfig
	handlers map[string]MessageHandler
	readers  map[string]fetcher
	dlq      dlqWriter
	hook     ConsumerHook
	l        *applogger.Logger

	newReader func(topic string) fetcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// delivery is a fetched message on its way to a lane.
type delivery struct {
	topic  string
	msg    kafka.Message
	reader fetcher
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := ConsumerConfig{
		GroupID:    "tradyxa",
		Lanes:      1,
		LaneBuffer: 16,
		RetryMax:   3,
		BackoffMin: 50 * time.Millisecond,
		BackoffMax: 2 * time.Second,
		MinBytes:   1,
		MaxBytes:   10 << 20,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]fetcher),
		hook:     NoopHook{},
		l:        applogger.Nop(),
		ctx:      ctx,
		cancel:   cancel,
	}
	c.newReader = c.kafkaReader
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.DLQTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		}
	}
	initConsumerMetrics()
	return c, nil
}

func (c *Consumer) kafkaReader(topic string) fetcher {
	start := kafka.FirstOffset
	if c.cfg.FromLatest {
		start = kafka.LastOffset
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		Topic:       topic,
		GroupID:     c.cfg.GroupID,
		MinBytes:    c.cfg.MinBytes,
		MaxBytes:    c.cfg.MaxBytes,
		StartOffset: start,
	})
}

// SetLogger injects a structured logger.
func (c *Consumer) SetLogger(l *applogger.Logger) {
	if l != nil {
		c.l = l
	}
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler registers a handler for its topic. Call it before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.l.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start opens a reader per registered topic and starts the lanes. It does
// not block.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("no kafka handlers registered")
	}
	lanes := make([]chan delivery, c.cfg.Lanes)
	for i := range lanes {
		lanes[i] = make(chan delivery, c.cfg.LaneBuffer)
	}

	var fetchers sync.WaitGroup
	for topic := range c.handlers {
		r := c.newReader(topic)
		c.readers[topic] = r
		fetchers.Add(1)
		go func(topic string, r fetcher) {
			defer fetchers.Done()
			c.fetchLoop(topic, r, lanes)
		}(topic, r)
	}
	for _, lane := range lanes {
		c.wg.Add(1)
		go c.runLane(lane)
	}
	// lanes drain once every fetch loop has returned
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fetchers.Wait()
		for _, lane := range lanes {
			close(lane)
		}
	}()

	c.l.Info("kafka consumer started",
		applogger.Int("lanes", c.cfg.Lanes),
		applogger.Int("topics", len(c.handlers)),
		applogger.String("group", c.cfg.GroupID))
	return nil
}

// Stop ends fetching, lets in-flight handlers finish and closes the readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		c.cancel()
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			err = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		case <-done:
		}
		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.l.Warn("kafka reader close failed", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.l.Warn("kafka dlq writer close failed", applogger.Error(cerr))
			}
		}
		if err == nil {
			c.l.Info("kafka consumer stopped")
		}
	})
	return err
}

func (c *Consumer) fetchLoop(topic string, r fetcher, lanes []chan delivery) {
	for {
		msg, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.l.Warn("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			if !sleepCtx(c.ctx, time.Second) {
				return
			}
			continue
		}
		lane := lanes[laneFor(msg.Partition, len(lanes))]
		select {
		case lane <- delivery{topic: topic, msg: msg, reader: r}:
			laneDepth.WithLabelValues(topic).Set(float64(len(lane)))
		case <-c.ctx.Done():
			return
		}
	}
}

func laneFor(partition, lanes int) int {
	if partition < 0 {
		partition = -partition
	}
	return partition % lanes
}

// runLane handles deliveries until the lane is closed. Deliveries still
// buffered after Stop are skipped uncommitted and are fetched again by the
// next member of the group.
func (c *Consumer) runLane(lane <-chan delivery) {
	defer c.wg.Done()
	for d := range lane {
		if c.ctx.Err() != nil {
			continue
		}
		c.deliver(d)
	}
}

func (c *Consumer) deliver(d delivery) {
	start := time.Now()
	attempts, err := c.handleWithRetry(d)
	handleSeconds.WithLabelValues(d.topic).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		if c.ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return
		}
		c.hook.OnError(c.ctx, d.topic, d.msg, d.msg.Value, err)
		c.l.Warn("kafka message failed",
			applogger.String("topic", d.topic),
			applogger.Int("partition", d.msg.Partition),
			applogger.Int64("offset", d.msg.Offset),
			applogger.Int("attempts", attempts),
			applogger.Error(err))
		outcome = c.deadLetter(d, err)
	}
	consumedTotal.WithLabelValues(d.topic, outcome).Inc()
	c.commit(d)
}

func (c *Consumer) handleWithRetry(d delivery) (int, error) {
	handler := c.handlers[d.topic]
	var err error
	for attempt := 1; ; attempt++ {
		err = c.handleOnce(handler, d)
		if err == nil || isPermanent(err) || attempt > c.cfg.RetryMax {
			return attempt, err
		}
		if !sleepCtx(c.ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return attempt, context.Canceled
		}
	}
}

func (c *Consumer) handleOnce(handler MessageHandler, d delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()
	ctx, msg, data, err := c.hook.BeforeHandle(c.ctx, d.topic, d.msg, d.msg.Value)
	if err != nil {
		return err
	}
	err = handler.Handle(ctx, data)
	c.hook.AfterHandle(ctx, d.topic, msg, data, err)
	return err
}

// deadLetter copies the message to the DLQ with its origin and failure in
// the headers, and reports the outcome for the consumed counter.
func (c *Consumer) deadLetter(d delivery, cause error) string {
	if c.dlq == nil {
		return "dropped"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   d.msg.Key,
		Value: d.msg.Value,
		Time:  time.Now(),
		Headers: append(append([]kafka.Header(nil), d.msg.Headers...),
			kafka.Header{Key: "source_topic", Value: []byte(d.topic)},
			kafka.Header{Key: "source_partition", Value: []byte(strconv.Itoa(d.msg.Partition))},
			kafka.Header{Key: "source_offset", Value: []byte(strconv.FormatInt(d.msg.Offset, 10))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
		),
	})
	if err != nil {
		c.l.Error("kafka dlq write failed", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(err))
		return "dropped"
	}
	return "dead_lettered"
}

func (c *Consumer) commit(d delivery) {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = d.reader.CommitMessages(ctx, d.msg)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.l.Error("kafka commit failed",
		applogger.String("topic", d.topic),
		applogger.Int64("offset", d.msg.Offset),
		applogger.Error(err))
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min
	for i := 1; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	// up to half of it is jitter
	return d - time.Duration(rand.Int63n(int64(d)/2+1))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var (
	consumerOnce  sync.Once
	consumedTotal *prometheus.CounterVec
	handleSeconds *prometheus.HistogramVec
	laneDepth     *prometheus.GaugeVec
)

func initConsumerMetrics() {
	consumerOnce.Do(func() {
		consumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradyxa_kafka_consumed_total",
			Help: "Kafka messages consumed by outcome: ok, dead_lettered or dropped",
		}, []string{"topic", "outcome"})
		handleSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradyxa_kafka_consumer_handle_seconds",
			Help:    "Handling time per message, retries included",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"topic"})
		laneDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tradyxa_kafka_consumer_lane_depth",
			Help: "Fetched messages waiting in a consumer lane",
		}, []string{"topic"})
	})
}
