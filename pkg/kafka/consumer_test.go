package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeDLQ struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *fakeDLQ) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeDLQ) Close() error { return nil }

func (w *fakeDLQ) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type scriptedHandler struct {
	mu    sync.Mutex
	seen  []string
	fails map[string]int
	perm  map[string]bool
}

func (h *scriptedHandler) Topic() string { return "spot" }

func (h *scriptedHandler) Handle(_ context.Context, b []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	v := string(b)
	h.seen = append(h.seen, v)
	if h.perm[v] {
		return Permanent(errors.New("bad quote"))
	}
	if h.fails[v] > 0 {
		h.fails[v]--
		return errors.New("store busy")
	}
	return nil
}

func (h *scriptedHandler) calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

func newTestConsumer(t *testing.T, r *fakeReader, opts ...ConsumerOption) (*Consumer, *fakeDLQ) {
	t.Helper()
	opts = append([]ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	}, opts...)
	c, err := NewConsumer(opts...)
	require.NoError(t, err)
	dlq := &fakeDLQ{}
	c.dlq = dlq
	c.newReader = func(string) fetcher { return r }
	return c, dlq
}

func TestConsumerRetriesThenCommits(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Partition: 0, Offset: 10, Value: []byte("a")},
		kafka.Message{Partition: 0, Offset: 11, Value: []byte("b")},
	)
	c, dlq := newTestConsumer(t, r)
	h := &scriptedHandler{fails: map[string]int{"a": 2}}
	c.RegisterHandler(h)
	require.NoError(t, c.Start())
	defer c.Stop(context.Background())

	assert.Eventually(t, func() bool { return len(r.commits()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{10, 11}, r.commits())
	assert.Equal(t, []string{"a", "a", "a", "b"}, h.calls())
	assert.Empty(t, dlq.written())
}

func TestConsumerDeadLettersPermanentFailures(t *testing.T) {
	r := newFakeReader(kafka.Message{
		Partition: 3,
		Offset:    42,
		Key:       []byte("TCS"),
		Value:     []byte("junk"),
		Headers:   []kafka.Header{{Key: "trace_id", Value: []byte("t1")}},
	})
	c, dlq := newTestConsumer(t, r, WithConsumerDLQ("spot.dlq"))
	h := &scriptedHandler{perm: map[string]bool{"junk": true}}
	c.RegisterHandler(h)
	require.NoError(t, c.Start())
	defer c.Stop(context.Background())

	assert.Eventually(t, func() bool { return len(r.commits()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"junk"}, h.calls(), "permanent errors are not retried")

	written := dlq.written()
	require.Len(t, written, 1)
	assert.Equal(t, []byte("TCS"), written[0].Key)
	headers := map[string]string{}
	for _, hd := range written[0].Headers {
		headers[hd.Key] = string(hd.Value)
	}
	assert.Equal(t, map[string]string{
		"trace_id":         "t1",
		"source_topic":     "spot",
		"source_partition": "3",
		"source_offset":    "42",
		"error":            "permanent: bad quote",
	}, headers)
}

func TestConsumerExhaustedRetriesAreDeadLettered(t *testing.T) {
	r := newFakeReader(kafka.Message{Offset: 1, Value: []byte("x")})
	c, dlq := newTestConsumer(t, r)
	h := &scriptedHandler{fails: map[string]int{"x": 10}}
	c.RegisterHandler(h)
	require.NoError(t, c.Start())
	defer c.Stop(context.Background())

	assert.Eventually(t, func() bool { return len(dlq.written()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, h.calls(), 3)
	assert.Eventually(t, func() bool { return len(r.commits()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestConsumerKeepsPartitionOrder(t *testing.T) {
	var msgs []kafka.Message
	for i := 0; i < 20; i++ {
		msgs = append(msgs, kafka.Message{Partition: i % 2, Offset: int64(i), Value: []byte{byte('a' + i)}})
	}
	r := newFakeReader(msgs...)
	c, _ := newTestConsumer(t, r, WithConsumerLanes(4, 2))
	h := &scriptedHandler{}
	c.RegisterHandler(h)
	require.NoError(t, c.Start())
	defer c.Stop(context.Background())

	assert.Eventually(t, func() bool { return len(h.calls()) == 20 }, time.Second, 5*time.Millisecond)
	var even, odd []string
	for _, v := range h.calls() {
		if (v[0]-'a')%2 == 0 {
			even = append(even, v)
		} else {
			odd = append(odd, v)
		}
	}
	assert.IsIncreasing(t, even)
	assert.IsIncreasing(t, odd)
}

func TestConsumerStartAndStop(t *testing.T) {
	r := newFakeReader()
	c, _ := newTestConsumer(t, r)
	assert.EqualError(t, c.Start(), "no kafka handlers registered")

	c.RegisterHandler(&scriptedHandler{})
	c.RegisterHandler(&scriptedHandler{})
	require.NoError(t, c.Start())
	require.NoError(t, c.Stop(context.Background()))
	assert.True(t, r.closed)
	require.NoError(t, c.Stop(context.Background()))

	_, err := NewConsumer()
	assert.EqualError(t, err, "brokers are required")
}

func TestLaneFor(t *testing.T) {
	assert.Equal(t, 0, laneFor(4, 2))
	assert.Equal(t, 1, laneFor(5, 2))
	assert.Equal(t, 0, laneFor(7, 1))
	assert.Equal(t, 1, laneFor(-3, 2))
}
