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

// queueReader serves a fixed list of messages, then blocks until ctx ends.
type queueReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (q *queueReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	q.mu.Lock()
	if len(q.queue) > 0 {
		m := q.queue[0]
		q.queue = q.queue[1:]
		q.mu.Unlock()
		return m, nil
	}
	q.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (q *queueReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range msgs {
		q.committed = append(q.committed, m.Offset)
	}
	return nil
}

func (q *queueReader) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func (q *queueReader) commits() []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]int64(nil), q.committed...)
}

func TestFailedMessageIsRetriedBeforeLaterOffsetsCommit(t *testing.T) {
	r := &queueReader{queue: []kafka.Message{
		{Partition: 0, Offset: 5},
		{Partition: 0, Offset: 6},
		{Partition: 1, Offset: 9},
	}}
	c := newConsumer(r, 2)
	c.retryMin, c.retryMax = time.Millisecond, 5*time.Millisecond

	var mu sync.Mutex
	var handled []int64
	failures := 2
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, m.Offset)
		if m.Offset == 5 && failures > 0 {
			failures--
			return errors.New("transient")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Start(ctx, h) }()

	require.Eventually(t, func() bool { return len(r.commits()) == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	var partition0 []int64
	for _, off := range r.commits() {
		if off != 9 {
			partition0 = append(partition0, off)
		}
	}
	assert.Equal(t, []int64{5, 6}, partition0)

	mu.Lock()
	defer mu.Unlock()
	var order0 []int64
	for _, off := range handled {
		if off != 9 {
			order0 = append(order0, off)
		}
	}
	assert.Equal(t, []int64{5, 5, 5, 6}, order0)
	assert.True(t, r.closed)
}

func TestCancelledRetryLeavesOffsetUncommitted(t *testing.T) {
	r := &queueReader{queue: []kafka.Message{{Partition: 0, Offset: 1}}}
	c := newConsumer(r, 1)
	c.retryMin, c.retryMax = time.Millisecond, time.Millisecond

	attempts := make(chan struct{}, 100)
	h := func(context.Context, kafka.Message) error {
		attempts <- struct{}{}
		return errors.New("down")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Start(ctx, h) }()

	<-attempts
	<-attempts
	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, r.commits())
}
