package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/authhub/pkg/utilities"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("event bus closed")

const (
	partitionBuffer = 256
	retryBase       = 50 * time.Millisecond
	retryCap        = 5 * time.Second
)

// MemoryBus is an in-process Bus for single-binary deployments and tests.
// It models the broker contract the rest of the system is written against:
// messages are fanned out to every subscription on the topic, a key always
// hashes to the same partition so per-key order holds, and a handler error
// blocks that partition while the message is redelivered with backoff.
// Messages published before Subscribe are not replayed.
type MemoryBus struct {
	partitions int
	logger     *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	subs   map[string][]*subscription
	closed bool
}

type subscription struct {
	group   string
	handler Handler
	chans   []chan Message
}

func NewMemoryBus(partitions int, logger *zap.SugaredLogger) *MemoryBus {
	if partitions <= 0 {
		partitions = 8
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryBus{
		partitions: partitions,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		subs:       make(map[string][]*subscription),
	}
}

// Publish marshals payload to JSON and enqueues it on every subscription of
// the topic. It blocks only on partition backpressure, never on handler
// completion.
func (b *MemoryBus) Publish(ctx context.Context, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	msg := Message{ID: utilities.NewKSUID(), Topic: topic, Key: key, Payload: data}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	subs := b.subs[topic]
	b.mu.RUnlock()

	for _, sub := range subs {
		ch := sub.chans[partitionFor(key, len(sub.chans))]
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		case <-b.ctx.Done():
			return ErrBusClosed
		}
	}
	return nil
}

// Subscribe registers h for topic under group and starts one worker per
// partition. Call before any Publish that must be observed.
func (b *MemoryBus) Subscribe(topic, group string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	for _, sub := range b.subs[topic] {
		if sub.group == group {
			return fmt.Errorf("group %q already subscribed to %q", group, topic)
		}
	}

	sub := &subscription{group: group, handler: h, chans: make([]chan Message, b.partitions)}
	for i := range sub.chans {
		sub.chans[i] = make(chan Message, partitionBuffer)
		b.wg.Add(1)
		go b.partitionLoop(sub, sub.chans[i])
	}
	b.subs[topic] = append(b.subs[topic], sub)
	return nil
}

// Close stops delivery and waits for workers to drain. In-flight handler
// retries are cancelled via their context.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}

func (b *MemoryBus) partitionLoop(sub *subscription, ch chan Message) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg := <-ch:
			b.deliver(sub, msg)
		}
	}
}

// deliver invokes the handler until it acks. An error is "fatal to this
// delivery attempt" only: the message is redelivered with capped backoff and
// the partition stays blocked, which is what keeps per-key ordering honest.
func (b *MemoryBus) deliver(sub *subscription, msg Message) {
	backoff := retryBase
	for attempt := 1; ; attempt++ {
		err := sub.handler(b.ctx, msg)
		if err == nil {
			return
		}
		b.logger.Warnw("handler failed, redelivering",
			"topic", msg.Topic,
			"key", msg.Key,
			"message_id", msg.ID,
			"group", sub.group,
			"attempt", attempt,
			"err", err,
		)
		select {
		case <-b.ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > retryCap {
			backoff = retryCap
		}
	}
}

func partitionFor(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
