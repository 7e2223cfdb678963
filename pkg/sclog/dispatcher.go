package sclog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultDispatchBuffer = 256
	defaultDrainTimeout   = 5 * time.Second
)

// Consumer receives published events.
// Consume runs on the dispatcher's goroutine, one event at a time, in
// publish order. A Consumer that also implements io.Closer is closed when
// the dispatcher closes.
type Consumer interface {
	Name() string
	Consume(ctx context.Context, ev Event) error
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc struct {
	ConsumerName string
	Fn           func(ctx context.Context, ev Event) error
}

// Name returns the consumer's name.
func (f ConsumerFunc) Name() string { return f.ConsumerName }

// Consume calls Fn.
func (f ConsumerFunc) Consume(ctx context.Context, ev Event) error { return f.Fn(ctx, ev) }

// ChannelConsumer forwards events to a channel for callers that prefer
// a receive loop. Events are sent blocking; a slow reader slows the
// dispatcher down rather than losing events.
type ChannelConsumer struct {
	ch        chan Event
	closeOnce sync.Once
}

// NewChannelConsumer returns a ChannelConsumer with the given buffer size.
func NewChannelConsumer(buffer int) *ChannelConsumer {
	return &ChannelConsumer{ch: make(chan Event, buffer)}
}

// Name returns "channel".
func (c *ChannelConsumer) Name() string { return "channel" }

// Events returns the receive side. It is closed when the dispatcher closes.
func (c *ChannelConsumer) Events() <-chan Event { return c.ch }

// Consume sends ev on the channel.
func (c *ChannelConsumer) Consume(ctx context.Context, ev Event) error {
	select {
	case c.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the events channel. Safe to call multiple times.
func (c *ChannelConsumer) Close() error {
	c.closeOnce.Do(func() { close(c.ch) })
	return nil
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithBufferSize sets the queue capacity. Default: 256.
func WithBufferSize(n int) DispatcherOption {
	return func(d *Dispatcher) { d.bufSize = n }
}

// WithDropOnFull makes Publish return ErrEventDropped instead of blocking
// when the queue is full. Default: false (block, no event is lost).
func WithDropOnFull(drop bool) DispatcherOption {
	return func(d *Dispatcher) { d.dropOnFull = drop }
}

// WithDispatchLogger sets the slog logger. If nil, logging is disabled.
func WithDispatchLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithOnConsumerError sets a callback invoked after a consumer fails or
// panics. The failure is always logged at warn level as well.
func WithOnConsumerError(f func(name string, ev Event, err error)) DispatcherOption {
	return func(d *Dispatcher) { d.onErr = f }
}

// WithDrainTimeout bounds how long Close waits for queued events.
// Default: 5 seconds.
func WithDrainTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.drainTimeout = t }
}

// Dispatcher fans events out to registered consumers.
//
// Publish enqueues into a buffered queue drained by a single goroutine, so
// consumers never run on the publisher's goroutine and observe events in
// publish order. A failing consumer does not affect the others.
type Dispatcher struct {
	bufSize      int
	dropOnFull   bool
	drainTimeout time.Duration
	logger       *slog.Logger
	onErr        func(name string, ev Event, err error)

	queue   chan Event
	closing chan struct{}
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.RWMutex // guards closed against in-flight Publish
	closed bool

	consumersMu sync.RWMutex
	consumers   []Consumer

	closeOnce sync.Once
	closeErr  error

	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher creates a Dispatcher and starts its drain goroutine.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		bufSize:      defaultDispatchBuffer,
		drainTimeout: defaultDrainTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	if d.bufSize < 0 {
		d.bufSize = 0
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	d.queue = make(chan Event, d.bufSize)
	d.closing = make(chan struct{})
	d.done = make(chan struct{})
	d.ctx, d.cancel = context.WithCancel(context.Background())
	go d.drain()
	return d
}

// Register adds c to the end of the delivery order.
func (d *Dispatcher) Register(c Consumer) {
	d.consumersMu.Lock()
	d.consumers = append(d.consumers, c)
	d.consumersMu.Unlock()
	d.logger.Debug("consumer registered", "consumer", c.Name())
}

// Consumers returns the names of registered consumers in delivery order.
func (d *Dispatcher) Consumers() []string {
	d.consumersMu.RLock()
	defer d.consumersMu.RUnlock()
	names := make([]string, len(d.consumers))
	for i, c := range d.consumers {
		names[i] = c.Name()
	}
	return names
}

// Publish enqueues ev for delivery.
// It blocks while the queue is full unless WithDropOnFull is set.
// Returns ErrDispatcherClosed after Close, or ctx.Err() if ctx ends first.
func (d *Dispatcher) Publish(ctx context.Context, ev Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	if d.dropOnFull {
		select {
		case d.queue <- ev:
			return nil
		default:
			d.dropped.Add(1)
			d.logger.Warn("dispatch queue full, dropping event", "type", ev.Type)
			return ErrEventDropped
		}
	}

	select {
	case d.queue <- ev:
		return nil
	case <-d.closing:
		return ErrDispatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns delivery counters: events handed to every consumer,
// events dropped on a full queue, and individual consumer failures.
func (d *Dispatcher) Stats() (delivered, dropped, failed uint64) {
	return d.delivered.Load(), d.dropped.Load(), d.failed.Load()
}

// Close stops accepting events, waits (bounded by the drain timeout) for
// queued events to reach consumers, then closes every consumer that
// implements io.Closer. Safe to call multiple times.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		close(d.closing) // wake publishers blocked on a full queue
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.queue)

		var errs []error
		select {
		case <-d.done:
		case <-time.After(d.drainTimeout):
			d.logger.Warn("dispatch drain timed out", "pending", len(d.queue))
			d.cancel()
			<-d.done
			errs = append(errs, fmt.Errorf("dispatcher: drain timed out after %v", d.drainTimeout))
		}
		d.cancel()

		d.consumersMu.RLock()
		consumers := append([]Consumer(nil), d.consumers...)
		d.consumersMu.RUnlock()
		for _, c := range consumers {
			if closer, ok := c.(io.Closer); ok {
				if err := closer.Close(); err != nil {
					errs = append(errs, fmt.Errorf("close consumer %s: %w", c.Name(), err))
				}
			}
		}
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}

func (d *Dispatcher) drain() {
	defer close(d.done)
	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	d.consumersMu.RLock()
	consumers := d.consumers
	d.consumersMu.RUnlock()

	for _, c := range consumers {
		if err := d.consume(c, ev); err != nil {
			d.failed.Add(1)
			d.logger.Warn("consumer failed", "consumer", c.Name(), "type", ev.Type, "error", err)
			if d.onErr != nil {
				d.onErr(c.Name(), ev, err)
			}
		}
	}
	d.delivered.Add(1)
}

// consume invokes c, converting a panic into an error.
func (d *Dispatcher) consume(c Consumer, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.Consume(d.ctx, ev)
}
