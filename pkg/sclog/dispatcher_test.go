package sclog_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blightveil/sclog/pkg/sclog"
)

// recorder collects consumed events.
type recorder struct {
	name string
	mu   sync.Mutex
	got  []sclog.Event
	err  error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Consume(_ context.Context, ev sclog.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
	return r.err
}

func (r *recorder) events() []sclog.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sclog.Event(nil), r.got...)
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	d := sclog.NewDispatcher()
	a := &recorder{name: "a"}
	b := &recorder{name: "b"}
	d.Register(a)
	d.Register(b)

	ctx := context.Background()
	types := []sclog.EventType{sclog.EventActorDeath, sclog.EventZoneAlert, sclog.EventQuantumTravelAttempt}
	for _, typ := range types {
		if err := d.Publish(ctx, sclog.Event{Type: typ}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, r := range []*recorder{a, b} {
		got := r.events()
		if len(got) != len(types) {
			t.Fatalf("consumer %s got %d events, want %d", r.name, len(got), len(types))
		}
		for i, typ := range types {
			if got[i].Type != typ {
				t.Errorf("consumer %s event %d = %s, want %s", r.name, i, got[i].Type, typ)
			}
		}
	}

	if names := d.Consumers(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Consumers() = %v, want [a b]", names)
	}
}

func TestDispatcher_ConsumerFailureIsolated(t *testing.T) {
	var (
		mu     sync.Mutex
		failed []string
	)
	d := sclog.NewDispatcher(sclog.WithOnConsumerError(func(name string, _ sclog.Event, _ error) {
		mu.Lock()
		failed = append(failed, name)
		mu.Unlock()
	}))

	d.Register(&recorder{name: "erroring", err: errors.New("webhook down")})
	d.Register(sclog.ConsumerFunc{
		ConsumerName: "panicking",
		Fn: func(context.Context, sclog.Event) error {
			panic("boom")
		},
	})
	healthy := &recorder{name: "healthy"}
	d.Register(healthy)

	if err := d.Publish(context.Background(), sclog.Event{Type: sclog.EventActorDeath}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	d.Close()

	if n := len(healthy.events()); n != 1 {
		t.Errorf("healthy consumer got %d events, want 1", n)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(failed) != 2 || failed[0] != "erroring" || failed[1] != "panicking" {
		t.Errorf("failed consumers = %v, want [erroring panicking]", failed)
	}

	delivered, dropped, failures := d.Stats()
	if delivered != 1 || dropped != 0 || failures != 2 {
		t.Errorf("Stats() = (%d, %d, %d), want (1, 0, 2)", delivered, dropped, failures)
	}
}

func TestDispatcher_DropOnFull(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	d := sclog.NewDispatcher(sclog.WithBufferSize(1), sclog.WithDropOnFull(true))
	d.Register(sclog.ConsumerFunc{
		ConsumerName: "slow",
		Fn: func(ctx context.Context, _ sclog.Event) error {
			once.Do(func() { close(started) })
			<-release
			return nil
		},
	})
	defer d.Close()
	defer close(release)

	ctx := context.Background()
	if err := d.Publish(ctx, sclog.Event{Type: sclog.EventActorDeath}); err != nil {
		t.Fatalf("first Publish() error = %v", err)
	}
	<-started // consumer holds the first event

	if err := d.Publish(ctx, sclog.Event{Type: sclog.EventActorDeath}); err != nil {
		t.Fatalf("second Publish() error = %v (fills buffer)", err)
	}
	if err := d.Publish(ctx, sclog.Event{Type: sclog.EventActorDeath}); !errors.Is(err, sclog.ErrEventDropped) {
		t.Errorf("third Publish() error = %v, want %v", err, sclog.ErrEventDropped)
	}

	if _, dropped, _ := d.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestDispatcher_PublishBlocksUntilContextDone(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	d := sclog.NewDispatcher(sclog.WithBufferSize(0))
	d.Register(sclog.ConsumerFunc{
		ConsumerName: "slow",
		Fn: func(context.Context, sclog.Event) error {
			once.Do(func() { close(started) })
			<-release
			return nil
		},
	})
	defer d.Close()
	defer close(release)

	if err := d.Publish(context.Background(), sclog.Event{Type: sclog.EventZoneAlert}); err != nil {
		t.Fatal(err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Publish(ctx, sclog.Event{Type: sclog.EventZoneAlert}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Publish() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestDispatcher_PublishAfterClose(t *testing.T) {
	d := sclog.NewDispatcher()
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	err := d.Publish(context.Background(), sclog.Event{Type: sclog.EventActorDeath})
	if !errors.Is(err, sclog.ErrDispatcherClosed) {
		t.Errorf("Publish() error = %v, want %v", err, sclog.ErrDispatcherClosed)
	}
}

func TestDispatcher_CloseTimesOut(t *testing.T) {
	started := make(chan struct{})
	d := sclog.NewDispatcher(sclog.WithDrainTimeout(20 * time.Millisecond))
	d.Register(sclog.ConsumerFunc{
		ConsumerName: "stuck",
		Fn: func(ctx context.Context, _ sclog.Event) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	})

	if err := d.Publish(context.Background(), sclog.Event{Type: sclog.EventActorDeath}); err != nil {
		t.Fatal(err)
	}
	<-started

	if err := d.Close(); err == nil {
		t.Error("Close() error = nil, want drain timeout")
	}
}

func TestChannelConsumer(t *testing.T) {
	d := sclog.NewDispatcher()
	ch := sclog.NewChannelConsumer(4)
	d.Register(ch)

	for i := 0; i < 3; i++ {
		if err := d.Publish(context.Background(), sclog.Event{Type: sclog.EventDoorStateChanged}); err != nil {
			t.Fatal(err)
		}
	}
	d.Close()

	var n int
	for range ch.Events() {
		n++
	}
	if n != 3 {
		t.Errorf("received %d events, want 3", n)
	}
}
