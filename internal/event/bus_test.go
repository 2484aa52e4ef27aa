package event

import (
	"context"
	"strings"
	"testing"
	"time"

	"sprite/internal/metrics"
)

func TestBusSubscribePublish(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{})
	t.Cleanup(bus.Close)

	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(42)

	select {
	case got := <-ch:
		if got != 42 {
			t.Fatalf("expected 42, got %d", got)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected channel to close after cancel")
	}
	cancel()
}

func TestBusFilter(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{})
	t.Cleanup(bus.Close)

	ch, cancel := bus.SubscribeFiltered(func(value int) bool { return value%2 == 0 })
	defer cancel()

	bus.Publish(1)
	bus.Publish(2)

	if got := <-ch; got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected event %d", got)
	default:
	}
}

func TestBusDropOnFull(t *testing.T) {
	registry := metrics.New()
	bus := NewBus[string](context.Background(), BusOptions{Name: "deliveries", SubscriberBufferSize: 1, Registry: registry})
	t.Cleanup(bus.Close)

	ch, _ := bus.Subscribe()
	bus.Publish("first")
	bus.Publish("second")

	if got := <-ch; got != "first" {
		t.Fatalf("expected first, got %q", got)
	}
	if bus.Dropped() != 1 || bus.Published() != 2 {
		t.Fatalf("expected 2 published and 1 dropped, got %d and %d", bus.Published(), bus.Dropped())
	}
	var out strings.Builder
	if err := registry.WriteText(&out); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
	if !strings.Contains(out.String(), `sprite_events_dropped_total{bus="deliveries"} 1`) {
		t.Fatalf("expected dropped metric:\n%s", out.String())
	}
}

func TestBusHistoryKeepsMostRecent(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{HistorySize: 3})
	t.Cleanup(bus.Close)

	for i := 1; i <= 5; i++ {
		bus.Publish(i)
	}
	got := bus.History()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestBusClosesWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewBus[int](ctx, BusOptions{})
	ch, _ := bus.Subscribe()

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("bus did not close with its context")
	}
	bus.Publish(1)
	late, _ := bus.Subscribe()
	if _, ok := <-late; ok {
		t.Fatal("expected subscription on a closed bus to be closed")
	}
}

func TestNilBusIsSafe(t *testing.T) {
	var bus *Bus[int]
	bus.Publish(1)
	bus.Close()
	ch, cancel := bus.Subscribe()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel from nil bus")
	}
	if bus.History() != nil || bus.Dropped() != 0 {
		t.Fatal("expected empty nil bus")
	}
}
