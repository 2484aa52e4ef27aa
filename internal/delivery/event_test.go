package delivery

import (
	"context"
	"testing"

	"sprite/internal/event"
)

func TestEnginePublishesAttemptAndFinishEvents(t *testing.T) {
	transport := newFakeTransport()
	transport.setPane("sprite-main:0.1", fakePane{ackFrom: 2})
	bus := event.NewBus[Event](context.Background(), event.BusOptions{Name: "deliveries", HistorySize: 8})
	t.Cleanup(bus.Close)
	engine := NewEngine(transport, fastConfig(), Options{Events: bus})

	if _, err := engine.Send(context.Background(), request("m-1", "0.1")); err != nil {
		t.Fatalf("send: %v", err)
	}

	got := bus.History()
	want := []struct {
		kind    EventType
		attempt int
		outcome Outcome
		status  Status
	}{
		{EventAttempt, 1, OutcomeTimedOut, StatusPending},
		{EventAttempt, 2, OutcomeAcked, StatusPending},
		{EventFinished, 2, OutcomeAcked, StatusDelivered},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), got)
	}
	for i, expected := range want {
		ev := got[i]
		if ev.Type != expected.kind || ev.Attempt != expected.attempt || ev.Outcome != expected.outcome || ev.Status != expected.status {
			t.Fatalf("event %d: got %+v", i, ev)
		}
		if ev.MessageID != "m-1" || ev.Agent != "agent-0.1" || ev.Pane != "sprite-main:0.1" {
			t.Fatalf("event %d: unexpected identity %+v", i, ev)
		}
	}
}
