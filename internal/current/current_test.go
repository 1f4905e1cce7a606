package current

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"olimpia/internal/domain"
)

func receive(t *testing.T, ch <-chan domain.CurrentEvent) domain.CurrentEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for current event")
	}
	return domain.CurrentEvent{}
}

func TestTrackerFanOut(t *testing.T) {
	tr := NewTracker(nil)
	a, cancelA := tr.Subscribe()
	b, cancelB := tr.Subscribe()
	defer cancelB()
	tr.Publish(context.Background(), domain.CurrentEvent{EventID: "games-2024"})
	if ev := receive(t, a); ev.EventID != "games-2024" {
		t.Fatalf("a got %+v", ev)
	}
	if ev := receive(t, b); ev.EventID != "games-2024" {
		t.Fatalf("b got %+v", ev)
	}
	cancelA()
	cancelA()
	if _, ok := <-a; ok {
		t.Fatalf("cancelled subscription should be closed")
	}
	if tr.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", tr.Subscribers())
	}
}

func TestTrackerPrimesAndKeepsLatest(t *testing.T) {
	tr := NewTracker(nil)
	tr.Notify(domain.CurrentEvent{EventID: "first"})
	ch, cancel := tr.Subscribe()
	defer cancel()
	if ev := receive(t, ch); ev.EventID != "first" {
		t.Fatalf("subscription should be primed, got %+v", ev)
	}
	for i := 0; i < subscriberBuffer*3; i++ {
		tr.Notify(domain.CurrentEvent{EventID: "burst"})
	}
	tr.Notify(domain.CurrentEvent{EventID: "last"})
	var ev domain.CurrentEvent
	for len(ch) > 0 {
		ev = <-ch
	}
	if ev.EventID != "last" {
		t.Fatalf("latest value lost, got %+v", ev)
	}
}

func TestRedisBusBetweenTrackers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewRedisBus(client, "", nil)
	sender, receiver := NewTracker(nil), NewTracker(nil)
	sender.SetBus(bus)
	ready := make(chan struct{})
	go bus.Listen(ctx, receiver, ready)
	<-ready

	ch, stop := receiver.Subscribe()
	defer stop()
	sender.Publish(ctx, domain.CurrentEvent{EventID: "regional", UpdatedBy: "judge-1"})
	if ev := receive(t, ch); ev.EventID != "regional" || ev.UpdatedBy != "judge-1" {
		t.Fatalf("receiver got %+v", ev)
	}
}

func TestWebsocketStream(t *testing.T) {
	tr := NewTracker(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := httptest.NewServer(NewHandler(ctx, tr, nil, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for tr.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	tr.Publish(ctx, domain.CurrentEvent{EventID: "finals"})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != MessageTypeCurrentEvent || msg.Event.EventID != "finals" {
		t.Fatalf("unexpected message %+v", msg)
	}
}
