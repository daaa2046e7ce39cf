package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/maritime-simulator/model"
)

func snapshotAt(tick uint64) model.RunSnapshot {
	return model.RunSnapshot{
		Status: model.RunStatus{State: model.RunRunning, Configured: true, Tick: tick, DurationTicks: 10},
		Vessels: []model.VesselSnapshot{{
			ID:    "Cargo-1",
			Kind:  model.KindCargo,
			State: model.StateMoving,
		}},
	}
}

type clientCounter struct {
	mu     sync.Mutex
	counts []int
}

func (c *clientCounter) set(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = append(c.counts, n)
}

func (c *clientCounter) last() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.counts) == 0 {
		return -1
	}
	return c.counts[len(c.counts)-1]
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubSendsLatestThenPublished(t *testing.T) {
	counter := &clientCounter{}
	hub := NewHub(WithClientGauge(counter.set))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	hub.Publish(snapshotAt(3))

	conn := dial(t, srv)
	defer conn.Close()

	first := readMessage(t, conn)
	if first.Type != "snapshot" || first.Snapshot.Status.Tick != 3 || first.TickLabel != "3 / 10" {
		t.Fatalf("first message = %+v", first)
	}
	if len(first.Snapshot.Vessels) != 1 || first.Snapshot.Vessels[0].ID != "Cargo-1" {
		t.Fatalf("vessels = %+v", first.Snapshot.Vessels)
	}

	waitFor(t, func() bool { return hub.Clients() == 1 })
	hub.Publish(snapshotAt(4))
	if got := readMessage(t, conn); got.Snapshot.Status.Tick != 4 {
		t.Fatalf("second message tick = %d, want 4", got.Snapshot.Status.Tick)
	}
	if counter.last() != 1 {
		t.Fatalf("client gauge = %d, want 1", counter.last())
	}

	_ = conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 0 })
	if counter.last() != 0 {
		t.Fatalf("client gauge after close = %d, want 0", counter.last())
	}
}

func TestPublishDoesNotBlockOnIdleClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 1 })

	done := make(chan struct{})
	go func() {
		for i := uint64(1); i <= 500; i++ {
			hub.Publish(snapshotAt(i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Publish blocked on a client that is not reading")
	}

	// Intermediate frames may be dropped but the last one is always delivered.
	var last uint64
	for last != 500 {
		last = readMessage(t, conn).Snapshot.Status.Tick
	}
}

func TestOffersKeepOnlyNewestPayload(t *testing.T) {
	c := &client{send: make(chan []byte, 1)}
	c.offer([]byte("a"))
	c.offer([]byte("b"))
	if got := string(<-c.send); got != "b" {
		t.Fatalf("queued payload = %q, want b", got)
	}
}
