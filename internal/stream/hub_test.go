package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func testHub(replay ReplayFunc) *Hub {
	return NewHub(slog.Default(), replay)
}

func assessed(id string, score int) domain.AssessedTransaction {
	return domain.AssessedTransaction{
		Transaction: domain.Transaction{ID: id, Amount: 100, Currency: "USD"},
		Assessment: domain.RiskAssessment{
			Score: score,
			Level: domain.LevelForScore(score),
		},
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	if n := h.ClientCount(); n != 1 {
		t.Errorf("expected 1 connected client, got %d", n)
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	if n := h.ClientCount(); n != 0 {
		t.Errorf("expected 0 connected clients after unregister, got %d", n)
	}
}

func TestHub_BroadcastToClient(t *testing.T) {
	h := testHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
	}
	h.register <- client
	time.Sleep(50 * time.Millisecond)

	atx := assessed("tx-stream-001", 75)
	h.BroadcastTransaction(&atx)

	select {
	case payload := <-client.send:
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("failed to parse event: %v", err)
		}
		if event.Type != EventTransaction {
			t.Errorf("expected transaction event, got %s", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHub_BroadcastAlert(t *testing.T) {
	h := testHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{hub: h, send: make(chan []byte, 256)}
	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.BroadcastAlert(&domain.Alert{
		ID:            "alert-001",
		TransactionID: "tx-stream-002",
		Type:          domain.AlertVelocity,
		Priority:      domain.PriorityHigh,
	})

	select {
	case payload := <-client.send:
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("failed to parse event: %v", err)
		}
		if event.Type != EventAlert {
			t.Errorf("expected alert event, got %s", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for alert broadcast")
	}
}

func TestHub_SlowClientEvicted(t *testing.T) {
	h := testHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Unbuffered send channel with no reader fills immediately.
	slow := &Client{hub: h, send: make(chan []byte)}
	h.register <- slow
	time.Sleep(50 * time.Millisecond)

	atx := assessed("tx-stream-003", 30)
	h.BroadcastTransaction(&atx)
	time.Sleep(100 * time.Millisecond)

	if n := h.ClientCount(); n != 0 {
		t.Errorf("expected slow client to be evicted, %d still connected", n)
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub(nil)
	ctx, cancel := context.WithCancel(context.Background())

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{hub: h, send: make(chan []byte, 256)}
	h.register <- client
	time.Sleep(50 * time.Millisecond)

	cancel()
	time.Sleep(100 * time.Millisecond)

	if n := h.ClientCount(); n != 0 {
		t.Errorf("expected all clients dropped on shutdown, got %d", n)
	}

	// The client's channel is closed on shutdown.
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected send channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed after shutdown")
	}
}

func TestHub_Stats(t *testing.T) {
	h := testHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{hub: h, send: make(chan []byte, 256)}
	h.register <- client
	time.Sleep(50 * time.Millisecond)

	atx := assessed("tx-stream-004", 10)
	h.BroadcastTransaction(&atx)
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("expected 1 connected client, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 1 {
		t.Errorf("expected 1 total event, got %v", stats["totalEvents"])
	}
}
