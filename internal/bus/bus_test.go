package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		var received atomic.Bool
		var receivedMsg *domain.Message

		var wg sync.WaitGroup
		wg.Add(1)

		_, err := bus.Subscribe(ctx, "test.topic", func(ctx context.Context, msg *domain.Message) error {
			receivedMsg = msg
			received.Store(true)
			wg.Done()
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		// Allow subscription to be active
		time.Sleep(10 * time.Millisecond)

		err = bus.Publish(ctx, "test.topic", []byte("hello"))
		if err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			// Success
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}

		if !received.Load() {
			t.Error("message not received")
		}
		if string(receivedMsg.Payload) != "hello" {
			t.Errorf("expected payload 'hello', got '%s'", string(receivedMsg.Payload))
		}
		if receivedMsg.Topic != "test.topic" {
			t.Errorf("expected topic 'test.topic', got '%s'", receivedMsg.Topic)
		}
	})

	t.Run("TopicIsolation", func(t *testing.T) {
		var received1 atomic.Int32
		var received2 atomic.Int32

		bus.Subscribe(ctx, "isolation.one", func(ctx context.Context, msg *domain.Message) error {
			received1.Add(1)
			return nil
		})
		bus.Subscribe(ctx, "isolation.two", func(ctx context.Context, msg *domain.Message) error {
			received2.Add(1)
			return nil
		})

		time.Sleep(10 * time.Millisecond)

		bus.Publish(ctx, "isolation.one", []byte("msg1"))
		time.Sleep(50 * time.Millisecond)

		if received1.Load() != 1 {
			t.Errorf("topic one should receive 1 message, got %d", received1.Load())
		}
		if received2.Load() != 0 {
			t.Errorf("topic two should receive 0 messages, got %d", received2.Load())
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32

		sub, err := bus.Subscribe(ctx, "unsub.topic", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		time.Sleep(10 * time.Millisecond)
		bus.Publish(ctx, "unsub.topic", []byte("before"))
		time.Sleep(50 * time.Millisecond)

		sub.Unsubscribe()
		time.Sleep(10 * time.Millisecond)

		bus.Publish(ctx, "unsub.topic", []byte("after"))
		time.Sleep(50 * time.Millisecond)

		if count.Load() != 1 {
			t.Errorf("expected 1 message after unsubscribe, got %d", count.Load())
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var count atomic.Int32

		for i := 0; i < 3; i++ {
			bus.Subscribe(ctx, "fanout.topic", func(ctx context.Context, msg *domain.Message) error {
				count.Add(1)
				return nil
			})
		}

		time.Sleep(10 * time.Millisecond)
		bus.Publish(ctx, "fanout.topic", []byte("broadcast"))
		time.Sleep(50 * time.Millisecond)

		if count.Load() != 3 {
			t.Errorf("expected 3 deliveries, got %d", count.Load())
		}
	})
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(10)

	ctx := context.Background()
	if err := bus.Ping(ctx); err != nil {
		t.Errorf("ping should succeed on open bus: %v", err)
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if err := bus.Ping(ctx); err == nil {
		t.Error("ping should fail on closed bus")
	}
	if err := bus.Publish(ctx, "topic", []byte("data")); err == nil {
		t.Error("publish should fail on closed bus")
	}
	if _, err := bus.Subscribe(ctx, "topic", nil); err == nil {
		t.Error("subscribe should fail on closed bus")
	}

	// Closing twice is fine.
	if err := bus.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}
}

func TestBusFactory(t *testing.T) {
	b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 10})
	if err != nil {
		t.Fatalf("factory failed for channel bus: %v", err)
	}
	b.Close()

	if _, err := New(domain.EventBusConfig{Type: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unsupported bus type")
	}
}
