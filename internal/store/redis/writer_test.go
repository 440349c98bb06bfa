package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tickerwatch/internal/model"
)

// unreachableClient points at a closed port so every command fails fast.
func unreachableClient() *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestKeys(t *testing.T) {
	if got := LatestKey("AAPL"); got != "ticker:latest:AAPL" {
		t.Errorf("LatestKey = %q", got)
	}
	if got := Channel("BTC-USD"); got != "pub:ticker:BTC-USD" {
		t.Errorf("Channel = %q", got)
	}
}

func TestSnapshotWriter_Defaults(t *testing.T) {
	w := NewWithClient(unreachableClient(), Config{}, nil)
	defer w.Close()
	if w.ttl != defaultLatestTTL {
		t.Fatalf("ttl = %v, want %v", w.ttl, defaultLatestTTL)
	}
}

func TestSnapshotWriter_RejectsEmptyID(t *testing.T) {
	w := NewWithClient(unreachableClient(), Config{}, nil)
	defer w.Close()
	if err := w.Write(context.Background(), model.TickerSnapshot{}); err == nil {
		t.Fatal("expected error for snapshot without id")
	}
}

func TestSnapshotWriter_FailuresTripBreaker(t *testing.T) {
	w := NewWithClient(unreachableClient(), Config{MaxFailures: 2, ResetTimeout: time.Minute}, nil)
	defer w.Close()

	var seen []error
	w.OnError = func(err error) { seen = append(seen, err) }

	ctx := context.Background()
	s := model.TickerSnapshot{ID: "AAPL", Price: 1}
	for i := 0; i < 2; i++ {
		if err := w.Write(ctx, s); err == nil || errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("write %d: expected a connection error, got %v", i, err)
		}
	}
	if w.Breaker().CurrentState() != StateOpen {
		t.Fatalf("breaker = %v, want open", w.Breaker().CurrentState())
	}
	if err := w.Write(ctx, s); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("OnError called %d times, want 3", len(seen))
	}
}

func TestSnapshotWriter_RunStopsOnClose(t *testing.T) {
	w := NewWithClient(unreachableClient(), Config{MaxFailures: 1, ResetTimeout: time.Minute}, nil)
	defer w.Close()

	ch := make(chan model.TickerSnapshot, 3)
	ch <- model.TickerSnapshot{ID: "A"}
	ch <- model.TickerSnapshot{ID: "B"}
	ch <- model.TickerSnapshot{ID: "C"}
	close(ch)

	done := make(chan struct{})
	go func() {
		w.Run(context.Background(), ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the channel closed")
	}
	if w.Breaker().Trips() != 1 {
		t.Fatalf("trips = %d, want 1", w.Breaker().Trips())
	}
}

func TestSnapshotWriter_RunStopsOnCancel(t *testing.T) {
	w := NewWithClient(unreachableClient(), Config{}, nil)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx, make(chan model.TickerSnapshot))
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
