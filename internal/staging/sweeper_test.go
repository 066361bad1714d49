package staging

import (
	"context"
	"testing"
	"time"
)

func TestSweepOnce(t *testing.T) {
	s := NewMemoryStore()
	s.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	_ = s.Put(context.Background(), AreaUploads, "stale.txt", nil)
	_ = s.Put(context.Background(), AreaFormatted, "stale_formatted.txt", nil)

	var reported int
	removed := SweepOnce(context.Background(), SweeperConfig{
		MaxAge:  time.Hour,
		Store:   s,
		OnSweep: func(n int, err error) { reported = n },
	})
	if removed != 2 || reported != 2 {
		t.Fatalf("removed=%d reported=%d, want 2", removed, reported)
	}
	if s.Len() != 0 {
		t.Fatalf("store still holds %v", s.Keys())
	}
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunSweeper(ctx, SweeperConfig{
			Enabled:  true,
			Interval: 10 * time.Millisecond,
			MaxAge:   time.Hour,
			Store:    NewMemoryStore(),
		})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestRunSweeper_Disabled(t *testing.T) {
	// Returns immediately.
	RunSweeper(context.Background(), SweeperConfig{Enabled: false})
}
