package staging

import (
	"context"
	"log"
	"time"
)

// SweeperConfig controls the background removal of stale artifacts.
type SweeperConfig struct {
	Enabled  bool
	Interval time.Duration
	MaxAge   time.Duration
	Store    Store
	// OnSweep, if set, is called after every run.
	OnSweep func(removed int, err error)
}

// RunSweeper periodically removes artifacts older than MaxAge. Requests
// delete their own artifacts; this only catches what a crash left behind.
// It blocks until ctx is done.
func RunSweeper(ctx context.Context, cfg SweeperConfig) {
	if !cfg.Enabled || cfg.Store == nil {
		log.Printf("service=sweeper msg=%q", "disabled")
		return
	}

	log.Printf("service=sweeper msg=%q interval=%s max_age=%s",
		"starting", cfg.Interval, cfg.MaxAge)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// Run immediately on start
	SweepOnce(ctx, cfg)

	for {
		select {
		case <-ctx.Done():
			log.Printf("service=sweeper msg=%q", "shutting_down")
			return
		case <-ticker.C:
			SweepOnce(ctx, cfg)
		}
	}
}

// SweepOnce performs a single sweep and returns the number of removed artifacts.
func SweepOnce(ctx context.Context, cfg SweeperConfig) int {
	start := time.Now()
	cutoff := start.Add(-cfg.MaxAge)

	removed, err := cfg.Store.Sweep(ctx, cutoff)
	if cfg.OnSweep != nil {
		cfg.OnSweep(removed, err)
	}
	if err != nil {
		log.Printf("service=sweeper msg=%q removed=%d err=%v", "sweep_failed", removed, err)
		return removed
	}

	if removed > 0 {
		log.Printf("service=sweeper msg=%q removed=%d duration_ms=%d",
			"sweep_complete", removed, time.Since(start).Milliseconds())
	}
	return removed
}
