package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeEngine struct {
	results []int
	err     error
	cutoffs []time.Time
}

func (f *fakeEngine) SweepNoShows(_ context.Context, cutoff time.Time, _ int) (int, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.err != nil {
		return 0, f.err
	}
	if len(f.results) == 0 {
		return 0, nil
	}
	n := f.results[0]
	f.results = f.results[1:]
	return n, nil
}

func newWorker(f *fakeEngine) *Worker {
	w := New(f, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Grace: 10 * time.Minute, BatchSize: 2})
	w.now = func() time.Time { return time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC) }
	return w
}

func TestSweepDrainsFullBatches(t *testing.T) {
	f := &fakeEngine{results: []int{2, 2, 1}}
	if got := newWorker(f).Sweep(context.Background()); got != 5 {
		t.Fatalf("moved %d, want 5", got)
	}
	if len(f.cutoffs) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(f.cutoffs))
	}
	want := time.Date(2026, 3, 2, 17, 50, 0, 0, time.UTC)
	for _, c := range f.cutoffs {
		if !c.Equal(want) {
			t.Fatalf("cutoff %v, want %v", c, want)
		}
	}
}

func TestSweepStopsOnError(t *testing.T) {
	f := &fakeEngine{err: errors.New("db down")}
	if got := newWorker(f).Sweep(context.Background()); got != 0 {
		t.Fatalf("moved %d on error", got)
	}
	if len(f.cutoffs) != 1 {
		t.Fatalf("expected one attempt, got %d", len(f.cutoffs))
	}
}

func TestRunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		newWorker(&fakeEngine{}).Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
