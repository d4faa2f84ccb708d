package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"musho/internal/core"
)

// fetchFunc adapts a function to the Fetcher interface.
type fetchFunc func(ctx context.Context, t *core.Track) (string, error)

func (f fetchFunc) Fetch(ctx context.Context, t *core.Track) (string, error) {
	return f(ctx, t)
}

// gateFetcher blocks every fetch until released and records peak
// concurrency.
type gateFetcher struct {
	mu        sync.Mutex
	active    int
	maxActive int
	release   chan struct{}
}

func newGateFetcher() *gateFetcher {
	return &gateFetcher{release: make(chan struct{})}
}

func (f *gateFetcher) Fetch(ctx context.Context, t *core.Track) (string, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	select {
	case <-f.release:
		return "media/" + t.ID + ".opus", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *gateFetcher) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

func testConfig(workers int) core.DownloadConfig {
	return core.DownloadConfig{
		Workers:        workers,
		MaxAttempts:    3,
		RetryBackoff:   time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func newTrack(id string) *core.Track {
	t := core.NewTrack(id, core.SourceDirect)
	t.Title = "Track " + id
	t.StreamURL = "https://example.com/" + id
	return t
}

func awaitDone(t *testing.T, tr *core.Track) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("track %s never reached a terminal status", tr.ID)
	}
}

func TestPool_BoundedConcurrency(t *testing.T) {
	fetcher := newGateFetcher()
	p := New(testConfig(2), fetcher, nil, nil)
	defer p.Close()

	tracks := make([]*core.Track, 5)
	for i := range tracks {
		tracks[i] = newTrack(string(rune('a' + i)))
		p.Submit(tracks[i])
	}

	// Give the workers time to pick up whatever they can.
	time.Sleep(50 * time.Millisecond)
	if got := fetcher.peak(); got > 2 {
		t.Fatalf("peak concurrent downloads = %d, want at most 2", got)
	}

	close(fetcher.release)
	for _, tr := range tracks {
		awaitDone(t, tr)
		if tr.Status() != core.StatusReady {
			t.Errorf("track %s status = %v, want ready", tr.ID, tr.Status())
		}
	}
}

// Cancelling a track whose download is in flight must free the worker
// slot immediately for the next job, even one from another guild.
func TestPool_CancelInFlightFreesSlot(t *testing.T) {
	fetcher := newGateFetcher()
	p := New(testConfig(1), fetcher, nil, nil)
	defer p.Close()

	stuck := newTrack("stuck")
	next := newTrack("next")
	p.Submit(stuck)
	time.Sleep(20 * time.Millisecond) // let the worker start on stuck
	p.Submit(next)

	p.Cancel(stuck)

	awaitDone(t, stuck)
	if stuck.Status() != core.StatusFailed {
		t.Errorf("cancelled track status = %v, want failed", stuck.Status())
	}
	if !errors.Is(stuck.Err(), context.Canceled) {
		t.Errorf("cancelled track err = %v, want context.Canceled", stuck.Err())
	}

	// The freed slot must pick up the waiting job without the gate ever
	// opening for the cancelled one.
	close(fetcher.release)
	awaitDone(t, next)
	if next.Status() != core.StatusReady {
		t.Errorf("successor status = %v, want ready", next.Status())
	}
}

func TestPool_CancelQueuedJob(t *testing.T) {
	fetcher := newGateFetcher()
	p := New(testConfig(1), fetcher, nil, nil)
	defer p.Close()

	running := newTrack("running")
	queued := newTrack("queued")
	p.Submit(running)
	time.Sleep(20 * time.Millisecond)
	p.Submit(queued)

	p.Cancel(queued)
	awaitDone(t, queued)
	if queued.Status() != core.StatusFailed {
		t.Errorf("queued track status = %v, want failed", queued.Status())
	}

	close(fetcher.release)
	awaitDone(t, running)
	if running.Status() != core.StatusReady {
		t.Errorf("running track status = %v, want ready", running.Status())
	}
}

func TestPool_RetriesThenSucceeds(t *testing.T) {
	var calls int
	var mu sync.Mutex
	fetcher := fetchFunc(func(ctx context.Context, tr *core.Track) (string, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 3 {
			return "", errors.New("transient network error")
		}
		return "media/ok.opus", nil
	})

	p := New(testConfig(1), fetcher, nil, nil)
	defer p.Close()

	tr := newTrack("flaky")
	p.Submit(tr)
	awaitDone(t, tr)

	if tr.Status() != core.StatusReady {
		t.Fatalf("status = %v, want ready after retries", tr.Status())
	}
	if path, _ := tr.LocalPath(); path != "media/ok.opus" {
		t.Errorf("local path = %s", path)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Errorf("fetch attempts = %d, want 3", calls)
	}
}

func TestPool_PermanentFailureAfterAttempts(t *testing.T) {
	fetcher := fetchFunc(func(ctx context.Context, tr *core.Track) (string, error) {
		return "", errors.New("host unreachable")
	})

	cfg := testConfig(1)
	cfg.MaxAttempts = 2
	p := New(cfg, fetcher, nil, nil)
	defer p.Close()

	tr := newTrack("dead")
	p.Submit(tr)
	awaitDone(t, tr)

	if tr.Status() != core.StatusFailed {
		t.Fatalf("status = %v, want failed", tr.Status())
	}
	var dlErr *core.DownloadError
	if !errors.As(tr.Err(), &dlErr) {
		t.Fatalf("err = %v, want DownloadError", tr.Err())
	}
	if dlErr.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", dlErr.Attempts)
	}
}

func TestPool_SubmitNeverBlocks(t *testing.T) {
	fetcher := newGateFetcher()
	defer close(fetcher.release)
	p := New(testConfig(1), fetcher, nil, nil)
	defer p.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			p.Submit(newTrack(string(rune('A' + i))))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked with a saturated pool")
	}
}

func TestPool_CloseFailsPendingJobs(t *testing.T) {
	fetcher := newGateFetcher()
	p := New(testConfig(1), fetcher, nil, nil)

	running := newTrack("running")
	queued := newTrack("queued")
	p.Submit(running)
	time.Sleep(20 * time.Millisecond)
	p.Submit(queued)

	p.Close()

	awaitDone(t, running)
	awaitDone(t, queued)
	if running.Status() != core.StatusFailed || queued.Status() != core.StatusFailed {
		t.Errorf("statuses after close = %v/%v, want failed/failed", running.Status(), queued.Status())
	}

	late := newTrack("late")
	p.Submit(late)
	awaitDone(t, late)
	if late.Status() != core.StatusFailed {
		t.Errorf("submit after close status = %v, want failed", late.Status())
	}
}
