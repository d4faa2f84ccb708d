// Package pipeline is the shared bounded download pool: every guild's
// enqueued tracks funnel through the same small set of workers, so
// download concurrency is capped process-wide no matter how many guilds
// are active.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"musho/internal/core"
)

const (
	outcomeSuccess   = "success"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
)

// Fetcher turns a track's stream reference into a local media file.
type Fetcher interface {
	Fetch(ctx context.Context, t *core.Track) (localPath string, err error)
}

// job is one track's download attempt bookkeeping, owned by the pool.
type job struct {
	track  *core.Track
	ctx    context.Context
	cancel context.CancelFunc
}

// Pool runs a fixed number of download workers over a FIFO admission
// queue. Submit never blocks; Cancel releases a queued or in-flight
// job's slot immediately.
type Pool struct {
	logger  *zap.Logger
	fetcher Fetcher
	stats   core.Stats

	maxAttempts    int
	retryBackoff   time.Duration
	attemptTimeout time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	pending []*job
	byTrack map[*core.Track]*job
	active  int
	closed  bool

	wg sync.WaitGroup
}

// New starts cfg.Workers download workers.
func New(cfg core.DownloadConfig, fetcher Fetcher, stats core.Stats, logger *zap.Logger) *Pool {
	if stats == nil {
		stats = core.NopStats{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		logger:         logger.Named("pipeline"),
		fetcher:        fetcher,
		stats:          stats,
		maxAttempts:    cfg.MaxAttempts,
		retryBackoff:   cfg.RetryBackoff,
		attemptTimeout: cfg.AttemptTimeout,
		byTrack:        make(map[*core.Track]*job),
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("download pool started", zap.Int("workers", cfg.Workers))
	return p
}

// Submit admits a track for download. It never blocks: the job waits in
// the FIFO queue until a worker is free. Submitting to a closed pool
// fails the track immediately.
func (p *Pool) Submit(t *core.Track) {
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{track: t, ctx: ctx, cancel: cancel}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		cancel()
		t.Fail(errors.New("download pool closed"))
		return
	}
	if _, dup := p.byTrack[t]; dup {
		p.mu.Unlock()
		cancel()
		return
	}
	p.pending = append(p.pending, j)
	p.byTrack[t] = j
	p.cond.Signal()
	p.mu.Unlock()
}

// Cancel aborts the track's job. A queued job is discarded; an in-flight
// job has its context cancelled so the worker abandons the fetch and the
// slot frees up right away. The track is driven to a terminal status so
// waiters unblock.
func (p *Pool) Cancel(t *core.Track) {
	p.mu.Lock()
	j, ok := p.byTrack[t]
	if ok {
		delete(p.byTrack, t)
		for i, q := range p.pending {
			if q == j {
				p.pending = append(p.pending[:i], p.pending[i+1:]...)
				break
			}
		}
	}
	p.mu.Unlock()

	if !ok {
		return
	}
	j.cancel()
	t.Fail(context.Canceled)
	p.logger.Debug("download cancelled", zap.String("trackID", t.ID))
}

// Close stops accepting jobs, cancels everything queued or in flight,
// and waits for the workers to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	pending := p.pending
	p.pending = nil
	jobs := make([]*job, 0, len(p.byTrack))
	for _, j := range p.byTrack {
		jobs = append(jobs, j)
	}
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, j := range pending {
		j.track.Fail(errors.New("download pool closed"))
	}
	for _, j := range jobs {
		j.cancel()
	}
	p.wg.Wait()
	p.logger.Info("download pool stopped")
}

// take blocks until a job is available or the pool closes.
func (p *Pool) take() (*job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.pending) == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.closed {
		return nil, false
	}
	j := p.pending[0]
	p.pending = p.pending[1:]
	p.active++
	p.stats.SetActiveDownloads(p.active)
	return j, true
}

func (p *Pool) release(j *job) {
	p.mu.Lock()
	delete(p.byTrack, j.track)
	p.active--
	p.stats.SetActiveDownloads(p.active)
	p.mu.Unlock()
	j.cancel()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	logger := p.logger.With(zap.Int("worker", id))

	for {
		j, ok := p.take()
		if !ok {
			return
		}
		p.runJob(logger, j)
		p.release(j)
	}
}

// runJob drives one track through its bounded retry loop.
func (p *Pool) runJob(logger *zap.Logger, j *job) {
	t := j.track
	t.MarkDownloading()
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if j.ctx.Err() != nil {
			t.Fail(context.Canceled)
			p.stats.RecordDownload(outcomeCancelled, time.Since(start))
			return
		}

		path, err := p.fetchOnce(j)
		if err == nil {
			t.Complete(path)
			p.stats.RecordDownload(outcomeSuccess, time.Since(start))
			logger.Info("download complete",
				zap.String("trackID", t.ID),
				zap.String("title", t.Title),
				zap.Int("attempt", attempt),
				zap.Duration("elapsed", time.Since(start)))
			return
		}
		if errors.Is(err, context.Canceled) || j.ctx.Err() != nil {
			t.Fail(context.Canceled)
			p.stats.RecordDownload(outcomeCancelled, time.Since(start))
			logger.Debug("download abandoned", zap.String("trackID", t.ID))
			return
		}

		lastErr = err
		logger.Warn("download attempt failed",
			zap.String("trackID", t.ID),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", p.maxAttempts),
			zap.Error(err))

		if attempt < p.maxAttempts && !p.backoff(j, attempt) {
			t.Fail(context.Canceled)
			p.stats.RecordDownload(outcomeCancelled, time.Since(start))
			return
		}
	}

	t.Fail(&core.DownloadError{TrackID: t.ID, Attempts: p.maxAttempts, Err: lastErr})
	p.stats.RecordDownload(outcomeFailed, time.Since(start))
	logger.Error("download failed permanently",
		zap.String("trackID", t.ID),
		zap.String("title", t.Title),
		zap.Error(lastErr))
}

func (p *Pool) fetchOnce(j *job) (string, error) {
	ctx := j.ctx
	if p.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.attemptTimeout)
		defer cancel()
	}
	return p.fetcher.Fetch(ctx, j.track)
}

// backoff sleeps before the next attempt, doubling each time. Returns
// false when the job was cancelled while waiting.
func (p *Pool) backoff(j *job, attempt int) bool {
	delay := p.retryBackoff << (attempt - 1)
	select {
	case <-time.After(delay):
		return true
	case <-j.ctx.Done():
		return false
	}
}
