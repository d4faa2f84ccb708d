package core

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EnqueueResult reports what an enqueue admitted. Dropped counts
// collection items that did not fit in the remaining queue capacity.
type EnqueueResult struct {
	Accepted []TrackSummary
	Dropped  int
}

// SessionOptions wires a session's collaborators.
type SessionOptions struct {
	GuildID   string
	GuildName string
	ChannelID string

	Config   PlaybackConfig
	Logger   *zap.Logger
	Resolver Resolver
	Pool     Downloader
	Gateway  VoiceGateway
	Stats    Stats
	History  HistoryStore

	// OnChange is invoked after every externally visible state change
	// (reporting cursor bump). OnClose is invoked once, after teardown.
	OnChange func()
	OnClose  func(guildID string)

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// Session owns one guild's playback queue and state machine. All mutation
// goes through its methods; a single playback goroutine advances the
// queue, so guild-scoped operations are serialized and guilds never block
// each other.
type Session struct {
	guildID   string
	guildName string
	channelID string

	cfg      PlaybackConfig
	logger   *zap.Logger
	resolver Resolver
	pool     Downloader
	gateway  VoiceGateway
	stats    Stats
	history  HistoryStore
	onChange func()
	onClose  func(string)
	clock    func() time.Time

	mu       sync.Mutex
	cond     *sync.Cond
	state    SessionState
	queue    []*Track
	current  *Track
	progress Progress
	conn     VoiceConn
	volume   int
	closing  bool

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSession creates a session in Idle and starts its playback and idle
// watcher goroutines.
func NewSession(opts SessionOptions) *Session {
	if opts.Stats == nil {
		opts.Stats = NopStats{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Config.MaxVolume < 1 {
		opts.Config.MaxVolume = 200
	}

	s := &Session{
		guildID:   opts.GuildID,
		guildName: opts.GuildName,
		channelID: opts.ChannelID,
		cfg:       opts.Config,
		logger:    opts.Logger.Named("session").With(zap.String("guildID", opts.GuildID)),
		resolver:  opts.Resolver,
		pool:      opts.Pool,
		gateway:   opts.Gateway,
		stats:     opts.Stats,
		history:   opts.History,
		onChange:  opts.OnChange,
		onClose:   opts.OnClose,
		clock:     opts.Clock,
		state:     StateIdle,
		volume:    clampVolume(opts.Config.DefaultVolume, opts.Config.MaxVolume),
		closed:    make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	s.wg.Add(2)
	go s.run()
	go s.watchIdle()
	return s
}

func (s *Session) GuildID() string   { return s.guildID }
func (s *Session) GuildName() string { return s.guildName }

// State returns the current state machine position.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Enqueue resolves a locator and admits the resulting tracks. A single
// track against a full queue is rejected with ErrQueueFull; a collection
// is admitted up to the remaining capacity and the overflow count is
// reported in the result. Admitted tracks are handed to the shared
// download pool immediately.
func (s *Session) Enqueue(ctx context.Context, locator string) (EnqueueResult, error) {
	if s.isClosing() {
		return EnqueueResult{}, ErrSessionClosed
	}

	tracks, err := s.resolver.Resolve(ctx, locator)
	if err != nil {
		return EnqueueResult{}, err
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return EnqueueResult{}, ErrSessionClosed
	}
	free := s.cfg.MaxBuffer - len(s.queue)
	if free <= 0 {
		s.mu.Unlock()
		s.stats.RecordEnqueueRejected()
		s.logger.Debug("enqueue rejected, queue full", zap.String("locator", locator))
		return EnqueueResult{}, ErrQueueFull
	}
	admitted := tracks
	if len(admitted) > free {
		admitted = tracks[:free]
	}
	s.queue = append(s.queue, admitted...)
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, t := range admitted {
		s.pool.Submit(t)
		go s.watchDownload(t)
	}

	s.stats.RecordEnqueued(len(admitted))
	s.touch()

	result := EnqueueResult{
		Accepted: make([]TrackSummary, len(admitted)),
		Dropped:  len(tracks) - len(admitted),
	}
	for i, t := range admitted {
		result.Accepted[i] = t.Summary()
	}
	s.logger.Info("tracks enqueued",
		zap.Int("accepted", len(admitted)),
		zap.Int("dropped", result.Dropped))
	return result, nil
}

// Skip stops the current track; the playback loop advances to the next
// queued track. A successor's in-flight download is not touched.
func (s *Session) Skip(ctx context.Context) (TrackSummary, error) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return TrackSummary{}, ErrSessionClosed
	}
	if s.current == nil {
		s.mu.Unlock()
		return TrackSummary{}, ErrNothingPlaying
	}
	summary := s.current.Summary()
	conn := s.conn
	s.mu.Unlock()

	if err := conn.Stop(); err != nil {
		return TrackSummary{}, err
	}
	s.logger.Info("track skipped", zap.String("title", summary.Title))
	return summary, nil
}

// Pause freezes playback and the progress clock.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return ErrSessionClosed
	}
	if s.state != StatePlaying || s.current == nil {
		return ErrInvalidState
	}
	if err := s.conn.Pause(); err != nil {
		return err
	}
	s.progress.Pause(s.clock())
	s.transitionLocked(StatePaused)
	return nil
}

// Resume continues playback; the pause interval is accounted so elapsed
// time stays continuous.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return ErrSessionClosed
	}
	if s.state != StatePaused {
		return ErrInvalidState
	}
	if err := s.conn.Resume(); err != nil {
		return err
	}
	s.progress.Resume(s.clock())
	s.transitionLocked(StatePlaying)
	return nil
}

// SetVolume sets the guild's playback volume in percent, clamped to
// [0, MaxVolume]. It applies to the current stream immediately and
// persists for later tracks. Returns the volume actually set.
func (s *Session) SetVolume(ctx context.Context, percent int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return 0, ErrSessionClosed
	}

	s.volume = clampVolume(percent, s.cfg.MaxVolume)
	if s.conn != nil {
		if err := s.conn.SetVolume(s.volume); err != nil {
			return 0, err
		}
	}
	s.logger.Info("volume set", zap.Int("percent", s.volume))
	return s.volume, nil
}

// Volume is the guild's current playback volume in percent.
func (s *Session) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func clampVolume(percent, maxVolume int) int {
	if percent < 0 {
		return 0
	}
	if percent > maxVolume {
		return maxVolume
	}
	return percent
}

// Clear drops every queued track, cancelling their downloads. The
// currently playing track is untouched. Returns how many were dropped.
func (s *Session) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return 0, ErrSessionClosed
	}
	dropped := s.queue
	s.queue = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, t := range dropped {
		s.discard(t)
	}
	if len(dropped) > 0 {
		s.touch()
	}
	s.logger.Info("queue cleared", zap.Int("dropped", len(dropped)))
	return len(dropped), nil
}

// PeekQueue returns summaries of the queued tracks in play order. It
// never mutates state and is safe for concurrent callers.
func (s *Session) PeekQueue() []TrackSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrackSummary, len(s.queue))
	for i, t := range s.queue {
		out[i] = t.Summary()
	}
	return out
}

// QueueLength is the number of queued (not yet playing) tracks.
func (s *Session) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close transitions the session to Disconnecting, cancels all pending
// downloads, tears down the voice connection and blocks until the
// session goroutines have exited. Idempotent.
func (s *Session) Close() {
	s.beginClose()
	s.wg.Wait()
}

// beginClose makes the session terminal without waiting for goroutine
// exit, so the playback loop itself may call it.
func (s *Session) beginClose() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.transitionLocked(StateDisconnecting)
		dropped := s.queue
		s.queue = nil
		conn := s.conn
		s.cond.Broadcast()
		s.mu.Unlock()

		close(s.closed)
		for _, t := range dropped {
			s.discard(t)
		}
		if conn != nil {
			// Unblock the playback loop if it is mid-stream.
			if err := conn.Stop(); err != nil {
				s.logger.Debug("stopping stream on close", zap.Error(err))
			}
		}
		s.touch()
	})
}

func (s *Session) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// run is the playback loop: wait for a head-of-queue track, connect,
// wait (bounded) for its download, play it, repeat.
func (s *Session) run() {
	defer s.wg.Done()
	defer s.teardown()

	for {
		head, ok := s.next()
		if !ok {
			return
		}
		if err := s.connect(); err != nil {
			s.logger.Error("voice connection failed",
				zap.String("channelID", s.channelID),
				zap.Error(err))
			s.beginClose()
			return
		}
		if !s.awaitReady(head) {
			continue
		}
		if !s.play(head) {
			s.beginClose()
			return
		}
	}
}

// next blocks until a track is queued or the session is closing. With an
// empty queue the session falls back to Idle.
func (s *Session) next() (*Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closing {
		// Nothing is playing; Paused counts too (the current track was
		// skipped or finished while paused).
		if s.state != StateIdle {
			s.transitionLocked(StateIdle)
		}
		s.cond.Wait()
	}
	if s.closing {
		return nil, false
	}
	return s.queue[0], true
}

// connect joins the voice channel if not already connected. Idle →
// Connecting happens here, driven by the first enqueue.
func (s *Session) connect() error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateIdle {
		s.transitionLocked(StateConnecting)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := s.gateway.Join(ctx, s.guildID, s.channelID)
	if err != nil {
		return &VoiceConnectionError{GuildID: s.guildID, Err: err}
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.logger.Info("voice channel joined", zap.String("channelID", s.channelID))
	return nil
}

// awaitReady waits (bounded by ReadyWait) for the head track's download.
// Returns true when the track is Ready and still at the head; false means
// the loop should move on (track failed, timed out, or was removed).
func (s *Session) awaitReady(t *Track) bool {
	timer := time.NewTimer(s.cfg.ReadyWait)
	defer timer.Stop()

	timedOut := false
	select {
	case <-t.Done():
	case <-timer.C:
		timedOut = true
	case <-s.closed:
		return false
	}

	s.mu.Lock()
	if s.closing || len(s.queue) == 0 || s.queue[0] != t {
		s.mu.Unlock()
		return false
	}
	if t.Status() == StatusReady {
		s.mu.Unlock()
		return true
	}
	// Failed or still downloading past the deadline: drop it and move on.
	s.queue = s.queue[1:]
	s.mu.Unlock()

	if timedOut {
		s.logger.Warn("track not ready in time, skipping",
			zap.String("trackID", t.ID),
			zap.String("title", t.Title),
			zap.Duration("readyWait", s.cfg.ReadyWait))
	} else {
		s.logger.Warn("track failed to download, skipping",
			zap.String("trackID", t.ID),
			zap.String("title", t.Title),
			zap.Error(t.Err()))
	}
	s.discard(t)
	s.touch()
	return false
}

// play pops the head track and streams it to the voice connection,
// blocking until the stream ends. Returns false on a fatal transport
// error.
func (s *Session) play(t *Track) bool {
	s.mu.Lock()
	if s.closing || len(s.queue) == 0 || s.queue[0] != t {
		s.mu.Unlock()
		return true
	}
	path, ok := t.LocalPath()
	if !ok {
		s.mu.Unlock()
		return true
	}
	s.queue = s.queue[1:]
	conn := s.conn

	if err := conn.SetVolume(s.volume); err != nil {
		s.logger.Warn("applying volume", zap.Int("percent", s.volume), zap.Error(err))
	}
	end, err := conn.Play(path, t.Duration)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("starting stream failed", zap.String("trackID", t.ID), zap.Error(err))
		return false
	}
	s.current = t
	s.progress = StartProgress(s.clock(), t.Duration)
	s.transitionLocked(StatePlaying)
	s.mu.Unlock()

	s.touch()
	s.stats.RecordSongPlayed(s.guildID)
	s.recordPlay(t)
	s.logger.Info("track started",
		zap.String("trackID", t.ID),
		zap.String("title", t.Title),
		zap.Duration("duration", t.Duration))

	streamErr := <-end

	s.mu.Lock()
	s.current = nil
	s.progress = Progress{}
	s.mu.Unlock()
	s.touch()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Debug("removing consumed media", zap.String("path", path), zap.Error(err))
	}
	s.logger.Info("track finished", zap.String("trackID", t.ID), zap.String("title", t.Title))

	if streamErr != nil {
		s.logger.Error("voice stream lost", zap.String("trackID", t.ID), zap.Error(streamErr))
		return false
	}
	return true
}

// watchDownload prunes a track from the queue if its download permanently
// fails while it is not yet at the head.
func (s *Session) watchDownload(t *Track) {
	select {
	case <-t.Done():
	case <-s.closed:
		return
	}
	if t.Status() != StatusFailed {
		return
	}

	s.mu.Lock()
	removed := false
	for i, q := range s.queue {
		if q == t {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			removed = true
			break
		}
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	if removed {
		s.logger.Warn("dropping failed track from queue",
			zap.String("trackID", t.ID),
			zap.String("title", t.Title),
			zap.Error(t.Err()))
		s.touch()
	}
}

// watchIdle samples channel occupancy and tears the session down after
// sustained listener absence.
func (s *Session) watchIdle() {
	defer s.wg.Done()

	monitor := NewIdleMonitor(s.cfg.IdleTimeout)
	ticker := time.NewTicker(s.cfg.IdlePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()
			if conn == nil {
				monitor.Reset()
				continue
			}
			if monitor.Observe(conn.ListenerCount(), s.clock()) {
				s.logger.Info("listeners absent past idle timeout, disconnecting",
					zap.Duration("idleTimeout", s.cfg.IdleTimeout))
				s.beginClose()
				return
			}
		}
	}
}

// discard cancels a track's download job and deletes any media it
// already produced. Only for tracks already removed from the queue.
func (s *Session) discard(t *Track) {
	s.pool.Cancel(t)
	if path, ok := t.LocalPath(); ok {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Debug("removing discarded media", zap.String("path", path), zap.Error(err))
		}
	}
}

func (s *Session) recordPlay(t *Track) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.RecordPlay(ctx, s.guildID, t); err != nil {
		s.logger.Warn("recording play history", zap.String("trackID", t.ID), zap.Error(err))
	}
}

func (s *Session) teardown() {
	s.beginClose()

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Warn("closing voice connection", zap.Error(err))
		}
	}
	if s.onClose != nil {
		s.onClose(s.guildID)
	}
	s.logger.Info("session closed")
}

func (s *Session) transitionLocked(to SessionState) {
	if s.state == to {
		return
	}
	if !canTransition(s.state, to) {
		s.logger.Warn("illegal state transition",
			zap.Stringer("from", s.state),
			zap.Stringer("to", to))
		return
	}
	s.logger.Debug("state transition",
		zap.Stringer("from", s.state),
		zap.Stringer("to", to))
	s.state = to
}

func (s *Session) touch() {
	if s.onChange != nil {
		s.onChange()
	}
}

// NopStats discards all events. Used when no metrics sink is wired.
type NopStats struct{}

func (NopStats) RecordEnqueued(int)                   {}
func (NopStats) RecordEnqueueRejected()               {}
func (NopStats) RecordSongPlayed(string)              {}
func (NopStats) RecordDownload(string, time.Duration) {}
func (NopStats) SetActiveDownloads(int)               {}
func (NopStats) SetActiveSessions(int)                {}
