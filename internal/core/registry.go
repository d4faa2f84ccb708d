package core

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// RegistryOptions carries the collaborators shared by every session the
// registry creates.
type RegistryOptions struct {
	Config   PlaybackConfig
	Logger   *zap.Logger
	Resolver Resolver
	Pool     Downloader
	Gateway  VoiceGateway
	Stats    Stats
	History  HistoryStore
	Clock    func() time.Time
}

// Registry maps guild IDs to their sessions. Entries are created
// explicitly on first use and removed when a session closes; sessions are
// never shared between guilds. It also carries the reporting cursor: a
// unix timestamp bumped on every externally visible change.
type Registry struct {
	opts   RegistryOptions
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	lastUpdated atomic.Int64
}

func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Stats == nil {
		opts.Stats = NopStats{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	r := &Registry{
		opts:     opts,
		logger:   opts.Logger.Named("registry"),
		sessions: make(map[string]*Session),
	}
	r.Touch()
	return r
}

// Session returns the guild's session, creating one bound to the given
// guild name and voice channel if none is active.
func (r *Registry) Session(guildID, guildName, channelID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[guildID]; ok {
		return s
	}
	s := NewSession(SessionOptions{
		GuildID:   guildID,
		GuildName: guildName,
		ChannelID: channelID,
		Config:    r.opts.Config,
		Logger:    r.opts.Logger,
		Resolver:  r.opts.Resolver,
		Pool:      r.opts.Pool,
		Gateway:   r.opts.Gateway,
		Stats:     r.opts.Stats,
		History:   r.opts.History,
		Clock:     r.opts.Clock,
		OnChange:  r.Touch,
		OnClose:   r.remove,
	})
	r.sessions[guildID] = s
	r.opts.Stats.SetActiveSessions(len(r.sessions))
	r.logger.Info("session created", zap.String("guildID", guildID), zap.String("guildName", guildName))
	return s
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(guildID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

func (r *Registry) remove(guildID string) {
	r.mu.Lock()
	_, existed := r.sessions[guildID]
	delete(r.sessions, guildID)
	n := len(r.sessions)
	r.mu.Unlock()

	if existed {
		r.opts.Stats.SetActiveSessions(n)
		r.Touch()
		r.logger.Info("session removed", zap.String("guildID", guildID))
	}
}

// Len is the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot captures every active session for reporting.
func (r *Registry) Snapshot(now time.Time) []SessionView {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	views := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, s.Snapshot(now))
	}
	return views
}

// Touch bumps the reporting cursor to the current time.
func (r *Registry) Touch() {
	now := r.opts.Clock().Unix()
	for {
		prev := r.lastUpdated.Load()
		if prev >= now {
			return
		}
		if r.lastUpdated.CompareAndSwap(prev, now) {
			return
		}
	}
}

// LastUpdated is the unix time of the most recent visible change.
func (r *Registry) LastUpdated() int64 {
	return r.lastUpdated.Load()
}

// Close tears down every session and blocks until they have exited.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
