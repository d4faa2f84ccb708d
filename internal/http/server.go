// Package http serves the dashboard stats API, health endpoints, and
// Prometheus metrics.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"musho/internal/core"
	"musho/pkg/durfmt"
)

// historyLimit caps the song_history and top_songs arrays in the stats
// payload.
const historyLimit = 8

// SessionSource is the slice of the session registry the server reads.
type SessionSource interface {
	Snapshot(now time.Time) []core.SessionView
	LastUpdated() int64
	Len() int
}

// HistoryReader is the read side of the history store.
type HistoryReader interface {
	RecentPlays(ctx context.Context, limit int) ([]core.PlayRecord, error)
	TopPlays(ctx context.Context, limit int) ([]core.PlayCount, error)
	SongsPlayed(ctx context.Context, guildID string) (int, error)
	TotalSongsPlayed(ctx context.Context) (int, error)
	KnownGuilds() int
}

type Server struct {
	config   core.ServerConfig
	logger   *zap.Logger
	server   *http.Server
	sessions SessionSource
	history  HistoryReader
	metrics  *Metrics
	started  time.Time
	clock    func() time.Time
}

func NewServer(config core.ServerConfig, sessions SessionSource, history HistoryReader, metrics *Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config:   config,
		logger:   logger.Named("http"),
		sessions: sessions,
		history:  history,
		metrics:  metrics,
		started:  time.Now(),
		clock:    time.Now,
	}
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

// Handler builds the route table. Exposed so tests can drive the server
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/stats", s.handleStats)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"musho"}`))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready","service":"musho"}`))
	})

	mux.Handle("/metrics", s.metrics.Handler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Musho</title></head>
<body>
    <h1>Musho</h1>
    <p>Voice playback service.</p>
    <ul>
        <li><a href="/api/stats">Stats API</a></li>
        <li><a href="/metrics">Prometheus metrics</a></li>
        <li><a href="/healthz">Health</a></li>
        <li><a href="/readyz">Ready</a></li>
    </ul>
</body>
</html>`))
	})

	return mux
}

type botStats struct {
	StartTimestamp      int64 `json:"start_timestamp"`
	Guilds              int   `json:"guilds"`
	TotalSongsPlayed    int   `json:"total_songs_played"`
	ActiveVoiceChannels int   `json:"active_voice_channels"`
	TotalQueueLength    int   `json:"total_queue_length"`
	LastUpdated         int64 `json:"last_updated"`
}

type currentSong struct {
	Title           string `json:"title"`
	URL             string `json:"url"`
	Thumbnail       string `json:"thumbnail,omitempty"`
	Duration        string `json:"duration"`
	DurationSeconds int    `json:"duration_seconds"`
	Progress        string `json:"progress"`
	StartTimeUnix   int64  `json:"start_time_unix"`
}

type guildStats struct {
	Name        string       `json:"name"`
	MemberCount int          `json:"member_count"`
	SongsPlayed int          `json:"songs_played"`
	QueueLength int          `json:"queue_length"`
	CurrentSong *currentSong `json:"current_song,omitempty"`
}

type statsResponse struct {
	BotStats    botStats              `json:"bot_stats"`
	SongHistory []core.PlayRecord     `json:"song_history"`
	TopSongs    []core.PlayCount      `json:"top_songs"`
	GuildStats  map[string]guildStats `json:"guild_stats"`
}

type noChangesResponse struct {
	LastUpdated int64 `json:"last_updated"`
	NoChanges   bool  `json:"no_changes"`
}

// handleStats serves the dashboard payload. Clients poll with the
// last_updated cursor from their previous response; an unchanged server
// answers with a tiny no_changes body instead of the full payload.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	now := s.clock()
	last := s.sessions.LastUpdated()

	if raw := r.URL.Query().Get("last_updated"); raw != "" {
		cursor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid last_updated"}`, http.StatusBadRequest)
			return
		}
		if cursor >= last {
			s.writeJSON(w, noChangesResponse{LastUpdated: last, NoChanges: true})
			return
		}
	}

	ctx := r.Context()

	totalSongs, err := s.history.TotalSongsPlayed(ctx)
	if err != nil {
		s.fail(w, "total songs", err)
		return
	}
	recent, err := s.history.RecentPlays(ctx, historyLimit)
	if err != nil {
		s.fail(w, "recent plays", err)
		return
	}
	top, err := s.history.TopPlays(ctx, historyLimit)
	if err != nil {
		s.fail(w, "top plays", err)
		return
	}

	views := s.sessions.Snapshot(now)
	totalQueue := 0
	guilds := make(map[string]guildStats, len(views))
	for _, view := range views {
		totalQueue += view.QueueLength

		played, err := s.history.SongsPlayed(ctx, view.GuildID)
		if err != nil {
			s.fail(w, "guild songs", err)
			return
		}

		gs := guildStats{
			Name:        view.GuildName,
			MemberCount: view.ListenerCount,
			SongsPlayed: played,
			QueueLength: view.QueueLength,
		}
		if np := view.NowPlaying; np != nil {
			duration := time.Duration(np.DurationSeconds) * time.Second
			elapsed := time.Duration(np.ElapsedSeconds) * time.Second
			gs.CurrentSong = &currentSong{
				Title:           np.Track.Title,
				URL:             np.Track.OriginURL,
				Thumbnail:       np.Track.ThumbnailURL,
				Duration:        durfmt.String(duration),
				DurationSeconds: np.DurationSeconds,
				Progress:        durfmt.String(elapsed),
				StartTimeUnix:   np.StartTimeUnix,
			}
		}
		guilds[view.GuildID] = gs
	}

	if recent == nil {
		recent = []core.PlayRecord{}
	}
	if top == nil {
		top = []core.PlayCount{}
	}

	s.writeJSON(w, statsResponse{
		BotStats: botStats{
			StartTimestamp:      s.started.Unix(),
			Guilds:              s.history.KnownGuilds(),
			TotalSongsPlayed:    totalSongs,
			ActiveVoiceChannels: len(views),
			TotalQueueLength:    totalQueue,
			LastUpdated:         last,
		},
		SongHistory: recent,
		TopSongs:    top,
		GuildStats:  guilds,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) fail(w http.ResponseWriter, what string, err error) {
	s.logger.Error("stats query failed", zap.String("query", what), zap.Error(err))
	http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}
