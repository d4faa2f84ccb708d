package core

import (
	"context"
	"strings"
	"sync"
	"time"
)

// SourceKind tags where a track came from. All kinds converge to the same
// Track shape so playback and reporting stay source-agnostic.
type SourceKind int

const (
	// SourceDirect is a direct media URL handed to the fetcher as-is.
	SourceDirect SourceKind = iota
	// SourceCatalogSingle is a single item resolved through the catalog.
	SourceCatalogSingle
	// SourceCatalogCollectionItem is one item of an imported playlist
	// or album.
	SourceCatalogCollectionItem
)

func (k SourceKind) String() string {
	switch k {
	case SourceCatalogSingle:
		return "catalog_single"
	case SourceCatalogCollectionItem:
		return "catalog_collection_item"
	default:
		return "direct"
	}
}

// DownloadStatus is the download lifecycle of a track. Transitions happen
// exclusively inside the download pipeline: Pending → Downloading →
// {Ready | Failed}.
type DownloadStatus int

const (
	StatusPending DownloadStatus = iota
	StatusDownloading
	StatusReady
	StatusFailed
)

func (s DownloadStatus) String() string {
	switch s {
	case StatusDownloading:
		return "downloading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Track is one resolved, playable unit of audio. Metadata fields are set
// by the resolver before the track is shared and are read-only afterwards;
// download state is guarded and signalled through the methods below.
type Track struct {
	ID           string
	Source       SourceKind
	OriginURL    string
	StreamURL    string
	Title        string
	Artists      []string
	Album        string
	ThumbnailURL string
	Duration     time.Duration

	mu        sync.Mutex
	status    DownloadStatus
	localPath string
	err       error
	done      chan struct{}
}

// NewTrack returns a Pending track ready to be filled in by a resolver.
func NewTrack(id string, source SourceKind) *Track {
	return &Track{
		ID:     id,
		Source: source,
		done:   make(chan struct{}),
	}
}

// ArtistLine joins the ordered artist list for display.
func (t *Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// DisplayTitle is "Artist - Title", falling back to the bare title.
func (t *Track) DisplayTitle() string {
	if len(t.Artists) == 0 {
		return t.Title
	}
	return t.Artists[0] + " - " + t.Title
}

// Status returns the current download status.
func (t *Track) Status() DownloadStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// MarkDownloading moves a Pending track to Downloading. A track that has
// already reached a terminal status stays there.
func (t *Track) MarkDownloading() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusPending {
		t.status = StatusDownloading
	}
}

// Complete marks the track Ready with its local media path and signals
// any waiter. No-op if the track already reached a terminal status.
func (t *Track) Complete(localPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusReady || t.status == StatusFailed {
		return
	}
	t.status = StatusReady
	t.localPath = localPath
	close(t.done)
}

// Fail marks the track Failed and signals any waiter. No-op if the track
// already reached a terminal status.
func (t *Track) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusReady || t.status == StatusFailed {
		return
	}
	t.status = StatusFailed
	t.err = err
	close(t.done)
}

// LocalPath returns the downloaded media path; ok is false unless the
// track is Ready.
func (t *Track) LocalPath() (path string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.localPath, t.status == StatusReady
}

// Err returns the terminal failure, if any.
func (t *Track) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed once the track reaches Ready or Failed.
func (t *Track) Done() <-chan struct{} {
	return t.done
}

// TrackSummary is the read-only queue view handed to callers and the
// reporting layer.
type TrackSummary struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Artists      []string       `json:"artists,omitempty"`
	OriginURL    string         `json:"url"`
	ThumbnailURL string         `json:"thumbnail,omitempty"`
	Duration     time.Duration  `json:"-"`
	Status       DownloadStatus `json:"-"`
}

// Summary snapshots the track for read-only consumers.
func (t *Track) Summary() TrackSummary {
	return TrackSummary{
		ID:           t.ID,
		Title:        t.Title,
		Artists:      t.Artists,
		OriginURL:    t.OriginURL,
		ThumbnailURL: t.ThumbnailURL,
		Duration:     t.Duration,
		Status:       t.Status(),
	}
}

// Resolver turns a user-supplied locator into one or more tracks. A
// collection locator yields at most the configured import cap, in source
// order.
type Resolver interface {
	Resolve(ctx context.Context, locator string) ([]*Track, error)
}

// Downloader is the shared bounded download pool. Submit never blocks;
// Cancel releases a queued or in-flight job's worker slot immediately.
type Downloader interface {
	Submit(t *Track)
	Cancel(t *Track)
}

// VoiceGateway joins voice channels. The transport behind it (codec,
// UDP, heartbeats) is an external collaborator.
type VoiceGateway interface {
	Join(ctx context.Context, guildID, channelID string) (VoiceConn, error)
}

// VoiceConn is one live voice-channel connection.
type VoiceConn interface {
	// Play starts streaming the local media file. The returned channel
	// receives exactly one value when streaming ends: nil on natural
	// completion or Stop, an error on transport failure. A duration of
	// zero means "stream until stopped".
	Play(path string, duration time.Duration) (<-chan error, error)
	Pause() error
	Resume() error
	// SetVolume adjusts the output gain in percent (100 = nominal).
	// Takes effect on the current stream and any that follow.
	SetVolume(percent int) error
	// Stop aborts the current stream; the channel returned by Play
	// receives nil.
	Stop() error
	// ListenerCount is the number of non-bot members in the channel.
	ListenerCount() int
	Close() error
}

// Stats receives playback and pipeline events for metrics exposure.
type Stats interface {
	RecordEnqueued(n int)
	RecordEnqueueRejected()
	RecordSongPlayed(guildID string)
	RecordDownload(outcome string, elapsed time.Duration)
	SetActiveDownloads(n int)
	SetActiveSessions(n int)
}

// PlayRecord is one row of play history.
type PlayRecord struct {
	GuildID      string    `json:"-"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail,omitempty"`
	PlayedAt     time.Time `json:"-"`
}

// PlayCount is an aggregated top-played entry.
type PlayCount struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// HistoryStore is the persisted-state collaborator. Write-only from the
// core except for the reporting reads and the "was this guild already
// counted" check.
type HistoryStore interface {
	RecordPlay(ctx context.Context, guildID string, t *Track) error
	RecentPlays(ctx context.Context, limit int) ([]PlayRecord, error)
	TopPlays(ctx context.Context, limit int) ([]PlayCount, error)
	SongsPlayed(ctx context.Context, guildID string) (int, error)
	TotalSongsPlayed(ctx context.Context) (int, error)
}
