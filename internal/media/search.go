// Package media talks to the media-hosting side of the world: searching
// for playable streams and fetching them to local files.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ppalone/ytsearch"
	"go.uber.org/zap"

	"musho/internal/core"
	"musho/pkg/durfmt"
	"musho/pkg/fuzzy"
)

// Result is one media-host search hit.
type Result struct {
	VideoID      string
	Title        string
	Channel      string
	URL          string
	ThumbnailURL string
	Duration     time.Duration
}

// ErrNoMatch is returned when a search yields nothing usable.
var ErrNoMatch = errors.New("media: no matching stream")

// Searcher finds playable streams on the media host.
type Searcher struct {
	client  *ytsearch.Client
	matcher *fuzzy.Matcher
	logger  *zap.Logger
	timeout time.Duration
}

func NewSearcher(cfg core.MediaConfig, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		client:  ytsearch.NewClient(nil),
		matcher: fuzzy.NewMatcher(),
		logger:  logger.Named("media.search"),
		timeout: cfg.SearchTimeout,
	}
}

// Search runs a plain query against the media host.
func (s *Searcher) Search(ctx context.Context, query string) ([]Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("media search %q: %w", query, err)
	}

	out := make([]Result, 0, len(res.Results))
	for _, v := range res.Results {
		if v.VideoID == "" {
			continue
		}
		out = append(out, fromSearchResult(v.VideoID, v.Title, v.Channel, v.Duration))
	}
	s.logger.Debug("media search", zap.String("query", query), zap.Int("results", len(out)))
	return out, nil
}

// BestMatch searches "artist title album" and returns the result closest
// to the wanted track by normalized title, artist and duration.
func (s *Searcher) BestMatch(ctx context.Context, want fuzzy.Candidate, album string) (*Result, error) {
	query := strings.TrimSpace(want.Artist + " " + want.Title + " " + album)
	results, err := s.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	best := bestOf(s.matcher, results, want)
	if best == nil {
		return nil, ErrNoMatch
	}
	s.logger.Debug("stream selected",
		zap.String("query", query),
		zap.String("videoID", best.VideoID),
		zap.String("title", best.Title))
	return best, nil
}

// Lookup resolves metadata for a direct media-host URL by searching for
// its video ID. ok is false when the URL does not belong to the host.
func (s *Searcher) Lookup(ctx context.Context, rawURL string) (*Result, bool, error) {
	id, ok := videoIDFromURL(rawURL)
	if !ok {
		return nil, false, nil
	}
	results, err := s.Search(ctx, id)
	if err != nil {
		return nil, true, err
	}
	for i := range results {
		if results[i].VideoID == id {
			return &results[i], true, nil
		}
	}
	return nil, true, ErrNoMatch
}

// bestOf ranks results against the wanted candidate.
func bestOf(m *fuzzy.Matcher, results []Result, want fuzzy.Candidate) *Result {
	var best *Result
	bestScore := -1.0
	for i := range results {
		r := &results[i]
		score := m.Score(want, fuzzy.Candidate{
			Title:    r.Title,
			Artist:   r.Channel,
			Duration: r.Duration,
		})
		if score > bestScore {
			best, bestScore = r, score
		}
	}
	return best
}

func fromSearchResult(videoID, title, channel, duration string) Result {
	d, err := durfmt.Parse(duration)
	if err != nil {
		d = 0 // live streams and premieres carry no length
	}
	return Result{
		VideoID:      videoID,
		Title:        title,
		Channel:      channel,
		URL:          "https://www.youtube.com/watch?v=" + videoID,
		ThumbnailURL: "https://i.ytimg.com/vi/" + videoID + "/hqdefault.jpg",
		Duration:     d,
	}
}

// videoIDFromURL extracts the media host's video ID from watch and short
// URLs.
func videoIDFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return id, true
		}
		// /shorts/<id> and /embed/<id> paths.
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 && (parts[0] == "shorts" || parts[0] == "embed") {
			return parts[1], true
		}
	case "youtu.be":
		id := strings.Trim(u.Path, "/")
		if id != "" {
			return id, true
		}
	}
	return "", false
}
