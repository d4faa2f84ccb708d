// Package catalog fetches canonical track metadata from the Spotify Web
// API. It only reads the catalog: playback credentials or user scopes are
// never requested, the client-credentials grant is enough.
package catalog

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"musho/internal/core"
)

// Track is one catalog item's normalized metadata.
type Track struct {
	ID           string
	Title        string
	Artists      []string
	Album        string
	ThumbnailURL string
	URL          string
	Duration     time.Duration
}

// Collection is a playlist's or album's enumerated items, in source order.
type Collection struct {
	ID     string
	Name   string
	Owner  string
	Tracks []Track
}

// Client wraps the Spotify Web API with an LRU over single-track lookups
// so hot playlist items are not refetched on every enqueue.
type Client struct {
	client *spotify.Client
	cache  *lru.Cache[string, Track]
	logger *zap.Logger
}

// New authenticates with client credentials and builds the catalog client.
func New(ctx context.Context, cfg core.CatalogConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("catalog credentials not configured")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	size := cfg.CacheSize
	if size < 1 {
		size = 1
	}
	cache, err := lru.New[string, Track](size)
	if err != nil {
		return nil, err
	}

	return &Client{
		client: spotify.New(creds.Client(ctx)),
		cache:  cache,
		logger: logger.Named("catalog"),
	}, nil
}

// Track fetches one catalog track by ID.
func (c *Client) Track(ctx context.Context, id string) (Track, error) {
	if cached, ok := c.cache.Get(id); ok {
		return cached, nil
	}

	full, err := c.client.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return Track{}, fmt.Errorf("catalog track %s: %w", id, err)
	}

	t := convertFullTrack(full)
	c.cache.Add(id, t)
	c.logger.Debug("catalog track fetched",
		zap.String("trackID", id),
		zap.String("title", t.Title))
	return t, nil
}

// Playlist enumerates a playlist's first limit tracks in source order.
func (c *Client) Playlist(ctx context.Context, id string, limit int) (Collection, error) {
	playlistID := spotify.ID(id)

	playlist, err := c.client.GetPlaylist(ctx, playlistID)
	if err != nil {
		return Collection{}, fmt.Errorf("catalog playlist %s: %w", id, err)
	}

	coll := Collection{
		ID:    id,
		Name:  playlist.Name,
		Owner: playlist.Owner.DisplayName,
	}

	offset := 0
	for len(coll.Tracks) < limit {
		page := limit - len(coll.Tracks)
		if page > 100 {
			page = 100
		}
		items, err := c.client.GetPlaylistItems(ctx, playlistID,
			spotify.Limit(page), spotify.Offset(offset))
		if err != nil {
			return Collection{}, fmt.Errorf("catalog playlist items %s: %w", id, err)
		}
		if len(items.Items) == 0 {
			break
		}
		for i := range items.Items {
			full := items.Items[i].Track.Track
			if full == nil {
				continue // episodes and removed items
			}
			t := convertFullTrack(full)
			c.cache.Add(t.ID, t)
			coll.Tracks = append(coll.Tracks, t)
			if len(coll.Tracks) == limit {
				break
			}
		}
		offset += len(items.Items)
	}

	c.logger.Debug("catalog playlist enumerated",
		zap.String("playlistID", id),
		zap.String("name", coll.Name),
		zap.Int("tracks", len(coll.Tracks)))
	return coll, nil
}

// Album enumerates an album's first limit tracks in source order.
func (c *Client) Album(ctx context.Context, id string, limit int) (Collection, error) {
	album, err := c.client.GetAlbum(ctx, spotify.ID(id))
	if err != nil {
		return Collection{}, fmt.Errorf("catalog album %s: %w", id, err)
	}

	coll := Collection{
		ID:   id,
		Name: album.Name,
	}
	if len(album.Artists) > 0 {
		coll.Owner = album.Artists[0].Name
	}
	art := firstImage(album.Images)

	for i := range album.Tracks.Tracks {
		if len(coll.Tracks) == limit {
			break
		}
		st := &album.Tracks.Tracks[i]
		t := Track{
			ID:           string(st.ID),
			Title:        st.Name,
			Artists:      artistNames(st.Artists),
			Album:        album.Name,
			ThumbnailURL: art,
			URL:          st.ExternalURLs["spotify"],
			Duration:     time.Duration(st.Duration) * time.Millisecond,
		}
		c.cache.Add(t.ID, t)
		coll.Tracks = append(coll.Tracks, t)
	}

	c.logger.Debug("catalog album enumerated",
		zap.String("albumID", id),
		zap.String("name", coll.Name),
		zap.Int("tracks", len(coll.Tracks)))
	return coll, nil
}

func convertFullTrack(track *spotify.FullTrack) Track {
	return Track{
		ID:           string(track.ID),
		Title:        track.Name,
		Artists:      artistNames(track.Artists),
		Album:        track.Album.Name,
		ThumbnailURL: firstImage(track.Album.Images),
		URL:          track.ExternalURLs["spotify"],
		Duration:     time.Duration(track.Duration) * time.Millisecond,
	}
}

func artistNames(artists []spotify.SimpleArtist) []string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return names
}

func firstImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
