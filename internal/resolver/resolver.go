// Package resolver turns user playback requests into downloadable tracks.
// It classifies the request, consults the catalog for canonical metadata
// where a catalog link was given, and locates a playable media stream for
// every track it returns.
package resolver

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"musho/internal/catalog"
	"musho/internal/core"
	"musho/internal/media"
	"musho/pkg/fuzzy"
	"musho/pkg/locator"
)

// collectionWorkers bounds parallel media lookups during a collection
// import so one playlist cannot monopolize the search backend.
const collectionWorkers = 4

// Catalog is the slice of the catalog client the resolver needs.
type Catalog interface {
	Track(ctx context.Context, id string) (catalog.Track, error)
	Playlist(ctx context.Context, id string, limit int) (catalog.Collection, error)
	Album(ctx context.Context, id string, limit int) (catalog.Collection, error)
}

// Finder locates playable media for a query or catalog track.
type Finder interface {
	Search(ctx context.Context, query string) ([]media.Result, error)
	BestMatch(ctx context.Context, want fuzzy.Candidate, album string) (*media.Result, error)
	Lookup(ctx context.Context, rawURL string) (*media.Result, bool, error)
}

// Resolver implements core.Resolver on top of the catalog and media search.
type Resolver struct {
	catalog     Catalog
	finder      Finder
	importLimit int
	logger      *zap.Logger

	seq atomic.Uint64
}

// New builds a resolver. importLimit caps collection imports at the
// resolver level regardless of what the catalog returns.
func New(cfg core.PlaybackConfig, cat Catalog, finder Finder, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		catalog:     cat,
		finder:      finder,
		importLimit: cfg.CollectionImportLimit,
		logger:      logger.Named("resolver"),
	}
}

// Resolve classifies the raw request and produces tracks ready for the
// download pipeline. Collection requests yield at most the import limit,
// in source order; items that cannot be located are skipped, not fatal.
func (r *Resolver) Resolve(ctx context.Context, raw string) ([]*core.Track, error) {
	req, err := locator.Classify(raw)
	if err != nil {
		return nil, &core.ResolutionError{Locator: raw, Err: err}
	}

	switch req.Kind {
	case locator.KindCatalogCollection:
		tracks, err := r.fromCollection(ctx, req)
		if err != nil {
			return nil, &core.ResolutionError{Locator: raw, Err: err}
		}
		return tracks, nil
	case locator.KindCatalogTrack:
		t, err := r.fromCatalogTrack(ctx, req.CatalogID, core.SourceCatalogSingle)
		if err != nil {
			return nil, &core.ResolutionError{Locator: raw, Err: err}
		}
		return []*core.Track{t}, nil
	case locator.KindDirectMedia:
		t, err := r.fromDirect(ctx, req.Text)
		if err != nil {
			return nil, &core.ResolutionError{Locator: raw, Err: err}
		}
		return []*core.Track{t}, nil
	default:
		t, err := r.fromQuery(ctx, req.Text)
		if err != nil {
			return nil, &core.ResolutionError{Locator: raw, Err: err}
		}
		return []*core.Track{t}, nil
	}
}

// fromQuery searches the media backend directly with the user's text.
func (r *Resolver) fromQuery(ctx context.Context, query string) (*core.Track, error) {
	results, err := r.finder.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, media.ErrNoMatch
	}
	res := results[0]

	t := core.NewTrack(r.nextID(res.VideoID), core.SourceDirect)
	applyMedia(t, &res)
	return t, nil
}

// fromDirect accepts any http(s) URL. Known media hosts get metadata from
// a lookup; anything else is streamed as-is with the URL as its title.
func (r *Resolver) fromDirect(ctx context.Context, rawURL string) (*core.Track, error) {
	res, ok, err := r.finder.Lookup(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if ok {
		t := core.NewTrack(r.nextID(res.VideoID), core.SourceDirect)
		applyMedia(t, res)
		return t, nil
	}

	t := core.NewTrack(r.nextID("direct"), core.SourceDirect)
	t.OriginURL = rawURL
	t.StreamURL = rawURL
	t.Title = rawURL
	return t, nil
}

// fromCatalogTrack fetches canonical metadata, then fuzzy-matches a media
// stream against it.
func (r *Resolver) fromCatalogTrack(ctx context.Context, id string, source core.SourceKind) (*core.Track, error) {
	meta, err := r.catalog.Track(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.locate(ctx, meta, source)
}

// fromCollection enumerates the collection up to the import cap and
// resolves media for each item concurrently, preserving source order.
func (r *Resolver) fromCollection(ctx context.Context, req locator.Request) ([]*core.Track, error) {
	var (
		coll catalog.Collection
		err  error
	)
	switch req.Collection {
	case locator.CollectionAlbum:
		coll, err = r.catalog.Album(ctx, req.CatalogID, r.importLimit)
	default:
		coll, err = r.catalog.Playlist(ctx, req.CatalogID, r.importLimit)
	}
	if err != nil {
		return nil, err
	}
	if len(coll.Tracks) == 0 {
		return nil, fmt.Errorf("collection %s is empty", req.CatalogID)
	}

	items := coll.Tracks
	if len(items) > r.importLimit {
		items = items[:r.importLimit]
	}

	resolved := make([]*core.Track, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(collectionWorkers)
	for i := range items {
		g.Go(func() error {
			t, err := r.locate(gctx, items[i], core.SourceCatalogCollectionItem)
			if err != nil {
				// Skip unlocatable items instead of failing the import.
				r.logger.Warn("collection item skipped",
					zap.String("collection", req.CatalogID),
					zap.String("title", items[i].Title),
					zap.Error(err))
				return nil
			}
			resolved[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tracks := make([]*core.Track, 0, len(resolved))
	for _, t := range resolved {
		if t != nil {
			tracks = append(tracks, t)
		}
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no playable tracks in collection %s", req.CatalogID)
	}

	r.logger.Info("collection resolved",
		zap.String("collection", req.CatalogID),
		zap.String("name", coll.Name),
		zap.Int("requested", len(coll.Tracks)),
		zap.Int("resolved", len(tracks)))
	return tracks, nil
}

// locate finds the best media stream for a catalog track.
func (r *Resolver) locate(ctx context.Context, meta catalog.Track, source core.SourceKind) (*core.Track, error) {
	want := fuzzy.Candidate{
		Title:    meta.Title,
		Duration: meta.Duration,
	}
	if len(meta.Artists) > 0 {
		want.Artist = meta.Artists[0]
	}

	res, err := r.finder.BestMatch(ctx, want, meta.Album)
	if err != nil {
		return nil, fmt.Errorf("locate %q: %w", meta.Title, err)
	}

	t := core.NewTrack(r.nextID(meta.ID), source)
	t.OriginURL = meta.URL
	t.StreamURL = res.URL
	t.Title = meta.Title
	t.Artists = meta.Artists
	t.Album = meta.Album
	t.ThumbnailURL = meta.ThumbnailURL
	t.Duration = meta.Duration
	if t.ThumbnailURL == "" {
		t.ThumbnailURL = res.ThumbnailURL
	}
	return t, nil
}

func applyMedia(t *core.Track, res *media.Result) {
	t.OriginURL = res.URL
	t.StreamURL = res.URL
	t.Title = res.Title
	if res.Channel != "" {
		t.Artists = []string{res.Channel}
	}
	t.ThumbnailURL = res.ThumbnailURL
	t.Duration = res.Duration
}

// nextID mints a queue-unique track ID. The base keeps download files
// debuggable; the sequence keeps concurrent enqueues of the same item
// from sharing on-disk state.
func (r *Resolver) nextID(base string) string {
	if base == "" {
		base = "track"
	}
	return fmt.Sprintf("%s-%06d", base, r.seq.Add(1))
}
