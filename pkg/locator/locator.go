// Package locator classifies playback requests: a request is either a
// catalog track link, a catalog collection link (playlist or album), a
// direct media URL, or a free-text search query.
package locator

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Kind is the classification of a playback request.
type Kind int

const (
	// KindQuery is free text to be searched against the catalog.
	KindQuery Kind = iota
	// KindCatalogTrack is a link to a single catalog track.
	KindCatalogTrack
	// KindCatalogCollection is a link to a catalog playlist or album.
	KindCatalogCollection
	// KindDirectMedia is any other http(s) URL, handed to the media
	// fetcher as-is.
	KindDirectMedia
)

func (k Kind) String() string {
	switch k {
	case KindCatalogTrack:
		return "catalog_track"
	case KindCatalogCollection:
		return "catalog_collection"
	case KindDirectMedia:
		return "direct_media"
	default:
		return "query"
	}
}

// CollectionKind distinguishes the two catalog collection shapes.
type CollectionKind string

const (
	CollectionPlaylist CollectionKind = "playlist"
	CollectionAlbum    CollectionKind = "album"
)

// Request is a classified playback request.
type Request struct {
	Kind Kind
	// Text is the normalized request text. For KindQuery it is the
	// search query; for link kinds it is the cleaned URL.
	Text string
	// CatalogID is set for KindCatalogTrack and KindCatalogCollection.
	CatalogID string
	// Collection is set for KindCatalogCollection.
	Collection CollectionKind
}

var (
	urlRegex        = regexp.MustCompile(`https?://\S+`)
	catalogURIRegex = regexp.MustCompile(`spotify:(track|playlist|album):([A-Za-z0-9]+)`)
	spaceRegex      = regexp.MustCompile(`\s+`)

	catalogDomains = map[string]bool{
		"open.spotify.com": true,
		"spotify.com":      true,
		"play.spotify.com": true,
	}
)

// ErrEmptyRequest is returned when the request contains no usable text.
var ErrEmptyRequest = errors.New("locator: empty request")

// Classify normalizes raw request text and decides how it should be
// resolved. Catalog URIs and links win over other URLs; a request with
// no URL at all is a search query.
func Classify(raw string) (Request, error) {
	text := normalize(raw)
	if text == "" {
		return Request{}, ErrEmptyRequest
	}

	if m := catalogURIRegex.FindStringSubmatch(text); m != nil {
		return fromCatalogRef(text, m[1], m[2]), nil
	}

	for _, rawURL := range urlRegex.FindAllString(text, -1) {
		cleaned := cleanURL(rawURL)
		if cleaned == "" {
			continue
		}
		if kind, id, ok := catalogPath(cleaned); ok {
			return fromCatalogRef(cleaned, kind, id), nil
		}
		return Request{Kind: KindDirectMedia, Text: cleaned}, nil
	}

	return Request{Kind: KindQuery, Text: text}, nil
}

func fromCatalogRef(text, kind, id string) Request {
	switch kind {
	case "playlist":
		return Request{Kind: KindCatalogCollection, Text: text, CatalogID: id, Collection: CollectionPlaylist}
	case "album":
		return Request{Kind: KindCatalogCollection, Text: text, CatalogID: id, Collection: CollectionAlbum}
	default:
		return Request{Kind: KindCatalogTrack, Text: text, CatalogID: id}
	}
}

func normalize(text string) string {
	text = norm.NFKC.String(strings.TrimSpace(text))
	return spaceRegex.ReplaceAllString(text, " ")
}

func cleanURL(rawURL string) string {
	rawURL = strings.TrimRight(rawURL, ".,!?;)")

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}

	q := u.Query()
	for _, param := range []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "si"} {
		q.Del(param)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// catalogPath recognizes open.spotify.com style paths:
// /track/<id>, /playlist/<id>, /album/<id>, with optional locale prefix.
func catalogPath(rawURL string) (kind, id string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}
	if !catalogDomains[strings.ToLower(u.Hostname())] {
		return "", "", false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		switch part {
		case "track", "playlist", "album":
			if i+1 < len(parts) && parts[i+1] != "" {
				return part, parts[i+1], true
			}
		}
	}
	return "", "", false
}
