package locator

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantKind   Kind
		wantID     string
		wantColl   CollectionKind
		wantText   string
	}{
		{
			name:     "free text query",
			raw:      "  never gonna   give you up ",
			wantKind: KindQuery,
			wantText: "never gonna give you up",
		},
		{
			name:     "catalog track link",
			raw:      "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT?si=abc123",
			wantKind: KindCatalogTrack,
			wantID:   "4cOdK2wGLETKBW3PvgPWqT",
		},
		{
			name:     "catalog track link with locale prefix",
			raw:      "https://open.spotify.com/intl-de/track/4cOdK2wGLETKBW3PvgPWqT",
			wantKind: KindCatalogTrack,
			wantID:   "4cOdK2wGLETKBW3PvgPWqT",
		},
		{
			name:     "catalog URI",
			raw:      "spotify:track:4cOdK2wGLETKBW3PvgPWqT",
			wantKind: KindCatalogTrack,
			wantID:   "4cOdK2wGLETKBW3PvgPWqT",
		},
		{
			name:     "playlist link",
			raw:      "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			wantKind: KindCatalogCollection,
			wantID:   "37i9dQZF1DXcBWIGoYBM5M",
			wantColl: CollectionPlaylist,
		},
		{
			name:     "album link",
			raw:      "https://open.spotify.com/album/6dVIqQ8qmQ5GBnJ9shOYGE",
			wantKind: KindCatalogCollection,
			wantID:   "6dVIqQ8qmQ5GBnJ9shOYGE",
			wantColl: CollectionAlbum,
		},
		{
			name:     "youtube link is direct media",
			raw:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			wantKind: KindDirectMedia,
		},
		{
			name:     "arbitrary mp3 link is direct media",
			raw:      "https://example.com/audio/song.mp3",
			wantKind: KindDirectMedia,
			wantText: "https://example.com/audio/song.mp3",
		},
		{
			name:     "trailing punctuation stripped",
			raw:      "check this https://example.com/a.mp3!",
			wantKind: KindDirectMedia,
			wantText: "https://example.com/a.mp3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.raw)
			if err != nil {
				t.Fatalf("Classify(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if tt.wantID != "" && got.CatalogID != tt.wantID {
				t.Errorf("CatalogID = %q, want %q", got.CatalogID, tt.wantID)
			}
			if tt.wantColl != "" && got.Collection != tt.wantColl {
				t.Errorf("Collection = %q, want %q", got.Collection, tt.wantColl)
			}
			if tt.wantText != "" && got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
		})
	}
}

func TestClassifyEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t"} {
		if _, err := Classify(raw); err != ErrEmptyRequest {
			t.Errorf("Classify(%q) error = %v, want ErrEmptyRequest", raw, err)
		}
	}
}

func TestClassifyTrackingParamsRemoved(t *testing.T) {
	got, err := Classify("https://example.com/a.mp3?utm_source=share&utm_medium=social&bitrate=320")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "https://example.com/a.mp3?bitrate=320" {
		t.Errorf("Text = %q, tracking params not stripped", got.Text)
	}
}
