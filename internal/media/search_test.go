package media

import (
	"testing"
	"time"

	"musho/pkg/fuzzy"
)

func TestBestOf(t *testing.T) {
	m := fuzzy.NewMatcher()
	want := fuzzy.Candidate{
		Title:    "Halo",
		Artist:   "Beyoncé",
		Duration: 3*time.Minute + 45*time.Second,
	}
	results := []Result{
		{VideoID: "loop", Title: "Halo 10 Hour Loop", Channel: "LoopTV", Duration: 10 * time.Hour},
		{VideoID: "good", Title: "Beyoncé - Halo (Official Video)", Channel: "Beyoncé", Duration: 3*time.Minute + 44*time.Second},
		{VideoID: "cover", Title: "Halo (Piano Cover)", Channel: "SomePianist", Duration: 4 * time.Minute},
	}

	best := bestOf(m, results, want)
	if best == nil || best.VideoID != "good" {
		t.Fatalf("bestOf picked %+v, want the official upload", best)
	}
}

func TestBestOfEmpty(t *testing.T) {
	if got := bestOf(fuzzy.NewMatcher(), nil, fuzzy.Candidate{Title: "x"}); got != nil {
		t.Errorf("bestOf(no results) = %+v, want nil", got)
	}
}

func TestFromSearchResult(t *testing.T) {
	r := fromSearchResult("dQw4w9WgXcQ", "Some Song", "Some Channel", "3:45")
	if r.URL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("URL = %s", r.URL)
	}
	if r.ThumbnailURL != "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg" {
		t.Errorf("ThumbnailURL = %s", r.ThumbnailURL)
	}
	if r.Duration != 225*time.Second {
		t.Errorf("Duration = %v, want 3m45s", r.Duration)
	}

	live := fromSearchResult("id", "Live Stream", "Channel", "")
	if live.Duration != 0 {
		t.Errorf("live stream duration = %v, want 0", live.Duration)
	}
}

func TestVideoIDFromURL(t *testing.T) {
	tests := []struct {
		url    string
		wantID string
		wantOK bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://m.youtube.com/watch?v=abc123", "abc123", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/xyz789", "xyz789", true},
		{"https://music.youtube.com/watch?v=mus1c", "mus1c", true},
		{"https://example.com/audio.mp3", "", false},
		{"https://www.youtube.com/", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			id, ok := videoIDFromURL(tt.url)
			if ok != tt.wantOK || id != tt.wantID {
				t.Errorf("videoIDFromURL(%q) = %q/%v, want %q/%v", tt.url, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}
