package history

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"musho/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := core.HistoryConfig{Path: filepath.Join(t.TempDir(), "history.db")}
	s, err := Open(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func playedTrack(title, url string) *core.Track {
	tr := core.NewTrack(title, core.SourceDirect)
	tr.Title = title
	tr.OriginURL = url
	return tr
}

func mustRecord(t *testing.T, s *Store, guildID string, tr *core.Track) {
	t.Helper()
	if err := s.RecordPlay(context.Background(), guildID, tr); err != nil {
		t.Fatalf("RecordPlay() error = %v", err)
	}
}

func TestRecordAndRecentPlays(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustRecord(t, s, "g1", playedTrack("First", "https://example.com/1"))
	mustRecord(t, s, "g1", playedTrack("Second", "https://example.com/2"))
	mustRecord(t, s, "g2", playedTrack("Third", "https://example.com/3"))

	recent, err := s.RecentPlays(ctx, 2)
	if err != nil {
		t.Fatalf("RecentPlays() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d records, want 2", len(recent))
	}
	if recent[0].Title != "Third" || recent[1].Title != "Second" {
		t.Errorf("order = [%q, %q], want newest first", recent[0].Title, recent[1].Title)
	}
	if recent[0].GuildID != "g2" {
		t.Errorf("GuildID = %q, want g2", recent[0].GuildID)
	}
}

func TestTopPlays(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustRecord(t, s, "g1", playedTrack("Hit", "https://example.com/hit"))
	}
	mustRecord(t, s, "g1", playedTrack("Other", "https://example.com/other"))
	mustRecord(t, s, "g1", playedTrack("Untracked", ""))

	top, err := s.TopPlays(ctx, 8)
	if err != nil {
		t.Fatalf("TopPlays() error = %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d entries, want 2 (empty URLs excluded)", len(top))
	}
	if top[0].Title != "Hit" || top[0].Count != 3 {
		t.Errorf("top[0] = %+v, want Hit x3", top[0])
	}
	if top[1].Count != 1 {
		t.Errorf("top[1].Count = %d, want 1", top[1].Count)
	}
}

func TestCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustRecord(t, s, "g1", playedTrack("A", "u1"))
	mustRecord(t, s, "g1", playedTrack("B", "u2"))
	mustRecord(t, s, "g2", playedTrack("C", "u3"))

	if n, err := s.SongsPlayed(ctx, "g1"); err != nil || n != 2 {
		t.Errorf("SongsPlayed(g1) = %d, %v, want 2", n, err)
	}
	if n, err := s.SongsPlayed(ctx, "g3"); err != nil || n != 0 {
		t.Errorf("SongsPlayed(g3) = %d, %v, want 0", n, err)
	}
	if n, err := s.TotalSongsPlayed(ctx); err != nil || n != 3 {
		t.Errorf("TotalSongsPlayed() = %d, %v, want 3", n, err)
	}
	if n := s.KnownGuilds(); n != 2 {
		t.Errorf("KnownGuilds() = %d, want 2", n)
	}
}

func TestGuildSetSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := core.HistoryConfig{Path: filepath.Join(dir, "history.db")}

	s, err := Open(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	mustRecord(t, s, "g1", playedTrack("A", "u1"))
	mustRecord(t, s, "g2", playedTrack("B", "u2"))
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	if n := reopened.KnownGuilds(); n != 2 {
		t.Errorf("KnownGuilds() after reopen = %d, want 2", n)
	}
}
