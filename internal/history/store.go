// Package history persists play history in SQLite and answers the
// aggregate queries the reporting API serves.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"musho/internal/core"
)

const (
	guildSetCapacity = 100000
	guildSetFPRate   = 0.01
)

const schema = `
CREATE TABLE IF NOT EXISTS plays (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id  TEXT    NOT NULL,
	title     TEXT    NOT NULL,
	url       TEXT    NOT NULL,
	thumbnail TEXT    NOT NULL DEFAULT '',
	played_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_plays_guild ON plays(guild_id);
CREATE INDEX IF NOT EXISTS idx_plays_url ON plays(url);
CREATE INDEX IF NOT EXISTS idx_plays_played_at ON plays(played_at);
`

// Store implements core.HistoryStore on a SQLite database.
type Store struct {
	db     *sql.DB
	guilds *guildSet
	logger *zap.Logger
}

// Open opens (creating if necessary) the history database and warms the
// known-guild set from it.
func Open(cfg core.HistoryConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// SQLite serializes writers anyway; a single connection avoids
	// SQLITE_BUSY under concurrent sessions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	s := &Store{
		db:     db,
		guilds: newGuildSet(guildSetCapacity, guildSetFPRate),
		logger: logger.Named("history"),
	}
	if err := s.warmGuildSet(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("history store opened",
		zap.String("path", cfg.Path),
		zap.Int("knownGuilds", s.guilds.Size()))
	return s, nil
}

func (s *Store) warmGuildSet(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT guild_id FROM plays`)
	if err != nil {
		return fmt.Errorf("warm guild set: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	s.guilds.Load(ids)
	return nil
}

// RecordPlay appends one play row.
func (s *Store) RecordPlay(ctx context.Context, guildID string, t *core.Track) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO plays (guild_id, title, url, thumbnail, played_at) VALUES (?, ?, ?, ?, ?)`,
		guildID, t.DisplayTitle(), t.OriginURL, t.ThumbnailURL, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record play: %w", err)
	}
	if !s.guilds.Has(guildID) {
		s.logger.Info("first play from guild", zap.String("guildID", guildID))
		s.guilds.Add(guildID)
	}
	return nil
}

// RecentPlays returns the most recent plays, newest first.
func (s *Store) RecentPlays(ctx context.Context, limit int) ([]core.PlayRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id, title, url, thumbnail, played_at FROM plays ORDER BY id DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("recent plays: %w", err)
	}
	defer rows.Close()

	var records []core.PlayRecord
	for rows.Next() {
		var (
			rec    core.PlayRecord
			played int64
		)
		if err := rows.Scan(&rec.GuildID, &rec.Title, &rec.URL, &rec.ThumbnailURL, &played); err != nil {
			return nil, err
		}
		rec.PlayedAt = time.Unix(played, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TopPlays returns the most-played tracks by URL, ties broken by recency.
func (s *Store) TopPlays(ctx context.Context, limit int) ([]core.PlayCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, url, COUNT(*) AS plays
		 FROM plays
		 WHERE url != ''
		 GROUP BY url
		 ORDER BY plays DESC, MAX(id) DESC
		 LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("top plays: %w", err)
	}
	defer rows.Close()

	var counts []core.PlayCount
	for rows.Next() {
		var c core.PlayCount
		if err := rows.Scan(&c.Title, &c.URL, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// SongsPlayed counts plays for one guild.
func (s *Store) SongsPlayed(ctx context.Context, guildID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM plays WHERE guild_id = ?`, guildID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("songs played: %w", err)
	}
	return n, nil
}

// TotalSongsPlayed counts plays across all guilds.
func (s *Store) TotalSongsPlayed(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plays`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("total songs played: %w", err)
	}
	return n, nil
}

// KnownGuilds reports how many distinct guilds have ever played a song.
func (s *Store) KnownGuilds() int {
	return s.guilds.Size()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
