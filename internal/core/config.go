package core

import (
	"errors"
	"time"
)

type Config struct {
	Playback PlaybackConfig
	Download DownloadConfig
	Catalog  CatalogConfig
	Media    MediaConfig
	History  HistoryConfig
	Server   ServerConfig
	Log      LogConfig
}

// PlaybackConfig bounds the per-guild queue and playback scheduling.
type PlaybackConfig struct {
	// MaxBuffer is the queue capacity per guild.
	MaxBuffer int
	// CollectionImportLimit caps how many items of a playlist or album
	// one enqueue may admit.
	CollectionImportLimit int
	// ReadyWait bounds how long playback waits for the head-of-queue
	// track to finish downloading before skipping it.
	ReadyWait time.Duration
	// IdleTimeout is the sustained listener-absence duration after
	// which a session disconnects.
	IdleTimeout time.Duration
	// IdlePollInterval is how often channel occupancy is sampled.
	IdlePollInterval time.Duration
	// DefaultVolume is the playback volume (percent) a new session
	// starts with; MaxVolume caps what SetVolume accepts.
	DefaultVolume int
	MaxVolume     int
}

type DownloadConfig struct {
	// Workers is the shared download concurrency across all guilds.
	Workers int
	Dir     string
	// MaxAttempts bounds retries per track; backoff doubles from
	// RetryBackoff between attempts.
	MaxAttempts    int
	RetryBackoff   time.Duration
	AttemptTimeout time.Duration
}

type CatalogConfig struct {
	ClientID     string
	ClientSecret string
	// CacheSize bounds the LRU of catalog track metadata.
	CacheSize int
}

type MediaConfig struct {
	// RequestsPerSecond rate-limits outbound fetch traffic.
	RequestsPerSecond float64
	Burst             int
	SearchTimeout     time.Duration
}

type HistoryConfig struct {
	Path string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func DefaultConfig() *Config {
	return &Config{
		Playback: PlaybackConfig{
			MaxBuffer:             10,
			CollectionImportLimit: 25,
			ReadyWait:             15 * time.Second,
			IdleTimeout:           30 * time.Second,
			IdlePollInterval:      2 * time.Second,
			DefaultVolume:         100,
			MaxVolume:             200,
		},
		Download: DownloadConfig{
			Workers:        2,
			Dir:            "./media",
			MaxAttempts:    3,
			RetryBackoff:   time.Second,
			AttemptTimeout: 2 * time.Minute,
		},
		Catalog: CatalogConfig{
			CacheSize: 512,
		},
		Media: MediaConfig{
			RequestsPerSecond: 2,
			Burst:             4,
			SearchTimeout:     10 * time.Second,
		},
		History: HistoryConfig{
			Path: "./musho.db",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate rejects configurations the scheduler cannot run with.
func (c *Config) Validate() error {
	if c.Playback.MaxBuffer < 1 {
		return errors.New("playback max buffer must be at least 1")
	}
	if c.Playback.CollectionImportLimit < 1 {
		return errors.New("collection import limit must be at least 1")
	}
	if c.Playback.ReadyWait <= 0 {
		return errors.New("ready wait must be positive")
	}
	if c.Playback.IdleTimeout <= 0 {
		return errors.New("idle timeout must be positive")
	}
	if c.Playback.IdlePollInterval <= 0 || c.Playback.IdlePollInterval > c.Playback.IdleTimeout {
		return errors.New("idle poll interval must be positive and no coarser than the idle timeout")
	}
	if c.Playback.MaxVolume < 1 {
		return errors.New("max volume must be at least 1")
	}
	if c.Playback.DefaultVolume < 0 || c.Playback.DefaultVolume > c.Playback.MaxVolume {
		return errors.New("default volume must be between 0 and the max volume")
	}
	if c.Download.Workers < 1 {
		return errors.New("download workers must be at least 1")
	}
	if c.Download.MaxAttempts < 1 {
		return errors.New("download max attempts must be at least 1")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("server port out of range")
	}
	return nil
}
