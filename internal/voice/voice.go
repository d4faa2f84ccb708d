// Package voice is the local voice transport. Streaming is simulated
// with wall-clock timers over the downloaded media file; the Gateway
// satisfies core.VoiceGateway so a real transport can replace it without
// touching the scheduler.
package voice

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"musho/internal/core"
)

// Gateway hands out one Conn per Join.
type Gateway struct {
	logger           *zap.Logger
	defaultListeners int64
}

// NewGateway builds a gateway whose connections report defaultListeners
// until told otherwise.
func NewGateway(defaultListeners int, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		logger:           logger.Named("voice"),
		defaultListeners: int64(defaultListeners),
	}
}

// Join establishes a connection to the guild's voice channel.
func (g *Gateway) Join(ctx context.Context, guildID, channelID string) (core.VoiceConn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c := &Conn{
		guildID:   guildID,
		channelID: channelID,
		logger: g.logger.With(
			zap.String("guildID", guildID),
			zap.String("channelID", channelID)),
	}
	c.listeners.Store(g.defaultListeners)
	c.volume.Store(100)

	c.logger.Info("voice channel joined")
	return c, nil
}

// Conn is one live connection. Playback runs on a timer sized to the
// track duration; Pause freezes the remaining time, Stop and natural
// completion both deliver exactly one value on the Play channel.
type Conn struct {
	guildID   string
	channelID string
	logger    *zap.Logger

	listeners atomic.Int64
	volume    atomic.Int64

	mu        sync.Mutex
	end       chan error
	timer     *time.Timer
	remaining time.Duration
	startedAt time.Time
	playing   bool
	paused    bool
	closed    bool
}

func (c *Conn) Play(path string, duration time.Duration) (<-chan error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("voice: connection closed")
	}
	if c.playing {
		return nil, fmt.Errorf("voice: already streaming")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("voice: media file: %w", err)
	}

	c.end = make(chan error, 1)
	c.playing = true
	c.paused = false
	c.remaining = duration
	c.startedAt = time.Now()
	if duration > 0 {
		c.timer = time.AfterFunc(duration, func() { c.finish(nil) })
	}

	c.logger.Debug("stream started",
		zap.String("path", path),
		zap.Duration("duration", duration))
	return c.end, nil
}

func (c *Conn) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing || c.paused {
		return fmt.Errorf("voice: nothing to pause")
	}
	if c.timer != nil {
		c.timer.Stop()
		c.remaining -= time.Since(c.startedAt)
		if c.remaining < 0 {
			c.remaining = 0
		}
	}
	c.paused = true
	return nil
}

func (c *Conn) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing || !c.paused {
		return fmt.Errorf("voice: nothing to resume")
	}
	c.paused = false
	c.startedAt = time.Now()
	if c.timer != nil {
		c.timer = time.AfterFunc(c.remaining, func() { c.finish(nil) })
	}
	return nil
}

func (c *Conn) Stop() error {
	c.finish(nil)
	return nil
}

// SetVolume adjusts the output gain. The simulated stream has no audio
// to scale, so the value is recorded for Volume and the status surface.
func (c *Conn) SetVolume(percent int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("voice: connection closed")
	}
	c.volume.Store(int64(percent))
	c.logger.Debug("volume changed", zap.Int("percent", percent))
	return nil
}

// Volume reports the gain last set on this connection.
func (c *Conn) Volume() int {
	return int(c.volume.Load())
}

func (c *Conn) ListenerCount() int {
	return int(c.listeners.Load())
}

// SetListeners updates the reported channel membership.
func (c *Conn) SetListeners(n int) {
	c.listeners.Store(int64(n))
}

func (c *Conn) Close() error {
	c.finish(nil)

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.logger.Info("voice channel left")
	return nil
}

func (c *Conn) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing {
		return
	}
	c.playing = false
	c.paused = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.end <- err
}
