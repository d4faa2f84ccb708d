package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"musho/internal/core"
)

// Fetcher downloads a track's stream to the local media directory. One
// fetcher is shared by all download workers; the rate limiter keeps the
// combined outbound request rate polite.
type Fetcher struct {
	client  *http.Client
	dir     string
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewFetcher(download core.DownloadConfig, media core.MediaConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	rps := media.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := media.Burst
	if burst < 1 {
		burst = 1
	}
	return &Fetcher{
		client:  &http.Client{},
		dir:     download.Dir,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.Named("media.fetch"),
	}
}

// Fetch implements the download pipeline's Fetcher: GET the stream URL
// into <dir>/<trackID>.media. The partial file is removed on any failure
// so retries start clean.
func (f *Fetcher) Fetch(ctx context.Context, t *core.Track) (string, error) {
	if t.StreamURL == "" {
		return "", fmt.Errorf("track %s has no stream URL", t.ID)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("media dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.StreamURL, nil)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", t.StreamURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %s", t.StreamURL, resp.Status)
	}

	path := filepath.Join(f.dir, t.ID+".media")
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}

	written, err := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	elapsed := time.Since(start)
	f.logger.Info("media fetched",
		zap.String("trackID", t.ID),
		zap.String("size", humanize.Bytes(uint64(written))),
		zap.Duration("elapsed", elapsed),
		zap.String("rate", humanize.Bytes(uint64(float64(written)/max(elapsed.Seconds(), 0.001)))+"/s"))
	return path, nil
}
