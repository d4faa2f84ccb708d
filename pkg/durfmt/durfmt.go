// Package durfmt converts between time.Duration and the colon-separated
// track-length notation used by media sites and the stats API ("3:45",
// "1:02:09").
package durfmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// String renders d as m:ss, or h:mm:ss once the duration reaches an hour.
// Negative durations render as 0:00.
func String(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Parse reads a colon-separated duration with one to three segments:
// "45", "3:45" or "1:02:09". It tolerates surrounding whitespace.
func Parse(raw string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0, fmt.Errorf("durfmt: malformed duration %q", raw)
	}
	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("durfmt: malformed duration %q", raw)
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}
