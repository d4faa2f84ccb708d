package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"musho/internal/core"
)

func testFetcher(t *testing.T) *Fetcher {
	t.Helper()
	return NewFetcher(
		core.DownloadConfig{Dir: t.TempDir()},
		core.MediaConfig{RequestsPerSecond: 100, Burst: 10},
		nil,
	)
}

func TestFetcher_Fetch(t *testing.T) {
	payload := []byte("fake opus payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	f := testFetcher(t)
	tr := core.NewTrack("abc", core.SourceDirect)
	tr.StreamURL = srv.URL + "/stream"

	path, err := f.Fetch(context.Background(), tr)
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("fetched payload = %q, want %q", got, payload)
	}
}

func TestFetcher_FetchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := testFetcher(t)
	tr := core.NewTrack("missing", core.SourceDirect)
	tr.StreamURL = srv.URL

	if _, err := f.Fetch(context.Background(), tr); err == nil {
		t.Error("Fetch() on 404 = nil error")
	}
}

func TestFetcher_FetchRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	f := testFetcher(t)
	tr := core.NewTrack("slow", core.SourceDirect)
	tr.StreamURL = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, tr)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Fetch() with cancelled context = nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not abort on context cancellation")
	}
}

func TestFetcher_FetchNoStreamURL(t *testing.T) {
	f := testFetcher(t)
	tr := core.NewTrack("empty", core.SourceDirect)
	if _, err := f.Fetch(context.Background(), tr); err == nil {
		t.Error("Fetch() without stream URL = nil error")
	}
}
