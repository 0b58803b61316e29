package usecase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streamforge/reelpipe/internal/domain/model"
)

func testFetcher(maxBytes int64) *Fetcher {
	return NewFetcher(FetcherConfig{
		Timeout:     5 * time.Second,
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
		MaxBytes:    maxBytes,
	})
}

func TestFetcher_Fetch(t *testing.T) {
	t.Run("streams source to disk", func(t *testing.T) {
		body := []byte("fake video bytes")
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(body)
		}))
		defer srv.Close()

		dest := filepath.Join(t.TempDir(), "source.mp4")
		if err := testFetcher(1<<20).Fetch(context.Background(), srv.URL, dest); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := os.ReadFile(dest)
		if err != nil {
			t.Fatalf("failed to read destination: %v", err)
		}
		if string(got) != string(body) {
			t.Errorf("destination content mismatch: got %q", got)
		}
	})

	t.Run("404 is not retried", func(t *testing.T) {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		dest := filepath.Join(t.TempDir(), "source.mp4")
		err := testFetcher(1<<20).Fetch(context.Background(), srv.URL, dest)
		if err == nil {
			t.Fatal("expected error for 404 source")
		}
		if model.StageOf(err) != model.StageFetch {
			t.Errorf("stage: got %q, expected fetch", model.StageOf(err))
		}
		if got := requests.Load(); got != 1 {
			t.Errorf("expected exactly 1 request for a permanent failure, got %d", got)
		}
	})

	t.Run("5xx is retried until success", func(t *testing.T) {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requests.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte("video"))
		}))
		defer srv.Close()

		dest := filepath.Join(t.TempDir(), "source.mp4")
		if err := testFetcher(1<<20).Fetch(context.Background(), srv.URL, dest); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := requests.Load(); got != 3 {
			t.Errorf("expected 3 requests, got %d", got)
		}
	})

	t.Run("5xx exhausts the retry budget", func(t *testing.T) {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		dest := filepath.Join(t.TempDir(), "source.mp4")
		err := testFetcher(1<<20).Fetch(context.Background(), srv.URL, dest)
		if err == nil {
			t.Fatal("expected error after retry budget")
		}
		if model.StageOf(err) != model.StageFetch {
			t.Errorf("stage: got %q, expected fetch", model.StageOf(err))
		}
		// initial attempt + MaxRetries
		if got := requests.Load(); got != 3 {
			t.Errorf("expected 3 requests, got %d", got)
		}
	})

	t.Run("oversized payload is a permanent failure", func(t *testing.T) {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			_, _ = w.Write(make([]byte, 64))
		}))
		defer srv.Close()

		dest := filepath.Join(t.TempDir(), "source.mp4")
		err := testFetcher(16).Fetch(context.Background(), srv.URL, dest)
		if err == nil {
			t.Fatal("expected error for oversized payload")
		}
		if model.StageOf(err) != model.StageFetch {
			t.Errorf("stage: got %q, expected fetch", model.StageOf(err))
		}
		if got := requests.Load(); got != 1 {
			t.Errorf("expected exactly 1 request, got %d", got)
		}
	})

	t.Run("cancelled context stops retries", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		dest := filepath.Join(t.TempDir(), "source.mp4")
		err := testFetcher(1<<20).Fetch(ctx, srv.URL, dest)
		if err == nil {
			t.Fatal("expected error for cancelled context")
		}
		if model.StageOf(err) != model.StageFetch {
			t.Errorf("stage: got %q, expected fetch", model.StageOf(err))
		}
	})
}
