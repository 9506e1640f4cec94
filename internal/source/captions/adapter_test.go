package captions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/timmy/sermonkb/internal/source"
)

func TestFetchTranscriptJoinsSegments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos/vid-1/transcript" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"segments":[{"text":" In the beginning "},{"text":""},{"text":"was the Word"}]}`))
	}))
	defer server.Close()

	a := NewAdapter(server.URL, "key", "playlist")
	text, err := a.FetchTranscript(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("FetchTranscript: %v", err)
	}
	if text != "In the beginning was the Word" {
		t.Errorf("transcript = %q", text)
	}
}

func TestFetchTranscriptDisabled(t *testing.T) {
	cases := []struct {
		name string
		fn   http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"flagged disabled", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"captions_disabled":true}`))
		}},
		{"no segments", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"segments":[]}`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.fn)
			defer server.Close()

			a := NewAdapter(server.URL, "", "playlist")
			if _, err := a.FetchTranscript(context.Background(), "vid-1"); !errors.Is(err, source.ErrTranscriptsDisabled) {
				t.Errorf("err = %v, want ErrTranscriptsDisabled", err)
			}
		})
	}
}

func TestBlockedSource(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusForbidden} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		a := NewAdapter(server.URL, "", "playlist")
		if _, _, err := a.ListVideos(context.Background(), "", 10); !errors.Is(err, source.ErrSourceBlocked) {
			t.Errorf("status %d: err = %v, want ErrSourceBlocked", code, err)
		}
		if _, err := a.FetchTranscript(context.Background(), "vid-1"); !errors.Is(err, source.ErrSourceBlocked) {
			t.Errorf("status %d: err = %v, want ErrSourceBlocked", code, err)
		}
		server.Close()
	}
}

func TestListVideosPaging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("playlist_id"); got != "pl-1" {
			t.Errorf("playlist_id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("cursor") == "" {
			w.Write([]byte(`{"items":[{"video_id":"a","title":"First","published_at":"2024-01-01T00:00:00Z"}],"next_cursor":"c2"}`))
			return
		}
		w.Write([]byte(`{"items":[{"video_id":"b","title":"Second","published_at":"2024-02-01T00:00:00Z"}],"next_cursor":""}`))
	}))
	defer server.Close()

	a := NewAdapter(server.URL, "key", "pl-1")

	items, cursor, err := a.ListVideos(context.Background(), "", 1)
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(items) != 1 || items[0].VideoID != "a" || cursor != "c2" {
		t.Fatalf("first page items=%+v cursor=%q", items, cursor)
	}

	items, cursor, err = a.ListVideos(context.Background(), cursor, 1)
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(items) != 1 || items[0].VideoID != "b" || cursor != "" {
		t.Fatalf("second page items=%+v cursor=%q", items, cursor)
	}
}
