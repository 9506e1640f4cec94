package captions

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/sermonkb/internal/source"
)

const (
	SourceID   = "captions"
	SourceName = "Captions API"
)

// Adapter implements TranscriptSource against a captions HTTP API: one
// endpoint lists a playlist's videos, another returns caption tracks per
// video.
type Adapter struct {
	client     *resty.Client
	playlistID string
}

// NewAdapter creates a new captions API adapter.
func NewAdapter(baseURL, apiKey, playlistID string) *Adapter {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}

	return &Adapter{
		client:     client,
		playlistID: playlistID,
	}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// GetDisplayName returns a human-readable name for this source.
func (a *Adapter) GetDisplayName() string {
	return SourceName
}

type listResponse struct {
	Items []struct {
		VideoID     string    `json:"video_id"`
		Title       string    `json:"title"`
		PublishedAt time.Time `json:"published_at"`
	} `json:"items"`
	NextCursor string `json:"next_cursor"`
}

// ListVideos fetches a page of the configured playlist.
func (a *Adapter) ListVideos(ctx context.Context, cursor string, limit int) ([]source.VideoItem, string, error) {
	var resp listResponse
	httpResp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"playlist_id": a.playlistID,
			"cursor":      cursor,
			"limit":       fmt.Sprintf("%d", limit),
		}).
		SetResult(&resp).
		Get("/videos")

	if err != nil {
		return nil, "", fmt.Errorf("failed to list videos: %w", err)
	}
	if err := checkStatus(httpResp); err != nil {
		return nil, "", err
	}

	items := make([]source.VideoItem, 0, len(resp.Items))
	for _, item := range resp.Items {
		items = append(items, source.VideoItem{
			VideoID:     item.VideoID,
			Title:       item.Title,
			PublishedAt: item.PublishedAt,
		})
	}
	return items, resp.NextCursor, nil
}

type transcriptResponse struct {
	Segments []struct {
		Text string `json:"text"`
	} `json:"segments"`
	CaptionsDisabled bool `json:"captions_disabled"`
}

// FetchTranscript fetches and joins the caption segments of a video.
func (a *Adapter) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	var resp transcriptResponse
	httpResp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("video_id", videoID).
		SetResult(&resp).
		Get("/videos/{video_id}/transcript")

	if err != nil {
		return "", fmt.Errorf("failed to fetch transcript: %w", err)
	}

	switch httpResp.StatusCode() {
	case http.StatusOK:
		// Fall through to segment handling
	case http.StatusNotFound:
		return "", source.ErrTranscriptsDisabled
	default:
		if err := checkStatus(httpResp); err != nil {
			return "", err
		}
	}

	if resp.CaptionsDisabled || len(resp.Segments) == 0 {
		return "", source.ErrTranscriptsDisabled
	}

	parts := make([]string, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", source.ErrTranscriptsDisabled
	}
	return strings.Join(parts, " "), nil
}

// checkStatus maps throttling and blocking responses to ErrSourceBlocked.
func checkStatus(resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", source.ErrSourceBlocked, code)
	default:
		return fmt.Errorf("captions API error: status %d", code)
	}
}
