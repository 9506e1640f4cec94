package source

import (
	"context"
	"errors"
	"time"
)

// ErrTranscriptsDisabled reports that a specific video has no fetchable
// transcript (captions turned off or never generated). The video itself is
// still valid; ingest marks it and moves on.
var ErrTranscriptsDisabled = errors.New("transcripts are disabled for this video")

// ErrSourceBlocked reports that the source is refusing requests entirely,
// typically rate limiting or an IP block. Ingest must stop the batch
// rather than burn through the remaining videos.
var ErrSourceBlocked = errors.New("source is blocking requests")

// VideoItem is a video listing entry from a source, before its transcript
// has been fetched.
type VideoItem struct {
	VideoID     string
	Title       string
	PublishedAt time.Time
}

// TranscriptSource lists videos and fetches their transcripts.
type TranscriptSource interface {
	// GetSourceID returns the stable identifier for this source.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this source.
	GetDisplayName() string

	// ListVideos returns a page of videos starting at cursor. An empty
	// cursor starts from the beginning; an empty nextCursor means the
	// listing is exhausted.
	ListVideos(ctx context.Context, cursor string, limit int) (items []VideoItem, nextCursor string, err error)

	// FetchTranscript returns the full transcript text for a video.
	// Returns ErrTranscriptsDisabled when the video has no transcript and
	// ErrSourceBlocked when the source refuses to serve requests.
	FetchTranscript(ctx context.Context, videoID string) (string, error)
}
