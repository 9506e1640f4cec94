package domain

import "time"

// Video represents one sermon video and its transcript.
// The transcript itself lives on the row; full-text search runs against
// a driver-specific structure kept in sync by the repository layer.
type Video struct {
	VideoID          string    `gorm:"type:text;primaryKey" json:"video_id"`
	Title            string    `gorm:"type:text;not null" json:"title"`
	PublishedAt      time.Time `gorm:"index:idx_videos_published" json:"published_at"`
	Transcript       string    `gorm:"type:text" json:"transcript,omitempty"`
	TranscriptStatus string    `gorm:"type:text;not null;default:not_tried;index:idx_videos_status" json:"transcript_status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Video) TableName() string {
	return "videos"
}

// Transcript status constants
const (
	// TranscriptStatusNotTried means no fetch has been attempted yet.
	TranscriptStatusNotTried = "not_tried"

	// TranscriptStatusAvailable means a transcript was fetched and stored.
	TranscriptStatusAvailable = "available"

	// TranscriptStatusDisabled means the source reports captions are
	// disabled for this video. Cleared by a successful manual import.
	TranscriptStatusDisabled = "disabled"
)

// HasTranscript reports whether the video carries usable transcript text.
func (v *Video) HasTranscript() bool {
	return v.TranscriptStatus == TranscriptStatusAvailable && v.Transcript != ""
}
