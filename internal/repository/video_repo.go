package repository

import (
	"context"
	"fmt"

	"github.com/timmy/sermonkb/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VideoRepository handles video and transcript data operations.
type VideoRepository struct {
	db *gorm.DB
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(db *gorm.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// Upsert creates or updates a video keyed by its video ID. Re-ingesting a
// video never duplicates the row.
func (r *VideoRepository) Upsert(ctx context.Context, video *domain.Video) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}},
		UpdateAll: true,
	}).Create(video).Error
}

// GetByID retrieves a video by its ID.
func (r *VideoRepository) GetByID(ctx context.Context, videoID string) (*domain.Video, error) {
	var video domain.Video
	if err := r.db.WithContext(ctx).First(&video, "video_id = ?", videoID).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

// GetByIDs retrieves videos for the given IDs. Missing IDs are simply
// absent from the result.
func (r *VideoRepository) GetByIDs(ctx context.Context, videoIDs []string) ([]domain.Video, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}
	var videos []domain.Video
	if err := r.db.WithContext(ctx).
		Where("video_id IN ?", videoIDs).
		Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

// List retrieves videos ordered by published date, optionally filtered by
// transcript status.
func (r *VideoRepository) List(ctx context.Context, status string, limit, offset int) ([]domain.Video, error) {
	query := r.db.WithContext(ctx).
		Omit("transcript").
		Order("published_at DESC, video_id")
	if status != "" {
		query = query.Where("transcript_status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var videos []domain.Video
	if err := query.Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

// UpdateTranscriptStatus sets the transcript status for a video.
func (r *VideoRepository) UpdateTranscriptStatus(ctx context.Context, videoID, status string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Video{}).
		Where("video_id = ?", videoID).
		Update("transcript_status", status).Error
}

// CountByStatus returns the number of videos per transcript status.
func (r *VideoRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		TranscriptStatus string
		Total            int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&domain.Video{}).
		Select("transcript_status, COUNT(*) AS total").
		Group("transcript_status").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.TranscriptStatus] = r.Total
	}
	return counts, nil
}

// KeywordHit is one full-text search result with a highlighted snippet.
type KeywordHit struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	PublishedAt string `json:"published_at"`
	Snippet     string `json:"snippet"`
}

// KeywordSearch runs a full-text query over titles and transcripts and
// returns highlighted snippets. Videos with disabled transcripts are
// excluded.
func (r *VideoRepository) KeywordSearch(ctx context.Context, query string, limit int) ([]KeywordHit, error) {
	if limit <= 0 {
		limit = 10
	}

	var hits []KeywordHit
	switch r.db.Dialector.Name() {
	case "postgres":
		sql := `SELECT video_id, title, published_at,
				ts_headline('english', transcript, websearch_to_tsquery('english', ?),
					'StartSel=<b>, StopSel=</b>, MaxWords=30, MinWords=10') AS snippet
			FROM videos
			WHERE to_tsvector('english', coalesce(title, '') || ' ' || coalesce(transcript, ''))
				@@ websearch_to_tsquery('english', ?)
			AND transcript_status <> ?
			ORDER BY ts_rank(to_tsvector('english', coalesce(title, '') || ' ' || coalesce(transcript, '')),
				websearch_to_tsquery('english', ?)) DESC
			LIMIT ?`
		if err := r.db.WithContext(ctx).
			Raw(sql, query, query, domain.TranscriptStatusDisabled, query, limit).
			Scan(&hits).Error; err != nil {
			return nil, fmt.Errorf("keyword search failed: %w", err)
		}
	default:
		// FTS5 snippet: column 2 is the transcript, at most 32 tokens
		sql := `SELECT videos_fts.video_id AS video_id, videos.title AS title,
				videos.published_at AS published_at,
				snippet(videos_fts, 2, '<b>', '</b>', '...', 32) AS snippet
			FROM videos_fts
			JOIN videos ON videos.video_id = videos_fts.video_id
			WHERE videos_fts MATCH ?
			AND videos.transcript_status <> ?
			ORDER BY rank
			LIMIT ?`
		if err := r.db.WithContext(ctx).
			Raw(sql, query, domain.TranscriptStatusDisabled, limit).
			Scan(&hits).Error; err != nil {
			return nil, fmt.Errorf("keyword search failed: %w", err)
		}
	}
	return hits, nil
}
