package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/sermonkb/internal/chunker"
	"github.com/timmy/sermonkb/internal/domain"
	"github.com/timmy/sermonkb/internal/logger"
	"github.com/timmy/sermonkb/internal/repository"
	"github.com/timmy/sermonkb/internal/source"
	"golang.org/x/time/rate"
)

// IngestService pulls video listings and transcripts from a source and
// materializes them as videos and chunks. Transcript fetches share one
// rate limiter across all workers so the source sees a bounded request
// rate regardless of worker count.
type IngestService struct {
	videoRepo *repository.VideoRepository
	chunkRepo *repository.ChunkRepository
	splitter  *chunker.Chunker
	logger    *logger.Logger
	limiter   *rate.Limiter
	workers   int
	batchSize int
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	videoRepo *repository.VideoRepository,
	chunkRepo *repository.ChunkRepository,
	splitter *chunker.Chunker,
	log *logger.Logger,
	workers, batchSize int,
	rateLimit float64, rateBurst int,
) *IngestService {
	if workers <= 0 {
		workers = 4
	}
	if batchSize <= 0 {
		batchSize = 50
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if rateLimit > 0 {
		if rateBurst <= 0 {
			rateBurst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rateLimit), rateBurst)
	}

	return &IngestService{
		videoRepo: videoRepo,
		chunkRepo: chunkRepo,
		splitter:  splitter,
		logger:    log,
		limiter:   limiter,
		workers:   workers,
		batchSize: batchSize,
	}
}

func (s *IngestService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// IngestStats holds statistics for an ingestion run.
type IngestStats struct {
	TotalItems     int64
	ProcessedItems int64
	SkippedItems   int64
	DisabledItems  int64
	FailedItems    int64
	StartTime      time.Time
	EndTime        time.Time
}

// IngestOptions holds options for ingestion.
type IngestOptions struct {
	// Force refetches transcripts even for videos already marked available.
	Force bool
}

// IngestFromSource lists videos from src and fetches their transcripts
// with a worker pool. A video without a transcript is marked disabled and
// ingestion continues; a blocked source cancels the whole run.
func (s *IngestService) IngestFromSource(ctx context.Context, src source.TranscriptSource, limit int, opts *IngestOptions) (*IngestStats, error) {
	if opts == nil {
		opts = &IngestOptions{}
	}

	stats := &IngestStats{StartTime: time.Now()}

	ctx = logger.SetSource(ctx, src.GetSourceID())
	s.log(ctx).WithFields(logger.Fields{
		"source": src.GetSourceID(),
		"limit":  limit,
		"force":  opts.Force,
	}).Info("Starting ingestion")

	// A blocked source cancels all in-flight work.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	itemsChan := make(chan source.VideoItem, s.workers*2)
	resultsChan := make(chan *ingestResult, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(runCtx, src, itemsChan, resultsChan, opts)
		}()
	}

	var blocked atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		for result := range resultsChan {
			atomic.AddInt64(&stats.ProcessedItems, 1)
			switch {
			case result.skipped:
				atomic.AddInt64(&stats.SkippedItems, 1)
			case result.disabled:
				atomic.AddInt64(&stats.DisabledItems, 1)
			case errors.Is(result.err, source.ErrSourceBlocked):
				atomic.AddInt64(&stats.FailedItems, 1)
				if blocked.CompareAndSwap(false, true) {
					s.log(ctx).WithError(result.err).Error("Source is blocking requests, aborting run")
					cancel()
				}
			case result.err != nil:
				atomic.AddInt64(&stats.FailedItems, 1)
				s.log(ctx).WithFields(logger.Fields{
					"video_id": result.videoID,
				}).WithError(result.err).Error("Failed to ingest video")
			}
		}
	}()

	cursor := ""
	totalFetched := 0
listing:
	for runCtx.Err() == nil {
		batchLimit := s.batchSize
		if limit > 0 {
			remaining := limit - totalFetched
			if remaining <= 0 {
				break
			}
			if batchLimit > remaining {
				batchLimit = remaining
			}
		}

		items, nextCursor, err := src.ListVideos(runCtx, cursor, batchLimit)
		if err != nil {
			if errors.Is(err, source.ErrSourceBlocked) && blocked.CompareAndSwap(false, true) {
				cancel()
			}
			s.log(ctx).WithError(err).Error("Failed to list videos")
			break
		}
		if len(items) == 0 {
			break
		}

		atomic.AddInt64(&stats.TotalItems, int64(len(items)))
		totalFetched += len(items)

		for _, item := range items {
			select {
			case itemsChan <- item:
			case <-runCtx.Done():
				break listing
			}
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	close(itemsChan)
	wg.Wait()
	close(resultsChan)
	<-done

	stats.EndTime = time.Now()

	s.log(ctx).WithFields(logger.Fields{
		"total":    stats.TotalItems,
		"skipped":  stats.SkippedItems,
		"disabled": stats.DisabledItems,
		"failed":   stats.FailedItems,
		"duration": stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Ingestion completed")

	if blocked.Load() {
		return stats, fmt.Errorf("ingestion aborted: %w", source.ErrSourceBlocked)
	}
	return stats, nil
}

type ingestResult struct {
	videoID  string
	skipped  bool
	disabled bool
	err      error
}

func (s *IngestService) worker(ctx context.Context, src source.TranscriptSource, items <-chan source.VideoItem, results chan<- *ingestResult, opts *IngestOptions) {
	for item := range items {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result := &ingestResult{videoID: item.VideoID}
		result.skipped, result.disabled, result.err = s.processVideo(ctx, src, item, opts)
		results <- result
	}
}

// processVideo fetches and stores one video's transcript and chunks.
func (s *IngestService) processVideo(ctx context.Context, src source.TranscriptSource, item source.VideoItem, opts *IngestOptions) (skipped, disabled bool, err error) {
	ctx = logger.SetVideoID(ctx, item.VideoID)

	if !opts.Force {
		existing, err := s.videoRepo.GetByID(ctx, item.VideoID)
		if err == nil && existing.TranscriptStatus == domain.TranscriptStatusAvailable {
			return true, false, nil
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return false, false, err
	}

	transcript, err := src.FetchTranscript(ctx, item.VideoID)
	if errors.Is(err, source.ErrTranscriptsDisabled) {
		// A known video keeps its last good transcript and chunks; only
		// the status changes. A full upsert here would blank the
		// transcript while its chunk rows stay behind.
		if _, getErr := s.videoRepo.GetByID(ctx, item.VideoID); getErr == nil {
			if upErr := s.videoRepo.UpdateTranscriptStatus(ctx, item.VideoID, domain.TranscriptStatusDisabled); upErr != nil {
				return false, false, fmt.Errorf("failed to record disabled transcript: %w", upErr)
			}
		} else {
			video := &domain.Video{
				VideoID:          item.VideoID,
				Title:            item.Title,
				PublishedAt:      item.PublishedAt,
				TranscriptStatus: domain.TranscriptStatusDisabled,
			}
			if upErr := s.videoRepo.Upsert(ctx, video); upErr != nil {
				return false, false, fmt.Errorf("failed to record disabled transcript: %w", upErr)
			}
		}
		s.log(ctx).Debugf("Transcripts disabled for video %s", item.VideoID)
		return false, true, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to fetch transcript: %w", err)
	}

	video := &domain.Video{
		VideoID:          item.VideoID,
		Title:            item.Title,
		PublishedAt:      item.PublishedAt,
		Transcript:       transcript,
		TranscriptStatus: domain.TranscriptStatusAvailable,
	}
	if err := s.videoRepo.Upsert(ctx, video); err != nil {
		return false, false, fmt.Errorf("failed to save video: %w", err)
	}

	pieces := s.splitter.Split(transcript)
	chunks := make([]domain.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = domain.Chunk{
			VideoID:  item.VideoID,
			Position: piece.Position,
			Content:  piece.Text,
		}
	}
	if err := s.chunkRepo.ReplaceForVideo(ctx, item.VideoID, chunks); err != nil {
		return false, false, fmt.Errorf("failed to store chunks: %w", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		"video_id": item.VideoID,
		"chunks":   len(chunks),
	}).Debug("Ingested video")
	return false, false, nil
}
