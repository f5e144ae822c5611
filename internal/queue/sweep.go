package queue

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// StaleSweeper periodically scans for indexing jobs whose progress key
// hasn't been refreshed recently and clears their in-flight lock,
// generalizing the teacher's ad hoc cache-cleanup ticker
// (NISHADDEVENDRA-chatbot-backend/internal/crawler/scheduler.go) into a
// gocron job scoped to this queue.
type StaleSweeper struct {
	scheduler *gocron.Scheduler
	queue     *Queue
	logger    *zap.Logger
	staleAfter time.Duration
}

func NewStaleSweeper(q *Queue, staleAfter time.Duration, logger *zap.Logger) *StaleSweeper {
	return &StaleSweeper{
		scheduler:  gocron.NewScheduler(time.UTC),
		queue:      q,
		logger:     logger,
		staleAfter: staleAfter,
	}
}

// Start schedules the sweep to run every interval and begins the
// scheduler's async loop.
func (s *StaleSweeper) Start(interval time.Duration) {
	_, err := s.scheduler.Every(interval).Do(s.sweepOnce)
	if err != nil {
		s.logger.Error("failed to schedule stale-job sweep", zap.Error(err))
		return
	}
	s.scheduler.StartAsync()
}

func (s *StaleSweeper) Stop() { s.scheduler.Stop() }

// sweepOnce releases in-flight locks for documents whose last progress
// update is older than staleAfter, so a worker that died mid-job doesn't
// permanently block re-indexing.
func (s *StaleSweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, documentID := range s.queue.InflightIDs() {
		progress, err := s.queue.GetProgress(ctx, documentID)
		if err != nil {
			continue
		}
		if progress == nil || time.Since(progress.UpdatedAt) > s.staleAfter {
			s.logger.Warn("releasing stale indexing lock", zap.String("documentId", documentID))
			s.queue.Unlock(documentID)
		}
	}
}
