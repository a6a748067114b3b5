package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hms-backend/internal/repository"
	"hms-backend/pkg/metrics"
)

// WorkerService closes login sessions whose refresh token has expired.
type WorkerService struct {
	sessionRepo *repository.SessionRepository
	log         *zap.Logger
	metrics     *metrics.Collector
	interval    time.Duration
	now         func() time.Time
}

func NewWorkerService(sessionRepo *repository.SessionRepository, log *zap.Logger, m *metrics.Collector, interval time.Duration) *WorkerService {
	return &WorkerService{
		sessionRepo: sessionRepo,
		log:         log,
		metrics:     m,
		interval:    interval,
		now:         time.Now,
	}
}

// Start runs the sweep loop until ctx is cancelled
func (w *WorkerService) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("session sweeper started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("session sweeper stopped")
			return
		case <-ticker.C:
			w.sweepExpiredSessions(ctx)
		}
	}
}

func (w *WorkerService) sweepExpiredSessions(ctx context.Context) {
	closed, err := w.sessionRepo.CloseExpired(ctx, w.now().UTC())
	if err != nil {
		w.log.Error("error closing expired sessions", zap.Error(err))
		return
	}
	if closed == 0 {
		return
	}

	w.metrics.SessionsExpired.Add(float64(closed))
	w.log.Info("closed expired sessions", zap.Int64("count", closed))
}
