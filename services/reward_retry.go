package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"tightlines/config"
	"tightlines/database"
	"tightlines/models"
)

// RetrySource is the queue side of the reward retry worker.
type RetrySource interface {
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]models.RewardRetry, error)
	Complete(ctx context.Context, row models.RewardRetry, apply func(ctx context.Context, w database.RewardWriter) error) error
	Reschedule(ctx context.Context, id string, next time.Time, lastErr string) error
	MarkDead(ctx context.Context, id string, lastErr string) error
}

// RetryRunStats summarises one pass over the queue.
type RetryRunStats struct {
	Claimed     int `json:"claimed"`
	Applied     int `json:"applied"`
	Rescheduled int `json:"rescheduled"`
	Dead        int `json:"dead"`
}

// RewardRetryWorker drains the reward retry queue on an interval.
type RewardRetryWorker struct {
	queue  RetrySource
	cfg    config.RetryConfig
	lease  time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRewardRetryWorker(queue RetrySource, cfg config.RetryConfig, logger *zap.Logger) *RewardRetryWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	lease := 2 * cfg.Interval
	if lease < time.Minute {
		lease = time.Minute
	}
	return &RewardRetryWorker{
		queue:  queue,
		cfg:    cfg,
		lease:  lease,
		logger: logger.Named("reward_retry"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Start runs RunOnce every interval until Stop is called. Calling Start on a
// running worker does nothing.
func (w *RewardRetryWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	if w.cfg.Interval <= 0 {
		w.logger.Error("reward retry worker not started: interval must be positive",
			zap.Duration("interval", w.cfg.Interval))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(w.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
					w.logger.Warn("reward retry pass failed", zap.Error(err))
				}
			}
		}
	}(w.done)

	w.logger.Info("reward retry worker started",
		zap.Duration("interval", w.cfg.Interval),
		zap.Int("batch", w.cfg.BatchSize))
}

// Stop cancels the loop and waits for an in-flight pass to return.
func (w *RewardRetryWorker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.logger.Info("reward retry worker stopped")
}

// RunOnce claims one batch of due rows and tries each of them once.
func (w *RewardRetryWorker) RunOnce(ctx context.Context) (RetryRunStats, error) {
	var stats RetryRunStats
	rows, err := w.queue.ClaimDue(ctx, w.cfg.BatchSize, w.lease)
	if err != nil {
		return stats, err
	}
	stats.Claimed = len(rows)

	for _, row := range rows {
		log := w.logger.With(
			zap.String("retry_id", row.ID),
			zap.Uint("user_id", row.UserID),
			zap.String("achievement_id", row.AchievementID),
			zap.String("kind", row.Kind),
			zap.Int("attempt", row.AttemptCount),
		)

		applyErr := w.queue.Complete(ctx, row, func(ctx context.Context, sink database.RewardWriter) error {
			return apply(ctx, sink, row)
		})
		switch {
		case applyErr == nil:
			stats.Applied++
			log.Info("reward retry applied")

		case errors.Is(applyErr, database.ErrRetryNotClaimed):
			log.Warn("reward retry claim lost, skipping")

		case isPermanent(applyErr) || row.AttemptCount >= w.cfg.MaxAttempts:
			if err := w.queue.MarkDead(ctx, row.ID, applyErr.Error()); err != nil {
				log.Error("mark reward retry dead", zap.Error(err))
				continue
			}
			stats.Dead++
			log.Error("reward retry dead-lettered", zap.Error(applyErr))

		default:
			next := w.now().Add(w.backoff(row.AttemptCount))
			if err := w.queue.Reschedule(ctx, row.ID, next, applyErr.Error()); err != nil {
				log.Error("reschedule reward retry", zap.Error(err))
				continue
			}
			stats.Rescheduled++
			log.Warn("reward retry failed", zap.Error(applyErr), zap.Time("next_attempt_at", next))
		}
	}

	if stats.Claimed > 0 {
		w.logger.Info("reward retry pass complete",
			zap.Int("claimed", stats.Claimed),
			zap.Int("applied", stats.Applied),
			zap.Int("rescheduled", stats.Rescheduled),
			zap.Int("dead", stats.Dead))
	}
	return stats, nil
}

func apply(ctx context.Context, sink database.RewardWriter, row models.RewardRetry) error {
	switch row.Kind {
	case models.RetryKindPoints:
		return sink.IncrementPoints(ctx, row.UserID, row.Points)
	case models.RetryKindActivity:
		return sink.AppendActivity(ctx, models.ActivityFeedEntry{
			UserID:  row.UserID,
			Content: row.Content,
			Type:    models.ActivityAchievement,
		})
	default:
		return errUnknownRetryKind
	}
}

var errUnknownRetryKind = errors.New("unknown reward retry kind")

// isPermanent reports errors that no later attempt can fix.
func isPermanent(err error) bool {
	return errors.Is(err, database.ErrUserNotFound) || errors.Is(err, errUnknownRetryKind)
}

// backoff doubles BaseDelay per attempt, capped at MaxDelay.
func (w *RewardRetryWorker) backoff(attempt int) time.Duration {
	delay := w.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= w.cfg.MaxDelay {
			return w.cfg.MaxDelay
		}
	}
	if delay > w.cfg.MaxDelay {
		return w.cfg.MaxDelay
	}
	return delay
}
