package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tightlines/models"
)

// ErrRetryNotClaimed reports a row that is no longer held by the claim the
// caller took: it was finished, dead-lettered or claimed again after the
// lease ran out.
var ErrRetryNotClaimed = errors.New("reward retry is no longer claimed")

// RewardWriter applies the side effects a retry row describes.
type RewardWriter interface {
	IncrementPoints(ctx context.Context, userID uint, delta int) error
	AppendActivity(ctx context.Context, entry models.ActivityFeedEntry) error
}

// RetrySummary reports queue depth by status and the oldest pending row.
type RetrySummary struct {
	PendingCount    int64     `json:"pending"`
	DoneCount       int64     `json:"done"`
	DeadCount       int64     `json:"dead"`
	OldestPendingAt time.Time `json:"oldest_pending_at,omitempty"`
}

// RetryStore persists failed unlock side effects until they are applied.
type RetryStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRetryStore(db *gorm.DB) *RetryStore {
	return &RetryStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Enqueue stores retry as pending and due now. A row with the same
// (user, achievement, kind) is left untouched.
func (s *RetryStore) Enqueue(ctx context.Context, retry models.RewardRetry) error {
	if retry.UserID == 0 || strings.TrimSpace(retry.AchievementID) == "" {
		return fmt.Errorf("retry requires user and achievement")
	}
	switch retry.Kind {
	case models.RetryKindPoints, models.RetryKindActivity:
	default:
		return fmt.Errorf("unknown retry kind %q", retry.Kind)
	}

	now := s.now()
	retry.ID = uuid.NewString()
	retry.Status = models.RetryStatusPending
	retry.AttemptCount = 0
	retry.NextAttemptAt = now
	retry.LastError = ""

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&retry).Error
	if err != nil {
		return fmt.Errorf("enqueue reward retry: %w", err)
	}
	return nil
}

// ClaimDue returns up to limit pending rows whose next attempt is due,
// pushing each claimed row's next attempt out by lease so another worker
// skips it while it is being processed. AttemptCount on the returned rows
// already counts the claimed attempt.
func (s *RetryStore) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]models.RewardRetry, error) {
	now := s.now()
	var due []models.RewardRetry
	if err := s.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", models.RetryStatusPending, now).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&due).Error; err != nil {
		return nil, fmt.Errorf("list due reward retries: %w", err)
	}

	claimed := make([]models.RewardRetry, 0, len(due))
	for _, row := range due {
		result := s.db.WithContext(ctx).
			Model(&models.RewardRetry{}).
			Where("id = ? AND status = ? AND attempt_count = ?", row.ID, models.RetryStatusPending, row.AttemptCount).
			Updates(map[string]any{
				"next_attempt_at": now.Add(lease),
				"attempt_count":   gorm.Expr("attempt_count + 1"),
			})
		if result.Error != nil {
			return claimed, fmt.Errorf("claim reward retry %s: %w", row.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			continue
		}
		row.AttemptCount++
		row.NextAttemptAt = now.Add(lease)
		claimed = append(claimed, row)
	}
	return claimed, nil
}

// Complete marks a claimed row done and runs apply in the same
// transaction, so the side effect and the status change commit together or
// not at all. The row must still be pending with the attempt count its
// claim produced; otherwise apply is not run and ErrRetryNotClaimed is
// returned.
func (s *RetryStore) Complete(ctx context.Context, row models.RewardRetry, apply func(ctx context.Context, w RewardWriter) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.RewardRetry{}).
			Where("id = ? AND status = ? AND attempt_count = ?", row.ID, models.RetryStatusPending, row.AttemptCount).
			Updates(map[string]any{
				"status":     models.RetryStatusDone,
				"last_error": "",
			})
		if result.Error != nil {
			return fmt.Errorf("complete reward retry %s: %w", row.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrRetryNotClaimed
		}
		return apply(ctx, NewAchievementStore(tx))
	})
}

// Reschedule records a failed attempt and the time of the next one.
func (s *RetryStore) Reschedule(ctx context.Context, id string, next time.Time, lastErr string) error {
	return s.setStatus(ctx, id, map[string]any{
		"next_attempt_at": next.UTC(),
		"last_error":      lastErr,
	})
}

// MarkDead parks a row that ran out of attempts. Only pending rows move.
func (s *RetryStore) MarkDead(ctx context.Context, id string, lastErr string) error {
	return s.setStatus(ctx, id, map[string]any{
		"status":     models.RetryStatusDead,
		"last_error": lastErr,
	})
}

func (s *RetryStore) setStatus(ctx context.Context, id string, updates map[string]any) error {
	result := s.db.WithContext(ctx).
		Model(&models.RewardRetry{}).
		Where("id = ? AND status = ?", id, models.RetryStatusPending).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update reward retry %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("reward retry %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// Summary counts rows by status.
func (s *RetryStore) Summary(ctx context.Context) (RetrySummary, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := s.db.WithContext(ctx).
		Model(&models.RewardRetry{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return RetrySummary{}, fmt.Errorf("count reward retries: %w", err)
	}

	summary := RetrySummary{}
	for _, c := range counts {
		switch c.Status {
		case models.RetryStatusPending:
			summary.PendingCount = c.Count
		case models.RetryStatusDone:
			summary.DoneCount = c.Count
		case models.RetryStatusDead:
			summary.DeadCount = c.Count
		}
	}

	var oldest models.RewardRetry
	err := s.db.WithContext(ctx).
		Where("status = ?", models.RetryStatusPending).
		Order("next_attempt_at ASC").
		Limit(1).
		Find(&oldest).Error
	if err != nil {
		return RetrySummary{}, fmt.Errorf("find oldest reward retry: %w", err)
	}
	if oldest.ID != "" {
		summary.OldestPendingAt = oldest.NextAttemptAt
	}
	return summary, nil
}

// List returns the most recently updated rows, optionally filtered by status.
func (s *RetryStore) List(ctx context.Context, status string, limit int) ([]models.RewardRetry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Order("updated_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var rows []models.RewardRetry
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reward retries: %w", err)
	}
	return rows, nil
}
