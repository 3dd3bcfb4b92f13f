package achievements

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"tightlines/models"
)

// applyUnlock records the unlock and then issues the reward and the feed
// entry. It reports whether this pass performed the unlock. The reward and
// feed steps never undo the unlock.
func (e *Engine) applyUnlock(ctx context.Context, userID uint, def models.Achievement) bool {
	ctx, span := e.tracer.Start(ctx, "achievements.unlock",
		trace.WithAttributes(attribute.String("achievement_id", def.ID)))
	defer span.End()

	log := e.logger.With(
		zap.Uint("user_id", userID),
		zap.String("achievement_id", def.ID))

	// The snapshot may be stale; look again before writing.
	state, found, err := e.store.GetState(ctx, userID, def.ID)
	if err != nil {
		log.Warn("unlock recheck failed, relying on conditional write", zap.Error(err))
	} else if found && state.Unlocked() {
		log.Debug("already unlocked at apply time")
		return false
	}

	applied, err := e.store.MarkUnlocked(ctx, userID, def.ID, e.now())
	if err != nil {
		span.RecordError(err)
		log.Error("record unlock failed", zap.Error(err))
		return false
	}
	if !applied {
		log.Debug("unlock already recorded by a concurrent pass")
		return false
	}
	log.Info("achievement unlocked", zap.Int("reward_points", def.RewardPoints))

	if def.RewardPoints > 0 {
		if err := e.store.IncrementPoints(ctx, userID, def.RewardPoints); err != nil {
			span.RecordError(err)
			log.Error("credit reward points failed", zap.Error(err))
			e.enqueueRetry(ctx, log, models.RewardRetry{
				UserID:        userID,
				AchievementID: def.ID,
				Kind:          models.RetryKindPoints,
				Points:        def.RewardPoints,
			})
		}
	}

	entry := models.ActivityFeedEntry{
		UserID:  userID,
		Content: def.Name,
		Type:    models.ActivityAchievement,
	}
	if err := e.store.AppendActivity(ctx, entry); err != nil {
		span.RecordError(err)
		log.Error("append activity entry failed", zap.Error(err))
		e.enqueueRetry(ctx, log, models.RewardRetry{
			UserID:        userID,
			AchievementID: def.ID,
			Kind:          models.RetryKindActivity,
			Content:       def.Name,
		})
	}

	if e.notifier != nil {
		e.notifier.AchievementUnlocked(userID, def)
	}
	return true
}

func (e *Engine) enqueueRetry(ctx context.Context, log *zap.Logger, retry models.RewardRetry) {
	if e.retries == nil {
		return
	}
	if err := e.retries.Enqueue(ctx, retry); err != nil {
		log.Error("enqueue reward retry failed",
			zap.String("kind", retry.Kind),
			zap.Error(err))
	}
}

// updateProgress stores a new progress value for a locked achievement. It
// reports whether a write happened.
func (e *Engine) updateProgress(ctx context.Context, userID uint, def models.Achievement, progress int, facts Facts) bool {
	if stored, ok := facts.Progress[def.ID]; ok && stored == progress {
		return false
	}

	ctx, span := e.tracer.Start(ctx, "achievements.progress",
		trace.WithAttributes(
			attribute.String("achievement_id", def.ID),
			attribute.Int("progress", progress)))
	defer span.End()

	if err := e.store.UpsertProgress(ctx, userID, def.ID, progress); err != nil {
		span.RecordError(err)
		e.logger.Warn("update progress failed",
			zap.Uint("user_id", userID),
			zap.String("achievement_id", def.ID),
			zap.Error(err))
		return false
	}
	e.logger.Debug("progress updated",
		zap.Uint("user_id", userID),
		zap.String("achievement_id", def.ID),
		zap.Int("progress", progress))
	return true
}
