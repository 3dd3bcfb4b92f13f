package achievements

import (
	"context"
	"time"

	"tightlines/models"
)

// Balances is a user's point counters.
type Balances struct {
	CurrentPoints     int
	TotalPointsEarned int
}

// Store is the data access the engine needs. Implementations must make
// MarkUnlocked conditional on the row not being unlocked yet and
// IncrementPoints an atomic server-side increment.
type Store interface {
	GetBalances(ctx context.Context, userID uint) (Balances, error)
	ListCatches(ctx context.Context, userID uint) ([]models.Catch, error)
	CountLikesReceived(ctx context.Context, userID uint) (int64, error)
	CountCasesOpened(ctx context.Context, userID uint) (int64, error)
	ListDefinitions(ctx context.Context) ([]models.Achievement, error)
	ListStates(ctx context.Context, userID uint) ([]models.UserAchievement, error)

	// GetState returns the row for (userID, achievementID); found is false
	// when the pair is still UNSEEN.
	GetState(ctx context.Context, userID uint, achievementID string) (state models.UserAchievement, found bool, err error)
	UpsertProgress(ctx context.Context, userID uint, achievementID string, progress int) error
	// MarkUnlocked reports whether this call moved the pair to UNLOCKED.
	MarkUnlocked(ctx context.Context, userID uint, achievementID string, at time.Time) (bool, error)
	IncrementPoints(ctx context.Context, userID uint, delta int) error
	AppendActivity(ctx context.Context, entry models.ActivityFeedEntry) error
}

// Notifier is told about unlocks after they are recorded.
type Notifier interface {
	AchievementUnlocked(userID uint, achievement models.Achievement)
}

// RetryQueue durably records unlock side effects that failed.
type RetryQueue interface {
	Enqueue(ctx context.Context, retry models.RewardRetry) error
}
