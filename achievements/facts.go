package achievements

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tightlines/models"
)

// Fact names used in logs and Facts.Degraded.
const (
	FactBalances      = "balances"
	FactCatches       = "catches"
	FactLikesReceived = "likes_received"
	FactStates        = "states"
	FactCasesOpened   = "cases_opened"
)

// Facts is the read-only snapshot one pass evaluates against.
type Facts struct {
	UserID        uint
	Balances      Balances
	Catches       []models.Catch
	LikesReceived int64
	CasesOpened   int64

	// Unlocked holds achievement ids with unlocked_at set.
	Unlocked map[string]bool
	// Progress holds stored progress for rows that are still locked.
	Progress map[string]int

	// Degraded lists facts that could not be read and were treated as empty.
	Degraded []string
}

// collectFacts reads every fact concurrently. A failed read is logged and
// left at its zero value; it never fails the pass.
func (e *Engine) collectFacts(ctx context.Context, userID uint) Facts {
	ctx, span := e.tracer.Start(ctx, "achievements.collect_facts")
	defer span.End()

	var (
		balances Balances
		catches  []models.Catch
		likes    int64
		cases    int64
		states   []models.UserAchievement
	)
	failed := make([]bool, 5)

	g, gctx := errgroup.WithContext(ctx)
	read := func(i int, name string, fn func(context.Context) error) {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
				if err != nil {
					failed[i] = true
					e.logger.Warn("fact read failed",
						zap.Uint("user_id", userID),
						zap.String("fact", name),
						zap.Error(err))
				}
				// Never cancel sibling reads.
				err = nil
			}()
			return fn(gctx)
		})
	}

	read(0, FactBalances, func(ctx context.Context) (err error) {
		balances, err = e.store.GetBalances(ctx, userID)
		return err
	})
	read(1, FactCatches, func(ctx context.Context) (err error) {
		catches, err = e.store.ListCatches(ctx, userID)
		return err
	})
	read(2, FactLikesReceived, func(ctx context.Context) (err error) {
		likes, err = e.store.CountLikesReceived(ctx, userID)
		return err
	})
	read(3, FactStates, func(ctx context.Context) (err error) {
		states, err = e.store.ListStates(ctx, userID)
		return err
	})
	read(4, FactCasesOpened, func(ctx context.Context) (err error) {
		cases, err = e.store.CountCasesOpened(ctx, userID)
		return err
	})
	_ = g.Wait()

	facts := Facts{
		UserID:   userID,
		Unlocked: make(map[string]bool),
		Progress: make(map[string]int),
	}
	names := []string{FactBalances, FactCatches, FactLikesReceived, FactStates, FactCasesOpened}
	for i, bad := range failed {
		if bad {
			facts.Degraded = append(facts.Degraded, names[i])
		}
	}
	if !failed[0] {
		facts.Balances = balances
	}
	if !failed[1] {
		facts.Catches = catches
	}
	if !failed[2] {
		facts.LikesReceived = likes
	}
	if !failed[4] {
		facts.CasesOpened = cases
	}
	if !failed[3] {
		for _, st := range states {
			if st.Unlocked() {
				facts.Unlocked[st.AchievementID] = true
				continue
			}
			facts.Progress[st.AchievementID] = st.Progress
		}
	}

	e.logger.Debug("facts collected",
		zap.Uint("user_id", userID),
		zap.Int("catches", len(facts.Catches)),
		zap.Int64("likes_received", facts.LikesReceived),
		zap.Int64("cases_opened", facts.CasesOpened),
		zap.Int("unlocked", len(facts.Unlocked)),
		zap.Strings("degraded", facts.Degraded))
	return facts
}
