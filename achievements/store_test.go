package achievements

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"tightlines/models"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory Store with per-method failure injection and a
// write log for asserting idempotence.
type memStore struct {
	mu sync.Mutex

	users       map[uint]*Balances
	catches     map[uint][]models.Catch
	likes       map[uint]int64
	cases       map[uint]int64
	definitions []models.Achievement
	states      map[uint]map[string]models.UserAchievement
	activity    []models.ActivityFeedEntry

	fail   map[string]error
	panics map[string]bool
	writes []string
}

func newMemStore(defs ...models.Achievement) *memStore {
	return &memStore{
		users:       map[uint]*Balances{},
		catches:     map[uint][]models.Catch{},
		likes:       map[uint]int64{},
		cases:       map[uint]int64{},
		definitions: defs,
		states:      map[uint]map[string]models.UserAchievement{},
		fail:        map[string]error{},
		panics:      map[string]bool{},
	}
}

func (s *memStore) addUser(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &Balances{}
}

func (s *memStore) addCatches(userID uint, species ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sp := range species {
		s.catches[userID] = append(s.catches[userID], models.Catch{
			ID:      uint(len(s.catches[userID]) + 1),
			UserID:  userID,
			Species: sp,
		})
	}
}

func (s *memStore) balances(userID uint) Balances {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[userID]
}

func (s *memStore) state(userID uint, id string) (models.UserAchievement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID][id]
	return st, ok
}

func (s *memStore) writeLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

func (s *memStore) activityFor(userID uint) []models.ActivityFeedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ActivityFeedEntry
	for _, a := range s.activity {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

func (s *memStore) check(method string) error {
	if s.panics[method] {
		panic("boom in " + method)
	}
	return s.fail[method]
}

func (s *memStore) GetBalances(_ context.Context, userID uint) (Balances, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("GetBalances"); err != nil {
		return Balances{}, err
	}
	b, ok := s.users[userID]
	if !ok {
		return Balances{}, errors.New("user not found")
	}
	return *b, nil
}

func (s *memStore) ListCatches(_ context.Context, userID uint) ([]models.Catch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListCatches"); err != nil {
		return nil, err
	}
	return append([]models.Catch(nil), s.catches[userID]...), nil
}

func (s *memStore) CountLikesReceived(_ context.Context, userID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("CountLikesReceived"); err != nil {
		return 0, err
	}
	return s.likes[userID], nil
}

func (s *memStore) CountCasesOpened(_ context.Context, userID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("CountCasesOpened"); err != nil {
		return 0, err
	}
	return s.cases[userID], nil
}

func (s *memStore) ListDefinitions(context.Context) ([]models.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListDefinitions"); err != nil {
		return nil, err
	}
	return append([]models.Achievement(nil), s.definitions...), nil
}

func (s *memStore) ListStates(_ context.Context, userID uint) ([]models.UserAchievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListStates"); err != nil {
		return nil, err
	}
	out := make([]models.UserAchievement, 0, len(s.states[userID]))
	for _, st := range s.states[userID] {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AchievementID < out[j].AchievementID })
	return out, nil
}

func (s *memStore) GetState(_ context.Context, userID uint, id string) (models.UserAchievement, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("GetState"); err != nil {
		return models.UserAchievement{}, false, err
	}
	st, ok := s.states[userID][id]
	return st, ok, nil
}

func (s *memStore) UpsertProgress(_ context.Context, userID uint, id string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("UpsertProgress"); err != nil {
		return err
	}
	if s.states[userID] == nil {
		s.states[userID] = map[string]models.UserAchievement{}
	}
	st := s.states[userID][id]
	if st.Unlocked() {
		return nil
	}
	st.UserID, st.AchievementID, st.Progress = userID, id, progress
	s.states[userID][id] = st
	s.writes = append(s.writes, "progress:"+id)
	return nil
}

func (s *memStore) MarkUnlocked(_ context.Context, userID uint, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("MarkUnlocked"); err != nil {
		return false, err
	}
	if s.states[userID] == nil {
		s.states[userID] = map[string]models.UserAchievement{}
	}
	st := s.states[userID][id]
	if st.Unlocked() {
		return false, nil
	}
	unlockedAt := at
	st.UserID, st.AchievementID, st.Progress, st.UnlockedAt = userID, id, 100, &unlockedAt
	s.states[userID][id] = st
	s.writes = append(s.writes, "unlock:"+id)
	return true, nil
}

func (s *memStore) IncrementPoints(_ context.Context, userID uint, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("IncrementPoints"); err != nil {
		return err
	}
	b, ok := s.users[userID]
	if !ok {
		return errors.New("user not found")
	}
	b.CurrentPoints += delta
	b.TotalPointsEarned += delta
	s.writes = append(s.writes, "points")
	return nil
}

func (s *memStore) AppendActivity(_ context.Context, entry models.ActivityFeedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("AppendActivity"); err != nil {
		return err
	}
	s.activity = append(s.activity, entry)
	s.writes = append(s.writes, "activity:"+entry.Content)
	return nil
}

type memRetryQueue struct {
	mu      sync.Mutex
	retries []models.RewardRetry
}

func (q *memRetryQueue) Enqueue(_ context.Context, r models.RewardRetry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retries = append(q.retries, r)
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	unlocked []string
}

func (n *recordingNotifier) AchievementUnlocked(_ uint, a models.Achievement) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unlocked = append(n.unlocked, a.ID)
}

func def(id, criteria string, reward int) models.Achievement {
	return models.Achievement{
		ID:           id,
		Name:         "Name of " + id,
		Category:     models.CategoryCatching,
		Rarity:       models.RarityCommon,
		Criteria:     criteria,
		RewardPoints: reward,
	}
}
