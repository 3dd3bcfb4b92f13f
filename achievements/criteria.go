package achievements

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// Outcome is the result of evaluating one achievement against a snapshot.
type Outcome struct {
	Unlocked bool
	Progress int
}

// Predicate evaluates one criteria. Predicates are pure.
type Predicate func(Facts) Outcome

// Metric extracts a count from a snapshot.
type Metric func(Facts) int64

var (
	MetricCatches       Metric = func(f Facts) int64 { return int64(len(f.Catches)) }
	MetricLikesReceived Metric = func(f Facts) int64 { return f.LikesReceived }
	MetricCasesOpened   Metric = func(f Facts) int64 { return f.CasesOpened }
)

// Registry maps criteria ids to predicates. Ids that are not registered are
// inert: the engine skips achievements that use them.
type Registry struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
}

func NewRegistry() *Registry {
	return &Registry{predicates: make(map[string]Predicate)}
}

// Register adds or replaces the predicate for id.
func (r *Registry) Register(id string, p Predicate) {
	if id == "" || p == nil {
		panic(fmt.Sprintf("achievements: invalid criteria registration %q", id))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[id] = p
}

// Lookup returns the predicate for id.
func (r *Registry) Lookup(id string) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.predicates[id]
	return p, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Lookup(id)
	return ok
}

// Threshold computes the outcome of a count against a target:
// unlocked when count >= target, progress round(100*count/target) clamped
// to [0, 100]. A target of zero or less is always unlocked.
func Threshold(count, target int64) Outcome {
	if target <= 0 {
		return Outcome{Unlocked: true, Progress: 100}
	}
	progress := int(math.Round(100 * float64(count) / float64(target)))
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return Outcome{Unlocked: count >= target, Progress: progress}
}

// CountAtLeast unlocks once metric reaches n.
func CountAtLeast(metric Metric, n int64) Predicate {
	return func(f Facts) Outcome {
		return Threshold(metric(f), n)
	}
}

// SpeciesAtLeast unlocks once n catches have a species containing substr,
// compared case-insensitively.
func SpeciesAtLeast(substr string, n int64) Predicate {
	needle := strings.ToLower(substr)
	return func(f Facts) Outcome {
		var count int64
		for _, c := range f.Catches {
			if strings.Contains(strings.ToLower(c.Species), needle) {
				count++
			}
		}
		return Threshold(count, n)
	}
}

// DistinctSpeciesAtLeast unlocks once n different species have been caught.
func DistinctSpeciesAtLeast(n int64) Predicate {
	return func(f Facts) Outcome {
		seen := make(map[string]struct{}, len(f.Catches))
		for _, c := range f.Catches {
			species := strings.ToLower(strings.TrimSpace(c.Species))
			if species == "" {
				continue
			}
			seen[species] = struct{}{}
		}
		return Threshold(int64(len(seen)), n)
	}
}

// DefaultRegistry returns the criteria the shipped catalog uses.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	// catching
	r.Register("catch_first_fish", CountAtLeast(MetricCatches, 1))
	r.Register("catch_10_fish", CountAtLeast(MetricCatches, 10))
	r.Register("catch_50_fish", CountAtLeast(MetricCatches, 50))
	r.Register("catch_100_fish", CountAtLeast(MetricCatches, 100))
	r.Register("catch_5_pike", SpeciesAtLeast("pike", 5))
	r.Register("catch_10_bass", SpeciesAtLeast("bass", 10))
	r.Register("catch_5_trout", SpeciesAtLeast("trout", 5))
	r.Register("catch_3_catfish", SpeciesAtLeast("catfish", 3))

	// social
	r.Register("likes_10", CountAtLeast(MetricLikesReceived, 10))
	r.Register("likes_50", CountAtLeast(MetricLikesReceived, 50))
	r.Register("likes_250", CountAtLeast(MetricLikesReceived, 250))

	// gear
	r.Register("open_first_case", CountAtLeast(MetricCasesOpened, 1))
	r.Register("open_10_cases", CountAtLeast(MetricCasesOpened, 10))

	// explorer
	r.Register("species_5", DistinctSpeciesAtLeast(5))
	r.Register("species_15", DistinctSpeciesAtLeast(15))

	return r
}
