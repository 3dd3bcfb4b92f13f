package achievements

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tightlines/models"
)

func TestThresholdMatchesFormula(t *testing.T) {
	for _, n := range []int64{1, 3, 5, 7, 10, 50} {
		for count := int64(0); count <= 2*n; count++ {
			got := Threshold(count, n)
			want := int(math.Min(100, math.Round(100*float64(count)/float64(n))))
			assert.Equalf(t, want, got.Progress, "progress for count=%d n=%d", count, n)
			assert.Equalf(t, count >= n, got.Unlocked, "unlocked for count=%d n=%d", count, n)
		}
	}
}

func TestThresholdZeroTargetAlwaysUnlocks(t *testing.T) {
	assert.Equal(t, Outcome{Unlocked: true, Progress: 100}, Threshold(0, 0))
	assert.Equal(t, Outcome{Unlocked: true, Progress: 100}, Threshold(12, 0))
}

func TestThresholdClampsProgress(t *testing.T) {
	assert.Equal(t, 100, Threshold(1000, 10).Progress)
	assert.Equal(t, 0, Threshold(-4, 10).Progress)
}

func TestSpeciesAtLeastIsCaseInsensitiveSubstring(t *testing.T) {
	facts := Facts{Catches: []models.Catch{
		{Species: "Northern Pike"},
		{Species: "PIKE"},
		{Species: "Muskellunge"},
		{Species: "pikeperch"},
	}}

	out := SpeciesAtLeast("Pike", 5)(facts)
	assert.False(t, out.Unlocked)
	assert.Equal(t, 60, out.Progress)

	out = SpeciesAtLeast("pike", 3)(facts)
	assert.True(t, out.Unlocked)
	assert.Equal(t, 100, out.Progress)
}

func TestDistinctSpeciesAtLeast(t *testing.T) {
	facts := Facts{Catches: []models.Catch{
		{Species: "Walleye"},
		{Species: "walleye "},
		{Species: "Perch"},
		{Species: ""},
	}}
	out := DistinctSpeciesAtLeast(4)(facts)
	assert.False(t, out.Unlocked)
	assert.Equal(t, 50, out.Progress)
}

func TestCountAtLeastMetrics(t *testing.T) {
	facts := Facts{LikesReceived: 25, CasesOpened: 1}
	assert.Equal(t, Outcome{Unlocked: false, Progress: 50}, CountAtLeast(MetricLikesReceived, 50)(facts))
	assert.Equal(t, Outcome{Unlocked: true, Progress: 100}, CountAtLeast(MetricCasesOpened, 1)(facts))
	assert.Equal(t, Outcome{Unlocked: false, Progress: 0}, CountAtLeast(MetricCatches, 10)(facts))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("catch_first_fish")
	assert.False(t, ok)

	r.Register("catch_first_fish", CountAtLeast(MetricCatches, 1))
	p, ok := r.Lookup("catch_first_fish")
	require.True(t, ok)
	assert.True(t, p(Facts{Catches: make([]models.Catch, 1)}).Unlocked)

	assert.Panics(t, func() { r.Register("", CountAtLeast(MetricCatches, 1)) })
	assert.Panics(t, func() { r.Register("x", nil) })
}

func TestDefaultRegistryKnowsShippedCriteria(t *testing.T) {
	r := DefaultRegistry()
	for _, id := range []string{
		"catch_first_fish", "catch_10_fish", "catch_5_pike",
		"likes_10", "open_first_case", "species_5",
	} {
		assert.Truef(t, r.Has(id), "criteria %q should be registered", id)
	}
	assert.False(t, r.Has("catch_a_kraken"))
}
