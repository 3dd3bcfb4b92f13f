// Package catalog loads and seeds the achievement catalog.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tightlines/models"
)

//go:embed achievements.yaml
var defaultCatalog []byte

// ErrInvalidCatalog wraps every validation failure.
var ErrInvalidCatalog = errors.New("invalid achievement catalog")

var (
	validCategories = map[string]bool{
		models.CategoryCatching: true,
		models.CategorySocial:   true,
		models.CategoryGear:     true,
		models.CategoryExplorer: true,
		models.CategorySpecial:  true,
	}
	validRarities = map[string]bool{
		models.RarityCommon:    true,
		models.RarityRare:      true,
		models.RarityEpic:      true,
		models.RarityLegendary: true,
	}
)

type file struct {
	Achievements []models.Achievement `yaml:"achievements"`
}

// Load returns the embedded catalog.
func Load() ([]models.Achievement, error) {
	return Parse(defaultCatalog)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) ([]models.Achievement, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := Validate(f.Achievements); err != nil {
		return nil, err
	}
	return f.Achievements, nil
}

// Validate checks ids are unique and every field is within its domain.
func Validate(defs []models.Achievement) error {
	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		switch {
		case strings.TrimSpace(d.ID) == "":
			return fmt.Errorf("%w: entry %d has no id", ErrInvalidCatalog, i)
		case seen[d.ID]:
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidCatalog, d.ID)
		case strings.TrimSpace(d.Name) == "":
			return fmt.Errorf("%w: %q has no name", ErrInvalidCatalog, d.ID)
		case strings.TrimSpace(d.Criteria) == "":
			return fmt.Errorf("%w: %q has no criteria", ErrInvalidCatalog, d.ID)
		case !validCategories[d.Category]:
			return fmt.Errorf("%w: %q has unknown category %q", ErrInvalidCatalog, d.ID, d.Category)
		case !validRarities[d.Rarity]:
			return fmt.Errorf("%w: %q has unknown rarity %q", ErrInvalidCatalog, d.ID, d.Rarity)
		case d.RewardPoints < 0:
			return fmt.Errorf("%w: %q has negative reward", ErrInvalidCatalog, d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

// Seed inserts the definitions, refreshing display fields of existing ids.
func Seed(ctx context.Context, db *gorm.DB, defs []models.Achievement) error {
	if err := Validate(defs); err != nil {
		return err
	}
	if len(defs) == 0 {
		return nil
	}
	rows := append([]models.Achievement(nil), defs...)
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "description", "icon", "category", "rarity",
				"criteria", "reward_points", "is_secret", "updated_at",
			}),
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("seed achievement catalog: %w", err)
	}
	return nil
}

// Unregistered returns ids of definitions whose criteria id is unknown to has.
// The engine treats those as inert.
func Unregistered(defs []models.Achievement, has func(string) bool) []string {
	var out []string
	for _, d := range defs {
		if !has(d.Criteria) {
			out = append(out, d.ID)
		}
	}
	return out
}
