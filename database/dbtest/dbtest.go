// Package dbtest opens throwaway in-memory databases with the production
// schema for tests.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tightlines/database"
	"tightlines/models"
)

// Open returns a migrated in-memory SQLite database that lives until the
// test ends. A single connection keeps the database alive and serialises
// writers.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.RunMigrations(db, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user and returns it.
func CreateUser(t testing.TB, db *gorm.DB, username string) models.User {
	t.Helper()
	user := models.User{Username: username, Password: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// CreateCatches inserts one catch per species for userID.
func CreateCatches(t testing.TB, db *gorm.DB, userID uint, species ...string) []models.Catch {
	t.Helper()
	out := make([]models.Catch, 0, len(species))
	for _, sp := range species {
		c := models.Catch{UserID: userID, Species: sp}
		if err := db.Create(&c).Error; err != nil {
			t.Fatalf("create catch: %v", err)
		}
		out = append(out, c)
	}
	return out
}

// SeedAchievements inserts catalog definitions.
func SeedAchievements(t testing.TB, db *gorm.DB, defs ...models.Achievement) {
	t.Helper()
	for i := range defs {
		if err := db.Create(&defs[i]).Error; err != nil {
			t.Fatalf("seed achievement %s: %v", defs[i].ID, err)
		}
	}
}
