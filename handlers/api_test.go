package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"tightlines/achievements"
	"tightlines/catalog"
	"tightlines/config"
	"tightlines/database"
	"tightlines/database/dbtest"
	"tightlines/middleware"
	"tightlines/models"
	"tightlines/services"
)

const testSecret = "test-secret-test-secret-test-secret"

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	engine *achievements.Engine
	hub    *services.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.Open(t)

	defs, err := catalog.Load()
	require.NoError(t, err)
	require.NoError(t, catalog.Seed(t.Context(), db, defs))

	hub := services.NewHub(nil)
	retries := database.NewRetryStore(db)
	store := database.NewAchievementStore(db)
	engine := achievements.New(store,
		achievements.WithNotifier(hub),
		achievements.WithRetryQueue(retries))
	worker := services.NewRewardRetryWorker(retries, config.RetryConfig{
		Interval: time.Minute, BatchSize: 10, MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Minute,
	}, nil)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(false, zap.NewNop())})
	New(Deps{
		DB:        db,
		Engine:    engine,
		Hub:       hub,
		Retries:   retries,
		RetryRun:  worker,
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
	}).Register(app)

	t.Cleanup(engine.Wait)
	return &testEnv{app: app, db: db, engine: engine, hub: hub}
}

func (e *testEnv) user(t *testing.T, username string, admin bool) (models.User, string) {
	t.Helper()
	user := dbtest.CreateUser(t, e.db, username)
	if admin {
		require.NoError(t, e.db.Model(&user).Update("is_admin", true).Error)
		user.IsAdmin = true
	}
	token, err := middleware.GenerateToken(testSecret, time.Hour, user)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func findAchievement(t *testing.T, body map[string]any, id string) map[string]any {
	t.Helper()
	for _, raw := range body["achievements"].([]any) {
		a := raw.(map[string]any)
		if a["id"] == id {
			return a
		}
	}
	t.Fatalf("achievement %s not in response", id)
	return nil
}

func TestRegisterSameUsernameConcurrently(t *testing.T) {
	env := newTestEnv(t)

	const racers = 4
	codes := make([]int, racers)
	var g errgroup.Group
	for i := range racers {
		g.Go(func() error {
			raw, err := json.Marshal(fiber.Map{"username": "twin_angler", "password": "hunter22"})
			if err != nil {
				return err
			}
			req := httptest.NewRequest("POST", "/api/auth/register", bytes.NewReader(raw))
			req.Header.Set("Content-Type", "application/json")
			resp, err := env.app.Test(req, -1)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			codes[i] = resp.StatusCode
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.ElementsMatch(t, []int{
		fiber.StatusCreated, fiber.StatusConflict, fiber.StatusConflict, fiber.StatusConflict,
	}, codes)

	var n int64
	require.NoError(t, env.db.Model(&models.User{}).Where("username = ?", "twin_angler").Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestRegisterTakenUsernameConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "reel_ryan", false)

	code, body := env.do(t, "POST", "/api/auth/register", "", fiber.Map{"username": "reel_ryan", "password": "hunter22"})
	assert.Equal(t, fiber.StatusConflict, code)
	assert.Equal(t, "Username already taken", body["error"])
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, "POST", "/api/auth/register", "", fiber.Map{"username": "reel_ryan", "password": "hunter22"})
	require.Equal(t, fiber.StatusCreated, code)
	assert.NotEmpty(t, body["token"])
	assert.NotContains(t, body["user"], "password")

	code, _ = env.do(t, "POST", "/api/auth/register", "", fiber.Map{"username": "reel_ryan", "password": "hunter22"})
	assert.Equal(t, fiber.StatusConflict, code)

	code, _ = env.do(t, "POST", "/api/auth/register", "", fiber.Map{"username": "short", "password": "x"})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = env.do(t, "POST", "/api/auth/login", "", fiber.Map{"username": "reel_ryan", "password": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, body = env.do(t, "POST", "/api/auth/login", "", fiber.Map{"username": "reel_ryan", "password": "hunter22"})
	require.Equal(t, fiber.StatusOK, code)
	token := body["token"].(string)

	code, body = env.do(t, "GET", "/api/users/me", token, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "reel_ryan", body["user"].(map[string]any)["username"])

	code, body = env.do(t, "POST", "/api/auth/guest", "", nil)
	require.Equal(t, fiber.StatusCreated, code)
	assert.Equal(t, true, body["user"].(map[string]any)["is_guest"])
}

func TestRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/catches", "/api/achievements", "/api/feed", "/api/users/me"} {
		code, body := env.do(t, "GET", path, "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, code, path)
		assert.Equal(t, false, body["success"], path)
	}
}

func TestFirstCatchUnlocksAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.user(t, "angler", false)
	msgs, unsubscribe := env.hub.Subscribe(user.ID)
	defer unsubscribe()

	code, _ := env.do(t, "POST", "/api/catches", token, fiber.Map{"species": ""})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, body := env.do(t, "POST", "/api/catches", token, fiber.Map{"species": "Northern Pike", "weight_kg": 4.2})
	require.Equal(t, fiber.StatusCreated, code)
	assert.Equal(t, "Northern Pike", body["catch"].(map[string]any)["species"])
	env.engine.Wait()

	_, body = env.do(t, "GET", "/api/users/me", token, nil)
	me := body["user"].(map[string]any)
	assert.EqualValues(t, 10, me["current_points"])
	assert.EqualValues(t, 10, me["total_points_earned"])

	_, body = env.do(t, "GET", "/api/achievements", token, nil)
	first := findAchievement(t, body, "first_catch")
	assert.Equal(t, string(models.StateUnlocked), first["state"])
	assert.EqualValues(t, 100, first["progress"])
	assert.NotNil(t, first["unlocked_at"])

	pike := findAchievement(t, body, "pike_hunter")
	assert.Equal(t, string(models.StateInProgress), pike["state"])
	assert.EqualValues(t, 20, pike["progress"])

	bass := findAchievement(t, body, "bass_master")
	assert.Equal(t, string(models.StateUnseen), bass["state"])

	secret := findAchievement(t, body, "night_owl")
	assert.Equal(t, hiddenName, secret["name"])
	assert.Equal(t, hiddenDescription, secret["description"])
	assert.EqualValues(t, 1, body["unlocked"])

	_, body = env.do(t, "GET", "/api/feed", token, nil)
	var contents []string
	for _, raw := range body["entries"].([]any) {
		contents = append(contents, raw.(map[string]any)["content"].(string))
	}
	assert.ElementsMatch(t, []string{"Caught a Northern Pike", "First Catch"}, contents)

	select {
	case msg := <-msgs:
		assert.Equal(t, services.MessageAchievementUnlocked, msg.Type)
		assert.Equal(t, "first_catch", msg.Payload.(models.Achievement).ID)
	default:
		t.Fatal("expected an unlock notification")
	}

	// A second catch does not pay the first-catch reward again.
	code, _ = env.do(t, "POST", "/api/catches", token, fiber.Map{"species": "Northern Pike"})
	require.Equal(t, fiber.StatusCreated, code)
	env.engine.Wait()
	_, body = env.do(t, "GET", "/api/users/me", token, nil)
	assert.EqualValues(t, 10, body["user"].(map[string]any)["current_points"])

	_, body = env.do(t, "GET", "/api/catches", token, nil)
	assert.Len(t, body["catches"], 2)
}

func TestLikeTriggersCatchOwner(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.user(t, "owner", false)
	_, fanToken := env.user(t, "fan", false)
	catches := dbtest.CreateCatches(t, env.db, owner.ID, "Walleye")
	path := fmt.Sprintf("/api/catches/%d/like", catches[0].ID)

	code, _ := env.do(t, "POST", path, ownerToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, body := env.do(t, "POST", path, fanToken, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 1, body["likes"])

	code, body = env.do(t, "POST", path, fanToken, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 1, body["likes"], "likes are idempotent per user")

	code, _ = env.do(t, "POST", "/api/catches/9999/like", fanToken, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	env.engine.Wait()

	var row models.UserAchievement
	require.NoError(t, env.db.First(&row, "user_id = ? AND achievement_id = ?", owner.ID, "crowd_pleaser").Error)
	assert.Equal(t, 10, row.Progress)
	assert.Nil(t, row.UnlockedAt)
}

func TestOpenCaseUnlocksFirstCase(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "collector", false)

	code, body := env.do(t, "POST", "/api/cases/open", token, nil)
	require.Equal(t, fiber.StatusCreated, code)
	assert.Equal(t, defaultCaseType, body["opening"].(map[string]any)["case_type"])
	env.engine.Wait()

	_, body = env.do(t, "GET", "/api/achievements", token, nil)
	assert.Equal(t, string(models.StateUnlocked), findAchievement(t, body, "first_case")["state"])
	assert.EqualValues(t, 10, findAchievement(t, body, "case_collector")["progress"])
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	angler, anglerToken := env.user(t, "angler", false)
	_, adminToken := env.user(t, "ops", true)
	dbtest.CreateCatches(t, env.db, angler.ID, "Bluegill", "Perch")

	code, _ := env.do(t, "GET", "/api/admin/achievements", anglerToken, nil)
	assert.Equal(t, fiber.StatusForbidden, code)

	path := fmt.Sprintf("/api/admin/users/%d/recheck", angler.ID)
	code, body := env.do(t, "POST", path, adminToken, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, []any{"first_catch"}, body["result"].(map[string]any)["unlocked"])

	code, body = env.do(t, "GET", "/api/admin/achievements", adminToken, nil)
	require.Equal(t, fiber.StatusOK, code)
	var firstCount float64
	for _, raw := range body["achievements"].([]any) {
		a := raw.(map[string]any)
		if a["id"] == "first_catch" {
			firstCount = a["unlock_count"].(float64)
		}
		if a["id"] == "night_owl" {
			assert.Equal(t, "Night Owl", a["name"], "admins see secrets")
		}
	}
	assert.EqualValues(t, 1, firstCount)

	code, body = env.do(t, "GET", fmt.Sprintf("/api/admin/users/%d/achievements", angler.ID), adminToken, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.NotEmpty(t, body["achievements"])

	code, _ = env.do(t, "POST", "/api/admin/users/999/recheck", adminToken, nil)
	assert.Equal(t, fiber.StatusNotFound, code)

	code, body = env.do(t, "GET", "/api/admin/retries", adminToken, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 0, body["summary"].(map[string]any)["pending"])

	code, _ = env.do(t, "GET", "/api/admin/retries?status=bogus", adminToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, body = env.do(t, "POST", "/api/admin/retries/run", adminToken, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 0, body["stats"].(map[string]any)["claimed"])
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, "GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
}

func TestBuildViewMasksLockedSecrets(t *testing.T) {
	def := models.Achievement{ID: "s", Name: "Secret", Description: "d", Icon: "i", IsSecret: true}
	v := buildView(def, nil)
	assert.Equal(t, hiddenName, v.Name)
	assert.Equal(t, models.StateUnseen, v.State)

	now := time.Now()
	v = buildView(def, &models.UserAchievement{Progress: 100, UnlockedAt: &now})
	assert.Equal(t, "Secret", v.Name)
	assert.Equal(t, models.StateUnlocked, v.State)
}

func TestLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	low, _ := env.user(t, "low", false)
	high, _ := env.user(t, "high", false)
	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", low.ID).Update("total_points_earned", 10).Error)
	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", high.ID).Update("total_points_earned", 250).Error)
	dbtest.CreateCatches(t, env.db, low.ID, "Carp", "Carp", "Carp")

	code, body := env.do(t, "GET", "/api/leaderboard", "", nil)
	require.Equal(t, fiber.StatusOK, code)
	entries := body["entries"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "high", entries[0].(map[string]any)["username"])

	_, body = env.do(t, "GET", "/api/leaderboard?category=catches", "", nil)
	top := body["entries"].([]any)[0].(map[string]any)
	assert.Equal(t, "low", top["username"])
	assert.EqualValues(t, 3, top["catches"])

	code, _ = env.do(t, "GET", "/api/leaderboard?category=xp", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, code)

	_, body = env.do(t, "GET", fmt.Sprintf("/api/leaderboard/user/%d", low.ID), "", nil)
	assert.EqualValues(t, 2, body["rank"])
}
