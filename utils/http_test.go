package utils

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONHelpers(t *testing.T) {
	app := fiber.New()
	app.Get("/ok", func(c *fiber.Ctx) error {
		return JSONSuccess(c, fiber.StatusCreated, fiber.Map{"id": 7})
	})
	app.Get("/list", func(c *fiber.Ctx) error {
		return JSONSuccess(c, fiber.StatusOK, []int{1, 2})
	})
	app.Get("/bad", func(c *fiber.Ctx) error {
		return JSONError(c, fiber.StatusBadRequest, "nope")
	})
	app.Get("/limit", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"limit": QueryInt(c, "limit", 20, 1, 100)})
	})

	decode := func(path string) (int, map[string]any) {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	code, body := decode("/ok")
	assert.Equal(t, fiber.StatusCreated, code)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 7, body["id"])

	_, body = decode("/list")
	assert.Len(t, body["data"], 2)

	code, body = decode("/bad")
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "nope", body["error"])

	_, body = decode("/limit?limit=500")
	assert.EqualValues(t, 100, body["limit"])
	_, body = decode("/limit")
	assert.EqualValues(t, 20, body["limit"])
	_, body = decode("/limit?limit=-4")
	assert.EqualValues(t, 1, body["limit"])
}
