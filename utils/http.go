// Package utils holds small fiber response and query helpers.
package utils

import (
	"github.com/gofiber/fiber/v2"
)

// JSONError sends a JSON error response
func JSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// JSONSuccess sends a JSON success response. Map payloads are merged into
// the envelope, anything else goes under "data".
func JSONSuccess(c *fiber.Ctx, status int, data interface{}) error {
	response := fiber.Map{
		"success": true,
	}

	switch v := data.(type) {
	case fiber.Map:
		for k, val := range v {
			response[k] = val
		}
	case nil:
	default:
		response["data"] = data
	}

	return c.Status(status).JSON(response)
}

// QueryInt reads an integer query parameter, falling back to def and
// clamping to [min, max].
func QueryInt(c *fiber.Ctx, key string, def, min, max int) int {
	n := c.QueryInt(key, def)
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
