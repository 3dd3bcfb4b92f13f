package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"tightlines/models"
)

// Locals keys set by the auth middleware.
const (
	LocalUserID   = "userId"
	LocalUsername = "username"
	LocalIsGuest  = "isGuest"
	LocalIsAdmin  = "isAdmin"
)

// GenerateToken signs an HS256 token for user valid for ttl.
func GenerateToken(secret string, ttl time.Duration, user models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"is_guest": user.IsGuest,
		"is_admin": user.IsAdmin,
		"exp":      time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseToken(secret, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}
	if _, ok := claims["user_id"].(float64); !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}
	return claims, nil
}

func setLocals(c *fiber.Ctx, claims jwt.MapClaims) {
	isGuest, _ := claims["is_guest"].(bool)
	isAdmin, _ := claims["is_admin"].(bool)
	c.Locals(LocalUserID, uint(claims["user_id"].(float64)))
	c.Locals(LocalUsername, claims["username"])
	c.Locals(LocalIsGuest, isGuest)
	c.Locals(LocalIsAdmin, isAdmin)
}

func unauthorized(c *fiber.Ctx, err error) error {
	msg := "Unauthorized"
	if fe, ok := err.(*fiber.Error); ok {
		msg = fe.Message
	}
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": msg})
}

// Auth requires a valid Bearer token.
func Auth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, fiber.NewError(fiber.StatusUnauthorized, "Missing authorization header"))
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return unauthorized(c, fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization header format"))
		}

		claims, err := parseToken(secret, parts[1])
		if err != nil {
			return unauthorized(c, err)
		}
		setLocals(c, claims)
		return c.Next()
	}
}

// Admin must run after Auth.
func Admin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsAdmin(c) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "Access denied. Admin privileges required.",
			})
		}
		return c.Next()
	}
}

// WebSocketAuth reads the token from the Authorization header or the token
// query parameter, since browsers cannot set headers on websocket upgrades.
func WebSocketAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Query("token")
		if authHeader := c.Get("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
		if tokenString == "" {
			return unauthorized(c, fiber.NewError(fiber.StatusUnauthorized, "Missing token"))
		}

		claims, err := parseToken(secret, tokenString)
		if err != nil {
			return unauthorized(c, err)
		}
		setLocals(c, claims)
		return c.Next()
	}
}

func GetUserID(c *fiber.Ctx) (uint, error) {
	if id, ok := c.Locals(LocalUserID).(uint); ok && id != 0 {
		return id, nil
	}
	return 0, fiber.NewError(fiber.StatusUnauthorized, "User not authenticated")
}

func IsGuest(c *fiber.Ctx) bool {
	guest, _ := c.Locals(LocalIsGuest).(bool)
	return guest
}

func IsAdmin(c *fiber.Ctx) bool {
	admin, _ := c.Locals(LocalIsAdmin).(bool)
	return admin
}
