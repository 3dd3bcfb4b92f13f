package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"tightlines/middleware"
	"tightlines/models"
	"tightlines/utils"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type GuestLoginRequest struct {
	GuestName string `json:"guest_name,omitempty"`
}

type AuthResponse struct {
	Success bool        `json:"success"`
	Token   string      `json:"token,omitempty"`
	User    models.User `json:"user"`
}

func (a *API) issue(c *fiber.Ctx, status int, user models.User) error {
	token, err := middleware.GenerateToken(a.jwtSecret, a.tokenTTL, user)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	return c.Status(status).JSON(AuthResponse{Success: true, Token: token, User: user})
}

// RegisterUser creates a new user account
func (a *API) RegisterUser(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return utils.JSONError(c, fiber.StatusBadRequest, "Username and password required")
	}
	if len(req.Username) > 50 {
		return utils.JSONError(c, fiber.StatusBadRequest, "Username must be at most 50 characters")
	}
	if len(req.Password) < 6 {
		return utils.JSONError(c, fiber.StatusBadRequest, "Password must be at least 6 characters")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = req.Username
	}
	user := models.User{
		Username:    req.Username,
		Password:    string(hashedPassword),
		DisplayName: displayName,
	}
	// The unique index on username decides races between registrations.
	if err := a.db.WithContext(c.UserContext()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.JSONError(c, fiber.StatusConflict, "Username already taken")
		}
		return fmt.Errorf("create user: %w", err)
	}

	a.logger.Info("user registered", zap.Uint("user_id", user.ID))
	return a.issue(c, fiber.StatusCreated, user)
}

func (a *API) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return utils.JSONError(c, fiber.StatusBadRequest, "Username and password required")
	}

	var user models.User
	err := a.db.WithContext(c.UserContext()).
		Where("username = ? AND is_guest = ?", req.Username, false).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.JSONError(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return utils.JSONError(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	now := time.Now().UTC()
	user.LastLogin = &now
	if err := a.db.WithContext(c.UserContext()).Model(&user).Update("last_login", now).Error; err != nil {
		a.logger.Warn("update last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	return a.issue(c, fiber.StatusOK, user)
}

// GuestLogin creates a throwaway account. Guests earn achievements like
// anyone else.
func (a *API) GuestLogin(c *fiber.Ctx) error {
	var req GuestLoginRequest
	// An empty body is fine.
	_ = c.BodyParser(&req)

	suffix := uuid.New().String()[:8]
	displayName := strings.TrimSpace(req.GuestName)
	if displayName == "" {
		displayName = "Guest " + suffix
	}

	user := models.User{
		Username:    "guest_" + suffix,
		DisplayName: displayName,
		IsGuest:     true,
	}
	if err := a.db.WithContext(c.UserContext()).Create(&user).Error; err != nil {
		return fmt.Errorf("create guest: %w", err)
	}

	return a.issue(c, fiber.StatusCreated, user)
}
