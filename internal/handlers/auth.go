package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/forgeline/internal/config"
	"github.com/example/forgeline/internal/utils"
)

// AuthHandler issues operator tokens for the ops API.
type AuthHandler struct {
	cfg          *config.Config
	passwordHash string
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	h := &AuthHandler{cfg: cfg}
	if cfg.AdminPassword != "" {
		hash, err := utils.HashPassword(cfg.AdminPassword)
		if err != nil {
			log.Printf("[Auth] failed to hash admin password: %v", err)
			return h
		}
		h.passwordHash = hash
	}
	return h
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks operator credentials and returns a JWT.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	if h.passwordHash == "" {
		return fiber.NewError(fiber.StatusServiceUnavailable, "operator login is not configured")
	}

	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Username != h.cfg.AdminUsername || !utils.CheckPassword(h.passwordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, req.Username, h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to issue token")
	}

	return c.JSON(fiber.Map{"token": token})
}
