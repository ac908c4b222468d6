package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"thriftly_backend/models"
	"thriftly_backend/utils"
)

const (
	// AuthCookie carries the session JWT.
	AuthCookie = "token"

	localUserID   = "user_id"
	localUsername = "username"
	localRole     = "role"
)

// tokenFromRequest reads the JWT from the auth cookie, falling back to a
// bearer Authorization header.
func tokenFromRequest(c *fiber.Ctx) string {
	if token := c.Cookies(AuthCookie); token != "" {
		return token
	}
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func setClaims(c *fiber.Ctx, claims *utils.Claims) {
	c.Locals(localUserID, claims.UserID)
	c.Locals(localUsername, claims.Username)
	c.Locals(localRole, claims.Role)
}

// RequireAuth rejects requests without a valid token.
func RequireAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := tokenFromRequest(c)
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Not authenticated")
		}
		claims, err := utils.ParseJWT(token, secret)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}
		setClaims(c, claims)
		return c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets
// anonymous requests through.
func OptionalAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := tokenFromRequest(c); token != "" {
			if claims, err := utils.ParseJWT(token, secret); err == nil {
				setClaims(c, claims)
			}
		}
		return c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsAdmin(c) {
			return fiber.NewError(fiber.StatusForbidden, "Admin access required")
		}
		return c.Next()
	}
}

// UserID is the authenticated user, or 0 for anonymous requests.
func UserID(c *fiber.Ctx) uint {
	id, _ := c.Locals(localUserID).(uint)
	return id
}

func Username(c *fiber.Ctx) string {
	name, _ := c.Locals(localUsername).(string)
	return name
}

func IsAdmin(c *fiber.Ctx) bool {
	role, _ := c.Locals(localRole).(string)
	return role == models.RoleAdmin
}
