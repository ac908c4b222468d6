package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"thriftly_backend/internal/services"
	"thriftly_backend/middleware"
)

type AuthHandler struct {
	users        *services.UserService
	tokenTTL     time.Duration
	cookieSecure bool
}

func NewAuthHandler(users *services.UserService, tokenTTL time.Duration, cookieSecure bool) *AuthHandler {
	return &AuthHandler{users: users, tokenTTL: tokenTTL, cookieSecure: cookieSecure}
}

// RegisterRequest defines the payload for registration
type RegisterRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Phone    string `json:"phone" form:"phone"`
}

// LoginRequest defines the payload for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.users.Register(c.UserContext(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		return err
	}
	return created(c, fiber.Map{
		"message": "Registered. Check your email for the verification code",
		"user":    user.Public(),
	})
}

func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req VerifyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.users.Verify(c.UserContext(), req.Email, req.OTP); err != nil {
		return err
	}
	return message(c, "Account verified")
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	token, user, err := h.users.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.AuthCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.tokenTTL),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return ok(c, fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":          user.ID,
			"username":    user.Username,
			"email":       user.Email,
			"role":        user.Role,
			"profile_pic": user.ProfilePic,
		},
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AuthCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return message(c, "Logged out")
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.users.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return err
	}
	return message(c, "A reset code was sent to your email")
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.users.ResetPassword(c.UserContext(), req.Email, req.OTP, req.NewPassword); err != nil {
		return err
	}
	return message(c, "Password updated")
}

// Me returns the caller's full account.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.users.Get(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, user)
}
