package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"thriftly_backend/config"
	"thriftly_backend/models"
)

// SetupMiddleware configures all application middleware
func SetupMiddleware(app *fiber.App, cfg *config.Config) {
	// Request ID middleware - adds unique ID to each request
	app.Use(requestid.New())

	// Logger middleware - logs all requests
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${method} ${path} - ${ip} - ${latency}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	// Recover middleware - recovers from panics
	app.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.IsDevelopment(),
	}))

	// Security middleware. Uploaded media is loaded cross-origin by the frontend.
	app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		CrossOriginResourcePolicy: "cross-origin",
	}))

	// CORS middleware. The auth cookie needs credentials, so origins are explicit.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.CORSAllowOrigins, ","),
		AllowMethods:     strings.Join(cfg.CORSAllowMethods, ","),
		AllowHeaders:     strings.Join(cfg.CORSAllowHeaders, ","),
		AllowCredentials: true,
		ExposeHeaders:    "X-Request-ID",
		MaxAge:           86400, // 24 hours
	}))
}

// AuthLimiter throttles credential and one-time-code endpoints per client IP.
func AuthLimiter(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse("Too many requests, try again later"))
		},
	})
}

// NotFound answers any request no route matched.
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse("The requested resource was not found"))
}
