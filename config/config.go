package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Server Settings
	AppEnv        string
	AppPort       string
	HOST          string
	PublicBaseURL string
	FrontendURL   string
	DatabaseURL   string

	// Logging
	LogLevel  string
	LogFormat string

	// JWT Settings
	JWTSecret    string
	JWTExpiresIn time.Duration
	CookieSecure bool
	OTPTTL       time.Duration

	// CORS Settings
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string

	// Redis (empty address keeps everything in-process)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Mail
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	AdminEmail   string

	// Media storage
	UploadDir          string
	AwsRegion          string
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsS3Bucket        string
	MediaBaseURL       string
	ImageMaxDimension  int
	UploadMaxMB        int

	// Payment gateway (eSewa sandbox by default)
	EsewaFormURL     string
	EsewaProductCode string
	EsewaSecretKey   string
	BoostPrice       decimal.Decimal
	BoostDays        int

	// Stories & sockets
	StoryTTL            time.Duration
	WSMessagesPerSecond float64
	WSMessageBurst      int
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func (c *Config) S3Enabled() bool {
	return c.AwsS3Bucket != ""
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, strconv.Itoa(defaultValue))
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, defaultValue.String())
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadConfig reads configuration from the environment, after loading a .env
// file if one is present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		AppPort:       getEnv("PORT", "5000"),
		HOST:          getEnv("HOST", "0.0.0.0"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:5000"), "/"),
		FrontendURL:   strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		CookieSecure: getEnv("COOKIE_SECURE", "false") == "true",

		CORSAllowOrigins: splitList(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		CORSAllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "ThriftLy <noreply@thriftly.local>"),
		AdminEmail:   getEnv("ADMIN_EMAIL", ""),

		UploadDir:          getEnv("UPLOAD_DIR", "./uploads"),
		AwsRegion:          getEnv("AWS_REGION", ""),
		AwsAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AwsSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AwsS3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		MediaBaseURL:       strings.TrimRight(getEnv("MEDIA_BASE_URL", ""), "/"),

		EsewaFormURL:     getEnv("ESEWA_FORM_URL", "https://rc-epay.esewa.com.np/api/epay/main/v2/form"),
		EsewaProductCode: getEnv("ESEWA_PRODUCT_CODE", "EPAYTEST"),
		EsewaSecretKey:   getEnv("ESEWA_SECRET_KEY", "8gBm/:&EnhH.1/q"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required environment variable: JWT_SECRET")
	}
	if cfg.DatabaseURL == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("missing required environment variable: DATABASE_URL")
		}
		cfg.DatabaseURL = "thriftly.db"
	}

	var err error
	if cfg.JWTExpiresIn, err = getEnvDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.OTPTTL, err = getEnvDuration("OTP_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.StoryTTL, err = getEnvDuration("STORY_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getEnvInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.ImageMaxDimension, err = getEnvInt("IMAGE_MAX_DIMENSION", 1600); err != nil {
		return nil, err
	}
	if cfg.UploadMaxMB, err = getEnvInt("UPLOAD_MAX_MB", 25); err != nil {
		return nil, err
	}
	if cfg.BoostDays, err = getEnvInt("BOOST_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.WSMessageBurst, err = getEnvInt("WS_MESSAGE_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.BoostPrice, err = decimal.NewFromString(getEnv("BOOST_PRICE", "100")); err != nil {
		return nil, fmt.Errorf("invalid BOOST_PRICE: %w", err)
	}
	if cfg.WSMessagesPerSecond, err = strconv.ParseFloat(getEnv("WS_MESSAGES_PER_SECOND", "5"), 64); err != nil {
		return nil, fmt.Errorf("invalid WS_MESSAGES_PER_SECOND: %w", err)
	}

	return cfg, nil
}
