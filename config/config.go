package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once at startup and passed to every component that needs it.
type Config struct {
	Env         string
	Server      ServerConfig
	Mongo       MongoConfig
	Redis       RedisConfig
	NATS        NATSConfig
	Auth        AuthConfig
	Stripe      StripeConfig
	Email       EmailConfig
	RateLimit   RateLimitConfig
	PublicDir   string
	MapboxToken string // public token of the tour page map
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type NATSConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret        string
	JWTExpiresIn     time.Duration
	CookieExpiresIn  time.Duration
	ResetTokenExpiry time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type EmailConfig struct {
	MailerSendKey string
	FromName      string
	FromEmail     string
	DevMode       bool // log emails instead of sending
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Development reports whether detailed errors may be returned to clients.
func (c *Config) Development() bool {
	return c.Env == "development"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	return &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:            getEnv("PORT", "3000"),
			ReadTimeout:     getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			AllowedOrigins:  []string{getEnv("CORS_ORIGIN", "*")},
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "natours"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:        getEnv("JWT_SECRET", "dev-only-secret-change-in-prod"),
			JWTExpiresIn:     getDuration("JWT_EXPIRES_IN", 90*24*time.Hour),
			CookieExpiresIn:  getDuration("JWT_COOKIE_EXPIRES_IN", 90*24*time.Hour),
			ResetTokenExpiry: getDuration("PASSWORD_RESET_EXPIRES_IN", 10*time.Minute),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Email: EmailConfig{
			MailerSendKey: getEnv("MAILERSEND_API_KEY", ""),
			FromName:      getEnv("EMAIL_FROM_NAME", "Natours"),
			FromEmail:     getEnv("EMAIL_FROM", "hello@natours.io"),
			DevMode:       getBool("EMAIL_DEV_MODE", true),
		},
		RateLimit: RateLimitConfig{
			Requests: getInt("RATE_LIMIT_MAX", 100),
			Window:   getDuration("RATE_LIMIT_WINDOW", time.Hour),
		},
		PublicDir:   getEnv("PUBLIC_DIR", "public"),
		MapboxToken: getEnv("MAPBOX_TOKEN", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
