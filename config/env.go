package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DEFAULT_STORE_ID = "00000000-0000-0000-0000-000000000001"

type Config struct {
	HTTP      HTTPConfig
	GRPC      GRPCConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Storage   StorageConfig
	Store     StoreConfig
	Gateway   GatewayConfig
	RateLimit RateLimitConfig
	AMQP      AMQPConfig
	Admin     AdminConfig
}

type HTTPConfig struct {
	Port           string
	AllowedOrigins []string
}

type GRPCConfig struct {
	Port string
}

type DBConfig struct {
	DSN   string
	Debug bool
}

type AuthConfig struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type StorageConfig struct {
	Dir           string
	PublicBaseURL string
	Bucket        string
}

type StoreConfig struct {
	ID   string
	Name string
}

type GatewayConfig struct {
	ReorderSettle  time.Duration
	RequestTimeout time.Duration
}

type RateLimitConfig struct {
	Rate string
}

// AMQPConfig is optional; an empty URL disables order events.
type AMQPConfig struct {
	URL string
}

type AdminConfig struct {
	Email    string
	Password string
	Name     string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return Config{
		HTTP: HTTPConfig{
			Port:           getEnv("HTTP_PORT", "8080"),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		GRPC: GRPCConfig{
			Port: getEnv("GRPC_PORT", "50051"),
		},
		DB: DBConfig{
			DSN:   getEnv("DATABASE_DSN", ""),
			Debug: getEnvBool("DATABASE_DEBUG", false),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			AccessTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTTL: getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
		},
		Storage: StorageConfig{
			Dir:           getEnv("STORAGE_DIR", "./data/storage"),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_URL", "http://localhost:8080"),
			Bucket:        getEnv("STORAGE_BUCKET", "bookletku"),
		},
		Store: StoreConfig{
			ID:   getEnv("STORE_ID", DEFAULT_STORE_ID),
			Name: getEnv("STORE_NAME", "BookletKu"),
		},
		Gateway: GatewayConfig{
			ReorderSettle:  getEnvDuration("GATEWAY_REORDER_SETTLE", 0),
			RequestTimeout: getEnvDuration("GATEWAY_REQUEST_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			Rate: getEnv("RATE_LIMIT", "60-M"),
		},
		AMQP: AMQPConfig{
			URL: getEnv("AMQP_URL", ""),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", "admin@bookletku.id"),
			Password: getEnv("ADMIN_PASSWORD", ""),
			Name:     getEnv("ADMIN_NAME", "Admin"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration %q for %s, using %s", value, key, defaultValue)
		return defaultValue
	}
	return d
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
