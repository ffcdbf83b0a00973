package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultCategories is the closed set of product categories offered by the storefront.
var DefaultCategories = []string{
	"Electronics",
	"Cameras",
	"Laptops",
	"Accessories",
	"Headphones",
	"Food",
	"Books",
	"Clothes/Shoes",
	"Beauty/Health",
	"Sports",
	"Outdoor",
	"Home",
}

// Config holds everything the server needs at startup.
type Config struct {
	Port           string
	MongoURI       string
	DBName         string
	JWTSecret      string
	LogLevel       string
	RequestTimeout time.Duration

	PageSize    int
	TopLimit    int
	RecentLimit int
	Categories  []string

	RedisAddr string
	CacheTTL  time.Duration

	KafkaBrokers []string
	KafkaTopic   string
}

// LoadEnv reads a .env file into the process environment when one exists.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}
}

// GetEnv returns the value of key or fallback when it is unset or empty.
func GetEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		slog.Warn("ignoring invalid integer setting", "key", key, "value", raw)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("ignoring invalid duration setting", "key", key, "value", raw)
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Load builds a Config from the environment, applying storefront defaults.
func Load() Config {
	return Config{
		Port:           GetEnv("PORT", "8080"),
		MongoURI:       os.Getenv("MONGO_URI"),
		DBName:         os.Getenv("DB_NAME"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		LogLevel:       GetEnv("LOG_LEVEL", "info"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 10*time.Second),

		PageSize:    getInt("PAGE_SIZE", 8),
		TopLimit:    getInt("TOP_PRODUCTS_LIMIT", 5),
		RecentLimit: getInt("RECENT_ORDERS_LIMIT", 10),
		Categories:  getList("PRODUCT_CATEGORIES", DefaultCategories),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		CacheTTL:  getDuration("CACHE_TTL", 5*time.Minute),

		KafkaBrokers: getList("KAFKA_BROKERS", nil),
		KafkaTopic:   GetEnv("KAFKA_TOPIC", "storefront.orders"),
	}
}

// SlogLevel maps the configured level name onto slog.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
