package lib

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"

	DeletePolicyOrphan  = "orphan"
	DeletePolicyCascade = "cascade"
)

type Config struct {
	Port           string
	Env            string // "local" or "prod"
	StoreDriver    string
	MongoURI       string
	MongoDatabase  string
	DBPath         string
	JWTSecret      string
	RedisAddr      string
	RedisPassword  string
	FeedCacheTTL   time.Duration
	NatsURL        string
	OtelEndpoint   string
	DeletePolicy   string
	ReapInterval   time.Duration
	UploadDir      string
	PublicBaseURL  string
	AllowOrigins   string
	MaxUploadBytes int64
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Could not read .env file", "error", err)
	}

	cfg := Config{
		Port:          getEnv("PORT", "3000"),
		Env:           getEnv("APP_ENV", "local"),
		StoreDriver:   getEnv("STORE_DRIVER", StoreMongo),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "socialfeed"),
		DBPath:        getEnv("DB_PATH", "./socialfeed.db"),
		JWTSecret:     getEnv("JWT_SECRET", "fallback-secret-key"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		NatsURL:       getEnv("NATS_URL", ""),
		OtelEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		DeletePolicy:  getEnv("DELETE_POLICY", DeletePolicyOrphan),
		UploadDir:     getEnv("UPLOAD_DIR", "./public/images"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		AllowOrigins:  getEnv("ALLOW_ORIGINS", "http://localhost:5173"),
	}

	var err error
	if cfg.FeedCacheTTL, err = getDuration("FEED_CACHE_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ReapInterval, err = getDuration("REAP_INTERVAL", 10*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.MaxUploadBytes, err = getInt("MAX_UPLOAD_BYTES", 5<<20); err != nil {
		return Config{}, err
	}

	switch cfg.StoreDriver {
	case StoreMongo, StoreSQLite, StoreMemory:
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER must be mongo, sqlite or memory, got %q", cfg.StoreDriver)
	}
	switch cfg.DeletePolicy {
	case DeletePolicyOrphan, DeletePolicyCascade:
	default:
		return Config{}, fmt.Errorf("DELETE_POLICY must be orphan or cascade, got %q", cfg.DeletePolicy)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int64) (int64, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
