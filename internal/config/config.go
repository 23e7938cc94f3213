package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabasePath string

	// Server
	ServerAddr        string
	CORSAllowedOrigin string

	// Mastodon API
	APITimeout     time.Duration
	APIMaxBodySize int64
	APIRatePerSec  float64
	APIBurst       int
	PageSize       int

	// Sync worker
	SyncInterval      time.Duration
	SyncMaxConcurrent int

	// Cleanup
	CleanupInterval           time.Duration
	CleanupKeepEntries        int
	NotificationRetentionDays int

	// View defaults
	AlwaysShowSensitiveMedia  bool
	AlwaysOpenSpoiler         bool
	ExcludedNotificationTypes []string

	// Feed preview
	FeedPreviewBlockPrivate bool

	// Runtime
	LogLevel   slog.Level
	CPUWorkers int
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに .env がある場合は先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return load()
}

// load は環境変数のみからConfigを組み立てる。
func load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabasePath = os.Getenv("DATABASE_PATH")
	if cfg.DatabasePath == "" {
		missing = append(missing, "DATABASE_PATH")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerAddr = getEnvString("SERVER_ADDR", "127.0.0.1:8765")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.APITimeout = getEnvDuration("API_TIMEOUT", 15*time.Second)
	cfg.APIMaxBodySize = getEnvInt64("API_MAX_BODY_SIZE", 5242880)
	cfg.APIRatePerSec = getEnvFloat("API_RATE_PER_SEC", 1.0)
	cfg.APIBurst = getEnvInt("API_BURST", 30)
	cfg.PageSize = getEnvInt("PAGE_SIZE", 40)
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", 5*time.Minute)
	cfg.SyncMaxConcurrent = getEnvInt("SYNC_MAX_CONCURRENT", 4)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.CleanupKeepEntries = getEnvInt("CLEANUP_KEEP_ENTRIES", 1000)
	cfg.NotificationRetentionDays = getEnvInt("NOTIFICATION_RETENTION_DAYS", 30)
	cfg.AlwaysShowSensitiveMedia = getEnvBool("ALWAYS_SHOW_SENSITIVE_MEDIA", false)
	cfg.AlwaysOpenSpoiler = getEnvBool("ALWAYS_OPEN_SPOILER", false)
	cfg.ExcludedNotificationTypes = getEnvList("EXCLUDED_NOTIFICATION_TYPES")
	cfg.FeedPreviewBlockPrivate = getEnvBool("FEED_PREVIEW_BLOCK_PRIVATE", true)
	cfg.LogLevel = getEnvLevel("LOG_LEVEL", slog.LevelInfo)
	cfg.CPUWorkers = getEnvInt("CPU_WORKERS", runtime.NumCPU())

	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("PAGE_SIZE must be positive: %d", cfg.PageSize)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvList はカンマ区切りの値を空要素を除いて返す。
func getEnvList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnvLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
