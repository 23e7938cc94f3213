package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_PATH", "/tmp/mastosync-test.db")
}

func TestLoad_AllRequiredVarsSet_ReturnsConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.DatabasePath != "/tmp/mastosync-test.db" {
		t.Errorf("DatabasePath = %q, want %q", cfg.DatabasePath, "/tmp/mastosync-test.db")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Server defaults
	if cfg.ServerAddr != "127.0.0.1:8765" {
		t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr, "127.0.0.1:8765")
	}
	if cfg.CORSAllowedOrigin != "http://localhost:3000" {
		t.Errorf("CORSAllowedOrigin = %q, want %q", cfg.CORSAllowedOrigin, "http://localhost:3000")
	}

	// API defaults
	if cfg.APITimeout != 15*time.Second {
		t.Errorf("APITimeout = %v, want %v", cfg.APITimeout, 15*time.Second)
	}
	if cfg.APIMaxBodySize != 5242880 {
		t.Errorf("APIMaxBodySize = %d, want %d", cfg.APIMaxBodySize, 5242880)
	}
	if cfg.APIRatePerSec != 1.0 {
		t.Errorf("APIRatePerSec = %v, want %v", cfg.APIRatePerSec, 1.0)
	}
	if cfg.APIBurst != 30 {
		t.Errorf("APIBurst = %d, want %d", cfg.APIBurst, 30)
	}
	if cfg.PageSize != 40 {
		t.Errorf("PageSize = %d, want %d", cfg.PageSize, 40)
	}

	// Worker defaults
	if cfg.SyncInterval != 5*time.Minute {
		t.Errorf("SyncInterval = %v, want %v", cfg.SyncInterval, 5*time.Minute)
	}
	if cfg.SyncMaxConcurrent != 4 {
		t.Errorf("SyncMaxConcurrent = %d, want %d", cfg.SyncMaxConcurrent, 4)
	}
	if cfg.CleanupInterval != 24*time.Hour {
		t.Errorf("CleanupInterval = %v, want %v", cfg.CleanupInterval, 24*time.Hour)
	}
	if cfg.CleanupKeepEntries != 1000 {
		t.Errorf("CleanupKeepEntries = %d, want %d", cfg.CleanupKeepEntries, 1000)
	}
	if cfg.NotificationRetentionDays != 30 {
		t.Errorf("NotificationRetentionDays = %d, want %d", cfg.NotificationRetentionDays, 30)
	}

	// View defaults
	if cfg.AlwaysShowSensitiveMedia || cfg.AlwaysOpenSpoiler {
		t.Error("表示設定はデフォルトで無効")
	}
	if cfg.ExcludedNotificationTypes != nil {
		t.Errorf("ExcludedNotificationTypes = %v, want nil", cfg.ExcludedNotificationTypes)
	}
	if !cfg.FeedPreviewBlockPrivate {
		t.Error("FeedPreviewBlockPrivate はデフォルトで有効")
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.CPUWorkers <= 0 {
		t.Errorf("CPUWorkers = %d, want > 0", cfg.CPUWorkers)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnvVars(t)

	t.Setenv("SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("API_TIMEOUT", "30s")
	t.Setenv("API_RATE_PER_SEC", "0.5")
	t.Setenv("API_BURST", "10")
	t.Setenv("PAGE_SIZE", "20")
	t.Setenv("SYNC_INTERVAL", "10m")
	t.Setenv("SYNC_MAX_CONCURRENT", "2")
	t.Setenv("ALWAYS_SHOW_SENSITIVE_MEDIA", "true")
	t.Setenv("ALWAYS_OPEN_SPOILER", "1")
	t.Setenv("EXCLUDED_NOTIFICATION_TYPES", "follow, reblog,,favourite")
	t.Setenv("FEED_PREVIEW_BLOCK_PRIVATE", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CPU_WORKERS", "3")

	cfg, err := load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.ServerAddr != "127.0.0.1:9000" {
		t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr, "127.0.0.1:9000")
	}
	if cfg.APITimeout != 30*time.Second {
		t.Errorf("APITimeout = %v, want %v", cfg.APITimeout, 30*time.Second)
	}
	if cfg.APIRatePerSec != 0.5 {
		t.Errorf("APIRatePerSec = %v, want %v", cfg.APIRatePerSec, 0.5)
	}
	if cfg.APIBurst != 10 {
		t.Errorf("APIBurst = %d, want %d", cfg.APIBurst, 10)
	}
	if cfg.PageSize != 20 {
		t.Errorf("PageSize = %d, want %d", cfg.PageSize, 20)
	}
	if cfg.SyncInterval != 10*time.Minute {
		t.Errorf("SyncInterval = %v, want %v", cfg.SyncInterval, 10*time.Minute)
	}
	if cfg.SyncMaxConcurrent != 2 {
		t.Errorf("SyncMaxConcurrent = %d, want %d", cfg.SyncMaxConcurrent, 2)
	}
	if !cfg.AlwaysShowSensitiveMedia || !cfg.AlwaysOpenSpoiler {
		t.Error("表示設定が反映されていない")
	}
	if want := []string{"follow", "reblog", "favourite"}; !reflect.DeepEqual(cfg.ExcludedNotificationTypes, want) {
		t.Errorf("ExcludedNotificationTypes = %v, want %v", cfg.ExcludedNotificationTypes, want)
	}
	if cfg.FeedPreviewBlockPrivate {
		t.Error("FeedPreviewBlockPrivate = true, want false")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.CPUWorkers != 3 {
		t.Errorf("CPUWorkers = %d, want %d", cfg.CPUWorkers, 3)
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("API_TIMEOUT", "soon")
	t.Setenv("API_BURST", "many")
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("ALWAYS_OPEN_SPOILER", "maybe")
	t.Setenv("SYNC_INTERVAL", "0s")

	cfg, err := load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APITimeout != 15*time.Second {
		t.Errorf("APITimeout = %v, want default", cfg.APITimeout)
	}
	if cfg.APIBurst != 30 {
		t.Errorf("APIBurst = %d, want default", cfg.APIBurst)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want default", cfg.LogLevel)
	}
	if cfg.AlwaysOpenSpoiler {
		t.Error("解釈できない値はデフォルトに戻す")
	}
	if cfg.SyncInterval != 5*time.Minute {
		t.Errorf("SyncInterval = %v, want default for non-positive duration", cfg.SyncInterval)
	}
}

func TestLoad_MissingDatabasePath_ReturnsError(t *testing.T) {
	t.Setenv("DATABASE_PATH", "")

	_, err := load()
	if err == nil {
		t.Fatal("expected error for missing DATABASE_PATH, got nil")
	}
}

func TestLoad_NonPositivePageSize_ReturnsError(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("PAGE_SIZE", "0")

	if _, err := load(); err == nil {
		t.Fatal("expected error for PAGE_SIZE=0, got nil")
	}
}

// TestLoad_ReadsDotEnv はカレントディレクトリの .env から読み込み、既存の環境変数を優先することを検証する。
func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	content := "DATABASE_PATH=/from/dotenv.db\nPAGE_SIZE=25\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("DATABASE_PATH", "unused")
	os.Unsetenv("DATABASE_PATH")
	t.Setenv("PAGE_SIZE", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.DatabasePath != "/from/dotenv.db" {
		t.Errorf("DatabasePath = %q, want %q", cfg.DatabasePath, "/from/dotenv.db")
	}
	if cfg.PageSize != 30 {
		t.Errorf("PageSize = %d, want 30 (環境変数が優先)", cfg.PageSize)
	}
}
