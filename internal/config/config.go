// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DBPath string

	// Audio
	AudioDir string

	// API
	APIKey     string
	ServerPort string

	// Feed
	FeedURL      string
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Download
	DownloadTimeout time.Duration
	DownloadMaxSize int64

	// Sync
	SyncInterval time.Duration

	// Rate Limit
	RateLimitGeneral int
}

// defaultFeedURL は説教ポッドキャストフィードのデフォルトURL。
const defaultFeedURL = "https://tcfky.com/sermons/feed/"

// Load は環境変数からConfigを読み込む。
// API_KEYが未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.APIKey = os.Getenv("API_KEY")
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("required environment variable is not set: API_KEY")
	}

	// Optional fields with defaults
	cfg.DBPath = getEnvString("DB_PATH", "/data/SermonProcessor.db")
	cfg.AudioDir = getEnvString("AUDIO_DIR", "/data/audiofiles")
	cfg.ServerPort = getEnvString("SERVER_PORT", "5060")
	cfg.FeedURL = getEnvString("FEED_URL", defaultFeedURL)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.DownloadTimeout = getEnvDuration("DOWNLOAD_TIMEOUT", 5*time.Minute)
	cfg.DownloadMaxSize = getEnvInt64("DOWNLOAD_MAX_SIZE", 536870912)
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", 20*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)

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

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
