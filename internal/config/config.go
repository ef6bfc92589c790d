// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 実行環境の識別子。
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// defaultCORSOrigins はCORS_ALLOWED_ORIGINS未設定時に許可するオリジン。
var defaultCORSOrigins = []string{
	"http://localhost:5173",
	"https://more-blogs-atiq.web.app",
	"https://more-blogs-atiq.firebaseapp.com",
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	AccessSecret string

	// Environment は production または development。
	// Cookieの Secure / SameSite 属性の切り替えに使用する。
	Environment string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigins []string

	// Rate Limit（req/min/client）
	RateLimitGeneral int
	RateLimitToken   int

	// Worker
	RecountInterval time.Duration

	// RSS
	SiteURL   string
	SiteTitle string

	// Logging
	LogLevel slog.Level

	MetricsEnabled bool
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに .env があれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.AccessSecret = os.Getenv("ACCESS_SECRET")
	if cfg.AccessSecret == "" {
		missing = append(missing, "ACCESS_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.Environment = parseEnvironment(getEnvString("APP_ENV", getEnvString("NODE_ENV", EnvDevelopment)))

	cfg.ServerPort = getEnvString("PORT", "8080")
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", defaultCORSOrigins)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitToken = getEnvInt("RATE_LIMIT_TOKEN", 10)
	cfg.RecountInterval = getEnvDuration("RECOUNT_INTERVAL", time.Hour)
	cfg.SiteURL = strings.TrimRight(getEnvString("SITE_URL", "https://more-blogs-atiq.web.app"), "/")
	cfg.SiteTitle = getEnvString("SITE_TITLE", "MoreBlogs")
	cfg.LogLevel = getEnvLevel("LOG_LEVEL", slog.LevelInfo)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)

	return cfg, nil
}

// IsProduction は本番環境で動作しているかを返す。
// 本番ではフロントエンドとバックエンドが別オリジンに配置される。
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// parseEnvironment はproduction以外の値をすべてdevelopmentとして扱う。
// test / staging など想定外の値は起動を止めずに警告だけ出す。
func parseEnvironment(env string) string {
	switch env {
	case EnvProduction, EnvDevelopment:
		return env
	default:
		slog.Warn("unknown environment, falling back to development",
			slog.String("environment", env),
		)
		return EnvDevelopment
	}
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
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
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

func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func getEnvLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return l
}
