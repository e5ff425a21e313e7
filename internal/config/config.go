// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // HTTPサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// データベース設定
	MongoURI      string // MongoDB 接続文字列
	MongoDatabase string // 使用するデータベース名

	// セッション設定
	SessionEncryptionSecret string // セッション値の暗号化に使う秘密鍵
	SessionSecret           string // セッションクッキー署名用の秘密鍵
	SessionTTLMinutes       int    // セッションの有効期限（分）
	RedisURL                string // セッションストア用Redis接続URL（空ならプロセス内に保持）

	// ジョブ/キュー設定
	QueueRedisURL string // Asynq用Redis接続URL（空ならセッション失効を同期実行）

	// パスワードハッシュ設定
	BcryptCost int

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り、空なら無効）

	// ログ設定
	LogLevel  string // debug, info, warn, error
	LogFormat string // text, json
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		Port:    getEnv("PORT", "3000"),
		GinMode: getEnv("GIN_MODE", "debug"),

		MongoURI:      getEnv("MONGODB_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "members"),

		SessionEncryptionSecret: getEnv("MONGODB_SESSION_SECRET", ""),
		SessionSecret:           getEnv("NODE_SESSION_SECRET", ""),
		SessionTTLMinutes:       getEnvAsInt("SESSION_TTL_MINUTES", 60),
		RedisURL:                getEnv("REDIS_URL", ""),

		QueueRedisURL: getEnv("QUEUE_REDIS_URL", ""),

		BcryptCost: getEnvAsInt("BCRYPT_COST", 12),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.SessionTTLMinutes <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive, got %d", c.SessionTTLMinutes)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}

	// ローカル開発では秘密鍵は任意（起動時にランダム生成する）
	if c.GinMode == "release" {
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required in release mode")
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("MONGODB_DATABASE is required in release mode")
		}
		if c.SessionEncryptionSecret == "" {
			return fmt.Errorf("MONGODB_SESSION_SECRET is required in release mode")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("NODE_SESSION_SECRET is required in release mode")
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required in release mode")
		}
	}

	return nil
}

// SessionTTL はセッションの有効期限を返します。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// AllowedOrigins は CORS 許可オリジンを配列で返します。
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
