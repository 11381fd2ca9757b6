package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"chat-relay/internal/infra/setup"
)

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	DB              setup.DBOptions
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	KeyPrefix       string // Redis Key 前缀
	ServerPort      string
	LogLevel        string
	AppEnv          string // development/production
	RateLimitMax    int
	RateLimitWindow time.Duration
	CORSOrigin      string
	WSOrigins       []string // 为空时允许所有来源
	UseBroker       bool     // 是否通过 Redis 在多个实例之间转发中继消息
	SeedRooms       bool     // 空库时写入初始房间
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)
	_ = godotenv.Load()

	cfg := &Config{
		DB: setup.DBOptions{
			Driver:     envOr("DB_DRIVER", "mysql"),
			User:       os.Getenv("DB_USER"),
			Password:   os.Getenv("DB_PASSWORD"),
			Host:       envOr("DB_HOST", "127.0.0.1"),
			Port:       envOr("DB_PORT", "3306"),
			Name:       os.Getenv("DB_NAME"),
			SQLitePath: envOr("SQLITE_PATH", "chat-relay.db"),
		},
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:       envOr("REDIS_KEY_PREFIX", "relay:"),
		ServerPort:      envOr("SERVER_PORT", "8080"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		AppEnv:          envOr("APP_ENV", "development"),
		RateLimitMax:    100,
		RateLimitWindow: 1 * time.Second,
		CORSOrigin:      envOr("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
		UseBroker:       true,
		SeedRooms:       true,
	}

	cfg.RedisDB, _ = strconv.Atoi(os.Getenv("REDIS_DB")) // 忽略错误，默认为 0

	if v := os.Getenv("RATE_LIMIT_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_MAX %q", v)
		}
		cfg.RateLimitMax = n
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW %q", v)
		}
		cfg.RateLimitWindow = d
	}
	if v := os.Getenv("RELAY_BROKER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RELAY_BROKER %q", v)
		}
		cfg.UseBroker = b
	}
	if v := os.Getenv("SEED_ROOMS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SEED_ROOMS %q", v)
		}
		cfg.SeedRooms = b
	}
	cfg.WSOrigins = splitList(os.Getenv("WS_ALLOWED_ORIGINS"))

	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	switch cfg.DB.Driver {
	case "mysql":
		if cfg.DB.User == "" || cfg.DB.Name == "" {
			return nil, fmt.Errorf("DB_USER and DB_NAME must be set for the mysql driver")
		}
	case "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
