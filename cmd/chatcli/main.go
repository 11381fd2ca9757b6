// chatcli 是一个终端聊天客户端：加载房间、选择房间、连接中继、发送消息。
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"chat-relay/internal/chatclient"
)

type config struct {
	StoreURL     string
	RelayURL     string
	UserID       string
	StoreTimeout time.Duration
	LogLevel     string
}

func loadConfig() (config, error) {
	_ = godotenv.Load()

	cfg := config{
		StoreURL:     envOr("CHAT_STORE_URL", "http://localhost:8080/chats"),
		RelayURL:     envOr("CHAT_RELAY_URL", "ws://localhost:8080"),
		UserID:       envOr("CHAT_USER", "admin"),
		StoreTimeout: 10 * time.Second,
		LogLevel:     envOr("LOG_LEVEL", "warn"),
	}
	if v := os.Getenv("CHAT_STORE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid CHAT_STORE_TIMEOUT %q: %w", v, err)
		}
		cfg.StoreTimeout = d
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.WarnLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn := chatclient.NewConnectionManager(cfg.RelayURL, nil)
	engine := chatclient.NewEngine(
		chatclient.NewStoreClient(cfg.StoreURL, chatclient.WithTimeout(cfg.StoreTimeout)),
		chatclient.WithRelay(conn),
	)

	sh := newShell(engine, conn, chatclient.Session{UserID: cfg.UserID}, os.Stdout)
	conn.SetHandler(sh.onRemote)
	defer func() { _ = conn.Disconnect() }()

	sh.handle(ctx, "/rooms")
	sh.printHelp()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		sh.prompt()
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || sh.handle(ctx, line) {
				return
			}
		}
	}
}
