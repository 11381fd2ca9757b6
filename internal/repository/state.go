package repository

import (
	"context"
	"time"
)

// RoomPayload 是经由中继代理收到的一条房间消息（原始字节）。
type RoomPayload struct {
	RoomID  string
	Payload []byte
}

// RelayBroker 在多个中继实例之间分发房间消息，通常由 Redis Pub/Sub 实现。
type RelayBroker interface {
	// PublishRoomMessage 将原始消息发布到房间频道。
	PublishRoomMessage(ctx context.Context, roomID string, payload []byte) error

	// SubscribeRoomMessages 订阅所有房间频道。返回的 channel 在 ctx 结束或订阅关闭后关闭。
	SubscribeRoomMessages(ctx context.Context) (<-chan RoomPayload, error)

	// Close 停止所有订阅。
	Close() error
}

// RateLimiter 定义了固定窗口限流计数器。
type RateLimiter interface {
	// CheckRateLimit 递增 key 的计数并返回是否超限。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
