package redisstate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"chat-relay/internal/repository"
)

// RedisStateRepository 实现 RelayBroker 和 RateLimiter，
// 让多个中继实例通过 Redis Pub/Sub 共享房间消息。
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string

	mu      sync.Mutex
	pubsubs []*redis.PubSub
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "relay:"
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---

func (r *RedisStateRepository) roomChannel(roomID string) string {
	return fmt.Sprintf("%sroom:%s:relay", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomChannelPattern() string {
	return r.keyPrefix + "room:*:relay"
}

// roomIDFromChannel 从频道名中解析房间 ID
func (r *RedisStateRepository) roomIDFromChannel(channel string) (string, bool) {
	rest := strings.TrimPrefix(channel, r.keyPrefix+"room:")
	if rest == channel || !strings.HasSuffix(rest, ":relay") {
		return "", false
	}
	roomID := strings.TrimSuffix(rest, ":relay")
	return roomID, roomID != ""
}

// --- RelayBroker ---

// PublishRoomMessage 将原始消息发布到房间频道
func (r *RedisStateRepository) PublishRoomMessage(ctx context.Context, roomID string, payload []byte) error {
	channel := r.roomChannel(roomID)
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"room_id":      roomID,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish to channel %s: %w", channel, err)
	}
	return nil
}

// SubscribeRoomMessages 以模式订阅所有房间频道
func (r *RedisStateRepository) SubscribeRoomMessages(ctx context.Context) (<-chan repository.RoomPayload, error) {
	pubsub := r.client.PSubscribe(ctx, r.roomChannelPattern())
	// 等待订阅确认，确保返回时已开始接收
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: failed to subscribe to %s: %w", r.roomChannelPattern(), err)
	}

	r.mu.Lock()
	r.pubsubs = append(r.pubsubs, pubsub)
	r.mu.Unlock()

	out := make(chan repository.RoomPayload, 256)
	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				roomID, ok := r.roomIDFromChannel(msg.Channel)
				if !ok {
					logrus.WithField("channel", msg.Channel).Warn("redis: message on unexpected channel, ignored")
					continue
				}
				select {
				case out <- repository.RoomPayload{RoomID: roomID, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					_ = pubsub.Close()
					return
				}
			}
		}
	}()
	return out, nil
}

// Close 关闭所有活动订阅
func (r *RedisStateRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, ps := range r.pubsubs {
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.pubsubs = nil
	return firstErr
}

// --- RateLimiter ---

// rateLimitSrc 递增计数，只在窗口内第一次请求时设置过期时间，窗口不会被后续请求续期
const rateLimitSrc = `
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return count
`

var rateLimitScript = redis.NewScript(rateLimitSrc)

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数（固定窗口）。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := r.keyPrefix + "ratelimit:" + key
	count, err := rateLimitScript.Run(ctx, r.client, []string{fullKey}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit check failed on key %s: %w", fullKey, err)
	}
	return count > int64(limit), nil
}
