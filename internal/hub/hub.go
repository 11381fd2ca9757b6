package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"chat-relay/internal/domain"
	"chat-relay/internal/metrics"
	"chat-relay/internal/repository"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// 每个连接发送队列的缓冲大小
	sendBufferSize = 256
)

// ErrMalformedPayload 表示入站消息无法解析为 Message，消息被丢弃但连接保持打开。
var ErrMalformedPayload = errors.New("malformed relay payload")

// Hub 按房间维护活跃连接，并把每条入站消息转发给房间内的所有连接。
//
// 转发策略：消息发给转发时刻登记在该房间的每一个连接，包括发送者自己。
// 客户端按消息 ID 去重（见 chatclient.Engine.ReceiveRemote）。
type Hub struct {
	registry *Registry

	// 可选的跨实例代理 (Redis Pub/Sub)。为 nil 或订阅未建立时直接本地转发。
	broker       repository.RelayBroker
	brokerActive atomic.Bool
}

// NewHub 创建 Hub，broker 可以为 nil
func NewHub(broker repository.RelayBroker) *Hub {
	return &Hub{
		registry: NewRegistry(),
		broker:   broker,
	}
}

// Registry 返回 Hub 使用的房间登记表
func (h *Hub) Registry() *Registry { return h.registry }

// Run 在配置了代理时订阅所有房间频道，把收到的消息转发给本地成员。
// 它阻塞直到 ctx 结束或订阅关闭，应在单独的 goroutine 中运行。
func (h *Hub) Run(ctx context.Context) error {
	log := logrus.WithField("component", "hub")
	if h.broker == nil {
		log.Info("Hub running in local mode (no broker)")
		<-ctx.Done()
		return nil
	}

	payloads, err := h.broker.SubscribeRoomMessages(ctx)
	if err != nil {
		log.WithError(err).Error("Hub failed to subscribe to broker, falling back to local delivery")
		return fmt.Errorf("hub: subscribe: %w", err)
	}
	h.brokerActive.Store(true)
	defer h.brokerActive.Store(false)
	log.Info("Hub is running with broker subscription...")

	for p := range payloads {
		h.Broadcast(p.RoomID, p.Payload)
	}
	log.Info("Hub broker subscription closed")
	return nil
}

// Register 登记连接并更新指标
func (h *Hub) Register(c *Client) {
	if c == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	h.registry.Register(c.RoomID(), c)
	metrics.RelayConnections.Set(float64(h.registry.Count()))
	logrus.WithFields(logrus.Fields{
		"room_id": c.RoomID(),
		"conn_id": c.ID(),
		"action":  "registerClient",
	}).Info("Client registered to Hub")
}

// Unregister 注销连接并关闭其发送通道，重复调用是安全的
func (h *Hub) Unregister(c *Client) {
	if c == nil {
		return
	}
	roomID, ok := h.registry.Unregister(c)
	c.closeSend()
	if !ok {
		return
	}
	metrics.RelayConnections.Set(float64(h.registry.Count()))
	logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"conn_id": c.ID(),
		"action":  "unregisterClient",
	}).Info("Client unregistered from Hub")
}

// HandleInbound 处理来自连接的一条入站消息。
// 无法解析的消息返回 ErrMalformedPayload 并被丢弃；可解析的消息原样转发。
func (h *Hub) HandleInbound(ctx context.Context, from *Client, payload []byte) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":      from.RoomID(),
		"conn_id":      from.ID(),
		"payload_size": len(payload),
	})

	var msg domain.Message
	if err := parsePayload(payload, &msg); err != nil {
		metrics.RelayInboundMessages.WithLabelValues("malformed").Inc()
		logCtx.WithError(err).Warn("Dropping malformed relay payload")
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	metrics.RelayInboundMessages.WithLabelValues("accepted").Inc()

	if h.broker != nil && h.brokerActive.Load() {
		if err := h.broker.PublishRoomMessage(ctx, from.RoomID(), payload); err == nil {
			return nil
		}
		// 代理不可用时至少保证本实例内的成员收到
		logCtx.Warn("Broker publish failed, delivering locally only")
	}
	h.Broadcast(from.RoomID(), payload)
	return nil
}

// Broadcast 把原始消息发给房间内所有连接（含发送者），返回成功入队的连接数。
// 单个连接失败（队列已满或已关闭）只记录日志，不影响其余连接。
func (h *Hub) Broadcast(roomID string, payload []byte) int {
	members := h.registry.MembersOf(roomID)
	if len(members) == 0 {
		return 0
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":         roomID,
		"message_size":    len(payload),
		"recipient_count": len(members),
	})
	logCtx.Debug("Broadcasting message to clients")

	delivered := 0
	for _, c := range members {
		if c.enqueue(payload) {
			delivered++
			metrics.RelayDeliveries.WithLabelValues("queued").Inc()
			continue
		}
		metrics.RelayDeliveries.WithLabelValues("dropped").Inc()
		logCtx.WithField("receiver_conn_id", c.ID()).Warn("Client send channel full or closed during broadcast, skipping this client")
	}
	return delivered
}

// parsePayload 只做基本可解析性检查：必须是 JSON 对象且字段类型匹配
func parsePayload(payload []byte, msg *domain.Message) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("payload is not a JSON object")
	}
	return json.Unmarshal(trimmed, msg)
}

// CloseAll 关闭所有连接的发送通道，写协程随后发送关闭帧并断开连接
func (h *Hub) CloseAll() {
	clients := h.registry.All()
	for _, c := range clients {
		c.closeSend()
	}
	logrus.WithField("clients", len(clients)).Info("Hub closed all client send channels")
}

// StopAllSubscriptions 停止代理订阅
func (h *Hub) StopAllSubscriptions() {
	if h.broker == nil {
		return
	}
	if err := h.broker.Close(); err != nil {
		logrus.WithError(err).Warn("Hub: error closing broker subscriptions")
	}
}
