package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"chat-relay/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ConnectionStatus 是与中继之间的连接状态
type ConnectionStatus int

const (
	Disconnected ConnectionStatus = iota
	Connected
)

func (s ConnectionStatus) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
)

// MessageHandler 接收中继推送的消息，通常是 Engine.ReceiveRemote
type MessageHandler func(roomID string, msg domain.Message)

// ConnectionManager 管理到中继 /rooms/{roomId} 的 WebSocket 连接。
// 同一时间最多保持一个房间的长连接。
type ConnectionManager struct {
	relayURL string
	dialer   *websocket.Dialer
	handler  MessageHandler
	log      *logrus.Entry

	// lifecycleMu 串行化 Connect/Disconnect，拨号期间一直持有
	lifecycleMu sync.Mutex

	mu      sync.Mutex
	conn    *websocket.Conn
	roomID  string
	status  ConnectionStatus
	writeMu sync.Mutex
}

// NewConnectionManager 创建管理器，relayURL 形如 ws://host:8080
func NewConnectionManager(relayURL string, handler MessageHandler) *ConnectionManager {
	return &ConnectionManager{
		relayURL: strings.TrimRight(relayURL, "/"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: dialTimeout,
		},
		handler: handler,
		log:     logrus.WithField("component", "connection_manager"),
	}
}

// SetHandler 替换消息处理函数，对之后收到的消息生效
func (m *ConnectionManager) SetHandler(h MessageHandler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

func (m *ConnectionManager) Status() ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// RoomID 返回当前长连接所属的房间
func (m *ConnectionManager) RoomID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomID
}

func (m *ConnectionManager) roomURL(roomID string) string {
	return m.relayURL + "/rooms/" + url.PathEscape(roomID)
}

// Connect 连接到指定房间。已有连接会先被关闭，重复调用会重新建立连接。
func (m *ConnectionManager) Connect(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: room id is empty", ErrInvalidInput)
	}
	logCtx := m.log.WithField("room_id", roomID)

	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	old := m.conn
	m.conn, m.roomID, m.status = nil, "", Disconnected
	m.mu.Unlock()
	if old != nil {
		m.closeConn(old)
	}

	conn, _, err := m.dialer.DialContext(ctx, m.roomURL(roomID), nil)
	if err != nil {
		logCtx.WithError(err).Warn("Relay connect failed")
		return fmt.Errorf("%w: dial relay: %v", ErrTransport, err)
	}

	m.mu.Lock()
	m.conn, m.roomID, m.status = conn, roomID, Connected
	m.mu.Unlock()

	go m.readLoop(conn, roomID)
	logCtx.Info("Connected to relay")
	return nil
}

// Disconnect 关闭当前连接，没有连接时什么也不做
func (m *ConnectionManager) Disconnect() error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	conn, roomID := m.conn, m.roomID
	m.conn, m.roomID, m.status = nil, "", Disconnected
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	m.closeConn(conn)
	m.log.WithField("room_id", roomID).Info("Disconnected from relay")
	return nil
}

func (m *ConnectionManager) closeConn(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}

func (m *ConnectionManager) readLoop(conn *websocket.Conn, roomID string) {
	logCtx := m.log.WithField("room_id", roomID)
	defer func() {
		m.mu.Lock()
		if m.conn == conn {
			m.conn, m.roomID, m.status = nil, "", Disconnected
		}
		m.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logCtx.WithError(err).Warn("Relay read error")
			}
			return
		}
		var msg domain.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logCtx.WithError(err).Warn("Ignoring malformed relay payload")
			continue
		}
		m.mu.Lock()
		h := m.handler
		m.mu.Unlock()
		if h != nil {
			h(roomID, msg)
		}
	}
}

// Send 把消息发到中继，不检查连接状态：
// 当前长连接属于该房间时直接写入，否则临时建立一条连接。
func (m *ConnectionManager) Send(ctx context.Context, roomID string, msg domain.Message) error {
	if roomID == "" {
		return fmt.Errorf("%w: room id is empty", ErrInvalidInput)
	}
	if msg.RoomID == "" {
		msg.RoomID = roomID
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: encode message: %v", ErrInvalidInput, err)
	}

	m.mu.Lock()
	conn := m.conn
	if m.roomID != roomID {
		conn = nil
	}
	m.mu.Unlock()

	if conn != nil {
		if err := m.write(ctx, conn, payload); err != nil {
			return fmt.Errorf("%w: write to relay: %v", ErrTransport, err)
		}
		return nil
	}

	transient, _, err := m.dialer.DialContext(ctx, m.roomURL(roomID), nil)
	if err != nil {
		return fmt.Errorf("%w: dial relay: %v", ErrTransport, err)
	}
	defer m.closeConn(transient)
	if err := transient.SetWriteDeadline(deadline(ctx)); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if err := transient.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: write to relay: %v", ErrTransport, err)
	}
	return nil
}

func (m *ConnectionManager) write(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.SetWriteDeadline(deadline(ctx)); err != nil {
		return err
	}
	err := conn.WriteMessage(websocket.TextMessage, payload)
	if errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("connection closing: %w", err)
	}
	return err
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(writeTimeout)
}
