package websocket

import (
	"net/http"
	"strings"

	"chat-relay/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// maxRoomIDLength 与存储层 Room.ID 的列宽一致
const maxRoomIDLength = 64

// WebSocketHandler 负责处理 WebSocket 升级请求和连接登记
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigins 为空时允许所有来源。
func NewWebSocketHandler(h *hub.Hub, allowedOrigins []string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return &WebSocketHandler{
		upgrader: upgrader,
		hub:      h,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimSpace(o)] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// 非浏览器客户端不带 Origin
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleConnection 处理 WebSocket 连接请求
// URL 预期格式: /rooms/{roomId}。房间 ID 只在连接建立时解析一次。
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	roomID := strings.TrimSpace(c.Param("roomId"))
	logCtx := logrus.WithField("room_id", roomID)

	if roomID == "" || len(roomID) > maxRoomIDLength {
		logCtx.Warn("WS Handler: Invalid room ID")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 会自动写回 HTTP 错误响应
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, roomID)
	h.hub.Register(client)
	logCtx.WithField("conn_id", client.ID()).Info("WS Handler: Connection upgraded and registered")

	client.Run()
}
