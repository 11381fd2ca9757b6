package http

import (
	"net/http"

	"chat-relay/internal/domain"
	"chat-relay/internal/metrics"
	"chat-relay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RoomHandler 封装了聊天存储 API 的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// RegisterRoutes 把存储 API 挂到给定的路由组上（通常是 /chats）
func (h *RoomHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListRooms)
	rg.POST("", h.CreateRoom)
	rg.PUT("/update", h.RenameRoom)
	rg.DELETE("/delete", h.DeleteRoom)
	rg.POST("/messages", h.AppendMessage)
}

// ListRoomsResponse 是 GET /chats 的响应体
type ListRoomsResponse struct {
	Rooms []domain.Room `json:"rooms"`
}

// CreateRoomRequest 是 POST /chats 的请求体
type CreateRoomRequest struct {
	Name      string `json:"name" binding:"required"`
	CreatedBy string `json:"createdBy" binding:"required"`
}

// RoomRef 兼容 roomId 和 chatId 两种字段名，roomId 优先
type RoomRef struct {
	RoomID string `json:"roomId"`
	ChatID string `json:"chatId"`
}

func (r RoomRef) Resolve() string {
	if r.RoomID != "" {
		return r.RoomID
	}
	return r.ChatID
}

// RenameRoomRequest 是 PUT /chats/update 的请求体
type RenameRoomRequest struct {
	RoomRef
	Name string `json:"name" binding:"required"`
}

// DeleteRoomResponse 是 DELETE /chats/delete 的响应体
type DeleteRoomResponse struct {
	Status string `json:"status"`
	RoomID string `json:"roomId"`
}

// AppendMessageRequest 是 POST /chats/messages 的请求体
type AppendMessageRequest struct {
	RoomRef
	ID        string `json:"id"`
	Text      string `json:"text" binding:"required"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
}

// ListRooms 返回全部房间
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListRooms(c.Request.Context())
	h.observe("list", err)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, ListRoomsResponse{Rooms: rooms})
}

// CreateRoom 处理创建房间的请求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreateRoom: invalid request body")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), req.Name, req.CreatedBy)
	h.observe("create", err)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, room)
}

// RenameRoom 处理修改房间名称的请求
func (h *RoomHandler) RenameRoom(c *gin.Context) {
	var req RenameRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Resolve() == "" {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: roomId and name are required")
		return
	}

	room, err := h.roomService.RenameRoom(c.Request.Context(), req.Resolve(), req.Name)
	h.observe("rename", err)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// DeleteRoom 处理删除房间的请求
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	var req RoomRef
	if err := c.ShouldBindJSON(&req); err != nil || req.Resolve() == "" {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: roomId is required")
		return
	}

	err := h.roomService.DeleteRoom(c.Request.Context(), req.Resolve())
	h.observe("delete", err)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, DeleteRoomResponse{Status: "deleted", RoomID: req.Resolve()})
}

// AppendMessage 处理追加消息的请求，响应中的 id 是服务端分配的
func (h *RoomHandler) AppendMessage(c *gin.Context) {
	var req AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Resolve() == "" {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: roomId and text are required")
		return
	}

	msg, err := h.roomService.AppendMessage(c.Request.Context(), req.Resolve(), domain.Message{
		ID:        req.ID,
		Text:      req.Text,
		Sender:    req.Sender,
		Timestamp: req.Timestamp,
	})
	h.observe("append", err)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, msg)
}

func (h *RoomHandler) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.StoreOperations.WithLabelValues(op, result).Inc()
}
