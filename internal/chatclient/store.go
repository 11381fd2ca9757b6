package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chat-relay/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Outcome 表示一次存储调用是得到了后端确认，还是退化为本地结果
type Outcome int

const (
	Fulfilled Outcome = iota
	Degraded
)

func (o Outcome) String() string {
	if o == Degraded {
		return "degraded"
	}
	return "fulfilled"
}

const defaultStoreTimeout = 10 * time.Second

// StoreClient 是聊天存储 API（/chats）的 HTTP 客户端。
// 后端响应在这里被规整成 domain.Room / domain.Message，之后才交给 Engine。
type StoreClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    *time.Duration
	seed       func() []domain.Room
	newID      func() string
	log        *logrus.Entry
}

// StoreOption 配置 StoreClient
type StoreOption func(*StoreClient)

// WithHTTPClient 替换默认的 http.Client
func WithHTTPClient(c *http.Client) StoreOption {
	return func(s *StoreClient) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithTimeout 设置单次请求超时，<=0 表示不限制
func WithTimeout(d time.Duration) StoreOption {
	return func(s *StoreClient) {
		if d < 0 {
			d = 0
		}
		s.timeout = &d
	}
}

// WithSeedRooms 替换 List 失败时使用的本地种子数据
func WithSeedRooms(seed func() []domain.Room) StoreOption {
	return func(s *StoreClient) {
		if seed != nil {
			s.seed = seed
		}
	}
}

// NewStoreClient 创建客户端，baseURL 形如 http://host:8080/chats
func NewStoreClient(baseURL string, opts ...StoreOption) *StoreClient {
	s := &StoreClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultStoreTimeout},
		seed:       domain.SeedRooms,
		newID:      uuid.NewString,
		log:        logrus.WithField("component", "store_client"),
	}
	for _, opt := range opts {
		opt(s)
	}
	// 超时作用在副本上，不修改调用方传入的 client
	if s.timeout != nil {
		c := *s.httpClient
		c.Timeout = *s.timeout
		s.httpClient = &c
	}
	return s
}

// statusError 记录后端返回的非 2xx 响应
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("backend returned status %d", e.code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.code, e.body)
}

func (e *statusError) Unwrap() error {
	if e.code == http.StatusNotFound {
		return ErrNotFoundOnBackend
	}
	return ErrTransport
}

// do 发送 JSON 请求并把响应解码到 out（out 可为 nil）
func (s *StoreClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrInvalidInput, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}
	return nil
}

type listResponse struct {
	Rooms []domain.Room `json:"rooms"`
	Chats []domain.Room `json:"chats"`
}

// List 返回全部房间；任何失败都退化为种子数据，列表永远不为空
func (s *StoreClient) List(ctx context.Context) ([]domain.Room, Outcome, error) {
	var resp listResponse
	if err := s.do(ctx, http.MethodGet, "", nil, &resp); err != nil {
		s.log.WithError(err).WithField("operation", "list").Warn("Room list failed, using seed rooms")
		return s.seed(), Degraded, nil
	}
	rooms := resp.Rooms
	if rooms == nil {
		rooms = resp.Chats
	}
	return s.normalizeRooms(rooms), Fulfilled, nil
}

type roomRequest struct {
	RoomID    string `json:"roomId,omitempty"`
	ChatID    string `json:"chatId,omitempty"`
	Name      string `json:"name,omitempty"`
	CreatedBy string `json:"createdBy,omitempty"`
}

// Create 创建房间。name 和 createdBy 以请求为准；404 时在本地合成房间
func (s *StoreClient) Create(ctx context.Context, name, createdBy string) (domain.Room, Outcome, error) {
	logCtx := s.log.WithFields(logrus.Fields{"operation": "create", "name": name})

	var room domain.Room
	err := s.do(ctx, http.MethodPost, "", roomRequest{Name: name, CreatedBy: createdBy}, &room)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFoundOnBackend):
		logCtx.WithError(err).Warn("Create not found on backend, room synthesized locally")
		return domain.Room{ID: s.newID(), Name: name, CreatedBy: createdBy, Messages: []domain.Message{}}, Degraded, nil
	default:
		logCtx.WithError(err).Error("Create failed")
		return domain.Room{}, Fulfilled, err
	}

	room.Name = name
	room.CreatedBy = createdBy
	if room.ID == "" || isPlaceholder(room.ID) {
		room.ID = s.newID()
	}
	room.Messages = s.normalizeMessages(room.Messages)
	return room, Fulfilled, nil
}

// Rename 修改房间名称；404 时按本地改名处理
func (s *StoreClient) Rename(ctx context.Context, roomID, name string) (domain.Room, Outcome, error) {
	logCtx := s.log.WithFields(logrus.Fields{"operation": "rename", "room_id": roomID})

	var room domain.Room
	err := s.do(ctx, http.MethodPut, "/update", roomRequest{RoomID: roomID, ChatID: roomID, Name: name}, &room)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFoundOnBackend):
		logCtx.WithError(err).Warn("Rename not found on backend, applied locally")
		return domain.Room{ID: roomID, Name: name}, Degraded, nil
	default:
		logCtx.WithError(err).Error("Rename failed")
		return domain.Room{}, Fulfilled, err
	}

	room.ID = substitute(room.ID, roomID)
	room.Name = substitute(room.Name, name)
	room.CreatedBy = substitute(room.CreatedBy, "")
	room.Messages = s.normalizeMessages(room.Messages)
	return room, Fulfilled, nil
}

// Delete 删除房间；404 视为已经删除
func (s *StoreClient) Delete(ctx context.Context, roomID string) (Outcome, error) {
	logCtx := s.log.WithFields(logrus.Fields{"operation": "delete", "room_id": roomID})

	err := s.do(ctx, http.MethodDelete, "/delete", roomRequest{RoomID: roomID, ChatID: roomID}, nil)
	switch {
	case err == nil:
		return Fulfilled, nil
	case errors.Is(err, ErrNotFoundOnBackend):
		logCtx.WithError(err).Warn("Delete not found on backend, treated as deleted")
		return Degraded, nil
	default:
		logCtx.WithError(err).Error("Delete failed")
		return Fulfilled, err
	}
}

type appendRequest struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
	RoomID    string `json:"roomId"`
	ChatID    string `json:"chatId"`
}

type appendResponse struct {
	ID string `json:"id"`
}

// AppendMessage 追加消息，返回的消息只有 ID 取自后端，其余字段以请求为准。
// 404 时原样返回本地消息。
func (s *StoreClient) AppendMessage(ctx context.Context, roomID string, msg domain.Message) (domain.Message, Outcome, error) {
	logCtx := s.log.WithFields(logrus.Fields{"operation": "append", "room_id": roomID, "message_id": msg.ID})

	var resp appendResponse
	err := s.do(ctx, http.MethodPost, "/messages", appendRequest{
		ID:        msg.ID,
		Text:      msg.Text,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		RoomID:    roomID,
		ChatID:    roomID,
	}, &resp)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFoundOnBackend):
		logCtx.WithError(err).Warn("Append not found on backend, keeping local message")
		return msg, Degraded, nil
	default:
		logCtx.WithError(err).Error("Append failed")
		return domain.Message{}, Fulfilled, err
	}

	out := msg
	if resp.ID != "" && !isPlaceholder(resp.ID) {
		out.ID = resp.ID
	}
	return out, Fulfilled, nil
}

func (s *StoreClient) normalizeRooms(in []domain.Room) []domain.Room {
	out := make([]domain.Room, 0, len(in))
	for _, r := range in {
		if r.ID == "" || isPlaceholder(r.ID) {
			s.log.WithField("name", r.Name).Warn("Dropping room without id from backend response")
			continue
		}
		r.Name = substitute(r.Name, "")
		r.CreatedBy = substitute(r.CreatedBy, "")
		r.Messages = s.normalizeMessages(r.Messages)
		out = append(out, r)
	}
	return out
}

func (s *StoreClient) normalizeMessages(in []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(in))
	for _, m := range in {
		if m.ID == "" || isPlaceholder(m.ID) || m.Text == "" {
			s.log.WithField("message_id", m.ID).Warn("Dropping malformed message from backend response")
			continue
		}
		out = append(out, m)
	}
	return out
}

// isPlaceholder 识别 mock 后端回显的模板变量，例如 {{$!request.body.name}}
func isPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	return strings.HasPrefix(v, "{{") && strings.HasSuffix(v, "}}")
}

func substitute(v, fallback string) string {
	if isPlaceholder(v) {
		return fallback
	}
	return v
}
