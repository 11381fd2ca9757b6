package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chat-relay/internal/domain"
	"chat-relay/internal/repository"
	"chat-relay/internal/tasks"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// TaskQueue 是 asynq.Client 中 RoomService 用到的部分
type TaskQueue interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RoomService 是聊天存储后端的业务逻辑：房间的增删改查和消息追加。
type RoomService struct {
	roomRepo    repository.RoomRepository
	messageRepo repository.MessageRepository
	queue       TaskQueue // 可以为 nil，此时同步清理消息
	newID       func() string
	now         func() time.Time
}

// NewRoomService 创建 RoomService 实例
func NewRoomService(roomRepo repository.RoomRepository, messageRepo repository.MessageRepository, queue TaskQueue) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if messageRepo == nil {
		panic("MessageRepository cannot be nil for RoomService")
	}
	return &RoomService{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		queue:       queue,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// ListRooms 返回所有房间及其消息
func (s *RoomService) ListRooms(ctx context.Context) ([]domain.Room, error) {
	rooms, err := s.roomRepo.FindAll(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list rooms")
		return nil, ErrInternalServer
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	return rooms, nil
}

// CreateRoom 创建一个新房间，ID 由服务端分配
func (s *RoomService) CreateRoom(ctx context.Context, name, createdBy string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	createdBy = strings.TrimSpace(createdBy)
	if name == "" || createdBy == "" {
		return nil, fmt.Errorf("%w: name and createdBy are required", ErrInvalidInput)
	}
	logCtx := logrus.WithFields(logrus.Fields{"created_by": createdBy, "name": name})

	room := &domain.Room{
		ID:        s.newID(),
		Name:      name,
		CreatedBy: createdBy,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// UUID 冲突理论上不应发生
			logCtx.WithError(err).Error("Failed to save new room due to duplicate id")
		} else {
			logCtx.WithError(err).Error("Failed to save new room to database")
		}
		return nil, ErrInternalServer
	}
	room.Messages = []domain.Message{}

	logCtx.WithField("room_id", room.ID).Info("Room created successfully")
	return room, nil
}

// RenameRoom 修改房间名称并返回更新后的房间
func (s *RoomService) RenameRoom(ctx context.Context, roomID, name string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if roomID == "" || name == "" {
		return nil, fmt.Errorf("%w: roomId and name are required", ErrInvalidInput)
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "name": name})

	if err := s.roomRepo.UpdateName(ctx, roomID, name); err != nil {
		return nil, s.mapRoomError(logCtx, err, "RenameRoom")
	}
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, s.mapRoomError(logCtx, err, "RenameRoom")
	}
	msgs, err := s.messageRepo.ListByRoom(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("RenameRoom: failed to load messages")
		return nil, ErrInternalServer
	}
	room.Messages = msgs

	logCtx.Info("Room renamed successfully")
	return room, nil
}

// DeleteRoom 删除房间，消息通过后台任务清理；任务入队失败时同步清理
func (s *RoomService) DeleteRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: roomId is required", ErrInvalidInput)
	}
	logCtx := logrus.WithField("room_id", roomID)

	if err := s.roomRepo.Delete(ctx, roomID); err != nil {
		return s.mapRoomError(logCtx, err, "DeleteRoom")
	}

	if s.enqueuePurge(ctx, roomID, logCtx) {
		logCtx.Info("Room deleted, message purge queued")
		return nil
	}
	n, err := s.messageRepo.DeleteByRoom(ctx, roomID)
	if err != nil {
		// 房间已删除，残留消息不影响正确性，只记录错误
		logCtx.WithError(err).Error("DeleteRoom: inline message purge failed")
		return nil
	}
	logCtx.WithField("purged", n).Info("Room deleted, messages purged inline")
	return nil
}

func (s *RoomService) enqueuePurge(ctx context.Context, roomID string, logCtx *logrus.Entry) bool {
	if s.queue == nil {
		return false
	}
	task, err := tasks.NewRoomPurgeTask(roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to build room purge task")
		return false
	}
	info, err := s.queue.EnqueueContext(ctx, task)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to enqueue room purge task")
		return false
	}
	if info != nil {
		logCtx = logCtx.WithField("task_id", info.ID)
	}
	logCtx.Debug("Room purge task enqueued")
	return true
}

// AppendMessage 追加消息并返回带服务端 ID 的消息。
// 其余字段以请求为准；客户端 ID 被替换。
func (s *RoomService) AppendMessage(ctx context.Context, roomID string, msg domain.Message) (*domain.Message, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: roomId is required", ErrInvalidInput)
	}
	if strings.TrimSpace(msg.Text) == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, domain.ErrEmptyMessageText)
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "client_id": msg.ID})

	if _, err := s.roomRepo.FindByID(ctx, roomID); err != nil {
		return nil, s.mapRoomError(logCtx, err, "AppendMessage")
	}

	stored := msg
	stored.Seq = 0
	stored.ID = s.newID()
	stored.RoomID = roomID
	if stored.Timestamp == 0 {
		stored.Timestamp = s.now().UnixMilli()
	}
	if err := s.messageRepo.Append(ctx, &stored); err != nil {
		logCtx.WithError(err).Error("Failed to append message")
		return nil, ErrInternalServer
	}

	logCtx.WithField("message_id", stored.ID).Debug("Message appended")
	return &stored, nil
}

// mapRoomError 把仓库错误映射为服务层错误
func (s *RoomService) mapRoomError(logCtx *logrus.Entry, err error, op string) error {
	if errors.Is(err, repository.ErrRoomNotFound) {
		logCtx.Warnf("%s: room not found", op)
		return ErrRoomNotFound
	}
	logCtx.WithError(err).Errorf("%s: repository error", op)
	return ErrInternalServer
}
