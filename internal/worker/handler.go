package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"chat-relay/internal/repository"
	"chat-relay/internal/tasks"
)

// RoomPurgeHandler 清理已删除房间的消息
type RoomPurgeHandler struct {
	messageRepo repository.MessageRepository
}

// NewRoomPurgeHandler 创建 Handler 实例
func NewRoomPurgeHandler(messageRepo repository.MessageRepository) *RoomPurgeHandler {
	return &RoomPurgeHandler{messageRepo: messageRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomPurgeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)

	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
	})

	payload, err := tasks.ParseRoomPurgePayload(t)
	if err != nil {
		logCtx.WithError(err).Error("Invalid room purge payload")
		// 负载无法解析，重试没有意义
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithField("room_id", payload.RoomID)

	n, err := h.messageRepo.DeleteByRoom(ctx, payload.RoomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to purge room messages")
		return fmt.Errorf("purge messages of room %s: %w", payload.RoomID, err)
	}

	logCtx.WithField("purged", n).Info("Room messages purged")
	return nil
}
