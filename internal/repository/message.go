package repository

import (
	"context"

	"chat-relay/internal/domain"
)

// MessageRepository 定义了消息的持久化操作。消息只追加，不修改。
type MessageRepository interface {
	// Append 追加一条消息，ID 冲突时返回 ErrDuplicateEntry。
	Append(ctx context.Context, msg *domain.Message) error

	// ListByRoom 按插入顺序返回房间内的消息。
	ListByRoom(ctx context.Context, roomID string) ([]domain.Message, error)

	// DeleteByRoom 删除房间的全部消息，返回删除条数。
	DeleteByRoom(ctx context.Context, roomID string) (int64, error)
}
