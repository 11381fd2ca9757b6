package repository

import (
	"context"

	"chat-relay/internal/domain"
)

// RoomRepository 定义了房间数据的存储和检索操作。
type RoomRepository interface {
	// FindAll 返回所有房间，每个房间的消息按插入顺序预加载。
	FindAll(ctx context.Context) ([]domain.Room, error)

	// FindByID 根据房间 ID 查找房间（不含消息）。
	// 房间不存在时返回 ErrRoomNotFound。
	FindByID(ctx context.Context, id string) (*domain.Room, error)

	// Create 插入新房间，ID 冲突时返回 ErrDuplicateEntry。
	Create(ctx context.Context, room *domain.Room) error

	// UpdateName 修改房间名称，房间不存在时返回 ErrRoomNotFound。
	UpdateName(ctx context.Context, id string, name string) error

	// Delete 删除房间记录，房间不存在时返回 ErrRoomNotFound。
	Delete(ctx context.Context, id string) error
}
