package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"chat-relay/internal/domain"
	"chat-relay/internal/repository"
)

// GormMessageRepository 是 MessageRepository 接口的 GORM 实现
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GormMessageRepository 实例
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMessageRepository")
	}
	return &GormMessageRepository{db: db}
}

// Append 追加一条消息。Seq 由数据库自增生成，保证房间内的插入顺序。
func (r *GormMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: append message (id: %s, room: %s): %w", msg.ID, msg.RoomID, err)
	}
	return nil
}

// ListByRoom 按插入顺序返回房间消息
func (r *GormMessageRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.Message, error) {
	msgs := []domain.Message{}
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("seq ASC").Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list messages for room %s: %w", roomID, err)
	}
	return msgs, nil
}

// DeleteByRoom 批量删除房间消息
func (r *GormMessageRepository) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&domain.Message{})
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: delete messages for room %s: %w", roomID, result.Error)
	}
	return result.RowsAffected, nil
}
