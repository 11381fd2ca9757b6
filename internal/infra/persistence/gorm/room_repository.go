package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"chat-relay/internal/domain"
	"chat-relay/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindAll 返回所有房间，并按插入顺序预加载消息
func (r *GormRoomRepository) FindAll(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Order("created_at ASC, id ASC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find all rooms: %w", err)
	}
	for i := range rooms {
		if rooms[i].Messages == nil {
			rooms[i].Messages = []domain.Message{}
		}
	}
	return rooms, nil
}

// FindByID 实现根据房间 ID 查找房间
func (r *GormRoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %s: %w", id, err)
	}
	return &room, nil
}

// Create 插入新房间记录
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	// 消息通过 MessageRepository 单独追加，这里不关联写入
	err := r.db.WithContext(ctx).Omit("Messages").Create(room).Error
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room (id: %s): %w", room.ID, err)
	}
	return nil
}

// UpdateName 修改房间名称
func (r *GormRoomRepository) UpdateName(ctx context.Context, id string, name string) error {
	result := r.db.WithContext(ctx).Model(&domain.Room{}).Where("id = ?", id).Update("name", name)
	if result.Error != nil {
		return fmt.Errorf("gorm: update room name (id: %s): %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		// 名称未变化时 MySQL 也会返回 0 行，需要再确认一次房间是否存在
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Delete 删除房间记录，消息由后台任务清理
func (r *GormRoomRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Room{})
	if result.Error != nil {
		return fmt.Errorf("gorm: delete room (id: %s): %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrRoomNotFound
	}
	return nil
}

// isDuplicateEntryError 识别唯一约束冲突 (MySQL 1062 或 GORM 翻译后的错误)
func isDuplicateEntryError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
