package gormpersistence

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chat-relay/internal/domain"
	"chat-relay/internal/repository"
)

// setupTestDB 为每个测试创建独立的内存 SQLite 数据库
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&domain.Room{}, &domain.Message{}))
	return db
}

func TestGormRoomRepository_CreateAndFindAll(t *testing.T) {
	db := setupTestDB(t)
	rooms := NewGormRoomRepository(db)
	msgs := NewGormMessageRepository(db)
	ctx := context.Background()

	require.NoError(t, rooms.Create(ctx, &domain.Room{ID: "r1", Name: "General", CreatedBy: "admin"}))
	require.NoError(t, rooms.Create(ctx, &domain.Room{ID: "r2", Name: "Random", CreatedBy: "bob"}))

	// 故意让时间戳倒序，验证返回顺序依赖插入顺序而不是时间戳
	require.NoError(t, msgs.Append(ctx, &domain.Message{ID: "m1", RoomID: "r1", Text: "first", Sender: "admin", Timestamp: 300}))
	require.NoError(t, msgs.Append(ctx, &domain.Message{ID: "m2", RoomID: "r1", Text: "second", Sender: "bob", Timestamp: 100}))

	all, err := rooms.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r1", all[0].ID)
	require.Len(t, all[0].Messages, 2)
	assert.Equal(t, "m1", all[0].Messages[0].ID)
	assert.Equal(t, "m2", all[0].Messages[1].ID)
	assert.NotNil(t, all[1].Messages, "空房间应返回空切片而不是 nil")
	assert.Empty(t, all[1].Messages)
}

func TestGormRoomRepository_CreateDuplicate(t *testing.T) {
	db := setupTestDB(t)
	rooms := NewGormRoomRepository(db)
	ctx := context.Background()

	require.NoError(t, rooms.Create(ctx, &domain.Room{ID: "dup", Name: "A", CreatedBy: "admin"}))
	err := rooms.Create(ctx, &domain.Room{ID: "dup", Name: "B", CreatedBy: "admin"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)
}

func TestGormRoomRepository_UpdateName(t *testing.T) {
	db := setupTestDB(t)
	rooms := NewGormRoomRepository(db)
	ctx := context.Background()
	require.NoError(t, rooms.Create(ctx, &domain.Room{ID: "r1", Name: "Old", CreatedBy: "admin"}))

	require.NoError(t, rooms.UpdateName(ctx, "r1", "New"))
	room, err := rooms.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "New", room.Name)

	// 名称不变也不应报错
	assert.NoError(t, rooms.UpdateName(ctx, "r1", "New"))
	assert.ErrorIs(t, rooms.UpdateName(ctx, "missing", "x"), repository.ErrRoomNotFound)
}

func TestGormRoomRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	rooms := NewGormRoomRepository(db)
	ctx := context.Background()
	require.NoError(t, rooms.Create(ctx, &domain.Room{ID: "r1", Name: "Gone", CreatedBy: "admin"}))

	require.NoError(t, rooms.Delete(ctx, "r1"))
	_, err := rooms.FindByID(ctx, "r1")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
	assert.ErrorIs(t, rooms.Delete(ctx, "r1"), repository.ErrRoomNotFound)
}

func TestGormMessageRepository_ListAndDeleteByRoom(t *testing.T) {
	db := setupTestDB(t)
	msgs := NewGormMessageRepository(db)
	ctx := context.Background()

	require.NoError(t, msgs.Append(ctx, &domain.Message{ID: "a", RoomID: "r1", Text: "x", Sender: "u", Timestamp: 1}))
	require.NoError(t, msgs.Append(ctx, &domain.Message{ID: "b", RoomID: "r1", Text: "y", Sender: "u", Timestamp: 2}))
	require.NoError(t, msgs.Append(ctx, &domain.Message{ID: "c", RoomID: "r2", Text: "z", Sender: "u", Timestamp: 3}))
	assert.ErrorIs(t, msgs.Append(ctx, &domain.Message{ID: "a", RoomID: "r1", Text: "again", Sender: "u", Timestamp: 4}), repository.ErrDuplicateEntry)

	list, err := msgs.ListByRoom(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"a", "b"}, []string{list[0].ID, list[1].ID})

	n, err := msgs.DeleteByRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err = msgs.ListByRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, list)

	other, err := msgs.ListByRoom(ctx, "r2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
