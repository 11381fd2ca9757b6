package setup

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"chat-relay/internal/domain"
)

// MigrateDB 自动迁移房间和消息表
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}
	if err := db.AutoMigrate(&domain.Room{}, &domain.Message{}); err != nil {
		logrus.Errorf("Failed to auto-migrate tables: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}
	logrus.Info("Database migration completed successfully")
	return nil
}

// SeedRooms 在房间表为空时写入初始房间，已有数据时不做任何事
func SeedRooms(ctx context.Context, db *gorm.DB, rooms []domain.Room) error {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.Room{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count rooms: %w", err)
	}
	if count > 0 {
		logrus.WithField("rooms", count).Debug("Rooms table not empty, skipping seed")
		return nil
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range rooms {
			room := r.Clone()
			msgs := room.Messages
			room.Messages = nil
			if err := tx.Create(&room).Error; err != nil {
				return err
			}
			for i := range msgs {
				msgs[i].Seq = 0
				msgs[i].RoomID = room.ID
				if err := tx.Create(&msgs[i]).Error; err != nil {
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						continue
					}
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed rooms: %w", err)
	}
	logrus.WithField("rooms", len(rooms)).Info("Seeded initial rooms")
	return nil
}
