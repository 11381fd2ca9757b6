package domain

import (
	"errors"
	"strings"
)

// Message 表示房间中的一条不可变消息。
// 同一结构体也是中继服务器转发的线上格式：{id, text, sender, timestamp, roomId}。
type Message struct {
	Seq       uint   `gorm:"primaryKey;autoIncrement" json:"-"`         // 存储内部的插入序号，用于保持追加顺序
	ID        string `gorm:"uniqueIndex;size:64;not null" json:"id"`    // 消息 ID（客户端生成或服务器分配）
	RoomID    string `gorm:"index;size:64;not null" json:"roomId,omitempty"`
	Text      string `gorm:"type:text;not null" json:"text"`
	Sender    string `gorm:"size:191;not null" json:"sender"`
	Timestamp int64  `gorm:"not null" json:"timestamp"` // epoch 毫秒
}

var (
	ErrEmptyMessageText = errors.New("message text cannot be empty")
	ErrEmptyMessageID   = errors.New("message id cannot be empty")
)

// Validate 检查消息是否满足基本约束
func (m *Message) Validate() error {
	if m.ID == "" {
		return ErrEmptyMessageID
	}
	if strings.TrimSpace(m.Text) == "" {
		return ErrEmptyMessageText
	}
	return nil
}
