package domain

import "time"

// Room 表示一个聊天房间（会话）。
type Room struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`                 // 房间 ID，由权威存储分配后不可变
	Name      string    `gorm:"size:191;not null" json:"name"`                // 房间名称，仅创建者可修改
	CreatedBy string    `gorm:"size:191;index;not null" json:"createdBy"`     // 创建者的用户标识
	Messages  []Message `gorm:"foreignKey:RoomID;references:ID" json:"messages"` // 按插入顺序排列的消息
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}

// IsOwnedBy 判断给定用户是否为房间创建者
func (r *Room) IsOwnedBy(userID string) bool {
	return userID != "" && r.CreatedBy == userID
}

// Clone 返回房间的深拷贝，调用方可以安全地修改返回值。
func (r Room) Clone() Room {
	out := r
	out.Messages = make([]Message, len(r.Messages))
	copy(out.Messages, r.Messages)
	return out
}

// HasMessage 判断房间中是否已有指定 ID 的消息
func (r *Room) HasMessage(id string) bool {
	return r.IndexOfMessage(id) >= 0
}

// IndexOfMessage 返回指定 ID 消息的下标，不存在时返回 -1
func (r *Room) IndexOfMessage(id string) int {
	for i := range r.Messages {
		if r.Messages[i].ID == id {
			return i
		}
	}
	return -1
}
