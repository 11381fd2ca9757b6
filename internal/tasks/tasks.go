package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 定义任务类型常量
const (
	TypeRoomPurge = "room:purge" // 删除房间后清理其消息
)

// RoomPurgePayload 定义了房间消息清理任务的数据结构
type RoomPurgePayload struct {
	RoomID string `json:"room_id"`
}

// NewRoomPurgeTask 创建一个新的房间消息清理任务
func NewRoomPurgeTask(roomID string) (*asynq.Task, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room id cannot be empty for %s task", TypeRoomPurge)
	}
	payloadBytes, err := json.Marshal(RoomPurgePayload{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRoomPurge, payloadBytes, asynq.MaxRetry(5)), nil
}

// ParseRoomPurgePayload 解析任务负载
func ParseRoomPurgePayload(t *asynq.Task) (RoomPurgePayload, error) {
	var p RoomPurgePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal %s payload: %w", TypeRoomPurge, err)
	}
	if p.RoomID == "" {
		return p, fmt.Errorf("%s payload has empty room id", TypeRoomPurge)
	}
	return p, nil
}
