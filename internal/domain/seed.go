package domain

// SeedRooms 返回固定的初始房间集合。
// 服务端在空库时写入这些房间；客户端在拉取房间列表失败时以此为降级结果，
// 避免界面因网络故障显示"没有会话"。每次调用都返回新的副本。
func SeedRooms() []Room {
	return []Room{
		{
			ID:   "1",
			Name: "Chat 1",
			Messages: []Message{
				{ID: "1", Text: "Hello, this is the first message in Chat 1.", Sender: "user", Timestamp: 1685714000000},
				{ID: "2", Text: "Hi there, this is a simulated message in Chat 1.", Sender: "otherUser", Timestamp: 1685717600000},
			},
			CreatedBy: "otherUserId",
		},
		{
			ID:   "2",
			Name: "Chat 2",
			Messages: []Message{
				{ID: "3", Text: "This is the first message in Chat 2.", Sender: "user", Timestamp: 1685804400000},
			},
			CreatedBy: "otherUserId",
		},
		{
			ID:        "3",
			Name:      "user created",
			Messages:  []Message{},
			CreatedBy: "admin",
		},
	}
}
