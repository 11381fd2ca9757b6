package hub

import "sync"

// Registry 维护房间 ID 到活跃连接集合的映射，是纯内存簿记，不做任何 IO。
// 同一把读写锁同时保护两个索引，保证注册、注销与广播快照互斥，不会出现撕裂状态。
type Registry struct {
	mu sync.RWMutex
	// map[roomID]map[*Client]struct{}
	rooms map[string]map[*Client]struct{}
	// 反向索引：连接 -> 所在房间，用于注销时无需知道房间
	members map[*Client]string
}

// NewRegistry 创建空的 Registry
func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]map[*Client]struct{}),
		members: make(map[*Client]string),
	}
}

// Register 将连接登记到房间。对同一连接重复调用会替换其房间。
func (r *Registry) Register(roomID string, c *Client) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.members[c]; ok {
		if prev == roomID {
			return
		}
		r.removeLocked(prev, c)
	}
	set, ok := r.rooms[roomID]
	if !ok {
		set = make(map[*Client]struct{})
		r.rooms[roomID] = set
	}
	set[c] = struct{}{}
	r.members[c] = roomID
}

// Unregister 移除连接，未知连接时为空操作。返回连接原先所在的房间。
func (r *Registry) Unregister(c *Client) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.members[c]
	if !ok {
		return "", false
	}
	r.removeLocked(roomID, c)
	delete(r.members, c)
	return roomID, true
}

// removeLocked 从房间集合中删除连接，房间变空时一并删除。调用方需持有写锁。
func (r *Registry) removeLocked(roomID string, c *Client) {
	set, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.rooms, roomID)
	}
}

// MembersOf 返回房间当前成员的快照，迭代顺序不保证。
func (r *Registry) MembersOf(roomID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.rooms[roomID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// RoomOf 返回连接所在房间
func (r *Registry) RoomOf(c *Client) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.members[c]
	return roomID, ok
}

// Count 返回已登记连接总数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// RoomCount 返回有成员的房间数
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// All 返回所有已登记连接的快照
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.members))
	for c := range r.members {
		out = append(out, c)
	}
	return out
}
