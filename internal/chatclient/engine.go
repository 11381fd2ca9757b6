package chatclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chat-relay/internal/domain"

	"github.com/sirupsen/logrus"
)

// Session 是当前操作者的身份，每个需要身份的操作都显式传入
type Session struct {
	UserID string
}

// Phase 是一次网络调用所处的阶段
type Phase int

const (
	Idle Phase = iota
	Pending
	PhaseFulfilled
	PhaseDegraded
	Rejected
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case PhaseFulfilled:
		return "fulfilled"
	case PhaseDegraded:
		return "degraded"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Event 描述一次阶段变化，传给 Observer
type Event struct {
	Op     string
	RoomID string
	Phase  Phase
	Err    error
}

// Observer 在 Engine 锁外被调用
type Observer func(Event)

// RoomStore 是 Engine 依赖的存储操作，StoreClient 实现了它
type RoomStore interface {
	List(ctx context.Context) ([]domain.Room, Outcome, error)
	Create(ctx context.Context, name, createdBy string) (domain.Room, Outcome, error)
	Rename(ctx context.Context, roomID, name string) (domain.Room, Outcome, error)
	Delete(ctx context.Context, roomID string) (Outcome, error)
	AppendMessage(ctx context.Context, roomID string, msg domain.Message) (domain.Message, Outcome, error)
}

// RelaySender 把消息推给中继，ConnectionManager 实现了它
type RelaySender interface {
	Send(ctx context.Context, roomID string, msg domain.Message) error
}

// Engine 维护客户端的房间状态，把乐观更新和后端结果合并起来。
// 所有状态由 mu 保护；网络调用在锁外进行。
type Engine struct {
	store    RoomStore
	relay    RelaySender
	observer Observer

	mu         sync.Mutex
	rooms      []domain.Room
	current    string
	pendingErr error
	inFlight   int
	aliases    map[string]string // 本地 ID -> 服务端 ID

	seq atomic.Uint64
	now func() time.Time
	log *logrus.Entry
}

// EngineOption 配置 Engine
type EngineOption func(*Engine)

// WithRelay 设置中继发送端，nil 表示不经过中继
func WithRelay(r RelaySender) EngineOption {
	return func(e *Engine) { e.relay = r }
}

// WithObserver 设置阶段观察者
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// WithInitialRooms 设置初始房间列表
func WithInitialRooms(rooms []domain.Room) EngineOption {
	return func(e *Engine) { e.rooms = cloneRooms(rooms) }
}

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine 创建 Engine 实例
func NewEngine(store RoomStore, opts ...EngineOption) *Engine {
	if store == nil {
		panic("RoomStore cannot be nil for Engine")
	}
	e := &Engine{
		store:   store,
		rooms:   []domain.Room{},
		aliases: make(map[string]string),
		now:     time.Now,
		log:     logrus.WithField("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// --- 只读访问，均返回副本 ---

func (e *Engine) Rooms() []domain.Room {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRooms(e.rooms)
}

// CurrentRoom 返回当前房间，未选择时 ok 为 false
func (e *Engine) CurrentRoom() (domain.Room, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexOfRoom(e.current); i >= 0 {
		return e.rooms[i].Clone(), true
	}
	return domain.Room{}, false
}

func (e *Engine) PendingError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pendingErr
}

func (e *Engine) PendingErrorKind() ErrorKind {
	return KindOf(e.PendingError())
}

// IsSyncing 在有未完成的网络调用时返回 true
func (e *Engine) IsSyncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight > 0
}

// --- 操作 ---

// LoadRooms 从存储拉取房间并整体替换本地列表
func (e *Engine) LoadRooms(ctx context.Context) (Outcome, error) {
	e.begin("load_rooms", "")

	rooms, outcome, err := e.store.List(ctx)
	if err != nil {
		e.reject("load_rooms", "", err)
		return outcome, err
	}

	e.mu.Lock()
	e.rooms = cloneRooms(rooms)
	if e.indexOfRoom(e.current) < 0 {
		e.current = ""
	}
	e.mu.Unlock()

	e.settle("load_rooms", "", outcome)
	return outcome, nil
}

// SelectRoom 只在房间存在于列表中时切换当前房间
func (e *Engine) SelectRoom(roomID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.indexOfRoom(roomID) < 0 {
		return false
	}
	e.current = roomID
	return true
}

// SendMessage 先把消息追加到本地当前房间，再写存储和中继。
// 存储确认后把本地 ID 原地替换为服务端 ID；失败时不回滚本地消息。
func (e *Engine) SendMessage(ctx context.Context, session Session, text string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, fmt.Errorf("%w: message text is empty", ErrInvalidInput)
	}
	if session.UserID == "" {
		return domain.Message{}, fmt.Errorf("%w: no user in session", ErrUnauthorized)
	}

	e.mu.Lock()
	idx := e.indexOfRoom(e.current)
	if idx < 0 {
		e.mu.Unlock()
		return domain.Message{}, fmt.Errorf("%w: no room selected", ErrInvalidInput)
	}
	roomID := e.current
	local := domain.Message{
		ID:        e.nextLocalID(),
		RoomID:    roomID,
		Text:      text,
		Sender:    session.UserID,
		Timestamp: e.now().UnixMilli(),
	}
	e.rooms[idx].Messages = append(e.rooms[idx].Messages, local)
	e.beginLocked()
	e.mu.Unlock()
	e.notify(Event{Op: "send_message", RoomID: roomID, Phase: Pending})

	logCtx := e.log.WithFields(logrus.Fields{"room_id": roomID, "message_id": local.ID})

	stored, outcome, err := e.store.AppendMessage(ctx, roomID, local)
	if err != nil {
		logCtx.WithError(err).Warn("Store append failed, local message kept")
		e.relaySend(ctx, roomID, local, logCtx)
		e.reject("send_message", roomID, err)
		return local, err
	}

	final := local
	if outcome == Fulfilled && stored.ID != "" && stored.ID != local.ID {
		final.ID = stored.ID
		e.mu.Lock()
		e.rewriteIDLocked(roomID, local.ID, stored.ID)
		e.mu.Unlock()
	}

	e.relaySend(ctx, roomID, final, logCtx)
	e.settle("send_message", roomID, outcome)
	return final, nil
}

func (e *Engine) relaySend(ctx context.Context, roomID string, msg domain.Message, logCtx *logrus.Entry) {
	if e.relay == nil {
		return
	}
	// 中继失败不影响存储结果，对端重新加载时会拿到这条消息
	if err := e.relay.Send(ctx, roomID, msg); err != nil {
		logCtx.WithError(err).Warn("Relay send failed")
	}
}

// rewriteIDLocked 把本地 ID 原地替换成服务端 ID，不产生重复
func (e *Engine) rewriteIDLocked(roomID, localID, serverID string) {
	e.aliases[localID] = serverID
	i := e.indexOfRoom(roomID)
	if i < 0 {
		return
	}
	room := &e.rooms[i]
	li := room.IndexOfMessage(localID)
	if li < 0 {
		return
	}
	if room.HasMessage(serverID) {
		room.Messages = append(room.Messages[:li], room.Messages[li+1:]...)
		return
	}
	room.Messages[li].ID = serverID
}

// ReceiveRemote 合并中继推送过来的消息，已存在（含别名）的直接忽略
func (e *Engine) ReceiveRemote(roomID string, msg domain.Message) bool {
	if roomID == "" {
		roomID = msg.RoomID
	}
	if msg.ID == "" || strings.TrimSpace(msg.Text) == "" {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOfRoom(roomID)
	if i < 0 {
		return false
	}
	room := &e.rooms[i]
	if room.HasMessage(msg.ID) {
		return false
	}
	if serverID, ok := e.aliases[msg.ID]; ok && room.HasMessage(serverID) {
		return false
	}
	msg.RoomID = roomID
	room.Messages = append(room.Messages, msg)
	return true
}

// CreateRoom 创建房间并加入本地列表
func (e *Engine) CreateRoom(ctx context.Context, session Session, name string) (domain.Room, error) {
	if session.UserID == "" {
		return domain.Room{}, fmt.Errorf("%w: no user in session", ErrUnauthorized)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Room{}, fmt.Errorf("%w: room name is empty", ErrInvalidInput)
	}

	e.begin("create_room", "")
	room, outcome, err := e.store.Create(ctx, name, session.UserID)
	if err != nil {
		e.reject("create_room", "", err)
		return domain.Room{}, err
	}
	if room.Messages == nil {
		room.Messages = []domain.Message{}
	}

	e.mu.Lock()
	if e.indexOfRoom(room.ID) < 0 {
		e.rooms = append(e.rooms, room.Clone())
	}
	e.mu.Unlock()

	e.settle("create_room", room.ID, outcome)
	return room, nil
}

// RenameRoom 修改房间名称，只有创建者可以操作
func (e *Engine) RenameRoom(ctx context.Context, session Session, roomID, name string) (domain.Room, error) {
	name = strings.TrimSpace(name)
	if err := e.authorize(session, roomID); err != nil {
		return domain.Room{}, err
	}
	if name == "" {
		return domain.Room{}, fmt.Errorf("%w: room name is empty", ErrInvalidInput)
	}

	e.begin("rename_room", roomID)
	updated, outcome, err := e.store.Rename(ctx, roomID, name)
	if err != nil {
		e.reject("rename_room", roomID, err)
		return domain.Room{}, err
	}
	if updated.Name == "" {
		updated.Name = name
	}

	e.mu.Lock()
	var result domain.Room
	if i := e.indexOfRoom(roomID); i >= 0 {
		e.rooms[i].Name = updated.Name
		result = e.rooms[i].Clone()
	}
	e.mu.Unlock()

	e.settle("rename_room", roomID, outcome)
	return result, nil
}

// DeleteRoom 删除房间，只有创建者可以操作；删除当前房间会清空当前选择
func (e *Engine) DeleteRoom(ctx context.Context, session Session, roomID string) error {
	if err := e.authorize(session, roomID); err != nil {
		return err
	}

	e.begin("delete_room", roomID)
	outcome, err := e.store.Delete(ctx, roomID)
	if err != nil {
		e.reject("delete_room", roomID, err)
		return err
	}

	e.mu.Lock()
	if i := e.indexOfRoom(roomID); i >= 0 {
		e.rooms = append(e.rooms[:i], e.rooms[i+1:]...)
	}
	if e.current == roomID {
		e.current = ""
	}
	e.mu.Unlock()

	e.settle("delete_room", roomID, outcome)
	return nil
}

// FilterRooms 按名称做不区分大小写的子串匹配，不修改状态
func (e *Engine) FilterRooms(query string) []domain.Room {
	q := strings.ToLower(strings.TrimSpace(query))
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Room, 0, len(e.rooms))
	for _, r := range e.rooms {
		if q == "" || strings.Contains(strings.ToLower(r.Name), q) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// authorize 在任何网络调用之前检查操作者是否为房间创建者
func (e *Engine) authorize(session Session, roomID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOfRoom(roomID)
	if i < 0 {
		return fmt.Errorf("%w: unknown room %q", ErrInvalidInput, roomID)
	}
	if !e.rooms[i].IsOwnedBy(session.UserID) {
		return fmt.Errorf("%w: user %q did not create room %q", ErrUnauthorized, session.UserID, roomID)
	}
	return nil
}

// --- 阶段管理 ---

func (e *Engine) beginLocked() {
	e.inFlight++
	e.pendingErr = nil
}

func (e *Engine) begin(op, roomID string) {
	e.mu.Lock()
	e.beginLocked()
	e.mu.Unlock()
	e.notify(Event{Op: op, RoomID: roomID, Phase: Pending})
}

func (e *Engine) settle(op, roomID string, outcome Outcome) {
	e.mu.Lock()
	e.inFlight--
	e.mu.Unlock()
	phase := PhaseFulfilled
	if outcome == Degraded {
		phase = PhaseDegraded
	}
	e.notify(Event{Op: op, RoomID: roomID, Phase: phase})
}

func (e *Engine) reject(op, roomID string, err error) {
	e.mu.Lock()
	e.inFlight--
	e.pendingErr = err
	e.mu.Unlock()
	e.log.WithError(err).WithFields(logrus.Fields{"operation": op, "room_id": roomID}).Warn("Operation rejected")
	e.notify(Event{Op: op, RoomID: roomID, Phase: Rejected, Err: err})
}

func (e *Engine) notify(ev Event) {
	if e.observer != nil {
		e.observer(ev)
	}
}

// --- 内部工具 ---

func (e *Engine) indexOfRoom(roomID string) int {
	if roomID == "" {
		return -1
	}
	for i := range e.rooms {
		if e.rooms[i].ID == roomID {
			return i
		}
	}
	return -1
}

// nextLocalID 由毫秒时间戳加会话内计数器组成
func (e *Engine) nextLocalID() string {
	return fmt.Sprintf("%d-%d", e.now().UnixMilli(), e.seq.Add(1))
}

func cloneRooms(in []domain.Room) []domain.Room {
	out := make([]domain.Room, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
