package chatclient_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"chat-relay/internal/chatclient"
	"chat-relay/internal/domain"
	apihttp "chat-relay/internal/handler/http"
	gormpersistence "chat-relay/internal/infra/persistence/gorm"
	"chat-relay/internal/infra/setup"
	"chat-relay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startStore 启动真实的存储后端（内存 SQLite），返回 /chats 的地址
func startStore(t *testing.T) string {
	t.Helper()
	db, err := setup.InitDB(setup.DBOptions{
		Driver:     "sqlite",
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, setup.MigrateDB(db))
	require.NoError(t, setup.SeedRooms(context.Background(), db, domain.SeedRooms()))

	svc := service.NewRoomService(gormpersistence.NewGormRoomRepository(db), gormpersistence.NewGormMessageRepository(db), nil)
	gin.SetMode(gin.TestMode)
	router := gin.New()
	apihttp.NewRoomHandler(svc).RegisterRoutes(router.Group("/chats"))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL + "/chats"
}

func TestIntegration_SendThenReloadHasMessageOnce(t *testing.T) {
	ctx := context.Background()
	e := chatclient.NewEngine(chatclient.NewStoreClient(startStore(t)))

	outcome, err := e.LoadRooms(ctx)
	require.NoError(t, err)
	require.Equal(t, chatclient.Fulfilled, outcome)
	require.Len(t, e.Rooms(), 3)

	require.True(t, e.SelectRoom("3"))
	sent, err := e.SendMessage(ctx, chatclient.Session{UserID: "admin"}, "hello")
	require.NoError(t, err)

	_, err = e.LoadRooms(ctx)
	require.NoError(t, err)
	current, ok := e.CurrentRoom()
	require.True(t, ok)
	require.Len(t, current.Messages, 1)
	assert.Equal(t, sent.ID, current.Messages[0].ID)
	assert.Equal(t, "hello", current.Messages[0].Text)
}

func TestIntegration_RoomLifecycle(t *testing.T) {
	ctx := context.Background()
	e := chatclient.NewEngine(chatclient.NewStoreClient(startStore(t)))
	alice := chatclient.Session{UserID: "alice"}
	_, err := e.LoadRooms(ctx)
	require.NoError(t, err)

	room, err := e.CreateRoom(ctx, alice, "Alice's room")
	require.NoError(t, err)
	assert.Equal(t, "alice", room.CreatedBy)

	renamed, err := e.RenameRoom(ctx, alice, room.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Name)

	_, err = e.RenameRoom(ctx, chatclient.Session{UserID: "admin"}, room.ID, "Stolen")
	assert.ErrorIs(t, err, chatclient.ErrUnauthorized)

	require.NoError(t, e.DeleteRoom(ctx, alice, room.ID))
	_, err = e.LoadRooms(ctx)
	require.NoError(t, err)
	for _, r := range e.Rooms() {
		assert.NotEqual(t, room.ID, r.ID)
	}
}

func TestIntegration_DeleteMissingOnBackendIsDegraded(t *testing.T) {
	ctx := context.Background()
	ghost := domain.Room{ID: "ghost", Name: "Ghost", CreatedBy: "admin", Messages: []domain.Message{}}

	var last chatclient.Event
	e := chatclient.NewEngine(chatclient.NewStoreClient(startStore(t)),
		chatclient.WithInitialRooms([]domain.Room{ghost}),
		chatclient.WithObserver(func(ev chatclient.Event) { last = ev }),
	)

	require.NoError(t, e.DeleteRoom(ctx, chatclient.Session{UserID: "admin"}, "ghost"))
	assert.Empty(t, e.Rooms())
	assert.Equal(t, chatclient.PhaseDegraded, last.Phase)
	assert.NoError(t, e.PendingError())
}

func TestIntegration_PeersMergeThroughRelay(t *testing.T) {
	ctx := context.Background()
	storeURL := startStore(t)
	relayURL, h := startRelay(t)

	newPeer := func() (*chatclient.Engine, *chatclient.ConnectionManager) {
		cm := chatclient.NewConnectionManager(relayURL, nil)
		e := chatclient.NewEngine(chatclient.NewStoreClient(storeURL), chatclient.WithRelay(cm))
		cm.SetHandler(func(roomID string, msg domain.Message) { e.ReceiveRemote(roomID, msg) })
		_, err := e.LoadRooms(ctx)
		require.NoError(t, err)
		require.True(t, e.SelectRoom("3"))
		require.NoError(t, cm.Connect(ctx, "3"))
		t.Cleanup(func() { _ = cm.Disconnect() })
		return e, cm
	}
	alice, _ := newPeer()
	bob, _ := newPeer()
	waitMembers(t, h, "3", 2)

	sent, err := alice.SendMessage(ctx, chatclient.Session{UserID: "admin"}, "hi bob")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		room, _ := bob.CurrentRoom()
		return room.HasMessage(sent.ID)
	}, 2*time.Second, 10*time.Millisecond)

	// 发送者收到自己的回显后不会出现重复
	time.Sleep(100 * time.Millisecond)
	room, _ := alice.CurrentRoom()
	assert.Len(t, room.Messages, 1)
}
