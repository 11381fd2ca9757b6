package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/chatclient"
	"chat-relay/internal/domain"
)

// stubRelay 记录 Connect/Disconnect 调用
type stubRelay struct {
	connected string
	status    chatclient.ConnectionStatus
}

func (r *stubRelay) Connect(_ context.Context, roomID string) error {
	r.connected, r.status = roomID, chatclient.Connected
	return nil
}

func (r *stubRelay) Disconnect() error {
	r.connected, r.status = "", chatclient.Disconnected
	return nil
}

func (r *stubRelay) Status() chatclient.ConnectionStatus { return r.status }

func newTestShell(t *testing.T) (*shell, *stubRelay, *bytes.Buffer) {
	t.Helper()
	// 后端一律 404：列表退化为种子数据，写操作退化为本地结果
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	e := chatclient.NewEngine(chatclient.NewStoreClient(srv.URL + "/chats"))
	r := &stubRelay{}
	var out bytes.Buffer
	return newShell(e, r, chatclient.Session{UserID: "admin"}, &out), r, &out
}

func TestParseCommand(t *testing.T) {
	cmd, args := parseCommand("  /rename 3 New Name ")
	assert.Equal(t, "/rename", cmd)
	assert.Equal(t, []string{"3", "New", "Name"}, args)

	cmd, args = parseCommand("hello /world")
	assert.Empty(t, cmd)
	assert.Nil(t, args)
}

func TestShell_Flow(t *testing.T) {
	sh, r, out := newTestShell(t)
	ctx := context.Background()

	assert.False(t, sh.handle(ctx, "/rooms"))
	assert.Contains(t, out.String(), "Chat 1")
	assert.Contains(t, out.String(), "showing local rooms")

	assert.False(t, sh.handle(ctx, "/select 3"))
	assert.Equal(t, "3", r.connected)

	assert.False(t, sh.handle(ctx, "hello there"))
	room, ok := sh.engine.CurrentRoom()
	require.True(t, ok)
	require.Len(t, room.Messages, 1)
	assert.Equal(t, "hello there", room.Messages[0].Text)

	out.Reset()
	assert.False(t, sh.handle(ctx, "/rename 1 Mine"))
	assert.Contains(t, out.String(), "unauthorized")

	assert.False(t, sh.handle(ctx, "/delete 3"))
	_, ok = sh.engine.CurrentRoom()
	assert.False(t, ok)

	assert.True(t, sh.handle(ctx, "/quit"))
}

func TestShell_OnRemotePrintsCurrentRoom(t *testing.T) {
	sh, _, out := newTestShell(t)
	ctx := context.Background()
	sh.handle(ctx, "/rooms")
	sh.handle(ctx, "/select 2")
	out.Reset()

	sh.onRemote("2", domain.Message{ID: "p1", Text: "from peer", Sender: "bob", Timestamp: 1})
	assert.Contains(t, out.String(), "bob: from peer")

	out.Reset()
	sh.onRemote("2", domain.Message{ID: "p1", Text: "from peer", Sender: "bob", Timestamp: 1})
	assert.Empty(t, out.String())
}
