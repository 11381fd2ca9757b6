package redisstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errHalted = errors.New("halted before reaching redis")

// recordHook 记录发出的命令并在发送前中止，测试不需要真实的 Redis
type recordHook struct {
	cmds [][]interface{}
}

func (h *recordHook) BeforeProcess(ctx context.Context, cmd redis.Cmder) (context.Context, error) {
	h.cmds = append(h.cmds, cmd.Args())
	return ctx, errHalted
}

func (h *recordHook) AfterProcess(context.Context, redis.Cmder) error { return nil }

func (h *recordHook) BeforeProcessPipeline(ctx context.Context, cmds []redis.Cmder) (context.Context, error) {
	for _, cmd := range cmds {
		h.cmds = append(h.cmds, cmd.Args())
	}
	return ctx, errHalted
}

func (h *recordHook) AfterProcessPipeline(context.Context, []redis.Cmder) error { return nil }

func TestRoomIDFromChannel(t *testing.T) {
	r := NewRedisStateRepository(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "test:")

	id, ok := r.roomIDFromChannel(r.roomChannel("general"))
	assert.True(t, ok)
	assert.Equal(t, "general", id)

	// 房间 ID 中包含冒号也应完整保留
	id, ok = r.roomIDFromChannel(r.roomChannel("team:42"))
	assert.True(t, ok)
	assert.Equal(t, "team:42", id)

	_, ok = r.roomIDFromChannel("other:room:x:relay")
	assert.False(t, ok)
	_, ok = r.roomIDFromChannel("test:room::relay")
	assert.False(t, ok)
}

func TestNewRedisStateRepository_DefaultPrefix(t *testing.T) {
	r := NewRedisStateRepository(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "")
	assert.Equal(t, "relay:room:abc:relay", r.roomChannel("abc"))
	assert.Equal(t, "relay:room:*:relay", r.roomChannelPattern())
}

func TestNewRedisStateRepository_NilClientPanics(t *testing.T) {
	assert.Panics(t, func() { NewRedisStateRepository(nil, "x:") })
}

func TestCheckRateLimit_SetsExpiryOnlyOnFirstHit(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	hook := &recordHook{}
	client.AddHook(hook)
	r := NewRedisStateRepository(client, "test:")

	_, err := r.CheckRateLimit(context.Background(), "1.2.3.4", 5, 1500*time.Millisecond)
	require.ErrorIs(t, err, errHalted)

	// 整个检查是一条原子脚本，而不是 INCR + EXPIRE 的 pipeline
	require.Len(t, hook.cmds, 1)
	args := hook.cmds[0]
	require.Len(t, args, 5)
	assert.Equal(t, "evalsha", args[0])
	assert.Equal(t, rateLimitScript.Hash(), args[1])
	assert.Equal(t, "test:ratelimit:1.2.3.4", args[3])
	assert.EqualValues(t, 1500, args[4])

	// 过期时间只在计数为 1 时设置，后续请求不会续期窗口
	assert.Contains(t, rateLimitSrc, "if count == 1 then")
	assert.Contains(t, rateLimitSrc, "PEXPIRE")
	assert.NotContains(t, rateLimitSrc, "'EXPIRE'")
}
