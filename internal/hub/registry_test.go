package hub

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterIsIdempotentAndMoves(t *testing.T) {
	r := NewRegistry()
	c := NewClient(nil, nil, "R1")

	r.Register("R1", c)
	r.Register("R1", c)
	assert.Len(t, r.MembersOf("R1"), 1, "重复登记不应产生重复条目")

	r.Register("R2", c)
	assert.Empty(t, r.MembersOf("R1"))
	assert.Len(t, r.MembersOf("R2"), 1)
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, 1, r.RoomCount(), "空房间应被清理")

	room, ok := r.RoomOf(c)
	require.True(t, ok)
	assert.Equal(t, "R2", room)
}

func TestRegistry_UnregisterUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	known := NewClient(nil, nil, "R1")
	r.Register("R1", known)

	_, ok := r.Unregister(NewClient(nil, nil, "R1"))
	assert.False(t, ok)
	assert.Equal(t, 1, r.Count())

	room, ok := r.Unregister(known)
	assert.True(t, ok)
	assert.Equal(t, "R1", room)
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 0, r.RoomCount())

	_, ok = r.Unregister(known)
	assert.False(t, ok)
}

func TestRegistry_MembersOfReturnsSnapshot(t *testing.T) {
	r := NewRegistry()
	a := NewClient(nil, nil, "R1")
	r.Register("R1", a)

	snapshot := r.MembersOf("R1")
	r.Register("R1", NewClient(nil, nil, "R1"))
	assert.Len(t, snapshot, 1, "快照不应随后续登记变化")
	assert.Len(t, r.MembersOf("R1"), 2)
	assert.Empty(t, r.MembersOf("nobody"))
}

func TestRegistry_ConcurrentRegisterUnregister(t *testing.T) {
	r := NewRegistry()
	const workers = 50
	var wg sync.WaitGroup

	clients := make([]*Client, workers)
	for i := range clients {
		clients[i] = NewClient(nil, nil, fmt.Sprintf("R%d", i%5))
	}

	for _, c := range clients {
		wg.Add(2)
		go func(c *Client) {
			defer wg.Done()
			r.Register(c.RoomID(), c)
			r.Unregister(c)
		}(c)
		go func(c *Client) {
			defer wg.Done()
			_ = r.MembersOf(c.RoomID())
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Count(), "所有注销都应生效，不能遗留条目")
	assert.Equal(t, 0, r.RoomCount())
}
