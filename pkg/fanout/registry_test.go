package fanout_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/fanout"
)

func TestRegistry_PushReachesAllUserSessions(t *testing.T) {
	t.Parallel()

	reg := fanout.NewRegistry(8)
	t.Cleanup(reg.Close)

	s1 := reg.Connect("user-1")
	s2 := reg.Connect("user-1")
	other := reg.Connect("user-2")

	delivered := reg.Push("user-1", fanout.Message{ID: "m1"})
	assert.Equal(t, 2, delivered)

	assert.Equal(t, "m1", (<-s1.Messages()).ID)
	assert.Equal(t, "m1", (<-s2.Messages()).ID)

	select {
	case msg := <-other.Messages():
		t.Fatalf("user-2 session received unexpected message %q", msg.ID)
	default:
	}
}

func TestRegistry_Broadcast(t *testing.T) {
	t.Parallel()

	reg := fanout.NewRegistry(8)
	t.Cleanup(reg.Close)

	reg.Connect("user-1")
	reg.Connect("user-2")
	reg.Connect("user-2")

	delivered := reg.Broadcast(fanout.Message{ID: "system"})
	assert.Equal(t, 3, delivered)
}

func TestRegistry_Disconnect(t *testing.T) {
	t.Parallel()

	reg := fanout.NewRegistry(8)
	t.Cleanup(reg.Close)

	sess := reg.Connect("user-1")
	require.True(t, reg.IsOnline("user-1"))

	reg.Disconnect(sess)
	assert.False(t, reg.IsOnline("user-1"))
	assert.Equal(t, 0, reg.SessionCount())

	_, ok := <-sess.Messages()
	assert.False(t, ok, "session channel should be closed")

	// Disconnecting again must not panic.
	reg.Disconnect(sess)
	reg.Disconnect(nil)

	assert.Equal(t, 0, reg.Push("user-1", fanout.Message{ID: "late"}))
}

func TestRegistry_FullBufferDropsMessage(t *testing.T) {
	t.Parallel()

	reg := fanout.NewRegistry(1)
	t.Cleanup(reg.Close)

	reg.Connect("user-1")

	assert.Equal(t, 1, reg.Push("user-1", fanout.Message{ID: "first"}))
	assert.Equal(t, 0, reg.Push("user-1", fanout.Message{ID: "dropped"}), "full buffer should drop")
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	reg := fanout.NewRegistry(64)
	t.Cleanup(reg.Close)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := reg.Connect("user-1")
			reg.Push("user-1", fanout.Message{ID: "c"})
			reg.Disconnect(sess)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, reg.SessionCount())
	assert.False(t, reg.IsOnline("user-1"))
}
