package hub

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/creature-draft-backend/internal/lobby"
	"github.com/DoyleJ11/creature-draft-backend/internal/repository"
	"github.com/DoyleJ11/creature-draft-backend/internal/store"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	clock := clockwork.NewFakeClock()
	repo := repository.NewDrafts(store.NewMemory(clock))
	log := zaptest.NewLogger(t)

	h := NewHub(context.Background(), func(ctx context.Context, sessionID string, onClose func(*lobby.Lobby)) *lobby.Lobby {
		return lobby.NewLobby(ctx, sessionID, repo, clock, log, lobby.Config{}, onClose)
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return h
}

func countLobbies(h *Hub) int {
	reply := make(chan int, 1)
	h.Inbox() <- CountLobbies{Reply: reply}
	return <-reply
}

func TestHub_Ensure_Get_SamePointer(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	lb1, err := h.Ensure(ctx, "ZED123")
	require.NoError(t, err)
	lb2, err := h.Ensure(ctx, "ZED123")
	require.NoError(t, err)
	lb3, err := h.Get(ctx, "ZED123")
	require.NoError(t, err)

	require.NotNil(t, lb1)
	assert.Same(t, lb1, lb2)
	assert.Same(t, lb1, lb3)
	assert.Equal(t, "ZED123", lb1.SessionID())

	missing, err := h.Get(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestHub_StoppedLobbyIsRemovedAndReplaced(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	lb1, err := h.Ensure(ctx, "ZED123")
	require.NoError(t, err)
	assert.Equal(t, 1, countLobbies(h))

	lb1.Inbox() <- lobby.Shutdown{}
	select {
	case <-lb1.Done():
	case <-time.After(time.Second):
		t.Fatal("lobby did not stop")
	}

	lb2, err := h.Ensure(ctx, "ZED123")
	require.NoError(t, err)
	assert.NotSame(t, lb1, lb2)
	assert.False(t, lb2.Closed())

	// The late RemoveLobby for lb1 must not evict lb2.
	assert.Eventually(t, func() bool {
		got, err := h.Get(ctx, "ZED123")
		return err == nil && got == lb2 && countLobbies(h) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHub_ShutdownStopsLobbies(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	a, err := h.Ensure(ctx, "A")
	require.NoError(t, err)
	b, err := h.Ensure(ctx, "B")
	require.NoError(t, err)

	sctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(sctx))

	assert.True(t, a.Closed())
	assert.True(t, b.Closed())

	_, err = h.Ensure(ctx, "C")
	assert.ErrorIs(t, err, ErrStopped)
}
