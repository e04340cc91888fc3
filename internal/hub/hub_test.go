package hub

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/checkers-match-backend/internal/engine"
	"github.com/DoyleJ11/checkers-match-backend/internal/room"
)

type nopOutbox struct{}

func (nopOutbox) SendTo(string, string, any) {}
func (nopOutbox) Attach(string, string)      {}
func (nopOutbox) Detach(string, string)      {}

func newTestHub(t *testing.T, gen func() (string, error)) (*Hub, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	h := NewHub(context.Background(), Config{
		Rooms:        room.Config{Clock: clock, Outbox: nopOutbox{}, TurnLimit: time.Minute},
		GenerateCode: gen,
	})
	t.Cleanup(func() { _ = h.Shutdown(context.Background()) })
	return h, clock
}

// sequence returns a generator that replays codes in order.
func sequence(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

func player(id string) engine.Player { return engine.Player{ConnID: id, Name: id} }

func TestGenerateCode_FiveDigitsInRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 5)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 10000)
		assert.LessOrEqual(t, n, 99999)
	}
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHub(t, nil)

	code, r1, err := h.Create(ctx, player("A"))
	require.NoError(t, err)
	require.NotNil(t, r1)
	assert.Equal(t, code, r1.Code())

	r2, err := h.Get(ctx, code)
	require.NoError(t, err)
	assert.Same(t, r1, r2)

	v, err := r1.View(ctx)
	require.NoError(t, err)
	require.Len(t, v.State.Players, 1)
	assert.Equal(t, engine.RoleWhite, v.State.Players[0].Role)
}

func TestHub_Create_DistinctCodes(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHub(t, nil)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, _, err := h.Create(ctx, player("c"+strconv.Itoa(i)))
		require.NoError(t, err)
		require.False(t, seen[code], "duplicate live code %s", code)
		seen[code] = true
	}
	n, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200, n)
}

func TestHub_Create_RetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHub(t, sequence("11111", "11111", "11111", "22222"))

	first, _, err := h.Create(ctx, player("A"))
	require.NoError(t, err)
	assert.Equal(t, "11111", first)

	second, _, err := h.Create(ctx, player("B"))
	require.NoError(t, err)
	assert.Equal(t, "22222", second)
}

func TestHub_Create_ExhaustsCodes(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHub(t, sequence("33333"))

	_, _, err := h.Create(ctx, player("A"))
	require.NoError(t, err)

	_, _, err = h.Create(ctx, player("B"))
	assert.ErrorIs(t, err, ErrNoCodeAvailable)
}

func TestHub_Create_GeneratorError(t *testing.T) {
	boom := errors.New("entropy exhausted")
	h, _ := newTestHub(t, func() (string, error) { return "", boom })

	_, _, err := h.Create(context.Background(), player("A"))
	assert.ErrorIs(t, err, boom)
}

func TestHub_Get_Unknown(t *testing.T) {
	h, _ := newTestHub(t, nil)
	r, err := h.Get(context.Background(), "00000")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestHub_Remove_Idempotent(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHub(t, nil)

	code, r, err := h.Create(ctx, player("A"))
	require.NoError(t, err)

	require.NoError(t, h.Remove(ctx, code))
	require.NoError(t, h.Remove(ctx, code))
	require.NoError(t, h.Remove(ctx, "99999"))

	got, err := h.Get(ctx, code)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = r.Sync(ctx)
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestHub_FreedCodeIsReused(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHub(t, sequence("44444"))

	code, first, err := h.Create(ctx, player("A"))
	require.NoError(t, err)
	require.NoError(t, first.Leave(ctx, "A"))

	again, second, err := h.Create(ctx, player("B"))
	require.NoError(t, err)
	assert.Equal(t, code, again)
	assert.NotSame(t, first, second)
}

func TestHub_RoomDestructionDropsCode(t *testing.T) {
	ctx := context.Background()
	h, clock := newTestHub(t, nil)

	code, r, err := h.Create(ctx, player("A"))
	require.NoError(t, err)
	_, err = r.Join(ctx, player("B"))
	require.NoError(t, err)

	clock.Advance(time.Minute)
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatalf("room did not expire")
	}

	got, err := h.Get(ctx, code)
	require.NoError(t, err)
	assert.Nil(t, got, "expired room must be unreachable")
}

func TestHub_StaleRemoveKeepsNewRoom(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHub(t, sequence("55555"))

	code, old, err := h.Create(ctx, player("A"))
	require.NoError(t, err)
	require.NoError(t, old.Leave(ctx, "A"))

	_, fresh, err := h.Create(ctx, player("B"))
	require.NoError(t, err)

	reply := make(chan struct{}, 1)
	h.inbox <- RemoveRoom{Code: code, Room: old, Reply: reply}
	<-reply

	got, err := h.Get(ctx, code)
	require.NoError(t, err)
	assert.Same(t, fresh, got)
}

func TestHub_Shutdown_StopsRooms(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHub(t, nil)

	_, r, err := h.Create(ctx, player("A"))
	require.NoError(t, err)

	require.NoError(t, h.Shutdown(ctx))
	require.NoError(t, h.Shutdown(ctx))

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatalf("room still running after hub shutdown")
	}
	_, _, err = h.Create(ctx, player("B"))
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHub(t, nil)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = make(map[string]bool)
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, _, err := h.Create(ctx, player("p"+strconv.Itoa(i)))
			assert.NoError(t, err)
			mu.Lock()
			codes[code] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	assert.Len(t, codes, 50)
}
