package session

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/assettrack/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLocalBus_SkipsOriginAndUnsubscribes(t *testing.T) {
	bus := NewLocalBus()
	ctx := context.Background()

	var a, b eventLog
	cancelA := bus.Subscribe("tab-a", a.add)
	cancelB := bus.Subscribe("tab-b", b.add)
	defer cancelB()

	require.NoError(t, bus.Publish(ctx, Event{Key: KeyToken, Origin: "tab-a"}))
	require.Empty(t, a.keys())
	require.Equal(t, []string{KeyToken}, b.keys())

	cancelA()
	cancelA()
	require.NoError(t, bus.Publish(ctx, Event{Key: KeyUser, Origin: "tab-c"}))
	require.Empty(t, a.keys())
	require.Equal(t, []string{KeyToken, KeyUser}, b.keys())
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestRedisBus(t *testing.T, client *redis.Client, log logging.Logger) *RedisBus {
	t.Helper()
	bus, err := NewRedisBus(context.Background(), client, "", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRedisBus_RelaysBetweenProcesses(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	one, two := newTestRedisBus(t, client, nil), newTestRedisBus(t, client, nil)

	var seenOne, seenTwo eventLog
	defer one.Subscribe("tab-a", seenOne.add)()
	defer two.Subscribe("tab-b", seenTwo.add)()

	require.NoError(t, one.Publish(ctx, Event{Key: KeyToken, Origin: "tab-a"}))
	require.Eventually(t, func() bool { return len(seenTwo.keys()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{KeyToken}, seenTwo.keys())
	require.Empty(t, seenOne.keys())
}

func TestRedisBus_DropsMalformedPayload(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	logs := &lockedBuffer{}
	bus := newTestRedisBus(t, client, logging.NewText(logs, slog.LevelDebug))

	var seen eventLog
	defer bus.Subscribe("tab-b", seen.add)()

	require.NoError(t, client.Publish(ctx, DefaultRedisChannel, "{not json").Err())
	require.NoError(t, bus.Publish(ctx, Event{Key: KeyUser, Origin: "tab-a"}))

	// Messages arrive in order, so the junk was handled before the valid event.
	require.Eventually(t, func() bool { return len(seen.keys()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{KeyUser}, seen.keys())
	require.Contains(t, logs.String(), "dropping malformed storage event")
}

func TestRedisBus_CloseStopsRunningRelay(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	closing, err := NewRedisBus(ctx, client, "", nil)
	require.NoError(t, err)
	other := newTestRedisBus(t, client, nil)

	var seen eventLog
	defer closing.Subscribe("tab-b", seen.add)()

	require.NoError(t, other.Publish(ctx, Event{Key: KeyToken, Origin: "tab-a"}))
	require.Eventually(t, func() bool { return len(seen.keys()) == 1 }, 2*time.Second, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- closing.Close() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while the relay was running")
	}

	require.NoError(t, other.Publish(ctx, Event{Key: KeyUser, Origin: "tab-a"}))
	require.Never(t, func() bool { return len(seen.keys()) > 1 }, 200*time.Millisecond, 20*time.Millisecond)

	// The client belongs to the caller and stays usable.
	require.NoError(t, client.Ping(ctx).Err())
}
