package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLockerExclusive(t *testing.T, l Locker) {
	t.Helper()
	unlock, err := l.Lock(t.Context(), "tenant-a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "tenant-a")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := l.Lock(t.Context(), "tenant-b")
	require.NoError(t, err)
	other()

	unlock()
	unlock() // second call is a no-op

	again, err := l.Lock(t.Context(), "tenant-a")
	require.NoError(t, err)
	again()
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	testLockerExclusive(t, l)
	assert.Empty(t, l.locks)
}

func TestLocalLockerSerializes(t *testing.T) {
	l := NewLocalLocker()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "tenant")
			if err != nil {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestRedisLocker(t *testing.T) {
	mr, client := newMiniRedis(t)
	l := NewRedisLocker(client, time.Second)
	testLockerExclusive(t, l)
	assert.False(t, mr.Exists("billing:lock:tenant-a"))
}

func TestRedisLockerLeaseExpires(t *testing.T) {
	mr, client := newMiniRedis(t)
	l := NewRedisLocker(client, time.Second)

	_, err := l.Lock(t.Context(), "tenant")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	unlock, err := l.Lock(t.Context(), "tenant")
	require.NoError(t, err)
	unlock()
}
