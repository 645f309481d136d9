package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestMemory() (*Memory, *clock) {
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory()
	m.now = clk.now
	return m, clk
}

func TestMemoryGetSetExpire(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestMemory()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.SetEx(ctx, "k", "v", time.Second))
	v, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	clk.t = clk.t.Add(time.Second)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryDelPrefix(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory()
	require.NoError(t, m.SetEx(ctx, "feed:global:0", "a", 0))
	require.NoError(t, m.SetEx(ctx, "feed:global:20", "b", 0))
	require.NoError(t, m.SetEx(ctx, "other", "c", 0))

	require.NoError(t, m.DelPrefix(ctx, "feed:"))
	_, err := m.Get(ctx, "feed:global:0")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(ctx, "other")
	assert.NoError(t, err)
}

func TestMemoryIncrWindow(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestMemory()

	n, ttl, err := m.IncrWindow(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, ttl)

	clk.t = clk.t.Add(10 * time.Second)
	n, ttl, _ = m.IncrWindow(ctx, "rl", time.Minute)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 50*time.Second, ttl)

	clk.t = clk.t.Add(time.Minute)
	n, _, _ = m.IncrWindow(ctx, "rl", time.Minute)
	assert.Equal(t, int64(1), n, "a new window starts after expiry")
}

func TestMemoryLock(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestMemory()

	release, ok, err := m.AcquireLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = m.AcquireLock(ctx, "lock", time.Minute)
	assert.False(t, ok, "held lock cannot be taken")

	release()
	release2, ok, _ := m.AcquireLock(ctx, "lock", time.Minute)
	require.True(t, ok)

	// An expired lock can be taken over and the stale release is a no-op
	clk.t = clk.t.Add(2 * time.Minute)
	_, ok, _ = m.AcquireLock(ctx, "lock", time.Minute)
	require.True(t, ok)
	release2()
	_, ok, _ = m.AcquireLock(ctx, "lock", time.Minute)
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "feed:global:20", Key("feed", "global", "20"))
	assert.Equal(t, "feed", Key("feed"))
}
