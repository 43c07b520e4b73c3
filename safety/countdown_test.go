package safety

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestCountdown_RejectsNonPositiveDuration(t *testing.T) {
	c := NewCountdown(WithTickInterval(0))

	_, err := c.Start(0)
	require.ErrorIs(t, err, ErrInvalidDuration)
	_, err = c.Start(-3)
	require.ErrorIs(t, err, ErrInvalidDuration)
	assert.False(t, c.Snapshot().IsActive)
}

func TestCountdown_TicksDownMonotonically(t *testing.T) {
	var expiries int32
	var seen []int
	c := NewCountdown(
		WithTickInterval(0),
		WithTickHook(func(_ uint64, remaining int) { seen = append(seen, remaining) }),
		WithExpireHook(func(uint64) { atomic.AddInt32(&expiries, 1) }),
	)

	_, err := c.Start(5)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		c.Tick()
	}

	assert.Equal(t, []int{4, 3, 2, 1, 0}, seen)
	assert.Equal(t, int32(1), atomic.LoadInt32(&expiries))

	snap := c.Snapshot()
	assert.Equal(t, 0, snap.RemainingSeconds)
	assert.Equal(t, 5, snap.TotalSeconds)
	assert.False(t, snap.IsActive)
	assert.Zero(t, snap.Progress)
}

func TestCountdown_Progress(t *testing.T) {
	c := NewCountdown(WithTickInterval(0))
	_, err := c.Start(4)
	require.NoError(t, err)
	assert.Equal(t, 1.0, c.Snapshot().Progress)

	c.Tick()
	assert.Equal(t, 0.75, c.Snapshot().Progress)
}

func TestCountdown_StopKeepsRemainingAndResetRestores(t *testing.T) {
	c := NewCountdown(WithTickInterval(0))
	_, err := c.Start(10)
	require.NoError(t, err)
	c.Tick()
	c.Tick()

	c.Stop()
	snap := c.Snapshot()
	assert.False(t, snap.IsActive)
	assert.Equal(t, 8, snap.RemainingSeconds)
	assert.False(t, c.Tick(), "stopped countdown must not tick")
	assert.Equal(t, 8, c.Snapshot().RemainingSeconds)

	c.Reset()
	assert.Equal(t, 10, c.Snapshot().RemainingSeconds)
}

func TestCountdown_StaleSessionNeverExpires(t *testing.T) {
	var expired []uint64
	c := NewCountdown(WithTickInterval(0), WithExpireHook(func(s uint64) { expired = append(expired, s) }))

	first, err := c.Start(1)
	require.NoError(t, err)
	c.Stop()

	// a tick scheduled for the first session arrives after the cancel
	assert.False(t, c.tick(first))
	assert.Empty(t, expired)

	second, err := c.Start(1)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	assert.False(t, c.tick(first))
	assert.Empty(t, expired)

	c.Tick()
	assert.Equal(t, []uint64{second}, expired)
}

func TestCountdown_RestartSupersedesRunningSession(t *testing.T) {
	var expiries int32
	c := NewCountdown(WithTickInterval(0), WithExpireHook(func(uint64) { atomic.AddInt32(&expiries, 1) }))

	first, err := c.Start(3)
	require.NoError(t, err)
	c.Tick()
	_, err = c.Start(3)
	require.NoError(t, err)

	c.tick(first)
	c.tick(first)
	c.tick(first)
	assert.Equal(t, int32(0), atomic.LoadInt32(&expiries))
	assert.Equal(t, 3, c.Snapshot().RemainingSeconds)
}

func TestCountdown_RealTickerExpiresOnce(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	expired := make(chan uint64, 2)
	c := NewCountdown(
		WithTickInterval(5*time.Millisecond),
		WithExpireHook(func(s uint64) { expired <- s }),
	)
	session, err := c.Start(3)
	require.NoError(t, err)

	select {
	case got := <-expired:
		assert.Equal(t, session, got)
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not expire")
	}

	select {
	case <-expired:
		t.Fatal("countdown expired twice")
	case <-time.After(30 * time.Millisecond):
	}
	assert.False(t, c.Snapshot().IsActive)
}

func TestCountdown_StopHaltsTickerGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var expiries int32
	c := NewCountdown(
		WithTickInterval(time.Millisecond),
		WithExpireHook(func(uint64) { atomic.AddInt32(&expiries, 1) }),
	)
	_, err := c.Start(1000)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	c.Stop()

	remaining := c.Snapshot().RemainingSeconds
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, remaining, c.Snapshot().RemainingSeconds)
	assert.Equal(t, int32(0), atomic.LoadInt32(&expiries))
}
