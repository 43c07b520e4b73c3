package safety

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManualCheckIn(total int, mode CheckInMode, escalate bool, n Notifier, e Escalator) *CheckIn {
	return NewCheckIn(CheckInConfig{TotalSeconds: total, Mode: mode, EscalateOnMiss: escalate}, n, e)
}

func TestCheckIn_RepeatingMarkSafeRearms(t *testing.T) {
	escalator := &fakeEscalator{}
	ci := newManualCheckIn(30, CheckInRepeating, true, nil, escalator)
	ctx := context.Background()

	_, err := ci.Start(ctx)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		ci.Tick()
	}
	assert.Equal(t, 20, ci.Snapshot().Countdown.RemainingSeconds)

	snap, err := ci.MarkSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, CheckInRunning, snap.State)
	assert.Equal(t, 30, snap.Countdown.RemainingSeconds)
	assert.True(t, snap.Countdown.IsActive)
	assert.Equal(t, 1, snap.Cycles)
	assert.Empty(t, escalator.calls())
}

func TestCheckIn_SingleMarkSafeIsTerminal(t *testing.T) {
	notifier := &recordingNotifier{}
	ci := newManualCheckIn(30, CheckInSingle, true, notifier, &fakeEscalator{})
	ctx := context.Background()

	_, err := ci.Start(ctx)
	require.NoError(t, err)
	ci.Tick()

	snap, err := ci.MarkSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, CheckInSafe, snap.State)
	assert.False(t, snap.Countdown.IsActive)
	assert.Equal(t, "You are Checked In!", notifier.last().Title)

	_, err = ci.Start(ctx)
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, ci.Reset())
	assert.Equal(t, CheckInIdle, ci.State())
	_, err = ci.Start(ctx)
	require.NoError(t, err)
}

func TestCheckIn_MissedAlertsAndEscalates(t *testing.T) {
	notifier := &recordingNotifier{}
	escalator := &fakeEscalator{}
	ci := newManualCheckIn(3, CheckInRepeating, true, notifier, escalator)

	_, err := ci.Start(context.Background())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		ci.Tick()
	}

	assert.Equal(t, CheckInAlerted, ci.State())
	assert.Equal(t, 0, ci.Snapshot().Countdown.RemainingSeconds)
	assert.Equal(t, 1, notifier.count(EventCheckInMissed))
	assert.Equal(t, []Source{SourceCheckIn}, escalator.calls())
}

func TestCheckIn_MissedWithoutEscalation(t *testing.T) {
	notifier := &recordingNotifier{}
	escalator := &fakeEscalator{}
	ci := newManualCheckIn(1, CheckInSingle, false, notifier, escalator)

	_, err := ci.Start(context.Background())
	require.NoError(t, err)
	ci.Tick()

	assert.Equal(t, CheckInAlerted, ci.State())
	assert.Equal(t, 1, notifier.count(EventCheckInMissed))
	assert.Empty(t, escalator.calls())
}

func TestCheckIn_StopReturnsToIdleWithoutAlert(t *testing.T) {
	notifier := &recordingNotifier{}
	escalator := &fakeEscalator{}
	ci := newManualCheckIn(5, CheckInRepeating, true, notifier, escalator)
	ctx := context.Background()

	_, err := ci.Start(ctx)
	require.NoError(t, err)
	ci.Tick()
	require.NoError(t, ci.Stop(ctx))

	for i := 0; i < 10; i++ {
		ci.Tick()
	}
	snap := ci.Snapshot()
	assert.Equal(t, CheckInIdle, snap.State)
	assert.Equal(t, 5, snap.Countdown.RemainingSeconds)
	assert.Zero(t, notifier.count(EventCheckInMissed))
	assert.Empty(t, escalator.calls())
}

func TestCheckIn_InvalidTransitions(t *testing.T) {
	ci := newManualCheckIn(5, CheckInSingle, true, nil, nil)
	ctx := context.Background()

	_, err := ci.MarkSafe(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, ci.Stop(ctx), ErrInvalidTransition)
	assert.NoError(t, ci.Reset())

	_, err = ci.Start(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, ci.Reset(), ErrInvalidTransition)
}
