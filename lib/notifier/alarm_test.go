package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlarmClockNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Minute} {
		clock := newAlarmClock(interval)
		assert.Equal(t, defaultInterval, clock.interval)

		c := clock.Start(context.Background())
		select {
		case evt := <-c:
			assert.IsType(t, tickEvent{}, evt)
		case <-time.After(time.Second):
			t.Fatal("no immediate tick")
		}
		clock.Stop()

		_, open := <-c
		require.False(t, open)
	}
}

func TestAlarmClockTrigger(t *testing.T) {
	clock := newAlarmClock(time.Hour)
	assert.False(t, clock.Trigger("before start"))

	c := clock.Start(context.Background())
	<-c

	require.Eventually(t, func() bool { return clock.Trigger("manual") }, time.Second, time.Millisecond)
	evt := <-c
	trigger, ok := evt.(triggerEvent)
	require.True(t, ok)
	assert.Equal(t, "manual", trigger.Source)

	clock.Stop()
}
