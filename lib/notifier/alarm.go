package notifier

import (
	"context"
	"time"
)

type Event interface {
	Timestamp() time.Time
}

type event struct{ timestamp time.Time }

func (e event) Timestamp() time.Time { return e.timestamp }

type tickEvent struct {
	event
}

type triggerEvent struct {
	event
	Source string
}

// alarmClock emits a tick as soon as it starts and then once per interval.
// Manual triggers are delivered on the same channel.
type alarmClock struct {
	interval time.Duration
	cancel   func()
	triggerC chan triggerEvent
	C        chan Event
}

// defaultInterval replaces a non-positive interval, which time.NewTicker
// rejects with a panic.
const defaultInterval = time.Hour

func newAlarmClock(interval time.Duration) *alarmClock {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &alarmClock{
		interval: interval,
		triggerC: make(chan triggerEvent),
		C:        make(chan Event),
	}
}

// Start runs the clock until ctx is done or Stop is called. The returned
// channel is closed when the clock stops.
func (a *alarmClock) Start(ctx context.Context) <-chan Event {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go func() {
		defer close(a.C)

		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		if !a.emit(ctx, tickEvent{event{time.Now()}}) {
			return
		}
		for {
			select {
			case t := <-ticker.C:
				if !a.emit(ctx, tickEvent{event{t}}) {
					return
				}
			case evt := <-a.triggerC:
				if !a.emit(ctx, evt) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return a.C
}

// Trigger asks for an extra wake-up. It does not block: false means the clock
// is not running or a trigger is already queued.
func (a *alarmClock) Trigger(source string) bool {
	select {
	case a.triggerC <- triggerEvent{event{time.Now()}, source}:
		return true
	default:
		return false
	}
}

func (a *alarmClock) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *alarmClock) emit(ctx context.Context, evt Event) bool {
	select {
	case a.C <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}
