package cabin

import "time"

// resettableTimer wraps time.Timer so the FSM's timers (door, cab-priority,
// travel-error, §4.5/§5) can be freely stopped and reset from the event
// loop without the channel-draining dance time.Timer.Reset ordinarily
// requires of its callers.
type resettableTimer struct {
	t *time.Timer
	C <-chan time.Time
}

func newStoppedTimer() *resettableTimer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return &resettableTimer{t: t, C: t.C}
}

func (r *resettableTimer) Reset(d time.Duration) {
	r.Stop()
	r.t.Reset(d)
}

func (r *resettableTimer) Stop() {
	if !r.t.Stop() {
		select {
		case <-r.t.C:
		default:
		}
	}
}
