package room

import (
	"time"

	"go.uber.org/zap"
)

// armTimer replaces the pending turn timeout. The callback only posts the
// generation it was armed with; the loop decides whether it is still current.
func (r *Room) armTimer() {
	r.stopTimer()
	gen := r.timerGen
	r.timer = r.clock.AfterFunc(r.turnLimit, func() {
		select {
		case r.inbox <- timerFired{gen: gen}:
		case <-r.ctx.Done():
		}
	})
	r.log.Debug("timer_armed", zap.Uint64("gen", gen), zap.Duration("limit", r.turnLimit))
}

// stopTimer cancels the pending timeout, if any, and bumps the generation so
// a callback that already fired is recognised as stale.
func (r *Room) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.timerGen++
}

// Remaining reports how much of the turn limit is left at serverTime.
func Remaining(limit time.Duration, turnStartedAt, serverTime int64) time.Duration {
	left := limit - time.Duration(serverTime-turnStartedAt)*time.Millisecond
	if left < 0 {
		return 0
	}
	return left
}
