package scheduler

import "golang.org/x/time/rate"

// acceptLimiter bounds how fast new connections may register, the same
// "N events per minute" gate the teacher's ats/watcher/engine.go builds with
// golang.org/x/time/rate (rate.NewLimiter(rate.Limit(maxPerMinute/60.0), 1)
// for MaxFiresPerMinute), adapted from bounding watcher fires to bounding
// accepts against a misbehaving container that churns connections instead
// of reusing one.
//
// It never throttles REQ_LOCK or LOCK_RELEASED from an already-registered
// client — only brand new accepts. Unlike the teacher's watcher rate
// (where a zero MaxFiresPerMinute deliberately means zero fires allowed),
// a zero MaxAcceptsPerMinute here means the guard is disabled, matching
// the pre-existing Config.MaxAcceptsPerMinute "0 disables it" contract.
type acceptLimiter struct {
	limiter *rate.Limiter
}

func newAcceptLimiter(maxPerMinute int) *acceptLimiter {
	if maxPerMinute <= 0 {
		return &acceptLimiter{}
	}
	return &acceptLimiter{limiter: rate.NewLimiter(rate.Limit(float64(maxPerMinute)/60.0), 1)}
}

// Allow reports whether a new accept is permitted right now, consuming a
// token if so.
func (l *acceptLimiter) Allow() bool {
	if l == nil || l.limiter == nil {
		return true
	}
	return l.limiter.Allow()
}
