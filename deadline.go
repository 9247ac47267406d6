package uart

import "time"

// forever stands in for an infinite timeout. Longer timeouts are clamped
// to it.
const forever = 365 * 24 * time.Hour

// deadlineFor returns the absolute deadline of an operation started at now.
// A negative timeout never expires in practice.
func deadlineFor(now time.Time, timeout time.Duration) time.Time {
	if timeout < 0 || timeout > forever {
		return now.Add(forever)
	}
	return now.Add(timeout)
}

// remaining returns how long the loop may sleep before deadline. It is 0
// only once the deadline has passed.
func remaining(now, deadline time.Time) time.Duration {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return min(d, forever)
}

func expired(now, deadline time.Time) bool {
	return !now.Before(deadline)
}

// earliest folds d into the running minimum cur, where -1 means none yet.
func earliest(cur, d time.Duration) time.Duration {
	if cur < 0 || d < cur {
		return d
	}
	return cur
}
