package storage

import (
	"sync/atomic"
	"time"
)

var lastTimestamp atomic.Int64

// NextTimestamp returns the current unix time in milliseconds, bumped so
// that every call in this process returns a strictly greater value.
func NextTimestamp() int64 {
	for {
		now := time.Now().UnixMilli()
		last := lastTimestamp.Load()
		if now <= last {
			now = last + 1
		}
		if lastTimestamp.CompareAndSwap(last, now) {
			return now
		}
	}
}
