// Package tracker counts live worker goroutines.
package tracker

import "sync/atomic"

// Tracker is a goroutine-safe gauge of running workers that also keeps
// the highest value seen since the last ResetPeak.
type Tracker struct {
	live atomic.Int64
	peak atomic.Int64
}

// Inc records a worker goroutine that has been launched.
func (t *Tracker) Inc() {
	n := t.live.Add(1)
	for {
		p := t.peak.Load()
		if n <= p || t.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

// Dec records a worker goroutine that has exited.
func (t *Tracker) Dec() { t.live.Add(-1) }

// Running returns the number of worker goroutines still alive.
func (t *Tracker) Running() int64 { return t.live.Load() }

// Peak returns the most goroutines that were alive at once.
func (t *Tracker) Peak() int64 { return t.peak.Load() }

// ResetPeak lowers the high-water mark to the current live count.
func (t *Tracker) ResetPeak() { t.peak.Store(t.live.Load()) }
