// Package counter provides the shared highway distance counter.
//
// The counter keeps two independent totals. The unsynchronized total is
// updated with a plain read, pause, write sequence and loses updates when
// writers overlap. The synchronized total is updated under a mutex and
// never does. The active mode decides which total new increments target
// and which one Distance reports.
package counter

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliamunaev/highway-simulator/internal/apperr"
)

// Mode selects the increment strategy.
type Mode int32

const (
	Unsynchronized Mode = iota
	Synchronized
)

func (m Mode) String() string {
	switch m {
	case Unsynchronized:
		return "unsynchronized"
	case Synchronized:
		return "synchronized"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}

// ParseMode accepts "unsynchronized"/"unsync" and "synchronized"/"sync",
// case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unsynchronized", "unsync":
		return Unsynchronized, nil
	case "synchronized", "sync":
		return Synchronized, nil
	default:
		return 0, fmt.Errorf("parse mode %q: %w", s, apperr.ErrInvalidMode)
	}
}

// Values holds both totals at one point in time.
type Values struct {
	Unsynchronized int64
	Synchronized   int64
}

// Counter is the shared distance counter. The zero value is not usable;
// construct it with New.
type Counter struct {
	mode atomic.Int32

	// unsync is accessed with atomic loads and stores so the program
	// stays clean under the race detector. The Load/Store pair is still
	// not atomic as a whole, which is what loses updates.
	unsync atomic.Int64

	mu   sync.Mutex
	sync int64

	delay time.Duration
}

// New creates a counter in Unsynchronized mode with both totals at zero.
// delay is the pause inserted between the read and the write of the
// unsynchronized path; zero yields the processor instead of sleeping.
func New(delay time.Duration) *Counter {
	if delay < 0 {
		delay = 0
	}
	return &Counter{delay: delay}
}

// Increment adds distance to the total selected by the current mode.
// distance must be non-negative.
func (c *Counter) Increment(distance int64) {
	if Mode(c.mode.Load()) == Synchronized {
		c.incrementLocked(distance)
		return
	}
	c.incrementUnsynchronized(distance)
}

func (c *Counter) incrementUnsynchronized(distance int64) {
	current := c.unsync.Load()
	c.pause()
	c.unsync.Store(current + distance)
}

func (c *Counter) incrementLocked(distance int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync += distance
}

func (c *Counter) pause() {
	if c.delay <= 0 {
		runtime.Gosched()
		return
	}
	time.Sleep(c.delay)
}

// SetMode switches the active total. The totals are not merged.
func (c *Counter) SetMode(m Mode) {
	c.mode.Store(int32(m))
}

// Mode returns the active mode.
func (c *Counter) Mode() Mode {
	return Mode(c.mode.Load())
}

// Distance returns the total for the active mode.
func (c *Counter) Distance() int64 {
	if c.Mode() == Synchronized {
		return c.synchronized()
	}
	return c.unsync.Load()
}

// Values returns both totals regardless of mode.
func (c *Counter) Values() Values {
	return Values{
		Unsynchronized: c.unsync.Load(),
		Synchronized:   c.synchronized(),
	}
}

func (c *Counter) synchronized() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sync
}

// Reset zeroes both totals. It is meant to be called between runs, when
// no worker is incrementing.
func (c *Counter) Reset() {
	c.unsync.Store(0)
	c.mu.Lock()
	c.sync = 0
	c.mu.Unlock()
}
