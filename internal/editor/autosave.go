package editor

import (
	"time"
)

// DefaultAutosaveDelay is the quiescence window after the last edit.
const DefaultAutosaveDelay = 2000 * time.Millisecond

// Timer is a pending autosave.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules fn after d. time.AfterFunc is the default.
type AfterFunc func(d time.Duration, fn func()) Timer

func realAfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// scheduleLocked restarts the debounce. c.mu must be held.
func (c *Controller) scheduleLocked() {
	c.cancelAutosaveLocked()
	seq := c.editSeq
	c.timer = c.afterFunc(c.delay, func() { c.autosave(seq) })
}

// cancelAutosaveLocked stops the pending timer. Bumping the generation makes
// a callback that already fired and is waiting for the operation lock a
// no-op. c.mu must be held.
func (c *Controller) cancelAutosaveLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.editSeq++
}

func (c *Controller) autosave(seq uint64) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed || seq != c.editSeq || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	c.log.Debug("autosave fired")
	_ = c.saveLocked(c.ctx)
}
