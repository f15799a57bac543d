package hotkey

import (
	"sync"
	"time"
)

// Hybrid layers tap-to-toggle and hold-to-talk on the same key. A
// press always starts recording; releasing before the long-press
// threshold leaves recording toggled on until the next press, holding
// past it stops on release.
type Hybrid struct {
	startCh chan struct{}
	stopCh  chan struct{}

	mu     sync.Mutex
	toggle bool
}

// NewHybrid wraps hk. longPress is the hold duration that separates a
// tap from push-to-talk.
func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		startCh: make(chan struct{}, 1),
		stopCh:  make(chan struct{}, 1),
	}
	go h.run(hk, longPress)
	return h
}

// Start signals when a recording should begin.
func (h *Hybrid) Start() <-chan struct{} { return h.startCh }

// StopChan signals when a recording should end, for both tap and hold.
func (h *Hybrid) StopChan() <-chan struct{} { return h.stopCh }

// IsToggle reports whether the current recording was started by a tap
// and is waiting for a second press to stop.
func (h *Hybrid) IsToggle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.toggle
}

func (h *Hybrid) setToggle(v bool) {
	h.mu.Lock()
	h.toggle = v
	h.mu.Unlock()
}

func (h *Hybrid) emitStop() {
	select {
	case h.stopCh <- struct{}{}:
	default:
	}
}

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	for {
		<-hk.Keydown()
		h.setToggle(false)
		h.startCh <- struct{}{}

		timer := time.NewTimer(longPress)
		select {
		case <-timer.C:
			// Held past the threshold: push-to-talk, stop on release.
			<-hk.Keyup()
			h.emitStop()
		case <-hk.Keyup():
			// Tap: toggled on, next press+release stops.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			h.setToggle(true)
			<-hk.Keydown()
			<-hk.Keyup()
			h.setToggle(false)
			h.emitStop()
		}
	}
}
