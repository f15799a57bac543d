package recorder

import "time"

const (
	silenceWarnAfter = 8 * time.Second
	windowDur        = 30 * time.Second

	// speechRMSThreshold separates voice from room noise on a
	// normalized RMS scale. Tuned against 16kHz mono laptop mics.
	speechRMSThreshold = 0.015

	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone  SilenceEvent = iota
	SilenceWarn               // no voice detected for a while
	SilenceClear              // speech resumed after a warning
)

// silenceMonitor watches per-tick speech flags and decides when to warn
// the user that the mic is picking up nothing. Hysteresis keeps the
// warning from flapping at the threshold.
type silenceMonitor struct {
	warnAt   int
	windowSz int

	ticks  int
	window []bool
	warned bool
}

func newSilenceMonitor() *silenceMonitor {
	return &silenceMonitor{
		warnAt:   int(silenceWarnAfter / tickInterval),
		windowSz: int(windowDur / tickInterval),
		window:   make([]bool, int(windowDur/tickInterval)),
	}
}

func (m *silenceMonitor) ratio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

// Tick records whether speech was heard since the last tick and returns
// the event the caller should surface, if any.
func (m *silenceMonitor) Tick(speech bool) SilenceEvent {
	m.window[m.ticks%m.windowSz] = speech
	m.ticks++

	if m.ticks < m.warnAt {
		return SilenceNone
	}

	recent := m.ratio(m.warnAt)
	if !m.warned {
		if recent < speechMinRatio {
			m.warned = true
			return SilenceWarn
		}
		return SilenceNone
	}
	if recent >= speechClearRatio {
		m.warned = false
		return SilenceClear
	}
	return SilenceNone
}
