package dispatch

import (
	"time"
	"unicode/utf8"
)

// TimeoutPolicy bounds how long one acceptance call may stay unanswered.
type TimeoutPolicy struct {
	CharsPerSecond int           // Narration speed of the ARS voice
	NarrationMin   time.Duration // Lower bound of the narration estimate
	NarrationMax   time.Duration // Upper bound of the narration estimate
	ResponseWindow time.Duration // Time left to press a digit after narration
	Min            time.Duration
	Max            time.Duration
}

// DefaultTimeoutPolicy returns the production policy: narration read at about
// three characters per second, clamped to [30s, 90s], plus a 60s response
// window, clamped to [90s, 180s].
func DefaultTimeoutPolicy() TimeoutPolicy {
	return TimeoutPolicy{
		CharsPerSecond: 3,
		NarrationMin:   30 * time.Second,
		NarrationMax:   90 * time.Second,
		ResponseWindow: 60 * time.Second,
		Min:            90 * time.Second,
		Max:            180 * time.Second,
	}
}

// EstimateNarration returns how long the ARS takes to read the narration aloud.
func EstimateNarration(narration string, p TimeoutPolicy) time.Duration {
	cps := p.CharsPerSecond
	if cps <= 0 {
		cps = 1
	}
	chars := utf8.RuneCountInString(narration)
	seconds := (chars + cps - 1) / cps
	return clamp(time.Duration(seconds)*time.Second, p.NarrationMin, p.NarrationMax)
}

// ResponseTimeout returns the bounded timeout for one acceptance call.
// This is a pure function: clamp(narration + window, Min, Max).
func ResponseTimeout(narration string, p TimeoutPolicy) time.Duration {
	return clamp(EstimateNarration(narration, p)+p.ResponseWindow, p.Min, p.Max)
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if hi > 0 && d > hi {
		d = hi
	}
	if d < lo {
		d = lo
	}
	return d
}
