// Package knob turns relative encoder deltas into stepped movement.
package knob

import "sync"

const (
	DefaultSteps      = 3
	DefaultShiftSteps = 8
)

// Decode converts a relative encoder value: 1..63 is +v, 64..127 is -(128-v)
func Decode(raw uint8) int {
	raw &= 0x7F
	if raw < 64 {
		return int(raw)
	}
	return -(128 - int(raw))
}

// Filter accumulates deltas per control and emits a step once enough
// movement in one direction has been seen.
type Filter struct {
	Steps      int
	ShiftSteps int

	mu       sync.Mutex
	counters map[int]int
}

// NewFilter creates a filter. Non-positive values use the defaults.
func NewFilter(steps, shiftSteps int) *Filter {
	if steps <= 0 {
		steps = DefaultSteps
	}
	if shiftSteps <= 0 {
		shiftSteps = DefaultShiftSteps
	}
	return &Filter{Steps: steps, ShiftSteps: shiftSteps, counters: make(map[int]int)}
}

// Feed adds one raw value for control id. It returns the triggering delta
// and true when a step fires.
func (f *Filter) Feed(id int, raw uint8, shifted bool) (int, bool) {
	steps := f.Steps
	if shifted {
		steps = f.ShiftSteps
	}
	return f.FeedSteps(id, raw, steps)
}

// FeedSteps is Feed with a caller supplied threshold
func (f *Filter) FeedSteps(id int, raw uint8, steps int) (int, bool) {
	delta := Decode(raw)
	if delta == 0 {
		return 0, false
	}
	if steps < 1 {
		steps = 1
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	count := f.counters[id]
	if (count > 0 && delta < 0) || (count < 0 && delta > 0) {
		count = 0
	}
	count += delta
	if abs(count) >= steps {
		f.counters[id] = 0
		return delta, true
	}
	f.counters[id] = count
	return 0, false
}

// Reset clears all counters
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = make(map[int]int)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
