package tui

import (
	"sync"
	"time"

	"go-ctrldev/bus"
	"go-ctrldev/midi"
)

// Mirrors keeps the LED mirror of every bound output. Its Wrap method is
// the registry's output wrapper.
type Mirrors struct {
	mu     sync.RWMutex
	byPort map[int]*midi.Mirror
}

func NewMirrors() *Mirrors {
	return &Mirrors{byPort: make(map[int]*midi.Mirror)}
}

// Wrap mirrors out for port
func (m *Mirrors) Wrap(port int, name string, out midi.Output) midi.Output {
	mirror := midi.NewMirror(out)
	m.mu.Lock()
	m.byPort[port] = mirror
	m.mu.Unlock()
	return mirror
}

// Get returns the mirror of port, nil when none was made
func (m *Mirrors) Get(port int) *midi.Mirror {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byPort[port]
}

// LoggedEvent is a bus event with its arrival time
type LoggedEvent struct {
	At    time.Time
	Event bus.Event
}

// EventLog keeps the most recent bus events. Its Tap method is installed
// with bus.SetTap.
type EventLog struct {
	mu     sync.Mutex
	size   int
	events []LoggedEvent
	total  int
}

func NewEventLog(size int) *EventLog {
	if size <= 0 {
		size = 64
	}
	return &EventLog{size: size}
}

// Tap records one event
func (l *EventLog) Tap(ev bus.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, LoggedEvent{At: time.Now(), Event: ev})
	if len(l.events) > l.size {
		l.events = l.events[len(l.events)-l.size:]
	}
	l.total++
}

// Recent returns up to n events, newest last
func (l *EventLog) Recent(n int) []LoggedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.events) {
		n = len(l.events)
	}
	return append([]LoggedEvent(nil), l.events[len(l.events)-n:]...)
}

// Total counts every event seen
func (l *EventLog) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
