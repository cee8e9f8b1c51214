package gesture

import (
	"context"
	"strconv"
	"sync"
	"time"

	logger "go-ctrldev/debug"
)

// Class is the result of a press/release cycle
type Class int

const (
	Short Class = iota
	Bold
	Long
)

func (c Class) String() string {
	switch c {
	case Short:
		return "short"
	case Bold:
		return "bold"
	case Long:
		return "long"
	}
	return "Class(" + strconv.Itoa(int(c)) + ")"
}

const (
	DefaultBold = 300 * time.Millisecond
	DefaultLong = 2 * time.Second
	DefaultPoll = 100 * time.Millisecond
)

// Classify maps a press duration to its class. A duration equal to a
// threshold belongs to the longer class.
func Classify(elapsed, bold, long time.Duration) Class {
	table := [...]struct {
		from  time.Duration
		class Class
	}{
		{long, Long},
		{bold, Bold},
		{0, Short},
	}
	for _, row := range table {
		if elapsed >= row.from {
			return row.class
		}
	}
	return Short
}

type record struct {
	at  time.Time
	seq uint64
}

// PressTimer classifies button presses. Held buttons are resolved as Long by
// the background scheduler without waiting for the release.
type PressTimer struct {
	bold, long time.Duration
	callback   func(id int, c Class)

	mu      sync.Mutex
	records map[int]record
	seq     uint64
	now     func() time.Time

	expiry *Scheduler
}

// NewPressTimer creates a classifier. Zero thresholds use the defaults.
func NewPressTimer(bold, long, poll time.Duration, callback func(id int, c Class)) *PressTimer {
	if bold <= 0 {
		bold = DefaultBold
	}
	if long <= 0 {
		long = DefaultLong
	}
	if long < bold {
		long = bold
	}
	return &PressTimer{
		bold:     bold,
		long:     long,
		callback: callback,
		records:  make(map[int]record),
		now:      time.Now,
		expiry:   NewScheduler("press", OneShot, poll),
	}
}

// Start launches the long-press scanner
func (p *PressTimer) Start(ctx context.Context) {
	p.expiry.Start(ctx)
}

// Stop ends the scanner. Held buttons are forgotten.
func (p *PressTimer) Stop() {
	p.expiry.Stop()
	p.mu.Lock()
	for id := range p.records {
		p.expiry.Remove(actionName(id))
	}
	p.records = make(map[int]record)
	p.mu.Unlock()
}

func actionName(id int) string {
	return "press:" + strconv.Itoa(id)
}

// Pressed records a press of id at t. A second press before release restarts
// the gesture.
func (p *PressTimer) Pressed(id int, t time.Time) {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.records[id] = record{at: t, seq: seq}
	remaining := p.long - p.now().Sub(t)
	p.mu.Unlock()

	if remaining < 0 {
		remaining = 0
	}
	p.expiry.Add(actionName(id), remaining, func() { p.expire(id, seq) })
}

// Released resolves the gesture of id. Returns false when there is no
// pending press (never pressed, or already resolved as Long).
func (p *PressTimer) Released(id int) (Class, bool) {
	p.mu.Lock()
	rec, ok := p.records[id]
	if ok {
		delete(p.records, id)
	}
	elapsed := p.now().Sub(rec.at)
	p.mu.Unlock()

	if !ok {
		return Short, false
	}
	p.expiry.Remove(actionName(id))
	c := Classify(elapsed, p.bold, p.long)
	p.fire(id, c)
	return c, true
}

// Held reports whether id has an unresolved press
func (p *PressTimer) Held(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.records[id]
	return ok
}

func (p *PressTimer) expire(id int, seq uint64) {
	p.mu.Lock()
	rec, ok := p.records[id]
	if !ok || rec.seq != seq {
		p.mu.Unlock()
		return
	}
	delete(p.records, id)
	p.mu.Unlock()

	p.fire(id, Long)
}

func (p *PressTimer) fire(id int, c Class) {
	if p.callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("gesture", logger.Recovered(r, "press callback"), "press callback id=%d class=%v", id, c)
		}
	}()
	p.callback(id, c)
}
