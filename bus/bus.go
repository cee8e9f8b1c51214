// Package bus is the publish/subscribe event bus between drivers and the
// rest of the application.
package bus

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"

	logger "go-ctrldev/debug"
)

// Args carries the named arguments of an event
type Args map[string]any

// Int returns an integer argument, or def
func (a Args) Int(name string, def int) int {
	switch v := a[name].(type) {
	case int:
		return v
	case uint8:
		return int(v)
	case int64:
		return int(v)
	}
	return def
}

// String returns a string argument, or ""
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Event is what subscribers receive
type Event struct {
	Signal    Signal
	Subsignal Subsignal
	Args      Args
}

func (e Event) String() string {
	return fmt.Sprintf("%v/%d %v", e.Signal, e.Subsignal, e.Args)
}

// Callback handles one event
type Callback func(Event)

type subscription struct {
	key    any
	fn     Callback
	queued bool
}

type delivery struct {
	ev Event
	fn Callback
}

// Bus holds subscriptions in a (signal, subsignal) table. Indices outside
// the table are ignored. Synchronous subscribers run on the sender's
// goroutine in registration order; queued ones run one at a time on the
// bus worker in submission order.
type Bus struct {
	signals, subsignals int

	mu    sync.RWMutex
	table [][][]subscription

	qmu     sync.Mutex
	queue   []delivery
	wake    chan struct{}
	closing bool
	started bool
	done    chan struct{}

	// Tap sees every event sent (monitor)
	tap func(Event)
}

// New creates a bus sized for the signal catalogue
func New() *Bus {
	return NewSized(int(NumSignals), NumSubsignals)
}

// NewSized creates a bus with explicit table bounds
func NewSized(signals, subsignals int) *Bus {
	b := &Bus{
		signals:    signals,
		subsignals: subsignals,
		table:      make([][][]subscription, signals),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for i := range b.table {
		b.table[i] = make([][]subscription, subsignals)
	}
	return b
}

func (b *Bus) inBounds(sig Signal, sub Subsignal) bool {
	return sig >= 0 && int(sig) < b.signals && sub >= 0 && int(sub) < b.subsignals
}

// SetTap installs a function called with every sent event
func (b *Bus) SetTap(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tap = fn
}

// Keys identify subscribers and must be comparable values (pointers,
// strings, ints). Subscriptions under any other key are refused.
func comparableKey(key any) bool {
	return key != nil && reflect.ValueOf(key).Comparable()
}

// Register subscribes fn under key for synchronous delivery
func (b *Bus) Register(key any, sig Signal, sub Subsignal, fn Callback) {
	b.register(key, sig, sub, fn, false)
}

// RegisterQueued subscribes fn under key for delivery on the bus worker
func (b *Bus) RegisterQueued(key any, sig Signal, sub Subsignal, fn Callback) {
	b.register(key, sig, sub, fn, true)
}

func (b *Bus) register(key any, sig Signal, sub Subsignal, fn Callback, queued bool) {
	if fn == nil || !b.inBounds(sig, sub) {
		return
	}
	if !comparableKey(key) {
		logger.Warn("bus", "refused subscription under uncomparable key %T", key)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.table[sig][sub] = append(b.table[sig][sub], subscription{key: key, fn: fn, queued: queued})
}

// Unregister removes key's subscriptions on (sig, sub)
func (b *Bus) Unregister(key any, sig Signal, sub Subsignal) {
	if !b.inBounds(sig, sub) || !comparableKey(key) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.table[sig][sub] = without(b.table[sig][sub], key)
}

// UnregisterAll removes every subscription of key
func (b *Bus) UnregisterAll(key any) {
	if !comparableKey(key) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for sig := range b.table {
		for sub := range b.table[sig] {
			b.table[sig][sub] = without(b.table[sig][sub], key)
		}
	}
}

func without(subs []subscription, key any) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.key != key {
			out = append(out, s)
		}
	}
	return out
}

// Subscribers is the number of subscriptions on (sig, sub)
func (b *Bus) Subscribers(sig Signal, sub Subsignal) int {
	if !b.inBounds(sig, sub) {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.table[sig][sub])
}

func (b *Bus) snapshot(sig Signal, sub Subsignal) ([]subscription, func(Event)) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]subscription(nil), b.table[sig][sub]...), b.tap
}

// Send delivers an event
func (b *Bus) Send(sig Signal, sub Subsignal, args Args) {
	b.send(sig, sub, args, false)
}

// SendQueued delivers an event to every subscriber through the worker
func (b *Bus) SendQueued(sig Signal, sub Subsignal, args Args) {
	b.send(sig, sub, args, true)
}

func (b *Bus) send(sig Signal, sub Subsignal, args Args, allQueued bool) {
	if !b.inBounds(sig, sub) {
		return
	}
	ev := Event{Signal: sig, Subsignal: sub, Args: args}
	subs, tap := b.snapshot(sig, sub)
	if tap != nil {
		tap(ev)
	}

	var later []delivery
	for _, s := range subs {
		if allQueued || s.queued {
			later = append(later, delivery{ev: ev, fn: s.fn})
			continue
		}
		call(ev, s.fn)
	}
	if len(later) > 0 {
		b.enqueue(later)
	}
}

func (b *Bus) enqueue(ds []delivery) {
	b.qmu.Lock()
	if b.closing {
		b.qmu.Unlock()
		logger.Warn("bus", "closed, dropped %d deliveries of %v", len(ds), ds[0].ev)
		return
	}
	b.queue = append(b.queue, ds...)
	b.qmu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Start launches the queue worker
func (b *Bus) Start() {
	b.qmu.Lock()
	defer b.qmu.Unlock()
	if b.started || b.closing {
		return
	}
	b.started = true
	go b.run()
}

// Close delivers everything already queued, then stops the worker
func (b *Bus) Close() {
	b.qmu.Lock()
	if b.closing {
		b.qmu.Unlock()
		return
	}
	b.closing = true
	started := b.started
	b.qmu.Unlock()

	if !started {
		return
	}
	select {
	case b.wake <- struct{}{}:
	default:
	}
	<-b.done
}

func (b *Bus) run() {
	defer close(b.done)
	for {
		b.qmu.Lock()
		batch := b.queue
		b.queue = nil
		closing := b.closing
		b.qmu.Unlock()

		for _, d := range batch {
			call(d.ev, d.fn)
		}
		if len(batch) > 0 {
			continue
		}
		if closing {
			return
		}
		<-b.wake
	}
}

func call(ev Event, fn Callback) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("bus", logger.Recovered(r, "bus callback"), "callback for %v/%d failed\n%s", ev.Signal, ev.Subsignal, debug.Stack())
		}
	}()
	fn(ev)
}
