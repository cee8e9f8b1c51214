// Package gesture holds the timer primitives used by drivers: a named action
// scheduler (one-shot or interval) and a press/release classifier built on it.
package gesture

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	logger "go-ctrldev/debug"
)

// Policy decides what happens to an action after it fires
type Policy int

const (
	OneShot  Policy = iota // removed after firing
	Interval               // re-armed with its period
)

type action struct {
	period   time.Duration
	deadline time.Time
	fn       func()
}

// Scheduler runs named actions after a delay. Names are unique: adding an
// existing name replaces its delay and callback.
type Scheduler struct {
	name   string
	policy Policy
	poll   time.Duration

	mu      sync.Mutex
	actions map[string]*action
	wake    chan struct{}
	now     func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a stopped scheduler. poll bounds how long the worker
// sleeps between checks.
func NewScheduler(name string, policy Policy, poll time.Duration) *Scheduler {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &Scheduler{
		name:    name,
		policy:  policy,
		poll:    poll,
		actions: make(map[string]*action),
		wake:    make(chan struct{}, 1),
		now:     time.Now,
	}
}

// interrupt wakes the worker without blocking
func (s *Scheduler) interrupt() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Add schedules fn to run after d (or every d for Interval schedulers)
func (s *Scheduler) Add(name string, d time.Duration, fn func()) {
	s.mu.Lock()
	s.actions[name] = &action{period: d, deadline: s.now().Add(d), fn: fn}
	s.mu.Unlock()
	s.interrupt()
}

// Update changes the delay of a pending action, counting from now
func (s *Scheduler) Update(name string, d time.Duration) bool {
	s.mu.Lock()
	a, ok := s.actions[name]
	if ok {
		a.period = d
		a.deadline = s.now().Add(d)
	}
	s.mu.Unlock()
	if ok {
		s.interrupt()
	}
	return ok
}

// Remove cancels a pending action
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.actions[name]
	delete(s.actions, name)
	return ok
}

// Has reports whether name is pending
func (s *Scheduler) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.actions[name]
	return ok
}

// Len is the number of pending actions
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}

// Start launches the worker goroutine
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.run(ctx, done)
}

// Stop ends the worker and waits for it. Pending actions are kept.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(s.poll)
	defer timer.Stop()

	for {
		s.fireDue()

		wait := s.nextWait()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// nextWait is the time until the earliest deadline, capped at the poll tick
func (s *Scheduler) nextWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	wait := s.poll
	now := s.now()
	for _, a := range s.actions {
		if d := a.deadline.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

func (s *Scheduler) fireDue() {
	s.mu.Lock()
	now := s.now()
	var due []func()
	var names []string
	for name, a := range s.actions {
		if now.Before(a.deadline) {
			continue
		}
		due = append(due, a.fn)
		names = append(names, name)
		if s.policy == Interval && a.period > 0 {
			a.deadline = a.deadline.Add(a.period)
			if a.deadline.Before(now) {
				a.deadline = now.Add(a.period)
			}
		} else {
			delete(s.actions, name)
		}
	}
	s.mu.Unlock()

	for i, fn := range due {
		s.call(names[i], fn)
	}
}

func (s *Scheduler) call(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("gesture", logger.Recovered(r, "scheduled action"), "%s: action %q failed\n%s", s.name, name, debug.Stack())
		}
	}()
	fn()
}
