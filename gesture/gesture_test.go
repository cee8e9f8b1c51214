package gesture

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestClassifyBoundaries(t *testing.T) {
	bold, long := 300*time.Millisecond, 2*time.Second
	tests := []struct {
		elapsed time.Duration
		want    Class
	}{
		{0, Short},
		{bold - time.Nanosecond, Short},
		{bold, Bold},
		{bold + time.Nanosecond, Bold},
		{long - time.Nanosecond, Bold},
		{long, Long},
		{time.Hour, Long},
	}
	for _, tt := range tests {
		if got := Classify(tt.elapsed, bold, long); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.elapsed, got, tt.want)
		}
	}
}

func TestClassifyExhaustive(t *testing.T) {
	bold, long := 30*time.Millisecond, 200*time.Millisecond
	for d := time.Duration(0); d < 300*time.Millisecond; d += time.Millisecond {
		got := Classify(d, bold, long)
		var want Class
		switch {
		case d < bold:
			want = Short
		case d < long:
			want = Bold
		default:
			want = Long
		}
		if got != want {
			t.Fatalf("Classify(%v) = %v, want %v", d, got, want)
		}
	}
}

type classLog struct {
	mu  sync.Mutex
	got []Class
}

func (l *classLog) add(id int, c Class) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, c)
}

func (l *classLog) snapshot() []Class {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Class(nil), l.got...)
}

func TestPressShortExactlyOnce(t *testing.T) {
	var log classLog
	p := NewPressTimer(100*time.Millisecond, 300*time.Millisecond, 5*time.Millisecond, log.add)
	p.Start(context.Background())
	defer p.Stop()

	for id := 0; id < 8; id++ {
		p.Pressed(id, time.Now())
		c, ok := p.Released(id)
		if !ok || c != Short {
			t.Fatalf("button %d: got %v %v, want short", id, c, ok)
		}
	}
	time.Sleep(400 * time.Millisecond)

	got := log.snapshot()
	if len(got) != 8 {
		t.Fatalf("got %d classifications, want 8: %v", len(got), got)
	}
	for _, c := range got {
		if c != Short {
			t.Errorf("unexpected %v", c)
		}
	}
}

func TestPressBold(t *testing.T) {
	var log classLog
	p := NewPressTimer(50*time.Millisecond, time.Second, 5*time.Millisecond, log.add)
	p.Start(context.Background())
	defer p.Stop()

	p.Pressed(1, time.Now().Add(-100*time.Millisecond))
	if c, _ := p.Released(1); c != Bold {
		t.Errorf("got %v, want bold", c)
	}
}

func TestPressLongFiredByScanner(t *testing.T) {
	var log classLog
	p := NewPressTimer(20*time.Millisecond, 80*time.Millisecond, 5*time.Millisecond, log.add)
	p.Start(context.Background())
	defer p.Stop()

	p.Pressed(7, time.Now())
	deadline := time.Now().Add(time.Second)
	for len(log.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := log.snapshot(); len(got) != 1 || got[0] != Long {
		t.Fatalf("got %v, want [long]", got)
	}
	if p.Held(7) {
		t.Error("record kept after long expiry")
	}

	// release after expiry resolves nothing
	if _, ok := p.Released(7); ok {
		t.Error("release after long produced a classification")
	}
	time.Sleep(50 * time.Millisecond)
	if got := log.snapshot(); len(got) != 1 {
		t.Errorf("got %d classifications, want 1", len(got))
	}
}

func TestReleaseWithoutPress(t *testing.T) {
	p := NewPressTimer(0, 0, 0, nil)
	if _, ok := p.Released(3); ok {
		t.Error("release without press should not classify")
	}
}

func TestSchedulerOneShot(t *testing.T) {
	s := NewScheduler("test", OneShot, 5*time.Millisecond)
	s.Start(context.Background())
	defer s.Stop()

	fired := make(chan string, 4)
	s.Add("a", 10*time.Millisecond, func() { fired <- "a" })
	s.Add("a", 20*time.Millisecond, func() { fired <- "a2" })
	if s.Len() != 1 {
		t.Fatalf("re-adding a name should replace, have %d actions", s.Len())
	}

	select {
	case name := <-fired:
		if name != "a2" {
			t.Errorf("fired %q, want a2", name)
		}
	case <-time.After(time.Second):
		t.Fatal("action did not fire")
	}
	time.Sleep(50 * time.Millisecond)
	if s.Has("a") || len(fired) != 0 {
		t.Error("one-shot action fired twice or was kept")
	}
}

func TestSchedulerRemoveAndUpdate(t *testing.T) {
	s := NewScheduler("test", OneShot, 5*time.Millisecond)
	s.Start(context.Background())
	defer s.Stop()

	fired := make(chan string, 4)
	s.Add("gone", 30*time.Millisecond, func() { fired <- "gone" })
	s.Add("later", time.Hour, func() { fired <- "later" })
	if !s.Remove("gone") {
		t.Fatal("Remove returned false for pending action")
	}
	if s.Remove("gone") {
		t.Error("second Remove returned true")
	}
	if !s.Update("later", 10*time.Millisecond) {
		t.Fatal("Update returned false for pending action")
	}
	if s.Update("missing", time.Millisecond) {
		t.Error("Update of missing action returned true")
	}

	select {
	case name := <-fired:
		if name != "later" {
			t.Errorf("fired %q", name)
		}
	case <-time.After(time.Second):
		t.Fatal("updated action did not fire")
	}
}

func TestSchedulerInterval(t *testing.T) {
	s := NewScheduler("blink", Interval, 5*time.Millisecond)
	s.Start(context.Background())
	defer s.Stop()

	var mu sync.Mutex
	n := 0
	s.Add("tick", 10*time.Millisecond, func() {
		mu.Lock()
		n++
		mu.Unlock()
	})
	time.Sleep(120 * time.Millisecond)
	s.Remove("tick")

	mu.Lock()
	defer mu.Unlock()
	if n < 3 {
		t.Errorf("interval fired %d times, want several", n)
	}
}

func TestSchedulerPanicIsolated(t *testing.T) {
	s := NewScheduler("test", OneShot, 5*time.Millisecond)
	s.Start(context.Background())
	defer s.Stop()

	ok := make(chan struct{})
	s.Add("bad", time.Millisecond, func() { panic("boom") })
	s.Add("good", 20*time.Millisecond, func() { close(ok) })

	select {
	case <-ok:
	case <-time.After(time.Second):
		t.Fatal("worker died after a panicking action")
	}
}
