package ctrldev

import (
	"sync"
	"testing"
	"time"

	"go-ctrldev/bus"
	"go-ctrldev/midi"
)

type testMode struct {
	ModeBase
	activations   int
	deactivations int
	notes         []uint8
	shiftChanges  []bool
	screens       []string
	received      []any
}

func newTestMode(name string) *testMode {
	return &testMode{ModeBase: NewModeBase(name)}
}

func (m *testMode) SetActive(active bool) {
	m.ModeBase.SetActive(active)
	if active {
		m.activations++
	} else {
		m.deactivations++
	}
}

func (m *testMode) NoteOn(channel, note, velocity uint8) bool {
	m.notes = append(m.notes, note)
	if note == 99 {
		m.Request(Request{Kind: RequestSetMode, Mode: 1})
	}
	if note == 98 {
		m.Request(Request{Kind: RequestDeliver, Mode: 1, Payload: "copy"})
	}
	return true
}

func (m *testMode) OnShiftChanged(shifted bool) {
	m.shiftChanges = append(m.shiftChanges, shifted)
}

func (m *testMode) OnScreenChange(screen string) {
	m.screens = append(m.screens, screen)
}

func (m *testMode) HandleRequest(from string, payload any) {
	m.received = append(m.received, payload)
}

const shiftNote = 98 + 20

func newTestDriver(b *bus.Bus) (*ModeDriver, *testMode, *testMode) {
	d := &ModeDriver{}
	d.Init("test", CapMixer, Deps{Bus: b, InPort: 1})
	d.IsShift = func(m midi.ShortMessage) (bool, bool) {
		if m.Data1 != shiftNote || (m.Kind() != midi.NoteOn && m.Kind() != midi.NoteOff) {
			return false, false
		}
		return m.IsNoteOn(), true
	}
	d.ModeSelect = func(msg midi.Message, shifted bool) (int, bool) {
		sm, ok := msg.(midi.ShortMessage)
		if !ok || sm.Kind() != midi.ProgramChange {
			return 0, false
		}
		return int(sm.Data1), true
	}
	a, b2 := newTestMode("a"), newTestMode("b")
	d.AddMode(a)
	d.AddMode(b2)
	return d, a, b2
}

func activeCount(modes ...*testMode) int {
	n := 0
	for _, m := range modes {
		if m.IsActive() {
			n++
		}
	}
	return n
}

func TestModeDriverLifecycle(t *testing.T) {
	d, a, b := newTestDriver(nil)

	if d.MidiEvent(midi.Short(midi.NoteOn, 0, 1, 100)) {
		t.Error("event consumed before Start")
	}
	d.Start()
	if !a.IsActive() || b.IsActive() || a.activations != 1 {
		t.Fatal("Start should activate mode 0 only")
	}

	d.MidiEvent(midi.Short(midi.NoteOn, 0, 10, 100))
	if len(a.notes) != 1 || len(b.notes) != 0 {
		t.Error("note not routed to active mode")
	}

	d.MidiEvent(midi.Short(midi.ProgramChange, 0, 1, 0))
	if a.IsActive() || !b.IsActive() || activeCount(a, b) != 1 {
		t.Fatal("mode select did not switch to b")
	}
	if a.deactivations != 1 || b.activations != 1 {
		t.Errorf("activation hooks a=%d/%d b=%d", a.activations, a.deactivations, b.activations)
	}

	// selecting the active mode again does nothing
	d.SetMode(1)
	d.SetMode(7)
	if b.activations != 1 {
		t.Error("re-selecting the active mode re-activated it")
	}

	d.End()
	if b.IsActive() {
		t.Error("End left a mode active")
	}
	if d.MidiEvent(midi.Short(midi.NoteOn, 0, 10, 100)) {
		t.Error("event consumed after End")
	}
	d.SetMode(0)
	if a.IsActive() {
		t.Error("SetMode applied after End")
	}
}

func TestModeDriverShift(t *testing.T) {
	d, a, b := newTestDriver(nil)
	d.Start()

	d.MidiEvent(midi.Short(midi.NoteOn, 0, shiftNote, 127))
	if !d.Shifted() || !a.IsShifted() || !b.IsShifted() {
		t.Fatal("shift not propagated to every mode")
	}
	if len(a.notes) != 0 {
		t.Error("shift button forwarded to mode")
	}
	d.MidiEvent(midi.Short(midi.NoteOn, 0, shiftNote, 127))
	d.MidiEvent(midi.Short(midi.NoteOff, 0, shiftNote, 0))
	if a.IsShifted() || len(a.shiftChanges) != 2 || len(b.shiftChanges) != 2 {
		t.Errorf("shift changes a=%v b=%v", a.shiftChanges, b.shiftChanges)
	}
}

func TestModeRequests(t *testing.T) {
	d, a, b := newTestDriver(nil)
	d.Start()

	d.MidiEvent(midi.Short(midi.NoteOn, 0, 98, 100))
	if len(b.received) != 1 || b.received[0] != "copy" {
		t.Errorf("delivered %v", b.received)
	}

	d.MidiEvent(midi.Short(midi.NoteOn, 0, 99, 100))
	if !b.IsActive() || a.IsActive() {
		t.Error("set mode request not applied")
	}
}

func TestModeRequestQueueBounded(t *testing.T) {
	m := newTestMode("lonely")
	if m.Request(Request{Kind: RequestRefresh}) {
		t.Error("unattached mode accepted a request")
	}

	d := &ModeDriver{}
	d.Init("test", 0, Deps{})
	d.AddMode(m)
	accepted := 0
	for i := 0; i < requestQueueLen+5; i++ {
		if m.Request(Request{Kind: RequestRefresh}) {
			accepted++
		}
	}
	if accepted != requestQueueLen {
		t.Errorf("accepted %d, want %d", accepted, requestQueueLen)
	}
}

func TestNoteOnZeroVelocityIsNoteOff(t *testing.T) {
	m := newTestMode("m")
	DispatchToMode(m, midi.Short(midi.NoteOn, 0, 5, 0))
	if len(m.notes) != 0 {
		t.Error("velocity 0 note on treated as note on")
	}
}

func TestScreenChangeFromBus(t *testing.T) {
	b := bus.New()
	b.Start()
	defer b.Close()

	d, a, _ := newTestDriver(b)
	d.Start()
	b.Send(bus.SignalGUI, bus.SubScreen, bus.Args{"screen": "mixer"})

	deadline := time.Now().Add(2 * time.Second)
	for a.Screen() != "mixer" && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if a.Screen() != "mixer" {
		t.Error("screen not recorded")
	}

	d.End()
	if b.Subscribers(bus.SignalGUI, bus.SubScreen) != 0 {
		t.Error("driver still subscribed after End")
	}
}

func TestConcurrentModeSwitchesKeepOneActive(t *testing.T) {
	d := &ModeDriver{}
	d.Init("test", CapMixer, Deps{InPort: 1})
	d.ModeSelect = func(msg midi.Message, shifted bool) (int, bool) {
		sm, ok := msg.(midi.ShortMessage)
		if !ok || sm.Kind() != midi.ProgramChange {
			return 0, false
		}
		return int(sm.Data1), true
	}
	modes := make([]*testMode, 4)
	for i := range modes {
		modes[i] = newTestMode(string(rune('a' + i)))
		d.AddMode(modes[i])
	}
	d.Start()

	for round := 0; round < 50; round++ {
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for k := 0; k < 20; k++ {
					target := (g + k + round) % len(modes)
					switch k % 3 {
					case 0:
						d.SetMode(target)
					case 1:
						d.MidiEvent(midi.Short(midi.ProgramChange, 0, uint8(target), 0))
					default:
						// a mode asks for the switch, the next dispatch drains it
						modes[g].Request(Request{Kind: RequestSetMode, Mode: target})
						d.MidiEvent(midi.Short(midi.CC, 0, 1, 1))
					}
				}
			}(g)
		}
		wg.Wait()

		if n := activeCount(modes...); n != 1 {
			t.Fatalf("round %d: %d modes active", round, n)
		}
		if !d.ActiveMode().ModeState().IsActive() {
			t.Fatalf("round %d: driver's active mode %s is not active", round, d.ActiveModeName())
		}
	}

	total := 0
	for _, m := range modes {
		total += m.activations - m.deactivations
	}
	if total != 1 {
		t.Errorf("activations minus deactivations = %d", total)
	}
}
