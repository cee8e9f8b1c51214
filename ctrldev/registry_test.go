package ctrldev

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"go-ctrldev/bus"
	"go-ctrldev/config"
	"go-ctrldev/midi"
)

type fakeDriver struct {
	Base
	mu       sync.Mutex
	events   []midi.Message
	started  int
	ended    int
	refresh  int
	lightOff int
	state    map[string]any
}

func (d *fakeDriver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started++
}

func (d *fakeDriver) MidiEvent(msg midi.Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, msg)
	sm, ok := msg.(midi.ShortMessage)
	return ok && sm.IsNoteOn()
}

func (d *fakeDriver) Refresh() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refresh++
}

func (d *fakeDriver) LightOff() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lightOff++
}

func (d *fakeDriver) End() {
	d.mu.Lock()
	d.ended++
	d.mu.Unlock()
	d.Base.End()
}

func (d *fakeDriver) State() map[string]any {
	return map[string]any{"program": 4}
}

func (d *fakeDriver) SetState(s map[string]any) {
	d.state = s
}

type fakeFactory struct {
	mu    sync.Mutex
	built []*fakeDriver
}

func (ff *fakeFactory) factory(name string, ids ...string) Factory {
	return Factory{
		Name:       name,
		Identities: ids,
		Caps:       CapPadGrid,
		New: func(d Deps) (Driver, error) {
			drv := &fakeDriver{}
			drv.Init(name, CapPadGrid, d)
			ff.mu.Lock()
			ff.built = append(ff.built, drv)
			ff.mu.Unlock()
			return drv, nil
		},
	}
}

func (ff *fakeFactory) count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.built)
}

type fakePorts struct{ out *midi.Recorder }

func (p fakePorts) OpenOutput(inName string) (midi.Output, int, error) {
	return p.out, 3, nil
}

func TestBindTwiceCreatesOneInstance(t *testing.T) {
	var ff fakeFactory
	r := NewRegistry(RegistryOptions{})
	r.RegisterAvailable(ff.factory("xpad", "X Pad MK2"))

	if !r.Bind(1, "X Pad MK2 IN 1") {
		t.Fatal("first bind failed")
	}
	if r.Bind(1, "X Pad MK2 IN 1") {
		t.Error("second bind reported a new binding")
	}
	if ff.count() != 1 {
		t.Errorf("built %d drivers, want 1", ff.count())
	}
	if ff.built[0].started != 1 {
		t.Errorf("Start called %d times", ff.built[0].started)
	}
}

func TestUnbindUnboundIsNoop(t *testing.T) {
	r := NewRegistry(RegistryOptions{})
	r.Unbind(42)

	var ff fakeFactory
	r.RegisterAvailable(ff.factory("xpad", "X Pad"))
	r.Bind(1, "X Pad")
	r.Unbind(1)
	r.Unbind(1)
	if ff.built[0].ended != 1 {
		t.Errorf("End called %d times, want 1", ff.built[0].ended)
	}
	if _, ok := r.Driver(1); ok {
		t.Error("driver still bound")
	}
}

func TestMatch(t *testing.T) {
	var ff fakeFactory
	r := NewRegistry(RegistryOptions{})
	r.RegisterAvailable(
		ff.factory("generic", "Pad"),
		ff.factory("mk2", "X Pad MK2"),
		ff.factory("exact", "Launchpad Mini MK3 LPMiniMK3 MIDI Out"),
	)

	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"X Pad MK2 IN 1", "mk2", true},
		{"x pad mk2 in 1", "mk2", true},
		{"Some Pad", "generic", true},
		{"Launchpad Mini MK3 LPMiniMK3 MIDI Out", "exact", true},
		{"Keystation", "", false},
	}
	for _, tt := range tests {
		f, ok := r.Match(tt.name)
		if ok != tt.ok || f.Name != tt.want {
			t.Errorf("Match(%q) = %q %v, want %q %v", tt.name, f.Name, ok, tt.want, tt.ok)
		}
	}
}

func TestBindFailures(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AddController(config.ControllerConfig{PortName: "Off Pad", Enabled: false})

	r := NewRegistry(RegistryOptions{Config: cfg})
	r.RegisterAvailable(
		Factory{Name: "broken", Identities: []string{"Broken"}, New: func(Deps) (Driver, error) {
			return nil, errors.New("no device")
		}},
		Factory{Name: "panicky", Identities: []string{"Panicky"}, New: func(Deps) (Driver, error) {
			panic("constructor bug")
		}},
		Factory{Name: "nil", Identities: []string{"Nothing"}, New: func(Deps) (Driver, error) {
			return nil, nil
		}},
		(&fakeFactory{}).factory("pad", "Pad"),
	)

	for port, name := range map[int]string{1: "Broken", 2: "Panicky", 3: "Nothing", 4: "Off Pad", 5: "Unknown"} {
		if r.Bind(port, name) {
			t.Errorf("Bind(%q) succeeded", name)
		}
		if _, ok := r.Driver(port); ok {
			t.Errorf("%q left a driver bound", name)
		}
		if r.Dispatch(port, midi.Short(midi.NoteOn, 0, 1, 1)) {
			t.Errorf("%q: dispatch consumed with no driver", name)
		}
	}
	if len(r.Drivers()) != 0 {
		t.Errorf("drivers bound: %v", r.Drivers())
	}
}

func TestDispatchAndBroadcast(t *testing.T) {
	var ff fakeFactory
	rec := &midi.Recorder{}
	r := NewRegistry(RegistryOptions{Ports: fakePorts{out: rec}})
	r.RegisterAvailable(ff.factory("pad", "Pad"))
	r.Bind(1, "Pad A")
	r.Bind(2, "Pad B")

	if !r.Dispatch(1, midi.Short(midi.NoteOn, 0, 36, 100)) {
		t.Error("note on not consumed")
	}
	if r.Dispatch(1, midi.Short(midi.CC, 0, 1, 1)) {
		t.Error("cc should not be consumed")
	}
	if r.Dispatch(9, midi.Short(midi.NoteOn, 0, 36, 100)) {
		t.Error("dispatch to unbound port consumed")
	}
	if len(ff.built[0].events) != 2 || len(ff.built[1].events) != 0 {
		t.Error("events routed to the wrong driver")
	}
	if ff.built[0].OutPort != 3 || ff.built[0].Out != rec {
		t.Error("output not passed to driver")
	}

	r.Broadcast(OpRefresh)
	r.Broadcast(OpLightOff)
	r.Broadcast(OpSleepOn)
	for _, d := range ff.built {
		if d.refresh != 1 || d.lightOff != 1 || !d.Sleeping() {
			t.Errorf("broadcast not applied: %+v", d)
		}
	}
	r.Broadcast(OpSleepOff)
	if ff.built[0].Sleeping() || ff.built[0].refresh != 2 {
		t.Error("sleep off should wake and refresh")
	}

	infos := r.Drivers()
	if len(infos) != 2 || infos[0].Port != 1 || infos[1].PortName != "Pad B" || !infos[0].Feedback {
		t.Errorf("Drivers() = %+v", infos)
	}
}

func TestStatePersistsAcrossBindings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	store := NewStateStore(path)
	var ff fakeFactory
	r := NewRegistry(RegistryOptions{Store: store})
	r.RegisterAvailable(ff.factory("pad", "Pad"))

	r.Bind(1, "Pad")
	if ff.built[0].state != nil {
		t.Fatal("state restored before any was saved")
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	store2 := NewStateStore(path)
	if err := store2.Load(); err != nil {
		t.Fatal(err)
	}
	r2 := NewRegistry(RegistryOptions{Store: store2})
	r2.RegisterAvailable(ff.factory("pad", "Pad"))
	r2.Bind(1, "Pad")
	if got := StateInt(ff.built[1].state, "program", -1); got != 4 {
		t.Errorf("restored program = %d, want 4", got)
	}
}

func TestBindPublishesOnBus(t *testing.T) {
	b := bus.New()
	var got []string
	b.Register("test", bus.SignalCtrlDev, bus.SubDriverBound, func(e bus.Event) {
		got = append(got, "bound "+e.Args.String("driver"))
	})
	b.Register("test", bus.SignalCtrlDev, bus.SubDriverUnbound, func(e bus.Event) {
		got = append(got, "unbound "+e.Args.String("driver"))
	})

	var ff fakeFactory
	r := NewRegistry(RegistryOptions{Bus: b})
	r.RegisterAvailable(ff.factory("pad", "Pad"))
	r.Bind(5, "Pad")
	r.Unbind(5)

	if len(got) != 2 || got[0] != "bound pad" || got[1] != "unbound pad" {
		t.Errorf("bus events %v", got)
	}
}

func TestOpString(t *testing.T) {
	cases := map[Op]string{
		OpRefresh:  "refresh",
		OpSleepOn:  "sleep_on",
		OpSleepOff: "sleep_off",
		OpLightOff: "light_off",
		Op(9):      "op(9)",
		Op(-1):     "op(-1)",
	}
	for op, want := range cases {
		if got := op.String(); got != want {
			t.Errorf("Op(%d) = %q, want %q", int(op), got, want)
		}
	}
}
