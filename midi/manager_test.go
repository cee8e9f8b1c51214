package midi

import (
	"sync"
	"testing"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// fakeIn is an input port whose number the test can change
type fakeIn struct {
	name  string
	num   int
	mu    sync.Mutex
	onMsg func([]byte, int32)
}

func (p *fakeIn) Open() error             { return nil }
func (p *fakeIn) Close() error            { return nil }
func (p *fakeIn) IsOpen() bool            { return true }
func (p *fakeIn) Number() int             { return p.num }
func (p *fakeIn) String() string          { return p.name }
func (p *fakeIn) Underlying() interface{} { return nil }

func (p *fakeIn) Listen(onMsg func([]byte, int32), _ drivers.ListenConfig) (func(), error) {
	p.mu.Lock()
	p.onMsg = onMsg
	p.mu.Unlock()
	return func() {}, nil
}

func (p *fakeIn) deliver(b ...byte) {
	p.mu.Lock()
	fn := p.onMsg
	p.mu.Unlock()
	fn(b, 0)
}

// portBinder refuses a port that is already bound, like the registry
type portBinder struct {
	mu       sync.Mutex
	bound    map[int]string
	messages map[int][]Message
}

func newPortBinder() *portBinder {
	return &portBinder{bound: make(map[int]string), messages: make(map[int][]Message)}
}

func (b *portBinder) Bind(port int, name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.bound[port]; ok {
		return false
	}
	b.bound[port] = name
	return true
}

func (b *portBinder) Unbind(port int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.bound, port)
}

func (b *portBinder) Dispatch(port int, msg Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[port] = append(b.messages[port], msg)
	return true
}

func (b *portBinder) portOf(name string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for p, n := range b.bound {
		if n == name {
			return p, true
		}
	}
	return 0, false
}

func TestDeviceManagerSurvivesRenumbering(t *testing.T) {
	a := &fakeIn{name: "Launchpad Mini MK3", num: 0}
	bp := &fakeIn{name: "nanoKONTROL2", num: 1}
	ports := []drivers.In{a, bp}

	dm := NewDeviceManager()
	dm.inPorts = func() []drivers.In { return ports }
	binder := newPortBinder()

	dm.scan(binder)
	portA, okA := binder.portOf(a.name)
	portB, okB := binder.portOf(bp.name)
	if !okA || !okB || portA == portB {
		t.Fatalf("initial binds %v", binder.bound)
	}

	// unplug A: the backend renumbers B, then C arrives on B's old number
	c := &fakeIn{name: "APC Key 25 mk2", num: 1}
	bp.num = 0
	ports = []drivers.In{bp, c}
	dm.scan(binder)

	if _, ok := binder.portOf(a.name); ok {
		t.Error("unplugged port still bound")
	}
	if p, _ := binder.portOf(bp.name); p != portB {
		t.Errorf("remaining device moved from %d to %d", portB, p)
	}
	portC, okC := binder.portOf(c.name)
	if !okC {
		t.Fatal("new device was not bound after renumbering")
	}
	if portC == portB {
		t.Error("new device shares an index with a bound one")
	}

	c.deliver(0x90, 60, 100)
	if msgs := binder.messages[portC]; len(msgs) != 1 || msgs[0].(ShortMessage) != (ShortMessage{0x90, 60, 100}) {
		t.Errorf("messages on %d: %v", portC, msgs)
	}

	// replugging A gives it its old index back
	a.num = 2
	ports = []drivers.In{bp, c, a}
	dm.scan(binder)
	if p, _ := binder.portOf(a.name); p != portA {
		t.Errorf("replugged device got %d, had %d", p, portA)
	}
}

func TestDeviceManagerSkipsExcludedPorts(t *testing.T) {
	dm := NewDeviceManager()
	dm.inPorts = func() []drivers.In {
		return []drivers.In{&fakeIn{name: "Midi Through Port-0"}}
	}
	binder := newPortBinder()
	dm.scan(binder)
	if len(binder.bound) != 0 {
		t.Errorf("bound %v", binder.bound)
	}
}
