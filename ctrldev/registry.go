package ctrldev

import (
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"go-ctrldev/bus"
	"go-ctrldev/config"
	logger "go-ctrldev/debug"
	"go-ctrldev/midi"
)

// KindBinding tags failures to bind a driver to a port
const KindBinding ftag.Kind = "BINDING_ERROR"

// Ports opens the feedback output paired with an input port. The index is
// 1-based; 0 means no feedback path.
type Ports interface {
	OpenOutput(inName string) (midi.Output, int, error)
}

// OutputWrapper can decorate each bound output (e.g. with a midi.Mirror)
type OutputWrapper func(port int, name string, out midi.Output) midi.Output

// DriverInfo describes a bound driver
type DriverInfo struct {
	Port     int
	Driver   string
	PortName string
	Caps     Capability
	Mode     string
	Feedback bool
}

type bound struct {
	driver   Driver
	factory  Factory
	portName string
}

// Registry binds drivers to input ports and routes inbound messages
type Registry struct {
	app   App
	bus   *bus.Bus
	cfg   *config.Config
	ports Ports
	store *StateStore
	wrap  OutputWrapper

	mu         sync.RWMutex
	identities map[string]Factory
	bound      map[int]*bound
}

// RegistryOptions are the collaborators handed to drivers
type RegistryOptions struct {
	App    App
	Bus    *bus.Bus
	Config *config.Config
	Ports  Ports
	Store  *StateStore
	Wrap   OutputWrapper
}

// NewRegistry creates an empty registry
func NewRegistry(opts RegistryOptions) *Registry {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Registry{
		app:        opts.App,
		bus:        opts.Bus,
		cfg:        cfg,
		ports:      opts.Ports,
		store:      opts.Store,
		wrap:       opts.Wrap,
		identities: make(map[string]Factory),
		bound:      make(map[int]*bound),
	}
}

// RegisterAvailable rebuilds the identity map from factories
func (r *Registry) RegisterAvailable(factories ...Factory) {
	ids := make(map[string]Factory)
	for _, f := range factories {
		for _, id := range f.Identities {
			if prev, dup := ids[id]; dup {
				logger.Warn("registry", "identity %q claimed by %s and %s", id, prev.Name, f.Name)
			}
			ids[id] = f
		}
	}
	r.mu.Lock()
	r.identities = ids
	r.mu.Unlock()
	logger.Log("registry", "%d factories, %d identities", len(factories), len(ids))
}

// Match finds the factory for a reported port name: exact identity first,
// then case-insensitive containment with the longest identity winning.
func (r *Registry) Match(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.match(name)
}

func (r *Registry) match(name string) (Factory, bool) {
	if f, ok := r.identities[name]; ok {
		return f, true
	}
	lower := strings.ToLower(name)
	best := ""
	for id := range r.identities {
		if id == "" || !strings.Contains(lower, strings.ToLower(id)) {
			continue
		}
		if len(id) > len(best) || (len(id) == len(best) && id < best) {
			best = id
		}
	}
	if best == "" {
		return Factory{}, false
	}
	return r.identities[best], true
}

// Bind creates a driver for port when name matches a factory. Returns
// whether a new binding was made.
func (r *Registry) Bind(port int, name string) bool {
	r.mu.Lock()
	if _, exists := r.bound[port]; exists {
		r.mu.Unlock()
		return false
	}
	f, ok := r.match(name)
	if !ok {
		r.mu.Unlock()
		logger.Log("registry", "no driver for %q (port %d)", name, port)
		return false
	}
	if !r.cfg.Enabled(f.Name, name) {
		r.mu.Unlock()
		logger.Log("registry", "%s disabled for %q", f.Name, name)
		return false
	}
	// reserve the port while the driver is built outside the lock
	slot := &bound{factory: f, portName: name}
	r.bound[port] = slot
	r.mu.Unlock()

	drv, err := r.construct(f, port, name)

	r.mu.Lock()
	if err != nil || r.bound[port] != slot {
		if r.bound[port] == slot {
			delete(r.bound, port)
		}
		r.mu.Unlock()
		if err != nil {
			logger.Error("registry", err, "bind %s to %q (port %d)", f.Name, name, port)
		} else {
			safely("end "+f.Name, drv.End)
		}
		return false
	}
	slot.driver = drv
	r.mu.Unlock()

	logger.Log("registry", "bound %s to %q (port %d, out %d)", f.Name, name, port, drv.Info().OutPort)
	if r.bus != nil {
		r.bus.Send(bus.SignalCtrlDev, bus.SubDriverBound, bus.Args{"port": port, "driver": f.Name})
	}
	return true
}

func (r *Registry) construct(f Factory, port int, name string) (drv Driver, err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("registry", logger.Recovered(p, f.Name+" constructor"), "%s constructor\n%s", f.Name, debug.Stack())
			drv = nil
			err = fault.New("driver constructor panicked", fmsg.With(f.Name), ftag.With(KindBinding))
		}
	}()

	out, outPort := midi.Discard, 0
	if r.ports != nil {
		o, idx, err := r.ports.OpenOutput(name)
		if err != nil {
			logger.Error("registry", err, "%s: no feedback output", name)
		} else if o != nil {
			out, outPort = o, idx
		}
	}
	if r.wrap != nil {
		out = r.wrap(port, name, out)
	}

	drv, err = f.New(Deps{
		App:      r.app,
		Bus:      r.bus,
		Out:      out,
		Config:   r.cfg,
		InPort:   port,
		OutPort:  outPort,
		PortName: name,
	})
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("construct "+f.Name), ftag.With(KindBinding))
	}
	if drv == nil {
		return nil, fault.New("factory returned no driver", fmsg.With(f.Name), ftag.With(KindBinding))
	}

	if st, ok := drv.(Stateful); ok && r.store != nil {
		if state := r.store.Get(f.Name); state != nil {
			st.SetState(state)
		}
	}
	drv.Start()
	return drv, nil
}

// Unbind ends the driver bound to port. Unbound ports are ignored.
func (r *Registry) Unbind(port int) {
	r.mu.Lock()
	b, ok := r.bound[port]
	delete(r.bound, port)
	r.mu.Unlock()
	if !ok || b.driver == nil {
		return
	}

	r.saveState(b)
	safely("end "+b.factory.Name, b.driver.End)
	logger.Log("registry", "unbound %s from port %d", b.factory.Name, port)
	if r.bus != nil {
		r.bus.Send(bus.SignalCtrlDev, bus.SubDriverUnbound, bus.Args{"port": port, "driver": b.factory.Name})
	}
}

func (r *Registry) saveState(b *bound) {
	st, ok := b.driver.(Stateful)
	if !ok || r.store == nil {
		return
	}
	safely("state "+b.factory.Name, func() {
		r.store.Set(b.factory.Name, st.State())
	})
}

// Driver returns the driver bound to port
func (r *Registry) Driver(port int) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bound[port]
	if !ok || b.driver == nil {
		return nil, false
	}
	return b.driver, true
}

// Dispatch hands msg to the driver bound to port. Returns false when there
// is none or it did not consume the message.
func (r *Registry) Dispatch(port int, msg midi.Message) (consumed bool) {
	drv, ok := r.Driver(port)
	if !ok {
		return false
	}
	defer func() {
		if p := recover(); p != nil {
			logger.Error("registry", logger.Recovered(p, "dispatch"), "dispatch %v on port %d\n%s", msg, port, debug.Stack())
			consumed = false
		}
	}()
	return drv.MidiEvent(msg)
}

// Broadcast applies op to every bound driver
func (r *Registry) Broadcast(op Op) {
	for _, drv := range r.snapshot() {
		d := drv
		safely("broadcast "+op.String(), func() {
			switch op {
			case OpRefresh:
				d.Refresh()
			case OpSleepOn:
				d.SetSleep(true)
			case OpSleepOff:
				d.SetSleep(false)
				d.Refresh()
			case OpLightOff:
				d.LightOff()
			}
		})
	}
}

func (r *Registry) snapshot() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ports := make([]int, 0, len(r.bound))
	for p, b := range r.bound {
		if b.driver != nil {
			ports = append(ports, p)
		}
	}
	sort.Ints(ports)
	out := make([]Driver, len(ports))
	for i, p := range ports {
		out[i] = r.bound[p].driver
	}
	return out
}

// Drivers describes the bound drivers, ordered by port
func (r *Registry) Drivers() []DriverInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DriverInfo, 0, len(r.bound))
	for port, b := range r.bound {
		if b.driver == nil {
			continue
		}
		info := b.driver.Info()
		di := DriverInfo{
			Port:     port,
			Driver:   b.factory.Name,
			PortName: b.portName,
			Caps:     info.Caps,
			Feedback: info.HasFeedback(),
		}
		if m, ok := b.driver.(interface{ ActiveModeName() string }); ok {
			di.Mode = m.ActiveModeName()
		}
		out = append(out, di)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

// Close unbinds every driver and saves state
func (r *Registry) Close() error {
	r.mu.RLock()
	ports := make([]int, 0, len(r.bound))
	for p := range r.bound {
		ports = append(ports, p)
	}
	r.mu.RUnlock()
	for _, p := range ports {
		r.Unbind(p)
	}
	if r.store != nil {
		return r.store.Save()
	}
	return nil
}

func safely(what string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("registry", logger.Recovered(p, what), "%s\n%s", what, debug.Stack())
		}
	}()
	fn()
}
