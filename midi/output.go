package midi

import (
	"sync"
	"sync/atomic"

	"go-ctrldev/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Output is the feedback path to a device. Calls never block the caller.
type Output interface {
	NoteOn(channel, note, velocity uint8)
	NoteOff(channel, note uint8)
	ControlChange(channel, cc, value uint8)
	ProgramChange(channel, program uint8)
	SendRaw(data []byte)
}

// Channel modes for Launchpad-style LEDs (use as 'channel' parameter)
const (
	ChannelStatic uint8 = 0 // solid color
	ChannelFlash  uint8 = 1 // flashing A/B alternating
	ChannelPulse  uint8 = 2 // pulsing (fades)
)

var frameSendCount uint64

// QueuedOutput writes frames from its own goroutine so a slow port never
// stalls MIDI dispatch. Frames are dropped when the queue is full.
type QueuedOutput struct {
	name   string
	write  func([]byte) error
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

const outputQueueLen = 512

// NewQueuedOutput starts a writer goroutine around write
func NewQueuedOutput(name string, write func([]byte) error) *QueuedOutput {
	o := &QueuedOutput{
		name:   name,
		write:  write,
		frames: make(chan []byte, outputQueueLen),
		done:   make(chan struct{}),
	}
	go o.loop()
	return o
}

// OpenPortOutput opens a gomidi output port
func OpenPortOutput(port drivers.Out) (*QueuedOutput, error) {
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, err
	}
	return NewQueuedOutput(port.String(), func(b []byte) error {
		return send(gomidi.Message(b))
	}), nil
}

func (o *QueuedOutput) loop() {
	for {
		select {
		case <-o.done:
			return
		case b := <-o.frames:
			if err := o.write(b); err != nil {
				debug.Error("out", err, "%s: write % X", o.name, b)
			}
			n := atomic.AddUint64(&frameSendCount, 1)
			if n%500 == 0 {
				debug.Log("out", "frames sent=%d", n)
			}
		}
	}
}

func (o *QueuedOutput) push(b []byte) {
	select {
	case o.frames <- b:
	default:
		debug.Warn("out", "%s: queue full, dropped % X", o.name, b)
	}
}

func (o *QueuedOutput) NoteOn(channel, note, velocity uint8) {
	o.push(Short(NoteOn, channel, note, velocity).Bytes())
}

func (o *QueuedOutput) NoteOff(channel, note uint8) {
	o.push(Short(NoteOff, channel, note, 0).Bytes())
}

func (o *QueuedOutput) ControlChange(channel, cc, value uint8) {
	o.push(Short(CC, channel, cc, value).Bytes())
}

func (o *QueuedOutput) ProgramChange(channel, program uint8) {
	o.push(Short(ProgramChange, channel, program, 0).Bytes())
}

func (o *QueuedOutput) SendRaw(data []byte) {
	b := make([]byte, len(data))
	copy(b, data)
	o.push(b)
}

// Close stops the writer; pending frames are discarded
func (o *QueuedOutput) Close() error {
	o.once.Do(func() { close(o.done) })
	return nil
}

// Discard is an Output for devices without a feedback path
var Discard Output = discard{}

type discard struct{}

func (discard) NoteOn(channel, note, velocity uint8)   {}
func (discard) NoteOff(channel, note uint8)            {}
func (discard) ControlChange(channel, cc, value uint8) {}
func (discard) ProgramChange(channel, program uint8)   {}
func (discard) SendRaw(data []byte)                    {}

// Recorder is an Output that keeps every frame written to it
type Recorder struct {
	mu     sync.Mutex
	frames [][]byte
}

func (r *Recorder) add(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, b)
}

func (r *Recorder) NoteOn(channel, note, velocity uint8) {
	r.add(Short(NoteOn, channel, note, velocity).Bytes())
}

func (r *Recorder) NoteOff(channel, note uint8) {
	r.add(Short(NoteOff, channel, note, 0).Bytes())
}

func (r *Recorder) ControlChange(channel, cc, value uint8) {
	r.add(Short(CC, channel, cc, value).Bytes())
}

func (r *Recorder) ProgramChange(channel, program uint8) {
	r.add(Short(ProgramChange, channel, program, 0).Bytes())
}

func (r *Recorder) SendRaw(data []byte) {
	b := make([]byte, len(data))
	copy(b, data)
	r.add(b)
}

// Frames returns a copy of everything recorded
func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	copy(out, r.frames)
	return out
}

// SysEx returns only the SysEx frames
func (r *Recorder) SysEx() [][]byte {
	var out [][]byte
	for _, f := range r.Frames() {
		if len(f) > 0 && f[0] == SysExStart {
			out = append(out, f)
		}
	}
	return out
}

// Reset forgets recorded frames
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
}

// LED is the last value written to a note or CC
type LED struct {
	Value   uint8
	Channel uint8
}

// Mirror forwards to an Output and remembers the LED state written, so the
// monitor can draw what the device shows.
type Mirror struct {
	Output
	mu    sync.RWMutex
	notes map[uint8]LED
	ccs   map[uint8]LED
}

// NewMirror wraps out
func NewMirror(out Output) *Mirror {
	return &Mirror{
		Output: out,
		notes:  make(map[uint8]LED),
		ccs:    make(map[uint8]LED),
	}
}

func (m *Mirror) NoteOn(channel, note, velocity uint8) {
	m.mu.Lock()
	m.notes[note] = LED{Value: velocity, Channel: channel}
	m.mu.Unlock()
	m.Output.NoteOn(channel, note, velocity)
}

func (m *Mirror) NoteOff(channel, note uint8) {
	m.mu.Lock()
	m.notes[note] = LED{Channel: channel}
	m.mu.Unlock()
	m.Output.NoteOff(channel, note)
}

func (m *Mirror) ControlChange(channel, cc, value uint8) {
	m.mu.Lock()
	m.ccs[cc] = LED{Value: value, Channel: channel}
	m.mu.Unlock()
	m.Output.ControlChange(channel, cc, value)
}

// Note returns the last state written to a note
func (m *Mirror) Note(note uint8) LED {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.notes[note]
}

// CC returns the last value written to a controller
func (m *Mirror) CC(cc uint8) LED {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ccs[cc]
}
