package midi

import (
	"fmt"
	"sync"
	"time"

	"go-ctrldev/debug"

	"go.bug.st/serial"
)

// SerialPortIndex is the port index the DIN/UART input is bound under
const SerialPortIndex = 1000

// SerialPort is a DIN MIDI port on a UART (31250 baud on real hardware).
// Inbound bytes are parsed and dispatched to the Binder; outbound frames go
// through a QueuedOutput.
type SerialPort struct {
	name string
	port serial.Port
	out  *QueuedOutput

	stop chan struct{}
	wg   sync.WaitGroup
}

// OpenSerial opens device at baud. name is the identity reported to the
// registry when binding.
func OpenSerial(device string, baud int, name string) (*SerialPort, error) {
	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	if err := p.SetReadTimeout(100 * time.Millisecond); err != nil {
		p.Close()
		return nil, fmt.Errorf("serial read timeout: %w", err)
	}
	debug.Log("serial", "opened %s at %d baud", device, baud)

	sp := &SerialPort{
		name: name,
		port: p,
		stop: make(chan struct{}),
	}
	sp.out = NewQueuedOutput(name, func(b []byte) error {
		_, err := p.Write(b)
		return err
	})
	return sp, nil
}

// Name is the identity used when binding
func (s *SerialPort) Name() string {
	return s.name
}

// Output is the feedback path of this port
func (s *SerialPort) Output() Output {
	return s.out
}

// Listen binds the port and starts the reader goroutine
func (s *SerialPort) Listen(b Binder) bool {
	if !b.Bind(SerialPortIndex, s.name) {
		return false
	}
	s.wg.Add(1)
	go s.readLoop(b)
	return true
}

func (s *SerialPort) readLoop(b Binder) {
	defer s.wg.Done()
	var parser Parser
	buf := make([]byte, 128)
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		n, err := s.port.Read(buf)
		if err != nil {
			debug.Error("serial", err, "%s: read", s.name)
			return
		}
		for _, c := range buf[:n] {
			if msg, ok := parser.Feed(c); ok {
				b.Dispatch(SerialPortIndex, msg)
			}
		}
	}
}

// Close stops the reader and closes the UART
func (s *SerialPort) Close(b Binder) error {
	close(s.stop)
	s.wg.Wait()
	if b != nil {
		b.Unbind(SerialPortIndex)
	}
	s.out.Close()
	return s.port.Close()
}

// Parser turns a MIDI byte stream into Messages. Handles running status,
// interleaved realtime bytes and SysEx.
type Parser struct {
	status  uint8
	data    [2]uint8
	n       int
	sysex   []byte
	inSysEx bool
}

const maxSysExLen = 4096

// Feed consumes one byte and returns a message when one completes
func (p *Parser) Feed(c uint8) (Message, bool) {
	switch {
	case c >= 0xF8:
		// realtime, may appear anywhere
		return nil, false

	case c == SysExStart:
		p.inSysEx = true
		p.sysex = append(p.sysex[:0], c)
		p.status = 0
		return nil, false

	case c == SysExEnd:
		if !p.inSysEx {
			return nil, false
		}
		p.inSysEx = false
		frame := make([]byte, len(p.sysex)+1)
		copy(frame, p.sysex)
		frame[len(frame)-1] = SysExEnd
		return SysEx(frame), true

	case c >= 0xF0:
		// system common cancels running status and any open SysEx
		p.inSysEx = false
		p.status = 0
		return nil, false

	case c >= 0x80:
		p.inSysEx = false
		p.status = c
		p.n = 0
		return nil, false
	}

	if p.inSysEx {
		if len(p.sysex) < maxSysExLen {
			p.sysex = append(p.sysex, c)
		}
		return nil, false
	}
	if p.status == 0 {
		return nil, false
	}

	p.data[p.n] = c
	p.n++
	if p.n < dataLen(p.status) {
		return nil, false
	}
	p.n = 0
	msg := ShortMessage{Status: p.status, Data1: p.data[0]}
	if dataLen(p.status) == 2 {
		msg.Data2 = p.data[1]
	}
	return msg, true
}
