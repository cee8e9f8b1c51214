package midi

import "fmt"

// MIDI status nibbles
const (
	NoteOff         uint8 = 0x80
	NoteOn          uint8 = 0x90
	PolyPressure    uint8 = 0xA0
	CC              uint8 = 0xB0
	ProgramChange   uint8 = 0xC0
	ChannelPressure uint8 = 0xD0
	PitchBend       uint8 = 0xE0

	SysExStart uint8 = 0xF0
	SysExEnd   uint8 = 0xF7
)

// Message is either a ShortMessage or a SysEx frame. Every driver consumes
// this type only, whatever encoding the port delivered.
type Message interface {
	Bytes() []byte
	String() string
	isMessage()
}

// ShortMessage is a channel voice message
type ShortMessage struct {
	Status uint8 // kind | channel
	Data1  uint8
	Data2  uint8
}

func (ShortMessage) isMessage() {}

// Kind returns the status nibble (NoteOn, CC, ...)
func (m ShortMessage) Kind() uint8 {
	return m.Status & 0xF0
}

// Channel returns the 0-based MIDI channel
func (m ShortMessage) Channel() uint8 {
	return m.Status & 0x0F
}

// IsNoteOn is true for note-on with non-zero velocity
func (m ShortMessage) IsNoteOn() bool {
	return m.Kind() == NoteOn && m.Data2 > 0
}

// IsNoteOff is true for note-off, and for note-on with velocity 0
func (m ShortMessage) IsNoteOff() bool {
	return m.Kind() == NoteOff || (m.Kind() == NoteOn && m.Data2 == 0)
}

func (m ShortMessage) Bytes() []byte {
	if dataLen(m.Status) == 1 {
		return []byte{m.Status, m.Data1}
	}
	return []byte{m.Status, m.Data1, m.Data2}
}

// Packed returns the 32-bit [port][status][data1][data2] encoding
func (m ShortMessage) Packed(port uint8) uint32 {
	return uint32(port)<<24 | uint32(m.Status)<<16 | uint32(m.Data1)<<8 | uint32(m.Data2)
}

func (m ShortMessage) String() string {
	return fmt.Sprintf("%02X %02X %02X", m.Status, m.Data1, m.Data2)
}

// SysEx is a complete frame, F0 ... F7 included
type SysEx []byte

func (SysEx) isMessage() {}

func (s SysEx) Bytes() []byte {
	return []byte(s)
}

// Payload strips the F0/F7 envelope
func (s SysEx) Payload() []byte {
	if len(s) < 2 {
		return nil
	}
	return s[1 : len(s)-1]
}

func (s SysEx) String() string {
	return fmt.Sprintf("SysEx % X", []byte(s))
}

// NewSysEx wraps a payload in F0/F7
func NewSysEx(payload ...byte) SysEx {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, SysExStart)
	out = append(out, payload...)
	return SysEx(append(out, SysExEnd))
}

// Short builds a channel message
func Short(kind, channel, data1, data2 uint8) ShortMessage {
	return ShortMessage{Status: kind&0xF0 | channel&0x0F, Data1: data1 & 0x7F, Data2: data2 & 0x7F}
}

// FromBytes converts raw bytes (gomidi message, serial frame) to a Message.
// Returns false for system/realtime messages and anything truncated.
func FromBytes(raw []byte) (Message, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	status := raw[0]
	if status == SysExStart {
		if len(raw) < 2 || raw[len(raw)-1] != SysExEnd {
			return nil, false
		}
		frame := make([]byte, len(raw))
		copy(frame, raw)
		return SysEx(frame), true
	}
	if status < 0x80 || status >= 0xF0 {
		return nil, false
	}
	n := dataLen(status)
	if len(raw) < 1+n {
		return nil, false
	}
	m := ShortMessage{Status: status, Data1: raw[1] & 0x7F}
	if n == 2 {
		m.Data2 = raw[2] & 0x7F
	}
	return m, true
}

// FromPacked decodes the 32-bit [port][status][data1][data2] encoding
func FromPacked(ev uint32) (port uint8, msg ShortMessage, ok bool) {
	port = uint8(ev >> 24)
	status := uint8(ev >> 16)
	if status < 0x80 || status >= 0xF0 {
		return port, ShortMessage{}, false
	}
	msg = ShortMessage{Status: status, Data1: uint8(ev>>8) & 0x7F}
	if dataLen(status) == 2 {
		msg.Data2 = uint8(ev) & 0x7F
	}
	return port, msg, true
}

func dataLen(status uint8) int {
	switch status & 0xF0 {
	case ProgramChange, ChannelPressure:
		return 1
	}
	return 2
}
