package codec

import (
	"fmt"
	"strings"

	"go-ctrldev/debug"
	"go-ctrldev/midi"
)

// MPK mini mk3 program dump layout.
//
//	F0 47 7F 49 <cmd> 01 76 <246 payload bytes> F7
//
// Payload offsets are relative to the first byte after the length.
const (
	akaiID        = 0x47
	mpkDeviceID   = 0x7F
	mpkProductID  = 0x49
	cmdWriteProg  = 0x64
	cmdQueryProg  = 0x66
	cmdProgReply  = 0x67
	programHeader = 7

	ProgramPayloadLen = 246
	ProgramMessageLen = programHeader + ProgramPayloadLen + 1

	ProgramPads  = 16
	ProgramKnobs = 8
	NameLen      = 16

	// program 0 is the RAM program, 1..8 the stored ones
	MaxProgram = 8

	MinTempo = 60
	MaxTempo = 240
)

const (
	offProgram      = 0
	offName         = 1
	offPadChannel   = offName + NameLen
	offAftertouch   = offPadChannel + 1
	offKeyChannel   = offAftertouch + 1
	offKeyOctave    = offKeyChannel + 1
	offArpOn        = offKeyOctave + 1
	offArpMode      = offArpOn + 1
	offArpTimeDiv   = offArpMode + 1
	offArpClock     = offArpTimeDiv + 1
	offArpLatch     = offArpClock + 1
	offArpSwing     = offArpLatch + 1
	offTempoTaps    = offArpSwing + 1
	offTempoMSB     = offTempoTaps + 1
	offTempoLSB     = offTempoMSB + 1
	offArpOctave    = offTempoLSB + 1
	offJoyX         = offArpOctave + 1
	offJoyY         = offJoyX + 3
	offPads         = offJoyY + 3
	offKnobs        = offPads + ProgramPads*3
	knobRecordLen   = 4 + NameLen
	offTranspose    = offKnobs + ProgramKnobs*knobRecordLen
	programFieldEnd = offTranspose + 1
)

// Aftertouch selects what the keybed pressure sends
type Aftertouch uint8

const (
	AftertouchOff Aftertouch = iota
	AftertouchChannel
	AftertouchPoly
)

// Arpeggiator settings
type Arp struct {
	On      bool
	Mode    uint8 // 0..5: up, down, excl, incl, order, random
	TimeDiv uint8 // 0..7: 1/4 .. 1/32T
	Clock   uint8 // 0 internal, 1 external
	Latch   bool
	Swing   uint8 // 0..25 (50%..75%)
	Octave  uint8 // 0..3
}

// Joystick axis assignment
type Joystick struct {
	Mode uint8 // 0 pitchbend, 1 single CC, 2 dual CC
	Neg  uint8
	Pos  uint8
}

// Pad is the note / program change / CC triple sent by one pad
type Pad struct {
	Note uint8
	PC   uint8
	CC   uint8
}

// Knob is one encoder assignment
type Knob struct {
	Mode uint8 // 0 absolute, 1 relative
	CC   uint8
	Min  uint8
	Max  uint8
	Name string
}

// Program is the MPK mini mk3 program descriptor
type Program struct {
	Number        uint8
	Name          string
	PadChannel    uint8
	Aftertouch    Aftertouch
	KeybedChannel uint8
	KeybedOctave  uint8 // 0..8, 4 = no shift
	Arp           Arp
	TempoTaps     uint8 // 2..4
	Tempo         int
	JoyX, JoyY    Joystick
	Pads          []Pad
	Knobs         []Knob
	Transpose     uint8 // 0..24, 12 = no transpose
}

// DefaultProgram is the layout uploaded by the Device mode: pads on channel
// 10 from note 36, knobs on CC 70-77.
func DefaultProgram(number uint8) Program {
	p := Program{
		Number:        number,
		Name:          "ctrldev",
		PadChannel:    9,
		Aftertouch:    AftertouchOff,
		KeybedChannel: 0,
		KeybedOctave:  4,
		Arp:           Arp{Mode: 0, TimeDiv: 2, Swing: 0},
		TempoTaps:     3,
		Tempo:         120,
		JoyX:          Joystick{Mode: 0},
		JoyY:          Joystick{Mode: 1, Neg: 1, Pos: 1},
		Transpose:     12,
	}
	for i := 0; i < ProgramPads; i++ {
		p.Pads = append(p.Pads, Pad{Note: uint8(36 + i), PC: uint8(i), CC: uint8(16 + i)})
	}
	for i := 0; i < ProgramKnobs; i++ {
		p.Knobs = append(p.Knobs, Knob{Mode: 0, CC: uint8(70 + i), Min: 0, Max: 127, Name: fmt.Sprintf("K%d", i+1)})
	}
	return p
}

func checkRange(field string, v, max int) error {
	if v < 0 || v > max {
		return malformed("field out of range", fmt.Sprintf("%s=%d, want 0..%d", field, v, max))
	}
	return nil
}

func checkName(field, name string) error {
	if len(name) > NameLen {
		return malformed("name too long", fmt.Sprintf("%s %q longer than %d", field, name, NameLen))
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] > 0x7E {
			return malformed("name not printable ascii", fmt.Sprintf("%s %q", field, name))
		}
	}
	return nil
}

// Validate checks every field against its protocol domain
func (p Program) Validate() error {
	checks := []struct {
		field string
		v     int
		max   int
	}{
		{"program", int(p.Number), MaxProgram},
		{"pad channel", int(p.PadChannel), 15},
		{"aftertouch", int(p.Aftertouch), int(AftertouchPoly)},
		{"keybed channel", int(p.KeybedChannel), 15},
		{"keybed octave", int(p.KeybedOctave), 8},
		{"arp mode", int(p.Arp.Mode), 5},
		{"arp time division", int(p.Arp.TimeDiv), 7},
		{"arp clock", int(p.Arp.Clock), 1},
		{"arp swing", int(p.Arp.Swing), 25},
		{"arp octave", int(p.Arp.Octave), 3},
		{"joystick x mode", int(p.JoyX.Mode), 2},
		{"joystick x neg", int(p.JoyX.Neg), 127},
		{"joystick x pos", int(p.JoyX.Pos), 127},
		{"joystick y mode", int(p.JoyY.Mode), 2},
		{"joystick y neg", int(p.JoyY.Neg), 127},
		{"joystick y pos", int(p.JoyY.Pos), 127},
		{"transpose", int(p.Transpose), 24},
	}
	for _, c := range checks {
		if err := checkRange(c.field, c.v, c.max); err != nil {
			return err
		}
	}
	if p.TempoTaps < 2 || p.TempoTaps > 4 {
		return malformed("field out of range", fmt.Sprintf("tempo taps=%d, want 2..4", p.TempoTaps))
	}
	if p.Tempo < MinTempo || p.Tempo > MaxTempo {
		return malformed("field out of range", fmt.Sprintf("tempo=%d, want %d..%d", p.Tempo, MinTempo, MaxTempo))
	}
	if err := checkName("program name", p.Name); err != nil {
		return err
	}
	if len(p.Pads) != ProgramPads {
		return malformed("wrong pad count", fmt.Sprintf("%d pads, want %d", len(p.Pads), ProgramPads))
	}
	if len(p.Knobs) != ProgramKnobs {
		return malformed("wrong knob count", fmt.Sprintf("%d knobs, want %d", len(p.Knobs), ProgramKnobs))
	}
	for i, pad := range p.Pads {
		for _, v := range []uint8{pad.Note, pad.PC, pad.CC} {
			if err := checkRange(fmt.Sprintf("pad %d", i+1), int(v), 127); err != nil {
				return err
			}
		}
	}
	for i, k := range p.Knobs {
		if err := checkRange(fmt.Sprintf("knob %d mode", i+1), int(k.Mode), 1); err != nil {
			return err
		}
		for _, v := range []uint8{k.CC, k.Min, k.Max} {
			if err := checkRange(fmt.Sprintf("knob %d", i+1), int(v), 127); err != nil {
				return err
			}
		}
		if err := checkName(fmt.Sprintf("knob %d name", i+1), k.Name); err != nil {
			return err
		}
	}
	return nil
}

func putName(dst []byte, name string) {
	for i := range dst[:NameLen] {
		if i < len(name) {
			dst[i] = name[i]
		} else {
			dst[i] = ' '
		}
	}
}

func getName(src []byte) string {
	return strings.TrimRight(string(src[:NameLen]), " \x00")
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// BuildProgram validates p and serializes it as a program write message
func BuildProgram(p Program) (midi.SysEx, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	msg := make([]byte, ProgramMessageLen)
	copy(msg, []byte{midi.SysExStart, akaiID, mpkDeviceID, mpkProductID, cmdWriteProg,
		ProgramPayloadLen >> 7, ProgramPayloadLen & 0x7F})
	d := msg[programHeader : programHeader+ProgramPayloadLen]

	d[offProgram] = p.Number
	putName(d[offName:], p.Name)
	d[offPadChannel] = p.PadChannel
	d[offAftertouch] = byte(p.Aftertouch)
	d[offKeyChannel] = p.KeybedChannel
	d[offKeyOctave] = p.KeybedOctave
	d[offArpOn] = boolByte(p.Arp.On)
	d[offArpMode] = p.Arp.Mode
	d[offArpTimeDiv] = p.Arp.TimeDiv
	d[offArpClock] = p.Arp.Clock
	d[offArpLatch] = boolByte(p.Arp.Latch)
	d[offArpSwing] = p.Arp.Swing
	d[offTempoTaps] = p.TempoTaps
	d[offTempoMSB] = byte(p.Tempo >> 7)
	d[offTempoLSB] = byte(p.Tempo & 0x7F)
	d[offArpOctave] = p.Arp.Octave
	d[offJoyX], d[offJoyX+1], d[offJoyX+2] = p.JoyX.Mode, p.JoyX.Neg, p.JoyX.Pos
	d[offJoyY], d[offJoyY+1], d[offJoyY+2] = p.JoyY.Mode, p.JoyY.Neg, p.JoyY.Pos
	for i, pad := range p.Pads {
		o := offPads + i*3
		d[o], d[o+1], d[o+2] = pad.Note, pad.PC, pad.CC
	}
	for i, k := range p.Knobs {
		o := offKnobs + i*knobRecordLen
		d[o], d[o+1], d[o+2], d[o+3] = k.Mode, k.CC, k.Min, k.Max
		putName(d[o+4:], k.Name)
	}
	d[offTranspose] = p.Transpose
	msg[len(msg)-1] = midi.SysExEnd

	if len(msg) != ProgramMessageLen || programHeader+programFieldEnd != ProgramMessageLen-1 {
		return nil, malformed("program length mismatch", fmt.Sprintf("built %d bytes, want %d", len(msg), ProgramMessageLen))
	}
	return midi.SysEx(msg), nil
}

// ProgramRequest asks the device to dump program n (0 = RAM)
func ProgramRequest(n uint8) midi.SysEx {
	return midi.NewSysEx(akaiID, mpkDeviceID, mpkProductID, cmdQueryProg, 0x00, 0x01, n&0x7F)
}

// IsProgramMessage reports whether b has the MPK mini mk3 program envelope
func IsProgramMessage(b []byte) bool {
	return len(b) > programHeader && b[0] == midi.SysExStart &&
		b[1] == akaiID && b[2] == mpkDeviceID && b[3] == mpkProductID &&
		(b[4] == cmdWriteProg || b[4] == cmdProgReply)
}

// ParseProgram extracts the program number, name, channels, octave, tempo and
// pad notes from a program dump or write message. Malformed input is logged
// and reported as false.
func ParseProgram(b []byte) (Program, bool) {
	if !IsProgramMessage(b) {
		debug.Warn("codec", "not an MPK program message (% X)", head(b))
		return Program{}, false
	}
	if len(b) != ProgramMessageLen || b[len(b)-1] != midi.SysExEnd {
		debug.Warn("codec", "MPK program: %d bytes, want %d", len(b), ProgramMessageLen)
		return Program{}, false
	}
	if n := int(b[5])<<7 | int(b[6]); n != ProgramPayloadLen {
		debug.Warn("codec", "MPK program: declared payload %d, want %d", n, ProgramPayloadLen)
		return Program{}, false
	}
	d := b[programHeader : programHeader+ProgramPayloadLen]
	for _, c := range d {
		if c > 0x7F {
			debug.Warn("codec", "MPK program: data byte %02X not 7-bit", c)
			return Program{}, false
		}
	}

	p := Program{
		Number:        d[offProgram],
		Name:          getName(d[offName:]),
		PadChannel:    d[offPadChannel] & 0x0F,
		Aftertouch:    Aftertouch(d[offAftertouch]),
		KeybedChannel: d[offKeyChannel] & 0x0F,
		KeybedOctave:  d[offKeyOctave],
		TempoTaps:     d[offTempoTaps],
		Tempo:         int(d[offTempoMSB])<<7 | int(d[offTempoLSB]),
		Transpose:     d[offTranspose],
	}
	p.Pads = make([]Pad, ProgramPads)
	for i := range p.Pads {
		o := offPads + i*3
		p.Pads[i] = Pad{Note: d[o], PC: d[o+1], CC: d[o+2]}
	}
	return p, true
}

func head(b []byte) []byte {
	if len(b) > 8 {
		return b[:8]
	}
	return b
}
