package midi

import (
	"bytes"
	"testing"
	"time"
)

func TestQueuedOutputKeepsOrder(t *testing.T) {
	written := make(chan []byte, 8)
	out := NewQueuedOutput("test", func(b []byte) error {
		written <- b
		return nil
	})
	defer out.Close()

	out.NoteOn(0, 11, 5)
	out.ControlChange(1, 91, 3)
	out.SendRaw([]byte{0xF0, 0x00, 0xF7})

	want := [][]byte{{0x90, 11, 5}, {0xB1, 91, 3}, {0xF0, 0x00, 0xF7}}
	for i, w := range want {
		select {
		case got := <-written:
			if !bytes.Equal(got, w) {
				t.Errorf("frame %d = % X, want % X", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("frame %d never written", i)
		}
	}
}

func TestQueuedOutputNeverBlocks(t *testing.T) {
	block := make(chan struct{})
	out := NewQueuedOutput("stuck", func([]byte) error {
		<-block
		return nil
	})
	defer close(block)
	defer out.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < outputQueueLen*2; i++ {
			out.NoteOn(0, 1, 1)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sending to a stuck port blocked")
	}
}

func TestMirrorRemembersLEDs(t *testing.T) {
	var rec Recorder
	m := NewMirror(&rec)
	m.NoteOn(ChannelPulse, 11, ColorGreen)
	m.NoteOn(0, 12, ColorRed)
	m.NoteOff(0, 12)
	m.ControlChange(0, 91, ColorBlue)

	if led := m.Note(11); led.Value != ColorGreen || led.Channel != ChannelPulse {
		t.Errorf("note 11 %+v", led)
	}
	if led := m.Note(12); led.Value != 0 {
		t.Errorf("note 12 %+v", led)
	}
	if led := m.CC(91); led.Value != ColorBlue {
		t.Errorf("cc 91 %+v", led)
	}
	if n := len(rec.Frames()); n != 4 {
		t.Errorf("%d frames forwarded", n)
	}
}

func TestRecorderSysEx(t *testing.T) {
	var rec Recorder
	rec.NoteOn(0, 1, 1)
	rec.SendRaw(NewSysEx(0x01))
	rec.ProgramChange(2, 9)
	if sx := rec.SysEx(); len(sx) != 1 || sx[0][1] != 0x01 {
		t.Errorf("sysex %v", sx)
	}
	frames := rec.Frames()
	if !bytes.Equal(frames[2], []byte{0xC2, 9}) {
		t.Errorf("program change % X", frames[2])
	}
	rec.Reset()
	if len(rec.Frames()) != 0 {
		t.Error("reset kept frames")
	}
}

func TestNearestPaletteColor(t *testing.T) {
	cases := []struct {
		rgb  [3]uint8
		want uint8
	}{
		{[3]uint8{255, 0, 0}, ColorRed},
		{[3]uint8{0, 0, 0}, ColorOff},
		{[3]uint8{255, 255, 255}, ColorBrightWhite},
		{[3]uint8{0, 250, 5}, ColorGreen},
	}
	for _, c := range cases {
		if got := NearestPaletteColor(c.rgb); got != c.want {
			t.Errorf("%v -> %d, want %d", c.rgb, got, c.want)
		}
	}
	if PaletteRGB(ColorGreen) != [3]uint8{0, 255, 0} {
		t.Error("palette green")
	}
	if PaletteRGB(ColorGreen+1) != PaletteRGB(ColorGreen) {
		t.Error("unknown index should use the entry below")
	}
}
