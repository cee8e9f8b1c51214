package drivers

import (
	"bytes"
	"testing"

	"go-ctrldev/codec"
	"go-ctrldev/ctrldev"
	"go-ctrldev/host"
	"go-ctrldev/midi"
)

const lpPort = 2

func bindLaunchpad(t *testing.T) (*rig, *LaunchpadMiniMK3) {
	r := newRig(t, host.Options{})
	drv := r.bind(t, lpPort, "Launchpad Mini MK3 LPMiniMK3 MIDI")
	return r, drv.(*LaunchpadMiniMK3)
}

func TestLaunchpadStartsInProgrammerMode(t *testing.T) {
	r, _ := bindLaunchpad(t)
	sysex := r.rec.SysEx()
	if len(sysex) == 0 || !bytes.Equal(sysex[0], codec.LaunchpadProgrammerMode(true)) {
		t.Fatalf("first SysEx % X", sysex)
	}
	stopped := midi.NearestPaletteColor(lpStateRGB[ctrldev.PadStopped])
	if led := r.mirrors[lpPort].Note(codec.LaunchpadPad(7, 0)); led.Value != stopped {
		t.Errorf("top left pad LED %d, want %d", led.Value, stopped)
	}
	if led := r.mirrors[lpPort].CC(codec.LaunchpadPad(7, 8)); led.Value != midi.ColorBrightWhite {
		t.Errorf("bank 0 LED %d", led.Value)
	}
}

func TestLaunchpadGrid(t *testing.T) {
	r, _ := bindLaunchpad(t)

	if !r.send(lpPort, noteOn(0, codec.LaunchpadPad(7, 0), 100)) {
		t.Fatal("pad not consumed")
	}
	if s := r.app.PadState(0, 0); s != ctrldev.PadStarting {
		t.Fatalf("pad 0 state %v", s)
	}
	r.send(lpPort, noteOn(0, codec.LaunchpadPad(7, 0), 0))
	if r.app.Toggles() != 1 {
		t.Errorf("release toggled again")
	}

	// bottom right pad is the last pad of the bank
	r.send(lpPort, noteOn(0, codec.LaunchpadPad(0, 7), 100))
	if s := r.app.PadState(0, 63); s != ctrldev.PadStarting {
		t.Errorf("pad 63 state %v", s)
	}

	starting := midi.NearestPaletteColor(lpStateRGB[ctrldev.PadStarting])
	waitFor(t, "pad LED update", func() bool {
		led := r.mirrors[lpPort].Note(codec.LaunchpadPad(7, 0))
		return led.Value == starting && led.Channel == midi.ChannelFlash
	})
}

func TestLaunchpadBanksAndArrows(t *testing.T) {
	r, _ := bindLaunchpad(t)

	r.send(lpPort, cc(0, codec.LaunchpadPad(6, 8), 127))
	if r.app.Bank() != 1 {
		t.Fatalf("bank %d, want 1", r.app.Bank())
	}
	r.send(lpPort, cc(0, lpLeft, 127))
	if r.app.Bank() != 0 {
		t.Errorf("left arrow: bank %d", r.app.Bank())
	}
	r.send(lpPort, cc(0, lpLeft, 127))
	if r.app.Bank() != 0 {
		t.Errorf("left arrow below bank 0: bank %d", r.app.Bank())
	}

	r.send(lpPort, cc(0, lpDown, 127))
	if r.lastCommand() != ctrldev.CmdChainNext {
		t.Errorf("down arrow sent %q", r.lastCommand())
	}
	if c, _ := r.app.ActiveChain(); c.Index != 1 {
		t.Errorf("active chain %d", c.Index)
	}

	if r.send(lpPort, noteOn(0, 5, 100)) {
		t.Error("note outside the grid consumed")
	}
}

func TestLaunchpadStopAllGesture(t *testing.T) {
	r, _ := bindLaunchpad(t)

	r.app.TogglePlayState(0, 4)
	r.send(lpPort, cc(0, lpStopAll, 127), cc(0, lpStopAll, 0))
	if r.lastCommand() != ctrldev.CmdStopAll {
		t.Fatalf("short press sent %q", r.lastCommand())
	}
	if r.app.PadState(0, 4) != ctrldev.PadStopped {
		t.Error("STOP_ALL left a pad pending")
	}
}

func TestLaunchpadSleepAndEnd(t *testing.T) {
	r, lp := bindLaunchpad(t)

	r.rec.Reset()
	r.reg.Broadcast(ctrldev.OpSleepOn)
	if !lp.Sleeping() {
		t.Fatal("not sleeping")
	}
	sysex := r.rec.SysEx()
	if len(sysex) != 1 || !bytes.Equal(sysex[0], codec.LaunchpadSleep(true)) {
		t.Fatalf("sleep frames % X", sysex)
	}

	r.reg.Broadcast(ctrldev.OpSleepOff)
	if lp.Sleeping() {
		t.Fatal("still sleeping")
	}

	r.rec.Reset()
	r.reg.Unbind(lpPort)
	if !lp.Ended() {
		t.Fatal("driver not ended")
	}
	sysex = r.rec.SysEx()
	if len(sysex) == 0 || !bytes.Equal(sysex[len(sysex)-1], codec.LaunchpadProgrammerMode(false)) {
		t.Errorf("end frames % X", sysex)
	}
	if led := r.mirrors[lpPort].Note(codec.LaunchpadPad(7, 0)); led.Value != 0 {
		t.Errorf("pad LED %d after end", led.Value)
	}
	if r.send(lpPort, noteOn(0, codec.LaunchpadPad(7, 0), 100)) {
		t.Error("event consumed after unbind")
	}
}
