package drivers

import (
	"testing"

	"go-ctrldev/ctrldev"
	"go-ctrldev/gesture"
	"go-ctrldev/host"
)

const apcPort = 3

func bindAPC(t *testing.T) (*rig, *APCKey25) {
	r := newRig(t, host.Options{})
	drv := r.bind(t, apcPort, "APC Key 25 mk2 Control")
	return r, drv.(*APCKey25)
}

// apcSelect presses shift + a soft key
func (r *rig) apcSelect(key uint8) {
	r.send(apcPort,
		noteOn(apcChannel, apcShift, 127),
		noteOn(apcChannel, key, 127),
		noteOff(apcChannel, key),
		noteOff(apcChannel, apcShift))
}

func TestAPCModeSelect(t *testing.T) {
	r, a := bindAPC(t)
	if a.ActiveModeName() != "launcher" {
		t.Fatalf("initial mode %q", a.ActiveModeName())
	}
	r.apcSelect(apcSelVol)
	if a.ActiveModeName() != "mixer" {
		t.Fatalf("mode %q after shift+volume", a.ActiveModeName())
	}
	if a.Shifted() {
		t.Error("shift still held")
	}
	r.apcSelect(apcSelDev)
	if a.ActiveModeName() != "device" {
		t.Fatalf("mode %q after shift+device", a.ActiveModeName())
	}
	r.apcSelect(apcSelSend)
	if a.ActiveModeName() != "launcher" {
		t.Fatalf("mode %q after shift+send", a.ActiveModeName())
	}

	// without shift the soft key is a track button
	r.send(apcPort, noteOn(apcChannel, apcSelVol, 127), noteOff(apcChannel, apcSelVol))
	if a.ActiveModeName() != "launcher" {
		t.Errorf("unshifted key changed mode to %q", a.ActiveModeName())
	}
	if c, _ := r.app.ActiveChain(); c.Index != int(apcSelVol-apcTrack0) {
		t.Errorf("active chain %d", c.Index)
	}
}

func TestAPCKeybedPassesThrough(t *testing.T) {
	r, _ := bindAPC(t)
	if r.send(apcPort, noteOn(1, 60, 100)) {
		t.Error("keybed note consumed")
	}
	if r.send(apcPort, cc(1, 64, 127)) {
		t.Error("sustain consumed")
	}
}

func TestAPCTransport(t *testing.T) {
	r, _ := bindAPC(t)
	r.send(apcPort, noteOn(apcChannel, apcPlay, 127), noteOff(apcChannel, apcPlay))
	if r.lastCommand() != ctrldev.CmdTogglePlay {
		t.Errorf("play sent %q", r.lastCommand())
	}
	r.send(apcPort, noteOn(apcChannel, apcStopAll, 127), noteOff(apcChannel, apcStopAll))
	if r.lastCommand() != ctrldev.CmdStopAll {
		t.Errorf("stop all sent %q", r.lastCommand())
	}
}

func TestAPCLauncher(t *testing.T) {
	r, _ := bindAPC(t)

	// top left pad is the first pad of the bank
	r.send(apcPort, noteOn(apcChannel, apcPadNote(apcPadRows-1, 0), 127))
	if s := r.app.PadState(0, 0); s != ctrldev.PadStarting {
		t.Fatalf("pad 0 state %v", s)
	}
	waitFor(t, "pad LED", func() bool {
		led := r.mirrors[apcPort].Note(apcPadNote(apcPadRows-1, 0))
		return led.Channel == apcLEDBlink
	})

	r.send(apcPort, noteOn(apcChannel, apcScene0+1, 127))
	if r.app.Bank() != 1 {
		t.Errorf("bank %d, want 1", r.app.Bank())
	}
	r.send(apcPort, noteOn(apcChannel, apcScene0+4, 127))
	if r.app.Bank() != 1 {
		t.Errorf("scene without a bank moved to bank %d", r.app.Bank())
	}

	r.send(apcPort, noteOn(apcChannel, apcTrack0+5, 127))
	if c, _ := r.app.ActiveChain(); c.Index != 5 {
		t.Errorf("active chain %d", c.Index)
	}
}

func TestAPCLauncherTempoScreen(t *testing.T) {
	r, a := bindAPC(t)

	r.app.ShowScreen("sequencer")
	waitFor(t, "screen on the modes", func() bool { return a.launcher.Screen() == "sequencer" })

	for i := 0; i < 3; i++ {
		r.send(apcPort, cc(apcChannel, apcKnob0, 1))
	}
	if !near(r.app.Tempo(), host.DefaultTempo+1) {
		t.Fatalf("tempo %v", r.app.Tempo())
	}
	if r.app.Screen() != "tempo" {
		t.Fatalf("screen %q", r.app.Screen())
	}
	waitFor(t, "screen revert", func() bool { return r.app.Screen() == "sequencer" })
}

func TestAPCMixer(t *testing.T) {
	r, a := bindAPC(t)
	r.apcSelect(apcSelVol)

	// three relative ticks make one step
	for i := 0; i < 3; i++ {
		r.send(apcPort, cc(apcChannel, apcKnob0+1, 1))
	}
	if lvl := r.app.Level(1); !near(lvl, 0.81) {
		t.Errorf("level %v, want 0.81", lvl)
	}

	// short press mutes
	r.send(apcPort, noteOn(apcChannel, apcTrack0+2, 127), noteOff(apcChannel, apcTrack0+2))
	if !r.app.Mute(2) {
		t.Fatal("track 2 not muted")
	}

	// scene 2 turns the track buttons into solo
	r.send(apcPort, noteOn(apcChannel, apcScene0+1, 127), noteOff(apcChannel, apcScene0+1))
	r.send(apcPort, noteOn(apcChannel, apcTrack0+3, 127), noteOff(apcChannel, apcTrack0+3))
	if !r.app.Solo(3) || r.app.Mute(3) {
		t.Errorf("track 3 solo %v mute %v", r.app.Solo(3), r.app.Mute(3))
	}

	// pads set the level of their column
	r.send(apcPort, noteOn(apcChannel, apcPadNote(0, 4), 127))
	if lvl := r.app.Level(4); !near(lvl, 0.2) {
		t.Errorf("pad level %v, want 0.2", lvl)
	}
	waitFor(t, "level bar", func() bool {
		return r.mirrors[apcPort].Note(apcPadNote(1, 4)).Value == 0 &&
			r.mirrors[apcPort].Note(apcPadNote(0, 4)).Value == apcBarColors[0]
	})

	// a gesture resolving after the mode left is dropped
	r.apcSelect(apcSelSend)
	a.mixer.trackGesture(6, gesture.Short)
	if r.app.Mute(6) {
		t.Error("inactive mixer mode muted a track")
	}
}

func TestAPCStatePersists(t *testing.T) {
	r, a := bindAPC(t)
	r.apcSelect(apcSelDev)
	st := a.State()

	r.reg.Unbind(apcPort)
	if !a.Ended() {
		t.Fatal("not ended")
	}
	if led := r.mirrors[apcPort].Note(apcTrack0); led.Value != 0 {
		t.Errorf("track LED %d after end", led.Value)
	}

	next, _ := NewAPCKey25(ctrldev.Deps{})
	next.(ctrldev.Stateful).SetState(st)
	next.Start()
	defer next.End()
	if name := next.(*APCKey25).ActiveModeName(); name != "device" {
		t.Errorf("restored mode %q", name)
	}
}
