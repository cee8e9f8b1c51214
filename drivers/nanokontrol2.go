package drivers

import (
	"context"
	"sync"
	"time"

	"go-ctrldev/bus"
	"go-ctrldev/codec"
	"go-ctrldev/ctrldev"
	"go-ctrldev/debug"
	"go-ctrldev/gesture"
	"go-ctrldev/midi"
)

// nanoKONTROL2 factory CC layout (scene 1)
const (
	nanoFader0   = 0  // 0-7
	nanoKnob0    = 16 // 16-23
	nanoSolo0    = 32 // 32-39
	nanoMute0    = 48 // 48-55
	nanoRec0     = 64 // 64-71
	nanoStrips   = 8
	nanoPlay     = 41
	nanoStop     = 42
	nanoRewind   = 43
	nanoForward  = 44
	nanoRecord   = 45
	nanoCycle    = 46
	nanoTrackPrv = 58
	nanoTrackNxt = 59
	nanoSet      = 60
	nanoMarkPrv  = 61
	nanoMarkNxt  = 62

	nanoGlobalChannel = 0
	nanoSceneWrite    = "scene-write"
	nanoSceneDebounce = 200 * time.Millisecond
)

// NanoKontrol2 is a mixer controller: eight strips of fader, knob and
// solo/mute/rec buttons over a window of chains, plus transport. On start it
// switches the device to externally driven LEDs.
type NanoKontrol2 struct {
	ctrldev.Base

	leds   *ledWriter
	timers *gesture.Scheduler

	mu     sync.Mutex
	offset int  // first chain of the strip window
	set    bool // SET held
	scene  []byte
}

// NanoKontrol2Factory builds nanoKONTROL2 drivers
func NanoKontrol2Factory() ctrldev.Factory {
	return ctrldev.Factory{
		Name:       "nanokontrol2",
		Identities: []string{"nanoKONTROL2", "nanoKONTROL2 MIDI 1", "nanoKONTROL2 SLIDER/KNOB"},
		Caps:       ctrldev.CapMixer,
		New:        NewNanoKontrol2,
	}
}

func NewNanoKontrol2(d ctrldev.Deps) (ctrldev.Driver, error) {
	n := &NanoKontrol2{}
	n.Init("nanokontrol2", ctrldev.CapMixer, d)
	n.leds = newLEDWriter("nano", n.Out)
	n.timers = gesture.NewScheduler("nano", gesture.OneShot, n.Config.PollInterval())
	return n, nil
}

func (n *NanoKontrol2) Start() {
	n.timers.Start(context.Background())
	if n.Bus != nil {
		refresh := func(bus.Event) { n.Refresh() }
		n.Bus.RegisterQueued(n, bus.SignalMixer, bus.SubMute, refresh)
		n.Bus.RegisterQueued(n, bus.SignalMixer, bus.SubSolo, refresh)
		n.Bus.RegisterQueued(n, bus.SignalChain, bus.SubActiveChain, refresh)
		n.Bus.RegisterQueued(n, bus.SignalChain, bus.SubChainAdded, refresh)
		n.Bus.RegisterQueued(n, bus.SignalChain, bus.SubChainRemoved, refresh)
	}
	n.Out.SendRaw(codec.SceneDumpRequest(nanoGlobalChannel))
	n.leds.flush(n.frame(), true)
}

func (n *NanoKontrol2) Offset() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.offset
}

// strip returns the mixer channel under strip i of the window
func (n *NanoKontrol2) strip(i int) (int, bool) {
	return chainChannel(n.App, n.Offset()+i)
}

func (n *NanoKontrol2) MidiEvent(msg midi.Message) bool {
	if n.Ended() {
		return false
	}
	switch m := msg.(type) {
	case midi.SysEx:
		return n.sysEx(m)
	case midi.ShortMessage:
		if m.Kind() != midi.CC {
			return false
		}
		return n.control(m.Data1, m.Data2)
	}
	return false
}

func inRange(cc, first uint8) (int, bool) {
	if cc >= first && cc < first+nanoStrips {
		return int(cc - first), true
	}
	return 0, false
}

func (n *NanoKontrol2) control(cc, value uint8) bool {
	if i, ok := inRange(cc, nanoFader0); ok {
		if ch, ok := n.strip(i); ok {
			n.App.SetLevel(ch, float64(value)/127)
		}
		return true
	}
	if i, ok := inRange(cc, nanoKnob0); ok {
		if ch, ok := n.strip(i); ok {
			n.App.SetBalance(ch, float64(value)/63.5-1)
		}
		return true
	}

	pressed := value > 0
	if cc == nanoSet {
		n.mu.Lock()
		n.set = pressed
		n.mu.Unlock()
		return true
	}

	if i, ok := inRange(cc, nanoSolo0); ok {
		if ch, ok := n.strip(i); ok && pressed {
			n.App.SetSolo(ch, !n.App.Solo(ch))
		}
		return true
	}
	if i, ok := inRange(cc, nanoMute0); ok {
		if ch, ok := n.strip(i); ok && pressed {
			n.App.SetMute(ch, !n.App.Mute(ch))
		}
		return true
	}
	if i, ok := inRange(cc, nanoRec0); ok {
		if pressed {
			selectChainIndex(n.App, n.Offset()+i)
		}
		return true
	}

	if cc == nanoTrackPrv || cc == nanoTrackNxt {
		if pressed {
			n.shiftWindow(cc == nanoTrackNxt)
		}
		return true
	}

	cmd, ok := n.transport(cc)
	if !ok {
		return false
	}
	if pressed {
		sendCommand(n.App, cmd)
	}
	return true
}

// transport maps a transport button to its command. SET + STOP stops all.
func (n *NanoKontrol2) transport(cc uint8) (string, bool) {
	n.mu.Lock()
	set := n.set
	n.mu.Unlock()

	switch cc {
	case nanoPlay:
		return ctrldev.CmdTogglePlay, true
	case nanoStop:
		if set {
			return ctrldev.CmdStopAll, true
		}
		return ctrldev.CmdStop, true
	case nanoRewind:
		return ctrldev.CmdRewind, true
	case nanoForward:
		return ctrldev.CmdForward, true
	case nanoRecord:
		return ctrldev.CmdRecord, true
	case nanoCycle:
		return ctrldev.CmdCycle, true
	case nanoMarkPrv:
		return ctrldev.CmdMarkerPrev, true
	case nanoMarkNxt:
		return ctrldev.CmdMarkerNext, true
	}
	return "", false
}

// shiftWindow moves the strip window by a bank of eight chains
func (n *NanoKontrol2) shiftWindow(forward bool) {
	count := 0
	if n.App.Chains != nil {
		count = n.App.ChainCount()
	}
	n.mu.Lock()
	next := n.offset
	if forward {
		next += nanoStrips
	} else {
		next -= nanoStrips
	}
	moved := next >= 0 && next < count
	if moved {
		n.offset = next
	}
	n.mu.Unlock()
	if moved {
		debug.Log("nano", "strips at chain %d", next)
		n.Refresh()
	}
}

func (n *NanoKontrol2) sysEx(m midi.SysEx) bool {
	if !codec.IsKorgMessage(m) {
		return false
	}
	if scene, ok := codec.ParseSceneDump(m); ok {
		n.sceneReceived(scene)
		return true
	}
	switch ack := codec.ParseAck(m); ack {
	case codec.AckLoadOK, codec.AckWriteOK:
		debug.Log("nano", "scene %v", ack)
		n.Refresh()
	case codec.AckLoadNG, codec.AckWriteNG:
		debug.Warn("nano", "scene %v", ack)
	default:
		debug.Log("nano", "unhandled exclusive % X", []byte(m))
	}
	return true
}

// sceneReceived switches the scene to external LED mode and schedules the
// write back. A burst of dumps results in one write.
func (n *NanoKontrol2) sceneReceived(scene []byte) {
	if scene[codec.SceneLEDModeOffset] == codec.LEDModeExternal {
		debug.Log("nano", "scene already in external LED mode")
		return
	}
	n.mu.Lock()
	n.scene = codec.SetLEDMode(scene, codec.LEDModeExternal)
	n.mu.Unlock()
	n.timers.Add(nanoSceneWrite, nanoSceneDebounce, n.writeScene)
}

func (n *NanoKontrol2) writeScene() {
	n.mu.Lock()
	scene := n.scene
	n.scene = nil
	n.mu.Unlock()
	if scene == nil || n.Ended() {
		return
	}
	msg, err := codec.SceneWrite(nanoGlobalChannel, scene)
	if err != nil {
		debug.Error("nano", err, "scene write")
		return
	}
	n.Out.SendRaw(msg)
	debug.Log("nano", "scene written with external LEDs")
}

func (n *NanoKontrol2) frame() ledFrame {
	f := make(ledFrame)
	active := activeChainIndex(n.App)
	off := n.Offset()
	for i := 0; i < nanoStrips; i++ {
		ch, ok := n.strip(i)
		solo, mute := false, false
		if ok {
			solo, mute = n.App.Solo(ch), n.App.Mute(ch)
		}
		f[nanoSolo0+uint8(i)] = ledState{value: onOff(solo), cc: true}
		f[nanoMute0+uint8(i)] = ledState{value: onOff(mute), cc: true}
		f[nanoRec0+uint8(i)] = ledState{value: onOff(ok && off+i == active), cc: true}
	}
	return f
}

func (n *NanoKontrol2) Refresh() {
	if n.Ended() || n.Sleeping() {
		return
	}
	n.leds.flush(n.frame(), false)
}

func (n *NanoKontrol2) SetSleep(on bool) {
	n.Base.SetSleep(on)
	if on {
		n.LightOff()
	}
}

func (n *NanoKontrol2) LightOff() {
	f := make(ledFrame)
	for i := uint8(0); i < nanoStrips; i++ {
		f[nanoSolo0+i] = ledState{cc: true}
		f[nanoMute0+i] = ledState{cc: true}
		f[nanoRec0+i] = ledState{cc: true}
	}
	n.leds.flush(f, true)
}

func (n *NanoKontrol2) State() map[string]any {
	return map[string]any{"offset": n.Offset()}
}

func (n *NanoKontrol2) SetState(state map[string]any) {
	if off := ctrldev.StateInt(state, "offset", 0); off >= 0 && off%nanoStrips == 0 {
		n.mu.Lock()
		n.offset = off
		n.mu.Unlock()
	}
}

func (n *NanoKontrol2) End() {
	if n.Ended() {
		return
	}
	if n.Bus != nil {
		n.Bus.UnregisterAll(n)
	}
	n.timers.Stop()
	n.LightOff()
	n.Base.End()
}
