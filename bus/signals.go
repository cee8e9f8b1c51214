package bus

import "fmt"

// Signal groups related events
type Signal int

const (
	SignalGUI Signal = iota
	SignalMixer
	SignalChain
	SignalSequencer
	SignalMedia
	SignalCtrlDev
	SignalCommand

	NumSignals
)

// Subsignal selects an event within a signal
type Subsignal int

// NumSubsignals bounds the subsignal index of every signal
const NumSubsignals = 16

// SignalGUI
const (
	SubScreen Subsignal = iota // args: "screen"
)

// SignalMixer, args: "channel", "value"
const (
	SubLevel Subsignal = iota
	SubBalance
	SubMute
	SubSolo
)

// SignalChain
const (
	SubActiveChain Subsignal = iota // args: "chain"
	SubChainAdded
	SubChainRemoved
)

// SignalSequencer
const (
	SubPlayState Subsignal = iota // args: "bank", "pad", "state"
	SubBank                       // args: "bank"
	SubTempo                      // args: "tempo"
)

// SignalMedia
const (
	SubMediaState Subsignal = iota // args: "kind", "state"
)

// SignalCtrlDev
const (
	SubDriverBound   Subsignal = iota // args: "port", "driver"
	SubDriverUnbound                  // args: "port", "driver"
	SubModeChanged                    // args: "port", "mode"
	SubGesture                        // args: "port", "button", "class"
)

// SignalCommand
const (
	SubCommand Subsignal = iota // args: "name", "params"
)

var signalNames = [...]string{
	SignalGUI:       "gui",
	SignalMixer:     "mixer",
	SignalChain:     "chain",
	SignalSequencer: "sequencer",
	SignalMedia:     "media",
	SignalCtrlDev:   "ctrldev",
	SignalCommand:   "command",
}

func (s Signal) String() string {
	if s >= 0 && int(s) < len(signalNames) {
		return signalNames[s]
	}
	return fmt.Sprintf("signal(%d)", int(s))
}
