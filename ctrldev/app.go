// Package ctrldev is the control-surface driver framework: the driver and
// mode contracts, the registry binding drivers to ports, and the application
// interfaces drivers act on.
package ctrldev

// MasterChannel addresses the master bus on the Mixer
const MasterChannel = 255

// Commander dispatches named application commands. Fire-and-forget.
type Commander interface {
	SendCommand(name string, params ...any)
}

// Mixer gives access to levels (0..1), balance (-1..1), mute and solo
type Mixer interface {
	Level(channel int) float64
	SetLevel(channel int, v float64)
	Balance(channel int) float64
	SetBalance(channel int, v float64)
	Mute(channel int) bool
	SetMute(channel int, on bool)
	Solo(channel int) bool
	SetSolo(channel int, on bool)
}

// Chain is a processing chain as seen by drivers
type Chain struct {
	ID           int
	Index        int
	Name         string
	MixerChannel int
	MidiChannel  int
}

// Chains gives access to the chain list and the active chain
type Chains interface {
	ChainCount() int
	ChainByIndex(i int) (Chain, bool)
	ActiveChain() (Chain, bool)
	SetActiveChainByID(id int) bool
}

// PadState is the play state of one sequence pad
type PadState int

const (
	PadEmpty PadState = iota
	PadStopped
	PadStarting
	PadPlaying
	PadStopping
)

func (s PadState) String() string {
	switch s {
	case PadStopped:
		return "stopped"
	case PadStarting:
		return "starting"
	case PadPlaying:
		return "playing"
	case PadStopping:
		return "stopping"
	}
	return "empty"
}

// Sequencer gives access to pad/pattern state per bank
type Sequencer interface {
	Bank() int
	SetBank(bank int)
	BankCount() int
	PadCount(bank int) int
	PadState(bank, pad int) PadState
	TogglePlayState(bank, pad int)
	Tempo() float64
	SetTempo(bpm float64)
}

// App bundles the application collaborators handed to drivers
type App struct {
	Commander
	Mixer
	Chains
	Sequencer
}

// Commands sent by drivers
const (
	CmdStopAll       = "STOP_ALL"
	CmdAllNotesOff   = "ALL_NOTES_OFF"
	CmdAllSoundsOff  = "ALL_SOUNDS_OFF"
	CmdTogglePlay    = "TOGGLE_PLAY"
	CmdStop          = "STOP"
	CmdRecord        = "TOGGLE_RECORD"
	CmdRewind        = "REWIND"
	CmdForward       = "FORWARD"
	CmdCycle         = "TOGGLE_CYCLE"
	CmdMarkerPrev    = "MARKER_PREV"
	CmdMarkerNext    = "MARKER_NEXT"
	CmdShowScreen    = "SHOW_SCREEN"
	CmdTempoUp       = "TEMPO_UP"
	CmdTempoDown     = "TEMPO_DOWN"
	CmdChainNext     = "CHAIN_NEXT"
	CmdChainPrev     = "CHAIN_PREV"
	CmdProgramChange = "PROGRAM_CHANGE"
)
