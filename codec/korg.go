package codec

import (
	"fmt"

	"go-ctrldev/debug"
	"go-ctrldev/midi"
)

// nanoKONTROL2 exclusive frames:
//
//	F0 42 4g 00 01 13 00 <function...> F7
//
// g is the global MIDI channel.
const (
	korgID        = 0x42
	korgHeaderLen = 7

	// SceneLen is the unpacked scene data size, ScenePackedLen its 7-bit form
	SceneLen       = 339
	ScenePackedLen = 388

	// Offset of the LED mode byte in the unpacked scene
	SceneLEDModeOffset = 2
	LEDModeInternal    = 0
	LEDModeExternal    = 1
)

var (
	fnSceneDumpRequest = []byte{0x1F, 0x10, 0x00}
	fnSceneWrite       = []byte{0x1F, 0x11, 0x00}
	fnSceneData        = []byte{0x7F, 0x7F, 0x02, 0x03, 0x05, 0x40}
	fnDataLoadOK       = []byte{0x5F, 0x23, 0x00}
	fnDataLoadNG       = []byte{0x5F, 0x24, 0x00}
	fnWriteOK          = []byte{0x5F, 0x21, 0x00}
	fnWriteNG          = []byte{0x5F, 0x22, 0x00}
)

func korgHeader(channel uint8) []byte {
	return []byte{midi.SysExStart, korgID, 0x40 | channel&0x0F, 0x00, 0x01, 0x13, 0x00}
}

func korgFrame(channel uint8, fn ...[]byte) midi.SysEx {
	out := korgHeader(channel)
	for _, f := range fn {
		out = append(out, f...)
	}
	return midi.SysEx(append(out, midi.SysExEnd))
}

// korgBody returns the function bytes of a nanoKONTROL2 frame on any channel
func korgBody(b []byte) ([]byte, bool) {
	if len(b) < korgHeaderLen+1 || b[0] != midi.SysExStart || b[len(b)-1] != midi.SysExEnd {
		return nil, false
	}
	if b[1] != korgID || b[2]&0xF0 != 0x40 || b[3] != 0x00 || b[4] != 0x01 || b[5] != 0x13 || b[6] != 0x00 {
		return nil, false
	}
	return b[korgHeaderLen : len(b)-1], true
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// IsKorgMessage reports whether b is a nanoKONTROL2 exclusive frame
func IsKorgMessage(b []byte) bool {
	_, ok := korgBody(b)
	return ok
}

// SceneDumpRequest asks for the current scene data
func SceneDumpRequest(channel uint8) midi.SysEx {
	return korgFrame(channel, fnSceneDumpRequest)
}

// SceneStoreRequest asks the device to store the current scene to flash
func SceneStoreRequest(channel uint8) midi.SysEx {
	return korgFrame(channel, fnSceneWrite)
}

// ParseSceneDump returns the unpacked scene from a scene data frame
func ParseSceneDump(b []byte) ([]byte, bool) {
	body, ok := korgBody(b)
	if !ok || !hasPrefix(body, fnSceneData) {
		return nil, false
	}
	packed := body[len(fnSceneData):]
	if len(packed) != ScenePackedLen {
		debug.Warn("codec", "nanoKONTROL2 scene: %d packed bytes, want %d", len(packed), ScenePackedLen)
		return nil, false
	}
	return Unpack7(packed, SceneLen), true
}

// SceneWrite builds a scene data frame from unpacked scene bytes
func SceneWrite(channel uint8, scene []byte) (midi.SysEx, error) {
	if len(scene) != SceneLen {
		return nil, malformed("wrong scene length", fmt.Sprintf("%d bytes, want %d", len(scene), SceneLen))
	}
	return korgFrame(channel, fnSceneData, Pack7(scene)), nil
}

// SetLEDMode returns a copy of scene with the LED mode byte set
func SetLEDMode(scene []byte, mode byte) []byte {
	out := make([]byte, len(scene))
	copy(out, scene)
	if len(out) > SceneLEDModeOffset {
		out[SceneLEDModeOffset] = mode
	}
	return out
}

// AckKind is the device's answer to a data load or write
type AckKind int

const (
	AckNone AckKind = iota
	AckLoadOK
	AckLoadNG
	AckWriteOK
	AckWriteNG
)

func (a AckKind) String() string {
	switch a {
	case AckLoadOK:
		return "load ok"
	case AckLoadNG:
		return "load ng"
	case AckWriteOK:
		return "write ok"
	case AckWriteNG:
		return "write ng"
	}
	return "none"
}

// ParseAck recognises the ack/nak frames
func ParseAck(b []byte) AckKind {
	body, ok := korgBody(b)
	if !ok {
		return AckNone
	}
	switch {
	case hasPrefix(body, fnDataLoadOK):
		return AckLoadOK
	case hasPrefix(body, fnDataLoadNG):
		return AckLoadNG
	case hasPrefix(body, fnWriteOK):
		return AckWriteOK
	case hasPrefix(body, fnWriteNG):
		return AckWriteNG
	}
	return AckNone
}
