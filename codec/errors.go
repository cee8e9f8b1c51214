// Package codec encodes and decodes vendor SysEx payloads: 7-bit packing,
// the MPK mini mk3 program descriptor, nanoKONTROL2 scene frames and
// Launchpad Mini MK3 commands.
package codec

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// KindMalformed tags protocol input that is too short, has the wrong length
// or carries a field outside its domain.
const KindMalformed ftag.Kind = "MALFORMED_PROTOCOL_INPUT"

func malformed(msg, desc string) error {
	return fault.New(msg, fmsg.WithDesc(msg, desc), ftag.With(KindMalformed))
}
