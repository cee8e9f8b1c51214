package debug

import (
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// KindCallback tags a panic recovered from a bus callback, timer action or
// driver hook
const KindCallback ftag.Kind = "CALLBACK_FAILURE"

// Recovered turns a value returned by recover into a tagged error
func Recovered(r any, what string) error {
	if err, ok := r.(error); ok {
		return fault.Wrap(err, fmsg.With(what+" panicked"), ftag.With(KindCallback))
	}
	return fault.New(fmt.Sprint(r), fmsg.With(what+" panicked"), ftag.With(KindCallback))
}
