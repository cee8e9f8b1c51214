package debug

import (
	"errors"
	"strings"
	"testing"

	"github.com/Southclaws/fault/ftag"
)

func TestRecovered(t *testing.T) {
	err := Recovered("boom", "press callback")
	if ftag.Get(err) != KindCallback {
		t.Errorf("kind %q", ftag.Get(err))
	}
	if !strings.Contains(err.Error(), "boom") || !strings.Contains(err.Error(), "press callback panicked") {
		t.Errorf("message %q", err.Error())
	}

	cause := errors.New("index out of range")
	err = Recovered(cause, "bus callback")
	if !errors.Is(err, cause) || ftag.Get(err) != KindCallback {
		t.Errorf("wrapped panic error %v", err)
	}
}
