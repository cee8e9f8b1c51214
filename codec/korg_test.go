package codec

import (
	"bytes"
	"testing"
)

func TestSceneDumpRequest(t *testing.T) {
	got := SceneDumpRequest(3).Bytes()
	want := []byte{0xF0, 0x42, 0x43, 0x00, 0x01, 0x13, 0x00, 0x1F, 0x10, 0x00, 0xF7}
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestSceneWriteParseRoundTrip(t *testing.T) {
	scene := make([]byte, SceneLen)
	for i := range scene {
		scene[i] = byte(i * 7)
	}

	frame, err := SceneWrite(0, scene)
	if err != nil {
		t.Fatal(err)
	}
	if len(frame) != korgHeaderLen+len(fnSceneData)+ScenePackedLen+1 {
		t.Fatalf("frame len %d", len(frame))
	}

	got, ok := ParseSceneDump(frame)
	if !ok {
		t.Fatal("ParseSceneDump rejected frame")
	}
	if !bytes.Equal(got, scene) {
		t.Error("scene round trip mismatch")
	}
}

func TestSceneWriteWrongLength(t *testing.T) {
	if _, err := SceneWrite(0, make([]byte, 10)); err == nil {
		t.Error("expected error for short scene")
	}
}

func TestSetLEDMode(t *testing.T) {
	scene := make([]byte, SceneLen)
	out := SetLEDMode(scene, LEDModeExternal)
	if out[SceneLEDModeOffset] != LEDModeExternal {
		t.Error("LED mode not set")
	}
	if scene[SceneLEDModeOffset] != 0 {
		t.Error("input scene modified")
	}
}

func TestParseAck(t *testing.T) {
	tests := []struct {
		frame []byte
		want  AckKind
	}{
		{[]byte{0xF0, 0x42, 0x40, 0x00, 0x01, 0x13, 0x00, 0x5F, 0x23, 0x00, 0xF7}, AckLoadOK},
		{[]byte{0xF0, 0x42, 0x4F, 0x00, 0x01, 0x13, 0x00, 0x5F, 0x24, 0x00, 0xF7}, AckLoadNG},
		{[]byte{0xF0, 0x42, 0x40, 0x00, 0x01, 0x13, 0x00, 0x5F, 0x21, 0x00, 0xF7}, AckWriteOK},
		{[]byte{0xF0, 0x42, 0x40, 0x00, 0x01, 0x13, 0x00, 0x1F, 0x10, 0x00, 0xF7}, AckNone},
		{[]byte{0xF0, 0x43, 0x40, 0x00, 0x01, 0x13, 0x00, 0x5F, 0x23, 0x00, 0xF7}, AckNone},
		{[]byte{0xF0, 0xF7}, AckNone},
	}
	for _, tt := range tests {
		if got := ParseAck(tt.frame); got != tt.want {
			t.Errorf("ParseAck(% X) = %v, want %v", tt.frame, got, tt.want)
		}
	}
}

func TestLaunchpadPadMapping(t *testing.T) {
	for row := 0; row < 9; row++ {
		for col := 0; col < 8; col++ {
			r, c := LaunchpadPosition(LaunchpadPad(row, col))
			if r != row || c != col {
				t.Errorf("(%d,%d) -> %d -> (%d,%d)", row, col, LaunchpadPad(row, col), r, c)
			}
		}
	}
	if r, _ := LaunchpadPosition(5); r != -1 {
		t.Error("note 5 should not map to a pad")
	}
}

func TestLaunchpadRGB(t *testing.T) {
	got := LaunchpadRGB(RGBLED{Index: 11, R: 127, G: 0, B: 200}).Bytes()
	want := []byte{0xF0, 0x00, 0x20, 0x29, 0x02, 0x0D, 0x03, 0x03, 11, 127, 0, 0x48, 0xF7}
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}
