package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-ctrldev/codec"
	"go-ctrldev/ctrldev"
	ctrldrivers "go-ctrldev/drivers"
	"go-ctrldev/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "detect":
		detect()
	case "sysex":
		if len(os.Args) < 3 {
			usage()
			return
		}
		sysex(os.Args[2])
	case "leds":
		testLEDs()
	case "poll":
		poll()
	case "pack":
		pack(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Println("Controller Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list            - List all MIDI ports")
	fmt.Println("  detect          - Show which driver each input port would get")
	fmt.Println("  sysex <driver>  - Send the driver's handshake and print the reply")
	fmt.Println("  leds            - Light a diagonal on a Launchpad")
	fmt.Println("  poll            - Watch connects and print every message")
	fmt.Println("  pack <hex>      - Show the 7-bit packing of a byte string")
	fmt.Println("")
	fmt.Println("Drivers:")
	for _, f := range ctrldrivers.All() {
		fmt.Printf("  %-20s %s\n", f.Name, strings.Join(f.Identities, ", "))
	}
}

// inPorts enumerates inputs with a timeout (CoreMIDI can hang)
func inPorts() []drivers.In {
	ch := make(chan []drivers.In, 1)
	go func() { ch <- gomidi.GetInPorts() }()
	select {
	case ins := <-ch:
		return ins
	case <-time.After(3 * time.Second):
		fmt.Println("Timeout getting input ports")
		return nil
	}
}

func listPorts() {
	fmt.Println("Getting MIDI ports...")

	fmt.Println("\nInput ports:")
	for i, p := range inPorts() {
		fmt.Printf("  %d: %s\n", i, p.String())
	}

	fmt.Println("\nOutput ports:")
	for i, p := range gomidi.GetOutPorts() {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
}

func newRegistry() *ctrldev.Registry {
	reg := ctrldev.NewRegistry(ctrldev.RegistryOptions{})
	reg.RegisterAvailable(ctrldrivers.All()...)
	return reg
}

func detect() {
	reg := newRegistry()
	found := 0
	for _, p := range inPorts() {
		f, ok := reg.Match(p.String())
		if !ok {
			fmt.Printf("  %d: %-32s -\n", p.Number(), p.String())
			continue
		}
		found++
		fmt.Printf("  %d: %-32s %s (%s)\n", p.Number(), p.String(), f.Name, f.Caps)
	}
	fmt.Printf("\n%d supported controller(s)\n", found)
}

// findPort returns the first input port bound to the named driver
func findPort(driver string) (drivers.In, bool) {
	reg := newRegistry()
	for _, p := range inPorts() {
		if f, ok := reg.Match(p.String()); ok && f.Name == driver {
			return p, true
		}
	}
	return nil, false
}

func handshake(driver string) (midi.SysEx, bool) {
	switch driver {
	case "launchpad_mini_mk3":
		return codec.LaunchpadProgrammerMode(true), true
	case "nanokontrol2":
		return codec.SceneDumpRequest(0), true
	case "mpk_mini_mk3":
		return codec.ProgramRequest(1), true
	}
	return nil, false
}

func sysex(driver string) {
	msg, ok := handshake(driver)
	if !ok {
		fmt.Printf("No handshake for %q\n", driver)
		return
	}
	in, ok := findPort(driver)
	if !ok {
		fmt.Printf("No %s found\n", driver)
		return
	}
	fmt.Printf("Using input: %s\n", in.String())

	stop, err := gomidi.ListenTo(in, func(m gomidi.Message, _ int32) {
		if parsed, ok := midi.FromBytes(m); ok {
			if sx, ok := parsed.(midi.SysEx); ok {
				describeReply(sx)
			}
		}
	}, gomidi.UseSysEx())
	if err != nil {
		fmt.Printf("Error listening: %v\n", err)
		return
	}
	defer stop()

	dm := midi.NewDeviceManager()
	out, n, err := dm.OpenOutput(in.String())
	if err != nil || n == 0 {
		fmt.Printf("No output paired with %s: %v\n", in.String(), err)
		return
	}
	defer out.(interface{ Close() error }).Close()

	fmt.Printf("Sending: % X\n", []byte(msg))
	out.SendRaw(msg)

	time.Sleep(time.Second)
	fmt.Println("Done")
}

func describeReply(sx midi.SysEx) {
	b := sx.Bytes()
	fmt.Printf("Reply: %d bytes\n", len(b))
	switch {
	case codec.IsProgramMessage(b):
		if p, ok := codec.ParseProgram(b); ok {
			fmt.Printf("  MPK program %d %q, pads ch %d, tempo %d\n", p.Number, p.Name, p.PadChannel+1, p.Tempo)
		}
	case codec.IsKorgMessage(b):
		if scene, ok := codec.ParseSceneDump(b); ok {
			fmt.Printf("  nanoKONTROL2 scene, %d bytes\n", len(scene))
		} else {
			fmt.Printf("  Korg %s\n", codec.ParseAck(b))
		}
	default:
		fmt.Printf("  % X\n", b)
	}
}

func testLEDs() {
	in, ok := findPort("launchpad_mini_mk3")
	if !ok {
		fmt.Println("No Launchpad found")
		return
	}
	dm := midi.NewDeviceManager()
	out, n, err := dm.OpenOutput(in.String())
	if err != nil || n == 0 {
		fmt.Printf("No output paired with %s: %v\n", in.String(), err)
		return
	}
	defer out.(interface{ Close() error }).Close()

	out.SendRaw(codec.LaunchpadProgrammerMode(true))
	time.Sleep(100 * time.Millisecond)

	fmt.Println("Lighting up diagonal (green)...")
	for i := 0; i < 8; i++ {
		out.NoteOn(midi.ChannelStatic, codec.LaunchpadPad(i, i), midi.ColorGreen)
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Println("Press Enter to clear...")
	fmt.Scanln()

	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			out.NoteOn(midi.ChannelStatic, codec.LaunchpadPad(row, col), 0)
		}
	}
	out.SendRaw(codec.LaunchpadProgrammerMode(false))
	time.Sleep(100 * time.Millisecond)
	fmt.Println("Done!")
}

// printer binds every port and prints what arrives
type printer struct{}

func (printer) Bind(port int, name string) bool { return true }
func (printer) Unbind(port int)                 {}
func (printer) Dispatch(port int, msg midi.Message) bool {
	fmt.Printf("[%s] %d: %s\n", time.Now().Format("15:04:05.000"), port, msg)
	return true
}

func poll() {
	fmt.Println("Watching for controllers. Ctrl+C to exit.")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	dm := midi.NewDeviceManager()
	go dm.Run(ctx, printer{})

	reg := newRegistry()
	for ev := range dm.Events() {
		verb := "connected"
		if ev.Type == midi.DeviceDisconnected {
			verb = "disconnected"
		}
		driver := "-"
		if f, ok := reg.Match(ev.ID); ok {
			driver = f.Name
		}
		fmt.Printf("\n[%s] %s %q (port %d) -> %s\n", time.Now().Format("15:04:05"), verb, ev.ID, ev.Port, driver)
	}
}

func pack(args []string) {
	raw, err := hex.DecodeString(strings.Join(args, ""))
	if err != nil || len(raw) == 0 {
		fmt.Println("usage: pack <hex bytes>, e.g. pack 80ff7f01")
		return
	}
	packed := codec.Pack7(raw)
	fmt.Printf("in:       % X\n", raw)
	fmt.Printf("packed:   % X (%d bytes)\n", packed, codec.PackedLen(len(raw)))
	fmt.Printf("unpacked: % X\n", codec.Unpack7(packed, len(raw)))
}
