package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/xlab/closer"

	"go-ctrldev/bus"
	"go-ctrldev/config"
	"go-ctrldev/ctrldev"
	"go-ctrldev/debug"
	"go-ctrldev/drivers"
	"go-ctrldev/host"
	"go-ctrldev/midi"
	"go-ctrldev/theme"
	"go-ctrldev/tui"
)

// ports hands the serial output to the driver bound on the DIN port and asks
// the device manager for everything else
type ports struct {
	dm     *midi.DeviceManager
	serial *midi.SerialPort
}

func (p *ports) OpenOutput(inName string) (midi.Output, int, error) {
	if p.serial != nil && inName == p.serial.Name() {
		return p.serial.Output(), midi.SerialPortIndex, nil
	}
	return p.dm.OpenOutput(inName)
}

func main() {
	headless := flag.Bool("headless", false, "run without the monitor, log to stderr")
	cfgPath := flag.String("config", "", "config file (default ~/.config/go-ctrldev/config.json)")
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	defer closer.Close()

	var cfg *config.Config
	var err error
	if *cfgPath != "" {
		cfg, err = config.LoadFile(*cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		closer.Fatalln("config:", err)
	}

	if *debugFlag || cfg.Debug {
		if *headless {
			debug.SetOutput(os.Stderr)
		} else if err := debug.Enable(); err != nil {
			fmt.Fprintln(os.Stderr, "debug log:", err)
		}
	}

	b := bus.New()
	b.Start()
	app := host.New(b, host.Options{})

	store := ctrldev.NewStateStore(cfg.StateFile())
	if err := store.Load(); err != nil {
		debug.Error("main", err, "state %s", cfg.StateFile())
	}

	mirrors := tui.NewMirrors()
	events := tui.NewEventLog(0)
	b.SetTap(events.Tap)

	dm := midi.NewDeviceManager()
	p := &ports{dm: dm}
	if cfg.Serial.Device != "" {
		sp, err := midi.OpenSerial(cfg.Serial.Device, cfg.Serial.Baud, cfg.Serial.Name)
		if err != nil {
			debug.Error("main", err, "serial disabled")
			fmt.Fprintln(os.Stderr, "serial:", err)
		} else {
			p.serial = sp
		}
	}

	reg := ctrldev.NewRegistry(ctrldev.RegistryOptions{
		App:    app.Handles(),
		Bus:    b,
		Config: cfg,
		Ports:  p,
		Store:  store,
		Wrap:   mirrors.Wrap,
	})
	reg.RegisterAvailable(drivers.All()...)

	ctx, cancel := context.WithCancel(context.Background())
	scanned := make(chan struct{})
	go func() {
		dm.Run(ctx, reg)
		close(scanned)
	}()
	if p.serial != nil && !p.serial.Listen(reg) {
		debug.Warn("main", "no driver for %q on %s", cfg.Serial.Name, cfg.Serial.Device)
	}

	closer.Bind(func() {
		cancel()
		<-scanned
		if p.serial != nil {
			p.serial.Close(reg)
		}
		if err := reg.Close(); err != nil {
			debug.Error("main", err, "save state")
		}
		b.Close()
		debug.Disable()
	})

	if *headless {
		fmt.Println("go-ctrldev: waiting for controllers, Ctrl+C to quit")
		closer.Hold()
		return
	}

	palette, err := theme.LoadOrDefault(cfg.Palette)
	if err != nil {
		debug.Error("main", err, "palette %s, using %s", cfg.Palette, palette.Name)
	}
	m := tui.NewModel(tui.Options{
		Registry: reg,
		Host:     app,
		Mirrors:  mirrors,
		Events:   events,
		Devices:  dm.Events(),
		Theme:    theme.New(palette),
	})
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		closer.Fatalln("monitor:", err)
	}
}
