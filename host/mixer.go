package host

import "go-ctrldev/bus"

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (a *App) strip(channel int) *Strip {
	s, ok := a.strips[channel]
	if !ok {
		s = &Strip{}
		a.strips[channel] = s
	}
	return s
}

func (a *App) Level(channel int) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if s, ok := a.strips[channel]; ok {
		return s.Level
	}
	return 0
}

func (a *App) SetLevel(channel int, v float64) {
	a.mu.Lock()
	s := a.strip(channel)
	s.Level = clamp(v, 0, 1)
	v = s.Level
	a.mu.Unlock()
	a.publish(bus.SignalMixer, bus.SubLevel, bus.Args{"channel": channel, "value": v})
}

func (a *App) Balance(channel int) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if s, ok := a.strips[channel]; ok {
		return s.Balance
	}
	return 0
}

func (a *App) SetBalance(channel int, v float64) {
	a.mu.Lock()
	s := a.strip(channel)
	s.Balance = clamp(v, -1, 1)
	v = s.Balance
	a.mu.Unlock()
	a.publish(bus.SignalMixer, bus.SubBalance, bus.Args{"channel": channel, "value": v})
}

func (a *App) Mute(channel int) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.strips[channel]
	return ok && s.Mute
}

func (a *App) SetMute(channel int, on bool) {
	a.mu.Lock()
	a.strip(channel).Mute = on
	a.mu.Unlock()
	a.publish(bus.SignalMixer, bus.SubMute, bus.Args{"channel": channel, "value": on})
}

func (a *App) Solo(channel int) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.strips[channel]
	return ok && s.Solo
}

func (a *App) SetSolo(channel int, on bool) {
	a.mu.Lock()
	a.strip(channel).Solo = on
	a.mu.Unlock()
	a.publish(bus.SignalMixer, bus.SubSolo, bus.Args{"channel": channel, "value": on})
}

// Strips returns a copy of every mixer strip
func (a *App) Strips() map[int]Strip {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[int]Strip, len(a.strips))
	for ch, s := range a.strips {
		out[ch] = *s
	}
	return out
}
