package host

import (
	"go-ctrldev/bus"
	"go-ctrldev/ctrldev"
)

func (a *App) ChainCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.chains)
}

func (a *App) ChainByIndex(i int) (ctrldev.Chain, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if i < 0 || i >= len(a.chains) {
		return ctrldev.Chain{}, false
	}
	return a.chains[i], true
}

func (a *App) ActiveChain() (ctrldev.Chain, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.chains) == 0 {
		return ctrldev.Chain{}, false
	}
	return a.chains[a.active], true
}

func (a *App) SetActiveChainByID(id int) bool {
	a.mu.Lock()
	idx := -1
	for i, c := range a.chains {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		a.mu.Unlock()
		return false
	}
	a.active = idx
	a.mu.Unlock()
	a.publish(bus.SignalChain, bus.SubActiveChain, bus.Args{"chain": id})
	return true
}

func (a *App) stepChain(forward bool) {
	a.mu.RLock()
	n := len(a.chains)
	idx := a.active
	a.mu.RUnlock()
	if n == 0 {
		return
	}
	if forward {
		idx = (idx + 1) % n
	} else {
		idx = (idx + n - 1) % n
	}
	c, _ := a.ChainByIndex(idx)
	a.SetActiveChainByID(c.ID)
}
