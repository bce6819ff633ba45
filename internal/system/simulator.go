package system

import (
	"context"
	"net"
	"slices"
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/device"
	"github.com/KevinKickass/OpenProfinetDevice/internal/logging"
	"github.com/KevinKickass/OpenProfinetDevice/internal/netif"
	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
	"github.com/KevinKickass/OpenProfinetDevice/internal/stack/simstack"
	"go.uber.org/zap"
)

// simulatedAREP is the AR handle used by the simulated controller.
const simulatedAREP uint32 = 1

// loopbackResolver accepts every interface name and reports 127.0.0.1, so
// the simulated device starts on hosts without the configured NICs.
type loopbackResolver struct{}

func (loopbackResolver) Exists(name string) bool {
	return name != ""
}

func (loopbackResolver) Lookup(name string) (netif.Info, error) {
	return netif.Info{
		Name:    name,
		IP:      net.IPv4(127, 0, 0, 1).To4(),
		Netmask: net.IPv4(255, 0, 0, 0).To4(),
		Gateway: net.IPv4zero.To4(),
	}, nil
}

// simController plays a PLC against the simulated engine: it connects with
// the modules of the description, starts cyclic data and keeps writing a
// changing pattern into every device input.
type simController struct {
	sim      *simstack.Sim
	plugs    []simstack.Plug
	interval time.Duration
	logger   logging.Logger
}

func newSimController(sim *simstack.Sim, dev *device.Device, interval time.Duration, logger logging.Logger) *simController {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &simController{
		sim:      sim,
		plugs:    planPlugs(dev),
		interval: interval,
		logger:   logger,
	}
}

// planPlugs places every module of the description into its fixed slot,
// or the first free slot it allows.
func planPlugs(dev *device.Device) []simstack.Plug {
	plugs := []simstack.Plug{
		{Slot: device.DAPSlot, Subslot: device.DAPIdentitySubslot, ModuleID: device.DAPModuleID, SubmoduleID: device.DAPIdentitySubmoduleID},
		{Slot: device.DAPSlot, Subslot: device.DAPInterface1Subslot, ModuleID: device.DAPModuleID, SubmoduleID: device.DAPInterface1SubmoduleID},
		{Slot: device.DAPSlot, Subslot: device.DAPPort1Subslot, ModuleID: device.DAPModuleID, SubmoduleID: device.DAPPort1SubmoduleID},
	}

	used := map[uint16]bool{device.DAPSlot: true}
	var pending []uint32
	for _, id := range dev.Modules.IDs() {
		if id == device.DAPModuleID {
			continue
		}
		m := dev.Modules.Get(id)
		if m.PlugInfo.FixedSlot != device.NoFixedSlot {
			used[m.PlugInfo.FixedSlot] = true
			plugs = append(plugs, modulePlugs(m, m.PlugInfo.FixedSlot, id)...)
			continue
		}
		pending = append(pending, id)
	}

	for _, id := range pending {
		m := dev.Modules.Get(id)
		slot, ok := freeSlot(m.PlugInfo, used)
		if !ok {
			continue
		}
		used[slot] = true
		plugs = append(plugs, modulePlugs(m, slot, id)...)
	}

	return plugs
}

func freeSlot(info device.PlugInfo, used map[uint16]bool) (uint16, bool) {
	if len(info.AllowedSlots) > 0 {
		for _, slot := range info.AllowedSlots {
			if !used[slot] {
				return slot, true
			}
		}
		return 0, false
	}
	for slot := uint16(1); slot < device.NoFixedSlot; slot++ {
		if !used[slot] {
			return slot, true
		}
	}
	return 0, false
}

func modulePlugs(m *device.ModuleWithPlugInfo, slot uint16, moduleID uint32) []simstack.Plug {
	var plugs []simstack.Plug
	for n, subID := range m.Module.Submodules.IDs() {
		sub := m.Module.Submodules.Get(subID)
		plugs = append(plugs, simstack.Plug{
			Slot:        slot,
			Subslot:     uint16(n + 1),
			ModuleID:    moduleID,
			SubmoduleID: subID,
			Config:      sub.DataConfig(),
		})
	}
	return plugs
}

// Run connects, waits for application ready and then updates the device
// inputs every interval until ctx is done. The AR is released on exit.
func (c *simController) Run(ctx context.Context) {
	c.logger.Info("Simulated controller connecting",
		zap.Uint32("arep", simulatedAREP),
		zap.Int("submodules", len(c.plugs)))

	c.sim.Connect(simulatedAREP, c.plugs)
	if !c.waitForApplicationReady(ctx) {
		return
	}
	c.sim.StartData(simulatedAREP)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	var tick byte
	for {
		tick++
		c.writeInputs(tick)

		select {
		case <-ctx.Done():
			c.sim.Release(simulatedAREP)
			c.logger.Info("Simulated controller released connection")
			return
		case <-ticker.C:
		}
	}
}

func (c *simController) waitForApplicationReady(ctx context.Context) bool {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if slices.Contains(c.sim.ApplicationReadyCalls(), simulatedAREP) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// writeInputs fills every device input frame with tick.
func (c *simController) writeInputs(tick byte) {
	for _, p := range c.plugs {
		if p.Config.OutSize == 0 {
			continue
		}
		data := make([]byte, p.Config.OutSize)
		for n := range data {
			data[n] = tick
		}
		c.sim.SetOutputData(p.Slot, p.Subslot, data, stack.IOXSGood)
	}
}
