package profinet

import (
	"github.com/KevinKickass/OpenProfinetDevice/internal/device"
	"github.com/KevinKickass/OpenProfinetDevice/internal/instance"
	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
	"go.uber.org/zap"
)

const api uint32 = 0

// plugDAP plugs the device access point through the same path the
// controller uses, one port per configured interface.
func (i *Instance) plugDAP() error {
	noIO := stack.DataConfig{Direction: stack.DirNoIO}

	if err := i.ExpModuleInd(api, device.DAPSlot, device.DAPModuleID); err != nil {
		return err
	}
	subs := []struct {
		subslot uint16
		id      uint32
	}{
		{device.DAPIdentitySubslot, device.DAPIdentitySubmoduleID},
		{device.DAPInterface1Subslot, device.DAPInterface1SubmoduleID},
	}
	for p := 0; p < i.ports && p < len(device.DAPPortSubslots); p++ {
		subslot := device.DAPPortSubslots[p]
		subs = append(subs, struct {
			subslot uint16
			id      uint32
		}{subslot, uint32(subslot)})
	}
	for _, s := range subs {
		if err := i.ExpSubmoduleInd(api, device.DAPSlot, s.subslot, device.DAPModuleID, s.id, noIO); err != nil {
			return err
		}
	}
	return nil
}

// setInitialDataAndIOxS primes every plugged submodule after PRMEND so the
// controller sees valid status bytes before the first cycle.
func (i *Instance) setInitialDataAndIOxS() {
	for _, module := range i.tree.Modules() {
		for _, sub := range module.Submodules() {
			if sub.InputLength() > 0 {
				if err := i.engine.OutputSetIOCS(api, module.Slot(), sub.Subslot(), stack.IOXSGood); err != nil {
					i.logger.Warn("Failed to set output IOCS",
						zap.Uint16("slot", module.Slot()),
						zap.Uint16("subslot", sub.Subslot()),
						zap.Error(err))
				}
			}

			if sub.OutputLength() == 0 && module.Slot() != device.DAPSlot {
				continue
			}

			var err error
			if module.Slot() == device.DAPSlot {
				err = i.engine.InputSetDataAndIOPS(api, module.Slot(), sub.Subslot(), nil, stack.IOXSGood)
			} else {
				data, iops := i.initialOutput(module.Slot(), sub)
				err = i.engine.InputSetDataAndIOPS(api, module.Slot(), sub.Subslot(), data, iops)
			}
			if err != nil {
				i.logger.Warn("Failed to set initial input data",
					zap.Uint16("slot", module.Slot()),
					zap.Uint16("subslot", sub.Subslot()),
					zap.Error(err))
			}
		}
	}
}

// initialOutput reads the first output frame of an application
// submodule. A failing callback yields no data and BAD status.
func (i *Instance) initialOutput(slot uint16, sub *instance.Submodule) ([]byte, stack.IOXS) {
	buf, fits := i.frameFor(sub.OutputLength())
	if !fits {
		i.logger.Error("Output data exceeds cyclic frame",
			zap.Uint16("slot", slot),
			zap.Uint16("subslot", sub.Subslot()),
			zap.Int("length", sub.OutputLength()))
		return nil, stack.IOXSBad
	}
	if sub.Unknown() {
		return nil, stack.IOXSBad
	}
	n, ok := sub.GetOutput(buf)
	if !ok {
		i.logger.Warn("Failed to read output data from application, setting provider status to BAD",
			zap.Uint16("slot", slot),
			zap.Uint16("subslot", sub.Subslot()))
		return nil, stack.IOXSBad
	}
	return buf[:n], stack.IOXSGood
}

// frameFor returns the first n bytes of the cyclic buffer.
func (i *Instance) frameFor(n int) ([]byte, bool) {
	if n < 0 || n > len(i.frame) {
		return nil, false
	}
	return i.frame[:n], true
}

// handleCyclicData moves one cycle of data between the engine and the
// application callbacks.
func (i *Instance) handleCyclicData() {
	changed := false
	for _, module := range i.tree.Modules() {
		for _, sub := range module.Submodules() {
			if sub.InputLength() > 0 && i.receive(module.Slot(), sub) {
				changed = true
			}
			if sub.OutputLength() > 0 && i.send(module.Slot(), sub) {
				changed = true
			}
		}
	}
	if changed {
		i.publish()
	}
}

// receive reads controller data into the submodule inputs. It reports
// whether the provider status changed.
func (i *Instance) receive(slot uint16, sub *instance.Submodule) bool {
	previous := sub.LastInputIOPS()

	n, _, iops, err := i.engine.OutputGetDataAndIOPS(api, slot, sub.Subslot(), i.frame)
	if err != nil {
		sub.SetLastInputIOPS(stack.IOXSBad)
		sub.SetDefaultInputs()
		return previous != stack.IOXSBad
	}

	if iops != previous {
		i.logger.Info("Input provider status changed",
			zap.Uint16("slot", slot),
			zap.Uint16("subslot", sub.Subslot()),
			zap.Stringer("from", previous),
			zap.Stringer("to", iops))
		sub.SetLastInputIOPS(iops)
	}

	switch {
	case n != sub.InputLength():
		i.logger.Error("Wrong input data length",
			zap.Uint16("slot", slot),
			zap.Uint16("subslot", sub.Subslot()),
			zap.Int("expected", sub.InputLength()),
			zap.Int("received", n))
		sub.SetDefaultInputs()
	case iops == stack.IOXSGood:
		if !sub.SetInput(i.frame[:n]) {
			sub.SetDefaultInputs()
		}
	default:
		sub.SetDefaultInputs()
	}
	return iops != previous
}

// send publishes the submodule outputs and tracks the controller's
// consumer status. It reports whether that status changed.
func (i *Instance) send(slot uint16, sub *instance.Submodule) bool {
	buf, fits := i.frameFor(sub.OutputLength())
	if !fits {
		i.logger.Error("Output data exceeds cyclic frame",
			zap.Uint16("slot", slot),
			zap.Uint16("subslot", sub.Subslot()),
			zap.Int("length", sub.OutputLength()))
		if err := i.engine.InputSetDataAndIOPS(api, slot, sub.Subslot(), nil, stack.IOXSBad); err != nil {
			i.logger.Error("Failed to send input data",
				zap.Uint16("slot", slot),
				zap.Uint16("subslot", sub.Subslot()),
				zap.Error(err))
		}
	} else if sub.Unknown() {
		clear(buf)
		if err := i.engine.InputSetDataAndIOPS(api, slot, sub.Subslot(), buf, stack.IOXSBad); err != nil {
			i.logger.Error("Failed to send input data",
				zap.Uint16("slot", slot),
				zap.Uint16("subslot", sub.Subslot()),
				zap.Error(err))
		}
	} else if n, ok := sub.GetOutput(buf); ok {
		if err := i.engine.InputSetDataAndIOPS(api, slot, sub.Subslot(), buf[:n], stack.IOXSGood); err != nil {
			i.logger.Error("Failed to send input data",
				zap.Uint16("slot", slot),
				zap.Uint16("subslot", sub.Subslot()),
				zap.Error(err))
		}
	} else {
		i.logger.Error("Failed to read output data from application",
			zap.Uint16("slot", slot),
			zap.Uint16("subslot", sub.Subslot()))
		if err := i.engine.InputSetDataAndIOPS(api, slot, sub.Subslot(), nil, stack.IOXSBad); err != nil {
			i.logger.Error("Failed to send input data",
				zap.Uint16("slot", slot),
				zap.Uint16("subslot", sub.Subslot()),
				zap.Error(err))
		}
	}

	previous := sub.LastOutputIOCS()
	iocs, err := i.engine.InputGetIOCS(api, slot, sub.Subslot())
	if err != nil {
		if previous != stack.IOXSBad {
			i.logger.Warn("Failed to read consumer status",
				zap.Uint16("slot", slot),
				zap.Uint16("subslot", sub.Subslot()),
				zap.Error(err))
			sub.SetLastOutputIOCS(stack.IOXSBad)
			return true
		}
		return false
	}
	if iocs != previous {
		i.logger.Info("Output consumer status changed",
			zap.Uint16("slot", slot),
			zap.Uint16("subslot", sub.Subslot()),
			zap.Stringer("from", previous),
			zap.Stringer("to", iocs))
		sub.SetLastOutputIOCS(iocs)
		return true
	}
	return false
}
