package profinet

import (
	"errors"
	"fmt"

	"github.com/KevinKickass/OpenProfinetDevice/internal/device"
	"github.com/KevinKickass/OpenProfinetDevice/internal/instance"
	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
	"go.uber.org/zap"
)

var _ stack.Callbacks = (*Instance)(nil)

var (
	errNoModule    = errors.New("no module plugged in slot")
	errNoSubmodule = errors.New("no submodule plugged in subslot")
	errNoParameter = errors.New("no parameter with index")
	errDataTooLong = errors.New("cyclic data too long for submodule")
)

func (i *Instance) ConnectInd(arep uint32) error {
	i.logger.Info("PLC connect indication", zap.Uint32("arep", arep))
	return nil
}

func (i *Instance) ReleaseInd(arep uint32) error {
	i.logger.Info("PLC release indication", zap.Uint32("arep", arep))
	i.tree.SetDefaultInputsAll()
	return nil
}

func (i *Instance) DControlInd(arep uint32, cmd stack.ControlCommand) error {
	i.logger.Debug("PLC dcontrol indication",
		zap.Uint32("arep", arep),
		zap.Uint16("command", uint16(cmd)))
	return nil
}

func (i *Instance) CControlInd(arep uint32) error {
	i.logger.Debug("PLC ccontrol confirmation", zap.Uint32("arep", arep))
	return nil
}

func (i *Instance) StateInd(arep uint32, event stack.Event) error {
	switch event {
	case stack.EventAbort:
		i.handleAbort(arep)
	case stack.EventPrmEnd:
		i.handlePrmEnd(arep)
	case stack.EventData:
		i.cyclic = true
		i.publish()
		i.logger.Info("Cyclic data transmission started", zap.Uint32("arep", arep))
	default:
		i.logger.Debug("PLC state indication",
			zap.Uint32("arep", arep),
			zap.Stringer("event", event))
	}
	return nil
}

func (i *Instance) handleAbort(arep uint32) {
	n := Notification{Type: NotificationConnectionAborted, AREP: arep}
	class, code, err := i.engine.GetARErrorCodes(arep)
	if err != nil {
		i.logger.Warn("PLC aborted connection. No error status available", zap.Uint32("arep", arep))
	} else {
		classText, codeText := stack.DecodeARError(class, code)
		i.logger.Warn("PLC aborted connection",
			zap.Uint32("arep", arep),
			zap.Uint16("error_class", class),
			zap.String("error_class_text", classText),
			zap.Uint16("error_code", code),
			zap.String("error_code_text", codeText))
		n.ErrorClass, n.ErrorCode = class, code
		n.ErrorClassText, n.ErrorCodeText = classText, codeText
	}

	i.tree.SetDefaultInputsAll()

	if arep == i.arep {
		i.arep = stack.NullAREP
		i.cyclic = false
		i.setState(StateWaitingForConnection)
	} else {
		i.logger.Warn("Abort for unknown AREP",
			zap.Uint32("arep", arep),
			zap.Uint32("current", i.arep))
	}

	i.dispatcher.SignalAbort()
	i.notify(n)
}

func (i *Instance) handlePrmEnd(arep uint32) {
	if i.state == StateConnected {
		i.logger.Warn("AREP out of sync",
			zap.Uint32("arep", arep),
			zap.Uint32("current", i.arep))
	}
	i.arep = arep
	i.setState(StateConnected)

	i.setInitialDataAndIOxS()

	if err := i.engine.SetProviderState(true); err != nil {
		i.logger.Error("Failed to set provider state", zap.Error(err))
	}

	i.arepForReady = arep
	i.dispatcher.SignalReadyForData()
}

func (i *Instance) ReadInd(arep uint32, rec stack.RecordAddress, maxLength int) ([]byte, error) {
	param, err := i.lookupParameter(rec)
	if err != nil {
		i.logger.Warn("PLC read request rejected",
			zap.Uint16("slot", rec.Slot),
			zap.Uint16("subslot", rec.Subslot),
			zap.Uint16("index", rec.Index),
			zap.Error(err))
		return nil, stack.ReadError()
	}

	data, err := param.Get(maxLength)
	if err != nil {
		i.logger.Warn("PLC read request failed",
			zap.Uint16("slot", rec.Slot),
			zap.Uint16("subslot", rec.Subslot),
			zap.Uint16("index", rec.Index),
			zap.Error(err))
		return nil, stack.ReadError()
	}

	i.logger.Debug("PLC read request",
		zap.Uint16("slot", rec.Slot),
		zap.Uint16("subslot", rec.Subslot),
		zap.Uint16("index", rec.Index),
		zap.Int("length", len(data)))
	return data, nil
}

func (i *Instance) WriteInd(arep uint32, rec stack.RecordAddress, data []byte) error {
	param, err := i.lookupParameter(rec)
	if err != nil {
		i.logger.Warn("PLC write request rejected",
			zap.Uint16("slot", rec.Slot),
			zap.Uint16("subslot", rec.Subslot),
			zap.Uint16("index", rec.Index),
			zap.Error(err))
		return stack.WriteError()
	}

	if err := param.Set(data); err != nil {
		i.logger.Warn("PLC write request failed",
			zap.Uint16("slot", rec.Slot),
			zap.Uint16("subslot", rec.Subslot),
			zap.Uint16("index", rec.Index),
			zap.Error(err))
		return stack.WriteError()
	}

	i.logger.Debug("PLC write request",
		zap.Uint16("slot", rec.Slot),
		zap.Uint16("subslot", rec.Subslot),
		zap.Uint16("index", rec.Index),
		zap.Int("length", len(data)))
	return nil
}

func (i *Instance) lookupParameter(rec stack.RecordAddress) (*instance.Parameter, error) {
	module := i.tree.GetModule(rec.Slot)
	if module == nil {
		return nil, fmt.Errorf("%w %d", errNoModule, rec.Slot)
	}
	sub := module.GetSubmodule(rec.Subslot)
	if sub == nil {
		return nil, fmt.Errorf("%w %d", errNoSubmodule, rec.Subslot)
	}
	param := sub.GetParameter(rec.Index)
	if param == nil {
		return nil, fmt.Errorf("%w %d", errNoParameter, rec.Index)
	}
	return param, nil
}

func (i *Instance) ExpModuleInd(api uint32, slot uint16, moduleID uint32) error {
	i.logger.Info("Module plug request",
		zap.Uint32("api", api),
		zap.Uint16("slot", slot),
		zap.Uint32("module_id", moduleID))

	if err := i.engine.PullModule(api, slot); err != nil {
		i.logger.Debug("Nothing to pull in slot",
			zap.Uint16("slot", slot),
			zap.Error(err))
	}
	i.tree.RemoveFromSlot(slot)

	if err := i.engine.PlugModule(api, slot, moduleID); err != nil {
		i.logger.Error("Failed to plug module",
			zap.Uint16("slot", slot),
			zap.Uint32("module_id", moduleID),
			zap.Error(err))
		return err
	}

	module := i.tree.CreateInSlot(slot)
	entry := i.config.Modules.Get(moduleID)
	switch {
	case entry == nil:
		i.logger.Warn("Module ID not supported by device configuration, plugging as unknown",
			zap.Uint16("slot", slot),
			zap.Uint32("module_id", moduleID))
		module.InitializeUnknown(moduleID)
	case !entry.PlugInfo.Allows(slot):
		i.logger.Warn("Module not allowed in slot, plugging as unknown",
			zap.Uint16("slot", slot),
			zap.Uint32("module_id", moduleID))
		module.InitializeUnknown(moduleID)
	default:
		module.Initialize(moduleID, entry.Module)
	}

	i.publish()
	return nil
}

func (i *Instance) ExpSubmoduleInd(api uint32, slot, subslot uint16, moduleID, submoduleID uint32, expected stack.DataConfig) error {
	i.logger.Info("Submodule plug request",
		zap.Uint32("api", api),
		zap.Uint16("slot", slot),
		zap.Uint16("subslot", subslot),
		zap.Uint32("module_id", moduleID),
		zap.Uint32("submodule_id", submoduleID),
		zap.Stringer("direction", expected.Direction),
		zap.Uint16("insize", expected.InSize),
		zap.Uint16("outsize", expected.OutSize))

	module := i.tree.GetModule(slot)
	created := module == nil
	if created {
		i.logger.Warn("No module instance in slot, creating unknown module",
			zap.Uint16("slot", slot),
			zap.Uint32("module_id", moduleID))
		module = i.tree.CreateInSlot(slot)
		module.InitializeUnknown(moduleID)
	}
	// rollback for a failed plug
	abandon := func() {
		if created {
			i.tree.RemoveFromSlot(slot)
		}
	}

	var cfg *device.Submodule
	if mc := module.Config(); mc != nil {
		cfg = mc.Submodules.Get(submoduleID)
	}
	if cfg == nil {
		i.logger.Warn("Submodule ID not supported by module configuration, plugging as unknown",
			zap.Uint16("slot", slot),
			zap.Uint16("subslot", subslot),
			zap.Uint32("submodule_id", submoduleID))
	}

	dataCfg := expected
	if cfg != nil {
		dataCfg = cfg.DataConfig()
		if dataCfg != expected {
			i.logger.Warn("Inconsistent IO-sizes, using device configuration",
				zap.Uint16("slot", slot),
				zap.Uint16("subslot", subslot),
				zap.Stringer("expected_direction", expected.Direction),
				zap.Uint16("expected_insize", expected.InSize),
				zap.Uint16("expected_outsize", expected.OutSize),
				zap.Stringer("direction", dataCfg.Direction),
				zap.Uint16("insize", dataCfg.InSize),
				zap.Uint16("outsize", dataCfg.OutSize))
		}
	}

	if int(dataCfg.InSize) > stack.MaxDataLength || int(dataCfg.OutSize) > stack.MaxDataLength {
		i.logger.Error("Submodule data exceeds cyclic frame, rejecting plug",
			zap.Uint16("slot", slot),
			zap.Uint16("subslot", subslot),
			zap.Uint32("submodule_id", submoduleID),
			zap.Uint16("insize", dataCfg.InSize),
			zap.Uint16("outsize", dataCfg.OutSize),
			zap.Int("max", stack.MaxDataLength))
		abandon()
		return fmt.Errorf("%w: %d/%d", errDataTooLong, dataCfg.InSize, dataCfg.OutSize)
	}

	if err := i.engine.PullSubmodule(api, slot, subslot); err != nil {
		i.logger.Debug("Nothing to pull in subslot",
			zap.Uint16("slot", slot),
			zap.Uint16("subslot", subslot),
			zap.Error(err))
	}
	module.RemoveFromSubslot(subslot)

	if err := i.engine.PlugSubmodule(api, slot, subslot, moduleID, submoduleID, dataCfg); err != nil {
		i.logger.Error("Failed to plug submodule",
			zap.Uint16("slot", slot),
			zap.Uint16("subslot", subslot),
			zap.Uint32("submodule_id", submoduleID),
			zap.Error(err))
		abandon()
		return err
	}

	sub := module.CreateInSubslot(subslot, submoduleID)
	if cfg != nil {
		sub.Initialize(cfg)
		if err := sub.ApplyParameterDefaults(); err != nil {
			i.logger.Warn("Failed to apply parameter defaults",
				zap.Uint16("slot", slot),
				zap.Uint16("subslot", subslot),
				zap.Error(err))
		}
	} else {
		// controller output data is device input data
		sub.InitializeUnknown(int(dataCfg.OutSize), int(dataCfg.InSize))
	}

	i.publish()
	i.notify(Notification{
		Type:        NotificationSubmodulePlugged,
		Slot:        slot,
		Subslot:     subslot,
		ModuleID:    moduleID,
		SubmoduleID: submoduleID,
		Unknown:     cfg == nil,
	})
	return nil
}

func (i *Instance) NewDataStatusInd(arep, crep uint32, changes, status stack.DataStatus) error {
	i.logger.Info("Data status changed",
		zap.Uint32("arep", arep),
		zap.Uint32("crep", crep),
		zap.Uint8("changes", uint8(changes)),
		zap.Bool("primary", status.Primary()),
		zap.Bool("valid", status.Valid()),
		zap.Bool("running", status.Running()),
		zap.Bool("station_normal", status.StationNormal()),
		zap.Bool("ignore", status.Ignored()))

	if !status.Running() || !status.Valid() {
		i.tree.SetDefaultInputsAll()
	}
	return nil
}

func (i *Instance) AlarmInd(arep uint32, alarm stack.AlarmArgument, data []byte) error {
	i.logger.Info("Alarm indication",
		zap.Uint32("arep", arep),
		zap.Uint16("slot", alarm.Slot),
		zap.Uint16("subslot", alarm.Subslot),
		zap.Uint16("type", alarm.AlarmType),
		zap.Int("length", len(data)))

	i.alarmArg = alarm
	a := alarm
	i.notify(Notification{Type: NotificationAlarm, Slot: alarm.Slot, Subslot: alarm.Subslot, Alarm: &a})
	i.dispatcher.SignalAlarm()
	return nil
}

func (i *Instance) AlarmCnf(arep uint32, status stack.PNIOStatus) error {
	i.logger.Debug("Alarm confirmation",
		zap.Uint32("arep", arep),
		zap.Uint8("error_code", status.ErrorCode),
		zap.Uint8("error_code_1", status.ErrorCode1))
	i.alarmAllowed = true
	return nil
}

func (i *Instance) AlarmAckCnf(arep uint32, res int) error {
	i.logger.Debug("Alarm ACK confirmation", zap.Uint32("arep", arep), zap.Int("result", res))
	return nil
}

func (i *Instance) ResetInd(resetApplication bool, resetMode uint16) error {
	i.logger.Info("Reset indication",
		zap.Bool("reset_application", resetApplication),
		zap.Uint16("reset_mode", resetMode))
	return nil
}

func (i *Instance) SignalLEDInd(on bool) error {
	i.logger.Info("Signal LED", zap.Bool("on", on))
	return nil
}
