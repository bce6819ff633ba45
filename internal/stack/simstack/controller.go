package simstack

import (
	"slices"

	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
)

// Connect queues the startup of an AR: connect indication, expected
// module and submodule indications for every plug, then PRMEND.
func (s *Sim) Connect(arep uint32, plugs []Plug) {
	plugs = slices.Clone(plugs)
	s.enqueue(func(cb stack.Callbacks) error {
		if err := cb.ConnectInd(arep); err != nil {
			return err
		}
		seen := make(map[uint16]bool)
		for _, p := range plugs {
			if !seen[p.Slot] {
				seen[p.Slot] = true
				if err := cb.ExpModuleInd(0, p.Slot, p.ModuleID); err != nil {
					return err
				}
			}
			if err := cb.ExpSubmoduleInd(0, p.Slot, p.Subslot, p.ModuleID, p.SubmoduleID, p.Config); err != nil {
				return err
			}
		}
		if err := cb.DControlInd(arep, stack.ControlCommandPrmEnd); err != nil {
			return err
		}
		return cb.StateInd(arep, stack.EventPrmEnd)
	})
}

// StartData queues the DATA state change that follows application ready.
func (s *Sim) StartData(arep uint32) {
	s.enqueue(func(cb stack.Callbacks) error {
		if err := cb.CControlInd(arep); err != nil {
			return err
		}
		if err := cb.StateInd(arep, stack.EventApplReady); err != nil {
			return err
		}
		return cb.StateInd(arep, stack.EventData)
	})
}

// Abort queues an AR abort with the given error class and code.
func (s *Sim) Abort(arep uint32, class, code uint16) {
	s.mu.Lock()
	s.arErrorClass, s.arErrorCode, s.arErrorSet = class, code, true
	s.mu.Unlock()
	s.enqueue(func(cb stack.Callbacks) error {
		return cb.StateInd(arep, stack.EventAbort)
	})
}

// Release queues an orderly AR release.
func (s *Sim) Release(arep uint32) {
	s.mu.Lock()
	s.arErrorClass, s.arErrorCode, s.arErrorSet = stack.ErrorClassRTAProtocol, stack.AbortReleaseIndReceived, true
	s.mu.Unlock()
	s.enqueue(func(cb stack.Callbacks) error {
		if err := cb.ReleaseInd(arep); err != nil {
			return err
		}
		return cb.StateInd(arep, stack.EventAbort)
	})
}

func (s *Sim) Read(arep uint32, rec stack.RecordAddress, maxLength int, done func([]byte, error)) {
	s.enqueue(func(cb stack.Callbacks) error {
		data, err := cb.ReadInd(arep, rec, maxLength)
		if done != nil {
			done(slices.Clone(data), err)
		}
		return nil
	})
}

func (s *Sim) Write(arep uint32, rec stack.RecordAddress, data []byte, done func(error)) {
	data = slices.Clone(data)
	s.enqueue(func(cb stack.Callbacks) error {
		err := cb.WriteInd(arep, rec, data)
		if done != nil {
			done(err)
		}
		return nil
	})
}

func (s *Sim) RaiseAlarm(arep uint32, alarm stack.AlarmArgument, data []byte) {
	s.enqueue(func(cb stack.Callbacks) error {
		return cb.AlarmInd(arep, alarm, data)
	})
}

func (s *Sim) ChangeDataStatus(arep uint32, status stack.DataStatus) {
	s.enqueue(func(cb stack.Callbacks) error {
		return cb.NewDataStatusInd(arep, 0, 0xFF, status)
	})
}

// SetOutputData sets the frame the controller sends to a device submodule.
func (s *Sim) SetOutputData(slot, subslot uint16, data []byte, iops stack.IOXS) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fromController[addr{slot, subslot}] = frame{data: slices.Clone(data), ioxs: iops}
}

// SetControllerIOCS sets the consumer status the controller reports for
// data the device publishes.
func (s *Sim) SetControllerIOCS(slot, subslot uint16, iocs stack.IOXS) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllerIOCS[addr{slot, subslot}] = iocs
}

// InputData returns what the device last published for a submodule.
func (s *Sim) InputData(slot, subslot uint16) ([]byte, stack.IOXS, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.toController[addr{slot, subslot}]
	return slices.Clone(f.data), f.ioxs, ok
}

// DeviceIOCS returns the consumer status the device reported.
func (s *Sim) DeviceIOCS(slot, subslot uint16) (stack.IOXS, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	iocs, ok := s.deviceIOCS[addr{slot, subslot}]
	return iocs, ok
}

func (s *Sim) Module(slot uint16) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.modules[slot]
	return id, ok
}

func (s *Sim) Submodule(slot, subslot uint16) (SubmodulePlug, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.submodules[addr{slot, subslot}]
	return p, ok
}

func (s *Sim) Config() *stack.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Sim) ProviderRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providerRun
}

func (s *Sim) ApplicationReadyCalls() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.readyCalls)
}

func (s *Sim) AlarmAcks() []stack.AlarmArgument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.alarmAcks)
}

func (s *Sim) PeriodicCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periodic
}

// CallbackErrors returns errors the runtime returned from indications.
func (s *Sim) CallbackErrors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.callbackErrs)
}

// Pending reports whether controller actions wait for HandlePeriodic.
func (s *Sim) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) > 0
}
