// Package simstack is an in-memory protocol engine. It records every call
// made by the device runtime and plays controller actions back through the
// callbacks from inside HandlePeriodic, the same goroutine the runtime
// uses for the data plane.
package simstack

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
)

var ErrNotPlugged = errors.New("simstack: submodule not plugged")

type addr struct {
	slot    uint16
	subslot uint16
}

// Plug describes a submodule the simulated controller expects.
type Plug struct {
	Slot        uint16
	Subslot     uint16
	ModuleID    uint32
	SubmoduleID uint32
	Config      stack.DataConfig
}

type SubmodulePlug struct {
	ModuleID    uint32
	SubmoduleID uint32
	Config      stack.DataConfig
}

type frame struct {
	data []byte
	ioxs stack.IOXS
}

type Sim struct {
	mu sync.Mutex

	cfg *stack.Config
	cb  stack.Callbacks

	modules    map[uint16]uint32
	submodules map[addr]SubmodulePlug

	fromController map[addr]frame      // device inputs
	toController   map[addr]frame      // device outputs
	controllerIOCS map[addr]stack.IOXS // controller consumer status of device outputs
	deviceIOCS     map[addr]stack.IOXS // device consumer status of device inputs

	providerRun  bool
	readyCalls   []uint32
	alarmAcks    []stack.AlarmArgument
	periodic     int
	arErrorClass uint16
	arErrorCode  uint16
	arErrorSet   bool

	queue        []func(stack.Callbacks) error
	callbackErrs []error

	// Fault injection.
	InitErr             error
	ApplicationReadyErr error
	AlarmAckErr         error
	OutputGetErr        error
	InputIOCSErr        error
}

func New() *Sim {
	return &Sim{
		modules:        make(map[uint16]uint32),
		submodules:     make(map[addr]SubmodulePlug),
		fromController: make(map[addr]frame),
		toController:   make(map[addr]frame),
		controllerIOCS: make(map[addr]stack.IOXS),
		deviceIOCS:     make(map[addr]stack.IOXS),
	}
}

var _ stack.Stack = (*Sim)(nil)

func (s *Sim) Init(cfg *stack.Config, cb stack.Callbacks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InitErr != nil {
		return s.InitErr
	}
	s.cfg = cfg
	s.cb = cb
	return nil
}

func (s *Sim) PlugModule(api uint32, slot uint16, moduleID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[slot] = moduleID
	return nil
}

func (s *Sim) PullModule(api uint32, slot uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modules[slot]; !ok {
		return fmt.Errorf("simstack: no module in slot %d", slot)
	}
	delete(s.modules, slot)
	for a := range s.submodules {
		if a.slot == slot {
			delete(s.submodules, a)
		}
	}
	return nil
}

func (s *Sim) PlugSubmodule(api uint32, slot, subslot uint16, moduleID, submoduleID uint32, cfg stack.DataConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modules[slot]; !ok {
		return fmt.Errorf("simstack: no module in slot %d", slot)
	}
	s.submodules[addr{slot, subslot}] = SubmodulePlug{ModuleID: moduleID, SubmoduleID: submoduleID, Config: cfg}
	return nil
}

func (s *Sim) PullSubmodule(api uint32, slot, subslot uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := addr{slot, subslot}
	if _, ok := s.submodules[a]; !ok {
		return fmt.Errorf("%w: %d/%d", ErrNotPlugged, slot, subslot)
	}
	delete(s.submodules, a)
	return nil
}

func (s *Sim) OutputGetDataAndIOPS(api uint32, slot, subslot uint16, buf []byte) (int, bool, stack.IOXS, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OutputGetErr != nil {
		return 0, false, stack.IOXSBad, s.OutputGetErr
	}
	a := addr{slot, subslot}
	plug, ok := s.submodules[a]
	if !ok {
		return 0, false, stack.IOXSBad, fmt.Errorf("%w: %d/%d", ErrNotPlugged, slot, subslot)
	}
	f, ok := s.fromController[a]
	if !ok {
		// nothing received yet: the engine hands out a zeroed frame
		n := int(plug.Config.OutSize)
		if len(buf) < n {
			return 0, false, stack.IOXSBad, fmt.Errorf("simstack: buffer of %d bytes too small for %d", len(buf), n)
		}
		clear(buf[:n])
		return n, false, stack.IOXSBad, nil
	}
	if len(buf) < len(f.data) {
		return 0, false, stack.IOXSBad, fmt.Errorf("simstack: buffer of %d bytes too small for %d", len(buf), len(f.data))
	}
	n := copy(buf, f.data)
	return n, true, f.ioxs, nil
}

func (s *Sim) OutputSetIOCS(api uint32, slot, subslot uint16, iocs stack.IOXS) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceIOCS[addr{slot, subslot}] = iocs
	return nil
}

func (s *Sim) InputSetDataAndIOPS(api uint32, slot, subslot uint16, data []byte, iops stack.IOXS) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := addr{slot, subslot}
	if _, ok := s.submodules[a]; !ok {
		return fmt.Errorf("%w: %d/%d", ErrNotPlugged, slot, subslot)
	}
	s.toController[a] = frame{data: slices.Clone(data), ioxs: iops}
	return nil
}

func (s *Sim) InputGetIOCS(api uint32, slot, subslot uint16) (stack.IOXS, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InputIOCSErr != nil {
		return stack.IOXSBad, s.InputIOCSErr
	}
	iocs, ok := s.controllerIOCS[addr{slot, subslot}]
	if !ok {
		return stack.IOXSGood, nil
	}
	return iocs, nil
}

func (s *Sim) SetProviderState(run bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providerRun = run
	return nil
}

func (s *Sim) ApplicationReady(arep uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readyCalls = append(s.readyCalls, arep)
	return s.ApplicationReadyErr
}

func (s *Sim) AlarmSendAck(arep uint32, alarm stack.AlarmArgument, status stack.PNIOStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AlarmAckErr != nil {
		return s.AlarmAckErr
	}
	s.alarmAcks = append(s.alarmAcks, alarm)
	return nil
}

func (s *Sim) GetARErrorCodes(arep uint32) (uint16, uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.arErrorSet {
		return 0, 0, errors.New("simstack: no error status available")
	}
	return s.arErrorClass, s.arErrorCode, nil
}

// HandlePeriodic plays back queued controller actions.
func (s *Sim) HandlePeriodic() {
	s.mu.Lock()
	s.periodic++
	queue := s.queue
	s.queue = nil
	cb := s.cb
	s.mu.Unlock()

	if cb == nil {
		return
	}
	for _, action := range queue {
		if err := action(cb); err != nil {
			s.mu.Lock()
			s.callbackErrs = append(s.callbackErrs, err)
			s.mu.Unlock()
		}
	}
}

func (s *Sim) enqueue(action func(stack.Callbacks) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, action)
}
