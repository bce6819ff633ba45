package instance

import (
	"slices"

	"github.com/KevinKickass/OpenProfinetDevice/internal/device"
)

type Module struct {
	slot        uint16
	moduleID    uint32
	unknown     bool
	initialized bool
	initArg     any

	config   *device.Module
	subslots map[uint16]*Submodule
	order    []uint16
}

func newModule(slot uint16) *Module {
	return &Module{slot: slot, subslots: make(map[uint16]*Submodule)}
}

// Initialize binds the module to its configuration and runs the module's
// init callback for the slot.
func (m *Module) Initialize(moduleID uint32, cfg *device.Module) {
	m.moduleID = moduleID
	m.config = cfg
	m.unknown = false
	m.initArg = nil
	if cfg.InitCallback != nil {
		m.initArg = cfg.InitCallback(m.slot)
	}
	m.initialized = true
}

func (m *Module) InitializeUnknown(moduleID uint32) {
	m.moduleID = moduleID
	m.config = nil
	m.unknown = true
	m.initArg = nil
	m.initialized = true
}

// CreateInSubslot returns nil when the subslot is already occupied.
func (m *Module) CreateInSubslot(subslot uint16, submoduleID uint32) *Submodule {
	if _, exists := m.subslots[subslot]; exists {
		return nil
	}
	sub := newSubmodule(subslot, submoduleID)
	m.subslots[subslot] = sub
	pos, _ := slices.BinarySearch(m.order, subslot)
	m.order = slices.Insert(m.order, pos, subslot)
	return sub
}

func (m *Module) GetSubmodule(subslot uint16) *Submodule {
	return m.subslots[subslot]
}

func (m *Module) RemoveFromSubslot(subslot uint16) bool {
	if _, exists := m.subslots[subslot]; !exists {
		return false
	}
	delete(m.subslots, subslot)
	if pos, found := slices.BinarySearch(m.order, subslot); found {
		m.order = slices.Delete(m.order, pos, pos+1)
	}
	return true
}

// Submodules returns the plugged submodules in subslot order.
func (m *Module) Submodules() []*Submodule {
	subs := make([]*Submodule, 0, len(m.order))
	for _, subslot := range m.order {
		subs = append(subs, m.subslots[subslot])
	}
	return subs
}

func (m *Module) Slot() uint16           { return m.slot }
func (m *Module) ModuleID() uint32       { return m.moduleID }
func (m *Module) Unknown() bool          { return m.unknown }
func (m *Module) Initialized() bool      { return m.initialized }
func (m *Module) InitArg() any           { return m.initArg }
func (m *Module) Config() *device.Module { return m.config }
