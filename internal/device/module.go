package device

import "slices"

// NoFixedSlot marks a module that is not bound to a single slot.
const NoFixedSlot uint16 = 0xFFFF

// PlugInfo is the placement rule of a module. A fixed slot wins over the
// allowed list; an empty allowed list permits every slot.
type PlugInfo struct {
	AllowedSlots []uint16
	FixedSlot    uint16
}

func (p PlugInfo) Allows(slot uint16) bool {
	if p.FixedSlot != NoFixedSlot {
		return slot == p.FixedSlot
	}
	if len(p.AllowedSlots) == 0 {
		return true
	}
	return slices.Contains(p.AllowedSlots, slot)
}

// InitFunc runs when a module is plugged into slot. Its result is kept on
// the module instance for the application.
type InitFunc func(slot uint16) any

type Module struct {
	Properties   ModuleProperties
	Submodules   Submodules
	InitCallback InitFunc
}

type ModuleWithPlugInfo struct {
	Module   *Module
	PlugInfo PlugInfo
}

// Modules is keyed by module id and keeps creation order.
type Modules struct {
	byID  map[uint32]*ModuleWithPlugInfo
	order []uint32
}

// Create adds a module that may go into any of allowedSlots (any slot when
// empty). It returns nil when id already exists.
func (m *Modules) Create(id uint32, allowedSlots ...uint16) *Module {
	return m.add(id, PlugInfo{AllowedSlots: slices.Clone(allowedSlots), FixedSlot: NoFixedSlot})
}

// CreateFixed adds a module bound to slot. It returns nil when id already
// exists.
func (m *Modules) CreateFixed(id uint32, slot uint16) *Module {
	return m.add(id, PlugInfo{FixedSlot: slot})
}

func (m *Modules) add(id uint32, plug PlugInfo) *Module {
	if m.byID == nil {
		m.byID = make(map[uint32]*ModuleWithPlugInfo)
	}
	if _, exists := m.byID[id]; exists {
		return nil
	}
	module := &Module{Properties: DefaultModuleProperties()}
	m.byID[id] = &ModuleWithPlugInfo{Module: module, PlugInfo: plug}
	m.order = append(m.order, id)
	return module
}

func (m *Modules) Get(id uint32) *ModuleWithPlugInfo {
	return m.byID[id]
}

// IDs returns module ids in creation order.
func (m *Modules) IDs() []uint32 {
	return slices.Clone(m.order)
}

func (m *Modules) Len() int {
	return len(m.order)
}
