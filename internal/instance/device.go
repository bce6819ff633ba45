// Package instance holds the runtime tree of plugged modules and
// submodules, keyed by the slot and subslot the controller negotiated.
//
// The tree is owned by a single goroutine and is not safe for concurrent
// use.
package instance

import "slices"

type Device struct {
	modules map[uint16]*Module
	order   []uint16
}

func NewDevice() *Device {
	return &Device{modules: make(map[uint16]*Module)}
}

// CreateInSlot returns nil when the slot is already occupied.
func (d *Device) CreateInSlot(slot uint16) *Module {
	if _, exists := d.modules[slot]; exists {
		return nil
	}
	module := newModule(slot)
	d.modules[slot] = module
	pos, _ := slices.BinarySearch(d.order, slot)
	d.order = slices.Insert(d.order, pos, slot)
	return module
}

func (d *Device) GetModule(slot uint16) *Module {
	return d.modules[slot]
}

func (d *Device) RemoveFromSlot(slot uint16) bool {
	if _, exists := d.modules[slot]; !exists {
		return false
	}
	delete(d.modules, slot)
	if pos, found := slices.BinarySearch(d.order, slot); found {
		d.order = slices.Delete(d.order, pos, pos+1)
	}
	return true
}

// Modules returns the plugged modules in slot order.
func (d *Device) Modules() []*Module {
	modules := make([]*Module, 0, len(d.order))
	for _, slot := range d.order {
		modules = append(modules, d.modules[slot])
	}
	return modules
}

// SetDefaultInputsAll drives the inputs of every plugged submodule to
// their safe values. It reports false if any input callback failed.
func (d *Device) SetDefaultInputsAll() bool {
	ok := true
	for _, module := range d.Modules() {
		for _, sub := range module.Submodules() {
			if !sub.SetDefaultInputs() {
				ok = false
			}
		}
	}
	return ok
}
