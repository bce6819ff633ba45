// Package device holds the declarative configuration of an IO-device:
// identity, modules, submodules and their typed inputs, outputs and
// parameters. The tree is built once before the runtime is initialized.
package device

import (
	"errors"
	"fmt"

	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
)

var (
	ErrDuplicateModule    = errors.New("device: module id already exists")
	ErrDuplicateSubmodule = errors.New("device: submodule id already exists")
	ErrDuplicateParameter = errors.New("device: parameter index already exists")
	ErrDataTooLong        = errors.New("device: submodule data exceeds cyclic frame")
)

// Well-known identifiers of the device access point.
const (
	DAPSlot     uint16 = 0
	DAPModuleID uint32 = 0x00000001

	DAPIdentitySubslot     uint16 = 0x0001
	DAPIdentitySubmoduleID uint32 = 0x00000001

	DAPInterface1Subslot     uint16 = 0x8000
	DAPInterface1SubmoduleID uint32 = 0x00008000

	DAPPort1Subslot     uint16 = 0x8001
	DAPPort1SubmoduleID uint32 = 0x00008001
	DAPPort2Subslot     uint16 = 0x8002
	DAPPort2SubmoduleID uint32 = 0x00008002
	DAPPort3Subslot     uint16 = 0x8003
	DAPPort3SubmoduleID uint32 = 0x00008003
	DAPPort4Subslot     uint16 = 0x8004
	DAPPort4SubmoduleID uint32 = 0x00008004
)

// DAPPortSubslots lists the port subslots in port order.
var DAPPortSubslots = [...]uint16{DAPPort1Subslot, DAPPort2Subslot, DAPPort3Subslot, DAPPort4Subslot}

// Device is the root of the configuration tree.
type Device struct {
	Properties DeviceProperties
	Modules    Modules
}

// NewDevice returns a device with default identity and the DAP module
// already registered in slot 0.
func NewDevice() *Device {
	d := &Device{Properties: DefaultDeviceProperties()}

	dap := d.Modules.CreateFixed(DAPModuleID, DAPSlot)
	dap.Properties.Name = "DAP"
	dap.Properties.InfoText = "Device access point"

	identity := dap.Submodules.Create(DAPIdentitySubmoduleID)
	identity.Properties = SubmoduleProperties{Name: "DAP Identity 1", InfoText: "Device identity"}

	iface := dap.Submodules.Create(DAPInterface1SubmoduleID)
	iface.Properties = SubmoduleProperties{Name: "DAP Interface 1", InfoText: "Network interface"}

	ports := [...]uint32{DAPPort1SubmoduleID, DAPPort2SubmoduleID, DAPPort3SubmoduleID, DAPPort4SubmoduleID}
	for i, id := range ports {
		port := dap.Submodules.Create(id)
		port.Properties = SubmoduleProperties{
			Name:     "DAP Port " + string(rune('1'+i)),
			InfoText: "Network port",
		}
	}

	return d
}

// IsDAPSubmodule reports whether id belongs to the device access point.
func IsDAPSubmodule(id uint32) bool {
	switch id {
	case DAPIdentitySubmoduleID, DAPInterface1SubmoduleID,
		DAPPort1SubmoduleID, DAPPort2SubmoduleID, DAPPort3SubmoduleID, DAPPort4SubmoduleID:
		return true
	}
	return false
}

// Validate checks that the inputs and the outputs of every submodule fit
// into one cyclic frame.
func (d *Device) Validate() error {
	for _, moduleID := range d.Modules.IDs() {
		module := d.Modules.Get(moduleID).Module
		for _, subID := range module.Submodules.IDs() {
			sub := module.Submodules.Get(subID)
			if n := sub.Inputs.LengthInBytes(); n > stack.MaxDataLength {
				return fmt.Errorf("%w: module %#x submodule %#x inputs have %d bytes, at most %d",
					ErrDataTooLong, moduleID, subID, n, stack.MaxDataLength)
			}
			if n := sub.Outputs.LengthInBytes(); n > stack.MaxDataLength {
				return fmt.Errorf("%w: module %#x submodule %#x outputs have %d bytes, at most %d",
					ErrDataTooLong, moduleID, subID, n, stack.MaxDataLength)
			}
		}
	}
	return nil
}
