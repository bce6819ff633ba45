package types

import (
	"encoding/json"
	"strings"
)

// DeviceDescription is the declarative form of an IO-device: identity plus
// the modules a controller may plug.
type DeviceDescription struct {
	Identity IdentityDefinition `json:"identity"`
	Modules  []ModuleDefinition `json:"modules"`
}

type IdentityDefinition struct {
	StationName       string `json:"station_name,omitempty"`
	VendorID          uint16 `json:"vendor_id,omitempty"`
	VendorName        string `json:"vendor_name,omitempty"`
	DeviceID          uint16 `json:"device_id,omitempty"`
	DeviceName        string `json:"device_name,omitempty"`
	InfoText          string `json:"info_text,omitempty"`
	ProductName       string `json:"product_name,omitempty"`
	ProductFamily     string `json:"product_family,omitempty"`
	OrderID           string `json:"order_id,omitempty"`
	SerialNumber      string `json:"serial_number,omitempty"`
	HardwareRevision  uint16 `json:"hardware_revision,omitempty"`
	SoftwareRevision  string `json:"software_revision,omitempty"` // e.g. "V0.2.0"
	TagFunction       string `json:"tag_function,omitempty"`
	TagLocation       string `json:"tag_location,omitempty"`
	Descriptor        string `json:"descriptor,omitempty"`
	NumSlots          uint8  `json:"num_slots,omitempty"`
	MinDeviceInterval uint16 `json:"min_device_interval,omitempty"`
}

type ModuleDefinition struct {
	ID           uint32                `json:"id"`
	Name         string                `json:"name,omitempty"`
	InfoText     string                `json:"info_text,omitempty"`
	FixedSlot    *uint16               `json:"fixed_slot,omitempty"`
	AllowedSlots []uint16              `json:"allowed_slots,omitempty"`
	Submodules   []SubmoduleDefinition `json:"submodules"`
}

type SubmoduleDefinition struct {
	ID         uint32                `json:"id"`
	Name       string                `json:"name,omitempty"`
	InfoText   string                `json:"info_text,omitempty"`
	Inputs     []InputDefinition     `json:"inputs,omitempty"`
	Outputs    []OutputDefinition    `json:"outputs,omitempty"`
	Parameters []ParameterDefinition `json:"parameters,omitempty"`
}

// InputDefinition is data written by the controller. Default is the safe
// value applied when the connection is lost.
type InputDefinition struct {
	Name        string   `json:"name"`
	Type        DataType `json:"type"`
	Length      int      `json:"length,omitempty"`
	Default     Literal  `json:"default,omitempty"`
	Description string   `json:"description,omitempty"`
}

// OutputDefinition is data read by the controller. An output either mirrors
// another process image value, optionally multiplied by a parameter, or
// publishes its own value.
type OutputDefinition struct {
	Name        string   `json:"name"`
	Type        DataType `json:"type"`
	Length      int      `json:"length,omitempty"`
	Mirror      string   `json:"mirror,omitempty"`
	ScaleBy     string   `json:"scale_by,omitempty"`
	Value       Literal  `json:"value,omitempty"`
	Description string   `json:"description,omitempty"`
}

type ParameterDefinition struct {
	Name        string   `json:"name"`
	Index       uint16   `json:"index"`
	Type        DataType `json:"type"`
	Length      int      `json:"length,omitempty"`
	Default     Literal  `json:"default,omitempty"`
	Description string   `json:"description,omitempty"`
}

// DataType uses the GSDML type names.
type DataType string

const (
	DataTypeUnsigned8     DataType = "Unsigned8"
	DataTypeUnsigned16    DataType = "Unsigned16"
	DataTypeUnsigned32    DataType = "Unsigned32"
	DataTypeUnsigned64    DataType = "Unsigned64"
	DataTypeInteger8      DataType = "Integer8"
	DataTypeInteger16     DataType = "Integer16"
	DataTypeInteger32     DataType = "Integer32"
	DataTypeInteger64     DataType = "Integer64"
	DataTypeFloat32       DataType = "Float32"
	DataTypeFloat64       DataType = "Float64"
	DataTypeOctetString   DataType = "OctetString"
	DataTypeVisibleString DataType = "VisibleString"
)

// IsString reports whether values of the type need an explicit length.
func (d DataType) IsString() bool {
	return d == DataTypeOctetString || d == DataTypeVisibleString
}

// Literal is a value written either as a string or as a bare number.
type Literal string

func (l *Literal) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Literal(s)
		return nil
	}
	*l = Literal(strings.TrimSpace(string(data)))
	return nil
}
