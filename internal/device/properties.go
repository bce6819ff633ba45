package device

// Writeable I&M record flags.
const (
	SupportedIM1 uint16 = 0x0002
	SupportedIM2 uint16 = 0x0004
	SupportedIM3 uint16 = 0x0008
	SupportedIM4 uint16 = 0x0010 // functional safety only
)

type Revision struct {
	Prefix byte
	Major  uint8
	Minor  uint8
	Patch  uint8
}

// DeviceProperties is the identity of the device as seen by the controller
// and by engineering tools.
type DeviceProperties struct {
	VendorID            uint16
	VendorName          string
	DeviceID            uint16
	DeviceName          string
	DeviceInfoText      string
	DeviceProductFamily string
	NumSlots            uint8
	API                 uint32
	StationName         string

	// DCP
	OEMVendorID uint16
	OEMDeviceID uint16

	// I&M0
	IMHardwareRevision uint16
	IMVersionMajor     uint8
	IMVersionMinor     uint8
	SoftwareRevision   Revision
	HardwareRevision   Revision
	ProfileID          uint16
	ProfileSpecType    uint16
	IMRevisionCounter  uint16
	SerialNumber       string

	// I&M1..4, initial values the controller may overwrite
	TagFunction string
	TagLocation string
	IMDate      string
	Descriptor  string
	Signature   string

	SupportedIMs      uint16
	OrderID           string
	ProductName       string
	MinDeviceInterval uint16 // in 31.25us units
	DiagCustomUSI     uint16

	LogbookErrorCode   uint8
	LogbookErrorDecode uint8
	LogbookErrorCode1  uint8
	LogbookErrorCode2  uint8
	LogbookEntryDetail uint32

	DefaultMAUType uint16 // copper 100 Mbit/s full duplex
}

func DefaultDeviceProperties() DeviceProperties {
	return DeviceProperties{
		VendorID:            0x0493,
		VendorName:          "unknown vendor",
		DeviceID:            0x0002,
		DeviceName:          "unknown device",
		DeviceInfoText:      "no device information available",
		DeviceProductFamily: "general",
		NumSlots:            4,
		API:                 0,
		StationName:         "unknown-station",
		OEMVendorID:         0xcafe,
		OEMDeviceID:         0xee02,
		IMHardwareRevision:  3,
		IMVersionMajor:      1,
		IMVersionMinor:      2,
		SoftwareRevision:    Revision{Prefix: 'V', Major: 0, Minor: 2, Patch: 0},
		HardwareRevision:    Revision{Prefix: 'A', Major: 1, Minor: 0},
		ProfileID:           0x1234,
		ProfileSpecType:     0x5678,
		SerialNumber:        "007",
		TagFunction:         "my function",
		TagLocation:         "my location",
		IMDate:              "2022-03-01 10:03",
		Descriptor:          "my descriptor",
		SupportedIMs:        SupportedIM1 | SupportedIM2 | SupportedIM3,
		OrderID:             "12345 Abcdefghijk",
		ProductName:         "Unknown Application",
		MinDeviceInterval:   32,
		DiagCustomUSI:       0x1234,
		LogbookErrorCode:    0x20,
		LogbookErrorDecode:  0x82,
		LogbookErrorCode1:   0x4E,
		LogbookErrorCode2:   0x00,
		LogbookEntryDetail:  0xFEE1DEAD,
		DefaultMAUType:      0x10,
	}
}

type ModuleProperties struct {
	Name            string
	InfoText        string
	HardwareRelease string
	SoftwareRelease string
}

func DefaultModuleProperties() ModuleProperties {
	return ModuleProperties{
		Name:            "unknown module",
		InfoText:        "no module information available",
		HardwareRelease: "1.0",
		SoftwareRelease: "1.0",
	}
}

type SubmoduleProperties struct {
	Name     string
	InfoText string
}

func DefaultSubmoduleProperties() SubmoduleProperties {
	return SubmoduleProperties{
		Name:     "unknown submodule",
		InfoText: "no submodule information available",
	}
}

type ParameterProperties struct {
	DataType      string
	Name          string
	Description   string
	Visible       bool
	Changeable    bool
	AllowedValues string
	DefaultValue  string
	Length        string
}

func DefaultParameterProperties() ParameterProperties {
	return ParameterProperties{
		Name:         "unknown parameter",
		Description:  "no description available",
		Visible:      true,
		Changeable:   true,
		DefaultValue: "0",
	}
}

type InputProperties struct {
	DataType    string
	Description string
	Length      string
}

type OutputProperties struct {
	DataType    string
	Description string
	Length      string
}
