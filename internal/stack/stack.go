// Package stack describes the boundary to the real-time PROFINET protocol
// engine. The engine owns framing, DCP, RPC and AR bookkeeping; the device
// runtime only talks to it through the Stack and Callbacks interfaces.
package stack

import "time"

// Stack is the set of engine entry points the device runtime calls.
// Data plane calls are made from a single goroutine only.
type Stack interface {
	Init(cfg *Config, cb Callbacks) error

	PlugModule(api uint32, slot uint16, moduleID uint32) error
	PullModule(api uint32, slot uint16) error
	PlugSubmodule(api uint32, slot, subslot uint16, moduleID, submoduleID uint32, cfg DataConfig) error
	PullSubmodule(api uint32, slot, subslot uint16) error

	// OutputGetDataAndIOPS copies data received from the controller into buf.
	OutputGetDataAndIOPS(api uint32, slot, subslot uint16, buf []byte) (n int, updated bool, iops IOXS, err error)
	OutputSetIOCS(api uint32, slot, subslot uint16, iocs IOXS) error
	// InputSetDataAndIOPS publishes data sent to the controller.
	InputSetDataAndIOPS(api uint32, slot, subslot uint16, data []byte, iops IOXS) error
	InputGetIOCS(api uint32, slot, subslot uint16) (IOXS, error)

	SetProviderState(run bool) error
	ApplicationReady(arep uint32) error
	AlarmSendAck(arep uint32, alarm AlarmArgument, status PNIOStatus) error
	GetARErrorCodes(arep uint32) (class, code uint16, err error)

	// HandlePeriodic lets the engine do its housekeeping once per cycle.
	HandlePeriodic()
}

// Callbacks are raised by the engine, possibly from its own goroutines.
// A non-nil error rejects the indication; *PNIOStatus errors are
// forwarded to the controller as is.
type Callbacks interface {
	ConnectInd(arep uint32) error
	ReleaseInd(arep uint32) error
	DControlInd(arep uint32, command ControlCommand) error
	CControlInd(arep uint32) error
	StateInd(arep uint32, event Event) error
	ReadInd(arep uint32, rec RecordAddress, maxLength int) ([]byte, error)
	WriteInd(arep uint32, rec RecordAddress, data []byte) error
	ExpModuleInd(api uint32, slot uint16, moduleID uint32) error
	ExpSubmoduleInd(api uint32, slot, subslot uint16, moduleID, submoduleID uint32, expected DataConfig) error
	NewDataStatusInd(arep, crep uint32, changes, status DataStatus) error
	AlarmInd(arep uint32, alarm AlarmArgument, data []byte) error
	AlarmCnf(arep uint32, status PNIOStatus) error
	AlarmAckCnf(arep uint32, res int) error
	ResetInd(resetApplication bool, resetMode uint16) error
	SignalLEDInd(on bool) error
}

type ThreadSettings struct {
	Priority  int
	StackSize int
}

// Port is one physical port handed to the engine.
type Port struct {
	Name           string
	DefaultMAUType uint16
}

type IPSettings struct {
	Address string
	Netmask string
	Gateway string
}

// Config is the fully populated low level configuration passed to Init.
type Config struct {
	Tick time.Duration

	StationName       string
	ProductName       string
	VendorID          uint16
	DeviceID          uint16
	OEMVendorID       uint16
	OEMDeviceID       uint16
	MinDeviceInterval uint16

	IM0 IM0
	IM1 IM1
	IM2 IM2
	IM3 IM3
	IM4 IM4

	MainInterface string
	Ports         []Port
	IP            IPSettings
	SendHello     bool

	SNMPThread     ThreadSettings
	EthThread      ThreadSettings
	BGWorkerThread ThreadSettings

	StorageDirectory string
}

type IM0 struct {
	VendorID         uint16
	HardwareRevision uint16
	SoftwareRevision [4]byte // prefix, major, minor, patch
	RevisionCounter  uint16
	ProfileID        uint16
	ProfileSpecType  uint16
	VersionMajor     uint8
	VersionMinor     uint8
	SupportedIMs     uint16
	OrderID          string
	SerialNumber     string
}

type IM1 struct {
	TagFunction string
	TagLocation string
}

type IM2 struct {
	Date string
}

type IM3 struct {
	Descriptor string
}

type IM4 struct {
	Signature string
}
