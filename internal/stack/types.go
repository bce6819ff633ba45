package stack

import "fmt"

// NullAREP marks the absence of an application relationship.
const NullAREP uint32 = 0xFFFFFFFF

// MaxPhysicalPorts is the number of ports the engine can drive.
const MaxPhysicalPorts = 4

// MaxDataLength is the largest cyclic payload of one submodule in either
// direction.
const MaxDataLength = 1440

// IOXS is a provider or consumer status byte.
type IOXS uint8

const (
	IOXSBad  IOXS = 0x00
	IOXSGood IOXS = 0x80
)

func (x IOXS) String() string {
	switch x {
	case IOXSBad:
		return "BAD"
	case IOXSGood:
		return "GOOD"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", uint8(x))
	}
}

// Direction describes cyclic data from the controller's point of view.
type Direction uint8

const (
	DirNoIO Direction = iota
	DirInput
	DirOutput
	DirIO
)

func (d Direction) String() string {
	switch d {
	case DirNoIO:
		return "NO_IO"
	case DirInput:
		return "INPUT"
	case DirOutput:
		return "OUTPUT"
	case DirIO:
		return "INPUT_OUTPUT"
	default:
		return "UNKNOWN"
	}
}

// DataConfig is the direction and size descriptor of a submodule.
// InSize is data sent to the controller, OutSize data received from it.
type DataConfig struct {
	Direction Direction
	InSize    uint16
	OutSize   uint16
}

// Event is an AR state change reported by the engine.
type Event uint8

const (
	EventAbort Event = iota
	EventStartup
	EventPrmEnd
	EventApplReady
	EventData
)

func (e Event) String() string {
	switch e {
	case EventAbort:
		return "ABORT"
	case EventStartup:
		return "STARTUP"
	case EventPrmEnd:
		return "PRMEND"
	case EventApplReady:
		return "APPLRDY"
	case EventData:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

// Data status bits of a cyclic frame.
const (
	DataStatusBitState                   = 0 // primary / backup
	DataStatusBitRedundancy              = 1
	DataStatusBitDataValid               = 2
	DataStatusBitProviderState           = 4 // run / stop
	DataStatusBitStationProblemIndicator = 5
	DataStatusBitIgnore                  = 7
)

// DataStatus wraps the raw data status byte.
type DataStatus uint8

func (s DataStatus) bit(n uint) bool { return uint8(s)&(1<<n) != 0 }

func (s DataStatus) Primary() bool       { return s.bit(DataStatusBitState) }
func (s DataStatus) Valid() bool         { return s.bit(DataStatusBitDataValid) }
func (s DataStatus) Running() bool       { return s.bit(DataStatusBitProviderState) }
func (s DataStatus) StationNormal() bool { return s.bit(DataStatusBitStationProblemIndicator) }
func (s DataStatus) Ignored() bool       { return s.bit(DataStatusBitIgnore) }

// RecordAddress locates an acyclic record.
type RecordAddress struct {
	API      uint32
	Slot     uint16
	Subslot  uint16
	Index    uint16
	Sequence uint16
}

// AlarmArgument identifies a controller alarm to acknowledge.
type AlarmArgument struct {
	API            uint32
	Slot           uint16
	Subslot        uint16
	AlarmType      uint16
	SequenceNumber uint16
	Specifier      uint8
}

// ControlCommand is the command carried by a DControl indication.
type ControlCommand uint16

const (
	ControlCommandPrmBegin ControlCommand = 0x0001
	ControlCommandPrmEnd   ControlCommand = 0x0002
	ControlCommandAppRdy   ControlCommand = 0x0004
	ControlCommandRelease  ControlCommand = 0x0008
)
