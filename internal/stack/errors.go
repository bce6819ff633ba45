package stack

import "fmt"

// PNIO status codes used in acyclic responses.
const (
	ErrorCodeRead  uint8 = 0xDE
	ErrorCodeWrite uint8 = 0xDF

	ErrorDecodePNIORW uint8 = 0x80

	ErrorCode1AppReadError  uint8 = 0xA0
	ErrorCode1AppWriteError uint8 = 0xA1
)

// AR abort error classes and codes.
const (
	ErrorClassRTAProtocol uint16 = 0xFD
	ErrorClassCTLDINA     uint16 = 0xCF

	AbortConsumerDHTExpired    uint16 = 0x04
	AbortCMITimeout            uint16 = 0x05
	AbortReleaseIndReceived    uint16 = 0x0E
	AbortDCPStationNameChanged uint16 = 0x1E
	AbortDCPResetToFactory     uint16 = 0x1F
	CTLDINAMultipleIPAddresses uint16 = 0x07
)

// PNIOStatus is returned to the engine when a callback fails. It carries
// the four byte status the controller will see.
type PNIOStatus struct {
	ErrorCode   uint8
	ErrorDecode uint8
	ErrorCode1  uint8
	ErrorCode2  uint8
}

func (s *PNIOStatus) Error() string {
	return fmt.Sprintf("pnio status %02x:%02x:%02x:%02x",
		s.ErrorCode, s.ErrorDecode, s.ErrorCode1, s.ErrorCode2)
}

func ReadError() *PNIOStatus {
	return &PNIOStatus{
		ErrorCode:   ErrorCodeRead,
		ErrorDecode: ErrorDecodePNIORW,
		ErrorCode1:  ErrorCode1AppReadError,
	}
}

func WriteError() *PNIOStatus {
	return &PNIOStatus{
		ErrorCode:   ErrorCodeWrite,
		ErrorDecode: ErrorDecodePNIORW,
		ErrorCode1:  ErrorCode1AppWriteError,
	}
}

// DecodeARError turns an AR error class and code into readable text.
func DecodeARError(class, code uint16) (string, string) {
	switch class {
	case ErrorClassRTAProtocol:
		desc := "unknown error code"
		switch code {
		case AbortConsumerDHTExpired:
			desc = "Device missed cyclic data deadline, device terminated AR"
		case AbortCMITimeout:
			desc = "Communication initialization timeout, device terminated AR"
		case AbortReleaseIndReceived:
			desc = "AR release indication received"
		case AbortDCPStationNameChanged:
			desc = "DCP station name changed, device terminated AR"
		case AbortDCPResetToFactory:
			desc = "DCP reset to factory or factory reset, device terminated AR"
		}
		return "Real-Time Acyclic Protocol", desc
	case ErrorClassCTLDINA:
		desc := "unknown error code"
		if code == CTLDINAMultipleIPAddresses {
			desc = "Multiple users of same IP address"
		}
		return "CTLDINA = Name and IP assignment from controller", desc
	default:
		return "unknown error class", "unknown error code"
	}
}
