package storage

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventConnect EventKind = "connect"
	EventAbort   EventKind = "abort"
	EventAlarm   EventKind = "alarm"
	EventPlug    EventKind = "plug"
)

// ConnectionEvent is one row of the journal. Events of the same AR share a
// session id.
type ConnectionEvent struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"session_id"`
	StationName    string    `json:"station_name"`
	Kind           EventKind `json:"kind"`
	AREP           uint32    `json:"arep"`
	Slot           uint16    `json:"slot"`
	Subslot        uint16    `json:"subslot"`
	ModuleID       uint32    `json:"module_id,omitempty"`
	SubmoduleID    uint32    `json:"submodule_id,omitempty"`
	ErrorClass     uint16    `json:"error_class,omitempty"`
	ErrorCode      uint16    `json:"error_code,omitempty"`
	ErrorClassText string    `json:"error_class_text,omitempty"`
	ErrorCodeText  string    `json:"error_code_text,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
