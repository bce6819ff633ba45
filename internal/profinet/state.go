package profinet

import (
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
)

// State of the device towards its controller.
type State string

const (
	StateUninitialized        State = "uninitialized"
	StateInitialized          State = "initialized"
	StateWaitingForConnection State = "waiting_for_connection"
	StateConnected            State = "connected"
	StateStopped              State = "stopped"
)

type NotificationType string

const (
	NotificationStateChanged      NotificationType = "state_changed"
	NotificationSubmodulePlugged  NotificationType = "submodule_plugged"
	NotificationAlarm             NotificationType = "alarm"
	NotificationConnectionAborted NotificationType = "connection_aborted"
)

// Notification is published to subscribers. Only the fields relevant to
// Type are set.
type Notification struct {
	Type      NotificationType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`

	State    State  `json:"state,omitempty"`
	Previous State  `json:"previous,omitempty"`
	Cyclic   bool   `json:"cyclic"`
	AREP     uint32 `json:"arep"`

	Slot        uint16 `json:"slot,omitempty"`
	Subslot     uint16 `json:"subslot,omitempty"`
	ModuleID    uint32 `json:"module_id,omitempty"`
	SubmoduleID uint32 `json:"submodule_id,omitempty"`
	Unknown     bool   `json:"unknown,omitempty"`

	ErrorClass     uint16 `json:"error_class,omitempty"`
	ErrorCode      uint16 `json:"error_code,omitempty"`
	ErrorClassText string `json:"error_class_text,omitempty"`
	ErrorCodeText  string `json:"error_code_text,omitempty"`

	Alarm *stack.AlarmArgument `json:"alarm,omitempty"`
}

// Snapshot is an immutable copy of the runtime tree and connection state.
type Snapshot struct {
	State        State          `json:"state"`
	Cyclic       bool           `json:"cyclic"`
	AREP         uint32         `json:"arep"`
	AlarmAllowed bool           `json:"alarm_allowed"`
	Cycles       uint64         `json:"cycles"`
	Aborts       uint64         `json:"aborts"`
	StationName  string         `json:"station_name"`
	Slots        []SlotSnapshot `json:"slots"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type SlotSnapshot struct {
	Slot     uint16            `json:"slot"`
	ModuleID uint32            `json:"module_id"`
	Unknown  bool              `json:"unknown"`
	Subslots []SubslotSnapshot `json:"subslots"`
}

type SubslotSnapshot struct {
	Subslot      uint16 `json:"subslot"`
	SubmoduleID  uint32 `json:"submodule_id"`
	Unknown      bool   `json:"unknown"`
	InputLength  int    `json:"input_length"`
	OutputLength int    `json:"output_length"`
	InputIOPS    string `json:"input_iops"`
	OutputIOCS   string `json:"output_iocs"`
}

// Connected reports whether an AR is established.
func (s *Snapshot) Connected() bool {
	return s.State == StateConnected
}
