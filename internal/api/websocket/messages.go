package websocket

import (
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/auth"
	"github.com/KevinKickass/OpenProfinetDevice/internal/profinet"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeAuthSuccess MessageType = "auth_success"
	MessageTypeAuthFailed  MessageType = "auth_failed"

	// Runtime messages
	MessageTypeSnapshot          MessageType = "snapshot"
	MessageTypeDeviceState       MessageType = "device_state"
	MessageTypeSubmodulePlugged  MessageType = "submodule_plugged"
	MessageTypeAlarm             MessageType = "alarm"
	MessageTypeConnectionAborted MessageType = "connection_aborted"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// DeviceStateData is sent whenever the device state changes.
type DeviceStateData struct {
	State    profinet.State `json:"state"`
	Previous profinet.State `json:"previous_state"`
	AREP     uint32         `json:"arep"`
}

type AuthSuccessData struct {
	Permissions []auth.Permission `json:"permissions"`
}

type AuthFailedData struct {
	Reason string `json:"reason"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewNotificationMessage converts a runtime notification. The notification
// timestamp is kept.
func NewNotificationMessage(n profinet.Notification) Message {
	msg := Message{Timestamp: n.Timestamp, Data: n}
	switch n.Type {
	case profinet.NotificationStateChanged:
		msg.Type = MessageTypeDeviceState
		msg.Data = DeviceStateData{State: n.State, Previous: n.Previous, AREP: n.AREP}
	case profinet.NotificationSubmodulePlugged:
		msg.Type = MessageTypeSubmodulePlugged
	case profinet.NotificationAlarm:
		msg.Type = MessageTypeAlarm
	case profinet.NotificationConnectionAborted:
		msg.Type = MessageTypeConnectionAborted
	default:
		msg.Type = MessageType(n.Type)
	}
	return msg
}
