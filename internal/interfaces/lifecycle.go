package interfaces

import (
	"context"

	"github.com/KevinKickass/OpenProfinetDevice/internal/config"
	"github.com/KevinKickass/OpenProfinetDevice/internal/profinet"
	"github.com/KevinKickass/OpenProfinetDevice/internal/storage"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State       string         `json:"state"`
	DeviceState profinet.State `json:"device_state"`
	StationName string         `json:"station_name"`
	Connected   bool           `json:"connected"`
	Simulated   bool           `json:"simulated"`
	Uptime      int64          `json:"uptime_seconds"`
}

type DeviceRuntime interface {
	Snapshot() *profinet.Snapshot
}

type ProcessImage interface {
	Snapshot() map[string]any
	Updates() uint64
}

type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]storage.ConnectionEvent, error)
}

type LifecycleManager interface {
	Config() *config.Config
	Device() DeviceRuntime
	ProcessImage() ProcessImage
	// Journal is nil unless the database is enabled.
	Journal() JournalReader
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
