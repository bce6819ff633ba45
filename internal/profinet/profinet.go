// Package profinet implements the application side of a PROFINET IO-device:
// it plugs modules as the controller requests them, exchanges cyclic data,
// serves parameter records and follows the AR lifecycle.
package profinet

import (
	"errors"
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/device"
	"github.com/KevinKickass/OpenProfinetDevice/internal/netif"
	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
)

var (
	ErrInitialization   = errors.New("profinet: initialization failed")
	ErrInvalidInterface = errors.New("profinet: invalid network interface configuration")
	ErrInvalidStorage   = errors.New("profinet: invalid storage directory")
	ErrStopped          = errors.New("profinet: instance was stopped")
)

// Properties are the runtime settings of the device, as opposed to its
// identity.
type Properties struct {
	CycleTime time.Duration

	// MainNetworkInterface carries the IP configuration. NetworkInterfaces
	// lists the physical ports; empty means the main interface only.
	MainNetworkInterface string
	NetworkInterfaces    []string

	// StorageDirectory is handed to the engine for its persistent data.
	// Empty means the working directory.
	StorageDirectory string

	SNMPThread     stack.ThreadSettings
	EthThread      stack.ThreadSettings
	BGWorkerThread stack.ThreadSettings

	CycleTimerPriority  int
	CycleWorkerPriority int
}

func DefaultProperties() Properties {
	return Properties{
		CycleTime:            time.Millisecond,
		MainNetworkInterface: "eth0",
		SNMPThread:           stack.ThreadSettings{Priority: 1, StackSize: 256 * 1024},
		EthThread:            stack.ThreadSettings{Priority: 10, StackSize: 4096},
		BGWorkerThread:       stack.ThreadSettings{Priority: 5, StackSize: 4096},
		CycleTimerPriority:   30,
		CycleWorkerPriority:  15,
	}
}

// Profinet bundles the device description with its runtime properties.
type Profinet struct {
	Device     *device.Device
	Properties Properties
}

func New() *Profinet {
	return &Profinet{
		Device:     device.NewDevice(),
		Properties: DefaultProperties(),
	}
}

type options struct {
	resolver netif.Resolver
}

type Option func(*options)

// WithResolver replaces the operating system interface lookup.
func WithResolver(r netif.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}
