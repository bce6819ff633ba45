package profinet

import (
	"fmt"
	"os"
	"slices"

	"github.com/KevinKickass/OpenProfinetDevice/internal/device"
	"github.com/KevinKickass/OpenProfinetDevice/internal/logging"
	"github.com/KevinKickass/OpenProfinetDevice/internal/netif"
	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
	"go.uber.org/zap"
)

// Initialize validates the configuration and hands it to the engine. On
// failure nothing is kept and the caller may retry.
func (p *Profinet) Initialize(engine stack.Stack, logger logging.Logger, opts ...Option) (*Instance, error) {
	o := options{resolver: netif.System{}}
	for _, opt := range opts {
		opt(&o)
	}

	if err := p.Device.Validate(); err != nil {
		logger.Error("Invalid device configuration", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	ports, err := validateInterfaces(p.Properties.MainNetworkInterface, p.Properties.NetworkInterfaces, o.resolver)
	if err != nil {
		logger.Error("Invalid network interface configuration", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	ip, err := o.resolver.Lookup(p.Properties.MainNetworkInterface)
	if err != nil {
		logger.Error("Failed to read main interface address",
			zap.String("interface", p.Properties.MainNetworkInterface),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	storage, err := resolveStorageDirectory(p.Properties.StorageDirectory)
	if err != nil {
		logger.Error("Invalid storage directory",
			zap.String("path", p.Properties.StorageDirectory),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	logger.Info("Persistent file storage directory set",
		zap.String("path", storage))

	cfg := buildStackConfig(&p.Device.Properties, &p.Properties, ports, ip, storage)

	inst := newInstance(p.Device, p.Properties, engine, logger)
	if err := engine.Init(cfg, inst); err != nil {
		logger.Error("Failed to initialize protocol engine. Do you have enough Ethernet interface permission?",
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	inst.ports = len(ports)
	inst.setState(StateInitialized)

	logger.Info("Profinet device initialized",
		zap.String("station_name", cfg.StationName),
		zap.String("interface", cfg.MainInterface),
		zap.String("ip", cfg.IP.Address),
		zap.Int("ports", len(ports)),
		zap.Duration("cycle_time", p.Properties.CycleTime))

	return inst, nil
}

func validateInterfaces(main string, ports []string, r netif.Resolver) ([]string, error) {
	if main == "" {
		return nil, fmt.Errorf("%w: main network interface not set", ErrInvalidInterface)
	}
	if !r.Exists(main) {
		return nil, fmt.Errorf("%w: main network interface %q does not exist", ErrInvalidInterface, main)
	}
	if len(ports) == 0 {
		return []string{main}, nil
	}
	if len(ports) > stack.MaxPhysicalPorts {
		return nil, fmt.Errorf("%w: %d interfaces given, at most %d supported",
			ErrInvalidInterface, len(ports), stack.MaxPhysicalPorts)
	}
	for _, name := range ports {
		if name == "" {
			return nil, fmt.Errorf("%w: empty interface name in list", ErrInvalidInterface)
		}
		if !r.Exists(name) {
			return nil, fmt.Errorf("%w: network interface %q does not exist", ErrInvalidInterface, name)
		}
	}
	if !slices.Contains(ports, main) {
		return nil, fmt.Errorf("%w: interface list does not contain main interface %q", ErrInvalidInterface, main)
	}
	return slices.Clone(ports), nil
}

func resolveStorageDirectory(path string) (string, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidStorage, err)
		}
		path = wd
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidStorage, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidStorage, path)
	}
	return path, nil
}

func buildStackConfig(dp *device.DeviceProperties, props *Properties, ports []string, ip netif.Info, storage string) *stack.Config {
	cfg := &stack.Config{
		Tick:              props.CycleTime,
		StationName:       dp.StationName,
		ProductName:       dp.ProductName,
		VendorID:          dp.VendorID,
		DeviceID:          dp.DeviceID,
		OEMVendorID:       dp.OEMVendorID,
		OEMDeviceID:       dp.OEMDeviceID,
		MinDeviceInterval: dp.MinDeviceInterval,
		IM0: stack.IM0{
			VendorID:         dp.VendorID,
			HardwareRevision: dp.IMHardwareRevision,
			SoftwareRevision: [4]byte{
				dp.SoftwareRevision.Prefix,
				dp.SoftwareRevision.Major,
				dp.SoftwareRevision.Minor,
				dp.SoftwareRevision.Patch,
			},
			RevisionCounter: dp.IMRevisionCounter,
			ProfileID:       dp.ProfileID,
			ProfileSpecType: dp.ProfileSpecType,
			VersionMajor:    dp.IMVersionMajor,
			VersionMinor:    dp.IMVersionMinor,
			SupportedIMs:    dp.SupportedIMs,
			OrderID:         dp.OrderID,
			SerialNumber:    dp.SerialNumber,
		},
		IM1: stack.IM1{TagFunction: dp.TagFunction, TagLocation: dp.TagLocation},
		IM2: stack.IM2{Date: dp.IMDate},
		IM3: stack.IM3{Descriptor: dp.Descriptor},
		IM4: stack.IM4{Signature: dp.Signature},

		MainInterface: props.MainNetworkInterface,
		IP: stack.IPSettings{
			Address: ip.IP.String(),
			Netmask: ip.Netmask.String(),
			Gateway: ip.Gateway.String(),
		},
		SendHello: true,

		SNMPThread:     props.SNMPThread,
		EthThread:      props.EthThread,
		BGWorkerThread: props.BGWorkerThread,

		StorageDirectory: storage,
	}
	for _, name := range ports {
		cfg.Ports = append(cfg.Ports, stack.Port{Name: name, DefaultMAUType: dp.DefaultMAUType})
	}
	return cfg
}
