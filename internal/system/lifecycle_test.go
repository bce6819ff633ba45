package system

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/config"
	"github.com/KevinKickass/OpenProfinetDevice/internal/description"
	"github.com/KevinKickass/OpenProfinetDevice/internal/device"
	"github.com/KevinKickass/OpenProfinetDevice/internal/profinet"
	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const echoPath = "../../configs/devices/echo.yaml"

func testConfig(descriptionPath string) *config.Config {
	defaults := profinet.DefaultProperties()
	return &config.Config{
		Server: config.ServerConfig{ShutdownTimeout: 5 * time.Second},
		Profinet: config.ProfinetConfig{
			CycleTime:     time.Millisecond,
			MainInterface: defaults.MainNetworkInterface,
		},
		Device:  config.DeviceConfig{Description: descriptionPath},
		Logging: config.LoggingConfig{Level: "debug"},
		Auth:    config.AuthConfig{Enabled: false},
	}
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to SystemState
		ok       bool
	}{
		{StateInitializing, StateRunning, true},
		{StateInitializing, StateError, true},
		{StateRunning, StateStopping, true},
		{StateStopping, StateStopped, true},
		{StateError, StateStopping, true},
		{StateRunning, StateInitializing, false},
		{StateStopped, StateRunning, false},
		{SystemState(42), StateRunning, false},
	}

	for _, tt := range tests {
		err := ValidateTransition(tt.from, tt.to)
		if (err == nil) != tt.ok {
			t.Errorf("%s -> %s: err = %v, want ok=%v", tt.from, tt.to, err, tt.ok)
		}
	}
}

func TestPlanPlugs(t *testing.T) {
	loader, err := description.NewLoader()
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	desc, err := loader.Load(echoPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dev, err := description.NewComposer(zap.NewNop()).Compose(desc, description.NewProcessImage())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	plugs := planPlugs(dev)
	if len(plugs) != 5 {
		t.Fatalf("got %d plugs, want 5: %+v", len(plugs), plugs)
	}
	if plugs[0].Slot != device.DAPSlot || plugs[0].SubmoduleID != device.DAPIdentitySubmoduleID {
		t.Errorf("first plug = %+v, want DAP identity", plugs[0])
	}

	echo := plugs[3]
	if echo.Slot != 1 || echo.Subslot != 1 || echo.ModuleID != 0x40 || echo.SubmoduleID != 0x140 {
		t.Errorf("echo plug = %+v", echo)
	}
	if echo.Config.InSize != 8 || echo.Config.OutSize != 8 {
		t.Errorf("echo config = %+v", echo.Config)
	}

	status := plugs[4]
	if status.Slot != 2 || status.ModuleID != 0x50 || status.Config.Direction != stack.DirInput {
		t.Errorf("status plug = %+v", status)
	}
}

func TestFreeSlot(t *testing.T) {
	used := map[uint16]bool{0: true, 1: true, 2: true}

	if slot, ok := freeSlot(device.PlugInfo{FixedSlot: device.NoFixedSlot}, used); !ok || slot != 3 {
		t.Errorf("any slot: got %d, %v", slot, ok)
	}
	if slot, ok := freeSlot(device.PlugInfo{AllowedSlots: []uint16{2, 5}, FixedSlot: device.NoFixedSlot}, used); !ok || slot != 5 {
		t.Errorf("allowed slots: got %d, %v", slot, ok)
	}
	if _, ok := freeSlot(device.PlugInfo{AllowedSlots: []uint16{1, 2}, FixedSlot: device.NoFixedSlot}, used); ok {
		t.Error("expected no free slot")
	}
}

func TestLoopbackResolver(t *testing.T) {
	var r loopbackResolver
	if r.Exists("") || !r.Exists("eth0") {
		t.Fatal("loopback resolver must accept every non-empty name")
	}
	info, err := r.Lookup("eth0")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !info.IP.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Errorf("ip = %v", info.IP)
	}
}

func TestSimulatedLifecycle(t *testing.T) {
	logger, logs := newObservedLogger()
	lm := NewLifecycleManager(testConfig(echoPath), logger, Options{SimulationInterval: 5 * time.Millisecond})

	if !lm.Simulated() || lm.Simulator() == nil {
		t.Fatal("expected the simulated engine without an explicit engine")
	}
	if lm.Journal() != nil {
		t.Fatal("journal must be nil while the database is disabled")
	}

	if err := lm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		_ = lm.Shutdown(context.Background())
	})

	if err := lm.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start: got %v, want ErrAlreadyStarted", err)
	}
	if lm.State() != StateRunning {
		t.Fatalf("state = %s, want RUNNING", lm.State())
	}

	waitFor(t, "connection", func() bool {
		return lm.GetCurrentStatus().Connected
	})

	// Eingänge kommen mit Gain 2 zurück
	image := lm.ProcessImage()
	waitFor(t, "echoed input", func() bool {
		snap := image.Snapshot()
		in, _ := snap["echo.in_int"].(uint32)
		out, _ := snap["echo.out_int"].(uint32)
		return in != 0 && out == 2*in
	})
	if image.Updates() == 0 {
		t.Error("no input update counted")
	}

	status := lm.GetCurrentStatus()
	if status.State != "RUNNING" || status.StationName != "echo-device" || !status.Simulated {
		t.Errorf("status = %+v", status)
	}
	if lm.Device().Snapshot().StationName != "echo-device" {
		t.Error("device runtime not exposed")
	}

	_, port, err := net.SplitHostPort(lm.GRPCAddr())
	if err != nil {
		t.Fatalf("grpc addr %q: %v", lm.GRPCAddr(), err)
	}
	conn, err := grpc.NewClient(net.JoinHostPort("127.0.0.1", port), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	waitFor(t, "serving health status", func() bool {
		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	})

	if err := lm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case <-lm.Done():
	default:
		t.Fatal("Done not closed after Shutdown")
	}
	if lm.State() != StateStopped {
		t.Errorf("state = %s, want STOPPED", lm.State())
	}
	if s := lm.Device().Snapshot(); s.State != profinet.StateStopped {
		t.Errorf("device state = %s, want stopped", s.State)
	}
	if logs.FilterMessage("Graceful shutdown completed").Len() != 1 {
		t.Error("missing graceful shutdown log")
	}
}

func TestStartFailsWithoutDescription(t *testing.T) {
	logger, logs := newObservedLogger()
	lm := NewLifecycleManager(testConfig("does-not-exist.yaml"), logger, Options{})

	if err := lm.Start(); err == nil {
		t.Fatal("expected Start to fail")
	}
	if lm.State() != StateError {
		t.Fatalf("state = %s, want ERROR", lm.State())
	}
	if logs.FilterMessage("System start failed").Len() != 1 {
		t.Error("missing start failure log")
	}
	if lm.Device() != nil {
		t.Error("device runtime must be nil after a failed start")
	}

	if err := lm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if lm.State() != StateStopped {
		t.Errorf("state = %s, want STOPPED", lm.State())
	}
	if status := lm.GetCurrentStatus(); status.DeviceState != profinet.StateUninitialized {
		t.Errorf("device state = %s", status.DeviceState)
	}
}

func TestShutdownWithoutStart(t *testing.T) {
	logger, _ := newObservedLogger()
	lm := NewLifecycleManager(testConfig(echoPath), logger, Options{})

	if err := lm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := lm.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if lm.State() != StateStopped {
		t.Errorf("state = %s, want STOPPED", lm.State())
	}
}
