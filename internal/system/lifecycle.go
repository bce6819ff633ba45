// Package system wires the device runtime, its description and the
// diagnostic servers into one service and runs their lifecycle.
package system

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/api/grpcapi"
	"github.com/KevinKickass/OpenProfinetDevice/internal/api/rest"
	"github.com/KevinKickass/OpenProfinetDevice/internal/api/websocket"
	"github.com/KevinKickass/OpenProfinetDevice/internal/auth"
	"github.com/KevinKickass/OpenProfinetDevice/internal/config"
	"github.com/KevinKickass/OpenProfinetDevice/internal/description"
	"github.com/KevinKickass/OpenProfinetDevice/internal/interfaces"
	"github.com/KevinKickass/OpenProfinetDevice/internal/netif"
	"github.com/KevinKickass/OpenProfinetDevice/internal/profinet"
	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
	"github.com/KevinKickass/OpenProfinetDevice/internal/stack/simstack"
	"github.com/KevinKickass/OpenProfinetDevice/internal/storage"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

var ErrAlreadyStarted = errors.New("system: already started")

// Options select the protocol engine. Without an engine the device runs
// against the simulated engine and a simulated controller.
type Options struct {
	Engine   stack.Stack
	Resolver netif.Resolver

	// SimulationInterval is the input update period of the simulated
	// controller.
	SimulationInterval time.Duration
}

type LifecycleManager struct {
	config *config.Config
	logger *zap.Logger

	engine    stack.Stack
	resolver  netif.Resolver
	sim       *simstack.Sim
	simPeriod time.Duration

	image    *description.ProcessImage
	instance *profinet.Instance

	db      *storage.PostgresClient
	journal *storage.Journal

	authService *auth.AuthService
	wsHub       *websocket.Hub
	health      *grpcapi.HealthService

	restServer *rest.Server
	grpcServer *grpc.Server
	grpcAddr   net.Addr

	stateMu      sync.RWMutex
	currentState SystemState
	startedAt    time.Time

	cancel       context.CancelFunc
	wg           sync.WaitGroup
	started      bool
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

func NewLifecycleManager(cfg *config.Config, logger *zap.Logger, opts Options) *LifecycleManager {
	lm := &LifecycleManager{
		config:       cfg,
		logger:       logger,
		engine:       opts.Engine,
		resolver:     opts.Resolver,
		simPeriod:    opts.SimulationInterval,
		image:        description.NewProcessImage(),
		authService:  auth.NewAuthService(cfg.Auth, logger),
		health:       grpcapi.NewHealthService(logger),
		currentState: StateInitializing,
		shutdownChan: make(chan struct{}),
	}

	if lm.engine == nil {
		lm.sim = simstack.New()
		lm.engine = lm.sim
		if lm.resolver == nil {
			lm.resolver = loopbackResolver{}
		}
	}
	if lm.resolver == nil {
		lm.resolver = netif.System{}
	}

	return lm
}

// Start loads the description, initializes and starts the device and
// brings up the diagnostic servers. On error the caller must still call
// Shutdown to release what was started.
func (lm *LifecycleManager) Start() error {
	lm.stateMu.Lock()
	if lm.started {
		lm.stateMu.Unlock()
		return ErrAlreadyStarted
	}
	lm.started = true
	lm.startedAt = time.Now()
	lm.stateMu.Unlock()

	lm.logger.Info("Starting OpenProfinetDevice",
		zap.String("description", lm.config.Device.Description),
		zap.Bool("simulated", lm.Simulated()))

	ctx, cancel := context.WithCancel(context.Background())
	lm.cancel = cancel

	p, err := lm.startDevice(ctx)
	if err != nil {
		lm.setError(err)
		return err
	}

	if err := lm.startJournal(ctx); err != nil {
		lm.setError(err)
		return err
	}

	lm.startLiveEvents(ctx)

	if err := lm.startGRPCServer(); err != nil {
		err = fmt.Errorf("failed to start gRPC: %w", err)
		lm.setError(err)
		return err
	}

	if err := lm.startRESTServer(); err != nil {
		err = fmt.Errorf("failed to start REST API: %w", err)
		lm.setError(err)
		return err
	}

	if lm.sim != nil {
		controller := newSimController(lm.sim, p.Device, lm.simPeriod, lm.logger)
		lm.wg.Add(1)
		go func() {
			defer lm.wg.Done()
			controller.Run(ctx)
		}()
	}

	lm.setState(StateRunning)

	lm.logger.Info("System started successfully",
		zap.String("station_name", p.Device.Properties.StationName),
		zap.Int("grpc_port", lm.config.Server.GRPCPort),
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.Bool("journal_enabled", lm.journal != nil))

	return nil
}

func (lm *LifecycleManager) startDevice(ctx context.Context) (*profinet.Profinet, error) {
	loader, err := description.NewLoader()
	if err != nil {
		return nil, fmt.Errorf("failed to create description loader: %w", err)
	}

	desc, err := loader.Load(lm.config.Device.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to load device description: %w", err)
	}

	dev, err := description.NewComposer(lm.logger).Compose(desc, lm.image)
	if err != nil {
		return nil, fmt.Errorf("failed to compose device: %w", err)
	}

	p := profinet.New()
	p.Device = dev
	p.Properties = lm.config.Profinet.Properties()

	inst, err := p.Initialize(lm.engine, lm.logger, profinet.WithResolver(lm.resolver))
	if err != nil {
		return nil, err
	}
	lm.instance = inst

	if err := inst.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start device: %w", err)
	}
	return p, nil
}

func (lm *LifecycleManager) startJournal(ctx context.Context) error {
	if !lm.config.Database.Enabled {
		lm.logger.Info("Connection journal disabled")
		return nil
	}

	db, err := storage.NewPostgresClient(ctx, lm.config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	lm.db = db

	journal := storage.NewJournal(db.Pool(), lm.instance.Snapshot().StationName, lm.logger)
	if err := journal.EnsureSchema(ctx); err != nil {
		return err
	}
	lm.journal = journal

	lm.follow(ctx, journal.Run)
	return nil
}

// startLiveEvents feeds runtime notifications into the WebSocket hub and
// the health service.
func (lm *LifecycleManager) startLiveEvents(ctx context.Context) {
	lm.wsHub = websocket.NewHub(lm.logger, lm.authService, lm.instance)

	lm.wg.Add(1)
	go func() {
		defer lm.wg.Done()
		lm.wsHub.Run(ctx)
	}()

	lm.follow(ctx, lm.wsHub.Forward)

	lm.health.Update(lm.instance.Snapshot().State)
	lm.follow(ctx, lm.health.Watch)
}

// follow runs consumer on a fresh subscription until ctx is done.
func (lm *LifecycleManager) follow(ctx context.Context, consumer func(context.Context, <-chan profinet.Notification)) {
	ch := lm.instance.Subscribe()
	lm.wg.Add(1)
	go func() {
		defer lm.wg.Done()
		defer lm.instance.Unsubscribe(ch)
		consumer(ctx, ch)
	}()
}

func (lm *LifecycleManager) startGRPCServer() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", lm.config.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	lm.grpcAddr = lis.Addr()

	lm.grpcServer = grpc.NewServer()
	lm.health.Register(lm.grpcServer)

	go func() {
		lm.logger.Info("gRPC server listening",
			zap.String("address", lis.Addr().String()),
			zap.String("service", grpcapi.ServiceName))
		if err := lm.grpcServer.Serve(lis); err != nil {
			lm.logger.Error("gRPC server failed", zap.Error(err))
		}
	}()

	return nil
}

func (lm *LifecycleManager) startRESTServer() error {
	lm.restServer = rest.NewServer(lm, lm.logger, lm.wsHub, lm.authService)
	return lm.restServer.Start()
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")
		lm.setState(StateStopping)

		shutdownErr = lm.gracefulShutdown(ctx)

		lm.setState(StateStopped)
		close(lm.shutdownChan)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	lm.health.Shutdown()

	// 1. REST API Server graceful shutdown
	if lm.restServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timeout := lm.config.Server.ShutdownTimeout
			if timeout <= 0 {
				timeout = 5 * time.Second
			}
			shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("rest api shutdown failed: %w", err)
			}
		}()
	}

	// 2. gRPC Server graceful stop
	if lm.grpcServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lm.logger.Info("Stopping gRPC server")
			lm.grpcServer.GracefulStop()
		}()
	}

	// 3. Device, Simulator, Hub und Journal
	wg.Add(1)
	go func() {
		defer wg.Done()
		if lm.cancel != nil {
			lm.cancel()
		}
		lm.wg.Wait()
		if lm.instance != nil {
			lm.instance.Stop()
		}
		if lm.db != nil {
			lm.db.Close()
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		lm.logger.Info("Graceful shutdown completed")
		select {
		case err := <-errChan:
			return err
		default:
			return nil
		}
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		if lm.grpcServer != nil {
			lm.grpcServer.Stop()
		}
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// Done is closed once Shutdown has completed.
func (lm *LifecycleManager) Done() <-chan struct{} {
	return lm.shutdownChan
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()

	if err := ValidateTransition(lm.currentState, state); err != nil {
		lm.logger.Warn("Ignoring system state change", zap.Error(err))
		return
	}
	lm.currentState = state
}

func (lm *LifecycleManager) setError(err error) {
	lm.logger.Error("System start failed", zap.Error(err))
	lm.setState(StateError)
}

func (lm *LifecycleManager) State() SystemState {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.currentState
}

func (lm *LifecycleManager) Simulated() bool {
	return lm.sim != nil
}

// Simulator returns the simulated engine, nil when a real engine is used.
func (lm *LifecycleManager) Simulator() *simstack.Sim {
	return lm.sim
}

// GRPCAddr returns the address the gRPC server listens on.
func (lm *LifecycleManager) GRPCAddr() string {
	if lm.grpcAddr == nil {
		return ""
	}
	return lm.grpcAddr.String()
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	state, startedAt := lm.currentState, lm.startedAt
	lm.stateMu.RUnlock()

	status := interfaces.SystemStatus{
		State:       state.String(),
		DeviceState: profinet.StateUninitialized,
		Simulated:   lm.Simulated(),
	}
	if !startedAt.IsZero() {
		status.Uptime = int64(time.Since(startedAt).Seconds())
	}
	if lm.instance != nil {
		snap := lm.instance.Snapshot()
		status.DeviceState = snap.State
		status.StationName = snap.StationName
		status.Connected = snap.Connected()
	}
	return status
}

// Config returns the configuration
func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}

func (lm *LifecycleManager) Device() interfaces.DeviceRuntime {
	if lm.instance == nil {
		return nil
	}
	return lm.instance
}

func (lm *LifecycleManager) ProcessImage() interfaces.ProcessImage {
	return lm.image
}

func (lm *LifecycleManager) Journal() interfaces.JournalReader {
	if lm.journal == nil {
		return nil
	}
	return lm.journal
}

var _ interfaces.LifecycleManager = (*LifecycleManager)(nil)
