package profinet

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/device"
	"github.com/KevinKickass/OpenProfinetDevice/internal/dispatch"
	"github.com/KevinKickass/OpenProfinetDevice/internal/instance"
	"github.com/KevinKickass/OpenProfinetDevice/internal/logging"
	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
	"go.uber.org/zap"
)

// Instance is an initialized device. All engine callbacks and the data
// plane run on the worker goroutine started by Start; the accessors below
// are safe to call from anywhere.
type Instance struct {
	config *device.Device
	props  Properties
	engine stack.Stack
	logger logging.Logger

	dispatcher *dispatch.Dispatcher
	tree       *instance.Device
	ports      int

	// worker goroutine only
	state        State
	cyclic       bool
	arep         uint32
	arepForReady uint32
	alarmAllowed bool
	alarmArg     stack.AlarmArgument
	frame        []byte

	cycles   atomic.Uint64
	aborts   atomic.Uint64
	snapshot atomic.Pointer[Snapshot]

	listenersMu sync.Mutex
	listeners   []chan Notification

	runMu   sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newInstance(cfg *device.Device, props Properties, engine stack.Stack, logger logging.Logger) *Instance {
	i := &Instance{
		config:       cfg,
		props:        props,
		engine:       engine,
		logger:       logger,
		dispatcher:   dispatch.New(),
		tree:         instance.NewDevice(),
		state:        StateUninitialized,
		arep:         stack.NullAREP,
		arepForReady: stack.NullAREP,
		alarmAllowed: true,
		frame:        make([]byte, stack.MaxDataLength),
	}
	i.publish()
	return i
}

// Start plugs the DAP and launches the cycle timer and the worker. Calling
// it again while running is a no-op.
func (i *Instance) Start(ctx context.Context) error {
	i.runMu.Lock()
	defer i.runMu.Unlock()

	if i.stopped {
		return ErrStopped
	}
	if i.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	i.cancel = cancel
	i.running = true

	ready := make(chan struct{})
	i.wg.Add(2)
	go i.worker(ctx, ready)
	go i.cycleTimer(ctx)
	<-ready

	i.logger.Info("Profinet device started",
		zap.String("station_name", i.config.Properties.StationName),
		zap.Duration("cycle_time", i.props.CycleTime))

	return nil
}

// Stop terminates the timer and the worker and waits for both. The
// instance cannot be restarted.
func (i *Instance) Stop() {
	i.runMu.Lock()
	if i.stopped {
		i.runMu.Unlock()
		return
	}
	i.stopped = true
	running := i.running
	cancel := i.cancel
	i.runMu.Unlock()

	if !running {
		return
	}
	cancel()
	i.wg.Wait()

	i.state = StateStopped
	i.publish()
	i.logger.Info("Profinet device stopped")
}

func (i *Instance) cycleTimer(ctx context.Context) {
	defer i.wg.Done()

	if err := setRealtimePriority(i.props.CycleTimerPriority); err != nil {
		i.logger.Debug("Cycle timer runs without real-time priority", zap.Error(err))
	}

	interval := i.props.CycleTime
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.dispatcher.SignalCycle()
		}
	}
}

func (i *Instance) worker(ctx context.Context, ready chan<- struct{}) {
	defer i.wg.Done()

	if err := setRealtimePriority(i.props.CycleWorkerPriority); err != nil {
		i.logger.Warn("Failed to set real-time priority of cycle worker", zap.Error(err))
	}

	if err := i.plugDAP(); err != nil {
		i.logger.Error("Failed to plug DAP", zap.Error(err))
	}
	i.setState(StateWaitingForConnection)
	i.logger.Info("Waiting for PLC connect request")
	close(ready)

	for {
		events, err := i.dispatcher.Wait(ctx)
		if err != nil {
			return
		}
		i.handleEvents(events)
	}
}

// handleEvents processes every drained event in the fixed handling order.
func (i *Instance) handleEvents(events dispatch.Events) {
	for _, ev := range dispatch.HandlingOrder {
		if !events.Has(ev) {
			continue
		}
		switch ev {
		case dispatch.ReadyForData:
			i.sendApplicationReady()
		case dispatch.Alarm:
			i.sendAlarmAck()
		case dispatch.Cycle:
			i.cycle()
		case dispatch.Abort:
			i.connectionClosed()
		}
	}
}

func (i *Instance) cycle() {
	i.cycles.Add(1)
	if i.state == StateConnected {
		i.handleCyclicData()
	}
	i.engine.HandlePeriodic()
}

func (i *Instance) sendApplicationReady() {
	if err := i.engine.ApplicationReady(i.arepForReady); err != nil {
		i.logger.Error("Failed to send application ready",
			zap.Uint32("arep", i.arepForReady),
			zap.Error(err))
		return
	}
	i.logger.Debug("Application ready sent", zap.Uint32("arep", i.arepForReady))
}

func (i *Instance) sendAlarmAck() {
	if err := i.engine.AlarmSendAck(i.arep, i.alarmArg, stack.PNIOStatus{}); err != nil {
		i.logger.Error("Failed to send alarm ACK",
			zap.Uint32("arep", i.arep),
			zap.Error(err))
		return
	}
	i.logger.Debug("Alarm ACK sent",
		zap.Uint16("slot", i.alarmArg.Slot),
		zap.Uint16("subslot", i.alarmArg.Subslot))
}

func (i *Instance) connectionClosed() {
	i.alarmAllowed = true
	i.aborts.Add(1)
	i.logger.Info("Connection closed")
	i.logger.Info("Waiting for PLC connect request")
	i.publish()
}

// Snapshot returns the latest published view of the device.
func (i *Instance) Snapshot() *Snapshot {
	s := *i.snapshot.Load()
	s.Cycles = i.cycles.Load()
	s.Aborts = i.aborts.Load()
	return &s
}

// Subscribe returns a channel receiving notifications. Slow subscribers
// lose notifications instead of blocking the worker.
func (i *Instance) Subscribe() chan Notification {
	ch := make(chan Notification, 10)

	i.listenersMu.Lock()
	i.listeners = append(i.listeners, ch)
	i.listenersMu.Unlock()

	return ch
}

func (i *Instance) Unsubscribe(ch chan Notification) {
	i.listenersMu.Lock()
	defer i.listenersMu.Unlock()

	for idx, l := range i.listeners {
		if l == ch {
			i.listeners = append(i.listeners[:idx], i.listeners[idx+1:]...)
			close(ch)
			return
		}
	}
}

func (i *Instance) notify(n Notification) {
	n.Timestamp = time.Now()
	n.State = i.state
	n.Cyclic = i.cyclic
	if n.AREP == 0 {
		n.AREP = i.arep
	}

	i.listenersMu.Lock()
	defer i.listenersMu.Unlock()

	for _, ch := range i.listeners {
		select {
		case ch <- n:
		default:
			i.logger.Warn("Notification dropped, subscriber too slow",
				zap.String("type", string(n.Type)))
		}
	}
}

func (i *Instance) setState(state State) {
	if i.state == state {
		return
	}
	previous := i.state
	i.state = state
	i.publish()

	i.logger.Info("Device state changed",
		zap.String("from", string(previous)),
		zap.String("to", string(state)))

	i.notify(Notification{Type: NotificationStateChanged, Previous: previous})
}

// publish rebuilds the snapshot from the runtime tree.
func (i *Instance) publish() {
	s := &Snapshot{
		State:        i.state,
		Cyclic:       i.cyclic,
		AREP:         i.arep,
		StationName:  i.config.Properties.StationName,
		AlarmAllowed: i.alarmAllowed,
		UpdatedAt:    time.Now(),
	}
	for _, m := range i.tree.Modules() {
		slot := SlotSnapshot{Slot: m.Slot(), ModuleID: m.ModuleID(), Unknown: m.Unknown()}
		for _, sub := range m.Submodules() {
			slot.Subslots = append(slot.Subslots, SubslotSnapshot{
				Subslot:      sub.Subslot(),
				SubmoduleID:  sub.SubmoduleID(),
				Unknown:      sub.Unknown(),
				InputLength:  sub.InputLength(),
				OutputLength: sub.OutputLength(),
				InputIOPS:    sub.LastInputIOPS().String(),
				OutputIOCS:   sub.LastOutputIOCS().String(),
			})
		}
		s.Slots = append(s.Slots, slot)
	}
	i.snapshot.Store(s)
}
