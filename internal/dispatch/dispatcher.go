// Package dispatch serializes protocol work onto one consumer goroutine.
// Producers OR event bits into a pending mask; the consumer drains the
// whole mask on every wake-up.
package dispatch

import (
	"context"
	"strings"
	"sync"
)

type Events uint32

const (
	Cycle        Events = 1 << 0
	ReadyForData Events = 1 << 1
	Alarm        Events = 1 << 2
	Abort        Events = 1 << 3
)

// HandlingOrder is the fixed order in which a drained mask is processed.
var HandlingOrder = [...]Events{ReadyForData, Alarm, Cycle, Abort}

func (e Events) Has(bit Events) bool { return e&bit != 0 }

func (e Events) String() string {
	if e == 0 {
		return "none"
	}
	var names []string
	for _, bit := range HandlingOrder {
		if e.Has(bit) {
			names = append(names, bit.name())
		}
	}
	return strings.Join(names, "|")
}

func (e Events) name() string {
	switch e {
	case Cycle:
		return "cycle"
	case ReadyForData:
		return "ready_for_data"
	case Alarm:
		return "alarm"
	case Abort:
		return "abort"
	}
	return "unknown"
}

type Dispatcher struct {
	mu      sync.Mutex
	pending Events
	wake    chan struct{}
}

func New() *Dispatcher {
	return &Dispatcher{wake: make(chan struct{}, 1)}
}

// Signal marks events as pending and wakes the consumer. Safe for
// concurrent use.
func (d *Dispatcher) Signal(events Events) {
	if events == 0 {
		return
	}
	d.mu.Lock()
	d.pending |= events
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
		// a wake-up is already queued
	}
}

func (d *Dispatcher) SignalCycle()        { d.Signal(Cycle) }
func (d *Dispatcher) SignalReadyForData() { d.Signal(ReadyForData) }
func (d *Dispatcher) SignalAlarm()        { d.Signal(Alarm) }
func (d *Dispatcher) SignalAbort()        { d.Signal(Abort) }

// Wait blocks until at least one event is pending and returns all of them,
// clearing the pending mask.
func (d *Dispatcher) Wait(ctx context.Context) (Events, error) {
	for {
		if events := d.drain(); events != 0 {
			return events, nil
		}
		select {
		case <-d.wake:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Pending returns the current mask without draining it.
func (d *Dispatcher) Pending() Events {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Dispatcher) drain() Events {
	d.mu.Lock()
	defer d.mu.Unlock()
	events := d.pending
	d.pending = 0
	return events
}
