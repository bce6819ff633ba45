package description

import (
	"maps"
	"sync"
	"sync/atomic"

	"github.com/KevinKickass/OpenProfinetDevice/internal/marshal"
)

// ProcessImage holds the current value of every input, output and
// parameter of a composed device. It is written from the cyclic worker and
// read by the diagnostic API, so all access is locked.
type ProcessImage struct {
	mu      sync.RWMutex
	values  map[string]any
	updates atomic.Uint64
}

func NewProcessImage() *ProcessImage {
	return &ProcessImage{values: make(map[string]any)}
}

func (p *ProcessImage) Set(name string, value any) {
	p.mu.Lock()
	p.values[name] = value
	p.mu.Unlock()
}

func (p *ProcessImage) Get(name string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[name]
	return v, ok
}

// Snapshot returns a copy of all values.
func (p *ProcessImage) Snapshot() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.values)
}

// Updates counts complete input updates received from the controller.
func (p *ProcessImage) Updates() uint64 {
	return p.updates.Load()
}

func (p *ProcessImage) markUpdated() {
	p.updates.Add(1)
}

func (p *ProcessImage) number(name string) any {
	v, _ := p.Get(name)
	return v
}

// numberAs converts a stored value to T. Missing or non-numeric values
// read as zero.
func numberAs[T marshal.Number](v any) T {
	switch x := v.(type) {
	case uint8:
		return T(x)
	case uint16:
		return T(x)
	case uint32:
		return T(x)
	case uint64:
		return T(x)
	case int8:
		return T(x)
	case int16:
		return T(x)
	case int32:
		return T(x)
	case int64:
		return T(x)
	case float32:
		return T(x)
	case float64:
		return T(x)
	}
	return 0
}
