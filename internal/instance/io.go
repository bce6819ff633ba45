package instance

import (
	"errors"
	"fmt"

	"github.com/KevinKickass/OpenProfinetDevice/internal/device"
)

var (
	ErrBufferTooSmall = errors.New("instance: buffer too small")
	ErrCallbackFailed = errors.New("instance: application callback failed")
)

type Input struct {
	config *device.Input
}

func (i *Input) Length() int { return i.config.Length() }

// Set fails when fewer than Length bytes are offered.
func (i *Input) Set(data []byte) bool { return i.config.Set(data) }

func (i *Input) SetDefault() bool { return i.config.SetDefault() }

type Output struct {
	config *device.Output
}

func (o *Output) Length() int { return o.config.Length() }

func (o *Output) Get(buf []byte) bool { return o.config.Get(buf) }

// Parameter stages get results in its own buffer so that callers never
// see a partially written record.
type Parameter struct {
	config *device.Parameter
	value  []byte
}

func newParameter(cfg *device.Parameter) *Parameter {
	return &Parameter{config: cfg, value: make([]byte, cfg.Length())}
}

func (p *Parameter) Index() uint16 { return p.config.Index() }

func (p *Parameter) Length() int { return p.config.Length() }

// Get returns the freshly read record. The slice is owned by the parameter
// and valid until the next Get.
func (p *Parameter) Get(maxLength int) ([]byte, error) {
	if maxLength < len(p.value) {
		return nil, fmt.Errorf("%w: record needs %d bytes, offered %d", ErrBufferTooSmall, len(p.value), maxLength)
	}
	if !p.config.Get(p.value) {
		return nil, fmt.Errorf("%w: get parameter %d", ErrCallbackFailed, p.Index())
	}
	return p.value, nil
}

func (p *Parameter) Set(data []byte) error {
	if len(data) < len(p.value) {
		return fmt.Errorf("%w: record needs %d bytes, got %d", ErrBufferTooSmall, len(p.value), len(data))
	}
	if !p.config.Set(data) {
		return fmt.Errorf("%w: set parameter %d", ErrCallbackFailed, p.Index())
	}
	return nil
}

// ApplyDefault writes the declared default through the set callback.
// Parameters without a declared default are left alone.
func (p *Parameter) ApplyDefault() error {
	def := p.config.DefaultData()
	if def == nil {
		return nil
	}
	return p.Set(def)
}
