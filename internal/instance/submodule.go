package instance

import (
	"errors"
	"slices"

	"github.com/KevinKickass/OpenProfinetDevice/internal/device"
	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
)

// Submodule is the runtime view of a plugged submodule. Unknown submodules
// only carry the lengths negotiated by the engine and never call into the
// application.
type Submodule struct {
	subslot     uint16
	submoduleID uint32
	unknown     bool
	initialized bool

	config     *device.Submodule
	inputs     []*Input
	outputs    []*Output
	parameters map[uint16]*Parameter
	allUpdated func()

	inputLength  int
	outputLength int

	lastInputIOPS  stack.IOXS
	lastOutputIOCS stack.IOXS
}

func newSubmodule(subslot uint16, submoduleID uint32) *Submodule {
	return &Submodule{
		subslot:        subslot,
		submoduleID:    submoduleID,
		lastInputIOPS:  stack.IOXSBad,
		lastOutputIOCS: stack.IOXSBad,
	}
}

func (s *Submodule) Initialize(cfg *device.Submodule) {
	s.config = cfg
	s.unknown = false
	s.inputs = s.inputs[:0]
	s.outputs = s.outputs[:0]
	s.parameters = make(map[uint16]*Parameter, cfg.Parameters.Len())
	s.allUpdated = cfg.Inputs.AllUpdatedCallback()

	s.inputLength = 0
	for _, in := range cfg.Inputs.All() {
		s.inputs = append(s.inputs, &Input{config: in})
		s.inputLength += in.Length()
	}
	s.outputLength = 0
	for _, out := range cfg.Outputs.All() {
		s.outputs = append(s.outputs, &Output{config: out})
		s.outputLength += out.Length()
	}
	for _, idx := range cfg.Parameters.Indexes() {
		s.parameters[idx] = newParameter(cfg.Parameters.Get(idx))
	}
	s.initialized = true
}

// InitializeUnknown sets up a placeholder with the lengths the engine
// negotiated for an id that has no configuration.
func (s *Submodule) InitializeUnknown(inputLength, outputLength int) {
	s.config = nil
	s.unknown = true
	s.inputs = nil
	s.outputs = nil
	s.parameters = nil
	s.allUpdated = nil
	s.inputLength = inputLength
	s.outputLength = outputLength
	s.initialized = true
}

// ApplyParameterDefaults writes every declared parameter default through
// the application callbacks.
func (s *Submodule) ApplyParameterDefaults() error {
	var errs []error
	for _, idx := range s.ParameterIndexes() {
		if err := s.parameters[idx].ApplyDefault(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetInput hands data received from the controller to the inputs in
// declaration order.
func (s *Submodule) SetInput(data []byte) bool {
	if s.unknown || len(data) < s.inputLength {
		return false
	}
	offset := 0
	for _, in := range s.inputs {
		if !in.Set(data[offset:]) {
			return false
		}
		offset += in.Length()
	}
	if s.allUpdated != nil {
		s.allUpdated()
	}
	return true
}

// GetOutput fills buf with the outputs in declaration order and returns
// the number of bytes written.
func (s *Submodule) GetOutput(buf []byte) (int, bool) {
	if s.unknown || len(buf) < s.outputLength {
		return 0, false
	}
	offset := 0
	ok := true
	for _, out := range s.outputs {
		if !out.Get(buf[offset:]) {
			ok = false
		}
		offset += out.Length()
	}
	return s.outputLength, ok
}

// SetDefaultInputs drives every input to its safe value.
func (s *Submodule) SetDefaultInputs() bool {
	ok := true
	for _, in := range s.inputs {
		if !in.SetDefault() {
			ok = false
		}
	}
	return ok
}

func (s *Submodule) GetParameter(idx uint16) *Parameter {
	return s.parameters[idx]
}

func (s *Submodule) ParameterIndexes() []uint16 {
	indexes := make([]uint16, 0, len(s.parameters))
	for idx := range s.parameters {
		indexes = append(indexes, idx)
	}
	slices.Sort(indexes)
	return indexes
}

func (s *Submodule) Subslot() uint16                { return s.subslot }
func (s *Submodule) SubmoduleID() uint32            { return s.submoduleID }
func (s *Submodule) Unknown() bool                  { return s.unknown }
func (s *Submodule) Initialized() bool              { return s.initialized }
func (s *Submodule) Config() *device.Submodule      { return s.config }
func (s *Submodule) InputLength() int               { return s.inputLength }
func (s *Submodule) OutputLength() int              { return s.outputLength }
func (s *Submodule) Inputs() []*Input               { return s.inputs }
func (s *Submodule) Outputs() []*Output             { return s.outputs }
func (s *Submodule) LastInputIOPS() stack.IOXS      { return s.lastInputIOPS }
func (s *Submodule) SetLastInputIOPS(x stack.IOXS)  { s.lastInputIOPS = x }
func (s *Submodule) LastOutputIOCS() stack.IOXS     { return s.lastOutputIOCS }
func (s *Submodule) SetLastOutputIOCS(x stack.IOXS) { s.lastOutputIOCS = x }
