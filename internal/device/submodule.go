package device

import (
	"slices"

	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
)

type Submodule struct {
	Properties SubmoduleProperties
	Inputs     Inputs
	Outputs    Outputs
	Parameters Parameters
}

// DataConfig derives the controller-facing descriptor. Device inputs are
// written by the controller, so they count as controller outputs and the
// other way round. Sizes are only meaningful after Device.Validate.
func (s *Submodule) DataConfig() stack.DataConfig {
	in := s.Inputs.LengthInBytes()
	out := s.Outputs.LengthInBytes()

	cfg := stack.DataConfig{InSize: uint16(out), OutSize: uint16(in)}
	switch {
	case in > 0 && out > 0:
		cfg.Direction = stack.DirIO
	case in > 0:
		cfg.Direction = stack.DirOutput
	case out > 0:
		cfg.Direction = stack.DirInput
	default:
		cfg.Direction = stack.DirNoIO
	}
	return cfg
}

// Submodules is keyed by submodule id and keeps creation order.
type Submodules struct {
	byID  map[uint32]*Submodule
	order []uint32
}

// Create adds a submodule. It returns nil when id already exists.
func (s *Submodules) Create(id uint32) *Submodule {
	if s.byID == nil {
		s.byID = make(map[uint32]*Submodule)
	}
	if _, exists := s.byID[id]; exists {
		return nil
	}
	sub := &Submodule{Properties: DefaultSubmoduleProperties()}
	s.byID[id] = sub
	s.order = append(s.order, id)
	return sub
}

func (s *Submodules) Get(id uint32) *Submodule {
	return s.byID[id]
}

func (s *Submodules) IDs() []uint32 {
	return slices.Clone(s.order)
}

func (s *Submodules) Len() int {
	return len(s.order)
}
