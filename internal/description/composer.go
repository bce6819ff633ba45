package description

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/KevinKickass/OpenProfinetDevice/internal/device"
	"github.com/KevinKickass/OpenProfinetDevice/internal/logging"
	"github.com/KevinKickass/OpenProfinetDevice/internal/marshal"
	"github.com/KevinKickass/OpenProfinetDevice/internal/types"
	"go.uber.org/zap"
)

var (
	ErrUnknownReference = errors.New("description: unknown value reference")
	ErrInvalidValue     = errors.New("description: invalid value")
)

type Composer struct {
	logger logging.Logger
}

func NewComposer(logger logging.Logger) *Composer {
	return &Composer{logger: logger}
}

// Compose builds the device configuration. Every input, output and
// parameter is bound to a value in image, keyed "<submodule>.<name>".
func (c *Composer) Compose(desc *types.DeviceDescription, image *ProcessImage) (*device.Device, error) {
	d := device.NewDevice()
	if err := applyIdentity(&d.Properties, desc.Identity); err != nil {
		return nil, err
	}

	c.logger.Info("Composing device",
		zap.String("station_name", d.Properties.StationName),
		zap.Int("modules", len(desc.Modules)))

	for _, md := range desc.Modules {
		var m *device.Module
		if md.FixedSlot != nil {
			m = d.Modules.CreateFixed(md.ID, *md.FixedSlot)
		} else {
			m = d.Modules.Create(md.ID, md.AllowedSlots...)
		}
		if m == nil {
			return nil, fmt.Errorf("%w: %#x", device.ErrDuplicateModule, md.ID)
		}
		setIfNotEmpty(&m.Properties.Name, md.Name)
		setIfNotEmpty(&m.Properties.InfoText, md.InfoText)

		name, id := m.Properties.Name, md.ID
		m.InitCallback = func(slot uint16) any {
			c.logger.Info("Module initialized",
				zap.String("module", name),
				zap.Uint32("module_id", id),
				zap.Uint16("slot", slot))
			return slot
		}

		for _, sd := range md.Submodules {
			if err := c.composeSubmodule(m, sd, image); err != nil {
				return nil, fmt.Errorf("module %#x: %w", md.ID, err)
			}
		}
	}

	c.logger.Info("Device composition complete",
		zap.String("station_name", d.Properties.StationName),
		zap.Int("modules", d.Modules.Len()))

	return d, nil
}

func (c *Composer) composeSubmodule(m *device.Module, sd types.SubmoduleDefinition, image *ProcessImage) error {
	sub := m.Submodules.Create(sd.ID)
	if sub == nil {
		return fmt.Errorf("%w: %#x", device.ErrDuplicateSubmodule, sd.ID)
	}
	setIfNotEmpty(&sub.Properties.Name, sd.Name)
	setIfNotEmpty(&sub.Properties.InfoText, sd.InfoText)

	scope := sd.Name
	if scope == "" {
		scope = fmt.Sprintf("%#x", sd.ID)
	}
	b := &binding{sub: sub, image: image, scope: scope, known: make(map[string]bool)}

	for _, def := range sd.Inputs {
		bd, err := binderFor(def.Type)
		if err != nil {
			return err
		}
		if err := bd.input(b, def); err != nil {
			return fmt.Errorf("submodule %#x input %s: %w", sd.ID, def.Name, err)
		}
		b.known[def.Name] = true
	}
	for _, def := range sd.Parameters {
		bd, err := binderFor(def.Type)
		if err != nil {
			return err
		}
		if err := bd.parameter(b, def); err != nil {
			return fmt.Errorf("submodule %#x parameter %s: %w", sd.ID, def.Name, err)
		}
		b.known[def.Name] = true
	}
	for _, def := range sd.Outputs {
		for _, ref := range []string{def.Mirror, def.ScaleBy} {
			if ref != "" && !b.known[ref] {
				return fmt.Errorf("submodule %#x output %s: %w: %s", sd.ID, def.Name, ErrUnknownReference, ref)
			}
		}
		bd, err := binderFor(def.Type)
		if err != nil {
			return err
		}
		if err := bd.output(b, def); err != nil {
			return fmt.Errorf("submodule %#x output %s: %w", sd.ID, def.Name, err)
		}
		b.known[def.Name] = true
	}

	if len(sd.Inputs) > 0 {
		sub.Inputs.SetAllUpdatedCallback(image.markUpdated)
	}
	return nil
}

type binding struct {
	sub   *device.Submodule
	image *ProcessImage
	scope string
	known map[string]bool
}

func (b *binding) key(name string) string {
	return b.scope + "." + name
}

type binder struct {
	input     func(b *binding, def types.InputDefinition) error
	output    func(b *binding, def types.OutputDefinition) error
	parameter func(b *binding, def types.ParameterDefinition) error
}

var binders = map[types.DataType]binder{
	types.DataTypeUnsigned8:     numberBinder[uint8](),
	types.DataTypeUnsigned16:    numberBinder[uint16](),
	types.DataTypeUnsigned32:    numberBinder[uint32](),
	types.DataTypeUnsigned64:    numberBinder[uint64](),
	types.DataTypeInteger8:      numberBinder[int8](),
	types.DataTypeInteger16:     numberBinder[int16](),
	types.DataTypeInteger32:     numberBinder[int32](),
	types.DataTypeInteger64:     numberBinder[int64](),
	types.DataTypeFloat32:       numberBinder[float32](),
	types.DataTypeFloat64:       numberBinder[float64](),
	types.DataTypeOctetString:   stringBinder(types.DataTypeOctetString),
	types.DataTypeVisibleString: stringBinder(types.DataTypeVisibleString),
}

func binderFor(t types.DataType) (binder, error) {
	bd, ok := binders[t]
	if !ok {
		return binder{}, fmt.Errorf("%w: data type %q", ErrInvalidValue, t)
	}
	return bd, nil
}

func numberBinder[T marshal.Number]() binder {
	return binder{
		input: func(b *binding, def types.InputDefinition) error {
			length := lengthOr[T](def.Length)
			safe, err := parseNumber[T](def.Default)
			if err != nil {
				return err
			}
			key := b.key(def.Name)
			b.image.Set(key, safe)

			in, err := device.CreateSizedInput(&b.sub.Inputs, length, func(v T) { b.image.Set(key, v) })
			if err != nil {
				return err
			}
			in.Properties.Description = def.Description
			if def.Default == "" {
				return nil
			}
			buf := make([]byte, length)
			if err := marshal.ToBigEndian(safe, buf, length); err != nil {
				return err
			}
			return in.SetSafeValue(buf)
		},
		output: func(b *binding, def types.OutputDefinition) error {
			length := lengthOr[T](def.Length)
			initial, err := parseNumber[T](def.Value)
			if err != nil {
				return err
			}
			key := b.key(def.Name)
			b.image.Set(key, initial)

			get := func() T { return numberAs[T](b.image.number(key)) }
			if def.Mirror != "" {
				src := b.key(def.Mirror)
				scale := ""
				if def.ScaleBy != "" {
					scale = b.key(def.ScaleBy)
				}
				get = func() T {
					v := numberAs[T](b.image.number(src))
					if scale != "" {
						v *= numberAs[T](b.image.number(scale))
					}
					b.image.Set(key, v)
					return v
				}
			}

			out, err := device.CreateSizedOutput(&b.sub.Outputs, length, get)
			if err != nil {
				return err
			}
			out.Properties.Description = def.Description
			return nil
		},
		parameter: func(b *binding, def types.ParameterDefinition) error {
			length := lengthOr[T](def.Length)
			initial, err := parseNumber[T](def.Default)
			if err != nil {
				return err
			}
			key := b.key(def.Name)
			b.image.Set(key, initial)

			param, err := device.CreateSizedParameter(&b.sub.Parameters, def.Index, length,
				func(v T) { b.image.Set(key, v) },
				func() T { return numberAs[T](b.image.number(key)) },
				initial)
			if err != nil {
				return err
			}
			param.Properties.Name = def.Name
			setIfNotEmpty(&param.Properties.Description, def.Description)
			return nil
		},
	}
}

func stringBinder(dataType types.DataType) binder {
	return binder{
		input: func(b *binding, def types.InputDefinition) error {
			key := b.key(def.Name)
			b.image.Set(key, string(def.Default))

			in, err := device.CreateStringInput(&b.sub.Inputs, def.Length, func(s string) { b.image.Set(key, s) })
			if err != nil {
				return err
			}
			in.Properties.DataType = string(dataType)
			in.Properties.Description = def.Description
			if def.Default == "" {
				return nil
			}
			buf := make([]byte, def.Length)
			if err := marshal.StringToBytes(string(def.Default), buf, def.Length); err != nil {
				return err
			}
			return in.SetSafeValue(buf)
		},
		output: func(b *binding, def types.OutputDefinition) error {
			key := b.key(def.Name)
			b.image.Set(key, string(def.Value))
			src := key
			if def.Mirror != "" {
				src = b.key(def.Mirror)
			}

			out, err := device.CreateStringOutput(&b.sub.Outputs, def.Length, func() string {
				v, _ := b.image.Get(src)
				s := stringOf(v)
				if src != key {
					b.image.Set(key, s)
				}
				return s
			})
			if err != nil {
				return err
			}
			out.Properties.DataType = string(dataType)
			out.Properties.Description = def.Description
			return nil
		},
		parameter: func(b *binding, def types.ParameterDefinition) error {
			key := b.key(def.Name)
			b.image.Set(key, string(def.Default))

			param, err := device.CreateStringParameter(&b.sub.Parameters, def.Index, def.Length,
				func(s string) { b.image.Set(key, s) },
				func() string {
					v, _ := b.image.Get(key)
					return stringOf(v)
				},
				string(def.Default))
			if err != nil {
				return err
			}
			param.Properties.DataType = string(dataType)
			param.Properties.Name = def.Name
			setIfNotEmpty(&param.Properties.Description, def.Description)
			return nil
		},
	}
}

func lengthOr[T marshal.Number](length int) int {
	if length == 0 {
		return marshal.SizeOf[T]()
	}
	return length
}

func parseNumber[T marshal.Number](lit types.Literal) (T, error) {
	s := strings.TrimSpace(string(lit))
	if s == "" {
		return 0, nil
	}
	var zero T
	switch any(zero).(type) {
	case float32, float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, s)
		}
		return T(f), nil
	case int8, int16, int32, int64:
		i, err := strconv.ParseInt(s, 0, marshal.SizeOf[T]()*8)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, s)
		}
		return T(i), nil
	default:
		u, err := strconv.ParseUint(s, 0, marshal.SizeOf[T]()*8)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, s)
		}
		return T(u), nil
	}
}

func stringOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ParseRevision parses revisions like "V0.2.0".
func ParseRevision(s string) (device.Revision, error) {
	if len(s) < 2 {
		return device.Revision{}, fmt.Errorf("%w: revision %q", ErrInvalidValue, s)
	}
	parts := strings.Split(s[1:], ".")
	if len(parts) != 3 {
		return device.Revision{}, fmt.Errorf("%w: revision %q", ErrInvalidValue, s)
	}
	var nums [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return device.Revision{}, fmt.Errorf("%w: revision %q", ErrInvalidValue, s)
		}
		nums[i] = uint8(n)
	}
	return device.Revision{Prefix: s[0], Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func applyIdentity(p *device.DeviceProperties, id types.IdentityDefinition) error {
	setIfNotEmpty(&p.StationName, id.StationName)
	setIfNotEmpty(&p.VendorName, id.VendorName)
	setIfNotEmpty(&p.DeviceName, id.DeviceName)
	setIfNotEmpty(&p.DeviceInfoText, id.InfoText)
	setIfNotEmpty(&p.ProductName, id.ProductName)
	setIfNotEmpty(&p.DeviceProductFamily, id.ProductFamily)
	setIfNotEmpty(&p.OrderID, id.OrderID)
	setIfNotEmpty(&p.SerialNumber, id.SerialNumber)
	setIfNotEmpty(&p.TagFunction, id.TagFunction)
	setIfNotEmpty(&p.TagLocation, id.TagLocation)
	setIfNotEmpty(&p.Descriptor, id.Descriptor)

	if id.VendorID != 0 {
		p.VendorID = id.VendorID
	}
	if id.DeviceID != 0 {
		p.DeviceID = id.DeviceID
	}
	if id.HardwareRevision != 0 {
		p.IMHardwareRevision = id.HardwareRevision
	}
	if id.NumSlots != 0 {
		p.NumSlots = id.NumSlots
	}
	if id.MinDeviceInterval != 0 {
		p.MinDeviceInterval = id.MinDeviceInterval
	}
	if id.SoftwareRevision != "" {
		rev, err := ParseRevision(id.SoftwareRevision)
		if err != nil {
			return err
		}
		p.SoftwareRevision = rev
	}
	return nil
}
