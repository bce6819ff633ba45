package device

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/KevinKickass/OpenProfinetDevice/internal/marshal"
)

// SetFunc receives exactly the declared number of bytes.
type SetFunc func(data []byte) bool

// GetFunc fills exactly the declared number of bytes.
type GetFunc func(buf []byte) bool

// Input carries data written by the controller into the device.
type Input struct {
	Properties InputProperties

	length int
	set    SetFunc
	safe   []byte
}

func (i *Input) Length() int { return i.length }

// Set forwards the first Length bytes of data to the application.
func (i *Input) Set(data []byte) bool {
	if len(data) < i.length {
		return false
	}
	if i.set == nil {
		return true
	}
	return i.set(data[:i.length])
}

// SetDefault drives the input to its safe value, all zero unless
// configured otherwise.
func (i *Input) SetDefault() bool {
	safe := i.safe
	if safe == nil {
		safe = make([]byte, i.length)
	}
	return i.Set(safe)
}

// SetSafeValue replaces the encoded safe value used by SetDefault.
func (i *Input) SetSafeValue(data []byte) error {
	if len(data) != i.length {
		return fmt.Errorf("%w: safe value has %d bytes, input has %d", marshal.ErrLengthMismatch, len(data), i.length)
	}
	i.safe = slices.Clone(data)
	return nil
}

type Inputs struct {
	list       []*Input
	allUpdated func()
}

// Create appends an input of length bytes. It returns nil for a
// non-positive length.
func (in *Inputs) Create(set SetFunc, length int) *Input {
	if length <= 0 {
		return nil
	}
	input := &Input{length: length, set: set, Properties: InputProperties{DataType: marshal.OctetStringType}}
	in.list = append(in.list, input)
	return input
}

func (in *Inputs) All() []*Input { return in.list }

func (in *Inputs) Len() int { return len(in.list) }

func (in *Inputs) LengthInBytes() int {
	total := 0
	for _, input := range in.list {
		total += input.length
	}
	return total
}

// SetAllUpdatedCallback registers fn to run after every complete input
// update of the submodule.
func (in *Inputs) SetAllUpdatedCallback(fn func()) { in.allUpdated = fn }

func (in *Inputs) AllUpdatedCallback() func() { return in.allUpdated }

// Output carries data the device sends to the controller.
type Output struct {
	Properties OutputProperties

	length int
	get    GetFunc
}

func (o *Output) Length() int { return o.length }

// Get fills the first Length bytes of buf. Without a callback the bytes are
// zeroed and the call fails.
func (o *Output) Get(buf []byte) bool {
	if len(buf) < o.length {
		return false
	}
	if o.get == nil {
		clear(buf[:o.length])
		return false
	}
	return o.get(buf[:o.length])
}

type Outputs struct {
	list []*Output
}

func (out *Outputs) Create(get GetFunc, length int) *Output {
	if length <= 0 {
		return nil
	}
	output := &Output{length: length, get: get, Properties: OutputProperties{DataType: marshal.OctetStringType}}
	out.list = append(out.list, output)
	return output
}

func (out *Outputs) All() []*Output { return out.list }

func (out *Outputs) Len() int { return len(out.list) }

func (out *Outputs) LengthInBytes() int {
	total := 0
	for _, output := range out.list {
		total += output.length
	}
	return total
}

// Parameter is an acyclic record addressed by its index.
type Parameter struct {
	Properties ParameterProperties

	index        uint16
	length       int
	set          SetFunc
	get          GetFunc
	defaultValue []byte
}

func (p *Parameter) Index() uint16 { return p.index }

func (p *Parameter) Length() int { return p.length }

func (p *Parameter) Set(data []byte) bool {
	if len(data) < p.length {
		return false
	}
	if p.set == nil {
		return true
	}
	return p.set(data[:p.length])
}

func (p *Parameter) Get(buf []byte) bool {
	if len(buf) < p.length {
		return false
	}
	if p.get == nil {
		clear(buf[:p.length])
		return false
	}
	return p.get(buf[:p.length])
}

// DefaultData returns the encoded default, or nil if none was declared.
func (p *Parameter) DefaultData() []byte { return p.defaultValue }

type Parameters struct {
	byIndex map[uint16]*Parameter
	order   []uint16
}

// Create adds a parameter at idx. It returns nil when idx is taken or
// length is not positive.
func (p *Parameters) Create(idx uint16, set SetFunc, get GetFunc, length int) *Parameter {
	if length <= 0 {
		return nil
	}
	if p.byIndex == nil {
		p.byIndex = make(map[uint16]*Parameter)
	}
	if _, exists := p.byIndex[idx]; exists {
		return nil
	}
	param := &Parameter{
		Properties: DefaultParameterProperties(),
		index:      idx,
		length:     length,
		set:        set,
		get:        get,
	}
	p.byIndex[idx] = param
	p.order = append(p.order, idx)
	return param
}

func (p *Parameters) Get(idx uint16) *Parameter { return p.byIndex[idx] }

func (p *Parameters) Indexes() []uint16 { return slices.Clone(p.order) }

func (p *Parameters) Len() int { return len(p.order) }

// CreateInput adds an input of the natural width of T.
func CreateInput[T marshal.Number](in *Inputs, set func(T)) (*Input, error) {
	return CreateSizedInput(in, marshal.SizeOf[T](), set)
}

// CreateSizedInput adds an input of T carried in length bytes.
func CreateSizedInput[T marshal.Number](in *Inputs, length int, set func(T)) (*Input, error) {
	if err := marshal.CheckLength[T](length); err != nil {
		return nil, err
	}
	input := in.Create(func(data []byte) bool {
		v, err := marshal.FromBigEndian[T](data, length)
		if err != nil {
			return false
		}
		if set != nil {
			set(v)
		}
		return true
	}, length)
	input.Properties.DataType = marshal.TypeName[T]()
	return input, nil
}

func CreateStringInput(in *Inputs, length int, set func(string)) (*Input, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: string input with length %d", marshal.ErrLengthMismatch, length)
	}
	input := in.Create(func(data []byte) bool {
		s, err := marshal.StringFromBytes(data, length)
		if err != nil {
			return false
		}
		if set != nil {
			set(s)
		}
		return true
	}, length)
	input.Properties.DataType = marshal.VisibleStringType
	input.Properties.Length = strconv.Itoa(length)
	return input, nil
}

func CreateOutput[T marshal.Number](out *Outputs, get func() T) (*Output, error) {
	return CreateSizedOutput(out, marshal.SizeOf[T](), get)
}

func CreateSizedOutput[T marshal.Number](out *Outputs, length int, get func() T) (*Output, error) {
	if err := marshal.CheckLength[T](length); err != nil {
		return nil, err
	}
	var fn GetFunc
	if get != nil {
		fn = func(buf []byte) bool {
			return marshal.ToBigEndian(get(), buf, length) == nil
		}
	}
	output := out.Create(fn, length)
	output.Properties.DataType = marshal.TypeName[T]()
	return output, nil
}

func CreateStringOutput(out *Outputs, length int, get func() string) (*Output, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: string output with length %d", marshal.ErrLengthMismatch, length)
	}
	var fn GetFunc
	if get != nil {
		fn = func(buf []byte) bool {
			return marshal.StringToBytes(get(), buf, length) == nil
		}
	}
	output := out.Create(fn, length)
	output.Properties.DataType = marshal.VisibleStringType
	output.Properties.Length = strconv.Itoa(length)
	return output, nil
}

// CreateParameter adds a parameter of T at idx with the given default.
func CreateParameter[T marshal.Number](params *Parameters, idx uint16, set func(T), get func() T, def T) (*Parameter, error) {
	return CreateSizedParameter(params, idx, marshal.SizeOf[T](), set, get, def)
}

func CreateSizedParameter[T marshal.Number](params *Parameters, idx uint16, length int, set func(T), get func() T, def T) (*Parameter, error) {
	if err := marshal.CheckLength[T](length); err != nil {
		return nil, err
	}
	var setFn SetFunc
	if set != nil {
		setFn = func(data []byte) bool {
			v, err := marshal.FromBigEndian[T](data, length)
			if err != nil {
				return false
			}
			set(v)
			return true
		}
	}
	var getFn GetFunc
	if get != nil {
		getFn = func(buf []byte) bool {
			return marshal.ToBigEndian(get(), buf, length) == nil
		}
	}

	param := params.Create(idx, setFn, getFn, length)
	if param == nil {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateParameter, idx)
	}

	param.defaultValue = make([]byte, length)
	if err := marshal.ToBigEndian(def, param.defaultValue, length); err != nil {
		return nil, err
	}
	param.Properties.DataType = marshal.TypeName[T]()
	param.Properties.DefaultValue = formatNumber(def)
	return param, nil
}

func CreateStringParameter(params *Parameters, idx uint16, length int, set func(string), get func() string, def string) (*Parameter, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: string parameter with length %d", marshal.ErrLengthMismatch, length)
	}
	var setFn SetFunc
	if set != nil {
		setFn = func(data []byte) bool {
			s, err := marshal.StringFromBytes(data, length)
			if err != nil {
				return false
			}
			set(s)
			return true
		}
	}
	var getFn GetFunc
	if get != nil {
		getFn = func(buf []byte) bool {
			return marshal.StringToBytes(get(), buf, length) == nil
		}
	}

	param := params.Create(idx, setFn, getFn, length)
	if param == nil {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateParameter, idx)
	}

	param.defaultValue = make([]byte, length)
	if err := marshal.StringToBytes(def, param.defaultValue, length); err != nil {
		return nil, err
	}
	param.Properties.DataType = marshal.VisibleStringType
	param.Properties.DefaultValue = def
	param.Properties.Length = strconv.Itoa(length)
	return param, nil
}

func formatNumber[T marshal.Number](v T) string {
	switch x := any(v).(type) {
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}
