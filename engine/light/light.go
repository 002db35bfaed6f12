// Package light holds the scene's light sources. Every light is one tagged struct whose
// layout is shared with the shader; the type decides which fields the lit pass reads.
package light

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/uniform"
	"github.com/chewxy/math32"
)

// lightCount is an atomic counter used to generate unique labels for each light instance.
var lightCount atomic.Uint64

// Type identifies the kind of light source. The values are shared with the shader.
type Type int32

const (
	// TypeAmbient contributes only its ambient color, in the ambient pass.
	TypeAmbient Type = iota

	// TypePoint emits in all directions from a position with distance attenuation.
	TypePoint

	// TypeSpot emits in a cone of a given breadth from a position along a direction.
	TypeSpot

	// TypeDirectional lights every fragment from one direction.
	TypeDirectional
)

func (t Type) String() string {
	switch t {
	case TypeAmbient:
		return "ambient"
	case TypePoint:
		return "point"
	case TypeSpot:
		return "spot"
	case TypeDirectional:
		return "directional"
	default:
		return fmt.Sprintf("light(%d)", int32(t))
	}
}

// AmbientDescriptor describes an ambient light. Colors are authored (non-linear) values.
type AmbientDescriptor struct {
	Ambient common.Vec3
}

// PointDescriptor describes a point light.
type PointDescriptor struct {
	Position    common.Vec3
	Ambient     common.Vec3
	Color       common.Vec3
	Constant    float32
	Linear      float32
	Exponential float32
}

// SpotDescriptor describes a spot light. Breadth is the cone half-angle in radians.
type SpotDescriptor struct {
	Position    common.Vec3
	Direction   common.Vec3
	Ambient     common.Vec3
	Color       common.Vec3
	Constant    float32
	Linear      float32
	Exponential float32
	Breadth     float32
}

// DirectionalDescriptor describes a directional light.
type DirectionalDescriptor struct {
	Direction common.Vec3
	Ambient   common.Vec3
	Color     common.Vec3
	Constant  float32
}

type lightImpl struct {
	mu *sync.Mutex

	label       string
	kind        Type
	position    common.Vec3
	direction   common.Vec3
	ambient     common.Vec3
	color       common.Vec3
	attenuation common.Vec4

	dirty   bool
	uniform *uniform.Uniform[GPULightUniform]
}

// Light is a light source with its own uniform. Colors passed to constructors and setters
// are authored values and are linearized (x -> x²); getters return linear values.
type Light interface {
	// Label returns the light's debug label.
	Label() string

	// Type returns the kind of light source.
	Type() Type

	// Position returns the world-space position.
	Position() common.Vec3

	// Direction returns the unit direction.
	Direction() common.Vec3

	// Ambient returns the linear ambient color.
	Ambient() common.Vec3

	// Color returns the linear light color.
	Color() common.Vec3

	// Attenuation returns (constant, linear, exponential, cos(spot breadth)).
	Attenuation() common.Vec4

	// SpotBreadth returns the spot cone half-angle in radians.
	SpotBreadth() float32

	// SetPosition sets the position.
	SetPosition(position common.Vec3)

	// SetDirection normalizes and sets the direction.
	SetDirection(direction common.Vec3)

	// SetAmbient linearizes and sets the ambient color.
	SetAmbient(ambient common.Vec3)

	// SetLinearAmbient sets an already linear ambient color.
	SetLinearAmbient(ambient common.Vec3)

	// SetColor linearizes and sets the light color.
	SetColor(color common.Vec3)

	// SetAttenuation sets the distance coefficients; negative values clamp to zero.
	SetAttenuation(constant, linear, exponential float32)

	// SetSpotBreadth sets the spot cone half-angle in radians.
	SetSpotBreadth(breadth float32)

	// Dirty reports whether the uniform needs uploading.
	Dirty() bool

	// Uniform returns the light uniform holder.
	Uniform() *uniform.Uniform[GPULightUniform]

	// BindGroup returns the bind group exposing the light uniform at binding 0.
	BindGroup() backend.BindGroup

	// Layout returns the light bind group layout.
	Layout() backend.BindGroupLayout

	// Update uploads the uniform when dirty.
	//
	// Parameters:
	//   - queue: the queue to write through
	//
	// Returns:
	//   - error: the write error
	Update(queue backend.Queue) error

	// Release frees the uniform.
	Release()
}

var _ Light = &lightImpl{}

// NewAmbient creates an ambient light with attenuation (1, 0, 0, 0).
//
// Parameters:
//   - device: the device to allocate on
//   - desc: the light description
//   - options: functional options
//
// Returns:
//   - Light: the light
//   - error: an allocation error
func NewAmbient(device backend.Device, desc AmbientDescriptor, options ...LightBuilderOption) (Light, error) {
	l := newLight(TypeAmbient, options)
	l.ambient = common.Color3(desc.Ambient)
	l.attenuation = common.Vec4{1, 0, 0, 0}
	return l.finish(device)
}

// NewPoint creates a point light.
//
// Parameters:
//   - device: the device to allocate on
//   - desc: the light description
//   - options: functional options
//
// Returns:
//   - Light: the light
//   - error: an allocation error
func NewPoint(device backend.Device, desc PointDescriptor, options ...LightBuilderOption) (Light, error) {
	l := newLight(TypePoint, options)
	l.position = desc.Position
	l.ambient = common.Color3(desc.Ambient)
	l.color = common.Color3(desc.Color)
	l.attenuation = clampAttenuation(desc.Constant, desc.Linear, desc.Exponential, 0)
	return l.finish(device)
}

// NewSpot creates a spot light.
//
// Parameters:
//   - device: the device to allocate on
//   - desc: the light description
//   - options: functional options
//
// Returns:
//   - Light: the light
//   - error: an allocation error
func NewSpot(device backend.Device, desc SpotDescriptor, options ...LightBuilderOption) (Light, error) {
	l := newLight(TypeSpot, options)
	l.position = desc.Position
	l.direction = desc.Direction.Normalize()
	l.ambient = common.Color3(desc.Ambient)
	l.color = common.Color3(desc.Color)
	l.attenuation = clampAttenuation(desc.Constant, desc.Linear, desc.Exponential, math32.Cos(desc.Breadth))
	return l.finish(device)
}

// NewDirectional creates a directional light with attenuation (constant, 0, 0, 0).
//
// Parameters:
//   - device: the device to allocate on
//   - desc: the light description
//   - options: functional options
//
// Returns:
//   - Light: the light
//   - error: an allocation error
func NewDirectional(device backend.Device, desc DirectionalDescriptor, options ...LightBuilderOption) (Light, error) {
	l := newLight(TypeDirectional, options)
	l.direction = desc.Direction.Normalize()
	l.ambient = common.Color3(desc.Ambient)
	l.color = common.Color3(desc.Color)
	l.attenuation = clampAttenuation(desc.Constant, 0, 0, 0)
	return l.finish(device)
}

func newLight(kind Type, options []LightBuilderOption) *lightImpl {
	l := &lightImpl{
		mu:    &sync.Mutex{},
		label: fmt.Sprintf("Light %d (%s)", lightCount.Add(1), kind),
		kind:  kind,
		dirty: true,
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *lightImpl) finish(device backend.Device) (Light, error) {
	u, err := uniform.New[GPULightUniform](device, l.label+" Uniform")
	if err != nil {
		return nil, fmt.Errorf("light %q: %w", l.label, err)
	}
	l.uniform = u
	return l, nil
}

func clampAttenuation(constant, linear, exponential, spot float32) common.Vec4 {
	return common.Vec4{
		common.ClampMin(constant, 0),
		common.ClampMin(linear, 0),
		common.ClampMin(exponential, 0),
		spot,
	}
}

func (l *lightImpl) Label() string { return l.label }
func (l *lightImpl) Type() Type    { return l.kind }

func (l *lightImpl) Position() common.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

func (l *lightImpl) Direction() common.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.direction
}

func (l *lightImpl) Ambient() common.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ambient
}

func (l *lightImpl) Color() common.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

func (l *lightImpl) Attenuation() common.Vec4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attenuation
}

func (l *lightImpl) SpotBreadth() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return math32.Acos(common.Clamp(l.attenuation[3], -1, 1))
}

func (l *lightImpl) SetPosition(position common.Vec3) {
	l.setVec3(&l.position, position)
}

func (l *lightImpl) SetDirection(direction common.Vec3) {
	l.setVec3(&l.direction, direction.Normalize())
}

func (l *lightImpl) SetAmbient(ambient common.Vec3) {
	l.setVec3(&l.ambient, common.Color3(ambient))
}

func (l *lightImpl) SetLinearAmbient(ambient common.Vec3) {
	l.setVec3(&l.ambient, ambient)
}

func (l *lightImpl) SetColor(color common.Vec3) {
	l.setVec3(&l.color, common.Color3(color))
}

func (l *lightImpl) SetAttenuation(constant, linear, exponential float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := clampAttenuation(constant, linear, exponential, l.attenuation[3])
	if common.ApproxEqual4(l.attenuation, next) {
		return
	}
	l.attenuation = next
	l.dirty = true
}

func (l *lightImpl) SetSpotBreadth(breadth float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cos := math32.Cos(breadth)
	if common.ApproxEqual(l.attenuation[3], cos) {
		return
	}
	l.attenuation[3] = cos
	l.dirty = true
}

func (l *lightImpl) setVec3(field *common.Vec3, value common.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if common.ApproxEqual3(*field, value) {
		return
	}
	*field = value
	l.dirty = true
}

func (l *lightImpl) Dirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}

func (l *lightImpl) Uniform() *uniform.Uniform[GPULightUniform] { return l.uniform }
func (l *lightImpl) BindGroup() backend.BindGroup                { return l.uniform.BindGroup() }
func (l *lightImpl) Layout() backend.BindGroupLayout             { return l.uniform.Layout() }

func (l *lightImpl) Update(queue backend.Queue) error {
	l.mu.Lock()
	if !l.dirty {
		l.mu.Unlock()
		return nil
	}
	data := GPULightUniform{
		Position:    l.position,
		Direction:   l.direction,
		Ambient:     l.ambient,
		Color:       l.color,
		Attenuation: l.attenuation,
		Kind:        int32(l.kind),
	}
	l.dirty = false
	l.mu.Unlock()

	l.uniform.Set(data)
	if _, err := l.uniform.Write(queue); err != nil {
		l.mu.Lock()
		l.dirty = true
		l.mu.Unlock()
		return fmt.Errorf("light %q: %w", l.label, err)
	}
	return nil
}

func (l *lightImpl) Release() {
	l.uniform.Release()
}
