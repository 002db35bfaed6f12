package camera

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/target"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/uniform"
	"github.com/chewxy/math32"
)

// cameraCount is an atomic counter used to generate unique labels for each camera instance.
var cameraCount atomic.Uint64

type cameraImpl struct {
	mu *sync.Mutex

	label       string
	position    common.Vec3
	orientation common.Mat3

	width  uint32
	height uint32
	aspect float32
	fovY   float32
	near   float32
	far    float32

	dirty   bool
	uniform *uniform.Uniform[GPUCameraUniform]
	target  target.RenderTarget
}

// Camera is a perspective viewpoint with an orthonormal orientation whose columns are the
// right, up and forward axes. The camera looks along -forward. It owns its uniform and the
// offscreen render target the scene draws into.
type Camera interface {
	// Label returns the camera's debug label.
	Label() string

	// Position returns the world-space eye position.
	Position() common.Vec3

	// Orientation returns the column-major (right, up, forward) rotation.
	Orientation() common.Mat3

	// Aspect returns width / height.
	Aspect() float32

	// FovY returns the vertical field of view in radians.
	FovY() float32

	// DepthRange returns the near and far plane distances.
	DepthRange() (near, far float32)

	// Size returns the attachment size in pixels.
	Size() (uint32, uint32)

	// Target returns the offscreen color and depth attachments.
	Target() target.RenderTarget

	// Uniform returns the camera uniform holder.
	Uniform() *uniform.Uniform[GPUCameraUniform]

	// BindGroup returns the bind group exposing the camera uniform at binding 0.
	BindGroup() backend.BindGroup

	// Layout returns the camera bind group layout.
	Layout() backend.BindGroupLayout

	// Dirty reports whether the uniform needs recomputing.
	Dirty() bool

	// WorldTransform returns the rigid transform placing the camera in the world.
	WorldTransform() common.Mat4

	// View returns the inverse of WorldTransform.
	View() common.Mat4

	// Projection returns the depth-remapped perspective projection.
	Projection() common.Mat4

	// LookAt places the camera at position facing target.
	//
	// Parameters:
	//   - position: the eye position
	//   - target: the point to face
	//   - up: the approximate up direction
	LookAt(position, target, up common.Vec3)

	// SetPosition moves the eye without changing the orientation.
	SetPosition(position common.Vec3)

	// LocalTranslate moves the eye by v expressed in camera space.
	LocalTranslate(v common.Vec3)

	// RotateBy yaws about the world up axis and pitches about the camera's right axis.
	//
	// Parameters:
	//   - yaw: radians about world up
	//   - pitch: radians about the local right axis
	RotateBy(yaw, pitch float32)

	// SetFovY sets the vertical field of view; the camera is dirtied only on a change
	// greater than common.Epsilon.
	SetFovY(fovY float32)

	// SetDepthRange sets the near and far planes with the same change rule as SetFovY.
	SetDepthRange(near, far float32)

	// Resize updates the aspect ratio and recreates the render target attachments.
	//
	// Parameters:
	//   - width, height: the new size
	//
	// Returns:
	//   - error: an error if the size is zero or allocation failed
	Resize(width, height uint32) error

	// Update recomputes and uploads the uniform when dirty.
	//
	// Parameters:
	//   - queue: the queue to write through
	//
	// Returns:
	//   - error: the write error
	Update(queue backend.Queue) error

	// Release frees the uniform and the render target.
	Release()
}

var _ Camera = &cameraImpl{}

// NewCamera creates a Camera at the origin with identity orientation and attachments sized
// to the context's surface.
//
// Parameters:
//   - ctx: the GPU context
//   - fovY: vertical field of view in radians
//   - near, far: the depth range
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
//   - error: an allocation error
func NewCamera(ctx renderer.Context, fovY, near, far float32, options ...CameraBuilderOption) (Camera, error) {
	width, height := ctx.Size()
	c := &cameraImpl{
		mu:          &sync.Mutex{},
		label:       fmt.Sprintf("Camera %d", cameraCount.Add(1)),
		orientation: common.Identity3(),
		width:       width,
		height:      height,
		aspect:      float32(width) / float32(max(height, 1)),
		fovY:        fovY,
		near:        near,
		far:         far,
		dirty:       true,
	}
	for _, option := range options {
		option(c)
	}

	u, err := uniform.New[GPUCameraUniform](ctx.Device(), c.label+" Uniform")
	if err != nil {
		return nil, fmt.Errorf("camera %q: %w", c.label, err)
	}
	rt, err := target.New(ctx.Device(), c.label, width, height)
	if err != nil {
		u.Release()
		return nil, fmt.Errorf("camera %q: %w", c.label, err)
	}
	c.uniform = u
	c.target = rt
	return c, nil
}

func (c *cameraImpl) Label() string { return c.label }

func (c *cameraImpl) Position() common.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Orientation() common.Mat3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orientation
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) FovY() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fovY
}

func (c *cameraImpl) DepthRange() (float32, float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near, c.far
}

func (c *cameraImpl) Size() (uint32, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *cameraImpl) Target() target.RenderTarget                { return c.target }
func (c *cameraImpl) Uniform() *uniform.Uniform[GPUCameraUniform] { return c.uniform }
func (c *cameraImpl) BindGroup() backend.BindGroup                { return c.uniform.BindGroup() }
func (c *cameraImpl) Layout() backend.BindGroupLayout             { return c.uniform.Layout() }

func (c *cameraImpl) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

func (c *cameraImpl) WorldTransform() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.RigidTransform(c.orientation, c.position)
}

func (c *cameraImpl) View() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *cameraImpl) Projection() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionLocked()
}

func (c *cameraImpl) LookAt(position, target, up common.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	forward := target.Sub(position).Neg().Normalize()
	right := up.Cross(forward).Normalize()
	trueUp := forward.Cross(right).Normalize()
	c.orientation = common.Mat3FromColumns(right, trueUp, forward)
	c.position = position
	c.dirty = true
}

func (c *cameraImpl) SetPosition(position common.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = position
	c.dirty = true
}

func (c *cameraImpl) LocalTranslate(v common.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = c.position.Add(c.orientation.MulVec(v))
	c.dirty = true
}

func (c *cameraImpl) RotateBy(yaw, pitch float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	right := c.orientation.Col(0).Normalize()
	yawRotation := common.AxisAngle3(common.WorldUp, yaw)
	pitchRotation := common.AxisAngle3(right, pitch)
	c.orientation = yawRotation.Mul(pitchRotation).Mul(c.orientation).Orthonormalize()
	c.dirty = true
}

func (c *cameraImpl) SetFovY(fovY float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if common.ApproxEqual(c.fovY, fovY) {
		return
	}
	c.fovY = fovY
	c.dirty = true
}

func (c *cameraImpl) SetDepthRange(near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if common.ApproxEqual(c.near, near) && common.ApproxEqual(c.far, far) {
		return
	}
	c.near, c.far = near, far
	c.dirty = true
}

func (c *cameraImpl) Resize(width, height uint32) error {
	if err := c.target.Resize(width, height); err != nil {
		return fmt.Errorf("camera %q: %w", c.label, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width, c.height = width, height
	c.aspect = float32(width) / float32(height)
	c.dirty = true
	return nil
}

func (c *cameraImpl) Update(queue backend.Queue) error {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	data := GPUCameraUniform{
		ViewPosition: c.position.Vec4(1),
		ViewProj:     c.projectionLocked().Mul(c.viewLocked()),
	}
	c.dirty = false
	c.mu.Unlock()

	c.uniform.Set(data)
	if _, err := c.uniform.Write(queue); err != nil {
		c.mu.Lock()
		c.dirty = true
		c.mu.Unlock()
		return fmt.Errorf("camera %q: %w", c.label, err)
	}
	return nil
}

func (c *cameraImpl) Release() {
	c.target.Release()
	c.uniform.Release()
}

// viewLocked returns the inverse of the world transform. Caller must hold the mutex.
func (c *cameraImpl) viewLocked() common.Mat4 {
	world := common.RigidTransform(c.orientation, c.position)
	view, ok := world.Inverse()
	if !ok {
		return common.Identity4()
	}
	return view
}

// projectionLocked returns DepthRemap · perspective. Caller must hold the mutex.
func (c *cameraImpl) projectionLocked() common.Mat4 {
	aspect := c.aspect
	if math32.IsNaN(aspect) || aspect <= 0 {
		aspect = 1
	}
	return common.DepthRemap.Mul(common.Perspective(c.fovY, aspect, c.near, c.far))
}
