package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-forward/common"
)

const (
	defaultSpeed       float32 = 4.0
	defaultSensitivity float32 = 0.4
	shiftMultiplier    float32 = 3.0
	zoomPerLine        float32 = 20.0
	zoomLimit          float32 = 100.0
	baseFovDegrees     float32 = 45.0
	zoomFovDegrees     float32 = 30.0
)

type cameraController struct {
	mu *sync.Mutex

	speed       float32
	sensitivity float32

	horizontal float32
	forward    float32
	vertical   float32
	yaw        float32
	pitch      float32
	shift      bool
	mouseYaw   float32
	mousePitch float32
	zoom       float32
}

// CameraController turns keyboard, mouse and scroll input into camera motion. Input is
// recorded as it arrives and applied once per frame by ApplyTo.
type CameraController interface {
	// ProcessKey records a key press or release.
	//
	// Parameters:
	//   - key: a common.Key* code
	//   - pressed: true on press, false on release
	//
	// Returns:
	//   - bool: true when the key is bound to a camera motion
	ProcessKey(key int, pressed bool) bool

	// ProcessMouse accumulates a mouse motion delta in pixels, consumed by the next ApplyTo.
	ProcessMouse(dx, dy float32)

	// ProcessScroll adds lines of scroll to the zoom, clamped to [-100, 100].
	ProcessScroll(lines float32)

	// ApplyTo moves and rotates camera for a frame of dt seconds and applies the zoom as
	// field of view.
	ApplyTo(camera Camera, dt float32)

	// Speed returns the translation speed in units per second.
	Speed() float32

	// Sensitivity returns the rotation sensitivity.
	Sensitivity() float32

	// Zoom returns the current zoom in [-100, 100].
	Zoom() float32

	// FovY returns the field of view the current zoom maps to, in radians.
	FovY() float32

	// SetSpeed sets the translation speed.
	SetSpeed(speed float32)

	// SetSensitivity sets the rotation sensitivity.
	SetSensitivity(sensitivity float32)
}

var _ CameraController = &cameraController{}

// NewCameraController creates a CameraController with speed 4 and sensitivity 0.4.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the controller
func NewCameraController(options ...CameraControllerBuilderOption) CameraController {
	c := &cameraController{
		mu:          &sync.Mutex{},
		speed:       defaultSpeed,
		sensitivity: defaultSensitivity,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *cameraController) ProcessKey(key int, pressed bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var amount float32
	if pressed {
		amount = 1
	}
	switch key {
	case common.KeyW:
		c.forward = amount
	case common.KeyS:
		c.forward = -amount
	case common.KeyA:
		c.horizontal = -amount
	case common.KeyD:
		c.horizontal = amount
	case common.KeyE:
		c.vertical = amount
	case common.KeyQ:
		c.vertical = -amount
	case common.KeyUp:
		c.pitch = amount
	case common.KeyDown:
		c.pitch = -amount
	case common.KeyLeft:
		c.yaw = amount
	case common.KeyRight:
		c.yaw = -amount
	case common.KeyLeftShift:
		c.shift = pressed
	default:
		return false
	}
	return true
}

func (c *cameraController) ProcessMouse(dx, dy float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mouseYaw += dx
	c.mousePitch += dy
}

func (c *cameraController) ProcessScroll(lines float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom = common.Clamp(c.zoom+lines*zoomPerLine, -zoomLimit, zoomLimit)
}

func (c *cameraController) ApplyTo(camera Camera, dt float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	linear := c.speed * dt
	if c.shift {
		linear *= shiftMultiplier
	}
	translation := common.Vec3{c.horizontal * linear, c.vertical * linear, -c.forward * linear}
	if translation.LengthSquared() > common.Epsilon {
		camera.LocalTranslate(translation)
	}

	if c.mouseYaw != 0 || c.mousePitch != 0 {
		angular := c.sensitivity * dt
		camera.RotateBy(-c.mouseYaw*angular, -c.mousePitch*angular)
	}
	if c.yaw != 0 || c.pitch != 0 {
		angular := c.speed * c.sensitivity * dt
		camera.RotateBy(c.yaw*angular, c.pitch*angular)
	}
	c.mouseYaw, c.mousePitch = 0, 0

	camera.SetFovY(c.fovYLocked())
}

func (c *cameraController) Speed() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

func (c *cameraController) Sensitivity() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sensitivity
}

func (c *cameraController) Zoom() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

func (c *cameraController) FovY() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fovYLocked()
}

func (c *cameraController) SetSpeed(speed float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = speed
}

func (c *cameraController) SetSensitivity(sensitivity float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sensitivity = sensitivity
}

func (c *cameraController) fovYLocked() float32 {
	return common.Radians(baseFovDegrees + (c.zoom/zoomLimit)*zoomFovDegrees)
}
