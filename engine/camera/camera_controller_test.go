package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/stretchr/testify/assert"
)

func TestProcessKeyBindings(t *testing.T) {
	c := NewCameraController()
	for _, key := range []int{common.KeyW, common.KeyA, common.KeyS, common.KeyD, common.KeyQ, common.KeyE,
		common.KeyUp, common.KeyDown, common.KeyLeft, common.KeyRight, common.KeyLeftShift} {
		assert.True(t, c.ProcessKey(key, true), "key %d", key)
	}
	assert.False(t, c.ProcessKey(common.KeySpace, true))
}

func TestForwardMotion(t *testing.T) {
	cam, _ := newTestCamera(t)
	c := NewCameraController()
	c.ProcessKey(common.KeyW, true)
	c.ApplyTo(cam, 0.5)
	assert.True(t, common.ApproxEqual3(common.Vec3{0, 0, -2}, cam.Position()), "got %v", cam.Position())

	c.ProcessKey(common.KeyW, false)
	c.ProcessKey(common.KeyLeftShift, true)
	c.ProcessKey(common.KeyD, true)
	c.ApplyTo(cam, 0.5)
	assert.True(t, common.ApproxEqual3(common.Vec3{6, 0, -2}, cam.Position()), "got %v", cam.Position())
}

func TestTinyTranslationIgnored(t *testing.T) {
	cam, _ := newTestCamera(t)
	c := NewCameraController(WithSpeed(1))
	c.ProcessKey(common.KeyE, true)
	c.ApplyTo(cam, 0.001)
	assert.Equal(t, common.Vec3{}, cam.Position())
}

func TestMouseDeltaConsumedOnce(t *testing.T) {
	cam, _ := newTestCamera(t)
	c := NewCameraController(WithSensitivity(1))
	c.ProcessMouse(10, 0)
	c.ProcessMouse(10, 0)
	c.ApplyTo(cam, 0.01)
	first := cam.Orientation()
	assert.NotEqual(t, common.Identity3(), first)

	c.ApplyTo(cam, 0.01)
	assert.Equal(t, first, cam.Orientation())
}

func TestScrollZoomMapsToFov(t *testing.T) {
	c := NewCameraController()
	assert.InDelta(t, common.Radians(45), c.FovY(), 1e-6)

	c.ProcessScroll(2)
	assert.Equal(t, float32(40), c.Zoom())
	assert.InDelta(t, common.Radians(57), c.FovY(), 1e-5)

	c.ProcessScroll(-50)
	assert.Equal(t, float32(-100), c.Zoom())
	assert.InDelta(t, common.Radians(15), c.FovY(), 1e-5)

	cam, _ := newTestCamera(t)
	c.ApplyTo(cam, 0.016)
	assert.InDelta(t, common.Radians(15), cam.FovY(), 1e-5)
}

func TestControllerDefaults(t *testing.T) {
	c := NewCameraController()
	assert.Equal(t, float32(4), c.Speed())
	assert.Equal(t, float32(0.4), c.Sensitivity())
	c.SetSpeed(2)
	c.SetSensitivity(1)
	assert.Equal(t, float32(2), c.Speed())
	assert.Equal(t, float32(1), c.Sensitivity())
	assert.Equal(t, float32(100), NewCameraController(WithZoom(250)).Zoom())
}
