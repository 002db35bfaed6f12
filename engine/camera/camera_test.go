package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCamera(t *testing.T, options ...CameraBuilderOption) (Camera, *backendtest.Device) {
	t.Helper()
	device := backendtest.NewDevice()
	ctx, err := renderer.New(backendtest.NewSurface(), device, 800, 600)
	require.NoError(t, err)
	c, err := NewCamera(ctx, common.Radians(45), 0.1, 100, options...)
	require.NoError(t, err)
	return c, device
}

func assertOrthonormal(t *testing.T, m common.Mat3) {
	t.Helper()
	for i := range 3 {
		assert.InDelta(t, 1, m.Col(i).Length(), 1e-4, "column %d length", i)
		for j := i + 1; j < 3; j++ {
			assert.InDelta(t, 0, m.Col(i).Dot(m.Col(j)), 1e-4, "columns %d,%d", i, j)
		}
	}
}

func TestNewCameraDefaults(t *testing.T) {
	c, device := newTestCamera(t, WithLabel("Main"))

	assert.Equal(t, "Main", c.Label())
	assert.Equal(t, common.Identity3(), c.Orientation())
	assert.Equal(t, common.Vec3{}, c.Position())
	assert.InDelta(t, 800.0/600.0, c.Aspect(), 1e-6)
	assert.True(t, c.Dirty())

	require.NotNil(t, device.BufferByLabel("Main Uniform"))
	assert.Equal(t, uint64(80), device.BufferByLabel("Main Uniform").Desc.Size)
	assert.NotNil(t, device.TextureByLabel("Main Color"))
	assert.NotNil(t, device.TextureByLabel("Main Depth"))
}

func TestLookAtOrientation(t *testing.T) {
	c, _ := newTestCamera(t)
	c.LookAt(common.Vec3{0, 5, 10}, common.Vec3{}, common.WorldUp)

	o := c.Orientation()
	assertOrthonormal(t, o)
	want := common.Vec3{0, 5, 10}.Normalize()
	assert.True(t, common.ApproxEqual3(want, o.Col(2)), "forward %v", o.Col(2))
	assert.Equal(t, common.Vec3{0, 5, 10}, c.Position())
}

func TestOrientationStaysOrthonormal(t *testing.T) {
	c, _ := newTestCamera(t)
	c.LookAt(common.Vec3{3, 2, 1}, common.Vec3{0, 0, -4}, common.WorldUp)
	for i := range 500 {
		c.RotateBy(0.013*float32(i%7), -0.021*float32(i%5))
		assertOrthonormal(t, c.Orientation())
	}
}

func TestViewInvertsWorldTransform(t *testing.T) {
	c, _ := newTestCamera(t)
	c.LookAt(common.Vec3{4, -2, 7}, common.Vec3{1, 1, 1}, common.WorldUp)
	c.RotateBy(0.3, -0.2)
	c.LocalTranslate(common.Vec3{1, 2, 3})

	product := c.View().Mul(c.WorldTransform())
	identity := common.Identity4()
	for i := range 16 {
		assert.InDelta(t, identity[i], product[i], 1e-4, "element %d", i)
	}
}

func TestLocalTranslateUsesOrientation(t *testing.T) {
	c, _ := newTestCamera(t)
	c.RotateBy(common.Radians(90), 0)
	c.LocalTranslate(common.Vec3{0, 0, -1})
	assert.True(t, common.ApproxEqual3(common.Vec3{-1, 0, 0}, c.Position()), "got %v", c.Position())
}

func TestSetFovYAndDepthRangeEpsilon(t *testing.T) {
	c, device := newTestCamera(t)
	require.NoError(t, c.Update(device.Queue()))
	require.False(t, c.Dirty())

	c.SetFovY(c.FovY() + 1e-5)
	assert.False(t, c.Dirty())
	c.SetFovY(c.FovY() + 0.1)
	assert.True(t, c.Dirty())

	require.NoError(t, c.Update(device.Queue()))
	c.SetDepthRange(0.1, 100)
	assert.False(t, c.Dirty())
	c.SetDepthRange(0.5, 100)
	assert.True(t, c.Dirty())
	near, far := c.DepthRange()
	assert.Equal(t, float32(0.5), near)
	assert.Equal(t, float32(100), far)
}

func TestUpdateWritesOnce(t *testing.T) {
	c, device := newTestCamera(t, WithLabel("Cam"))
	queue := device.RecordingQueue()

	require.NoError(t, c.Update(queue))
	require.NoError(t, c.Update(queue))
	writes := queue.WritesTo("Cam Uniform")
	require.Len(t, writes, 1)
	assert.Len(t, writes[0].Data, 80)

	got := c.Uniform().Get()
	assert.Equal(t, [4]float32{0, 0, 0, 1}, got.ViewPosition)
	assert.Equal(t, [16]float32(c.Projection().Mul(c.View())), got.ViewProj)
}

func TestUpdateFailureKeepsDirty(t *testing.T) {
	c, device := newTestCamera(t)
	device.RecordingQueue().FailWrites = true
	assert.Error(t, c.Update(device.Queue()))
	assert.True(t, c.Dirty())
}

func TestResizeRecreatesAttachments(t *testing.T) {
	c, device := newTestCamera(t, WithLabel("Cam"))
	queue := device.RecordingQueue()
	require.NoError(t, c.Update(queue))
	oldDepth := device.TextureByLabel("Cam Depth")

	require.NoError(t, c.Resize(1024, 768))
	assert.InDelta(t, 1024.0/768.0, c.Aspect(), 1e-6)
	assert.True(t, c.Dirty())
	assert.True(t, oldDepth.Released)
	assert.Equal(t, uint32(1024), device.TextureByLabel("Cam Color").Desc.Width)
	assert.Equal(t, uint32(768), device.TextureByLabel("Cam Depth").Desc.Height)

	queue.Reset()
	require.NoError(t, c.Update(queue))
	require.NoError(t, c.Update(queue))
	assert.Len(t, queue.WritesTo("Cam Uniform"), 1)

	assert.Error(t, c.Resize(0, 0))
}

func TestProjectionDepthRange(t *testing.T) {
	c, _ := newTestCamera(t)
	p := c.Projection()
	near := p.MulVec(common.Vec4{0, 0, -0.1, 1})
	far := p.MulVec(common.Vec4{0, 0, -100, 1})
	assert.InDelta(t, 0, near[2]/near[3], 1e-4)
	assert.InDelta(t, 1, far[2]/far[3], 1e-4)
}

func TestUniformMatchesShaderLayout(t *testing.T) {
	r := shader.Reflect(GPUCameraUniformSource)
	assert.Equal(t, uint64(GPUCameraUniform{}.Size()), r.StructSizes["CameraUniform"])
}
