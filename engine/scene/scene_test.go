package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/camera"
	"github.com/Carmen-Shannon/oxy-forward/engine/light"
	"github.com/Carmen-Shannon/oxy-forward/engine/model"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/compositor"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-forward/shaders"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) (renderer.Context, *backendtest.Device) {
	t.Helper()
	device := backendtest.NewDevice()
	ctx, err := renderer.New(backendtest.NewSurface(), device, 800, 600,
		renderer.WithShaderIncludes(ShaderIncludes()),
	)
	require.NoError(t, err)
	return ctx, device
}

func newTestCamera(t *testing.T, ctx renderer.Context) camera.Camera {
	t.Helper()
	cam, err := camera.NewCamera(ctx, common.Radians(45), 0.1, 100,
		camera.WithLookAt(common.Vec3{0, 2, 5}, common.Vec3{}),
	)
	require.NoError(t, err)
	return cam
}

func newCube(t *testing.T, ctx renderer.Context) model.Model {
	t.Helper()
	device, queue := ctx.Device(), ctx.Queue()
	mat, err := material.New(device, queue, material.WithName("Cube Material"))
	require.NoError(t, err)
	vertices, indices := model.Cube(1)
	mesh, err := model.NewMesh(device, queue, "Cube", vertices, indices, 0)
	require.NoError(t, err)
	m, err := model.New(device, queue, []*model.Mesh{mesh}, []material.Material{mat},
		[]model.Instance{{}}, model.WithName("Cube"))
	require.NoError(t, err)
	return m
}

func newFourLights(t *testing.T, ctx renderer.Context) []light.Light {
	t.Helper()
	device := ctx.Device()
	ambient, err := light.NewAmbient(device, light.AmbientDescriptor{Ambient: common.Vec3{0.05, 0.05, 0.05}})
	require.NoError(t, err)
	point, err := light.NewPoint(device, light.PointDescriptor{
		Position: common.Vec3{2, 2, 2},
		Ambient:  common.Vec3{0.1, 0, 0},
		Color:    common.Vec3{1, 1, 1},
		Constant: 1,
		Linear:   0.1,
	})
	require.NoError(t, err)
	spot, err := light.NewSpot(device, light.SpotDescriptor{
		Position:  common.Vec3{0, 4, 0},
		Direction: common.Vec3{0, -1, 0},
		Ambient:   common.Vec3{0, 0.2, 0},
		Color:     common.Vec3{1, 1, 0},
		Constant:  1,
		Breadth:   common.Radians(30),
	})
	require.NoError(t, err)
	directional, err := light.NewDirectional(device, light.DirectionalDescriptor{
		Direction: common.Vec3{1, 1, 0},
		Color:     common.Vec3{0, 0, 1},
		Constant:  1,
	})
	require.NoError(t, err)
	return []light.Light{ambient, point, spot, directional}
}

func sumAmbient(lights []light.Light) common.Vec3 {
	var sum common.Vec3
	for _, l := range lights {
		a := l.Ambient()
		sum = common.Vec3{sum[0] + a[0], sum[1] + a[1], sum[2] + a[2]}
	}
	return sum
}

func TestNewRequiresCamera(t *testing.T) {
	ctx, _ := newTestContext(t)
	_, err := New(ctx, nil, nil, nil)
	assert.Error(t, err)
}

func TestAggregateAmbientEqualsSum(t *testing.T) {
	ctx, _ := newTestContext(t)
	lights := newFourLights(t, ctx)
	s, err := New(ctx, newTestCamera(t, ctx), lights, nil)
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx.Queue(), 0.016))
	assert.True(t, common.ApproxEqual3(sumAmbient(lights), s.AmbientLight().Ambient()))

	lights[3].SetAmbient(common.Vec3{0.3, 0.3, 0.3})
	require.NoError(t, s.Update(ctx.Queue(), 0.016))
	assert.True(t, common.ApproxEqual3(sumAmbient(lights), s.AmbientLight().Ambient()))
	assert.InDelta(t, 0.032, s.Time(), 1e-6)
}

func TestEmptySceneFrame(t *testing.T) {
	ctx, device := newTestContext(t)
	ambient, err := light.NewAmbient(device, light.AmbientDescriptor{Ambient: common.Vec3{0.05, 0.05, 0.05}})
	require.NoError(t, err)
	cam := newTestCamera(t, ctx)
	s, err := New(ctx, cam, []light.Light{ambient}, nil, WithClearColor(common.Vec4{0.2, 0.3, 0.4, 1}))
	require.NoError(t, err)
	comp, err := compositor.New(ctx, cam.Target())
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx.Queue(), 0.016))
	assert.InDelta(t, 0.0025, s.AmbientLight().Ambient()[0], 1e-6)

	frame, err := ctx.AcquireFrame()
	require.NoError(t, err)
	enc, err := device.CreateCommandEncoder("Frame")
	require.NoError(t, err)
	require.NoError(t, s.Render(ctx, enc))
	require.NoError(t, comp.Render(enc, frame.View()))

	rec := enc.(*backendtest.Encoder)
	require.Len(t, rec.Passes, 2)
	scenePass := rec.Passes[0]
	assert.True(t, scenePass.Ended)
	assert.Empty(t, scenePass.Commands)
	assert.Equal(t, wgpu.LoadOpClear, scenePass.Desc.Color.LoadOp)
	assert.Equal(t, wgpu.StoreOpStore, scenePass.Desc.Color.StoreOp)
	clearValue := scenePass.Desc.Color.ClearValue
	assert.InDelta(t, 0.2, clearValue.R, 1e-6)
	assert.InDelta(t, 0.3, clearValue.G, 1e-6)
	assert.InDelta(t, 0.4, clearValue.B, 1e-6)
	assert.InDelta(t, 1.0, clearValue.A, 1e-6)
	require.NotNil(t, scenePass.Desc.Depth)
	assert.Equal(t, wgpu.LoadOpClear, scenePass.Desc.Depth.LoadOp)
	assert.Equal(t, float32(1), scenePass.Desc.Depth.ClearValue)

	compPass := rec.Passes[1]
	assert.Equal(t, []string{compositor.PipelineID}, compPass.Pipelines())
	assert.Len(t, compPass.Draws(), 1)
}

func TestFourLightsOneMeshPassOrder(t *testing.T) {
	ctx, device := newTestContext(t)
	lights := newFourLights(t, ctx)
	cube := newCube(t, ctx)
	s, err := New(ctx, newTestCamera(t, ctx), lights, []model.Model{cube})
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx.Queue(), 0.016))

	enc, err := device.CreateCommandEncoder("Frame")
	require.NoError(t, err)
	require.NoError(t, s.Render(ctx, enc))

	pass := enc.(*backendtest.Encoder).Passes[0]
	mat := cube.Materials()[0]
	ambientID, litID := mat.PipelineID(pipeline.PassAmbient), mat.PipelineID(pipeline.PassLit)
	assert.Equal(t, []string{ambientID, litID, litID, litID}, pass.Pipelines())
	assert.Len(t, pass.Draws(), 4)

	ambientPipe := device.PipelineByLabel(ambientID)
	litPipe := device.PipelineByLabel(litID)
	require.NotNil(t, ambientPipe)
	require.NotNil(t, litPipe)
	assert.True(t, ambientPipe.Desc.DepthStencil.DepthWriteEnabled)
	assert.Equal(t, pipeline.BlendReplace(), *ambientPipe.Desc.Blend)
	assert.False(t, litPipe.Desc.DepthStencil.DepthWriteEnabled)
	assert.Equal(t, pipeline.BlendFor(pipeline.PassLit), *litPipe.Desc.Blend)

	var lightGroups []any
	for _, c := range pass.Commands {
		if c.Op == backendtest.OpSetBindGroup && c.Args[0] == model.GroupLight {
			lightGroups = append(lightGroups, c.Group)
		}
	}
	require.Len(t, lightGroups, 4)
	assert.Same(t, s.AmbientLight().BindGroup(), lightGroups[0])
	for i, l := range lights[1:] {
		assert.Same(t, l.BindGroup(), lightGroups[i+1])
	}
}

func TestAmbientPipelineBoundBeforeLit(t *testing.T) {
	ctx, device := newTestContext(t)
	lights := newFourLights(t, ctx)
	s, err := New(ctx, newTestCamera(t, ctx), lights, []model.Model{newCube(t, ctx), newCube(t, ctx)})
	require.NoError(t, err)

	enc, err := device.CreateCommandEncoder("Frame")
	require.NoError(t, err)
	require.NoError(t, s.Render(ctx, enc))

	seenLit := false
	for _, id := range enc.(*backendtest.Encoder).Passes[0].Pipelines() {
		pass, ok := ctx.Cache().PassOf(id)
		require.True(t, ok)
		if pass == pipeline.PassLit {
			seenLit = true
			continue
		}
		assert.False(t, seenLit, "ambient pipeline %q bound after a lit pipeline", id)
	}
	assert.True(t, seenLit)
}

func TestResizeForwardsToCamera(t *testing.T) {
	ctx, device := newTestContext(t)
	cam := newTestCamera(t, ctx)
	s, err := New(ctx, cam, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx.Queue(), 0))

	require.NoError(t, s.Resize(1024, 768))
	assert.InDelta(t, 1024.0/768.0, cam.Aspect(), 1e-5)
	assert.True(t, cam.Dirty())

	queue := device.RecordingQueue()
	queue.Reset()
	require.NoError(t, s.Update(queue, 0))
	require.NoError(t, s.Update(queue, 0))
	assert.Len(t, queue.WritesTo(cam.Uniform().Label()), 1)
}

func TestMouseMotionRequiresLeftButton(t *testing.T) {
	ctx, _ := newTestContext(t)
	cam := newTestCamera(t, ctx)
	controller := camera.NewCameraController()
	s, err := New(ctx, cam, nil, nil, WithController(controller))
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx.Queue(), 0))
	before := cam.Orientation()

	s.MouseMotion(100, 100)
	s.MouseMotion(150, 120)
	require.NoError(t, s.Update(ctx.Queue(), 0.016))
	assert.Equal(t, before, cam.Orientation())

	s.MouseButton(common.MouseButtonLeft, true)
	s.MouseMotion(200, 140)
	require.NoError(t, s.Update(ctx.Queue(), 0.016))
	assert.NotEqual(t, before, cam.Orientation())

	assert.True(t, s.KeyEvent(common.KeyW, true))
}

func TestShippedShadersValidateWithSceneIncludes(t *testing.T) {
	lib := shader.NewLibrary(shaders.FS, shader.WithIncludes(ShaderIncludes()))

	for _, name := range []string{shaders.Model, shaders.Compositor} {
		t.Run(name, func(t *testing.T) {
			src, err := lib.Load(name)
			require.NoError(t, err)

			err = shader.Validate(src)
			if shader.Unsupported(err) {
				t.Skipf("naga feature not yet implemented: %v", err)
			}
			assert.NoError(t, err)
		})
	}
}
