package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/camera"
	"github.com/Carmen-Shannon/oxy-forward/engine/config"
	"github.com/Carmen-Shannon/oxy-forward/engine/light"
	"github.com/Carmen-Shannon/oxy-forward/engine/model"
	"github.com/Carmen-Shannon/oxy-forward/engine/profiler"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/compositor"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-forward/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine  Engine
	device  *backendtest.Device
	surface *backendtest.Surface
}

func newFixture(t *testing.T, withController bool, options ...EngineBuilderOption) fixture {
	t.Helper()
	device := backendtest.NewDevice()
	surface := backendtest.NewSurface()
	ctx, err := renderer.New(surface, device, 800, 600, renderer.WithShaderIncludes(scene.ShaderIncludes()))
	require.NoError(t, err)

	cam, err := camera.NewCamera(ctx, common.Radians(45), 0.1, 100,
		camera.WithLookAt(common.Vec3{0, 2, 5}, common.Vec3{}),
	)
	require.NoError(t, err)

	ambient, err := light.NewAmbient(device, light.AmbientDescriptor{Ambient: common.Vec3{0.1, 0.1, 0.1}})
	require.NoError(t, err)
	point, err := light.NewPoint(device, light.PointDescriptor{
		Position: common.Vec3{2, 2, 2},
		Color:    common.Vec3{1, 1, 1},
		Constant: 1,
	})
	require.NoError(t, err)

	mat, err := material.New(device, ctx.Queue(), material.WithName("Cube Material"))
	require.NoError(t, err)
	vertices, indices := model.Cube(1)
	mesh, err := model.NewMesh(device, ctx.Queue(), "Cube", vertices, indices, 0)
	require.NoError(t, err)
	cube, err := model.New(device, ctx.Queue(), []*model.Mesh{mesh}, []material.Material{mat},
		[]model.Instance{{}}, model.WithName("Cube"))
	require.NoError(t, err)

	sceneOptions := []scene.SceneBuilderOption{scene.WithName("Test")}
	if withController {
		sceneOptions = append(sceneOptions, scene.WithController(camera.NewCameraController()))
	}
	s, err := scene.New(ctx, cam, []light.Light{ambient, point}, []model.Model{cube}, sceneOptions...)
	require.NoError(t, err)

	options = append([]EngineBuilderOption{WithProfiler(profiler.NewProfiler(profiler.WithQuiet(true)))}, options...)
	e, err := NewEngine(ctx, s, options...)
	require.NoError(t, err)
	t.Cleanup(e.Release)
	return fixture{engine: e, device: device, surface: surface}
}

func TestNewEngineRequiresSceneAndContext(t *testing.T) {
	_, err := NewEngine(nil, nil)
	assert.Error(t, err)
}

func TestFrameRecordsSceneThenCompositor(t *testing.T) {
	f := newFixture(t, false, WithProfiling(true))

	require.NoError(t, f.engine.Frame(0.016))

	enc := f.device.LastEncoder()
	require.NotNil(t, enc)
	require.Len(t, enc.Passes, 2)
	assert.Equal(t, "Test Pass", enc.Passes[0].Desc.Label)
	assert.Equal(t, []string{compositor.PipelineID}, enc.Passes[1].Pipelines())
	assert.True(t, enc.Finished)
	assert.True(t, enc.Released)
	assert.Len(t, f.device.RecordingQueue().Submitted, 1)
	assert.Equal(t, 1, f.surface.Presented)
	assert.False(t, f.engine.Compositor().Dirty())
}

func TestUpdateCallbackChangesUploadInSameFrame(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.engine.Frame(0.016))
	f.device.RecordingQueue().Reset()

	var point light.Light
	for _, l := range f.engine.Scene().Lights() {
		if l.Type() == light.TypePoint {
			point = l
		}
	}
	require.NotNil(t, point)
	require.False(t, point.Dirty())

	moved := common.Vec3{-3, 1, 4}
	f.engine.SetUpdateCallback(func(float32) {
		point.SetPosition(moved)
	})
	require.NoError(t, f.engine.Frame(0.016))

	assert.Len(t, f.device.RecordingQueue().WritesTo(point.Uniform().Label()), 1)
	assert.False(t, point.Dirty())
	assert.Equal(t, [3]float32(moved), point.Uniform().Get().Position)
	assert.Equal(t, 2, f.surface.Presented)
}

func TestFrameOnLostSurfaceReconfiguresAndSkips(t *testing.T) {
	f := newFixture(t, false)
	configured := f.surface.Configured
	group := f.engine.Compositor().BindGroup()
	target := f.engine.Scene().Camera().Target().Color()
	f.surface.AcquireErrors = []error{errors.New("Surface texture status: Lost")}

	require.NoError(t, f.engine.Frame(0.016))

	assert.Equal(t, configured+1, f.surface.Configured)
	assert.Equal(t, uint32(800), f.surface.Width)
	assert.Equal(t, uint32(600), f.surface.Height)
	assert.Equal(t, 0, f.surface.Presented)
	assert.Empty(t, f.device.RecordingQueue().Submitted)
	assert.NotSame(t, target, f.engine.Scene().Camera().Target().Color())
	assert.NotSame(t, group, f.engine.Compositor().BindGroup())
	assert.True(t, f.engine.Running())

	require.NoError(t, f.engine.Frame(0.016))
	assert.Equal(t, 1, f.surface.Presented)
}

func TestFrameOnOutOfMemoryIsFatal(t *testing.T) {
	f := newFixture(t, false)
	f.surface.AcquireErrors = []error{errors.New("OutOfMemory")}

	err := f.engine.Frame(0.016)
	assert.ErrorIs(t, err, ErrFatal)
	assert.ErrorIs(t, err, backend.ErrSurfaceOutOfMemory)
	assert.False(t, f.engine.Running())
	assert.Equal(t, 0, f.surface.Presented)
}

func TestFrameSkipsOnTimeoutAndOutdated(t *testing.T) {
	f := newFixture(t, false)
	f.surface.AcquireErrors = []error{errors.New("Timeout"), errors.New("surface outdated")}

	require.NoError(t, f.engine.Frame(0.016))
	require.NoError(t, f.engine.Frame(0.016))
	assert.Equal(t, 0, f.surface.Presented)
	assert.True(t, f.engine.Running())

	require.NoError(t, f.engine.Frame(0.016))
	assert.Equal(t, 1, f.surface.Presented)
}

func TestResizeIgnoresZeroAndResizesTargets(t *testing.T) {
	f := newFixture(t, false)
	configured := f.surface.Configured

	f.engine.Resize(0, 600)
	assert.Equal(t, configured, f.surface.Configured)

	f.engine.Resize(1024, 768)
	assert.Equal(t, configured+1, f.surface.Configured)
	w, h := f.engine.Scene().Camera().Size()
	assert.Equal(t, uint32(1024), w)
	assert.Equal(t, uint32(768), h)

	require.NoError(t, f.engine.Frame(0.016))
	u := f.engine.Compositor().Uniform().Get()
	assert.Equal(t, float32(1024), u.Width)
	assert.Equal(t, float32(768), u.Height)
}

func TestEscapeQuitsAndOtherKeysMoveCamera(t *testing.T) {
	f := newFixture(t, true)
	before := f.engine.Scene().Camera().Position()

	f.engine.HandleKey(common.KeyW, true)
	require.NoError(t, f.engine.Frame(0.5))
	assert.False(t, common.ApproxEqual3(before, f.engine.Scene().Camera().Position()))
	assert.True(t, f.engine.Running())

	f.engine.HandleKey(common.KeyEsc, false)
	assert.True(t, f.engine.Running())
	f.engine.HandleKey(common.KeyEsc, true)
	assert.False(t, f.engine.Running())
}

func TestQueuedConfigAppliesOnNextFrame(t *testing.T) {
	f := newFixture(t, false)
	first := config.Default()
	first.Render.ClearColor = common.Vec4{1, 0, 0, 1}
	latest := config.Default()
	latest.Render.ClearColor = common.Vec4{0, 0.5, 0, 1}
	latest.Camera.Fov = 60
	latest.Camera.Near = 0.5
	latest.Camera.Far = 50

	f.engine.QueueConfig(first)
	f.engine.QueueConfig(latest)
	assert.NotEqual(t, latest.Render.ClearColor, f.engine.Scene().ClearColor())

	require.NoError(t, f.engine.Frame(0.016))
	cam := f.engine.Scene().Camera()
	assert.Equal(t, latest.Render.ClearColor, f.engine.Scene().ClearColor())
	assert.InDelta(t, common.Radians(60), cam.FovY(), 1e-6)
	near, far := cam.DepthRange()
	assert.Equal(t, float32(0.5), near)
	assert.Equal(t, float32(50), far)

	clear := f.device.LastEncoder().Passes[0].Desc.Color.ClearValue
	assert.InDelta(t, 0.5, clear.G, 1e-6)
	u := f.engine.Compositor().Uniform().Get()
	assert.Equal(t, float32(0.5), u.ZNear)
	assert.Equal(t, float32(50), u.ZFar)
}

func TestApplyConfigTunesController(t *testing.T) {
	f := newFixture(t, true)
	cfg := config.Default()
	cfg.Camera.Speed = 9
	cfg.Camera.Sensitivity = 1.5
	cfg.Camera.Fov = 90

	f.engine.ApplyConfig(cfg)
	ctrl := f.engine.Scene().Controller()
	assert.Equal(t, float32(9), ctrl.Speed())
	assert.Equal(t, float32(1.5), ctrl.Sensitivity())
	assert.InDelta(t, common.Radians(45), f.engine.Scene().Camera().FovY(), 1e-6)
}

func TestConfigWatchAppliesEditedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oxy.toml")
	require.NoError(t, config.Save(path, config.Default()))
	f := newFixture(t, false, WithConfig(config.Default()), WithConfigWatch(path))

	edited := config.Default()
	edited.Render.ClearColor = common.Vec4{0.25, 0.5, 0.75, 1}
	require.NoError(t, config.Save(path, edited))

	assert.Eventually(t, func() bool {
		if err := f.engine.Frame(0.016); err != nil {
			return false
		}
		return f.engine.Scene().ClearColor() == edited.Render.ClearColor
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRunStopsOnQuit(t *testing.T) {
	f := newFixture(t, false)
	frames := 0
	f.engine.SetUpdateCallback(func(float32) {
		frames++
		if frames == 3 {
			f.engine.Quit()
		}
	})

	require.NoError(t, f.engine.Run(context.Background()))
	assert.Equal(t, 3, frames)
	assert.Equal(t, 3, f.surface.Presented)
}

func TestRunReturnsFatalFrameError(t *testing.T) {
	f := newFixture(t, false)
	f.surface.AcquireErrors = []error{nil, errors.New("OutOfMemory")}

	err := f.engine.Run(context.Background())
	assert.ErrorIs(t, err, ErrFatal)
	assert.Equal(t, 1, f.surface.Presented)
	assert.False(t, f.engine.Running())
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.engine.Run(ctx))
	assert.Equal(t, 0, f.surface.Presented)
	assert.False(t, f.engine.Running())
}

func TestRunHonorsFrameLimit(t *testing.T) {
	f := newFixture(t, false, WithRenderFrameLimit(100))
	frames := 0
	f.engine.SetUpdateCallback(func(float32) {
		frames++
		if frames == 5 {
			f.engine.Quit()
		}
	})

	start := time.Now()
	require.NoError(t, f.engine.Run(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}
