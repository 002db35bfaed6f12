package renderer

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-forward/shaders"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, options ...ContextBuilderOption) (Context, *backendtest.Device, *backendtest.Surface) {
	t.Helper()
	device := backendtest.NewDevice()
	surface := backendtest.NewSurface()
	ctx, err := New(surface, device, 800, 600, options...)
	require.NoError(t, err)
	return ctx, device, surface
}

func TestNewConfiguresSurface(t *testing.T) {
	ctx, _, surface := newTestContext(t)

	assert.Equal(t, 1, surface.Configured)
	assert.Equal(t, wgpu.PresentModeFifo, surface.PresentMode)
	assert.Equal(t, wgpu.TextureFormatBGRA8UnormSrgb, ctx.Format())
	w, h := ctx.Size()
	assert.Equal(t, uint32(800), w)
	assert.Equal(t, uint32(600), h)
	assert.Equal(t, 0, ctx.Cache().Len())
}

func TestNewWithoutFormats(t *testing.T) {
	surface := backendtest.NewSurface()
	surface.Format = nil
	_, err := New(surface, backendtest.NewDevice(), 800, 600)
	assert.Error(t, err)
}

func TestPresentModeOption(t *testing.T) {
	ctx, _, surface := newTestContext(t, WithPresentMode(PresentModeMailbox))
	assert.Equal(t, wgpu.PresentModeMailbox, surface.PresentMode)
	assert.Equal(t, PresentModeMailbox, ctx.PresentMode())

	assert.Equal(t, PresentModeUncapped, ParsePresentMode("immediate"))
	assert.Equal(t, PresentModeVSync, ParsePresentMode("bogus"))
}

func TestResize(t *testing.T) {
	ctx, _, surface := newTestContext(t)

	assert.False(t, ctx.Resize(0, 768))
	assert.Equal(t, 1, surface.Configured)

	assert.True(t, ctx.Resize(1024, 768))
	assert.Equal(t, 2, surface.Configured)
	assert.Equal(t, uint32(1024), surface.Width)
	w, h := ctx.Size()
	assert.Equal(t, uint32(1024), w)
	assert.Equal(t, uint32(768), h)

	surface.ConfigureError = errors.New("boom")
	assert.False(t, ctx.Resize(640, 480))
	w, _ = ctx.Size()
	assert.Equal(t, uint32(1024), w)
}

func TestReleaseFreesSurfaceAndDevice(t *testing.T) {
	ctx, device, surface := newTestContext(t)
	require.False(t, device.Released)
	require.False(t, surface.Released)

	ctx.Release()
	assert.True(t, surface.Released)
	assert.True(t, device.Released)
	assert.Equal(t, 0, ctx.Cache().Len())
}

func TestAcquireFrameClassifiesErrors(t *testing.T) {
	ctx, _, surface := newTestContext(t)
	surface.AcquireErrors = []error{
		errors.New("Surface texture status: Lost"),
		errors.New("surface outdated"),
		errors.New("Timeout"),
		errors.New("OutOfMemory"),
		nil,
	}

	for _, want := range []error{backend.ErrSurfaceLost, backend.ErrSurfaceOutdated, backend.ErrSurfaceTimeout, backend.ErrSurfaceOutOfMemory} {
		_, err := ctx.AcquireFrame()
		assert.ErrorIs(t, err, want)
	}

	frame, err := ctx.AcquireFrame()
	require.NoError(t, err)
	assert.NotNil(t, frame.View())
	frame.Present()
	assert.Equal(t, 1, surface.Presented)
}

func TestDefaultShaderLibraryServesEmbeddedSources(t *testing.T) {
	ctx, _, _ := newTestContext(t, WithShaderFS(fstest.MapFS{
		"plain.wgsl": {Data: []byte("@vertex fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(); }")},
	}))
	src, err := ctx.Shaders().Load("plain")
	require.NoError(t, err)
	assert.Contains(t, src, "vs_main")

	_, err = ctx.Shaders().Load(shaders.Model)
	assert.Error(t, err)
}

func TestCustomCacheOption(t *testing.T) {
	cache := pipeline.NewCache()
	ctx, _, _ := newTestContext(t, WithPipelineCache(cache))
	assert.Same(t, cache, ctx.Cache())
}

func TestShaderIncludesMerge(t *testing.T) {
	merged := ShaderIncludes(map[string]string{"a": "1", "b": "2"}, map[string]string{"b": "3"})
	assert.Equal(t, map[string]string{"a": "1", "b": "3"}, merged)
}
