// Package scene orchestrates a forward-rendered frame: one ambient pass over every model
// that establishes depth, then one additive lit pass per non-ambient light, all recorded
// into a single render pass on the camera's offscreen attachments.
package scene

import (
	"fmt"
	"maps"
	"sync"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/camera"
	"github.com/Carmen-Shannon/oxy-forward/engine/light"
	"github.com/Carmen-Shannon/oxy-forward/engine/logger"
	"github.com/Carmen-Shannon/oxy-forward/engine/model"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/compositor"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// DefaultClearColor is the color the ambient pass clears to when none is configured.
var DefaultClearColor = common.Vec4{0.1, 0.1, 0.1, 1}

// ShaderIncludes returns the WGSL structs every scene shader may include, keyed by include
// name. Pass it to renderer.WithShaderIncludes.
//
// Returns:
//   - map[string]string: include name to WGSL source
func ShaderIncludes() map[string]string {
	return map[string]string{
		camera.IncludeName:     camera.GPUCameraUniformSource,
		light.IncludeName:      light.GPULightUniformSource,
		material.IncludeName:   material.GPUMaterialUniformSource,
		model.IncludeName:      model.GPUModelIOSource,
		compositor.IncludeName: compositor.GPUCompositorUniformSource,
	}
}

type scene struct {
	mu *sync.Mutex

	name       string
	active     bool
	camera     camera.Camera
	controller camera.CameraController
	lights     []light.Light
	models     []model.Model
	ambient    light.Light
	clearColor common.Vec4
	time       float32

	leftHeld bool
	cursor   [2]float64
	hasCur   bool
}

// Scene owns the camera, lights and models of a frame and records their draws.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Active returns whether this scene is currently rendered.
	Active() bool

	// SetActive sets whether this scene is rendered.
	SetActive(active bool)

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// Controller returns the camera controller, or nil when input is not wired.
	Controller() camera.CameraController

	// Lights returns the lights in insertion order.
	Lights() []light.Light

	// Models returns the models in insertion order.
	Models() []model.Model

	// AmbientLight returns the aggregate ambient light drawn in the ambient pass. Its ambient
	// color is the sum of every light's ambient color as of the last Update.
	AmbientLight() light.Light

	// ClearColor returns the color the ambient pass clears the color attachment to.
	ClearColor() common.Vec4

	// SetClearColor sets the ambient pass clear color.
	SetClearColor(color common.Vec4)

	// Time returns the seconds accumulated by Update.
	Time() float32

	// Update advances the scene by dt seconds. The controller moves the camera, the aggregate
	// ambient is recomputed, and every dirty uniform and instance buffer is written.
	//
	// Parameters:
	//   - queue: the queue to write through
	//   - dt: elapsed time since the last frame in seconds
	//
	// Returns:
	//   - error: the first write error
	Update(queue backend.Queue, dt float32) error

	// Render records the ambient pass and one lit pass per non-ambient light into a single
	// render pass on the camera's attachments. Nothing is submitted.
	//
	// Parameters:
	//   - ctx: the GPU context holding the pipeline cache
	//   - encoder: the frame's command encoder
	//
	// Returns:
	//   - error: an error ending the pass
	Render(ctx renderer.Context, encoder backend.CommandEncoder) error

	// Resize forwards a new surface size to the camera.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	//
	// Returns:
	//   - error: an attachment allocation error
	Resize(width, height uint32) error

	// KeyEvent routes a key press or release to the controller.
	//
	// Returns:
	//   - bool: true when the controller consumed the key
	KeyEvent(key int, pressed bool) bool

	// MouseButton records a mouse button press or release.
	MouseButton(button int, pressed bool)

	// MouseMotion records the cursor position. The delta from the previous position drives
	// the controller only while the left button is held.
	MouseMotion(x, y float64)

	// Scroll routes scroll lines to the controller zoom.
	Scroll(lines float32)

	// Release frees the aggregate ambient light, every light and every model.
	Release()
}

var _ Scene = &scene{}

// New creates a scene and prepares the pipelines of every model.
//
// Parameters:
//   - ctx: the GPU context
//   - cam: the scene camera; required
//   - lights: the lights, in draw order
//   - models: the models, in draw order
//   - options: builder options
//
// Returns:
//   - Scene: the scene
//   - error: an error for a nil camera, or a light or pipeline creation error
func New(ctx renderer.Context, cam camera.Camera, lights []light.Light, models []model.Model, options ...SceneBuilderOption) (Scene, error) {
	if cam == nil {
		return nil, fmt.Errorf("scene: camera is required")
	}
	s := &scene{
		mu:         &sync.Mutex{},
		name:       "Scene",
		active:     true,
		camera:     cam,
		lights:     append([]light.Light(nil), lights...),
		models:     append([]model.Model(nil), models...),
		clearColor: DefaultClearColor,
	}
	for _, opt := range options {
		opt(s)
	}

	ambient, err := light.NewAmbient(ctx.Device(), light.AmbientDescriptor{}, light.WithLabel(s.name+" Ambient"))
	if err != nil {
		return nil, fmt.Errorf("scene %q: %w", s.name, err)
	}
	s.ambient = ambient
	s.aggregateAmbient()

	for _, m := range s.models {
		if err := m.PreparePipelines(ctx); err != nil {
			ambient.Release()
			return nil, fmt.Errorf("scene %q: %w", s.name, err)
		}
	}
	logger.Debug("scene created", "scene", s.name, "lights", len(s.lights), "models", len(s.models), "pipelines", ctx.Cache().Len())
	return s, nil
}

func (s *scene) aggregateAmbient() {
	var sum common.Vec3
	for _, l := range s.lights {
		a := l.Ambient()
		sum = common.Vec3{sum[0] + a[0], sum[1] + a[1], sum[2] + a[2]}
	}
	s.ambient.SetLinearAmbient(sum)
}

func (s *scene) Name() string { return s.name }

func (s *scene) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera               { return s.camera }
func (s *scene) Controller() camera.CameraController { return s.controller }
func (s *scene) AmbientLight() light.Light           { return s.ambient }

func (s *scene) Lights() []light.Light {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]light.Light(nil), s.lights...)
}

func (s *scene) Models() []model.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Model(nil), s.models...)
}

func (s *scene) ClearColor() common.Vec4 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearColor
}

func (s *scene) SetClearColor(color common.Vec4) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearColor = color
}

func (s *scene) Time() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.time
}

func (s *scene) Update(queue backend.Queue, dt float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.controller != nil {
		s.controller.ApplyTo(s.camera, dt)
	}
	if err := s.camera.Update(queue); err != nil {
		return fmt.Errorf("scene %q: %w", s.name, err)
	}

	s.aggregateAmbient()
	if err := s.ambient.Update(queue); err != nil {
		return fmt.Errorf("scene %q: %w", s.name, err)
	}
	for _, l := range s.lights {
		if err := l.Update(queue); err != nil {
			return fmt.Errorf("scene %q: %w", s.name, err)
		}
	}
	for _, m := range s.models {
		if err := m.Update(queue); err != nil {
			return fmt.Errorf("scene %q: %w", s.name, err)
		}
	}
	s.time += dt
	return nil
}

func (s *scene) Render(ctx renderer.Context, encoder backend.CommandEncoder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tgt := s.camera.Target()
	color, depth := tgt.Color(), tgt.Depth()
	if color == nil || depth == nil {
		return fmt.Errorf("scene %q: camera target needs both color and depth attachments", s.name)
	}
	cc := s.clearColor
	rp := encoder.BeginRenderPass(backend.RenderPassDescriptor{
		Label: s.name + " Pass",
		Color: backend.ColorAttachment{
			View:    color.View(),
			LoadOp:  wgpu.LoadOpClear,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(cc[0]),
				G: float64(cc[1]),
				B: float64(cc[2]),
				A: float64(cc[3]),
			},
		},
		Depth: &backend.DepthAttachment{
			View:       depth.View(),
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: 1.0,
		},
	})

	cache := ctx.Cache()
	draws := 0
	for _, m := range s.models {
		draws += model.DrawModel(rp, cache, m, s.camera, s.ambient, pipeline.PassAmbient)
	}
	for _, l := range s.lights {
		if l.Type() == light.TypeAmbient {
			continue
		}
		for _, m := range s.models {
			draws += model.DrawModel(rp, cache, m, s.camera, l, pipeline.PassLit)
		}
	}

	if err := rp.End(); err != nil {
		return fmt.Errorf("scene %q: %w", s.name, err)
	}
	logger.Debug("scene recorded", "scene", s.name, "draws", draws)
	return nil
}

func (s *scene) Resize(width, height uint32) error {
	if err := s.camera.Resize(width, height); err != nil {
		return fmt.Errorf("scene %q: %w", s.name, err)
	}
	return nil
}

func (s *scene) KeyEvent(key int, pressed bool) bool {
	if s.controller == nil {
		return false
	}
	return s.controller.ProcessKey(key, pressed)
}

func (s *scene) MouseButton(button int, pressed bool) {
	if button != common.MouseButtonLeft {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leftHeld = pressed
}

func (s *scene) MouseMotion(x, y float64) {
	s.mu.Lock()
	prev, had, held := s.cursor, s.hasCur, s.leftHeld
	s.cursor = [2]float64{x, y}
	s.hasCur = true
	s.mu.Unlock()

	if !had || !held || s.controller == nil {
		return
	}
	s.controller.ProcessMouse(float32(x-prev[0]), float32(y-prev[1]))
}

func (s *scene) Scroll(lines float32) {
	if s.controller == nil {
		return
	}
	s.controller.ProcessScroll(lines)
}

func (s *scene) Release() {
	s.ambient.Release()
	for _, l := range s.lights {
		l.Release()
	}
	for _, m := range s.models {
		m.Release()
	}
}

// Includes is ShaderIncludes merged with extra, extra taking precedence.
//
// Parameters:
//   - extra: additional includes, such as application shaders
//
// Returns:
//   - map[string]string: the merged includes
func Includes(extra map[string]string) map[string]string {
	out := ShaderIncludes()
	maps.Copy(out, extra)
	return out
}
