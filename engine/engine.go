package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/config"
	"github.com/Carmen-Shannon/oxy-forward/engine/logger"
	"github.com/Carmen-Shannon/oxy-forward/engine/profiler"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/compositor"
	"github.com/Carmen-Shannon/oxy-forward/engine/scene"
	"github.com/Carmen-Shannon/oxy-forward/engine/window"
)

// ErrFatal wraps the frame error that ended the loop.
var ErrFatal = errors.New("engine: fatal frame error")

// engine implements the Engine interface.
// Owns the frame lifecycle: scene update, swap-chain acquisition, the scene pass and the
// compositor pass.
type engine struct {
	ctx        renderer.Context
	scene      scene.Scene
	compositor compositor.Compositor

	window        window.Window
	ownsResources bool

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	configChannel chan config.Config
	configPath    string
	configWatcher config.Watcher
	config        config.Config
	hasConfig     bool

	profiler         *profiler.Profiler
	profilingEnabled bool

	updateCallback func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	lastFrame        time.Time
}

// Engine is the main entry point for the engine.
// It drives the frame loop, reacts to surface failures and forwards window input to the scene.
type Engine interface {
	// Context returns the GPU context frames are rendered with.
	Context() renderer.Context

	// Scene returns the rendered scene.
	Scene() scene.Scene

	// Compositor returns the post pass that draws the scene into the swap chain.
	Compositor() compositor.Compositor

	// Window returns the underlying window, or nil for a headless engine.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetUpdateCallback registers the function called each frame before the scene update, so
	// changes it makes to the camera, lights or models are uploaded and drawn in the same frame.
	// Use this for game logic and animation.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetUpdateCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional frame rate cap in frames per second.
	// Pass 0 to uncap the loop (default).
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// ApplyConfig applies the live-tunable parts of cfg: clear color, camera projection or
	// controller tuning, log level and window title.
	ApplyConfig(cfg config.Config)

	// QueueConfig hands cfg to the loop; it is applied at the start of the next frame.
	// Only the most recent queued config is kept.
	QueueConfig(cfg config.Config)

	// Resize reconfigures the surface and resizes the camera target and compositor.
	// Zero sizes, as reported for minimized windows, are ignored.
	//
	// Parameters:
	//   - width: the new framebuffer width in pixels
	//   - height: the new framebuffer height in pixels
	Resize(width, height int)

	// HandleKey processes a key event. Escape ends the loop; other keys go to the scene.
	HandleKey(key int, pressed bool)

	// Frame runs one frame of dt seconds. Recoverable surface conditions are handled in
	// place and skip the frame; the returned error means the loop cannot continue.
	//
	// Parameters:
	//   - dt: the time since the previous frame in seconds
	//
	// Returns:
	//   - error: a fatal error, wrapping ErrFatal
	Frame(dt float32) error

	// Running reports whether Quit has not been called yet.
	Running() bool

	// Run drives frames until the window closes, Escape is pressed, Quit is called, ctx is
	// cancelled, or the process receives SIGINT or SIGTERM.
	//
	// Parameters:
	//   - ctx: context ending the loop when cancelled
	//
	// Returns:
	//   - error: the fatal frame error that ended the loop, or nil
	Run(ctx context.Context) error

	// Quit signals the loop to stop after the current frame.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Release stops the config watcher and releases the compositor. Engines built by
	// NewWindowed also release the scene, GPU context and window.
	Release()
}

var _ Engine = &engine{}

// NewEngine creates an Engine rendering s with ctx. The compositor is created against the
// scene camera's render target.
//
// Parameters:
//   - ctx: the GPU context
//   - s: the scene to render
//   - options: functional options for engine configuration (profiling, window, config, etc.)
//
// Returns:
//   - Engine: the newly created engine
//   - error: error if the compositor or config watcher cannot be created
func NewEngine(ctx renderer.Context, s scene.Scene, options ...EngineBuilderOption) (Engine, error) {
	if ctx == nil || s == nil {
		return nil, fmt.Errorf("engine requires a context and a scene")
	}
	e := &engine{
		ctx:           ctx,
		scene:         s,
		quitChannel:   make(chan struct{}),
		configChannel: make(chan config.Config, 1),
		profiler:      profiler.NewProfiler(),
	}

	for _, opt := range options {
		opt(e)
	}

	comp, err := compositor.New(ctx, s.Camera().Target())
	if err != nil {
		return nil, fmt.Errorf("failed to create compositor: %w", err)
	}
	e.compositor = comp

	if e.hasConfig {
		e.ApplyConfig(e.config)
	}
	if e.configPath != "" {
		initial := e.config
		if !e.hasConfig {
			initial = config.Default()
		}
		w, err := config.Watch(e.configPath, initial, e.QueueConfig)
		if err != nil {
			comp.Release()
			return nil, fmt.Errorf("failed to watch config: %w", err)
		}
		e.configWatcher = w
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.Resize)
		e.window.SetKeyCallback(e.HandleKey)
		e.window.SetMouseButtonCallback(s.MouseButton)
		e.window.SetCursorCallback(s.MouseMotion)
		e.window.SetScrollCallback(s.Scroll)
	}

	return e, nil
}

// NewWindowed opens a window described by cfg, creates a wgpu context on it and asks setup
// for the scene to render.
//
// Parameters:
//   - cfg: the application configuration
//   - setup: builds the scene once the GPU context exists
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the engine, owning the window, context and scene
//   - error: error if any stage fails; resources created so far are released
func NewWindowed(cfg config.Config, setup func(ctx renderer.Context, cfg config.Config) (scene.Scene, error), options ...EngineBuilderOption) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.Log.Level)

	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithWidth(cfg.Window.Width),
		window.WithHeight(cfg.Window.Height),
	)
	if err != nil {
		return nil, err
	}

	ctxOptions := []renderer.ContextBuilderOption{
		renderer.WithPresentMode(renderer.ParsePresentMode(cfg.Render.PresentMode)),
		renderer.WithShaderIncludes(scene.ShaderIncludes()),
		renderer.WithShaderValidation(cfg.Render.ValidateShaders),
	}
	if cfg.Render.ShaderDir != "" {
		ctxOptions = append(ctxOptions, renderer.WithShaderFS(os.DirFS(cfg.Render.ShaderDir)))
	}
	ctx, err := renderer.NewWGPU(win.SurfaceDescriptor(), uint32(win.Width()), uint32(win.Height()), ctxOptions...)
	if err != nil {
		_ = win.Close()
		return nil, fmt.Errorf("failed to create GPU context: %w", err)
	}

	s, err := setup(ctx, cfg)
	if err != nil {
		ctx.Release()
		_ = win.Close()
		return nil, fmt.Errorf("scene setup failed: %w", err)
	}

	options = append([]EngineBuilderOption{WithWindow(win), WithConfig(cfg)}, options...)
	e, err := NewEngine(ctx, s, options...)
	if err != nil {
		s.Release()
		ctx.Release()
		_ = win.Close()
		return nil, err
	}
	e.(*engine).ownsResources = true
	logger.Info("engine ready", "width", win.Width(), "height", win.Height(), "presentMode", cfg.Render.PresentMode)
	return e, nil
}

func (e *engine) Context() renderer.Context             { return e.ctx }
func (e *engine) Scene() scene.Scene                    { return e.scene }
func (e *engine) Compositor() compositor.Compositor     { return e.compositor }
func (e *engine) Window() window.Window                 { return e.window }
func (e *engine) EnableProfiler()                       { e.profilingEnabled = true }
func (e *engine) DisableProfiler()                      { e.profilingEnabled = false }
func (e *engine) SetUpdateCallback(cb func(dt float32)) { e.updateCallback = cb }

// SetRenderFrameLimit sets an optional frame rate cap.
// Pass 0 to uncap the loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) ApplyConfig(cfg config.Config) {
	logger.SetLevel(cfg.Log.Level)
	e.scene.SetClearColor(cfg.Render.ClearColor)

	cam := e.scene.Camera()
	cam.SetDepthRange(cfg.Camera.Near, cfg.Camera.Far)
	// The controller derives the field of view from its zoom every frame.
	if ctrl := e.scene.Controller(); ctrl != nil {
		ctrl.SetSpeed(cfg.Camera.Speed)
		ctrl.SetSensitivity(cfg.Camera.Sensitivity)
	} else {
		cam.SetFovY(common.Radians(cfg.Camera.Fov))
	}

	if e.window != nil && cfg.Window.Title != "" {
		e.window.SetTitle(cfg.Window.Title)
	}
	e.config = cfg
	e.hasConfig = true
	logger.Debug("config applied", "clearColor", cfg.Render.ClearColor, "fov", cfg.Camera.Fov)
}

// QueueConfig replaces any pending config without blocking; safe to call from the
// watcher goroutine.
func (e *engine) QueueConfig(cfg config.Config) {
	for {
		select {
		case e.configChannel <- cfg:
			return
		default:
			select {
			case <-e.configChannel:
			default:
			}
		}
	}
}

func (e *engine) drainConfig() {
	select {
	case cfg := <-e.configChannel:
		e.ApplyConfig(cfg)
	default:
	}
}

func (e *engine) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if !e.ctx.Resize(uint32(width), uint32(height)) {
		return
	}
	e.resizeTargets(uint32(width), uint32(height))
}

// resizeTargets recreates the camera target at the given size and rebinds the compositor.
func (e *engine) resizeTargets(width, height uint32) {
	if err := e.scene.Resize(width, height); err != nil {
		logger.Error("failed to resize scene", "width", width, "height", height, "err", err)
		return
	}
	if err := e.compositor.Resize(e.scene.Camera().Target()); err != nil {
		logger.Error("failed to resize compositor", "width", width, "height", height, "err", err)
	}
}

func (e *engine) HandleKey(key int, pressed bool) {
	if key == common.KeyEsc {
		if pressed {
			logger.Info("escape pressed, exiting")
			e.Quit()
		}
		return
	}
	e.scene.KeyEvent(key, pressed)
}

func (e *engine) Frame(dt float32) error {
	start := time.Now()
	e.drainConfig()

	if e.updateCallback != nil {
		e.updateCallback(dt)
	}
	queue := e.ctx.Queue()
	if err := e.scene.Update(queue, dt); err != nil {
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}
	e.compositor.ReadCameraProperties(e.scene.Camera())
	if err := e.compositor.Update(queue); err != nil {
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}

	frame, err := e.ctx.AcquireFrame()
	switch {
	case err == nil:
	case errors.Is(err, backend.ErrSurfaceLost):
		width, height := e.ctx.Size()
		logger.Warn("surface lost, reconfiguring", "width", width, "height", height)
		if e.ctx.Resize(width, height) {
			e.resizeTargets(width, height)
		}
		return nil
	case errors.Is(err, backend.ErrSurfaceOutOfMemory):
		logger.Error("surface out of memory, exiting", "err", err)
		e.Quit()
		return fmt.Errorf("%w: %w", ErrFatal, err)
	default:
		logger.Warn("skipping frame", "err", err)
		return nil
	}

	encoder, err := e.ctx.Device().CreateCommandEncoder("Frame Encoder")
	if err != nil {
		frame.Present()
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}
	defer encoder.Release()

	if err := e.scene.Render(e.ctx, encoder); err != nil {
		frame.Present()
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}
	if err := e.compositor.Render(encoder, frame.View()); err != nil {
		frame.Present()
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}
	buffer, err := encoder.Finish()
	if err != nil {
		frame.Present()
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}
	e.ctx.Submit(buffer)
	buffer.Release()
	frame.Present()

	if e.profilingEnabled && e.profiler != nil {
		e.profiler.Tick(time.Since(start))
	}
	return nil
}

func (e *engine) Running() bool {
	select {
	case <-e.quitChannel:
		return false
	default:
		return true
	}
}

func (e *engine) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e.lastFrame = time.Now()
	var runErr error
	step := func() bool {
		select {
		case <-ctx.Done():
			logger.Info("shutting down", "reason", context.Cause(ctx))
			e.Quit()
			return false
		case <-e.quitChannel:
			return false
		default:
		}
		now := time.Now()
		dt := float32(now.Sub(e.lastFrame).Seconds())
		e.lastFrame = now
		if err := e.Frame(dt); err != nil {
			logger.Error("frame failed", "err", err)
			runErr = err
			e.Quit()
			return false
		}
		e.limitFrameRate(now)
		return true
	}

	if e.window == nil {
		for step() {
		}
		return runErr
	}

	e.window.SetUpdateCallback(func() {
		if !step() {
			e.window.RequestClose()
		}
	})
	e.window.ProcessMessages()
	e.Quit()
	return runErr
}

func (e *engine) limitFrameRate(frameStart time.Time) {
	if e.renderFrameLimit <= 0 {
		return
	}
	if remaining := e.renderFrameLimit - time.Since(frameStart); remaining > 0 {
		time.Sleep(remaining)
	}
}

// Quit signals the loop to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) Release() {
	e.Quit()
	if e.configWatcher != nil {
		if err := e.configWatcher.Close(); err != nil {
			logger.Warn("failed to close config watcher", "err", err)
		}
		e.configWatcher = nil
	}
	e.compositor.Release()
	if !e.ownsResources {
		return
	}
	e.scene.Release()
	e.ctx.Release()
	if e.window != nil {
		if err := e.window.Close(); err != nil {
			logger.Warn("failed to close window", "err", err)
		}
	}
}
