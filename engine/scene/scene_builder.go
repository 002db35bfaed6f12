package scene

import (
	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/camera"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithName sets the scene's identifier, used as the label prefix of its GPU objects.
//
// Parameters:
//   - name: the scene name
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithName(name string) SceneBuilderOption {
	return func(s *scene) {
		s.name = name
	}
}

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithClearColor sets the color the ambient pass clears to. Defaults to DefaultClearColor.
//
// Parameters:
//   - color: the RGBA clear color
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithClearColor(color common.Vec4) SceneBuilderOption {
	return func(s *scene) {
		s.clearColor = color
	}
}

// WithController attaches a camera controller that Update applies to the camera and the
// input methods feed.
//
// Parameters:
//   - controller: the controller
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithController(controller camera.CameraController) SceneBuilderOption {
	return func(s *scene) {
		s.controller = controller
	}
}
