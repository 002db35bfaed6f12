package camera

type CameraControllerBuilderOption func(*cameraController)

// WithSpeed sets the translation speed in units per second.
//
// Parameters:
//   - speed: the speed
//
// Returns:
//   - CameraControllerBuilderOption: a function that sets the speed
func WithSpeed(speed float32) CameraControllerBuilderOption {
	return func(c *cameraController) {
		c.speed = speed
	}
}

// WithSensitivity sets the rotation sensitivity.
//
// Parameters:
//   - sensitivity: the sensitivity
//
// Returns:
//   - CameraControllerBuilderOption: a function that sets the sensitivity
func WithSensitivity(sensitivity float32) CameraControllerBuilderOption {
	return func(c *cameraController) {
		c.sensitivity = sensitivity
	}
}

// WithZoom sets the initial zoom, clamped to [-100, 100].
func WithZoom(zoom float32) CameraControllerBuilderOption {
	return func(c *cameraController) {
		c.zoom = min(max(zoom, -zoomLimit), zoomLimit)
	}
}
