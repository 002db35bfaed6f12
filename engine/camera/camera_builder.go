package camera

import "github.com/Carmen-Shannon/oxy-forward/common"

type CameraBuilderOption func(*cameraImpl)

// WithLabel sets the camera's debug label, used as the prefix of its GPU resource labels.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - CameraBuilderOption: a function that sets the label
func WithLabel(label string) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.label = label
	}
}

// WithPosition sets the initial eye position.
//
// Parameters:
//   - position: world-space position
//
// Returns:
//   - CameraBuilderOption: a function that sets the position
func WithPosition(position common.Vec3) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.position = position
	}
}

// WithLookAt orients the camera from position toward target with the world up axis.
//
// Parameters:
//   - position: the eye position
//   - target: the point to face
//
// Returns:
//   - CameraBuilderOption: a function that applies LookAt
func WithLookAt(position, target common.Vec3) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.LookAt(position, target, common.WorldUp)
	}
}
