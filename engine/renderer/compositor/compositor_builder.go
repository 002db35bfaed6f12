package compositor

// CompositorBuilderOption is a functional option used to configure a Compositor during construction.
type CompositorBuilderOption func(*compositor)

// WithLabel sets the label prefix of the compositor's GPU objects. Defaults to "Compositor".
//
// Parameters:
//   - label: the label prefix
//
// Returns:
//   - CompositorBuilderOption: a function that applies the label
func WithLabel(label string) CompositorBuilderOption {
	return func(c *compositor) {
		c.label = label
	}
}
