package light

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithLabel sets the light's debug label, used as the prefix of its uniform's labels.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - LightBuilderOption: a function that sets the label
func WithLabel(label string) LightBuilderOption {
	return func(l *lightImpl) {
		l.label = label
	}
}
