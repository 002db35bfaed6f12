package target

type RenderTargetBuilderOption func(*renderTarget)

// WithColor enables or disables the color attachment. Enabled by default.
func WithColor(enabled bool) RenderTargetBuilderOption {
	return func(t *renderTarget) {
		t.withColor = enabled
	}
}

// WithDepth enables or disables the depth attachment. Enabled by default.
func WithDepth(enabled bool) RenderTargetBuilderOption {
	return func(t *renderTarget) {
		t.withDepth = enabled
	}
}
