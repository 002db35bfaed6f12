package shader

import "maps"

type LibraryBuilderOption func(*library)

// WithIncludes registers WGSL sources for @oxy:include. Later registrations of a name
// replace earlier ones.
//
// Parameters:
//   - includes: include name to WGSL source
//
// Returns:
//   - LibraryBuilderOption: a function that registers the includes
func WithIncludes(includes map[string]string) LibraryBuilderOption {
	return func(l *library) {
		maps.Copy(l.includes, includes)
	}
}

// WithValidation enables naga validation of every loaded source.
//
// Parameters:
//   - validate: whether to validate
//
// Returns:
//   - LibraryBuilderOption: a function that sets validation
func WithValidation(validate bool) LibraryBuilderOption {
	return func(l *library) {
		l.validate = validate
	}
}
