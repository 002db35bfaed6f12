package loader

import (
	"github.com/Carmen-Shannon/oxy-forward/engine/model"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/texture"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithEnvironmentMap is an option builder that binds a cubemap to every material the Loader
// builds. The Loader holds its own reference until Release.
//
// Parameters:
//   - env: the environment cubemap
//
// Returns:
//   - LoaderBuilderOption: a function that applies the environment map option to a loader
func WithEnvironmentMap(env *texture.Texture) LoaderBuilderOption {
	return func(l *loader) {
		l.environmentMap = env
	}
}

// WithWorkers sets how many goroutines decode textures concurrently.
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithImported is an option builder that pre-populates the import cache with a model.
//
// Parameters:
//   - key: the cache key for the model
//   - imported: the imported model to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the imported model option to a loader
func WithImported(key string, imported *model.ImportedModel) LoaderBuilderOption {
	return func(l *loader) {
		l.importCache[key] = imported
	}
}
