package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-forward/engine/model"
)

// loaderBackend defines the generic interface for importing models from files or streams.
// Concrete implementations (gltfLoaderBackend, objLoaderBackend) handle format-specific
// details and produce CPU-side model data only.
type loaderBackend interface {
	// Load imports a model file.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - *model.ImportedModel: the imported model data
	//   - error: error if loading fails
	Load(path string) (*model.ImportedModel, error)

	// LoadReader imports a model from a reader stream. Relative resource references, such as
	// material libraries or external images, resolve against baseDir.
	//
	// Parameters:
	//   - r: the reader providing model data
	//   - baseDir: the directory relative references resolve against
	//
	// Returns:
	//   - *model.ImportedModel: the imported model data
	//   - error: error if loading fails
	LoadReader(r io.Reader, baseDir string) (*model.ImportedModel, error)
}
