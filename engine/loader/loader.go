package loader

import (
	"errors"
	"fmt"
	"image"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/logger"
	"github.com/Carmen-Shannon/oxy-forward/engine/model"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/texture"
	"github.com/google/uuid"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota

	// BackendTypeOBJ selects the Wavefront OBJ/MTL loader backend.
	BackendTypeOBJ
)

// ErrUnsupported is returned for file extensions no backend handles.
var ErrUnsupported = errors.New("unsupported model format")

// BackendTypeFor resolves the backend for a file path from its extension.
//
// Parameters:
//   - path: the model file path
//
// Returns:
//   - LoaderBackendType: the backend handling the extension
//   - error: ErrUnsupported for unknown extensions
func BackendTypeFor(path string) (LoaderBackendType, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gltf", ".glb":
		return BackendTypeGLTF, nil
	case ".obj":
		return BackendTypeOBJ, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	ctx renderer.Context

	workers        int
	environmentMap *texture.Texture

	importCache map[string]*model.ImportedModel
	modelCache  map[string]model.Model

	backends map[LoaderBackendType]loaderBackend
}

// Loader defines the public-facing interface for loading and caching 3D models and textures.
// It abstracts the file format (glTF, GLB, OBJ) behind a generic backend, decodes material
// textures in parallel and builds GPU models from the imported data.
type Loader interface {
	// Import parses a model file into CPU-side data and caches the result by path.
	// The backend is selected based on the file extension.
	//
	// Parameters:
	//   - path: the file path to the model file
	//
	// Returns:
	//   - *model.ImportedModel: the imported model
	//   - error: error if parsing fails or the format is unsupported
	Import(path string) (*model.ImportedModel, error)

	// ImportReader parses a model from a reader stream and caches it by name.
	//
	// Parameters:
	//   - name: the cache key for the imported model
	//   - r: the reader providing model data
	//   - backendType: the format of the stream
	//   - baseDir: the directory relative references resolve against
	//
	// Returns:
	//   - *model.ImportedModel: the imported model
	//   - error: error if parsing fails
	ImportReader(name string, r io.Reader, backendType LoaderBackendType, baseDir string) (*model.ImportedModel, error)

	// Load imports a model file and builds a GPU model from it with the given instances.
	// Models are cached by path; a cached model is returned as is.
	//
	// Parameters:
	//   - path: the file path to the model file
	//   - instances: the instances to draw
	//
	// Returns:
	//   - model.Model: the loaded model
	//   - error: error if loading fails
	Load(path string, instances []model.Instance) (model.Model, error)

	// LoadReader imports a model from a reader stream and builds a GPU model cached by name.
	//
	// Parameters:
	//   - name: the cache key for the loaded model
	//   - r: the reader providing model data
	//   - backendType: the format of the stream
	//   - baseDir: the directory relative references resolve against
	//   - instances: the instances to draw
	//
	// Returns:
	//   - model.Model: the loaded model
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, backendType LoaderBackendType, baseDir string, instances []model.Instance) (model.Model, error)

	// Build uploads imported data as a new model. Textures shared between materials are
	// uploaded once. Textures that fail to decode are logged and left unbound.
	//
	// Parameters:
	//   - imported: the CPU-side model
	//   - instances: the instances to draw
	//
	// Returns:
	//   - model.Model: the built model
	//   - error: error if GPU resource creation fails
	Build(imported *model.ImportedModel, instances []model.Instance) (model.Model, error)

	// LoadTexture reads and uploads an image file with mips.
	//
	// Parameters:
	//   - path: the image file path
	//   - isNormalMap: upload in a linear format
	//
	// Returns:
	//   - *texture.Texture: the texture
	//   - error: error if reading or decoding fails
	LoadTexture(path string, isNormalMap bool) (*texture.Texture, error)

	// LoadCubemap reads and uploads a DDS cubemap file.
	//
	// Parameters:
	//   - path: the DDS file path
	//
	// Returns:
	//   - *texture.Texture: the cube texture
	//   - error: error if reading or parsing fails
	LoadCubemap(path string) (*texture.Texture, error)

	// Get retrieves a cached model by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - model.Model: the cached model or nil
	Get(name string) model.Model

	// Models returns a copy of the model cache.
	//
	// Returns:
	//   - map[string]model.Model: all cached models keyed by name
	Models() map[string]model.Model

	// Imported returns a copy of the import cache.
	//
	// Returns:
	//   - map[string]*model.ImportedModel: all imported models keyed by name
	Imported() map[string]*model.ImportedModel

	// Release frees every cached model and the environment map reference.
	Release()
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the options applied.
//
// Parameters:
//   - ctx: the renderer context models are built on
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader
func NewLoader(ctx renderer.Context, options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:          sync.RWMutex{},
		ctx:         ctx,
		workers:     4,
		importCache: make(map[string]*model.ImportedModel),
		modelCache:  make(map[string]model.Model),
		backends: map[LoaderBackendType]loaderBackend{
			BackendTypeGLTF: newGLTFLoaderBackend(),
			BackendTypeOBJ:  newOBJLoaderBackend(),
		},
	}
	for _, option := range options {
		option(l)
	}
	if l.environmentMap != nil {
		l.environmentMap.Retain()
	}
	return l
}

func (l *loader) Import(path string) (*model.ImportedModel, error) {
	l.mu.RLock()
	if cached, ok := l.importCache[path]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	backendType, err := BackendTypeFor(path)
	if err != nil {
		return nil, err
	}
	imported, err := l.backends[backendType].Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if imported.Name == "" {
		imported.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	l.mu.Lock()
	l.importCache[path] = imported
	l.mu.Unlock()

	logger.Debug("imported model", "path", path, "meshes", len(imported.Meshes), "materials", len(imported.Materials))
	return imported, nil
}

func (l *loader) ImportReader(name string, r io.Reader, backendType LoaderBackendType, baseDir string) (*model.ImportedModel, error) {
	l.mu.RLock()
	if cached, ok := l.importCache[name]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	backend, ok := l.backends[backendType]
	if !ok {
		return nil, fmt.Errorf("%w: backend %d", ErrUnsupported, backendType)
	}
	imported, err := backend.LoadReader(r, baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}
	if imported.Name == "" {
		imported.Name = name
	}

	l.mu.Lock()
	l.importCache[name] = imported
	l.mu.Unlock()
	return imported, nil
}

func (l *loader) Load(path string, instances []model.Instance) (model.Model, error) {
	if cached := l.Get(path); cached != nil {
		return cached, nil
	}
	imported, err := l.Import(path)
	if err != nil {
		return nil, err
	}
	return l.buildAndCache(path, imported, instances)
}

func (l *loader) LoadReader(name string, r io.Reader, backendType LoaderBackendType, baseDir string, instances []model.Instance) (model.Model, error) {
	if cached := l.Get(name); cached != nil {
		return cached, nil
	}
	imported, err := l.ImportReader(name, r, backendType, baseDir)
	if err != nil {
		return nil, err
	}
	return l.buildAndCache(name, imported, instances)
}

func (l *loader) buildAndCache(key string, imported *model.ImportedModel, instances []model.Instance) (model.Model, error) {
	m, err := l.Build(imported, instances)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.modelCache[key] = m
	l.mu.Unlock()
	return m, nil
}

func (l *loader) Build(imported *model.ImportedModel, instances []model.Instance) (model.Model, error) {
	if imported == nil || len(imported.Meshes) == 0 {
		return nil, fmt.Errorf("model has no meshes")
	}
	name := imported.Name
	if name == "" {
		name = "model-" + uuid.NewString()
	}
	device, queue := l.ctx.Device(), l.ctx.Queue()

	textures := l.uploadTextures(name, imported.Materials)

	materials := make([]material.Material, 0, max(len(imported.Materials), 1))
	release := func() {
		for _, mat := range materials {
			mat.Release()
		}
	}
	for i, imp := range imported.Materials {
		options := []material.MaterialBuilderOption{
			material.WithName(common.Coalesce(imp.Name, fmt.Sprintf("%s material %d", name, i))),
			material.WithAmbient(imp.Ambient),
			material.WithDiffuse(imp.Diffuse),
			material.WithSpecular(imp.Specular),
			material.WithGlossiness(imp.Glossiness),
		}
		if tex := textures.take(imp.DiffuseTexture); tex != nil {
			options = append(options, material.WithDiffuseTexture(tex))
		}
		if tex := textures.take(imp.NormalTexture); tex != nil {
			options = append(options, material.WithNormalTexture(tex))
		}
		if tex := textures.take(imp.GlossinessTexture); tex != nil {
			options = append(options, material.WithGlossinessTexture(tex))
		}
		if l.environmentMap != nil {
			options = append(options, material.WithEnvironmentMap(l.environmentMap))
		}
		mat, err := material.New(device, queue, options...)
		if err != nil {
			release()
			textures.release()
			return nil, fmt.Errorf("model %q: %w", name, err)
		}
		materials = append(materials, mat)
	}
	textures.release()

	if len(materials) == 0 {
		options := []material.MaterialBuilderOption{material.WithName(name + " default material")}
		if l.environmentMap != nil {
			options = append(options, material.WithEnvironmentMap(l.environmentMap))
		}
		mat, err := material.New(device, queue, options...)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", name, err)
		}
		materials = append(materials, mat)
	}

	meshes := make([]*model.Mesh, 0, len(imported.Meshes))
	for i, im := range imported.Meshes {
		matIdx := im.MaterialIndex
		if matIdx < 0 || matIdx >= len(materials) {
			logger.Warn("mesh material out of range, using first material", "model", name, "mesh", im.Name, "material", matIdx)
			matIdx = 0
		}
		meshName := common.Coalesce(im.Name, fmt.Sprintf("%s mesh %d", name, i))
		vertices := append([]model.Vertex(nil), im.Vertices...)
		model.ComputeTangents(vertices, im.Indices)
		mesh, err := model.NewMesh(device, queue, meshName, vertices, im.Indices, matIdx)
		if err != nil {
			for _, m := range meshes {
				m.Release()
			}
			release()
			return nil, fmt.Errorf("model %q: %w", name, err)
		}
		meshes = append(meshes, mesh)
	}

	m, err := model.New(device, queue, meshes, materials, instances, model.WithName(name))
	if err != nil {
		for _, mesh := range meshes {
			mesh.Release()
		}
		release()
		return nil, err
	}
	logger.Info("loaded model", "name", name, "meshes", len(meshes), "materials", len(materials), "instances", len(instances))
	return m, nil
}

// decodedTexture is the result of one worker decode.
type decodedTexture struct {
	img image.Image
	err error
}

// textureSet maps each unique imported texture to its uploaded texture. Each material that
// binds a texture takes one reference; the set drops its own reference on release.
type textureSet map[*common.ImportedTexture]*texture.Texture

func (s textureSet) take(imp *common.ImportedTexture) *texture.Texture {
	tex, ok := s[imp]
	if !ok || tex == nil {
		return nil
	}
	return tex.Retain()
}

func (s textureSet) release() {
	for k, tex := range s {
		tex.Release()
		delete(s, k)
	}
}

// uploadTextures decodes every unique texture of the materials on a worker pool, then
// uploads the decoded images on the calling goroutine.
func (l *loader) uploadTextures(modelName string, materials []common.ImportedMaterial) textureSet {
	var unique []*common.ImportedTexture
	seen := make(map[*common.ImportedTexture]bool)
	for _, mat := range materials {
		for _, tex := range []*common.ImportedTexture{mat.DiffuseTexture, mat.NormalTexture, mat.GlossinessTexture} {
			if tex != nil && !seen[tex] {
				seen[tex] = true
				unique = append(unique, tex)
			}
		}
	}
	set := make(textureSet, len(unique))
	if len(unique) == 0 {
		return set
	}

	results := make([]decodedTexture, len(unique))
	pool := worker.NewDynamicWorkerPool(min(l.workers, len(unique)), len(unique), time.Second)
	var wg sync.WaitGroup
	for i, tex := range unique {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID:      i,
			Payload: tex,
			Do: func() (any, error) {
				defer wg.Done()
				img, err := tex.Decode()
				results[i] = decodedTexture{img: img, err: err}
				return nil, err
			},
		})
	}
	wg.Wait()
	pool.Stop()

	device, queue := l.ctx.Device(), l.ctx.Queue()
	for i, imp := range unique {
		label := common.Coalesce(imp.Name, imp.Path, "texture-"+uuid.NewString())
		if results[i].err != nil {
			logger.Warn("skipping texture", "model", modelName, "texture", label, "err", results[i].err)
			continue
		}
		tex, err := texture.FromDecoded(device, queue, imp, results[i].img, label)
		if err != nil {
			logger.Warn("skipping texture", "model", modelName, "texture", label, "err", err)
			continue
		}
		set[imp] = tex
	}
	return set
}

func (l *loader) LoadTexture(path string, isNormalMap bool) (*texture.Texture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", path, err)
	}
	return texture.FromBytes(l.ctx.Device(), l.ctx.Queue(), data, path, isNormalMap, true)
}

func (l *loader) LoadCubemap(path string) (*texture.Texture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cubemap %s: %w", path, err)
	}
	return texture.CubemapFromDDS(l.ctx.Device(), l.ctx.Queue(), data, path)
}

func (l *loader) Get(name string) model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[name]
}

func (l *loader) Models() map[string]model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.modelCache)
}

func (l *loader) Imported() map[string]*model.ImportedModel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.importCache)
}

func (l *loader) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, m := range l.modelCache {
		m.Release()
		delete(l.modelCache, key)
	}
	if l.environmentMap != nil {
		l.environmentMap.Release()
		l.environmentMap = nil
	}
}
