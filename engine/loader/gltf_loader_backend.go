package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-forward/engine/model"
	"github.com/qmuntal/gltf"
)

// gltfLoaderBackendImpl is the implementation of gltfLoaderBackend.
type gltfLoaderBackendImpl struct{}

// gltfLoaderBackend is a loaderBackend implementation for glTF/GLB files.
// It decodes the document with qmuntal/gltf and runs the mesh and material extractors over it.
type gltfLoaderBackend interface {
	loaderBackend
}

var _ gltfLoaderBackend = &gltfLoaderBackendImpl{}

// newGLTFLoaderBackend creates a new glTF loader backend.
//
// Returns:
//   - gltfLoaderBackend: the loader backend for glTF/GLB files
func newGLTFLoaderBackend() gltfLoaderBackend {
	return &gltfLoaderBackendImpl{}
}

func (b *gltfLoaderBackendImpl) Load(path string) (*model.ImportedModel, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return b.importDocument(doc, filepath.Dir(path), path)
}

// LoadReader accepts both glTF JSON and GLB; the decoder detects the binary header.
func (b *gltfLoaderBackendImpl) LoadReader(r io.Reader, baseDir string) (*model.ImportedModel, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to parse from reader: %w", err)
	}
	return b.importDocument(doc, baseDir, "")
}

// importDocument extracts meshes and materials from a decoded document.
//
// Parameters:
//   - doc: the decoded document
//   - baseDir: the directory external image URIs resolve against
//   - fallbackPath: optional file path used as a fallback for model naming
func (b *gltfLoaderBackendImpl) importDocument(doc *gltf.Document, baseDir, fallbackPath string) (*model.ImportedModel, error) {
	meshes, err := newGLTFMeshExtractor(doc).ExtractAllMeshes()
	if err != nil {
		return nil, fmt.Errorf("mesh extraction failed: %w", err)
	}
	if len(meshes) == 0 {
		return nil, fmt.Errorf("no triangle meshes in document")
	}

	materials, err := newGLTFMaterialExtractor(doc, baseDir).ExtractAllMaterials()
	if err != nil {
		return nil, fmt.Errorf("material extraction failed: %w", err)
	}

	return &model.ImportedModel{
		Name:      gltfExtractModelName(doc, fallbackPath),
		Meshes:    meshes,
		Materials: materials,
	}, nil
}

// gltfExtractModelName derives a model name from the default scene or a file path fallback.
func gltfExtractModelName(doc *gltf.Document, fallbackPath string) string {
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		if name := doc.Scenes[*doc.Scene].Name; name != "" {
			return name
		}
	}
	if fallbackPath != "" {
		return strings.TrimSuffix(filepath.Base(fallbackPath), filepath.Ext(fallbackPath))
	}
	return ""
}
