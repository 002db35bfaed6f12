package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/logger"
	"github.com/Carmen-Shannon/oxy-forward/engine/model"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	doc *gltf.Document
}

// gltfMeshExtractor extracts triangle primitives from a glTF document into ImportedMeshes.
type gltfMeshExtractor interface {
	// ExtractMesh extracts every triangle primitive of one mesh. Each primitive becomes its own
	// ImportedMesh since each carries its own material.
	//
	// Parameters:
	//   - meshIndex: the index of the mesh in the document
	//
	// Returns:
	//   - []model.ImportedMesh: one entry per triangle primitive
	//   - error: error if an accessor cannot be read
	ExtractMesh(meshIndex int) ([]model.ImportedMesh, error)

	// ExtractAllMeshes extracts every mesh in the document.
	//
	// Returns:
	//   - []model.ImportedMesh: the primitives of every mesh, in document order
	//   - error: error if extraction fails
	ExtractAllMeshes() ([]model.ImportedMesh, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

// newGLTFMeshExtractor creates a mesh extractor for a decoded document.
//
// Parameters:
//   - doc: the decoded document
//
// Returns:
//   - gltfMeshExtractor: the mesh extractor
func newGLTFMeshExtractor(doc *gltf.Document) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{doc: doc}
}

func (e *gltfMeshExtractorImpl) ExtractMesh(meshIndex int) ([]model.ImportedMesh, error) {
	if meshIndex < 0 || meshIndex >= len(e.doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", meshIndex)
	}
	mesh := e.doc.Meshes[meshIndex]
	name := mesh.Name
	if name == "" {
		name = fmt.Sprintf("mesh_%d", meshIndex)
	}

	var out []model.ImportedMesh
	for i, prim := range mesh.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			logger.Warn("skipping non-triangle primitive", "mesh", name, "primitive", i)
			continue
		}
		imported, err := e.extractPrimitive(prim, fmt.Sprintf("%s_p%d", name, i))
		if err != nil {
			return nil, fmt.Errorf("mesh %q primitive %d: %w", name, i, err)
		}
		out = append(out, *imported)
	}
	return out, nil
}

func (e *gltfMeshExtractorImpl) ExtractAllMeshes() ([]model.ImportedMesh, error) {
	var out []model.ImportedMesh
	for i := range e.doc.Meshes {
		meshes, err := e.ExtractMesh(i)
		if err != nil {
			return nil, err
		}
		out = append(out, meshes...)
	}
	return out, nil
}

// extractPrimitive reads positions, normals, texture coordinates and indices of one primitive.
// Missing normals are generated from the faces; a missing index accessor yields a sequential
// index list. Tangent frames are left to the model builder.
func (e *gltfMeshExtractorImpl) extractPrimitive(prim *gltf.Primitive, name string) (*model.ImportedMesh, error) {
	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(e.doc, e.doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	var normals [][3]float32
	if idx, ok := prim.Attributes["NORMAL"]; ok {
		if normals, err = modeler.ReadNormal(e.doc, e.doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
	}
	var uvs [][2]float32
	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		if uvs, err = modeler.ReadTextureCoord(e.doc, e.doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("texture coordinates: %w", err)
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = modeler.ReadIndices(e.doc, e.doc.Accessors[*prim.Indices], nil); err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	for _, idx := range indices {
		if int(idx) >= len(positions) {
			return nil, fmt.Errorf("index %d out of range of %d vertices", idx, len(positions))
		}
	}

	vertices := make([]model.Vertex, len(positions))
	for i, p := range positions {
		vertices[i].Position = p
		if i < len(normals) {
			vertices[i].Normal = normals[i]
		}
		if i < len(uvs) {
			vertices[i].TexCoords = uvs[i]
		}
	}
	if len(normals) == 0 {
		generateNormals(vertices, indices)
	}

	material := 0
	if prim.Material != nil {
		material = *prim.Material
	}
	return &model.ImportedMesh{
		Name:          name,
		Vertices:      vertices,
		Indices:       indices,
		MaterialIndex: material,
	}, nil
}

// generateNormals computes smooth per-vertex normals by accumulating area-weighted face
// normals and normalizing. Vertices touched by no face point up.
//
// Parameters:
//   - vertices: the vertex slice to write normal data into
//   - indices: the triangle index buffer
func generateNormals(vertices []model.Vertex, indices []uint32) {
	accum := make([]common.Vec3, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		p0, p1, p2 := common.Vec3(vertices[i0].Position), common.Vec3(vertices[i1].Position), common.Vec3(vertices[i2].Position)
		face := p1.Sub(p0).Cross(p2.Sub(p0))
		for _, idx := range []uint32{i0, i1, i2} {
			accum[idx] = accum[idx].Add(face)
		}
	}
	for i := range vertices {
		if accum[i].Length() < 1e-6 {
			vertices[i].Normal = [3]float32{0, 1, 0}
			continue
		}
		vertices[i].Normal = accum[i].Normalize()
	}
}
