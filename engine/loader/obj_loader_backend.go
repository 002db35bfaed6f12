package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/logger"
	"github.com/Carmen-Shannon/oxy-forward/engine/model"
)

// objLoaderBackendImpl is the implementation of objLoaderBackend.
type objLoaderBackendImpl struct{}

// objLoaderBackend is a loaderBackend implementation for Wavefront OBJ files with MTL
// material libraries. Faces are fan-triangulated and vertices are deduplicated per mesh on
// their position/texcoord/normal index triple.
type objLoaderBackend interface {
	loaderBackend
}

var _ objLoaderBackend = &objLoaderBackendImpl{}

// newOBJLoaderBackend creates a new OBJ loader backend.
//
// Returns:
//   - objLoaderBackend: the loader backend for OBJ files
func newOBJLoaderBackend() objLoaderBackend {
	return &objLoaderBackendImpl{}
}

func (b *objLoaderBackendImpl) Load(path string) (*model.ImportedModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open OBJ file: %w", err)
	}
	defer f.Close()

	imported, err := b.LoadReader(f, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	imported.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return imported, nil
}

func (b *objLoaderBackendImpl) LoadReader(r io.Reader, baseDir string) (*model.ImportedModel, error) {
	p := &objParser{
		baseDir:   baseDir,
		materials: make(map[string]int),
		textures:  make(map[string]*common.ImportedTexture),
	}
	if err := p.parse(r); err != nil {
		return nil, err
	}
	if len(p.meshes) == 0 {
		return nil, fmt.Errorf("no mesh data found in OBJ file")
	}
	return &model.ImportedModel{
		Meshes:    p.meshes,
		Materials: p.imported,
	}, nil
}

// objMeshState accumulates the mesh currently being parsed.
type objMeshState struct {
	mesh       model.ImportedMesh
	vertexMap  map[string]uint32
	hasNormals bool
}

// objParser holds the state of one OBJ parse.
type objParser struct {
	baseDir string

	positions []common.Vec3
	normals   []common.Vec3
	uvs       [][2]float32

	current  *objMeshState
	name     string
	material int

	meshes    []model.ImportedMesh
	imported  []common.ImportedMaterial
	materials map[string]int
	textures  map[string]*common.ImportedTexture
}

func (p *objParser) parse(r io.Reader) error {
	p.name = "default"
	p.begin()

	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)

		switch parts[0] {
		case "v":
			v, err := parseFloats(parts[1:], 3)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			p.positions = append(p.positions, common.Vec3{v[0], v[1], v[2]})
		case "vn":
			v, err := parseFloats(parts[1:], 3)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			p.normals = append(p.normals, common.Vec3{v[0], v[1], v[2]})
		case "vt":
			v, err := parseFloats(parts[1:], 2)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			p.uvs = append(p.uvs, [2]float32{v[0], v[1]})
		case "f":
			if err := p.face(parts[1:]); err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
		case "o", "g":
			p.flush()
			p.name = "unnamed"
			if len(parts) > 1 {
				p.name = parts[1]
			}
			p.begin()
		case "usemtl":
			idx := 0
			if len(parts) > 1 {
				if found, ok := p.materials[parts[1]]; ok {
					idx = found
				} else {
					logger.Warn("unknown OBJ material", "material", parts[1])
				}
			}
			if idx != p.material {
				p.flush()
				p.material = idx
				p.begin()
			}
		case "mtllib":
			for _, lib := range parts[1:] {
				if err := p.loadMTL(filepath.Join(p.baseDir, lib)); err != nil {
					return fmt.Errorf("line %d: %w", lineNo, err)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read OBJ: %w", err)
	}
	p.flush()
	return nil
}

// begin starts a new mesh under the current name and material.
func (p *objParser) begin() {
	p.current = &objMeshState{
		mesh:      model.ImportedMesh{Name: p.name, MaterialIndex: p.material},
		vertexMap: make(map[string]uint32),
	}
}

// flush appends the current mesh when it holds any triangles.
func (p *objParser) flush() {
	if p.current == nil || len(p.current.mesh.Indices) == 0 {
		return
	}
	if !p.current.hasNormals {
		generateNormals(p.current.mesh.Vertices, p.current.mesh.Indices)
	}
	p.meshes = append(p.meshes, p.current.mesh)
	p.current = nil
}

// face adds a polygon to the current mesh, fan-triangulated.
func (p *objParser) face(refs []string) error {
	if len(refs) < 3 {
		return fmt.Errorf("face with %d vertices", len(refs))
	}
	cur := p.current
	corners := make([]uint32, 0, len(refs))
	for _, ref := range refs {
		if idx, ok := cur.vertexMap[ref]; ok {
			corners = append(corners, idx)
			continue
		}
		v, hasNormal, err := p.vertex(ref)
		if err != nil {
			return err
		}
		cur.hasNormals = cur.hasNormals || hasNormal
		idx := uint32(len(cur.mesh.Vertices))
		cur.mesh.Vertices = append(cur.mesh.Vertices, v)
		cur.vertexMap[ref] = idx
		corners = append(corners, idx)
	}
	for i := 2; i < len(corners); i++ {
		cur.mesh.Indices = append(cur.mesh.Indices, corners[0], corners[i-1], corners[i])
	}
	return nil
}

// vertex resolves one "v/vt/vn" face reference. Indices are 1-based; negative indices count
// back from the end of the list.
func (p *objParser) vertex(ref string) (model.Vertex, bool, error) {
	var v model.Vertex
	fields := strings.Split(ref, "/")

	pi, err := resolveIndex(fields[0], len(p.positions))
	if err != nil {
		return v, false, fmt.Errorf("position %q: %w", ref, err)
	}
	v.Position = p.positions[pi]

	if len(fields) > 1 && fields[1] != "" {
		ti, err := resolveIndex(fields[1], len(p.uvs))
		if err != nil {
			return v, false, fmt.Errorf("texcoord %q: %w", ref, err)
		}
		v.TexCoords = p.uvs[ti]
	}
	hasNormal := false
	if len(fields) > 2 && fields[2] != "" {
		ni, err := resolveIndex(fields[2], len(p.normals))
		if err != nil {
			return v, false, fmt.Errorf("normal %q: %w", ref, err)
		}
		v.Normal = p.normals[ni]
		hasNormal = true
	}
	return v, hasNormal, nil
}

func resolveIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i = n + i
	} else {
		i--
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("index out of range of %d", n)
	}
	return i, nil
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d components, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := range n {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

// loadMTL parses a material library. Texture paths resolve against the library's directory
// and textures referenced by more than one material share one ImportedTexture.
func (p *objParser) loadMTL(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open MTL file: %w", err)
	}
	defer f.Close()
	dir := filepath.Dir(path)

	var current *common.ImportedMaterial
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if parts[0] == "newmtl" {
			if len(parts) < 2 {
				return fmt.Errorf("%s: newmtl without a name", path)
			}
			p.materials[parts[1]] = len(p.imported)
			p.imported = append(p.imported, common.ImportedMaterial{
				Name:       parts[1],
				Ambient:    common.Vec4{1, 1, 1, 1},
				Diffuse:    common.Vec4{1, 1, 1, 1},
				Specular:   common.Vec4{1, 1, 1, 1},
				Glossiness: 0,
			})
			current = &p.imported[len(p.imported)-1]
			continue
		}
		if current == nil || len(parts) < 2 {
			continue
		}

		switch parts[0] {
		case "Ka", "Kd", "Ks":
			c, err := parseFloats(parts[1:], 3)
			if err != nil {
				return fmt.Errorf("%s: %s: %w", path, parts[0], err)
			}
			color := common.Vec4{c[0], c[1], c[2], 1}
			switch parts[0] {
			case "Ka":
				current.Ambient = color
			case "Kd":
				current.Diffuse = color
			default:
				current.Specular = color
			}
		case "Ns":
			ns, err := strconv.ParseFloat(parts[1], 32)
			if err != nil {
				return fmt.Errorf("%s: Ns: %w", path, err)
			}
			current.Glossiness = max(float32(ns)-1, 0) / 128
		case "d":
			d, err := strconv.ParseFloat(parts[1], 32)
			if err == nil {
				current.Diffuse[3] = float32(d)
			}
		case "map_Kd":
			current.DiffuseTexture = p.texture(dir, parts, false)
		case "map_Bump", "map_bump", "bump", "norm":
			current.NormalTexture = p.texture(dir, parts, true)
		case "map_Ns":
			current.GlossinessTexture = p.texture(dir, parts, true)
		}
	}
	return scanner.Err()
}

// texture returns the shared ImportedTexture for the last field of a map statement, skipping
// any options before it.
func (p *objParser) texture(dir string, parts []string, linear bool) *common.ImportedTexture {
	path := filepath.Join(dir, filepath.FromSlash(parts[len(parts)-1]))
	if tex, ok := p.textures[path]; ok {
		return tex
	}
	tex := &common.ImportedTexture{
		Name:        filepath.Base(path),
		Path:        path,
		IsNormalMap: linear,
	}
	p.textures[path] = tex
	return tex
}
