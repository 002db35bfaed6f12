package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/model"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend/backendtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `# quad split across two materials
mtllib quad.mtl
o Quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl Brick
f 1/1/1 2/2/1 3/3/1 4/4/1
usemtl Stone
f 1/1/1 3/3/1 4/4/1
`

const quadMTL = `newmtl Brick
Ka 0.1 0.1 0.1
Kd 0.8 0.2 0.2
Ks 0.5 0.5 0.5
Ns 33
map_Kd tex.png

newmtl Stone
Kd 0.5 0.5 0.5
d 0.5
map_Kd tex.png
map_Bump -bm 1 missing.png
`

func newTestContext(t *testing.T) (renderer.Context, *backendtest.Device) {
	t.Helper()
	device := backendtest.NewDevice()
	ctx, err := renderer.New(backendtest.NewSurface(), device, 800, 600)
	require.NoError(t, err)
	return ctx, device
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range 16 {
		img.Set(i%4, i/4, color.RGBA{200, 100, 50, 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeQuad(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.obj"), []byte(quadOBJ), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.mtl"), []byte(quadMTL), 0o644))
	writePNG(t, filepath.Join(dir, "tex.png"))
	return filepath.Join(dir, "quad.obj")
}

// triangleGLTF builds a self-contained glTF document holding one triangle in the XY plane
// with no normals and a red material.
func triangleGLTF() string {
	var buf bytes.Buffer
	for _, f := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		_ = binary.Write(&buf, binary.LittleEndian, math.Float32bits(f))
	}
	for _, i := range []uint16{0, 1, 2} {
		_ = binary.Write(&buf, binary.LittleEndian, i)
	}
	uri := "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	return fmt.Sprintf(`{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"name": "TriScene", "nodes": [0]}],
  "nodes": [{"mesh": 0}],
  "meshes": [{"name": "Tri", "primitives": [{"attributes": {"POSITION": 0}, "indices": 1, "material": 0}]}],
  "materials": [{"name": "Red", "pbrMetallicRoughness": {"baseColorFactor": [1, 0, 0, 1], "metallicFactor": 0, "roughnessFactor": 0.5}}],
  "buffers": [{"byteLength": %d, "uri": %q}],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 36},
    {"buffer": 0, "byteOffset": 36, "byteLength": 6}
  ],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3", "min": [0, 0, 0], "max": [1, 1, 0]},
    {"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"}
  ]
}`, buf.Len(), uri)
}

func TestBackendTypeFor(t *testing.T) {
	for path, want := range map[string]LoaderBackendType{
		"a.gltf":    BackendTypeGLTF,
		"b.GLB":     BackendTypeGLTF,
		"dir/c.obj": BackendTypeOBJ,
		"dir/D.OBJ": BackendTypeOBJ,
	} {
		got, err := BackendTypeFor(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
	_, err := BackendTypeFor("model.fbx")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestImportUnsupportedFormat(t *testing.T) {
	ctx, _ := newTestContext(t)
	_, err := NewLoader(ctx).Import("scene.fbx")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestImportOBJ(t *testing.T) {
	ctx, _ := newTestContext(t)
	path := writeQuad(t)

	imported, err := NewLoader(ctx).Import(path)
	require.NoError(t, err)
	assert.Equal(t, "quad", imported.Name)

	require.Len(t, imported.Meshes, 2)
	brick, stone := imported.Meshes[0], imported.Meshes[1]
	assert.Equal(t, "Quad", brick.Name)
	assert.Equal(t, 0, brick.MaterialIndex)
	assert.Len(t, brick.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, brick.Indices)
	assert.Equal(t, [2]float32{1, 1}, brick.Vertices[2].TexCoords)
	assert.Equal(t, [3]float32{0, 0, 1}, brick.Vertices[0].Normal)
	assert.Equal(t, 1, stone.MaterialIndex)
	assert.Len(t, stone.Vertices, 3)

	require.Len(t, imported.Materials, 2)
	b, s := imported.Materials[0], imported.Materials[1]
	assert.Equal(t, "Brick", b.Name)
	assert.Equal(t, common.Vec4{0.1, 0.1, 0.1, 1}, b.Ambient)
	assert.Equal(t, common.Vec4{0.8, 0.2, 0.2, 1}, b.Diffuse)
	assert.InDelta(t, 0.25, b.Glossiness, 1e-6)
	assert.InDelta(t, 0.5, s.Diffuse[3], 1e-6)

	require.NotNil(t, b.DiffuseTexture)
	assert.Same(t, b.DiffuseTexture, s.DiffuseTexture)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "tex.png"), b.DiffuseTexture.Path)
	require.NotNil(t, s.NormalTexture)
	assert.True(t, s.NormalTexture.IsNormalMap)
	assert.Equal(t, "missing.png", s.NormalTexture.Name)
}

func TestImportIsCached(t *testing.T) {
	ctx, _ := newTestContext(t)
	path := writeQuad(t)
	l := NewLoader(ctx)

	first, err := l.Import(path)
	require.NoError(t, err)
	second, err := l.Import(path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Contains(t, l.Imported(), path)
}

func TestOBJGeneratesMissingNormals(t *testing.T) {
	ctx, _ := newTestContext(t)
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"
	imported, err := NewLoader(ctx).ImportReader("tri", strings.NewReader(src), BackendTypeOBJ, "")
	require.NoError(t, err)
	require.Len(t, imported.Meshes, 1)
	assert.Equal(t, "tri", imported.Name)
	for _, v := range imported.Meshes[0].Vertices {
		assert.InDelta(t, 1, v.Normal[2], 1e-6)
	}
}

func TestOBJRejectsBadIndex(t *testing.T) {
	ctx, _ := newTestContext(t)
	src := "v 0 0 0\nv 1 0 0\nf 1 2 7\n"
	_, err := NewLoader(ctx).ImportReader("bad", strings.NewReader(src), BackendTypeOBJ, "")
	assert.Error(t, err)
}

func TestOBJNegativeIndices(t *testing.T) {
	ctx, _ := newTestContext(t)
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nf -3 -2 -1\n"
	imported, err := NewLoader(ctx).ImportReader("neg", strings.NewReader(src), BackendTypeOBJ, "")
	require.NoError(t, err)
	assert.Equal(t, [3]float32{1, 0, 0}, imported.Meshes[0].Vertices[1].Position)
}

func TestImportGLTF(t *testing.T) {
	ctx, _ := newTestContext(t)
	imported, err := NewLoader(ctx).ImportReader("tri", strings.NewReader(triangleGLTF()), BackendTypeGLTF, "")
	require.NoError(t, err)

	assert.Equal(t, "TriScene", imported.Name)
	require.Len(t, imported.Meshes, 1)
	mesh := imported.Meshes[0]
	assert.Equal(t, "Tri_p0", mesh.Name)
	assert.Equal(t, []uint32{0, 1, 2}, mesh.Indices)
	require.Len(t, mesh.Vertices, 3)
	assert.Equal(t, [3]float32{1, 0, 0}, mesh.Vertices[1].Position)
	assert.InDelta(t, 1, mesh.Vertices[0].Normal[2], 1e-6)

	require.Len(t, imported.Materials, 1)
	mat := imported.Materials[0]
	assert.Equal(t, "Red", mat.Name)
	assert.Equal(t, common.Vec4{1, 0, 0, 1}, mat.Diffuse)
	assert.Equal(t, common.Vec4{0, 0, 0, 1}, mat.Specular)
	assert.InDelta(t, 0.25, mat.Glossiness, 1e-6)
}

func TestBuildSharesTexturesAndSkipsBroken(t *testing.T) {
	ctx, device := newTestContext(t)
	l := NewLoader(ctx, WithWorkers(2))

	m, err := l.Load(writeQuad(t), []model.Instance{{}, {Position: common.Vec3{2, 0, 0}}})
	require.NoError(t, err)
	assert.Equal(t, "quad", m.Name())
	assert.Len(t, m.Meshes(), 2)
	assert.Equal(t, uint32(2), m.InstanceCount())

	mats := m.Materials()
	require.Len(t, mats, 2)
	brick, stone := mats[0].Properties(), mats[1].Properties()
	require.NotNil(t, brick.DiffuseTexture)
	assert.Same(t, brick.DiffuseTexture, stone.DiffuseTexture)
	assert.Equal(t, int32(2), brick.DiffuseTexture.Refs())
	assert.Nil(t, stone.NormalTexture)
	assert.NotNil(t, device.TextureByLabel("tex.png"))

	assert.Equal(t, uint32(6), m.Meshes()[0].IndexCount)
	assert.Equal(t, uint32(3), m.Meshes()[1].IndexCount)
	assert.Equal(t, 1, m.Meshes()[1].Material)
}

func TestLoadIsCachedAndReleased(t *testing.T) {
	ctx, _ := newTestContext(t)
	l := NewLoader(ctx)
	path := writeQuad(t)

	first, err := l.Load(path, []model.Instance{{}})
	require.NoError(t, err)
	second, err := l.Load(path, nil)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, first, l.Get(path))

	l.Release()
	assert.Empty(t, l.Models())
	assert.True(t, first.InstanceBuffer().(*backendtest.Buffer).Released)
}

func TestBuildAddsDefaultMaterial(t *testing.T) {
	ctx, _ := newTestContext(t)
	vertices, indices := model.Cube(1)
	imported := &model.ImportedModel{
		Meshes: []model.ImportedMesh{{Vertices: vertices, Indices: indices, MaterialIndex: 3}},
	}
	m, err := NewLoader(ctx).Build(imported, []model.Instance{{}})
	require.NoError(t, err)
	assert.Len(t, m.Materials(), 1)
	assert.Equal(t, 0, m.Meshes()[0].Material)
	assert.True(t, strings.HasPrefix(m.Name(), "model-"))
}

func TestBuildRejectsEmptyModel(t *testing.T) {
	ctx, _ := newTestContext(t)
	_, err := NewLoader(ctx).Build(&model.ImportedModel{Name: "empty"}, nil)
	assert.Error(t, err)
}
