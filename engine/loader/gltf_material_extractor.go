package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// gltfSpecularScale converts the metallic factor into a grey specular reflectance.
const gltfSpecularScale = 0.7

// gltfMaterialExtractorImpl is the implementation of the gltfMaterialExtractor interface.
type gltfMaterialExtractorImpl struct {
	doc     *gltf.Document
	baseDir string
}

// gltfMaterialExtractor defines the interface for extracting material and texture data
// from a decoded glTF document into engine-ready ImportedMaterial structs.
// Metallic-roughness parameters are mapped onto the Blinn-Phong model the renderer shades with.
type gltfMaterialExtractor interface {
	// ExtractMaterial extracts a single material by index, including loading any referenced texture data.
	//
	// Parameters:
	//   - materialIndex: the index of the material in the document
	//
	// Returns:
	//   - common.ImportedMaterial: the extracted material with any embedded texture data loaded
	//   - error: error if extraction fails
	ExtractMaterial(materialIndex int) (common.ImportedMaterial, error)

	// ExtractAllMaterials extracts all materials from the document.
	//
	// Returns:
	//   - []common.ImportedMaterial: all extracted materials
	//   - error: error if extraction fails
	ExtractAllMaterials() ([]common.ImportedMaterial, error)
}

var _ gltfMaterialExtractor = &gltfMaterialExtractorImpl{}

// newGLTFMaterialExtractor creates a new material extractor for a decoded document.
//
// Parameters:
//   - doc: the decoded document
//   - baseDir: the directory external image URIs resolve against
//
// Returns:
//   - gltfMaterialExtractor: the material extractor
func newGLTFMaterialExtractor(doc *gltf.Document, baseDir string) gltfMaterialExtractor {
	return &gltfMaterialExtractorImpl{doc: doc, baseDir: baseDir}
}

func (e *gltfMaterialExtractorImpl) ExtractMaterial(materialIndex int) (common.ImportedMaterial, error) {
	if materialIndex < 0 || materialIndex >= len(e.doc.Materials) {
		return common.ImportedMaterial{}, fmt.Errorf("material index %d out of range", materialIndex)
	}
	mat := e.doc.Materials[materialIndex]

	result := common.ImportedMaterial{
		Name:       mat.Name,
		Ambient:    common.Vec4{1, 1, 1, 1},
		Diffuse:    common.Vec4{1, 1, 1, 1},
		Specular:   common.Vec4{gltfSpecularScale, gltfSpecularScale, gltfSpecularScale, 1},
		Glossiness: 0,
	}
	if result.Name == "" {
		result.Name = fmt.Sprintf("material_%d", materialIndex)
	}

	if pbr := mat.PBRMetallicRoughness; pbr != nil {
		base := pbr.BaseColorFactorOrDefault()
		result.Diffuse = common.Vec4{float32(base[0]), float32(base[1]), float32(base[2]), float32(base[3])}
		result.Ambient = result.Diffuse

		metallic := float32(pbr.MetallicFactorOrDefault()) * gltfSpecularScale
		result.Specular = common.Vec4{metallic, metallic, metallic, 1}

		smooth := 1 - float32(pbr.RoughnessFactorOrDefault())
		result.Glossiness = smooth * smooth

		if pbr.BaseColorTexture != nil {
			tex, err := e.loadTexture(pbr.BaseColorTexture.Index, false)
			if err != nil {
				return result, fmt.Errorf("material %q: base color texture: %w", result.Name, err)
			}
			result.DiffuseTexture = tex
		}
		if pbr.MetallicRoughnessTexture != nil {
			tex, err := e.loadTexture(pbr.MetallicRoughnessTexture.Index, true)
			if err != nil {
				return result, fmt.Errorf("material %q: metallic-roughness texture: %w", result.Name, err)
			}
			result.GlossinessTexture = tex
		}
	}

	if mat.NormalTexture != nil && mat.NormalTexture.Index != nil {
		tex, err := e.loadTexture(*mat.NormalTexture.Index, true)
		if err != nil {
			return result, fmt.Errorf("material %q: normal texture: %w", result.Name, err)
		}
		result.NormalTexture = tex
	}

	return result, nil
}

func (e *gltfMaterialExtractorImpl) ExtractAllMaterials() ([]common.ImportedMaterial, error) {
	materials := make([]common.ImportedMaterial, len(e.doc.Materials))
	for i := range e.doc.Materials {
		mat, err := e.ExtractMaterial(i)
		if err != nil {
			return nil, fmt.Errorf("material %d: %w", i, err)
		}
		materials[i] = mat
	}
	return materials, nil
}

// loadTexture resolves a glTF texture index into an ImportedTexture.
// Images embedded in a buffer view or a data URI have their bytes loaded. External references
// keep a path relative to the base directory and are read when decoded.
func (e *gltfMaterialExtractorImpl) loadTexture(textureIndex int, linear bool) (*common.ImportedTexture, error) {
	if textureIndex < 0 || textureIndex >= len(e.doc.Textures) {
		return nil, fmt.Errorf("texture index %d out of range", textureIndex)
	}
	tex := e.doc.Textures[textureIndex]
	if tex.Source == nil {
		return nil, nil
	}
	imageIndex := *tex.Source
	if imageIndex < 0 || imageIndex >= len(e.doc.Images) {
		return nil, fmt.Errorf("image index %d out of range", imageIndex)
	}
	img := e.doc.Images[imageIndex]

	result := &common.ImportedTexture{
		Name:        img.Name,
		MimeType:    img.MimeType,
		IsNormalMap: linear,
	}
	if result.Name == "" {
		result.Name = fmt.Sprintf("image_%d", imageIndex)
	}
	if tex.Sampler != nil && *tex.Sampler < len(e.doc.Samplers) {
		result.SamplerData = gltfSamplerToStagingData(e.doc.Samplers[*tex.Sampler])
	}

	switch {
	case img.BufferView != nil:
		if *img.BufferView >= len(e.doc.BufferViews) {
			return nil, fmt.Errorf("bufferView index %d out of range", *img.BufferView)
		}
		data, err := modeler.ReadBufferView(e.doc, e.doc.BufferViews[*img.BufferView])
		if err != nil {
			return nil, fmt.Errorf("failed to read image buffer view: %w", err)
		}
		result.Data = data
	case img.IsEmbeddedResource():
		data, err := img.MarshalData()
		if err != nil {
			return nil, fmt.Errorf("failed to decode image data URI: %w", err)
		}
		result.Data = data
	case img.URI != "":
		result.Path = filepath.Join(e.baseDir, img.URI)
		if _, err := os.Stat(result.Path); err != nil {
			return nil, fmt.Errorf("image %q: %w", img.URI, err)
		}
	default:
		return nil, nil
	}
	return result, nil
}

// gltfSamplerToStagingData converts a glTF sampler definition into engine-ready SamplerStagingData.
// Any unset fields in the glTF sampler fall back to the glTF defaults (linear filtering, repeat wrapping).
//
// Parameters:
//   - s: the glTF sampler to convert
//
// Returns:
//   - *common.SamplerStagingData: the converted sampler staging data
func gltfSamplerToStagingData(s *gltf.Sampler) *common.SamplerStagingData {
	result := &common.SamplerStagingData{
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
	if s == nil {
		return result
	}

	if s.MagFilter == gltf.MagNearest {
		result.MagFilter = wgpu.FilterModeNearest
	}

	switch s.MinFilter {
	case gltf.MinNearest:
		result.MinFilter = wgpu.FilterModeNearest
		result.MipmapFilter = wgpu.MipmapFilterModeNearest
	case gltf.MinLinear:
		result.MipmapFilter = wgpu.MipmapFilterModeNearest
	case gltf.MinNearestMipMapNearest:
		result.MinFilter = wgpu.FilterModeNearest
		result.MipmapFilter = wgpu.MipmapFilterModeNearest
	case gltf.MinLinearMipMapNearest:
		result.MipmapFilter = wgpu.MipmapFilterModeNearest
	case gltf.MinNearestMipMapLinear:
		result.MinFilter = wgpu.FilterModeNearest
	}

	result.AddressModeU = gltfWrapToAddressMode(s.WrapS)
	result.AddressModeV = gltfWrapToAddressMode(s.WrapT)
	return result
}

// gltfWrapToAddressMode converts a glTF wrap mode to a wgpu AddressMode.
//
// Parameters:
//   - wrap: the glTF wrap mode
//
// Returns:
//   - wgpu.AddressMode: the corresponding wgpu address mode
func gltfWrapToAddressMode(wrap gltf.WrappingMode) wgpu.AddressMode {
	switch wrap {
	case gltf.WrapClampToEdge:
		return wgpu.AddressModeClampToEdge
	case gltf.WrapMirroredRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}
