// Package texture creates GPU textures with their default view and sampler: 1x1
// placeholders, decoded images with a CPU-built mip chain, DDS cubemaps, and the color and
// depth attachments a render target renders into.
package texture

import (
	"fmt"
	"math/bits"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// ColorFormat is the format of offscreen color attachments.
	ColorFormat = wgpu.TextureFormatBGRA8UnormSrgb

	// DepthFormat is the format of depth attachments.
	DepthFormat = wgpu.TextureFormatDepth32Float

	// CubeFormat is the format of environment cubemaps.
	CubeFormat = wgpu.TextureFormatBGRA8UnormSrgb
)

// Texture pairs a GPU texture with its sampler. Textures shared between owners (such as an
// environment map bound by several materials) are reference counted: each additional owner
// calls Retain and every owner calls Release.
type Texture struct {
	texture       backend.Texture
	sampler       backend.Sampler
	viewDimension wgpu.TextureViewDimension
	refs          atomic.Int32
}

func newTexture(tex backend.Texture, sampler backend.Sampler, dim wgpu.TextureViewDimension) *Texture {
	t := &Texture{texture: tex, sampler: sampler, viewDimension: dim}
	t.refs.Store(1)
	return t
}

func (t *Texture) Texture() backend.Texture                 { return t.texture }
func (t *Texture) View() backend.TextureView                { return t.texture.View() }
func (t *Texture) Sampler() backend.Sampler                 { return t.sampler }
func (t *Texture) ViewDimension() wgpu.TextureViewDimension { return t.viewDimension }
func (t *Texture) Width() uint32                            { return t.texture.Width() }
func (t *Texture) Height() uint32                           { return t.texture.Height() }
func (t *Texture) MipLevels() uint32                        { return t.texture.MipLevels() }
func (t *Texture) Format() wgpu.TextureFormat               { return t.texture.Format() }
func (t *Texture) Label() string                            { return t.texture.Label() }

// Retain registers an additional owner and returns t.
func (t *Texture) Retain() *Texture {
	t.refs.Add(1)
	return t
}

// Refs returns the current owner count.
func (t *Texture) Refs() int32 {
	return t.refs.Load()
}

// Release drops one owner; the GPU objects are freed when the last owner releases.
func (t *Texture) Release() {
	if t.refs.Add(-1) != 0 {
		return
	}
	t.sampler.Release()
	t.texture.Release()
}

// Pot returns the largest power of two not exceeding v, or 0 for 0.
//
// Parameters:
//   - v: the value
//
// Returns:
//   - uint32: 511 -> 256, 512 -> 512, 513 -> 512
func Pot(v uint32) uint32 {
	if v == 0 {
		return 0
	}
	return 1 << (bits.Len32(v) - 1)
}

// MipLevelCount returns floor(log2(min(w, h))), at least 1.
func MipLevelCount(w, h uint32) uint32 {
	m := min(w, h)
	if m < 2 {
		return 1
	}
	return uint32(bits.Len32(m) - 1)
}

// NewPlaceholder creates a 1x1 sRGB texture of a single color with a nearest sampler.
//
// Parameters:
//   - device: the device to allocate on
//   - queue: the queue used to upload the texel
//   - label: the debug label
//   - rgba: the texel
//
// Returns:
//   - *Texture: the placeholder
//   - error: an error if allocation or upload failed
func NewPlaceholder(device backend.Device, queue backend.Queue, label string, rgba [4]uint8) (*Texture, error) {
	tex, err := device.CreateTexture(backend.TextureDescriptor{
		Label:         label,
		Width:         1,
		Height:        1,
		Layers:        1,
		MipLevels:     1,
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		ViewDimension: wgpu.TextureViewDimension2D,
	})
	if err != nil {
		return nil, fmt.Errorf("placeholder %q: %w", label, err)
	}
	if err := queue.WriteTexture(backend.TextureWrite{Texture: tex, Width: 1, Height: 1}, rgba[:]); err != nil {
		tex.Release()
		return nil, fmt.Errorf("placeholder %q: upload: %w", label, err)
	}
	sampler, err := device.CreateSampler(backend.SamplerDescriptor{
		Label:        label + " Sampler",
		AddressMode:  wgpu.AddressModeRepeat,
		MagFilter:    wgpu.FilterModeNearest,
		MinFilter:    wgpu.FilterModeNearest,
		MipmapFilter: wgpu.MipmapFilterModeNearest,
		LodMaxClamp:  32,
	})
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("placeholder %q: sampler: %w", label, err)
	}
	return newTexture(tex, sampler, wgpu.TextureViewDimension2D), nil
}

// NewPlaceholderCube creates a 1x1 black cubemap with six layers and a linear sampler, bound
// where a material has no environment map.
//
// Parameters:
//   - device: the device to allocate on
//   - queue: the queue used to upload the faces
//   - label: the debug label
//
// Returns:
//   - *Texture: the placeholder cube
//   - error: an error if allocation or upload failed
func NewPlaceholderCube(device backend.Device, queue backend.Queue, label string) (*Texture, error) {
	tex, err := device.CreateTexture(backend.TextureDescriptor{
		Label:         label,
		Width:         1,
		Height:        1,
		Layers:        6,
		MipLevels:     1,
		Format:        CubeFormat,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		ViewDimension: wgpu.TextureViewDimensionCube,
	})
	if err != nil {
		return nil, fmt.Errorf("placeholder cube %q: %w", label, err)
	}
	black := []byte{0, 0, 0, 255}
	for layer := range uint32(6) {
		if err := queue.WriteTexture(backend.TextureWrite{Texture: tex, Layer: layer, Width: 1, Height: 1}, black); err != nil {
			tex.Release()
			return nil, fmt.Errorf("placeholder cube %q: upload face %d: %w", label, layer, err)
		}
	}
	sampler, err := cubeSampler(device, label)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return newTexture(tex, sampler, wgpu.TextureViewDimensionCube), nil
}

func cubeSampler(device backend.Device, label string) (backend.Sampler, error) {
	sampler, err := device.CreateSampler(backend.SamplerDescriptor{
		Label:        label + " Sampler",
		AddressMode:  wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeLinear,
		MipmapFilter: wgpu.MipmapFilterModeLinear,
		LodMaxClamp:  32,
	})
	if err != nil {
		return nil, fmt.Errorf("cube %q: sampler: %w", label, err)
	}
	return sampler, nil
}
