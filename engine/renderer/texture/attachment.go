package texture

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// NewColorAttachment creates a BGRA8 sRGB render attachment that can also be sampled, with
// a clamped linear sampler.
//
// Parameters:
//   - device: the device to allocate on
//   - label: the debug label
//   - width, height: the attachment size
//
// Returns:
//   - *Texture: the attachment
//   - error: a GPU error
func NewColorAttachment(device backend.Device, label string, width, height uint32) (*Texture, error) {
	return newAttachment(device, label, width, height, ColorFormat, backend.SamplerDescriptor{
		Label:        label + " Sampler",
		AddressMode:  wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeLinear,
		MipmapFilter: wgpu.MipmapFilterModeNearest,
		LodMaxClamp:  32,
	})
}

// NewDepthAttachment creates a Depth32Float render attachment that can also be sampled, with
// a LessEqual comparison sampler.
//
// Parameters:
//   - device: the device to allocate on
//   - label: the debug label
//   - width, height: the attachment size
//
// Returns:
//   - *Texture: the attachment
//   - error: a GPU error
func NewDepthAttachment(device backend.Device, label string, width, height uint32) (*Texture, error) {
	return newAttachment(device, label, width, height, DepthFormat, backend.SamplerDescriptor{
		Label:        label + " Sampler",
		AddressMode:  wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeLinear,
		MipmapFilter: wgpu.MipmapFilterModeNearest,
		LodMinClamp:  -100,
		LodMaxClamp:  100,
		Compare:      wgpu.CompareFunctionLessEqual,
	})
}

func newAttachment(device backend.Device, label string, width, height uint32, format wgpu.TextureFormat, samplerDesc backend.SamplerDescriptor) (*Texture, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("attachment %q: zero size %dx%d", label, width, height)
	}
	tex, err := device.CreateTexture(backend.TextureDescriptor{
		Label:         label,
		Width:         width,
		Height:        height,
		Layers:        1,
		MipLevels:     1,
		Format:        format,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
		ViewDimension: wgpu.TextureViewDimension2D,
	})
	if err != nil {
		return nil, fmt.Errorf("attachment %q: %w", label, err)
	}
	sampler, err := device.CreateSampler(samplerDesc)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("attachment %q: sampler: %w", label, err)
	}
	return newTexture(tex, sampler, wgpu.TextureViewDimension2D), nil
}
