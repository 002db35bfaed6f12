package texture

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrUnsupportedDDS is returned for DDS files that are not uncompressed 32-bit cubemaps.
var ErrUnsupportedDDS = errors.New("unsupported dds")

const (
	ddsMagic       = 0x20534444 // "DDS "
	ddsHeaderSize  = 124
	ddsPixelRGB    = 0x40
	ddsPixelFourCC = 0x4
	ddsCaps2Cube   = 0x200
	ddsCubeAll     = 0xFC00
	ddsFourCCDX10  = 0x30315844 // "DX10"

	dxgiR8G8B8A8Unorm     = 28
	dxgiR8G8B8A8UnormSrgb = 29
	dxgiB8G8R8A8Unorm     = 87
	dxgiB8G8R8A8UnormSrgb = 91
	dxgiMiscTextureCube   = 0x4
)

// DDS is a parsed uncompressed DDS cubemap. Faces holds, per face in +X -X +Y -Y +Z -Z order,
// one BGRA8 slice per mip level.
type DDS struct {
	Width     uint32
	Height    uint32
	MipLevels uint32
	Faces     [6][][]byte
}

// ParseDDS parses a DDS file holding a cubemap of 32-bit BGRA or RGBA texels, with either
// the legacy pixel format header or a DX10 extension header. RGBA data is swizzled to BGRA.
//
// Parameters:
//   - data: the file contents
//
// Returns:
//   - *DDS: the parsed cubemap
//   - error: ErrUnsupportedDDS for other layouts, or a truncation error
func ParseDDS(data []byte) (*DDS, error) {
	if len(data) < 4+ddsHeaderSize || binary.LittleEndian.Uint32(data) != ddsMagic {
		return nil, fmt.Errorf("%w: missing DDS header", ErrUnsupportedDDS)
	}
	h := data[4 : 4+ddsHeaderSize]
	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(h[off:]) }

	height, width := u32(8), u32(12)
	mips := max(u32(24), 1)
	pfFlags, fourCC, bitCount, rMask := u32(76), u32(80), u32(84), u32(88)
	caps2 := u32(108)

	offset := 4 + ddsHeaderSize
	swizzle := false
	cube := caps2&ddsCaps2Cube != 0 && caps2&ddsCubeAll == ddsCubeAll

	switch {
	case pfFlags&ddsPixelFourCC != 0 && fourCC == ddsFourCCDX10:
		if len(data) < offset+20 {
			return nil, fmt.Errorf("%w: truncated DX10 header", ErrUnsupportedDDS)
		}
		dx10 := data[offset : offset+20]
		format := binary.LittleEndian.Uint32(dx10[0:])
		misc := binary.LittleEndian.Uint32(dx10[8:])
		arraySize := binary.LittleEndian.Uint32(dx10[12:])
		offset += 20
		switch format {
		case dxgiB8G8R8A8Unorm, dxgiB8G8R8A8UnormSrgb:
		case dxgiR8G8B8A8Unorm, dxgiR8G8B8A8UnormSrgb:
			swizzle = true
		default:
			return nil, fmt.Errorf("%w: dxgi format %d", ErrUnsupportedDDS, format)
		}
		cube = misc&dxgiMiscTextureCube != 0 && arraySize == 1
	case pfFlags&ddsPixelRGB != 0 && bitCount == 32:
		swizzle = rMask == 0x000000FF
	default:
		return nil, fmt.Errorf("%w: compressed or non-32-bit pixel format", ErrUnsupportedDDS)
	}
	if !cube {
		return nil, fmt.Errorf("%w: not a six-face cubemap", ErrUnsupportedDDS)
	}

	out := &DDS{Width: width, Height: height, MipLevels: mips}
	for face := range 6 {
		w, hh := width, height
		for range mips {
			n := int(w * hh * 4)
			if len(data) < offset+n {
				return nil, fmt.Errorf("dds: truncated at face %d", face)
			}
			level := make([]byte, n)
			copy(level, data[offset:offset+n])
			if swizzle {
				for i := 0; i < n; i += 4 {
					level[i], level[i+2] = level[i+2], level[i]
				}
			}
			out.Faces[face] = append(out.Faces[face], level)
			offset += n
			w, hh = max(w/2, 1), max(hh/2, 1)
		}
	}
	return out, nil
}

// CubemapFromDDS parses data with ParseDDS and uploads it as a BGRA8 sRGB cube texture with
// a clamped linear sampler.
//
// Parameters:
//   - device: the device to allocate on
//   - queue: the queue used for uploads
//   - data: the DDS file contents
//   - label: the debug label
//
// Returns:
//   - *Texture: the cube texture
//   - error: a parse or GPU error
func CubemapFromDDS(device backend.Device, queue backend.Queue, data []byte, label string) (*Texture, error) {
	dds, err := ParseDDS(data)
	if err != nil {
		return nil, fmt.Errorf("cubemap %q: %w", label, err)
	}

	tex, err := device.CreateTexture(backend.TextureDescriptor{
		Label:         label,
		Width:         dds.Width,
		Height:        dds.Height,
		Layers:        6,
		MipLevels:     dds.MipLevels,
		Format:        CubeFormat,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		ViewDimension: wgpu.TextureViewDimensionCube,
	})
	if err != nil {
		return nil, fmt.Errorf("cubemap %q: %w", label, err)
	}

	for face, levels := range dds.Faces {
		w, h := dds.Width, dds.Height
		for mip, level := range levels {
			if err := queue.WriteTexture(backend.TextureWrite{
				Texture:  tex,
				MipLevel: uint32(mip),
				Layer:    uint32(face),
				Width:    w,
				Height:   h,
			}, level); err != nil {
				tex.Release()
				return nil, fmt.Errorf("cubemap %q: upload face %d mip %d: %w", label, face, mip, err)
			}
			w, h = max(w/2, 1), max(h/2, 1)
		}
	}

	sampler, err := cubeSampler(device, label)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return newTexture(tex, sampler, wgpu.TextureViewDimensionCube), nil
}
