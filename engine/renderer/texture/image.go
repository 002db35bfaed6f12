package texture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
	xdraw "golang.org/x/image/draw"
)

// FromBytes decodes an encoded image (PNG, JPEG, BMP, TIFF, WebP) and uploads it with
// FromImage.
//
// Parameters:
//   - device: the device to allocate on
//   - queue: the queue used for uploads
//   - data: the encoded image
//   - label: the debug label
//   - isNormalMap: select a linear format instead of sRGB
//   - generateMips: resize to power-of-two and build a mip chain
//
// Returns:
//   - *Texture: the texture
//   - error: a decode or GPU error
func FromBytes(device backend.Device, queue backend.Queue, data []byte, label string, isNormalMap, generateMips bool) (*Texture, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("texture %q: decode: %w", label, err)
	}
	return FromImage(device, queue, img, label, isNormalMap, generateMips)
}

// FromImported decodes an imported texture and uploads it with mips, honoring its normal-map
// flag and any sampler overrides it carries.
//
// Parameters:
//   - device: the device to allocate on
//   - queue: the queue used for uploads
//   - imported: the imported texture
//   - label: the debug label
//
// Returns:
//   - *Texture: the texture
//   - error: a decode or GPU error
func FromImported(device backend.Device, queue backend.Queue, imported *common.ImportedTexture, label string) (*Texture, error) {
	img, err := imported.Decode()
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", label, err)
	}
	return FromDecoded(device, queue, imported, img, label)
}

// FromDecoded uploads img, already decoded from imported, with mips. The normal-map flag and
// sampler overrides come from imported.
//
// Parameters:
//   - device: the device to allocate on
//   - queue: the queue used for uploads
//   - imported: the imported texture img was decoded from
//   - img: the decoded image
//   - label: the debug label
//
// Returns:
//   - *Texture: the texture
//   - error: a GPU error
func FromDecoded(device backend.Device, queue backend.Queue, imported *common.ImportedTexture, img image.Image, label string) (*Texture, error) {
	t, err := FromImage(device, queue, img, label, imported.IsNormalMap, true)
	if err != nil {
		return nil, err
	}
	if sd := imported.SamplerData; sd != nil {
		sampler, err := device.CreateSampler(backend.SamplerDescriptor{
			Label:        label + " Sampler",
			AddressMode:  sd.AddressModeU,
			MagFilter:    sd.MagFilter,
			MinFilter:    sd.MinFilter,
			MipmapFilter: sd.MipmapFilter,
			LodMinClamp:  sd.LodMinClamp,
			LodMaxClamp:  common.Coalesce(sd.LodMaxClamp, 32),
		})
		if err != nil {
			t.Release()
			return nil, fmt.Errorf("texture %q: sampler: %w", label, err)
		}
		t.sampler.Release()
		t.sampler = sampler
	}
	return t, nil
}

// FromImage uploads img. With generateMips the image is first resized to power-of-two
// dimensions (CatmullRom) when needed, then floor(log2(min(w, h))) levels are uploaded, each
// half the size of the previous one. Mip-mapped textures sample linear, others nearest; both
// repeat.
//
// Parameters:
//   - device: the device to allocate on
//   - queue: the queue used for uploads
//   - img: the source image
//   - label: the debug label
//   - isNormalMap: RGBA8Unorm when true, RGBA8UnormSrgb otherwise
//   - generateMips: build and upload a mip chain
//
// Returns:
//   - *Texture: the texture
//   - error: a GPU error
func FromImage(device backend.Device, queue backend.Queue, img image.Image, label string, isNormalMap, generateMips bool) (*Texture, error) {
	bounds := img.Bounds()
	w, h := uint32(bounds.Dx()), uint32(bounds.Dy())
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("texture %q: empty image", label)
	}

	level := toRGBA(img)
	mipLevels := uint32(1)
	if generateMips {
		if pw, ph := Pot(w), Pot(h); pw != w || ph != h {
			level = resize(level, int(pw), int(ph), xdraw.CatmullRom)
			w, h = pw, ph
		}
		mipLevels = MipLevelCount(w, h)
	}

	format := wgpu.TextureFormatRGBA8UnormSrgb
	if isNormalMap {
		format = wgpu.TextureFormatRGBA8Unorm
	}

	tex, err := device.CreateTexture(backend.TextureDescriptor{
		Label:         label,
		Width:         w,
		Height:        h,
		Layers:        1,
		MipLevels:     mipLevels,
		Format:        format,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		ViewDimension: wgpu.TextureViewDimension2D,
	})
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", label, err)
	}

	for mip := range mipLevels {
		if mip > 0 {
			b := level.Bounds()
			level = resize(level, max(b.Dx()/2, 1), max(b.Dy()/2, 1), xdraw.BiLinear)
		}
		b := level.Bounds()
		if err := queue.WriteTexture(backend.TextureWrite{
			Texture:  tex,
			MipLevel: mip,
			Width:    uint32(b.Dx()),
			Height:   uint32(b.Dy()),
		}, level.Pix); err != nil {
			tex.Release()
			return nil, fmt.Errorf("texture %q: upload mip %d: %w", label, mip, err)
		}
	}

	filter, mipFilter := wgpu.FilterModeNearest, wgpu.MipmapFilterModeNearest
	if generateMips {
		filter, mipFilter = wgpu.FilterModeLinear, wgpu.MipmapFilterModeLinear
	}
	sampler, err := device.CreateSampler(backend.SamplerDescriptor{
		Label:        label + " Sampler",
		AddressMode:  wgpu.AddressModeRepeat,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: mipFilter,
		LodMaxClamp:  32,
	})
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("texture %q: sampler: %w", label, err)
	}

	return newTexture(tex, sampler, wgpu.TextureViewDimension2D), nil
}

// toRGBA returns img as a tightly packed *image.RGBA with its origin at (0, 0).
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}

func resize(src *image.RGBA, w, h int, scaler xdraw.Scaler) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}
