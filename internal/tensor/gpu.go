//go:build !tinygo && cgo

package tensor

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/soypat/atlas/v4.6-core/glgl"
)

// genericTextureDims picks a roughly-square RGBA32F texture able to hold
// size float32 elements packed 4-per-texel (spec.md §4.2's "generic"
// GPU layout).
func genericTextureDims(size uint32) (w, h uint32) {
	texels := (size + 3) / 4
	if texels == 0 {
		texels = 1
	}
	w = 1
	for w*w < texels {
		w++
	}
	h = (texels + w - 1) / w
	return w, h
}

func genericImgConfig(w, h uint32) glgl.TextureImgConfig {
	return glgl.TextureImgConfig{
		Type:           glgl.Texture2D,
		Width:          int(w),
		Height:         int(h),
		Format:         gl.RGBA,
		Xtype:          uint32(glgl.Float32),
		InternalFormat: gl.RGBA32F,
	}
}

// ToGPUMemory uploads a host tensor to a newly allocated generic
// (packed RGBA32F) texture, replacing its Storage. A strided view is
// materialized with EnsureContiguous first.
func ToGPUMemory(t *Tensor) error {
	if t.OnGPU() {
		return nil
	}
	if err := EnsureContiguous(t); err != nil {
		return err
	}
	host, ok := t.Storage.(*HostStorage)
	if !ok {
		return fmt.Errorf("tensor: cannot upload non-host tensor to gpu")
	}
	w, h := genericTextureDims(t.Size)
	cfg := genericImgConfig(w, h)
	padded := host.Data
	if want := w * h * 4; uint32(len(padded)) != want {
		padded = make([]float32, want)
		copy(padded, host.Data)
	}
	tex, err := glgl.NewTextureFromImage(cfg, padded)
	if err != nil {
		return fmt.Errorf("tensor: upload to gpu: %w", err)
	}
	t.Storage = &GPUStorage{Texture: tex.ID(), Width: w, Height: h, Layers: 1, Channels: ChannelGeneric}
	t.Owned = true
	return nil
}

// gpuTexture reconstructs a glgl.Texture handle from the bare id
// GPUStorage persists, so it can be passed back into glgl's Bind/GetImage
// calls.
func gpuTexture(g *GPUStorage) glgl.Texture {
	return glgl.WrapTexture(g.Texture, glgl.Texture2D, 0)
}

// ToHostMemory synchronously downloads a GPU-resident tensor into host
// memory, replacing its Storage. It blocks until the transfer
// completes; BeginToHostMemoryAsync/EndToHostMemoryAsync exist for the
// non-blocking variant.
func ToHostMemory(t *Tensor) error {
	if t.OnHost() {
		return nil
	}
	gpu, ok := t.Storage.(*GPUStorage)
	if !ok {
		return fmt.Errorf("tensor: cannot download non-gpu tensor")
	}
	cfg := genericImgConfig(gpu.Width, gpu.Height)
	buf := make([]float32, gpu.Width*gpu.Height*4)
	if err := glgl.GetImage(buf, gpuTexture(gpu), cfg); err != nil {
		return fmt.Errorf("tensor: download from gpu: %w", err)
	}
	t.Storage = &HostStorage{Data: buf[:t.Size]}
	t.Owned = true
	return nil
}

// BeginToHostMemoryAsync kicks off a non-blocking GPU-to-host transfer
// via a pixel buffer object, replacing t's Storage with InFlightStorage
// until EndToHostMemoryAsync completes it.
func BeginToHostMemoryAsync(t *Tensor) error {
	gpu, ok := t.Storage.(*GPUStorage)
	if !ok {
		return fmt.Errorf("tensor: cannot async-download non-gpu tensor")
	}
	byteSize := gpu.Width * gpu.Height * 4 * 4 // 4 floats/texel, 4 bytes/float
	var pbo uint32
	gl.GenBuffers(1, &pbo)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, pbo)
	gl.BufferData(gl.PIXEL_PACK_BUFFER, int(byteSize), nil, gl.STREAM_READ)
	gpuTexture(gpu).Bind(0)
	gl.GetTexImage(gl.TEXTURE_2D, 0, gl.RGBA, gl.FLOAT, nil)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
	if err := glgl.Err(); err != nil {
		gl.DeleteBuffers(1, &pbo)
		return fmt.Errorf("tensor: begin async download: %w", err)
	}
	t.Storage = &InFlightStorage{PBO: pbo, ByteSize: byteSize, Channels: gpu.Channels}
	return nil
}

// EndToHostMemoryAsync maps the pixel buffer object started by
// BeginToHostMemoryAsync and copies its contents into a fresh
// HostStorage, replacing t's Storage. Calling it before the transfer
// has actually landed simply blocks on the driver's fence, same as the
// original's synchronous path.
func EndToHostMemoryAsync(t *Tensor) error {
	inflight, ok := t.Storage.(*InFlightStorage)
	if !ok {
		return fmt.Errorf("tensor: tensor is not mid-transfer")
	}
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, inflight.PBO)
	ptr := gl.MapBuffer(gl.PIXEL_PACK_BUFFER, gl.READ_ONLY)
	if ptr == nil {
		gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
		gl.DeleteBuffers(1, &inflight.PBO)
		return fmt.Errorf("tensor: map pixel buffer failed")
	}
	raw := unsafe.Slice((*float32)(ptr), inflight.ByteSize/4)
	data := make([]float32, t.Size)
	copy(data, raw)
	gl.UnmapBuffer(gl.PIXEL_PACK_BUFFER)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
	gl.DeleteBuffers(1, &inflight.PBO)
	t.Storage = &HostStorage{Data: data}
	t.Owned = true
	return nil
}

// Textureify switches t's GPU texture from the nearest-filtered sampling
// ToGPUMemory sets up to mipmapped, mirror-repeat-wrapped, anisotropically
// filtered sampling. The texel layout is left as it is (a generic tensor
// stays packed RGBA). t must already be on the GPU; callers needing this
// on a host tensor should ToGPUMemory it first. This is what the texture
// command applies to the top of the stack.
func Textureify(t *Tensor) error {
	gpu, ok := t.Storage.(*GPUStorage)
	if !ok {
		return fmt.Errorf("tensor: texture requires a gpu-resident tensor")
	}
	if gpu.Mipmapped {
		return nil
	}
	if err := gpuTexture(gpu).SetMipmapped(glgl.MaxAnisotropy()); err != nil {
		return fmt.Errorf("tensor: textureify: %w", err)
	}
	gpu.Mipmapped = true
	return nil
}

// TakeOwnership materializes t's own private copy of its Storage so
// later in-place mutation (or stack eviction of the tensor it was
// viewing) cannot corrupt or be corrupted by an aliased tensor.
func TakeOwnership(t *Tensor) error {
	if t.Owned {
		return nil
	}
	switch s := t.Storage.(type) {
	case *HostStorage:
		data := make([]float32, t.Size)
		walk(t.Rank, t.Shape, func(pos [MaxRank]uint32) {
			data[linearOf(t.Rank, t.Shape, pos)] = elementAt(t, pos)
		})
		t.Storage = &HostStorage{Data: data}
		t.Strides = canonicalStrides(t.Rank, t.Shape)
		t.Offset = 0
	case *GPUStorage:
		cfg := genericImgConfig(s.Width, s.Height)
		buf := make([]float32, s.Width*s.Height*4)
		if err := glgl.GetImage(buf, gpuTexture(s), cfg); err != nil {
			return fmt.Errorf("tensor: take ownership (gpu copy): %w", err)
		}
		tex, err := glgl.NewTextureFromImage(cfg, buf)
		if err != nil {
			return fmt.Errorf("tensor: take ownership (gpu realloc): %w", err)
		}
		t.Storage = &GPUStorage{Texture: tex.ID(), Width: s.Width, Height: s.Height, Layers: s.Layers, Channels: s.Channels, Mipmapped: s.Mipmapped}
	default:
		return fmt.Errorf("tensor: cannot take ownership of in-flight tensor")
	}
	t.Owned = true
	return nil
}

// EnsureContiguous materializes t into a contiguous, owned, host-resident
// layout if it is not already one: GPU tensors are downloaded first,
// then any strided host view is copied into canonical row-major order.
func EnsureContiguous(t *Tensor) error {
	if t.OnGPU() || t.InFlight() {
		if err := ToHostMemory(t); err != nil {
			return err
		}
	}
	if t.IsContiguous() && t.Owned {
		return nil
	}
	return TakeOwnership(t)
}
