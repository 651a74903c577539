//go:build !tinygo && cgo

package glgl

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
)

// Framebuffer is a render target: zero or more color attachments plus
// an optional depth renderbuffer.
type Framebuffer struct {
	rid uint32
}

// NewFramebuffer allocates a new, empty framebuffer object.
func NewFramebuffer() (Framebuffer, error) {
	var rid uint32
	gl.GenFramebuffers(1, &rid)
	return Framebuffer{rid: rid}, Err()
}

// Bind makes fb the current draw (and read) framebuffer.
func (fb Framebuffer) Bind() { gl.BindFramebuffer(gl.FRAMEBUFFER, fb.rid) }

// Unbind restores the default framebuffer (the window).
func (fb Framebuffer) Unbind() { gl.BindFramebuffer(gl.FRAMEBUFFER, 0) }

// Delete releases fb's underlying object.
func (fb Framebuffer) Delete() { gl.DeleteFramebuffers(1, &fb.rid) }

// ID returns the underlying OpenGL framebuffer object name.
func (fb Framebuffer) ID() uint32 { return fb.rid }

// WrapFramebuffer reconstructs a Framebuffer handle around an
// already-allocated OpenGL framebuffer object name.
func WrapFramebuffer(rid uint32) Framebuffer { return Framebuffer{rid: rid} }

// AttachColorLayer attaches layer of a texture array as color
// attachment index attachment of the currently bound framebuffer.
func (fb Framebuffer) AttachColorLayer(attachment int, tex Texture, layer int32) error {
	gl.FramebufferTextureLayer(gl.FRAMEBUFFER, uint32(gl.COLOR_ATTACHMENT0+attachment), tex.rid, 0, layer)
	return Err()
}

// AttachColor2D attaches a plain 2-D texture as color attachment index
// attachment of the currently bound framebuffer.
func (fb Framebuffer) AttachColor2D(attachment int, tex Texture) error {
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, uint32(gl.COLOR_ATTACHMENT0+attachment), tex.target, tex.rid, 0)
	return Err()
}

// SetDrawBuffers declares which of fb's color attachments 0..n-1 the
// fragment shader writes to, in attachment order.
func SetDrawBuffers(n int) {
	bufs := make([]uint32, n)
	for i := range bufs {
		bufs[i] = uint32(gl.COLOR_ATTACHMENT0 + i)
	}
	if n == 0 {
		gl.DrawBuffer(gl.NONE)
		return
	}
	gl.DrawBuffers(int32(n), &bufs[0])
}

// CheckComplete returns an error describing why the currently bound
// framebuffer is incomplete, or nil if it is ready to render into.
func CheckComplete() error {
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	if status == gl.FRAMEBUFFER_COMPLETE {
		return nil
	}
	return fmt.Errorf("framebuffer incomplete: status 0x%x", status)
}

// Renderbuffer is a depth (or depth+stencil) render target that cannot
// be sampled, only attached.
type Renderbuffer struct {
	rid uint32
}

// NewDepthRenderbuffer allocates a depth renderbuffer of the given
// size and attaches it to the currently bound framebuffer.
func NewDepthRenderbuffer(width, height int) (Renderbuffer, error) {
	var rid uint32
	gl.GenRenderbuffers(1, &rid)
	gl.BindRenderbuffer(gl.RENDERBUFFER, rid)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, int32(width), int32(height))
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, rid)
	return Renderbuffer{rid: rid}, Err()
}

// Delete releases rb's underlying object.
func (rb Renderbuffer) Delete() { gl.DeleteRenderbuffers(1, &rb.rid) }

// ID returns the underlying OpenGL renderbuffer object name.
func (rb Renderbuffer) ID() uint32 { return rb.rid }

// WrapRenderbuffer reconstructs a Renderbuffer handle around an
// already-allocated OpenGL renderbuffer object name.
func WrapRenderbuffer(rid uint32) Renderbuffer { return Renderbuffer{rid: rid} }

const TextureArray2D TextureType = gl.TEXTURE_2D_ARRAY

// NewTextureArray allocates a 2-D array texture with layers layers,
// generalizing NewTextureFromImage for GPU tensors whose channel
// format gives them a real channel axis (spec.md §4.2's GPU layouts
// the teacher's single-layer examples never needed).
func NewTextureArray[T any](cfg TextureImgConfig, layers int, data []T) (Texture, error) {
	var outTexture uint32
	var ptr unsafe.Pointer
	if data != nil {
		ptr = unsafe.Pointer(&data[0])
	}
	gl.GenTextures(1, &outTexture)
	tex := Texture{rid: outTexture, target: uint32(TextureArray2D), unit: uint32(gl.TEXTURE0 + cfg.TextureUnit)}
	tex.Bind(cfg.TextureUnit)
	internalFormat := zdefault(cfg.InternalFormat, int32(cfg.Format))
	gl.TexImage3D(tex.target, cfg.Level, internalFormat, int32(cfg.Width), int32(cfg.Height), int32(layers),
		cfg.Border, cfg.Format, cfg.Xtype, ptr)
	gl.TexParameteri(tex.target, gl.TEXTURE_MAG_FILTER, zdefault(cfg.MagFilter, gl.NEAREST))
	gl.TexParameteri(tex.target, gl.TEXTURE_MIN_FILTER, zdefault(cfg.MinFilter, gl.NEAREST))
	gl.TexParameteri(tex.target, gl.TEXTURE_WRAP_S, zdefault(cfg.Wrap, gl.REPEAT))
	gl.TexParameteri(tex.target, gl.TEXTURE_WRAP_T, zdefault(cfg.Wrap, gl.REPEAT))
	return tex, Err()
}

// SetImage3D uploads data into one layer of a texture array.
func SetImage3D[T any](tex Texture, cfg TextureImgConfig, layer int, data []T) error {
	var ptr unsafe.Pointer
	if data != nil {
		ptr = unsafe.Pointer(&data[0])
	}
	gl.TextureBarrier()
	gl.TexSubImage3D(tex.target, cfg.Level, 0, 0, int32(layer), int32(cfg.Width), int32(cfg.Height), 1,
		cfg.Format, cfg.Xtype, ptr)
	return Err()
}

// GetImage3D reads back one layer of a texture array via an
// intermediate framebuffer (glGetTexImage cannot target a single array
// layer directly).
func GetImage3D[T any](dst []T, tex Texture, cfg TextureImgConfig, layer int) error {
	if len(dst) == 0 {
		return fmt.Errorf("dst cannot be nil or zero length")
	}
	fb, err := NewFramebuffer()
	if err != nil {
		return err
	}
	defer fb.Delete()
	fb.Bind()
	defer fb.Unbind()
	if err := fb.AttachColorLayer(0, tex, int32(layer)); err != nil {
		return err
	}
	gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
	gl.ReadPixels(0, 0, int32(cfg.Width), int32(cfg.Height), cfg.Format, cfg.Xtype, unsafe.Pointer(&dst[0]))
	return Err()
}

// MaxAnisotropy returns the maximum anisotropic filtering level the
// driver supports, or 1 if the extension is unavailable
// (Atlas.h's getMaxAnisotropy()).
func MaxAnisotropy() float32 {
	var v float32
	gl.GetFloatv(gl.MAX_TEXTURE_MAX_ANISOTROPY, &v)
	if v < 1 {
		return 1
	}
	return v
}

// SetMipmapped regenerates tex's mipmap chain and switches its minification
// filter to trilinear (LINEAR_MIPMAP_LINEAR), repeat-wrapping both axes with
// mirrored repeat so edge texels don't bleed across the seam, and applies
// anisotropic filtering up to aniso levels (clamped to MaxAnisotropy by the
// driver). This is the one-shot "make this an ordinary sampled texture"
// setup the texture command needs on an already-allocated, already-bound
// generic tensor texture (Atlas.h's makeTextureMipmapped()).
func (t Texture) SetMipmapped(aniso float32) error {
	t.Bind(int(t.unit - gl.TEXTURE0))
	gl.TexParameteri(t.target, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(t.target, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(t.target, gl.TEXTURE_WRAP_S, gl.MIRRORED_REPEAT)
	gl.TexParameteri(t.target, gl.TEXTURE_WRAP_T, gl.MIRRORED_REPEAT)
	if aniso > 1 {
		gl.TexParameterf(t.target, gl.TEXTURE_MAX_ANISOTROPY, aniso)
	}
	gl.GenerateMipmap(t.target)
	return Err()
}
