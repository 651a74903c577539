//go:build !tinygo && cgo

package compute

import (
	"fmt"

	"github.com/go-gl/gl/v4.6-core/gl"

	"github.com/soypat/atlas/internal/stack"
	"github.com/soypat/atlas/internal/tensor"
	"github.com/soypat/atlas/v4.6-core/glgl"
)

// argLocs caches the uniform locations for one argument position.
type argLocs struct {
	strides, toffset, dims, tex int32
}

// Compute is a compiled compute step: a linked shader program plus the
// uniform locations spec.md §4.4 says must be cached rather than
// looked up every draw.
type Compute struct {
	spec    Spec
	program glgl.Program

	args        [6]argLocs
	outDims     int32
	outStrides  int32
	varLocs     map[string]int32
}

// Flags carries the evaluator's global render-state toggles into a
// draw (spec.md §9's redesign note: explicit context fields, not
// process-wide mutables).
type Flags struct {
	DepthTest bool
	Additive  bool
	Backface  bool
}

// New compiles spec's synthesized shader pair and caches every uniform
// location New's caller will need on every subsequent Run.
func New(spec Spec, varNames []string) (*Compute, error) {
	vertexSrc, fragmentSrc, err := Synthesize(spec, varNames)
	if err != nil {
		return nil, err
	}
	program, err := glgl.CompileProgram(glgl.ShaderSource{Vertex: vertexSrc, Fragment: fragmentSrc})
	if err != nil {
		return nil, fmt.Errorf("compute: shader compile/link: %w", err)
	}
	c := &Compute{spec: spec, program: program, varLocs: make(map[string]int32, len(varNames))}
	for i := 0; i < spec.ArgCount; i++ {
		x := argNames[i]
		c.args[i] = argLocs{
			strides: mustLoc(program, "_a_"+x+"strides"),
			toffset: mustLoc(program, "_a_"+x+"toffset"),
			dims:    mustLoc(program, "_a_"+x+"dims"),
			tex:     mustLoc(program, "_a_"+x+"tex"),
		}
	}
	c.outDims = mustLoc(program, "_a_dims")
	c.outStrides = mustLoc(program, "_a_strides")
	for _, v := range varNames {
		if loc, err := program.UniformLocation(glslSafe(v) + "\x00"); err == nil {
			c.varLocs[v] = loc
		}
	}
	return c, nil
}

// mustLoc looks up a uniform location, returning -1 (a harmless no-op
// location for SetUniform calls) if the optimizer stripped it because
// the user's shader body never referenced it.
func mustLoc(program glgl.Program, name string) int32 {
	loc, err := program.UniformLocation(name + "\x00")
	if err != nil {
		return -1
	}
	return loc
}

// SetVar pushes a new value to this compute's cached location for
// variable name, implementing spec.md §4.6's eager `set` propagation.
func (c *Compute) SetVar(name string, values []float32) {
	loc, ok := c.varLocs[name]
	if !ok || loc < 0 {
		return
	}
	c.program.Bind()
	c.program.SetUniformf(loc, values...)
}

// Delete releases the compiled program.
func (c *Compute) Delete() { c.program.Delete() }

func genericDims(size uint32) (w, h uint32) {
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

// Run implements spec.md §4.4's 10-step execution contract: validate
// arity, ensure arguments are GPU-resident, allocate or reuse return
// textures, bind them to a single framebuffer, upload uniforms, apply
// depth/blend state, draw, then pop arguments (into the stack's reuse
// cache) and push results. The first return's GPUStorage.Framebuffer
// and .Depthbuffer cache their GL objects across calls so a reused
// tensor (spec.md's `reuse` flag) need not reallocate either on every
// frame.
func (c *Compute) Run(ts *stack.Stack, flags Flags, vertCount int) error {
	needed := c.spec.ArgCount
	if c.spec.Reuse {
		needed += c.spec.RetCount
	}
	if ts.Len() < needed {
		return fmt.Errorf("compute: stack underflow: need %d tensors, have %d", needed, ts.Len())
	}

	args := make([]*tensor.Tensor, c.spec.ArgCount)
	for i := range args {
		t, err := ts.At(uint32(i))
		if err != nil {
			return err
		}
		if err := tensor.ToGPUMemory(t); err != nil {
			return fmt.Errorf("compute: arg %d to gpu: %w", i, err)
		}
		args[i] = t
	}

	var outW, outH uint32
	var outShape [tensor.MaxRank]uint32
	if c.spec.Channels == tensor.ChannelGeneric {
		size := uint32(1)
		if len(args) > 0 {
			size = args[0].Size
		}
		outW, outH = genericDims(size)
		outShape = args[0].Shape
	} else {
		if len(args) == 0 {
			return fmt.Errorf("compute: channeled output requires at least one argument for dimensions")
		}
		outW, outH = args[0].Shape[0], args[0].Shape[1]
		outShape = [tensor.MaxRank]uint32{outW, outH, tensor.ChannelCount(c.spec.Channels), 1}
	}

	rets := make([]*tensor.Tensor, c.spec.RetCount)
	for i := range rets {
		var err error
		rets[i], err = c.allocateReturn(ts, needed, i, outW, outH, outShape)
		if err != nil {
			return err
		}
	}

	primary := rets[0].Storage.(*tensor.GPUStorage)
	var fb glgl.Framebuffer
	var err error
	if primary.Framebuffer != 0 {
		fb = glgl.WrapFramebuffer(primary.Framebuffer)
		fb.Bind()
	} else {
		fb, err = glgl.NewFramebuffer()
		if err != nil {
			return fmt.Errorf("compute: framebuffer: %w", err)
		}
		fb.Bind()
		for i, r := range rets {
			gpu := r.Storage.(*tensor.GPUStorage)
			if err := fb.AttachColorLayer(i, glgl.WrapTexture(gpu.Texture, glgl.TextureArray2D, 0), 0); err != nil {
				fb.Unbind()
				return fmt.Errorf("compute: attach return %d: %w", i, err)
			}
		}
		primary.Framebuffer = fb.ID()
	}
	defer fb.Unbind()
	glgl.SetDrawBuffers(len(rets))

	if flags.DepthTest {
		if primary.Depthbuffer == 0 {
			rb, err := glgl.NewDepthRenderbuffer(int(outW), int(outH))
			if err != nil {
				return fmt.Errorf("compute: depth renderbuffer: %w", err)
			}
			primary.Depthbuffer = rb.ID()
		}
		gl.Enable(gl.DEPTH_TEST)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
	if flags.Additive {
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.ONE, gl.ONE)
	} else {
		gl.Disable(gl.BLEND)
	}
	if flags.Backface {
		gl.Disable(gl.CULL_FACE)
	} else {
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	}

	if err := glgl.CheckComplete(); err != nil {
		return fmt.Errorf("compute: %w", err)
	}

	c.program.Bind()
	gl.Viewport(0, 0, int32(outW), int32(outH))
	for i, t := range args {
		gpu := t.Storage.(*tensor.GPUStorage)
		a := c.args[i]
		c.program.SetUniformi(a.strides, t.Strides[0], t.Strides[1], t.Strides[2], t.Strides[3])
		c.program.SetUniformi(a.toffset, t.Offset)
		c.program.SetUniformi(a.dims, int32(gpu.Width), int32(gpu.Height))
		glgl.WrapTexture(gpu.Texture, glgl.TextureArray2D, i).Bind(i)
		c.program.SetUniformi(a.tex, int32(i))
	}
	outRef := rets[0]
	c.program.SetUniformi(c.outDims, int32(outW), int32(outH), 0, 0)
	c.program.SetUniformi(c.outStrides, outRef.Strides[0], outRef.Strides[1], outRef.Strides[2], outRef.Strides[3])

	if !c.spec.Reuse {
		gl.ClearColor(0, 0, 0, 0)
		gl.Clear(gl.COLOR_BUFFER_BIT)
	}
	n := vertCount
	if n <= 0 {
		n = 6
	}
	gl.DrawArrays(gl.TRIANGLES, 0, int32(n))
	if err := glgl.Err(); err != nil {
		return fmt.Errorf("compute: draw: %w", err)
	}

	for i := 0; i < c.spec.ArgCount; i++ {
		if _, err := ts.Pop(); err != nil {
			return fmt.Errorf("compute: popping argument %d: %w", i, err)
		}
	}
	if !c.spec.Reuse {
		for i := len(rets) - 1; i >= 0; i-- {
			ts.Push(rets[i])
		}
	}
	return nil
}

func (c *Compute) allocateReturn(ts *stack.Stack, argOffset, retIndex int, w, h uint32, shape [tensor.MaxRank]uint32) (*tensor.Tensor, error) {
	if c.spec.Reuse {
		t, err := ts.At(uint32(argOffset + retIndex))
		if err != nil {
			return nil, fmt.Errorf("compute: reuse target %d: %w", retIndex, err)
		}
		gpu, ok := t.Storage.(*tensor.GPUStorage)
		if !ok || !t.Owned {
			return nil, fmt.Errorf("compute: reuse target %d is not an owned GPU tensor", retIndex)
		}
		if gpu.Width != w || gpu.Height != h || gpu.Channels != c.spec.Channels {
			return nil, fmt.Errorf("compute: reuse target %d format mismatch", retIndex)
		}
		return t, nil
	}
	key := stack.ReuseKey{Width: w, Height: h, Layers: 1, Channels: c.spec.Channels}
	if t, ok := ts.Reusable(key); ok {
		return t, nil
	}
	rank := 3
	if c.spec.Channels == tensor.ChannelGeneric {
		rank = 0
		for i, s := range shape {
			if s > 1 {
				rank = i + 1
			}
		}
	}
	cfg := glgl.TextureImgConfig{
		Type: glgl.TextureArray2D, Width: int(w), Height: int(h),
		Format: gl.RGBA, Xtype: uint32(glgl.Float32), InternalFormat: gl.RGBA32F,
	}
	tex, err := glgl.NewTextureArray[float32](cfg, 1, nil)
	if err != nil {
		return nil, fmt.Errorf("compute: allocate return %d: %w", retIndex, err)
	}
	t := &tensor.Tensor{Rank: rank, Shape: shape, Owned: true, Size: shapeSize(shape, rank)}
	t.Storage = &tensor.GPUStorage{Texture: tex.ID(), Width: w, Height: h, Layers: 1, Channels: c.spec.Channels}
	return t, nil
}

func shapeSize(shape [tensor.MaxRank]uint32, rank int) uint32 {
	size := uint32(1)
	for i := 0; i < rank; i++ {
		size *= shape[i]
	}
	return size
}
