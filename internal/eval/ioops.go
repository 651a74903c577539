package eval

import (
	"fmt"
	"os"
	"time"

	"github.com/soypat/atlas/internal/compiler"
	"github.com/soypat/atlas/internal/compute"
	"github.com/soypat/atlas/internal/imagesrc"
	"github.com/soypat/atlas/internal/kettle"
	"github.com/soypat/atlas/internal/meshsrc"
	"github.com/soypat/atlas/internal/printer"
	"github.com/soypat/atlas/internal/tensor"
)

// formatTensor renders t's pretty-printed box form for TOSTRING/PRINT.
func (ctx *Context) formatTensor(t *tensor.Tensor) (string, error) {
	return printer.Format(t)
}

// img loads path and pushes its pixels as a host tensor.
func (ctx *Context) img(path string) error {
	t, err := imagesrc.LoadFile(path)
	if err != nil {
		return err
	}
	ctx.Stack.Push(t)
	return nil
}

// importMesh loads a glTF-subset scene asset (internal/meshsrc) and
// pushes its tensors in a fixed order — Positions, Indices, Joints,
// Weights, AnimTimes, AnimValues — so an IMPORT'ing program always
// pops a known arity regardless of which fields the asset populated.
// A field the asset doesn't have is pushed as an empty rank-1 tensor
// rather than skipped.
func (ctx *Context) importMesh(path string) error {
	mesh, err := ctx.MeshLoader.Load(path)
	if err != nil {
		return err
	}
	push := func(t *tensor.Tensor) {
		if t == nil {
			t = tensor.Vector(nil)
		}
		ctx.Stack.Push(t)
	}
	push(mesh.Positions)
	push(mesh.Indices)
	push(mesh.Joints)
	push(mesh.Weights)
	push(mesh.AnimTimes)
	push(mesh.AnimValues)
	return nil
}

// reload recompiles path into a fresh Program and resets every piece
// of runtime state that Program shaped (the var block's layout, big
// variable slots, compiled compute pipelines): spec.md §4.6's LOAD is
// a cold restart of the machine, not a call into a subroutine.
func (ctx *Context) reload(path string) error {
	src, err := ctx.Loader.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	prog, err := compiler.Compile(ctx.Loader, path, string(src))
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	for _, c := range ctx.Computes {
		c.Delete()
	}
	ctx.Program = prog
	ctx.Stack.Cls()
	ctx.VarBlock = make([]float32, varBlockSize(prog))
	ctx.BigVars = make([]*tensor.Tensor, prog.BigVarCount)
	ctx.Computes = make(map[int]*compute.Compute)
	ctx.varSizeAtOffset = varSizeIndex(prog)
	ctx.returns = ctx.returns[:0]
	ctx.pc = 0
	return nil
}

// texture ensures the top of the stack is GPU-resident (uploading it to
// the generic packed layout if it is on the host) and switches its
// texture to mipmapped, mirror-repeat, anisotropic sampling via
// tensor.Textureify; the texel layout itself is unchanged.
func (ctx *Context) texture() error {
	t, err := ctx.Stack.Top()
	if err != nil {
		return err
	}
	if err := tensor.ToGPUMemory(t); err != nil {
		return err
	}
	return tensor.Textureify(t)
}

// compute lazily builds (and caches, by declaring step index, so a
// COMPUTE inside a loop body compiles its shader only once) the
// pipeline for s, then runs it against the stack.
func (ctx *Context) compute(s *compiler.Step) error {
	c, ok := ctx.Computes[ctx.pc]
	if !ok {
		var err error
		c, err = compute.New(s.ComputeSpec, ctx.Program.VarNames)
		if err != nil {
			return err
		}
		ctx.Computes[ctx.pc] = c
	}
	return c.Run(ctx.Stack, ctx.Flags, ctx.VertCount)
}

// kettle pops a destination filename and a tensor count, then packs
// the count tensors already on the stack (without removing them — a
// KETTLE is a snapshot, not a consuming write; the program's own
// subsequent POPs discard what it no longer needs, matching spec.md
// §8 scenario 6's "kettle; pop; pop; pop;" sequence).
func (ctx *Context) kettle() error {
	nameT, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	path, err := stringFromTensor(nameT)
	if err != nil {
		return err
	}
	count, err := ctx.popScalar()
	if err != nil {
		return err
	}
	n := int(count)
	tensors := make([]*tensor.Tensor, n)
	for depth := 0; depth < n; depth++ {
		t, err := ctx.Stack.At(uint32(depth))
		if err != nil {
			return err
		}
		tensors[n-1-depth] = t
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("kettle %s: %w", path, err)
	}
	defer f.Close()
	return kettle.Pack(f, tensors)
}

// unkettle pops a source filename and pushes every tensor it contains,
// in the order they were kettled. The underlying kettle.UnpackState is
// a resumable state machine (spec.md §9's redesign note, since
// inflating a large archive can outrun a frame's budget); this step
// drives it to completion in one call for simplicity, rather than
// threading a cross-frame suspend point through Context.Run.
func (ctx *Context) unkettle() error {
	nameT, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	path, err := stringFromTensor(nameT)
	if err != nil {
		return err
	}
	state := kettle.NewUnpackState(path)
	for {
		status, err := state.Step(16 * time.Millisecond)
		if err != nil {
			return err
		}
		if status == kettle.Done {
			break
		}
	}
	for _, t := range state.Tensors() {
		ctx.Stack.Push(t)
	}
	return nil
}
