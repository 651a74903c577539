// Package eval walks a compiled compiler.Program one step at a time
// (spec.md §4.6): a flat switch over compiler.Op, never a tree walk,
// operating on the same tensor stack and GPU compute pipeline
// internal/stack and internal/compute already provide.
package eval

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/soypat/atlas/internal/compiler"
	"github.com/soypat/atlas/internal/compute"
	"github.com/soypat/atlas/internal/meshsrc"
	"github.com/soypat/atlas/internal/stack"
	"github.com/soypat/atlas/internal/tensor"
)

// Gamepad is one connected controller's axes and buttons, laid out the
// way original_source/input.c packs a gamepad frame: 6 axes followed
// by 15 digital buttons, each a float32 (1 pressed, 0 released).
type Gamepad [21]float32

// Input is the host-gathered frame state the INPUT/KEYS/GAMEPAD/
// WINDOWSIZE/TIMEDELTA steps read. cmd/atlas refills it once per frame
// before calling Context.Run; Context.Run zeroes MouseDX/MouseDY after
// INPUT reads them, matching the original's "mouse delta is an edge,
// not a level" convention.
type Input struct {
	MouseX, MouseY     float32
	MouseDX, MouseDY   float32
	MouseButtons       float32 // bitmask, button i is bit i
	Keys               []float32
	Gamepads           []Gamepad
	WindowW, WindowH   float32
	TimeDelta          float32
}

// Context is one program's live execution state: the tensor stack, the
// flat uniform-variable block, big variables, compiled compute
// pipelines (cached by declaring step index), the call stack, and the
// render-state toggles that spec.md §9's redesign note keeps as plain
// struct fields instead of process-wide globals.
type Context struct {
	Loader  compiler.FileLoader
	Log     *slog.Logger
	Program *compiler.Program

	Stack      *stack.Stack
	VarBlock   []float32
	BigVars    []*tensor.Tensor
	Computes   map[int]*compute.Compute
	MeshLoader meshsrc.Loader

	Flags   compute.Flags
	VertCount int

	varSizeAtOffset map[int]int

	returns []int
	pc      int

	Input Input
}

// New builds a Context ready to run prog. vertCount is the fixed
// fullscreen-quad vertex count every synthesized compute shader's
// gl_VertexID indexing assumes (internal/compute/shader.go's
// _a_corners[6]); callers outside tests always pass 6.
func New(loader compiler.FileLoader, log *slog.Logger, prog *compiler.Program, vertCount int) *Context {
	if log == nil {
		log = slog.Default()
	}
	ctx := &Context{
		Loader:          loader,
		Log:             log,
		Program:         prog,
		Stack:           stack.New(),
		VarBlock:        make([]float32, varBlockSize(prog)),
		BigVars:         make([]*tensor.Tensor, prog.BigVarCount),
		Computes:        make(map[int]*compute.Compute),
		MeshLoader:      meshsrc.Default,
		VertCount:       vertCount,
		varSizeAtOffset: varSizeIndex(prog),
	}
	return ctx
}

// varSizeIndex inverts Program's parallel VarOffsets/VarSizes slices
// (a GET step only carries the offset a prior SET resolved to, not the
// declared size) so Context.get can recover how many floats — and
// what shape — a sized variable holds.
func varSizeIndex(p *compiler.Program) map[int]int {
	m := make(map[int]int, len(p.VarOffsets))
	for i, off := range p.VarOffsets {
		m[off] = p.VarSizes[i]
	}
	return m
}

func varBlockSize(p *compiler.Program) int {
	total := 0
	for i, off := range p.VarOffsets {
		if end := off + varSlotWidth(p.VarSizes[i]); end > total {
			total = end
		}
	}
	return total
}

// varSlotWidth mirrors internal/compiler's pass-4 allocation width
// (sizes 1,2 occupy 2 floats, 3,4 occupy 4, 16 occupies 16), so the
// flat VarBlock the evaluator owns lines up with the offsets the
// compiler already assigned.
func varSlotWidth(size int) int {
	switch size {
	case 1, 2:
		return 2
	case 3, 4:
		return 4
	case 16:
		return 16
	}
	return 0
}

// glslSafe mirrors internal/compiler's identical unexported helper:
// workspace dots become underscores so a qualified variable name
// matches the identifier internal/compute synthesized into the
// uniform block.
func glslSafe(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// varShape picks the tensor shape a GET of a sized variable presents:
// a bare scalar for size 1, a rank-1 vector for 2/3/4, and a rank-2
// 4x4 matrix for 16 (the only shape a size-16 variable is ever used
// for: a transform matrix).
func varShape(size int) (rank int, shape [tensor.MaxRank]uint32) {
	switch size {
	case 1:
		return 0, [tensor.MaxRank]uint32{1, 1, 1, 1}
	case 16:
		return 2, [tensor.MaxRank]uint32{4, 4, 1, 1}
	default:
		return 1, [tensor.MaxRank]uint32{uint32(size), 1, 1, 1}
	}
}

// stepError formats an error the way spec.md §7 requires every fatal
// evaluator error to read: file:line command n: detail.
func stepError(s *compiler.Step, detail error) error {
	return fmt.Errorf("%s:%d command %d: %w", s.Filename, s.Line, s.CommandNum, detail)
}

// stringFromTensor reconstructs the string NewTextBufferView encoded:
// one float32 per Unicode codepoint.
func stringFromTensor(t *tensor.Tensor) (string, error) {
	if err := tensor.EnsureContiguous(t); err != nil {
		return "", err
	}
	vals, err := floatsOf(t)
	if err != nil {
		return "", err
	}
	runes := make([]rune, len(vals))
	for i, v := range vals {
		runes[i] = rune(v)
	}
	return string(runes), nil
}

// floatsOf returns a contiguous tensor's backing elements in logical
// (row-major) order. t must already be EnsureContiguous'd.
func floatsOf(t *tensor.Tensor) ([]float32, error) {
	host, ok := t.Storage.(*tensor.HostStorage)
	if !ok {
		return nil, fmt.Errorf("expected host-resident tensor")
	}
	return host.Data[t.Offset : t.Offset+int32(t.Size)], nil
}

// popScalar pops the top of the stack and reads it as a single float32
// (spec.md §4.3/§4.6: REP/BURY/RAISE/IF/IFN/CAT-axis/etc all
// take their argument this way rather than as a compiled-in operand).
func (ctx *Context) popScalar() (float32, error) {
	t, err := ctx.Stack.Pop()
	if err != nil {
		return 0, err
	}
	return tensor.AsScalar(t)
}

// popVector pops the top of the stack and reads it as exactly n
// float32 values (T's axis pair, S's start/end/axis triple, INDEX's
// axis scalar aside).
func (ctx *Context) popVector(n int) ([]float32, error) {
	t, err := ctx.Stack.Pop()
	if err != nil {
		return nil, err
	}
	if err := tensor.EnsureContiguous(t); err != nil {
		return nil, err
	}
	vals, err := floatsOf(t)
	if err != nil {
		return nil, err
	}
	if len(vals) != n {
		return nil, fmt.Errorf("expected %d-vector, got %d elements", n, len(vals))
	}
	return append([]float32(nil), vals...), nil
}

// Run executes one full pass over the program's steps (spec.md §5's
// single-pass-per-frame model) starting from the current program
// counter. The counter persists across calls that return early (QUIT,
// LOAD); running past the last step resets it to 0, so the next call
// starts again from the top. It returns false when the program executed
// QUIT (the host should stop calling Run), true otherwise (including
// after a LOAD, which replaces Program and returns immediately).
func (ctx *Context) Run() (bool, error) {
	steps := ctx.Program.Steps
	for ctx.pc < len(steps) {
		s := &steps[ctx.pc]
		cont, loaded, err := ctx.step(s)
		if err != nil {
			return false, stepError(s, err)
		}
		if loaded {
			return true, nil
		}
		if !cont {
			return false, nil
		}
		ctx.pc++
	}
	ctx.pc = 0
	return true, nil
}

// step executes one instruction. cont is false on QUIT (caller should
// stop); loaded is true after a successful LOAD, which has already
// reset ctx.pc and must not be post-incremented by Run.
func (ctx *Context) step(s *compiler.Step) (cont bool, loaded bool, err error) {
	switch s.Op {
	case compiler.OpPushTensor:
		ctx.Stack.Push(s.Tensor.Clone())

	case compiler.OpAdd, compiler.OpSub, compiler.OpMul, compiler.OpDiv, compiler.OpPow:
		err = ctx.binOp(s.Op)
	case compiler.OpSin, compiler.OpCos, compiler.OpFloor, compiler.OpCeil:
		err = ctx.unaryOp(s.Op)
	case compiler.OpMinMax:
		err = ctx.minmax()
	case compiler.OpLength:
		err = ctx.length()
	case compiler.OpShape:
		err = ctx.shape()
	case compiler.OpSize:
		err = ctx.size()

	case compiler.OpCat:
		err = ctx.cat()
	case compiler.OpReverse:
		err = ctx.reverse()
	case compiler.OpTranspose:
		err = ctx.transpose()
	case compiler.OpSlice:
		err = ctx.slice()
	case compiler.OpRepeat:
		err = ctx.repeat()
	case compiler.OpIndex:
		err = ctx.index()

	case compiler.OpDup:
		err = ctx.Stack.Dup(0)
	case compiler.OpPop:
		err = ctx.Stack.Drop()
	case compiler.OpBury:
		err = ctx.bury()
	case compiler.OpRaise:
		err = ctx.raise()
	case compiler.OpFirst:
		err = ctx.firstLast(tensor.TakeFirst)
	case compiler.OpLast:
		err = ctx.firstLast(tensor.TakeLast)
	case compiler.OpEnclose:
		err = ctx.inPlace(func(t *tensor.Tensor) error { return tensor.Enclose(t) })
	case compiler.OpExtrude:
		err = ctx.inPlace(func(t *tensor.Tensor) error { return tensor.Extrude(t) })
	case compiler.OpUnextrude:
		err = ctx.inPlace(func(t *tensor.Tensor) error { return tensor.Unextrude(t) })

	case compiler.OpMatMul:
		err = ctx.matmul()
	case compiler.OpTranslate:
		err = ctx.transform(tensor.Translate)
	case compiler.OpRotate:
		err = ctx.transform(tensor.Rotate)
	case compiler.OpProj:
		err = ctx.transform(tensor.Proj)
	case compiler.OpOrtho:
		err = ctx.transform(tensor.Ortho)

	case compiler.OpToString:
		err = ctx.toString()
	case compiler.OpPrint:
		err = ctx.print()

	case compiler.OpIf:
		return ctx.branch(s, true)
	case compiler.OpIfn:
		return ctx.branch(s, false)
	case compiler.OpCall:
		ctx.returns = append(ctx.returns, ctx.pc)
		ctx.pc = s.Branch - 1
		return true, false, nil
	case compiler.OpReturn:
		if len(ctx.returns) == 0 {
			return false, false, fmt.Errorf("return: call stack is empty")
		}
		ctx.pc = ctx.returns[len(ctx.returns)-1]
		ctx.returns = ctx.returns[:len(ctx.returns)-1]
	case compiler.OpQuit:
		return false, false, nil

	case compiler.OpSet:
		err = ctx.set(s)
	case compiler.OpGet:
		err = ctx.get(s)

	case compiler.OpCompute:
		err = ctx.compute(s)

	case compiler.OpImg:
		err = ctx.img(s.Path)
	case compiler.OpImport:
		err = ctx.importMesh(s.Path)
	case compiler.OpLoad:
		if err = ctx.reload(s.Path); err != nil {
			return false, false, err
		}
		return true, true, nil
	case compiler.OpLoadFromStack:
		t, perr := ctx.Stack.Pop()
		if perr != nil {
			return false, false, perr
		}
		path, serr := stringFromTensor(t)
		if serr != nil {
			return false, false, serr
		}
		if err = ctx.reload(path); err != nil {
			return false, false, err
		}
		return true, true, nil
	case compiler.OpKettle:
		err = ctx.kettle()
	case compiler.OpUnkettle:
		err = ctx.unkettle()
	case compiler.OpTexture:
		err = ctx.texture()

	case compiler.OpInput:
		ctx.input()
	case compiler.OpKeys:
		ctx.keys()
	case compiler.OpGamepad:
		ctx.gamepad()
	case compiler.OpWindowSize:
		ctx.windowSize()
	case compiler.OpTimeDelta:
		ctx.Stack.Push(tensor.Scalar(ctx.Input.TimeDelta))

	case compiler.OpDepth:
		ctx.Flags.DepthTest = !ctx.Flags.DepthTest
	case compiler.OpAdditive:
		ctx.Flags.Additive = !ctx.Flags.Additive
	case compiler.OpBackface:
		ctx.Flags.Backface = !ctx.Flags.Backface

	default:
		err = fmt.Errorf("unimplemented op %d", s.Op)
	}
	if err != nil {
		return false, false, err
	}
	return true, false, nil
}

// branch pops a scalar condition and jumps to s.Branch when it
// satisfies wantPositive (true for IF: >0; false for IFN: <=0). The
// target is the label's own step index; Run's post-increment of pc
// after step returns would otherwise skip it, so branch sets
// ctx.pc = s.Branch - 1 and lets the ordinary increment land exactly
// on the label (matching every other non-branching step's pc flow).
func (ctx *Context) branch(s *compiler.Step, wantPositive bool) (bool, bool, error) {
	v, err := ctx.popScalar()
	if err != nil {
		return false, false, err
	}
	taken := v > 0
	if !wantPositive {
		taken = v <= 0
	}
	if taken {
		ctx.pc = s.Branch - 1
	}
	return true, false, nil
}
