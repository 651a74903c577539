package eval

import (
	"fmt"

	"github.com/soypat/atlas/internal/compiler"
	"github.com/soypat/atlas/internal/tensor"
)

// set pops the top of the stack and stores it at s.VarIndex. Big
// variables (IsBigVar) take ownership of the popped tensor wholesale;
// sized variables copy their elements into the shared VarBlock and
// eagerly push the new value to every live compute pipeline's cached
// uniform location (spec.md §4.6: SET's write is visible to every
// COMPUTE step that declared the variable, not just the next one
// compiled).
func (ctx *Context) set(s *compiler.Step) error {
	t, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	if s.IsBigVar {
		ctx.BigVars[s.VarIndex] = t
		return nil
	}
	if err := tensor.EnsureContiguous(t); err != nil {
		return err
	}
	vals, err := floatsOf(t)
	if err != nil {
		return err
	}
	if len(vals) != s.VarSize {
		return fmt.Errorf("set %s: expected %d values, got %d", s.VarName, s.VarSize, len(vals))
	}
	copy(ctx.VarBlock[s.VarIndex:s.VarIndex+s.VarSize], vals)

	name := glslSafe(s.VarName)
	for _, c := range ctx.Computes {
		c.SetVar(name, vals)
	}
	return nil
}

// get pushes the current value of s.VarIndex. A sized variable's
// result is a live view over ctx.VarBlock (later SETs are visible
// through it, same as the original's uniform block aliasing); a big
// variable's result is always a genuine copy, since BigVars holds the
// program's only reference and the stack must be free to mutate its
// own copy without corrupting it.
func (ctx *Context) get(s *compiler.Step) error {
	if s.IsBigVar {
		t := ctx.BigVars[s.VarIndex]
		if t == nil {
			return fmt.Errorf("get %s: variable never set", s.VarName)
		}
		clone := t.Clone()
		if err := tensor.TakeOwnership(clone); err != nil {
			return err
		}
		ctx.Stack.Push(clone)
		return nil
	}
	size, ok := ctx.varSizeAtOffset[s.VarIndex]
	if !ok {
		return fmt.Errorf("get %s: unknown variable offset %d", s.VarName, s.VarIndex)
	}
	rank, shape := varShape(size)
	view := tensor.New(rank, shape, make([]float32, size))
	view.Owned = false
	view.Offset = int32(s.VarIndex)
	view.Storage = &tensor.HostStorage{Data: ctx.VarBlock}
	ctx.Stack.Push(view)
	return nil
}
