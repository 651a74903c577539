package eval

import (
	"fmt"

	"github.com/soypat/atlas/internal/compiler"
	"github.com/soypat/atlas/internal/tensor"
)

// opToBinOp/opToUnaryOp translate the compiler's Op enum (shared with
// OpCompute and friends) down to tensor's narrower operator types.
func opToBinOp(op compiler.Op) tensor.BinOp {
	switch op {
	case compiler.OpAdd:
		return tensor.OpAdd
	case compiler.OpSub:
		return tensor.OpSub
	case compiler.OpMul:
		return tensor.OpMul
	case compiler.OpDiv:
		return tensor.OpDiv
	case compiler.OpPow:
		return tensor.OpPow
	}
	panic("eval: not a binop")
}

func opToUnaryOp(op compiler.Op) tensor.UnaryOp {
	switch op {
	case compiler.OpSin:
		return tensor.OpSin
	case compiler.OpCos:
		return tensor.OpCos
	case compiler.OpFloor:
		return tensor.OpFloor
	case compiler.OpCeil:
		return tensor.OpCeil
	}
	panic("eval: not a unary op")
}

// binOp pops b (top) then a (the operand pushed before it) and pushes
// a op b, matching ordinary RPN left-to-right evaluation: "a; b; -"
// computes a-b.
func (ctx *Context) binOp(op compiler.Op) error {
	b, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	a, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	out, err := tensor.ElementWise(opToBinOp(op), a, b)
	if err != nil {
		return err
	}
	ctx.Stack.Push(out)
	return nil
}

// unaryOp mutates the top of the stack in place; TakeOwnership first
// since sin/cos/floor/ceil require an owned, host-resident tensor and
// the top of the stack is very often a view (a DUP, a slice, ...).
func (ctx *Context) unaryOp(op compiler.Op) error {
	return ctx.inPlace(func(t *tensor.Tensor) error {
		if err := tensor.EnsureContiguous(t); err != nil {
			return err
		}
		return tensor.UnaryInPlace(opToUnaryOp(op), t)
	})
}

// inPlace applies fn to the top of the stack without changing stack
// depth: shape ops like Transpose/Reverse/Enclose mutate the top
// tensor in place, and the stack keeps holding the same pointer.
func (ctx *Context) inPlace(fn func(*tensor.Tensor) error) error {
	t, err := ctx.Stack.Top()
	if err != nil {
		return err
	}
	return fn(t)
}

// minmax replaces the top of the stack with its (min, max) pair.
func (ctx *Context) minmax() error {
	t, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	out, err := tensor.MinMax(t)
	if err != nil {
		return err
	}
	ctx.Stack.Push(out)
	return nil
}

// length replaces the top of the stack (a rank-1 vector) with its
// Euclidean norm.
func (ctx *Context) length() error {
	t, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	v, err := tensor.Length(t)
	if err != nil {
		return err
	}
	ctx.Stack.Push(tensor.Scalar(v))
	return nil
}

// shape inspects the top of the stack (without consuming it) and
// pushes a rank-1 vector of its shape.
func (ctx *Context) shape() error {
	t, err := ctx.Stack.Top()
	if err != nil {
		return err
	}
	ctx.Stack.Push(tensor.Shape(t))
	return nil
}

// size inspects the top of the stack (without consuming it) and
// pushes its total element count as a scalar.
func (ctx *Context) size() error {
	t, err := ctx.Stack.Top()
	if err != nil {
		return err
	}
	ctx.Stack.Push(tensor.Scalar(float32(t.Size)))
	return nil
}

// cat pops an axis scalar, then b (the new top), then a, and pushes
// Cat(a, b, axis) (spec.md §4.3: "cat(a,b,axis)" reads left-to-right
// in push order, so a was pushed first and is now the deeper operand).
func (ctx *Context) cat() error {
	axis, err := ctx.popScalar()
	if err != nil {
		return err
	}
	b, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	a, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	out, err := tensor.Cat(a, b, int(axis))
	if err != nil {
		return err
	}
	ctx.Stack.Push(out)
	return nil
}

// reverse pops an axis scalar and flips the new top along it in place.
func (ctx *Context) reverse() error {
	axis, err := ctx.popScalar()
	if err != nil {
		return err
	}
	return ctx.inPlace(func(t *tensor.Tensor) error { return tensor.Reverse(t, int(axis)) })
}

// transpose pops an (axis1, axis2) pair and swaps them on the new top
// in place.
func (ctx *Context) transpose() error {
	axes, err := ctx.popVector(2)
	if err != nil {
		return err
	}
	return ctx.inPlace(func(t *tensor.Tensor) error { return tensor.Transpose(t, int(axes[0]), int(axes[1])) })
}

// slice pops a (start, end, axis) triple and narrows the new top along
// axis to [start, end) in place.
func (ctx *Context) slice() error {
	args, err := ctx.popVector(3)
	if err != nil {
		return err
	}
	start, end, axis := args[0], args[1], args[2]
	return ctx.inPlace(func(t *tensor.Tensor) error { return tensor.Slice(t, int(axis), int32(start), int32(end)) })
}

// repeat pops a count scalar and replaces the new top with count
// copies stacked along a fresh leading dimension.
func (ctx *Context) repeat() error {
	count, err := ctx.popScalar()
	if err != nil {
		return err
	}
	t, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	out, err := tensor.Repeat(t, uint32(count))
	if err != nil {
		return err
	}
	ctx.Stack.Push(out)
	return nil
}

// index pops, in push order, source then indices then an axis scalar
// (the axis was pushed last, so it is popped first) and pushes
// Index(source, indices, axis).
func (ctx *Context) index() error {
	axis, err := ctx.popScalar()
	if err != nil {
		return err
	}
	indices, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	source, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	out, err := tensor.Index(source, indices, int(axis))
	if err != nil {
		return err
	}
	ctx.Stack.Push(out)
	return nil
}

// bury pops a depth scalar and buries the (new) top that many
// positions down.
func (ctx *Context) bury() error {
	depth, err := ctx.popScalar()
	if err != nil {
		return err
	}
	return ctx.Stack.Bury(uint32(depth))
}

// raise pops a depth scalar and raises the item at that depth to the
// top of the (now-shorter) stack.
func (ctx *Context) raise() error {
	depth, err := ctx.popScalar()
	if err != nil {
		return err
	}
	return ctx.Stack.Rot(uint32(depth))
}

// firstLast pops the top and pushes fn's axis-0 slice of it.
func (ctx *Context) firstLast(fn func(*tensor.Tensor) (*tensor.Tensor, error)) error {
	t, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	out, err := fn(t)
	if err != nil {
		return err
	}
	ctx.Stack.Push(out)
	return nil
}

// matmul pops the top (the most recently pushed operand) and the item
// beneath it, and pushes MatMul(top, second) — see
// internal/tensor/matrix.go's doc comment for why this operand order
// is the one that makes "M; v; translate; m" compose as M applied
// after the translation.
func (ctx *Context) matmul() error {
	top, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	second, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	out, err := tensor.MatMul(top, second)
	if err != nil {
		return err
	}
	ctx.Stack.Push(out)
	return nil
}

// transform pops the top (a parameter vector) and pushes fn's 4x4
// matrix built from it.
func (ctx *Context) transform(fn func(*tensor.Tensor) (*tensor.Tensor, error)) error {
	v, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	out, err := fn(v)
	if err != nil {
		return err
	}
	ctx.Stack.Push(out)
	return nil
}

// toString pops the top and pushes a text-buffer tensor of its
// pretty-printed form (internal/printer), so downstream steps can
// handle it like any other string value.
func (ctx *Context) toString() error {
	t, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	s, err := ctx.formatTensor(t)
	if err != nil {
		return err
	}
	ctx.Stack.Push(tensor.NewTextBufferView(s))
	return nil
}

// print pops the top, logs its pretty-printed form, and does not push
// anything back — callers that need to keep the value alive DUP it
// first (spec.md §8's loop scenario: "dup; print;").
func (ctx *Context) print() error {
	t, err := ctx.Stack.Pop()
	if err != nil {
		return err
	}
	s, err := ctx.formatTensor(t)
	if err != nil {
		return err
	}
	fmt.Println(s)
	return nil
}
