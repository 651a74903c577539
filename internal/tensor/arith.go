package tensor

import (
	"fmt"

	math "github.com/chewxy/math32"
)

// BinOp is an elementwise binary operator.
type BinOp byte

const (
	OpAdd BinOp = '+'
	OpSub BinOp = '-'
	OpMul BinOp = '*'
	OpDiv BinOp = '/'
	OpPow BinOp = '^'
)

func applyBinOp(op BinOp, x, y float32) float32 {
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		return x / y
	case OpPow:
		return math.Pow(x, y)
	default:
		panic("tensor: unknown binop")
	}
}

// ElementWise applies op to a and b elementwise, returning a new owned
// tensor. a and b must have identical rank and shape.
func ElementWise(op BinOp, a, b *Tensor) (*Tensor, error) {
	if a.Rank != b.Rank {
		return nil, fmt.Errorf("%c: rank mismatch %d vs %d", op, a.Rank, b.Rank)
	}
	for i := 0; i < a.Rank; i++ {
		if a.Shape[i] != b.Shape[i] {
			return nil, fmt.Errorf("%c: shape mismatch at axis %d: %d vs %d", op, i, a.Shape[i], b.Shape[i])
		}
	}
	out := make([]float32, a.Size)
	walk(a.Rank, a.Shape, func(pos [MaxRank]uint32) {
		out[linearOf(a.Rank, a.Shape, pos)] = applyBinOp(op, elementAt(a, pos), elementAt(b, pos))
	})
	return New(a.Rank, a.Shape, out), nil
}

// UnaryOp is an elementwise unary operator applied in place.
type UnaryOp byte

const (
	OpSin UnaryOp = iota
	OpCos
	OpFloor
	OpCeil
)

// UnaryInPlace applies op to every element of t, mutating its storage
// in place. t must be owned and host-resident (callers materialize
// with TakeOwnership/ToHostMemory first).
func UnaryInPlace(op UnaryOp, t *Tensor) error {
	host, ok := t.Storage.(*HostStorage)
	if !ok {
		return fmt.Errorf("unary op: tensor is not host-resident")
	}
	if !t.Owned {
		return fmt.Errorf("unary op: tensor is not owned; call TakeOwnership first")
	}
	var f func(float32) float32
	switch op {
	case OpSin:
		f = math.Sin
	case OpCos:
		f = math.Cos
	case OpFloor:
		f = math.Floor
	case OpCeil:
		f = math.Ceil
	default:
		return fmt.Errorf("unary op: unknown op %d", op)
	}
	walk(t.Rank, t.Shape, func(pos [MaxRank]uint32) {
		i := t.index(pos)
		host.Data[i] = f(host.Data[i])
	})
	return nil
}

// MinMax returns a new rank-1 length-2 tensor (min, max) of t's
// elements. t must not be empty.
func MinMax(t *Tensor) (*Tensor, error) {
	if t.Size == 0 {
		return nil, fmt.Errorf("minmax: empty tensor")
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	walk(t.Rank, t.Shape, func(pos [MaxRank]uint32) {
		v := elementAt(t, pos)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	})
	return Vector([]float32{lo, hi}), nil
}

// Length returns the Euclidean norm of a rank-1 vector.
func Length(t *Tensor) (float32, error) {
	if t.Rank != 1 {
		return 0, fmt.Errorf("length: expected rank-1 vector, got rank %d", t.Rank)
	}
	var sum float32
	walk(1, t.Shape, func(pos [MaxRank]uint32) {
		v := elementAt(t, pos)
		sum += v * v
	})
	return math.Sqrt(sum), nil
}

// AsScalar reads t's first element as a float32. The evaluator uses
// this to pull runtime arguments (repeat counts, bury/raise depths,
// if/ifn conditions) off the stack, matching the original's pattern of
// popping a one-element tensor for these rather than baking the value
// into the compiled step.
func AsScalar(t *Tensor) (float32, error) {
	if t.Size == 0 {
		return 0, fmt.Errorf("as scalar: empty tensor")
	}
	if err := EnsureContiguous(t); err != nil {
		return 0, fmt.Errorf("as scalar: %w", err)
	}
	host := t.Storage.(*HostStorage)
	return host.Data[t.Offset], nil
}

// Shape returns a new rank-1 tensor holding t's shape as floats.
func Shape(t *Tensor) *Tensor {
	data := make([]float32, t.Rank)
	for i := 0; i < t.Rank; i++ {
		data[i] = float32(t.Shape[i])
	}
	return Vector(data)
}
