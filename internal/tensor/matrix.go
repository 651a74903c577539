package tensor

import (
	"fmt"

	"github.com/soypat/atlas/math/ms3"
)

// MatMul multiplies two host matrices in host memory.
//
// Contract (spec.md §4.3): b.Shape[1] == a.Shape[0]; the result has
// rank 2 and shape (b.Shape[0], a.Shape[1]). Concretely this computes
// the standard row-major product B×A — out[p][q] = Σ_k B[p][k]*A[k][q]
// — which is the "column-major" reading spec.md's design notes call
// for: applying TranslateMat4/RotationMat4/etc to column vectors means
// a step sequence "M; v; translate; m" composes as M∘T (M applied
// after T), i.e. result = MatMul(top, second) where top is the most
// recently pushed operand (see SPEC_FULL.md Open Question 2).
func MatMul(a, b *Tensor) (*Tensor, error) {
	if a.Rank != 2 || b.Rank != 2 {
		return nil, fmt.Errorf("matmul: operands must be rank-2, got %d and %d", a.Rank, b.Rank)
	}
	if b.Shape[1] != a.Shape[0] {
		return nil, fmt.Errorf("matmul: inner dimension mismatch: b.Shape[1]=%d != a.Shape[0]=%d", b.Shape[1], a.Shape[0])
	}
	outRows, outCols := b.Shape[0], a.Shape[1]
	k := a.Shape[0]
	var outShape [MaxRank]uint32
	outShape[0], outShape[1] = outRows, outCols
	data := make([]float32, outRows*outCols)
	for p := uint32(0); p < outRows; p++ {
		for q := uint32(0); q < outCols; q++ {
			var sum float32
			for kk := uint32(0); kk < k; kk++ {
				sum += elementAt(a, [MaxRank]uint32{kk, q}) * elementAt(b, [MaxRank]uint32{p, kk})
			}
			data[p*outCols+q] = sum
		}
	}
	return New(2, outShape, data), nil
}

// mat4FromRowMajor builds an owned rank-2 (4,4) tensor from a row-major Mat4.
func mat4FromRowMajor(m ms3.Mat4) *Tensor {
	arr := m.Array()
	shape := [MaxRank]uint32{4, 4, 1, 1}
	return New(2, shape, arr[:])
}

func vecN(t *Tensor, n int) ([]float32, error) {
	if t.Rank != 1 || int(t.Shape[0]) != n {
		return nil, fmt.Errorf("expected rank-1 vector of length %d, got rank %d shape %d", n, t.Rank, t.Shape[0])
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = elementAt(t, [MaxRank]uint32{uint32(i)})
	}
	return out, nil
}

// Translate builds a 4x4 translation matrix from a popped 3-vector.
func Translate(v *Tensor) (*Tensor, error) {
	xs, err := vecN(v, 3)
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	return mat4FromRowMajor(ms3.TranslateMat4(ms3.Vec{X: xs[0], Y: xs[1], Z: xs[2]})), nil
}

// Rotate builds a 4x4 rotation matrix from a popped 4-vector
// (angleRadians, axisX, axisY, axisZ).
func Rotate(v *Tensor) (*Tensor, error) {
	xs, err := vecN(v, 4)
	if err != nil {
		return nil, fmt.Errorf("rot: %w", err)
	}
	return mat4FromRowMajor(ms3.RotationMat4(xs[0], ms3.Vec{X: xs[1], Y: xs[2], Z: xs[3]})), nil
}

// Proj builds a 4x4 perspective projection matrix from a popped
// 4-vector (fovyRadians, aspect, near, far).
func Proj(v *Tensor) (*Tensor, error) {
	xs, err := vecN(v, 4)
	if err != nil {
		return nil, fmt.Errorf("proj: %w", err)
	}
	return mat4FromRowMajor(ms3.PerspectiveMat4(xs[0], xs[1], xs[2], xs[3])), nil
}

// Ortho builds a 4x4 orthographic projection matrix from a popped
// 6-vector (left, right, bottom, top, near, far).
func Ortho(v *Tensor) (*Tensor, error) {
	xs, err := vecN(v, 6)
	if err != nil {
		return nil, fmt.Errorf("ortho: %w", err)
	}
	return mat4FromRowMajor(ms3.OrthoMat4(xs[0], xs[1], xs[2], xs[3], xs[4], xs[5])), nil
}
