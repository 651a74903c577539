package tensor

import "fmt"

// Transpose swaps t's shape and stride entries at axis1 and axis2 in
// place; t continues to share its Storage (a view).
func Transpose(t *Tensor, axis1, axis2 int) error {
	if axis1 < 0 || axis1 >= t.Rank || axis2 < 0 || axis2 >= t.Rank {
		return fmt.Errorf("transpose: axis out of range for rank %d: %d, %d", t.Rank, axis1, axis2)
	}
	t.Shape[axis1], t.Shape[axis2] = t.Shape[axis2], t.Shape[axis1]
	t.Strides[axis1], t.Strides[axis2] = t.Strides[axis2], t.Strides[axis1]
	t.Owned = false
	return nil
}

// Reverse flips t along axis by walking its offset to the last
// element of that axis and negating the axis stride, in place.
func Reverse(t *Tensor, axis int) error {
	if axis < 0 || axis >= t.Rank {
		return fmt.Errorf("reverse: axis %d out of range for rank %d", axis, t.Rank)
	}
	t.Offset += t.Strides[axis] * int32(t.Shape[axis]-1)
	t.Strides[axis] = -t.Strides[axis]
	t.Owned = false
	return nil
}

// Slice narrows t along axis to [start,end), in place. Negative start
// or end count from the end of the axis, per spec.md §4.3.
func Slice(t *Tensor, axis int, start, end int32) error {
	if axis < 0 || axis >= t.Rank {
		return fmt.Errorf("slice: axis %d out of range for rank %d", axis, t.Rank)
	}
	n := int32(t.Shape[axis])
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 || end > n || start > end {
		return fmt.Errorf("slice: invalid range [%d,%d) for axis of length %d", start, end, n)
	}
	t.Offset += t.Strides[axis] * start
	t.Shape[axis] = uint32(end - start)
	t.Size = recomputeSize(t)
	t.Owned = false
	return nil
}

func recomputeSize(t *Tensor) uint32 {
	size := uint32(1)
	for i := 0; i < t.Rank; i++ {
		size *= t.Shape[i]
	}
	return size
}

// TakeFirst returns a new rank-(t.Rank-1) view of the first element
// of t along axis 0, sharing t's Storage.
func TakeFirst(t *Tensor) (*Tensor, error) {
	return takeAt(t, 0)
}

// TakeLast returns a new rank-(t.Rank-1) view of the last element of
// t along axis 0, sharing t's Storage.
func TakeLast(t *Tensor) (*Tensor, error) {
	return takeAt(t, t.Shape[0]-1)
}

func takeAt(t *Tensor, at uint32) (*Tensor, error) {
	if t.Rank == 0 {
		return nil, fmt.Errorf("first/last: scalar has no axis 0")
	}
	v := t.Clone()
	v.Offset = t.Offset + t.Strides[0]*int32(at)
	for i := 0; i < t.Rank-1; i++ {
		v.Shape[i] = t.Shape[i+1]
		v.Strides[i] = t.Strides[i+1]
	}
	v.Rank = t.Rank - 1
	for i := v.Rank; i < MaxRank; i++ {
		v.Shape[i] = 1
		v.Strides[i] = 0
	}
	v.Size = recomputeSize(v)
	return v, nil
}

// Enclose prepends a leading dimension of size 1, in place.
func Enclose(t *Tensor) error {
	if t.Rank >= MaxRank {
		return fmt.Errorf("enclose: already at max rank %d", MaxRank)
	}
	for i := t.Rank; i > 0; i-- {
		t.Shape[i] = t.Shape[i-1]
		t.Strides[i] = t.Strides[i-1]
	}
	t.Shape[0] = 1
	t.Strides[0] = t.Strides[1] * int32(t.Shape[1])
	t.Rank++
	t.Owned = false
	return nil
}

// Extrude appends a trailing dimension of size 1, in place.
func Extrude(t *Tensor) error {
	if t.Rank >= MaxRank {
		return fmt.Errorf("extrude: already at max rank %d", MaxRank)
	}
	t.Shape[t.Rank] = 1
	t.Strides[t.Rank] = 1
	t.Rank++
	t.Owned = false
	return nil
}

// Unextrude removes a trailing dimension of size 1, in place. It is
// an error to unextrude a tensor whose trailing dimension isn't 1.
func Unextrude(t *Tensor) error {
	if t.Rank == 0 {
		return fmt.Errorf("unextrude: scalar has no trailing dimension")
	}
	if t.Shape[t.Rank-1] != 1 {
		return fmt.Errorf("unextrude: trailing dimension is %d, not 1", t.Shape[t.Rank-1])
	}
	t.Rank--
	t.Shape[t.Rank] = 1
	t.Strides[t.Rank] = 0
	t.Owned = false
	return nil
}

// Reshape reinterprets t with newShape, which must preserve total
// size. Reshape first materializes a contiguous copy if t is not
// already contiguous (a strided view cannot be reinterpreted without
// copying), then resets strides to canonical row-major.
func Reshape(t *Tensor, newRank int, newShape [MaxRank]uint32) error {
	if newRank < 0 || newRank > MaxRank {
		return fmt.Errorf("reshape: rank %d out of range", newRank)
	}
	newSize := uint32(1)
	for i := 0; i < newRank; i++ {
		newSize *= newShape[i]
	}
	if newSize != t.Size {
		return fmt.Errorf("reshape: size %d does not match current size %d", newSize, t.Size)
	}
	if err := EnsureContiguous(t); err != nil {
		return err
	}
	t.Rank = newRank
	t.Shape = newShape
	for i := newRank; i < MaxRank; i++ {
		t.Shape[i] = 1
	}
	t.Strides = canonicalStrides(newRank, t.Shape)
	t.Offset = 0
	return nil
}

// Cat concatenates a and b along axis, producing a new contiguous
// owned tensor. All other dimensions must match.
func Cat(a, b *Tensor, axis int) (*Tensor, error) {
	if a.Rank != b.Rank {
		return nil, fmt.Errorf("cat: rank mismatch %d vs %d", a.Rank, b.Rank)
	}
	if axis < 0 || axis >= a.Rank {
		return nil, fmt.Errorf("cat: axis %d out of range for rank %d", axis, a.Rank)
	}
	for i := 0; i < a.Rank; i++ {
		if i != axis && a.Shape[i] != b.Shape[i] {
			return nil, fmt.Errorf("cat: shape mismatch at axis %d: %d vs %d", i, a.Shape[i], b.Shape[i])
		}
	}
	outShape := a.Shape
	outShape[axis] = a.Shape[axis] + b.Shape[axis]
	out := New(a.Rank, outShape, make([]float32, recomputeSize(&Tensor{Rank: a.Rank, Shape: outShape})))
	data := out.Storage.(*HostStorage).Data

	walk(out.Rank, outShape, func(pos [MaxRank]uint32) {
		var src *Tensor
		srcPos := pos
		if pos[axis] < a.Shape[axis] {
			src = a
		} else {
			src = b
			srcPos[axis] -= a.Shape[axis]
		}
		data[linearOf(out.Rank, outShape, pos)] = elementAt(src, srcPos)
	})
	return out, nil
}

// Repeat inserts a new leading dimension of size count, duplicating
// t's data count times contiguously. Requires t.Rank < MaxRank.
func Repeat(t *Tensor, count uint32) (*Tensor, error) {
	if count < 1 {
		return nil, fmt.Errorf("repeat: count must be >= 1, got %d", count)
	}
	if t.Rank >= MaxRank {
		return nil, fmt.Errorf("repeat: rank %d already at max", t.Rank)
	}
	newRank := t.Rank + 1
	var newShape [MaxRank]uint32
	newShape[0] = count
	for i := 0; i < t.Rank; i++ {
		newShape[i+1] = t.Shape[i]
	}
	for i := newRank; i < MaxRank; i++ {
		newShape[i] = 1
	}
	total := count * t.Size
	data := make([]float32, total)
	single := make([]float32, t.Size)
	walk(t.Rank, t.Shape, func(pos [MaxRank]uint32) {
		single[linearOf(t.Rank, t.Shape, pos)] = elementAt(t, pos)
	})
	for r := uint32(0); r < count; r++ {
		copy(data[r*t.Size:(r+1)*t.Size], single)
	}
	return New(newRank, newShape, data), nil
}

// Index replaces the axis dimension of source with the gathered
// values at positions given by the rank-1 indices tensor. Negative
// indices wrap (Python-style); out-of-range indices are an error, not
// clamped.
func Index(source, indices *Tensor, axis int) (*Tensor, error) {
	if indices.Rank != 1 {
		return nil, fmt.Errorf("index: indices must be rank-1, got rank %d", indices.Rank)
	}
	if axis < 0 || axis >= source.Rank {
		return nil, fmt.Errorf("index: axis %d out of range for rank %d", axis, source.Rank)
	}
	idxVals := make([]int32, indices.Shape[0])
	for i := range idxVals {
		idxVals[i] = int32(elementAt(indices, [MaxRank]uint32{uint32(i)}))
	}
	axisLen := int32(source.Shape[axis])
	for i, v := range idxVals {
		if v < 0 {
			v += axisLen
		}
		if v < 0 || v >= axisLen {
			return nil, fmt.Errorf("index: index %d at position %d out of range [0,%d)", idxVals[i], i, axisLen)
		}
		idxVals[i] = v
	}

	outShape := source.Shape
	outShape[axis] = uint32(len(idxVals))
	out := New(source.Rank, outShape, make([]float32, recomputeSize(&Tensor{Rank: source.Rank, Shape: outShape})))
	data := out.Storage.(*HostStorage).Data
	walk(out.Rank, outShape, func(pos [MaxRank]uint32) {
		srcPos := pos
		srcPos[axis] = uint32(idxVals[pos[axis]])
		data[linearOf(out.Rank, outShape, pos)] = elementAt(source, srcPos)
	})
	return out, nil
}

// elementAt reads the logical element of t at pos (pos entries beyond
// t.Rank are ignored).
func elementAt(t *Tensor, pos [MaxRank]uint32) float32 {
	host := t.Storage.(*HostStorage)
	return host.Data[t.index(pos)]
}

// linearOf computes the row-major linear index of pos within shape
// truncated to rank axes.
func linearOf(rank int, shape [MaxRank]uint32, pos [MaxRank]uint32) uint32 {
	var idx uint32
	for i := 0; i < rank; i++ {
		idx = idx*shape[i] + pos[i]
	}
	return idx
}

// walk calls fn once per logical position in row-major order for a
// tensor of the given rank and shape.
func walk(rank int, shape [MaxRank]uint32, fn func(pos [MaxRank]uint32)) {
	if rank == 0 {
		fn([MaxRank]uint32{})
		return
	}
	var pos [MaxRank]uint32
	for {
		fn(pos)
		i := rank - 1
		for i >= 0 {
			pos[i]++
			if pos[i] < shape[i] {
				break
			}
			pos[i] = 0
			i--
		}
		if i < 0 {
			return
		}
	}
}
