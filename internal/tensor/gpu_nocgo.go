//go:build tinygo || !cgo

package tensor

import "errors"

var errNoCgo = errors.New("tensor: gpu transfers need cgo")

// ToGPUMemory is unavailable without cgo (see glgl_nocgo.go).
func ToGPUMemory(t *Tensor) error { return errNoCgo }

// ToHostMemory is unavailable without cgo (see glgl_nocgo.go).
func ToHostMemory(t *Tensor) error { return errNoCgo }

// BeginToHostMemoryAsync is unavailable without cgo (see glgl_nocgo.go).
func BeginToHostMemoryAsync(t *Tensor) error { return errNoCgo }

// EndToHostMemoryAsync is unavailable without cgo (see glgl_nocgo.go).
func EndToHostMemoryAsync(t *Tensor) error { return errNoCgo }

// TakeOwnership still works for host tensors without cgo; only the GPU
// case needs a real context.
func TakeOwnership(t *Tensor) error {
	if t.Owned {
		return nil
	}
	host, ok := t.Storage.(*HostStorage)
	if !ok {
		return errNoCgo
	}
	data := make([]float32, t.Size)
	walk(t.Rank, t.Shape, func(pos [MaxRank]uint32) {
		data[linearOf(t.Rank, t.Shape, pos)] = elementAt(t, pos)
	})
	_ = host
	t.Storage = &HostStorage{Data: data}
	t.Strides = canonicalStrides(t.Rank, t.Shape)
	t.Offset = 0
	t.Owned = true
	return nil
}

// EnsureContiguous still works for host tensors without cgo.
func EnsureContiguous(t *Tensor) error {
	if t.OnGPU() || t.InFlight() {
		return errNoCgo
	}
	if t.IsContiguous() && t.Owned {
		return nil
	}
	return TakeOwnership(t)
}
