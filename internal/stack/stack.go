// Package stack implements the tensor value stack the evaluator
// operates on: push/pop/index access plus the bounded reuse cache that
// lets a COMPUTE step reclaim a same-shaped GPU tensor instead of
// reallocating a texture every step.
package stack

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/soypat/atlas/internal/tensor"
)

// reuseCacheSize bounds how many distinct GPU tensor shapes the stack
// remembers for reuse (original_source/tensor.h's TENSOR_CACHE).
const reuseCacheSize = 24

// ReuseKey identifies GPU tensors interchangeable for allocation reuse:
// same footprint and channel layout, regardless of their former values.
type ReuseKey struct {
	Width, Height, Layers, Channels uint32
}

// Stack is Atlas's tensor value stack.
type Stack struct {
	items []*tensor.Tensor
	reuse *lru.Cache
}

// New returns an empty stack with its reuse cache initialized.
func New() *Stack {
	c, err := lru.New(reuseCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which reuseCacheSize never is.
		panic(err)
	}
	return &Stack{reuse: c}
}

// Len returns the number of tensors currently on the stack.
func (s *Stack) Len() int { return len(s.items) }

// Push places t on top of the stack.
func (s *Stack) Push(t *tensor.Tensor) {
	s.items = append(s.items, t)
}

// At returns the tensor at depth positions below the top (depth 0 is
// the top of the stack) without removing it.
func (s *Stack) At(depth uint32) (*tensor.Tensor, error) {
	i := len(s.items) - 1 - int(depth)
	if i < 0 || i >= len(s.items) {
		return nil, fmt.Errorf("stack: depth %d out of range (size %d)", depth, len(s.items))
	}
	return s.items[i], nil
}

// Top returns the tensor on top of the stack without removing it.
func (s *Stack) Top() (*tensor.Tensor, error) { return s.At(0) }

// Pop removes and returns the top of the stack. A GPU-resident, owned
// tensor being discarded is first offered to the reuse cache instead of
// being left for the garbage collector to eventually reclaim its texture.
func (s *Stack) Pop() (*tensor.Tensor, error) {
	t, err := s.Top()
	if err != nil {
		return nil, err
	}
	s.items = s.items[:len(s.items)-1]
	s.stashIfReusable(t)
	return t, nil
}

// Drop pops and discards the top of the stack (the POP step).
func (s *Stack) Drop() error {
	_, err := s.Pop()
	return err
}

// Dup duplicates the tensor at depth and pushes the duplicate on top.
// The duplicate is a view (Owned=false) sharing the source's storage,
// matching every other shape op's aliasing discipline.
func (s *Stack) Dup(depth uint32) error {
	t, err := s.At(depth)
	if err != nil {
		return fmt.Errorf("dup: %w", err)
	}
	s.Push(t.Clone())
	return nil
}

// Rot moves the tensor at depth to the top of the stack.
func (s *Stack) Rot(depth uint32) error {
	i := len(s.items) - 1 - int(depth)
	if i < 0 || i >= len(s.items) {
		return fmt.Errorf("rot: depth %d out of range (size %d)", depth, len(s.items))
	}
	t := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.items = append(s.items, t)
	return nil
}

// Bury moves the top of the stack down to depth positions below the
// new top (the inverse of Rot).
func (s *Stack) Bury(depth uint32) error {
	if len(s.items) == 0 {
		return fmt.Errorf("bury: stack is empty")
	}
	top := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	i := len(s.items) - int(depth)
	if i < 0 || i > len(s.items) {
		return fmt.Errorf("bury: depth %d out of range (size %d)", depth, len(s.items)+1)
	}
	s.items = append(s.items[:i], append([]*tensor.Tensor{top}, s.items[i:]...)...)
	return nil
}

// Cls clears the entire stack, stashing any reusable GPU tensors first.
func (s *Stack) Cls() {
	for _, t := range s.items {
		s.stashIfReusable(t)
	}
	s.items = s.items[:0]
}

func (s *Stack) stashIfReusable(t *tensor.Tensor) {
	gpu, ok := t.Storage.(*tensor.GPUStorage)
	if !ok || !t.Owned {
		return
	}
	key := ReuseKey{Width: gpu.Width, Height: gpu.Height, Layers: gpu.Layers, Channels: gpu.Channels}
	s.reuse.Add(key, t)
}

// Reusable returns a previously-discarded GPU tensor matching key, if
// one is cached, removing it from the cache. Callers that accept a
// reused tensor take ownership of its texture; the caller is
// responsible for clearing or overwriting its contents before trusting
// its values.
func (s *Stack) Reusable(key ReuseKey) (*tensor.Tensor, bool) {
	v, ok := s.reuse.Get(key)
	if !ok {
		return nil, false
	}
	s.reuse.Remove(key)
	return v.(*tensor.Tensor), true
}
