package stack

import (
	"testing"

	"github.com/soypat/atlas/internal/tensor"
)

func TestPushPopOrder(t *testing.T) {
	s := New()
	a := tensor.Scalar(1)
	b := tensor.Scalar(2)
	s.Push(a)
	s.Push(b)
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	top, err := s.Pop()
	if err != nil {
		t.Fatal(err)
	}
	if top != b {
		t.Fatalf("expected to pop b first")
	}
	top, err = s.Pop()
	if err != nil {
		t.Fatal(err)
	}
	if top != a {
		t.Fatalf("expected to pop a second")
	}
	if _, err := s.Pop(); err == nil {
		t.Fatalf("expected error popping empty stack")
	}
}

func TestDupSharesStorage(t *testing.T) {
	s := New()
	a := tensor.Vector([]float32{1, 2, 3})
	s.Push(a)
	if err := s.Dup(0); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	top, _ := s.Top()
	if top.Storage != a.Storage {
		t.Fatalf("dup should share storage")
	}
	if top.Owned {
		t.Fatalf("dup should not be owned")
	}
}

func TestRotBringsDeepItemToTop(t *testing.T) {
	s := New()
	a, b, c := tensor.Scalar(1), tensor.Scalar(2), tensor.Scalar(3)
	s.Push(a)
	s.Push(b)
	s.Push(c)
	if err := s.Rot(2); err != nil { // a is at depth 2
		t.Fatal(err)
	}
	top, _ := s.Top()
	if top != a {
		t.Fatalf("rot(2) should bring a to top")
	}
	next, _ := s.At(1)
	if next != c {
		t.Fatalf("expected c below new top")
	}
}

func TestBuryMovesTopDown(t *testing.T) {
	s := New()
	a, b, c := tensor.Scalar(1), tensor.Scalar(2), tensor.Scalar(3)
	s.Push(a)
	s.Push(b)
	s.Push(c)
	if err := s.Bury(2); err != nil {
		t.Fatal(err)
	}
	bottom, _ := s.At(2)
	if bottom != c {
		t.Fatalf("bury(2) should move c to the bottom")
	}
	top, _ := s.Top()
	if top != b {
		t.Fatalf("expected b on top after burying c")
	}
}

func TestClsEmptiesStack(t *testing.T) {
	s := New()
	s.Push(tensor.Scalar(1))
	s.Push(tensor.Scalar(2))
	s.Cls()
	if s.Len() != 0 {
		t.Fatalf("len after Cls = %d, want 0", s.Len())
	}
}

func TestReuseCacheRoundTrip(t *testing.T) {
	s := New()
	gpuTensor := &tensor.Tensor{
		Rank:  1,
		Owned: true,
		Storage: &tensor.GPUStorage{
			Texture: 7, Width: 4, Height: 4, Layers: 1, Channels: tensor.ChannelGeneric,
		},
	}
	s.Push(gpuTensor)
	if _, err := s.Pop(); err != nil {
		t.Fatal(err)
	}
	key := ReuseKey{Width: 4, Height: 4, Layers: 1, Channels: tensor.ChannelGeneric}
	got, ok := s.Reusable(key)
	if !ok {
		t.Fatalf("expected reusable tensor for key %v", key)
	}
	if got != gpuTensor {
		t.Fatalf("expected to get back the same tensor")
	}
	if _, ok := s.Reusable(key); ok {
		t.Fatalf("reusable tensor should have been removed after first Reusable call")
	}
}
