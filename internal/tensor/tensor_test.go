package tensor

import "testing"

func TestNewScalarVector(t *testing.T) {
	s := Scalar(3.5)
	if s.Rank != 0 || s.Size != 1 {
		t.Fatalf("scalar: rank=%d size=%d", s.Rank, s.Size)
	}
	v := Vector([]float32{1, 2, 3})
	if v.Rank != 1 || v.Shape[0] != 3 {
		t.Fatalf("vector: rank=%d shape0=%d", v.Rank, v.Shape[0])
	}
	if !v.IsContiguous() || !v.Owned {
		t.Fatalf("fresh vector should be contiguous and owned")
	}
}

func TestNewPanicsOnSizeMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on size mismatch")
		}
	}()
	New(1, [MaxRank]uint32{4, 1, 1, 1}, []float32{1, 2, 3})
}

func TestCanonicalStrides(t *testing.T) {
	shape := [MaxRank]uint32{2, 3, 4, 1}
	got := canonicalStrides(3, shape)
	want := [MaxRank]int32{12, 4, 1, 0}
	if got != want {
		t.Fatalf("strides = %v, want %v", got, want)
	}
}

func TestCloneSharesStorageNotOwnership(t *testing.T) {
	v := Vector([]float32{1, 2, 3})
	c := v.Clone()
	if c.Owned {
		t.Fatalf("clone must not be owned")
	}
	if c.Storage != v.Storage {
		t.Fatalf("clone must share storage")
	}
}
