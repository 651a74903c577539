package tensor

import "testing"

func mat2x3() *Tensor {
	return New(2, [MaxRank]uint32{2, 3, 1, 1}, []float32{1, 2, 3, 4, 5, 6})
}

func readAll(t *Tensor) []float32 {
	out := make([]float32, t.Size)
	i := 0
	walk(t.Rank, t.Shape, func(pos [MaxRank]uint32) {
		out[i] = elementAt(t, pos)
		i++
	})
	return out
}

func TestTranspose(t *testing.T) {
	m := mat2x3()
	if err := Transpose(m, 0, 1); err != nil {
		t.Fatal(err)
	}
	if m.Shape[0] != 3 || m.Shape[1] != 2 {
		t.Fatalf("shape after transpose = %v", m.Shape)
	}
	got := readAll(m)
	want := []float32{1, 4, 2, 5, 3, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transpose data = %v, want %v", got, want)
		}
	}
}

func TestReverse(t *testing.T) {
	v := Vector([]float32{1, 2, 3, 4})
	if err := Reverse(v, 0); err != nil {
		t.Fatal(err)
	}
	got := readAll(v)
	want := []float32{4, 3, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reverse = %v, want %v", got, want)
		}
	}
}

func TestSliceNegativeIndices(t *testing.T) {
	v := Vector([]float32{0, 1, 2, 3, 4})
	if err := Slice(v, 0, -3, -1); err != nil {
		t.Fatal(err)
	}
	got := readAll(v)
	want := []float32{2, 3}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("slice = %v, want %v", got, want)
	}
}

func TestSliceInvalidRange(t *testing.T) {
	v := Vector([]float32{0, 1, 2})
	if err := Slice(v, 0, 2, 1); err == nil {
		t.Fatalf("expected error for start > end")
	}
}

func TestTakeFirstLast(t *testing.T) {
	m := mat2x3()
	first, err := TakeFirst(m)
	if err != nil {
		t.Fatal(err)
	}
	if first.Rank != 1 || first.Shape[0] != 3 {
		t.Fatalf("first rank/shape = %d %v", first.Rank, first.Shape)
	}
	got := readAll(first)
	want := []float32{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("first = %v, want %v", got, want)
		}
	}
	last, err := TakeLast(m)
	if err != nil {
		t.Fatal(err)
	}
	got = readAll(last)
	want = []float32{4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("last = %v, want %v", got, want)
		}
	}
}

func TestEncloseExtrudeUnextrude(t *testing.T) {
	v := Vector([]float32{1, 2, 3})
	if err := Enclose(v); err != nil {
		t.Fatal(err)
	}
	if v.Rank != 2 || v.Shape[0] != 1 || v.Shape[1] != 3 {
		t.Fatalf("enclose shape = %v rank %d", v.Shape, v.Rank)
	}
	if err := Extrude(v); err != nil {
		t.Fatal(err)
	}
	if v.Rank != 3 || v.Shape[2] != 1 {
		t.Fatalf("extrude shape = %v", v.Shape)
	}
	if err := Unextrude(v); err != nil {
		t.Fatal(err)
	}
	if v.Rank != 2 {
		t.Fatalf("unextrude rank = %d", v.Rank)
	}
	if err := Unextrude(v); err == nil {
		t.Fatalf("unextrude on trailing-dim-3 axis should fail")
	}
}

func TestReshapeContiguous(t *testing.T) {
	m := mat2x3()
	if err := Reshape(m, 1, [MaxRank]uint32{6, 1, 1, 1}); err != nil {
		t.Fatal(err)
	}
	if m.Rank != 1 || m.Shape[0] != 6 {
		t.Fatalf("reshape shape = %v rank %d", m.Shape, m.Rank)
	}
}

func TestReshapeSizeMismatch(t *testing.T) {
	m := mat2x3()
	if err := Reshape(m, 1, [MaxRank]uint32{5, 1, 1, 1}); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}

func TestCat(t *testing.T) {
	a := Vector([]float32{1, 2})
	b := Vector([]float32{3, 4, 5})
	out, err := Cat(a, b, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := readAll(out)
	want := []float32{1, 2, 3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cat = %v, want %v", got, want)
		}
	}
}

func TestRepeat(t *testing.T) {
	v := Vector([]float32{1, 2})
	out, err := Repeat(v, 3)
	if err != nil {
		t.Fatal(err)
	}
	if out.Rank != 2 || out.Shape[0] != 3 || out.Shape[1] != 2 {
		t.Fatalf("repeat shape = %v rank %d", out.Shape, out.Rank)
	}
	got := readAll(out)
	want := []float32{1, 2, 1, 2, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("repeat = %v, want %v", got, want)
		}
	}
}

func TestIndexGatherWithNegativeWrap(t *testing.T) {
	source := Vector([]float32{10, 20, 30, 40})
	idx := Vector([]float32{-1, 0, -4})
	out, err := Index(source, idx, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := readAll(out)
	want := []float32{40, 10, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index = %v, want %v", got, want)
		}
	}
}

func TestIndexOutOfRangeErrors(t *testing.T) {
	source := Vector([]float32{1, 2, 3})
	idx := Vector([]float32{5})
	if _, err := Index(source, idx, 0); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}
