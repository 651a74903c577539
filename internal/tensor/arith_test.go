package tensor

import "testing"

func TestElementWiseAdd(t *testing.T) {
	a := Vector([]float32{1, 2, 3})
	b := Vector([]float32{10, 20, 30})
	out, err := ElementWise(OpAdd, a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{11, 22, 33}
	got := readAll(out)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("add = %v, want %v", got, want)
		}
	}
}

func TestElementWiseShapeMismatch(t *testing.T) {
	a := Vector([]float32{1, 2, 3})
	b := Vector([]float32{1, 2})
	if _, err := ElementWise(OpMul, a, b); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
}

func TestUnaryInPlaceRequiresOwnership(t *testing.T) {
	v := Vector([]float32{1})
	c := v.Clone()
	if err := UnaryInPlace(OpFloor, c); err == nil {
		t.Fatalf("unary op on unowned view should error")
	}
}

func TestUnaryInPlaceFloor(t *testing.T) {
	v := Vector([]float32{1.7, -1.2})
	if err := UnaryInPlace(OpFloor, v); err != nil {
		t.Fatal(err)
	}
	got := readAll(v)
	if got[0] != 1 || got[1] != -2 {
		t.Fatalf("floor = %v", got)
	}
}

func TestMinMax(t *testing.T) {
	v := Vector([]float32{3, -1, 7, 2})
	out, err := MinMax(v)
	if err != nil {
		t.Fatal(err)
	}
	got := readAll(out)
	if got[0] != -1 || got[1] != 7 {
		t.Fatalf("minmax = %v", got)
	}
}

func TestMinMaxEmptyErrors(t *testing.T) {
	empty := New(1, [MaxRank]uint32{0, 1, 1, 1}, nil)
	if _, err := MinMax(empty); err == nil {
		t.Fatalf("expected error on empty tensor")
	}
}

func TestLength(t *testing.T) {
	v := Vector([]float32{3, 4})
	got, err := Length(v)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Fatalf("length = %v, want 5", got)
	}
}

func TestShape(t *testing.T) {
	m := mat2x3()
	out := Shape(m)
	got := readAll(out)
	if got[0] != 2 || got[1] != 3 {
		t.Fatalf("shape = %v", got)
	}
}
