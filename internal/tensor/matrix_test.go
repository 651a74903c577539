package tensor

import "testing"

func TestMatMulIdentity(t *testing.T) {
	m := mat2x3()
	id := New(2, [MaxRank]uint32{2, 2, 1, 1}, []float32{1, 0, 0, 1})
	out, err := MatMul(m, id)
	if err != nil {
		t.Fatal(err)
	}
	got := readAll(out)
	want := readAll(m)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("matmul by identity = %v, want %v", got, want)
		}
	}
}

func TestMatMulDimensionMismatch(t *testing.T) {
	a := New(2, [MaxRank]uint32{2, 3, 1, 1}, make([]float32, 6))
	b := New(2, [MaxRank]uint32{2, 3, 1, 1}, make([]float32, 6))
	if _, err := MatMul(a, b); err == nil {
		t.Fatalf("expected inner dimension mismatch error")
	}
}

func TestTranslateComposeScale(t *testing.T) {
	scale := New(2, [MaxRank]uint32{4, 4, 1, 1}, []float32{
		2, 0, 0, 0,
		0, 2, 0, 0,
		0, 0, 2, 0,
		0, 0, 0, 1,
	})
	translate, err := Translate(Vector([]float32{1, 2, 3}))
	if err != nil {
		t.Fatal(err)
	}
	// "M; v; translate; m": result = MatMul(top=translate, second=scale) = scale ∘ translate.
	combined, err := MatMul(translate, scale)
	if err != nil {
		t.Fatal(err)
	}
	got := readAll(combined)
	// Applying combined to the origin (0,0,0,1) should give (2,4,6,1):
	// scaling the translated origin by 2 in each axis.
	origin := []float32{0, 0, 0, 1}
	var result [4]float32
	for row := 0; row < 4; row++ {
		var sum float32
		for col := 0; col < 4; col++ {
			sum += got[row*4+col] * origin[col]
		}
		result[row] = sum
	}
	want := [4]float32{2, 4, 6, 1}
	if result != want {
		t.Fatalf("combined * origin = %v, want %v", result, want)
	}
}

func TestProjOrthoShape(t *testing.T) {
	p, err := Proj(Vector([]float32{1.0, 1.3333, 0.1, 100}))
	if err != nil {
		t.Fatal(err)
	}
	if p.Rank != 2 || p.Shape[0] != 4 || p.Shape[1] != 4 {
		t.Fatalf("proj shape = %v rank %d", p.Shape, p.Rank)
	}
	o, err := Ortho(Vector([]float32{-1, 1, -1, 1, 0.1, 100}))
	if err != nil {
		t.Fatal(err)
	}
	if o.Rank != 2 || o.Shape[0] != 4 || o.Shape[1] != 4 {
		t.Fatalf("ortho shape = %v rank %d", o.Shape, o.Rank)
	}
}
