//go:build !tinygo && cgo

package tensor

import (
	"testing"

	"github.com/soypat/atlas/v4.6-core/glgl"
)

func requireGL(t *testing.T) func() {
	t.Helper()
	_, term, err := glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:         "tensor gpu test",
		Version:       [2]int{4, 6},
		OpenGLProfile: glgl.ProfileCore,
		ForwardCompat: true,
		Width:         1,
		Height:        1,
	})
	if err != nil {
		t.Log(err)
		t.Skip("no GL context available")
	}
	return term
}

func TestGPURoundTrip(t *testing.T) {
	term := requireGL(t)
	defer term()

	v := Vector([]float32{1, 2, 3, 4, 5})
	if err := ToGPUMemory(v); err != nil {
		t.Fatal(err)
	}
	if !v.OnGPU() {
		t.Fatalf("expected tensor to be GPU-resident")
	}
	if err := ToHostMemory(v); err != nil {
		t.Fatal(err)
	}
	got := readAll(v)
	want := []float32{1, 2, 3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("round trip = %v, want %v", got, want)
		}
	}
}

func TestAsyncRoundTrip(t *testing.T) {
	term := requireGL(t)
	defer term()

	v := Vector([]float32{9, 8, 7})
	if err := ToGPUMemory(v); err != nil {
		t.Fatal(err)
	}
	if err := BeginToHostMemoryAsync(v); err != nil {
		t.Fatal(err)
	}
	if !v.InFlight() {
		t.Fatalf("expected tensor mid-transfer")
	}
	if err := EndToHostMemoryAsync(v); err != nil {
		t.Fatal(err)
	}
	got := readAll(v)
	want := []float32{9, 8, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("async round trip = %v, want %v", got, want)
		}
	}
}
