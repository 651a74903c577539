//go:build !tinygo && cgo

package compute

import (
	"testing"

	"github.com/soypat/atlas/internal/stack"
	"github.com/soypat/atlas/internal/tensor"
	"github.com/soypat/atlas/v4.6-core/glgl"
)

func requireGL(t *testing.T) func() {
	t.Helper()
	_, term, err := glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:         "compute test",
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

func TestComputeAddOneRoundTrip(t *testing.T) {
	term := requireGL(t)
	defer term()

	spec := Spec{
		FragmentMain: "_a_result = a(i) + 1.0;",
		ArgCount:     1,
		RetCount:     1,
		Channels:     tensor.ChannelGeneric,
	}
	c, err := New(spec, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Delete()

	ts := stack.New()
	ts.Push(tensor.Vector([]float32{1, 2, 3, 4}))

	if err := c.Run(ts, Flags{}, 6); err != nil {
		t.Fatal(err)
	}
	if ts.Len() != 1 {
		t.Fatalf("stack len = %d, want 1", ts.Len())
	}
	out, err := ts.Top()
	if err != nil {
		t.Fatal(err)
	}
	if err := tensor.ToHostMemory(out); err != nil {
		t.Fatal(err)
	}
}
