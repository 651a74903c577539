package compute

import (
	"strings"
	"testing"

	"github.com/soypat/atlas/internal/tensor"
)

func TestSynthesizeGenericFooter(t *testing.T) {
	spec := Spec{
		FragmentMain: "_a_result = a(i) + 1.0;",
		ArgCount:     1,
		RetCount:     1,
		Channels:     tensor.ChannelGeneric,
	}
	vertex, fragment, err := Synthesize(spec, []string{"t"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(vertex, "gl_Position") {
		t.Fatalf("vertex shader missing gl_Position assignment")
	}
	for _, want := range []string{
		"uniform sampler2DArray _a_atex;",
		"uniform ivec4 _a_astrides;",
		"layout(std140) uniform AtlasVars",
		"vec4 t;",
		"layout(location = 0) out vec4 _a_fragColor0;",
	} {
		if !strings.Contains(fragment, want) {
			t.Fatalf("fragment shader missing %q:\n%s", want, fragment)
		}
	}
}

func TestSynthesizeChanneledFooter(t *testing.T) {
	spec := Spec{
		FragmentMain: "_a_result = af(tf);",
		ArgCount:     1,
		RetCount:     1,
		Channels:     tensor.ChannelRGB,
	}
	_, fragment, err := Synthesize(spec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fragment, "out vec3 _a_fragColor0;") {
		t.Fatalf("expected vec3 fragment output for RGB channels:\n%s", fragment)
	}
	if strings.Contains(fragment, "AtlasVars") {
		t.Fatalf("should not emit an empty uniform block when there are no variables")
	}
}

func TestSynthesizeArgCountValidation(t *testing.T) {
	_, _, err := Synthesize(Spec{ArgCount: 7, RetCount: 1}, nil)
	if err == nil {
		t.Fatalf("expected error for out-of-range argument count")
	}
	_, _, err = Synthesize(Spec{ArgCount: 0, RetCount: 0}, nil)
	if err == nil {
		t.Fatalf("expected error for out-of-range return count")
	}
}

func TestGLSLSafeRenaming(t *testing.T) {
	if got := glslSafe("camera.position"); got != "camera_position" {
		t.Fatalf("glslSafe = %q, want camera_position", got)
	}
}
